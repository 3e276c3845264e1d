package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/session"
)

// SessionsHandler serves the pool lifecycle endpoints.
type SessionsHandler struct {
	manager *session.Manager
	logger  *zap.Logger
}

// NewSessionsHandler builds the pool endpoint handler.
func NewSessionsHandler(manager *session.Manager, logger *zap.Logger) *SessionsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionsHandler{
		manager: manager,
		logger:  logger.With(zap.String("component", "sessions_handler")),
	}
}

// HandleCreate serves POST /sessions.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	record, _ := strconv.ParseBool(q.Get("record"))
	params := session.CreateParams{
		Record:   record,
		Quality:  q.Get("quality"),
		TaskName: q.Get("task_name"),
		SaveDir:  q.Get("save_dir"),
	}

	s, err := h.manager.Create(r.Context(), params)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	data := map[string]any{
		"session_id":   s.ID,
		"created_at":   float64(s.CreatedAt.UnixMilli()) / 1000.0,
		"is_recording": s.IsRecording(),
	}
	if s.Recording != nil {
		data["recording_id"] = s.Recording.RecordingID
		data["recording_quality"] = s.Recording.Quality
	}
	WriteSuccess(w, data)
}

// HandleList serves GET /sessions. Pool occupancy is mirrored in headers
// so callers can throttle without parsing the body.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list := h.manager.List()
	h.writeOccupancyHeaders(w)
	WriteSuccess(w, map[string]any{
		"sessions": list,
		"count":    len(list),
	})
}

// HandleCount serves GET /sessions/count.
func (h *SessionsHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	active := h.manager.Active()
	max := h.manager.Capacity()
	WriteSuccess(w, map[string]any{
		"active":    active,
		"max":       max,
		"available": max - active,
	})
}

// HandleGet serves GET /sessions/{id}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, s.Summary())
}

// HandleDelete serves DELETE /sessions/{id}. The finalized recording, when
// present, rides along in the response so callers get the captured video
// without another round trip.
func (h *SessionsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, err := h.manager.Delete(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	data := map[string]any{"session_id": id, "deleted": true}
	if s.Recording != nil {
		data["recording"] = s.Recording
	}
	WriteSuccess(w, data)
}

// HandleDeleteAll serves DELETE /sessions.
func (h *SessionsHandler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.manager.DeleteAll(r.Context()))
}

func (h *SessionsHandler) writeOccupancyHeaders(w http.ResponseWriter) {
	active := h.manager.Active()
	max := h.manager.Capacity()
	w.Header().Set("X-Max-Sessions", strconv.Itoa(max))
	w.Header().Set("X-Active-Sessions", strconv.Itoa(active))
	w.Header().Set("X-Available-Sessions", strconv.Itoa(max-active))
}
