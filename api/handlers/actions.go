package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/coords"
	"github.com/BaSui01/blockbench/envelope"
	"github.com/BaSui01/blockbench/session"
	"github.com/BaSui01/blockbench/types"
)

// CommandRecorder counts executed commands for metrics.
type CommandRecorder interface {
	RecordCommand(api string, success bool, duration time.Duration)
}

// ActionsHandler serves the per-session action endpoints. Every response
// is an envelope written verbatim with HTTP 200; only session lookup
// failures use the Response wrapper.
type ActionsHandler struct {
	manager  *session.Manager
	recorder CommandRecorder
	logger   *zap.Logger
}

// NewActionsHandler builds the action endpoint handler. recorder may be
// nil.
func NewActionsHandler(manager *session.Manager, recorder CommandRecorder, logger *zap.Logger) *ActionsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActionsHandler{
		manager:  manager,
		recorder: recorder,
		logger:   logger.With(zap.String("component", "actions_handler")),
	}
}

// HandleClick serves POST /sessions/{id}/click.
func (h *ActionsHandler) HandleClick(w http.ResponseWriter, r *http.Request) {
	s, args, ok := h.prepare(w, r, "click")
	if !ok {
		return
	}
	var action types.ClickAction
	if !h.bind(w, r, "click", args, &action) {
		return
	}
	h.finish(w, "click", s.Interact.Click(r.Context(), action))
}

// HandleDoubleClick serves POST /sessions/{id}/double_click.
func (h *ActionsHandler) HandleDoubleClick(w http.ResponseWriter, r *http.Request) {
	s, args, ok := h.prepare(w, r, "double_click")
	if !ok {
		return
	}
	var action types.DoubleClickAction
	if !h.bind(w, r, "double_click", args, &action) {
		return
	}
	h.finish(w, "double_click", s.Interact.DoubleClick(r.Context(), action))
}

// HandleMoveTo serves POST /sessions/{id}/move_to.
func (h *ActionsHandler) HandleMoveTo(w http.ResponseWriter, r *http.Request) {
	s, args, ok := h.prepare(w, r, "move_to")
	if !ok {
		return
	}
	var action types.MoveToAction
	if !h.bind(w, r, "move_to", args, &action) {
		return
	}
	h.finish(w, "move_to", s.Interact.MoveTo(r.Context(), action))
}

// HandleDragAndDrop serves POST /sessions/{id}/drag_and_drop.
func (h *ActionsHandler) HandleDragAndDrop(w http.ResponseWriter, r *http.Request) {
	s, args, ok := h.prepare(w, r, "drag_and_drop")
	if !ok {
		return
	}
	var action types.DragAndDropAction
	if !h.bind(w, r, "drag_and_drop", args, &action) {
		return
	}
	h.finish(w, "drag_and_drop", s.Interact.Drag(r.Context(), action))
}

// HandleScroll serves POST /sessions/{id}/scroll.
func (h *ActionsHandler) HandleScroll(w http.ResponseWriter, r *http.Request) {
	s, args, ok := h.prepare(w, r, "scroll")
	if !ok {
		return
	}
	var action types.ScrollAction
	if !h.bind(w, r, "scroll", args, &action) {
		return
	}
	h.finish(w, "scroll", s.Interact.Scroll(r.Context(), action))
}

// HandleType serves POST /sessions/{id}/type.
func (h *ActionsHandler) HandleType(w http.ResponseWriter, r *http.Request) {
	s, args, ok := h.prepare(w, r, "type")
	if !ok {
		return
	}
	var action types.TypeAction
	if !h.bind(w, r, "type", args, &action) {
		return
	}
	h.finish(w, "type", s.Interact.TypeText(r.Context(), action))
}

// HandleKey serves POST /sessions/{id}/key.
func (h *ActionsHandler) HandleKey(w http.ResponseWriter, r *http.Request) {
	s, args, ok := h.prepare(w, r, "key")
	if !ok {
		return
	}
	var action types.KeyAction
	if !h.bind(w, r, "key", args, &action) {
		return
	}
	h.finish(w, "key", s.Interact.Key(r.Context(), action))
}

// HandleHoldKey serves POST /sessions/{id}/hold_key.
func (h *ActionsHandler) HandleHoldKey(w http.ResponseWriter, r *http.Request) {
	s, args, ok := h.prepare(w, r, "hold_key")
	if !ok {
		return
	}
	var action types.HoldKeyAction
	if !h.bind(w, r, "hold_key", args, &action) {
		return
	}
	h.finish(w, "hold_key", s.Interact.HoldKey(r.Context(), action))
}

// HandleReleaseKey serves POST /sessions/{id}/release_key.
func (h *ActionsHandler) HandleReleaseKey(w http.ResponseWriter, r *http.Request) {
	s, args, ok := h.prepare(w, r, "release_key")
	if !ok {
		return
	}
	var action types.ReleaseKeyAction
	if !h.bind(w, r, "release_key", args, &action) {
		return
	}
	h.finish(w, "release_key", s.Interact.ReleaseKey(r.Context(), action))
}

// HandleHotkey serves POST /sessions/{id}/hotkey.
func (h *ActionsHandler) HandleHotkey(w http.ResponseWriter, r *http.Request) {
	s, args, ok := h.prepare(w, r, "hotkey")
	if !ok {
		return
	}
	var action types.HotkeyAction
	if !h.bind(w, r, "hotkey", args, &action) {
		return
	}
	h.finish(w, "hotkey", s.Interact.Hotkey(r.Context(), action))
}

// HandleComposite serves POST /sessions/{id}/composite/execute.
func (h *ActionsHandler) HandleComposite(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req types.CompositeRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	env := s.Composite.Execute(r.Context(), req)
	h.finish(w, req.API, env)
}

// prepare resolves the session and reads the raw argument map, applying
// the model-space coordinate rewrite when a model query parameter is
// present.
func (h *ActionsHandler) prepare(w http.ResponseWriter, r *http.Request, api string) (*session.Session, map[string]any, bool) {
	s, ok := h.session(w, r)
	if !ok {
		return nil, nil, false
	}

	args := map[string]any{}
	if err := decodeBody(r, &args); err != nil {
		WriteError(w, err, h.logger)
		return nil, nil, false
	}

	if model := r.URL.Query().Get("model"); model != "" {
		width, height := s.Page().ViewportSize()
		rewritten, err := coords.RewritePlan(api, args, model, width, height)
		if err != nil {
			WriteError(w, types.NewErrorf(types.ErrInvalidArg,
				"coordinate rewrite failed: %v", err), h.logger)
			return nil, nil, false
		}
		args = rewritten
	}
	return s, args, true
}

// bind converts the argument map into a typed action.
func (h *ActionsHandler) bind(w http.ResponseWriter, r *http.Request, api string, args map[string]any, dst any) bool {
	data, err := json.Marshal(args)
	if err == nil {
		err = json.Unmarshal(data, dst)
	}
	if err != nil {
		WriteError(w, types.NewErrorf(types.ErrInvalidArg,
			"invalid %s arguments: %v", api, err), h.logger)
		return false
	}
	return true
}

func (h *ActionsHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return nil, false
	}
	return s, true
}

// finish writes the envelope and records the command outcome.
func (h *ActionsHandler) finish(w http.ResponseWriter, api string, env *envelope.Envelope) {
	if h.recorder != nil {
		h.recorder.RecordCommand(api, env.Success, time.Duration(env.Meta.DurationMS)*time.Millisecond)
	}
	WriteJSON(w, http.StatusOK, env)
}
