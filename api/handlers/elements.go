package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/interact"
	"github.com/BaSui01/blockbench/perception"
	"github.com/BaSui01/blockbench/session"
	"github.com/BaSui01/blockbench/types"
)

// OCRDetector produces text detections from a screenshot.
type OCRDetector interface {
	Detect(ctx context.Context, png []byte) ([]perception.OCRDetection, error)
}

// ElementsHandler serves the observation endpoints. When an OCR detector
// is configured, batch observations fuse DOM and OCR views before
// answering.
type ElementsHandler struct {
	manager  *session.Manager
	detector OCRDetector
	fuser    *perception.Fuser
	logger   *zap.Logger
}

// NewElementsHandler builds the observation endpoint handler. detector and
// fuser may be nil to serve DOM-only observations.
func NewElementsHandler(manager *session.Manager, detector OCRDetector, fuser *perception.Fuser, logger *zap.Logger) *ElementsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElementsHandler{
		manager:  manager,
		detector: detector,
		fuser:    fuser,
		logger:   logger.With(zap.String("component", "elements_handler")),
	}
}

// HandleElements serves GET /sessions/{id}/elements?selector=.
func (h *ElementsHandler) HandleElements(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	selector := r.URL.Query().Get("selector")
	if selector == "" {
		WriteError(w, types.NewError(types.ErrInvalidArg, "missing selector parameter"), h.logger)
		return
	}
	list, err := s.Interact.Elements(r.Context(), selector)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, list)
}

// HandleElementsBatch serves GET /sessions/{id}/elements_batch?selectors=.
// The selectors parameter is a comma-separated list of name::selector
// pairs; bare selectors name themselves.
func (h *ElementsHandler) HandleElementsBatch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	raw := r.URL.Query().Get("selectors")
	selectors := interact.ParseNamedSelectors(raw)
	if len(selectors) == 0 {
		WriteError(w, types.NewError(types.ErrInvalidArg, "missing selectors parameter"), h.logger)
		return
	}

	startedAt := time.Now()
	list, err := s.Interact.ElementsBatch(r.Context(), selectors)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	if h.detector != nil && h.fuser != nil {
		list = h.fuseWithOCR(r.Context(), s, list, startedAt)
	}
	WriteSuccess(w, list)
}

// HandleScreenshot serves GET /sessions/{id}/screenshot as a raw PNG.
func (h *ElementsHandler) HandleScreenshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	png, err := s.Interact.Screenshot(r.Context())
	if err != nil {
		WriteError(w, types.NewErrorf(types.ErrInternal, "screenshot failed: %v", err), h.logger)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// fuseWithOCR merges OCR detections into the DOM observation. OCR trouble
// never fails the request; the DOM view stands alone.
func (h *ElementsHandler) fuseWithOCR(ctx context.Context, s *session.Session, list *types.ElementList, startedAt time.Time) *types.ElementList {
	png, err := s.Interact.Screenshot(ctx)
	if err != nil {
		h.logger.Warn("screenshot for OCR failed", zap.Error(err))
		return list
	}
	detections, err := h.detector.Detect(ctx, png)
	if err != nil {
		h.logger.Warn("ocr detection failed", zap.Error(err))
		return list
	}

	fused := h.fuser.Fuse(list.Elements, detections)
	s.Interact.SetElements(fused)
	return &types.ElementList{
		Elements:       fused,
		TotalSelectors: list.TotalSelectors,
		Count:          len(fused),
		ElapsedSeconds: time.Since(startedAt).Seconds(),
	}
}

func (h *ElementsHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return nil, false
	}
	return s, true
}
