package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/api/handlers"
	"github.com/BaSui01/blockbench/config"
	"github.com/BaSui01/blockbench/internal/metrics"
	"github.com/BaSui01/blockbench/perception"
	"github.com/BaSui01/blockbench/session"
)

// newRouter wires every endpoint onto a mux and wraps it in the
// middleware chain.
func newRouter(
	ctx context.Context,
	cfg *config.Config,
	manager *session.Manager,
	collector *metrics.Collector,
	detector *perception.Detector,
	fuser *perception.Fuser,
	logger *zap.Logger,
) http.Handler {
	// A nil *Detector must stay a nil interface inside the handler.
	var ocr handlers.OCRDetector
	if detector != nil {
		ocr = detector
	}

	sessionsH := handlers.NewSessionsHandler(manager, logger)
	actionsH := handlers.NewActionsHandler(manager, collector, logger)
	elementsH := handlers.NewElementsHandler(manager, ocr, fuser, logger)
	healthH := handlers.NewHealthHandler(manager)

	mux := http.NewServeMux()

	// Pool lifecycle.
	mux.HandleFunc("POST /sessions", sessionsH.HandleCreate)
	mux.HandleFunc("GET /sessions", sessionsH.HandleList)
	mux.HandleFunc("GET /sessions/count", sessionsH.HandleCount)
	mux.HandleFunc("GET /sessions/{id}", sessionsH.HandleGet)
	mux.HandleFunc("DELETE /sessions/{id}", sessionsH.HandleDelete)
	mux.HandleFunc("DELETE /sessions", sessionsH.HandleDeleteAll)

	// Primitive actions.
	mux.HandleFunc("POST /sessions/{id}/click", actionsH.HandleClick)
	mux.HandleFunc("POST /sessions/{id}/double_click", actionsH.HandleDoubleClick)
	mux.HandleFunc("POST /sessions/{id}/move_to", actionsH.HandleMoveTo)
	mux.HandleFunc("POST /sessions/{id}/drag_and_drop", actionsH.HandleDragAndDrop)
	mux.HandleFunc("POST /sessions/{id}/scroll", actionsH.HandleScroll)
	mux.HandleFunc("POST /sessions/{id}/type", actionsH.HandleType)
	mux.HandleFunc("POST /sessions/{id}/key", actionsH.HandleKey)
	mux.HandleFunc("POST /sessions/{id}/hold_key", actionsH.HandleHoldKey)
	mux.HandleFunc("POST /sessions/{id}/release_key", actionsH.HandleReleaseKey)
	mux.HandleFunc("POST /sessions/{id}/hotkey", actionsH.HandleHotkey)

	// Composite editor commands.
	mux.HandleFunc("POST /sessions/{id}/composite/execute", actionsH.HandleComposite)

	// Perception.
	mux.HandleFunc("GET /sessions/{id}/elements", elementsH.HandleElements)
	mux.HandleFunc("GET /sessions/{id}/elements_batch", elementsH.HandleElementsBatch)
	mux.HandleFunc("GET /sessions/{id}/screenshot", elementsH.HandleScreenshot)

	// Service endpoints.
	mux.HandleFunc("GET /health", healthH.HandleHealth)
	mux.HandleFunc("GET /healthz", healthH.HandleHealth)
	mux.HandleFunc("GET /version", healthH.HandleVersion(Version, BuildTime, GitCommit))
	mux.Handle("GET /metrics", promhttp.Handler())

	middlewares := []Middleware{
		Recovery(logger),
		RequestID(),
		RequestLogger(logger),
		MetricsMiddleware(collector),
	}
	if cfg.Server.RateLimit > 0 {
		middlewares = append(middlewares,
			RateLimiter(ctx, cfg.Server.RateLimit, cfg.Server.RateBurst, logger))
	}
	return Chain(mux, middlewares...)
}
