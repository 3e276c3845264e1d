// Package session owns the browser session pool: creation against the
// editor page, TTL and LRU lifecycle, and teardown with recording
// finalization.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/composite"
	"github.com/BaSui01/blockbench/engine"
	"github.com/BaSui01/blockbench/interact"
	"github.com/BaSui01/blockbench/types"
)

// Session binds one editor page to its command handlers.
type Session struct {
	ID        string
	CreatedAt time.Time

	Interact  *interact.Handler
	Composite *composite.Dispatcher
	Recording *RecordingInfo

	page   engine.Page
	logger *zap.Logger

	mu       sync.Mutex
	lastUsed time.Time
	closed   bool
}

// Page exposes the underlying page for screenshot and perception flows.
func (s *Session) Page() engine.Page {
	return s.page
}

// Touch slides the session's idle clock.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// LastUsedAt returns the last activity time.
func (s *Session) LastUsedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// IsRecording reports whether the session was created with capture on.
func (s *Session) IsRecording() bool {
	return s.Recording != nil
}

// Summary builds the listing entry for this session.
func (s *Session) Summary() types.SessionSummary {
	return types.SessionSummary{
		SessionID:   s.ID,
		CreatedAt:   float64(s.CreatedAt.UnixMilli()) / 1000.0,
		LastUsedAt:  float64(s.LastUsedAt().UnixMilli()) / 1000.0,
		IsRecording: s.IsRecording(),
	}
}

// Close finalizes any recording and releases the page. Safe to call once;
// later calls are no-ops.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.Recording != nil {
		s.Recording.finalize(s.logger)
	}
	if err := s.page.Close(ctx); err != nil {
		s.logger.Warn("failed to close page", zap.Error(err))
		return err
	}
	return nil
}
