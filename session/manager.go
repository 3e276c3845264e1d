package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/blockbench/composite"
	"github.com/BaSui01/blockbench/engine"
	"github.com/BaSui01/blockbench/interact"
	"github.com/BaSui01/blockbench/types"
)

// Recorder counts session lifecycle events. A nil Recorder disables
// counting.
type Recorder interface {
	SessionCreated()
	SessionClosed()
	SessionEvicted()
	SessionExpired()
}

// Options configures the pool.
type Options struct {
	MaxSessions    int
	TTL            time.Duration
	SweepInterval  time.Duration
	EditorURL      string
	ViewportWidth  int
	ViewportHeight int
	RecordingDir   string
}

// CreateParams are the per-session creation knobs.
type CreateParams struct {
	Record   bool
	Quality  string
	TaskName string
	SaveDir  string
}

// DeleteAllResult reports a bulk teardown.
type DeleteAllResult struct {
	Closed int               `json:"closed"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Manager is the session pool. Expired sessions are collected lazily on
// every pool operation and by a background sweeper; at capacity the least
// recently used session is evicted to make room.
type Manager struct {
	engine   engine.Engine
	opts     Options
	logger   *zap.Logger
	recorder Recorder

	mu       sync.Mutex
	sessions map[string]*Session

	sweepOnce sync.Once
	stopSweep chan struct{}
}

// NewManager builds a pool over the given engine.
func NewManager(eng engine.Engine, opts Options, recorder Recorder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		engine:    eng,
		opts:      opts,
		logger:    logger.With(zap.String("component", "session_manager")),
		recorder:  recorder,
		sessions:  make(map[string]*Session),
		stopSweep: make(chan struct{}),
	}
}

// Create opens a new session against the editor page. Expired sessions
// are collected first; if the pool is still full the least recently used
// session is evicted.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*Session, error) {
	if m.opts.MaxSessions <= 0 {
		return nil, types.NewError(types.ErrResourceExhausted, "session pool is disabled")
	}

	id := uuid.NewString()
	now := time.Now()
	sessionLogger := m.logger.With(zap.String("session_id", id))

	width, height := m.opts.ViewportWidth, m.opts.ViewportHeight
	var recording *RecordingInfo
	pageOpts := engine.PageOptions{ViewportWidth: width, ViewportHeight: height}
	if params.Record {
		width, height = viewportForQuality(params.Quality)
		base := params.SaveDir
		if base == "" {
			base = m.opts.RecordingDir
		}
		recording = &RecordingInfo{
			RecordingID: uuid.NewString(),
			TaskName:    params.TaskName,
			Quality:     params.Quality,
			Dir:         recordingDir(base, params.TaskName, now),
			StartTime:   float64(now.UnixMilli()) / 1000.0,
			Status:      "recording",
		}
		pageOpts = engine.PageOptions{
			ViewportWidth:  width,
			ViewportHeight: height,
			RecordVideoDir: recording.Dir,
		}
	}

	// The capacity check must stay atomic with both the eviction and the
	// insertion, so the lock is held across page allocation; two
	// concurrent Creates otherwise both pass the check and overfill the
	// pool. Popped sessions are closed after the lock is released.
	m.mu.Lock()
	expired := m.collectExpiredLocked(now)
	var evicted []*Session
	for len(m.sessions) >= m.opts.MaxSessions {
		s := m.popOldestLocked()
		if s == nil {
			break
		}
		evicted = append(evicted, s)
	}

	page, err := m.engine.NewPage(ctx, pageOpts)
	if err != nil {
		m.mu.Unlock()
		m.reap(ctx, expired, evicted)
		return nil, types.NewErrorf(types.ErrInternal, "failed to open page: %v", err)
	}
	if err := page.Navigate(ctx, m.opts.EditorURL); err != nil {
		m.mu.Unlock()
		_ = page.Close(ctx)
		m.reap(ctx, expired, evicted)
		return nil, types.NewErrorf(types.ErrInternal, "failed to open editor: %v", err)
	}

	s := &Session{
		ID:        id,
		CreatedAt: now,
		Interact:  interact.NewHandler(page, id, m.logger),
		Composite: composite.NewDispatcher(page, id, m.logger),
		Recording: recording,
		page:      page,
		logger:    sessionLogger,
		lastUsed:  now,
	}
	m.sessions[id] = s
	active := len(m.sessions)
	m.mu.Unlock()

	m.reap(ctx, expired, evicted)

	if m.recorder != nil {
		m.recorder.SessionCreated()
	}
	m.logger.Info("session created",
		zap.String("session_id", id),
		zap.Bool("recording", params.Record),
		zap.Int("active", active))
	return s, nil
}

// reap closes sessions popped from the pool during Create.
func (m *Manager) reap(ctx context.Context, expired, evicted []*Session) {
	m.closeAll(ctx, expired, "expired")
	for _, s := range evicted {
		m.logger.Info("evicting least recently used session",
			zap.String("session_id", s.ID))
		m.closeOne(ctx, s)
		if m.recorder != nil {
			m.recorder.SessionEvicted()
		}
	}
}

// Get returns a live session and slides its idle clock.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	expired := m.collectExpiredLocked(time.Now())
	s, ok := m.sessions[id]
	m.mu.Unlock()

	m.closeAll(context.Background(), expired, "expired")
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "Session not found: %s", id)
	}
	s.Touch()
	return s, nil
}

// List returns summaries for all live sessions keyed by id.
func (m *Manager) List() map[string]types.SessionSummary {
	m.mu.Lock()
	expired := m.collectExpiredLocked(time.Now())
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	m.closeAll(context.Background(), expired, "expired")

	out := make(map[string]types.SessionSummary, len(sessions))
	for _, s := range sessions {
		out[s.ID] = s.Summary()
	}
	return out
}

// Active returns the live session count.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Capacity returns the configured pool limit.
func (m *Manager) Capacity() int {
	return m.opts.MaxSessions
}

// Delete removes and closes one session. Deleting twice reports not
// found the second time. The close is best effort: the session leaves
// the pool either way, so a close failure is logged, not returned.
func (m *Manager) Delete(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "Session not found: %s", id)
	}
	m.closeOne(ctx, s)
	if m.recorder != nil {
		m.recorder.SessionClosed()
	}
	m.logger.Info("session deleted", zap.String("session_id", id))
	return s, nil
}

// DeleteAll tears down every session concurrently.
func (m *Manager) DeleteAll(ctx context.Context) DeleteAllResult {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var (
		g      errgroup.Group
		mu     sync.Mutex
		closed int
		errs   map[string]string
	)
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			err := s.Close(ctx)
			mu.Lock()
			if err != nil {
				if errs == nil {
					errs = make(map[string]string)
				}
				errs[s.ID] = err.Error()
			} else {
				closed++
			}
			mu.Unlock()
			if m.recorder != nil {
				m.recorder.SessionClosed()
			}
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("all sessions deleted",
		zap.Int("closed", closed), zap.Int("errors", len(errs)))
	return DeleteAllResult{Closed: closed, Errors: errs}
}

// StartSweeper runs the background expiry sweep until StopSweeper.
func (m *Manager) StartSweeper() {
	interval := m.opts.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep(context.Background())
			case <-m.stopSweep:
				return
			}
		}
	}()
}

// StopSweeper halts the background sweep.
func (m *Manager) StopSweeper() {
	m.sweepOnce.Do(func() { close(m.stopSweep) })
}

// Sweep collects expired sessions immediately.
func (m *Manager) Sweep(ctx context.Context) int {
	m.mu.Lock()
	expired := m.collectExpiredLocked(time.Now())
	m.mu.Unlock()
	m.closeAll(ctx, expired, "expired")
	return len(expired)
}

// collectExpiredLocked pops sessions idle past the TTL. Caller holds the
// lock and closes the returned sessions after releasing it.
func (m *Manager) collectExpiredLocked(now time.Time) []*Session {
	if m.opts.TTL <= 0 {
		return nil
	}
	var out []*Session
	for id, s := range m.sessions {
		if now.Sub(s.LastUsedAt()) > m.opts.TTL {
			delete(m.sessions, id)
			out = append(out, s)
		}
	}
	return out
}

// popOldestLocked removes the least recently used session from the map.
func (m *Manager) popOldestLocked() *Session {
	var oldest *Session
	for _, s := range m.sessions {
		if oldest == nil || s.LastUsedAt().Before(oldest.LastUsedAt()) {
			oldest = s
		}
	}
	if oldest != nil {
		delete(m.sessions, oldest.ID)
	}
	return oldest
}

func (m *Manager) closeAll(ctx context.Context, sessions []*Session, reason string) {
	for _, s := range sessions {
		m.logger.Info("closing session", zap.String("session_id", s.ID), zap.String("reason", reason))
		m.closeOne(ctx, s)
		if reason == "expired" && m.recorder != nil {
			m.recorder.SessionExpired()
		}
	}
}

func (m *Manager) closeOne(ctx context.Context, s *Session) {
	if err := s.Close(ctx); err != nil {
		m.logger.Warn("session close failed", zap.String("session_id", s.ID), zap.Error(err))
	}
}
