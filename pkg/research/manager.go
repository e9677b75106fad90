package research

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/altay/deepresearch/internal/metrics"
	"github.com/altay/deepresearch/pkg/workflow"
)

// RunnerFactory builds a runner for one resolved workflow config. The wiring
// layer supplies it so the manager stays independent of concrete providers.
type RunnerFactory func(cfg workflow.Config) (*Runner, error)

// StartRequest describes one research request
type StartRequest struct {
	Content     string
	DatasetName string
	Overrides   map[string]string
}

// Manager owns the session lookup table: create on request, remove after the
// terminal event is flushed, plus a scheduled sweep of lingering terminal
// sessions.
type Manager struct {
	workflows   *workflow.Registry
	factory     RunnerFactory
	maxSessions int
	retention   time.Duration
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	active   int

	cron *cron.Cron
}

// ManagerConfig holds manager configuration
type ManagerConfig struct {
	Workflows   *workflow.Registry
	Factory     RunnerFactory
	MaxSessions int
	Retention   time.Duration
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// defaultMaxSessions bounds concurrent sessions when the config leaves the
// limit unset
const defaultMaxSessions = 64

// NewManager creates a session manager
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * time.Minute
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}

	return &Manager{
		workflows:   cfg.Workflows,
		factory:     cfg.Factory,
		maxSessions: cfg.MaxSessions,
		retention:   cfg.Retention,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With().Str("component", "session_manager").Logger(),
		sessions:    make(map[string]*Session),
	}
}

// Start resolves the request's workflow, creates a session, and launches its
// loop. Config errors and capacity rejections are synchronous; no session is
// created for them. The returned channel carries the session's event stream
// and closes after the terminal event.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Session, <-chan Event, error) {
	if req.Content == "" {
		return nil, nil, &workflow.ConfigError{Key: "content", Reason: "content must not be empty"}
	}

	var doc *workflow.Document
	if m.workflows != nil && req.DatasetName != "" {
		// Unknown dataset names fall through to built-in defaults.
		doc = m.workflows.Get(req.DatasetName)
	}

	cfg, err := workflow.Resolve(doc, req.Overrides)
	if err != nil {
		return nil, nil, err
	}
	if req.DatasetName != "" {
		cfg.Workflow = req.DatasetName
	}

	runner, err := m.factory(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build session runner: %w", err)
	}

	session, err := NewSession(req.Content)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	if m.active >= m.maxSessions {
		m.mu.Unlock()
		return nil, nil, fmt.Errorf("session capacity reached (%d active)", m.maxSessions)
	}
	m.sessions[session.ID] = session
	m.active++
	m.mu.Unlock()
	m.metrics.SessionsActive.Inc()

	m.logger.Info().
		Str("session_id", session.ID).
		Str("workflow", cfg.Workflow).
		Int("max_tool_calls", cfg.MaxToolCalls).
		Msg("Session started")

	events := make(chan Event, 32)
	go func() {
		defer func() {
			m.mu.Lock()
			m.active--
			m.mu.Unlock()
			m.metrics.SessionsActive.Dec()
		}()
		runner.Run(ctx, session, events)
	}()

	return session, events, nil
}

// Get returns a session by ID
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Release removes a session whose terminal event has been flushed
func (m *Manager) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// StartSweeper schedules periodic removal of terminal sessions that were
// never released, such as those whose caller vanished mid-stream.
func (m *Manager) StartSweeper(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		removed := m.sweep()
		if removed > 0 {
			m.logger.Debug().Int("removed", removed).Msg("Swept terminal sessions")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	c.Start()
	m.cron = c
	return nil
}

func (m *Manager) sweep() int {
	cutoff := time.Now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.State().Terminal() && !s.FinalizedAt().IsZero() && s.FinalizedAt().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Close stops the sweeper
func (m *Manager) Close() {
	if m.cron != nil {
		m.cron.Stop()
	}
}
