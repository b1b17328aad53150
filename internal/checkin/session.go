package checkin

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionDuration applies when the organizer opens a window without
// choosing a length. An explicit zero duration means no expiry instead.
const DefaultSessionDuration = time.Hour

// Broadcaster delivers realtime events to the screens watching one event.
type Broadcaster interface {
	Publish(event string, payload interface{})
}

// SessionStore is the persistence surface the session manager needs. A nil
// end time marks a window with no expiry.
type SessionStore interface {
	GetSession(ctx context.Context, eventID uuid.UUID) (*SessionState, error)
	OpenSession(ctx context.Context, eventID uuid.UUID, start time.Time, end *time.Time, durationSeconds *int) error
	CloseSession(ctx context.Context, eventID uuid.UUID) error
}

// Manager owns the check-in windows: opening starts a one second countdown
// ticker that broadcasts the remaining time and auto-closes at zero. The
// window end is also enforced lazily on read, so a session whose ticker died
// with a crashed process still closes the moment anyone looks at it.
type Manager struct {
	mu     sync.Mutex
	timers map[string]chan struct{}

	store           SessionStore
	broadcast       func(eventID uuid.UUID) Broadcaster
	logger          *zap.Logger
	now             func() time.Time
	tickEvery       time.Duration
	defaultDuration time.Duration
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerClock overrides the time source.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithManagerTick overrides the countdown period.
func WithManagerTick(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.tickEvery = d
		}
	}
}

// WithDefaultDuration overrides the window length offered when the organizer
// does not choose one.
func WithDefaultDuration(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.defaultDuration = d
		}
	}
}

// NewManager creates a session manager. broadcast binds a Broadcaster to one
// event's realtime channel; it may be nil in tests.
func NewManager(store SessionStore, broadcast func(eventID uuid.UUID) Broadcaster, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		timers:          make(map[string]chan struct{}),
		store:           store,
		broadcast:       broadcast,
		logger:          logger,
		now:             time.Now,
		tickEvery:       time.Second,
		defaultDuration: DefaultSessionDuration,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultDuration returns the window length applied when the organizer does
// not choose one.
func (m *Manager) DefaultDuration() time.Duration {
	return m.defaultDuration
}

// Open starts a check-in window and, for a timed window, begins the
// countdown. A zero duration opens the window with no expiry: it stays open
// until closed explicitly. Reopening an already open session restarts the
// window.
func (m *Manager) Open(ctx context.Context, eventID uuid.UUID, duration time.Duration) (*SessionState, error) {
	start := m.now()
	var (
		end     *time.Time
		seconds *int
	)
	if duration > 0 {
		e := start.Add(duration)
		s := int(duration.Seconds())
		end, seconds = &e, &s
	}
	if err := m.store.OpenSession(ctx, eventID, start, end, seconds); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.stopTimerLocked(eventID)
	if end != nil {
		stopc := make(chan struct{})
		m.timers[eventID.String()] = stopc
		go m.countdown(eventID, *end, stopc)
	}
	m.mu.Unlock()

	state := &SessionState{Open: true, StartTime: &start, EndTime: end, Duration: seconds}
	m.publish(eventID, "session_opened", state)
	return state, nil
}

// Close ends the check-in window immediately.
func (m *Manager) Close(ctx context.Context, eventID uuid.UUID) error {
	m.mu.Lock()
	m.stopTimerLocked(eventID)
	m.mu.Unlock()

	if err := m.store.CloseSession(ctx, eventID); err != nil {
		return err
	}
	m.publish(eventID, "session_closed", nil)
	return nil
}

// Ensure returns the current session state, closing an expired window on the
// way. Returns nil for an unknown event.
func (m *Manager) Ensure(ctx context.Context, eventID uuid.UUID) (*SessionState, error) {
	state, err := m.store.GetSession(ctx, eventID)
	if err != nil || state == nil {
		return state, err
	}
	if state.Open && state.EndTime != nil && !m.now().Before(*state.EndTime) {
		if err := m.store.CloseSession(ctx, eventID); err != nil {
			return nil, err
		}
		state.Open = false
		m.publish(eventID, "session_closed", nil)
	}
	return state, nil
}

// Shutdown stops every running countdown. Sessions stay open in storage and
// are closed lazily by Ensure after restart.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, stopc := range m.timers {
		close(stopc)
		delete(m.timers, key)
	}
}

func (m *Manager) countdown(eventID uuid.UUID, end time.Time, stopc chan struct{}) {
	ticker := time.NewTicker(m.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stopc:
			return
		case <-ticker.C:
			remaining := end.Sub(m.now())
			if remaining > 0 {
				m.publish(eventID, "session_tick", map[string]interface{}{
					"remaining_seconds": int(remaining.Seconds()),
				})
				continue
			}

			m.mu.Lock()
			if m.timers[eventID.String()] == stopc {
				delete(m.timers, eventID.String())
			}
			m.mu.Unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := m.store.CloseSession(ctx, eventID); err != nil {
				m.logger.Error("auto-close session failed", zap.Error(err), zap.String("event_id", eventID.String()))
			}
			cancel()
			m.publish(eventID, "session_closed", nil)
			return
		}
	}
}

func (m *Manager) stopTimerLocked(eventID uuid.UUID) {
	key := eventID.String()
	if stopc, ok := m.timers[key]; ok {
		close(stopc)
		delete(m.timers, key)
	}
}

func (m *Manager) publish(eventID uuid.UUID, event string, payload interface{}) {
	if m.broadcast == nil {
		return
	}
	if bc := m.broadcast(eventID); bc != nil {
		bc.Publish(event, payload)
	}
}
