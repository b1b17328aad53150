package checkin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeSessionStore struct {
	mu     sync.Mutex
	states map[string]SessionState
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{states: make(map[string]SessionState)}
}

func (s *fakeSessionStore) GetSession(ctx context.Context, eventID uuid.UUID) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[eventID.String()]
	if !ok {
		return nil, nil
	}
	out := state
	return &out, nil
}

func (s *fakeSessionStore) OpenSession(ctx context.Context, eventID uuid.UUID, start time.Time, end *time.Time, durationSeconds *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[eventID.String()] = SessionState{Open: true, StartTime: &start, EndTime: end, Duration: durationSeconds}
	return nil
}

func (s *fakeSessionStore) CloseSession(ctx context.Context, eventID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[eventID.String()]
	state.Open = false
	s.states[eventID.String()] = state
	return nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBroadcaster) Publish(event string, payload interface{}) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
}

func (b *fakeBroadcaster) count(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e == event {
			n++
		}
	}
	return n
}

func bind(bc *fakeBroadcaster) func(uuid.UUID) Broadcaster {
	return func(uuid.UUID) Broadcaster { return bc }
}

func TestManagerOpenAndCountdown(t *testing.T) {
	ctx := context.Background()
	eventID := uuid.New()
	store := newFakeSessionStore()
	bc := &fakeBroadcaster{}
	m := NewManager(store, bind(bc), nil, WithManagerTick(2*time.Millisecond))
	defer m.Shutdown()

	state, err := m.Open(ctx, eventID, 15*time.Millisecond)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !state.Open || state.EndTime == nil {
		t.Fatalf("unexpected state after open: %+v", state)
	}
	if bc.count("session_opened") != 1 {
		t.Errorf("session_opened count = %d, want 1", bc.count("session_opened"))
	}

	// The countdown broadcasts ticks and closes the window by itself.
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if bc.count("session_closed") > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if bc.count("session_closed") != 1 {
		t.Fatalf("session_closed count = %d, want 1", bc.count("session_closed"))
	}
	if bc.count("session_tick") == 0 {
		t.Error("expected countdown ticks before auto-close")
	}
	got, err := store.GetSession(ctx, eventID)
	if err != nil || got == nil {
		t.Fatalf("GetSession: %v, %v", got, err)
	}
	if got.Open {
		t.Error("session still open in store after auto-close")
	}
}

func TestManagerOpenNoExpiry(t *testing.T) {
	ctx := context.Background()
	eventID := uuid.New()
	store := newFakeSessionStore()
	bc := &fakeBroadcaster{}

	now := time.Date(2026, 1, 30, 18, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := NewManager(store, bind(bc), nil, WithManagerClock(clock), WithManagerTick(time.Millisecond))
	defer m.Shutdown()

	// Duration zero means the window never expires on its own.
	state, err := m.Open(ctx, eventID, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !state.Open || state.EndTime != nil || state.Duration != nil {
		t.Fatalf("expected an open window without end time, got %+v", state)
	}

	now = now.Add(48 * time.Hour)
	state, err = m.Ensure(ctx, eventID)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !state.Open {
		t.Fatal("open-ended window was closed by the lazy expiry check")
	}

	// No countdown runs for an open-ended window.
	time.Sleep(20 * time.Millisecond)
	if n := bc.count("session_tick"); n != 0 {
		t.Errorf("session_tick count = %d, want 0", n)
	}
	if n := bc.count("session_closed"); n != 0 {
		t.Errorf("session_closed count = %d, want 0", n)
	}

	// Manual close is the only way out.
	if err := m.Close(ctx, eventID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got, _ := store.GetSession(ctx, eventID)
	if got.Open {
		t.Error("window still open after Close")
	}
}

func TestManagerClose(t *testing.T) {
	ctx := context.Background()
	eventID := uuid.New()
	store := newFakeSessionStore()
	bc := &fakeBroadcaster{}
	m := NewManager(store, bind(bc), nil, WithManagerTick(time.Hour))
	defer m.Shutdown()

	if _, err := m.Open(ctx, eventID, time.Hour); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.Close(ctx, eventID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got, _ := store.GetSession(ctx, eventID)
	if got.Open {
		t.Error("session still open after Close")
	}

	// Closing an already closed session is a no-op.
	if err := m.Close(ctx, eventID); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestManagerEnsureLazyClose(t *testing.T) {
	ctx := context.Background()
	eventID := uuid.New()
	store := newFakeSessionStore()
	bc := &fakeBroadcaster{}

	now := time.Date(2026, 1, 30, 18, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	// A huge tick keeps the countdown goroutine out of the way; only the
	// lazy path should close the window.
	m := NewManager(store, bind(bc), nil, WithManagerClock(clock), WithManagerTick(time.Hour))
	defer m.Shutdown()

	if _, err := m.Open(ctx, eventID, time.Minute); err != nil {
		t.Fatalf("Open: %v", err)
	}

	state, err := m.Ensure(ctx, eventID)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !state.Open {
		t.Fatal("window closed before its end time")
	}

	now = now.Add(61 * time.Second)
	state, err = m.Ensure(ctx, eventID)
	if err != nil {
		t.Fatalf("Ensure after expiry: %v", err)
	}
	if state.Open {
		t.Fatal("expired window still reported open")
	}
	got, _ := store.GetSession(ctx, eventID)
	if got.Open {
		t.Error("expired window still open in store")
	}

	// Repeated reads stay closed and do not broadcast again.
	if _, err := m.Ensure(ctx, eventID); err != nil {
		t.Fatalf("Ensure repeat: %v", err)
	}
	if bc.count("session_closed") != 1 {
		t.Errorf("session_closed count = %d, want 1", bc.count("session_closed"))
	}
}

func TestManagerEnsureUnknownEvent(t *testing.T) {
	m := NewManager(newFakeSessionStore(), nil, nil)
	state, err := m.Ensure(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if state != nil {
		t.Errorf("expected nil state for unknown event, got %+v", state)
	}
}
