package draw

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/lumina-gala/backend/internal/models"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBroadcaster) Publish(event string, payload interface{}) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) count(event string) int {
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

func newTestMachine(t *testing.T, store Store, bc Broadcaster, opts ...Option) *Machine {
	t.Helper()
	m, err := NewMachine(context.Background(), store, bc, nil, opts...)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

func seedStore(t *testing.T, participants int, prizes []models.PrizeTier) Store {
	t.Helper()
	store := NewMemoryStore()
	err := store.Save(context.Background(), &Snapshot{
		Participants: makePool(participants),
		Prizes:       prizes,
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func TestMachineAllowedBatchSizes(t *testing.T) {
	t.Run("divisors of remaining quota", func(t *testing.T) {
		store := seedStore(t, 50, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 12}})
		m := newTestMachine(t, store, nil)
		want := []int{1, 2, 3, 4, 6, 12}
		if got := m.AllowedBatchSizes(); !reflect.DeepEqual(got, want) {
			t.Errorf("AllowedBatchSizes = %v, want %v", got, want)
		}
	})

	t.Run("capped at 16", func(t *testing.T) {
		store := seedStore(t, 50, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 30}})
		m := newTestMachine(t, store, nil)
		want := []int{1, 2, 3, 5, 6, 10, 15}
		if got := m.AllowedBatchSizes(); !reflect.DeepEqual(got, want) {
			t.Errorf("AllowedBatchSizes = %v, want %v", got, want)
		}
	})

	t.Run("falls back to one when exhausted", func(t *testing.T) {
		store := seedStore(t, 50, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 3, DrawnCount: 3}})
		m := newTestMachine(t, store, nil)
		if got := m.AllowedBatchSizes(); !reflect.DeepEqual(got, []int{1}) {
			t.Errorf("AllowedBatchSizes = %v, want [1]", got)
		}
	})

	t.Run("no tier selected", func(t *testing.T) {
		store := seedStore(t, 50, nil)
		m := newTestMachine(t, store, nil)
		if got := m.AllowedBatchSizes(); !reflect.DeepEqual(got, []int{1}) {
			t.Errorf("AllowedBatchSizes = %v, want [1]", got)
		}
	})
}

func TestMachineSetBatchSize(t *testing.T) {
	store := seedStore(t, 50, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 10}})
	m := newTestMachine(t, store, nil)

	if err := m.SetBatchSize(5); err != nil {
		t.Fatalf("SetBatchSize(5): %v", err)
	}
	if err := m.SetBatchSize(3); err != ErrBatchNotAllowed {
		t.Errorf("SetBatchSize(3) = %v, want ErrBatchNotAllowed", err)
	}
	if got := m.Status().BatchSize; got != 5 {
		t.Errorf("batch size = %d, want 5", got)
	}
}

func TestMachineStartValidation(t *testing.T) {
	t.Run("no tier", func(t *testing.T) {
		m := newTestMachine(t, seedStore(t, 10, nil), nil)
		if err := m.Start(context.Background()); err != ErrNoTierSelected {
			t.Errorf("Start = %v, want ErrNoTierSelected", err)
		}
	})

	t.Run("empty pool", func(t *testing.T) {
		m := newTestMachine(t, seedStore(t, 0, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 1}}), nil)
		if err := m.Start(context.Background()); err != ErrEmptyPool {
			t.Errorf("Start = %v, want ErrEmptyPool", err)
		}
	})

	t.Run("insufficient pool", func(t *testing.T) {
		m := newTestMachine(t, seedStore(t, 2, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 4}}), nil)
		if err := m.SetBatchSize(4); err != nil {
			t.Fatalf("SetBatchSize: %v", err)
		}
		if err := m.Start(context.Background()); err != ErrInsufficientPool {
			t.Errorf("Start = %v, want ErrInsufficientPool", err)
		}
	})

	t.Run("exhausted tier", func(t *testing.T) {
		m := newTestMachine(t, seedStore(t, 10, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 2, DrawnCount: 2}}), nil)
		if err := m.Start(context.Background()); err != ErrTierExhausted {
			t.Errorf("Start = %v, want ErrTierExhausted", err)
		}
	})
}

func TestMachineDrawRound(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	bc := &recordingBroadcaster{}
	store := seedStore(t, 20, []models.PrizeTier{{ID: "t1", Name: "Grand Prize", Quota: 6}})
	m := newTestMachine(t, store, bc,
		WithTickInterval(time.Millisecond),
		WithClock(func() time.Time { return now }),
	)

	if err := m.SetBatchSize(3); err != nil {
		t.Fatalf("SetBatchSize: %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(ctx); err != ErrInvalidState {
		t.Errorf("second Start = %v, want ErrInvalidState", err)
	}
	time.Sleep(20 * time.Millisecond)
	if bc.count("roll") == 0 {
		t.Error("expected rolling frames while the draw is in flight")
	}

	record, err := m.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if record.ID != "record_1773516600000" {
		t.Errorf("record id = %q, want record_1773516600000", record.ID)
	}
	if record.PrizeID != "t1" || record.PrizeName != "Grand Prize" {
		t.Errorf("record tier = %s/%s", record.PrizeID, record.PrizeName)
	}
	if len(record.Winners) != 3 {
		t.Fatalf("expected 3 winners, got %d", len(record.Winners))
	}

	st := m.Status()
	if st.Phase != PhaseCommitted {
		t.Errorf("phase = %s, want committed", st.Phase)
	}
	if st.Prizes[0].DrawnCount != 3 {
		t.Errorf("drawn count = %d, want 3", st.Prizes[0].DrawnCount)
	}
	if st.EligibleCount != 17 {
		t.Errorf("eligible = %d, want 17", st.EligibleCount)
	}

	// Winners must be out of the pool for subsequent rounds.
	won := make(map[string]bool)
	for _, w := range record.Winners {
		won[w.ID] = true
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start second round: %v", err)
	}
	second, err := m.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop second round: %v", err)
	}
	for _, w := range second.Winners {
		if won[w.ID] {
			t.Errorf("participant %s won twice", w.ID)
		}
	}

	// Quota 6, two rounds of 3: tier is now exhausted.
	if err := m.Start(ctx); err != ErrTierExhausted {
		t.Errorf("Start after exhaustion = %v, want ErrTierExhausted", err)
	}
	if !m.Status().TierComplete {
		t.Error("expected TierComplete after quota is fully drawn")
	}
	if got := len(m.TierWinners("t1")); got != 6 {
		t.Errorf("TierWinners = %d entries, want 6", got)
	}

	// No rolling frames after the ticker is cancelled.
	time.Sleep(10 * time.Millisecond)
	before := bc.count("roll")
	time.Sleep(20 * time.Millisecond)
	if after := bc.count("roll"); after != before {
		t.Errorf("rolling frames kept arriving after Stop: %d -> %d", before, after)
	}
	if bc.count("draw_committed") != 2 {
		t.Errorf("draw_committed count = %d, want 2", bc.count("draw_committed"))
	}
}

func TestMachineStopWithoutRolling(t *testing.T) {
	m := newTestMachine(t, seedStore(t, 10, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 2}}), nil)
	if _, err := m.Stop(context.Background()); err != ErrInvalidState {
		t.Errorf("Stop while idle = %v, want ErrInvalidState", err)
	}
}

func TestMachineUndo(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 10, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 4}})
	m := newTestMachine(t, store, nil, WithTickInterval(time.Millisecond))

	if err := m.SetBatchSize(2); err != nil {
		t.Fatalf("SetBatchSize: %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	record, err := m.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := m.Undo(ctx, record.ID); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	st := m.Status()
	if st.Prizes[0].DrawnCount != 0 {
		t.Errorf("drawn count after undo = %d, want 0", st.Prizes[0].DrawnCount)
	}
	if st.EligibleCount != 10 {
		t.Errorf("eligible after undo = %d, want 10", st.EligibleCount)
	}
	if len(m.Records()) != 0 {
		t.Errorf("records after undo = %d, want 0", len(m.Records()))
	}

	// Undoing an unknown record id is a silent no-op.
	if err := m.Undo(ctx, "record_000"); err != nil {
		t.Errorf("Undo unknown id = %v, want nil", err)
	}
	if err := m.Undo(ctx, record.ID); err != nil {
		t.Errorf("double Undo = %v, want nil", err)
	}
}

func TestMachineReset(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 10, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 2}})
	m := newTestMachine(t, store, nil, WithTickInterval(time.Millisecond))

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	st := m.Status()
	if st.Phase != PhaseIdle {
		t.Errorf("phase = %s, want idle", st.Phase)
	}
	if st.Prizes[0].DrawnCount != 0 {
		t.Errorf("drawn count = %d, want 0", st.Prizes[0].DrawnCount)
	}
	if st.EligibleCount != 10 {
		t.Errorf("eligible = %d, want full roster of 10", st.EligibleCount)
	}
	if len(m.Records()) != 0 {
		t.Errorf("records = %d, want 0", len(m.Records()))
	}
	if len(m.Participants()) != 10 {
		t.Errorf("roster = %d, want 10 after reset", len(m.Participants()))
	}
}

func TestMachinePersistence(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 10, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 4}})
	m := newTestMachine(t, store, nil, WithTickInterval(time.Millisecond))

	if err := m.SetBatchSize(2); err != nil {
		t.Fatalf("SetBatchSize: %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	record, err := m.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// A machine rebuilt from the same store resumes the committed state.
	reloaded := newTestMachine(t, store, nil)
	st := reloaded.Status()
	if st.Prizes[0].DrawnCount != 2 {
		t.Errorf("reloaded drawn count = %d, want 2", st.Prizes[0].DrawnCount)
	}
	if st.EligibleCount != 8 {
		t.Errorf("reloaded eligible = %d, want 8", st.EligibleCount)
	}
	records := reloaded.Records()
	if len(records) != 1 || records[0].ID != record.ID {
		t.Fatalf("reloaded records = %+v, want the committed record", records)
	}
}

func TestMachineSetPrizes(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 10, []models.PrizeTier{
		{ID: "t1", Name: "Grand", Quota: 2, DrawnCount: 2},
		{ID: "t2", Name: "Second", Quota: 4},
	})
	m := newTestMachine(t, store, nil)

	// First unfinished tier becomes the selection on load.
	if got := m.Status().CurrentTierID; got != "t2" {
		t.Fatalf("initial tier = %s, want t2", got)
	}

	err := m.SetPrizes(ctx, []models.PrizeTier{
		{ID: "t2", Name: "Second Prize", Quota: 6},
		{ID: "t3", Name: "Third", Quota: 8},
	})
	if err != nil {
		t.Fatalf("SetPrizes: %v", err)
	}
	st := m.Status()
	if st.CurrentTierID != "t2" {
		t.Errorf("tier after edit = %s, want t2", st.CurrentTierID)
	}
	if len(st.Prizes) != 2 || st.Prizes[0].Name != "Second Prize" {
		t.Errorf("prizes after edit = %+v", st.Prizes)
	}

	// Removing the selected tier falls back to the first unfinished one.
	err = m.SetPrizes(ctx, []models.PrizeTier{{ID: "t9", Name: "Mystery", Quota: 1}})
	if err != nil {
		t.Fatalf("SetPrizes: %v", err)
	}
	if got := m.Status().CurrentTierID; got != "t9" {
		t.Errorf("tier after removal = %s, want t9", got)
	}

	if err := m.SetPrizes(ctx, []models.PrizeTier{{ID: "bad", Quota: 0}}); err == nil {
		t.Error("expected error for zero quota")
	}
}

func TestMachineLoadRoster(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, seedStore(t, 0, []models.PrizeTier{{ID: "t1", Name: "Grand", Quota: 2}}), nil)

	err := m.LoadRoster(ctx, []models.Participant{
		{ID: "a", Name: "Ann"},
		{ID: "b", Name: "Ben"},
		{ID: "a", Name: "Ann Again"},
	})
	if err != nil {
		t.Fatalf("LoadRoster: %v", err)
	}
	roster := m.Participants()
	if len(roster) != 2 {
		t.Fatalf("roster = %d entries, want duplicates dropped to 2", len(roster))
	}
	if roster[0].Name != "Ann" {
		t.Errorf("duplicate id should keep the first occurrence, got %q", roster[0].Name)
	}
}
