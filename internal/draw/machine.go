package draw

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumina-gala/backend/internal/models"
)

// Phase is the machine's drawing phase.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRolling   Phase = "rolling"
	PhaseCommitted Phase = "committed"
)

// DefaultTickInterval is the period of the rolling preview while a draw is
// in flight.
const DefaultTickInterval = 80 * time.Millisecond

// Maximum selectable batch size regardless of quota.
const maxBatchSize = 16

// Broadcaster delivers display events (rolling frames, commits, session
// updates) to the screens watching one event.
type Broadcaster interface {
	Publish(event string, payload interface{})
}

// Machine orchestrates the drawing rounds for a single event: tier
// selection, the rolling preview ticker, the commit that turns a sample into
// a DrawRecord, and undo. All transitions run under one mutex; validation
// happens before any mutation so a rejected operation leaves no partial
// state. Every committed mutation is written through to the Store.
type Machine struct {
	mu     sync.Mutex
	store  Store
	bc     Broadcaster
	logger *zap.Logger

	now       func() time.Time
	tickEvery time.Duration

	participants []models.Participant
	prizes       []models.PrizeTier
	records      []models.DrawRecord
	excluded     map[string]struct{}

	currentTierID string
	batchSize     int
	phase         Phase
	stopc         chan struct{}
}

// Option configures a Machine.
type Option func(*Machine)

// WithTickInterval overrides the rolling preview period.
func WithTickInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.tickEvery = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine loads the stored snapshot and returns a ready machine. The
// initially selected tier is the first one with remaining quota, falling
// back to the first tier.
func NewMachine(ctx context.Context, store Store, bc Broadcaster, logger *zap.Logger, opts ...Option) (*Machine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Machine{
		store:     store,
		bc:        bc,
		logger:    logger,
		now:       time.Now,
		tickEvery: DefaultTickInterval,
		excluded:  make(map[string]struct{}),
		batchSize: 1,
		phase:     PhaseIdle,
	}
	for _, opt := range opts {
		opt(m)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load draw snapshot: %w", err)
	}
	m.participants = snap.Participants
	m.prizes = snap.Prizes
	m.records = snap.Records
	for _, id := range snap.ExcludedIDs {
		m.excluded[id] = struct{}{}
	}

	for _, p := range m.prizes {
		if !p.Exhausted() {
			m.currentTierID = p.ID
			break
		}
	}
	if m.currentTierID == "" && len(m.prizes) > 0 {
		m.currentTierID = m.prizes[0].ID
	}
	m.adjustBatchSizeLocked()
	return m, nil
}

// Status is a read-only view of the machine for API responses.
type Status struct {
	Phase             Phase              `json:"phase"`
	CurrentTierID     string             `json:"current_tier_id,omitempty"`
	BatchSize         int                `json:"batch_size"`
	AllowedBatchSizes []int              `json:"allowed_batch_sizes"`
	EligibleCount     int                `json:"eligible_count"`
	TierComplete      bool               `json:"tier_complete"`
	Prizes            []models.PrizeTier `json:"prizes"`
}

// Status returns a snapshot of the machine state.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	tier := m.tierLocked(m.currentTierID)
	return Status{
		Phase:             m.phase,
		CurrentTierID:     m.currentTierID,
		BatchSize:         m.batchSize,
		AllowedBatchSizes: m.allowedBatchSizesLocked(),
		EligibleCount:     len(m.eligibleLocked()),
		TierComplete:      tier != nil && tier.Exhausted(),
		Prizes:            clonePrizes(m.prizes),
	}
}

// Participants returns a copy of the full roster.
func (m *Machine) Participants() []models.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Participant, len(m.participants))
	copy(out, m.participants)
	return out
}

// Records returns a copy of the draw history, newest first.
func (m *Machine) Records() []models.DrawRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DrawRecord, len(m.records))
	copy(out, m.records)
	return out
}

// TierWinners returns every winner drawn for one tier, across all
// non-undone records, for the "tier complete" read-only view.
func (m *Machine) TierWinners(tierID string) []models.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Participant
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].PrizeID == tierID {
			out = append(out, m.records[i].Winners...)
		}
	}
	return out
}

// AllowedBatchSizes returns the selectable batch sizes for the active tier:
// the divisors of its remaining quota, capped at 16, or {1} when nothing
// remains. A batch must evenly exhaust the remaining quota so fixed display
// grids never end with a non-drawable remainder.
func (m *Machine) AllowedBatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowedBatchSizesLocked()
}

func (m *Machine) allowedBatchSizesLocked() []int {
	tier := m.tierLocked(m.currentTierID)
	if tier == nil {
		return []int{1}
	}
	remaining := tier.Remaining()
	if remaining <= 0 {
		return []int{1}
	}
	var sizes []int
	limit := remaining
	if limit > maxBatchSize {
		limit = maxBatchSize
	}
	for i := 1; i <= limit; i++ {
		if remaining%i == 0 {
			sizes = append(sizes, i)
		}
	}
	if len(sizes) == 0 {
		return []int{1}
	}
	return sizes
}

// SelectTier switches the active prize tier. Rejected while rolling.
// Selecting an exhausted tier is allowed; the machine then reports
// TierComplete so the caller can branch into the read-only winners view.
func (m *Machine) SelectTier(tierID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseRolling {
		return ErrInvalidState
	}
	if m.tierLocked(tierID) == nil {
		return ErrUnknownTier
	}
	m.currentTierID = tierID
	m.phase = PhaseIdle
	m.adjustBatchSizeLocked()
	return nil
}

// SetBatchSize sets the number of winners per round. The size must be a
// member of the allowed set for the active tier.
func (m *Machine) SetBatchSize(k int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseRolling {
		return ErrInvalidState
	}
	for _, allowed := range m.allowedBatchSizesLocked() {
		if k == allowed {
			m.batchSize = k
			m.phase = PhaseIdle
			return nil
		}
	}
	return ErrBatchNotAllowed
}

// Start validates preconditions and enters the rolling phase, emitting a
// fresh preview batch over the broadcaster on every tick. Preview batches
// are display-only and never committed.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.phase == PhaseRolling {
		m.mu.Unlock()
		return ErrInvalidState
	}
	tier := m.tierLocked(m.currentTierID)
	if tier == nil {
		m.mu.Unlock()
		return ErrNoTierSelected
	}
	pool := m.eligibleLocked()
	if len(pool) == 0 {
		m.mu.Unlock()
		return ErrEmptyPool
	}
	if len(pool) < m.batchSize {
		m.mu.Unlock()
		return ErrInsufficientPool
	}
	if tier.Exhausted() {
		m.mu.Unlock()
		return ErrTierExhausted
	}
	if m.batchSize > tier.Remaining() {
		m.mu.Unlock()
		return ErrBatchExceedsRemaining
	}

	m.phase = PhaseRolling
	stopc := make(chan struct{})
	m.stopc = stopc
	tierID, tierName, batch := tier.ID, tier.Name, m.batchSize
	m.mu.Unlock()

	go m.roll(stopc)
	m.publish("draw_started", map[string]interface{}{
		"tier_id": tierID, "tier_name": tierName, "batch_size": batch,
	})
	return nil
}

func (m *Machine) roll(stopc chan struct{}) {
	ticker := time.NewTicker(m.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stopc:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick emits one preview frame. The phase re-check guards against a tick
// racing a just-completed Stop.
func (m *Machine) tick() {
	m.mu.Lock()
	if m.phase != PhaseRolling {
		m.mu.Unlock()
		return
	}
	pool := m.eligibleLocked()
	k := m.batchSize
	m.mu.Unlock()

	batch := SampleWithoutReplacement(pool, k)
	m.publish("roll", map[string]interface{}{"winners": batch})
}

// Stop cancels the rolling ticker, draws the authoritative final sample and
// commits it: a DrawRecord is appended, the winners join the exclusion set
// and the tier's drawn count grows by the batch size. This is the single
// commit point; preview batches emitted while rolling carry no weight.
func (m *Machine) Stop(ctx context.Context) (*models.DrawRecord, error) {
	m.mu.Lock()
	if m.phase != PhaseRolling {
		m.mu.Unlock()
		return nil, ErrInvalidState
	}
	close(m.stopc)
	m.stopc = nil

	tier := m.tierLocked(m.currentTierID)
	winners := SampleWithoutReplacement(m.eligibleLocked(), m.batchSize)
	record := models.DrawRecord{
		ID:        fmt.Sprintf("record_%d", m.now().UnixMilli()),
		Timestamp: m.now(),
		PrizeID:   tier.ID,
		PrizeName: tier.Name,
		Winners:   winners,
	}
	m.records = append([]models.DrawRecord{record}, m.records...)
	for _, w := range winners {
		m.excluded[w.ID] = struct{}{}
	}
	tier.DrawnCount += len(winners)
	m.phase = PhaseCommitted
	m.saveLocked(ctx)
	m.mu.Unlock()

	m.publish("draw_committed", map[string]interface{}{
		"record": record,
		"layout": ComputeLayout(len(winners)),
	})
	return &record, nil
}

// Undo reverses one committed record: its winners leave the exclusion set,
// the tier's drawn count shrinks by the winner count (floored at zero) and
// the record is deleted. An unknown record id is a silent no-op so
// concurrent undos from multiple organizer tabs cannot fail each other.
func (m *Machine) Undo(ctx context.Context, recordID string) error {
	m.mu.Lock()
	idx := -1
	for i, r := range m.records {
		if r.ID == recordID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return nil
	}
	record := m.records[idx]
	for _, w := range record.Winners {
		delete(m.excluded, w.ID)
	}
	if tier := m.tierLocked(record.PrizeID); tier != nil {
		tier.DrawnCount -= len(record.Winners)
		if tier.DrawnCount < 0 {
			tier.DrawnCount = 0
		}
	}
	m.records = append(m.records[:idx], m.records[idx+1:]...)
	if m.phase == PhaseCommitted {
		m.phase = PhaseIdle
	}
	m.adjustBatchSizeLocked()
	m.saveLocked(ctx)
	m.mu.Unlock()

	m.publish("draw_undone", map[string]interface{}{"record_id": recordID})
	return nil
}

// Reset clears the draw history, exclusion set and every tier's drawn
// count, keeping the roster and prize configuration. Destructive; callers
// must confirm with the organizer first.
func (m *Machine) Reset(ctx context.Context) error {
	m.mu.Lock()
	m.cancelRollLocked()
	m.records = nil
	m.excluded = make(map[string]struct{})
	for i := range m.prizes {
		m.prizes[i].DrawnCount = 0
	}
	m.phase = PhaseIdle
	m.ensureSelectedTierLocked()
	m.adjustBatchSizeLocked()
	m.saveLocked(ctx)
	m.mu.Unlock()

	m.publish("draw_reset", nil)
	return nil
}

// ClearAll wipes the event's entire draw state, roster and prizes included,
// and removes every stored key.
func (m *Machine) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	m.cancelRollLocked()
	m.participants = nil
	m.prizes = nil
	m.records = nil
	m.excluded = make(map[string]struct{})
	m.currentTierID = ""
	m.batchSize = 1
	m.phase = PhaseIdle
	err := m.store.Clear(ctx)
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.publish("draw_reset", nil)
	return nil
}

// LoadRoster replaces the participant pool. Duplicate ids keep the first
// occurrence. Exclusions from committed records are preserved.
func (m *Machine) LoadRoster(ctx context.Context, participants []models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseRolling {
		return ErrInvalidState
	}
	seen := make(map[string]struct{}, len(participants))
	roster := make([]models.Participant, 0, len(participants))
	for _, p := range participants {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		roster = append(roster, p)
	}
	m.participants = roster
	m.saveLocked(ctx)
	return nil
}

// SetPrizes replaces the prize configuration. Drawn counts carry over for
// tiers whose id survives the edit, then the selected tier and batch size
// are repaired to stay valid.
func (m *Machine) SetPrizes(ctx context.Context, prizes []models.PrizeTier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseRolling {
		return ErrInvalidState
	}
	for _, p := range prizes {
		if p.ID == "" || p.Quota < 1 {
			return fmt.Errorf("prize %q: %w", p.Name, ErrUnknownTier)
		}
	}
	drawn := make(map[string]int, len(m.prizes))
	for _, p := range m.prizes {
		drawn[p.ID] = p.DrawnCount
	}
	next := clonePrizes(prizes)
	for i := range next {
		next[i].DrawnCount = drawn[next[i].ID]
		if next[i].DrawnCount > next[i].Quota {
			next[i].DrawnCount = next[i].Quota
		}
	}
	m.prizes = next
	m.ensureSelectedTierLocked()
	m.adjustBatchSizeLocked()
	m.saveLocked(ctx)
	return nil
}

// UpdateTierImage sets the image reference on one tier.
func (m *Machine) UpdateTierImage(ctx context.Context, tierID, imageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tier := m.tierLocked(tierID)
	if tier == nil {
		return ErrUnknownTier
	}
	tier.Image = imageURL
	m.saveLocked(ctx)
	return nil
}

// ensureSelectedTierLocked repairs the selected tier after prize list
// mutations: an id that vanished falls back to the first unfinished tier.
func (m *Machine) ensureSelectedTierLocked() {
	if m.tierLocked(m.currentTierID) != nil {
		return
	}
	m.currentTierID = ""
	for _, p := range m.prizes {
		if !p.Exhausted() {
			m.currentTierID = p.ID
			return
		}
	}
	if len(m.prizes) > 0 {
		m.currentTierID = m.prizes[0].ID
	}
}

// adjustBatchSizeLocked snaps the batch size to the allowed set, preferring
// the largest allowed value not above the current choice.
func (m *Machine) adjustBatchSizeLocked() {
	allowed := m.allowedBatchSizesLocked()
	best := 0
	for _, v := range allowed {
		if v == m.batchSize {
			return
		}
		if v <= m.batchSize && v > best {
			best = v
		}
	}
	if best == 0 {
		best = allowed[len(allowed)-1]
	}
	m.batchSize = best
}

func (m *Machine) tierLocked(id string) *models.PrizeTier {
	for i := range m.prizes {
		if m.prizes[i].ID == id {
			return &m.prizes[i]
		}
	}
	return nil
}

// eligibleLocked is the roster minus the exclusion set.
func (m *Machine) eligibleLocked() []models.Participant {
	out := make([]models.Participant, 0, len(m.participants))
	for _, p := range m.participants {
		if _, won := m.excluded[p.ID]; !won {
			out = append(out, p)
		}
	}
	return out
}

func (m *Machine) cancelRollLocked() {
	if m.stopc != nil {
		close(m.stopc)
		m.stopc = nil
	}
}

// saveLocked writes the snapshot through to the store. Failures are logged
// and do not roll back the in-memory commit; the next successful save will
// converge.
func (m *Machine) saveLocked(ctx context.Context) {
	ids := make([]string, 0, len(m.excluded))
	for id := range m.excluded {
		ids = append(ids, id)
	}
	snap := &Snapshot{
		Participants: m.participants,
		Prizes:       m.prizes,
		Records:      m.records,
		ExcludedIDs:  ids,
	}
	if err := m.store.Save(ctx, snap); err != nil {
		m.logger.Error("save draw snapshot", zap.Error(err))
	}
}

func (m *Machine) publish(event string, payload interface{}) {
	if m.bc != nil {
		m.bc.Publish(event, payload)
	}
}

func clonePrizes(in []models.PrizeTier) []models.PrizeTier {
	out := make([]models.PrizeTier, len(in))
	copy(out, in)
	return out
}
