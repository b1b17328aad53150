package draw

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Registry holds one draw Machine per event (thread-safe). Machines are
// created lazily on first access and load their state from Redis, so an
// organizer reconnecting after a server restart resumes where they left off.
type Registry struct {
	mu       sync.RWMutex
	machines map[string]*Machine

	rdb       *redis.Client
	broadcast func(eventID uuid.UUID) Broadcaster
	logger    *zap.Logger
	opts      []Option
}

// NewRegistry creates a machine registry. broadcast binds a Broadcaster to
// one event's realtime channel.
func NewRegistry(rdb *redis.Client, broadcast func(eventID uuid.UUID) Broadcaster, logger *zap.Logger, opts ...Option) *Registry {
	return &Registry{
		machines:  make(map[string]*Machine),
		rdb:       rdb,
		broadcast: broadcast,
		logger:    logger,
		opts:      opts,
	}
}

// Get returns the machine for eventID, creating and loading it on first use.
func (reg *Registry) Get(ctx context.Context, eventID uuid.UUID) (*Machine, error) {
	key := eventID.String()
	reg.mu.RLock()
	m := reg.machines[key]
	reg.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if m = reg.machines[key]; m != nil {
		return m, nil
	}
	m, err := NewMachine(ctx, NewRedisStore(reg.rdb, key), reg.broadcast(eventID), reg.logger, reg.opts...)
	if err != nil {
		return nil, err
	}
	reg.machines[key] = m
	return m, nil
}

// Release evicts the machine for eventID, stopping any in-flight roll. The
// persisted snapshot stays in Redis.
func (reg *Registry) Release(eventID uuid.UUID) {
	key := eventID.String()
	reg.mu.Lock()
	m := reg.machines[key]
	delete(reg.machines, key)
	reg.mu.Unlock()
	if m != nil {
		m.mu.Lock()
		m.cancelRollLocked()
		m.phase = PhaseIdle
		m.mu.Unlock()
	}
}

// Shutdown stops every in-flight roll and evicts all machines. Snapshots stay
// in Redis and are reloaded on the next Get.
func (reg *Registry) Shutdown() {
	reg.mu.Lock()
	machines := reg.machines
	reg.machines = make(map[string]*Machine)
	reg.mu.Unlock()
	for _, m := range machines {
		m.mu.Lock()
		m.cancelRollLocked()
		m.phase = PhaseIdle
		m.mu.Unlock()
	}
}
