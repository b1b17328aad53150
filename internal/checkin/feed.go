package checkin

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lumina-gala/backend/internal/models"
)

const (
	// feedKeyPrefix namespaces the per-event Redis lists backing the
	// display feed.
	feedKeyPrefix = "checkin:feed:"
	// DefaultDwell is how long each check-in stays featured on the welcome
	// screen before the next one is shown.
	DefaultDwell = 3 * time.Second
	// feedPopTimeout bounds each blocking pop so drains notice cancellation.
	feedPopTimeout = 5 * time.Second
)

// Feed buffers check-ins in a Redis list per event and drains them to the
// welcome screen one at a time. A burst of scans at the door queues up and
// every attendee still gets their moment; the dwell time sets the pace.
type Feed struct {
	client    *redis.Client
	broadcast func(eventID uuid.UUID) Broadcaster
	logger    *zap.Logger
	dwell     time.Duration

	mu     sync.Mutex
	drains map[string]context.CancelFunc
}

// NewFeed creates a display feed. dwell <= 0 uses the default.
func NewFeed(client *redis.Client, broadcast func(eventID uuid.UUID) Broadcaster, logger *zap.Logger, dwell time.Duration) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dwell <= 0 {
		dwell = DefaultDwell
	}
	return &Feed{
		client:    client,
		broadcast: broadcast,
		logger:    logger,
		dwell:     dwell,
		drains:    make(map[string]context.CancelFunc),
	}
}

func feedKey(eventID uuid.UUID) string {
	return feedKeyPrefix + eventID.String()
}

// Push enqueues a check-in for display and makes sure the event's drain is
// running.
func (f *Feed) Push(ctx context.Context, rec *models.CheckInRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := f.client.RPush(ctx, feedKey(rec.EventID), raw).Err(); err != nil {
		return err
	}
	f.StartDrain(rec.EventID)
	return nil
}

// StartDrain starts the drain goroutine for an event if not already running.
func (f *Feed) StartDrain(eventID uuid.UUID) {
	key := eventID.String()
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, running := f.drains[key]; running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	f.drains[key] = cancel
	go f.drain(ctx, eventID)
}

// StopDrain stops the drain for an event. Queued entries stay in Redis.
func (f *Feed) StopDrain(eventID uuid.UUID) {
	key := eventID.String()
	f.mu.Lock()
	cancel := f.drains[key]
	delete(f.drains, key)
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Shutdown stops every drain.
func (f *Feed) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, cancel := range f.drains {
		cancel()
		delete(f.drains, key)
	}
}

func (f *Feed) drain(ctx context.Context, eventID uuid.UUID) {
	key := feedKey(eventID)
	for {
		if ctx.Err() != nil {
			return
		}
		result, err := f.client.BLPop(ctx, feedPopTimeout, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("feed pop failed", zap.Error(err), zap.String("event_id", eventID.String()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var rec models.CheckInRecord
		if err := json.Unmarshal([]byte(result[1]), &rec); err != nil {
			f.logger.Warn("invalid feed entry", zap.Error(err))
			continue
		}
		f.publish(eventID, "checkin_display", rec)

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.dwell):
		}
	}
}

func (f *Feed) publish(eventID uuid.UUID, event string, payload interface{}) {
	if f.broadcast == nil {
		return
	}
	if bc := f.broadcast(eventID); bc != nil {
		bc.Publish(event, payload)
	}
}
