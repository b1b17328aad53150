package draw

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lumina-gala/backend/internal/models"
)

// Snapshot is the full persisted state of one event's draw. The exclusion set
// is serialized as an array of participant ids.
type Snapshot struct {
	Participants []models.Participant `json:"participants"`
	Prizes       []models.PrizeTier   `json:"prizes"`
	Records      []models.DrawRecord  `json:"records"`
	ExcludedIDs  []string             `json:"excluded_ids"`
}

// Store persists draw snapshots under fixed keys and reloads them at startup.
// Writes happen synchronously after each state change.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Clear(ctx context.Context) error
}

// Fixed storage key suffixes, one per snapshot section.
const (
	keyParticipants = "participants"
	keyPrizes       = "prizes"
	keyRecords      = "records"
	keyExcludedIDs  = "excluded_ids"
)

var storeKeys = []string{keyParticipants, keyPrizes, keyRecords, keyExcludedIDs}

// RedisStore keeps each snapshot section as a JSON value under
// lottery:<scope>:<section>.
type RedisStore struct {
	client *redis.Client
	scope  string
}

// NewRedisStore creates a draw store scoped to one event.
func NewRedisStore(client *redis.Client, scope string) *RedisStore {
	return &RedisStore{client: client, scope: scope}
}

func (s *RedisStore) key(section string) string {
	return "lottery:" + s.scope + ":" + section
}

// Load reads the stored snapshot. Missing keys yield empty sections, so a
// fresh event loads as an empty snapshot rather than an error.
func (s *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	sections := map[string]interface{}{
		keyParticipants: &snap.Participants,
		keyPrizes:       &snap.Prizes,
		keyRecords:      &snap.Records,
		keyExcludedIDs:  &snap.ExcludedIDs,
	}
	for section, target := range sections {
		raw, err := s.client.Get(ctx, s.key(section)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", section, err)
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("decode %s: %w", section, err)
		}
	}
	return snap, nil
}

// Save writes all snapshot sections.
func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap.ExcludedIDs == nil {
		snap.ExcludedIDs = []string{}
	}
	sections := map[string]interface{}{
		keyParticipants: snap.Participants,
		keyPrizes:       snap.Prizes,
		keyRecords:      snap.Records,
		keyExcludedIDs:  snap.ExcludedIDs,
	}
	pipe := s.client.TxPipeline()
	for section, value := range sections {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", section, err)
		}
		pipe.Set(ctx, s.key(section), raw, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Clear removes every stored key for this scope.
func (s *RedisStore) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(storeKeys))
	for _, section := range storeKeys {
		keys = append(keys, s.key(section))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store used in tests and when Redis is not
// configured.
type MemoryStore struct {
	snap *Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored snapshot, or an empty snapshot.
func (s *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	if s.snap == nil {
		return &Snapshot{}, nil
	}
	raw, err := json.Marshal(s.snap)
	if err != nil {
		return nil, err
	}
	var out Snapshot
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Save stores a deep copy of snap.
func (s *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	var copied Snapshot
	if err := json.Unmarshal(raw, &copied); err != nil {
		return err
	}
	s.snap = &copied
	return nil
}

// Clear drops the stored snapshot.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.snap = nil
	return nil
}
