package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Snapshot is the minimal state mirrored into the recovery slot while a call
// is in flight. The dial hands the device to an external dialer and the
// process may be torn down before it returns; this is everything needed to
// reconstruct the session at the correct elapsed time.
type Snapshot struct {
	// StartMS is the wall-clock dial time in epoch milliseconds.
	StartMS int64  `json:"start_ms"`
	State   State  `json:"state"`
	LeadID  string `json:"lead_id"`
}

// RecoverySlot is the durable local save/load/clear capability the state
// machine depends on. A corrupt or absent slot reads as "no active session".
type RecoverySlot interface {
	Save(ctx context.Context, s Snapshot) error
	Load(ctx context.Context) (Snapshot, bool, error)
	Clear(ctx context.Context) error
}

// NopSlot discards snapshots. Used when Redis is not configured; sessions
// work but do not survive a restart.
type NopSlot struct{}

func (NopSlot) Save(ctx context.Context, s Snapshot) error       { return nil }
func (NopSlot) Load(ctx context.Context) (Snapshot, bool, error) { return Snapshot{}, false, nil }
func (NopSlot) Clear(ctx context.Context) error                  { return nil }

const slotKeyPrefix = "call_session:"

// RedisSlot keeps the snapshot under a fixed per-agent key.
type RedisSlot struct {
	rdb *redis.Client
	key string
}

func NewRedisSlot(rdb *redis.Client, agentID string) *RedisSlot {
	return &RedisSlot{rdb: rdb, key: slotKeyPrefix + agentID}
}

func (s *RedisSlot) Save(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("recovery slot save: %w", err)
	}
	return nil
}

func (s *RedisSlot) Load(ctx context.Context) (Snapshot, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("recovery slot load: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// Corrupt slot: treat as no active session.
		return Snapshot{}, false, nil
	}
	if snap.LeadID == "" || snap.StartMS <= 0 {
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (s *RedisSlot) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("recovery slot clear: %w", err)
	}
	return nil
}
