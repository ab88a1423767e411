package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"lead-console/internal/dialer"
	"lead-console/pkg/utils"
)

const (
	guardKeyPrefix = "session_cap:"
	// guardTTL bounds how long a crashed process can hold the exclusivity
	// cap before another device may dial for the same agent.
	guardTTL = 4 * time.Hour
)

// RedisGuard enforces one live call per agent identity across processes.
type RedisGuard struct {
	rdb *redis.Client
	key string
}

func NewRedisGuard(rdb *redis.Client, agentID string) *RedisGuard {
	return &RedisGuard{rdb: rdb, key: guardKeyPrefix + agentID}
}

func (g *RedisGuard) Acquire(ctx context.Context) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, g.rdb, g.key, 1, guardTTL)
}

func (g *RedisGuard) Release(ctx context.Context) error {
	return utils.ReleaseConcurrencyCap(ctx, g.rdb, g.key)
}

// Manager lazily builds and caches one Machine per agent.
type Manager struct {
	rdb      *redis.Client
	dialer   dialer.Dialer
	pipeline Submitter
	log      *slog.Logger

	mu       sync.Mutex
	machines map[string]*Machine
}

func NewManager(rdb *redis.Client, d dialer.Dialer, pipe Submitter, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		rdb:      rdb,
		dialer:   d,
		pipeline: pipe,
		log:      log,
		machines: make(map[string]*Machine),
	}
}

// ForAgent returns the agent's session machine, creating it on first use.
// New machines attempt a recovery restore immediately so a session survives
// a process restart transparently.
func (m *Manager) ForAgent(ctx context.Context, agentID string, finder LeadFinder) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mach, ok := m.machines[agentID]; ok {
		return mach
	}

	var (
		slot  RecoverySlot = NopSlot{}
		guard Guard
	)
	if m.rdb != nil {
		slot = NewRedisSlot(m.rdb, agentID)
		guard = NewRedisGuard(m.rdb, agentID)
	}
	mach := NewMachine(agentID, slot, m.dialer, m.pipeline, guard, m.log)
	if _, err := mach.Restore(ctx, finder); err != nil {
		m.log.Warn("session restore failed", "agent_id", agentID, "err", err)
	}
	m.machines[agentID] = mach
	return mach
}
