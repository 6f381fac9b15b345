package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by repositories when no configuration exists for a flow key.
var ErrNotFound = errors.New("sessions: flow config not found")

// Repository loads and persists whole FlowConfig records.
type Repository interface {
	Load(ctx context.Context, flowKey string) (*FlowConfig, error)
	Save(ctx context.Context, flowKey string, cfg *FlowConfig) error
}

// RedisRepository stores each flow's configuration as one JSON document.
type RedisRepository struct {
	redis *redis.Client
}

// NewRedisRepository creates a Redis-backed repository.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	if client == nil {
		panic("sessions: redis client cannot be nil")
	}
	return &RedisRepository{redis: client}
}

func (r *RedisRepository) key(flowKey string) string {
	return fmt.Sprintf("flowbridge:flow:%s", flowKey)
}

func (r *RedisRepository) Load(ctx context.Context, flowKey string) (*FlowConfig, error) {
	data, err := r.redis.Get(ctx, r.key(flowKey)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: get flow config: %w", err)
	}

	var cfg FlowConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("sessions: unmarshal flow config: %w", err)
	}
	return &cfg, nil
}

func (r *RedisRepository) Save(ctx context.Context, flowKey string, cfg *FlowConfig) error {
	if cfg == nil {
		return errors.New("sessions: nil flow config")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("sessions: marshal flow config: %w", err)
	}
	if err := r.redis.Set(ctx, r.key(flowKey), data, 0).Err(); err != nil {
		return fmt.Errorf("sessions: set flow config: %w", err)
	}
	return nil
}

// MemoryRepository keeps configs in process, serialised so callers never
// share state with the stored copy.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string][]byte)}
}

func (m *MemoryRepository) Load(_ context.Context, flowKey string) (*FlowConfig, error) {
	m.mu.RLock()
	data, ok := m.items[flowKey]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var cfg FlowConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("sessions: unmarshal flow config: %w", err)
	}
	return &cfg, nil
}

func (m *MemoryRepository) Save(_ context.Context, flowKey string, cfg *FlowConfig) error {
	if cfg == nil {
		return errors.New("sessions: nil flow config")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("sessions: marshal flow config: %w", err)
	}
	m.mu.Lock()
	m.items[flowKey] = data
	m.mu.Unlock()
	return nil
}
