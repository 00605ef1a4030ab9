package mpps

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps pending procedures in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]Procedure
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pending: make(map[string]Procedure)}
}

func (s *MemoryStore) Add(_ context.Context, p Procedure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[p.InstanceUID]; ok {
		return ErrExists
	}
	s.pending[p.InstanceUID] = p
	return nil
}

func (s *MemoryStore) Take(_ context.Context, instanceUID string) (Procedure, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[instanceUID]
	if ok {
		delete(s.pending, instanceUID)
	}
	return p, ok, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Procedure, error) {
	s.mu.Lock()
	out := make([]Procedure, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	s.mu.Unlock()
	sortProcedures(out)
	return out, nil
}

// DefaultRedisKey is the hash holding pending procedures.
const DefaultRedisKey = "worklist:mpps:pending"

// takeScript reads and deletes one hash field atomically.
var takeScript = redis.NewScript(`
	local v = redis.call('HGET', KEYS[1], ARGV[1])
	if v then
		redis.call('HDEL', KEYS[1], ARGV[1])
	end
	return v
`)

// RedisStore keeps pending procedures in a Redis hash keyed by instance UID,
// so several SCP replicas can share them.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

func NewRedisStore(client redis.Cmdable, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Add(ctx context.Context, p Procedure) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode procedure: %w", err)
	}
	added, err := s.client.HSetNX(ctx, s.key, p.InstanceUID, raw).Result()
	if err != nil {
		return fmt.Errorf("redis hsetnx: %w", err)
	}
	if !added {
		return ErrExists
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, instanceUID string) (Procedure, bool, error) {
	raw, err := takeScript.Run(ctx, s.client, []string{s.key}, instanceUID).Text()
	if err == redis.Nil {
		return Procedure{}, false, nil
	}
	if err != nil {
		return Procedure{}, false, fmt.Errorf("redis take: %w", err)
	}
	var p Procedure
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Procedure{}, false, fmt.Errorf("decode procedure %s: %w", instanceUID, err)
	}
	return p, true, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Procedure, error) {
	values, err := s.client.HVals(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hvals: %w", err)
	}
	out := make([]Procedure, 0, len(values))
	for _, raw := range values {
		var p Procedure
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode procedure: %w", err)
		}
		out = append(out, p)
	}
	sortProcedures(out)
	return out, nil
}

func sortProcedures(ps []Procedure) {
	slices.SortFunc(ps, func(a, b Procedure) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.InstanceUID, b.InstanceUID)
	})
}
