package snapshot

import (
	"context"
	"fmt"
	"net/url"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace scopes Redis keys when the location names none.
const DefaultNamespace = "default"

// SnapshotKey returns the Redis hash holding a namespace's snapshot.
// Pattern: arenakernel:{namespace}:snapshot
func SnapshotKey(namespace string) string {
	return fmt.Sprintf("arenakernel:%s:snapshot", namespace)
}

// RedisStore keeps a snapshot as one hash, a field per arena.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
	ownsConn  bool
}

// NewRedisStore uses an existing client; Close leaves it open.
func NewRedisStore(rdb *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisStore{rdb: rdb, namespace: namespace}
}

// OpenRedisStore dials the server named by a redis:// URL. The optional
// namespace query parameter scopes the key.
func OpenRedisStore(location string) (*RedisStore, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse redis location: %w", err)
	}
	q := u.Query()
	namespace := q.Get("namespace")
	q.Del("namespace")
	u.RawQuery = q.Encode()

	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("parse redis location: %w", err)
	}
	s := NewRedisStore(redis.NewClient(opts), namespace)
	s.ownsConn = true
	return s, nil
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	fields := make(map[string]any, len(snap))
	for name, data := range snap {
		raw, err := encodeArena(name, data)
		if err != nil {
			return err
		}
		fields[name] = string(raw)
	}

	key := SnapshotKey(s.namespace)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot to Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	hash, err := s.rdb.HGetAll(ctx, SnapshotKey(s.namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot from Redis: %w", err)
	}
	snap := make(Snapshot, len(hash))
	for name, raw := range hash {
		data, err := decodeArena(name, []byte(raw))
		if err != nil {
			return nil, err
		}
		snap[name] = data
	}
	return snap, nil
}

func (s *RedisStore) Close() error {
	if !s.ownsConn {
		return nil
	}
	return s.rdb.Close()
}
