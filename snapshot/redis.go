package snapshot

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/wippyai/tox-bridge/errors"
)

// RedisClient is the subset of *redis.Client the store uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	Close() error
}

var _ RedisClient = (*redis.Client)(nil)

// RedisStore keeps each snapshot as a JSON value under prefix+id, indexed
// by creation time in the sorted set prefix+"index".
type RedisStore struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps client. A zero ttl keeps snapshots forever.
func NewRedisStore(client RedisClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "toxbridge:snapshot:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis connects to addr and returns a store over the connection.
func DialRedis(addr string, ttl time.Duration) *RedisStore {
	return NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}), "", ttl)
}

func (s *RedisStore) key(id string) string { return s.prefix + id }
func (s *RedisStore) index() string        { return s.prefix + "index" }

func (s *RedisStore) Put(ctx context.Context, snap Snapshot) error {
	if err := validate(snap); err != nil {
		return err
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, "encode snapshot")
	}
	if err := s.client.Set(ctx, s.key(snap.ID), b, s.ttl).Err(); err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindNative, err, "redis set")
	}
	score := float64(snap.CreatedAt.UnixNano())
	if err := s.client.ZAdd(ctx, s.index(), redis.Z{Score: score, Member: snap.ID}).Err(); err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindNative, err, "redis zadd")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Snapshot, error) {
	b, err := s.client.Get(ctx, s.key(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return Snapshot{}, notFound(id)
	}
	if err != nil {
		return Snapshot{}, errors.Wrap(errors.PhaseStore, errors.KindNative, err, "redis get")
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, "decode snapshot")
	}
	return snap, nil
}

// List drops index entries whose value has expired.
func (s *RedisStore) List(ctx context.Context) ([]Snapshot, error) {
	ids, err := s.client.ZRange(ctx, s.index(), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindNative, err, "redis zrange")
	}
	var out []Snapshot
	for _, id := range ids {
		snap, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.client.ZRem(ctx, s.index(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		snap.Savedata = nil
		out = append(out, snap)
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindNative, err, "redis del")
	}
	s.client.ZRem(ctx, s.index(), id)
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
