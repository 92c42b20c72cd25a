package snapshot

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/wippyai/tox-bridge/errors"
)

// fakeRedis keeps keys and one sorted set in memory.
type fakeRedis struct {
	values  map[string][]byte
	ttls    map[string]time.Duration
	members map[string]map[string]float64
	mu      sync.Mutex
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		values:  make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
		members: make(map[string]map[string]float64),
	}
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.values[key] = append([]byte(nil), v...)
	case string:
		f.values[key] = []byte(v)
	}
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) ZAdd(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.members[key]
	if set == nil {
		set = make(map[string]float64)
		f.members[key] = set
	}
	for _, m := range members {
		set[m.Member.(string)] = m.Score
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeRedis) ZRange(_ context.Context, key string, _, _ int64) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.members[key]
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if set[out[i]] != set[out[j]] {
			return set[out[i]] < set[out[j]]
		}
		return out[i] < out[j]
	})
	return redis.NewStringSliceResult(out, nil)
}

func (f *fakeRedis) ZRem(_ context.Context, key string, members ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range members {
		if _, ok := f.members[key][m.(string)]; ok {
			delete(f.members[key], m.(string))
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

// expire drops a value without touching the index.
func (f *fakeRedis) expire(key string) {
	f.mu.Lock()
	delete(f.values, key)
	f.mu.Unlock()
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	s := NewRedisStore(client, "", time.Hour)

	snap := New(5, "nightly", []byte{0, 1, 2, 0xff})
	if err := s.Put(ctx, snap); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if client.ttls["toxbridge:snapshot:"+snap.ID] != time.Hour {
		t.Fatalf("ttl not applied: %v", client.ttls)
	}
	got, err := s.Get(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Savedata) != string(snap.Savedata) || got.Label != "nightly" || got.Session != 5 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if !got.CreatedAt.Equal(snap.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, snap.CreatedAt)
	}
}

func TestRedisListSkipsExpired(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	s := NewRedisStore(client, "p:", 0)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := New(0, "a", []byte("a"))
	a.CreatedAt = base
	b := New(1, "b", []byte("b"))
	b.CreatedAt = base.Add(time.Second)
	for _, snap := range []Snapshot{b, a} {
		if err := s.Put(ctx, snap); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("list = %+v", list)
	}
	if list[0].Savedata != nil {
		t.Fatal("list carries savedata")
	}

	client.expire("p:" + a.ID)
	list, err = s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("list after expiry = %+v", list)
	}
	if _, ok := client.members["p:index"][a.ID]; ok {
		t.Fatal("expired entry left in index")
	}
}

func TestRedisDelete(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	s := NewRedisStore(client, "", 0)

	snap := New(0, "", []byte("x"))
	if err := s.Put(ctx, snap); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, snap.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, snap.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := s.Get(ctx, snap.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
	if err := s.Close(); err != nil || !client.closed {
		t.Fatalf("Close: %v closed=%v", err, client.closed)
	}
}
