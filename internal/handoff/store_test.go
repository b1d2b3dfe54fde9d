package handoff

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReadOnce(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "state:abc", []byte(`{"user_id":"u-1"}`), time.Minute))

	val, err := s.Take(ctx, "state:abc")
	require.NoError(t, err)
	assert.Equal(t, `{"user_id":"u-1"}`, string(val))

	_, err = s.Take(ctx, "state:abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUnknownKey(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()

	_, err := s.Take(context.Background(), "handoff:never-stored")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	base := time.Now()
	now := base
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "k", []byte("v"), 2*time.Minute))

	now = base.Add(2*time.Minute + time.Second)
	_, err := s.Take(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSweepEvictsExpired(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	base := time.Now()
	now := base
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "old", []byte("v"), time.Minute))
	require.NoError(t, s.Put(ctx, "fresh", []byte("v"), time.Hour))

	now = base.Add(2 * time.Minute)
	s.sweep()

	s.mu.Lock()
	_, oldExists := s.entries["old"]
	_, freshExists := s.entries["fresh"]
	s.mu.Unlock()

	assert.False(t, oldExists)
	assert.True(t, freshExists)
}

func TestMemoryStoreConcurrentTakeDeliversOnce(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "handoff:x", []byte("tokens"), time.Minute))

	const workers = 32
	var wg sync.WaitGroup
	var successes int32
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Take(ctx, "handoff:x"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
}

func TestRedisStoreReadOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "oauth")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "handoff:id-1", []byte(`{"provider":"spotify"}`), 2*time.Minute))

	val, err := s.Take(ctx, "handoff:id-1")
	require.NoError(t, err)
	assert.Equal(t, `{"provider":"spotify"}`, string(val))

	_, err = s.Take(ctx, "handoff:id-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "oauth")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "state:s-1", []byte("v"), 10*time.Minute))

	mr.FastForward(10*time.Minute + time.Second)

	_, err := s.Take(ctx, "state:s-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreKeyNamespacing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "oauth")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "state:s-1", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("oauth:state:s-1"))
}
