package idempotency

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis SET NX 와 잠금 해제 스크립트만 흉내내는 go-redis hook
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func (f *fakeRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f *fakeRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (f *fakeRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()

		args := cmd.Args()
		switch cmd.Name() {
		case "set":
			key, value := args[1].(string), args[2].(string)
			c := cmd.(*redis.BoolCmd)
			if _, held := f.values[key]; held {
				c.SetVal(false)
				return nil
			}
			f.values[key] = value
			c.SetVal(true)
			return nil
		case "evalsha":
			key, token := args[3].(string), args[4].(string)
			c := cmd.(*redis.Cmd)
			if f.values[key] == token {
				delete(f.values, key)
				c.SetVal(int64(1))
				return nil
			}
			c.SetVal(int64(0))
			return nil
		}
		return fmt.Errorf("unexpected command %q", cmd.Name())
	}
}

func (f *fakeRedis) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
}

func (f *fakeRedis) held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

func newFakeStore(t *testing.T) (*RedisStore, *fakeRedis) {
	t.Helper()
	fake := &fakeRedis{values: map[string]string{}}
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	client.AddHook(fake)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "payment-service"), fake
}

func TestRedisStore_FullKey(t *testing.T) {
	store, _ := newFakeStore(t)
	assert.Equal(t, "payment-service:lock:k1", store.FullKey("k1"))
}

func TestRedisStore_ReserveAndRelease(t *testing.T) {
	store, fake := newFakeStore(t)
	ctx := context.Background()

	token, acquired, err := store.Reserve(ctx, "k1", time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.NotEmpty(t, token)

	_, acquired, err = store.Reserve(ctx, "k1", time.Second)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, store.Release(ctx, "k1", token))
	assert.False(t, fake.held(store.FullKey("k1")))
}

func TestRedisStore_TokensAreUniquePerReservation(t *testing.T) {
	store, _ := newFakeStore(t)
	ctx := context.Background()

	first, _, err := store.Reserve(ctx, "k1", time.Second)
	require.NoError(t, err)
	second, _, err := store.Reserve(ctx, "k2", time.Second)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestRedisStore_ExpiredHolderCannotReleaseNewReservation(t *testing.T) {
	store, fake := newFakeStore(t)
	ctx := context.Background()

	stale, acquired, err := store.Reserve(ctx, "k1", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	// TTL 만료 후 같은 프로세스의 다른 요청이 다시 예약
	fake.expire(store.FullKey("k1"))
	current, acquired, err := store.Reserve(ctx, "k1", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, store.Release(ctx, "k1", stale))
	assert.True(t, fake.held(store.FullKey("k1")))

	require.NoError(t, store.Release(ctx, "k1", current))
	assert.False(t, fake.held(store.FullKey("k1")))
}

var _ Locker = (*RedisStore)(nil)
