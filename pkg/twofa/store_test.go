package twofa

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-signin/internal/pgtest"
)

// testClock is a settable time source shared by a store and its test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequentialCodes hands out 100001, 100002, ... so tests can predict codes
func sequentialCodes() func(time.Time) (string, error) {
	var n atomic.Int64
	return func(time.Time) (string, error) {
		return fmt.Sprintf("%06d", 100000+n.Add(1)), nil
	}
}

func testStoreOptions(clock *testClock) []StoreOption {
	return []StoreOption{
		WithClock(clock.Now),
		WithCodeTTL(10 * time.Minute),
		WithGenerator(sequentialCodes()),
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func runCodeStoreContract(t *testing.T, newStore func(clock *testClock) CodeStore) {
	ctx := context.Background()

	t.Run("issue and list", func(t *testing.T) {
		clock := newTestClock()
		store := newStore(clock)
		userID := uuid.New()

		emailCode, err := store.Issue(ctx, userID, TWO_FACTOR_TYPE_EMAIL)
		require.NoError(t, err)
		smsCode, err := store.Issue(ctx, userID, TWO_FACTOR_TYPE_SMS)
		require.NoError(t, err)

		active, err := store.ListActive(ctx, userID)
		require.NoError(t, err)
		require.Len(t, active, 2)
		byChannel := map[Channel]string{}
		for _, c := range active {
			assert.Equal(t, userID, c.UserID)
			assert.False(t, c.Consumed)
			byChannel[c.Channel] = c.Code
		}
		assert.Equal(t, emailCode, byChannel[TWO_FACTOR_TYPE_EMAIL])
		assert.Equal(t, smsCode, byChannel[TWO_FACTOR_TYPE_SMS])

		other, err := store.ListActive(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("reissue replaces previous code", func(t *testing.T) {
		clock := newTestClock()
		store := newStore(clock)
		userID := uuid.New()

		first, err := store.Issue(ctx, userID, TWO_FACTOR_TYPE_SMS)
		require.NoError(t, err)
		second, err := store.Issue(ctx, userID, TWO_FACTOR_TYPE_SMS)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		active, err := store.ListActive(ctx, userID)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, second, active[0].Code)
	})

	t.Run("consume once", func(t *testing.T) {
		clock := newTestClock()
		store := newStore(clock)
		userID := uuid.New()

		_, err := store.Issue(ctx, userID, TWO_FACTOR_TYPE_EMAIL)
		require.NoError(t, err)

		ok, err := store.Consume(ctx, userID, TWO_FACTOR_TYPE_EMAIL, "")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Consume(ctx, userID, TWO_FACTOR_TYPE_EMAIL, "")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.Consume(ctx, userID, TWO_FACTOR_TYPE_SMS, "")
		require.NoError(t, err)
		assert.False(t, ok, "nothing issued on sms")

		active, err := store.ListActive(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, active)
	})

	t.Run("consume checks the code value", func(t *testing.T) {
		clock := newTestClock()
		store := newStore(clock)
		userID := uuid.New()

		stale, err := store.Issue(ctx, userID, TWO_FACTOR_TYPE_SMS)
		require.NoError(t, err)
		fresh, err := store.Issue(ctx, userID, TWO_FACTOR_TYPE_SMS)
		require.NoError(t, err)

		ok, err := store.Consume(ctx, userID, TWO_FACTOR_TYPE_SMS, stale)
		require.NoError(t, err)
		assert.False(t, ok, "replaced code must not be consumed")

		active, err := store.ListActive(ctx, userID)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, fresh, active[0].Code)

		ok, err = store.Consume(ctx, userID, TWO_FACTOR_TYPE_SMS, fresh)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired codes are inactive", func(t *testing.T) {
		clock := newTestClock()
		store := newStore(clock)
		userID := uuid.New()

		_, err := store.Issue(ctx, userID, TWO_FACTOR_TYPE_EMAIL)
		require.NoError(t, err)
		clock.Advance(11 * time.Minute)

		active, err := store.ListActive(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, active)

		ok, err := store.Consume(ctx, userID, TWO_FACTOR_TYPE_EMAIL, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid channel", func(t *testing.T) {
		store := newStore(newTestClock())
		_, err := store.Issue(ctx, uuid.New(), Channel("pigeon"))
		assert.Error(t, err)
	})

	t.Run("concurrent consume succeeds once", func(t *testing.T) {
		store := newStore(newTestClock())
		userID := uuid.New()
		_, err := store.Issue(ctx, userID, TWO_FACTOR_TYPE_SMS)
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		wg.Add(10)
		for i := 0; i < 10; i++ {
			go func() {
				defer wg.Done()
				ok, err := store.Consume(ctx, userID, TWO_FACTOR_TYPE_SMS, "")
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestInMemoryCodeStore(t *testing.T) {
	runCodeStoreContract(t, func(clock *testClock) CodeStore {
		return NewInMemoryCodeStore(testStoreOptions(clock)...)
	})
}

func TestRedisCodeStore(t *testing.T) {
	runCodeStoreContract(t, func(clock *testClock) CodeStore {
		_, client := newTestRedis(t)
		return NewRedisCodeStore(client, testStoreOptions(clock)...)
	})
}

func TestRedisCodeStore_KeyExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	clock := newTestClock()
	store := NewRedisCodeStore(client, testStoreOptions(clock)...)
	userID := uuid.New()

	_, err := store.Issue(context.Background(), userID, TWO_FACTOR_TYPE_EMAIL)
	require.NoError(t, err)
	assert.True(t, mr.Exists(store.key(userID, TWO_FACTOR_TYPE_EMAIL)))

	mr.FastForward(11 * time.Minute)
	assert.False(t, mr.Exists(store.key(userID, TWO_FACTOR_TYPE_EMAIL)))
}

func TestRedisCodeStore_Unavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisCodeStore(client)
	mr.Close()

	_, err := store.Issue(context.Background(), uuid.New(), TWO_FACTOR_TYPE_EMAIL)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = store.Consume(context.Background(), uuid.New(), TWO_FACTOR_TYPE_EMAIL, "")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestPostgresCodeStore(t *testing.T) {
	pool := pgtest.SetupTestDatabase(t)
	runCodeStoreContract(t, func(clock *testClock) CodeStore {
		return NewPostgresCodeStore(pool, testStoreOptions(clock)...)
	})
}

func TestNewCodeStore(t *testing.T) {
	store, err := NewCodeStore("inmem", RepositoryConfig{})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryCodeStore{}, store)

	_, err = NewCodeStore("redis", RepositoryConfig{})
	assert.Error(t, err)

	_, err = NewCodeStore("carrier-pigeon", RepositoryConfig{})
	assert.Error(t, err)
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(time.Now())
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}
