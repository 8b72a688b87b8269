package sweeper_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/sweeper"
)

func TestRedisLease_OneHolderAtATime(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR_TEST")
	if addr == "" {
		t.Skip("REDIS_ADDR_TEST not set, skipping Redis integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	key := "settlement:test-lease:" + uuid.Must(uuid.NewV4()).String()
	t.Cleanup(func() { client.Del(ctx, key) })

	first := sweeper.NewRedisLease(client, key)
	second := sweeper.NewRedisLease(client, key)

	ok, err := first.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lease is already held")

	// Releasing a lease we do not hold leaves the holder in place.
	require.NoError(t, second.Release(ctx))
	held, err := client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, held)

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release(ctx))
}
