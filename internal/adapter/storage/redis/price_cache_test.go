package redis

import (
	"context"
	"testing"
	"time"

	"cryptosim/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceCache_RoundTrip(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewPriceCache(client)
	ctx := context.Background()

	miss, err := cache.GetLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, miss)

	tick := &domain.PriceTick{
		ID:       uuid.New(),
		TS:       time.Now().UTC().Truncate(time.Second),
		PriceUSD: decimal.RequireFromString("101.25"),
		PriceBTC: decimal.NewNullDecimal(decimal.RequireFromString("0.00001234")),
		Notes:    "close",
	}
	require.NoError(t, cache.SetLatest(ctx, tick, time.Minute))

	got, err := cache.GetLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tick.ID, got.ID)
	assert.True(t, tick.PriceUSD.Equal(got.PriceUSD))
	assert.True(t, got.PriceBTC.Valid)
	assert.False(t, got.VolumeSIM.Valid)
	assert.True(t, tick.TS.Equal(got.TS))
}

func TestPriceCache_TTLAndInvalidate(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewPriceCache(client)
	ctx := context.Background()

	tick := &domain.PriceTick{ID: uuid.New(), PriceUSD: decimal.NewFromInt(1)}

	require.NoError(t, cache.SetLatest(ctx, tick, time.Second))
	s.FastForward(2 * time.Second)
	got, err := cache.GetLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.SetLatest(ctx, tick, time.Minute))
	require.NoError(t, cache.Invalidate(ctx))
	got, err = cache.GetLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPriceCache_CorruptValue(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewPriceCache(client)

	require.NoError(t, s.Set(latestPriceKey, "not-json"))

	_, err := cache.GetLatest(context.Background())
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})

	hc := NewHealthCheck(client)
	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))

	s.Close()
	assert.Error(t, hc.Ping(context.Background()))
}
