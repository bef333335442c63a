package realtime

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLocalBusStopsOnCancel(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan Envelope, 4)
	require.NoError(t, bus.Subscribe(ctx, func(e Envelope) { got <- e }))

	require.NoError(t, bus.Publish(context.Background(), Envelope{Kind: KindOrderCreated}))
	require.Equal(t, KindOrderCreated, (<-got).Kind)

	cancel()
	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subs) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), Envelope{Kind: KindOrderClaimed}))
	require.Empty(t, got)
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("UNIEATS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("UNIEATS_TEST_REDIS_ADDR not set; skipping redis bus test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := "unieats:test:" + time.Now().Format("150405.000000")
	bus := NewRedisBus(rdb, channel, nil)
	got := make(chan Envelope, 1)
	require.NoError(t, bus.Subscribe(ctx, func(e Envelope) { got <- e }))

	env, err := Event{
		Kind:    KindOrderClaimed,
		Targets: []Target{DriversTarget},
		Data:    OrderClaimed{OrderID: "o1", ClaimedBy: "d1"},
	}.Envelope()
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, env))

	select {
	case e := <-got:
		require.Equal(t, KindOrderClaimed, e.Kind)
		require.Equal(t, []Target{DriversTarget}, e.Targets)
		require.JSONEq(t, `{"orderId":"o1","claimedBy":"d1"}`, string(e.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope from redis")
	}
}
