package loader

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	feed := NewFeed(rdb, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := feed.Subscribe(ctx, "parts")
	require.NoError(t, err)

	feed.Publish(ctx, "parts", 3, "UPDATE", row{ID: 7, Name: "gasket"})

	select {
	case event := <-events:
		assert.Equal(t, EventUpdate, event.Kind)
		assert.Equal(t, "parts", event.Table)
		assert.Equal(t, int64(3), event.OrganizationID)

		decoded, err := Decode[row](event)
		require.NoError(t, err)
		assert.Equal(t, int64(7), decoded.Row.ID)
		assert.Equal(t, "gasket", decoded.Row.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no feed event received")
	}
}

func TestFeedSubscribeStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	feed := NewFeed(rdb, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	events, err := feed.Subscribe(ctx, "tasks")
	require.NoError(t, err)

	cancel()
	select {
	case _, open := <-events:
		assert.False(t, open, "channel closes after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close")
	}
}

// A subscriber that stops draining must not pin the pump goroutine: cancel
// has to release a blocked delivery and close the channel.
func TestFeedCancelReleasesBlockedDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	feed := NewFeed(rdb, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	events, err := feed.Subscribe(ctx, "invoices")
	require.NoError(t, err)

	// Nothing reads events, so the first delivery blocks inside the pump.
	feed.Publish(context.Background(), "invoices", 3, "INSERT", row{ID: 1, Name: "INV-2603-0001"})
	time.Sleep(50 * time.Millisecond)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-events:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("pump goroutine still blocked after cancel")
		}
	}
}
