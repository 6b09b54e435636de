package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceHub_RosterTracksDistinctViewers(t *testing.T) {
	hub := NewPresenceHub()

	a1, err := hub.Register(10, 1, nil)
	require.NoError(t, err)
	a2, err := hub.Register(10, 1, nil) // same viewer, second tab
	require.NoError(t, err)
	b, err := hub.Register(10, 2, nil)
	require.NoError(t, err)
	_, err = hub.Register(11, 3, nil) // different room
	require.NoError(t, err)

	roster := hub.Roster(10)
	assert.ElementsMatch(t, []uint{1, 2}, roster)

	// Closing one of viewer 1's tabs keeps them in the roster.
	hub.UnregisterClient(a2)
	assert.ElementsMatch(t, []uint{1, 2}, hub.Roster(10))

	// Closing the last tab removes them.
	hub.UnregisterClient(a1)
	assert.ElementsMatch(t, []uint{2}, hub.Roster(10))

	hub.UnregisterClient(b)
	assert.Empty(t, hub.Roster(10))
	assert.ElementsMatch(t, []uint{3}, hub.Roster(11))
}

func TestPresenceHub_MembershipChangePushesRosterEvent(t *testing.T) {
	hub := NewPresenceHub()

	first, err := hub.Register(5, 1, nil)
	require.NoError(t, err)

	// Joining viewer 2 pushes a fresh roster to viewer 1.
	_, err = hub.Register(5, 2, nil)
	require.NoError(t, err)

	select {
	case payload := <-first.Send:
		var evt struct {
			Type    string `json:"type"`
			RoomID  uint   `json:"room_id"`
			Viewers []uint `json:"viewers"`
		}
		require.NoError(t, json.Unmarshal(payload, &evt))
		assert.Equal(t, "presence", evt.Type)
		assert.Equal(t, uint(5), evt.RoomID)
	case <-time.After(time.Second):
		t.Fatal("expected a roster event after a join")
	}
}

func TestPresenceHub_PerUserConnectionLimit(t *testing.T) {
	hub := NewPresenceHub()

	for i := 0; i < 12; i++ {
		_, err := hub.Register(1, 99, nil)
		require.NoError(t, err)
	}

	_, err := hub.Register(1, 99, nil)
	assert.Error(t, err)
}

func TestCommentFeed_LocalPublishReachesSubscribers(t *testing.T) {
	feed := NewCommentFeed(nil)

	updates, cancel := feed.Subscribe(7)
	defer cancel()

	feed.Publish(context.Background(), 7, []byte(`{"body":"hi"}`))

	select {
	case payload := <-updates:
		assert.JSONEq(t, `{"body":"hi"}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("expected the published comment")
	}
}

func TestCommentFeed_SubscriptionIsPerPost(t *testing.T) {
	feed := NewCommentFeed(nil)

	updates, cancel := feed.Subscribe(7)
	defer cancel()

	feed.Publish(context.Background(), 8, []byte(`{"body":"other post"}`))

	select {
	case payload := <-updates:
		t.Fatalf("unexpected cross-post delivery: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCommentFeed_CancelStopsDelivery(t *testing.T) {
	feed := NewCommentFeed(nil)

	updates, cancel := feed.Subscribe(7)
	cancel()

	feed.Publish(context.Background(), 7, []byte(`{"body":"late"}`))

	select {
	case _, open := <-updates:
		assert.False(t, open, "channel should be closed after cancel")
	case <-time.After(time.Second):
		t.Fatal("expected the channel to close after cancel")
	}
}
