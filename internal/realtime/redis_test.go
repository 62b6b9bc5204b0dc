package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisHub(t *testing.T) (*RedisHub, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	h, err := NewRedisHub(rdb, "test", 30*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h, mr
}

func TestNewRedisHub_Validation(t *testing.T) {
	_, err := NewRedisHub(nil, "x", 0)
	assert.Error(t, err)

	_, err = NewRedisHub(redis.NewClient(&redis.Options{Addr: "localhost:0"}), " ", 0)
	assert.Error(t, err)
}

func TestRedisHub_PublishSubscribe(t *testing.T) {
	h, _ := setupRedisHub(t)
	ctx := context.Background()

	t.Run("receives events for its draft", func(t *testing.T) {
		sub, err := h.Subscribe(ctx, "d-1")
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, h.Publish(ctx, "d-1", Event{
			Type:            EventDraftSubmitted,
			ActorID:         "insp-1",
			ReferenceNumber: "MOH-DENT-2026-000001",
		}))

		select {
		case e := <-sub.Events():
			assert.Equal(t, EventDraftSubmitted, e.Type)
			assert.Equal(t, "d-1", e.DraftID)
			assert.Equal(t, "MOH-DENT-2026-000001", e.ReferenceNumber)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	})

	t.Run("multiple subscribers", func(t *testing.T) {
		sub1, err := h.Subscribe(ctx, "d-2")
		require.NoError(t, err)
		defer sub1.Close()
		sub2, err := h.Subscribe(ctx, "d-2")
		require.NoError(t, err)
		defer sub2.Close()

		require.NoError(t, h.Publish(ctx, "d-2", Event{Type: EventDraftUpdated, Version: 9}))

		for _, s := range []*Subscription{sub1, sub2} {
			select {
			case e := <-s.Events():
				assert.Equal(t, int64(9), e.Version)
			case <-time.After(time.Second):
				t.Fatal("timeout waiting for event")
			}
		}
	})

	t.Run("malformed payload goes to errors", func(t *testing.T) {
		sub, err := h.Subscribe(ctx, "d-3")
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, h.rdb.Publish(ctx, h.eventsChannel("d-3"), "{not json").Err())

		select {
		case err := <-sub.Errors():
			assert.Error(t, err)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for error")
		}
	})

	t.Run("close stops delivery", func(t *testing.T) {
		sub, err := h.Subscribe(ctx, "d-4")
		require.NoError(t, err)
		require.NoError(t, sub.Close())

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("events channel not closed")
		}
	})
}

func TestRedisHub_Presence(t *testing.T) {
	h, mr := setupRedisHub(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	require.NoError(t, h.Join(ctx, "d-1", Member{ConnID: "c1", UserID: "insp-1", Name: "Ali"}))
	now = now.Add(time.Second)
	require.NoError(t, h.Join(ctx, "d-1", Member{ConnID: "c2", UserID: "sup-1", Role: "supervisor"}))

	assert.True(t, mr.Exists("test:presence:d-1"))
	assert.Equal(t, 60*time.Second, mr.TTL("test:presence:d-1"))

	members, err := h.Members(ctx, "d-1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "insp-1", members[0].UserID)
	assert.Equal(t, "Ali", members[0].Name)

	now = now.Add(20 * time.Second)
	require.NoError(t, h.Touch(ctx, "d-1", "c2"))
	now = now.Add(15 * time.Second)

	members, err = h.Members(ctx, "d-1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "sup-1", members[0].UserID)

	// la conexión vencida se borró del hash
	keys, err := mr.HKeys("test:presence:d-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, keys)

	require.NoError(t, h.Leave(ctx, "d-1", "c2"))
	members, err = h.Members(ctx, "d-1")
	require.NoError(t, err)
	assert.Empty(t, members)

	// Touch de una conexión desconocida no falla
	assert.NoError(t, h.Touch(ctx, "d-1", "ghost"))
}
