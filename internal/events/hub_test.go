package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_DeliversOnlyToOwner(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	alice, bob := uuid.New(), uuid.New()

	a := hub.Subscribe(alice)
	b := hub.Subscribe(bob)
	defer a.Close()
	defer b.Close()

	hub.Publish(alice, SessionCreated, map[string]string{"id": "1"})

	select {
	case evt := <-a.C():
		assert.Equal(t, SessionCreated, evt.Type)
		assert.False(t, evt.At.IsZero())
	default:
		t.Fatal("expected an event for alice")
	}
	assert.Empty(t, b.C())
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(1, nil)
	user := uuid.New()
	sub := hub.Subscribe(user)
	defer sub.Close()

	hub.Publish(user, MessageCreated, nil)
	hub.Publish(user, MessageCreated, nil)

	assert.Len(t, sub.C(), 1)
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	hub := NewHub(1, nil)
	user := uuid.New()
	sub := hub.Subscribe(user)
	require.Equal(t, 1, hub.Subscribers(user))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers(user))

	_, open := <-sub.C()
	assert.False(t, open)

	hub.Publish(user, SessionDeleted, nil)
}
