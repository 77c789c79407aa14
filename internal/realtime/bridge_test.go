package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageInsert(conversationID, id string) Change {
	return Change{
		Table:  "messages",
		Event:  EventInsert,
		Record: map[string]string{"id": id, "conversation_id": conversationID},
	}
}

func TestPublishFiltersByConversation(t *testing.T) {
	b := NewBridge(nil, 4)
	defer b.Close()

	sub, err := b.Subscribe(Spec{Table: "messages", Event: EventInsert, Filter: Filter{Column: "conversation_id", Value: "c1"}})
	require.NoError(t, err)

	assert.Equal(t, 1, b.Publish(messageInsert("c1", "m1")))
	assert.Equal(t, 0, b.Publish(messageInsert("c2", "m2")))
	assert.Equal(t, 0, b.Publish(Change{Table: "messages", Event: EventUpdate, Record: map[string]string{"conversation_id": "c1"}}))
	assert.Equal(t, 0, b.Publish(Change{Table: "appointments", Event: EventInsert, Record: map[string]string{"conversation_id": "c1"}}))

	got := <-sub.Changes()
	assert.Equal(t, "m1", got.Record["id"])
	assert.False(t, got.CommitAt.IsZero())
	assert.Empty(t, sub.Changes())
}

func TestWildcardEvent(t *testing.T) {
	b := NewBridge(nil, 4)
	sub, err := b.Subscribe(Spec{Table: "messages", Event: EventAll})
	require.NoError(t, err)

	b.Publish(messageInsert("c1", "m1"))
	b.Publish(Change{Table: "messages", Event: EventUpdate, Record: map[string]string{"id": "m1"}})
	assert.Len(t, sub.Changes(), 2)
}

func TestLaggingSubscriberIsClosed(t *testing.T) {
	b := NewBridge(nil, 1)
	slow, err := b.Subscribe(Spec{Table: "messages"})
	require.NoError(t, err)

	assert.Equal(t, 1, b.Publish(messageInsert("c1", "m1")))
	assert.Equal(t, 0, b.Publish(messageInsert("c1", "m2")))

	<-slow.Changes()
	_, open := <-slow.Changes()
	assert.False(t, open)
	assert.ErrorIs(t, slow.Err(), ErrLagged)
	assert.Equal(t, 0, b.Subscribers())
}

func TestCloseSubscription(t *testing.T) {
	b := NewBridge(nil, 4)
	sub, err := b.Subscribe(Spec{Table: "messages"})
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	_, open := <-sub.Changes()
	assert.False(t, open)
	assert.NoError(t, sub.Err())
	assert.Equal(t, 0, b.Publish(messageInsert("c1", "m1")))
}

func TestBridgeClose(t *testing.T) {
	b := NewBridge(nil, 4)
	sub, err := b.Subscribe(Spec{Table: "messages"})
	require.NoError(t, err)

	b.Close()
	_, open := <-sub.Changes()
	assert.False(t, open)
	assert.ErrorIs(t, sub.Err(), ErrClosed)

	_, err = b.Subscribe(Spec{Table: "messages"})
	assert.ErrorIs(t, err, ErrClosed)
}
