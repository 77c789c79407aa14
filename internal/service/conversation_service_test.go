package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/realtime"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.StartConversation(ctx, f.student, f.counselor.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationActive, conv.Status)

	sent, err := f.conversations.SendMessage(ctx, f.student, SendMessageInput{ConversationID: conv.ID, Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sent.Seq)
	assert.Equal(t, "Sam Student", sent.Sender.FullName)

	for _, reader := range []access.Caller{f.student, f.counselor} {
		msgs, err := f.conversations.ListMessages(ctx, reader, conv.ID, repository.MessagePage{})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "Hello", msgs[0].Content)
		assert.Equal(t, f.student.ID, msgs[0].Sender.ID)
	}

	_, err = f.conversations.GetConversation(ctx, f.stranger, conv.ID)
	assert.ErrorIs(t, err, access.ErrPolicyDenied)
	_, err = f.conversations.ListMessages(ctx, f.stranger, conv.ID, repository.MessagePage{})
	assert.ErrorIs(t, err, access.ErrPolicyDenied)
	_, err = f.conversations.GetMessage(ctx, f.stranger, sent.ID)
	assert.ErrorIs(t, err, access.ErrPolicyDenied)
}

func TestSendMessageRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.StartConversation(ctx, f.student, f.counselor.ID)
	require.NoError(t, err)

	_, err = f.conversations.SendMessage(ctx, f.stranger, SendMessageInput{ConversationID: conv.ID, Content: "let me in"})
	assert.ErrorIs(t, err, access.ErrPolicyDenied)

	msgs, err := f.conversations.ListMessages(ctx, f.student, conv.ID, repository.MessagePage{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendMessageTouchesConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.StartConversation(ctx, f.student, f.counselor.ID)
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	_, err = f.conversations.SendMessage(ctx, f.counselor, SendMessageInput{ConversationID: conv.ID, Content: "Hi Sam"})
	require.NoError(t, err)

	got, err := f.conversations.GetConversation(ctx, f.student, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, f.now, got.LastMessageAt)
}

// lostAckStore commits the transaction and then reports a transient failure, the
// way a connection drop during COMMIT acknowledgement looks to the caller.
type lostAckStore struct {
	repository.Store

	mu    sync.Mutex
	drops int
}

func (s *lostAckStore) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	if err := s.Store.WithinTx(ctx, fn); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drops > 0 {
		s.drops--
		return repository.ErrUnavailable
	}
	return nil
}

func TestSendMessageRetryAfterCommitDoesNotDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.StartConversation(ctx, f.student, f.counselor.ID)
	require.NoError(t, err)

	store := &lostAckStore{Store: f.store, drops: 1}
	conversations := NewConversationService(store, f.bridge, nil,
		WithClock(func() time.Time { return f.now }),
		WithRetry(retry.Policy{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond}),
	)

	sent, err := conversations.SendMessage(ctx, f.student, SendMessageInput{ConversationID: conv.ID, Content: "once"})
	require.NoError(t, err)
	assert.Equal(t, "once", sent.Content)
	assert.Equal(t, int64(1), sent.Seq)
	assert.Equal(t, 0, store.drops)

	msgs, err := f.conversations.ListMessages(ctx, f.student, conv.ID, repository.MessagePage{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ID, msgs[0].ID)
}

func TestStartConversationReusesActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.conversations.StartConversation(ctx, f.student, f.counselor.ID)
	require.NoError(t, err)
	again, err := f.conversations.StartConversation(ctx, f.student, f.counselor.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = f.conversations.UpdateConversationStatus(ctx, f.counselor, first.ID, domain.ConversationEnded)
	require.NoError(t, err)
	fresh, err := f.conversations.StartConversation(ctx, f.student, f.counselor.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fresh.ID)

	_, err = f.conversations.StartConversation(ctx, f.counselor, f.student.ID)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestClosedConversationRejectsMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.StartConversation(ctx, f.student, f.counselor.ID)
	require.NoError(t, err)
	_, err = f.conversations.UpdateConversationStatus(ctx, f.student, conv.ID, domain.ConversationArchived)
	require.NoError(t, err)

	_, err = f.conversations.SendMessage(ctx, f.student, SendMessageInput{ConversationID: conv.ID, Content: "still there?"})
	assert.ErrorIs(t, err, ErrConversationClosed)

	_, err = f.conversations.UpdateConversationStatus(ctx, f.student, conv.ID, domain.ConversationActive)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.StartConversation(ctx, f.student, f.counselor.ID)
	require.NoError(t, err)
	sent, err := f.conversations.SendMessage(ctx, f.student, SendMessageInput{ConversationID: conv.ID, Content: "Hello"})
	require.NoError(t, err)

	_, err = f.conversations.MarkMessage(ctx, f.student, sent.ID, domain.MessageRead)
	assert.ErrorIs(t, err, access.ErrPolicyDenied)

	msg, err := f.conversations.MarkMessage(ctx, f.counselor, sent.ID, domain.MessageRead)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageRead, msg.Status)

	_, err = f.conversations.MarkMessage(ctx, f.counselor, sent.ID, domain.MessageRead)
	assert.NoError(t, err)
	_, err = f.conversations.MarkMessage(ctx, f.counselor, sent.ID, domain.MessageDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubscribeMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.StartConversation(ctx, f.student, f.counselor.ID)
	require.NoError(t, err)

	_, err = f.conversations.SubscribeMessages(ctx, f.stranger, conv.ID, realtime.EventInsert)
	assert.ErrorIs(t, err, access.ErrPolicyDenied)

	sub, err := f.conversations.SubscribeMessages(ctx, f.counselor, conv.ID, "")
	require.NoError(t, err)
	defer sub.Close()

	sent, err := f.conversations.SendMessage(ctx, f.student, SendMessageInput{ConversationID: conv.ID, Content: "ping"})
	require.NoError(t, err)

	select {
	case change := <-sub.Changes():
		assert.Equal(t, realtime.EventInsert, change.Event)
		assert.Equal(t, sent.ID.String(), change.Record["id"])
		assert.Equal(t, "1", change.Record["seq"])
	case <-time.After(time.Second):
		t.Fatal("no realtime change received")
	}
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.conversations.SendMessage(context.Background(), f.student, SendMessageInput{Type: "sticker"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := map[string]bool{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = true
	}
	assert.True(t, fields["content"])
	assert.True(t, fields["message_type"])
}
