package chatsync_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/chatsync"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/realtime"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signup(t *testing.T, profiles *service.ProfileService, email, name string, role domain.Role) access.Caller {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	_, err := profiles.CreateProfile(ctx, access.Caller{ID: id}, service.CreateProfileInput{Email: email, FullName: name, Role: role})
	require.NoError(t, err)
	caller, err := profiles.ResolveCaller(ctx, id)
	require.NoError(t, err)
	return caller
}

func TestChatFollowsServiceConversation(t *testing.T) {
	ctx := context.Background()
	store := repository.NewInMemoryStore()
	bridge := realtime.NewBridge(nil, 16)
	t.Cleanup(bridge.Close)

	profiles := service.NewProfileService(store, nil)
	conversations := service.NewConversationService(store, bridge, nil)

	student := signup(t, profiles, "sam@example.com", "Sam Student", domain.RoleStudent)
	counselor := signup(t, profiles, "casey@example.com", "Casey Counselor", domain.RoleCounselor)

	conv, err := conversations.StartConversation(ctx, student, counselor.ID)
	require.NoError(t, err)
	_, err = conversations.SendMessage(ctx, counselor, service.SendMessageInput{ConversationID: conv.ID, Content: "Welcome"})
	require.NoError(t, err)

	chat := chatsync.NewChat(chatsync.NewServiceSource(conversations, counselor), nil)
	require.NoError(t, chat.Open(ctx, conv.ID))
	t.Cleanup(chat.Close)

	_, err = conversations.SendMessage(ctx, student, service.SendMessageInput{ConversationID: conv.ID, Content: "Hello"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		msgs, err := chat.Messages()
		return err == nil && len(msgs) == 2
	}, time.Second, 5*time.Millisecond)

	msgs, err := chat.Messages()
	require.NoError(t, err)
	assert.Equal(t, "Welcome", msgs[0].Content)
	assert.Equal(t, "Hello", msgs[1].Content)
	assert.Equal(t, "Sam Student", msgs[1].Sender.FullName)
	assert.Equal(t, int64(2), msgs[1].Seq)
}

func TestServiceSourceRejectsOutsider(t *testing.T) {
	ctx := context.Background()
	store := repository.NewInMemoryStore()
	bridge := realtime.NewBridge(nil, 16)
	t.Cleanup(bridge.Close)

	profiles := service.NewProfileService(store, nil)
	conversations := service.NewConversationService(store, bridge, nil)

	student := signup(t, profiles, "sam@example.com", "Sam Student", domain.RoleStudent)
	counselor := signup(t, profiles, "casey@example.com", "Casey Counselor", domain.RoleCounselor)
	outsider := signup(t, profiles, "sky@example.com", "Sky Student", domain.RoleStudent)

	conv, err := conversations.StartConversation(ctx, student, counselor.ID)
	require.NoError(t, err)

	chat := chatsync.NewChat(chatsync.NewServiceSource(conversations, outsider), nil)
	err = chat.Open(ctx, conv.ID)
	assert.ErrorIs(t, err, access.ErrPolicyDenied)
}
