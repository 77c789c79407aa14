package chatsync

import (
	"context"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/realtime"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/internal/service"
)

// Feed is a live stream of minimal row changes. Changes is closed when the feed ends
// and Err then reports why.
type Feed interface {
	Changes() <-chan realtime.Change
	Err() error
	Close()
}

type Source interface {
	// History returns up to one page of messages with Seq > afterSeq, ascending.
	History(ctx context.Context, conversationID uuid.UUID, afterSeq int64) ([]*domain.MessageWithSender, error)
	// Fetch loads the enriched message by id.
	Fetch(ctx context.Context, id uuid.UUID) (*domain.MessageWithSender, error)
	Subscribe(ctx context.Context, conversationID uuid.UUID) (Feed, error)
}

// ServiceSource reads straight from the conversation service on behalf of one caller.
type ServiceSource struct {
	conversations service.ConversationInteractor
	caller        access.Caller
}

func NewServiceSource(conversations service.ConversationInteractor, caller access.Caller) *ServiceSource {
	return &ServiceSource{conversations: conversations, caller: caller}
}

func (s *ServiceSource) History(ctx context.Context, conversationID uuid.UUID, afterSeq int64) ([]*domain.MessageWithSender, error) {
	return s.conversations.ListMessages(ctx, s.caller, conversationID, repository.MessagePage{AfterSeq: afterSeq, Limit: historyPage})
}

func (s *ServiceSource) Fetch(ctx context.Context, id uuid.UUID) (*domain.MessageWithSender, error) {
	return s.conversations.GetMessage(ctx, s.caller, id)
}

func (s *ServiceSource) Subscribe(ctx context.Context, conversationID uuid.UUID) (Feed, error) {
	sub, err := s.conversations.SubscribeMessages(ctx, s.caller, conversationID, realtime.EventAll)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
