package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/realtime"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/lib/logger/sl"
)

type SendMessageInput struct {
	ConversationID uuid.UUID          `json:"conversation_id"`
	Content        string             `json:"content" validate:"required_without=AttachmentURL,max=4000"`
	Type           domain.MessageType `json:"message_type" validate:"omitempty,oneof=text file image video"`
	AttachmentURL  string             `json:"attachment_url" validate:"omitempty,url,max=1024"`
}

type ConversationService struct {
	txRunner
	bridge *realtime.Bridge
	log    *slog.Logger
}

func NewConversationService(store repository.Store, bridge *realtime.Bridge, log *slog.Logger, opts ...Option) *ConversationService {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationService{
		txRunner: buildOptions(opts).runner(store),
		bridge:   bridge,
		log:      log,
	}
}

// StartConversation opens a conversation between the calling student and a
// counselor. An active conversation of the same pair is returned instead of a new one.
func (s *ConversationService) StartConversation(ctx context.Context, caller access.Caller, counselorID uuid.UUID) (*domain.Conversation, error) {
	const op = "service.conversation.start"
	log := s.log.With(
		slog.String("op", op),
		slog.String("student_id", caller.ID.String()),
		slog.String("counselor_id", counselorID.String()),
	)

	if counselorID == uuid.Nil {
		return nil, fieldError("counselor_id", "counselor_id is a required field")
	}

	var conv *domain.Conversation
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		candidate := domain.NewConversation(caller.ID, counselorID)
		if err := access.Check(caller, access.Insert, access.ForConversation(candidate)); err != nil {
			return err
		}
		if err := requireRole(ctx, tx, caller.ID, domain.RoleStudent, "student_id"); err != nil {
			return err
		}
		if err := requireRole(ctx, tx, counselorID, domain.RoleCounselor, "counselor_id"); err != nil {
			return err
		}

		existing, err := tx.Conversations().FindActive(ctx, caller.ID, counselorID)
		if err == nil {
			conv = existing
			return nil
		}
		if !errors.Is(err, repository.ErrConversationNotFound) {
			return err
		}

		now := s.clock()
		candidate.CreatedAt, candidate.UpdatedAt, candidate.LastMessageAt = now, now, now
		if err := tx.Conversations().Create(ctx, candidate); err != nil {
			return err
		}
		conv = candidate
		return nil
	})
	if err != nil {
		log.Info("conversation not started", sl.Err(err))
		return nil, err
	}

	log.Info("conversation ready", slog.String("conversation_id", conv.ID.String()))
	return conv, nil
}

func (s *ConversationService) GetConversation(ctx context.Context, caller access.Caller, id uuid.UUID) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		var err error
		conv, err = readConversation(ctx, tx, caller, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) ListConversations(ctx context.Context, caller access.Caller) ([]*domain.Conversation, error) {
	var result []*domain.Conversation
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		convs, err := tx.Conversations().ListByParticipant(ctx, caller.ID)
		if err != nil {
			return err
		}
		result = make([]*domain.Conversation, 0, len(convs))
		for _, c := range convs {
			if access.Allowed(caller, access.Read, access.ForConversation(c)) {
				result = append(result, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ConversationService) UpdateConversationStatus(ctx context.Context, caller access.Caller, id uuid.UUID, status domain.ConversationStatus) (*domain.Conversation, error) {
	const op = "service.conversation.status"
	log := s.log.With(
		slog.String("op", op),
		slog.String("conversation_id", id.String()),
		slog.String("status", string(status)),
	)

	if !status.Valid() {
		return nil, fieldError("status", "unknown conversation status")
	}

	var conv *domain.Conversation
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		var err error
		conv, err = tx.Conversations().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Check(caller, access.Update, access.ForConversation(conv)); err != nil {
			return err
		}
		if conv.Status == status {
			return nil
		}
		if !conv.Status.CanTransitionTo(status) {
			return ErrInvalidTransition
		}
		conv.Status = status
		conv.UpdatedAt = s.clock()
		return tx.Conversations().Update(ctx, conv)
	})
	if err != nil {
		log.Info("conversation status not changed", sl.Err(err))
		return nil, err
	}
	return conv, nil
}

// SendMessage appends a message and moves the conversation's last activity marker in
// the same transaction, then announces the insert on the realtime bridge. The message
// id is fixed before the first attempt, so a retry after an unacknowledged commit
// returns the stored row instead of inserting a second one.
func (s *ConversationService) SendMessage(ctx context.Context, caller access.Caller, in SendMessageInput) (*domain.MessageWithSender, error) {
	const op = "service.conversation.send"
	log := s.log.With(
		slog.String("op", op),
		slog.String("conversation_id", in.ConversationID.String()),
		slog.String("sender_id", caller.ID.String()),
	)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	draft := domain.NewMessage(in.ConversationID, caller.ID, in.Content, in.Type)
	draft.AttachmentURL = in.AttachmentURL
	draft.CreatedAt = s.clock()
	draft.UpdatedAt = draft.CreatedAt

	var result *domain.MessageWithSender
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		conv, err := tx.Conversations().GetForUpdate(ctx, in.ConversationID)
		if err != nil {
			return err
		}

		stored, err := tx.Messages().GetByID(ctx, draft.ID)
		switch {
		case err == nil:
			// an earlier attempt committed
		case errors.Is(err, repository.ErrMessageNotFound):
			stored, err = s.insertMessage(ctx, tx, caller, conv, *draft)
			if err != nil {
				return err
			}
		default:
			return err
		}

		sender, err := tx.Profiles().GetByID(ctx, stored.SenderID)
		if err != nil {
			return err
		}
		result = &domain.MessageWithSender{Message: *stored, Sender: *sender}
		return nil
	})
	if err != nil {
		log.Info("message not sent", sl.Err(err))
		return nil, err
	}

	s.publish(realtime.EventInsert, &result.Message)
	log.Debug("message sent", slog.Int64("seq", result.Seq))
	return result, nil
}

func (s *ConversationService) insertMessage(ctx context.Context, tx repository.Repositories, caller access.Caller, conv *domain.Conversation, msg domain.Message) (*domain.Message, error) {
	if err := access.Check(caller, access.Insert, access.ForMessage(conv, msg.SenderID)); err != nil {
		return nil, err
	}
	if conv.Status != domain.ConversationActive {
		return nil, ErrConversationClosed
	}

	if err := tx.Messages().Create(ctx, &msg); err != nil {
		return nil, err
	}
	conv.Touch(msg.CreatedAt)
	conv.UpdatedAt = msg.CreatedAt
	if err := tx.Conversations().Update(ctx, conv); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages returns messages after page.AfterSeq in ascending order, each with
// its sender's profile.
func (s *ConversationService) ListMessages(ctx context.Context, caller access.Caller, conversationID uuid.UUID, page repository.MessagePage) ([]*domain.MessageWithSender, error) {
	var result []*domain.MessageWithSender
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		conv, err := tx.Conversations().GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if err := access.Check(caller, access.Read, access.ForMessage(conv, uuid.Nil)); err != nil {
			return err
		}

		msgs, err := tx.Messages().ListByConversation(ctx, conversationID, page)
		if err != nil {
			return err
		}
		result, err = enrich(ctx, tx, msgs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetMessage is the fetch-by-id used by realtime consumers to enrich a minimal row.
func (s *ConversationService) GetMessage(ctx context.Context, caller access.Caller, id uuid.UUID) (*domain.MessageWithSender, error) {
	var result *domain.MessageWithSender
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		msg, err := tx.Messages().GetByID(ctx, id)
		if err != nil {
			return err
		}
		conv, err := tx.Conversations().GetByID(ctx, msg.ConversationID)
		if err != nil {
			return err
		}
		if err := access.Check(caller, access.Read, access.ForMessage(conv, msg.SenderID)); err != nil {
			return err
		}

		enriched, err := enrich(ctx, tx, []*domain.Message{msg})
		if err != nil {
			return err
		}
		result = enriched[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkMessage advances the delivery status of a message received by caller.
// Repeating the current status is a no-op.
func (s *ConversationService) MarkMessage(ctx context.Context, caller access.Caller, id uuid.UUID, status domain.MessageStatus) (*domain.Message, error) {
	if !status.Valid() {
		return nil, fieldError("status", "unknown message status")
	}

	var (
		msg     *domain.Message
		changed bool
	)
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		var err error
		msg, err = tx.Messages().GetByID(ctx, id)
		if err != nil {
			return err
		}
		conv, err := tx.Conversations().GetByID(ctx, msg.ConversationID)
		if err != nil {
			return err
		}
		if err := access.Check(caller, access.Update, access.ForMessage(conv, msg.SenderID)); err != nil {
			return err
		}

		if msg.Status == status {
			changed = false
			return nil
		}
		if !msg.Status.Advances(status) {
			return ErrInvalidTransition
		}
		now := s.clock()
		if err := tx.Messages().UpdateStatus(ctx, msg.ID, status, now); err != nil {
			return err
		}
		msg.Status = status
		msg.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(realtime.EventUpdate, msg)
	}
	return msg, nil
}

// SubscribeMessages opens a realtime feed of message changes in one conversation
// the caller participates in. The caller must Close the subscription.
func (s *ConversationService) SubscribeMessages(ctx context.Context, caller access.Caller, conversationID uuid.UUID, event realtime.Event) (*realtime.Subscription, error) {
	if event == "" {
		event = realtime.EventInsert
	}
	if event != realtime.EventInsert && event != realtime.EventUpdate && event != realtime.EventAll {
		return nil, fieldError("event", "unknown event type")
	}

	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		conv, err := tx.Conversations().GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		return access.Check(caller, access.Read, access.ForMessage(conv, uuid.Nil))
	})
	if err != nil {
		return nil, err
	}

	return s.bridge.Subscribe(realtime.Spec{
		Table:  string(access.Messages),
		Event:  event,
		Filter: realtime.Filter{Column: "conversation_id", Value: conversationID.String()},
	})
}

func (s *ConversationService) publish(event realtime.Event, msg *domain.Message) {
	if s.bridge == nil {
		return
	}
	s.bridge.Publish(realtime.Change{
		Table: string(access.Messages),
		Event: event,
		Record: map[string]string{
			"id":              msg.ID.String(),
			"conversation_id": msg.ConversationID.String(),
			"sender_id":       msg.SenderID.String(),
			"seq":             strconv.FormatInt(msg.Seq, 10),
			"status":          string(msg.Status),
		},
		CommitAt: msg.UpdatedAt,
	})
}

func readConversation(ctx context.Context, tx repository.Repositories, caller access.Caller, id uuid.UUID) (*domain.Conversation, error) {
	conv, err := tx.Conversations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Check(caller, access.Read, access.ForConversation(conv)); err != nil {
		return nil, err
	}
	return conv, nil
}

func requireRole(ctx context.Context, tx repository.Repositories, id uuid.UUID, role domain.Role, field string) error {
	p, err := tx.Profiles().GetByID(ctx, id)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return fieldError(field, "profile does not exist")
	}
	if err != nil {
		return err
	}
	if p.Role != role || !p.IsActive {
		return fieldError(field, "profile is not an active "+string(role))
	}
	return nil
}

func enrich(ctx context.Context, tx repository.Repositories, msgs []*domain.Message) ([]*domain.MessageWithSender, error) {
	senders := make(map[uuid.UUID]*domain.Profile)
	result := make([]*domain.MessageWithSender, 0, len(msgs))
	for _, m := range msgs {
		sender, ok := senders[m.SenderID]
		if !ok {
			var err error
			sender, err = tx.Profiles().GetByID(ctx, m.SenderID)
			if err != nil {
				return nil, err
			}
			senders[m.SenderID] = sender
		}
		result = append(result, &domain.MessageWithSender{Message: *m, Sender: *sender})
	}
	return result, nil
}
