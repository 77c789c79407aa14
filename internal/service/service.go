package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/realtime"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/internal/retry"
)

var (
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrConversationClosed = errors.New("conversation is not active")
	ErrSlotTaken          = errors.New("counselor is already booked for this time")
	ErrJoinWindowClosed   = errors.New("appointment is not joinable now")
	ErrProfileInactive    = errors.New("profile is deactivated")
)

type ProfileInteractor interface {
	ResolveCaller(ctx context.Context, id uuid.UUID) (access.Caller, error)
	CreateProfile(ctx context.Context, caller access.Caller, in CreateProfileInput) (*domain.Profile, error)
	GetProfile(ctx context.Context, caller access.Caller, id uuid.UUID) (*domain.Profile, error)
	ListProfiles(ctx context.Context, caller access.Caller, filter repository.ProfileFilter) ([]*domain.Profile, error)
	UpdateProfile(ctx context.Context, caller access.Caller, id uuid.UUID, in UpdateProfileInput) (*domain.Profile, error)
}

type ConversationInteractor interface {
	StartConversation(ctx context.Context, caller access.Caller, counselorID uuid.UUID) (*domain.Conversation, error)
	GetConversation(ctx context.Context, caller access.Caller, id uuid.UUID) (*domain.Conversation, error)
	ListConversations(ctx context.Context, caller access.Caller) ([]*domain.Conversation, error)
	UpdateConversationStatus(ctx context.Context, caller access.Caller, id uuid.UUID, status domain.ConversationStatus) (*domain.Conversation, error)
	SendMessage(ctx context.Context, caller access.Caller, in SendMessageInput) (*domain.MessageWithSender, error)
	ListMessages(ctx context.Context, caller access.Caller, conversationID uuid.UUID, page repository.MessagePage) ([]*domain.MessageWithSender, error)
	GetMessage(ctx context.Context, caller access.Caller, id uuid.UUID) (*domain.MessageWithSender, error)
	MarkMessage(ctx context.Context, caller access.Caller, id uuid.UUID, status domain.MessageStatus) (*domain.Message, error)
	SubscribeMessages(ctx context.Context, caller access.Caller, conversationID uuid.UUID, event realtime.Event) (*realtime.Subscription, error)
}

type AppointmentInteractor interface {
	BookAppointment(ctx context.Context, caller access.Caller, in BookAppointmentInput) (*domain.Appointment, error)
	GetAppointment(ctx context.Context, caller access.Caller, id uuid.UUID) (*domain.Appointment, error)
	ListAppointments(ctx context.Context, caller access.Caller, filter repository.AppointmentFilter) ([]*domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, caller access.Caller, id uuid.UUID, status domain.AppointmentStatus) (*domain.Appointment, error)
	RescheduleAppointment(ctx context.Context, caller access.Caller, id uuid.UUID, in RescheduleInput) (*domain.Appointment, error)
	JoinWindow(ctx context.Context, caller access.Caller, id uuid.UUID) (*JoinInfo, error)
}

type VideoInteractor interface {
	CreateRoom(ctx context.Context, caller access.Caller, in CreateRoomInput) (*Room, error)
	RegisterRoom(ctx context.Context, caller access.Caller, in RegisterRoomInput) (*Room, error)
	GetRoom(ctx context.Context, caller access.Caller, roomID string) (*Room, error)
	ListRoomsForAppointment(ctx context.Context, caller access.Caller, appointmentID uuid.UUID) ([]*Room, error)
	StartCall(ctx context.Context, caller access.Caller, roomID string) (*Room, error)
	EndCall(ctx context.Context, caller access.Caller, roomID string) (*Room, error)
}

// txRunner runs one service operation as a single storage transaction on behalf of
// caller. Transient storage failures rerun the whole transaction.
type txRunner struct {
	store repository.Store
	retry retry.Policy
	now   func() time.Time
}

func newTxRunner(store repository.Store, policy retry.Policy) txRunner {
	return txRunner{store: store, retry: policy, now: time.Now}
}

func (r txRunner) inTx(ctx context.Context, caller access.Caller, fn func(tx repository.Repositories) error) error {
	ctx = access.WithCaller(ctx, caller)
	return retry.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.store.WithinTx(ctx, fn)
	})
}

func (r txRunner) clock() time.Time {
	return r.now().UTC()
}

// Option configures the optional collaborators shared by the services.
type Option func(*options)

type options struct {
	retry retry.Policy
	now   func() time.Time
}

func WithRetry(p retry.Policy) Option {
	return func(o *options) { o.retry = p }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{retry: retry.DefaultPolicy(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) runner(store repository.Store) txRunner {
	r := newTxRunner(store, o.retry)
	r.now = o.now
	return r
}
