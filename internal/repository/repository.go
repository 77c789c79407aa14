package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
)

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileExists        = errors.New("profile already exists")
	ErrProfileEmailExists   = errors.New("profile with email already exists")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrVideoSessionNotFound = errors.New("video session not found")
	ErrRoomExists           = errors.New("video room already exists")

	// ErrUnavailable marks transient storage failures that may succeed on retry.
	ErrUnavailable = errors.New("storage unavailable")
)

const defaultPageSize = 100

type ProfileFilter struct {
	Role       domain.Role
	ActiveOnly bool
}

// MessagePage selects messages with Seq > AfterSeq, ascending.
type MessagePage struct {
	AfterSeq int64
	Limit    int
}

func (p MessagePage) limit() int {
	if p.Limit <= 0 || p.Limit > 500 {
		return defaultPageSize
	}
	return p.Limit
}

// AppointmentFilter matches appointments intersecting [From, To). Zero bounds are open.
type AppointmentFilter struct {
	Statuses []domain.AppointmentStatus
	From     time.Time
	To       time.Time
}

func (f AppointmentFilter) match(a *domain.Appointment) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.To.IsZero() && !a.ScheduledStart.Before(f.To) {
		return false
	}
	if !f.From.IsZero() && !a.ScheduledEnd.After(f.From) {
		return false
	}
	return true
}

type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	Update(ctx context.Context, profile *domain.Profile) error
	List(ctx context.Context, filter ProfileFilter) ([]*domain.Profile, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	// GetForUpdate reads the row and locks it until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	FindActive(ctx context.Context, studentID, counselorID uuid.UUID) (*domain.Conversation, error)
	Update(ctx context.Context, conv *domain.Conversation) error
	// ListByParticipant returns conversations of the profile, most recent activity first.
	ListByParticipant(ctx context.Context, profileID uuid.UUID) ([]*domain.Conversation, error)
}

type MessageRepository interface {
	// Create assigns the next per-conversation Seq to msg.
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, page MessagePage) ([]*domain.Message, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MessageStatus, at time.Time) error
}

type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	Update(ctx context.Context, appt *domain.Appointment) error
	// ListByParticipant returns appointments of the profile ordered by scheduled start.
	ListByParticipant(ctx context.Context, profileID uuid.UUID, filter AppointmentFilter) ([]*domain.Appointment, error)
}

type VideoSessionRepository interface {
	// Create fails with ErrRoomExists when the room id is taken.
	Create(ctx context.Context, session *domain.VideoSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VideoSession, error)
	GetByRoomID(ctx context.Context, roomID string) (*domain.VideoSession, error)
	Update(ctx context.Context, session *domain.VideoSession) error
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*domain.VideoSession, error)
}

type Repositories interface {
	Profiles() ProfileRepository
	Conversations() ConversationRepository
	Messages() MessageRepository
	Appointments() AppointmentRepository
	VideoSessions() VideoSessionRepository
}

// Store runs fn atomically: either every write made through tx is kept or none is.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}
