package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/lib/logger/sl"
)

const maxRoomIDAttempts = 5

type CreateRoomInput struct {
	AppointmentID *uuid.UUID  `json:"appointment_id"`
	Context       string      `json:"context" validate:"max=64"`
	Invitees      []uuid.UUID `json:"invitees" validate:"max=16"`
}

type RegisterRoomInput struct {
	RoomID        string      `json:"room_id" validate:"required,max=255"`
	AppointmentID *uuid.UUID  `json:"appointment_id"`
	Invitees      []uuid.UUID `json:"invitees" validate:"max=16"`
}

// Room is a video session together with the link participants open.
type Room struct {
	*domain.VideoSession
	URL string `json:"url"`
}

type VideoService struct {
	txRunner
	provider  string
	namespace string
	log       *slog.Logger
}

func NewVideoService(store repository.Store, provider, namespace string, log *slog.Logger, opts ...Option) *VideoService {
	if log == nil {
		log = slog.Default()
	}
	return &VideoService{
		txRunner:  buildOptions(opts).runner(store),
		provider:  provider,
		namespace: namespace,
		log:       log,
	}
}

// CreateRoom opens a room with a generated id. Rooms of an appointment can only be
// created while its join window is open; ad-hoc rooms include the caller and invitees.
func (s *VideoService) CreateRoom(ctx context.Context, caller access.Caller, in CreateRoomInput) (*Room, error) {
	const op = "service.video.create"
	log := s.log.With(
		slog.String("op", op),
		slog.String("caller", caller.ID.String()),
	)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	var session *domain.VideoSession
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		now := s.clock()
		draft, roomContext, err := s.draft(ctx, tx, caller, in.AppointmentID, in.Invitees, now)
		if err != nil {
			return err
		}
		if in.Context != "" {
			roomContext = in.Context
		}

		for attempt := 0; attempt < maxRoomIDAttempts; attempt++ {
			roomID := domain.NewRoomID(s.namespace, roomContext, now.Add(time.Duration(attempt)*time.Millisecond))
			_, err := tx.VideoSessions().GetByRoomID(ctx, roomID)
			if err == nil {
				continue
			}
			if !errors.Is(err, repository.ErrVideoSessionNotFound) {
				return err
			}
			draft.RoomID = roomID
			if err := tx.VideoSessions().Create(ctx, draft); err != nil {
				return err
			}
			session = draft
			return nil
		}
		return repository.ErrRoomExists
	})
	if err != nil {
		log.Info("room not created", sl.Err(err))
		return nil, err
	}

	log.Info("room created", slog.String("room_id", session.RoomID))
	return s.room(session), nil
}

// RegisterRoom records a room whose id was chosen elsewhere. Taken ids fail with
// repository.ErrRoomExists.
func (s *VideoService) RegisterRoom(ctx context.Context, caller access.Caller, in RegisterRoomInput) (*Room, error) {
	const op = "service.video.register"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", in.RoomID),
	)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	var session *domain.VideoSession
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		draft, _, err := s.draft(ctx, tx, caller, in.AppointmentID, in.Invitees, s.clock())
		if err != nil {
			return err
		}
		draft.RoomID = in.RoomID

		if _, err := tx.VideoSessions().GetByRoomID(ctx, in.RoomID); err == nil {
			return repository.ErrRoomExists
		} else if !errors.Is(err, repository.ErrVideoSessionNotFound) {
			return err
		}
		if err := tx.VideoSessions().Create(ctx, draft); err != nil {
			return err
		}
		session = draft
		return nil
	})
	if err != nil {
		log.Info("room not registered", sl.Err(err))
		return nil, err
	}
	return s.room(session), nil
}

func (s *VideoService) GetRoom(ctx context.Context, caller access.Caller, roomID string) (*Room, error) {
	var session *domain.VideoSession
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		var err error
		session, err = s.authorized(ctx, tx, caller, access.Read, roomID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.room(session), nil
}

func (s *VideoService) ListRoomsForAppointment(ctx context.Context, caller access.Caller, appointmentID uuid.UUID) ([]*Room, error) {
	var result []*Room
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		appt, err := tx.Appointments().GetByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := access.Check(caller, access.Read, access.ForVideoSession(&domain.VideoSession{}, appt)); err != nil {
			return err
		}

		sessions, err := tx.VideoSessions().ListByAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		result = make([]*Room, 0, len(sessions))
		for _, v := range sessions {
			result = append(result, s.room(v))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *VideoService) StartCall(ctx context.Context, caller access.Caller, roomID string) (*Room, error) {
	return s.mutate(ctx, caller, roomID, "service.video.start", func(v *domain.VideoSession, now time.Time) error {
		if v.Ended() {
			return ErrInvalidTransition
		}
		v.Start(now)
		return nil
	})
}

// EndCall records the end of the call and its duration. Ending twice keeps the first end.
func (s *VideoService) EndCall(ctx context.Context, caller access.Caller, roomID string) (*Room, error) {
	return s.mutate(ctx, caller, roomID, "service.video.end", func(v *domain.VideoSession, now time.Time) error {
		v.End(now)
		return nil
	})
}

func (s *VideoService) mutate(ctx context.Context, caller access.Caller, roomID, op string, apply func(*domain.VideoSession, time.Time) error) (*Room, error) {
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
	)

	var session *domain.VideoSession
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		var err error
		session, err = s.authorized(ctx, tx, caller, access.Update, roomID)
		if err != nil {
			return err
		}
		if err := apply(session, s.clock()); err != nil {
			return err
		}
		return tx.VideoSessions().Update(ctx, session)
	})
	if err != nil {
		log.Info("call not updated", sl.Err(err))
		return nil, err
	}

	log.Info("call updated", slog.Duration("duration", session.CallDuration))
	return s.room(session), nil
}

// draft builds an unsaved session for caller and checks that caller may create it.
// It returns the room context segment derived from the appointment.
func (s *VideoService) draft(ctx context.Context, tx repository.Repositories, caller access.Caller, appointmentID *uuid.UUID, invitees []uuid.UUID, now time.Time) (*domain.VideoSession, string, error) {
	if appointmentID == nil {
		participants := append([]uuid.UUID{caller.ID}, invitees...)
		for _, id := range invitees {
			if _, err := tx.Profiles().GetByID(ctx, id); err != nil {
				if errors.Is(err, repository.ErrProfileNotFound) {
					return nil, "", fieldError("invitees", "invitee "+id.String()+" does not exist")
				}
				return nil, "", err
			}
		}
		session := domain.NewVideoSession("", caller.ID, participants)
		session.CreatedAt = now
		if err := access.Check(caller, access.Insert, access.ForVideoSession(session, nil)); err != nil {
			return nil, "", err
		}
		return session, "adhoc", nil
	}

	appt, err := tx.Appointments().GetByID(ctx, *appointmentID)
	if err != nil {
		return nil, "", err
	}
	session := domain.NewVideoSession("", caller.ID, []uuid.UUID{appt.StudentID, appt.CounselorID})
	session.AppointmentID = &appt.ID
	session.CreatedAt = now
	if err := access.Check(caller, access.Insert, access.ForVideoSession(session, appt)); err != nil {
		return nil, "", err
	}
	if !appt.Joinable(now) {
		return nil, "", ErrJoinWindowClosed
	}
	return session, "appt-" + appt.ID.String()[:8], nil
}

func (s *VideoService) authorized(ctx context.Context, tx repository.Repositories, caller access.Caller, op access.Operation, roomID string) (*domain.VideoSession, error) {
	session, err := tx.VideoSessions().GetByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	var appt *domain.Appointment
	if session.AppointmentID != nil {
		appt, err = tx.Appointments().GetByID(ctx, *session.AppointmentID)
		if err != nil {
			return nil, err
		}
	}
	if err := access.Check(caller, op, access.ForVideoSession(session, appt)); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *VideoService) room(v *domain.VideoSession) *Room {
	return &Room{VideoSession: v, URL: v.RoomURL(s.provider)}
}
