package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/notify"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/lib/logger/sl"
)

type BookAppointmentInput struct {
	CounselorID    uuid.UUID              `json:"counselor_id"`
	ConversationID *uuid.UUID             `json:"conversation_id"`
	Type           domain.AppointmentType `json:"appointment_type" validate:"required,oneof=chat video in_person"`
	ScheduledStart time.Time              `json:"scheduled_start"`
	ScheduledEnd   time.Time              `json:"scheduled_end"`
	Notes          string                 `json:"notes" validate:"max=2000"`
}

type RescheduleInput struct {
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	Notes          *string   `json:"notes" validate:"omitempty,max=2000"`
}

// JoinInfo is computed from the clock on every request.
type JoinInfo struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Opens         time.Time `json:"opens_at"`
	Closes        time.Time `json:"closes_at"`
	Joinable      bool      `json:"joinable"`
	CheckedAt     time.Time `json:"checked_at"`
}

// noticeTimeout bounds one notification, retries included.
const noticeTimeout = 30 * time.Second

type AppointmentService struct {
	txRunner
	notifier notify.Notifier
	notices  sync.WaitGroup
	log      *slog.Logger
}

func NewAppointmentService(store repository.Store, notifier notify.Notifier, log *slog.Logger, opts ...Option) *AppointmentService {
	if log == nil {
		log = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(log)
	}
	return &AppointmentService{
		txRunner: buildOptions(opts).runner(store),
		notifier: notifier,
		log:      log,
	}
}

func (s *AppointmentService) BookAppointment(ctx context.Context, caller access.Caller, in BookAppointmentInput) (*domain.Appointment, error) {
	const op = "service.appointment.book"
	log := s.log.With(
		slog.String("op", op),
		slog.String("student_id", caller.ID.String()),
		slog.String("counselor_id", in.CounselorID.String()),
	)

	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.CounselorID == uuid.Nil {
		return nil, fieldError("counselor_id", "counselor_id is a required field")
	}

	appt := domain.NewAppointment(caller.ID, in.CounselorID, in.Type, in.ScheduledStart, in.ScheduledEnd)
	appt.Notes = in.Notes
	appt.ConversationID = in.ConversationID
	appt.CreatedAt = s.clock()
	appt.UpdatedAt = appt.CreatedAt
	if err := appt.Validate(); err != nil {
		return nil, err
	}

	var student, counselor *domain.Profile
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		if err := access.Check(caller, access.Insert, access.ForAppointment(appt)); err != nil {
			return err
		}
		if err := requireRole(ctx, tx, appt.StudentID, domain.RoleStudent, "student_id"); err != nil {
			return err
		}
		if err := requireRole(ctx, tx, appt.CounselorID, domain.RoleCounselor, "counselor_id"); err != nil {
			return err
		}

		if appt.ConversationID != nil {
			conv, err := readConversation(ctx, tx, caller, *appt.ConversationID)
			if err != nil {
				return err
			}
			if conv.StudentID != appt.StudentID || conv.CounselorID != appt.CounselorID {
				return fieldError("conversation_id", "conversation belongs to other participants")
			}
		}

		if err := checkSlot(ctx, tx, appt); err != nil {
			return err
		}
		if err := tx.Appointments().Create(ctx, appt); err != nil {
			return err
		}

		var err error
		if student, err = tx.Profiles().GetByID(ctx, appt.StudentID); err != nil {
			return err
		}
		counselor, err = tx.Profiles().GetByID(ctx, appt.CounselorID)
		return err
	})
	if err != nil {
		log.Info("appointment not booked", sl.Err(err))
		return nil, err
	}

	log.Info("appointment booked", slog.String("appointment_id", appt.ID.String()))
	s.sendNotice(ctx, log, s.notifier.AppointmentBooked, notify.AppointmentNotice{
		Appointment: appt, Actor: student, Recipient: counselor,
	})
	return appt, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, caller access.Caller, id uuid.UUID) (*domain.Appointment, error) {
	var appt *domain.Appointment
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		var err error
		appt, err = readAppointment(ctx, tx, caller, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *AppointmentService) ListAppointments(ctx context.Context, caller access.Caller, filter repository.AppointmentFilter) ([]*domain.Appointment, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, fieldError("status", "unknown appointment status")
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, fieldError("to", "to must be after from")
	}

	var result []*domain.Appointment
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		appts, err := tx.Appointments().ListByParticipant(ctx, caller.ID, filter)
		if err != nil {
			return err
		}
		result = make([]*domain.Appointment, 0, len(appts))
		for _, a := range appts {
			if access.Allowed(caller, access.Read, access.ForAppointment(a)) {
				result = append(result, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AppointmentService) UpdateAppointmentStatus(ctx context.Context, caller access.Caller, id uuid.UUID, status domain.AppointmentStatus) (*domain.Appointment, error) {
	const op = "service.appointment.status"
	log := s.log.With(
		slog.String("op", op),
		slog.String("appointment_id", id.String()),
		slog.String("status", string(status)),
	)

	if !status.Valid() {
		return nil, fieldError("status", "unknown appointment status")
	}

	var (
		appt             *domain.Appointment
		actor, recipient *domain.Profile
	)
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		var err error
		appt, err = tx.Appointments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Check(caller, access.Update, access.ForAppointment(appt)); err != nil {
			return err
		}
		if !appt.Status.CanTransitionTo(status) {
			return ErrInvalidTransition
		}

		appt.Status = status
		appt.UpdatedAt = s.clock()
		if err := appt.Validate(); err != nil {
			return err
		}
		if err := tx.Appointments().Update(ctx, appt); err != nil {
			return err
		}
		actor, recipient, err = parties(ctx, tx, appt, caller.ID)
		return err
	})
	if err != nil {
		log.Info("appointment status not changed", sl.Err(err))
		return nil, err
	}

	log.Info("appointment status changed")
	s.notifyStatus(ctx, log, appt, actor, recipient)
	return appt, nil
}

func (s *AppointmentService) RescheduleAppointment(ctx context.Context, caller access.Caller, id uuid.UUID, in RescheduleInput) (*domain.Appointment, error) {
	const op = "service.appointment.reschedule"
	log := s.log.With(
		slog.String("op", op),
		slog.String("appointment_id", id.String()),
	)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	var (
		appt             *domain.Appointment
		actor, recipient *domain.Profile
	)
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		var err error
		appt, err = tx.Appointments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Check(caller, access.Update, access.ForAppointment(appt)); err != nil {
			return err
		}
		if appt.Status.Terminal() || appt.Status == domain.AppointmentInProgress {
			return ErrInvalidTransition
		}

		appt.ScheduledStart = in.ScheduledStart.UTC()
		appt.ScheduledEnd = in.ScheduledEnd.UTC()
		if in.Notes != nil {
			appt.Notes = *in.Notes
		}
		appt.UpdatedAt = s.clock()
		if err := appt.Validate(); err != nil {
			return err
		}
		if err := checkSlot(ctx, tx, appt); err != nil {
			return err
		}
		if err := tx.Appointments().Update(ctx, appt); err != nil {
			return err
		}
		actor, recipient, err = parties(ctx, tx, appt, caller.ID)
		return err
	})
	if err != nil {
		log.Info("appointment not rescheduled", sl.Err(err))
		return nil, err
	}

	log.Info("appointment rescheduled")
	s.notifyStatus(ctx, log, appt, actor, recipient)
	return appt, nil
}

func (s *AppointmentService) JoinWindow(ctx context.Context, caller access.Caller, id uuid.UUID) (*JoinInfo, error) {
	var appt *domain.Appointment
	err := s.inTx(ctx, caller, func(tx repository.Repositories) error {
		var err error
		appt, err = readAppointment(ctx, tx, caller, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.clock()
	opens, closes := appt.JoinWindow()
	return &JoinInfo{
		AppointmentID: appt.ID,
		Opens:         opens,
		Closes:        closes,
		Joinable:      appt.Joinable(now),
		CheckedAt:     now,
	}, nil
}

func (s *AppointmentService) notifyStatus(ctx context.Context, log *slog.Logger, appt *domain.Appointment, actor, recipient *domain.Profile) {
	s.sendNotice(ctx, log, s.notifier.AppointmentStatusChanged, notify.AppointmentNotice{
		Appointment: appt, Actor: actor, Recipient: recipient,
	})
}

// sendNotice delivers notice in the background so the caller's response does not wait
// on the mail provider. The request context is detached; its values are kept.
func (s *AppointmentService) sendNotice(ctx context.Context, log *slog.Logger, send func(context.Context, notify.AppointmentNotice) error, notice notify.AppointmentNotice) {
	ctx = context.WithoutCancel(ctx)

	s.notices.Add(1)
	go func() {
		defer s.notices.Done()

		ctx, cancel := context.WithTimeout(ctx, noticeTimeout)
		defer cancel()
		if err := send(ctx, notice); err != nil {
			log.Warn("appointment notification failed", sl.Err(err))
		}
	}()
}

// WaitNotices blocks until every notification started so far has finished.
func (s *AppointmentService) WaitNotices() {
	s.notices.Wait()
}

// checkSlot rejects appt when its counselor already has an overlapping live appointment.
func checkSlot(ctx context.Context, tx repository.Repositories, appt *domain.Appointment) error {
	busy, err := tx.Appointments().ListByParticipant(ctx, appt.CounselorID, repository.AppointmentFilter{
		Statuses: []domain.AppointmentStatus{
			domain.AppointmentScheduled, domain.AppointmentConfirmed, domain.AppointmentInProgress,
		},
		From: appt.ScheduledStart,
		To:   appt.ScheduledEnd,
	})
	if err != nil {
		return err
	}
	for _, other := range busy {
		if other.ID != appt.ID && other.CounselorID == appt.CounselorID && appt.Overlaps(other) {
			return ErrSlotTaken
		}
	}
	return nil
}

func readAppointment(ctx context.Context, tx repository.Repositories, caller access.Caller, id uuid.UUID) (*domain.Appointment, error) {
	appt, err := tx.Appointments().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Check(caller, access.Read, access.ForAppointment(appt)); err != nil {
		return nil, err
	}
	return appt, nil
}

func parties(ctx context.Context, tx repository.Repositories, appt *domain.Appointment, actorID uuid.UUID) (actor, recipient *domain.Profile, err error) {
	recipientID := appt.CounselorID
	if actorID == appt.CounselorID {
		recipientID = appt.StudentID
	}
	if actor, err = tx.Profiles().GetByID(ctx, actorID); err != nil {
		return nil, nil, err
	}
	if recipient, err = tx.Profiles().GetByID(ctx, recipientID); err != nil {
		return nil, nil, err
	}
	return actor, recipient, nil
}
