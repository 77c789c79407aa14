package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JoinLead is how long before the scheduled start a video call may be joined.
const JoinLead = 15 * time.Minute

type AppointmentType string

const (
	AppointmentChat     AppointmentType = "chat"
	AppointmentVideo    AppointmentType = "video"
	AppointmentInPerson AppointmentType = "in_person"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case AppointmentChat, AppointmentVideo, AppointmentInPerson:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	AppointmentScheduled  AppointmentStatus = "scheduled"
	AppointmentConfirmed  AppointmentStatus = "confirmed"
	AppointmentInProgress AppointmentStatus = "in_progress"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentScheduled:  {AppointmentConfirmed, AppointmentInProgress, AppointmentCancelled},
	AppointmentConfirmed:  {AppointmentInProgress, AppointmentCancelled},
	AppointmentInProgress: {AppointmentCompleted, AppointmentCancelled},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentConfirmed, AppointmentInProgress,
		AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentCompleted || s == AppointmentCancelled
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var ErrInvalidSchedule = errors.New("scheduled start must be before scheduled end")

type Appointment struct {
	ID             uuid.UUID         `json:"id"`
	StudentID      uuid.UUID         `json:"student_id"`
	CounselorID    uuid.UUID         `json:"counselor_id"`
	ConversationID *uuid.UUID        `json:"conversation_id,omitempty"`
	Type           AppointmentType   `json:"appointment_type"`
	Status         AppointmentStatus `json:"status"`
	ScheduledStart time.Time         `json:"scheduled_start"`
	ScheduledEnd   time.Time         `json:"scheduled_end"`
	Notes          string            `json:"notes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func NewAppointment(studentID, counselorID uuid.UUID, typ AppointmentType, start, end time.Time) *Appointment {
	now := time.Now().UTC()
	return &Appointment{
		ID:             uuid.New(),
		StudentID:      studentID,
		CounselorID:    counselorID,
		Type:           typ,
		Status:         AppointmentScheduled,
		ScheduledStart: start.UTC(),
		ScheduledEnd:   end.UTC(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate checks the invariants every accepted create or update must hold.
func (a *Appointment) Validate() error {
	var fields []FieldError
	if !a.Type.Valid() {
		fields = append(fields, FieldError{Field: "appointment_type", Error: "unknown appointment type"})
	}
	if !a.Status.Valid() {
		fields = append(fields, FieldError{Field: "status", Error: "unknown appointment status"})
	}
	if a.StudentID == uuid.Nil || a.CounselorID == uuid.Nil {
		fields = append(fields, FieldError{Field: "participants", Error: "student and counselor are required"})
	}
	if a.StudentID == a.CounselorID {
		fields = append(fields, FieldError{Field: "counselor_id", Error: "counselor must differ from student"})
	}
	if !a.ScheduledStart.Before(a.ScheduledEnd) {
		return NewValidationError(ErrInvalidSchedule, append(fields, FieldError{
			Field: "scheduled_end", Error: ErrInvalidSchedule.Error(),
		})...)
	}
	if len(fields) > 0 {
		return NewValidationError(nil, fields...)
	}
	return nil
}

func (a *Appointment) HasParticipant(id uuid.UUID) bool {
	return id != uuid.Nil && (id == a.StudentID || id == a.CounselorID)
}

// Overlaps reports whether both appointments occupy a common instant. Cancelled
// appointments never overlap anything.
func (a *Appointment) Overlaps(other *Appointment) bool {
	if a.Status == AppointmentCancelled || other.Status == AppointmentCancelled {
		return false
	}
	return a.ScheduledStart.Before(other.ScheduledEnd) && other.ScheduledStart.Before(a.ScheduledEnd)
}

// JoinWindow returns the closed interval during which the call may be joined.
func (a *Appointment) JoinWindow() (opens, closes time.Time) {
	return a.ScheduledStart.Add(-JoinLead), a.ScheduledEnd
}

// Joinable is recomputed on every call; the result must not be cached across time.
func (a *Appointment) Joinable(now time.Time) bool {
	if a.Type != AppointmentVideo || a.Status == AppointmentCancelled {
		return false
	}
	opens, closes := a.JoinWindow()
	return !now.Before(opens) && !now.After(closes)
}
