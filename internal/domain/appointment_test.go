package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentJoinable(t *testing.T) {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	appt := NewAppointment(uuid.New(), uuid.New(), AppointmentVideo, start, start.Add(30*time.Minute))

	tests := []struct {
		name   string
		now    time.Time
		status AppointmentStatus
		typ    AppointmentType
		want   bool
	}{
		{name: "16 minutes early", now: start.Add(-16 * time.Minute), want: false},
		{name: "window opens", now: start.Add(-15 * time.Minute), want: true},
		{name: "at start", now: start, want: true},
		{name: "at end", now: start.Add(30 * time.Minute), want: true},
		{name: "one minute after end", now: start.Add(31 * time.Minute), want: false},
		{name: "cancelled", now: start, status: AppointmentCancelled, want: false},
		{name: "confirmed", now: start.Add(-5 * time.Minute), status: AppointmentConfirmed, want: true},
		{name: "not a video appointment", now: start, typ: AppointmentChat, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := *appt
			if tt.status != "" {
				a.Status = tt.status
			}
			if tt.typ != "" {
				a.Type = tt.typ
			}
			assert.Equal(t, tt.want, a.Joinable(tt.now))
		})
	}
}

func TestAppointmentValidate(t *testing.T) {
	start := time.Now().Add(time.Hour)

	valid := NewAppointment(uuid.New(), uuid.New(), AppointmentVideo, start, start.Add(time.Hour))
	require.NoError(t, valid.Validate())

	equal := NewAppointment(uuid.New(), uuid.New(), AppointmentVideo, start, start)
	err := equal.Validate()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.True(t, errors.Is(err, ErrInvalidSchedule))

	reversed := NewAppointment(uuid.New(), uuid.New(), AppointmentChat, start, start.Add(-time.Minute))
	assert.ErrorIs(t, reversed.Validate(), ErrInvalidSchedule)

	same := uuid.New()
	selfBooked := NewAppointment(same, same, AppointmentChat, start, start.Add(time.Hour))
	require.ErrorAs(t, selfBooked.Validate(), &vErr)
	assert.Equal(t, "counselor_id", vErr.Fields[0].Field)
}

func TestAppointmentTransitions(t *testing.T) {
	assert.True(t, AppointmentScheduled.CanTransitionTo(AppointmentConfirmed))
	assert.True(t, AppointmentConfirmed.CanTransitionTo(AppointmentInProgress))
	assert.True(t, AppointmentInProgress.CanTransitionTo(AppointmentCompleted))
	assert.False(t, AppointmentCompleted.CanTransitionTo(AppointmentScheduled))
	assert.False(t, AppointmentCancelled.CanTransitionTo(AppointmentConfirmed))
	assert.False(t, AppointmentScheduled.CanTransitionTo(AppointmentCompleted))
	assert.True(t, AppointmentCancelled.Terminal())
}

func TestAppointmentOverlaps(t *testing.T) {
	start := time.Now()
	a := NewAppointment(uuid.New(), uuid.New(), AppointmentVideo, start, start.Add(time.Hour))
	b := NewAppointment(uuid.New(), a.CounselorID, AppointmentVideo, start.Add(30*time.Minute), start.Add(90*time.Minute))
	c := NewAppointment(uuid.New(), a.CounselorID, AppointmentVideo, start.Add(time.Hour), start.Add(2*time.Hour))

	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(c), "back-to-back appointments do not overlap")

	b.Status = AppointmentCancelled
	assert.False(t, a.Overlaps(b))
}
