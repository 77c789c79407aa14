package service

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAdhocRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.video.CreateRoom(ctx, f.student, CreateRoomInput{Invitees: []uuid.UUID{f.counselor.ID}})
	require.NoError(t, err)
	assert.Equal(t, "counsel-adhoc-"+strconv.FormatInt(f.now.UnixMilli(), 10), room.RoomID)
	assert.Equal(t, "https://meet.example.org/"+room.RoomID, room.URL)
	assert.ElementsMatch(t, []uuid.UUID{f.student.ID, f.counselor.ID}, room.Participants)

	second, err := f.video.CreateRoom(ctx, f.student, CreateRoomInput{})
	require.NoError(t, err)
	assert.NotEqual(t, room.RoomID, second.RoomID)

	_, err = f.video.GetRoom(ctx, f.stranger, room.RoomID)
	assert.ErrorIs(t, err, access.ErrPolicyDenied)

	got, err := f.video.GetRoom(ctx, f.counselor, room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)
}

func TestRegisterRoomRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.video.CreateRoom(ctx, f.student, CreateRoomInput{Context: "intake"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.RoomID, "counsel-intake-"))

	_, err = f.video.RegisterRoom(ctx, f.counselor, RegisterRoomInput{RoomID: created.RoomID})
	assert.ErrorIs(t, err, repository.ErrRoomExists)

	registered, err := f.video.RegisterRoom(ctx, f.counselor, RegisterRoomInput{RoomID: "external-42"})
	require.NoError(t, err)
	assert.Equal(t, "external-42", registered.RoomID)

	_, err = f.video.CreateRoom(ctx, f.student, CreateRoomInput{Invitees: []uuid.UUID{uuid.New()}})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAppointmentRoomHonoursJoinWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := f.now.Add(24 * time.Hour)
	appt := f.book(t, start, domain.AppointmentVideo)

	_, err := f.video.CreateRoom(ctx, f.student, CreateRoomInput{AppointmentID: &appt.ID})
	assert.ErrorIs(t, err, ErrJoinWindowClosed)

	f.now = start.Add(-10 * time.Minute)
	room, err := f.video.CreateRoom(ctx, f.counselor, CreateRoomInput{AppointmentID: &appt.ID})
	require.NoError(t, err)
	require.NotNil(t, room.AppointmentID)
	assert.True(t, strings.HasPrefix(room.RoomID, "counsel-appt-"+appt.ID.String()[:8]))

	_, err = f.video.CreateRoom(ctx, f.stranger, CreateRoomInput{AppointmentID: &appt.ID})
	assert.ErrorIs(t, err, access.ErrPolicyDenied)

	rooms, err := f.video.ListRoomsForAppointment(ctx, f.student, appt.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.RoomID, rooms[0].RoomID)

	_, err = f.video.ListRoomsForAppointment(ctx, f.stranger, appt.ID)
	assert.ErrorIs(t, err, access.ErrPolicyDenied)
}

func TestCallLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.video.CreateRoom(ctx, f.student, CreateRoomInput{Invitees: []uuid.UUID{f.counselor.ID}})
	require.NoError(t, err)

	started, err := f.video.StartCall(ctx, f.counselor, room.RoomID)
	require.NoError(t, err)
	require.NotNil(t, started.CallStartedAt)

	f.now = f.now.Add(25*time.Minute + 400*time.Millisecond)
	ended, err := f.video.EndCall(ctx, f.student, room.RoomID)
	require.NoError(t, err)
	assert.True(t, ended.Ended())
	assert.Equal(t, 25*time.Minute, ended.CallDuration)

	_, err = f.video.StartCall(ctx, f.student, room.RoomID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.video.EndCall(ctx, f.stranger, room.RoomID)
	assert.ErrorIs(t, err, access.ErrPolicyDenied)
}
