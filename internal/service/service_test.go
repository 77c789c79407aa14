package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/notify"
	"github.com/immxrtalbeast/counsel_portal/internal/realtime"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/internal/retry"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	booked  []notify.AppointmentNotice
	changed []notify.AppointmentNotice
	// ctxErrs holds ctx.Err() as seen by each delivery.
	ctxErrs []error
	// gate, when set, holds every delivery until it is closed.
	gate chan struct{}
}

func (n *recordingNotifier) wait(ctx context.Context) {
	n.mu.Lock()
	gate := n.gate
	n.mu.Unlock()
	if gate != nil {
		<-gate
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
}

func (n *recordingNotifier) AppointmentBooked(ctx context.Context, notice notify.AppointmentNotice) error {
	n.wait(ctx)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked = append(n.booked, notice)
	return nil
}

func (n *recordingNotifier) AppointmentStatusChanged(ctx context.Context, notice notify.AppointmentNotice) error {
	n.wait(ctx)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, notice)
	return nil
}

func (n *recordingNotifier) bookedNotices() []notify.AppointmentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.AppointmentNotice(nil), n.booked...)
}

func (n *recordingNotifier) changedNotices() []notify.AppointmentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.AppointmentNotice(nil), n.changed...)
}

func (n *recordingNotifier) contextErrors() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]error(nil), n.ctxErrs...)
}

type fixture struct {
	store    *repository.InMemoryStore
	bridge   *realtime.Bridge
	notifier *recordingNotifier
	now      time.Time

	profiles      *ProfileService
	conversations *ConversationService
	appointments  *AppointmentService
	video         *VideoService

	student   access.Caller
	counselor access.Caller
	stranger  access.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    repository.NewInMemoryStore(),
		bridge:   realtime.NewBridge(nil, 16),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC),
	}
	t.Cleanup(f.bridge.Close)

	opts := []Option{
		WithClock(func() time.Time { return f.now }),
		WithRetry(retry.Policy{Attempts: 2, Initial: time.Millisecond, Max: time.Millisecond}),
	}
	f.profiles = NewProfileService(f.store, nil, opts...)
	f.conversations = NewConversationService(f.store, f.bridge, nil, opts...)
	f.appointments = NewAppointmentService(f.store, f.notifier, nil, opts...)
	t.Cleanup(f.appointments.WaitNotices)
	f.video = NewVideoService(f.store, "meet.example.org", "counsel", nil, opts...)

	f.student = f.signup(t, "sam@example.com", "Sam Student", domain.RoleStudent)
	f.counselor = f.signup(t, "casey@example.com", "Casey Counselor", domain.RoleCounselor)
	f.stranger = f.signup(t, "sky@example.com", "Sky Student", domain.RoleStudent)
	return f
}

func (f *fixture) signup(t *testing.T, email, name string, role domain.Role) access.Caller {
	t.Helper()
	ctx := context.Background()

	id := uuid.New()
	_, err := f.profiles.CreateProfile(ctx, access.Caller{ID: id}, CreateProfileInput{Email: email, FullName: name, Role: role})
	require.NoError(t, err)

	caller, err := f.profiles.ResolveCaller(ctx, id)
	require.NoError(t, err)
	require.Equal(t, role, caller.Role)
	return caller
}
