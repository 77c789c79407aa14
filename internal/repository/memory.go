package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
)

type memState struct {
	profiles      map[uuid.UUID]*domain.Profile
	emails        map[string]uuid.UUID
	conversations map[uuid.UUID]*domain.Conversation
	messages      map[uuid.UUID]*domain.Message
	messageSeq    map[uuid.UUID]int64
	appointments  map[uuid.UUID]*domain.Appointment
	videoSessions map[uuid.UUID]*domain.VideoSession
	rooms         map[string]uuid.UUID
}

func newMemState() *memState {
	return &memState{
		profiles:      make(map[uuid.UUID]*domain.Profile),
		emails:        make(map[string]uuid.UUID),
		conversations: make(map[uuid.UUID]*domain.Conversation),
		messages:      make(map[uuid.UUID]*domain.Message),
		messageSeq:    make(map[uuid.UUID]int64),
		appointments:  make(map[uuid.UUID]*domain.Appointment),
		videoSessions: make(map[uuid.UUID]*domain.VideoSession),
		rooms:         make(map[string]uuid.UUID),
	}
}

// clone copies the maps only. Stored rows are replaced on write, never mutated, so the
// pointers can be shared between a snapshot and the committed state.
func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.conversations {
		c.conversations[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = v
	}
	for k, v := range s.messageSeq {
		c.messageSeq[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.videoSessions {
		c.videoSessions[k] = v
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	return c
}

// memView hands out the state a repository call should work on together with the
// function releasing it.
type memView func() (*memState, func())

// InMemoryStore keeps every table in maps guarded by one mutex. Transactions work on a
// snapshot that replaces the committed state only when fn succeeds.
type InMemoryStore struct {
	mu    sync.Mutex
	state *memState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{state: newMemState()}
}

func (s *InMemoryStore) view() (*memState, func()) {
	s.mu.Lock()
	return s.state, s.mu.Unlock
}

func (s *InMemoryStore) Profiles() ProfileRepository {
	return &memProfiles{v: s.view}
}

func (s *InMemoryStore) Conversations() ConversationRepository {
	return &memConversations{v: s.view}
}

func (s *InMemoryStore) Messages() MessageRepository {
	return &memMessages{v: s.view}
}

func (s *InMemoryStore) Appointments() AppointmentRepository {
	return &memAppointments{v: s.view}
}

func (s *InMemoryStore) VideoSessions() VideoSessionRepository {
	return &memVideoSessions{v: s.view}
}

// WithinTx serialises transactions. fn must only use the repositories of tx; calling
// the store itself from inside fn deadlocks.
func (s *InMemoryStore) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	tx := &memTx{v: func() (*memState, func()) { return snapshot, func() {} }}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = snapshot
	return nil
}

type memTx struct {
	v memView
}

func (t *memTx) Profiles() ProfileRepository { return &memProfiles{v: t.v} }
func (t *memTx) Conversations() ConversationRepository { return &memConversations{v: t.v} }
func (t *memTx) Messages() MessageRepository { return &memMessages{v: t.v} }
func (t *memTx) Appointments() AppointmentRepository { return &memAppointments{v: t.v} }
func (t *memTx) VideoSessions() VideoSessionRepository { return &memVideoSessions{v: t.v} }

type memProfiles struct {
	v memView
}

func (r *memProfiles) Create(ctx context.Context, profile *domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, release := r.v()
	defer release()

	if _, ok := st.profiles[profile.ID]; ok {
		return ErrProfileExists
	}
	email := domain.NormalizeEmail(profile.Email)
	if _, ok := st.emails[email]; ok {
		return ErrProfileEmailExists
	}

	cp := *profile
	st.profiles[cp.ID] = &cp
	st.emails[email] = cp.ID
	return nil
}

func (r *memProfiles) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	p, ok := st.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProfiles) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	id, ok := st.emails[domain.NormalizeEmail(email)]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *st.profiles[id]
	return &cp, nil
}

func (r *memProfiles) Update(ctx context.Context, profile *domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, release := r.v()
	defer release()

	old, ok := st.profiles[profile.ID]
	if !ok {
		return ErrProfileNotFound
	}
	email := domain.NormalizeEmail(profile.Email)
	if owner, taken := st.emails[email]; taken && owner != profile.ID {
		return ErrProfileEmailExists
	}

	delete(st.emails, domain.NormalizeEmail(old.Email))
	cp := *profile
	st.profiles[cp.ID] = &cp
	st.emails[email] = cp.ID
	return nil
}

func (r *memProfiles) List(ctx context.Context, filter ProfileFilter) ([]*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	result := make([]*domain.Profile, 0, len(st.profiles))
	for _, p := range st.profiles {
		if filter.Role != "" && p.Role != filter.Role {
			continue
		}
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FullName != result[j].FullName {
			return result[i].FullName < result[j].FullName
		}
		return result[i].Email < result[j].Email
	})
	return result, nil
}

type memConversations struct {
	v memView
}

func (r *memConversations) Create(ctx context.Context, conv *domain.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, release := r.v()
	defer release()

	if _, ok := st.profiles[conv.StudentID]; !ok {
		return ErrProfileNotFound
	}
	if _, ok := st.profiles[conv.CounselorID]; !ok {
		return ErrProfileNotFound
	}

	cp := *conv
	st.conversations[cp.ID] = &cp
	return nil
}

func (r *memConversations) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	c, ok := st.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memConversations) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return r.GetByID(ctx, id)
}

func (r *memConversations) FindActive(ctx context.Context, studentID, counselorID uuid.UUID) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	var found *domain.Conversation
	for _, c := range st.conversations {
		if c.StudentID != studentID || c.CounselorID != counselorID || c.Status != domain.ConversationActive {
			continue
		}
		if found == nil || c.LastMessageAt.After(found.LastMessageAt) {
			found = c
		}
	}
	if found == nil {
		return nil, ErrConversationNotFound
	}
	cp := *found
	return &cp, nil
}

func (r *memConversations) Update(ctx context.Context, conv *domain.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, release := r.v()
	defer release()

	if _, ok := st.conversations[conv.ID]; !ok {
		return ErrConversationNotFound
	}
	cp := *conv
	st.conversations[cp.ID] = &cp
	return nil
}

func (r *memConversations) ListByParticipant(ctx context.Context, profileID uuid.UUID) ([]*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	result := make([]*domain.Conversation, 0)
	for _, c := range st.conversations {
		if !c.HasParticipant(profileID) {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastMessageAt.Equal(result[j].LastMessageAt) {
			return result[i].LastMessageAt.After(result[j].LastMessageAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

type memMessages struct {
	v memView
}

func (r *memMessages) Create(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, release := r.v()
	defer release()

	if _, ok := st.conversations[msg.ConversationID]; !ok {
		return ErrConversationNotFound
	}

	st.messageSeq[msg.ConversationID]++
	msg.Seq = st.messageSeq[msg.ConversationID]

	cp := *msg
	st.messages[cp.ID] = &cp
	return nil
}

func (r *memMessages) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	m, ok := st.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memMessages) ListByConversation(ctx context.Context, conversationID uuid.UUID, page MessagePage) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	result := make([]*domain.Message, 0)
	for _, m := range st.messages {
		if m.ConversationID != conversationID || m.Seq <= page.AfterSeq {
			continue
		}
		cp := *m
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	if limit := page.limit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memMessages) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MessageStatus, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, release := r.v()
	defer release()

	m, ok := st.messages[id]
	if !ok {
		return ErrMessageNotFound
	}
	cp := *m
	cp.Status = status
	cp.UpdatedAt = at.UTC()
	st.messages[id] = &cp
	return nil
}

type memAppointments struct {
	v memView
}

func (r *memAppointments) Create(ctx context.Context, appt *domain.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, release := r.v()
	defer release()

	if _, ok := st.profiles[appt.StudentID]; !ok {
		return ErrProfileNotFound
	}
	if _, ok := st.profiles[appt.CounselorID]; !ok {
		return ErrProfileNotFound
	}
	if appt.ConversationID != nil {
		if _, ok := st.conversations[*appt.ConversationID]; !ok {
			return ErrConversationNotFound
		}
	}

	cp := copyAppointment(appt)
	st.appointments[cp.ID] = cp
	return nil
}

func (r *memAppointments) GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	a, ok := st.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return copyAppointment(a), nil
}

func (r *memAppointments) Update(ctx context.Context, appt *domain.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, release := r.v()
	defer release()

	if _, ok := st.appointments[appt.ID]; !ok {
		return ErrAppointmentNotFound
	}
	st.appointments[appt.ID] = copyAppointment(appt)
	return nil
}

func (r *memAppointments) ListByParticipant(ctx context.Context, profileID uuid.UUID, filter AppointmentFilter) ([]*domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	result := make([]*domain.Appointment, 0)
	for _, a := range st.appointments {
		if !a.HasParticipant(profileID) || !filter.match(a) {
			continue
		}
		result = append(result, copyAppointment(a))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledStart.Before(result[j].ScheduledStart)
	})
	return result, nil
}

func copyAppointment(a *domain.Appointment) *domain.Appointment {
	cp := *a
	if a.ConversationID != nil {
		id := *a.ConversationID
		cp.ConversationID = &id
	}
	return &cp
}

type memVideoSessions struct {
	v memView
}

func (r *memVideoSessions) Create(ctx context.Context, session *domain.VideoSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, release := r.v()
	defer release()

	if _, ok := st.rooms[session.RoomID]; ok {
		return ErrRoomExists
	}
	if session.AppointmentID != nil {
		if _, ok := st.appointments[*session.AppointmentID]; !ok {
			return ErrAppointmentNotFound
		}
	}

	st.videoSessions[session.ID] = copyVideoSession(session)
	st.rooms[session.RoomID] = session.ID
	return nil
}

func (r *memVideoSessions) GetByID(ctx context.Context, id uuid.UUID) (*domain.VideoSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	v, ok := st.videoSessions[id]
	if !ok {
		return nil, ErrVideoSessionNotFound
	}
	return copyVideoSession(v), nil
}

func (r *memVideoSessions) GetByRoomID(ctx context.Context, roomID string) (*domain.VideoSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	id, ok := st.rooms[roomID]
	if !ok {
		return nil, ErrVideoSessionNotFound
	}
	return copyVideoSession(st.videoSessions[id]), nil
}

func (r *memVideoSessions) Update(ctx context.Context, session *domain.VideoSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, release := r.v()
	defer release()

	old, ok := st.videoSessions[session.ID]
	if !ok {
		return ErrVideoSessionNotFound
	}
	if owner, taken := st.rooms[session.RoomID]; taken && owner != session.ID {
		return ErrRoomExists
	}

	delete(st.rooms, old.RoomID)
	st.videoSessions[session.ID] = copyVideoSession(session)
	st.rooms[session.RoomID] = session.ID
	return nil
}

func (r *memVideoSessions) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*domain.VideoSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, release := r.v()
	defer release()

	result := make([]*domain.VideoSession, 0)
	for _, v := range st.videoSessions {
		if v.AppointmentID == nil || *v.AppointmentID != appointmentID {
			continue
		}
		result = append(result, copyVideoSession(v))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func copyVideoSession(v *domain.VideoSession) *domain.VideoSession {
	cp := *v
	cp.Participants = append([]uuid.UUID(nil), v.Participants...)
	if v.AppointmentID != nil {
		id := *v.AppointmentID
		cp.AppointmentID = &id
	}
	if v.CallStartedAt != nil {
		t := *v.CallStartedAt
		cp.CallStartedAt = &t
	}
	if v.CallEndedAt != nil {
		t := *v.CallEndedAt
		cp.CallEndedAt = &t
	}
	return &cp
}
