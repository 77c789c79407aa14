package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/repository/model"
	"github.com/jackc/pgx/v5/pgconn"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists the portal tables through gorm. It is used with Postgres in
// production and SQLite locally.
type GormStore struct {
	db  *gorm.DB
	rls bool
}

type GormOption func(*GormStore)

// WithSessionPolicies makes every transaction publish the acting caller to the
// database as app.profile_id, which the Postgres row-level policies read.
func WithSessionPolicies() GormOption {
	return func(s *GormStore) {
		s.rls = true
	}
}

func NewGormStore(db *gorm.DB, opts ...GormOption) *GormStore {
	s := &GormStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GormStore) Profiles() ProfileRepository {
	return &gormProfiles{db: s.db}
}

func (s *GormStore) Conversations() ConversationRepository {
	return &gormConversations{db: s.db}
}

func (s *GormStore) Messages() MessageRepository {
	return &gormMessages{db: s.db}
}

func (s *GormStore) Appointments() AppointmentRepository {
	return &gormAppointments{db: s.db}
}

func (s *GormStore) VideoSessions() VideoSessionRepository {
	return &gormVideoSessions{db: s.db}
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.rls {
			if caller, ok := access.CallerFrom(ctx); ok {
				if err := tx.Exec("SELECT set_config('app.profile_id', ?, true)", caller.ID.String()).Error; err != nil {
					return translate(err, "set session caller")
				}
			}
		}
		return fn(&gormTx{db: tx})
	})
	if err == nil {
		return nil
	}
	if isKnown(err) {
		return err
	}
	return translate(err, "transaction")
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) Profiles() ProfileRepository { return &gormProfiles{db: t.db} }
func (t *gormTx) Conversations() ConversationRepository { return &gormConversations{db: t.db} }
func (t *gormTx) Messages() MessageRepository { return &gormMessages{db: t.db} }
func (t *gormTx) Appointments() AppointmentRepository { return &gormAppointments{db: t.db} }
func (t *gormTx) VideoSessions() VideoSessionRepository { return &gormVideoSessions{db: t.db} }

type gormProfiles struct {
	db *gorm.DB
}

func (r *gormProfiles) Create(ctx context.Context, profile *domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if profile == nil {
		return errors.New("profile is nil")
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", profile.ID).Count(&count).Error; err != nil {
		return translate(err, "check profile id")
	}
	if count > 0 {
		return ErrProfileExists
	}

	if err := r.db.WithContext(ctx).Create(toModelProfile(profile)).Error; err != nil {
		if isDuplicate(err) {
			return ErrProfileEmailExists
		}
		return translate(err, "create profile")
	}
	return nil
}

func (r *gormProfiles) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var p model.Profile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, ErrProfileNotFound, "get profile")
	}
	return toDomainProfile(&p), nil
}

func (r *gormProfiles) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var p model.Profile
	if err := r.db.WithContext(ctx).First(&p, "email = ?", domain.NormalizeEmail(email)).Error; err != nil {
		return nil, translateNotFound(err, ErrProfileNotFound, "get profile by email")
	}
	return toDomainProfile(&p), nil
}

func (r *gormProfiles) Update(ctx context.Context, profile *domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if profile == nil {
		return errors.New("profile is nil")
	}

	m := toModelProfile(profile)
	res := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", m.ID).Updates(map[string]any{
		"email":      m.Email,
		"full_name":  m.FullName,
		"is_active":  m.IsActive,
		"updated_at": m.UpdatedAt,
	})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return ErrProfileEmailExists
		}
		return translate(res.Error, "update profile")
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *gormProfiles) List(ctx context.Context, filter ProfileFilter) ([]*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Model(&model.Profile{})
	if filter.Role != "" {
		q = q.Where("role = ?", string(filter.Role))
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var rows []model.Profile
	if err := q.Order("full_name, email").Find(&rows).Error; err != nil {
		return nil, translate(err, "list profiles")
	}

	result := make([]*domain.Profile, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainProfile(&rows[i]))
	}
	return result, nil
}

type gormConversations struct {
	db *gorm.DB
}

func (r *gormConversations) Create(ctx context.Context, conv *domain.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if conv == nil {
		return errors.New("conversation is nil")
	}

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(toModelConversation(conv)).Error; err != nil {
		return translate(err, "create conversation")
	}
	return nil
}

func (r *gormConversations) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var c model.Conversation
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, ErrConversationNotFound, "get conversation")
	}
	return toDomainConversation(&c), nil
}

func (r *gormConversations) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var c model.Conversation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err, ErrConversationNotFound, "lock conversation")
	}
	return toDomainConversation(&c), nil
}

func (r *gormConversations) FindActive(ctx context.Context, studentID, counselorID uuid.UUID) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var c model.Conversation
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND counselor_id = ? AND status = ?", studentID, counselorID, string(domain.ConversationActive)).
		Order("last_message_at DESC").
		First(&c).Error
	if err != nil {
		return nil, translateNotFound(err, ErrConversationNotFound, "find active conversation")
	}
	return toDomainConversation(&c), nil
}

func (r *gormConversations) Update(ctx context.Context, conv *domain.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if conv == nil {
		return errors.New("conversation is nil")
	}

	res := r.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]any{
		"status":          string(conv.Status),
		"last_message_at": conv.LastMessageAt.UTC(),
		"updated_at":      conv.UpdatedAt.UTC(),
	})
	if res.Error != nil {
		return translate(res.Error, "update conversation")
	}
	if res.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (r *gormConversations) ListByParticipant(ctx context.Context, profileID uuid.UUID) ([]*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.Conversation
	err := r.db.WithContext(ctx).
		Where("student_id = ? OR counselor_id = ?", profileID, profileID).
		Order("last_message_at DESC, id").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "list conversations")
	}

	result := make([]*domain.Conversation, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainConversation(&rows[i]))
	}
	return result, nil
}

type gormMessages struct {
	db *gorm.DB
}

func (r *gormMessages) Create(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("message is nil")
	}

	var maxSeq int64
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("conversation_id = ?", msg.ConversationID).
		Select("COALESCE(MAX(seq), 0)").
		Row().Scan(&maxSeq)
	if err != nil {
		return translate(err, "next message seq")
	}
	msg.Seq = maxSeq + 1

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(toModelMessage(msg)).Error; err != nil {
		return translate(err, "create message")
	}
	return nil
}

func (r *gormMessages) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m model.Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, ErrMessageNotFound, "get message")
	}
	return toDomainMessage(&m), nil
}

func (r *gormMessages) ListByConversation(ctx context.Context, conversationID uuid.UUID, page MessagePage) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND seq > ?", conversationID, page.AfterSeq).
		Order("seq").
		Limit(page.limit()).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "list messages")
	}

	result := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainMessage(&rows[i]))
	}
	return result, nil
}

func (r *gormMessages) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MessageStatus, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.Message{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(status),
		"updated_at": at.UTC(),
	})
	if res.Error != nil {
		return translate(res.Error, "update message status")
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

type gormAppointments struct {
	db *gorm.DB
}

func (r *gormAppointments) Create(ctx context.Context, appt *domain.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if appt == nil {
		return errors.New("appointment is nil")
	}

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(toModelAppointment(appt)).Error; err != nil {
		return translate(err, "create appointment")
	}
	return nil
}

func (r *gormAppointments) GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var a model.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, ErrAppointmentNotFound, "get appointment")
	}
	return toDomainAppointment(&a), nil
}

func (r *gormAppointments) Update(ctx context.Context, appt *domain.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if appt == nil {
		return errors.New("appointment is nil")
	}

	m := toModelAppointment(appt)
	updates := map[string]any{
		"status":          m.Status,
		"scheduled_start": m.ScheduledStart,
		"scheduled_end":   m.ScheduledEnd,
		"notes":           m.Notes,
		"updated_at":      m.UpdatedAt,
	}
	if m.ConversationID == nil {
		updates["conversation_id"] = gorm.Expr("NULL")
	} else {
		updates["conversation_id"] = *m.ConversationID
	}

	res := r.db.WithContext(ctx).Model(&model.Appointment{}).Where("id = ?", m.ID).Updates(updates)
	if res.Error != nil {
		return translate(res.Error, "update appointment")
	}
	if res.RowsAffected == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *gormAppointments) ListByParticipant(ctx context.Context, profileID uuid.UUID, filter AppointmentFilter) ([]*domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Where("student_id = ? OR counselor_id = ?", profileID, profileID)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where("status IN ?", statuses)
	}
	if !filter.To.IsZero() {
		q = q.Where("scheduled_start < ?", filter.To.UTC())
	}
	if !filter.From.IsZero() {
		q = q.Where("scheduled_end > ?", filter.From.UTC())
	}

	var rows []model.Appointment
	if err := q.Order("scheduled_start").Find(&rows).Error; err != nil {
		return nil, translate(err, "list appointments")
	}

	result := make([]*domain.Appointment, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainAppointment(&rows[i]))
	}
	return result, nil
}

type gormVideoSessions struct {
	db *gorm.DB
}

func (r *gormVideoSessions) Create(ctx context.Context, session *domain.VideoSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil {
		return errors.New("video session is nil")
	}

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(toModelVideoSession(session)).Error; err != nil {
		if isDuplicate(err) {
			return ErrRoomExists
		}
		return translate(err, "create video session")
	}
	return nil
}

func (r *gormVideoSessions) GetByID(ctx context.Context, id uuid.UUID) (*domain.VideoSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var v model.VideoSession
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, ErrVideoSessionNotFound, "get video session")
	}
	return toDomainVideoSession(&v), nil
}

func (r *gormVideoSessions) GetByRoomID(ctx context.Context, roomID string) (*domain.VideoSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var v model.VideoSession
	if err := r.db.WithContext(ctx).First(&v, "room_id = ?", roomID).Error; err != nil {
		return nil, translateNotFound(err, ErrVideoSessionNotFound, "get video session by room")
	}
	return toDomainVideoSession(&v), nil
}

func (r *gormVideoSessions) Update(ctx context.Context, session *domain.VideoSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil {
		return errors.New("video session is nil")
	}

	m := toModelVideoSession(session)
	res := r.db.WithContext(ctx).Model(&model.VideoSession{}).Where("id = ?", m.ID).Updates(map[string]any{
		"participants":     m.Participants,
		"call_started_at":  m.CallStartedAt,
		"call_ended_at":    m.CallEndedAt,
		"duration_seconds": m.DurationSeconds,
	})
	if res.Error != nil {
		return translate(res.Error, "update video session")
	}
	if res.RowsAffected == 0 {
		return ErrVideoSessionNotFound
	}
	return nil
}

func (r *gormVideoSessions) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*domain.VideoSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.VideoSession
	if err := r.db.WithContext(ctx).Where("appointment_id = ?", appointmentID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, translate(err, "list video sessions")
	}

	result := make([]*domain.VideoSession, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainVideoSession(&rows[i]))
	}
	return result, nil
}

// Postgres SQLSTATE codes the store maps to its own errors.
const (
	pgInsufficientPrivilege = "42501"
	pgUniqueViolation       = "23505"
	pgSerializationFailure  = "40001"
	pgDeadlockDetected      = "40P01"
	pgAdminShutdown         = "57P01"
	pgCannotConnectNow      = "57P03"
)

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isKnown(err error) bool {
	for _, known := range []error{
		access.ErrPolicyDenied, ErrUnavailable,
		ErrProfileNotFound, ErrProfileExists, ErrProfileEmailExists,
		ErrConversationNotFound, ErrMessageNotFound, ErrAppointmentNotFound,
		ErrVideoSessionNotFound, ErrRoomExists,
		context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	var vErr *domain.ValidationError
	return errors.As(err, &vErr)
}

func translateNotFound(err error, notFound error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return translate(err, op)
}

// translate maps driver errors onto the storage error kinds: policy rejections,
// transient failures and everything else wrapped with the failing operation.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInsufficientPrivilege:
			return fmt.Errorf("%s: %s: %w", op, pgErr.Message, access.ErrPolicyDenied)
		case pgSerializationFailure, pgDeadlockDetected, pgAdminShutdown, pgCannotConnectNow:
			return fmt.Errorf("%s: %s: %w", op, pgErr.Message, ErrUnavailable)
		}
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return fmt.Errorf("%s: %s: %w", op, pgErr.Message, ErrUnavailable)
		}
	}

	if pgconn.SafeToRetry(err) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %v: %w", op, netErr, ErrUnavailable)
	}

	return pkgerrors.Wrap(err, op)
}

func toModelProfile(p *domain.Profile) *model.Profile {
	return &model.Profile{
		ID:        p.ID,
		Email:     domain.NormalizeEmail(p.Email),
		FullName:  p.FullName,
		Role:      string(p.Role),
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func toDomainProfile(p *model.Profile) *domain.Profile {
	return &domain.Profile{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		Role:      domain.Role(p.Role),
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func toModelConversation(c *domain.Conversation) *model.Conversation {
	return &model.Conversation{
		ID:            c.ID,
		StudentID:     c.StudentID,
		CounselorID:   c.CounselorID,
		Status:        string(c.Status),
		LastMessageAt: c.LastMessageAt.UTC(),
		CreatedAt:     c.CreatedAt.UTC(),
		UpdatedAt:     c.UpdatedAt.UTC(),
	}
}

func toDomainConversation(c *model.Conversation) *domain.Conversation {
	return &domain.Conversation{
		ID:            c.ID,
		StudentID:     c.StudentID,
		CounselorID:   c.CounselorID,
		Status:        domain.ConversationStatus(c.Status),
		LastMessageAt: c.LastMessageAt.UTC(),
		CreatedAt:     c.CreatedAt.UTC(),
		UpdatedAt:     c.UpdatedAt.UTC(),
	}
}

func toModelMessage(m *domain.Message) *model.Message {
	return &model.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Seq:            m.Seq,
		SenderID:       m.SenderID,
		Content:        m.Content,
		MessageType:    string(m.Type),
		AttachmentURL:  m.AttachmentURL,
		Status:         string(m.Status),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

func toDomainMessage(m *model.Message) *domain.Message {
	return &domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Seq:            m.Seq,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           domain.MessageType(m.MessageType),
		AttachmentURL:  m.AttachmentURL,
		Status:         domain.MessageStatus(m.Status),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

func toModelAppointment(a *domain.Appointment) *model.Appointment {
	return &model.Appointment{
		ID:              a.ID,
		StudentID:       a.StudentID,
		CounselorID:     a.CounselorID,
		ConversationID:  a.ConversationID,
		AppointmentType: string(a.Type),
		Status:          string(a.Status),
		ScheduledStart:  a.ScheduledStart.UTC(),
		ScheduledEnd:    a.ScheduledEnd.UTC(),
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt.UTC(),
		UpdatedAt:       a.UpdatedAt.UTC(),
	}
}

func toDomainAppointment(a *model.Appointment) *domain.Appointment {
	return &domain.Appointment{
		ID:             a.ID,
		StudentID:      a.StudentID,
		CounselorID:    a.CounselorID,
		ConversationID: a.ConversationID,
		Type:           domain.AppointmentType(a.AppointmentType),
		Status:         domain.AppointmentStatus(a.Status),
		ScheduledStart: a.ScheduledStart.UTC(),
		ScheduledEnd:   a.ScheduledEnd.UTC(),
		Notes:          a.Notes,
		CreatedAt:      a.CreatedAt.UTC(),
		UpdatedAt:      a.UpdatedAt.UTC(),
	}
}

func toModelVideoSession(v *domain.VideoSession) *model.VideoSession {
	return &model.VideoSession{
		ID:              v.ID,
		AppointmentID:   v.AppointmentID,
		RoomID:          v.RoomID,
		Participants:    datatypes.JSONSlice[uuid.UUID](append(make([]uuid.UUID, 0, len(v.Participants)), v.Participants...)),
		CreatedBy:       v.CreatedBy,
		CallStartedAt:   utcPtr(v.CallStartedAt),
		CallEndedAt:     utcPtr(v.CallEndedAt),
		DurationSeconds: int64(v.CallDuration / time.Second),
		CreatedAt:       v.CreatedAt.UTC(),
	}
}

func toDomainVideoSession(v *model.VideoSession) *domain.VideoSession {
	return &domain.VideoSession{
		ID:            v.ID,
		AppointmentID: v.AppointmentID,
		RoomID:        v.RoomID,
		Participants:  append([]uuid.UUID(nil), v.Participants...),
		CreatedBy:     v.CreatedBy,
		CallStartedAt: utcPtr(v.CallStartedAt),
		CallEndedAt:   utcPtr(v.CallEndedAt),
		CallDuration:  time.Duration(v.DurationSeconds) * time.Second,
		CreatedAt:     v.CreatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
