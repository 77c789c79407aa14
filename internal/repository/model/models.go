package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"size:255;uniqueIndex;not null"`
	FullName  string    `gorm:"size:255;not null;default:''"`
	Role      string    `gorm:"size:16;not null;index;check:role IN ('student','counselor','admin')"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type Conversation struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	StudentID     uuid.UUID `gorm:"type:uuid;index;not null"`
	CounselorID   uuid.UUID `gorm:"type:uuid;index;not null"`
	Status        string    `gorm:"size:16;not null;default:'active';check:status IN ('active','ended','archived')"`
	LastMessageAt time.Time `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`

	Student   Profile `gorm:"foreignKey:StudentID;constraint:OnDelete:RESTRICT"`
	Counselor Profile `gorm:"foreignKey:CounselorID;constraint:OnDelete:RESTRICT"`
}

type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_messages_conversation_seq,priority:1"`
	Seq            int64     `gorm:"not null;uniqueIndex:idx_messages_conversation_seq,priority:2"`
	SenderID       uuid.UUID `gorm:"type:uuid;index;not null"`
	Content        string    `gorm:"type:text;not null"`
	MessageType    string    `gorm:"size:16;not null;default:'text';check:message_type IN ('text','file','image','video')"`
	AttachmentURL  string    `gorm:"size:1024;not null;default:''"`
	Status         string    `gorm:"size:16;not null;default:'sent';check:status IN ('sent','delivered','read')"`
	CreatedAt      time.Time `gorm:"not null;index"`
	UpdatedAt      time.Time `gorm:"not null"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:RESTRICT"`
	Sender       Profile      `gorm:"foreignKey:SenderID;constraint:OnDelete:RESTRICT"`
}

type Appointment struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	StudentID       uuid.UUID  `gorm:"type:uuid;index;not null"`
	CounselorID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	ConversationID  *uuid.UUID `gorm:"type:uuid;index"`
	AppointmentType string     `gorm:"size:16;not null;check:appointment_type IN ('chat','video','in_person')"`
	Status          string     `gorm:"size:16;not null;default:'scheduled';check:status IN ('scheduled','confirmed','in_progress','completed','cancelled')"`
	ScheduledStart  time.Time  `gorm:"not null;index"`
	ScheduledEnd    time.Time  `gorm:"not null;check:scheduled_start < scheduled_end"`
	Notes           string     `gorm:"type:text;not null;default:''"`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`

	Student      Profile       `gorm:"foreignKey:StudentID;constraint:OnDelete:RESTRICT"`
	Counselor    Profile       `gorm:"foreignKey:CounselorID;constraint:OnDelete:RESTRICT"`
	Conversation *Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:SET NULL"`
}

type VideoSession struct {
	ID              uuid.UUID                      `gorm:"type:uuid;primaryKey"`
	AppointmentID   *uuid.UUID                     `gorm:"type:uuid;index"`
	RoomID          string                         `gorm:"size:255;uniqueIndex;not null"`
	Participants    datatypes.JSONSlice[uuid.UUID] `gorm:"not null"`
	CreatedBy       uuid.UUID                      `gorm:"type:uuid;not null"`
	CallStartedAt   *time.Time
	CallEndedAt     *time.Time
	DurationSeconds int64     `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"not null"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID;constraint:OnDelete:SET NULL"`
}

// All lists the models in migration order.
func All() []any {
	return []any{&Profile{}, &Conversation{}, &Message{}, &Appointment{}, &VideoSession{}}
}
