package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationEnded    ConversationStatus = "ended"
	ConversationArchived ConversationStatus = "archived"
)

var conversationTransitions = map[ConversationStatus][]ConversationStatus{
	ConversationActive: {ConversationEnded, ConversationArchived},
	ConversationEnded:  {ConversationActive, ConversationArchived},
}

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationActive, ConversationEnded, ConversationArchived:
		return true
	}
	return false
}

func (s ConversationStatus) CanTransitionTo(next ConversationStatus) bool {
	for _, allowed := range conversationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Conversation pairs one student with one counselor. Rows are never deleted;
// archiving is the end of the lifecycle.
type Conversation struct {
	ID            uuid.UUID          `json:"id"`
	StudentID     uuid.UUID          `json:"student_id"`
	CounselorID   uuid.UUID          `json:"counselor_id"`
	Status        ConversationStatus `json:"status"`
	LastMessageAt time.Time          `json:"last_message_at"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func NewConversation(studentID, counselorID uuid.UUID) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:            uuid.New(),
		StudentID:     studentID,
		CounselorID:   counselorID,
		Status:        ConversationActive,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (c *Conversation) HasParticipant(id uuid.UUID) bool {
	return id != uuid.Nil && (id == c.StudentID || id == c.CounselorID)
}

// Counterpart returns the other participant, or uuid.Nil when id is not a participant.
func (c *Conversation) Counterpart(id uuid.UUID) uuid.UUID {
	switch id {
	case c.StudentID:
		return c.CounselorID
	case c.CounselorID:
		return c.StudentID
	}
	return uuid.Nil
}

// Touch moves the last-activity marker forward. It never moves backwards so a late
// write cannot reorder the conversation list.
func (c *Conversation) Touch(at time.Time) {
	at = at.UTC()
	if at.After(c.LastMessageAt) {
		c.LastMessageAt = at
	}
	c.UpdatedAt = time.Now().UTC()
}
