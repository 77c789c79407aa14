// Package access holds the row-level policies of the portal. Every read or write of a
// table row is decided by Evaluate, which maps an acting caller and the relationship
// described by the row to the set of operations the caller may perform on it.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
)

// ErrPolicyDenied is an authoritative rejection. Callers must not retry it.
var ErrPolicyDenied = errors.New("operation denied by access policy")

// Caller is the acting identity of one request. It is passed explicitly to every
// policy evaluation and query.
type Caller struct {
	ID   uuid.UUID
	Role domain.Role
}

func (c Caller) Authenticated() bool {
	return c.ID != uuid.Nil
}

type Operation uint8

const (
	Read Operation = 1 << iota
	Insert
	Update
)

func (op Operation) String() string {
	switch op {
	case Read:
		return "read"
	case Insert:
		return "insert"
	case Update:
		return "update"
	}
	return fmt.Sprintf("operation(%d)", uint8(op))
}

// Set is a bitmask of permitted operations.
type Set uint8

func (s Set) Has(op Operation) bool {
	return s&Set(op) != 0
}

type Table string

const (
	Profiles      Table = "profiles"
	Conversations Table = "conversations"
	Messages      Table = "messages"
	Appointments  Table = "appointments"
	VideoSessions Table = "video_sessions"
)

// Relationship describes who a row belongs to, as far as the policies care.
type Relationship struct {
	Table Table

	// Owner is the profile id for profile rows.
	Owner uuid.UUID

	// StudentID and CounselorID are the two parties of a conversation or appointment,
	// or of the conversation a message belongs to.
	StudentID   uuid.UUID
	CounselorID uuid.UUID

	// SenderID is set for message rows.
	SenderID uuid.UUID

	// Participants is used by video sessions without a linked appointment.
	Participants []uuid.UUID
}

func ForProfile(id uuid.UUID) Relationship {
	return Relationship{Table: Profiles, Owner: id}
}

func ForConversation(c *domain.Conversation) Relationship {
	return Relationship{Table: Conversations, StudentID: c.StudentID, CounselorID: c.CounselorID}
}

// ForMessage describes a message row through the conversation it references.
func ForMessage(c *domain.Conversation, senderID uuid.UUID) Relationship {
	return Relationship{
		Table:       Messages,
		StudentID:   c.StudentID,
		CounselorID: c.CounselorID,
		SenderID:    senderID,
	}
}

func ForAppointment(a *domain.Appointment) Relationship {
	return Relationship{Table: Appointments, StudentID: a.StudentID, CounselorID: a.CounselorID}
}

// ForVideoSession describes a session through its linked appointment. appt may be nil
// only for ad-hoc sessions; the participant list is used then.
func ForVideoSession(v *domain.VideoSession, appt *domain.Appointment) Relationship {
	rel := Relationship{Table: VideoSessions}
	if appt != nil {
		rel.StudentID = appt.StudentID
		rel.CounselorID = appt.CounselorID
		return rel
	}
	rel.Participants = v.Participants
	return rel
}

func (r Relationship) participant(id uuid.UUID) bool {
	if id == uuid.Nil {
		return false
	}
	if id == r.StudentID || id == r.CounselorID {
		return true
	}
	for _, p := range r.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Evaluate returns the operations caller may perform on the row described by rel.
func Evaluate(caller Caller, rel Relationship) Set {
	if !caller.Authenticated() {
		return 0
	}

	var set Set
	switch rel.Table {
	case Profiles:
		set |= Set(Read)
		if caller.ID == rel.Owner {
			set |= Set(Insert | Update)
		}
	case Conversations, Appointments:
		if rel.participant(caller.ID) {
			set |= Set(Read | Update)
		}
		if caller.ID == rel.StudentID {
			set |= Set(Insert)
		}
	case Messages:
		if rel.participant(caller.ID) {
			set |= Set(Read)
			if caller.ID == rel.SenderID {
				set |= Set(Insert)
			} else {
				set |= Set(Update)
			}
		}
	case VideoSessions:
		if rel.participant(caller.ID) {
			set |= Set(Read | Insert | Update)
		}
	}
	return set
}

func Allowed(caller Caller, op Operation, rel Relationship) bool {
	return Evaluate(caller, rel).Has(op)
}

// Check returns an error wrapping ErrPolicyDenied unless op is permitted.
func Check(caller Caller, op Operation, rel Relationship) error {
	if Allowed(caller, op, rel) {
		return nil
	}
	return fmt.Errorf("%s %s: %w", op, rel.Table, ErrPolicyDenied)
}

type ctxKey struct{}

// WithCaller attaches the caller to ctx for the storage adapter, which forwards it to
// database-side policies. Services receive the caller as an argument instead.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(Caller)
	return c, ok
}
