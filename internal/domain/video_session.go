package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var roomSegment = regexp.MustCompile(`[^a-z0-9]+`)

// VideoSession records an externally hosted call room. Media and signalling are the
// provider's concern; only the room identifier and call timestamps live here.
type VideoSession struct {
	ID            uuid.UUID     `json:"id"`
	AppointmentID *uuid.UUID    `json:"appointment_id,omitempty"`
	RoomID        string        `json:"room_id"`
	Participants  []uuid.UUID   `json:"participants"`
	CreatedBy     uuid.UUID     `json:"created_by"`
	CallStartedAt *time.Time    `json:"call_started_at,omitempty"`
	CallEndedAt   *time.Time    `json:"call_ended_at,omitempty"`
	CallDuration  time.Duration `json:"call_duration"`
	CreatedAt     time.Time     `json:"created_at"`
}

func NewVideoSession(roomID string, createdBy uuid.UUID, participants []uuid.UUID) *VideoSession {
	return &VideoSession{
		ID:           uuid.New(),
		RoomID:       roomID,
		Participants: uniqueIDs(participants),
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}
}

// NewRoomID builds "<namespace>-<context>-<timestamp>" with each segment reduced to
// lowercase alphanumerics and dashes.
func NewRoomID(namespace, context string, t time.Time) string {
	ns := slug(namespace)
	if ns == "" {
		ns = "room"
	}
	ctx := slug(context)
	if ctx == "" {
		ctx = "adhoc"
	}
	return fmt.Sprintf("%s-%s-%d", ns, ctx, t.UnixMilli())
}

// RoomURL returns the provider link opened in a new browsing context.
func (v *VideoSession) RoomURL(provider string) string {
	provider = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(provider, "https://"), "http://"), "/")
	return "https://" + provider + "/" + v.RoomID
}

func (v *VideoSession) HasParticipant(id uuid.UUID) bool {
	for _, p := range v.Participants {
		if p == id {
			return id != uuid.Nil
		}
	}
	return false
}

func (v *VideoSession) Ended() bool {
	return v.CallEndedAt != nil
}

// Start records the first time the call was opened. Later calls are no-ops.
func (v *VideoSession) Start(now time.Time) {
	if v.CallStartedAt != nil {
		return
	}
	t := now.UTC()
	v.CallStartedAt = &t
}

// End closes the session and derives the duration from the recorded start.
func (v *VideoSession) End(now time.Time) {
	if v.CallEndedAt != nil {
		return
	}
	t := now.UTC()
	if v.CallStartedAt == nil {
		v.CallStartedAt = &t
	}
	v.CallEndedAt = &t
	if d := t.Sub(*v.CallStartedAt); d > 0 {
		v.CallDuration = d.Truncate(time.Second)
	}
}

func slug(s string) string {
	return strings.Trim(roomSegment.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
