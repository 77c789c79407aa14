package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/service"
)

type RoomResponse struct {
	ID                  uuid.UUID   `json:"id"`
	RoomID              string      `json:"room_id"`
	URL                 string      `json:"url"`
	AppointmentID       *uuid.UUID  `json:"appointment_id,omitempty"`
	Participants        []uuid.UUID `json:"participants"`
	CreatedBy           uuid.UUID   `json:"created_by"`
	CallStartedAt       *time.Time  `json:"call_started_at,omitempty"`
	CallEndedAt         *time.Time  `json:"call_ended_at,omitempty"`
	CallDurationSeconds int64       `json:"call_duration_seconds"`
	Ended               bool        `json:"ended"`
	CreatedAt           time.Time   `json:"created_at"`
}

func RoomToApi(r *service.Room) *RoomResponse {
	participants := r.Participants
	if participants == nil {
		participants = []uuid.UUID{}
	}

	return &RoomResponse{
		ID:                  r.ID,
		RoomID:              r.RoomID,
		URL:                 r.URL,
		AppointmentID:       r.AppointmentID,
		Participants:        participants,
		CreatedBy:           r.CreatedBy,
		CallStartedAt:       r.CallStartedAt,
		CallEndedAt:         r.CallEndedAt,
		CallDurationSeconds: int64(r.CallDuration / time.Second),
		Ended:               r.Ended(),
		CreatedAt:           r.CreatedAt,
	}
}

func RoomsToApi(rooms []*service.Room) []*RoomResponse {
	out := make([]*RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomToApi(r))
	}
	return out
}
