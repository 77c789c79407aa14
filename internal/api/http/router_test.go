package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	httpapi "github.com/immxrtalbeast/counsel_portal/internal/api/http"
	"github.com/immxrtalbeast/counsel_portal/internal/chatsync"
	"github.com/immxrtalbeast/counsel_portal/internal/realtime"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/internal/retry"
	"github.com/immxrtalbeast/counsel_portal/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "counsel-portal-test"
)

var testNow = time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewInMemoryStore()
	bridge := realtime.NewBridge(nil, 16)
	t.Cleanup(bridge.Close)

	opts := []service.Option{
		service.WithClock(func() time.Time { return testNow }),
		service.WithRetry(retry.Policy{Attempts: 2, Initial: time.Millisecond, Max: time.Millisecond}),
	}
	profiles := service.NewProfileService(store, nil, opts...)
	conversations := service.NewConversationService(store, bridge, nil, opts...)
	appointments := service.NewAppointmentService(store, nil, nil, opts...)
	video := service.NewVideoService(store, "meet.example.org", "counsel", nil, opts...)

	auth := httpapi.NewAuthenticator(testSecret, testIssuer, profiles, nil)
	return httpapi.SetupRouter(auth, nil, httpapi.Controllers{
		Profiles:      httpapi.NewProfileController(profiles, nil),
		Conversations: httpapi.NewConversationController(conversations, nil),
		Appointments:  httpapi.NewAppointmentController(appointments, video, nil),
		Rooms:         httpapi.NewRoomController(video, nil),
		Realtime: httpapi.NewRealtimeController(conversations, httpapi.RealtimeOptions{
			PingInterval: time.Second,
			WriteTimeout: time.Second,
		}, nil),
	})
}

func signToken(t *testing.T, sub string, secret string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    testIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

type client struct {
	t      *testing.T
	router http.Handler
	id     uuid.UUID
	token  string
}

func newClient(t *testing.T, router http.Handler) *client {
	id := uuid.New()
	return &client{t: t, router: router, id: id, token: signToken(t, id.String(), testSecret)}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func (c *client) signup(email, name, role string) {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/api/profiles", map[string]string{
		"email": email, "full_name": name, "role": role,
	})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type conversationBody struct {
	Conversation struct {
		ID uuid.UUID `json:"id"`
	} `json:"conversation"`
}

type messagesBody struct {
	Messages []struct {
		ID      uuid.UUID `json:"id"`
		Seq     int64     `json:"seq"`
		Content string    `json:"content"`
		Sender  struct {
			FullName string `json:"full_name"`
		} `json:"sender"`
	} `json:"messages"`
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthentication(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name     string
		token    string
		wantCode int
	}{
		{name: "missing token", token: "", wantCode: http.StatusUnauthorized},
		{name: "wrong secret", token: signToken(t, uuid.NewString(), "other"), wantCode: http.StatusUnauthorized},
		{name: "subject is not a profile id", token: signToken(t, "someone", testSecret), wantCode: http.StatusUnauthorized},
		{name: "valid token without profile", token: signToken(t, uuid.NewString(), testSecret), wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &client{t: t, router: router, token: tt.token}
			rec := c.do(http.MethodGet, "/api/profiles/me", nil)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestConversationFlow(t *testing.T) {
	router := newTestRouter(t)
	student := newClient(t, router)
	counselor := newClient(t, router)
	outsider := newClient(t, router)
	student.signup("sam@example.com", "Sam Student", "student")
	counselor.signup("casey@example.com", "Casey Counselor", "counselor")
	outsider.signup("sky@example.com", "Sky Student", "student")

	rec := student.do(http.MethodPost, "/api/conversations", map[string]string{"counselor_id": counselor.id.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	convID := decode[conversationBody](t, rec).Conversation.ID

	rec = student.do(http.MethodPost, "/api/conversations/"+convID.String()+"/messages", map[string]string{"content": "Hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = counselor.do(http.MethodGet, "/api/conversations/"+convID.String()+"/messages?after_seq=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := decode[messagesBody](t, rec).Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, "Sam Student", msgs[0].Sender.FullName)
	assert.Equal(t, int64(1), msgs[0].Seq)

	rec = counselor.do(http.MethodGet, "/api/conversations/"+convID.String()+"/messages?after_seq=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[messagesBody](t, rec).Messages)

	rec = outsider.do(http.MethodGet, "/api/conversations/"+convID.String()+"/messages", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = outsider.do(http.MethodPost, "/api/conversations/"+convID.String()+"/messages", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = counselor.do(http.MethodPatch, "/api/messages/"+msgs[0].ID.String()+"/status", map[string]string{"status": "read"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = student.do(http.MethodPatch, "/api/conversations/"+convID.String()+"/status", map[string]string{"status": "paused"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = student.do(http.MethodGet, "/api/messages/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = student.do(http.MethodGet, "/api/conversations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppointmentEndpoints(t *testing.T) {
	router := newTestRouter(t)
	student := newClient(t, router)
	counselor := newClient(t, router)
	student.signup("sam@example.com", "Sam Student", "student")
	counselor.signup("casey@example.com", "Casey Counselor", "counselor")

	start := testNow.Add(48 * time.Hour)
	book := map[string]any{
		"counselor_id":     counselor.id,
		"appointment_type": "video",
		"scheduled_start":  start,
		"scheduled_end":    start.Add(time.Hour),
	}

	rec := student.do(http.MethodPost, "/api/appointments", book)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Appointment struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		} `json:"appointment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "scheduled", created.Appointment.Status)

	rec = student.do(http.MethodPost, "/api/appointments", book)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = student.do(http.MethodGet, "/api/appointments/"+created.Appointment.ID.String()+"/join", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var join struct {
		Join struct {
			Joinable bool `json:"joinable"`
		} `json:"join"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &join))
	assert.False(t, join.Join.Joinable)

	rec = student.do(http.MethodPost, "/api/rooms", map[string]any{"appointment_id": created.Appointment.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = counselor.do(http.MethodPatch, "/api/appointments/"+created.Appointment.ID.String()+"/status", map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = counselor.do(http.MethodPatch, "/api/appointments/"+created.Appointment.ID.String()+"/status", map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = student.do(http.MethodGet, "/api/appointments?status=confirmed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Appointments []json.RawMessage `json:"appointments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Appointments, 1)

	rec = student.do(http.MethodGet, "/api/appointments?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomEndpoints(t *testing.T) {
	router := newTestRouter(t)
	student := newClient(t, router)
	counselor := newClient(t, router)
	student.signup("sam@example.com", "Sam Student", "student")
	counselor.signup("casey@example.com", "Casey Counselor", "counselor")

	rec := student.do(http.MethodPost, "/api/rooms", map[string]any{"invitees": []uuid.UUID{counselor.id}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		Room struct {
			RoomID string `json:"room_id"`
			URL    string `json:"url"`
			Ended  bool   `json:"ended"`
		} `json:"room"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://meet.example.org/"+body.Room.RoomID, body.Room.URL)

	rec = counselor.do(http.MethodPost, "/api/rooms/register", map[string]string{"room_id": body.Room.RoomID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = counselor.do(http.MethodPost, "/api/rooms/"+body.Room.RoomID+"/start", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = student.do(http.MethodPost, "/api/rooms/"+body.Room.RoomID+"/end", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Room.Ended)
}

func TestRemoteChatFollowsConversation(t *testing.T) {
	router := newTestRouter(t)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	student := newClient(t, router)
	counselor := newClient(t, router)
	student.signup("sam@example.com", "Sam Student", "student")
	counselor.signup("casey@example.com", "Casey Counselor", "counselor")

	rec := student.do(http.MethodPost, "/api/conversations", map[string]string{"counselor_id": counselor.id.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	convID := decode[conversationBody](t, rec).Conversation.ID

	rec = counselor.do(http.MethodPost, "/api/conversations/"+convID.String()+"/messages", map[string]string{"content": "Welcome"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	source, err := chatsync.NewRemoteSource(srv.URL, counselor.token, retry.Policy{Attempts: 2, Initial: time.Millisecond, Max: time.Millisecond})
	require.NoError(t, err)
	chat := chatsync.NewChat(source, nil)
	require.NoError(t, chat.Open(context.Background(), convID))
	t.Cleanup(chat.Close)

	rec = student.do(http.MethodPost, "/api/conversations/"+convID.String()+"/messages", map[string]string{"content": "Hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		msgs, err := chat.Messages()
		return err == nil && len(msgs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	msgs, err := chat.Messages()
	require.NoError(t, err)
	assert.Equal(t, "Welcome", msgs[0].Content)
	assert.Equal(t, "Hello", msgs[1].Content)
	assert.Equal(t, "Sam Student", msgs[1].Sender.FullName)

	outsider := newClient(t, router)
	outsider.signup("sky@example.com", "Sky Student", "student")
	denied, err := chatsync.NewRemoteSource(srv.URL, outsider.token, retry.Policy{Attempts: 1})
	require.NoError(t, err)
	_, err = denied.History(context.Background(), convID, 0)
	assert.Error(t, err)
}
