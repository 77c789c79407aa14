package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/counsel_portal/internal/realtime"
	"github.com/immxrtalbeast/counsel_portal/internal/service"
	"github.com/immxrtalbeast/counsel_portal/lib/logger/sl"
)

type RealtimeOptions struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	// AllowedOrigins limits browser handshakes. Empty accepts any origin.
	AllowedOrigins []string
}

// RealtimeController streams conversation message changes over a websocket. The
// stream is push only: clients receive realtime.Change rows and fetch the full
// message by id.
type RealtimeController struct {
	conversations service.ConversationInteractor
	upgrader      websocket.Upgrader
	writeTimeout  time.Duration
	pingInterval  time.Duration
	log           *slog.Logger
}

func NewRealtimeController(conversations service.ConversationInteractor, opts RealtimeOptions, log *slog.Logger) *RealtimeController {
	if log == nil {
		log = slog.Default()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}

	origins := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		origins[o] = struct{}{}
	}

	return &RealtimeController{
		conversations: conversations,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(origins) == 0 || origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		log:          log,
	}
}

func (c *RealtimeController) SubscribeMessages(ctx *gin.Context) {
	const op = "api.realtime.subscribe_messages"

	convID, ok := conversationParam(ctx)
	if !ok {
		return
	}
	caller := callerFrom(ctx)
	event := realtime.Event(ctx.DefaultQuery("event", string(realtime.EventInsert)))

	sub, err := c.conversations.SubscribeMessages(ctx.Request.Context(), caller, convID, event)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		sub.Close()
		return
	}

	log := c.log.With(
		slog.String("op", op),
		slog.String("conversation_id", convID.String()),
		slog.String("caller", caller.ID.String()),
	)
	log.Debug("subscriber connected")

	c.serve(conn, sub, log)
}

func (c *RealtimeController) serve(conn *websocket.Conn, sub *realtime.Subscription, log *slog.Logger) {
	defer conn.Close()
	defer sub.Close()

	gone := make(chan struct{})
	go c.drain(conn, gone)

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			log.Debug("subscriber disconnected")
			return
		case change, ok := <-sub.Changes():
			if !ok {
				c.closeWith(conn, sub.Err(), log)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := conn.WriteJSON(change); err != nil {
				log.Debug("write failed", sl.Err(err))
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Debug("ping failed", sl.Err(err))
				return
			}
		}
	}
}

// drain consumes client frames so pongs and close frames are processed. A client
// that misses two pings is considered gone.
func (c *RealtimeController) drain(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	wait := 2*c.pingInterval + c.writeTimeout
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (c *RealtimeController) closeWith(conn *websocket.Conn, err error, log *slog.Logger) {
	code, reason := websocket.CloseGoingAway, "shutting down"
	if errors.Is(err, realtime.ErrLagged) {
		code, reason = realtime.CloseCodeLagged, "subscriber lagged"
		log.Info("closing lagged subscriber")
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(c.writeTimeout))
}
