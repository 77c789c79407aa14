package chatsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/realtime"
	"github.com/immxrtalbeast/counsel_portal/lib/logger/sl"
)

const historyPage = 100

var ErrNotOpen = errors.New("no conversation open")

// Chat mirrors one conversation at a time. Opening another conversation tears the
// previous subscription down first.
type Chat struct {
	source Source
	log    *slog.Logger

	mu             sync.Mutex
	conversationID uuid.UUID
	timeline       *Timeline
	cancel         context.CancelFunc
	done           chan struct{}

	changed chan struct{}
}

func NewChat(source Source, log *slog.Logger) *Chat {
	if log == nil {
		log = slog.Default()
	}
	return &Chat{
		source:  source,
		log:     log,
		changed: make(chan struct{}, 1),
	}
}

// Open switches the chat to conversationID. The subscription is established before
// history is loaded so no insert falls between the two; duplicates are dropped by id.
func (c *Chat) Open(ctx context.Context, conversationID uuid.UUID) error {
	const op = "chatsync.chat.open"
	log := c.log.With(
		slog.String("op", op),
		slog.String("conversation_id", conversationID.String()),
	)

	c.Close()

	feed, err := c.source.Subscribe(ctx, conversationID)
	if err != nil {
		log.Info("subscribe failed", sl.Err(err))
		return err
	}

	timeline := NewTimeline()
	if err := c.backfill(ctx, conversationID, timeline); err != nil {
		feed.Close()
		log.Info("history load failed", sl.Err(err))
		return err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.conversationID = conversationID
	c.timeline = timeline
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.pump(pumpCtx, conversationID, timeline, feed, done)
	c.signal()

	log.Debug("conversation opened", slog.Int("messages", timeline.Len()))
	return nil
}

// Close stops the current subscription and waits for its consumer to exit. The
// chat reports ErrNotOpen until the next successful Open.
func (c *Chat) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.conversationID = uuid.Nil
	c.timeline = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Chat) ConversationID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

func (c *Chat) Messages() ([]domain.MessageWithSender, error) {
	c.mu.Lock()
	timeline := c.timeline
	c.mu.Unlock()

	if timeline == nil {
		return nil, ErrNotOpen
	}
	return timeline.Messages(), nil
}

// Changed receives a value whenever the open timeline may have changed.
func (c *Chat) Changed() <-chan struct{} {
	return c.changed
}

func (c *Chat) signal() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

func (c *Chat) backfill(ctx context.Context, conversationID uuid.UUID, timeline *Timeline) error {
	after := timeline.LastSeq()
	for {
		batch, err := c.source.History(ctx, conversationID, after)
		if err != nil {
			return err
		}
		for _, m := range batch {
			timeline.Insert(m)
			if m.Seq > after {
				after = m.Seq
			}
		}
		if len(batch) < historyPage {
			return nil
		}
	}
}

func (c *Chat) pump(ctx context.Context, conversationID uuid.UUID, timeline *Timeline, feed Feed, done chan struct{}) {
	defer close(done)
	log := c.log.With(slog.String("conversation_id", conversationID.String()))

	for {
		c.consume(ctx, conversationID, timeline, feed)
		feed.Close()

		if ctx.Err() != nil || !errors.Is(feed.Err(), realtime.ErrLagged) {
			if err := feed.Err(); err != nil && ctx.Err() == nil {
				log.Warn("realtime feed ended", sl.Err(err))
			}
			return
		}

		log.Info("realtime feed lagged, resubscribing")
		next, err := c.source.Subscribe(ctx, conversationID)
		if err != nil {
			log.Warn("resubscribe failed", sl.Err(err))
			return
		}
		if err := c.backfill(ctx, conversationID, timeline); err != nil {
			log.Warn("backfill failed", sl.Err(err))
		}
		c.signal()
		feed = next
	}
}

func (c *Chat) consume(ctx context.Context, conversationID uuid.UUID, timeline *Timeline, feed Feed) {
	want := conversationID.String()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-feed.Changes():
			if !ok {
				return
			}
			if change.Record["conversation_id"] != want {
				continue
			}
			id, err := uuid.Parse(change.Record["id"])
			if err != nil {
				continue
			}
			if change.Event == realtime.EventInsert && timeline.Has(id) {
				continue
			}

			m, err := c.source.Fetch(ctx, id)
			if err != nil {
				c.log.Warn("failed to fetch message", slog.String("message_id", id.String()), sl.Err(err))
				continue
			}

			var updated bool
			if change.Event == realtime.EventUpdate {
				updated = timeline.Replace(m)
			} else {
				updated = timeline.Insert(m)
			}
			if updated {
				c.signal()
			}
		}
	}
}
