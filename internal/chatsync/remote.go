package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/realtime"
	"github.com/immxrtalbeast/counsel_portal/internal/retry"
)

var ErrNotFound = errors.New("not found")

// RemoteSource talks to the portal HTTP API with a bearer token.
type RemoteSource struct {
	base   *url.URL
	token  string
	client *http.Client
	dialer *websocket.Dialer
	retry  retry.Policy
}

func NewRemoteSource(baseURL, token string, policy retry.Policy) (*RemoteSource, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", base.Scheme)
	}
	return &RemoteSource{
		base:   base,
		token:  token,
		client: &http.Client{Timeout: 15 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		retry:  policy,
	}, nil
}

func (s *RemoteSource) History(ctx context.Context, conversationID uuid.UUID, afterSeq int64) ([]*domain.MessageWithSender, error) {
	q := url.Values{}
	q.Set("after_seq", strconv.FormatInt(afterSeq, 10))
	q.Set("limit", strconv.Itoa(historyPage))

	var body struct {
		Messages []*domain.MessageWithSender `json:"messages"`
	}
	if err := s.get(ctx, "/api/conversations/"+conversationID.String()+"/messages", q, &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

func (s *RemoteSource) Fetch(ctx context.Context, id uuid.UUID) (*domain.MessageWithSender, error) {
	var body struct {
		Message *domain.MessageWithSender `json:"message"`
	}
	if err := s.get(ctx, "/api/messages/"+id.String(), nil, &body); err != nil {
		return nil, err
	}
	if body.Message == nil {
		return nil, ErrNotFound
	}
	return body.Message, nil
}

func (s *RemoteSource) Subscribe(ctx context.Context, conversationID uuid.UUID) (Feed, error) {
	u := *s.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/api/realtime/conversations/" + conversationID.String() + "/messages"
	q := url.Values{}
	q.Set("event", string(realtime.EventAll))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)

	var conn *websocket.Conn
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		c, resp, err := s.dialer.DialContext(ctx, u.String(), header)
		if err != nil {
			if resp != nil {
				return statusError(resp)
			}
			return retry.Transient(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	feed := &wsFeed{
		conn:   conn,
		ch:     make(chan realtime.Change, 64),
		closed: make(chan struct{}),
	}
	go feed.read()
	return feed, nil
}

func (s *RemoteSource) get(ctx context.Context, path string, query url.Values, out any) error {
	u := *s.base
	u.Path += path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	return retry.Do(ctx, s.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+s.token)
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return retry.Transient(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// statusError maps an API error response onto the error kinds callers branch on.
func statusError(resp *http.Response) error {
	var body struct {
		Error  string               `json:"error"`
		Fields []domain.FieldError `json:"fields"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", msg, access.ErrPolicyDenied)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return domain.NewValidationError(errors.New(msg), body.Fields...)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return retry.Transient(fmt.Errorf("server responded %d: %s", resp.StatusCode, msg))
	}
	return fmt.Errorf("server responded %d: %s", resp.StatusCode, msg)
}

type wsFeed struct {
	conn   *websocket.Conn
	ch     chan realtime.Change
	closed chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

func (f *wsFeed) Changes() <-chan realtime.Change {
	return f.ch
}

func (f *wsFeed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *wsFeed) Close() {
	f.once.Do(func() {
		close(f.closed)
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = f.conn.Close()
	})
}

func (f *wsFeed) read() {
	defer close(f.ch)
	for {
		var change realtime.Change
		if err := f.conn.ReadJSON(&change); err != nil {
			f.fail(err)
			return
		}
		select {
		case f.ch <- change:
		case <-f.closed:
			return
		}
	}
}

func (f *wsFeed) fail(err error) {
	select {
	case <-f.closed:
		return
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case websocket.IsCloseError(err, realtime.CloseCodeLagged):
		f.err = realtime.ErrLagged
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		f.err = realtime.ErrClosed
	default:
		f.err = err
	}
}
