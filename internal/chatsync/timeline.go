// Package chatsync keeps a client-side copy of one conversation in step with the
// server: history first, then realtime inserts enriched by id.
package chatsync

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
)

// Timeline is the ordered local message list of one conversation. Messages are kept
// sorted by Seq and stored at most once per id.
type Timeline struct {
	mu    sync.RWMutex
	items []domain.MessageWithSender
	ids   map[uuid.UUID]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{ids: make(map[uuid.UUID]struct{})}
}

// Insert adds m unless a message with the same id is already present. It reports
// whether the timeline changed.
func (t *Timeline) Insert(m *domain.MessageWithSender) bool {
	if m == nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.ids[m.ID]; ok {
		return false
	}
	t.ids[m.ID] = struct{}{}

	i := sort.Search(len(t.items), func(i int) bool { return t.items[i].Seq > m.Seq })
	t.items = append(t.items, domain.MessageWithSender{})
	copy(t.items[i+1:], t.items[i:])
	t.items[i] = *m
	return true
}

// Replace overwrites a known message, for status changes. Unknown ids are inserted.
func (t *Timeline) Replace(m *domain.MessageWithSender) bool {
	if m == nil {
		return false
	}

	t.mu.Lock()
	for i := range t.items {
		if t.items[i].ID == m.ID {
			t.items[i] = *m
			t.mu.Unlock()
			return true
		}
	}
	t.mu.Unlock()
	return t.Insert(m)
}

func (t *Timeline) Has(id uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ids[id]
	return ok
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// LastSeq is the highest Seq held, or 0 when empty.
func (t *Timeline) LastSeq() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.items) == 0 {
		return 0
	}
	return t.items[len(t.items)-1].Seq
}

// Messages returns a copy of the timeline in order.
func (t *Timeline) Messages() []domain.MessageWithSender {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.MessageWithSender, len(t.items))
	copy(out, t.items)
	return out
}
