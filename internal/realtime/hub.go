// Package realtime fans out row change notifications to subscribers of a blog.
package realtime

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	TableComments      = "blog_comments"
	TableCommentImages = "comment_images"

	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// 订阅者缓冲区，满了就丢弃事件：收到任何事件都会触发一次全量重新拉取。
const subscriberBuffer = 16

var droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
	Name: "realtime_dropped_events_total",
	Help: "Change events dropped because a subscriber was not keeping up",
})

// Event describes one row change scoped to a blog.
type Event struct {
	Table    string `json:"table"`
	Type     string `json:"type"`
	BlogID   string `json:"blog_id"`
	RecordID string `json:"record_id"`
}

// Publisher is the write side used by services.
type Publisher interface {
	Publish(ev Event)
}

type Hub struct {
	mu   sync.Mutex
	subs map[string][]chan Event // blogID -> subscriber channels
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string][]chan Event)}
}

// Subscribe registers for events of blogID. The returned cancel func closes the
// channel and is safe to call more than once.
func (h *Hub) Subscribe(blogID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	h.subs[blogID] = append(h.subs[blogID], ch)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subscribers := h.subs[blogID]
			for i, sub := range subscribers {
				if sub == ch {
					h.subs[blogID] = append(subscribers[:i], subscribers[i+1:]...)
					break
				}
			}
			if len(h.subs[blogID]) == 0 {
				delete(h.subs, blogID)
			}
			close(ch)
		})
	}

	return ch, cancel
}

// Publish never blocks.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[ev.BlogID] {
		select {
		case sub <- ev:
		default:
			droppedEvents.Inc()
		}
	}
}

// Subscribers counts live subscriptions for blogID.
func (h *Hub) Subscribers(blogID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[blogID])
}
