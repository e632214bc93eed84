package chat

import (
	"sync"

	"github.com/liut/parley/pkg/models/convo"
)

// EventKind names a notification for the presentation layer
type EventKind string

const (
	EventConversations            EventKind = "conversations"
	EventActive                   EventKind = "active"
	EventMessage                  EventKind = "message"
	EventPendingShown             EventKind = "pending-shown"
	EventPendingRemoved           EventKind = "pending-removed"
	EventRecommendations          EventKind = "recommendations"
	EventRecommendationsDismissed EventKind = "recommendations-dismissed"
	EventRecording                EventKind = "recording"
	EventInput                    EventKind = "input"
	EventVoiceDismissed           EventKind = "voice-dismissed"
	EventFeedbackDraft            EventKind = "feedback-draft"
	EventFeedbackDismissed        EventKind = "feedback-dismissed"
	EventMessageRated             EventKind = "message-rated"
	EventNotice                   EventKind = "notice"
	EventOverlayClosed            EventKind = "overlay-closed"
)

// Event is a snapshot, receivers may keep it.
type Event struct {
	Kind EventKind `json:"kind"`

	ConversationID  string                `json:"conversationId,omitempty"`
	Conversations   []convo.Conversation  `json:"conversations,omitempty"`
	Conversation    *convo.Conversation   `json:"conversation,omitempty"`
	Message         *convo.Message        `json:"message,omitempty"`
	Feedback        bool                  `json:"feedback,omitempty"`
	PendingID       string                `json:"pendingId,omitempty"`
	Recommendations convo.Recommendations `json:"recommendations,omitempty"`
	Voice           VoiceState            `json:"voice,omitempty"`
	Draft           *convo.Draft          `json:"draft,omitempty"`
	Rating          int                   `json:"rating,omitempty"`
	Text            string                `json:"text,omitempty"`
}

// Observer receives events. Notify is called without engine locks held and
// must not block for long.
type Observer interface {
	Notify(ev Event)
}

type ObserverFunc func(ev Event)

func (f ObserverFunc) Notify(ev Event) { f(ev) }

type nopObserver struct{}

func (nopObserver) Notify(Event) {}

// Bus fans events out to subscribers. A subscriber that falls behind loses
// events instead of stalling the engine.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

func (b *Bus) Notify(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger().Infow("drop event for slow subscriber", "sub", id, "kind", ev.Kind)
		}
	}
}

// Subscribe returns a channel of events and a func to detach it
func (b *Bus) Subscribe(size int) (<-chan Event, func()) {
	if size < 1 {
		size = 1
	}
	ch := make(chan Event, size)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Len returns the number of subscribers
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
