package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Topic identifies one of the fixed event streams the core publishes.
type Topic string

const (
	// TopicMessageData carries live, possibly not-yet-persisted message batches
	// for low-latency consumers. Subscribers must tolerate seeing a message
	// before enrichment or durable storage.
	TopicMessageData Topic = "message:data"

	// TopicRecordMessages carries enrichment deltas to persist.
	TopicRecordMessages Topic = "storage:record:messages"

	// TopicMessageProcessed carries per-batch telemetry.
	TopicMessageProcessed Topic = "message:processed"

	// TopicTakeoutProgress carries percent+label progress of takeout tasks.
	TopicTakeoutProgress Topic = "takeout:task:progress"

	// TopicTakeoutStats carries takeout statistics snapshots.
	TopicTakeoutStats Topic = "takeout:stats:data"

	// TopicCoreError surfaces non-fatal errors with a human description.
	TopicCoreError Topic = "core:error"
)

// Event is one published item on the bus.
type Event struct {
	Topic   Topic       `json:"topic"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// ErrorPayload is the payload of TopicCoreError events.
type ErrorPayload struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type subscriber struct {
	ch     chan Event
	topics map[Topic]bool // nil means all topics
}

// Bus is the process-wide typed publish/subscribe hub. Publish never blocks:
// when a subscriber's buffer is full the event is dropped for that subscriber
// and counted, preserving fire-and-forget emit semantics for the publisher.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	buffer  int
	closed  bool
	dropped uint64
	logger  *logrus.Logger
}

// NewBus creates a bus whose subscriber channels hold up to buffer events.
func NewBus(buffer int, logger *logrus.Logger) *Bus {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Bus{
		subs:   make(map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers interest in the given topics (all topics when none are
// given) and returns the event channel plus an unsubscribe func. The channel
// is closed on unsubscribe and on bus close.
func (b *Bus) Subscribe(topics ...Topic) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, b.buffer)}
	if len(topics) > 0 {
		sub.topics = make(map[Topic]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[sub]; ok {
				delete(b.subs, sub)
				close(sub.ch)
			}
			b.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Publish delivers the payload to every matching subscriber without blocking.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	ev := Event{Topic: topic, Payload: payload, At: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for sub := range b.subs {
		if sub.topics != nil && !sub.topics[topic] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			atomic.AddUint64(&b.dropped, 1)
			b.logger.WithField("topic", topic).Debug("Event dropped: subscriber buffer full")
		}
	}
}

// PublishError is a convenience for the core:error topic.
func (b *Bus) PublishError(code, description string) {
	b.Publish(TopicCoreError, ErrorPayload{Code: code, Description: description})
}

// Dropped returns the number of events discarded due to full buffers.
func (b *Bus) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

// Close tears down all subscriptions. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}
