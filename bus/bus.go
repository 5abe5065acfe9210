package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultQueueSize = 256

// Subscriber is a bounded mailbox for one consumer of one topic. When
// full, the oldest queued envelope is dropped to make room for the new
// one; the publisher never blocks on a slow consumer.
type Subscriber struct {
	ch      chan Envelope
	dropped atomic.Int64
}

// C returns the channel to range/select over.
func (s *Subscriber) C() <-chan Envelope { return s.ch }

// Dropped returns the number of envelopes dropped for this subscriber
// due to a full queue.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

func (s *Subscriber) send(e Envelope) {
	select {
	case s.ch <- e:
		return
	default:
	}
	// Queue is full: drop the oldest, then retry once. Another
	// publisher could win the race for the freed slot, in which case
	// this envelope is dropped as well (both losses are counted); delivery
	// order is never corrupted.
	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// Bus is the in-process pub/sub: bounded per-subscriber queues,
// oldest-dropped backpressure, never blocking a publisher.
type Bus struct {
	log *slog.Logger

	queueSize int

	mu   sync.RWMutex
	subs map[Topic][]*Subscriber
}

// New creates a Bus. queueSize <= 0 uses the default of 256.
func New(queueSize int, log *slog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		log:       log.With("component", "bus"),
		queueSize: queueSize,
		subs:      make(map[Topic][]*Subscriber),
	}
}

// Subscribe registers a new Subscriber on topic. Callers should stop
// reading (and drop the reference) when done; there is no explicit
// Unsubscribe since the reference workers here are long-lived for the
// life of the process.
func (b *Bus) Subscribe(topic Topic) *Subscriber {
	sub := &Subscriber{ch: make(chan Envelope, b.queueSize)}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()
	return sub
}

// Publish fans e out to every subscriber of its topic. Never blocks.
func (b *Bus) Publish(e Envelope) {
	topic := TopicForType(e.Type)
	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()
	for _, sub := range subs {
		sub.send(e)
	}
}
