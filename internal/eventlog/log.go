// Package eventlog implements an in-memory, append-only, offset-addressed event
// log with live subscription. Each stream backs one conversation's observability:
// late subscribers replay the full history before receiving live events, and
// offsets within a stream are dense (0, 1, 2, ...).
package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is a single published entry in a stream. Immutable once published.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Offset    int64       `json:"offset"`
	Timestamp time.Time   `json:"timestamp"`
}

// Log manages event streams. Safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	streams map[string]*stream
	logger  zerolog.Logger
}

// New creates an empty event log.
func New(logger zerolog.Logger) *Log {
	return &Log{
		streams: make(map[string]*stream),
		logger:  logger.With().Str("component", "eventlog").Logger(),
	}
}

type stream struct {
	mu     sync.Mutex
	events []Event
	subs   map[int64]*subscriber
	nextID int64
	closed bool
}

// subscriber buffers events so a slow reader never blocks Publish and never
// loses events. A pump goroutine drains the queue into the outbound channel.
type subscriber struct {
	mu    sync.Mutex
	queue []Event
	wake  chan struct{} // 1-buffered
	done  chan struct{} // closed exactly once via closeOnce
	once  sync.Once
}

func (s *subscriber) enqueue(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// CreateStream creates a stream if it does not already exist. Idempotent.
func (l *Log) CreateStream(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.streams[id]; !ok {
		l.streams[id] = &stream{subs: make(map[int64]*subscriber)}
	}
}

func (l *Log) getOrCreate(id string) *stream {
	l.mu.RLock()
	st, ok := l.streams[id]
	l.mu.RUnlock()
	if ok {
		return st
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok = l.streams[id]; ok {
		return st
	}
	st = &stream{subs: make(map[int64]*subscriber)}
	l.streams[id] = st
	return st
}

// Publish appends an event to the stream, auto-creating it if absent, and hands
// the event to every registered subscriber before returning. Returns the offset
// assigned to the event. Publishing after DeleteStream starts a fresh stream at
// offset 0; only a publish racing the delete on the old stream returns -1.
func (l *Log) Publish(streamID, eventType string, data interface{}) int64 {
	st := l.getOrCreate(streamID)

	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return -1
	}
	ev := Event{
		Type:      eventType,
		Data:      data,
		Offset:    int64(len(st.events)),
		Timestamp: time.Now().UTC(),
	}
	st.events = append(st.events, ev)
	// Enqueue under the stream lock so concurrent publishers cannot deliver
	// offsets out of order; enqueue never blocks.
	for _, s := range st.subs {
		s.enqueue(ev)
	}
	st.mu.Unlock()
	return ev.Offset
}

// Events returns a snapshot of all events stored in the stream, in offset order.
// Returns nil for an unknown stream.
func (l *Log) Events(streamID string) []Event {
	l.mu.RLock()
	st, ok := l.streams[streamID]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Event, len(st.events))
	copy(out, st.events)
	return out
}

// Subscribe returns a channel that first yields every stored event in offset
// order, then live events as they are published. The channel closes when ctx is
// cancelled or the stream is deleted. Subscribing auto-creates the stream.
func (l *Log) Subscribe(ctx context.Context, streamID string) <-chan Event {
	out := make(chan Event)
	st := l.getOrCreate(streamID)

	sub := &subscriber{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		close(out)
		return out
	}
	id := st.nextID
	st.nextID++
	st.subs[id] = sub
	// Backfill inside the registration lock so no published event can land
	// between the snapshot and the live queue.
	sub.queue = append(sub.queue, st.events...)
	st.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			st.mu.Lock()
			delete(st.subs, id)
			st.mu.Unlock()
		}()
		for {
			sub.mu.Lock()
			pending := sub.queue
			sub.queue = nil
			sub.mu.Unlock()

			for _, ev := range pending {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-sub.done:
					return
				}
			}

			select {
			case <-sub.wake:
			case <-ctx.Done():
				return
			case <-sub.done:
				// Drain anything enqueued before the stream closed.
				sub.mu.Lock()
				rest := sub.queue
				sub.queue = nil
				sub.mu.Unlock()
				for _, ev := range rest {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
				return
			}
		}
	}()

	return out
}

// DeleteStream removes the stream and ends all of its subscribers' channels.
// Returns whether the stream existed.
func (l *Log) DeleteStream(streamID string) bool {
	l.mu.Lock()
	st, ok := l.streams[streamID]
	if ok {
		delete(l.streams, streamID)
	}
	l.mu.Unlock()
	if !ok {
		return false
	}

	st.mu.Lock()
	st.closed = true
	subs := make([]*subscriber, 0, len(st.subs))
	for _, s := range st.subs {
		subs = append(subs, s)
	}
	st.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	l.logger.Debug().Str("stream_id", streamID).Msg("stream deleted")
	return true
}

// StreamExists reports whether the stream is currently live.
func (l *Log) StreamExists(streamID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.streams[streamID]
	return ok
}
