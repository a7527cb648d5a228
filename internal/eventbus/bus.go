// Package eventbus is the fire-and-forget publish/subscribe hub that
// session managers use to stream output, exit, progress and tab-lifecycle
// events to in-process subscribers; nothing in this module forwards bus
// events over the IPC endpoint. It generalizes the teacher's per-session notify
// channel (bridge/terminal/manager.go's TerminalSession.notify) into a
// typed, topic-keyed bus shared by every session kind.
package eventbus

import (
	"sync"

	"github.com/mordilloSan/termbridge/internal/logger"
)

// Event is a single message published on the bus. Topic is the event
// name (e.g. "pty-output", "ssh-exit", "upload-progress", "tab-created");
// SessionID is empty for events with no owning session (e.g. upload and
// download progress, which carry their transfer id inside Data instead).
type Event struct {
	Topic     string
	SessionID string
	Data      any
}

// Subscriber receives events. Handlers run on a dedicated per-subscription
// drain goroutine, one at a time, in the order Publish enqueued them, so a
// slow subscriber never blocks Publish or other subscribers and events for
// one id are never reordered in transit (spec.md §5, Testable Property #3).
type Subscriber func(Event)

// subscription owns an unbounded FIFO queue and the single goroutine that
// drains it, so concurrent Publish calls never race handler invocations
// against each other for this subscriber.
type subscription struct {
	id    uint64
	topic string
	fn    Subscriber

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
}

func newSubscription(id uint64, topic string, fn Subscriber) *subscription {
	s := &subscription{id: id, topic: topic, fn: fn}
	s.cond = sync.NewCond(&s.mu)
	go s.drain()
	return s
}

func (s *subscription) enqueue(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.cond.Signal()
}

// drain delivers queued events one at a time, in arrival order, until the
// subscription is closed and the queue has emptied.
func (s *subscription) drain() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		safeDispatch(s.fn, ev)
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Bus is safe for concurrent use. The zero value is not usable; use New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscription
	nextID uint64
}

func New() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscribe registers fn for every event published on topic and returns
// an unsubscribe function. An empty topic subscribes to all topics.
func (b *Bus) Subscribe(topic string, fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	s := newSubscription(id, topic, fn)
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		list := b.subs[topic]
		for i, sub := range list {
			if sub.id == id {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		s.close()
	}
}

// Publish fans out ev to every subscriber of ev.Topic and every
// subscriber of the wildcard "" topic. Publish only enqueues: it never
// blocks on a subscriber's handler, and each subscriber's events stay in
// the order Publish was called for that subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs[ev.Topic])+len(b.subs[""]))
	targets = append(targets, b.subs[ev.Topic]...)
	targets = append(targets, b.subs[""]...)
	b.mu.RUnlock()

	for _, s := range targets {
		s.enqueue(ev)
	}
}

// safeDispatch recovers a panicking handler so it cannot take down the
// subscription's drain goroutine or affect other subscribers.
func safeDispatch(fn Subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV("eventbus subscriber panicked", "topic", ev.Topic, "session", ev.SessionID, "recover", r)
		}
	}()
	fn(ev)
}

// Output topic names, shared across session kinds per spec.md §4.
const (
	TopicPTYOutput = "pty-output"
	TopicPTYExit   = "pty-exit"
	TopicSSHOutput = "ssh-output"
	TopicSSHExit   = "ssh-exit"

	TopicUploadProgress   = "upload-progress"
	TopicDownloadProgress = "download-progress"

	TopicTabCreated = "tab-created"
	TopicTabClosed  = "tab-closed"
)
