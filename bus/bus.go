package bus

import (
	"sync"
	"sync/atomic"
)

// Event is the value-copied payload carried on a queued topic. Components
// publish concrete values (marketdata.Record, strategy.Signal, ...) wrapped
// in Event so a single bus implementation serves every topic; subscribers
// type-assert Payload back to the concrete type they expect for that topic.
type Event struct {
	Topic   Topic
	Payload interface{}
}

// subscription is one subscriber's unbounded FIFO queue on a single topic.
// It is backed by a slice plus a condition variable rather than a Go
// channel because publish must never block or drop: a channel would force
// a choice between a bounded buffer (drops/blocks when full) or an
// unbounded goroutine-per-send fan-out, whereas a mutex-guarded slice
// queue gives FIFO order and O(1) amortized push with no capacity limit.
type subscription struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
}

func newSubscription() *subscription {
	s := &subscription{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscription) push(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, evt)
	s.cond.Signal()
}

// next blocks until an event is available, the subscription is closed, or
// shutdown is signalled. ok is false only when the wait ended due to
// closure/shutdown with no event delivered.
func (s *subscription) next(shutdown *atomic.Bool) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		if shutdown.Load() {
			return Event{}, false
		}
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return Event{}, false
	}
	evt := s.queue[0]
	s.queue = s.queue[1:]
	return evt, true
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
}

// flag is a boolean synchronization variable protected by a condition
// variable, matching spec.md §4.1's flag-topic semantics: publish sets,
// get reads, await blocks until set.
type flag struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value bool
}

func newFlag() *flag {
	f := &flag{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *flag) set(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = v
	f.cond.Broadcast()
}

func (f *flag) get() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// await blocks until the flag equals want, or shutdown is signalled. ok is
// false only when shutdown interrupted the wait.
func (f *flag) await(want bool, shutdown *atomic.Bool) (ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.value != want {
		if shutdown.Load() {
			return false
		}
		f.cond.Wait()
	}
	return true
}

// Bus is the process-wide pub/sub and flag-synchronization hub described
// in spec.md §4.1. A single Bus instance is shared by every component in a
// run; it owns no goroutine of its own (unlike the teacher's
// WebSocketManager.Run loop) because publish/subscribe here are wait-free
// data structure operations, not channel sends that need an actor to drain
// them.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]*subscription
	flgs map[FlagTopic]*flag

	shutdown atomic.Bool
}

// New constructs a Bus with every fixed topic and flag pre-registered.
func New() *Bus {
	b := &Bus{
		subs: make(map[Topic][]*subscription),
		flgs: make(map[FlagTopic]*flag),
	}
	for _, t := range queuedTopics {
		b.subs[t] = nil
	}
	for _, f := range flagTopics {
		b.flgs[f] = newFlag()
	}
	return b
}

// Subscriber is a handle returned by Subscribe; callers pull events with
// Next until it returns ok=false (closed or shut down).
type Subscriber struct {
	sub      *subscription
	shutdown *atomic.Bool
}

// Next blocks for the subscriber's next event on its topic.
func (s *Subscriber) Next() (Event, bool) {
	return s.sub.next(s.shutdown)
}

// Subscribe registers a fresh FIFO queue on topic and returns a handle to
// drain it. Each call creates an independent subscriber; publish fans out
// a copy of the event to every subscriber registered at publish time.
func (b *Bus) Subscribe(topic Topic) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := newSubscription()
	b.subs[topic] = append(b.subs[topic], sub)
	return &Subscriber{sub: sub, shutdown: &b.shutdown}
}

// Publish fans payload out to every current subscriber of topic. Publish
// never blocks and never drops: each subscriber's queue is unbounded.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()

	evt := Event{Topic: topic, Payload: payload}
	for _, s := range subs {
		s.push(evt)
	}
}

// SetFlag sets a flag topic's boolean value and wakes every waiter.
func (b *Bus) SetFlag(topic FlagTopic, value bool) {
	b.flgs[topic].set(value)
}

// GetFlag reads a flag topic's current boolean value without blocking.
func (b *Bus) GetFlag(topic FlagTopic) bool {
	return b.flgs[topic].get()
}

// AwaitFlag blocks until topic equals want or shutdown is signalled. It
// returns false if the wait was interrupted by shutdown rather than by the
// flag reaching want.
func (b *Bus) AwaitFlag(topic FlagTopic, want bool) bool {
	return b.flgs[topic].await(want, &b.shutdown)
}

// Shutdown sets the process-wide shutdown atomic and wakes every blocked
// subscriber and flag waiter so they can observe it and return. This is
// the bus's equivalent of publishing to the SHUTDOWN topic in spec.md
// §4.1: a single sticky signal, not a queued event, since every waiter
// needs to notice it regardless of subscription state.
func (b *Bus) Shutdown() {
	b.shutdown.Store(true)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, subs := range b.subs {
		for _, s := range subs {
			s.cond.Broadcast()
		}
	}
	for _, f := range b.flgs {
		f.cond.Broadcast()
	}
}

// ShuttingDown reports whether shutdown has been signalled.
func (b *Bus) ShuttingDown() bool {
	return b.shutdown.Load()
}

// Unsubscribe closes a subscriber's queue; any blocked or future Next call
// returns ok=false. Used by components that tear down before process
// shutdown (e.g. a strategy worker being replaced).
func (b *Bus) Unsubscribe(topic Topic, s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, existing := range subs {
		if existing == s.sub {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.sub.close()
}
