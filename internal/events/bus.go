// Package events fans run updates out to live subscribers.
package events

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/jonathan/found/internal/types"
)

// DefaultBuffer is the number of undelivered events a subscriber may fall
// behind before further events are dropped for it.
const DefaultBuffer = 50

// DefaultMaxSubscribers is the subscriber count past which Subscribe warns.
const DefaultMaxSubscribers = 50

// Source identifies which kind of run an event carries.
type Source string

const (
	SourceAgent   Source = "agent"
	SourceBrowser Source = "browser"
)

// Event is a snapshot of one run at the moment it was published.
type Event struct {
	Source     Source            `json:"source"`
	Run        *types.Run        `json:"run,omitempty"`
	BrowserRun *types.BrowserRun `json:"browserRun,omitempty"`
}

// AgentEvent wraps an agent run snapshot.
func AgentEvent(run types.Run) Event {
	return Event{Source: SourceAgent, Run: &run}
}

// BrowserEvent wraps a browser run snapshot.
func BrowserEvent(run types.BrowserRun) Event {
	return Event{Source: SourceBrowser, BrowserRun: &run}
}

// Record returns the run the event carries.
func (ev Event) Record() any {
	if ev.BrowserRun != nil {
		return ev.BrowserRun
	}
	return ev.Run
}

// Handler receives published events on the subscriber's own goroutine.
type Handler func(Event)

// Publisher is what the orchestrators need from the bus.
type Publisher interface {
	Publish(ev Event)
}

// Bus is an in-process fan-out. There is no replay: a subscriber only
// sees events published after it subscribed.
type Bus struct {
	mu             sync.RWMutex
	subs           map[uint64]*Subscription
	nextID         uint64
	buffer         int
	maxSubscribers int
}

// NewBus creates a bus with the given per-subscriber buffer and
// subscriber capacity. Non-positive values use DefaultBuffer and
// DefaultMaxSubscribers.
func NewBus(buffer, maxSubscribers int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if maxSubscribers <= 0 {
		maxSubscribers = DefaultMaxSubscribers
	}
	return &Bus{subs: make(map[uint64]*Subscription), buffer: buffer, maxSubscribers: maxSubscribers}
}

// Subscription is a live registration on the bus.
type Subscription struct {
	id      uint64
	bus     *Bus
	ch      chan Event
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// Subscribe registers handler and starts delivering to it. Going past
// the subscriber capacity is logged; the subscription is still made.
func (b *Bus) Subscribe(handler Handler) *Subscription {
	b.mu.Lock()
	b.nextID++
	sub := &Subscription{
		id:   b.nextID,
		bus:  b,
		ch:   make(chan Event, b.buffer),
		done: make(chan struct{}),
	}
	b.subs[sub.id] = sub
	count := len(b.subs)
	b.mu.Unlock()

	if count > b.maxSubscribers {
		log.Printf("[events] subscriber capacity exceeded: %d subscribers (max %d)", count, b.maxSubscribers)
	}

	go sub.deliver(handler)
	return sub
}

// Publish hands ev to every subscriber without waiting on any of them.
// A subscriber whose buffer is full misses the event.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			n := sub.dropped.Add(1)
			log.Printf("[events] Subscriber %d is behind, dropped %s event (%d total)", sub.id, ev.Source, n)
		}
	}
}

// Len returns the number of live subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unregisters the subscription. Events already buffered are
// discarded. Close is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
		close(s.done)
	})
}

func (s *Subscription) deliver(handler Handler) {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.ch:
			s.invoke(handler, ev)
		}
	}
}

func (s *Subscription) invoke(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[events] Subscriber %d handler panicked: %v", s.id, r)
		}
	}()
	handler(ev)
}
