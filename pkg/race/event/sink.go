package event

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gofrs/uuid/v5"
)

// Sink receives events. Emit must not block.
type Sink interface {
	Emit(e Event)
}

type SinkFunc func(e Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// ChannelSink queues events on a buffered channel. Events are dropped
// when the buffer is full.
type ChannelSink struct {
	ch      chan Event
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ Sink = (*ChannelSink)(nil)

func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, size)}
}

func (s *ChannelSink) Emit(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

func (s *ChannelSink) C() <-chan Event { return s.ch }

func (s *ChannelSink) Dropped() uint64 { return s.dropped.Load() }

func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Recorder keeps all emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ Sink = (*Recorder)(nil)

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Kind returns the recorded events of the given kinds.
func (r *Recorder) Kind(kinds ...Kind) []Event {
	ret := []Event{}
	for _, e := range r.Events() {
		if slices.Contains(kinds, e.Kind) {
			ret = append(ret, e)
		}
	}
	return ret
}

// Messages returns the text messages sent to participant.
func (r *Recorder) Messages(participant uuid.UUID) []string {
	ret := []string{}
	for _, e := range r.Events() {
		if e.IsText() && e.Participant == participant {
			ret = append(ret, e.Message)
		}
	}
	return ret
}

// Notifications returns the messages of notification events.
func (r *Recorder) Notifications() []string {
	ret := []string{}
	for _, e := range r.Events() {
		if e.Scope == ScopeNotify {
			ret = append(ret, e.Message)
		}
	}
	return ret
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
