// Package event carries lifecycle notifications from the registry and its
// layers to whoever is watching: the CLI, the HTTP event stream and the
// metrics collectors.
//
// A [Bus] delivers every posted [Event] synchronously to handlers in the
// order they subscribed. Consumers that must not block the poster use
// [Bus.Channel], which buffers and drops on overflow.
package event

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Kind identifies the type of an event.
type Kind int

const (
	LayerAdded Kind = iota + 1
	LayerRemoved
	LayerRenamed
	LayerReordered
	FrameChanged
	ComputeStarted
	ComputeFinished
	TagAdded
	TagRemoved
	ExportStarted
	ExportFinished
)

var kindNames = map[Kind]string{
	LayerAdded:      "layer_added",
	LayerRemoved:    "layer_removed",
	LayerRenamed:    "layer_renamed",
	LayerReordered:  "layer_reordered",
	FrameChanged:    "frame_changed",
	ComputeStarted:  "compute_started",
	ComputeFinished: "compute_finished",
	TagAdded:        "tag_added",
	TagRemoved:      "tag_removed",
	ExportStarted:   "export_started",
	ExportFinished:  "export_finished",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", b)
}

// Event is a single lifecycle notification. Fields not relevant to the kind
// are left empty.
type Event struct {
	Kind     Kind          `json:"kind"`
	Layer    string        `json:"layer,omitempty"`
	Previous string        `json:"previous,omitempty"` // old layer id of a rename
	Node     string        `json:"node,omitempty"`
	Tag      string        `json:"tag,omitempty"`
	Order    []string      `json:"order,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Time     time.Time     `json:"time"`
}

// Handler receives events.
type Handler func(Event)

type subscriber struct {
	id int
	fn Handler
}

// Bus fans events out to subscribers. The zero value is ready to use and
// safe for concurrent use.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscriber
	next    int
	dropped int
}

// NewBus returns an empty bus.
func NewBus() *Bus { return &Bus{} }

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscriber{id: id, fn: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscriber) bool { return s.id == id })
	}
}

// Channel subscribes a buffered channel. Events posted while the buffer is
// full are dropped. The cancel function unsubscribes and closes the channel.
func (b *Bus) Channel(size int) (<-chan Event, func()) {
	ch := make(chan Event, size)
	var once sync.Once
	var mu sync.Mutex
	closed := false
	unsub := b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
			b.mu.Lock()
			b.dropped++
			b.mu.Unlock()
		}
	})
	return ch, func() {
		once.Do(func() {
			unsub()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
}

// Post stamps e with the current time when unset and delivers it to every
// subscriber. A nil bus discards the event.
func (b *Bus) Post(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(e)
	}
}

// Dropped returns the number of events discarded by full channels.
func (b *Bus) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}
