package events

import (
	"encoding/json"
	"sync"
)

// EventHub fans daemon events out to subscribers. A subscription can watch a
// single laser line or every line at once.
type EventHub struct {
	mu sync.RWMutex
	// subs maps a subscriber channel to its line filter, "" for all lines.
	subs map[chan Event]string
}

func NewEventHub() *EventHub { return &EventHub{subs: make(map[chan Event]string)} }

// Subscribe returns a channel receiving events from every line.
func (h *EventHub) Subscribe() chan Event { return h.SubscribeLine("") }

// SubscribeLine returns a channel receiving only events about the named
// line. An empty name matches every line. Filtering happens at publish
// time, so a per-line watcher never has other lines' traffic queued
// against its buffer.
func (h *EventHub) SubscribeLine(line string) chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[ch] = line
	h.mu.Unlock()
	return ch
}

func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish fans an event out to every matching subscriber, tagged with the
// laser line it concerns.
func (h *EventHub) Publish(line, name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := Event{Line: line, Name: name, Data: b}
	h.mu.RLock()
	for ch, filter := range h.subs {
		if filter != "" && filter != line {
			continue
		}
		// Non-blocking send; drop if subscriber is slow
		select {
		case ch <- msg:
		default:
		}
	}
	h.mu.RUnlock()
}
