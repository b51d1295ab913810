package events

import (
	"testing"
)

func TestHubFanOut(t *testing.T) {
	h := NewEventHub()
	a := h.Subscribe()
	b := h.Subscribe()
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish("red", PowerChanged, PowerChangedEvent{Power: 0.05, Control: 1.2})

	for _, ch := range []chan Event{a, b} {
		select {
		case ev := <-ch:
			if ev.Line != "red" || ev.Name != PowerChanged {
				t.Fatalf("got event %s/%s, want red/%s", ev.Line, ev.Name, PowerChanged)
			}
			p, err := DecodeAs[PowerChangedEvent](ev)
			if err != nil {
				t.Fatalf("DecodeAs: %v", err)
			}
			if p.Power != 0.05 || p.Control != 1.2 {
				t.Fatalf("payload = %+v", p)
			}
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestHubLineFilter(t *testing.T) {
	h := NewEventHub()
	red := h.SubscribeLine("red")
	all := h.Subscribe()
	defer h.Unsubscribe(red)
	defer h.Unsubscribe(all)

	h.Publish("green", SwitchChanged, SwitchChangedEvent{On: true})

	select {
	case ev := <-red:
		t.Fatalf("red subscriber received %s event about line %s", ev.Name, ev.Line)
	default:
	}
	select {
	case ev := <-all:
		if ev.Line != "green" {
			t.Fatalf("unfiltered subscriber got line %s, want green", ev.Line)
		}
	default:
		t.Fatal("unfiltered subscriber did not receive the event")
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewEventHub()
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	// Fill past the channel buffer without draining. Publish must not
	// block, it drops overflow instead.
	for i := 0; i < 100; i++ {
		h.Publish("red", MonitorReading, MonitorReadingEvent{Power: float64(i)})
	}

	if got := len(sub); got != cap(sub) {
		t.Fatalf("expected a full buffer of %d events, got %d", cap(sub), got)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewEventHub()
	sub := h.Subscribe()
	h.Unsubscribe(sub)

	if _, ok := <-sub; ok {
		t.Fatal("channel still open after Unsubscribe")
	}

	// A second Unsubscribe of the same channel is a no-op, not a panic.
	h.Unsubscribe(sub)

	// Publishing after unsubscribe must not panic either.
	h.Publish("red", PowerChanged, PowerChangedEvent{})
}

func TestDecodeAsEmptyPayload(t *testing.T) {
	p, err := DecodeAs[CalibrationFinishedEvent](Event{Name: CalibrationFinished})
	if err != nil {
		t.Fatalf("DecodeAs on empty payload: %v", err)
	}
	if p.Outcome != "" || p.Measured != 0 {
		t.Fatalf("expected zero value, got %+v", p)
	}
}
