package state

import (
	"testing"
)

func TestHubDeliversInOrder(t *testing.T) {
	h := NewHub[int]()
	var got []string

	h.Subscribe(func(v int) { got = append(got, "a") })
	h.Subscribe(func(v int) { got = append(got, "b") })
	h.Publish(1)

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub[string]()
	calls := 0
	unsub := h.Subscribe(func(string) { calls++ })

	h.Publish("x")
	unsub()
	unsub()
	h.Publish("y")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if n := h.subscribers(); n != 0 {
		t.Errorf("subscribers() = %d, want 0", n)
	}
}

func TestHubSubscriberMayUnsubscribeDuringPublish(t *testing.T) {
	h := NewHub[int]()
	var unsub func()
	calls := 0
	unsub = h.Subscribe(func(int) {
		calls++
		unsub()
	})

	h.Publish(1)
	h.Publish(2)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
