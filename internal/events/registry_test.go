package events

import (
	"encoding/json"
	"testing"
)

func TestRegistry_DispatchInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	var order []int

	r.Subscribe("token", func(json.RawMessage) { order = append(order, 1) })
	r.Subscribe("token", func(json.RawMessage) { order = append(order, 2) })
	r.Subscribe("token", func(json.RawMessage) { order = append(order, 3) })

	r.Dispatch("token", nil)

	if len(order) != 3 {
		t.Fatalf("Expected 3 invocations, got %d", len(order))
	}
	for i, v := range order {
		if v != i+1 {
			t.Errorf("Expected handler %d at position %d, got %d", i+1, i, v)
		}
	}
}

func TestRegistry_CancelStopsInvocations(t *testing.T) {
	r := NewRegistry()
	calls := 0

	sub := r.Subscribe("token", func(json.RawMessage) { calls++ })
	r.Dispatch("token", nil)
	sub.Cancel()
	r.Dispatch("token", nil)

	if calls != 1 {
		t.Errorf("Expected 1 call after cancel, got %d", calls)
	}
}

func TestRegistry_CancelTwiceIsHarmless(t *testing.T) {
	r := NewRegistry()
	sub := r.Subscribe("token", func(json.RawMessage) {})
	sub.Cancel()
	sub.Cancel()

	if n := r.HandlerCount("token"); n != 0 {
		t.Errorf("Expected 0 handlers, got %d", n)
	}
}

func TestRegistry_DispatchWithNoSubscribersIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Dispatch("nothing", json.RawMessage(`{"x":1}`))
}

func TestRegistry_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	r := NewRegistry()
	reached := false

	r.Subscribe("token", func(json.RawMessage) { panic("boom") })
	r.Subscribe("token", func(json.RawMessage) { reached = true })

	r.Dispatch("token", nil)

	if !reached {
		t.Error("Expected second handler to run after first panicked")
	}
}

func TestRegistry_RemovingLastHandlerFreesBucket(t *testing.T) {
	r := NewRegistry()
	a := r.Subscribe("token", func(json.RawMessage) {})
	b := r.Subscribe("token", func(json.RawMessage) {})

	a.Cancel()
	if n := r.HandlerCount("token"); n != 1 {
		t.Fatalf("Expected 1 handler, got %d", n)
	}
	b.Cancel()

	r.mu.Lock()
	_, exists := r.handlers["token"]
	r.mu.Unlock()
	if exists {
		t.Error("Expected empty bucket to be deleted")
	}
}

func TestRegistry_SameFunctionSubscribesIndependently(t *testing.T) {
	r := NewRegistry()
	calls := 0
	fn := func(json.RawMessage) { calls++ }

	first := r.Subscribe("token", fn)
	r.Subscribe("token", fn)

	r.Dispatch("token", nil)
	if calls != 2 {
		t.Fatalf("Expected both registrations to fire, got %d", calls)
	}

	first.Cancel()
	r.Dispatch("token", nil)
	if calls != 3 {
		t.Errorf("Expected one remaining registration, got %d total calls", calls)
	}
}

func TestRegistry_PayloadDelivered(t *testing.T) {
	r := NewRegistry()
	var got string

	r.Subscribe("token", func(data json.RawMessage) {
		var p struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		got = p.Content
	})

	r.Dispatch("token", json.RawMessage(`{"content":"hello"}`))

	if got != "hello" {
		t.Errorf("Expected payload %q, got %q", "hello", got)
	}
}
