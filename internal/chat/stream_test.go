package chat

import (
	"testing"
)

func TestAssembler_ConcatenatesFragmentsInOrder(t *testing.T) {
	conv := NewConversation()
	asm := NewAssembler(conv)

	fragments := []string{"Added ", "a ", "task"}
	var id string
	for _, f := range fragments {
		id = asm.Token(f)
	}

	msgs := conv.Snapshot()
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if msgs[0].ID != id {
		t.Errorf("Expected id %q, got %q", id, msgs[0].ID)
	}
	if msgs[0].Content != "Added a task" {
		t.Errorf("Expected concatenated content, got %q", msgs[0].Content)
	}
	if msgs[0].Role != RoleAssistant {
		t.Errorf("Expected assistant role, got %q", msgs[0].Role)
	}
}

func TestAssembler_AtMostOneStreamingMessage(t *testing.T) {
	conv := NewConversation()
	asm := NewAssembler(conv)

	first := asm.Token("a")
	second := asm.Token("b")

	if first != second {
		t.Errorf("Expected fragments to extend the same message, got %q and %q", first, second)
	}
	if conv.Len() != 1 {
		t.Errorf("Expected 1 message, got %d", conv.Len())
	}
}

func TestAssembler_CompleteClosesExactlyOne(t *testing.T) {
	conv := NewConversation()
	asm := NewAssembler(conv)

	streamID := asm.Token("hello")
	id, ok := asm.Complete()
	if !ok || id != streamID {
		t.Fatalf("Expected Complete to close %q, got %q ok=%v", streamID, id, ok)
	}
	if asm.Streaming() {
		t.Error("Expected no streaming message after Complete")
	}

	// A second complete has nothing to close.
	if _, ok := asm.Complete(); ok {
		t.Error("Expected second Complete to report nothing streaming")
	}
}

func TestAssembler_NextTokenStartsNewMessage(t *testing.T) {
	conv := NewConversation()
	asm := NewAssembler(conv)

	first := asm.Token("one")
	asm.Complete()
	second := asm.Token("two")

	if first == second {
		t.Error("Expected a fresh message after Complete")
	}
	if conv.Len() != 2 {
		t.Errorf("Expected 2 messages, got %d", conv.Len())
	}
}

func TestAssembler_ResetAbandonsStreamingMessage(t *testing.T) {
	conv := NewConversation()
	asm := NewAssembler(conv)

	first := asm.Token("orphaned")
	asm.Reset()
	if asm.Streaming() {
		t.Error("Expected no streaming message after Reset")
	}

	second := asm.Token("fresh")
	if first == second {
		t.Error("Expected a new message after Reset")
	}
	if got, _ := conv.Last(); got.Content != "fresh" {
		t.Errorf("Expected new fragment in a fresh message, got %q", got.Content)
	}
}

func TestConversation_ReplaceAllIsWholesale(t *testing.T) {
	conv := NewConversation()
	conv.Append(Message{ID: "old", Role: RoleUser, Content: "previous"})

	conv.ReplaceAll([]Message{
		{ID: "m1", Role: RoleUser, Content: "hi"},
		{ID: "m2", Role: RoleAssistant, Content: "hello", DiagramXML: "<x/>"},
	})

	msgs := conv.Snapshot()
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("Expected server ids preserved, got %q %q", msgs[0].ID, msgs[1].ID)
	}
	if msgs[1].DiagramXML != "<x/>" {
		t.Errorf("Expected markup preserved, got %q", msgs[1].DiagramXML)
	}
}

func TestConversation_SnapshotIsACopy(t *testing.T) {
	conv := NewConversation()
	conv.Append(Message{ID: "m1", Content: "hi"})

	snap := conv.Snapshot()
	snap[0].Content = "mutated"

	if got, _ := conv.Last(); got.Content != "hi" {
		t.Errorf("Expected conversation unchanged, got %q", got.Content)
	}
}
