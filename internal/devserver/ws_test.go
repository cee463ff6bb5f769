package devserver

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/flowmate/flowmate/internal/chat"
	"github.com/flowmate/flowmate/internal/diagram"
	"github.com/flowmate/flowmate/internal/events"
	"github.com/flowmate/flowmate/internal/session"
	"github.com/flowmate/flowmate/internal/transport"
)

const testDiagram = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL">
  <bpmn:process id="p1"></bpmn:process>
</bpmn:definitions>`

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// TestEndToEnd_ChatRoundTrip drives the full client stack against the dev
// server over a real WebSocket: create a session over REST, join it, send a
// message with diagram markup attached, and watch the streamed reply land in
// the conversation with the echoed markup applied.
func TestEndToEnd_ChatRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx := context.Background()
	api := session.NewClient(ts.URL)
	created, err := api.CreateSession(ctx, "p1", "Round trip")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	registry := events.NewRegistry()
	conn := transport.New(registry, transport.Options{URL: wsURL})
	defer conn.Disconnect()

	conv := chat.NewConversation()
	modeler := diagram.NewMemoryModeler(testDiagram)
	ctrl := chat.NewController(conn, registry, conv, modeler, chat.Options{ProcessID: "p1"})
	defer ctrl.Close()
	coord := session.NewCoordinator(api, conn, ctrl, slog.Default())

	conn.Connect()
	waitFor(t, "connection", func() bool { return conn.State() == transport.StateConnected })

	if err := coord.JoinSession(created.ID); err != nil {
		t.Fatalf("JoinSession failed: %v", err)
	}
	if err := ctrl.Send("add a review step"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	waitFor(t, "assistant reply", func() bool {
		msgs := ctrl.Messages()
		return len(msgs) >= 3 && !ctrl.Loading()
	})

	msgs := ctrl.Messages()
	if msgs[0].Role != chat.RoleUser || msgs[0].Content != "add a review step" {
		t.Errorf("Unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != chat.RoleAssistant || msgs[1].Content == "" {
		t.Errorf("Unexpected assistant message: %+v", msgs[1])
	}
	if msgs[1].DiagramXML != testDiagram {
		t.Error("Expected echoed markup attached to the assistant message")
	}
	if msgs[2].Role != chat.RoleSystem || !strings.Contains(msgs[2].Content, "applied automatically") {
		t.Errorf("Expected apply confirmation, got %+v", msgs[2])
	}

	// The server persisted both sides; history must round-trip over REST.
	stored, err := api.GetMessages(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 persisted messages, got %d", len(stored))
	}
	if stored[0].Role != "user" || stored[1].Role != "assistant" {
		t.Errorf("Unexpected persisted roles: %s, %s", stored[0].Role, stored[1].Role)
	}
	if stored[1].XMLContent != testDiagram {
		t.Error("Expected assistant markup persisted")
	}
}
