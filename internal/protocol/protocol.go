// Package protocol defines the wire protocol spoken between the editor
// client and the assistant service: named events carried in a JSON envelope.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Events emitted by the assistant service.
const (
	EventToken           = "token"
	EventMessageReceived = "message_received"
	EventMessageComplete = "message_complete"
	EventAssistantTyping = "assistant_typing"
	EventTypingIndicator = "typing_indicator"
	EventClientJoined    = "client_joined"
	EventClientLeft      = "client_left"
	EventNewMessage      = "new_message"
	EventError           = "error"
)

// Events emitted by the client.
const (
	EventJoinSession  = "join_session"
	EventLeaveSession = "leave_session"
	EventChatMessage  = "chat_message"
)

// Typing status values carried by assistant_typing.
const (
	TypingStarted = "started"
	TypingStopped = "stopped"
)

// Envelope is the framing for every message on the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals a payload into a framed envelope ready for the wire.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		env.Data = data
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return b, nil
}

// Decode parses a framed envelope received from the wire.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("envelope missing event name")
	}
	return env, nil
}

// Token carries one streamed fragment of an assistant reply.
type Token struct {
	Content string `json:"content"`
}

// MessageReceived acknowledges that the service accepted a chat message.
// Diagnostic only; the client does not act on it.
type MessageReceived struct {
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageComplete marks the end of a streamed assistant reply. XML, when
// present, is diagram markup the client should apply to the live model.
type MessageComplete struct {
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
	XML       string    `json:"xml,omitempty"`
}

// AssistantTyping toggles the "assistant is thinking" indicator and may
// precede the first token of a reply.
type AssistantTyping struct {
	Status string `json:"status"`
}

// TypingIndicator reports a participant's typing state. ClientID may be
// empty when the service cannot attribute the indicator to a connection.
type TypingIndicator struct {
	IsTyping  bool   `json:"isTyping"`
	SessionID string `json:"sessionId,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
}

// Presence reports a participant joining or leaving the session's live view.
type Presence struct {
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage is a complete message echoed to co-watching participants.
type NewMessage struct {
	MessageID string    `json:"messageId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	XML       string    `json:"xml,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error is a server-reported protocol error, surfaced inline in the
// conversation.
type Error struct {
	Message string `json:"message"`
}

// JoinSession tells the service which session this connection is observing.
type JoinSession struct {
	SessionID string `json:"sessionId"`
}

// LeaveSession tells the service the connection stopped observing a session.
type LeaveSession struct {
	SessionID string `json:"sessionId"`
}

// ChatMessage is an outgoing user message. DiagramXML carries the editor's
// current markup so the assistant can reason about the live diagram.
type ChatMessage struct {
	Content    string `json:"content"`
	SessionID  string `json:"sessionId,omitempty"`
	ProcessID  string `json:"processId,omitempty"`
	DiagramXML string `json:"diagramXml,omitempty"`
}
