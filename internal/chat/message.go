// Package chat holds the in-memory conversation state and the orchestration
// that turns transport events into a visible exchange with the assistant.
package chat

import (
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	// RoleUser marks messages typed by the local or a remote participant.
	RoleUser Role = "user"
	// RoleAssistant marks assistant replies, streamed or complete.
	RoleAssistant Role = "assistant"
	// RoleSystem marks inline notices: errors, presence, applied changes.
	RoleSystem Role = "system"
)

// Message is one entry in the conversation. DiagramXML is set when the
// assistant attached diagram markup that was applied to the live model.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	DiagramXML string    `json:"diagramXml,omitempty"`
}
