package domain

import (
	"time"
)

// Message is one persisted conversation entry. XMLContent holds diagram
// markup attached to assistant replies.
type Message struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"-"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	XMLContent string    `json:"xmlContent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
