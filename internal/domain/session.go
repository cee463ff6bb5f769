// Package domain contains the server-side types persisted by the session
// service.
package domain

import (
	"time"
)

// Session is a persisted conversation thread tied to a process diagram.
type Session struct {
	ID        string    `json:"id"`
	ProcessID string    `json:"processId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Touch bumps the updated timestamp.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}
