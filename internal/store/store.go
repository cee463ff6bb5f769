// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/flowmate/flowmate/internal/domain"
)

// Repository defines the interface for persisting sessions and messages.
type Repository interface {
	// CreateSession persists a new session.
	CreateSession(ctx context.Context, s *domain.Session) error

	// GetSession retrieves a session by id. Returns nil when not found.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// ListSessions retrieves a process's sessions, newest first.
	ListSessions(ctx context.Context, processID string) ([]*domain.Session, error)

	// TouchSession updates a session's updated_at timestamp.
	TouchSession(ctx context.Context, id string, at time.Time) error

	// AppendMessage persists one conversation entry.
	AppendMessage(ctx context.Context, m *domain.Message) error

	// GetMessages retrieves a session's messages in chronological order.
	GetMessages(ctx context.Context, sessionID string) ([]*domain.Message, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
