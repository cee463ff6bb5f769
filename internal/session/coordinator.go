package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowmate/flowmate/internal/chat"
	"github.com/flowmate/flowmate/internal/protocol"
)

// welcomeText is shown when no persisted history could be loaded. The
// interface stays usable even when the session service is unreachable.
const welcomeText = "Hi! I can help you edit this process diagram. Ask me to add, rename, or connect elements."

// Sender is the outgoing half of the transport the coordinator needs.
type Sender interface {
	Send(event string, payload any) error
}

// Coordinator tracks the active session. It notifies the transport when the
// observed session changes and loads persisted history into the
// conversation, replacing it wholesale.
type Coordinator struct {
	api    *Client
	sender Sender
	ctrl   *chat.Controller
	logger *slog.Logger

	mu     sync.Mutex
	active string
}

// NewCoordinator creates a coordinator bound to the given controller.
func NewCoordinator(api *Client, sender Sender, ctrl *chat.Controller, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		api:    api,
		sender: sender,
		ctrl:   ctrl,
		logger: logger,
	}
}

// Active returns the id of the currently observed session, empty when none.
func (c *Coordinator) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// JoinSession tells the transport this client is observing the session.
// Joining the already-active session is a no-op; switching leaves the prior
// session first. The session id sticks for all subsequent sends even when
// the join notification itself fails.
func (c *Coordinator) JoinSession(id string) error {
	c.mu.Lock()
	if id == c.active {
		c.mu.Unlock()
		return nil
	}
	prior := c.active
	c.active = id
	c.mu.Unlock()

	c.ctrl.SetSession(id)

	if prior != "" {
		if err := c.sender.Send(protocol.EventLeaveSession, protocol.LeaveSession{SessionID: prior}); err != nil {
			c.logger.Debug("Leave notification not delivered", "session_id", prior, "error", err)
		}
	}
	if err := c.sender.Send(protocol.EventJoinSession, protocol.JoinSession{SessionID: id}); err != nil {
		c.logger.Warn("Join notification not delivered", "session_id", id, "error", err)
		return err
	}

	c.logger.Info("Joined session", "session_id", id)
	return nil
}

// CreateSession persists a new session and joins it.
func (c *Coordinator) CreateSession(ctx context.Context, processID, title string) (*Session, error) {
	s, err := c.api.CreateSession(ctx, processID, title)
	if err != nil {
		c.logger.Error("Failed to create session", "process_id", processID, "error", err)
		return nil, err
	}
	if err := c.JoinSession(s.ID); err != nil {
		c.logger.Warn("Created session but join notification failed", "session_id", s.ID, "error", err)
	}
	return s, nil
}

// ListSessions returns the process's sessions, newest first.
func (c *Coordinator) ListSessions(ctx context.Context, processID string) ([]Session, error) {
	sessions, err := c.api.ListSessions(ctx, processID)
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Bootstrap auto-selects the newest session for the process, loads its
// history, and joins it. Any persistence failure degrades to the default
// welcome message; it never propagates.
func (c *Coordinator) Bootstrap(ctx context.Context, processID string) {
	sessions, err := c.ListSessions(ctx, processID)
	if err != nil {
		c.logger.Warn("Could not list sessions, starting fresh", "process_id", processID, "error", err)
		c.welcome()
		return
	}
	if len(sessions) == 0 {
		c.welcome()
		return
	}

	newest := sessions[0]
	if err := c.LoadHistory(ctx, newest.ID); err != nil {
		return
	}
	if err := c.JoinSession(newest.ID); err != nil {
		c.logger.Warn("Auto-join failed", "session_id", newest.ID, "error", err)
	}
}

// LoadHistory replaces the in-memory conversation with the session's
// persisted messages, preserving server-assigned ids, roles, timestamps,
// and attached diagram markup. Failures degrade to the welcome message.
func (c *Coordinator) LoadHistory(ctx context.Context, sessionID string) error {
	stored, err := c.api.GetMessages(ctx, sessionID)
	if err != nil {
		c.logger.Warn("Could not load session history", "session_id", sessionID, "error", err)
		c.welcome()
		return err
	}

	msgs := make([]chat.Message, len(stored))
	for i, m := range stored {
		msgs[i] = chat.Message{
			ID:         m.ID,
			Role:       chat.Role(m.Role),
			Content:    m.Content,
			Timestamp:  m.CreatedAt,
			DiagramXML: m.XMLContent,
		}
	}
	c.ctrl.ReplaceHistory(msgs)
	c.logger.Info("Loaded session history", "session_id", sessionID, "messages", len(msgs))
	return nil
}

func (c *Coordinator) welcome() {
	c.ctrl.ReplaceHistory([]chat.Message{{
		ID:        uuid.NewString(),
		Role:      chat.RoleAssistant,
		Content:   welcomeText,
		Timestamp: time.Now(),
	}})
}
