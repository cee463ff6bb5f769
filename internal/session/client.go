// Package session tracks the active collaboration session: joining,
// creating, listing, and loading persisted conversation history from the
// external REST session service.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
)

// Session is a persisted conversation thread tied to a process diagram.
// The server owns its fields.
type Session struct {
	ID        string    `json:"id"`
	ProcessID string    `json:"processId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StoredMessage is one persisted conversation entry as returned by the
// session service.
type StoredMessage struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	XMLContent string    `json:"xmlContent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Client talks to the REST session/message service.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateSession persists a new session for the given process.
func (c *Client) CreateSession(ctx context.Context, processID, title string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"processId": processID, "title": title})
	if err != nil {
		return nil, fmt.Errorf("marshal create session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/sessions", strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("build create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var s Session
	if err := c.do(req, &s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &s, nil
}

// ListSessions returns the sessions for a process, newest first.
func (c *Client) ListSessions(ctx context.Context, processID string) ([]Session, error) {
	url := c.base + "/api/sessions?processId=" + neturl.QueryEscape(processID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build list sessions request: %w", err)
	}

	var sessions []Session
	if err := c.do(req, &sessions); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// GetMessages returns the persisted conversation for a session in
// chronological order.
func (c *Client) GetMessages(ctx context.Context, sessionID string) ([]StoredMessage, error) {
	url := c.base + "/api/sessions/" + sessionID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build get messages request: %w", err)
	}

	var msgs []StoredMessage
	if err := c.do(req, &msgs); err != nil {
		return nil, fmt.Errorf("get messages for %s: %w", sessionID, err)
	}
	return msgs, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decErr := json.NewDecoder(resp.Body).Decode(&apiErr); decErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
