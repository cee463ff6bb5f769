package chat

import (
	"sync"
)

// Conversation is the ordered message list for the active session. Appends
// and replacements are atomic so a token arriving concurrently with a
// presence notice cannot clobber either update.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds a message at the end.
func (c *Conversation) Append(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

// AppendContent extends the content of the message with the given id in
// place. It reports whether the message was found.
func (c *Conversation) AppendContent(id, fragment string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Content += fragment
			return true
		}
	}
	return false
}

// Rewrite applies fn to the message with the given id. It reports whether
// the message was found.
func (c *Conversation) Rewrite(id string, fn func(*Message)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == id {
			fn(&c.messages[i])
			return true
		}
	}
	return false
}

// ReplaceAll swaps the entire conversation, used when loading a session's
// history from the server.
func (c *Conversation) ReplaceAll(msgs []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = make([]Message, len(msgs))
	copy(c.messages, msgs)
}

// Snapshot returns a copy of the current messages in order.
func (c *Conversation) Snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Last returns the most recent message, if any.
func (c *Conversation) Last() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}
