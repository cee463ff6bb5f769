package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Assembler turns the incremental token stream into a growing assistant
// message. At most one message is under construction per connection; the
// transport delivers fragments in order, so assembly is plain concatenation.
type Assembler struct {
	mu          sync.Mutex
	conv        *Conversation
	streamingID string
	newID       func() string
	now         func() time.Time
}

// NewAssembler creates an assembler that appends into conv.
func NewAssembler(conv *Conversation) *Assembler {
	return &Assembler{
		conv:  conv,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Token applies one streamed fragment: the first fragment creates the
// streaming message, later ones extend it in place. Returns the id of the
// message being assembled.
func (a *Assembler) Token(fragment string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.streamingID == "" {
		id := a.newID()
		a.conv.Append(Message{
			ID:        id,
			Role:      RoleAssistant,
			Content:   fragment,
			Timestamp: a.now(),
		})
		a.streamingID = id
		return id
	}
	a.conv.AppendContent(a.streamingID, fragment)
	return a.streamingID
}

// Complete freezes the streaming message so the next token starts a new
// one. It returns the finished message's id, or ok=false when nothing was
// streaming (e.g. a reply that arrived only as message_complete).
func (a *Assembler) Complete() (id string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.streamingID == "" {
		return "", false
	}
	id = a.streamingID
	a.streamingID = ""
	return id, true
}

// Reset abandons any message under construction. Used when the
// conversation is replaced wholesale; the next token starts fresh.
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.streamingID = ""
}

// Streaming reports whether a message is currently under construction.
func (a *Assembler) Streaming() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.streamingID != ""
}
