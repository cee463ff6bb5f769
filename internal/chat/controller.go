package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowmate/flowmate/internal/diagram"
	"github.com/flowmate/flowmate/internal/events"
	"github.com/flowmate/flowmate/internal/markup"
	"github.com/flowmate/flowmate/internal/protocol"
)

// fallbackTypistID attributes remote typing when the service sends no
// per-connection id. Distinct unattributed typists collapse into one entry.
const fallbackTypistID = "participant"

// Sender is the outgoing half of the transport the controller needs.
// *transport.Conn satisfies it; tests substitute a recorder.
type Sender interface {
	Send(event string, payload any) error
}

// Options configures a Controller.
type Options struct {
	// ProcessID is the diagram/process this conversation is about; it is
	// attached to every outgoing chat message.
	ProcessID string
	// TypingQuiet overrides the local typing quiet period.
	TypingQuiet time.Duration
	// OnChange, when set, is invoked after every conversation or indicator
	// mutation so the host can repaint.
	OnChange func()
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Controller wires the transport events into conversation state, triggers
// sends, and hands assistant-produced diagram markup to the modeling
// collaborator.
type Controller struct {
	sender  Sender
	conv    *Conversation
	asm     *Assembler
	local   *LocalTyping
	remote  *RemoteTyping
	modeler diagram.Modeler
	logger  *slog.Logger

	processID string
	onChange  func()

	mu        sync.Mutex
	loading   bool
	sessionID string

	subs []*events.Subscription
}

// NewController registers handlers for every assistant event on registry
// and returns the ready controller.
func NewController(sender Sender, registry *events.Registry, conv *Conversation, modeler diagram.Modeler, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		sender:    sender,
		conv:      conv,
		asm:       NewAssembler(conv),
		remote:    NewRemoteTyping(),
		modeler:   modeler,
		logger:    logger,
		processID: opts.ProcessID,
		onChange:  opts.OnChange,
	}
	c.local = NewLocalTyping(opts.TypingQuiet, c.sendTypingIndicator)

	c.subs = []*events.Subscription{
		registry.Subscribe(protocol.EventToken, c.handleToken),
		registry.Subscribe(protocol.EventMessageReceived, c.handleMessageReceived),
		registry.Subscribe(protocol.EventMessageComplete, c.handleMessageComplete),
		registry.Subscribe(protocol.EventAssistantTyping, c.handleAssistantTyping),
		registry.Subscribe(protocol.EventTypingIndicator, c.handleTypingIndicator),
		registry.Subscribe(protocol.EventClientJoined, c.handleClientJoined),
		registry.Subscribe(protocol.EventClientLeft, c.handleClientLeft),
		registry.Subscribe(protocol.EventNewMessage, c.handleNewMessage),
		registry.Subscribe(protocol.EventError, c.handleError),
	}
	return c
}

// Close detaches the controller from the registry and cancels pending
// typing timers.
func (c *Controller) Close() {
	for _, s := range c.subs {
		s.Cancel()
	}
	c.subs = nil
	c.local.Stop()
}

// SetSession pins the session id attached to subsequent sends.
func (c *Controller) SetSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// Session returns the active session id, empty when none is joined.
func (c *Controller) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Loading reports whether an assistant reply is pending or streaming.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Messages returns an ordered copy of the conversation.
func (c *Controller) Messages() []Message {
	return c.conv.Snapshot()
}

// TypingParticipants returns the remote participants currently typing.
func (c *Controller) TypingParticipants() []string {
	return c.remote.Active()
}

// ReplaceHistory swaps the conversation wholesale, abandoning any message
// still being assembled so later fragments are not lost against an id the
// new history does not contain.
func (c *Controller) ReplaceHistory(msgs []Message) {
	c.asm.Reset()
	c.conv.ReplaceAll(msgs)
	c.change()
}

// InputChanged feeds the current input text into the local typing signal.
func (c *Controller) InputChanged(text string) {
	c.local.InputChanged(text)
}

// Send appends the user's message optimistically and forwards it together
// with the session id, process id, and the editor's current diagram markup.
// A failed send leaves the message visible and appends an explanation.
func (c *Controller) Send(content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	c.conv.Append(Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	})
	c.setLoading(true)
	c.local.Stop()

	current, err := c.modeler.SaveMarkup()
	if err != nil {
		c.logger.Debug("Could not capture diagram markup", "error", err)
		current = ""
	}

	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	sendErr := c.sender.Send(protocol.EventChatMessage, protocol.ChatMessage{
		Content:    content,
		SessionID:  sessionID,
		ProcessID:  c.processID,
		DiagramXML: current,
	})
	if sendErr != nil {
		c.logger.Warn("Chat message not delivered", "error", sendErr)
		c.appendSystem("Your message could not be delivered: " + sendErr.Error())
		c.setLoading(false)
		c.change()
		return sendErr
	}

	c.change()
	return nil
}

func (c *Controller) sendTypingIndicator(isTyping bool) {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	err := c.sender.Send(protocol.EventTypingIndicator, protocol.TypingIndicator{
		IsTyping:  isTyping,
		SessionID: sessionID,
	})
	if err != nil {
		c.logger.Debug("Typing indicator not delivered", "error", err)
	}
}

func (c *Controller) handleToken(data json.RawMessage) {
	var p protocol.Token
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("Malformed token payload", "error", err)
		return
	}
	c.asm.Token(p.Content)
	c.change()
}

func (c *Controller) handleMessageReceived(data json.RawMessage) {
	var p protocol.MessageReceived
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	c.logger.Debug("Message acknowledged", "message_id", p.MessageID)
}

func (c *Controller) handleMessageComplete(data json.RawMessage) {
	var p protocol.MessageComplete
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("Malformed message_complete payload", "error", err)
		return
	}

	id, _ := c.asm.Complete()
	if p.XML != "" {
		c.applyMarkup(p.XML, id)
	}
	c.setLoading(false)
	c.change()
}

func (c *Controller) handleAssistantTyping(data json.RawMessage) {
	var p protocol.AssistantTyping
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	c.setLoading(p.Status == protocol.TypingStarted)
	c.change()
}

func (c *Controller) handleTypingIndicator(data json.RawMessage) {
	var p protocol.TypingIndicator
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	id := p.ClientID
	if id == "" {
		id = fallbackTypistID
	}
	c.remote.Set(id, p.IsTyping)
	c.change()
}

func (c *Controller) handleClientJoined(data json.RawMessage) {
	var p protocol.Presence
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	c.appendSystem(fmt.Sprintf("Participant %s joined the session.", p.ClientID))
	c.change()
}

func (c *Controller) handleClientLeft(data json.RawMessage) {
	var p protocol.Presence
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	c.appendSystem(fmt.Sprintf("Participant %s left the session.", p.ClientID))
	c.remote.Remove(p.ClientID)
	c.change()
}

// handleNewMessage appends a message echoed from another participant
// verbatim, without re-triggering a local echo.
func (c *Controller) handleNewMessage(data json.RawMessage) {
	var p protocol.NewMessage
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("Malformed new_message payload", "error", err)
		return
	}

	role := Role(p.Role)
	if role == "" {
		role = RoleUser
	}
	c.conv.Append(Message{
		ID:        p.MessageID,
		Role:      role,
		Content:   p.Content,
		Timestamp: p.Timestamp,
	})
	if p.XML != "" {
		c.applyMarkup(p.XML, p.MessageID)
	}
	c.change()
}

func (c *Controller) handleError(data json.RawMessage) {
	var p protocol.Error
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	c.logger.Warn("Assistant reported an error", "message", p.Message)
	c.appendSystem("Assistant error: " + p.Message)
	c.setLoading(false)
	c.change()
}

// applyMarkup hands assistant-produced markup to the modeling collaborator.
// On success the carrying message's diagram fences are hidden from display
// and a confirmation is appended; on failure the transcript is kept and the
// failure reported distinctly.
func (c *Controller) applyMarkup(xml, messageID string) {
	if err := c.modeler.ImportMarkup(xml); err != nil {
		c.logger.Error("Failed to apply diagram changes", "error", err)
		c.appendSystem("The assistant's diagram changes could not be applied: " + err.Error())
		return
	}

	if messageID != "" {
		c.conv.Rewrite(messageID, func(m *Message) {
			if stripped, found := markup.StripDiagramBlocks(m.Content); found {
				m.Content = stripped
			}
			m.DiagramXML = xml
		})
	}
	c.appendSystem("Diagram changes were applied automatically.")
}

func (c *Controller) appendSystem(text string) {
	c.conv.Append(Message{
		ID:        uuid.NewString(),
		Role:      RoleSystem,
		Content:   text,
		Timestamp: time.Now(),
	})
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
}

func (c *Controller) change() {
	if c.onChange != nil {
		c.onChange()
	}
}
