package devserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/flowmate/flowmate/internal/domain"
	"github.com/flowmate/flowmate/internal/protocol"
)

// tokenDelay paces the mock token stream so streaming behavior is visible.
const tokenDelay = 15 * time.Millisecond

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}

	client := &wsClient{id: uuid.NewString()[:8], conn: conn}
	slog.Info("WebSocket client connected", "client_id", client.id)

	defer func() {
		s.dropClient(client)
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "client_id", client.id, "error", closeErr)
		}
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			slog.Debug("WebSocket read ended", "client_id", client.id, "error", err)
			return
		}

		env, derr := protocol.Decode(data)
		if derr != nil {
			s.sendError(client, "malformed frame")
			continue
		}
		s.handleEvent(ctx, client, env)
	}
}

func (s *Server) dropClient(client *wsClient) {
	sessionID := s.hub.Leave(client)
	if sessionID == "" {
		return
	}
	s.broadcastPresence(protocol.EventClientLeft, sessionID, client)
	slog.Info("WebSocket client disconnected", "client_id", client.id, "session_id", sessionID)
}

func (s *Server) handleEvent(ctx context.Context, client *wsClient, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventJoinSession:
		var p protocol.JoinSession
		if err := json.Unmarshal(env.Data, &p); err != nil || p.SessionID == "" {
			s.sendError(client, "join_session requires a sessionId")
			return
		}
		prior := s.hub.Join(client, p.SessionID)
		if prior != "" {
			s.broadcastPresence(protocol.EventClientLeft, prior, client)
		}
		s.broadcastPresence(protocol.EventClientJoined, p.SessionID, client)

	case protocol.EventLeaveSession:
		if prior := s.hub.Leave(client); prior != "" {
			s.broadcastPresence(protocol.EventClientLeft, prior, client)
		}

	case protocol.EventTypingIndicator:
		var p protocol.TypingIndicator
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		sessionID := p.SessionID
		if sessionID == "" {
			sessionID = s.hub.Session(client)
		}
		if sessionID == "" {
			return
		}
		p.ClientID = client.id
		p.SessionID = sessionID
		frame, err := protocol.Encode(protocol.EventTypingIndicator, p)
		if err != nil {
			return
		}
		s.hub.Broadcast(sessionID, frame, client)

	case protocol.EventChatMessage:
		var p protocol.ChatMessage
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.sendError(client, "malformed chat_message payload")
			return
		}
		s.handleChat(ctx, client, p)

	default:
		s.sendError(client, "unknown event: "+env.Event)
	}
}

// handleChat persists the user's message, echoes it to co-watchers, and
// streams a canned assistant reply to the whole room.
func (s *Server) handleChat(ctx context.Context, client *wsClient, p protocol.ChatMessage) {
	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = s.hub.Session(client)
	}
	now := time.Now()

	userMsg := domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      "user",
		Content:   p.Content,
		CreatedAt: now,
	}
	s.persist(ctx, &userMsg)

	s.sendTo(client, protocol.EventMessageReceived, protocol.MessageReceived{
		MessageID: userMsg.ID,
		Timestamp: now,
	})
	if sessionID != "" {
		frame, err := protocol.Encode(protocol.EventNewMessage, protocol.NewMessage{
			MessageID: userMsg.ID,
			Role:      "user",
			Content:   p.Content,
			Timestamp: now,
		})
		if err == nil {
			s.hub.Broadcast(sessionID, frame, client)
		}
	}

	text, xml := s.assistant.Reply(p.Content, p.DiagramXML)

	s.sendRoom(sessionID, client, protocol.EventAssistantTyping, protocol.AssistantTyping{Status: protocol.TypingStarted})
	for _, fragment := range tokenize(text) {
		s.sendRoom(sessionID, client, protocol.EventToken, protocol.Token{Content: fragment})
		time.Sleep(tokenDelay)
	}

	assistantMsg := domain.Message{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Role:       "assistant",
		Content:    text,
		XMLContent: xml,
		CreatedAt:  time.Now(),
	}
	s.persist(ctx, &assistantMsg)

	s.sendRoom(sessionID, client, protocol.EventMessageComplete, protocol.MessageComplete{
		MessageID: assistantMsg.ID,
		Timestamp: assistantMsg.CreatedAt,
		XML:       xml,
	})
}

func (s *Server) persist(ctx context.Context, m *domain.Message) {
	if s.repo == nil || m.SessionID == "" {
		return
	}
	if err := s.repo.AppendMessage(ctx, m); err != nil {
		slog.Warn("Failed to persist message", "session_id", m.SessionID, "error", err)
		return
	}
	if err := s.repo.TouchSession(ctx, m.SessionID, m.CreatedAt); err != nil {
		slog.Debug("Failed to touch session", "session_id", m.SessionID, "error", err)
	}
}

func (s *Server) broadcastPresence(event, sessionID string, client *wsClient) {
	frame, err := protocol.Encode(event, protocol.Presence{
		ClientID:  client.id,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	s.hub.Broadcast(sessionID, frame, client)
}

// sendRoom delivers an event to the sender and every co-watcher.
func (s *Server) sendRoom(sessionID string, client *wsClient, event string, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		slog.Warn("Failed to encode event", "event", event, "error", err)
		return
	}
	writeFrame(client, frame)
	if sessionID != "" {
		s.hub.Broadcast(sessionID, frame, client)
	}
}

func (s *Server) sendTo(client *wsClient, event string, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return
	}
	writeFrame(client, frame)
}

func (s *Server) sendError(client *wsClient, message string) {
	s.sendTo(client, protocol.EventError, protocol.Error{Message: message})
}
