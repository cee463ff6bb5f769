// Flowmate CLI — terminal host for the assistant chat client. It stands in
// for the editor's chat panel: streams replies, shows presence, and holds
// the diagram markup the assistant edits.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/flowmate/flowmate/internal/chat"
	"github.com/flowmate/flowmate/internal/config"
	"github.com/flowmate/flowmate/internal/diagram"
	"github.com/flowmate/flowmate/internal/events"
	"github.com/flowmate/flowmate/internal/session"
	"github.com/flowmate/flowmate/internal/transport"
)

const defaultDiagram = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="Definitions_1">
  <bpmn:process id="Process_1" isExecutable="false"/>
</bpmn:definitions>`

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	registry := events.NewRegistry()
	conn := transport.New(registry, transport.Options{
		URL:         cfg.ServerURL,
		BackoffBase: cfg.Reconnect.Base,
		BackoffMax:  cfg.Reconnect.Max,
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		Logger:      logger,
	})

	conv := chat.NewConversation()
	modeler := diagram.NewMemoryModeler(defaultDiagram)

	r := &renderer{}
	ctrl := chat.NewController(conn, registry, conv, modeler, chat.Options{
		ProcessID:   cfg.ProcessID,
		TypingQuiet: cfg.TypingQuiet,
		OnChange:    r.refresh,
		Logger:      logger,
	})
	r.ctrl = ctrl
	defer ctrl.Close()

	api := session.NewClient(cfg.APIBaseURL)
	coord := session.NewCoordinator(api, conn, ctrl, logger)

	unsubscribe := conn.OnStateChange(func(s transport.State) {
		fmt.Printf("[connection] %s\n", s)
	})
	defer unsubscribe()

	conn.Connect()
	waitForConnection(conn, 15*time.Second)

	ctx := context.Background()
	coord.Bootstrap(ctx, cfg.ProcessID)
	r.refresh()

	fmt.Println(`Type a message, or /sessions, /new <title>, /join <id>, /quit.`)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			conn.Disconnect()
			return
		case line == "/sessions":
			listSessions(ctx, coord, cfg.ProcessID)
		case strings.HasPrefix(line, "/new"):
			title := strings.TrimSpace(strings.TrimPrefix(line, "/new"))
			s, err := coord.CreateSession(ctx, cfg.ProcessID, title)
			if err != nil {
				fmt.Println("could not create session:", err)
				continue
			}
			fmt.Println("created and joined session", s.ID)
		case strings.HasPrefix(line, "/join"):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/join"))
			if id == "" {
				fmt.Println("usage: /join <session-id>")
				continue
			}
			if err := coord.JoinSession(id); err != nil {
				fmt.Println("could not join session:", err)
				continue
			}
			if err := coord.LoadHistory(ctx, id); err == nil {
				r.reset()
				r.refresh()
			}
		default:
			if err := ctrl.Send(line); err != nil {
				logger.Warn("Send failed", "error", err)
			}
		}
	}

	conn.Disconnect()
}

func waitForConnection(conn *transport.Conn, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if conn.State() == transport.StateConnected {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	fmt.Println("still connecting; messages will fail until the connection is up")
}

func listSessions(ctx context.Context, coord *session.Coordinator, processID string) {
	sessions, err := coord.ListSessions(ctx, processID)
	if err != nil {
		fmt.Println("could not list sessions:", err)
		return
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions yet; use /new <title>")
		return
	}
	for _, s := range sessions {
		marker := " "
		if s.ID == coord.Active() {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  (%s)\n", marker, s.ID, s.Title, s.CreatedAt.Format(time.RFC3339))
	}
}

// renderer prints conversation growth incrementally, keeping the streaming
// assistant line open until the message completes.
type renderer struct {
	ctrl *chat.Controller

	mu         sync.Mutex
	printed    int
	partialID  string
	partialLen int
}

func (r *renderer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printed = 0
	r.partialID = ""
	r.partialLen = 0
}

func (r *renderer) refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.ctrl.Messages()
	if r.printed > len(msgs) {
		// Conversation was replaced with a shorter history.
		r.printed = 0
		r.partialID = ""
		r.partialLen = 0
	}

	for r.printed < len(msgs) {
		m := msgs[r.printed]
		if m.ID == r.partialID {
			// A completed message can be rewritten shorter than what was
			// already streamed; start the line over in that case.
			if r.partialLen > len(m.Content) {
				fmt.Println()
				fmt.Printf("%s> %s\n", m.Role, m.Content)
			} else {
				fmt.Println(m.Content[r.partialLen:])
			}
			r.partialID = ""
			r.partialLen = 0
			r.printed++
			continue
		}
		if r.printed == len(msgs)-1 && m.Role == chat.RoleAssistant && r.ctrl.Loading() {
			if r.partialID != m.ID {
				fmt.Printf("%s> ", m.Role)
				r.partialID = m.ID
				r.partialLen = 0
			}
			fmt.Print(m.Content[r.partialLen:])
			r.partialLen = len(m.Content)
			return
		}
		fmt.Printf("%s> %s\n", m.Role, m.Content)
		r.printed++
	}

	if typing := r.ctrl.TypingParticipants(); len(typing) > 0 {
		fmt.Printf("[%s typing...]\n", strings.Join(typing, ", "))
	}
}
