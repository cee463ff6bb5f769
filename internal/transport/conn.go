// Package transport owns the WebSocket channel to the assistant service:
// its connection state machine, automatic reconnection with backoff, and
// the read loop that feeds decoded events into the subscription registry.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowmate/flowmate/internal/events"
	"github.com/flowmate/flowmate/internal/protocol"
)

// ErrNotConnected is returned by Send when the connection is not in the
// connected state. Sends are never queued; the caller decides how to surface
// the failure.
var ErrNotConnected = errors.New("transport: not connected")

// Options configures a Conn. Zero fields fall back to defaults.
type Options struct {
	// URL is the WebSocket endpoint. Ignored when Dial is set.
	URL string
	// Dial opens the underlying socket. Tests substitute a fake here so no
	// global transport state is needed.
	Dial DialFunc
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
	// BackoffMax caps the retry delay.
	BackoffMax time.Duration
	// MaxAttempts bounds consecutive failed attempts before giving up and
	// settling in the disconnected state. Zero means the default.
	MaxAttempts int
	// DialTimeout bounds a single dial.
	DialTimeout time.Duration
	// WriteTimeout bounds a single send.
	WriteTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o *Options) fillDefaults() {
	if o.Dial == nil {
		o.Dial = Dialer(o.URL)
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type observer struct {
	id uint64
	fn func(State)
}

// Conn manages the socket lifecycle. All state transitions are serialized
// under its mutex; observers are invoked synchronously on every transition.
type Conn struct {
	opts     Options
	registry *events.Registry
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	sock      Socket
	gen       int
	attempts  int
	retry     *time.Timer
	suppress  bool
	observers []observer
	nextObs   uint64
}

// New creates a Conn that dispatches incoming events into registry.
func New(registry *events.Registry, opts Options) *Conn {
	opts.fillDefaults()
	return &Conn{
		opts:     opts,
		registry: registry,
		logger:   opts.Logger,
	}
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers an observer invoked on every state transition and
// returns a function that unregisters it.
func (c *Conn) OnStateChange(fn func(State)) func() {
	c.mu.Lock()
	c.nextObs++
	id := c.nextObs
	c.observers = append(c.observers, observer{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, o := range c.observers {
			if o.id == id {
				c.observers = append(c.observers[:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// Connect opens the transport unless it is already connecting or connected.
// The dial happens asynchronously; progress is reported through state
// observers.
func (c *Conn) Connect() {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.suppress = false
	c.attempts = 0
	c.gen++
	gen := c.gen
	obs := c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	c.notify(obs, StateConnecting)
	go c.dial(gen)
}

// Disconnect tears the connection down, cancels any pending retry, and
// suppresses automatic reconnection until the next Connect.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.suppress = true
	c.gen++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	sock := c.sock
	c.sock = nil
	obs := c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	c.notify(obs, StateDisconnected)
	if sock != nil {
		if err := sock.Close("client disconnect"); err != nil {
			c.logger.Debug("Failed to close socket", "error", err)
		}
	}
}

// Send encodes the payload and writes it to the socket. It fails with
// ErrNotConnected unless the connection is in the connected state.
func (c *Conn) Send(event string, payload any) error {
	c.mu.Lock()
	sock := c.sock
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || sock == nil {
		return fmt.Errorf("send %s: %w", event, ErrNotConnected)
	}

	b, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
	defer cancel()
	if err := sock.Write(ctx, b); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (c *Conn) dial(gen int) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
	sock, err := c.opts.Dial(ctx)
	cancel()

	c.mu.Lock()
	if gen != c.gen || c.suppress {
		c.mu.Unlock()
		if sock != nil {
			_ = sock.Close("superseded")
		}
		return
	}
	if err != nil {
		c.logger.Warn("Connection attempt failed", "attempt", c.attempts+1, "error", err)
		obs, st := c.scheduleRetryLocked()
		c.mu.Unlock()
		c.notify(obs, st)
		return
	}
	c.sock = sock
	c.attempts = 0
	obs := c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.logger.Info("Connected to assistant service")
	c.notify(obs, StateConnected)
	go c.readLoop(gen, sock)
}

func (c *Conn) readLoop(gen int, sock Socket) {
	for {
		data, err := sock.Read(context.Background())
		if err != nil {
			c.onReadError(gen, sock, err)
			return
		}
		env, derr := protocol.Decode(data)
		if derr != nil {
			c.logger.Warn("Dropping malformed frame", "error", derr)
			continue
		}
		c.registry.Dispatch(env.Event, env.Data)
	}
}

func (c *Conn) onReadError(gen int, sock Socket, err error) {
	c.mu.Lock()
	if gen != c.gen || c.sock != sock {
		c.mu.Unlock()
		return
	}
	c.sock = nil
	if c.suppress {
		c.mu.Unlock()
		return
	}
	c.logger.Warn("Connection lost", "error", err)
	obs, st := c.scheduleRetryLocked()
	c.mu.Unlock()
	c.notify(obs, st)
}

// scheduleRetryLocked moves the state machine after a failure: into
// reconnecting with a pending timer, or into disconnected once attempts are
// exhausted. Caller holds the mutex.
func (c *Conn) scheduleRetryLocked() ([]func(State), State) {
	c.attempts++
	if c.attempts > c.opts.MaxAttempts {
		c.logger.Error("Reconnection attempts exhausted", "attempts", c.attempts-1)
		return c.setStateLocked(StateDisconnected), StateDisconnected
	}

	delay := c.backoff(c.attempts)
	gen := c.gen
	c.retry = time.AfterFunc(delay, func() { c.retryElapsed(gen) })
	c.logger.Info("Reconnecting", "attempt", c.attempts, "delay", delay)
	return c.setStateLocked(StateReconnecting), StateReconnecting
}

func (c *Conn) retryElapsed(gen int) {
	c.mu.Lock()
	if gen != c.gen || c.suppress {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	obs := c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	c.notify(obs, StateConnecting)
	go c.dial(gen)
}

func (c *Conn) backoff(attempt int) time.Duration {
	d := c.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.opts.BackoffMax {
			return c.opts.BackoffMax
		}
	}
	if d > c.opts.BackoffMax {
		return c.opts.BackoffMax
	}
	return d
}

// setStateLocked updates the state and returns the observers to notify.
// Caller holds the mutex and must invoke the returned functions after
// releasing it.
func (c *Conn) setStateLocked(s State) []func(State) {
	if c.state == s {
		return nil
	}
	c.state = s
	fns := make([]func(State), len(c.observers))
	for i, o := range c.observers {
		fns[i] = o.fn
	}
	return fns
}

func (c *Conn) notify(fns []func(State), s State) {
	for _, fn := range fns {
		fn(s)
	}
}
