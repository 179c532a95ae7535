package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/DoyleJ11/second-law-lobby/internal/protocol"
	"github.com/DoyleJ11/second-law-lobby/internal/room"
	"github.com/DoyleJ11/second-law-lobby/internal/session"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrGaveUp       = errors.New("reconnect attempts exhausted")
)

// Sink receives room events decoded from the coordinator. *session.Mirror
// satisfies it.
type Sink interface {
	Deliver(session.Event)
}

type Options struct {
	PingInterval time.Duration
	// PongTimeout is how long the link may go without a pong before it is
	// treated as dead.
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	MaxAttempts  int
	Backoff      func(attempt int) time.Duration
	// OnRelay receives opaque events relayed by the coordinator.
	OnRelay func(protocol.Event)
}

func DefaultOptions() Options {
	return Options{
		PingInterval: 25 * time.Second,
		PongTimeout:  60 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxAttempts:  5,
		Backoff:      LinearBackoff(time.Second, 5*time.Second),
	}
}

// LinearBackoff waits step*attempt, capped at ceiling.
func LinearBackoff(step, ceiling time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return min(time.Duration(attempt)*step, ceiling)
	}
}

// Client is one participant's link to the coordinator.
type Client struct {
	url  string
	opts Options
	sink Sink
	log  *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	lastPong time.Time
}

// Dial connects to url. Call Run to start receiving.
func Dial(ctx context.Context, url string, sink Sink, opts Options, log *zap.Logger) (*Client, error) {
	c := &Client{url: url, opts: opts, sink: sink, log: log}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.lastPong = time.Now()
	c.mu.Unlock()
	return nil
}

// Run receives until ctx ends or reconnecting gives up. A dropped link
// loses room membership, so the sink is told the room closed.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.serve(ctx)
		if ctx.Err() != nil {
			c.Close()
			return ctx.Err()
		}
		c.log.Warn("connection lost", zap.Error(err))
		c.detach()
		c.sink.Deliver(session.RoomClosed{})

		if err := c.reconnect(ctx); err != nil {
			return err
		}
		c.log.Info("reconnected", zap.String("url", c.url))
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	var last error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.Backoff(attempt)):
		}
		if last = c.connect(ctx); last == nil {
			return nil
		}
		c.log.Info("reconnect failed", zap.Int("attempt", attempt), zap.Error(last))
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrGaveUp, c.opts.MaxAttempts, last)
}

func (c *Client) serve(ctx context.Context) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.heartbeat(sctx, conn)

	for {
		_, data, err := conn.Read(sctx)
		if err != nil {
			return err
		}
		m, err := protocol.DecodeOutbound(data)
		if err != nil {
			c.log.Info("undecodable frame", zap.Error(err))
			continue
		}
		c.handle(m)
	}
}

func (c *Client) handle(m protocol.Message) {
	switch msg := m.(type) {
	case protocol.Pong:
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
	case protocol.Event:
		if c.opts.OnRelay != nil {
			c.opts.OnRelay(msg)
		}
	default:
		if ev, ok := session.FromMessage(m); ok {
			c.sink.Deliver(ev)
		}
	}
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(c.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.mu.Lock()
			silent := time.Since(c.lastPong)
			c.mu.Unlock()
			if silent > c.opts.PongTimeout {
				c.log.Warn("no pong, dropping link", zap.Duration("silent", silent))
				conn.Close(websocket.StatusGoingAway, "pong timeout")
				return
			}
			if err := c.Ping(ctx); err != nil {
				c.log.Debug("ping failed", zap.Error(err))
			}
		}
	}
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) detach() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close(websocket.StatusGoingAway, "reconnecting")
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

func (c *Client) send(ctx context.Context, m protocol.Message) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	payload, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("send %s: %w", m.MessageType(), err)
	}
	return nil
}

func (c *Client) CreateRoom(ctx context.Context, code, hostSkin string) error {
	return c.send(ctx, protocol.CreateRoom{RoomCode: code, HostSkin: hostSkin})
}

func (c *Client) JoinRoom(ctx context.Context, code, name, skinID string) error {
	return c.send(ctx, protocol.JoinRoom{RoomCode: code, Name: name, SkinID: skinID})
}

func (c *Client) SetReady(ctx context.Context, ready bool) error {
	return c.send(ctx, protocol.ReadyStateChange{Ready: ready})
}

// UpdatePlayerInfo leaves a nil field unchanged.
func (c *Client) UpdatePlayerInfo(ctx context.Context, name, skin *string) error {
	return c.send(ctx, protocol.UpdatePlayerInfo{NewNickname: name, NewSkin: skin})
}

func (c *Client) StartGame(ctx context.Context) error {
	return c.send(ctx, protocol.GameStart{})
}

// SendGameStart lets a Client act as the mirror's Starter.
func (c *Client) SendGameStart() error {
	return c.StartGame(context.Background())
}

func (c *Client) SendEnvironment(ctx context.Context, env room.Environment) error {
	return c.send(ctx, protocol.GameState{State: &env})
}

func (c *Client) Relay(ctx context.Context, data json.RawMessage) error {
	return c.send(ctx, protocol.Event{Data: data})
}

func (c *Client) Leave(ctx context.Context) error {
	return c.send(ctx, protocol.LeaveRoom{})
}

func (c *Client) Ping(ctx context.Context) error {
	return c.send(ctx, protocol.Ping{})
}
