package coordinator

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/second-law-lobby/internal/history"
	"github.com/DoyleJ11/second-law-lobby/internal/protocol"
	"github.com/DoyleJ11/second-law-lobby/internal/room"
)

type Msg interface{ isCoordinatorMsg() }

// Connect registers a transport connection and the outbox the coordinator writes to.
type Connect struct {
	ConnID string
	Outbox chan protocol.Message
}

// Disconnect covers transport drops, timeouts and clean closes alike.
type Disconnect struct{ ConnID string }

type FromClient struct {
	ConnID string
	Msg    protocol.Message
}

// SuggestCode replies with a clean code no live room uses.
type SuggestCode struct {
	Reply chan string
}

type GetRoom struct {
	Code  string
	Reply chan RoomView
}

type GetState struct {
	Reply chan View
}

type Shutdown struct{}

func (Connect) isCoordinatorMsg()     {}
func (Disconnect) isCoordinatorMsg()  {}
func (FromClient) isCoordinatorMsg()  {}
func (SuggestCode) isCoordinatorMsg() {}
func (GetRoom) isCoordinatorMsg()     {}
func (GetState) isCoordinatorMsg()    {}
func (Shutdown) isCoordinatorMsg()    {}

// RoomView is a read-only copy of one room.
type RoomView struct {
	Found       bool
	Code        string
	HostSkin    string
	Players     []room.Player
	Environment room.Environment
}

type View struct {
	NumRooms   int
	NumConns   int
	NumMembers int
}

// Recorder receives room lifecycle entries. Calls happen on the loop goroutine
// and must not block.
type Recorder interface {
	Record(history.Entry)
}

type nopRecorder struct{}

func (nopRecorder) Record(history.Entry) {}

type Coordinator struct {
	inbox chan Msg
	rooms *room.Registry
	// outboxes of live transport connections
	conns map[string]chan protocol.Message
	// connID -> room code, for hosts and players
	membership map[string]string

	resetReadyOnRename bool

	rng      *rand.Rand
	log      *zap.Logger
	recorder Recorder
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	// closed after shutdown has closed every outbox
	done chan struct{}
}

type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithRegistry(reg *room.Registry) Option {
	return func(c *Coordinator) { c.rooms = reg }
}

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithResetReadyOnRename clears a player's ready flag when their name changes.
func WithResetReadyOnRename(reset bool) Option {
	return func(c *Coordinator) { c.resetReadyOnRename = reset }
}

func WithRand(rng *rand.Rand) Option {
	return func(c *Coordinator) { c.rng = rng }
}

func New(parent context.Context, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(parent)

	c := &Coordinator{
		inbox:      make(chan Msg, 256),
		rooms:      room.NewRegistry(),
		conns:      make(map[string]chan protocol.Message),
		membership: make(map[string]string),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		log:        zap.NewNop(),
		recorder:   nopRecorder{},
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.loop()
	return c
}

// Inbox is the only way to reach the coordinator.
func (c *Coordinator) Inbox() chan<- Msg { return c.inbox }

// Done is closed once the loop has shut down and every outbox is closed.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

func (c *Coordinator) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Connect:
				if old, ok := c.conns[msg.ConnID]; ok {
					close(old)
				}
				c.conns[msg.ConnID] = msg.Outbox
				c.log.Debug("connection registered", zap.String("conn", msg.ConnID))

			case Disconnect:
				c.handleDisconnect(msg.ConnID)

			case FromClient:
				c.dispatch(msg.ConnID, msg.Msg)

			case SuggestCode:
				msg.Reply <- c.rooms.NewCode(c.rng)

			case GetRoom:
				msg.Reply <- c.roomView(room.NormalizeCode(msg.Code))

			case GetState:
				msg.Reply <- View{
					NumRooms:   c.rooms.Len(),
					NumConns:   len(c.conns),
					NumMembers: len(c.membership),
				}

			case Shutdown:
				c.shutdown()
				return
			}
		}
	}
}

func (c *Coordinator) shutdown() {
	for id, ch := range c.conns {
		close(ch)
		delete(c.conns, id)
	}
	for _, code := range c.rooms.Codes() {
		c.rooms.Delete(code)
	}
	clear(c.membership)
	c.cancel()
}

func (c *Coordinator) roomView(code string) RoomView {
	r, err := c.rooms.Get(code)
	if err != nil {
		return RoomView{Code: code}
	}
	return RoomView{
		Found:       true,
		Code:        r.Code,
		HostSkin:    r.HostSkin,
		Players:     r.Players(),
		Environment: r.Environment,
	}
}

// send is fire-and-forget. A connection whose outbox is full is dropped; its
// transport sees the closed outbox and runs the disconnect path.
func (c *Coordinator) send(connID string, m protocol.Message) {
	ch, ok := c.conns[connID]
	if !ok {
		return
	}
	select {
	case ch <- m:
	default:
		c.log.Warn("dropping slow connection",
			zap.String("conn", connID),
			zap.String("type", m.MessageType()))
		close(ch)
		delete(c.conns, connID)
	}
}

// broadcast reaches the host and every player of r.
func (c *Coordinator) broadcast(r *room.Room, m protocol.Message) {
	for _, id := range r.Members() {
		c.send(id, m)
	}
}

func (c *Coordinator) record(kind history.Kind, r *room.Room) {
	c.recorder.Record(history.Entry{
		RoomCode: r.Code,
		Kind:     kind,
		HostSkin: r.HostSkin,
		Players:  r.Len(),
		At:       c.now(),
	})
}
