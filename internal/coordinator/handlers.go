package coordinator

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/second-law-lobby/internal/history"
	"github.com/DoyleJ11/second-law-lobby/internal/protocol"
	"github.com/DoyleJ11/second-law-lobby/internal/room"
)

func (c *Coordinator) dispatch(connID string, m protocol.Message) {
	var err error

	switch msg := m.(type) {
	case protocol.CreateRoom:
		err = c.handleCreate(connID, msg)
	case protocol.JoinRoom:
		err = c.handleJoin(connID, msg)
	case protocol.ReadyStateChange:
		c.handleReady(connID, msg)
	case protocol.UpdatePlayerInfo:
		c.handlePlayerInfo(connID, msg)
	case protocol.GameStart:
		err = c.handleGameStart(connID)
	case protocol.GameState:
		err = c.handleEnvironment(connID, msg)
	case protocol.Event:
		c.handleEvent(connID, msg)
	case protocol.Ping:
		c.send(connID, protocol.Pong{})
	case protocol.LeaveRoom:
		c.leave(connID)
	default:
		err = fmt.Errorf("%w: %q", protocol.ErrUnknownType, m.MessageType())
	}

	if err != nil {
		c.log.Info("rejected",
			zap.String("conn", connID),
			zap.String("type", m.MessageType()),
			zap.Error(err))
		c.send(connID, protocol.ErrorMessage(err))
	}
}

func (c *Coordinator) handleCreate(connID string, m protocol.CreateRoom) error {
	code := room.NormalizeCode(m.RoomCode)
	if !room.ValidCode(code) {
		return fmt.Errorf("room code %q: %w", m.RoomCode, room.ErrMalformedPayload)
	}
	if _, err := c.rooms.Get(code); err == nil {
		return fmt.Errorf("create %s: %w", code, room.ErrDuplicateRoom)
	}
	if cur, ok := c.membership[connID]; ok {
		return fmt.Errorf("create %s while in %s: %w", code, cur, room.ErrAlreadyInRoom)
	}

	r, err := c.rooms.Create(code, connID, m.HostSkin)
	if err != nil {
		return err
	}
	c.membership[connID] = code

	c.log.Info("room created", zap.String("room", code), zap.String("conn", connID))
	c.record(history.KindRoomCreated, r)
	c.send(connID, protocol.RoomCreated{RoomCode: code})
	return nil
}

func (c *Coordinator) handleJoin(connID string, m protocol.JoinRoom) error {
	code := room.NormalizeCode(m.RoomCode)
	r, err := c.rooms.Get(code)
	if err != nil {
		return err
	}

	success := protocol.JoinSuccess{RoomCode: r.Code, HostSkin: r.HostSkin, GameState: r.Environment}

	// re-join from a known connection
	if _, ok := r.Player(connID); ok {
		c.send(connID, success)
		return nil
	}
	if cur, ok := c.membership[connID]; ok {
		return fmt.Errorf("join %s while in %s: %w", code, cur, room.ErrAlreadyInRoom)
	}
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return fmt.Errorf("join %s without a name: %w", code, room.ErrMalformedPayload)
	}

	p, err := r.AddPlayer(connID, name, m.SkinID)
	if err != nil {
		return fmt.Errorf("join %s: %w", code, err)
	}
	c.membership[connID] = code

	c.log.Info("player joined",
		zap.String("room", code),
		zap.String("conn", connID),
		zap.String("name", p.Name),
		zap.Int("players", r.Len()))
	c.record(history.KindPlayerJoined, r)

	c.send(connID, success)
	c.send(r.HostID, protocol.PlayerJoined{Name: p.Name, SkinID: p.SkinID, Ready: p.Ready})
	return nil
}

func (c *Coordinator) handleReady(connID string, m protocol.ReadyStateChange) {
	r, p, ok := c.playerOf(connID)
	if !ok {
		return
	}
	p.Ready = m.Ready
	c.broadcast(r, protocol.ReadyStateUpdate{Name: p.Name, Ready: p.Ready})
}

func (c *Coordinator) handlePlayerInfo(connID string, m protocol.UpdatePlayerInfo) {
	r, p, ok := c.playerOf(connID)
	if !ok {
		return
	}

	oldName := p.Name
	if m.NewNickname != nil {
		if name := strings.TrimSpace(*m.NewNickname); name != "" {
			p.Name = name
		}
	}
	if m.NewSkin != nil {
		p.SkinID = *m.NewSkin
	}

	// the host re-renders the shared roster
	c.send(r.HostID, protocol.PlayerInfoUpdate{OldName: oldName, NewName: p.Name, NewSkin: p.SkinID})

	if c.resetReadyOnRename && p.Name != oldName && p.Ready {
		p.Ready = false
		c.broadcast(r, protocol.ReadyStateUpdate{Name: p.Name, Ready: false})
	}
}

func (c *Coordinator) handleGameStart(connID string) error {
	r, err := c.hostOf(connID)
	if err != nil {
		return fmt.Errorf("game start: %w", err)
	}
	c.log.Info("game starting", zap.String("room", r.Code), zap.Int("players", r.Len()))
	c.record(history.KindGameStarted, r)
	c.broadcast(r, protocol.GameStarting{})
	return nil
}

func (c *Coordinator) handleEnvironment(connID string, m protocol.GameState) error {
	r, err := c.hostOf(connID)
	if err != nil {
		return fmt.Errorf("game state: %w", err)
	}

	var env room.Environment
	if m.State != nil {
		env = *m.State
	} else {
		c.log.Debug("environment update without state, using defaults",
			zap.String("room", r.Code),
			zap.Error(room.ErrMalformedPayload))
	}
	env = env.WithDefaults()
	r.Environment = env

	c.broadcast(r, protocol.GameState{State: &env})
	return nil
}

// handleEvent relays host events to every player and player events to the host only.
func (c *Coordinator) handleEvent(connID string, m protocol.Event) {
	code, ok := c.membership[connID]
	if !ok {
		return
	}
	r, err := c.rooms.Get(code)
	if err != nil {
		return
	}

	if room.IsHost(connID, r) {
		ev := protocol.Event{From: "host", Data: m.Data}
		for _, p := range r.Players() {
			c.send(p.ConnID, ev)
		}
		return
	}
	if p, ok := r.Player(connID); ok {
		c.send(r.HostID, protocol.Event{From: p.Name, Data: m.Data})
	}
}

func (c *Coordinator) handleDisconnect(connID string) {
	if ch, ok := c.conns[connID]; ok {
		close(ch)
		delete(c.conns, connID)
	}
	c.leave(connID)
}

// leave is the single teardown path for explicit leaves and dropped transports.
// A departing host closes the room; a departing player only shrinks the roster.
func (c *Coordinator) leave(connID string) {
	code, ok := c.membership[connID]
	if !ok {
		return
	}
	delete(c.membership, connID)

	r, err := c.rooms.Get(code)
	if err != nil {
		return
	}

	if room.IsHost(connID, r) {
		for _, p := range r.Players() {
			c.send(p.ConnID, protocol.RoomClosed{})
			delete(c.membership, p.ConnID)
		}
		c.rooms.Delete(code)
		c.log.Info("host left, room closed", zap.String("room", code), zap.Int("players", r.Len()))
		c.record(history.KindRoomClosed, r)
		return
	}

	p, ok := r.RemovePlayer(connID)
	if !ok {
		return
	}
	c.log.Info("player left", zap.String("room", code), zap.String("name", p.Name), zap.Int("players", r.Len()))
	c.record(history.KindPlayerLeft, r)
	c.send(r.HostID, protocol.PlayerLeft{Name: p.Name})
}

func (c *Coordinator) playerOf(connID string) (*room.Room, *room.Player, bool) {
	code, ok := c.membership[connID]
	if !ok {
		return nil, nil, false
	}
	r, err := c.rooms.Get(code)
	if err != nil {
		return nil, nil, false
	}
	p, ok := r.Player(connID)
	if !ok {
		return nil, nil, false
	}
	return r, p, true
}

func (c *Coordinator) hostOf(connID string) (*room.Room, error) {
	code, ok := c.membership[connID]
	if !ok {
		return nil, room.ErrNotAuthorized
	}
	r, err := c.rooms.Get(code)
	if err != nil {
		return nil, err
	}
	if !room.IsHost(connID, r) {
		return nil, room.ErrNotAuthorized
	}
	return r, nil
}
