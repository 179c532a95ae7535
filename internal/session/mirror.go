package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/second-law-lobby/internal/room"
)

// Player is one roster entry as seen by a participant.
type Player struct {
	Name   string
	SkinID string
	Ready  bool
}

// Snapshot is a copy of the mirror's state.
type Snapshot struct {
	RoomCode    string
	HostSkin    string
	IsHost      bool
	SelfReady   bool
	Roster      []Player
	Environment room.Environment
	Phase       Phase
	Remaining   int
	GameStarted bool
}

type mirrorMsg interface{ isMirrorMsg() }

type eventMsg struct{ ev Event }

type selfReadyMsg struct{ ready bool }

type snapshotMsg struct{ reply chan Snapshot }

// tick and announceDone carry the countdown generation that armed them.
type tick struct{ gen uint64 }

type announceDone struct{ gen uint64 }

func (eventMsg) isMirrorMsg()     {}
func (selfReadyMsg) isMirrorMsg() {}
func (snapshotMsg) isMirrorMsg()  {}
func (tick) isMirrorMsg()         {}
func (announceDone) isMirrorMsg() {}

// Timing controls the countdown cadence and the ambient fades around it.
type Timing struct {
	CountFrom     int
	Tick          time.Duration
	AnnounceDelay time.Duration
	Fade          time.Duration
	MusicVolume   float64
	// MinPlayers is the roster size needed before the host counts down.
	MinPlayers int
}

func DefaultTiming() Timing {
	return Timing{
		CountFrom:     3,
		Tick:          time.Second,
		AnnounceDelay: time.Second,
		Fade:          3 * time.Second,
		MusicVolume:   0.5,
		MinPlayers:    2,
	}
}

// Mirror is a participant's local view of its room. Events are applied
// one at a time on its own goroutine, as are countdown timer fires.
type Mirror struct {
	inbox chan mirrorMsg

	roomCode  string
	hostSkin  string
	isHost    bool
	selfReady bool
	roster    []Player
	env       room.Environment

	phase       Phase
	remaining   int
	gen         uint64
	timer       *time.Timer
	gameStarted bool
	// set when no transport took the start trigger
	startLocally bool

	timing    Timing
	presenter Presenter
	starter   Starter
	log       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Mirror)

func WithPresenter(p Presenter) Option {
	return func(m *Mirror) { m.presenter = p }
}

// WithStarter sets the transport used by a host to announce the start.
// Without one the mirror starts the game itself.
func WithStarter(s Starter) Option {
	return func(m *Mirror) { m.starter = s }
}

func WithTiming(t Timing) Option {
	return func(m *Mirror) { m.timing = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Mirror) { m.log = l }
}

func New(parent context.Context, opts ...Option) *Mirror {
	ctx, cancel := context.WithCancel(parent)

	m := &Mirror{
		inbox:     make(chan mirrorMsg, 64),
		env:       room.DefaultEnvironment(),
		timing:    DefaultTiming(),
		presenter: NopPresenter{},
		log:       zap.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.loop()
	return m
}

// Deliver queues ev for the mirror. It gives up once the mirror is closed.
func (m *Mirror) Deliver(ev Event) {
	m.post(eventMsg{ev: ev})
}

// SetSelfReady records the local participant's own ready toggle.
func (m *Mirror) SetSelfReady(ready bool) {
	m.post(selfReadyMsg{ready: ready})
}

// Snapshot returns the current state, or the zero Snapshot after Close.
func (m *Mirror) Snapshot() Snapshot {
	if m.ctx.Err() != nil {
		return Snapshot{}
	}
	reply := make(chan Snapshot, 1)
	if !m.post(snapshotMsg{reply: reply}) {
		return Snapshot{}
	}
	select {
	case s := <-reply:
		return s
	case <-m.ctx.Done():
		return Snapshot{}
	}
}

func (m *Mirror) Close() { m.cancel() }

func (m *Mirror) Done() <-chan struct{} { return m.ctx.Done() }

func (m *Mirror) post(msg mirrorMsg) bool {
	select {
	case m.inbox <- msg:
		return true
	case <-m.ctx.Done():
		return false
	}
}

func (m *Mirror) loop() {
	for {
		select {
		case <-m.ctx.Done():
			m.stopTimer()
			return

		case in := <-m.inbox:
			switch msg := in.(type) {
			case eventMsg:
				m.apply(msg.ev)
			case selfReadyMsg:
				m.selfReady = msg.ready
			case snapshotMsg:
				msg.reply <- m.snapshot()
			case tick:
				m.onTick(msg.gen)
			case announceDone:
				m.onAnnounceDone(msg.gen)
			}
		}
	}
}

func (m *Mirror) apply(ev Event) {
	switch e := ev.(type) {
	case RoomCreated:
		m.cancelCountdown()
		m.reset()
		// Role is fixed here and never revisited.
		m.isHost = true
		m.roomCode = e.RoomCode
		m.presenter.RosterChanged(nil)

	case JoinSucceeded:
		if m.roomCode != e.RoomCode {
			m.cancelCountdown()
			m.reset()
		}
		m.roomCode = e.RoomCode
		m.hostSkin = e.HostSkin
		m.env = e.Environment.WithDefaults()
		m.presenter.EnvironmentChanged(m.env)

	case PlayerJoined:
		if m.find(e.Name) < 0 {
			m.roster = append(m.roster, Player{Name: e.Name, SkinID: e.SkinID, Ready: e.Ready})
			m.presenter.RosterChanged(m.rosterCopy())
		}
		if !e.Ready {
			m.cancelCountdown()
		}

	case PlayerLeft:
		if i := m.find(e.Name); i >= 0 {
			m.roster = append(m.roster[:i], m.roster[i+1:]...)
			m.presenter.RosterChanged(m.rosterCopy())
		}
		m.cancelCountdown()

	case ReadyChanged:
		i := m.find(e.Name)
		if i < 0 {
			m.log.Debug("ready update for unknown player", zap.String("name", e.Name))
			return
		}
		m.roster[i].Ready = e.Ready
		m.presenter.RosterChanged(m.rosterCopy())
		if !m.isHost {
			return
		}
		if m.allReady() {
			m.startCountdown()
		} else if !e.Ready {
			m.cancelCountdown()
		}

	case InfoChanged:
		i := m.find(e.OldName)
		if i < 0 {
			return
		}
		if e.NewName != "" {
			m.roster[i].Name = e.NewName
		}
		if e.NewSkin != "" {
			m.roster[i].SkinID = e.NewSkin
		}
		m.presenter.RosterChanged(m.rosterCopy())

	case EnvironmentChanged:
		m.env = e.Environment.WithDefaults()
		m.presenter.EnvironmentChanged(m.env)

	case GameStarting:
		m.startGame()

	case RoomClosed:
		m.cancelCountdown()
		m.reset()
		m.presenter.RosterChanged(nil)
		m.presenter.RoomClosed()

	case ErrorReceived:
		m.log.Info("room error", zap.String("code", e.Code), zap.String("message", e.Message))
		m.presenter.ShowError(e.Code, e.Message)
	}
}

// reset returns room and game state to their initial values. The host
// role survives so the UI can offer a new room.
func (m *Mirror) reset() {
	m.stopTimer()
	m.gen++
	m.roomCode = ""
	m.hostSkin = ""
	m.selfReady = false
	m.roster = nil
	m.env = room.DefaultEnvironment()
	m.phase = Idle
	m.remaining = 0
	m.gameStarted = false
	m.startLocally = false
}

func (m *Mirror) find(name string) int {
	for i, p := range m.roster {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (m *Mirror) allReady() bool {
	if len(m.roster) < m.timing.MinPlayers || len(m.roster) == 0 {
		return false
	}
	for _, p := range m.roster {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (m *Mirror) rosterCopy() []Player {
	if len(m.roster) == 0 {
		return nil
	}
	out := make([]Player, len(m.roster))
	copy(out, m.roster)
	return out
}

func (m *Mirror) snapshot() Snapshot {
	return Snapshot{
		RoomCode:    m.roomCode,
		HostSkin:    m.hostSkin,
		IsHost:      m.isHost,
		SelfReady:   m.selfReady,
		Roster:      m.rosterCopy(),
		Environment: m.env,
		Phase:       m.phase,
		Remaining:   m.remaining,
		GameStarted: m.gameStarted,
	}
}
