package session

import (
	"time"

	"go.uber.org/zap"
)

// Phase is the host-side countdown state.
type Phase int

const (
	Idle Phase = iota
	Counting
	Announcing
	Started
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Counting:
		return "counting"
	case Announcing:
		return "announcing"
	case Started:
		return "started"
	}
	return "unknown"
}

const goText = "GO!"

// startCountdown is a no-op unless the mirror is idle.
func (m *Mirror) startCountdown() {
	if m.phase != Idle || m.gameStarted {
		return
	}
	m.gen++
	m.phase = Counting
	m.remaining = m.timing.CountFrom
	m.log.Debug("countdown started", zap.String("room", m.roomCode), zap.Int("from", m.remaining))

	m.presenter.FadeAmbient(0, m.timing.Fade)
	m.presenter.CountdownTick(m.remaining)
	m.remaining--
	m.arm(m.timing.Tick, tick{gen: m.gen})
}

// cancelCountdown reports whether a running countdown was stopped.
func (m *Mirror) cancelCountdown() bool {
	if m.phase != Counting {
		return false
	}
	m.stopTimer()
	m.gen++
	m.phase = Idle
	m.remaining = 0
	m.log.Debug("countdown cancelled", zap.String("room", m.roomCode))

	m.presenter.CountdownCancelled()
	m.presenter.FadeAmbient(m.timing.MusicVolume, m.timing.Fade)
	return true
}

func (m *Mirror) onTick(gen uint64) {
	if gen != m.gen || m.phase != Counting {
		return
	}
	if m.remaining > 0 {
		m.presenter.CountdownTick(m.remaining)
		m.remaining--
		m.arm(m.timing.Tick, tick{gen: m.gen})
		return
	}

	m.phase = Announcing
	m.presenter.Announce(goText)
	m.startLocally = true
	if m.starter != nil {
		if err := m.starter.SendGameStart(); err != nil {
			m.log.Warn("game start not sent, starting locally", zap.Error(err))
		} else {
			m.startLocally = false
		}
	}
	m.arm(m.timing.AnnounceDelay, announceDone{gen: m.gen})
}

func (m *Mirror) onAnnounceDone(gen uint64) {
	if gen != m.gen || m.phase != Announcing {
		return
	}
	m.phase = Started
	if m.startLocally {
		m.startGame()
	}
}

// startGame runs at most once per room.
func (m *Mirror) startGame() {
	if m.gameStarted {
		return
	}
	m.stopTimer()
	m.gen++
	m.phase = Started
	m.gameStarted = true
	m.log.Info("game started", zap.String("room", m.roomCode))
	m.presenter.GameStarted()
}

func (m *Mirror) arm(d time.Duration, msg mirrorMsg) {
	m.stopTimer()
	m.timer = time.AfterFunc(d, func() { m.post(msg) })
}

func (m *Mirror) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
