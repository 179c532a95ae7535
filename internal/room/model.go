package room

import "slices"

// Capacity is the number of non-host players a room accepts.
const Capacity = 4

const (
	DefaultWeather   = "default"
	DefaultTimeOfDay = "default"
)

// Environment is the host-authoritative world state relayed to every member.
// Sector and Location name entries of an external world catalog.
type Environment struct {
	Sector    *string `json:"sector"`
	Location  *string `json:"location"`
	Weather   string  `json:"weather"`
	TimeOfDay string  `json:"timeOfDay"`
}

func DefaultEnvironment() Environment {
	return Environment{Weather: DefaultWeather, TimeOfDay: DefaultTimeOfDay}
}

// WithDefaults fills missing weather/time-of-day with the baseline values.
func (e Environment) WithDefaults() Environment {
	if e.Weather == "" {
		e.Weather = DefaultWeather
	}
	if e.TimeOfDay == "" {
		e.TimeOfDay = DefaultTimeOfDay
	}
	return e
}

type Player struct {
	ConnID string `json:"-"`
	Name   string `json:"name"`
	SkinID string `json:"skinId"`
	Ready  bool   `json:"ready"`
}

type Room struct {
	Code        string
	HostID      string
	HostSkin    string
	Environment Environment

	// join order, keyed by ConnID
	players []*Player
}

func New(code, hostID, hostSkin string) *Room {
	return &Room{
		Code:        code,
		HostID:      hostID,
		HostSkin:    hostSkin,
		Environment: DefaultEnvironment(),
	}
}

// IsHost is the single authority check for host-only operations.
func IsHost(connID string, r *Room) bool {
	return r != nil && connID != "" && r.HostID == connID
}

func (r *Room) Player(connID string) (*Player, bool) {
	for _, p := range r.players {
		if p.ConnID == connID {
			return p, true
		}
	}
	return nil, false
}

// Players returns a copy of the roster in join order.
func (r *Room) Players() []Player {
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	return out
}

func (r *Room) Len() int { return len(r.players) }

func (r *Room) Full() bool { return len(r.players) >= Capacity }

// AddPlayer inserts a new not-ready player. The host can never be added.
func (r *Room) AddPlayer(connID, name, skinID string) (*Player, error) {
	if connID == r.HostID {
		return nil, ErrAlreadyInRoom
	}
	if _, ok := r.Player(connID); ok {
		return nil, ErrAlreadyInRoom
	}
	if r.Full() {
		return nil, ErrRoomFull
	}
	p := &Player{ConnID: connID, Name: name, SkinID: skinID}
	r.players = append(r.players, p)
	return p, nil
}

func (r *Room) RemovePlayer(connID string) (Player, bool) {
	for i, p := range r.players {
		if p.ConnID == connID {
			r.players = slices.Delete(r.players, i, i+1)
			return *p, true
		}
	}
	return Player{}, false
}

// AllReady reports whether at least one player is present and every player is ready.
func (r *Room) AllReady() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Members returns every connection subscribed to room-wide broadcasts, host first.
func (r *Room) Members() []string {
	ids := make([]string, 0, len(r.players)+1)
	ids = append(ids, r.HostID)
	for _, p := range r.players {
		ids = append(ids, p.ConnID)
	}
	return ids
}
