package room

import (
	"fmt"
	"math/rand"
)

// Registry maps room codes to live rooms. It is not safe for concurrent use;
// the coordinator loop is its only caller.
type Registry struct {
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

func (reg *Registry) Create(code, hostID, hostSkin string) (*Room, error) {
	if _, ok := reg.rooms[code]; ok {
		return nil, fmt.Errorf("create %s: %w", code, ErrDuplicateRoom)
	}
	r := New(code, hostID, hostSkin)
	reg.rooms[code] = r
	return r, nil
}

func (reg *Registry) Get(code string) (*Room, error) {
	r, ok := reg.rooms[code]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", code, ErrRoomNotFound)
	}
	return r, nil
}

func (reg *Registry) Delete(code string) {
	delete(reg.rooms, code)
}

func (reg *Registry) Len() int { return len(reg.rooms) }

func (reg *Registry) Codes() []string {
	codes := make([]string, 0, len(reg.rooms))
	for c := range reg.rooms {
		codes = append(codes, c)
	}
	return codes
}

// NewCode returns a clean code that no live room is using.
func (reg *Registry) NewCode(rng *rand.Rand) string {
	for {
		c := GenerateCode(rng)
		if _, taken := reg.rooms[c]; !taken {
			return c
		}
	}
}
