package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DoyleJ11/second-law-lobby/internal/config"
	"github.com/DoyleJ11/second-law-lobby/internal/room"
	"github.com/DoyleJ11/second-law-lobby/internal/session"
)

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)

	p.RosterChanged(nil)
	p.RosterChanged([]session.Player{{Name: "Nell", SkinID: "s1", Ready: true}, {Name: "Oyo", SkinID: "s2"}})
	sector := "north"
	p.EnvironmentChanged(room.Environment{Sector: &sector, Weather: "rain", TimeOfDay: "dusk"})
	p.CountdownTick(3)
	p.FadeAmbient(0.5, 3*time.Second)
	p.ShowError("RoomFull", "Room is full")

	assert.Equal(t, "roster: (empty)\n"+
		"roster: *Nell[s1]  Oyo[s2]\n"+
		"environment: sector=north location=- weather=rain time=dusk\n"+
		"3...\n"+
		"music -> 50% over 3s\n"+
		"error RoomFull: Room is full\n", buf.String())
}

func TestNewCmd_Subcommands(t *testing.T) {
	cmd := newCmd(&config.Participant{})
	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "host")
	assert.Contains(t, names, "join")
}
