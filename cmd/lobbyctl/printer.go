package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/DoyleJ11/second-law-lobby/internal/room"
	"github.com/DoyleJ11/second-law-lobby/internal/session"
)

// printer writes mirror activity as plain lines.
type printer struct {
	out io.Writer
}

func newPrinter(out io.Writer) *printer { return &printer{out: out} }

func (p *printer) RosterChanged(players []session.Player) {
	if len(players) == 0 {
		fmt.Fprintln(p.out, "roster: (empty)")
		return
	}
	parts := make([]string, 0, len(players))
	for _, pl := range players {
		mark := " "
		if pl.Ready {
			mark = "*"
		}
		parts = append(parts, fmt.Sprintf("%s%s[%s]", mark, pl.Name, pl.SkinID))
	}
	fmt.Fprintln(p.out, "roster:", strings.Join(parts, " "))
}

func (p *printer) EnvironmentChanged(env room.Environment) {
	sector, location := "-", "-"
	if env.Sector != nil {
		sector = *env.Sector
	}
	if env.Location != nil {
		location = *env.Location
	}
	fmt.Fprintf(p.out, "environment: sector=%s location=%s weather=%s time=%s\n", sector, location, env.Weather, env.TimeOfDay)
}

func (p *printer) CountdownTick(n int) { fmt.Fprintf(p.out, "%d...\n", n) }

func (p *printer) Announce(text string) { fmt.Fprintln(p.out, text) }

func (p *printer) CountdownCancelled() { fmt.Fprintln(p.out, "countdown cancelled") }

func (p *printer) GameStarted() { fmt.Fprintln(p.out, "game started") }

func (p *printer) FadeAmbient(volume float64, d time.Duration) {
	fmt.Fprintf(p.out, "music -> %.0f%% over %s\n", volume*100, d)
}

func (p *printer) RoomClosed() { fmt.Fprintln(p.out, "room closed") }

func (p *printer) ShowError(code, message string) {
	fmt.Fprintf(p.out, "error %s: %s\n", code, message)
}
