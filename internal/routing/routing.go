// ABOUTME: Best-effort audio route preference hints
// ABOUTME: Advisory apply/revert around playback start; failures are never fatal
package routing

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/audiotap/audiotap/internal/device"
)

// Hint requests a preferred audio route before playback starts and
// restores the default state afterwards. Both calls are advisory: the
// platform keeps final say over where audio actually goes, and callers
// log failures instead of aborting the session.
type Hint interface {
	Apply() error
	Revert() error
}

// RouteSelector enumerates the playback endpoints currently visible to
// the platform and directs future playback opens at a chosen one.
// Implemented by device.Engine.
type RouteSelector interface {
	PlaybackRoutes() ([]device.Route, error)
	UsePlaybackRoute(name string) error
	UseDefaultPlayback()
}

// Noop returns a Hint that does nothing, for when routing is disabled.
func Noop() Hint {
	return noopHint{}
}

type noopHint struct{}

func (noopHint) Apply() error  { return nil }
func (noopHint) Revert() error { return nil }

// Preference directs playback at the first route whose name contains a
// configured substring (case-insensitive). Apply must run before the
// playback device opens for the selection to take effect.
type Preference struct {
	sel    RouteSelector
	match  string
	chosen string
}

// NewPreference creates a Hint preferring routes matching match.
func NewPreference(sel RouteSelector, match string) *Preference {
	return &Preference{sel: sel, match: match}
}

func (p *Preference) Apply() error {
	routes, err := p.sel.PlaybackRoutes()
	if err != nil {
		return fmt.Errorf("failed to enumerate playback routes: %w", err)
	}

	for _, r := range routes {
		slog.Debug("playback route available", "name", r.Name, "default", r.IsDefault)
	}

	want := strings.ToLower(p.match)
	for _, r := range routes {
		if !strings.Contains(strings.ToLower(r.Name), want) {
			continue
		}
		if err := p.sel.UsePlaybackRoute(r.Name); err != nil {
			return fmt.Errorf("failed to select playback route %q: %w", r.Name, err)
		}
		p.chosen = r.Name
		slog.Info("selected preferred playback route", "route", r.Name)
		return nil
	}
	return fmt.Errorf("no playback route matching %q", p.match)
}

func (p *Preference) Revert() error {
	if p.chosen == "" {
		return nil
	}
	p.sel.UseDefaultPlayback()
	slog.Info("restored default playback route", "was", p.chosen)
	p.chosen = ""
	return nil
}
