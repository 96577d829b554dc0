// ABOUTME: Tests for route preference hints
// ABOUTME: Covers matching, route selection, miss reporting, and revert idempotence
package routing

import (
	"errors"
	"testing"

	"github.com/audiotap/audiotap/internal/device"
)

type fakeSelector struct {
	routes    []device.Route
	listErr   error
	selectErr error

	selected string // last route requested via UsePlaybackRoute
	resets   int
}

func (f *fakeSelector) PlaybackRoutes() ([]device.Route, error) {
	return f.routes, f.listErr
}

func (f *fakeSelector) UsePlaybackRoute(name string) error {
	if f.selectErr != nil {
		return f.selectErr
	}
	f.selected = name
	return nil
}

func (f *fakeSelector) UseDefaultPlayback() {
	f.selected = ""
	f.resets++
}

func TestPreferenceSelectsMatchedRoute(t *testing.T) {
	sel := &fakeSelector{routes: []device.Route{
		{Name: "Built-in Speakers", IsDefault: true},
		{Name: "USB Headset (Communications)"},
	}}

	p := NewPreference(sel, "communications")
	if err := p.Apply(); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	// The matched route must actually be requested on the platform, not
	// just remembered.
	if sel.selected != "USB Headset (Communications)" {
		t.Errorf("selected route = %q, want the matched headset", sel.selected)
	}

	if err := p.Revert(); err != nil {
		t.Errorf("Revert failed: %v", err)
	}
	if sel.resets != 1 {
		t.Errorf("default playback restored %d times, want 1", sel.resets)
	}
	// Revert is idempotent.
	if err := p.Revert(); err != nil {
		t.Errorf("second Revert failed: %v", err)
	}
	if sel.resets != 1 {
		t.Errorf("default playback restored %d times after redundant Revert, want 1", sel.resets)
	}
}

func TestPreferenceNoMatch(t *testing.T) {
	sel := &fakeSelector{routes: []device.Route{{Name: "Built-in Speakers", IsDefault: true}}}

	p := NewPreference(sel, "bluetooth")
	if err := p.Apply(); err == nil {
		t.Error("Apply should fail when no route matches")
	}
	if sel.selected != "" {
		t.Errorf("selected route = %q, want none", sel.selected)
	}
	// Nothing was chosen, so Revert has nothing to do.
	if err := p.Revert(); err != nil {
		t.Errorf("Revert failed: %v", err)
	}
	if sel.resets != 0 {
		t.Errorf("default playback restored %d times, want 0", sel.resets)
	}
}

func TestPreferenceEnumerationError(t *testing.T) {
	sel := &fakeSelector{listErr: errors.New("backend gone")}

	p := NewPreference(sel, "anything")
	if err := p.Apply(); err == nil {
		t.Error("Apply should surface enumeration errors")
	}
}

func TestPreferenceSelectionError(t *testing.T) {
	sel := &fakeSelector{
		routes:    []device.Route{{Name: "USB Headset"}},
		selectErr: errors.New("device vanished"),
	}

	p := NewPreference(sel, "headset")
	if err := p.Apply(); err == nil {
		t.Error("Apply should surface selection errors")
	}
	// A failed selection leaves nothing to revert.
	if err := p.Revert(); err != nil {
		t.Errorf("Revert failed: %v", err)
	}
	if sel.resets != 0 {
		t.Errorf("default playback restored %d times, want 0", sel.resets)
	}
}

func TestNoopHint(t *testing.T) {
	h := Noop()
	if err := h.Apply(); err != nil {
		t.Errorf("Apply failed: %v", err)
	}
	if err := h.Revert(); err != nil {
		t.Errorf("Revert failed: %v", err)
	}
}
