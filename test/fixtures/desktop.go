// Package fixtures provides canned desktops for integration tests.
package fixtures

import (
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/infra"
)

// Display is a named primary display with its usable work area.
type Display struct {
	Name string
	Full domain.Rect
	Work domain.Rect
}

// Displays covers the geometries the coverage layout must handle.
var Displays = []Display{
	{
		Name: "1080p with menu bar",
		Full: domain.Rect{W: 1920, H: 1080},
		Work: domain.Rect{Y: 25, W: 1920, H: 1055},
	},
	{
		Name: "1440p with menu bar and dock",
		Full: domain.Rect{W: 2560, H: 1440},
		Work: domain.Rect{Y: 25, W: 2560, H: 1335},
	},
	{
		Name: "small laptop",
		Full: domain.Rect{W: 1280, H: 800},
		Work: domain.Rect{Y: 24, W: 1280, H: 776},
	},
	{
		Name: "offset origin",
		Full: domain.Rect{X: 100, Y: 50, W: 1024, H: 768},
		Work: domain.Rect{X: 100, Y: 50, W: 1024, H: 768},
	},
}

// Desktop returns a headless desktop for d with apps running.
func (d Display) Desktop(apps ...string) *infra.Headless {
	return infra.NewHeadless(d.Full, d.Work, apps...)
}

// DefaultDesktop returns the 1080p desktop running Notes and Mail.
func DefaultDesktop() *infra.Headless {
	return Displays[0].Desktop("Notes", "Mail")
}
