// Package geometry computes the session opening and the coverage layout around it.
// Everything here is pure and deterministic.
package geometry

import (
	"math"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

const (
	// OpeningWidthRatio is the opening width as a share of the work area.
	OpeningWidthRatio = 0.55
	// OpeningHeightRatio is the opening height as a share of the work area.
	OpeningHeightRatio = 0.76
	// TopMargin is reserved above the opening before vertical centering.
	TopMargin = 80
)

// ComputeOpening returns the viewport the target window is pinned into.
// The opening is horizontally centered in the work area and vertically centered
// below a TopMargin band; its height is clamped so it never extends past the
// bottom of the full display bounds.
func ComputeOpening(work, full domain.Rect) domain.Rect {
	w := int(math.Round(float64(work.W) * OpeningWidthRatio))
	h := int(math.Round(float64(work.H) * OpeningHeightRatio))

	x := int(math.Floor(float64(work.X) + float64(work.W-w)/2))

	usableY := work.Y + TopMargin
	usableH := work.H - TopMargin
	y := int(math.Floor(float64(usableY) + float64(usableH-h)/2))

	h = min(h, full.Bottom()-y)

	return ClampInto(domain.Rect{X: x, Y: y, W: w, H: h}, full)
}

// PadOutward grows r by margin on every side, clamped to bounds.
func PadOutward(r domain.Rect, margin int, bounds domain.Rect) domain.Rect {
	padded := domain.Rect{
		X: r.X - margin,
		Y: r.Y - margin,
		W: r.W + 2*margin,
		H: r.H + 2*margin,
	}
	return ClampInto(padded, bounds)
}

// ClampInto trims r so it lies within bounds.
func ClampInto(r, bounds domain.Rect) domain.Rect {
	x0 := max(r.X, bounds.X)
	y0 := max(r.Y, bounds.Y)
	x1 := min(r.Right(), bounds.Right())
	y1 := min(r.Bottom(), bounds.Bottom())
	x0 = min(x0, bounds.Right())
	y0 = min(y0, bounds.Bottom())
	return domain.Rect{X: x0, Y: y0, W: max(0, x1-x0), H: max(0, y1-y0)}
}

// CoverageLayout returns the five regions framing opening inside full, in
// domain.RegionRoles order. The union of the regions and the opening is exactly
// full. Adjoining regions overlap by up to overlap pixels to hide rounding
// slivers; no region ever intersects the opening.
func CoverageLayout(full, opening domain.Rect, capHeight, overlap int) []domain.RegionSpec {
	opening = ClampInto(opening, full)

	capH := max(0, min(capHeight, opening.Y-full.Y))
	topY := max(full.Y, full.Y+capH-overlap)
	sideY := max(full.Y, opening.Y-overlap)
	sideBottom := min(full.Bottom(), opening.Bottom()+overlap)

	return []domain.RegionSpec{
		{
			Role:   domain.RegionCap,
			Bounds: domain.Rect{X: full.X, Y: full.Y, W: full.W, H: capH},
		},
		{
			Role:   domain.RegionTop,
			Bounds: domain.Rect{X: full.X, Y: topY, W: full.W, H: opening.Y - topY},
		},
		{
			Role:   domain.RegionBottom,
			Bounds: domain.Rect{X: full.X, Y: opening.Bottom(), W: full.W, H: full.Bottom() - opening.Bottom()},
		},
		{
			Role:   domain.RegionLeft,
			Bounds: domain.Rect{X: full.X, Y: sideY, W: opening.X - full.X, H: sideBottom - sideY},
		},
		{
			Role:   domain.RegionRight,
			Bounds: domain.Rect{X: opening.Right(), Y: sideY, W: full.Right() - opening.Right(), H: sideBottom - sideY},
		},
	}
}
