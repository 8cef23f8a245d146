// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Rect is an axis-aligned rectangle in screen coordinates.
type Rect struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.W }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.H }

// Empty reports whether the rect covers no pixels.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Contains reports whether the pixel (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Intersects reports whether r and other share at least one pixel.
func (r Rect) Intersects(other Rect) bool {
	if r.Empty() || other.Empty() {
		return false
	}
	return r.X < other.Right() && other.X < r.Right() &&
		r.Y < other.Bottom() && other.Y < r.Bottom()
}

// Intersect returns the overlapping area of r and other (empty if none).
func (r Rect) Intersect(other Rect) Rect {
	x0 := max(r.X, other.X)
	y0 := max(r.Y, other.Y)
	x1 := min(r.Right(), other.Right())
	y1 := min(r.Bottom(), other.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{X: x0, Y: y0}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Within reports whether r lies entirely inside bounds.
func (r Rect) Within(bounds Rect) bool {
	return r.X >= bounds.X && r.Y >= bounds.Y &&
		r.Right() <= bounds.Right() && r.Bottom() <= bounds.Bottom()
}

// DurationMode distinguishes timed sessions from open-ended ones.
type DurationMode string

const (
	DurationTimed      DurationMode = "timed"
	DurationIndefinite DurationMode = "indefinite"
)

const (
	// DefaultSessionMinutes is used when a duration cannot be interpreted.
	DefaultSessionMinutes = 15
	// MinSessionMinutes is the floor for timed sessions.
	MinSessionMinutes = 1
)

// SessionDuration is a normalized session length.
type SessionDuration struct {
	Mode    DurationMode
	Minutes float64 // zero for indefinite sessions
}

// Indefinite is the "until I'm done" duration.
var Indefinite = SessionDuration{Mode: DurationIndefinite}

// Timed returns a timed duration, floored at one minute.
func Timed(minutes float64) SessionDuration {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return SessionDuration{Mode: DurationTimed, Minutes: DefaultSessionMinutes}
	}
	return SessionDuration{Mode: DurationTimed, Minutes: math.Max(MinSessionMinutes, minutes)}
}

// IsTimed reports whether the session ends on its own.
func (d SessionDuration) IsTimed() bool { return d.Mode == DurationTimed }

// Timeout returns the session length, or zero for indefinite sessions.
// Lengths beyond what time.Duration can hold saturate at its maximum.
func (d SessionDuration) Timeout() time.Duration {
	if !d.IsTimed() {
		return 0
	}
	ns := d.Minutes * float64(time.Minute)
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

func (d SessionDuration) String() string {
	if !d.IsTimed() {
		return "until done"
	}
	return strconv.FormatFloat(d.Minutes, 'f', -1, 64) + "m"
}

// NormalizeMinutes maps an optional minute count to a SessionDuration.
// nil means "until I'm done".
func NormalizeMinutes(minutes *float64) SessionDuration {
	if minutes == nil {
		return Indefinite
	}
	return Timed(*minutes)
}

// ParseDuration interprets picker/CLI input: "" or "done" (any case) is
// indefinite, anything numeric is timed, everything else falls back to 15 minutes.
func ParseDuration(raw string) SessionDuration {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "done") {
		return Indefinite
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Timed(math.NaN())
	}
	return Timed(n)
}

// Session is the single live focus-lock engagement.
type Session struct {
	App       string
	Duration  SessionDuration
	StartedAt time.Time
	Opening   Rect
}

// EndsAt returns when a timed session expires (zero time if indefinite).
func (s Session) EndsAt() time.Time {
	if !s.Duration.IsTimed() {
		return time.Time{}
	}
	return s.StartedAt.Add(s.Duration.Timeout())
}

// EndReason records why a session ended.
type EndReason string

const (
	EndManual        EndReason = "manual"
	EndTimer         EndReason = "timer"
	EndAppClosed     EndReason = "app-closed"
	EndPinFailed     EndReason = "pin-failed"
	EndWatchdog      EndReason = "watchdog"
	EndWatchdogError EndReason = "watchdog-error"
)

// ParseEndReason maps an external reason string; unknown values become manual.
func ParseEndReason(s string) EndReason {
	switch r := EndReason(strings.TrimSpace(s)); r {
	case EndManual, EndTimer, EndAppClosed, EndPinFailed, EndWatchdog, EndWatchdogError:
		return r
	default:
		return EndManual
	}
}

// PrefValue is a tri-state system preference value.
type PrefValue int

const (
	PrefUnknown PrefValue = iota
	PrefFalse
	PrefTrue
)

// PrefFromBool converts a known boolean preference.
func PrefFromBool(b bool) PrefValue {
	if b {
		return PrefTrue
	}
	return PrefFalse
}

// Known reports whether the value was readable.
func (p PrefValue) Known() bool { return p != PrefUnknown }

// Bool returns the boolean value; unknown reads as false.
func (p PrefValue) Bool() bool { return p == PrefTrue }

func (p PrefValue) String() string {
	switch p {
	case PrefTrue:
		return "1"
	case PrefFalse:
		return "0"
	default:
		return "<unknown>"
	}
}

// RegionRole names one of the five coverage regions.
type RegionRole string

const (
	RegionCap    RegionRole = "cap"
	RegionTop    RegionRole = "top"
	RegionBottom RegionRole = "bottom"
	RegionLeft   RegionRole = "left"
	RegionRight  RegionRole = "right"
)

// RegionRoles is the canonical creation order of the coverage set.
var RegionRoles = []RegionRole{RegionCap, RegionTop, RegionBottom, RegionLeft, RegionRight}

// CoverageRegionCount is the required cardinality of a live coverage set.
const CoverageRegionCount = 5

// RegionSpec describes one coverage region to materialize.
// Every region is opaque, never focusable, ignores the mouse, stays above
// full-screen windows and is visible on every virtual desktop.
type RegionSpec struct {
	Role   RegionRole
	Bounds Rect
	Color  string
	Label  string // optional hint text (bottom region only)
}

// EngineState is the session state machine position.
type EngineState string

const (
	StateIdle     EngineState = "idle"
	StateStarting EngineState = "starting"
	StateRunning  EngineState = "running"
	StateEnding   EngineState = "ending"
)
