package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  SessionDuration
	}{
		{name: "empty is indefinite", input: "", want: Indefinite},
		{name: "done", input: "done", want: Indefinite},
		{name: "done any case", input: "DoNe", want: Indefinite},
		{name: "garbage falls back to 15", input: "abc", want: SessionDuration{Mode: DurationTimed, Minutes: 15}},
		{name: "zero floors to 1", input: "0", want: SessionDuration{Mode: DurationTimed, Minutes: 1}},
		{name: "negative floors to 1", input: "-5", want: SessionDuration{Mode: DurationTimed, Minutes: 1}},
		{name: "plain minutes", input: "45", want: SessionDuration{Mode: DurationTimed, Minutes: 45}},
		{name: "infinity falls back to 15", input: "Inf", want: SessionDuration{Mode: DurationTimed, Minutes: 15}},
		{name: "NaN falls back to 15", input: "NaN", want: SessionDuration{Mode: DurationTimed, Minutes: 15}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDuration(tt.input))
		})
	}
}

func TestNormalizeMinutes(t *testing.T) {
	assert.Equal(t, Indefinite, NormalizeMinutes(nil))

	n := 45.0
	assert.Equal(t, SessionDuration{Mode: DurationTimed, Minutes: 45}, NormalizeMinutes(&n))

	inf := math.Inf(1)
	assert.Equal(t, SessionDuration{Mode: DurationTimed, Minutes: 15}, NormalizeMinutes(&inf))
}

func TestSessionDuration_Timeout(t *testing.T) {
	assert.Equal(t, 15*time.Minute, Timed(15).Timeout())
	assert.Equal(t, time.Duration(0), Indefinite.Timeout())
	assert.Equal(t, "until done", Indefinite.String())
	assert.Equal(t, "15m", Timed(15).String())
}

func TestSessionDuration_TimeoutSaturates(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "above the duration range", input: "1e12"},
		{name: "huge exponent", input: "9e99"},
		{name: "largest float", input: "1.7976931348623157e308"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ParseDuration(tt.input)
			assert.True(t, d.IsTimed())
			assert.Equal(t, time.Duration(math.MaxInt64), d.Timeout())
		})
	}

	// Just inside the range still converts exactly.
	assert.Equal(t, 100_000_000*time.Minute, Timed(1e8).Timeout())
}

func TestSession_EndsAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	timed := Session{Duration: Timed(30), StartedAt: start}
	assert.Equal(t, start.Add(30*time.Minute), timed.EndsAt())

	open := Session{Duration: Indefinite, StartedAt: start}
	assert.True(t, open.EndsAt().IsZero())
}

func TestRect_Geometry(t *testing.T) {
	r := Rect{X: 10, Y: 20, W: 100, H: 50}

	assert.Equal(t, 110, r.Right())
	assert.Equal(t, 70, r.Bottom())
	assert.True(t, r.Contains(10, 20))
	assert.False(t, r.Contains(110, 20), "right edge is exclusive")
	assert.True(t, r.Within(Rect{X: 0, Y: 0, W: 200, H: 200}))
	assert.False(t, r.Within(Rect{X: 0, Y: 0, W: 100, H: 100}))

	assert.True(t, r.Intersects(Rect{X: 109, Y: 69, W: 5, H: 5}))
	assert.False(t, r.Intersects(Rect{X: 110, Y: 20, W: 5, H: 5}), "touching edges do not intersect")
	assert.Equal(t, Rect{X: 100, Y: 60, W: 10, H: 10}, r.Intersect(Rect{X: 100, Y: 60, W: 50, H: 50}))
	assert.True(t, r.Intersect(Rect{X: 500, Y: 500, W: 1, H: 1}).Empty())
}

func TestPrefValue(t *testing.T) {
	assert.Equal(t, PrefTrue, PrefFromBool(true))
	assert.Equal(t, PrefFalse, PrefFromBool(false))
	assert.False(t, PrefUnknown.Known())
	assert.False(t, PrefUnknown.Bool())
	assert.Equal(t, "<unknown>", PrefUnknown.String())
	assert.Equal(t, "1", PrefTrue.String())
}

func TestParseEndReason(t *testing.T) {
	assert.Equal(t, EndTimer, ParseEndReason("timer"))
	assert.Equal(t, EndWatchdogError, ParseEndReason("watchdog-error"))
	assert.Equal(t, EndManual, ParseEndReason(""))
	assert.Equal(t, EndManual, ParseEndReason("something-else"))
}

func TestErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("%w: surface helper exited", ErrMaskFailed)

	assert.Equal(t, "mask-failed", ErrorCode(wrapped))
	assert.Equal(t, "no-windows", ErrorCode(ErrNoWindows))
	assert.Equal(t, "mask-missing", ErrorCode(ErrMaskMissing))
	assert.Empty(t, ErrorCode(errors.New("boom")))
	assert.Empty(t, ErrorCode(nil))
}
