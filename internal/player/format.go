package player

import (
	"fmt"
	"math"
)

// FormatTime renders seconds as M:SS. Minutes are unbounded and seconds are
// zero-padded. Unknown or negative values render as 0:00.
func FormatTime(seconds float64) string {
	if !finite(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Progress returns the fill percentage of the progress bar, clamped to [0,100].
// It is 0 while the duration is unknown or zero.
func Progress(position, duration float64) float64 {
	if !durationKnown(duration) || !finite(position) {
		return 0
	}
	pct := position / duration * 100
	return math.Max(0, math.Min(100, pct))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func durationKnown(d float64) bool {
	return finite(d) && d > 0
}
