// Package timefmt renders quote timestamps as short relative strings.
package timefmt

import (
	"strconv"
	"time"
)

// FutureSentinel is returned for instants after now.
const FutureSentinel = "fUtuRe woOooOOoo"

const (
	secondsPerMonth = 2629746
	secondsPerYear  = 31556952
)

// ToRelativeTime formats t relative to the wall clock.
func ToRelativeTime(t time.Time) string {
	return Relative(time.Now(), t)
}

// Relative formats t relative to now, e.g. "Just now", "5m ago", "2w ago".
// Units are derived by integer division, so a month is four weeks and a
// year is twelve of those months once the month boundary is crossed.
func Relative(now, t time.Time) string {
	s := int64(now.Sub(t) / time.Second)
	if s < 0 {
		return FutureSentinel
	}

	m := s / 60
	h := m / 60
	d := h / 24
	w := d / 7
	mo := w / 4
	y := mo / 12

	switch {
	case s < 60:
		if s <= 1 {
			return "Just now"
		}
		return ago(s, "s")
	case s < 3600:
		return ago(m, "m")
	case s < 86400:
		return ago(h, "h")
	case s < 604800:
		return ago(d, "d")
	case s < secondsPerMonth:
		return ago(w, "w")
	case s < secondsPerYear:
		return ago(mo, "mo")
	default:
		return ago(y, "y")
	}
}

func ago(n int64, unit string) string {
	return strconv.FormatInt(n, 10) + unit + " ago"
}
