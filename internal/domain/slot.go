package domain

import "time"

// Interval is half-open: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open semantics, so touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return !(!i.End.After(o.Start) || !i.Start.Before(o.End))
}

// Subtract returns the parts of i not covered by o, in time order.
func (i Interval) Subtract(o Interval) []Interval {
	if !i.Overlaps(o) {
		return []Interval{i}
	}
	var out []Interval
	if i.Start.Before(o.Start) {
		out = append(out, Interval{Start: i.Start, End: o.Start})
	}
	if o.End.Before(i.End) {
		out = append(out, Interval{Start: o.End, End: i.End})
	}
	return out
}

type Slot struct {
	Start         time.Time
	End           time.Time
	MilesFromBase float64
}

type TravelLeg struct {
	Minutes int
	Miles   float64
	// Fallback is set when the leg is the configured default rather than a
	// provider estimate. Fallback legs are never cached.
	Fallback bool
}

func (l TravelLeg) Duration() time.Duration {
	return time.Duration(l.Minutes) * time.Minute
}
