package hours

import (
	"strings"
	"time"
)

// Rule is an open window expressed as offsets from local midnight.
type Rule struct {
	Start time.Duration
	End   time.Duration
}

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Parse reads "Tue:09:00-17:00,Wed:09:00-17:00". Entries it cannot read are
// skipped and the day stays closed.
func Parse(text string) map[time.Weekday]Rule {
	rules := make(map[time.Weekday]Rule)
	for _, entry := range strings.Split(text, ",") {
		entry = strings.TrimSpace(entry)
		day, window, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		day = strings.ToLower(strings.TrimSpace(day))
		if len(day) < 3 {
			continue
		}
		weekday, ok := dayNames[day[:3]]
		if !ok {
			continue
		}
		from, to, ok := strings.Cut(window, "-")
		if !ok {
			continue
		}
		start, err := parseClock(from)
		if err != nil {
			continue
		}
		end, err := parseClock(to)
		if err != nil {
			continue
		}
		if end <= start {
			continue
		}
		rules[weekday] = Rule{Start: start, End: end}
	}
	return rules
}

func parseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

type Policy struct {
	rules map[time.Weekday]Rule
	loc   *time.Location
}

func NewPolicy(rules map[time.Weekday]Rule, loc *time.Location) *Policy {
	if loc == nil {
		loc = time.UTC
	}
	copied := make(map[time.Weekday]Rule, len(rules))
	for d, r := range rules {
		copied[d] = r
	}
	return &Policy{rules: copied, loc: loc}
}

func (p *Policy) Location() *time.Location {
	return p.loc
}

// DayStart returns local midnight of the calendar day containing t.
func (p *Policy) DayStart(t time.Time) time.Time {
	local := t.In(p.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
}

// Window returns the open window of the local day containing day.
func (p *Policy) Window(day time.Time) (time.Time, time.Time, bool) {
	midnight := p.DayStart(day)
	rule, ok := p.rules[midnight.Weekday()]
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return atOffset(midnight, rule.Start), atOffset(midnight, rule.End), true
}

// IsOpen reports whether t falls in [start, end) of its local day's window.
func (p *Policy) IsOpen(t time.Time) bool {
	start, end, ok := p.Window(t)
	if !ok {
		return false
	}
	return !t.Before(start) && t.Before(end)
}

// atOffset builds the wall clock time rather than adding a duration so DST
// transition days keep 09:00 meaning 09:00.
func atOffset(midnight time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(), h, m, 0, 0, midnight.Location())
}
