package worklist

import (
	"fmt"
	"strings"
	"time"
)

// DateRange is a half-open interval [From, To). A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Unbounded reports whether the range places no constraint.
func (r DateRange) Unbounded() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// dtLayouts maps the digit count of a DA/DT value to its layout and the
// span one value of that precision covers.
var dtLayouts = map[int]struct {
	layout string
	span   func(time.Time) time.Time
}{
	4:  {"2006", func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }},
	6:  {"200601", func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }},
	8:  {"20060102", func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }},
	10: {"2006010215", func(t time.Time) time.Time { return t.Add(time.Hour) }},
	12: {"200601021504", func(t time.Time) time.Time { return t.Add(time.Minute) }},
	14: {"20060102150405", func(t time.Time) time.Time { return t.Add(time.Second) }},
}

// ParseDateRange parses a DA or DT matching value: a single value, or
// "lower-upper" with either side optional. Bounds are inclusive of their whole
// precision, so "20230131" covers that entire day. An empty value, "*" or a
// lone "-" yields an unbounded range.
func ParseDateRange(value string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.Local
	}
	value = strings.TrimSpace(value)
	if value == "" || value == "*" || value == "-" {
		return DateRange{}, nil
	}

	lower, upper, isRange := strings.Cut(value, "-")
	if !isRange {
		from, to, err := parseDateTimeValue(value, loc)
		if err != nil {
			return DateRange{}, err
		}
		return DateRange{From: from, To: to}, nil
	}
	if strings.Contains(upper, "-") {
		return DateRange{}, fmt.Errorf("worklist: malformed date range %q", value)
	}

	var r DateRange
	if lower != "" {
		from, _, err := parseDateTimeValue(lower, loc)
		if err != nil {
			return DateRange{}, err
		}
		r.From = from
	}
	if upper != "" {
		_, to, err := parseDateTimeValue(upper, loc)
		if err != nil {
			return DateRange{}, err
		}
		r.To = to
	}
	if !r.From.IsZero() && !r.To.IsZero() && !r.From.Before(r.To) {
		return DateRange{}, fmt.Errorf("worklist: inverted date range %q", value)
	}
	return r, nil
}

// parseDateTimeValue returns the first instant of a DA/DT value and the first
// instant after it at the value's precision.
func parseDateTimeValue(value string, loc *time.Location) (time.Time, time.Time, error) {
	digits, fraction, hasFraction := strings.Cut(value, ".")
	format, ok := dtLayouts[len(digits)]
	if !ok || (hasFraction && len(digits) != 14) {
		return time.Time{}, time.Time{}, fmt.Errorf("worklist: malformed date %q", value)
	}
	start, err := time.ParseInLocation(format.layout, digits, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("worklist: malformed date %q: %w", value, err)
	}
	if !hasFraction {
		return start, format.span(start), nil
	}

	if fraction == "" || len(fraction) > 6 || strings.Trim(fraction, "0123456789") != "" {
		return time.Time{}, time.Time{}, fmt.Errorf("worklist: malformed fraction in %q", value)
	}
	unit := time.Second
	var offset time.Duration
	for _, c := range fraction {
		unit /= 10
		offset += time.Duration(c-'0') * unit
	}
	start = start.Add(offset)
	return start, start.Add(unit), nil
}
