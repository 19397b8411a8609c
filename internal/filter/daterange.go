package filter

import (
	"errors"
	"time"
)

// ErrInvalidRange flags a malformed or incomplete custom date range. It is
// raised before any request is sent, so the UI can surface it inline next to
// the date picker.
var ErrInvalidRange = errors.New("invalid date range")

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Window is a pair of concrete instant bounds, inclusive on both ends.
type Window struct {
	Start time.Time
	End   time.Time
}

// TimeScope is the resolved time dimension of a filter: either a rolling
// day-count passed through to the backend, or explicit window bounds.
// Never both. A nil *TimeScope means "no time filter at all".
type TimeScope struct {
	Days   int
	Window *Window
}

// ResolveTimeScope turns the declarative date selector into a concrete time
// scope. It is pure: identical input always yields identical output, so
// every consumer of the same State within one filtering pass sees the same
// window.
//
// Precedence: SpecificDate supersedes DateRange; "all" yields nil;
// "custom" requires both dates and defaults missing times to 00:00:00 and
// 23:59:59; a preset day count passes through untouched.
func ResolveTimeScope(st State, loc *time.Location) (*TimeScope, error) {
	if loc == nil {
		loc = time.UTC
	}

	if st.SpecificDate != "" {
		day, err := time.ParseInLocation(dateLayout, st.SpecificDate, loc)
		if err != nil {
			return nil, ErrInvalidRange
		}
		return &TimeScope{Window: dayWindow(day)}, nil
	}

	switch st.DateRange {
	case RangeAll:
		return nil, nil
	case RangeCustom:
		return resolveCustom(st, loc)
	}

	days, ok := st.DateRange.Days()
	if !ok {
		return nil, ErrInvalidRange
	}
	return &TimeScope{Days: days}, nil
}

func resolveCustom(st State, loc *time.Location) (*TimeScope, error) {
	if st.StartDate == "" || st.EndDate == "" {
		return nil, ErrInvalidRange
	}
	start, err := combine(st.StartDate, st.StartTime, "00:00:00", loc)
	if err != nil {
		return nil, err
	}
	end, err := combine(st.EndDate, st.EndTime, "23:59:59", loc)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	return &TimeScope{Window: &Window{Start: start, End: end}}, nil
}

func combine(date, clock, fallback string, loc *time.Location) (time.Time, error) {
	if clock == "" {
		clock = fallback
	}
	ts, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, ErrInvalidRange
	}
	return ts, nil
}

// dayWindow expands a calendar day to its inclusive [00:00:00, 23:59:59]
// bounds. Every consumer of a specific-date drill-down uses this single
// rule; usage, conversations, storage, and export all see the same window.
func dayWindow(day time.Time) *Window {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return &Window{Start: start, End: start.Add(24*time.Hour - time.Second)}
}
