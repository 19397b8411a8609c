package filter

import (
	"errors"
	"testing"
	"time"
)

func TestResolveTimeScopePresetDays(t *testing.T) {
	tests := []struct {
		name  string
		rng   DateRange
		days  int
		valid bool
	}{
		{name: "one day", rng: "1", days: 1, valid: true},
		{name: "week", rng: "7", days: 7, valid: true},
		{name: "month", rng: "30", days: 30, valid: true},
		{name: "quarter", rng: "90", days: 90, valid: true},
		{name: "year", rng: "365", days: 365, valid: true},
		{name: "zero", rng: "0", valid: false},
		{name: "negative", rng: "-7", valid: false},
		{name: "garbage", rng: "soon", valid: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ResolveTimeScope(State{DateRange: tt.rng}, time.UTC)
			if !tt.valid {
				if !errors.Is(err, ErrInvalidRange) {
					t.Fatalf("expected ErrInvalidRange, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve %q: %v", tt.rng, err)
			}
			if ts == nil || ts.Days != tt.days || ts.Window != nil {
				t.Fatalf("expected rolling %d days, got %+v", tt.days, ts)
			}
		})
	}
}

func TestResolveTimeScopeAllIsUnbounded(t *testing.T) {
	ts, err := ResolveTimeScope(State{DateRange: RangeAll}, time.UTC)
	if err != nil {
		t.Fatalf("resolve all: %v", err)
	}
	if ts != nil {
		t.Fatalf("expected nil scope for unbounded range, got %+v", ts)
	}
}

func TestResolveTimeScopeSpecificDateExpandsToFullDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	st := State{DateRange: "7", SpecificDate: "2025-03-14"}
	ts, err := ResolveTimeScope(st, loc)
	if err != nil {
		t.Fatalf("resolve specific date: %v", err)
	}
	if ts == nil || ts.Window == nil {
		t.Fatalf("expected window scope, got %+v", ts)
	}
	if ts.Days != 0 {
		t.Fatalf("specific date must supersede the preset, got days=%d", ts.Days)
	}

	wantStart := time.Date(2025, 3, 14, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2025, 3, 14, 23, 59, 59, 0, loc)
	if !ts.Window.Start.Equal(wantStart) || !ts.Window.End.Equal(wantEnd) {
		t.Fatalf("window = [%v, %v], want [%v, %v]", ts.Window.Start, ts.Window.End, wantStart, wantEnd)
	}
}

func TestResolveTimeScopeSpecificDateMalformed(t *testing.T) {
	_, err := ResolveTimeScope(State{SpecificDate: "march 14"}, time.UTC)
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestResolveTimeScopeCustomDefaultsClockBounds(t *testing.T) {
	st := State{
		DateRange: RangeCustom,
		StartDate: "2025-01-01",
		EndDate:   "2025-01-31",
	}
	ts, err := ResolveTimeScope(st, time.UTC)
	if err != nil {
		t.Fatalf("resolve custom: %v", err)
	}
	if ts == nil || ts.Window == nil {
		t.Fatalf("expected window scope, got %+v", ts)
	}

	wantStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)
	if !ts.Window.Start.Equal(wantStart) || !ts.Window.End.Equal(wantEnd) {
		t.Fatalf("window = [%v, %v], want [%v, %v]", ts.Window.Start, ts.Window.End, wantStart, wantEnd)
	}
}

func TestResolveTimeScopeCustomHonorsExplicitTimes(t *testing.T) {
	st := State{
		DateRange: RangeCustom,
		StartDate: "2025-01-01",
		EndDate:   "2025-01-01",
		StartTime: "09:00:00",
		EndTime:   "17:30:00",
	}
	ts, err := ResolveTimeScope(st, time.UTC)
	if err != nil {
		t.Fatalf("resolve custom: %v", err)
	}
	if got := ts.Window.Start.Hour(); got != 9 {
		t.Fatalf("start hour = %d, want 9", got)
	}
	if got := ts.Window.End.Minute(); got != 30 {
		t.Fatalf("end minute = %d, want 30", got)
	}
}

func TestResolveTimeScopeCustomRejectsIncompleteOrInverted(t *testing.T) {
	tests := []struct {
		name string
		st   State
	}{
		{name: "missing end", st: State{DateRange: RangeCustom, StartDate: "2025-01-01"}},
		{name: "missing start", st: State{DateRange: RangeCustom, EndDate: "2025-01-31"}},
		{name: "inverted", st: State{DateRange: RangeCustom, StartDate: "2025-02-01", EndDate: "2025-01-01"}},
		{name: "bad clock", st: State{DateRange: RangeCustom, StartDate: "2025-01-01", EndDate: "2025-01-02", StartTime: "9am"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ResolveTimeScope(tt.st, time.UTC); !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestResolveTimeScopeIsPure(t *testing.T) {
	st := State{DateRange: RangeCustom, StartDate: "2025-06-01", EndDate: "2025-06-30"}
	first, err := ResolveTimeScope(st, time.UTC)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := ResolveTimeScope(st, time.UTC)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !first.Window.Start.Equal(second.Window.Start) || !first.Window.End.Equal(second.Window.End) {
		t.Fatalf("identical input produced different windows: %+v vs %+v", first.Window, second.Window)
	}
}
