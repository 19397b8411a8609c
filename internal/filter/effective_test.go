package filter

import (
	"testing"
	"time"
)

func TestEffectiveQueryEmitsDaysOrBoundsNeverBoth(t *testing.T) {
	rolling := Effective{Time: &TimeScope{Days: 7}}
	values := rolling.Query()
	if values.Get("days") != "7" {
		t.Fatalf("days = %q, want 7", values.Get("days"))
	}
	if values.Get("start_date") != "" || values.Get("end_date") != "" {
		t.Fatalf("rolling scope leaked window bounds: %v", values)
	}

	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 5, 1, 23, 59, 59, 0, time.UTC)
	bounded := Effective{Time: &TimeScope{Window: &Window{Start: start, End: end}}}
	values = bounded.Query()
	if values.Get("days") != "" {
		t.Fatalf("window scope leaked days param: %v", values)
	}
	if values.Get("start_date") != start.Format(time.RFC3339) || values.Get("end_date") != end.Format(time.RFC3339) {
		t.Fatalf("unexpected window params: %v", values)
	}
}

func TestEffectiveQueryRepeatsTeamScope(t *testing.T) {
	eff := Effective{TeamIDs: []string{"t1", "t2"}}
	values := eff.Query()
	got := values["team_id"]
	if len(got) != 2 || got[0] != "t1" || got[1] != "t2" {
		t.Fatalf("team_id params = %v, want one per scoped team", got)
	}
}

func TestEffectiveQueryOmitsEmptyFields(t *testing.T) {
	eff := Effective{UserID: "u1", Model: "gpt-4o"}
	values := eff.Query()
	if values.Get("user_id") != "u1" || values.Get("model") != "gpt-4o" {
		t.Fatalf("missing set params: %v", values)
	}
	for _, key := range []string{"team_id", "agent_id", "search", "days", "start_date", "end_date"} {
		if _, present := values[key]; present {
			t.Fatalf("unset field %q leaked into query: %v", key, values)
		}
	}
}
