package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/teamlens/teamlens/internal/scope"
)

func strptr(s string) *string { return &s }

func TestApplyDrilldownMergesWithoutDiscardingContext(t *testing.T) {
	ctrl := NewController(adminIdentity(), time.UTC)
	if err := ctrl.SetDateRange("90"); err != nil {
		t.Fatalf("set range: %v", err)
	}
	if err := ctrl.SetUser("u1"); err != nil {
		t.Fatalf("set user: %v", err)
	}

	view, err := ctrl.ApplyDrilldown(Patch{Model: strptr("gpt-4o"), SpecificDate: strptr("2025-04-10")})
	if err != nil {
		t.Fatalf("drilldown: %v", err)
	}
	if view != ViewConversations {
		t.Fatalf("view = %q, want conversations", view)
	}

	st, _, _ := ctrl.Snapshot()
	if st.Model != "gpt-4o" || st.SpecificDate != "2025-04-10" {
		t.Fatalf("patch fields not applied: %+v", st)
	}
	if st.UserID != "u1" || st.DateRange != "90" {
		t.Fatalf("drilldown discarded surrounding context: %+v", st)
	}
}

func TestApplyDrilldownIsSingleCommit(t *testing.T) {
	ctrl := NewController(adminIdentity(), time.UTC)

	var changes int
	ctrl.Subscribe(func(Change) { changes++ })

	if _, err := ctrl.ApplyDrilldown(Patch{AgentID: strptr("a1"), Model: strptr("m1")}); err != nil {
		t.Fatalf("drilldown: %v", err)
	}
	if changes != 1 {
		t.Fatalf("multi-field patch committed %d times, want 1", changes)
	}
}

func TestApplyDrilldownRejectsUserPatchForNonAdmins(t *testing.T) {
	ctrl := NewController(observerIdentity("t1"), time.UTC)

	_, err := ctrl.ApplyDrilldown(Patch{UserID: strptr("u1"), Model: strptr("gpt-4o")})
	if !errors.Is(err, scope.ErrScopeViolation) {
		t.Fatalf("expected scope violation, got %v", err)
	}

	// All-or-nothing: the permitted part of the patch must not land either.
	st, _, gen := ctrl.Snapshot()
	if st.Model != "" || gen != 0 {
		t.Fatalf("rejected patch partially applied: %+v gen=%d", st, gen)
	}
}

func TestApplyDrilldownRejectsMalformedDate(t *testing.T) {
	ctrl := NewController(adminIdentity(), time.UTC)

	_, err := ctrl.ApplyDrilldown(Patch{SpecificDate: strptr("yesterday"), AgentID: strptr("a1")})
	if err == nil {
		t.Fatal("expected error for malformed specific date")
	}
	st, _, gen := ctrl.Snapshot()
	if st.AgentID != "" || gen != 0 {
		t.Fatalf("rejected patch partially applied: %+v gen=%d", st, gen)
	}
}
