package audit

import (
	"reflect"
	"testing"
)

func TestDiffEmitsOnlyChangedFields(t *testing.T) {
	before := Snapshot{"name": "a", "description": "d", "priority": "low", "state": "open"}
	after := Snapshot{"name": "b", "description": "d", "priority": "high", "state": "open"}

	got := Diff(before, after, TrackedTicketFields)
	want := []FieldChange{
		{Field: "name", Old: "a", New: "b"},
		{Field: "priority", Old: "low", New: "high"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Diff = %+v, want %+v", got, want)
	}
}

func TestDiffPreservesFieldOrder(t *testing.T) {
	before := Snapshot{"name": "a", "description": "x", "priority": "low", "state": "open"}
	after := Snapshot{"name": "b", "description": "y", "priority": "high", "state": "done"}

	got := Diff(before, after, TrackedTicketFields)
	if len(got) != len(TrackedTicketFields) {
		t.Fatalf("expected %d changes, got %d", len(TrackedTicketFields), len(got))
	}
	for i, f := range TrackedTicketFields {
		if got[i].Field != f {
			t.Errorf("change %d: field %q, want %q", i, got[i].Field, f)
		}
	}
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	snap := Snapshot{"name": "a", "state": "open"}
	if got := Diff(snap, snap, TrackedTicketFields); got != nil {
		t.Errorf("expected nil diff, got %+v", got)
	}
}

func TestDiffIgnoresUntrackedFields(t *testing.T) {
	before := Snapshot{"name": "a", "assignee": "u1"}
	after := Snapshot{"name": "a", "assignee": "u2"}
	if got := Diff(before, after, TrackedTicketFields); got != nil {
		t.Errorf("untracked field produced changes: %+v", got)
	}
}

func TestDiffFieldAbsentFromBoth(t *testing.T) {
	before := Snapshot{"name": "a"}
	after := Snapshot{"name": "a"}
	if got := Diff(before, after, []string{"name", "description"}); got != nil {
		t.Errorf("absent field produced changes: %+v", got)
	}
}

func TestDiffEmptyToValue(t *testing.T) {
	before := Snapshot{"name": "a", "description": ""}
	after := Snapshot{"name": "a", "description": "now set"}
	got := Diff(before, after, TrackedTicketFields)
	if len(got) != 1 || got[0].Field != "description" || got[0].Old != "" || got[0].New != "now set" {
		t.Errorf("unexpected diff: %+v", got)
	}
}
