package audit

import "testing"

type sample struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Status string `json:"status"`
}

func TestSnapshotUsesJSONNames(t *testing.T) {
	snap := Snapshot(sample{Name: "case-1", Score: 2, Status: "open"})
	if snap["name"] != "case-1" {
		t.Fatalf("expected json field names in snapshot, got %v", snap)
	}
	if Snapshot(nil) != nil {
		t.Fatal("nil entity must produce nil snapshot")
	}
}

func TestDiffReportsChangedFieldsOnly(t *testing.T) {
	before := Snapshot(sample{Name: "case-1", Score: 0, Status: "open"})
	after := Snapshot(sample{Name: "case-1", Score: -2, Status: "under_review"})

	changes := Diff(before, after)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changed fields, got %v", changes)
	}
	if _, ok := changes["name"]; ok {
		t.Fatal("unchanged field must not appear in diff")
	}

	scoreChange, ok := changes["score"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected old/new pair for score, got %v", changes["score"])
	}
	if scoreChange["new"].(float64) != -2 {
		t.Fatalf("expected new score -2, got %v", scoreChange["new"])
	}
}

func TestDiffCreation(t *testing.T) {
	after := Snapshot(sample{Name: "case-1"})
	changes := Diff(nil, after)
	if changes["_action"] != "created" {
		t.Fatalf("expected creation marker, got %v", changes)
	}
}

func TestDiffDeletion(t *testing.T) {
	before := Snapshot(sample{Name: "case-1"})
	changes := Diff(before, nil)
	if changes["_action"] != "deleted" {
		t.Fatalf("expected deletion marker, got %v", changes)
	}
}
