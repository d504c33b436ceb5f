package followup

import (
	"testing"
	"time"
)

func TestRecordAttemptKeepsRequestCompletable(t *testing.T) {
	now := time.Now().UTC()
	due := now.AddDate(0, 0, 7)
	req := &Request{
		Status:      StatusPending,
		DueBy:       &due,
		MaxAttempts: 3,
	}

	for i := 0; i < req.MaxAttempts; i++ {
		req.recordAttempt(now, 7)
	}

	if req.AttemptCount != 3 {
		t.Fatalf("attempt count = %d, want 3", req.AttemptCount)
	}
	if req.Status.terminal() {
		t.Fatalf("request terminal after final attempt: %s", req.Status)
	}
	if req.Status != StatusPending {
		t.Fatalf("status = %s, want pending so a response can still complete it", req.Status)
	}
}

func TestRecordAttemptFirstDispatchKeepsDeadline(t *testing.T) {
	now := time.Now().UTC()
	due := now.AddDate(0, 0, 7)
	req := &Request{
		Status:      StatusPending,
		DueBy:       &due,
		MaxAttempts: 3,
	}

	req.recordAttempt(now, 7)

	if req.AttemptCount != 1 {
		t.Fatalf("attempt count = %d, want 1", req.AttemptCount)
	}
	if !req.DueBy.Equal(due) {
		t.Fatalf("first dispatch moved the deadline: %v, want %v", req.DueBy, due)
	}
	if req.LastAttemptAt == nil || !req.LastAttemptAt.Equal(now) {
		t.Fatalf("last attempt at = %v, want %v", req.LastAttemptAt, now)
	}
}

func TestRecordAttemptReminderExtendsDeadline(t *testing.T) {
	created := time.Now().UTC().AddDate(0, 0, -8)
	due := created.AddDate(0, 0, 7)
	req := &Request{
		Status:       StatusInProgress,
		DueBy:        &due,
		AttemptCount: 1,
		MaxAttempts:  3,
	}

	now := time.Now().UTC()
	req.recordAttempt(now, 7)

	want := now.AddDate(0, 0, 7)
	if !req.DueBy.Equal(want) {
		t.Fatalf("reminder deadline = %v, want %v", req.DueBy, want)
	}
}
