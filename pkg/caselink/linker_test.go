package caselink

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeCaseStore keeps cases and logs in memory so the window and
// confidence decisions can be exercised without a database.
type fakeCaseStore struct {
	cases        []*CaseMaster
	logs         []*LinkingLog
	locked       []string
	lockedBefore bool
}

func (f *fakeCaseStore) AcquireLinkLock(ctx context.Context, drug, patient string) error {
	f.locked = append(f.locked, drug+"|"+patient)
	f.lockedBefore = true
	return nil
}

func (f *fakeCaseStore) FindMatchForUpdate(ctx context.Context, drug, patient string, eventDate time.Time, windowDays int) (*CaseMaster, error) {
	if !f.lockedBefore {
		return nil, errors.New("match attempted without link lock")
	}
	cutoff := eventDate.AddDate(0, 0, -windowDays)
	var best *CaseMaster
	for _, c := range f.cases {
		if c.IsDeleted || c.DrugNameCanonical != drug || c.PatientKeyCanonical != patient {
			continue
		}
		if c.LatestEventDate == nil || c.LatestEventDate.Before(cutoff) {
			continue
		}
		if best == nil || c.LatestEventDate.After(*best.LatestEventDate) {
			best = c
		}
	}
	if best == nil {
		return nil, ErrNoMatch
	}
	return best, nil
}

func (f *fakeCaseStore) Create(ctx context.Context, c *CaseMaster) error {
	if c.ID == "" {
		c.ID = "case-" + c.CaseNumber
	}
	f.cases = append(f.cases, c)
	return nil
}

func (f *fakeCaseStore) Save(ctx context.Context, c *CaseMaster) error { return nil }

func (f *fakeCaseStore) GetForUpdate(ctx context.Context, id string) (*CaseMaster, error) {
	for _, c := range f.cases {
		if c.ID == id && !c.IsDeleted {
			return c, nil
		}
	}
	return nil, ErrCaseNotFound
}

func (f *fakeCaseStore) SaveLog(ctx context.Context, log *LinkingLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeCaseStore) GetLogByEventID(ctx context.Context, eventID string) (*LinkingLog, error) {
	for i := len(f.logs) - 1; i >= 0; i-- {
		if f.logs[i].EventID == eventID {
			return f.logs[i], nil
		}
	}
	return nil, ErrLogNotFound
}

func (f *fakeCaseStore) UpdateLog(ctx context.Context, log *LinkingLog) error { return nil }

func storeWithCase(latest time.Time, eventCount int) (*fakeCaseStore, *CaseMaster) {
	existing := &CaseMaster{
		ID:                  "case-1",
		CaseNumber:          "PV-20250101-AAAAA",
		DrugNameCanonical:   "amoxicillin",
		PatientKeyCanonical: "patient-hash-1",
		Status:              StatusOpen,
		LatestEventDate:     &latest,
		EventCount:          eventCount,
	}
	return &fakeCaseStore{cases: []*CaseMaster{existing}}, existing
}

func TestLinkWithinWindowLinksToExistingCase(t *testing.T) {
	now := time.Now().UTC()
	store, existing := storeWithCase(now.AddDate(0, 0, -10), 1)
	linker := &Linker{repo: store, windowDays: 365}

	res, err := linker.Link(context.Background(), LinkInput{
		EventID:             "evt-1",
		DrugNameCanonical:   "amoxicillin",
		PatientKeyCanonical: "patient-hash-1",
		EventDate:           now,
	})
	if err != nil {
		t.Fatalf("Link returned error: %v", err)
	}
	if res.IsNewCase {
		t.Fatal("expected link to existing case, got new case")
	}
	if res.Case.ID != existing.ID {
		t.Fatalf("linked to case %s, want %s", res.Case.ID, existing.ID)
	}
	if res.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", res.Confidence)
	}
	if existing.EventCount != 2 {
		t.Fatalf("event count = %d, want 2", existing.EventCount)
	}
	if !existing.LatestEventDate.Equal(now) {
		t.Fatalf("latest event date not advanced: %v", existing.LatestEventDate)
	}
}

func TestLinkConfidenceRisesWithEventCount(t *testing.T) {
	now := time.Now().UTC()
	store, _ := storeWithCase(now.AddDate(0, 0, -1), 2)
	linker := &Linker{repo: store, windowDays: 365}

	res, err := linker.Link(context.Background(), LinkInput{
		EventID:             "evt-2",
		DrugNameCanonical:   "amoxicillin",
		PatientKeyCanonical: "patient-hash-1",
		EventDate:           now,
	})
	if err != nil {
		t.Fatalf("Link returned error: %v", err)
	}
	if res.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want 0.95", res.Confidence)
	}
}

func TestLinkOutsideWindowOpensNewCase(t *testing.T) {
	now := time.Now().UTC()
	store, existing := storeWithCase(now.AddDate(0, 0, -400), 3)
	linker := &Linker{repo: store, windowDays: 365}

	res, err := linker.Link(context.Background(), LinkInput{
		EventID:             "evt-3",
		DrugNameCanonical:   "amoxicillin",
		PatientKeyCanonical: "patient-hash-1",
		EventDate:           now,
	})
	if err != nil {
		t.Fatalf("Link returned error: %v", err)
	}
	if !res.IsNewCase {
		t.Fatal("expected a new case for an event outside the window")
	}
	if res.Case.ID == existing.ID {
		t.Fatal("event outside the window relinked to the stale case")
	}
	if res.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", res.Confidence)
	}
	if existing.EventCount != 3 {
		t.Fatalf("stale case mutated: event count = %d", existing.EventCount)
	}
	if len(store.cases) != 2 {
		t.Fatalf("store holds %d cases, want 2", len(store.cases))
	}
}

func TestLinkNewKeyOpensNewCase(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeCaseStore{}
	linker := NewLinker(&Repository{}, 0)
	linker.repo = store

	res, err := linker.Link(context.Background(), LinkInput{
		EventID:             "evt-4",
		DrugNameCanonical:   "ibuprofen",
		PatientKeyCanonical: "patient-hash-2",
		EventDate:           now,
		IsSerious:           true,
	})
	if err != nil {
		t.Fatalf("Link returned error: %v", err)
	}
	if !res.IsNewCase || res.Confidence != 1.0 {
		t.Fatalf("new key: IsNewCase=%v confidence=%v", res.IsNewCase, res.Confidence)
	}
	if !res.Case.IsSerious {
		t.Fatal("seriousness flag not carried onto the new case")
	}
	if res.Case.FirstEventDate == nil || !res.Case.FirstEventDate.Equal(now) {
		t.Fatalf("first event date = %v, want %v", res.Case.FirstEventDate, now)
	}
	if len(store.locked) != 1 || store.locked[0] != "ibuprofen|patient-hash-2" {
		t.Fatalf("link lock not taken on the (drug, patient) key: %v", store.locked)
	}
}

func TestLinkMatchesClosedCaseWithinWindow(t *testing.T) {
	now := time.Now().UTC()
	store, existing := storeWithCase(now.AddDate(0, 0, -30), 1)
	existing.Status = StatusClosed
	linker := &Linker{repo: store, windowDays: 365}

	res, err := linker.Link(context.Background(), LinkInput{
		EventID:             "evt-closed",
		DrugNameCanonical:   "amoxicillin",
		PatientKeyCanonical: "patient-hash-1",
		EventDate:           now,
	})
	if err != nil {
		t.Fatalf("Link returned error: %v", err)
	}
	if res.IsNewCase {
		t.Fatal("event within the window of a closed case spawned a new case")
	}
	if res.Case.ID != existing.ID {
		t.Fatalf("linked to case %s, want closed case %s", res.Case.ID, existing.ID)
	}
}

func TestLinkDeterministicAcrossRepeats(t *testing.T) {
	now := time.Now().UTC()
	store, existing := storeWithCase(now.AddDate(0, 0, -5), 1)
	linker := &Linker{repo: store, windowDays: 365}

	for i := 0; i < 3; i++ {
		res, err := linker.Link(context.Background(), LinkInput{
			EventID:             "evt-rep",
			DrugNameCanonical:   "amoxicillin",
			PatientKeyCanonical: "patient-hash-1",
			EventDate:           now,
		})
		if err != nil {
			t.Fatalf("Link returned error: %v", err)
		}
		if res.Case.ID != existing.ID {
			t.Fatalf("repeat %d linked to %s, want %s", i, res.Case.ID, existing.ID)
		}
	}
	if len(store.cases) != 1 {
		t.Fatalf("repeated linking created cases: %d", len(store.cases))
	}
}
