package intake

import (
	"testing"
	"time"
)

func TestDedupKeyDeterministic(t *testing.T) {
	at := time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)

	a := DedupKey(SourceClinician, "user-1", "amoxicillin", "hash1", at, time.Hour)
	b := DedupKey(SourceClinician, "user-1", "amoxicillin", "hash1", at.Add(20*time.Minute), time.Hour)
	if a != b {
		t.Fatal("submissions within the same bucket must share a key")
	}

	c := DedupKey(SourceClinician, "user-1", "amoxicillin", "hash1", at.Add(2*time.Hour), time.Hour)
	if a == c {
		t.Fatal("submissions in different buckets must differ")
	}
}

func TestDedupKeyVariesByIdentity(t *testing.T) {
	at := time.Date(2026, 8, 26, 14, 0, 0, 0, time.UTC)

	base := DedupKey(SourceClinician, "user-1", "amoxicillin", "hash1", at, time.Hour)
	if DedupKey(SourceInstitution, "user-1", "amoxicillin", "hash1", at, time.Hour) == base {
		t.Fatal("different sources must produce different keys")
	}
	if DedupKey(SourceClinician, "user-2", "amoxicillin", "hash1", at, time.Hour) == base {
		t.Fatal("different submitters must produce different keys")
	}
	if DedupKey(SourceClinician, "user-1", "ibuprofen", "hash1", at, time.Hour) == base {
		t.Fatal("different drugs must produce different keys")
	}
	if DedupKey(SourceClinician, "user-1", "amoxicillin", "hash2", at, time.Hour) == base {
		t.Fatal("different patients must produce different keys")
	}
}

func TestHashPatientIdentifier(t *testing.T) {
	h := HashPatientIdentifier("patient-42")
	if len(h) != 64 {
		t.Fatalf("expected sha256 hex digest, got %d chars", len(h))
	}
	if h != HashPatientIdentifier("patient-42") {
		t.Fatal("hash must be deterministic")
	}
	if h == "patient-42" {
		t.Fatal("raw identifier must never survive hashing")
	}
	if HashPatientIdentifier("") != "" {
		t.Fatal("empty identifier hashes to empty string")
	}
}
