package normalize

import (
	"testing"
	"time"
)

func TestDeterminePolarityAdverse(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	polarity, confidence, _ := n.DeterminePolarity("patient developed severe rash and nausea", "")
	if polarity != PolarityAdverse {
		t.Fatalf("expected adverse, got %s", polarity)
	}
	if confidence <= 0 {
		t.Fatalf("expected positive confidence, got %f", confidence)
	}
}

func TestDeterminePolarityNonAdverse(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	polarity, _, _ := n.DeterminePolarity("patient recovered, condition improved with no side effects", "")
	if polarity != PolarityNonAdverse {
		t.Fatalf("expected non_adverse, got %s", polarity)
	}
}

func TestDeterminePolarityUnclearOnNoMatches(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	polarity, confidence, _ := n.DeterminePolarity("patient took the medication as prescribed", "")
	if polarity != PolarityUnclear {
		t.Fatalf("expected unclear, got %s", polarity)
	}
	if confidence != 0 {
		t.Fatalf("expected zero confidence, got %f", confidence)
	}
}

func TestDeterminePolarityEmptyInput(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	polarity, confidence, _ := n.DeterminePolarity("", "")
	if polarity != PolarityUnclear || confidence != 0 {
		t.Fatalf("empty input must be unclear/0, got %s/%f", polarity, confidence)
	}
}

func TestDeterminePolarityConfidenceCapped(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	_, confidence, _ := n.DeterminePolarity(
		"rash nausea vomiting headache dizziness fever pain swelling", "")
	if confidence > 1.0 {
		t.Fatalf("confidence must be capped at 1.0, got %f", confidence)
	}
}

func TestDetermineStrengthMandatoryGate(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	in := Input{DrugName: "aspirin", ObservedEvents: "rash"} // no patient hash
	strength, _ := n.DetermineStrength(in, PolarityAdverse)
	if strength != 0 {
		t.Fatalf("missing mandatory field must force strength 0, got %d", strength)
	}
}

func TestDetermineStrengthUnclearForcesZero(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	now := time.Now()
	in := Input{
		DrugName:       "aspirin",
		PatientHash:    "abc",
		ObservedEvents: "something happened",
		Indication:     "pain",
		Dosage:         "100mg",
		EventDate:      &now,
		Outcome:        "unknown",
	}
	strength, _ := n.DetermineStrength(in, PolarityUnclear)
	if strength != 0 {
		t.Fatalf("unclear polarity must force strength 0, got %d", strength)
	}
}

func TestDetermineStrengthFullDocumentation(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	now := time.Now()
	in := Input{
		DrugName:       "amoxicillin",
		PatientHash:    "abc",
		ObservedEvents: "severe rash",
		Indication:     "infection",
		Dosage:         "500mg three times daily",
		EventDate:      &now,
		Outcome:        "recovered after discontinuation",
		Source:         "clinician",
	}
	strength, factors := n.DetermineStrength(in, PolarityAdverse)
	if strength != 2 {
		t.Fatalf("fully documented report should reach strength 2, got %d", strength)
	}
	if v, ok := factors["has_indication"].(bool); !ok || !v {
		t.Fatalf("expected has_indication factor recorded, got %v", factors["has_indication"])
	}
}

func TestDetermineStrengthBareMinimum(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	in := Input{DrugName: "aspirin", PatientHash: "abc", ObservedEvents: "rash"}
	strength, _ := n.DetermineStrength(in, PolarityAdverse)
	if strength != 1 {
		t.Fatalf("mandatory fields only should yield strength 1, got %d", strength)
	}
}

func TestCanonicalDrugNameStripsSuffix(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	if got := n.CanonicalDrugName("  Amoxicillin Tablet "); got != "amoxicillin" {
		t.Fatalf("expected 'amoxicillin', got %q", got)
	}
	if got := n.CanonicalDrugName("Ibuprofen"); got != "ibuprofen" {
		t.Fatalf("expected 'ibuprofen', got %q", got)
	}
}

func TestCheckMandatoryFields(t *testing.T) {
	ok, missing := CheckMandatoryFields(Input{DrugName: "aspirin"})
	if ok {
		t.Fatal("expected mandatory check to fail")
	}
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing fields, got %v", missing)
	}

	ok, missing = CheckMandatoryFields(Input{DrugName: "a", PatientHash: "b", ObservedEvents: "c"})
	if !ok || missing != nil {
		t.Fatalf("expected mandatory check to pass, got %v", missing)
	}
}

func TestDetectSeriousness(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	if !n.DetectSeriousness("patient required hospitalization after the event", "") {
		t.Fatal("expected seriousness flag for hospitalization")
	}
	if n.DetectSeriousness("mild rash, resolved", "") {
		t.Fatal("did not expect seriousness flag for mild rash")
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	in := Input{
		DrugName:       "Amoxicillin",
		PatientHash:    "HASH123",
		ObservedEvents: "severe rash and swelling",
		Outcome:        "recovered",
		Source:         "clinician",
	}

	first := n.Normalize(in)
	second := n.Normalize(in)

	if first.Polarity != second.Polarity || first.Strength != second.Strength || first.Score != second.Score {
		t.Fatalf("normalization must be deterministic: %+v vs %+v", first, second)
	}
	if first.DrugNameCanonical != "amoxicillin" {
		t.Fatalf("expected canonical drug 'amoxicillin', got %q", first.DrugNameCanonical)
	}
	if first.PatientKeyCanonical != "hash123" {
		t.Fatalf("expected canonical patient key 'hash123', got %q", first.PatientKeyCanonical)
	}
}

func TestNormalizeEmptyInputIsNotAnError(t *testing.T) {
	n := NewNormalizer(DefaultLexicon())

	res := n.Normalize(Input{})
	if res.Polarity != PolarityUnclear || res.Strength != 0 || res.Score != 0 {
		t.Fatalf("empty input must normalize to unclear/0/0, got %+v", res)
	}
	if res.HasMandatoryFields {
		t.Fatal("empty input cannot have mandatory fields")
	}
}

func TestScoreSign(t *testing.T) {
	if Multiplier(PolarityAdverse) != -1 {
		t.Fatal("adverse multiplier must be -1")
	}
	if Multiplier(PolarityNonAdverse) != 1 {
		t.Fatal("non-adverse multiplier must be +1")
	}
	if Multiplier(PolarityUnclear) != 0 {
		t.Fatal("unclear multiplier must be 0")
	}
}
