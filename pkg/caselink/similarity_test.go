package caselink

import (
	"strings"
	"testing"
	"time"
)

func TestCompareIdenticalSubmission(t *testing.T) {
	m := NewSimilarityMatcher()

	in := SimilarityInput{
		DrugName:       "amoxicillin",
		ObservedEvents: "severe rash on arms and chest",
		Age:            45,
		Gender:         "female",
	}
	cand := SimilarityCandidate{
		CaseID:         "c1",
		CaseNumber:     "PV-20260801-ABCDE",
		DrugName:       "amoxicillin",
		ObservedEvents: "severe rash on arms and chest",
		Age:            45,
		Gender:         "female",
		CreatedAt:      time.Now().UTC(),
	}

	score := m.Compare(in, cand)
	if score.Score < 0.95 {
		t.Fatalf("identical submission should score near 1.0, got %f", score.Score)
	}
	if score.Confidence != "very_high" {
		t.Fatalf("expected very_high confidence, got %s", score.Confidence)
	}
}

func TestCompareDifferentDrugLowersScore(t *testing.T) {
	m := NewSimilarityMatcher()

	in := SimilarityInput{DrugName: "amoxicillin", ObservedEvents: "mild headache"}
	cand := SimilarityCandidate{
		DrugName:       "ibuprofen",
		ObservedEvents: "persistent joint pain and swelling",
		CreatedAt:      time.Now().UTC().AddDate(0, 0, -60),
	}

	score := m.Compare(in, cand)
	if score.Breakdown["drug"] != 0 {
		t.Fatalf("different drugs must score 0 on drug component, got %f", score.Breakdown["drug"])
	}
	if score.Score >= reviewThreshold {
		t.Fatalf("unrelated reports should stay below review threshold, got %f", score.Score)
	}
}

func TestRankOrdersBestFirst(t *testing.T) {
	m := NewSimilarityMatcher()

	in := SimilarityInput{DrugName: "aspirin", ObservedEvents: "stomach bleeding"}
	candidates := []SimilarityCandidate{
		{CaseID: "far", DrugName: "metformin", ObservedEvents: "dizziness"},
		{CaseID: "near", DrugName: "aspirin", ObservedEvents: "stomach bleeding", CreatedAt: time.Now().UTC()},
	}

	scores := m.Rank(in, candidates, 5)
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[0].CaseID != "near" {
		t.Fatalf("expected best match first, got %s", scores[0].CaseID)
	}
}

func TestRecommendationThresholds(t *testing.T) {
	if got := Recommendation(nil); got != "accept" {
		t.Fatalf("no matches must recommend accept, got %s", got)
	}
	if got := Recommendation([]SimilarityScore{{Score: 0.95}}); got != "discard_duplicate" {
		t.Fatalf("expected discard_duplicate, got %s", got)
	}
	if got := Recommendation([]SimilarityScore{{Score: 0.80}}); got != "manual_review" {
		t.Fatalf("expected manual_review, got %s", got)
	}
	if got := Recommendation([]SimilarityScore{{Score: 0.50}}); got != "accept" {
		t.Fatalf("expected accept, got %s", got)
	}
}

func TestGenerateCaseNumberFormat(t *testing.T) {
	number := GenerateCaseNumber()

	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != "PV" {
		t.Fatalf("unexpected case number format: %s", number)
	}
	if len(parts[1]) != 8 {
		t.Fatalf("expected YYYYMMDD date segment, got %s", parts[1])
	}
	if len(parts[2]) != 5 {
		t.Fatalf("expected 5-character suffix, got %s", parts[2])
	}
	if parts[2] != strings.ToUpper(parts[2]) {
		t.Fatalf("suffix must be uppercase: %s", parts[2])
	}
}

