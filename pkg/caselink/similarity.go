package caselink

import (
	"strings"
	"time"
)

// Advisory duplicate-detection heuristic for submissions without reliable
// patient identity. Deterministic linking remains authoritative for case
// assignment; this only recommends discard/review/accept.
const (
	discardThreshold = 0.90
	reviewThreshold  = 0.75
)

const (
	weightDrug         = 0.40
	weightNarrative    = 0.40
	weightDemographics = 0.15
	weightRecency      = 0.05
)

type SimilarityInput struct {
	DrugName       string
	ObservedEvents string
	Age            int
	Gender         string
}

type SimilarityCandidate struct {
	CaseID         string
	CaseNumber     string
	DrugName       string
	ObservedEvents string
	Age            int
	Gender         string
	CreatedAt      time.Time
}

type SimilarityScore struct {
	CaseID     string
	CaseNumber string
	Score      float64
	Breakdown  map[string]float64
	Confidence string
}

type SimilarityMatcher struct {
	now func() time.Time
}

func NewSimilarityMatcher() *SimilarityMatcher {
	return &SimilarityMatcher{now: func() time.Time { return time.Now().UTC() }}
}

// Compare scores one candidate: drug exact match 40%, narrative fuzzy
// similarity 40%, demographic proximity 15%, recency 5%.
func (m *SimilarityMatcher) Compare(in SimilarityInput, cand SimilarityCandidate) SimilarityScore {
	breakdown := map[string]float64{}

	drugScore := 0.0
	if strings.EqualFold(strings.TrimSpace(in.DrugName), strings.TrimSpace(cand.DrugName)) {
		drugScore = 1.0
	}
	breakdown["drug"] = drugScore

	narrativeScore := textSimilarity(in.ObservedEvents, cand.ObservedEvents)
	breakdown["narrative"] = narrativeScore

	demoScore := (ageSimilarity(in.Age, cand.Age) + genderSimilarity(in.Gender, cand.Gender)) / 2
	breakdown["demographics"] = demoScore

	recencyScore := recency(m.now(), cand.CreatedAt)
	breakdown["recency"] = recencyScore

	total := drugScore*weightDrug +
		narrativeScore*weightNarrative +
		demoScore*weightDemographics +
		recencyScore*weightRecency

	return SimilarityScore{
		CaseID:     cand.CaseID,
		CaseNumber: cand.CaseNumber,
		Score:      total,
		Breakdown:  breakdown,
		Confidence: confidenceLabel(total),
	}
}

// Rank compares the input against all candidates, best first.
func (m *SimilarityMatcher) Rank(in SimilarityInput, candidates []SimilarityCandidate, limit int) []SimilarityScore {
	if limit <= 0 {
		limit = 5
	}
	scores := make([]SimilarityScore, 0, len(candidates))
	for _, cand := range candidates {
		scores = append(scores, m.Compare(in, cand))
	}
	// insertion sort; candidate sets are small
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j].Score > scores[j-1].Score; j-- {
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores
}

// Recommendation maps the best score to the advisory action.
func Recommendation(scores []SimilarityScore) string {
	if len(scores) == 0 {
		return "accept"
	}
	top := scores[0].Score
	switch {
	case top >= discardThreshold:
		return "discard_duplicate"
	case top >= reviewThreshold:
		return "manual_review"
	default:
		return "accept"
	}
}

func confidenceLabel(score float64) string {
	switch {
	case score >= 0.9:
		return "very_high"
	case score >= 0.75:
		return "high"
	case score >= 0.5:
		return "moderate"
	default:
		return "low"
	}
}

func textSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	return jaroWinkler(a, b)
}

func ageSimilarity(a, b int) float64 {
	if a == 0 || b == 0 {
		return 1.0 // no penalty when age missing
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	const maxAgeDiff = 10
	if diff <= maxAgeDiff {
		return 1.0 - float64(diff)/float64(maxAgeDiff*2)
	}
	return 0.5
}

func genderSimilarity(a, b string) float64 {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1.0
	}
	return 0.5
}

func recency(now, createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 1.0
	}
	days := int(now.Sub(createdAt).Hours() / 24)
	if days <= 30 {
		return 1.0 - float64(days)/30
	}
	return 0.2
}

func jaroWinkler(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	if s1 == "" || s2 == "" {
		return 0
	}

	matchDistance := max(len(s1), len(s2))/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	s1Matches := make([]bool, len(s1))
	s2Matches := make([]bool, len(s2))

	matches := 0
	transpositions := 0

	for i := range s1 {
		start := max(0, i-matchDistance)
		end := min(i+matchDistance+1, len(s2))
		for j := start; j < end; j++ {
			if s2Matches[j] || s1[i] != s2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	k := 0
	for i := range s1 {
		if !s1Matches[i] {
			continue
		}
		for ; !s2Matches[k]; k++ {
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	transpositions /= 2

	jaro := (float64(matches)/float64(len(s1)) + float64(matches)/float64(len(s2)) + float64(matches-transpositions)/float64(matches)) / 3

	prefix := 0
	for i := 0; i < min(4, min(len(s1), len(s2))); i++ {
		if s1[i] == s2[i] {
			prefix++
		} else {
			break
		}
	}

	return jaro + float64(prefix)*0.1*(1-jaro)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
