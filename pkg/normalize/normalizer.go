package normalize

import (
	"fmt"
	"strings"
	"time"
)

const AlgorithmVersion = "1.0.0"

// Input carries the event fields the normalizer consumes. It is a plain
// value so the polarity/strength rules stay independent of storage.
type Input struct {
	DrugName       string
	PatientHash    string
	ObservedEvents string
	Outcome        string
	Indication     string
	Dosage         string
	StartDate      *time.Time
	EventDate      *time.Time
	Source         string
}

// Result is the computed normalization before persistence.
type Result struct {
	DrugNameCanonical   string
	PatientKeyCanonical string
	Polarity            Polarity
	PolarityConfidence  float64
	PolarityReasoning   string
	Strength            int
	StrengthFactors     map[string]interface{}
	Score               float64
	HasMandatoryFields  bool
	MissingFields       []string
	IsSerious           bool
}

type Normalizer struct {
	lexicon Lexicon
}

func NewNormalizer(lex Lexicon) *Normalizer {
	lex.normalize()
	return &Normalizer{lexicon: lex}
}

// Normalize is deterministic: identical input always yields an identical
// result. Entirely empty input is a valid outcome (unclear/0/0), not an
// error.
func (n *Normalizer) Normalize(in Input) Result {
	drug := n.CanonicalDrugName(in.DrugName)
	patient := CanonicalPatientKey(in.PatientHash)

	polarity, confidence, reasoning := n.DeterminePolarity(in.ObservedEvents, in.Outcome)
	strength, factors := n.DetermineStrength(in, polarity)
	hasMandatory, missing := CheckMandatoryFields(in)

	return Result{
		DrugNameCanonical:   drug,
		PatientKeyCanonical: patient,
		Polarity:            polarity,
		PolarityConfidence:  confidence,
		PolarityReasoning:   reasoning,
		Strength:            strength,
		StrengthFactors:     factors,
		Score:               float64(Multiplier(polarity) * strength),
		HasMandatoryFields:  hasMandatory,
		MissingFields:       missing,
		IsSerious:           n.DetectSeriousness(in.ObservedEvents, in.Outcome),
	}
}

// Multiplier maps polarity to the sign of the score.
func Multiplier(p Polarity) int {
	switch p {
	case PolarityAdverse:
		return -1
	case PolarityNonAdverse:
		return 1
	default:
		return 0
	}
}

func (n *Normalizer) CanonicalDrugName(name string) string {
	canonical := strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range n.lexicon.DosageFormSuffixes {
		if strings.HasSuffix(canonical, suffix) {
			canonical = strings.TrimSpace(canonical[:len(canonical)-len(suffix)])
		}
	}
	return canonical
}

func CanonicalPatientKey(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// DeterminePolarity scans the combined observed-effects and outcome text
// against the two disjoint keyword sets. One-sided matches win with
// confidence matches*0.2; mixed signals go to the larger count with
// confidence |diff|*0.15; no matches is unclear at confidence zero.
func (n *Normalizer) DeterminePolarity(observedEvents, outcome string) (Polarity, float64, string) {
	if strings.TrimSpace(observedEvents) == "" {
		return PolarityUnclear, 0.0, "no observed events provided"
	}

	text := strings.ToLower(observedEvents + " " + outcome)
	adverse := countMatches(text, n.lexicon.AdverseKeywords)
	nonAdverse := countMatches(text, n.lexicon.NonAdverseKeywords)

	switch {
	case adverse > 0 && nonAdverse == 0:
		return PolarityAdverse, capConfidence(float64(adverse) * 0.2),
			fmt.Sprintf("adverse keywords detected: %d matches", adverse)
	case nonAdverse > 0 && adverse == 0:
		return PolarityNonAdverse, capConfidence(float64(nonAdverse) * 0.2),
			fmt.Sprintf("non-adverse keywords detected: %d matches", nonAdverse)
	case adverse > nonAdverse:
		return PolarityAdverse, capConfidence(float64(adverse-nonAdverse) * 0.15),
			fmt.Sprintf("mixed signals, adverse dominant: adverse=%d, non_adverse=%d", adverse, nonAdverse)
	case nonAdverse > adverse:
		return PolarityNonAdverse, capConfidence(float64(nonAdverse-adverse) * 0.15),
			fmt.Sprintf("mixed signals, non-adverse dominant: adverse=%d, non_adverse=%d", adverse, nonAdverse)
	default:
		return PolarityUnclear, 0.0,
			fmt.Sprintf("cannot determine polarity: adverse=%d, non_adverse=%d", adverse, nonAdverse)
	}
}

// DetermineStrength grades evidence completeness 0-2. The three mandatory
// fields gate strength 1; the contributing factors (quarter point each,
// threshold 0.75) raise it to 2. Unclear polarity forces 0.
func (n *Normalizer) DetermineStrength(in Input, polarity Polarity) (int, map[string]interface{}) {
	if polarity == PolarityUnclear {
		return 0, map[string]interface{}{"reason": "unclear polarity, strength set to 0"}
	}

	factors := map[string]interface{}{
		"has_drug_info":      in.DrugName != "",
		"has_patient_id":     in.PatientHash != "",
		"has_events":         in.ObservedEvents != "",
		"has_indication":     in.Indication != "",
		"has_dosage":         in.Dosage != "",
		"has_dates":          in.EventDate != nil || in.StartDate != nil,
		"has_outcome":        in.Outcome != "",
		"source_credibility": in.Source,
	}

	strength := 0
	if in.DrugName != "" && in.PatientHash != "" && in.ObservedEvents != "" {
		strength = 1

		additional := 0.0
		if in.Indication != "" {
			additional += 0.25
		}
		if in.Dosage != "" {
			additional += 0.25
		}
		if in.EventDate != nil || in.StartDate != nil {
			additional += 0.25
		}
		if in.Outcome != "" {
			additional += 0.25
		}
		if isHighCredibilitySource(in.Source) {
			additional += 0.25
		}

		if additional >= 0.75 {
			strength = 2
		}
	}

	factors["calculated_strength"] = strength
	return strength, factors
}

// CheckMandatoryFields reports which of the three mandatory fields are
// absent, independent of the strength computation.
func CheckMandatoryFields(in Input) (bool, []string) {
	var missing []string
	if in.DrugName == "" {
		missing = append(missing, "drug_name")
	}
	if in.PatientHash == "" {
		missing = append(missing, "patient_identifier_hash")
	}
	if in.ObservedEvents == "" {
		missing = append(missing, "observed_events")
	}
	return len(missing) == 0, missing
}

// DetectSeriousness flags regulatory seriousness criteria mentioned in the
// narrative. The flag is sticky on the case once set.
func (n *Normalizer) DetectSeriousness(observedEvents, outcome string) bool {
	text := strings.ToLower(observedEvents + " " + outcome)
	for _, kw := range n.lexicon.SeriousKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func countMatches(text string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			count++
		}
	}
	return count
}

func capConfidence(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

func isHighCredibilitySource(source string) bool {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "clinician", "institution":
		return true
	}
	return false
}
