package followup

import (
	"fmt"
	"strings"

	"github.com/pharmaguard/pipeline/pkg/caselink"
	"github.com/pharmaguard/pipeline/pkg/normalize"
)

// Trigger is one fired follow-up condition with its generated questions.
type Trigger struct {
	Reason        Reason
	Details       string
	Questions     []string
	MissingFields []string
}

// Evaluate inspects the normalized experience after scoring and returns
// every trigger that fires; any subset may fire at once and each becomes
// its own request.
func Evaluate(res normalize.Result) []Trigger {
	var triggers []Trigger

	if res.Score == 0 && res.Polarity == normalize.PolarityUnclear {
		triggers = append(triggers, Trigger{
			Reason:  ReasonScoreZero,
			Details: "unable to determine whether an adverse event occurred",
			Questions: []string{
				"Did the patient experience any symptoms after taking the medication?",
				"What was the outcome of the treatment?",
				"Were there any changes in the patient's condition?",
			},
		})
	}

	if res.Polarity == normalize.PolarityAdverse && res.Strength < 2 {
		missing := missingStrengthFactors(res.StrengthFactors)
		questions := make([]string, 0, len(missing)+2)
		for _, item := range missing {
			questions = append(questions, fmt.Sprintf("Please provide %s", item))
		}
		questions = append(questions,
			"Can you describe the adverse event in more detail?",
			"What action was taken after the event occurred?",
		)
		triggers = append(triggers, Trigger{
			Reason:        ReasonLowStrength,
			Details:       fmt.Sprintf("adverse event reported but insufficient documentation; missing: %s", strings.Join(missing, ", ")),
			Questions:     questions,
			MissingFields: missing,
		})
	}

	if !res.HasMandatoryFields && len(res.MissingFields) > 0 {
		questions := make([]string, 0, len(res.MissingFields))
		for _, field := range res.MissingFields {
			questions = append(questions, fmt.Sprintf("Please provide the %s", strings.ReplaceAll(field, "_", " ")))
		}
		triggers = append(triggers, Trigger{
			Reason:        ReasonMissingFields,
			Details:       fmt.Sprintf("missing mandatory fields: %s", strings.Join(res.MissingFields, ", ")),
			Questions:     questions,
			MissingFields: res.MissingFields,
		})
	}

	return triggers
}

func missingStrengthFactors(factors map[string]interface{}) []string {
	var missing []string
	if !boolFactor(factors, "has_indication") {
		missing = append(missing, "indication for use")
	}
	if !boolFactor(factors, "has_dosage") {
		missing = append(missing, "dosage information")
	}
	if !boolFactor(factors, "has_dates") {
		missing = append(missing, "event dates")
	}
	if !boolFactor(factors, "has_outcome") {
		missing = append(missing, "outcome information")
	}
	return missing
}

func boolFactor(factors map[string]interface{}, key string) bool {
	if factors == nil {
		return false
	}
	v, ok := factors[key].(bool)
	return ok && v
}

// RequestPriority maps case priority onto follow-up priority.
func RequestPriority(p caselink.CasePriority) string {
	switch p {
	case caselink.PriorityCritical:
		return "urgent"
	case caselink.PriorityHigh:
		return "high"
	case caselink.PriorityLow:
		return "low"
	default:
		return "normal"
	}
}
