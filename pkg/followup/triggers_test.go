package followup

import (
	"testing"

	"github.com/pharmaguard/pipeline/pkg/caselink"
	"github.com/pharmaguard/pipeline/pkg/normalize"
)

func TestEvaluateScoreZeroUnclear(t *testing.T) {
	res := normalize.Result{
		Polarity:           normalize.PolarityUnclear,
		Strength:           0,
		Score:              0,
		HasMandatoryFields: true,
	}

	triggers := Evaluate(res)
	if len(triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(triggers))
	}
	if triggers[0].Reason != ReasonScoreZero {
		t.Fatalf("expected score_zero, got %s", triggers[0].Reason)
	}
	if len(triggers[0].Questions) == 0 {
		t.Fatal("expected clarification questions")
	}
}

func TestEvaluateLowStrengthListsMissingFactors(t *testing.T) {
	res := normalize.Result{
		Polarity:           normalize.PolarityAdverse,
		Strength:           1,
		Score:              -1,
		HasMandatoryFields: true,
		StrengthFactors: map[string]interface{}{
			"has_indication": false,
			"has_dosage":     true,
			"has_dates":      false,
			"has_outcome":    true,
		},
	}

	triggers := Evaluate(res)
	if len(triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(triggers))
	}
	trig := triggers[0]
	if trig.Reason != ReasonLowStrength {
		t.Fatalf("expected low_strength, got %s", trig.Reason)
	}
	if len(trig.MissingFields) != 2 {
		t.Fatalf("expected 2 missing factors, got %v", trig.MissingFields)
	}
}

func TestEvaluateMissingMandatoryFields(t *testing.T) {
	res := normalize.Result{
		Polarity:           normalize.PolarityNonAdverse,
		Strength:           0,
		Score:              0,
		HasMandatoryFields: false,
		MissingFields:      []string{"observed_events"},
	}

	triggers := Evaluate(res)
	if len(triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(triggers))
	}
	if triggers[0].Reason != ReasonMissingFields {
		t.Fatalf("expected missing_fields, got %s", triggers[0].Reason)
	}
	if len(triggers[0].Questions) != 1 {
		t.Fatalf("expected one question per missing field, got %v", triggers[0].Questions)
	}
}

func TestEvaluateNoTriggersOnStrongNonAdverse(t *testing.T) {
	res := normalize.Result{
		Polarity:           normalize.PolarityNonAdverse,
		Strength:           2,
		Score:              2,
		HasMandatoryFields: true,
	}

	if triggers := Evaluate(res); len(triggers) != 0 {
		t.Fatalf("expected no triggers, got %d", len(triggers))
	}
}

func TestEvaluateMultipleTriggersFireTogether(t *testing.T) {
	res := normalize.Result{
		Polarity:           normalize.PolarityAdverse,
		Strength:           1,
		Score:              -1,
		HasMandatoryFields: false,
		MissingFields:      []string{"drug_name"},
		StrengthFactors:    map[string]interface{}{},
	}

	triggers := Evaluate(res)
	if len(triggers) != 2 {
		t.Fatalf("expected low_strength and missing_fields to both fire, got %d", len(triggers))
	}
}

func TestRequestPriorityMapping(t *testing.T) {
	cases := []struct {
		in   caselink.CasePriority
		want string
	}{
		{caselink.PriorityCritical, "urgent"},
		{caselink.PriorityHigh, "high"},
		{caselink.PriorityNormal, "normal"},
		{caselink.PriorityLow, "low"},
	}
	for _, tc := range cases {
		if got := RequestPriority(tc.in); got != tc.want {
			t.Fatalf("RequestPriority(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		if !s.terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusInProgress} {
		if s.terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}
