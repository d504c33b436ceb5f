package scoring

import (
	"testing"

	"github.com/pharmaguard/pipeline/pkg/caselink"
	"github.com/pharmaguard/pipeline/pkg/normalize"
)

func TestCalculateFormula(t *testing.T) {
	cases := []struct {
		polarity normalize.Polarity
		strength int
		want     float64
	}{
		{normalize.PolarityAdverse, 2, -2},
		{normalize.PolarityAdverse, 1, -1},
		{normalize.PolarityAdverse, 0, 0},
		{normalize.PolarityNonAdverse, 2, 2},
		{normalize.PolarityNonAdverse, 1, 1},
		{normalize.PolarityUnclear, 2, 0},
		{normalize.PolarityUnclear, 0, 0},
	}

	for _, tc := range cases {
		got := Calculate(tc.polarity, tc.strength)
		if got != tc.want {
			t.Fatalf("Calculate(%s, %d) = %g, want %g", tc.polarity, tc.strength, got, tc.want)
		}
		if got < -2 || got > 2 {
			t.Fatalf("score %g outside [-2, 2]", got)
		}
	}
}

func TestDerivePriorityCriticalRequiresSeriousness(t *testing.T) {
	c := &caselink.CaseMaster{CurrentScore: -2, IsSerious: true}
	if got := DerivePriority(c); got != caselink.PriorityCritical {
		t.Fatalf("serious case at -2 must be critical, got %s", got)
	}

	c.IsSerious = false
	if got := DerivePriority(c); got != caselink.PriorityHigh {
		t.Fatalf("non-serious case at -2 must be high, got %s", got)
	}
}

func TestDerivePriorityBands(t *testing.T) {
	cases := []struct {
		score   float64
		serious bool
		want    caselink.CasePriority
	}{
		{-1, false, caselink.PriorityHigh},
		{-0.5, false, caselink.PriorityNormal},
		{0, false, caselink.PriorityLow},
		{2, false, caselink.PriorityLow},
		{-1, true, caselink.PriorityCritical},
		{0, true, caselink.PriorityLow},
	}

	for _, tc := range cases {
		c := &caselink.CaseMaster{CurrentScore: tc.score, IsSerious: tc.serious}
		if got := DerivePriority(c); got != tc.want {
			t.Fatalf("DerivePriority(score=%g, serious=%v) = %s, want %s", tc.score, tc.serious, got, tc.want)
		}
	}
}
