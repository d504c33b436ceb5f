package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/pharmaguard/pipeline/pkg/caselink"
	"github.com/pharmaguard/pipeline/pkg/normalize"
	"gorm.io/datatypes"
)

const AlgorithmVersion = "1.0.0"

var (
	ErrInvalidStrength = errors.New("strength must be 0, 1 or 2")
	ErrInvalidPolarity = errors.New("polarity must be adverse, non_adverse or unclear")
	ErrReasonRequired  = errors.New("override reason is required")
)

// Engine appends score history and keeps case.current_score and priority
// in step. History is never rewritten; overrides take the same
// append-and-recompute path flagged as manual.
type Engine struct {
	historyRepo *Repository
	caseRepo    *caselink.Repository
}

func NewEngine(historyRepo *Repository, caseRepo *caselink.Repository) *Engine {
	return &Engine{historyRepo: historyRepo, caseRepo: caseRepo}
}

// Calculate is the core formula: score = multiplier(polarity) * strength,
// always in [-2, 2]. The score reflects data confidence, not medical
// severity.
func Calculate(polarity normalize.Polarity, strength int) float64 {
	return float64(normalize.Multiplier(polarity) * strength)
}

// DerivePriority maps score and seriousness to case priority.
func DerivePriority(c *caselink.CaseMaster) caselink.CasePriority {
	switch {
	case c.IsSerious && c.CurrentScore <= -1:
		return caselink.PriorityCritical
	case c.CurrentScore <= -1:
		return caselink.PriorityHigh
	case c.CurrentScore < 0:
		return caselink.PriorityNormal
	default:
		return caselink.PriorityLow
	}
}

// previousScore reads the latest history entry so the delta is anchored
// to what was actually recorded; current_score must equal it, but the
// history is the source of truth.
func (e *Engine) previousScore(ctx context.Context, c *caselink.CaseMaster) (float64, error) {
	entry, err := e.historyRepo.Latest(ctx, c.ID)
	if errors.Is(err, ErrNoHistory) {
		return c.CurrentScore, nil
	}
	if err != nil {
		return 0, err
	}
	return entry.Score, nil
}

type ScoreInput struct {
	Case           *caselink.CaseMaster
	Polarity       normalize.Polarity
	Strength       int
	Confidence     float64
	Factors        map[string]interface{}
	TriggerEventID string
}

// Apply appends one history entry and recomputes the case. Called inside
// the pipeline transaction so the current_score update and the insert
// commit together.
func (e *Engine) Apply(ctx context.Context, in ScoreInput) (*ScoreHistory, error) {
	newScore := Calculate(in.Polarity, in.Strength)
	previous, err := e.previousScore(ctx, in.Case)
	if err != nil {
		return nil, err
	}

	factors := datatypes.JSONMap{
		"polarity":            string(in.Polarity),
		"polarity_confidence": in.Confidence,
		"strength":            in.Strength,
		"algorithm_version":   AlgorithmVersion,
	}
	if in.Factors != nil {
		factors["strength_factors"] = in.Factors
	}

	entry := &ScoreHistory{
		CaseID:           in.Case.ID,
		TriggerEventID:   in.TriggerEventID,
		Polarity:         in.Polarity,
		Strength:         in.Strength,
		Score:            newScore,
		PreviousScore:    previous,
		ScoreDelta:       newScore - previous,
		Factors:          factors,
		Notes:            fmt.Sprintf("score calculated: %s (confidence %.2f) x strength %d = %g", in.Polarity, in.Confidence, in.Strength, newScore),
		ScoredBy:         "auto",
		AlgorithmVersion: AlgorithmVersion,
	}
	if err := e.historyRepo.Append(ctx, entry); err != nil {
		return nil, err
	}

	in.Case.CurrentScore = newScore
	in.Case.Priority = DerivePriority(in.Case)
	if err := e.caseRepo.Save(ctx, in.Case); err != nil {
		return nil, err
	}

	return entry, nil
}

type OverrideInput struct {
	Case     *caselink.CaseMaster
	Polarity normalize.Polarity
	Strength int
	Actor    string
	Reason   string
}

// Override validates and applies a manual score. Prior entries are never
// rewritten or removed.
func (e *Engine) Override(ctx context.Context, in OverrideInput) (*ScoreHistory, error) {
	if !in.Polarity.Valid() {
		return nil, ErrInvalidPolarity
	}
	if in.Strength < 0 || in.Strength > 2 {
		return nil, ErrInvalidStrength
	}
	if in.Reason == "" {
		return nil, ErrReasonRequired
	}

	newScore := Calculate(in.Polarity, in.Strength)
	previous, err := e.previousScore(ctx, in.Case)
	if err != nil {
		return nil, err
	}

	entry := &ScoreHistory{
		CaseID:           in.Case.ID,
		Polarity:         in.Polarity,
		Strength:         in.Strength,
		Score:            newScore,
		PreviousScore:    previous,
		ScoreDelta:       newScore - previous,
		Notes:            fmt.Sprintf("manual override: %s", in.Reason),
		ScoredBy:         "manual",
		AlgorithmVersion: AlgorithmVersion,
		IsOverride:       true,
		OverrideBy:       in.Actor,
		OverrideReason:   in.Reason,
	}
	if err := e.historyRepo.Append(ctx, entry); err != nil {
		return nil, err
	}

	in.Case.CurrentScore = newScore
	in.Case.Priority = DerivePriority(in.Case)
	if err := e.caseRepo.Save(ctx, in.Case); err != nil {
		return nil, err
	}

	return entry, nil
}

// Recalculate rescores a case from its strongest available evidence,
// used after relinks or data corrections.
func (e *Engine) Recalculate(ctx context.Context, c *caselink.CaseMaster, experiences []normalize.Experience) (*ScoreHistory, error) {
	var best *normalize.Experience
	bestAbs := -1.0
	for i := range experiences {
		abs := experiences[i].ComputedScore
		if abs < 0 {
			abs = -abs
		}
		if abs > bestAbs {
			bestAbs = abs
			best = &experiences[i]
		}
	}

	if best == nil {
		previous, err := e.previousScore(ctx, c)
		if err != nil {
			return nil, err
		}
		entry := &ScoreHistory{
			CaseID:           c.ID,
			Polarity:         normalize.PolarityUnclear,
			Strength:         0,
			Score:            0,
			PreviousScore:    previous,
			ScoreDelta:       -previous,
			Notes:            "no normalized evidence linked to case",
			ScoredBy:         "auto",
			AlgorithmVersion: AlgorithmVersion,
		}
		if err := e.historyRepo.Append(ctx, entry); err != nil {
			return nil, err
		}
		c.CurrentScore = 0
		c.Priority = DerivePriority(c)
		if err := e.caseRepo.Save(ctx, c); err != nil {
			return nil, err
		}
		return entry, nil
	}

	return e.Apply(ctx, ScoreInput{
		Case:       c,
		Polarity:   best.Polarity,
		Strength:   best.Strength,
		Confidence: best.PolarityConfidence,
	})
}
