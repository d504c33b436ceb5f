package scoring

import (
	"time"

	"github.com/pharmaguard/pipeline/pkg/normalize"
	"gorm.io/datatypes"
)

// ScoreHistory rows are pure inserts, ordered by creation time. The case's
// current_score always equals the newest row's score; rows are never
// edited or removed.
type ScoreHistory struct {
	ID               string             `json:"id" gorm:"primaryKey;column:id"`
	CaseID           string             `json:"case_id" gorm:"column:case_id;index"`
	TriggerEventID   string             `json:"trigger_event_id,omitempty" gorm:"column:trigger_event_id;index"`
	Polarity         normalize.Polarity `json:"polarity" gorm:"column:polarity"`
	Strength         int                `json:"strength" gorm:"column:strength"`
	Score            float64            `json:"score" gorm:"column:score"`
	PreviousScore    float64            `json:"previous_score" gorm:"column:previous_score"`
	ScoreDelta       float64            `json:"score_delta" gorm:"column:score_delta"`
	Factors          datatypes.JSONMap  `json:"factors,omitempty" gorm:"column:factors"`
	Notes            string             `json:"notes,omitempty" gorm:"column:notes"`
	ScoredBy         string             `json:"scored_by" gorm:"column:scored_by"` // auto, manual
	AlgorithmVersion string             `json:"algorithm_version" gorm:"column:algorithm_version"`
	IsOverride       bool               `json:"is_override" gorm:"column:is_override"`
	OverrideBy       string             `json:"override_by,omitempty" gorm:"column:override_by"`
	OverrideReason   string             `json:"override_reason,omitempty" gorm:"column:override_reason"`
	CreatedAt        time.Time          `json:"created_at" gorm:"column:created_at;index"`
}

func (ScoreHistory) TableName() string {
	return "case_score_history"
}
