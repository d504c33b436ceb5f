package normalize

import (
	"time"

	"gorm.io/datatypes"
)

type Polarity string

const (
	PolarityAdverse    Polarity = "adverse"
	PolarityNonAdverse Polarity = "non_adverse"
	PolarityUnclear    Polarity = "unclear"
)

func (p Polarity) Valid() bool {
	switch p {
	case PolarityAdverse, PolarityNonAdverse, PolarityUnclear:
		return true
	}
	return false
}

// Experience is the persisted normalization of one event, created exactly
// once and mutated only through an audited override.
type Experience struct {
	ID                  string            `json:"id" gorm:"primaryKey;column:id"`
	EventID             string            `json:"event_id" gorm:"column:event_id;uniqueIndex"`
	DrugNameCanonical   string            `json:"drug_name_canonical" gorm:"column:drug_name_canonical;index"`
	PatientKeyCanonical string            `json:"patient_key_canonical" gorm:"column:patient_key_canonical;index"`
	Polarity            Polarity          `json:"polarity" gorm:"column:polarity"`
	PolarityConfidence  float64           `json:"polarity_confidence" gorm:"column:polarity_confidence"`
	PolarityReasoning   string            `json:"polarity_reasoning" gorm:"column:polarity_reasoning"`
	Strength            int               `json:"strength" gorm:"column:strength"`
	StrengthFactors     datatypes.JSONMap `json:"strength_factors,omitempty" gorm:"column:strength_factors"`
	ComputedScore       float64           `json:"computed_score" gorm:"column:computed_score"`
	HasMandatoryFields  bool              `json:"has_mandatory_fields" gorm:"column:has_mandatory_fields"`
	MissingFields       datatypes.JSON    `json:"missing_fields,omitempty" gorm:"column:missing_fields"`
	IsSerious           bool              `json:"is_serious" gorm:"column:is_serious"`
	NormalizedBy        string            `json:"normalized_by" gorm:"column:normalized_by"` // auto, manual
	AlgorithmVersion    string            `json:"algorithm_version" gorm:"column:algorithm_version"`
	OverrideBy          string            `json:"override_by,omitempty" gorm:"column:override_by"`
	OverrideReason      string            `json:"override_reason,omitempty" gorm:"column:override_reason"`
	OverrideAt          *time.Time        `json:"override_at,omitempty" gorm:"column:override_at"`
	CreatedAt           time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt           time.Time         `json:"updated_at" gorm:"column:updated_at"`
	IsDeleted           bool              `json:"is_deleted" gorm:"column:is_deleted;index"`
	DeletedAt           *time.Time        `json:"deleted_at,omitempty" gorm:"column:deleted_at"`
}

func (Experience) TableName() string {
	return "normalized_experiences"
}
