package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("normalized experience not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Experience{})
}

// CreateFromResult persists the computed normalization for an event. The
// unique index on event_id enforces the one-per-event invariant.
func (r *Repository) CreateFromResult(ctx context.Context, eventID string, res Result) (*Experience, error) {
	var missing datatypes.JSON
	if len(res.MissingFields) > 0 {
		raw, err := json.Marshal(res.MissingFields)
		if err != nil {
			return nil, err
		}
		missing = datatypes.JSON(raw)
	}

	now := time.Now().UTC()
	exp := &Experience{
		ID:                  uuid.New().String(),
		EventID:             eventID,
		DrugNameCanonical:   res.DrugNameCanonical,
		PatientKeyCanonical: res.PatientKeyCanonical,
		Polarity:            res.Polarity,
		PolarityConfidence:  res.PolarityConfidence,
		PolarityReasoning:   res.PolarityReasoning,
		Strength:            res.Strength,
		StrengthFactors:     datatypes.JSONMap(res.StrengthFactors),
		ComputedScore:       res.Score,
		HasMandatoryFields:  res.HasMandatoryFields,
		MissingFields:       missing,
		IsSerious:           res.IsSerious,
		NormalizedBy:        "auto",
		AlgorithmVersion:    AlgorithmVersion,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := r.db.WithContext(ctx).Create(exp).Error; err != nil {
		return nil, err
	}
	return exp, nil
}

func (r *Repository) GetByEventID(ctx context.Context, eventID string) (*Experience, error) {
	var exp Experience
	result := r.db.WithContext(ctx).
		Where("event_id = ? AND is_deleted = ?", eventID, false).
		First(&exp)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &exp, result.Error
}

// ListByEventIDs fetches the normalizations backing a set of events,
// used when a case is rescored from its remaining evidence.
func (r *Repository) ListByEventIDs(ctx context.Context, eventIDs []string) ([]Experience, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var exps []Experience
	result := r.db.WithContext(ctx).
		Where("event_id IN ? AND is_deleted = ?", eventIDs, false).
		Find(&exps)
	return exps, result.Error
}

// ApplyOverride mutates an experience through the audited override path.
// Any other mutation of a persisted normalization is a bug.
func (r *Repository) ApplyOverride(ctx context.Context, exp *Experience, polarity Polarity, strength int, actor, reason string) error {
	now := time.Now().UTC()
	exp.Polarity = polarity
	exp.Strength = strength
	exp.ComputedScore = float64(Multiplier(polarity) * strength)
	exp.NormalizedBy = "manual"
	exp.OverrideBy = actor
	exp.OverrideReason = reason
	exp.OverrideAt = &now
	exp.UpdatedAt = now
	return r.db.WithContext(ctx).Save(exp).Error
}

// MissingFieldNames decodes the stored missing-fields list.
func (e *Experience) MissingFieldNames() []string {
	if len(e.MissingFields) == 0 {
		return nil
	}
	var fields []string
	if err := json.Unmarshal(e.MissingFields, &fields); err != nil {
		return nil
	}
	return fields
}
