package intake

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrEventNotFound = errors.New("experience event not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&ExperienceEvent{})
}

// CreateIdempotent inserts the event unless its dedup key already exists.
// The boolean reports whether the row was actually inserted; on conflict
// the stored event is returned so two racing submitters both see the
// winning row.
func (r *Repository) CreateIdempotent(ctx context.Context, event *ExperienceEvent) (*ExperienceEvent, bool, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoNothing: true,
		}).
		Create(event)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return event, true, nil
	}

	existing, err := r.GetByDedupKey(ctx, event.DedupKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *Repository) GetByDedupKey(ctx context.Context, key string) (*ExperienceEvent, error) {
	var event ExperienceEvent
	result := r.db.WithContext(ctx).
		Where("dedup_key = ?", key).
		First(&event)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	return &event, result.Error
}

func (r *Repository) Get(ctx context.Context, id string) (*ExperienceEvent, error) {
	var event ExperienceEvent
	result := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&event)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	return &event, result.Error
}

func (r *Repository) ListByCase(ctx context.Context, caseID string) ([]ExperienceEvent, error) {
	var events []ExperienceEvent
	result := r.db.WithContext(ctx).
		Where("case_id = ? AND is_deleted = ?", caseID, false).
		Order("created_at ASC").
		Find(&events)
	return events, result.Error
}

// SetCase records which case the pipeline linked the event to.
func (r *Repository) SetCase(ctx context.Context, eventID, caseID string) error {
	return r.db.WithContext(ctx).Model(&ExperienceEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"case_id":    caseID,
			"updated_at": time.Now().UTC(),
		}).Error
}
