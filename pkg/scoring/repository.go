package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNoHistory = errors.New("case has no score history")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&ScoreHistory{})
}

func (r *Repository) Append(ctx context.Context, entry *ScoreHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) History(ctx context.Context, caseID string, limit int) ([]ScoreHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []ScoreHistory
	result := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries)
	return entries, result.Error
}

func (r *Repository) Latest(ctx context.Context, caseID string) (*ScoreHistory, error) {
	var entry ScoreHistory
	result := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("created_at DESC").
		First(&entry)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNoHistory
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &entry, nil
}
