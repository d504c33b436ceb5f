package followup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("follow-up request not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Request{})
}

func (r *Repository) Create(ctx context.Context, req *Request) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *Repository) Save(ctx context.Context, req *Request) error {
	req.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(req).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*Request, error) {
	var req Request
	result := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&req)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &req, result.Error
}

type ListFilter struct {
	CaseID         string
	Status         Status
	AssignedToType string
	Limit          int
	Offset         int
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	query := r.db.WithContext(ctx).Where("is_deleted = ?", false)
	if filter.CaseID != "" {
		query = query.Where("case_id = ?", filter.CaseID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AssignedToType != "" {
		query = query.Where("assigned_to_type = ?", filter.AssignedToType)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var requests []Request
	result := query.
		Order("CASE priority WHEN 'urgent' THEN 1 WHEN 'high' THEN 2 WHEN 'normal' THEN 3 ELSE 4 END").
		Order("due_by ASC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&requests)
	return requests, result.Error
}

// ListDue returns requests ready for a notification: never-dispatched ones
// immediately, and past-deadline ones that still have attempts left. The
// due date is the response deadline, not the send time. The dispatcher
// polls this.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = 100
	}
	var requests []Request
	result := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("status IN ?", []Status{StatusPending, StatusInProgress}).
		Where("attempt_count < max_attempts").
		Where("attempt_count = 0 OR (due_by IS NOT NULL AND due_by <= ?)", now).
		Order("due_by ASC").
		Limit(limit).
		Find(&requests)
	return requests, result.Error
}

// ListOverdue returns requests past their deadline with no attempts left
// and no terminal status yet; the dispatcher marks these failed.
func (r *Repository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = 100
	}
	var requests []Request
	result := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("status IN ?", []Status{StatusPending, StatusInProgress}).
		Where("attempt_count >= max_attempts").
		Where("due_by IS NOT NULL AND due_by <= ?", now).
		Order("due_by ASC").
		Limit(limit).
		Find(&requests)
	return requests, result.Error
}

// CountPendingForCase excludes the given request id so completion can
// check whether it was the last pending one.
func (r *Repository) CountPendingForCase(ctx context.Context, caseID, excludeID string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&Request{}).
		Where("case_id = ? AND status = ? AND is_deleted = ?", caseID, StatusPending, false)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count, err
}
