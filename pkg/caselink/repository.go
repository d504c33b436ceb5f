package caselink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNoMatch      = errors.New("no matching case found")
	ErrCaseNotFound = errors.New("case not found")
	ErrLogNotFound  = errors.New("linking log not found")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&CaseMaster{}, &LinkingLog{})
}

// AcquireLinkLock takes a transaction-scoped advisory lock on the
// (drug, patient) key, serializing concurrent match-or-create for the
// same key. The lock releases automatically at commit or rollback.
func (r *Repository) AcquireLinkLock(ctx context.Context, drug, patient string) error {
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?), hashtext(?))", drug, patient).
		Error
}

// FindMatchForUpdate locks the newest matching case row for the duration
// of the surrounding transaction. Matching considers any non-deleted case
// regardless of status; a new event within the window of a closed case
// still belongs to it.
func (r *Repository) FindMatchForUpdate(ctx context.Context, drug, patient string, eventDate time.Time, windowDays int) (*CaseMaster, error) {
	if drug == "" || patient == "" {
		return nil, ErrNoMatch
	}

	cutoff := eventDate.AddDate(0, 0, -windowDays)
	var c CaseMaster
	result := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("drug_name_canonical = ? AND patient_key_canonical = ? AND is_deleted = ?",
			drug, patient, false).
		Where("latest_event_date >= ?", cutoff).
		Order("latest_event_date DESC").
		First(&c)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNoMatch
	}
	return &c, result.Error
}

func (r *Repository) Create(ctx context.Context, c *CaseMaster) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repository) Save(ctx context.Context, c *CaseMaster) error {
	c.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*CaseMaster, error) {
	var c CaseMaster
	result := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&c)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrCaseNotFound
	}
	return &c, result.Error
}

func (r *Repository) GetForUpdate(ctx context.Context, id string) (*CaseMaster, error) {
	var c CaseMaster
	result := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&c)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrCaseNotFound
	}
	return &c, result.Error
}

type ListFilter struct {
	Status        string
	Priority      string
	MinScore      *float64
	MaxScore      *float64
	PendingFollow *bool
	Limit         int
	Offset        int
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]CaseMaster, int64, error) {
	query := r.db.WithContext(ctx).Model(&CaseMaster{}).Where("is_deleted = ?", false)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.MinScore != nil {
		query = query.Where("current_score >= ?", *filter.MinScore)
	}
	if filter.MaxScore != nil {
		query = query.Where("current_score <= ?", *filter.MaxScore)
	}
	if filter.PendingFollow != nil {
		query = query.Where("has_pending_followup = ?", *filter.PendingFollow)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var cases []CaseMaster
	result := query.
		Order(priorityOrder()).
		Order("latest_event_date DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&cases)
	return cases, total, result.Error
}

func priorityOrder() string {
	return fmt.Sprintf(
		"CASE priority WHEN '%s' THEN 1 WHEN '%s' THEN 2 WHEN '%s' THEN 3 ELSE 4 END",
		PriorityCritical, PriorityHigh, PriorityNormal,
	)
}

// RecentOpenCases feeds the advisory similarity matcher.
func (r *Repository) RecentOpenCases(ctx context.Context, limit int) ([]CaseMaster, error) {
	if limit <= 0 {
		limit = 100
	}
	var cases []CaseMaster
	result := r.db.WithContext(ctx).
		Where("is_deleted = ? AND status = ?", false, StatusOpen).
		Order("latest_event_date DESC").
		Limit(limit).
		Find(&cases)
	return cases, result.Error
}

func (r *Repository) SaveLog(ctx context.Context, log *LinkingLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *Repository) GetLogByEventID(ctx context.Context, eventID string) (*LinkingLog, error) {
	var log LinkingLog
	result := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		First(&log)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrLogNotFound
	}
	return &log, result.Error
}

func (r *Repository) UpdateLog(ctx context.Context, log *LinkingLog) error {
	return r.db.WithContext(ctx).Save(log).Error
}

// GenerateCaseNumber returns a date-stamped case number with a random
// suffix, e.g. PV-20260826-A1B2C.
func GenerateCaseNumber() string {
	datePart := time.Now().UTC().Format("20060102")
	uniquePart := strings.ToUpper(uuid.New().String()[:5])
	return fmt.Sprintf("PV-%s-%s", datePart, uniquePart)
}
