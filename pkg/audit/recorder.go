package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrReasonRequired = errors.New("reason is required for override actions")

// Recorder writes ledger entries on the handle it is given. Callers inside
// a pipeline transaction construct it over the transaction so a failed
// audit write rolls the whole unit back.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) AutoMigrate() error {
	return r.db.AutoMigrate(&Entry{})
}

type Record struct {
	Actor            string
	EntityType       string
	EntityID         string
	EntityIdentifier string
	Before           interface{}
	After            interface{}
	Reason           string
	RequestID        string
}

func (r *Recorder) Created(ctx context.Context, rec Record) error {
	after := Snapshot(rec.After)
	return r.insert(ctx, ActionCreate, rec, nil, after, datatypes.JSONMap{"_action": "created"})
}

func (r *Recorder) Updated(ctx context.Context, rec Record) error {
	before := Snapshot(rec.Before)
	after := Snapshot(rec.After)
	return r.insert(ctx, ActionUpdate, rec, before, after, Diff(before, after))
}

func (r *Recorder) SoftDeleted(ctx context.Context, rec Record) error {
	before := Snapshot(rec.Before)
	after := Snapshot(rec.After)
	return r.insert(ctx, ActionDelete, rec, before, after, Diff(before, after))
}

func (r *Recorder) Overridden(ctx context.Context, rec Record) error {
	if rec.Reason == "" {
		return ErrReasonRequired
	}
	before := Snapshot(rec.Before)
	after := Snapshot(rec.After)
	changes := Diff(before, after)
	changes["_override"] = true
	return r.insert(ctx, ActionOverride, rec, before, after, changes)
}

func (r *Recorder) insert(ctx context.Context, action Action, rec Record, before, after, changes datatypes.JSONMap) error {
	entry := Entry{
		ID:               uuid.New().String(),
		Action:           action,
		Actor:            rec.Actor,
		EntityType:       rec.EntityType,
		EntityID:         rec.EntityID,
		EntityIdentifier: rec.EntityIdentifier,
		StateBefore:      before,
		StateAfter:       after,
		Changes:          changes,
		Reason:           rec.Reason,
		RequestID:        rec.RequestID,
		CreatedAt:        time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *Recorder) EntityHistory(ctx context.Context, entityType, entityID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []Entry
	result := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries)
	return entries, result.Error
}

// Snapshot round-trips an entity through JSON so the stored states use the
// same field names the API exposes.
func Snapshot(entity interface{}) datatypes.JSONMap {
	if entity == nil {
		return nil
	}
	raw, err := json.Marshal(entity)
	if err != nil {
		return datatypes.JSONMap{"_marshal_error": err.Error()}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return datatypes.JSONMap{"_marshal_error": err.Error()}
	}
	return datatypes.JSONMap(out)
}

// Diff computes per-field old/new pairs between two snapshots.
func Diff(before, after datatypes.JSONMap) datatypes.JSONMap {
	if len(before) == 0 {
		return datatypes.JSONMap{"_action": "created", "new_state": map[string]interface{}(after)}
	}
	if len(after) == 0 {
		return datatypes.JSONMap{"_action": "deleted", "old_state": map[string]interface{}(before)}
	}

	changes := datatypes.JSONMap{}
	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	for key := range keys {
		oldVal := before[key]
		newVal := after[key]
		if !jsonEqual(oldVal, newVal) {
			changes[key] = map[string]interface{}{"old": oldVal, "new": newVal}
		}
	}

	return changes
}

func jsonEqual(a, b interface{}) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}
