package audit

import (
	"time"

	"gorm.io/datatypes"
)

type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete" // soft delete only
	ActionOverride Action = "override"
)

// Entry is the immutable compliance record. Rows are inserted inside the
// same transaction as the change they describe and are never updated.
type Entry struct {
	ID               string            `json:"id" gorm:"primaryKey;column:id"`
	Action           Action            `json:"action" gorm:"column:action;index"`
	Actor            string            `json:"actor" gorm:"column:actor;index"`
	EntityType       string            `json:"entity_type" gorm:"column:entity_type;index:idx_audit_entity"`
	EntityID         string            `json:"entity_id" gorm:"column:entity_id;index:idx_audit_entity"`
	EntityIdentifier string            `json:"entity_identifier" gorm:"column:entity_identifier"`
	StateBefore      datatypes.JSONMap `json:"state_before,omitempty" gorm:"column:state_before"`
	StateAfter       datatypes.JSONMap `json:"state_after,omitempty" gorm:"column:state_after"`
	Changes          datatypes.JSONMap `json:"changes,omitempty" gorm:"column:changes"`
	Reason           string            `json:"reason,omitempty" gorm:"column:reason"`
	RequestID        string            `json:"request_id,omitempty" gorm:"column:request_id"`
	CreatedAt        time.Time         `json:"created_at" gorm:"column:created_at;index"`
}

func (Entry) TableName() string {
	return "audit_log_entries"
}
