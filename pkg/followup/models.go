package followup

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// terminal reports whether a status permits no further transitions.
func (s Status) terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type Reason string

const (
	ReasonScoreZero     Reason = "score_zero"
	ReasonLowStrength   Reason = "low_strength"
	ReasonMissingFields Reason = "missing_fields"
	ReasonClarification Reason = "clarification"
	ReasonOutcomeUpdate Reason = "outcome_update"
	ReasonCausality     Reason = "causality"
)

// Request tracks one pending information gap from creation through its
// status state machine: pending -> in_progress -> completed/failed/cancelled.
type Request struct {
	ID              string            `json:"id" gorm:"primaryKey;column:id"`
	CaseID          string            `json:"case_id" gorm:"column:case_id;index"`
	EventID         string            `json:"event_id,omitempty" gorm:"column:event_id;index"`
	Reason          Reason            `json:"reason" gorm:"column:reason"`
	ReasonDetails   string            `json:"reason_details,omitempty" gorm:"column:reason_details"`
	Questions       datatypes.JSON    `json:"questions,omitempty" gorm:"column:questions"`
	MissingFields   datatypes.JSON    `json:"missing_fields,omitempty" gorm:"column:missing_fields"`
	TargetReporter  string            `json:"target_reporter,omitempty" gorm:"column:target_reporter"`
	TargetContact   string            `json:"target_contact,omitempty" gorm:"column:target_contact"`
	Status          Status            `json:"status" gorm:"column:status;index"`
	AssignedToType  string            `json:"assigned_to_type,omitempty" gorm:"column:assigned_to_type"` // agent, human
	AssignedTo      string            `json:"assigned_to,omitempty" gorm:"column:assigned_to"`
	Priority        string            `json:"priority" gorm:"column:priority"` // low, normal, high, urgent
	DueBy           *time.Time        `json:"due_by,omitempty" gorm:"column:due_by;index"`
	AttemptCount    int               `json:"attempt_count" gorm:"column:attempt_count"`
	MaxAttempts     int               `json:"max_attempts" gorm:"column:max_attempts"`
	LastAttemptAt   *time.Time        `json:"last_attempt_at,omitempty" gorm:"column:last_attempt_at"`
	ResponseEventID string            `json:"response_event_id,omitempty" gorm:"column:response_event_id"`
	ResponseSummary string            `json:"response_summary,omitempty" gorm:"column:response_summary"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty" gorm:"column:completed_at"`
	CompletedBy     string            `json:"completed_by,omitempty" gorm:"column:completed_by"`
	CreatedAt       time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       time.Time         `json:"updated_at" gorm:"column:updated_at"`
	IsDeleted       bool              `json:"is_deleted" gorm:"column:is_deleted;index"`
	DeletedAt       *time.Time        `json:"deleted_at,omitempty" gorm:"column:deleted_at"`
}

func (Request) TableName() string {
	return "follow_up_requests"
}
