package caselink

import (
	"time"

	"gorm.io/datatypes"
)

type CaseStatus string

const (
	StatusOpen        CaseStatus = "open"
	StatusUnderReview CaseStatus = "under_review"
	StatusClosed      CaseStatus = "closed"
	StatusReported    CaseStatus = "reported"
)

func (s CaseStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusUnderReview, StatusClosed, StatusReported:
		return true
	}
	return false
}

type CasePriority string

const (
	PriorityLow      CasePriority = "low"
	PriorityNormal   CasePriority = "normal"
	PriorityHigh     CasePriority = "high"
	PriorityCritical CasePriority = "critical"
)

// CaseMaster is the drug+person unit of surveillance. Cases are never
// deleted, only tombstoned or status-closed. Concurrent linking for the
// same (drug, patient) pair is serialized by an advisory lock on the key.
type CaseMaster struct {
	ID                  string            `json:"id" gorm:"primaryKey;column:id"`
	CaseNumber          string            `json:"case_number" gorm:"column:case_number;uniqueIndex"`
	DrugNameCanonical   string            `json:"drug_name_canonical" gorm:"column:drug_name_canonical;index:idx_case_key"`
	PatientKeyCanonical string            `json:"patient_key_canonical" gorm:"column:patient_key_canonical;index:idx_case_key"`
	CurrentScore        float64           `json:"current_score" gorm:"column:current_score"`
	Status              CaseStatus        `json:"status" gorm:"column:status;index"`
	Priority            CasePriority      `json:"priority" gorm:"column:priority;index"`
	FirstEventDate      *time.Time        `json:"first_event_date,omitempty" gorm:"column:first_event_date"`
	LatestEventDate     *time.Time        `json:"latest_event_date,omitempty" gorm:"column:latest_event_date;index"`
	EventCount          int               `json:"event_count" gorm:"column:event_count"`
	IsSerious           bool              `json:"is_serious" gorm:"column:is_serious"`
	SeriousnessCriteria datatypes.JSON    `json:"seriousness_criteria,omitempty" gorm:"column:seriousness_criteria"`
	IsReportable        bool              `json:"is_reportable" gorm:"column:is_reportable"`
	HasPendingFollowUp  bool              `json:"has_pending_followup" gorm:"column:has_pending_followup;index"`
	AssignedTo          string            `json:"assigned_to,omitempty" gorm:"column:assigned_to"`
	CreatedAt           time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt           time.Time         `json:"updated_at" gorm:"column:updated_at"`
	IsDeleted           bool              `json:"is_deleted" gorm:"column:is_deleted;index"`
	DeletedAt           *time.Time        `json:"deleted_at,omitempty" gorm:"column:deleted_at"`
}

func (CaseMaster) TableName() string {
	return "case_masters"
}

// LinkingLog records how an event was assigned to a case. Immutable after
// insert except the override fields, which may be set exactly once.
type LinkingLog struct {
	ID               string            `json:"id" gorm:"primaryKey;column:id"`
	EventID          string            `json:"event_id" gorm:"column:event_id;index"`
	CaseID           string            `json:"case_id" gorm:"column:case_id;index"`
	IsNewCase        bool              `json:"is_new_case" gorm:"column:is_new_case"`
	Confidence       float64           `json:"confidence" gorm:"column:confidence"`
	Criteria         datatypes.JSONMap `json:"criteria,omitempty" gorm:"column:criteria"`
	PatientMatched   bool              `json:"patient_matched" gorm:"column:patient_matched"`
	DrugMatched      bool              `json:"drug_matched" gorm:"column:drug_matched"`
	WindowDays       int               `json:"window_days" gorm:"column:window_days"`
	LinkedBy         string            `json:"linked_by" gorm:"column:linked_by"` // auto, manual
	AlgorithmVersion string            `json:"algorithm_version" gorm:"column:algorithm_version"`
	IsOverridden     bool              `json:"is_overridden" gorm:"column:is_overridden"`
	OverrideBy       string            `json:"override_by,omitempty" gorm:"column:override_by"`
	OverrideReason   string            `json:"override_reason,omitempty" gorm:"column:override_reason"`
	OverrideAt       *time.Time        `json:"override_at,omitempty" gorm:"column:override_at"`
	OriginalCaseID   string            `json:"original_case_id,omitempty" gorm:"column:original_case_id"`
	CreatedAt        time.Time         `json:"created_at" gorm:"column:created_at"`
}

func (LinkingLog) TableName() string {
	return "case_linking_logs"
}
