package intake

import (
	"time"

	"gorm.io/datatypes"
)

type Source string

const (
	SourceClinician         Source = "clinician"
	SourceInstitution       Source = "institution"
	SourceDispensary        Source = "dispensary"
	SourceAutomatedFollowUp Source = "automated_followup"
	SourceDirectReport      Source = "direct_report"
)

func (s Source) Valid() bool {
	switch s {
	case SourceClinician, SourceInstitution, SourceDispensary, SourceAutomatedFollowUp, SourceDirectReport:
		return true
	}
	return false
}

// ExperienceEvent is the immutable intake record: exactly what arrived,
// when, from whom. The unique index on dedup_key is the idempotency
// guard; downstream interpretation lives in normalized_experiences.
type ExperienceEvent struct {
	ID                    string            `json:"id" gorm:"primaryKey;column:id"`
	DedupKey              string            `json:"-" gorm:"column:dedup_key;uniqueIndex"`
	Source                Source            `json:"source" gorm:"column:source;index"`
	ReporterID            string            `json:"reporter_id,omitempty" gorm:"column:reporter_id;index"`
	SubmitterID           string            `json:"submitter_id" gorm:"column:submitter_id;index"`
	CaseID                string            `json:"case_id,omitempty" gorm:"column:case_id;index"`
	DrugName              string            `json:"drug_name" gorm:"column:drug_name"`
	DrugCode              string            `json:"drug_code,omitempty" gorm:"column:drug_code"`
	DrugBatch             string            `json:"drug_batch,omitempty" gorm:"column:drug_batch"`
	PatientIdentifierHash string            `json:"patient_identifier_hash" gorm:"column:patient_identifier_hash;index"`
	Indication            string            `json:"indication,omitempty" gorm:"column:indication"`
	Dosage                string            `json:"dosage,omitempty" gorm:"column:dosage"`
	RouteOfAdministration string            `json:"route_of_administration,omitempty" gorm:"column:route_of_administration"`
	StartDate             *time.Time        `json:"start_date,omitempty" gorm:"column:start_date"`
	EndDate               *time.Time        `json:"end_date,omitempty" gorm:"column:end_date"`
	EventDate             *time.Time        `json:"event_date,omitempty" gorm:"column:event_date"`
	ObservedEvents        string            `json:"observed_events,omitempty" gorm:"column:observed_events"`
	Outcome               string            `json:"outcome,omitempty" gorm:"column:outcome"`
	QuantityDispensed     int               `json:"quantity_dispensed,omitempty" gorm:"column:quantity_dispensed"`
	PrescriberInfo        string            `json:"prescriber_info,omitempty" gorm:"column:prescriber_info"`
	RawPayload            datatypes.JSONMap `json:"raw_payload,omitempty" gorm:"column:raw_payload"`
	CreatedAt             time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt             time.Time         `json:"updated_at" gorm:"column:updated_at"`
	IsDeleted             bool              `json:"is_deleted" gorm:"column:is_deleted;index"`
	DeletedAt             *time.Time        `json:"deleted_at,omitempty" gorm:"column:deleted_at"`
}

func (ExperienceEvent) TableName() string {
	return "experience_events"
}
