package models

import "time"

// Submission intake models
type SubmissionRequest struct {
	Source                string                 `json:"source,omitempty"` // clinician, institution, dispensary, automated_followup, direct_report
	DrugName              string                 `json:"drug_name"`
	DrugCode              string                 `json:"drug_code,omitempty"`
	DrugBatch             string                 `json:"drug_batch,omitempty"`
	PatientIdentifier     string                 `json:"patient_identifier"` // raw; hashed before storage
	Indication            string                 `json:"indication,omitempty"`
	Dosage                string                 `json:"dosage,omitempty"`
	RouteOfAdministration string                 `json:"route_of_administration,omitempty"`
	StartDate             string                 `json:"start_date,omitempty"` // ISO 8601
	EndDate               string                 `json:"end_date,omitempty"`
	EventDate             string                 `json:"event_date,omitempty"`
	ObservedEvents        string                 `json:"observed_events,omitempty"`
	Outcome               string                 `json:"outcome,omitempty"`
	QuantityDispensed     int                    `json:"quantity_dispensed,omitempty"`
	PrescriberInfo        string                 `json:"prescriber_info,omitempty"`
	ConsentToContact      bool                   `json:"consent_to_contact,omitempty"`
	ReporterName          string                 `json:"reporter_name,omitempty"`
	ReporterContact       string                 `json:"reporter_contact,omitempty"`
	Institution           string                 `json:"institution,omitempty"`
	Extra                 map[string]interface{} `json:"extra,omitempty"`
}

type ScoreBreakdown struct {
	Polarity         string  `json:"polarity"`
	Strength         int     `json:"strength"`
	ComputedScore    float64 `json:"computed_score"`
	CaseCurrentScore float64 `json:"case_current_score"`
}

type DataQuality struct {
	HasMandatoryFields bool     `json:"has_mandatory_fields"`
	MissingFields      []string `json:"missing_fields,omitempty"`
}

type SubmissionResponse struct {
	IsDuplicate       bool           `json:"is_duplicate"`
	EventID           string         `json:"event_id"`
	CaseID            string         `json:"case_id"`
	CaseNumber        string         `json:"case_number"`
	IsNewCase         bool           `json:"is_new_case"`
	LinkingConfidence float64        `json:"linking_confidence"`
	Score             ScoreBreakdown `json:"score"`
	DataQuality       DataQuality    `json:"data_quality"`
	FollowUpReasons   []string       `json:"followup_reasons,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}

// Case query models
type CaseFilter struct {
	Status         string
	Priority       string
	MinScore       *float64
	MaxScore       *float64
	PendingFollow  *bool
	Limit          int
	Offset         int
}

type ScoreOverrideRequest struct {
	Polarity string `json:"polarity"`
	Strength int    `json:"strength"`
	Reason   string `json:"reason"`
}

type NormalizationOverrideRequest struct {
	Polarity string `json:"polarity"`
	Strength int    `json:"strength"`
	Reason   string `json:"reason"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type RelinkRequest struct {
	NewCaseID string `json:"new_case_id"`
	Reason    string `json:"reason"`
}

type AssignFollowUpRequest struct {
	AssignedToType string `json:"assigned_to_type"` // agent, human
	AssignedTo     string `json:"assigned_to,omitempty"`
}

type CompleteFollowUpRequest struct {
	ResponseEventID string `json:"response_event_id"`
	ResponseSummary string `json:"response_summary,omitempty"`
}

type CancelFollowUpRequest struct {
	Reason string `json:"reason"`
}

// Advisory duplicate-detection models
type SimilarityCheckRequest struct {
	DrugName       string `json:"drug_name"`
	ObservedEvents string `json:"observed_events"`
	Age            int    `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
}

type SimilarityMatch struct {
	CaseID     string             `json:"case_id"`
	CaseNumber string             `json:"case_number"`
	Score      float64            `json:"score"`
	Breakdown  map[string]float64 `json:"breakdown"`
	Confidence string             `json:"confidence"` // very_high, high, moderate, low
}

type SimilarityCheckResponse struct {
	Matches        []SimilarityMatch `json:"matches"`
	Recommendation string            `json:"recommendation"` // discard_duplicate, manual_review, accept
}

// Event bus model
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // submission, followup, notification
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
