package reporter

import "time"

// Reporter identifies who supplied a submission, kept separate from the
// submission itself so follow-up requests can reach the same person later.
// Contact details are stored only when consent was given.
type Reporter struct {
	ID               string     `json:"id" gorm:"primaryKey;column:id"`
	SubmitterID      string     `json:"submitter_id" gorm:"column:submitter_id;index"`
	ReporterType     string     `json:"reporter_type" gorm:"column:reporter_type"` // doctor, nurse, pharmacist, patient, caregiver
	FullName         string     `json:"full_name,omitempty" gorm:"column:full_name"`
	Contact          string     `json:"-" gorm:"column:contact"`
	Qualification    string     `json:"qualification,omitempty" gorm:"column:qualification"`
	Institution      string     `json:"institution,omitempty" gorm:"column:institution"`
	ConsentToContact bool       `json:"consent_to_contact" gorm:"column:consent_to_contact"`
	ConsentDate      *time.Time `json:"consent_date,omitempty" gorm:"column:consent_date"`
	CreatedAt        time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"column:updated_at"`
	IsDeleted        bool       `json:"is_deleted" gorm:"column:is_deleted;index"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" gorm:"column:deleted_at"`
}

func (Reporter) TableName() string {
	return "reporters"
}
