package reporter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrReporterNotFound = errors.New("reporter not found")

type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) AutoMigrate() error {
	return d.db.AutoMigrate(&Reporter{})
}

type Profile struct {
	SubmitterID      string
	ReporterType     string
	FullName         string
	Contact          string
	Qualification    string
	Institution      string
	ConsentToContact bool
}

// GetOrCreate returns the reporter already linked to the submitter, or
// records a new one. Consent is sticky: once granted it is not revoked by
// a later submission that omits it.
func (d *Directory) GetOrCreate(ctx context.Context, profile Profile) (*Reporter, error) {
	var existing Reporter
	err := d.db.WithContext(ctx).
		Where("submitter_id = ? AND is_deleted = ?", profile.SubmitterID, false).
		First(&existing).Error
	if err == nil {
		if profile.ConsentToContact && !existing.ConsentToContact {
			now := time.Now().UTC()
			existing.ConsentToContact = true
			existing.ConsentDate = &now
			if profile.Contact != "" {
				existing.Contact = profile.Contact
			}
			existing.UpdatedAt = now
			if err := d.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return nil, err
			}
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	rep := Reporter{
		ID:               uuid.New().String(),
		SubmitterID:      profile.SubmitterID,
		ReporterType:     profile.ReporterType,
		FullName:         profile.FullName,
		Qualification:    profile.Qualification,
		Institution:      profile.Institution,
		ConsentToContact: profile.ConsentToContact,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if profile.ConsentToContact {
		rep.Contact = profile.Contact
		rep.ConsentDate = &now
	}
	if err := d.db.WithContext(ctx).Create(&rep).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

func (d *Directory) Get(ctx context.Context, id string) (*Reporter, error) {
	var rep Reporter
	err := d.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReporterNotFound
	}
	return &rep, err
}
