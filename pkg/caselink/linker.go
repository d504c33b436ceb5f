package caselink

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
)

const AlgorithmVersion = "1.0.0"

var ErrReasonRequired = errors.New("override reason is required")

// caseStore is the persistence surface the linker needs. *Repository
// satisfies it.
type caseStore interface {
	AcquireLinkLock(ctx context.Context, drug, patient string) error
	FindMatchForUpdate(ctx context.Context, drug, patient string, eventDate time.Time, windowDays int) (*CaseMaster, error)
	Create(ctx context.Context, c *CaseMaster) error
	Save(ctx context.Context, c *CaseMaster) error
	GetForUpdate(ctx context.Context, id string) (*CaseMaster, error)
	SaveLog(ctx context.Context, log *LinkingLog) error
	GetLogByEventID(ctx context.Context, eventID string) (*LinkingLog, error)
	UpdateLog(ctx context.Context, log *LinkingLog) error
}

// Linker assigns events to cases deterministically: identical canonical
// drug+patient within the lookback window always lands on the same case.
type Linker struct {
	repo       caseStore
	windowDays int
}

func NewLinker(repo *Repository, windowDays int) *Linker {
	if windowDays <= 0 {
		windowDays = 365
	}
	return &Linker{repo: repo, windowDays: windowDays}
}

type LinkInput struct {
	EventID             string
	DrugNameCanonical   string
	PatientKeyCanonical string
	EventDate           time.Time
	IsSerious           bool
}

type LinkResult struct {
	Case       *CaseMaster
	Log        *LinkingLog
	IsNewCase  bool
	Confidence float64
}

// Link matches the event against existing cases or opens a new one.
// Callers run it inside the pipeline transaction; the advisory lock on the
// (drug, patient) key serializes concurrent submissions so the loser of a
// first-submission race links to the winner's case instead of creating a
// second one. An event outside the lookback window of every existing case
// opens a new case.
func (l *Linker) Link(ctx context.Context, in LinkInput) (*LinkResult, error) {
	if err := l.repo.AcquireLinkLock(ctx, in.DrugNameCanonical, in.PatientKeyCanonical); err != nil {
		return nil, err
	}

	match, err := l.repo.FindMatchForUpdate(ctx, in.DrugNameCanonical, in.PatientKeyCanonical, in.EventDate, l.windowDays)
	if err != nil && !errors.Is(err, ErrNoMatch) {
		return nil, err
	}

	if match != nil {
		confidence := 0.9
		if match.EventCount > 1 {
			confidence = 0.95
		}

		eventDate := in.EventDate
		match.LatestEventDate = &eventDate
		match.EventCount++
		if in.IsSerious {
			match.IsSerious = true
		}
		if err := l.repo.Save(ctx, match); err != nil {
			return nil, err
		}

		log := &LinkingLog{
			EventID:    in.EventID,
			CaseID:     match.ID,
			IsNewCase:  false,
			Confidence: confidence,
			Criteria: datatypes.JSONMap{
				"patient_match":      true,
				"drug_match":         true,
				"time_window_days":   l.windowDays,
				"within_time_window": true,
			},
			PatientMatched:   true,
			DrugMatched:      true,
			WindowDays:       l.windowDays,
			LinkedBy:         "auto",
			AlgorithmVersion: AlgorithmVersion,
		}
		if err := l.repo.SaveLog(ctx, log); err != nil {
			return nil, err
		}
		return &LinkResult{Case: match, Log: log, Confidence: confidence}, nil
	}

	eventDate := in.EventDate
	newCase := &CaseMaster{
		CaseNumber:          GenerateCaseNumber(),
		DrugNameCanonical:   in.DrugNameCanonical,
		PatientKeyCanonical: in.PatientKeyCanonical,
		CurrentScore:        0,
		Status:              StatusOpen,
		Priority:            PriorityNormal,
		FirstEventDate:      &eventDate,
		LatestEventDate:     &eventDate,
		EventCount:          1,
		IsSerious:           in.IsSerious,
	}
	if err := l.repo.Create(ctx, newCase); err != nil {
		return nil, err
	}

	log := &LinkingLog{
		EventID:    in.EventID,
		CaseID:     newCase.ID,
		IsNewCase:  true,
		Confidence: 1.0,
		Criteria: datatypes.JSONMap{
			"new_case": true,
			"reason":   "no matching case found",
		},
		PatientMatched:   false,
		DrugMatched:      false,
		WindowDays:       l.windowDays,
		LinkedBy:         "auto",
		AlgorithmVersion: AlgorithmVersion,
	}
	if err := l.repo.SaveLog(ctx, log); err != nil {
		return nil, err
	}

	return &LinkResult{Case: newCase, Log: log, IsNewCase: true, Confidence: 1.0}, nil
}

type OverrideInput struct {
	EventID   string
	EventDate time.Time
	NewCaseID string
	Actor     string
	Reason    string
}

type OverrideResult struct {
	Log     *LinkingLog
	OldCase *CaseMaster
	NewCase *CaseMaster
}

// Override relinks an event to a different case under a mandatory reason.
// The log keeps the original case id; the override fields are set exactly
// once.
func (l *Linker) Override(ctx context.Context, in OverrideInput) (*OverrideResult, error) {
	if in.Reason == "" {
		return nil, ErrReasonRequired
	}

	newCase, err := l.repo.GetForUpdate(ctx, in.NewCaseID)
	if err != nil {
		return nil, err
	}

	log, err := l.repo.GetLogByEventID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if log.IsOverridden {
		return nil, errors.New("linking log already overridden")
	}

	var oldCase *CaseMaster
	if log.CaseID != "" && log.CaseID != in.NewCaseID {
		oldCase, err = l.repo.GetForUpdate(ctx, log.CaseID)
		if err != nil && !errors.Is(err, ErrCaseNotFound) {
			return nil, err
		}
		if oldCase != nil {
			if oldCase.EventCount > 0 {
				oldCase.EventCount--
			}
			if err := l.repo.Save(ctx, oldCase); err != nil {
				return nil, err
			}
		}
	}

	newCase.EventCount++
	if newCase.LatestEventDate == nil || in.EventDate.After(*newCase.LatestEventDate) {
		eventDate := in.EventDate
		newCase.LatestEventDate = &eventDate
	}
	if err := l.repo.Save(ctx, newCase); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	log.OriginalCaseID = log.CaseID
	log.CaseID = in.NewCaseID
	log.IsOverridden = true
	log.OverrideBy = in.Actor
	log.OverrideReason = in.Reason
	log.OverrideAt = &now
	if err := l.repo.UpdateLog(ctx, log); err != nil {
		return nil, err
	}

	return &OverrideResult{Log: log, OldCase: oldCase, NewCase: newCase}, nil
}
