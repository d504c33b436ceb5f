package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pharmaguard/pipeline/pkg/audit"
	"github.com/pharmaguard/pipeline/pkg/caselink"
	"github.com/pharmaguard/pipeline/pkg/common/kafka"
	"github.com/pharmaguard/pipeline/pkg/common/logger"
	"github.com/pharmaguard/pipeline/pkg/common/models"
	"github.com/pharmaguard/pipeline/pkg/followup"
	"github.com/pharmaguard/pipeline/pkg/normalize"
	"github.com/pharmaguard/pipeline/pkg/reporter"
	"github.com/pharmaguard/pipeline/pkg/scoring"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Options struct {
	DedupBucket       time.Duration
	LinkingWindowDays int
	FollowUp          followup.Options
}

// Service runs the submission pipeline. Every write between event intake
// and audit happens in one transaction; a failure anywhere leaves no
// partial state.
type Service struct {
	db         *gorm.DB
	validator  *Validator
	normalizer *normalize.Normalizer
	producer   *kafka.Producer
	opts       Options
}

func NewService(db *gorm.DB, validator *Validator, normalizer *normalize.Normalizer, producer *kafka.Producer, opts Options) *Service {
	if opts.DedupBucket <= 0 {
		opts.DedupBucket = time.Hour
	}
	return &Service{
		db:         db,
		validator:  validator,
		normalizer: normalizer,
		producer:   producer,
		opts:       opts,
	}
}

type Submission struct {
	Source      Source
	SubmitterID string
	RequestID   string
	Request     models.SubmissionRequest
}

// Process validates, deduplicates, and runs the event through the full
// pipeline: persist, normalize, link, score, evaluate follow-ups, audit.
func (s *Service) Process(ctx context.Context, sub Submission) (*models.SubmissionResponse, error) {
	if err := s.validator.Validate(sub.Source, sub.Request); err != nil {
		return nil, err
	}

	patientHash := HashPatientIdentifier(sub.Request.PatientIdentifier)
	key := DedupKey(sub.Source, sub.SubmitterID, sub.Request.DrugName, patientHash, time.Now().UTC(), s.opts.DedupBucket)

	// Fast path before opening a transaction.
	if existing, err := NewRepository(s.db).GetByDedupKey(ctx, key); err == nil {
		return s.duplicateResponse(ctx, existing)
	}

	event, err := buildEvent(sub, patientHash, key)
	if err != nil {
		return nil, err
	}

	var resp *models.SubmissionResponse
	var duplicate *ExperienceEvent

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)

		stored, inserted, err := repo.CreateIdempotent(ctx, event)
		if err != nil {
			return fmt.Errorf("persisting event: %w", err)
		}
		if !inserted {
			duplicate = stored
			return nil
		}

		resp, err = s.runPipeline(ctx, tx, sub, stored)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}

	if duplicate != nil {
		return s.duplicateResponse(ctx, duplicate)
	}

	s.publishResult(ctx, sub, resp)
	return resp, nil
}

func (s *Service) runPipeline(ctx context.Context, tx *gorm.DB, sub Submission, event *ExperienceEvent) (*models.SubmissionResponse, error) {
	recorder := audit.NewRecorder(tx)
	record := func(entityType, entityID, identifier, reason string, after interface{}) error {
		return recorder.Created(ctx, audit.Record{
			Actor:            sub.SubmitterID,
			EntityType:       entityType,
			EntityID:         entityID,
			EntityIdentifier: identifier,
			After:            after,
			Reason:           reason,
			RequestID:        sub.RequestID,
		})
	}

	if err := record("ExperienceEvent", event.ID, "Event-"+event.ID, fmt.Sprintf("new %s submission", sub.Source), event); err != nil {
		return nil, fmt.Errorf("auditing event: %w", err)
	}

	rep, err := reporter.NewDirectory(tx).GetOrCreate(ctx, reporter.Profile{
		SubmitterID:      sub.SubmitterID,
		ReporterType:     string(sub.Source),
		FullName:         sub.Request.ReporterName,
		Contact:          sub.Request.ReporterContact,
		Institution:      sub.Request.Institution,
		ConsentToContact: sub.Request.ConsentToContact,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving reporter: %w", err)
	}
	event.ReporterID = rep.ID
	if err := tx.WithContext(ctx).Model(&ExperienceEvent{}).
		Where("id = ?", event.ID).
		Update("reporter_id", rep.ID).Error; err != nil {
		return nil, err
	}

	result := s.normalizer.Normalize(normalize.Input{
		DrugName:       event.DrugName,
		PatientHash:    event.PatientIdentifierHash,
		ObservedEvents: event.ObservedEvents,
		Outcome:        event.Outcome,
		Indication:     event.Indication,
		Dosage:         event.Dosage,
		StartDate:      event.StartDate,
		EventDate:      event.EventDate,
		Source:         string(event.Source),
	})

	exp, err := normalize.NewRepository(tx).CreateFromResult(ctx, event.ID, result)
	if err != nil {
		return nil, fmt.Errorf("persisting normalization: %w", err)
	}
	if err := record("NormalizedExperience", exp.ID, "Normalized-"+exp.ID, "event normalization", exp); err != nil {
		return nil, fmt.Errorf("auditing normalization: %w", err)
	}

	eventDate := time.Now().UTC()
	if event.EventDate != nil {
		eventDate = *event.EventDate
	}

	caseRepo := caselink.NewRepository(tx)
	linked, err := caselink.NewLinker(caseRepo, s.opts.LinkingWindowDays).Link(ctx, caselink.LinkInput{
		EventID:             event.ID,
		DrugNameCanonical:   result.DrugNameCanonical,
		PatientKeyCanonical: result.PatientKeyCanonical,
		EventDate:           eventDate,
		IsSerious:           result.IsSerious,
	})
	if err != nil {
		return nil, fmt.Errorf("linking case: %w", err)
	}
	if err := NewRepository(tx).SetCase(ctx, event.ID, linked.Case.ID); err != nil {
		return nil, err
	}
	if linked.IsNewCase {
		if err := record("CaseMaster", linked.Case.ID, linked.Case.CaseNumber, "new case created from event", linked.Case); err != nil {
			return nil, fmt.Errorf("auditing case: %w", err)
		}
	}

	engine := scoring.NewEngine(scoring.NewRepository(tx), caseRepo)
	if _, err := engine.Apply(ctx, scoring.ScoreInput{
		Case:           linked.Case,
		Polarity:       result.Polarity,
		Strength:       result.Strength,
		Confidence:     result.PolarityConfidence,
		Factors:        result.StrengthFactors,
		TriggerEventID: event.ID,
	}); err != nil {
		return nil, fmt.Errorf("scoring case: %w", err)
	}

	svc := followup.NewService(followup.NewRepository(tx), caseRepo, s.opts.FollowUp)
	requests, err := svc.EvaluateAndCreate(ctx, linked.Case, event.ID, result, rep)
	if err != nil {
		return nil, fmt.Errorf("evaluating follow-ups: %w", err)
	}

	reasons := make([]string, 0, len(requests))
	for _, req := range requests {
		reasons = append(reasons, string(req.Reason))
	}

	return &models.SubmissionResponse{
		EventID:           event.ID,
		CaseID:            linked.Case.ID,
		CaseNumber:        linked.Case.CaseNumber,
		IsNewCase:         linked.IsNewCase,
		LinkingConfidence: linked.Confidence,
		Score: models.ScoreBreakdown{
			Polarity:         string(result.Polarity),
			Strength:         result.Strength,
			ComputedScore:    result.Score,
			CaseCurrentScore: linked.Case.CurrentScore,
		},
		DataQuality: models.DataQuality{
			HasMandatoryFields: result.HasMandatoryFields,
			MissingFields:      result.MissingFields,
		},
		FollowUpReasons: reasons,
		Timestamp:       time.Now().UTC(),
	}, nil
}

// duplicateResponse rebuilds the original pipeline response from stored
// state. No writes happen on this path.
func (s *Service) duplicateResponse(ctx context.Context, event *ExperienceEvent) (*models.SubmissionResponse, error) {
	resp := &models.SubmissionResponse{
		IsDuplicate: true,
		EventID:     event.ID,
		CaseID:      event.CaseID,
		Timestamp:   time.Now().UTC(),
	}

	if exp, err := normalize.NewRepository(s.db).GetByEventID(ctx, event.ID); err == nil {
		resp.Score = models.ScoreBreakdown{
			Polarity:      string(exp.Polarity),
			Strength:      exp.Strength,
			ComputedScore: exp.ComputedScore,
		}
		resp.DataQuality = models.DataQuality{
			HasMandatoryFields: exp.HasMandatoryFields,
			MissingFields:      exp.MissingFieldNames(),
		}
	}

	caseRepo := caselink.NewRepository(s.db)
	if event.CaseID != "" {
		if c, err := caseRepo.Get(ctx, event.CaseID); err == nil {
			resp.CaseNumber = c.CaseNumber
			resp.Score.CaseCurrentScore = c.CurrentScore
		}
	}
	if log, err := caseRepo.GetLogByEventID(ctx, event.ID); err == nil {
		resp.IsNewCase = log.IsNewCase
		resp.LinkingConfidence = log.Confidence
	}

	return resp, nil
}

// publishResult emits the pipeline outcome after commit. Best effort; a
// broker failure never fails an already committed submission.
func (s *Service) publishResult(ctx context.Context, sub Submission, resp *models.SubmissionResponse) {
	if s.producer == nil || resp == nil {
		return
	}
	err := s.producer.PublishEvent(ctx, "submission.processed", string(sub.Source), map[string]interface{}{
		"event_id":         resp.EventID,
		"case_id":          resp.CaseID,
		"case_number":      resp.CaseNumber,
		"is_new_case":      resp.IsNewCase,
		"polarity":         resp.Score.Polarity,
		"strength":         resp.Score.Strength,
		"case_score":       resp.Score.CaseCurrentScore,
		"followup_reasons": resp.FollowUpReasons,
		"request_id":       sub.RequestID,
	})
	if err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id": resp.EventID,
		}).Warn("Failed to publish pipeline result")
	}
}

// GetEvent serves submission lookups.
func (s *Service) GetEvent(ctx context.Context, id string) (*ExperienceEvent, error) {
	return NewRepository(s.db).Get(ctx, id)
}

func buildEvent(sub Submission, patientHash, key string) (*ExperienceEvent, error) {
	req := sub.Request

	startDate, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		return nil, err
	}
	endDate, err := parseDate(req.EndDate, "end_date")
	if err != nil {
		return nil, err
	}
	eventDate, err := parseDate(req.EventDate, "event_date")
	if err != nil {
		return nil, err
	}
	if eventDate == nil {
		now := time.Now().UTC()
		eventDate = &now
	}

	return &ExperienceEvent{
		DedupKey:              key,
		Source:                sub.Source,
		SubmitterID:           sub.SubmitterID,
		DrugName:              req.DrugName,
		DrugCode:              req.DrugCode,
		DrugBatch:             req.DrugBatch,
		PatientIdentifierHash: patientHash,
		Indication:            req.Indication,
		Dosage:                req.Dosage,
		RouteOfAdministration: req.RouteOfAdministration,
		StartDate:             startDate,
		EndDate:               endDate,
		EventDate:             eventDate,
		ObservedEvents:        req.ObservedEvents,
		Outcome:               req.Outcome,
		QuantityDispensed:     req.QuantityDispensed,
		PrescriberInfo:        req.PrescriberInfo,
		RawPayload:            rawPayload(req),
	}, nil
}

func parseDate(value, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, ValidationError{reason: fmt.Errorf("%s must be an ISO 8601 date", field)}
}

// rawPayload keeps the submission as received, minus the raw patient
// identifier which never reaches storage.
func rawPayload(req models.SubmissionRequest) datatypes.JSONMap {
	req.PatientIdentifier = ""
	raw, err := json.Marshal(req)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	delete(out, "patient_identifier")
	return datatypes.JSONMap(out)
}
