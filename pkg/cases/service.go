package cases

import (
	"context"
	"errors"
	"fmt"

	"github.com/pharmaguard/pipeline/pkg/audit"
	"github.com/pharmaguard/pipeline/pkg/caselink"
	"github.com/pharmaguard/pipeline/pkg/common/models"
	"github.com/pharmaguard/pipeline/pkg/followup"
	"github.com/pharmaguard/pipeline/pkg/intake"
	"github.com/pharmaguard/pipeline/pkg/normalize"
	"github.com/pharmaguard/pipeline/pkg/scoring"
	"gorm.io/gorm"
)

var ErrInvalidStatus = errors.New("invalid case status")

// Service is the case management surface: queries, manual overrides, and
// follow-up workflow actions. Every mutation runs in a transaction with
// its audit entry.
type Service struct {
	db       *gorm.DB
	followUp followup.Options
}

func NewService(db *gorm.DB, followUpOpts followup.Options) *Service {
	return &Service{db: db, followUp: followUpOpts}
}

type ActionContext struct {
	Actor     string
	Reason    string
	RequestID string
}

type Detail struct {
	Case         *caselink.CaseMaster     `json:"case"`
	Events       []intake.ExperienceEvent `json:"events"`
	Experiences  []normalize.Experience   `json:"experiences"`
	ScoreHistory []scoring.ScoreHistory   `json:"score_history"`
	FollowUps    []followup.Request       `json:"followups"`
}

func (s *Service) List(ctx context.Context, filter models.CaseFilter) ([]caselink.CaseMaster, int64, error) {
	return caselink.NewRepository(s.db).List(ctx, caselink.ListFilter{
		Status:        filter.Status,
		Priority:      filter.Priority,
		MinScore:      filter.MinScore,
		MaxScore:      filter.MaxScore,
		PendingFollow: filter.PendingFollow,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
}

func (s *Service) Detail(ctx context.Context, caseID string) (*Detail, error) {
	c, err := caselink.NewRepository(s.db).Get(ctx, caseID)
	if err != nil {
		return nil, err
	}

	events, err := intake.NewRepository(s.db).ListByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	eventIDs := make([]string, 0, len(events))
	for _, ev := range events {
		eventIDs = append(eventIDs, ev.ID)
	}
	experiences, err := normalize.NewRepository(s.db).ListByEventIDs(ctx, eventIDs)
	if err != nil {
		return nil, err
	}

	history, err := scoring.NewRepository(s.db).History(ctx, caseID, 0)
	if err != nil {
		return nil, err
	}

	followups, err := followup.NewRepository(s.db).List(ctx, followup.ListFilter{CaseID: caseID})
	if err != nil {
		return nil, err
	}

	return &Detail{
		Case:         c,
		Events:       events,
		Experiences:  experiences,
		ScoreHistory: history,
		FollowUps:    followups,
	}, nil
}

func (s *Service) ScoreHistory(ctx context.Context, caseID string) ([]scoring.ScoreHistory, error) {
	if _, err := caselink.NewRepository(s.db).Get(ctx, caseID); err != nil {
		return nil, err
	}
	return scoring.NewRepository(s.db).History(ctx, caseID, 0)
}

// OverrideScore applies a manual polarity/strength to the case through the
// append-only history, with the mandatory reason recorded in the ledger.
func (s *Service) OverrideScore(ctx context.Context, caseID string, req models.ScoreOverrideRequest, action ActionContext) (*scoring.ScoreHistory, error) {
	var entry *scoring.ScoreHistory

	err := s.db.Transaction(func(tx *gorm.DB) error {
		caseRepo := caselink.NewRepository(tx)
		c, err := caseRepo.GetForUpdate(ctx, caseID)
		if err != nil {
			return err
		}
		before := audit.Snapshot(c)

		engine := scoring.NewEngine(scoring.NewRepository(tx), caseRepo)
		entry, err = engine.Override(ctx, scoring.OverrideInput{
			Case:     c,
			Polarity: normalize.Polarity(req.Polarity),
			Strength: req.Strength,
			Actor:    action.Actor,
			Reason:   req.Reason,
		})
		if err != nil {
			return err
		}

		return audit.NewRecorder(tx).Overridden(ctx, audit.Record{
			Actor:            action.Actor,
			EntityType:       "CaseMaster",
			EntityID:         c.ID,
			EntityIdentifier: c.CaseNumber,
			Before:           before,
			After:            c,
			Reason:           req.Reason,
			RequestID:        action.RequestID,
		})
	})
	return entry, err
}

// OverrideNormalization corrects a stored polarity/strength call under a
// mandatory reason and rescores the linked case from its remaining
// evidence, all in one transaction.
func (s *Service) OverrideNormalization(ctx context.Context, eventID string, req models.NormalizationOverrideRequest, action ActionContext) (*normalize.Experience, error) {
	polarity := normalize.Polarity(req.Polarity)
	if !polarity.Valid() {
		return nil, scoring.ErrInvalidPolarity
	}
	if req.Strength < 0 || req.Strength > 2 {
		return nil, scoring.ErrInvalidStrength
	}
	if req.Reason == "" {
		return nil, scoring.ErrReasonRequired
	}

	var exp *normalize.Experience
	err := s.db.Transaction(func(tx *gorm.DB) error {
		expRepo := normalize.NewRepository(tx)
		var err error
		exp, err = expRepo.GetByEventID(ctx, eventID)
		if err != nil {
			return err
		}
		before := audit.Snapshot(exp)

		if err := expRepo.ApplyOverride(ctx, exp, polarity, req.Strength, action.Actor, req.Reason); err != nil {
			return err
		}

		event, err := intake.NewRepository(tx).Get(ctx, eventID)
		if err != nil {
			return err
		}
		if event.CaseID != "" {
			caseRepo := caselink.NewRepository(tx)
			c, err := caseRepo.GetForUpdate(ctx, event.CaseID)
			if err != nil {
				return err
			}
			engine := scoring.NewEngine(scoring.NewRepository(tx), caseRepo)
			if err := s.rescoreFromEvidence(ctx, tx, engine, c); err != nil {
				return err
			}
		}

		return audit.NewRecorder(tx).Overridden(ctx, audit.Record{
			Actor:            action.Actor,
			EntityType:       "NormalizedExperience",
			EntityID:         exp.ID,
			EntityIdentifier: "Normalization-" + exp.ID,
			Before:           before,
			After:            exp,
			Reason:           req.Reason,
			RequestID:        action.RequestID,
		})
	})
	return exp, err
}

// UpdateStatus moves the case through its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, caseID string, req models.StatusUpdateRequest, action ActionContext) (*caselink.CaseMaster, error) {
	status := caselink.CaseStatus(req.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}

	var updated *caselink.CaseMaster
	err := s.db.Transaction(func(tx *gorm.DB) error {
		caseRepo := caselink.NewRepository(tx)
		c, err := caseRepo.GetForUpdate(ctx, caseID)
		if err != nil {
			return err
		}
		if c.Status == status {
			updated = c
			return nil
		}
		before := audit.Snapshot(c)

		c.Status = status
		if err := caseRepo.Save(ctx, c); err != nil {
			return err
		}
		updated = c

		return audit.NewRecorder(tx).Updated(ctx, audit.Record{
			Actor:            action.Actor,
			EntityType:       "CaseMaster",
			EntityID:         c.ID,
			EntityIdentifier: c.CaseNumber,
			Before:           before,
			After:            c,
			Reason:           req.Reason,
			RequestID:        action.RequestID,
		})
	})
	return updated, err
}

func (s *Service) AuditHistory(ctx context.Context, caseID string, limit int) ([]audit.Entry, error) {
	if _, err := caselink.NewRepository(s.db).Get(ctx, caseID); err != nil {
		return nil, err
	}
	return audit.NewRecorder(s.db).EntityHistory(ctx, "CaseMaster", caseID, limit)
}

func (s *Service) ListFollowUps(ctx context.Context, filter followup.ListFilter) ([]followup.Request, error) {
	return followup.NewRepository(s.db).List(ctx, filter)
}

func (s *Service) AssignFollowUp(ctx context.Context, id string, req models.AssignFollowUpRequest, action ActionContext) (*followup.Request, error) {
	return s.followUpAction(ctx, id, action, "follow-up assigned", func(svc *followup.Service, r *followup.Request) error {
		return svc.Assign(ctx, r, req.AssignedToType, req.AssignedTo)
	})
}

func (s *Service) CompleteFollowUp(ctx context.Context, id string, req models.CompleteFollowUpRequest, action ActionContext) (*followup.Request, error) {
	return s.followUpAction(ctx, id, action, "follow-up completed", func(svc *followup.Service, r *followup.Request) error {
		return svc.Complete(ctx, r, req.ResponseEventID, req.ResponseSummary, action.Actor)
	})
}

func (s *Service) CancelFollowUp(ctx context.Context, id string, req models.CancelFollowUpRequest, action ActionContext) (*followup.Request, error) {
	return s.followUpAction(ctx, id, action, "follow-up cancelled: "+req.Reason, func(svc *followup.Service, r *followup.Request) error {
		return svc.Cancel(ctx, r, req.Reason)
	})
}

func (s *Service) followUpAction(ctx context.Context, id string, action ActionContext, reason string, fn func(*followup.Service, *followup.Request) error) (*followup.Request, error) {
	var result *followup.Request

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := followup.NewRepository(tx)
		req, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		before := audit.Snapshot(req)

		svc := followup.NewService(repo, caselink.NewRepository(tx), s.followUp)
		if err := fn(svc, req); err != nil {
			return err
		}
		result = req

		return audit.NewRecorder(tx).Updated(ctx, audit.Record{
			Actor:            action.Actor,
			EntityType:       "FollowUpRequest",
			EntityID:         req.ID,
			EntityIdentifier: "FollowUp-" + req.ID,
			Before:           before,
			After:            req,
			Reason:           reason,
			RequestID:        action.RequestID,
		})
	})
	return result, err
}

// Relink moves an event to a different case and rescores both sides from
// their remaining evidence.
func (s *Service) Relink(ctx context.Context, eventID string, req models.RelinkRequest, action ActionContext) (*caselink.OverrideResult, error) {
	var result *caselink.OverrideResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		eventRepo := intake.NewRepository(tx)
		event, err := eventRepo.Get(ctx, eventID)
		if err != nil {
			return err
		}
		eventDate := event.CreatedAt
		if event.EventDate != nil {
			eventDate = *event.EventDate
		}

		caseRepo := caselink.NewRepository(tx)
		linker := caselink.NewLinker(caseRepo, 0)
		before := audit.Snapshot(event)

		result, err = linker.Override(ctx, caselink.OverrideInput{
			EventID:   eventID,
			EventDate: eventDate,
			NewCaseID: req.NewCaseID,
			Actor:     action.Actor,
			Reason:    req.Reason,
		})
		if err != nil {
			return err
		}

		if err := eventRepo.SetCase(ctx, eventID, req.NewCaseID); err != nil {
			return err
		}

		engine := scoring.NewEngine(scoring.NewRepository(tx), caseRepo)
		rescore := []*caselink.CaseMaster{result.NewCase}
		if result.OldCase != nil {
			rescore = append(rescore, result.OldCase)
		}
		for _, c := range rescore {
			if err := s.rescoreFromEvidence(ctx, tx, engine, c); err != nil {
				return err
			}
		}

		event.CaseID = req.NewCaseID
		return audit.NewRecorder(tx).Overridden(ctx, audit.Record{
			Actor:            action.Actor,
			EntityType:       "ExperienceEvent",
			EntityID:         eventID,
			EntityIdentifier: "Event-" + eventID,
			Before:           before,
			After:            event,
			Reason:           req.Reason,
			RequestID:        action.RequestID,
		})
	})
	return result, err
}

func (s *Service) rescoreFromEvidence(ctx context.Context, tx *gorm.DB, engine *scoring.Engine, c *caselink.CaseMaster) error {
	events, err := intake.NewRepository(tx).ListByCase(ctx, c.ID)
	if err != nil {
		return err
	}
	eventIDs := make([]string, 0, len(events))
	for _, ev := range events {
		eventIDs = append(eventIDs, ev.ID)
	}
	experiences, err := normalize.NewRepository(tx).ListByEventIDs(ctx, eventIDs)
	if err != nil {
		return err
	}
	_, err = engine.Recalculate(ctx, c, experiences)
	return err
}

// SimilarityCheck runs the advisory duplicate heuristic against recent
// open cases. It never affects linking.
func (s *Service) SimilarityCheck(ctx context.Context, req models.SimilarityCheckRequest) (*models.SimilarityCheckResponse, error) {
	caseRepo := caselink.NewRepository(s.db)
	recent, err := caseRepo.RecentOpenCases(ctx, 50)
	if err != nil {
		return nil, err
	}

	eventRepo := intake.NewRepository(s.db)
	candidates := make([]caselink.SimilarityCandidate, 0, len(recent))
	for i := range recent {
		c := &recent[i]
		narrative := ""
		if events, err := eventRepo.ListByCase(ctx, c.ID); err == nil && len(events) > 0 {
			narrative = events[len(events)-1].ObservedEvents
		}
		candidates = append(candidates, caselink.SimilarityCandidate{
			CaseID:         c.ID,
			CaseNumber:     c.CaseNumber,
			DrugName:       c.DrugNameCanonical,
			ObservedEvents: narrative,
			CreatedAt:      c.CreatedAt,
		})
	}

	scores := caselink.NewSimilarityMatcher().Rank(caselink.SimilarityInput{
		DrugName:       req.DrugName,
		ObservedEvents: req.ObservedEvents,
		Age:            req.Age,
		Gender:         req.Gender,
	}, candidates, 5)

	matches := make([]models.SimilarityMatch, 0, len(scores))
	for _, sc := range scores {
		matches = append(matches, models.SimilarityMatch{
			CaseID:     sc.CaseID,
			CaseNumber: sc.CaseNumber,
			Score:      sc.Score,
			Breakdown:  sc.Breakdown,
			Confidence: sc.Confidence,
		})
	}

	return &models.SimilarityCheckResponse{
		Matches:        matches,
		Recommendation: caselink.Recommendation(scores),
	}, nil
}
