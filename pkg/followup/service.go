package followup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pharmaguard/pipeline/pkg/caselink"
	"github.com/pharmaguard/pipeline/pkg/normalize"
	"github.com/pharmaguard/pipeline/pkg/reporter"
	"gorm.io/datatypes"
)

var (
	ErrInvalidTransition = errors.New("invalid follow-up status transition")
	ErrResponseRequired  = errors.New("completing a follow-up requires a response event")
	ErrReasonRequired    = errors.New("cancellation reason is required")
)

type Options struct {
	DueDays     int
	MaxAttempts int
}

func (o Options) withDefaults() Options {
	if o.DueDays <= 0 {
		o.DueDays = 7
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	return o
}

// Service creates follow-up requests from fired triggers and drives each
// request's state machine.
type Service struct {
	repo     *Repository
	caseRepo *caselink.Repository
	opts     Options
}

func NewService(repo *Repository, caseRepo *caselink.Repository, opts Options) *Service {
	return &Service{repo: repo, caseRepo: caseRepo, opts: opts.withDefaults()}
}

// CreateFromTriggers materializes one request per fired trigger and flags
// the case as pending follow-up. The reporter is attached as the target
// only when contact is permitted.
func (s *Service) CreateFromTriggers(ctx context.Context, c *caselink.CaseMaster, eventID string, triggers []Trigger, rep *reporter.Reporter) ([]Request, error) {
	if len(triggers) == 0 {
		return nil, nil
	}

	due := time.Now().UTC().AddDate(0, 0, s.opts.DueDays)
	created := make([]Request, 0, len(triggers))

	for _, trig := range triggers {
		questions, err := json.Marshal(trig.Questions)
		if err != nil {
			return nil, fmt.Errorf("marshaling questions: %w", err)
		}

		req := Request{
			CaseID:         c.ID,
			EventID:        eventID,
			Reason:         trig.Reason,
			ReasonDetails:  trig.Details,
			Questions:      datatypes.JSON(questions),
			Status:         StatusPending,
			AssignedToType: "agent",
			Priority:       RequestPriority(c.Priority),
			DueBy:          &due,
			MaxAttempts:    s.opts.MaxAttempts,
		}
		if len(trig.MissingFields) > 0 {
			missing, err := json.Marshal(trig.MissingFields)
			if err != nil {
				return nil, fmt.Errorf("marshaling missing fields: %w", err)
			}
			req.MissingFields = datatypes.JSON(missing)
		}
		if rep != nil && rep.ConsentToContact {
			req.TargetReporter = rep.ID
			req.TargetContact = rep.Contact
		}

		if err := s.repo.Create(ctx, &req); err != nil {
			return nil, err
		}
		created = append(created, req)
	}

	if !c.HasPendingFollowUp {
		c.HasPendingFollowUp = true
		if err := s.caseRepo.Save(ctx, c); err != nil {
			return nil, err
		}
	}

	return created, nil
}

// EvaluateAndCreate runs trigger evaluation and persists the results.
func (s *Service) EvaluateAndCreate(ctx context.Context, c *caselink.CaseMaster, eventID string, res normalize.Result, rep *reporter.Reporter) ([]Request, error) {
	return s.CreateFromTriggers(ctx, c, eventID, Evaluate(res), rep)
}

// Assign moves a pending request to in_progress.
func (s *Service) Assign(ctx context.Context, req *Request, assignedToType, assignedTo string) error {
	if req.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, StatusInProgress)
	}
	req.Status = StatusInProgress
	req.AssignedToType = assignedToType
	req.AssignedTo = assignedTo
	return s.repo.Save(ctx, req)
}

// Complete closes a request against its response event and clears the
// case's pending flag when it was the last pending request.
func (s *Service) Complete(ctx context.Context, req *Request, responseEventID, summary, actor string) error {
	if req.Status.terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, StatusCompleted)
	}
	if responseEventID == "" {
		return ErrResponseRequired
	}

	now := time.Now().UTC()
	req.Status = StatusCompleted
	req.ResponseEventID = responseEventID
	req.ResponseSummary = summary
	req.CompletedAt = &now
	req.CompletedBy = actor
	if err := s.repo.Save(ctx, req); err != nil {
		return err
	}

	return s.clearPendingFlagIfDone(ctx, req)
}

// Cancel terminates a request under a mandatory reason.
func (s *Service) Cancel(ctx context.Context, req *Request, reason string) error {
	if req.Status.terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, StatusCancelled)
	}
	if reason == "" {
		return ErrReasonRequired
	}
	req.Status = StatusCancelled
	req.ResponseSummary = reason
	if err := s.repo.Save(ctx, req); err != nil {
		return err
	}
	return s.clearPendingFlagIfDone(ctx, req)
}

// RecordAttempt bumps the attempt counter after a notification goes out.
// Exhausting attempts does not close the request: a response to the final
// attempt stays acceptable until its deadline passes.
func (s *Service) RecordAttempt(ctx context.Context, req *Request) error {
	if req.Status.terminal() {
		return fmt.Errorf("%w: attempt on %s request", ErrInvalidTransition, req.Status)
	}
	req.recordAttempt(time.Now().UTC(), s.opts.DueDays)
	return s.repo.Save(ctx, req)
}

// recordAttempt is the attempt bookkeeping. Each reminder opens a fresh
// response window; the first dispatch keeps the original deadline.
func (r *Request) recordAttempt(now time.Time, dueDays int) {
	r.AttemptCount++
	r.LastAttemptAt = &now
	if r.AttemptCount > 1 {
		due := now.AddDate(0, 0, dueDays)
		r.DueBy = &due
	}
}

// Fail marks a request past its deadline with no attempts left as failed
// rather than silently dropping it.
func (s *Service) Fail(ctx context.Context, req *Request) error {
	if req.Status.terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, StatusFailed)
	}
	req.Status = StatusFailed
	if err := s.repo.Save(ctx, req); err != nil {
		return err
	}
	return s.clearPendingFlagIfDone(ctx, req)
}

func (s *Service) clearPendingFlagIfDone(ctx context.Context, req *Request) error {
	pending, err := s.repo.CountPendingForCase(ctx, req.CaseID, req.ID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}

	c, err := s.caseRepo.Get(ctx, req.CaseID)
	if err != nil {
		if errors.Is(err, caselink.ErrCaseNotFound) {
			return nil
		}
		return err
	}
	if c.HasPendingFollowUp {
		c.HasPendingFollowUp = false
		return s.caseRepo.Save(ctx, c)
	}
	return nil
}
