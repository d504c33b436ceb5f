package followup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pharmaguard/pipeline/pkg/common/kafka"
	"github.com/pharmaguard/pipeline/pkg/common/logger"
)

// Dispatcher polls for due follow-up requests, mints a response token for
// each, and publishes an outbound notification. Publish failures go to the
// dead letter topic so a broker outage never loses a request.
type Dispatcher struct {
	svc      *Service
	repo     *Repository
	tokens   *TokenStore
	producer *kafka.Producer
	dlq      *kafka.Producer
	interval time.Duration
}

func NewDispatcher(svc *Service, repo *Repository, tokens *TokenStore, producer, dlq *kafka.Producer, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Dispatcher{
		svc:      svc,
		repo:     repo,
		tokens:   tokens,
		producer: producer,
		dlq:      dlq,
		interval: interval,
	}
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchDue(ctx); err != nil {
				logger.Log.WithError(err).Error("Follow-up dispatch cycle failed")
			}
		}
	}
}

// DispatchDue fails exhausted requests, then processes one batch of due
// ones.
func (d *Dispatcher) DispatchDue(ctx context.Context) error {
	now := time.Now().UTC()

	overdue, err := d.repo.ListOverdue(ctx, now, 100)
	if err != nil {
		return err
	}
	for i := range overdue {
		req := &overdue[i]
		if err := d.svc.Fail(ctx, req); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"request_id": req.ID,
			}).Error("Failed to mark overdue follow-up request")
			continue
		}
		logger.Log.WithFields(map[string]interface{}{
			"request_id": req.ID,
			"case_id":    req.CaseID,
			"attempts":   req.AttemptCount,
		}).Warn("Follow-up request failed after exhausting attempts")
	}

	due, err := d.repo.ListDue(ctx, now, 100)
	if err != nil {
		return err
	}

	for i := range due {
		req := &due[i]
		if err := d.dispatch(ctx, req); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"request_id": req.ID,
				"case_id":    req.CaseID,
			}).Error("Failed to dispatch follow-up request")
			continue
		}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) error {
	token, err := d.tokens.Issue(ctx, req.ID)
	if err != nil {
		return err
	}

	var questions []string
	if len(req.Questions) > 0 {
		if err := json.Unmarshal(req.Questions, &questions); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"request_id": req.ID,
			}).Warn("Unreadable questions on follow-up request")
		}
	}

	payload := map[string]interface{}{
		"request_id":     req.ID,
		"case_id":        req.CaseID,
		"reason":         string(req.Reason),
		"reason_details": req.ReasonDetails,
		"questions":      questions,
		"priority":       req.Priority,
		"target_contact": req.TargetContact,
		"response_token": token,
		"attempt":        req.AttemptCount + 1,
	}

	if err := d.producer.PublishEvent(ctx, "followup.notification", "followup-dispatcher", payload); err != nil {
		if dlqErr := d.dlq.PublishEvent(ctx, "followup.notification.failed", "followup-dispatcher", payload); dlqErr != nil {
			logger.Log.WithError(dlqErr).WithFields(map[string]interface{}{
				"request_id": req.ID,
			}).Error("Dead letter publish failed")
			return err
		}
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"request_id": req.ID,
		}).Warn("Notification routed to dead letter topic")
	}

	if err := d.svc.RecordAttempt(ctx, req); err != nil {
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"request_id": req.ID,
		"case_id":    req.CaseID,
		"attempt":    req.AttemptCount,
		"status":     req.Status,
	}).Info("Follow-up request dispatched")
	return nil
}
