package followup

import (
	"context"
	"errors"

	"github.com/pharmaguard/pipeline/pkg/audit"
	"github.com/pharmaguard/pipeline/pkg/caselink"
	"github.com/pharmaguard/pipeline/pkg/common/logger"
	"github.com/pharmaguard/pipeline/pkg/common/models"
	"gorm.io/gorm"
)

// ResponseListener completes follow-up requests from inbound response
// events. The outbound channel delivers responses onto a topic carrying
// the single-use token minted at dispatch; the token is consumed only
// after the completion commits, so a crash mid-handle leaves it
// redeemable.
type ResponseListener struct {
	db     *gorm.DB
	tokens *TokenStore
	opts   Options
}

func NewResponseListener(db *gorm.DB, tokens *TokenStore, opts Options) *ResponseListener {
	return &ResponseListener{db: db, tokens: tokens, opts: opts.withDefaults()}
}

// Handle processes one response event. Malformed or stale responses are
// logged and dropped; only storage failures are returned so the consumer
// retries them.
func (l *ResponseListener) Handle(ctx context.Context, event models.Event) error {
	token, _ := event.Data["response_token"].(string)
	responseEventID, _ := event.Data["response_event_id"].(string)
	summary, _ := event.Data["response_summary"].(string)

	if token == "" || responseEventID == "" {
		logger.Log.WithFields(map[string]interface{}{
			"event_id": event.ID,
		}).Warn("Follow-up response missing token or response event id")
		return nil
	}

	requestID, err := l.tokens.Resolve(ctx, token)
	if errors.Is(err, ErrTokenNotFound) {
		logger.Log.WithFields(map[string]interface{}{
			"event_id": event.ID,
		}).Warn("Follow-up response carries an expired or already-used token")
		return nil
	}
	if err != nil {
		return err
	}

	actor := event.Source
	if actor == "" {
		actor = "followup-channel"
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		req, err := repo.Get(ctx, requestID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				logger.Log.WithFields(map[string]interface{}{
					"request_id": requestID,
				}).Warn("Follow-up response for a missing request")
				return nil
			}
			return err
		}
		before := audit.Snapshot(req)

		svc := NewService(repo, caselink.NewRepository(tx), l.opts)
		if err := svc.Complete(ctx, req, responseEventID, summary, actor); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				logger.Log.WithFields(map[string]interface{}{
					"request_id": req.ID,
					"status":     req.Status,
				}).Warn("Follow-up response arrived for a closed request")
				return nil
			}
			return err
		}

		return audit.NewRecorder(tx).Updated(ctx, audit.Record{
			Actor:            actor,
			EntityType:       "FollowUpRequest",
			EntityID:         req.ID,
			EntityIdentifier: "FollowUp-" + req.ID,
			Before:           before,
			After:            req,
			Reason:           "follow-up response received",
			RequestID:        event.ID,
		})
	})
	if err != nil {
		return err
	}

	if _, err := l.tokens.Consume(ctx, token); err != nil && !errors.Is(err, ErrTokenNotFound) {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"request_id": requestID,
		}).Warn("Failed to invalidate follow-up response token")
	}

	logger.Log.WithFields(map[string]interface{}{
		"request_id":        requestID,
		"response_event_id": responseEventID,
	}).Info("Follow-up request completed from response")
	return nil
}
