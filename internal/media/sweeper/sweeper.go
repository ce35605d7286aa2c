// Package sweeper retries object-store deletions that the synchronous
// cleanup pass could not finish. It consumes catalog deletion events and
// deletes any object keys they carry; deletes are idempotent so reprocessing
// a message is harmless.
package sweeper

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/pleasantpearl/pleasantpearl-backend/internal/media"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/enums"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/outbox"
)

// attrEventType is the message attribute carrying the outbox event type.
const attrEventType = "event_type"

type keyDeleter interface {
	DeleteKeys(ctx context.Context, keys []string) media.CleanupReport
}

// deletedPayload mirrors the catalog deletion event body.
type deletedPayload struct {
	ProductID  string   `json:"productId"`
	ObjectKeys []string `json:"objectKeys"`
}

// Sweeper watches the catalog subscription for product deletion events and
// deletes the object keys they list.
type Sweeper struct {
	cleaner      keyDeleter
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

func New(cleaner keyDeleter, subscription *pubsub.Subscriber, logg *logger.Logger) (*Sweeper, error) {
	if cleaner == nil {
		return nil, errors.New("cleaner is required")
	}
	if subscription == nil {
		return nil, errors.New("catalog subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Sweeper{
		cleaner:      cleaner,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes deletion events until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process returns whether the message should be acked.
func (s *Sweeper) process(ctx context.Context, msg *pubsub.Message) bool {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes[attrEventType],
	})

	if msg.Attributes[attrEventType] != string(enums.OutboxEventProductDeleted) {
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		s.logg.Error(logCtx, "failed to decode event envelope", err)
		return true
	}

	var payload deletedPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		s.logg.Error(logCtx, "failed to decode deletion payload", err)
		return true
	}

	if len(payload.ObjectKeys) == 0 {
		return true
	}

	logCtx = s.logg.WithProductID(logCtx, payload.ProductID)
	report := s.cleaner.DeleteKeys(ctx, payload.ObjectKeys)
	if len(report.FailedKeys) > 0 {
		// Nack so the keys get another pass once the store recovers.
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"failed_keys": len(report.FailedKeys),
		})
		s.logg.Warn(logCtx, "sweep pass left objects behind, retrying")
		return false
	}

	logCtx = s.logg.WithFields(logCtx, map[string]any{"deleted_keys": report.Attempted})
	s.logg.Info(logCtx, "sweep pass completed")
	return true
}
