package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	pkgkafka "CoinRadar/pkg/kafka"
	applogger "CoinRadar/pkg/logger"
	"CoinRadar/pkg/queue"
)

// FeedbackJobType is the queue message type carrying feedback reports.
const FeedbackJobType = "feedback"

// FeedbackHandler applies outcome reports arriving on a Kafka topic.
// Reports that can never apply are marked permanent so they are committed without retry.
type FeedbackHandler struct {
	topic     string
	lifecycle *SignalLifecycle
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

func NewFeedbackHandler(topic string, lifecycle *SignalLifecycle, metrics domrepo.Metrics, l *applogger.Logger) *FeedbackHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &FeedbackHandler{topic: topic, lifecycle: lifecycle, metrics: metrics, l: l}
}

func (h *FeedbackHandler) Topic() string { return h.topic }

// incoming message schema: {signal_id, outcome, comment} or {callback, comment}
func (h *FeedbackHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.FeedbackEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("feedback_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode feedback: %w", err))
	}
	sig, err := h.lifecycle.Apply(ctx, ev)
	if err != nil {
		if isRejectedFeedback(err) {
			h.metrics.RecordError("feedback_rejected")
			h.l.Warn("feedback rejected",
				applogger.String("signal_id", ev.SignalID),
				applogger.String("callback", ev.Callback),
				applogger.Error(err),
			)
			return pkgkafka.Permanent(err)
		}
		return err
	}
	h.l.Debug("feedback applied", applogger.String("signal_id", sig.ID), applogger.String("status", string(sig.Status)))
	return nil
}

func isRejectedFeedback(err error) bool {
	return errors.Is(err, models.ErrSignalNotFound) ||
		errors.Is(err, models.ErrSignalClosed) ||
		errors.Is(err, models.ErrInvalidOutcome) ||
		errors.Is(err, models.ErrInvalidCallback)
}

// FeedbackJob runs the same handler for feedback delivered through the Redis queue.
type FeedbackJob struct {
	h *FeedbackHandler
}

func NewFeedbackJob(h *FeedbackHandler) *FeedbackJob { return &FeedbackJob{h: h} }

func (j *FeedbackJob) Type() string { return FeedbackJobType }

func (j *FeedbackJob) Handle(ctx context.Context, payload json.RawMessage) error {
	err := j.h.Handle(ctx, payload)
	if errors.Is(err, pkgkafka.ErrPermanent) {
		return queue.Permanent(err)
	}
	return err
}

var (
	_ pkgkafka.MessageHandler = (*FeedbackHandler)(nil)
	_ queue.Job               = (*FeedbackJob)(nil)
)
