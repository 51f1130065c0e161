package repository

import (
	"context"
	"sync"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	pkgkafka "CoinRadar/pkg/kafka"
	applogger "CoinRadar/pkg/logger"
	"CoinRadar/pkg/queue"
)

// SignalEmittedType is the queue message type of published signal events.
const SignalEmittedType = "signal.emitted"

// KafkaNotifier publishes signal events keyed by symbol.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaNotifier(producer *pkgkafka.Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, ev models.SignalEvent) error {
	return n.producer.Publish(ctx, n.topic, []byte(ev.Signal.Symbol), ev)
}

func (n *KafkaNotifier) Close() error {
	if n.producer != nil {
		return n.producer.Close()
	}
	return nil
}

// LogNotifier writes signal events to the log; used when no broker is configured.
type LogNotifier struct {
	l *applogger.Logger

	mu     sync.Mutex
	events []models.SignalEvent
	keep   int
}

func NewLogNotifier(l *applogger.Logger, keep int) *LogNotifier {
	if l == nil {
		l = applogger.Nop()
	}
	return &LogNotifier{l: l, keep: keep}
}

func (n *LogNotifier) Notify(_ context.Context, ev models.SignalEvent) error {
	n.l.Info("signal emitted",
		applogger.String("id", ev.Signal.ID),
		applogger.String("symbol", ev.Signal.Symbol),
		applogger.Float64("score", ev.Signal.Score),
		applogger.String("price", ev.PriceText),
		applogger.Strings("analysis", ev.Signal.Analysis),
	)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	if n.keep > 0 && len(n.events) > n.keep {
		n.events = append([]models.SignalEvent(nil), n.events[len(n.events)-n.keep:]...)
	}
	return nil
}

// Events returns the retained events, oldest first.
func (n *LogNotifier) Events() []models.SignalEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.SignalEvent(nil), n.events...)
}

func (n *LogNotifier) Close() error { return nil }

// QueueNotifier enqueues signal events on a Redis list. The queue's owner stops it.
type QueueNotifier struct {
	pub queue.Publisher
}

func NewQueueNotifier(pub queue.Publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

func (n *QueueNotifier) Notify(ctx context.Context, ev models.SignalEvent) error {
	return n.pub.Enqueue(ctx, SignalEmittedType, ev)
}

func (n *QueueNotifier) Close() error { return nil }

var (
	_ domrepo.Notifier = (*KafkaNotifier)(nil)
	_ domrepo.Notifier = (*LogNotifier)(nil)
	_ domrepo.Notifier = (*QueueNotifier)(nil)
)
