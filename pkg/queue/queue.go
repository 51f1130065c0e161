package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Job handles one message type.
type Job interface {
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// Publisher enqueues typed messages.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// ErrPermanent marks a message that will never succeed; it goes to the dead-letter list without retry.
var ErrPermanent = errors.New("permanent job failure")

// Permanent wraps err so the queue treats it as ErrPermanent.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Config holds the worker settings.
type Config struct {
	Workers     int
	RetryLimit  int
	RetryDelay  time.Duration
	PollTimeout time.Duration
	KeyPrefix   string
}

type Option func(*Config)

func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Workers = n
		}
	}
}

func WithRetry(limit int, delay time.Duration) Option {
	return func(c *Config) {
		if limit >= 0 {
			c.RetryLimit = limit
		}
		if delay > 0 {
			c.RetryDelay = delay
		}
	}
}

func WithPollTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PollTimeout = d
		}
	}
}

func WithKeyPrefix(prefix string) Option { return func(c *Config) { c.KeyPrefix = prefix } }

// Envelope is the stored form of a message.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeRetry
	outcomeDead
)

// decide maps a handler result to what happens to the envelope next.
func decide(env Envelope, err error, retryLimit int) outcome {
	switch {
	case err == nil:
		return outcomeDone
	case errors.Is(err, ErrPermanent):
		return outcomeDead
	case env.Attempts < retryLimit:
		return outcomeRetry
	default:
		return outcomeDead
	}
}
