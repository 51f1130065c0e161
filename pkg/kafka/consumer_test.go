package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	errs  []error
	calls int
}

func (h *stubHandler) Topic() string { return "t" }

func (h *stubHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= len(h.errs) {
		return h.errs[h.calls-1]
	}
	return nil
}

func newTestConsumer(t *testing.T) *Consumer {
	t.Helper()
	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)
	return c
}

func TestDispatchRetriesTransientErrors(t *testing.T) {
	c := newTestConsumer(t)
	h := &stubHandler{errs: []error{errors.New("boom"), errors.New("boom")}}

	attempts, err := c.dispatch(context.Background(), h, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDispatchGivesUpAfterRetryMax(t *testing.T) {
	c := newTestConsumer(t)
	boom := errors.New("boom")
	h := &stubHandler{errs: []error{boom, boom, boom, boom}}

	attempts, err := c.dispatch(context.Background(), h, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}

func TestDispatchDoesNotRetryPermanent(t *testing.T) {
	c := newTestConsumer(t)
	h := &stubHandler{errs: []error{Permanent(errors.New("bad payload"))}}

	attempts, err := c.dispatch(context.Background(), h, nil)
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, 1, attempts)
}

type panicHandler struct{}

func (panicHandler) Topic() string                        { return "t" }
func (panicHandler) Handle(context.Context, []byte) error { panic("nil map") }

func TestDispatchTurnsPanicIntoPermanent(t *testing.T) {
	c := newTestConsumer(t)
	attempts, err := c.dispatch(context.Background(), panicHandler{}, nil)
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, 1, attempts)
}

func TestBackoffWithinRange(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer(nil)
	assert.Error(t, err)
}
