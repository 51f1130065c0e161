package repository

import (
	"context"
	"errors"
	"testing"

	"CoinRadar/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	types    []string
	payloads []interface{}
	err      error
}

func (p *fakePublisher) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.types = append(p.types, msgType)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestQueueNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewQueueNotifier(pub)

	ev := models.SignalEvent{Signal: models.Signal{ID: "a", Symbol: "PEPE"}, PriceText: "$0.00001230"}
	require.NoError(t, n.Notify(context.Background(), ev))
	assert.Equal(t, []string{SignalEmittedType}, pub.types)
	assert.Equal(t, ev, pub.payloads[0])
	assert.NoError(t, n.Close())

	pub.err = errors.New("redis down")
	assert.Error(t, n.Notify(context.Background(), ev))
}

func TestLogNotifierKeepsTail(t *testing.T) {
	n := NewLogNotifier(nil, 2)
	for _, sym := range []string{"A", "B", "C"} {
		require.NoError(t, n.Notify(context.Background(), models.SignalEvent{Signal: models.Signal{Symbol: sym}}))
	}
	events := n.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "B", events[0].Signal.Symbol)
	assert.Equal(t, "C", events[1].Signal.Symbol)
}
