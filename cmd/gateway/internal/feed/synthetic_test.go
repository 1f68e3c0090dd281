package feed_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/feed"
	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/testutils"
)

func TestSynthetic_Next(t *testing.T) {
	// Index 0 always; 0.5 means no movement, 1.0 means +0.5%
	mockRand := &testutils.MockRand{ValInt: 0, ValFloat: 0.5}
	mockClock := &testutils.MockClock{CurrentTime: time.UnixMilli(1000)}

	gen := feed.NewSynthetic(zap.NewNop(), []string{"BTCUSDT"}, map[string]float64{"BTCUSDT": 100}, time.Second, mockRand, mockClock)

	tick := gen.Next()
	assert.Equal(t, "BTCUSDT", tick.Symbol)
	assert.Equal(t, 100.0, tick.Price)
	assert.Equal(t, int64(1000), tick.ObservedAtMs)

	mockRand.ValFloat = 1.0
	tick = gen.Next()
	assert.InDelta(t, 100.5, tick.Price, 1e-9)
}

func TestSynthetic_DefaultBasePrice(t *testing.T) {
	gen := feed.NewSynthetic(zap.NewNop(), []string{"XYZUSDT"}, nil, time.Second,
		&testutils.MockRand{ValFloat: 0.5}, &testutils.MockClock{})
	assert.Equal(t, 100.0, gen.Next().Price)
}

func TestSynthetic_Start(t *testing.T) {
	mockClock := &testutils.MockClock{CurrentTime: time.Unix(0, 0)}
	gen := feed.NewSynthetic(zap.NewNop(), []string{"BTCUSDT"}, map[string]float64{"BTCUSDT": 42000}, time.Second,
		&testutils.MockRand{ValFloat: 0.5}, mockClock)
	sink := &testutils.MockSink{}

	// MockClock.Sleep returns immediately, so Start spins until the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	gen.Start(ctx, sink)

	ticks := sink.Ticks()
	require.NotEmpty(t, ticks)
	assert.Equal(t, 42000.0, ticks[0].Price)
	if len(ticks) > 1 {
		assert.Greater(t, ticks[1].ObservedAtMs, ticks[0].ObservedAtMs)
	}
}
