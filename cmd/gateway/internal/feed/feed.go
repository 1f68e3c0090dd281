// Package feed pulls or streams ticks from upstream market-data sources and hands normalized
// results to a Sink. Adapters run until their context is cancelled and never stop on
// upstream failure.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/shubham-shewale/showmarket/pkg/models"
)

const (
	MaxCandleLimit     = 500
	DefaultCandleLimit = 200
)

// ErrUpstreamUnavailable matches every *UpstreamError.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// UpstreamError is a failed request to an upstream provider: transport error, non-2xx status,
// or an undecodable body. StatusCode is 0 when no response was received.
type UpstreamError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// Sink receives normalized ticks. The hub and the relays implement it.
type Sink interface {
	Publish(tick models.PriceTick)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(models.PriceTick)

func (f SinkFunc) Publish(tick models.PriceTick) { f(tick) }

// Sinks publishes to each sink in order.
type Sinks []Sink

func (s Sinks) Publish(tick models.PriceTick) {
	for _, sink := range s {
		sink.Publish(tick)
	}
}

// Adapter produces ticks until ctx is done.
type Adapter interface {
	Name() string
	Start(ctx context.Context, sink Sink)
}

// QuoteFetcher fetches the current price of one symbol.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (models.PriceTick, error)
}

// CandleSource serves on-demand candle queries.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// for deterministic testing
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// for deterministic values
type Rand interface {
	Intn(n int) int
	Float64() float64
}

type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

type RealRand struct{ *rand.Rand }

func (r RealRand) Intn(n int) int   { return r.Rand.Intn(n) }
func (r RealRand) Float64() float64 { return r.Rand.Float64() }

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultCandleLimit
	}
	if limit > MaxCandleLimit {
		return MaxCandleLimit
	}
	return limit
}

// sleepContext waits for d or until ctx is done, reporting whether the wait completed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
