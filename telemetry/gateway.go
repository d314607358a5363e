package telemetry

import (
	"context"
	"errors"
	"fmt"

	"hotspot-advisor/metrics"
	"hotspot-advisor/models"

	"github.com/apex/log"
)

// Gateway is what the analysis engine needs from the telemetry network.
// All methods are safe for concurrent use.
type Gateway interface {
	FetchSnapshot(ctx context.Context, address string) (models.DeviceSnapshot, error)
	FetchRewardTotal(ctx context.Context, address string, windowDays int) (float64, error)
	FetchWitnessCount(ctx context.Context, address string) (int, error)
}

// Source is one origin of telemetry data, live or static.
type Source interface {
	Snapshot(ctx context.Context, address string) (models.DeviceSnapshot, error)
	RewardTotal(ctx context.Context, address string, windowDays int) (float64, error)
	WitnessCount(ctx context.Context, address string) (int, error)
}

var errNoLiveSource = errors.New("no live telemetry source configured")

// FetchError is returned when a snapshot could be fetched from neither the
// live source nor the fallback.
type FetchError struct {
	Call    string
	Address string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("telemetry %s for %s failed: %v", e.Call, e.Address, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one gateway call: a value tagged with where it
// came from, or a typed failure.
type Result[T any] struct {
	Value  T
	Source models.Source
	Err    error
}

// Client applies the fallback policy over a live source and an optional
// fallback source.
type Client struct {
	live     Source
	fallback Source
}

// NewClient creates a gateway. live or fallback may be nil. Without a
// fallback a failed snapshot surfaces as a *FetchError, while reward and
// witness calls resolve to zero.
func NewClient(live, fallback Source) *Client {
	return &Client{
		live:     live,
		fallback: fallback,
	}
}

func (c *Client) FetchSnapshot(ctx context.Context, address string) (models.DeviceSnapshot, error) {
	r := resolve(ctx, c, "snapshot", address, false,
		func(ctx context.Context, s Source) (models.DeviceSnapshot, error) {
			return s.Snapshot(ctx, address)
		})
	if r.Err != nil {
		return models.DeviceSnapshot{}, r.Err
	}
	snapshot := r.Value
	snapshot.Source = r.Source
	return snapshot, nil
}

func (c *Client) FetchRewardTotal(ctx context.Context, address string, windowDays int) (float64, error) {
	r := resolve(ctx, c, "reward_total", address, true,
		func(ctx context.Context, s Source) (float64, error) {
			return s.RewardTotal(ctx, address, windowDays)
		})
	return r.Value, r.Err
}

func (c *Client) FetchWitnessCount(ctx context.Context, address string) (int, error) {
	r := resolve(ctx, c, "witness_count", address, true,
		func(ctx context.Context, s Source) (int, error) {
			return s.WitnessCount(ctx, address)
		})
	return r.Value, r.Err
}

// resolve runs call against the live source and decides, on failure, whether
// the fallback source answers instead. A tolerant call that nothing can
// answer yields the zero value tagged as fallback data.
func resolve[T any](ctx context.Context, c *Client, name, address string, tolerant bool, call func(context.Context, Source) (T, error)) Result[T] {
	var (
		value T
		err   = errNoLiveSource
	)
	if c.live != nil {
		value, err = call(ctx, c.live)
		if err == nil {
			return Result[T]{Value: value, Source: models.SourceLive}
		}
	}

	if c.fallback != nil {
		fallbackValue, fallbackErr := call(ctx, c.fallback)
		if fallbackErr == nil {
			if c.live != nil {
				log.WithFields(log.Fields{
					"call":    name,
					"address": address,
				}).WithError(err).Warn("Live telemetry failed, using fallback data")
			}
			metrics.TelemetryFallbackTotal.WithLabelValues(name).Inc()
			return Result[T]{Value: fallbackValue, Source: models.SourceFallback}
		}
		err = errors.Join(err, fallbackErr)
	}

	var zero T
	if !tolerant {
		return Result[T]{Value: zero, Err: &FetchError{Call: name, Address: address, Err: err}}
	}
	log.WithFields(log.Fields{
		"call":    name,
		"address": address,
	}).WithError(err).Warn("Telemetry unavailable, using zero")
	metrics.TelemetryFallbackTotal.WithLabelValues(name).Inc()
	return Result[T]{Value: zero, Source: models.SourceFallback}
}
