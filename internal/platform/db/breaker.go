package db

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/medbook/medbook/internal/platform/apperr"
)

// BreakerSettings configures the store circuit breaker.
type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	Timeout     time.Duration
}

// BreakerTransactor guards a Transactor with a circuit breaker. Business
// outcomes (conflicts, validation, missing rows) never count as failures;
// only infrastructure errors open the circuit.
type BreakerTransactor struct {
	next Transactor
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerTransactor(next Transactor, s BreakerSettings, logger zerolog.Logger) *BreakerTransactor {
	if s.Name == "" {
		s.Name = "PostgreSQL"
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	maxFailures := s.MaxFailures

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || apperr.IsDomain(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return &BreakerTransactor{next: next, cb: cb}
}

func (b *BreakerTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.WithTx(ctx, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Wrap(err, "store unavailable")
	}
	return err
}

// State reports the breaker state ("closed", "half-open" or "open").
func (b *BreakerTransactor) State() string {
	return b.cb.State().String()
}
