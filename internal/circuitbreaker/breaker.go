package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

type Settings struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

func New(s Settings, log *slog.Logger) *Breaker {
	failures := s.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Breaker{cb: cb}
}

// Execute runs fn through the breaker. Errors for which ignore returns true
// are passed through without counting as failures.
func Execute[T any](b *Breaker, fn func() (T, error), ignore func(error) bool) (T, error) {
	var zero T
	var passthrough error

	v, err := b.cb.Execute(func() (any, error) {
		res, err := fn()
		if err != nil && ignore != nil && ignore(err) {
			passthrough = err
			return res, nil
		}
		return res, err
	})
	if passthrough != nil {
		return zero, passthrough
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, ErrOpen
	}
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	return v.(T), nil
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}
