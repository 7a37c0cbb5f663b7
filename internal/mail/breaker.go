package mail

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"yamdb/internal/metrics"
)

// ErrUnavailable is returned while the circuit is open.
var ErrUnavailable = errors.New("mail relay unavailable")

// BreakerSender stops calling a failing relay for a while after
// consecutive failures.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerSender(next Sender, maxFailures uint32, openTimeout time.Duration, logger *slog.Logger) *BreakerSender {
	if maxFailures == 0 {
		maxFailures = 5
	}
	metrics.MailBreakerState.Set(0)
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "mail",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Mail circuit breaker state changed", slog.String("from", from.String()), slog.String("to", to.String()))
			metrics.MailBreakerState.Set(stateValue(to))
		},
	})
	return &BreakerSender{next: next, cb: cb}
}

func (s *BreakerSender) Send(ctx context.Context, msg Message) error {
	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.MailFailures.WithLabelValues("circuit_open").Inc()
		return errors.Join(ErrUnavailable, err)
	}
	if err != nil {
		metrics.MailFailures.WithLabelValues("send").Inc()
	}
	return err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
