package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// NewCircuitBreaker opens after three consecutive failures and probes again
// after 30 seconds.
func NewCircuitBreaker(name string, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
}

// BreakerEmailSender fails fast while the wrapped sender's breaker is open.
type BreakerEmailSender struct {
	next EmailSender
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerEmailSender(next EmailSender, cb *gobreaker.CircuitBreaker) *BreakerEmailSender {
	return &BreakerEmailSender{next: next, cb: cb}
}

func (s *BreakerEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.SendEmail(ctx, to, subject, body)
	})
	return err
}

// BreakerSMSSender fails fast while the wrapped sender's breaker is open.
type BreakerSMSSender struct {
	next SMSSender
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerSMSSender(next SMSSender, cb *gobreaker.CircuitBreaker) *BreakerSMSSender {
	return &BreakerSMSSender{next: next, cb: cb}
}

func (s *BreakerSMSSender) SendSMS(ctx context.Context, to, body string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.SendSMS(ctx, to, body)
	})
	return err
}
