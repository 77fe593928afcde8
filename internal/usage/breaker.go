package usage

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerStore fails fast on writes while the wrapped store keeps failing, so
// an unreachable database costs the relay nothing but a log line. Reads go
// straight through.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(next Store) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        "usage-store",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &BreakerStore{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (s *BreakerStore) Save(ctx context.Context, rec *Record) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.Save(ctx, rec)
	})
	return err
}

func (s *BreakerStore) List(ctx context.Context, f Filter) ([]*Record, error) {
	return s.next.List(ctx, f)
}

func (s *BreakerStore) TotalCost(ctx context.Context, f Filter) (float64, error) {
	return s.next.TotalCost(ctx, f)
}

// State reports the breaker state: closed, half-open or open.
func (s *BreakerStore) State() string {
	return s.cb.State().String()
}
