package webhooks

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetryDelays are the waits before the second, third and fourth
// attempt of a delivery.
var DefaultRetryDelays = []time.Duration{time.Second, 10 * time.Second, time.Minute}

// Schedule is a fixed backoff.BackOff: it yields its delays in order and
// then backoff.Stop.
type Schedule struct {
	delays []time.Duration
	next   int
}

var _ backoff.BackOff = (*Schedule)(nil)

func NewSchedule(delays []time.Duration) *Schedule {
	return &Schedule{delays: delays}
}

func (s *Schedule) NextBackOff() time.Duration {
	if s.next >= len(s.delays) {
		return backoff.Stop
	}
	d := s.delays[s.next]
	s.next++
	return d
}

func (s *Schedule) Reset() {
	s.next = 0
}
