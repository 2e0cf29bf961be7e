package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/marketingops/sfmc-inventory/pkg/log"
	"github.com/marketingops/sfmc-inventory/pkg/metrics"
)

const (
	initialDelay = 100 * time.Millisecond
	minDelay     = 50 * time.Millisecond
	maxDelay     = 30 * time.Second

	// Consecutive successes required before the delay is halved.
	successThreshold = 3

	// Concurrent requests allowed per kind.
	maxInFlight = 8

	minStress = 1.0
	maxStress = 16.0

	// Consecutive clean releases before the stress multiplier decays.
	stressDecayAfter = 30
)

// KindStats is a point-in-time view of one request kind.
type KindStats struct {
	Delay     time.Duration `json:"delayMs"`
	Successes int64         `json:"successes"`
	Failures  int64         `json:"failures"`
	Waits     int64         `json:"waits"`
}

type kindState struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	delay       time.Duration
	streak      int // consecutive successes since last failure
	successes   int64
	failures    int64
	waits       int64
}

// Limiter adaptively paces requests per kind. Each kind carries its own
// delay that halves after a success streak and doubles on failure; a global
// stress multiplier driven by a circuit breaker stretches every delay when
// the API is failing across kinds.
type Limiter struct {
	mu    sync.Mutex
	kinds map[string]*kindState

	stress       float64
	cleanStreak  int
	breaker      *gobreaker.TwoStepCircuitBreaker
}

// New creates a limiter with default tuning.
func New() *Limiter {
	l := &Limiter{
		kinds:  make(map[string]*kindState),
		stress: minStress,
	}

	l.breaker = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name: "sfmc-api",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		Timeout: 15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				l.raiseStress()
			case gobreaker.StateClosed:
				l.lowerStress()
			}
		},
	})

	metrics.RateLimitStress.Set(minStress)
	return l
}

// Acquire blocks until a slot for kind is available and the adaptive delay
// has elapsed. Every successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context, kind string) error {
	s := l.state(kind)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.sem.Release(1)
		return err
	}

	l.mu.Lock()
	s.waits++
	l.mu.Unlock()
	return nil
}

// Release returns the slot for kind and feeds the outcome back into the
// adaptive delay and the global breaker.
func (l *Limiter) Release(kind string, ok bool) {
	s := l.state(kind)
	s.sem.Release(1)

	l.mu.Lock()
	if ok {
		s.successes++
		s.streak++
		if s.streak >= successThreshold {
			s.streak = 0
			s.delay = clampDelay(s.delay / 2)
		}
		l.cleanStreak++
		if l.cleanStreak >= stressDecayAfter && l.stress > minStress {
			l.cleanStreak = 0
			l.setStressLocked(l.stress / 2)
		}
	} else {
		s.failures++
		s.streak = 0
		s.delay = clampDelay(s.delay * 2)
		l.cleanStreak = 0
	}
	l.applyLocked(kind, s)
	l.mu.Unlock()

	// Feed the breaker; while open, Allow fails and the outcome is dropped,
	// which is fine: the open state is itself the signal.
	if done, err := l.breaker.Allow(); err == nil {
		done(ok)
	}
}

// Stress returns the current global stress multiplier.
func (l *Limiter) Stress() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stress
}

// Snapshot returns per-kind statistics for the run report.
func (l *Limiter) Snapshot() map[string]KindStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]KindStats, len(l.kinds))
	for kind, s := range l.kinds {
		out[kind] = KindStats{
			Delay:     s.delay,
			Successes: s.successes,
			Failures:  s.failures,
			Waits:     s.waits,
		}
	}
	return out
}

func (l *Limiter) state(kind string) *kindState {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.kinds[kind]
	if !ok {
		s = &kindState{
			sem:   semaphore.NewWeighted(maxInFlight),
			delay: initialDelay,
		}
		s.limiter = rate.NewLimiter(delayToRate(initialDelay, l.stress), 1)
		l.kinds[kind] = s
	}
	return s
}

func (l *Limiter) raiseStress() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setStressLocked(l.stress * 2)
	logger := log.WithComponent("ratelimit")
	logger.Warn().
		Float64("stress", l.stress).
		Msg("api under stress, slowing all requests")
}

func (l *Limiter) lowerStress() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setStressLocked(l.stress / 2)
}

// setStressLocked clamps and applies the new multiplier to every kind.
func (l *Limiter) setStressLocked(v float64) {
	if v < minStress {
		v = minStress
	}
	if v > maxStress {
		v = maxStress
	}
	l.stress = v
	metrics.RateLimitStress.Set(v)
	for kind, s := range l.kinds {
		l.applyLocked(kind, s)
	}
}

func (l *Limiter) applyLocked(kind string, s *kindState) {
	s.limiter.SetLimit(delayToRate(s.delay, l.stress))
	metrics.RateLimitDelay.WithLabelValues(kind).Set(
		(time.Duration(float64(s.delay) * l.stress)).Seconds())
}

func clampDelay(d time.Duration) time.Duration {
	if d < minDelay {
		return minDelay
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

func delayToRate(d time.Duration, stress float64) rate.Limit {
	effective := time.Duration(float64(d) * stress)
	if effective <= 0 {
		return rate.Inf
	}
	return rate.Every(effective)
}
