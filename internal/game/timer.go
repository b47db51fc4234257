package game

import (
	"fmt"
	"time"

	"github.com/coder/quartz"
)

// TimerPurpose names what a pending timer is for. At most one timer per
// purpose is pending at any time.
type TimerPurpose uint8

const (
	TimerJoin TimerPurpose = iota + 1
	TimerDecision
	TimerReveal
	TimerRoundBreak
)

func (p TimerPurpose) String() string {
	switch p {
	case TimerJoin:
		return "join"
	case TimerDecision:
		return "decision"
	case TimerReveal:
		return "reveal"
	case TimerRoundBreak:
		return "round_break"
	default:
		return fmt.Sprintf("TimerPurpose(%d)", uint8(p))
	}
}

// MarshalText renders the purpose by name for JSON payloads.
func (p TimerPurpose) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

type pendingTimer struct {
	timer    *quartz.Timer
	gen      uint64
	deadline time.Time
}

// scheduler keeps one cancellable timer per purpose on an injected clock.
// It has no lock of its own: the game calls it with its lock held, and the
// fire callback re-acquires that lock and checks live() before acting, so
// a callback racing a cancel is a no-op.
type scheduler struct {
	clock   quartz.Clock
	pending map[TimerPurpose]pendingTimer
	gen     uint64
}

func newScheduler(clock quartz.Clock) *scheduler {
	return &scheduler{
		clock:   clock,
		pending: make(map[TimerPurpose]pendingTimer),
	}
}

// start cancels any timer pending for purpose and arms a new one. fire
// receives the generation it was armed with.
func (s *scheduler) start(purpose TimerPurpose, d time.Duration, fire func(gen uint64)) (uint64, time.Time) {
	s.cancel(purpose)
	s.gen++
	gen := s.gen
	deadline := s.clock.Now().Add(d)
	t := s.clock.AfterFunc(d, func() { fire(gen) }, "diamant", purpose.String())
	s.pending[purpose] = pendingTimer{timer: t, gen: gen, deadline: deadline}
	return gen, deadline
}

// cancel stops the timer for purpose. It reports whether one was pending.
func (s *scheduler) cancel(purpose TimerPurpose) bool {
	p, ok := s.pending[purpose]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, purpose)
	return true
}

// cancelAll stops every pending timer and returns the purposes cancelled.
func (s *scheduler) cancelAll() []TimerPurpose {
	var cancelled []TimerPurpose
	for _, purpose := range []TimerPurpose{TimerJoin, TimerDecision, TimerReveal, TimerRoundBreak} {
		if s.cancel(purpose) {
			cancelled = append(cancelled, purpose)
		}
	}
	return cancelled
}

// live reports whether gen is still the armed timer for purpose and, if so,
// consumes it.
func (s *scheduler) live(purpose TimerPurpose, gen uint64) bool {
	p, ok := s.pending[purpose]
	if !ok || p.gen != gen {
		return false
	}
	delete(s.pending, purpose)
	return true
}

// remaining returns how long until the timer for purpose fires.
func (s *scheduler) remaining(purpose TimerPurpose) (time.Duration, bool) {
	p, ok := s.pending[purpose]
	if !ok {
		return 0, false
	}
	return max(0, p.deadline.Sub(s.clock.Now())), true
}
