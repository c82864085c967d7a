package session

import (
	"time"

	"github.com/verte-zerg/keydrill/internal/engine"
)

const (
	// SettleDelay is how long a wrong buffer stays live before it fails.
	SettleDelay = 800 * time.Millisecond
	// AdvanceDelay is the feedback pause before scenario mode moves on.
	AdvanceDelay = 800 * time.Millisecond
)

// Timer is a deferred event. The scheduler hands it back through
// Driver.Fire; firings for a superseded sequence or challenge are dropped.
type Timer struct {
	Kind        engine.TimerKind
	ChallengeID string
	Seq         uint64
	// Token is the input manager token for inactivity timers.
	Token uint64
}

// Scheduler delivers a timer back to the driver after d.
type Scheduler interface {
	After(d time.Duration, t Timer)
}

// inputTimers routes input manager timers through the scheduler.
type inputTimers struct {
	d *Driver
}

func (t inputTimers) Arm(delay time.Duration, token uint64) {
	ch, _ := engine.ActiveChallenge(t.d.state)
	t.d.sched.After(delay, Timer{Kind: engine.TimerInactivity, ChallengeID: ch.ID, Token: token})
}
