package viewdistance

import (
	"fmt"
	"time"

	"dynview/pkg/notify"
)

// Tick is the fast periodic hook. It runs every tick but only evaluates the
// policy once per decision interval.
func (c *Controller) Tick() {
	if c.destroyed {
		return
	}
	now := c.now()
	if now.Sub(c.lastDecision) < c.policy.DecisionInterval.Std() {
		return
	}
	c.decide(c.metric.AverageTPS())
	c.lastDecision = now
}

// decide applies the first rule matching the TPS sample.
func (c *Controller) decide(tps float64) {
	p := c.policy
	switch {
	case tps < p.EmergencyTPS:
		c.emit(notify.LevelError, notify.KindEmergency, fmt.Sprintf(
			"Five minute average TPS is below %s! Entering emergency view distance mode! Reducing view distance to %d!",
			formatTPS(p.EmergencyTPS), c.minimum))
		c.setNow(c.minimum)
	case tps < p.LowerNowTPS:
		c.emit(notify.LevelWarn, notify.KindLowerNow, fmt.Sprintf(
			"Five minute average TPS is below %s, lowering view distance immediately!", formatTPS(p.LowerNowTPS)))
		c.LowerNow()
	case tps < p.LowerGracefulTPS:
		c.emit(notify.LevelInfo, notify.KindLowerGraceful, fmt.Sprintf(
			"Five minute average TPS is below %s, lowering view distance gracefully.", formatTPS(p.LowerGracefulTPS)))
		c.LowerGracefully()
	case tps >= p.RaiseTPS:
		c.emit(notify.LevelInfo, notify.KindRaise, fmt.Sprintf(
			"Five minute average TPS is >= %s, increasing view distance gracefully if so desired.", formatTPS(p.RaiseTPS)))
		c.RaiseGracefully()
	default:
		c.emit(notify.LevelInfo, notify.KindIdle, fmt.Sprintf(
			"Nothing to do, see you in %s!", c.policy.DecisionInterval.Std()))
	}
	c.log.Debug("Policy evaluated", "tps", tps, "current", c.current, "desired", c.desired)
}

// TimeUntilNextDecision returns how long until the policy is evaluated again.
func (c *Controller) TimeUntilNextDecision() time.Duration {
	return max(0, c.lastDecision.Add(c.policy.DecisionInterval.Std()).Sub(c.now()))
}

// LastDecision returns when the policy was last evaluated, zero if never.
func (c *Controller) LastDecision() time.Time {
	return c.lastDecision
}

func formatTPS(v float64) string {
	return fmt.Sprintf("%g", v)
}
