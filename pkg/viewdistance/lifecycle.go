package viewdistance

import (
	"dynview/pkg/event"
	"dynview/pkg/host"
	"dynview/pkg/tracker"
)

// Start registers the periodic hooks and event handlers. Calling it again, or
// after Destroy, is a no-op.
func (c *Controller) Start() {
	if c.started || c.destroyed {
		return
	}
	c.started = true

	c.tasks = append(c.tasks,
		c.sched.RunRepeating(0, 1, c.Tick),
		c.sched.RunRepeating(0, c.policy.SweepPeriodTicks, c.Sweep),
	)
	c.subscriptions = append(c.subscriptions,
		c.bus.Subscribe(event.Join, c.onJoin),
		c.bus.Subscribe(event.Move, c.onReconcileEvent),
		c.bus.Subscribe(event.OpenUI, c.onReconcileEvent),
		c.bus.Subscribe(event.Quit, c.onQuit),
	)
	c.log.Info("View distance controller started",
		"minimum", c.minimum, "desired", c.desired, "current", c.current,
		"decision_interval", c.policy.DecisionInterval.Std())
}

// Destroy cancels all periodic work and event handlers. It is idempotent.
func (c *Controller) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true

	for _, id := range c.tasks {
		c.sched.Cancel(id)
	}
	c.tasks = nil
	for _, id := range c.subscriptions {
		c.bus.Unsubscribe(id)
	}
	c.subscriptions = nil
	c.log.Info("View distance controller destroyed")
}

// Destroyed reports whether Destroy was called.
func (c *Controller) Destroyed() bool {
	return c.destroyed
}

// Sweep reconciles clients that have not moved for longer than the staleness
// threshold. Clients seen for the first time or seen moving only get their
// activity record refreshed.
func (c *Controller) Sweep() {
	if c.destroyed {
		return
	}
	tick := c.sched.CurrentTick()
	for _, cl := range c.registry.OnlineClients() {
		rec, moved := c.activity.Observe(cl.ID(), cl.Position(), tick)
		if moved {
			continue
		}
		if tracker.Stale(rec, tick, c.policy.StalenessTicks) {
			c.ReconcileClient(cl)
		}
	}
}

// onJoin defers reconciliation to the next tick so the session can finish
// attaching. The client is looked up again when the task runs.
func (c *Controller) onJoin(e event.Event) {
	id := e.Client
	c.sched.RunLater(0, func() {
		if c.destroyed {
			return
		}
		if cl, ok := c.registry.Client(id); ok {
			c.ReconcileClient(cl)
		}
	})
}

func (c *Controller) onReconcileEvent(e event.Event) {
	if c.destroyed {
		return
	}
	if cl, ok := c.registry.Client(e.Client); ok {
		c.ReconcileClient(cl)
	}
}

func (c *Controller) onQuit(e event.Event) {
	c.activity.Forget(e.Client)
}

// TrackedClients returns the number of activity records held.
func (c *Controller) TrackedClients() int {
	return c.activity.Len()
}

// Activity returns the activity record of a client session.
func (c *Controller) Activity(id host.ClientID) (tracker.Record, bool) {
	return c.activity.Get(id)
}
