package viewdistance

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dynview/pkg/config"
	"dynview/pkg/event"
	"dynview/pkg/host"
	"dynview/pkg/notify"
	"dynview/pkg/tracker"
)

// ErrInvalidArgument is returned when a distance is outside [minimum, maximum].
var ErrInvalidArgument = errors.New("invalid view distance")

// Controller maintains the global view distance and reconciles clients with it.
type Controller struct {
	log      *slog.Logger
	registry host.Registry
	metric   host.MetricSource
	sched    host.Scheduler
	bus      *event.Bus
	notifier notify.Notifier
	now      func() time.Time

	minimum      int
	maximum      int
	desired      int
	current      int
	increaseStep int
	decreaseStep int

	policy       config.PolicyConfig
	lastDecision time.Time

	overrides map[host.ClientID]int
	activity  *tracker.Tracker

	tasks         []host.TaskID
	subscriptions []string
	started       bool
	destroyed     bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used for decision timing.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithNotifier sets where administrator notifications go.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// New creates a Controller. The current distance starts at the desired one.
func New(cfg *config.Config, reg host.Registry, metric host.MetricSource, sched host.Scheduler, bus *event.Bus, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	vd := cfg.ViewDistance
	c := &Controller{
		log:          slog.Default(),
		registry:     reg,
		metric:       metric,
		sched:        sched,
		bus:          bus,
		notifier:     notify.Discard,
		now:          time.Now,
		minimum:      vd.Minimum,
		maximum:      vd.Maximum,
		desired:      vd.Desired,
		current:      vd.Desired,
		increaseStep: vd.IncreaseStep,
		decreaseStep: vd.DecreaseStep,
		policy:       cfg.Policy,
		overrides:    make(map[host.ClientID]int),
		activity:     tracker.New(cfg.Policy.MovementThreshold),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Minimum returns the immutable lower bound.
func (c *Controller) Minimum() int { return c.minimum }

// Maximum returns the upper bound enforced at every entry point.
func (c *Controller) Maximum() int { return c.maximum }

// Desired returns the administrator's target distance.
func (c *Controller) Desired() int { return c.desired }

// Current returns the global distance pushed to clients.
func (c *Controller) Current() int { return c.current }

func (c *Controller) checkRange(v int) error {
	if v < c.minimum || v > c.maximum {
		return fmt.Errorf("%w: %d is outside [%d, %d]", ErrInvalidArgument, v, c.minimum, c.maximum)
	}
	return nil
}

// SetDesired changes the target distance. If the current distance is above
// the new target it is lowered immediately.
func (c *Controller) SetDesired(v int) error {
	if err := c.checkRange(v); err != nil {
		return err
	}
	old := c.desired
	c.desired = v
	c.emit(notify.LevelInfo, notify.KindDesired, fmt.Sprintf("Desired view distance has been changed. %d -> %d", old, v))

	if c.current > v {
		c.setNow(v)
	}
	return nil
}

// SetCurrentNow sets the global distance and reconciles every connected,
// non-pinned client right away.
func (c *Controller) SetCurrentNow(target int) error {
	if err := c.checkRange(target); err != nil {
		return err
	}
	c.setNow(target)
	return nil
}

// SetCurrentGracefully sets the global distance without touching clients.
func (c *Controller) SetCurrentGracefully(target int) error {
	if err := c.checkRange(target); err != nil {
		return err
	}
	c.setGracefully(target)
	return nil
}

// RaiseGracefully moves the global distance one step towards desired.
func (c *Controller) RaiseGracefully() {
	c.setGracefully(min(c.desired, c.current+c.increaseStep))
}

// LowerGracefully moves the global distance one step down, not below minimum.
func (c *Controller) LowerGracefully() {
	c.setGracefully(max(c.minimum, c.current-c.decreaseStep))
}

// LowerNow lowers by one step and reconciles every client.
func (c *Controller) LowerNow() {
	c.setNow(max(c.minimum, c.current-c.decreaseStep))
}

func (c *Controller) setNow(target int) {
	if target == c.current {
		return
	}
	c.emit(notify.LevelWarn, notify.KindSetNow, fmt.Sprintf("Immediately setting view distance to %d!", target))
	c.setCurrent(target)
	c.reconcileAll()
}

func (c *Controller) setGracefully(target int) {
	if target == c.current {
		return
	}
	c.emit(notify.LevelInfo, notify.KindSetGraceful, fmt.Sprintf("Gracefully setting view distance to %d", target))
	c.setCurrent(target)
}

func (c *Controller) setCurrent(v int) {
	old := c.current
	c.current = v
	c.emit(notify.LevelInfo, notify.KindGlobal, fmt.Sprintf("Global view distance has changed. %d -> %d", old, v))
}

// emit logs a notification at its level and forwards it to administrators.
func (c *Controller) emit(level notify.Level, kind notify.Kind, msg string) {
	switch level {
	case notify.LevelError:
		c.log.Error(msg, "kind", kind)
	case notify.LevelWarn:
		c.log.Warn(msg, "kind", kind)
	default:
		c.log.Info(msg, "kind", kind)
	}
	c.notifier.Notify(notify.Notification{
		Time:    c.now(),
		Level:   level,
		Kind:    kind,
		Message: msg,
	})
}
