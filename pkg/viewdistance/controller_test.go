package viewdistance

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dynview/pkg/config"
	"dynview/pkg/core"
	"dynview/pkg/event"
	"dynview/pkg/host"
	"dynview/pkg/notify"
)

type fakeClient struct {
	id       host.ClientID
	name     string
	distance int
	reported int
	pos      host.Position
	notReady bool
	sets     int
}

func (f *fakeClient) ID() host.ClientID           { return f.id }
func (f *fakeClient) Name() string                { return f.name }
func (f *fakeClient) ViewDistance() int           { return f.distance }
func (f *fakeClient) ClientViewDistance() int     { return f.reported }
func (f *fakeClient) Position() host.Position     { return f.pos }
func (f *fakeClient) SetViewDistance(d int) error {
	if f.notReady {
		return host.ErrClientNotReady
	}
	f.sets++
	f.distance = d
	return nil
}

type fakeRegistry struct {
	clients []*fakeClient
}

func (r *fakeRegistry) OnlineClients() []host.Client {
	out := make([]host.Client, len(r.clients))
	for i, c := range r.clients {
		out[i] = c
	}
	return out
}

func (r *fakeRegistry) Client(id host.ClientID) (host.Client, bool) {
	for _, c := range r.clients {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}

func (r *fakeRegistry) remove(id host.ClientID) {
	for i, c := range r.clients {
		if c.id == id {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return
		}
	}
}

type fakeMetric struct{ tps float64 }

func (m *fakeMetric) AverageTPS() float64 { return m.tps }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recorder struct {
	items []notify.Notification
}

func (r *recorder) Notify(n notify.Notification) { r.items = append(r.items, n) }

func (r *recorder) kinds() []notify.Kind {
	out := make([]notify.Kind, len(r.items))
	for i, n := range r.items {
		out[i] = n.Kind
	}
	return out
}

type testEnv struct {
	c        *Controller
	registry *fakeRegistry
	metric   *fakeMetric
	clock    *fakeClock
	sched    *core.Scheduler
	bus      *event.Bus
	notes    *recorder
}

func newClient(id string, distance int) *fakeClient {
	return &fakeClient{
		id:       host.ClientID(id),
		name:     id,
		distance: distance,
		reported: 12,
		pos:      host.Position{World: "overworld", X: 0, Y: 64, Z: 0},
	}
}

func newTestEnv(t *testing.T, clients ...*fakeClient) *testEnv {
	t.Helper()
	env := &testEnv{
		registry: &fakeRegistry{clients: clients},
		metric:   &fakeMetric{tps: 19.5},
		clock:    &fakeClock{t: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)},
		sched:    core.NewScheduler(50 * time.Millisecond),
		bus:      event.NewBus(),
		notes:    &recorder{},
	}
	c, err := New(config.DefaultConfig(), env.registry, env.metric, env.sched, env.bus,
		WithClock(env.clock.now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNotifier(env.notes),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.c = c
	return env
}

func (e *testEnv) steps(n int) {
	for i := 0; i < n; i++ {
		e.sched.Step()
	}
}

func assertBounds(t *testing.T, c *Controller) {
	t.Helper()
	assert.GreaterOrEqual(t, c.Current(), c.Minimum())
	assert.LessOrEqual(t, c.Current(), c.Maximum())
	assert.GreaterOrEqual(t, c.Desired(), c.Minimum())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ViewDistance.Desired = 1
	_, err := New(cfg, &fakeRegistry{}, &fakeMetric{}, core.NewScheduler(50*time.Millisecond), event.NewBus())
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestController_RejectsOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	c := env.c

	for _, v := range []int{1, 33, -4} {
		assert.ErrorIs(t, c.SetDesired(v), ErrInvalidArgument, "SetDesired(%d)", v)
		assert.ErrorIs(t, c.SetCurrentNow(v), ErrInvalidArgument, "SetCurrentNow(%d)", v)
		assert.ErrorIs(t, c.SetCurrentGracefully(v), ErrInvalidArgument, "SetCurrentGracefully(%d)", v)
		assert.ErrorIs(t, c.Pin(newClient("x", 32), v), ErrInvalidArgument, "Pin(%d)", v)
	}
	assert.Equal(t, 32, c.Desired())
	assert.Equal(t, 32, c.Current())
	assert.Empty(t, env.notes.items)
	assert.Empty(t, c.Overrides())
}

func TestController_SetDesiredBelowCurrentForcesCurrent(t *testing.T) {
	a, b := newClient("a", 32), newClient("b", 32)
	env := newTestEnv(t, a, b)

	assert.NoError(t, env.c.SetDesired(12))

	assert.Equal(t, 12, env.c.Desired())
	assert.Equal(t, 12, env.c.Current())
	assert.Equal(t, 12, a.distance)
	assert.Equal(t, 12, b.distance)
	assert.Equal(t, []notify.Kind{notify.KindDesired, notify.KindSetNow, notify.KindGlobal}, env.notes.kinds())

	// Raising desired leaves current alone.
	assert.NoError(t, env.c.SetDesired(24))
	assert.Equal(t, 12, env.c.Current())
	assertBounds(t, env.c)
}

func TestController_SetToSameValueIsNoOp(t *testing.T) {
	a := newClient("a", 20)
	env := newTestEnv(t, a)

	assert.NoError(t, env.c.SetCurrentNow(32))
	assert.NoError(t, env.c.SetCurrentGracefully(32))

	assert.Empty(t, env.notes.items)
	assert.Equal(t, 0, a.sets, "no reconciliation expected")
	assert.Equal(t, 20, a.distance)
}

func TestController_GracefulDoesNotTouchClients(t *testing.T) {
	a := newClient("a", 32)
	env := newTestEnv(t, a)

	assert.NoError(t, env.c.SetCurrentGracefully(16))
	assert.Equal(t, 16, env.c.Current())
	assert.Equal(t, 32, a.distance)
	assert.Equal(t, []notify.Kind{notify.KindSetGraceful, notify.KindGlobal}, env.notes.kinds())
}

func TestController_RaiseConvergesWithoutOvershoot(t *testing.T) {
	env := newTestEnv(t)
	c := env.c
	assert.NoError(t, c.SetDesired(30))
	assert.NoError(t, c.SetCurrentGracefully(2))

	prev := c.Current()
	for i := 0; i < 20; i++ {
		c.RaiseGracefully()
		assert.LessOrEqual(t, c.Current()-prev, 4)
		assert.LessOrEqual(t, c.Current(), c.Desired())
		prev = c.Current()
	}
	assert.Equal(t, 30, c.Current())
}

func TestController_LowerStopsAtMinimum(t *testing.T) {
	env := newTestEnv(t)
	c := env.c
	for i := 0; i < 20; i++ {
		c.LowerGracefully()
		assertBounds(t, c)
	}
	assert.Equal(t, 2, c.Current())

	assert.NoError(t, c.SetCurrentGracefully(5))
	c.LowerNow()
	assert.Equal(t, 2, c.Current())
}

func TestController_Policy(t *testing.T) {
	tests := []struct {
		name        string
		tps         float64
		wantCurrent int
		wantClient  int // distance of the unpinned client afterwards
		wantKind    notify.Kind
	}{
		{"Emergency", 14, 2, 2, notify.KindEmergency},
		{"BelowSeventeen", 16.9, 24, 24, notify.KindLowerNow},
		{"BelowNineteen", 18.5, 24, 28, notify.KindLowerGraceful},
		{"DeadZoneLow", 19, 28, 28, notify.KindIdle},
		{"DeadZoneHigh", 19.89, 28, 28, notify.KindIdle},
		{"Raise", 19.9, 32, 28, notify.KindRaise},
		{"RaiseAbove", 20, 32, 28, notify.KindRaise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newClient("a", 32)
			pinned := newClient("pinned", 32)
			env := newTestEnv(t, a, pinned)
			assert.NoError(t, env.c.Pin(pinned, 10))
			assert.NoError(t, env.c.SetCurrentNow(28))
			env.notes.items = nil

			env.metric.tps = tt.tps
			env.c.Tick()

			assert.Equal(t, tt.wantCurrent, env.c.Current())
			assert.Equal(t, tt.wantClient, a.distance)
			assert.Equal(t, 10, pinned.distance, "pinned client must not follow global changes")
			assert.Equal(t, tt.wantKind, env.notes.items[0].Kind)
			assertBounds(t, env.c)
		})
	}
}

func TestController_EmergencyScenario(t *testing.T) {
	clients := []*fakeClient{newClient("a", 32), newClient("b", 32), newClient("c", 32)}
	env := newTestEnv(t, clients...)
	env.metric.tps = 14

	env.c.Tick()

	assert.Equal(t, 2, env.c.Current())
	for _, cl := range clients {
		assert.Equal(t, 2, cl.distance, cl.name)
	}
	assert.Equal(t, notify.LevelError, env.notes.items[0].Level)
}

func TestController_RaiseScenarioIsGraceful(t *testing.T) {
	a := newClient("a", 20)
	env := newTestEnv(t, a)
	assert.NoError(t, env.c.SetCurrentGracefully(20))

	env.metric.tps = 19.95
	env.c.Tick()

	assert.Equal(t, 24, env.c.Current())
	assert.Equal(t, 20, a.distance, "graceful raise must not force reconciliation")
}

func TestController_DecisionInterval(t *testing.T) {
	env := newTestEnv(t)
	c := env.c
	assert.Equal(t, time.Duration(0), c.TimeUntilNextDecision())

	env.metric.tps = 18
	c.Tick()
	assert.Equal(t, 28, c.Current())
	assert.Equal(t, 5*time.Minute, c.TimeUntilNextDecision())

	env.clock.advance(2 * time.Minute)
	c.Tick()
	assert.Equal(t, 28, c.Current(), "gated until the interval elapses")
	assert.Equal(t, 3*time.Minute, c.TimeUntilNextDecision())

	env.clock.advance(3 * time.Minute)
	c.Tick()
	assert.Equal(t, 24, c.Current())
	assert.Equal(t, env.clock.t, c.LastDecision())

	// The idle branch still resets the timer.
	env.metric.tps = 19.5
	env.clock.advance(5 * time.Minute)
	c.Tick()
	assert.Equal(t, 5*time.Minute, c.TimeUntilNextDecision())
	env.clock.advance(10 * time.Minute)
	assert.Equal(t, time.Duration(0), c.TimeUntilNextDecision())
}

func TestController_PinScenario(t *testing.T) {
	x, y, z := newClient("x", 16), newClient("y", 16), newClient("z", 16)
	env := newTestEnv(t, x, y, z)
	assert.NoError(t, env.c.SetCurrentNow(16))

	assert.NoError(t, env.c.Pin(x, 10))
	assert.Equal(t, 10, x.distance)

	assert.NoError(t, env.c.SetCurrentNow(8))
	assert.Equal(t, 10, x.distance)
	assert.Equal(t, 8, y.distance)
	assert.Equal(t, 8, z.distance)

	// Triggers keep applying the pin, not the global value.
	env.c.ReconcileClient(x)
	assert.Equal(t, 10, x.distance)

	assert.True(t, env.c.Unpin(x))
	assert.Equal(t, 8, x.distance)
	_, pinned := env.c.Override(x.id)
	assert.False(t, pinned)
}

func TestController_UnpinWithoutPinIsSilent(t *testing.T) {
	a := newClient("a", 16)
	env := newTestEnv(t, a)
	assert.NoError(t, env.c.SetCurrentGracefully(12))
	env.notes.items = nil

	assert.False(t, env.c.Unpin(a))
	assert.Equal(t, 12, a.distance, "still reconciled to the global distance")
	assert.Empty(t, env.notes.items)

	assert.False(t, env.c.UnpinID("nobody"))
	assert.Empty(t, env.notes.items)
}

func TestController_UnpinIDAfterQuit(t *testing.T) {
	a, gone := newClient("a", 16), newClient("gone", 16)
	env := newTestEnv(t, a, gone)
	assert.NoError(t, env.c.Pin(gone, 6))
	env.registry.remove(gone.id)
	env.notes.items = nil

	assert.Contains(t, env.c.Overrides(), gone.id)
	assert.True(t, env.c.UnpinID(gone.id))
	assert.Empty(t, env.c.Overrides())
	assert.Equal(t, []notify.Kind{notify.KindUnpin}, env.notes.kinds())
	assert.Equal(t, 6, gone.distance, "offline sessions are not written to")

	// Online sessions go back to the global distance.
	assert.NoError(t, env.c.Pin(a, 4))
	assert.True(t, env.c.UnpinID(a.id))
	assert.Equal(t, 32, a.distance)
}

func TestController_IdleBranchNotifies(t *testing.T) {
	env := newTestEnv(t)
	env.metric.tps = 19.5
	env.c.Tick()

	if assert.Len(t, env.notes.items, 1) {
		assert.Equal(t, notify.KindIdle, env.notes.items[0].Kind)
		assert.Equal(t, notify.LevelInfo, env.notes.items[0].Level)
	}
}

func TestController_ClientNotReadyDoesNotAbortPass(t *testing.T) {
	a, attaching, c := newClient("a", 32), newClient("attaching", 32), newClient("c", 32)
	attaching.notReady = true
	env := newTestEnv(t, a, attaching, c)

	assert.NotPanics(t, func() { assert.NoError(t, env.c.SetCurrentNow(8)) })
	assert.Equal(t, 8, a.distance)
	assert.Equal(t, 32, attaching.distance)
	assert.Equal(t, 8, c.distance)

	// The next trigger retries once the client is attached.
	attaching.notReady = false
	env.c.ReconcileClient(attaching)
	assert.Equal(t, 8, attaching.distance)
}

func TestController_StalenessSweep(t *testing.T) {
	idle := newClient("idle", 32)
	walker := newClient("walker", 32)
	env := newTestEnv(t, idle, walker)
	env.c.Start()

	env.steps(1) // sweep at tick 1 creates the records
	assert.Equal(t, 2, env.c.TrackedClients())

	assert.NoError(t, env.c.SetCurrentGracefully(20))

	for i := 0; i < 200; i++ {
		walker.pos.X += 1
		env.sched.Step()
	}
	assert.Equal(t, 32, idle.distance, "not stale yet")

	for i := 0; i < 20; i++ {
		walker.pos.X += 1
		env.sched.Step()
	}
	assert.Equal(t, 20, idle.distance, "idle client converges within one staleness window")
	assert.Equal(t, 32, walker.distance, "moving clients are left to their own triggers")
}

func TestController_StaleClientKeepsPin(t *testing.T) {
	idle := newClient("idle", 32)
	env := newTestEnv(t, idle)
	env.c.Start()
	assert.NoError(t, env.c.Pin(idle, 6))
	idle.distance = 32 // something else changed it behind our back

	env.steps(230)
	assert.Equal(t, 6, idle.distance)
}

func TestController_LifecycleEvents(t *testing.T) {
	a := newClient("a", 32)
	env := newTestEnv(t, a)
	env.c.Start()
	env.steps(1)
	assert.NoError(t, env.c.SetCurrentGracefully(12))

	// Join reconciles on the next tick, not synchronously.
	env.bus.Publish(event.Event{Kind: event.Join, Client: a.id})
	assert.Equal(t, 32, a.distance)
	env.steps(1)
	assert.Equal(t, 12, a.distance)

	assert.NoError(t, env.c.SetCurrentGracefully(16))
	env.bus.Publish(event.Event{Kind: event.Move, Client: a.id})
	assert.Equal(t, 16, a.distance)

	assert.NoError(t, env.c.SetCurrentGracefully(20))
	env.bus.Publish(event.Event{Kind: event.OpenUI, Client: a.id})
	assert.Equal(t, 20, a.distance)

	// Events for unknown clients are ignored.
	assert.NotPanics(t, func() {
		env.bus.Publish(event.Event{Kind: event.Move, Client: "ghost"})
		env.bus.Publish(event.Event{Kind: event.Join, Client: "ghost"})
		env.steps(1)
	})

	// Quit drops the activity record; a rejoin starts fresh.
	_, ok := env.c.Activity(a.id)
	assert.True(t, ok)
	env.registry.remove(a.id)
	env.bus.Publish(event.Event{Kind: event.Quit, Client: a.id})
	_, ok = env.c.Activity(a.id)
	assert.False(t, ok)
}

func TestController_Destroy(t *testing.T) {
	a := newClient("a", 32)
	env := newTestEnv(t, a)
	env.c.Start()
	env.c.Start() // no double registration
	assert.Equal(t, 2, env.sched.PendingTasks())
	assert.Equal(t, 1, env.bus.Subscribers(event.Join))

	env.steps(1)
	assert.NoError(t, env.c.SetCurrentGracefully(12))

	// A join queued before shutdown must not act afterwards.
	env.bus.Publish(event.Event{Kind: event.Join, Client: a.id})
	env.c.Destroy()
	env.c.Destroy()
	env.steps(300)

	assert.True(t, env.c.Destroyed())
	assert.Equal(t, 32, a.distance)
	assert.Equal(t, 0, env.sched.PendingTasks())
	for _, k := range []event.Kind{event.Join, event.Move, event.OpenUI, event.Quit} {
		assert.Equal(t, 0, env.bus.Subscribers(k), k.String())
	}

	env.c.Start()
	assert.Equal(t, 0, env.sched.PendingTasks(), "Start after Destroy is a no-op")
}

func TestController_StartRunsPolicy(t *testing.T) {
	a := newClient("a", 32)
	env := newTestEnv(t, a)
	env.metric.tps = 10
	env.c.Start()

	env.steps(1)
	assert.Equal(t, 2, env.c.Current())
	assert.Equal(t, 2, a.distance)

	// Recovered performance is only considered after the interval.
	env.metric.tps = 20
	env.steps(100)
	assert.Equal(t, 2, env.c.Current())
	env.clock.advance(5 * time.Minute)
	env.steps(1)
	assert.Equal(t, 6, env.c.Current())
}

func TestController_Status(t *testing.T) {
	a, b, c := newClient("a", 24), newClient("b", 32), newClient("c", 24)
	a.reported, b.reported, c.reported = 8, 32, 8
	env := newTestEnv(t, a, b, c)
	assert.NoError(t, env.c.SetCurrentGracefully(24))
	assert.NoError(t, env.c.Pin(b, 32))

	s := env.c.Status()
	assert.Equal(t, 32, s.Desired)
	assert.Equal(t, 24, s.Current)
	assert.Equal(t, 2, s.Minimum)
	assert.Equal(t, 32, s.Maximum)
	assert.Equal(t, 3, s.Online)
	assert.Equal(t, 2, s.AtGlobal)
	assert.Equal(t, []ClientSummary{{ID: "a", Name: "a"}, {ID: "c", Name: "c"}}, s.LowClientDistances[8])
	assert.Equal(t, map[host.ClientID]int{"b": 32}, s.Overrides)
	assert.InDelta(t, 19.5, s.AverageTPS, 1e-9)
}

func TestController_ClientValues(t *testing.T) {
	a := newClient("a", 18)
	a.reported = 10
	env := newTestEnv(t, a)
	assert.Equal(t, 10, env.c.ClientValue(a))
	assert.Equal(t, 18, env.c.ClientEffectiveValue(a))
}
