// Package mockhost simulates a game server with a changing population of
// clients. It drives the controller with real traffic and a real load: every
// tick costs time proportional to the chunks the clients have loaded.
package mockhost

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dynview/pkg/config"
	"dynview/pkg/event"
	"dynview/pkg/host"
)

const (
	// Blocks walked per tick, roughly sprinting speed.
	walkStep = 0.25
	// How far a teleport moves a client on each horizontal axis.
	teleportRange = 5000.0
	// Lowest distance a client asks for in its own settings.
	minReportedDistance = 4
	// Distance the server assigns before the first reconciliation.
	defaultServerDistance = 10
)

var worlds = []string{"overworld", "the_nether", "the_end"}

var names = []string{
	"Alex", "Steve", "Kai", "Noor", "Sunny", "Efe", "Makena", "Ari", "Zuri",
	"Jules", "Robin", "Sam", "Quinn", "Rowan", "Sasha", "Toni", "Wren", "Yuki",
}

// Host is an in-process host.Registry. All mutation happens on the scheduler
// goroutine; the mutex only protects readers on other goroutines.
type Host struct {
	cfg   config.MockHostConfig
	sched host.Scheduler
	bus   *event.Bus
	rng   *rand.Rand
	sleep func(time.Duration)

	mu      sync.RWMutex
	clients map[host.ClientID]*Client
	joined  int

	task    host.TaskID
	running bool
}

// Option configures a Host.
type Option func(*Host)

// WithRand replaces the random source, mostly for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(h *Host) { h.rng = r }
}

// WithSleep replaces the function used to simulate tick cost.
func WithSleep(fn func(time.Duration)) Option {
	return func(h *Host) { h.sleep = fn }
}

// New creates a Host with no clients. Call Start to populate and run it.
func New(cfg config.MockHostConfig, sched host.Scheduler, bus *event.Bus, opts ...Option) *Host {
	h := &Host{
		cfg:     cfg,
		sched:   sched,
		bus:     bus,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   time.Sleep,
		clients: make(map[host.ClientID]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start joins the initial clients and registers the per-tick simulation.
// It must run on the scheduler goroutine.
func (h *Host) Start() {
	if h.running {
		return
	}
	h.running = true
	for i := 0; i < h.cfg.InitialClients; i++ {
		h.Join()
	}
	h.task = h.sched.RunRepeating(0, 1, h.step)
	slog.Info("Mock host started", "clients", h.cfg.InitialClients, "max_clients", h.cfg.MaxClients)
}

// Stop cancels the simulation. Connected clients stay connected.
func (h *Host) Stop() {
	if !h.running {
		return
	}
	h.running = false
	h.sched.Cancel(h.task)
}

// OnlineClients implements host.Registry. Clients are ordered by join time.
func (h *Host) OnlineClients() []host.Client {
	h.mu.RLock()
	list := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		list = append(list, c)
	}
	h.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	out := make([]host.Client, len(list))
	for i, c := range list {
		out[i] = c
	}
	return out
}

// Client implements host.Registry.
func (h *Host) Client(id host.ClientID) (host.Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// Len returns the number of connected clients.
func (h *Host) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Join connects a new client. The session attaches to its world on the next
// tick; until then view distance writes fail with host.ErrClientNotReady.
func (h *Host) Join() *Client {
	h.mu.Lock()
	h.joined++
	seq := h.joined
	c := &Client{
		id:       host.ClientID(uuid.NewString()),
		name:     fmt.Sprintf("%s%d", names[h.rng.Intn(len(names))], seq),
		seq:      seq,
		reported: minReportedDistance + h.rng.Intn(config.MaxViewDistance-minReportedDistance+1),
		distance: defaultServerDistance,
		pos: host.Position{
			World: worlds[0],
			X:     h.rng.Float64()*200 - 100,
			Y:     64,
			Z:     h.rng.Float64()*200 - 100,
		},
		idle: h.rng.Float64() < h.cfg.IdleChance,
	}
	h.clients[c.id] = c
	h.mu.Unlock()

	// Attach first so handlers deferred by the Join event see a ready session.
	h.sched.RunLater(0, c.attach)
	slog.Debug("Client joined", "client", c.name, "id", c.id)
	h.bus.Publish(event.Event{Kind: event.Join, Client: c.id})
	return c
}

// Quit disconnects a client.
func (h *Host) Quit(id host.ClientID) bool {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if !ok {
		return false
	}
	c.detach()
	slog.Debug("Client quit", "client", c.name, "id", id)
	h.bus.Publish(event.Event{Kind: event.Quit, Client: id})
	return true
}

// Teleport moves a client far away, possibly into another world.
func (h *Host) Teleport(id host.ClientID) bool {
	c, ok := h.lookup(id)
	if !ok {
		return false
	}
	pos := c.Position()
	pos.World = worlds[h.rng.Intn(len(worlds))]
	pos.X += (h.rng.Float64()*2 - 1) * teleportRange
	pos.Z += (h.rng.Float64()*2 - 1) * teleportRange
	c.moveTo(pos)
	h.bus.Publish(event.Event{Kind: event.Move, Client: id})
	return true
}

// OpenMenu simulates a client opening an inventory or container.
func (h *Host) OpenMenu(id host.ClientID) bool {
	if _, ok := h.lookup(id); !ok {
		return false
	}
	h.bus.Publish(event.Event{Kind: event.OpenUI, Client: id})
	return true
}

// LoadedChunks returns the number of chunks all clients keep loaded.
func (h *Host) LoadedChunks() int {
	total := 0
	for _, c := range h.OnlineClients() {
		d := c.ViewDistance()
		total += (2*d + 1) * (2*d + 1)
	}
	return total
}

func (h *Host) lookup(id host.ClientID) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// step advances the simulation by one tick.
func (h *Host) step() {
	for _, hc := range h.OnlineClients() {
		c := hc.(*Client)
		r := h.rng.Float64()
		switch {
		case r < h.cfg.QuitChance:
			h.Quit(c.id)
			continue
		case r < h.cfg.QuitChance+h.cfg.TeleportChance:
			h.Teleport(c.id)
			continue
		case r < h.cfg.QuitChance+h.cfg.TeleportChance+h.cfg.MenuChance:
			h.OpenMenu(c.id)
		}
		if !c.idle {
			pos := c.Position()
			pos.X += (h.rng.Float64()*2 - 1) * walkStep
			pos.Z += (h.rng.Float64()*2 - 1) * walkStep
			c.moveTo(pos)
		}
	}

	if h.Len() < h.cfg.MaxClients && h.rng.Float64() < h.cfg.JoinChance {
		h.Join()
	}

	if cost := h.cfg.ChunkCost.Std(); cost > 0 {
		h.sleep(time.Duration(h.LoadedChunks()) * cost)
	}
}
