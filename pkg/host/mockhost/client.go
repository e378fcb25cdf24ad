package mockhost

import (
	"fmt"
	"sync"

	"dynview/pkg/config"
	"dynview/pkg/host"
)

// Client is a simulated connected player.
type Client struct {
	id   host.ClientID
	name string
	seq  int
	idle bool

	mu       sync.Mutex
	distance int
	reported int
	pos      host.Position
	attached bool
}

// ID implements host.Client.
func (c *Client) ID() host.ClientID { return c.id }

// Name implements host.Client.
func (c *Client) Name() string { return c.name }

// Idle reports whether the client stands still.
func (c *Client) Idle() bool { return c.idle }

// ViewDistance returns the distance the server assigned.
func (c *Client) ViewDistance() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.distance
}

// ClientViewDistance returns the distance from the client's own settings.
func (c *Client) ClientViewDistance() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reported
}

// Position implements host.Client.
func (c *Client) Position() host.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// Attached reports whether the session finished joining its world.
func (c *Client) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// SetViewDistance implements host.Client.
func (c *Client) SetViewDistance(d int) error {
	if d < config.MinViewDistance || d > config.MaxViewDistance {
		return fmt.Errorf("view distance %d out of host range", d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.attached {
		return host.ErrClientNotReady
	}
	c.distance = d
	return nil
}

func (c *Client) attach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = true
}

func (c *Client) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = false
}

func (c *Client) moveTo(p host.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = p
}
