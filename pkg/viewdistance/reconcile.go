package viewdistance

import (
	"errors"
	"fmt"

	"dynview/pkg/host"
	"dynview/pkg/notify"
)

// ReconcileClient brings a client in line with its authoritative distance:
// its pin if it has one, the current global distance otherwise.
func (c *Controller) ReconcileClient(cl host.Client) {
	if v, ok := c.overrides[cl.ID()]; ok {
		c.apply(cl, v)
		return
	}
	if cl.ViewDistance() != c.current {
		c.log.Info("Updating view distance", "client", cl.Name(), "distance", c.current)
		c.apply(cl, c.current)
	}
}

func (c *Controller) reconcileAll() {
	for _, cl := range c.registry.OnlineClients() {
		c.ReconcileClient(cl)
	}
}

// apply writes a distance to the client. Failures are logged and dropped:
// the next sweep, event or decision retries naturally.
func (c *Controller) apply(cl host.Client, distance int) {
	err := cl.SetViewDistance(distance)
	switch {
	case err == nil:
	case errors.Is(err, host.ErrClientNotReady):
		c.log.Warn("Could not set view distance: client is not attached to a world", "client", cl.Name())
	default:
		c.log.Error("Could not set view distance", "client", cl.Name(), "distance", distance, "error", err)
	}
}

// Pin fixes a client's distance, exempting it from global changes.
func (c *Controller) Pin(cl host.Client, v int) error {
	if err := c.checkRange(v); err != nil {
		return err
	}
	c.overrides[cl.ID()] = v
	c.emit(notify.LevelInfo, notify.KindPin, fmt.Sprintf("Pinned view distance of %s to %d", cl.Name(), v))
	c.apply(cl, v)
	return nil
}

// Unpin removes a client's pin and returns it to the global distance.
// It reports whether a pin was removed.
func (c *Controller) Unpin(cl host.Client) bool {
	removed := c.release(cl.ID(), cl.Name())
	c.apply(cl, c.current)
	return removed
}

// UnpinID removes the pin of a session whether or not it is still online.
// Pins of sessions that quit can only be cleared this way.
func (c *Controller) UnpinID(id host.ClientID) bool {
	if cl, ok := c.registry.Client(id); ok {
		return c.Unpin(cl)
	}
	return c.release(id, string(id))
}

func (c *Controller) release(id host.ClientID, name string) bool {
	if _, ok := c.overrides[id]; !ok {
		return false
	}
	delete(c.overrides, id)
	c.emit(notify.LevelInfo, notify.KindUnpin, fmt.Sprintf("Released view distance of %s", name))
	return true
}

// Override returns the pinned distance of a client session.
func (c *Controller) Override(id host.ClientID) (int, bool) {
	v, ok := c.overrides[id]
	return v, ok
}

// Overrides returns a copy of all pins.
func (c *Controller) Overrides() map[host.ClientID]int {
	result := make(map[host.ClientID]int, len(c.overrides))
	for k, v := range c.overrides {
		result[k] = v
	}
	return result
}

// ClientValue returns the distance the client reported in its own settings.
func (c *Controller) ClientValue(cl host.Client) int {
	return cl.ClientViewDistance()
}

// ClientEffectiveValue returns the distance the server assigned to the client.
func (c *Controller) ClientEffectiveValue(cl host.Client) int {
	return cl.ViewDistance()
}
