package viewdistance

import (
	"sort"
	"time"

	"dynview/pkg/host"
)

// ClientSummary names a client in a status report.
type ClientSummary struct {
	ID   host.ClientID `json:"id"`
	Name string        `json:"name"`
}

// Status is a point-in-time report of the controller and its clients.
type Status struct {
	Desired               int                     `json:"desired"`
	Current               int                     `json:"current"`
	Minimum               int                     `json:"minimum"`
	Maximum               int                     `json:"maximum"`
	AverageTPS            float64                 `json:"average_tps"`
	Online                int                     `json:"online"`
	AtGlobal              int                     `json:"at_global"`
	LowClientDistances    map[int][]ClientSummary `json:"low_client_distances"`
	Overrides             map[host.ClientID]int   `json:"overrides"`
	TrackedClients        int                     `json:"tracked_clients"`
	LastDecision          time.Time               `json:"last_decision"`
	TimeUntilNextDecision time.Duration           `json:"time_until_next_decision"`
}

// Status reports the controller state. LowClientDistances groups clients
// whose own render distance setting is below the current global distance,
// so administrators can tell who will not benefit from a raise.
func (c *Controller) Status() Status {
	s := Status{
		Desired:               c.desired,
		Current:               c.current,
		Minimum:               c.minimum,
		Maximum:               c.maximum,
		AverageTPS:            c.metric.AverageTPS(),
		LowClientDistances:    make(map[int][]ClientSummary),
		Overrides:             c.Overrides(),
		TrackedClients:        c.activity.Len(),
		LastDecision:          c.lastDecision,
		TimeUntilNextDecision: c.TimeUntilNextDecision(),
	}

	clients := c.registry.OnlineClients()
	s.Online = len(clients)
	for _, cl := range clients {
		if cl.ViewDistance() == c.current {
			s.AtGlobal++
		}
		if reported := cl.ClientViewDistance(); reported < c.current {
			s.LowClientDistances[reported] = append(s.LowClientDistances[reported], ClientSummary{ID: cl.ID(), Name: cl.Name()})
		}
	}
	for _, group := range s.LowClientDistances {
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })
	}
	return s
}
