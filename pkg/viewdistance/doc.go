// Package viewdistance adapts the per-client view distance of a game server
// to its measured performance.
//
// The [Controller] owns three values: a fixed minimum, the administrator's
// desired distance and the current global distance actually pushed to
// clients. Every tick its fast hook checks whether the decision interval
// elapsed and, if so, samples the five minute average TPS:
//
//   - below 15: emergency, drop to the minimum immediately
//   - below 17: lower by one step immediately
//   - below 19: lower by one step gracefully
//   - 19.9 and above: raise by one step gracefully, never above desired
//   - otherwise: nothing to do
//
// An immediate transition reconciles every connected client in the same
// call. A graceful one only moves the global value; clients pick it up on
// their next trigger: a teleport, opening a menu, joining, or the staleness
// sweep, which reconciles clients that have not moved for a while.
//
// Clients can be pinned to an explicit distance with [Controller.Pin]; pinned
// clients are left alone by global changes until [Controller.Unpin].
//
// # Concurrency
//
// A Controller is not safe for concurrent use. Every method must run on the
// host scheduler's tick context; foreign goroutines go through
// core.Scheduler.Call.
package viewdistance
