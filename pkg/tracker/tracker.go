// Package tracker remembers where each client was last seen moving, so idle
// clients can be told apart from active ones.
package tracker

import (
	"sync"

	"dynview/pkg/host"
)

// Record is the last significant position of a client and the tick it was seen there.
type Record struct {
	Position host.Position
	Tick     int64
}

// Tracker tracks activity per client session.
type Tracker struct {
	mu        sync.RWMutex
	threshold float64
	records   map[host.ClientID]Record
}

// New creates a Tracker. Movements of at most threshold are not significant.
func New(threshold float64) *Tracker {
	return &Tracker{
		threshold: threshold,
		records:   make(map[host.ClientID]Record),
	}
}

// Observe compares pos against the stored record. When no record exists or the
// client moved further than the threshold, the record is replaced with
// (pos, tick) and moved is true. Otherwise the stored record is returned
// unchanged.
func (t *Tracker) Observe(id host.ClientID, pos host.Position, tick int64) (rec Record, moved bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if ok && host.Distance(rec.Position, pos) <= t.threshold {
		return rec, false
	}
	rec = Record{Position: pos, Tick: tick}
	t.records[id] = rec
	return rec, true
}

// Get returns the record for a client.
func (t *Tracker) Get(id host.ClientID) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	return rec, ok
}

// Stale reports whether more than threshold ticks passed since the record was taken.
func Stale(rec Record, tick, threshold int64) bool {
	return tick-rec.Tick > threshold
}

// Forget drops the record of a session that ended.
func (t *Tracker) Forget(id host.ClientID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, id)
}

// Len returns the number of tracked clients.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Snapshot returns a copy of all records.
func (t *Tracker) Snapshot() map[host.ClientID]Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[host.ClientID]Record, len(t.records))
	for k, v := range t.records {
		result[k] = v
	}
	return result
}
