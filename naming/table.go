package naming

import (
	"sync"
	"sync/atomic"
	"time"
)

// InstanceTable is the per-service snapshot of instances. A table is
// replaced atomically as a whole on every applied push; readers hold an
// immutable snapshot that is never mutated underneath them.
type InstanceTable struct {
	Key           ServiceKey
	Instances     []Instance
	Revision      int64
	LastUpdatedAt time.Time
}

// Eligible returns the instances that are candidates for selection,
// preserving registry delivery order.
func (t *InstanceTable) Eligible() []Instance {
	out := make([]Instance, 0, len(t.Instances))
	for _, inst := range t.Instances {
		if inst.Eligible() {
			out = append(out, inst)
		}
	}
	return out
}

// Empty reports whether the table holds zero instances.
func (t *InstanceTable) Empty() bool {
	return t == nil || len(t.Instances) == 0
}

// tableEntry owns the mutable slot for one service key. Writers are
// serialized on mu; readers load the snapshot pointer without locking.
type tableEntry struct {
	mu      sync.Mutex
	current atomic.Pointer[InstanceTable]
	// recvSeq substitutes a local receive-order revision when the
	// transport provides no ordering token.
	recvSeq int64
	// synthetic marks the current table as locally numbered. The first
	// transport-supplied revision replaces such a table regardless of
	// magnitude; the two numbering schemes share no ordering.
	synthetic bool
}

// snapshot returns the current table, or nil before the first fetch/push.
func (e *tableEntry) snapshot() *InstanceTable {
	return e.current.Load()
}

// replace installs a new table if revision is strictly greater than the
// current one. Returns the installed table and whether it was applied;
// stale or duplicate deliveries are dropped, keeping the previous view.
func (e *tableEntry) replace(key ServiceKey, instances []Instance, revision int64) (*InstanceTable, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	local := revision <= 0
	if local {
		e.recvSeq++
		revision = e.recvSeq
	} else if revision > e.recvSeq {
		e.recvSeq = revision
	}

	if cur := e.current.Load(); cur != nil && revision <= cur.Revision {
		// Crossing from a locally numbered table to a transport-ordered
		// one always applies; otherwise the delivery is stale.
		if local || !e.synthetic {
			return cur, false
		}
	}

	next := &InstanceTable{
		Key:           key,
		Instances:     append([]Instance(nil), instances...),
		Revision:      revision,
		LastUpdatedAt: time.Now(),
	}
	e.synthetic = local
	e.current.Store(next)
	return next, true
}
