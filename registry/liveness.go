package registry

import (
	"iter"

	"github.com/dirtywork-solutions/runecaller/id"
)

// Live filters a lookup snapshot down to entries whose receiver target
// still exists. The returned sequence is finite and restartable: each
// range re-walks the snapshot, not the live registry state, so one
// consistent point in time is observed.
//
// Entries discovered dead are pruned from the registry after the
// sequence finishes (including early break), never while the snapshot
// is being walked. Pruning is best-effort and does not fail.
func (r *Registry) Live(entries []Entry) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		var dead []id.ConnectionID
		defer func() {
			if len(dead) > 0 {
				r.pruneDead(dead)
			}
		}()

		for _, e := range entries {
			if !e.ref.Alive() {
				dead = append(dead, e.conn)
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// pruneDead removes entries discovered dead during a Live walk. Entries
// already removed (by a concurrent disconnect or another walk) are
// skipped silently.
func (r *Registry) pruneDead(conns []id.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range conns {
		_ = r.removeLocked(conn)
	}
}
