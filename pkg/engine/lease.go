package engine

import (
	"sync"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/errors"
)

// leaseTable grants exclusive run leases per design id. A second run
// submitted for a leased design fails immediately with a conflict; it is
// never queued, so callers always get a prompt answer.
type leaseTable struct {
	mu   sync.Mutex
	held map[string]string // design id -> holding run id
}

func newLeaseTable() *leaseTable {
	return &leaseTable{held: make(map[string]string)}
}

// acquire takes the lease for designID on behalf of runID.
func (t *leaseTable) acquire(designID, runID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if holder, ok := t.held[designID]; ok {
		return errors.New(errors.ErrCodeConflict, "design %q is already being optimized by run %s", designID, holder)
	}
	t.held[designID] = runID
	return nil
}

// release returns the lease. Releasing an unheld lease is a no-op.
func (t *leaseTable) release(designID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, designID)
}

// holder returns the run currently holding the design's lease.
func (t *leaseTable) holder(designID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.held[designID]
	return id, ok
}
