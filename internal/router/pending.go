package router

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// pendingKind says what a queued entry is waiting for.
type pendingKind int

const (
	kindApproval pendingKind = iota
	kindUnlock
)

func (k pendingKind) String() string {
	if k == kindUnlock {
		return "unlock"
	}
	return "approval"
}

// outcome is the terminal result delivered to the waiting caller.
type outcome struct {
	result interface{}
	err    error
}

// pendingEntry is one in-flight request awaiting user approval or an
// unlock signal. The entry owns a single-shot done channel; removal
// from the table is the exactly-once resolution point.
type pendingEntry struct {
	req       Request
	kind      pendingKind
	createdAt time.Time
	done      chan outcome
	timer     *time.Timer
}

func (e *pendingEntry) info() PendingInfo {
	return PendingInfo{
		ID:        e.req.ID,
		Method:    e.req.Method,
		Origin:    e.req.Origin,
		Params:    e.req.Params,
		Kind:      e.kind.String(),
		CreatedAt: e.createdAt,
	}
}

// pendingTable holds every outstanding entry, both approval and
// pending-unlock. Ids are unique across the whole table and are never
// silently overwritten.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingEntry)}
}

// add inserts a new entry. Returns false if the id is already
// outstanding.
func (t *pendingTable) add(e *pendingEntry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[e.req.ID]; exists {
		return false
	}
	t.entries[e.req.ID] = e
	return true
}

// take removes and returns the entry for id. The first take wins;
// anything after gets nil, which is what makes double-resolution a
// structural impossibility.
func (t *pendingTable) take(id string) *pendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return nil
	}
	delete(t.entries, id)
	return e
}

// get returns the entry without removing it.
func (t *pendingTable) get(id string) *pendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[id]
}

// promote switches an entry from pending-unlock to awaiting-approval
// in place, keeping its id, channel, and timeout ceiling.
func (t *pendingTable) promote(id string) *pendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok || e.kind != kindUnlock {
		return nil
	}
	e.kind = kindApproval
	return e
}

// takeAll removes and returns every entry matching the filter.
func (t *pendingTable) takeAll(filter func(*pendingEntry) bool) []*pendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*pendingEntry
	for id, e := range t.entries {
		if filter(e) {
			delete(t.entries, id)
			out = append(out, e)
		}
	}
	return out
}

// size returns the number of outstanding entries.
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// snapshot lists every outstanding entry, oldest first.
func (t *pendingTable) snapshot() []PendingInfo {
	t.mu.Lock()
	infos := make([]PendingInfo, 0, len(t.entries))
	for _, e := range t.entries {
		infos = append(infos, e.info())
	}
	t.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// resolve delivers the outcome to the waiting caller and stops the
// entry's timer. Must only be called on entries already removed from
// the table.
func (e *pendingEntry) resolve(result interface{}, err error) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.done <- outcome{result: result, err: err}
}

// ApprovalResponse is what the approval surface posts back.
type ApprovalResponse struct {
	RequestID string          `json:"requestId"`
	Approved  bool            `json:"approved"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}
