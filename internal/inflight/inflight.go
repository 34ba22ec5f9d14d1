// Package inflight implements the bounded set of unacknowledged
// Instructions the driver has transmitted but not yet seen a
// completion for.
package inflight

import (
	"sort"
	"sync"
	"time"

	"github.com/weldarc/rmi/internal/packet"
)

// Cap is the vendor-confirmed maximum number of simultaneously
// in-flight Instructions, used when New is called with cap <= 0.
// Raising it without controller vendor confirmation risks the
// controller's own internal buffer.
const Cap = 8

// Entry is a single tracked Instruction. Original is the pre-stamp
// payload as submitted by the caller, retained so program_resume and
// fault recovery can re-submit it with a fresh sequence ID.
type Entry struct {
	SequenceID uint32
	RequestID  uint64
	Original   packet.Instruction
	SentAt     time.Time
}

// Tracker is a short-lock-held map keyed by sequence ID. The transmit
// loop inserts atomically with transmission and sequence-ID
// assignment; the receive loop removes on completion. Never hold the
// tracker's lock across network I/O or a channel send.
type Tracker struct {
	mu      sync.Mutex
	entries map[uint32]Entry
	cap     int
}

// New builds an empty Tracker bounded at cap simultaneously tracked
// entries. cap <= 0 falls back to Cap.
func New(cap int) *Tracker {
	if cap <= 0 {
		cap = Cap
	}
	return &Tracker{entries: make(map[uint32]Entry, cap), cap: cap}
}

// Len returns the number of currently tracked entries.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Full reports whether the tracker is at its capacity. The transmit
// loop must not dequeue an Instruction while this is true; it waits
// for a completion instead.
func (t *Tracker) Full() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries) >= t.cap
}

// Insert adds a new in-flight entry. ok is false if the tracker was
// already at capacity — the caller (transmit loop) must not have
// dequeued in that case.
func (t *Tracker) Insert(e Entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) >= t.cap {
		return false
	}
	t.entries[e.SequenceID] = e
	return true
}

// Remove deletes the entry for sequenceID, if any, and returns it.
// found is false for an out-of-order or unknown sequence ID — callers
// should log this as an anomaly, not treat it as fatal.
func (t *Tracker) Remove(sequenceID uint32) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[sequenceID]
	if ok {
		delete(t.entries, sequenceID)
	}
	return e, ok
}

// DrainInOrder removes every tracked entry and returns them ordered by
// ascending original sequence ID, for program_resume and fault-recovery
// replay.
func (t *Tracker) DrainInOrder() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	for k := range t.entries {
		delete(t.entries, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceID < out[j].SequenceID })
	return out
}
