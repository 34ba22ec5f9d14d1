// Package seqid implements the driver's single monotonic sequence-ID
// authority. Assignment happens exactly once, inside the transmit
// loop, atomically with the decision to dequeue an Instruction — no
// other component may stamp a sequence ID.
package seqid

import "sync"

// wrapLimit is the vendor-specified wraparound point: 2^31-1. The next
// value after wrapLimit is 1, not 0 — zero is never a valid sequence ID
// on the wire.
const wrapLimit uint32 = 1<<31 - 1

// Authority hands out consecutive sequence IDs and tracks whether the
// counter has been adopted from the controller's NextSequenceID yet.
type Authority struct {
	mu      sync.Mutex
	next    uint32
	adopted bool
}

// New builds an Authority initialised to 1, matching invariant 1 of
// the spec: the first Initialize cycle with no prior GetStatus starts
// at 1.
func New() *Authority {
	return &Authority{next: 1}
}

// Next returns the next sequence ID to stamp and advances the counter,
// wrapping 2^31-1 back to 1 per vendor spec. Call this only from the
// transmit loop, atomically with dequeuing the Instruction it will be
// stamped onto.
func (a *Authority) Next() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := a.next
	a.adopted = true
	if a.next >= wrapLimit {
		a.next = 1
	} else {
		a.next++
	}
	return v
}

// AdoptNextSequenceID sets the counter from a controller-reported
// NextSequenceID, but only if the counter has not yet been used to
// stamp anything since construction or the last ResetTo1 (invariant:
// "the counter is set to that value iff the counter is still at its
// initial value or has just been reset by Initialize").
func (a *Authority) AdoptNextSequenceID(v uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.adopted {
		return
	}
	if v == 0 {
		v = 1
	}
	a.next = v
	a.adopted = true
}

// ResetTo1 is called by Initialize (program pause/resume, fault
// recovery, and startup) to start a fresh TP program's ID space. The
// counter becomes eligible for adoption again until the next Next()
// call.
func (a *Authority) ResetTo1() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next = 1
	a.adopted = false
}

// Peek returns the value Next() would return, without consuming it.
// Intended for diagnostics/tests only.
func (a *Authority) Peek() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}
