// Package queue implements the driver's five-level outbound priority
// queue: strict priority across levels, FIFO within a level.
package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/weldarc/rmi/internal/packet"
)

// Priority orders outbound packets. Immediate is reserved for fault
// recovery and program pause/resume actions (spec: "Immediate is
// reserved for recovery and pause/resume actions").
type Priority int

const (
	Low Priority = iota
	Standard
	High
	Immediate
	Termination
	numPriorities
)

// ErrQueueFull is returned by Push when the queue is at its configured
// capacity. The caller decides whether to drop the packet or retry.
var ErrQueueFull = errors.New("queue: full")

// Packet is a single queue entry. RequestID is assigned synchronously
// before the packet ever reaches the queue (see the reqid package);
// Payload is whatever the caller submitted — a Communication, Command,
// or Instruction request.
type Packet struct {
	RequestID  uint64
	Priority   Priority
	Payload    any
	EnqueuedAt time.Time
}

// IsInstruction reports whether Payload is an Instruction, the only
// family that consumes a sequence ID and occupies the in-flight
// tracker.
func (p Packet) IsInstruction() bool {
	_, ok := p.Payload.(packet.Instruction)
	return ok
}

// Queue is a bounded, five-bucket priority deque. Push enqueues at a
// bucket's tail; PushFront enqueues at a bucket's head (used for
// replaying in-flight originals during pause/resume and fault
// recovery); Pop removes from the head of the highest non-empty
// bucket. A Standard packet is never returned while High is
// non-empty — priority is strict across levels, FIFO within one.
type Queue struct {
	mu       sync.Mutex
	buckets  [numPriorities][]Packet
	maxTotal int
}

// New builds a Queue bounded at maxTotal enqueued packets across all
// priority levels combined. maxTotal <= 0 means unbounded.
func New(maxTotal int) *Queue {
	return &Queue{maxTotal: maxTotal}
}

func (q *Queue) lenLocked() int {
	n := 0
	for _, b := range q.buckets {
		n += len(b)
	}
	return n
}

// Len returns the total number of packets currently enqueued, across
// all priority levels.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Push enqueues p at the tail of its priority bucket. It fails with
// ErrQueueFull if the queue is already at capacity.
func (q *Queue) Push(p Packet) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.maxTotal > 0 && q.lenLocked() >= q.maxTotal {
		return ErrQueueFull
	}
	q.buckets[p.Priority] = append(q.buckets[p.Priority], p)
	return nil
}

// PushFront inserts p at the head of its priority bucket, bypassing
// the back of the queue. Used for replay: in-flight originals pushed
// back in reverse order come out in their original order, ahead of
// anything already queued at the same priority.
func (q *Queue) PushFront(p Packet) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.maxTotal > 0 && q.lenLocked() >= q.maxTotal {
		return ErrQueueFull
	}
	q.buckets[p.Priority] = append([]Packet{p}, q.buckets[p.Priority]...)
	return nil
}

// Pop removes and returns the packet at the head of the
// highest-priority non-empty bucket. ok is false if the queue is
// empty.
func (q *Queue) Pop() (Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for pr := numPriorities - 1; pr >= 0; pr-- {
		b := q.buckets[pr]
		if len(b) == 0 {
			continue
		}
		p := b[0]
		q.buckets[pr] = b[1:]
		return p, true
	}
	return Packet{}, false
}

// PeekIsInstruction reports whether the next packet Pop would return
// is an Instruction, without removing it. The transmit loop uses this
// to decide whether the in-flight cap applies before committing to a
// dequeue.
func (q *Queue) PeekIsInstruction() (bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for pr := numPriorities - 1; pr >= 0; pr-- {
		b := q.buckets[pr]
		if len(b) == 0 {
			continue
		}
		return b[0].IsInstruction(), true
	}
	return false, false
}
