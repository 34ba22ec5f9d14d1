package queue

import "testing"

func TestStrictPriorityOrdering(t *testing.T) {
	q := New(0)
	_ = q.Push(Packet{RequestID: 1, Priority: Low})
	_ = q.Push(Packet{RequestID: 2, Priority: Standard})
	_ = q.Push(Packet{RequestID: 3, Priority: Immediate})
	_ = q.Push(Packet{RequestID: 4, Priority: High})

	want := []uint64{3, 4, 2, 1}
	for _, id := range want {
		p, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() returned empty, want request %d", id)
		}
		if p.RequestID != id {
			t.Fatalf("Pop() = request %d, want %d", p.RequestID, id)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop() on empty queue returned ok=true")
	}
}

func TestFIFOWithinLevel(t *testing.T) {
	q := New(0)
	for _, id := range []uint64{1, 2, 3} {
		_ = q.Push(Packet{RequestID: id, Priority: Standard})
	}
	for _, want := range []uint64{1, 2, 3} {
		p, _ := q.Pop()
		if p.RequestID != want {
			t.Fatalf("Pop() = %d, want %d", p.RequestID, want)
		}
	}
}

func TestPushFrontBypassesTail(t *testing.T) {
	q := New(0)
	_ = q.Push(Packet{RequestID: 1, Priority: Standard})
	_ = q.PushFront(Packet{RequestID: 2, Priority: Standard})

	p, _ := q.Pop()
	if p.RequestID != 2 {
		t.Fatalf("Pop() after PushFront = %d, want 2", p.RequestID)
	}
}

func TestPushFrontPreservesRelativeOrderWhenReplayedInReverse(t *testing.T) {
	q := New(0)
	entries := []uint64{10, 20, 30}
	for i := len(entries) - 1; i >= 0; i-- {
		_ = q.PushFront(Packet{RequestID: entries[i], Priority: Standard})
	}
	for _, want := range entries {
		p, _ := q.Pop()
		if p.RequestID != want {
			t.Fatalf("Pop() = %d, want %d", p.RequestID, want)
		}
	}
}

func TestBoundedQueueRejectsOverflow(t *testing.T) {
	q := New(1)
	if err := q.Push(Packet{RequestID: 1, Priority: Low}); err != nil {
		t.Fatalf("first Push() = %v, want nil", err)
	}
	if err := q.Push(Packet{RequestID: 2, Priority: Low}); err != ErrQueueFull {
		t.Fatalf("second Push() = %v, want ErrQueueFull", err)
	}
}

func TestPeekIsInstructionDoesNotRemove(t *testing.T) {
	q := New(0)
	_ = q.Push(Packet{RequestID: 1, Priority: Standard, Payload: "not an instruction"})

	isInstr, hasAny := q.PeekIsInstruction()
	if !hasAny {
		t.Fatal("PeekIsInstruction() hasAny = false, want true")
	}
	if isInstr {
		t.Fatal("PeekIsInstruction() isInstr = true for a non-Instruction payload")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() after Peek = %d, want 1 (Peek must not remove)", q.Len())
	}
}
