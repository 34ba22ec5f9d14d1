package rmi

import (
	"context"
	"time"

	"github.com/weldarc/rmi/internal/inflight"
	"github.com/weldarc/rmi/internal/packet"
)

// transmitLoop drains the outbound queue, enforces inter-packet
// spacing and the in-flight cap, assigns sequence IDs at the moment
// of dequeue, and writes frames to the TCP writer half. See spec
// section 4.7; it is the driver's single writer of the wire and the
// single stamper of sequence IDs.
func (d *Driver) transmitLoop(ctx context.Context) {
	defer d.wg.Done()

	ww := newWireWriter(d.conn)
	var lastWrite time.Time

	ticker := time.NewTicker(LoopInterval)
	defer ticker.Stop()

	for {
		iterStart := time.Now()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state := d.State()
		frozen := state == Paused || state == ProgramPaused || state == Disconnecting || state == Faulted

		isInstr, hasAny := d.queue.PeekIsInstruction()
		if !hasAny {
			continue
		}
		// A freeze stops Instruction flow but must not block the
		// Immediate-priority Command that is the only way out of it
		// (ProgramResume's Initialize, fault recovery's Reset ->
		// GetStatus -> Initialize): that Command always sorts ahead
		// of any Instruction sitting behind it, so it is what Peek
		// sees next.
		if frozen && isInstr {
			continue
		}
		if isInstr && d.inflight.Full() {
			continue
		}

		wait := d.cfg.interPacketMin - time.Since(lastWrite)
		if wait > 0 {
			time.Sleep(wait)
		}

		p, ok := d.queue.Pop()
		if !ok {
			continue
		}
		d.cfg.metrics.SetQueueDepth(int(p.Priority), d.queue.Len())

		req, ok := p.Payload.(packet.Request)
		if !ok {
			d.log.errorf("dropped malformed queue entry for request %d", p.RequestID)
			continue
		}

		var seqID uint32
		if inst, isInst := req.(packet.Instruction); isInst {
			original := inst.Clone()
			seqID = d.seq.Next()
			inst.SetSequenceID(seqID)

			entry := inflight.Entry{
				SequenceID: seqID,
				RequestID:  p.RequestID,
				Original:   original,
				SentAt:     time.Now(),
			}
			if !d.inflight.Insert(entry) {
				// Capacity was reached between the Peek and the Pop;
				// put the unstamped original back at the head of its
				// bucket and retry next tick.
				p.Payload = original
				d.queue.PushFront(p)
				continue
			}
			d.cfg.metrics.SetInFlightCount(d.inflight.Len())
		}

		d.sent.Publish(SentEvent{RequestID: p.RequestID, SequenceID: seqID, At: time.Now()})
		d.log.debugf("tx trace=%s request_id=%d sequence_id=%d op=%s", traceTag(), p.RequestID, seqID, req.OpName())

		n, err := ww.writeFrame(req)
		lastWrite = time.Now()
		if err != nil {
			d.logTransportError("write", err)
			return
		}
		d.cfg.metrics.IncrementFramesSent()
		d.cfg.metrics.IncrementBytesSent(int64(n))

		if _, isInst := req.(packet.Instruction); isInst && state == Initialized {
			d.setState(Running)
		}

		if elapsed := time.Since(iterStart); elapsed > LoopInterval {
			d.log.warnf("transmit loop iteration took %s, exceeding %s", elapsed, LoopInterval)
		}
	}
}
