package rmi

import (
	"context"
	"errors"
	"io"

	"github.com/weldarc/rmi/internal/packet"
)

// receiveLoop reads newline-delimited frames from the TCP reader
// half, classifies them, updates the in-flight tracker, and publishes
// every response on the broadcast channel. See spec section 4.8.
func (d *Driver) receiveLoop(ctx context.Context) {
	defer d.wg.Done()

	wr := newWireReader(d.conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		resp, line, err := wr.readFrame()
		if err != nil && line != nil {
			// readFrame returns the raw line only for a frame that was
			// read but did not decode; the stream continues.
			derr := &DecodeError{Line: line, Err: err}
			d.emitError(derr)
			d.cfg.metrics.IncrementDecodeErrors()
			d.log.errorf("decode error: %v", derr)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.handleTerminate()
				return
			}
			d.logTransportError("read", err)
			return
		}

		d.cfg.metrics.IncrementFramesReceived()
		d.cfg.metrics.IncrementBytesReceived(int64(len(line)))

		d.handleResponse(resp)
	}
}

func (d *Driver) handleResponse(resp packet.Response) {
	if gs, ok := packet.As[packet.GetStatusResponse](resp); ok {
		d.seq.AdoptNextSequenceID(gs.NextSequenceID)
	}

	if sr, ok := resp.(packet.SequencedResponse); ok {
		if _, removed := d.inflight.Remove(sr.SequenceID()); removed {
			d.cfg.metrics.SetInFlightCount(d.inflight.Len())
		}
	}

	if id := resp.ErrorID(); id != 0 {
		if id == packet.ErrorIDInvalidSequence {
			if sf, ok := resp.(packet.SystemFault); ok {
				d.emitError(&InvalidSequence{SequenceID: sf.SequenceID()})
				go d.recoverFromInvalidSequence()
			}
		} else {
			cerr := &ControllerError{ErrorID: id, Context: resp.OpName()}
			d.emitError(cerr)
			d.cfg.metrics.IncrementControllerErrors()
		}
	}

	d.responses.Publish(resp)

	if _, isTerminate := resp.(packet.Terminate); isTerminate {
		d.handleTerminate()
	}
}

// handleTerminate reacts to a controller-initiated idle-timeout
// Terminate frame (or a clean socket close, which the vendor protocol
// treats identically): the session drops to Disconnected and every
// pending awaiter observes ErrDisconnected via the channel closes in
// Close().
func (d *Driver) handleTerminate() {
	d.log.warnf("controller terminated the session")
	if d.beginClose() {
		go func() {
			d.wg.Wait()
			d.finishClose()
		}()
	}
}
