package rmi

import (
	"context"
	"fmt"

	"github.com/weldarc/rmi/internal/inflight"
	"github.com/weldarc/rmi/internal/packet"
	"github.com/weldarc/rmi/internal/queue"
)

// replayInFlight re-enqueues every surviving in-flight entry's original
// (unstamped) instruction at Standard priority, at the head of that
// bucket, in ascending original-sequence-ID order. A PushFront failure
// means the queue was already at max_queue when replay ran: the
// instruction is lost from the logical stream, so this is logged and
// raised on the error broadcast rather than silently dropped.
func (d *Driver) replayInFlight(entries []inflight.Entry) {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		p := queue.Packet{RequestID: e.RequestID, Priority: queue.Standard, Payload: e.Original}
		if err := d.queue.PushFront(p); err != nil {
			d.log.errorf("replay dropped in-flight request %d (sequence %d): queue full", e.RequestID, e.SequenceID)
			d.emitError(fmt.Errorf("replay request %d sequence %d: %w", e.RequestID, e.SequenceID, ErrQueueFull))
		}
	}
}

// StartupSequence runs the three-step bring-up required before the
// controller will accept Instructions: GetStatus (reject if not
// servo-ready/TP-mode), Abort if a motion buffer is already running,
// then Initialize. See spec section 4.9.
func (d *Driver) StartupSequence(ctx context.Context) error {
	if err := d.requireState(Connected); err != nil {
		return err
	}

	status, err := d.GetStatus(ctx)
	if err != nil {
		return err
	}
	if status.ServoReady != 1 || status.TPMode != 1 {
		return &ControllerError{ErrorID: status.ErrorID(), Context: "startup_sequence.get_status"}
	}

	if status.RMIMotionStatus != 0 {
		if err := d.Abort(ctx); err != nil {
			return err
		}
	}

	if err := d.Initialize(ctx); err != nil {
		return err
	}

	d.seq.ResetTo1()
	d.setState(Initialized)
	return nil
}

// ProgramPause aborts the controller's in-progress TP program while
// preserving the driver's logical in-flight and queued instruction
// stream for a later ProgramResume. Requires Running.
func (d *Driver) ProgramPause(ctx context.Context) error {
	if err := d.requireState(Running); err != nil {
		return err
	}
	if err := d.sendCommandAndWait(ctx, packet.NewAbort()); err != nil {
		return err
	}
	d.setState(ProgramPaused)
	d.cfg.metrics.SetInFlightCount(0)
	return nil
}

// ProgramResume re-initialises the controller's TP program, resets
// the sequence counter to 1, and replays every in-flight entry's
// original (unstamped) instruction back onto the queue in ascending
// original-sequence-ID order, at Standard priority and at the head of
// that bucket so it precedes anything queued after the pause.
// Requires ProgramPaused.
func (d *Driver) ProgramResume(ctx context.Context) error {
	if err := d.requireState(ProgramPaused); err != nil {
		return err
	}
	if err := d.sendCommandAndWait(ctx, packet.NewInitialize()); err != nil {
		return err
	}
	d.seq.ResetTo1()

	d.replayInFlight(d.inflight.DrainInOrder())
	d.cfg.metrics.SetInFlightCount(0)
	d.setState(Running)
	return nil
}

// Pause stops the transmit loop from dequeuing Instructions without
// aborting anything controller-side; Commands are still transmitted.
// Valid from any state.
func (d *Driver) Pause() { d.setState(Paused) }

// Continue resumes dequeuing after Pause. Requires Paused.
func (d *Driver) Continue(ctx context.Context) error {
	if err := d.requireState(Paused); err != nil {
		return err
	}
	d.setState(Running)
	return nil
}

// recoverFromInvalidSequence runs the fixed Reset -> GetStatus ->
// Initialize sequence at Immediate priority in reaction to an
// RMIT-029 SystemFault, re-synchronising the sequence counter from
// the GetStatus NextSequenceID and replaying surviving in-flight
// entries. It excludes normal dequeuing until it completes by parking
// the driver in Faulted for the duration.
func (d *Driver) recoverFromInvalidSequence() {
	prev := d.State()
	d.setState(Faulted)
	d.log.warnf("entering sequence-fault recovery")

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.responseTimeout)
	defer cancel()

	if _, err := d.sendAndWaitForCompletion(ctx, packet.NewReset(), queue.Immediate); err != nil {
		d.log.errorf("recovery reset failed: %v", err)
	}

	status, err := d.getStatusAt(ctx, queue.Immediate)
	if err != nil {
		d.log.errorf("recovery get_status failed: %v", err)
		return
	}
	d.seq.ResetTo1()
	d.seq.AdoptNextSequenceID(status.NextSequenceID)

	if _, err := d.sendAndWaitForCompletion(ctx, packet.NewInitialize(), queue.Immediate); err != nil {
		d.log.errorf("recovery initialize failed: %v", err)
		return
	}

	d.replayInFlight(d.inflight.DrainInOrder())
	d.cfg.metrics.SetInFlightCount(0)

	if prev == Faulted {
		prev = Running
	}
	d.setState(prev)
	d.log.infof("sequence-fault recovery complete, resuming at state %s", prev)
}
