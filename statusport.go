package rmi

import (
	"context"
	"time"

	"github.com/weldarc/rmi/internal/packet"
)

// statusBackoff backs off the status-port read/write retry interval
// exponentially between DefaultFastPoll and DefaultSteadyPoll after a
// failed frame, and snaps back to DefaultFastPoll the moment a frame
// succeeds again. It exists only for statusPortLoop: the primary
// connection's receive loop never idles (the controller drives its
// cadence), so this backoff has no other caller.
type statusBackoff struct {
	cur time.Duration
}

func newStatusBackoff() *statusBackoff {
	return &statusBackoff{cur: DefaultFastPoll}
}

// wait sleeps for the current interval, logs once when the interval
// first escalates past the fast floor, then doubles it toward the
// steady ceiling.
func (b *statusBackoff) wait(d *Driver) {
	time.Sleep(b.cur)
	if b.cur == DefaultFastPoll {
		d.log.debugf("status port backing off from %s", DefaultFastPoll)
	}
	if b.cur < DefaultSteadyPoll {
		b.cur *= 2
		if b.cur > DefaultSteadyPoll {
			b.cur = DefaultSteadyPoll
		}
	}
}

func (b *statusBackoff) reset() { b.cur = DefaultFastPoll }

// statusPortLoop polls the optional secondary out-of-band status
// port with the identical newline-JSON Command codec used on the
// primary connection (spec section 6: "A second port may be used for
// out-of-band status on some controllers; the driver MUST be able to
// open and poll it identically"). It never touches the sequence
// authority, the in-flight tracker, or the priority queue — it is a
// read-mostly side channel whose responses are published on the same
// broadcast so subscribers do not need to know which socket a status
// reply arrived on.
func (d *Driver) statusPortLoop(ctx context.Context) {
	defer d.wg.Done()

	ww := newWireWriter(d.statusConn)
	wr := newWireReader(d.statusConn)
	backoff := newStatusBackoff()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := ww.writeFrame(packet.NewGetStatus()); err != nil {
			d.log.warnf("status port write failed: %v", err)
			backoff.wait(d)
			continue
		}

		_ = d.statusConn.SetReadDeadline(time.Now().Add(d.cfg.pollPeriod))
		resp, _, err := wr.readFrame()
		if err != nil {
			backoff.wait(d)
			continue
		}
		if resp != nil {
			d.responses.Publish(resp)
			backoff.reset()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.cfg.pollPeriod):
		}
	}
}
