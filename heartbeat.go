package rmi

import (
	"context"
	"time"

	"github.com/weldarc/rmi/internal/packet"
	"github.com/weldarc/rmi/internal/queue"
)

// heartbeatLoop enqueues GetStatus, ReadCartesianPosition, and
// ReadJointAngles at High priority on poll_period cadence, per spec
// section 5's "internal heartbeat/status-poll task". It also samples
// wire health on the control socket so operators can correlate
// SystemFault HOLD recoveries with RTT/retransmit context.
func (d *Driver) heartbeatLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state := d.State()
		if state == Disconnecting || state == Faulted {
			continue
		}

		if _, err := d.SendPacket(packet.NewGetStatus(), queue.High); err != nil {
			d.log.warnf("heartbeat get_status enqueue failed: %v", err)
		}
		if _, err := d.SendPacket(packet.NewReadCartesianPosition(), queue.High); err != nil {
			d.log.warnf("heartbeat read_cartesian_position enqueue failed: %v", err)
		}
		if _, err := d.SendPacket(packet.NewReadJointAngles(), queue.High); err != nil {
			d.log.warnf("heartbeat read_joint_angles enqueue failed: %v", err)
		}

		if sample := d.sampler.Sample(d.conn); sample.Available {
			d.log.debugf("wire health: rtt=%dus rttvar=%dus retransmits=%d cwnd=%d",
				sample.RTT, sample.RTTVariance, sample.Retransmits, sample.SendCongestion)
		}
	}
}
