//go:build linux

package wirehealth

import (
	"net"

	"golang.org/x/sys/unix"
)

// linuxSampler reads the kernel's TCP_INFO structure for the control
// socket's underlying file descriptor.
type linuxSampler struct{}

// New builds the platform Sampler. On Linux this reads real TCP_INFO
// stats; elsewhere it is a no-op (see wirehealth_other.go).
func New() Sampler { return linuxSampler{} }

func (linuxSampler) Sample(conn net.Conn) Sample {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return Sample{}
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return Sample{}
	}

	var info *unix.TCPInfo
	var getErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		info, getErr = unix.GetsockoptTCPInfo(int(fd), unix.SOL_TCP, unix.TCP_INFO)
	})
	if ctrlErr != nil || getErr != nil || info == nil {
		return Sample{}
	}

	return Sample{
		RTT:            info.Rtt,
		RTTVariance:    info.Rttvar,
		Retransmits:    uint32(info.Retransmits),
		SendCongestion: info.Snd_cwnd,
		Available:      true,
	}
}
