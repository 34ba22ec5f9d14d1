// Package wirehealth samples low-level TCP_INFO statistics on the
// control socket; the driver's heartbeat loop takes a sample on every
// tick and logs its RTT/retransmit context at debug level. It is pure
// observability: nothing here changes wire
// behaviour, so it never conflicts with the Non-goals around TLS or
// schema versioning.
package wirehealth

import "net"

// Sample is a point-in-time read of the control socket's kernel-level
// TCP statistics. Zero values mean "unavailable on this platform",
// never "zero observed" — callers should treat a zero RTT as unknown.
type Sample struct {
	RTT            uint32 // microseconds
	RTTVariance    uint32 // microseconds
	Retransmits    uint32
	SendCongestion uint32 // segments
	Available      bool
}

// Sampler reads a Sample from a live TCP connection. Implementations
// must not block and must not mutate the connection.
type Sampler interface {
	Sample(conn net.Conn) Sample
}

// noopSampler is used on platforms with no TCP_INFO support wired in.
type noopSampler struct{}

func (noopSampler) Sample(net.Conn) Sample { return Sample{} }
