package rmi

import (
	"errors"
	"fmt"

	"github.com/weldarc/rmi/internal/packet"
)

// Sentinel errors returned directly, mirroring the teacher's
// errors.New package-variable idiom.
var (
	// ErrQueueFull is returned by SendPacket when max_queue is reached.
	ErrQueueFull = errors.New("rmi: outbound queue full")
	// ErrDisconnected is delivered to every pending awaiter when the
	// session terminates (Terminate frame, transport failure, or an
	// explicit Disconnect) while they were still waiting.
	ErrDisconnected = errors.New("rmi: session disconnected")
	// ErrPacketVariantMismatch is returned by the typed extraction
	// helpers in internal/packet when the response is not the
	// requested variant. Never a panic. It is the same value as
	// packet.ErrVariantMismatch, so errors.Is matches either name.
	ErrPacketVariantMismatch = packet.ErrVariantMismatch
	// ErrInvalidConfig is returned by Connect when the supplied Config
	// fails Validate().
	ErrInvalidConfig = errors.New("rmi: invalid configuration")
)

// TransportError wraps a TCP read/write or connect failure. It is
// always fatal to the session: the driver transitions to Faulted and
// every pending awaiter observes ErrDisconnected.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("rmi: transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a frame that did not match any known response
// variant. It is logged and broadcast but never closes the connection;
// the stream is assumed resynchronisable at the next newline.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("rmi: decode failed on %d-byte frame: %v", len(e.Line), e.Err)
}
func (e *DecodeError) Unwrap() error { return e.Err }

// ControllerError reports a non-zero ErrorID in an otherwise
// well-formed response. ErrorID is the vendor's numeric error class
// (RMIT-NNN); Context is a short human label (the operation name) for
// log lines.
type ControllerError struct {
	ErrorID uint32
	Context string
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("rmi: controller error %d during %s", e.ErrorID, e.Context)
}

// InvalidSequence reports an RMIT-029 class SystemFault naming the
// offending sequence ID. The session controller reacts to this
// automatically (Reset -> GetStatus -> Initialize); library callers
// only see it if they are inspecting the error broadcast directly.
type InvalidSequence struct {
	SequenceID uint32
}

func (e *InvalidSequence) Error() string {
	return fmt.Sprintf("rmi: invalid sequence id %d, entering recovery", e.SequenceID)
}

// InvalidState reports a session operation invoked while the driver
// was not in the state it requires.
type InvalidState struct {
	Expected DriverState
	Actual   DriverState
}

func (e *InvalidState) Error() string {
	return fmt.Sprintf("rmi: invalid state: expected %s, got %s", e.Expected, e.Actual)
}

// Timeout reports an awaiter that exceeded response_timeout.
type Timeout struct {
	Operation string
}

func (e *Timeout) Error() string { return fmt.Sprintf("rmi: timeout waiting for %s", e.Operation) }
