// Package rmi implements a driver for FANUC's Remote Motion Interface
// (RMI) protocol: a TCP/JSON wire format for streaming motion
// instructions and status queries to a robot controller. See
// internal/packet for the wire types, internal/queue for the outbound
// priority queue, internal/seqid for the sequence-ID authority and
// internal/inflight for the in-flight instruction tracker.
package rmi

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/weldarc/rmi/internal/broadcast"
	"github.com/weldarc/rmi/internal/inflight"
	"github.com/weldarc/rmi/internal/packet"
	"github.com/weldarc/rmi/internal/queue"
	"github.com/weldarc/rmi/internal/reqid"
	"github.com/weldarc/rmi/internal/seqid"
	"github.com/weldarc/rmi/internal/wirehealth"
)

// DriverState enumerates the session controller's states.
type DriverState int

const (
	Disconnected DriverState = iota
	Connecting
	Connected
	Initialized
	Running
	ProgramPaused
	Paused
	Faulted
	Disconnecting
)

func (s DriverState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case ProgramPaused:
		return "program_paused"
	case Paused:
		return "paused"
	case Faulted:
		return "faulted"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// SentEvent is published at transmit time, correlating the
// caller-visible request ID with the sequence ID assigned to it (zero
// for non-Instruction requests, which never receive a sequence ID).
type SentEvent struct {
	RequestID  uint64
	SequenceID uint32
	At         time.Time
}

// Driver is the RMI protocol driver for a single controller
// connection. Construct one with Connect.
type Driver struct {
	id  string
	cfg *Config
	log *logger

	conn       net.Conn
	statusConn net.Conn

	seq      *seqid.Authority
	queue    *queue.Queue
	inflight *inflight.Tracker
	reqids   *reqid.Registry
	sampler  wirehealth.Sampler

	responses  *broadcast.Broadcaster[packet.Response]
	sent       *broadcast.Broadcaster[SentEvent]
	errorsBus  *broadcast.Broadcaster[error]

	stateMu sync.Mutex
	state   DriverState

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	closedMu sync.Mutex
	closed   bool
}

// Connect dials the controller at addr, applies opts, and spawns the
// transmit, receive and heartbeat tasks (and, if configured, the
// status-port task). Mirrors the teacher's Dial, minus the handshake: the RMI wire
// has no encryption or session bootstrap layer.
func Connect(ctx context.Context, addr string, opts ...Option) (*Driver, error) {
	cfg := applyConfig(addr, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Driver{
		id:        uuid.New().String(),
		cfg:       cfg,
		log:       newLogger(cfg.logLevel),
		seq:       seqid.New(),
		queue:     queue.New(cfg.maxQueue),
		inflight:  inflight.New(cfg.inflightCap),
		reqids:    &reqid.Registry{},
		sampler:   wirehealth.New(),
		responses: broadcast.New[packet.Response](64),
		sent:      broadcast.New[SentEvent](64),
		errorsBus: broadcast.New[error](64),
		state:     Disconnected,
	}

	d.setState(Connecting)

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.primaryAddr().String())
	if err != nil {
		d.setState(Disconnected)
		return nil, &TransportError{Op: "dial", Err: err}
	}
	d.conn = conn

	if cfg.hasStatusPort() {
		sc, err := dialer.DialContext(ctx, "tcp", cfg.statusAddr().String())
		if err != nil {
			_ = conn.Close()
			d.setState(Disconnected)
			return nil, &TransportError{Op: "dial-status", Err: err}
		}
		d.statusConn = sc
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.setState(Connected)

	d.wg.Add(2)
	go d.transmitLoop(runCtx)
	go d.receiveLoop(runCtx)

	d.wg.Add(1)
	go d.heartbeatLoop(runCtx)

	if cfg.hasStatusPort() {
		d.wg.Add(1)
		go d.statusPortLoop(runCtx)
	}

	d.log.infof("connected to %s (id=%s)", cfg.primaryAddr(), d.id)
	return d, nil
}

func (d *Driver) setState(s DriverState) {
	d.stateMu.Lock()
	d.state = s
	d.stateMu.Unlock()
}

// State returns the driver's current session state.
func (d *Driver) State() DriverState {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.state
}

func (d *Driver) requireState(expected DriverState) error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.state != expected {
		return &InvalidState{Expected: expected, Actual: d.state}
	}
	return nil
}

// SendPacket enqueues req at the given priority and returns a
// request ID immediately. The sequence ID (if req is an Instruction)
// is not known until the transmit loop dequeues it.
func (d *Driver) SendPacket(req packet.Request, pri queue.Priority) (uint64, error) {
	id := d.reqids.Next()
	p := queue.Packet{RequestID: id, Priority: pri, Payload: req, EnqueuedAt: time.Now()}
	if err := d.queue.Push(p); err != nil {
		return 0, fmt.Errorf("%w", ErrQueueFull)
	}
	d.cfg.metrics.SetQueueDepth(int(pri), d.queue.Len())
	return id, nil
}

// WaitOnRequestCompletion observes the Sent event for requestID, then
// waits for the matching completion response. It returns the sequence
// ID assigned at transmit time. For a non-Instruction request it
// returns zero as soon as the Sent event is observed, without waiting
// for a response. Subscribes before requestID could
// possibly have been transmitted, so it never misses a fast
// completion even though the transmit loop may run within a
// millisecond of the caller's SendPacket.
func (d *Driver) WaitOnRequestCompletion(ctx context.Context, requestID uint64) (uint32, error) {
	sentSub := d.sent.Subscribe()
	defer sentSub.Close()
	respSub := d.responses.Subscribe()
	defer respSub.Close()
	return d.awaitCompletion(ctx, requestID, "", sentSub.Channel(), respSub.Channel())
}

func (d *Driver) awaitCompletion(ctx context.Context, requestID uint64, op string, sentCh <-chan SentEvent, respCh <-chan packet.Response) (uint32, error) {
	var seqID uint32
	var gotSent bool
	for !gotSent {
		select {
		case ev, ok := <-sentCh:
			if !ok {
				return 0, ErrDisconnected
			}
			if ev.RequestID == requestID {
				seqID = ev.SequenceID
				gotSent = true
			}
		case <-ctx.Done():
			return 0, &Timeout{Operation: "wait_on_request_completion"}
		}
	}

	if seqID == 0 && op == "" {
		// Non-Instruction request with no operation name to match: no
		// sequence ID, and no per-sequence completion to await either.
		return 0, nil
	}
	for {
		select {
		case resp, ok := <-respCh:
			if !ok {
				return 0, ErrDisconnected
			}
			sr, isSeq := resp.(packet.SequencedResponse)
			if seqID != 0 && (!isSeq || sr.SequenceID() != seqID) {
				continue
			}
			// A non-Instruction request completes with the next
			// unsequenced response of the same operation.
			if seqID == 0 && (isSeq || resp.OpName() != op) {
				continue
			}
			if id := resp.ErrorID(); id != 0 {
				return seqID, &ControllerError{ErrorID: id, Context: resp.OpName()}
			}
			return seqID, nil
		case <-ctx.Done():
			return seqID, &Timeout{Operation: "wait_on_instruction_completion"}
		}
	}
}

// sendAndWaitForCompletion composes SendPacket and
// awaitCompletion, subscribing before the packet is enqueued so a
// fast transmit/response cycle can never race ahead of the wait.
func (d *Driver) sendAndWaitForCompletion(ctx context.Context, req packet.Request, pri queue.Priority) (uint32, error) {
	sentSub := d.sent.Subscribe()
	defer sentSub.Close()
	respSub := d.responses.Subscribe()
	defer respSub.Close()

	id, err := d.SendPacket(req, pri)
	if err != nil {
		return 0, err
	}
	return d.awaitCompletion(ctx, id, req.OpName(), sentSub.Channel(), respSub.Channel())
}

// Responses subscribes to the response broadcast channel.
func (d *Driver) Responses() *broadcast.Subscription[packet.Response] { return d.responses.Subscribe() }

// SentInstructions subscribes to the request_id/sequence_id
// correlation channel.
func (d *Driver) SentInstructions() *broadcast.Subscription[SentEvent] { return d.sent.Subscribe() }

// Errors subscribes to the typed error channel.
func (d *Driver) Errors() *broadcast.Subscription[error] { return d.errorsBus.Subscribe() }

// Logs subscribes to the level-tagged log channel.
func (d *Driver) Logs() *broadcast.Subscription[LogEntry] { return d.log.subscribe() }

func (d *Driver) emitError(err error) {
	d.errorsBus.Publish(err)
}

// traceTag returns a compact, sortable diagnostic tag for a packet's
// life from enqueue to completion. It never appears on the wire; it
// exists purely to let an operator grep one packet's log lines.
func traceTag() string { return xid.New().String() }

// Abort sends Abort and waits for its response within
// response_timeout.
func (d *Driver) Abort(ctx context.Context) error {
	return d.sendCommandAndWait(ctx, packet.NewAbort())
}

// Initialize sends Initialize and waits for its response within
// response_timeout.
func (d *Driver) Initialize(ctx context.Context) error {
	return d.sendCommandAndWait(ctx, packet.NewInitialize())
}

// GetStatus sends GetStatus at High priority and waits for its
// response within response_timeout.
func (d *Driver) GetStatus(ctx context.Context) (*packet.GetStatusResponse, error) {
	return d.getStatusAt(ctx, queue.High)
}

func (d *Driver) getStatusAt(ctx context.Context, pri queue.Priority) (*packet.GetStatusResponse, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, d.cfg.responseTimeout)
	defer cancel()

	// Subscribe before sending so the response cannot arrive and be
	// published before this goroutine starts listening for it.
	sub := d.responses.Subscribe()
	defer sub.Close()

	if _, err := d.SendPacket(packet.NewGetStatus(), pri); err != nil {
		return nil, err
	}

	for {
		select {
		case resp, ok := <-sub.Channel():
			if !ok {
				return nil, ErrDisconnected
			}
			if gs, match := packet.As[packet.GetStatusResponse](resp); match {
				return &gs, nil
			}
		case <-timeoutCtx.Done():
			return nil, &Timeout{Operation: "get_status"}
		}
	}
}

// Disconnect sends Disconnect, awaits the response, and tears down
// both sockets and background tasks.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.setState(Disconnecting)
	err := d.sendCommunicationAndWait(ctx, packet.Disconnect{})
	d.Close()
	return err
}

func (d *Driver) sendCommandAndWait(ctx context.Context, req packet.Request) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, d.cfg.responseTimeout)
	defer cancel()
	_, err := d.sendAndWaitForCompletion(timeoutCtx, req, queue.Immediate)
	return err
}

func (d *Driver) sendCommunicationAndWait(ctx context.Context, req packet.Request) error {
	return d.sendCommandAndWait(ctx, req)
}

// SendAbort, SendInitialize, SendGetStatus, SendDisconnect are
// fire-and-forget counterparts returning the request ID immediately.
func (d *Driver) SendAbort() (uint64, error)      { return d.SendPacket(packet.NewAbort(), queue.Immediate) }
func (d *Driver) SendInitialize() (uint64, error) { return d.SendPacket(packet.NewInitialize(), queue.Immediate) }
func (d *Driver) SendGetStatus() (uint64, error)  { return d.SendPacket(packet.NewGetStatus(), queue.High) }
func (d *Driver) SendDisconnect() (uint64, error) {
	return d.SendPacket(packet.Disconnect{}, queue.Termination)
}

// Close tears down both sockets and background tasks without sending
// a Disconnect request. Safe to call more than once and from any
// goroutine other than the driver's own background loops: Close waits
// for them to exit, so they use beginClose instead.
func (d *Driver) Close() {
	if !d.beginClose() {
		return
	}
	d.wg.Wait()
	d.finishClose()
}

// beginClose performs the non-blocking half of teardown (cancel,
// socket close) exactly once, returning false on a repeat call. It
// never waits on d.wg, so it is safe to call from inside transmitLoop
// or receiveLoop themselves.
func (d *Driver) beginClose() bool {
	d.closedMu.Lock()
	if d.closed {
		d.closedMu.Unlock()
		return false
	}
	d.closed = true
	d.closedMu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	if d.conn != nil {
		_ = d.conn.Close()
	}
	if d.statusConn != nil {
		_ = d.statusConn.Close()
	}
	return true
}

// finishClose waits for both loops to exit and releases the broadcast
// channels and logger. Must not be called from a goroutine d.wg is
// tracking.
func (d *Driver) finishClose() {
	d.setState(Disconnected)
	d.responses.Close()
	d.sent.Close()
	d.errorsBus.Close()
	d.log.close()
}

func (d *Driver) logTransportError(op string, err error) {
	terr := &TransportError{Op: op, Err: err}
	d.emitError(terr)
	d.setState(Faulted)
	d.log.errorf("transport error during %s: %v", op, err)
	if d.beginClose() {
		go func() {
			d.wg.Wait()
			d.finishClose()
		}()
	}
}
