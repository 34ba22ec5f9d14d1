package packet

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownVariant is returned by Decode when a frame carries none of
// the known family discriminators, or an unrecognised operation name
// under a known family. The caller (the driver's receive loop) treats
// this as a non-fatal DecodeError and continues at the next frame.
var ErrUnknownVariant = errors.New("packet: unknown response variant")

// ErrorIDInvalidSequence is the vendor error class (RMIT-029) that
// triggers the driver's automatic Reset/GetStatus/Initialize recovery.
const ErrorIDInvalidSequence uint32 = 29

// Response is any decoded reply or unsolicited frame.
type Response interface {
	Family() string
	OpName() string
	ErrorID() uint32
}

// SequencedResponse is a Response that completes a specific Instruction.
type SequencedResponse interface {
	Response
	SequenceID() uint32
}

type rawResponse struct {
	Communication *string `json:"Communication"`
	Command       *string `json:"Command"`
	Instruction   *string `json:"Instruction"`

	ErrorID        uint32  `json:"ErrorID"`
	SequenceID     uint32  `json:"SequenceID"`
	NextSequenceID *uint32 `json:"NextSequenceID"`

	ServoReady      int `json:"ServoReady"`
	TPMode          int `json:"TPMode"`
	RMIMotionStatus int `json:"RMIMotionStatus"`
	Override        int `json:"Override"`

	Position      *positionWire    `json:"Position"`
	Configuration *configWire      `json:"Configuration"`
	JointAngles   *jointAnglesWire `json:"JointAngles"`
	Speed         *float64         `json:"Speed"`
	UFrameNumber  *int             `json:"UFrameNumber"`
	UToolNumber   *int             `json:"UToolNumber"`
	PortNumber    *int             `json:"PortNumber"`
	PortValue     *bool            `json:"PortValue"`
	Index         *int             `json:"Index"`
}

// Decode classifies a single newline-delimited JSON frame into a typed
// Response by inspecting which discriminator field is present, per the
// vendor's untagged wire format. A frame wrapped in a family envelope,
// {"<Family>": {...}}, is first unwrapped to its inner object; a flat
// frame is classified as it is.
func Decode(data []byte) (Response, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err == nil && len(outer) == 1 {
		for _, family := range []string{familyCommunication, familyCommand, familyInstruction} {
			if inner, ok := outer[family]; ok && len(inner) > 0 && inner[0] == '{' {
				data = inner
			}
		}
	}

	var raw rawResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch {
	case raw.Communication != nil:
		return decodeCommunication(*raw.Communication, raw)
	case raw.Command != nil:
		return decodeCommand(*raw.Command, raw)
	case raw.Instruction != nil:
		return InstructionResponse{op: *raw.Instruction, seqID: raw.SequenceID, errID: raw.ErrorID}, nil
	default:
		return nil, fmt.Errorf("%w: no family discriminator present", ErrUnknownVariant)
	}
}

func decodeCommunication(op string, raw rawResponse) (Response, error) {
	switch op {
	case "Connect":
		return ConnectResponse{errID: raw.ErrorID}, nil
	case "Disconnect":
		return DisconnectResponse{errID: raw.ErrorID}, nil
	case "Terminate":
		return Terminate{}, nil
	case "SystemFault":
		return SystemFault{seqID: raw.SequenceID, errID: raw.ErrorID}, nil
	default:
		return nil, fmt.Errorf("%w: communication op %q", ErrUnknownVariant, op)
	}
}

func decodeCommand(op string, raw rawResponse) (Response, error) {
	switch op {
	case "GetStatus":
		var next uint32
		if raw.NextSequenceID != nil {
			next = *raw.NextSequenceID
		}
		return GetStatusResponse{
			errID:           raw.ErrorID,
			NextSequenceID:  next,
			ServoReady:      raw.ServoReady,
			TPMode:          raw.TPMode,
			RMIMotionStatus: raw.RMIMotionStatus,
			Override:        raw.Override,
		}, nil
	case "ReadCartesianPosition":
		resp := ReadCartesianPositionResponse{errID: raw.ErrorID}
		if raw.Position != nil {
			resp.Position = fromPositionWire(*raw.Position)
		}
		if raw.Configuration != nil {
			resp.Configuration = fromConfigWire(*raw.Configuration)
		}
		return resp, nil
	case "ReadJointAngles":
		resp := ReadJointAnglesResponse{errID: raw.ErrorID}
		if raw.JointAngles != nil {
			resp.JointAngles = fromJointAnglesWire(*raw.JointAngles)
		}
		return resp, nil
	case "ReadTCPSpeed":
		resp := ReadTCPSpeedResponse{errID: raw.ErrorID}
		if raw.Speed != nil {
			resp.Speed = *raw.Speed
		}
		return resp, nil
	case "GetUFrameUTool":
		resp := GetUFrameUToolResponse{errID: raw.ErrorID}
		if raw.UFrameNumber != nil {
			resp.UFrameNumber = *raw.UFrameNumber
		}
		if raw.UToolNumber != nil {
			resp.UToolNumber = *raw.UToolNumber
		}
		return resp, nil
	case "ReadUFrameData":
		resp := ReadUFrameDataResponse{errID: raw.ErrorID}
		if raw.UFrameNumber != nil {
			resp.UFrameNumber = *raw.UFrameNumber
		}
		if raw.Position != nil {
			resp.Frame = FrameData{Position: fromPositionWire(*raw.Position)}
		}
		return resp, nil
	case "ReadUToolData":
		resp := ReadUToolDataResponse{errID: raw.ErrorID}
		if raw.UToolNumber != nil {
			resp.UToolNumber = *raw.UToolNumber
		}
		if raw.Position != nil {
			resp.Frame = FrameData{Position: fromPositionWire(*raw.Position)}
		}
		return resp, nil
	case "ReadDIN":
		resp := ReadDINResponse{errID: raw.ErrorID}
		if raw.PortNumber != nil {
			resp.PortNumber = *raw.PortNumber
		}
		if raw.PortValue != nil {
			resp.PortValue = *raw.PortValue
		}
		return resp, nil
	case "ReadPositionRegister":
		resp := ReadPositionRegisterResponse{errID: raw.ErrorID}
		if raw.Index != nil {
			resp.Index = *raw.Index
		}
		if raw.Position != nil {
			resp.Position = fromPositionWire(*raw.Position)
		}
		return resp, nil
	case "Abort", "Initialize", "Reset", "Continue", "SetUFrameUTool", "WriteUFrameData",
		"WriteUToolData", "WriteDOUT", "SetOverride", "WritePositionRegister":
		return AckResponse{op: op, errID: raw.ErrorID}, nil
	default:
		return nil, fmt.Errorf("%w: command op %q", ErrUnknownVariant, op)
	}
}

// --- concrete Communication responses ---------------------------------------

type ConnectResponse struct{ errID uint32 }

func (ConnectResponse) Family() string   { return familyCommunication }
func (ConnectResponse) OpName() string   { return "Connect" }
func (r ConnectResponse) ErrorID() uint32 { return r.errID }

type DisconnectResponse struct{ errID uint32 }

func (DisconnectResponse) Family() string   { return familyCommunication }
func (DisconnectResponse) OpName() string   { return "Disconnect" }
func (r DisconnectResponse) ErrorID() uint32 { return r.errID }

// Terminate is the controller-initiated idle-timeout notification.
type Terminate struct{}

func (Terminate) Family() string   { return familyCommunication }
func (Terminate) OpName() string   { return "Terminate" }
func (Terminate) ErrorID() uint32  { return 0 }

// SystemFault is the controller-initiated fault notification. When
// ErrorID equals ErrorIDInvalidSequence the driver's fault-recovery
// state machine takes over (see the session controller).
type SystemFault struct {
	seqID uint32
	errID uint32
}

func (SystemFault) Family() string      { return familyCommunication }
func (SystemFault) OpName() string      { return "SystemFault" }
func (f SystemFault) ErrorID() uint32    { return f.errID }
func (f SystemFault) SequenceID() uint32 { return f.seqID }

// --- concrete Command responses ----------------------------------------------

// AckResponse is shared by every Command whose reply carries nothing
// beyond ErrorID.
type AckResponse struct {
	op    string
	errID uint32
}

func (AckResponse) Family() string    { return familyCommand }
func (r AckResponse) OpName() string  { return r.op }
func (r AckResponse) ErrorID() uint32 { return r.errID }

type GetStatusResponse struct {
	errID           uint32
	NextSequenceID  uint32
	ServoReady      int
	TPMode          int
	RMIMotionStatus int
	Override        int
}

func (GetStatusResponse) Family() string    { return familyCommand }
func (GetStatusResponse) OpName() string    { return "GetStatus" }
func (r GetStatusResponse) ErrorID() uint32 { return r.errID }

type ReadCartesianPositionResponse struct {
	errID         uint32
	Position      Position
	Configuration Configuration
}

func (ReadCartesianPositionResponse) Family() string    { return familyCommand }
func (ReadCartesianPositionResponse) OpName() string    { return "ReadCartesianPosition" }
func (r ReadCartesianPositionResponse) ErrorID() uint32 { return r.errID }

type ReadJointAnglesResponse struct {
	errID       uint32
	JointAngles JointAngles
}

func (ReadJointAnglesResponse) Family() string    { return familyCommand }
func (ReadJointAnglesResponse) OpName() string    { return "ReadJointAngles" }
func (r ReadJointAnglesResponse) ErrorID() uint32 { return r.errID }

type ReadTCPSpeedResponse struct {
	errID uint32
	Speed float64
}

func (ReadTCPSpeedResponse) Family() string    { return familyCommand }
func (ReadTCPSpeedResponse) OpName() string    { return "ReadTCPSpeed" }
func (r ReadTCPSpeedResponse) ErrorID() uint32 { return r.errID }

type GetUFrameUToolResponse struct {
	errID        uint32
	UFrameNumber int
	UToolNumber  int
}

func (GetUFrameUToolResponse) Family() string    { return familyCommand }
func (GetUFrameUToolResponse) OpName() string    { return "GetUFrameUTool" }
func (r GetUFrameUToolResponse) ErrorID() uint32 { return r.errID }

type ReadUFrameDataResponse struct {
	errID        uint32
	UFrameNumber int
	Frame        FrameData
}

func (ReadUFrameDataResponse) Family() string    { return familyCommand }
func (ReadUFrameDataResponse) OpName() string    { return "ReadUFrameData" }
func (r ReadUFrameDataResponse) ErrorID() uint32 { return r.errID }

type ReadUToolDataResponse struct {
	errID       uint32
	UToolNumber int
	Frame       FrameData
}

func (ReadUToolDataResponse) Family() string    { return familyCommand }
func (ReadUToolDataResponse) OpName() string    { return "ReadUToolData" }
func (r ReadUToolDataResponse) ErrorID() uint32 { return r.errID }

type ReadDINResponse struct {
	errID      uint32
	PortNumber int
	PortValue  bool
}

func (ReadDINResponse) Family() string    { return familyCommand }
func (ReadDINResponse) OpName() string    { return "ReadDIN" }
func (r ReadDINResponse) ErrorID() uint32 { return r.errID }

type ReadPositionRegisterResponse struct {
	errID    uint32
	Index    int
	Position Position
}

func (ReadPositionRegisterResponse) Family() string    { return familyCommand }
func (ReadPositionRegisterResponse) OpName() string    { return "ReadPositionRegister" }
func (r ReadPositionRegisterResponse) ErrorID() uint32 { return r.errID }

// --- Instruction response ----------------------------------------------------

// InstructionResponse completes a single in-flight Instruction. The
// same shape serves every Instruction op name — there is no per-op
// payload beyond the completion status.
type InstructionResponse struct {
	op    string
	seqID uint32
	errID uint32
}

func (InstructionResponse) Family() string      { return familyInstruction }
func (r InstructionResponse) OpName() string     { return r.op }
func (r InstructionResponse) ErrorID() uint32     { return r.errID }
func (r InstructionResponse) SequenceID() uint32 { return r.seqID }
