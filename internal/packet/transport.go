package packet

import (
	"bytes"
	"encoding/gob"
)

// transportEnvelope is the binary relay container. Unlike the controller
// wire format it carries no vendor discriminator/PascalCase renames —
// gob's self-describing encoding already knows the concrete type, so
// EncodeTransport/DecodeTransport are total and field-by-field for
// every Request/Response variant registered in init().
type transportEnvelope struct {
	Payload any
	// SequenceID carries an Instruction's stamped sequence ID, which gob
	// does not encode as part of Payload: the embedded seqHeader field
	// has an unexported name.
	SequenceID uint32
}

func init() {
	// Communication
	gob.Register(Connect{})
	gob.Register(Disconnect{})
	gob.Register(ConnectResponse{})
	gob.Register(DisconnectResponse{})
	gob.Register(Terminate{})
	gob.Register(SystemFault{})

	// Command requests
	gob.Register(Abort{})
	gob.Register(Initialize{})
	gob.Register(GetStatus{})
	gob.Register(Reset{})
	gob.Register(Continue{})
	gob.Register(ReadCartesianPosition{})
	gob.Register(ReadJointAngles{})
	gob.Register(ReadTCPSpeed{})
	gob.Register(GetUFrameUTool{})
	gob.Register(SetUFrameUTool{})
	gob.Register(ReadUFrameData{})
	gob.Register(WriteUFrameData{})
	gob.Register(ReadUToolData{})
	gob.Register(WriteUToolData{})
	gob.Register(ReadDIN{})
	gob.Register(WriteDOUT{})
	gob.Register(SetOverride{})
	gob.Register(ReadPositionRegister{})
	gob.Register(WritePositionRegister{})

	// Command responses
	gob.Register(AckResponse{})
	gob.Register(GetStatusResponse{})
	gob.Register(ReadCartesianPositionResponse{})
	gob.Register(ReadJointAnglesResponse{})
	gob.Register(ReadTCPSpeedResponse{})
	gob.Register(GetUFrameUToolResponse{})
	gob.Register(ReadUFrameDataResponse{})
	gob.Register(ReadUToolDataResponse{})
	gob.Register(ReadDINResponse{})
	gob.Register(ReadPositionRegisterResponse{})

	// Instructions
	gob.Register(&LinearMotion{})
	gob.Register(&LinearRelative{})
	gob.Register(&JointMotion{})
	gob.Register(&JointRelative{})
	gob.Register(&CircularMotion{})
	gob.Register(&CircularRelative{})
	gob.Register(&SetSpeed{})
	gob.Register(&WaitDIN{})
	gob.Register(&SetPayload{})
	gob.Register(&SetPositionRegister{})
	gob.Register(InstructionResponse{})
}

// EncodeTransport serialises any registered Request, Response or
// Instruction for relay over a binary channel to external consumers
// (e.g. the WebSocket fan-out). The controller-facing JSON codec and
// this binary relay share the same semantic model; neither is
// authoritative over the other.
func EncodeTransport(v any) ([]byte, error) {
	var buf bytes.Buffer
	env := transportEnvelope{Payload: v}
	if inst, ok := v.(Instruction); ok {
		env.SequenceID = inst.SequenceID()
	}
	if err := gob.NewEncoder(&buf).Encode(&env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeTransport reverses EncodeTransport, returning the concrete
// Request, Response, or Instruction value that was encoded.
func DecodeTransport(data []byte) (any, error) {
	var env transportEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, err
	}
	if inst, ok := env.Payload.(Instruction); ok && env.SequenceID != 0 {
		inst.SetSequenceID(env.SequenceID)
	}
	return env.Payload, nil
}
