package packet

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
)

// marshalTwice marshals v, unmarshals the bytes into a generic map of
// raw JSON values, and marshals that map again, returning both
// encodings so a caller can compare them.
func marshalTwice(t *testing.T, v Request) ([]byte, []byte) {
	t.Helper()
	first, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("first marshal: %v", err)
	}
	var again map[string]json.RawMessage
	if err := json.Unmarshal(first, &again); err != nil {
		t.Fatalf("unmarshal into generic map: %v", err)
	}
	second, err := json.Marshal(again)
	if err != nil {
		t.Fatalf("second marshal: %v", err)
	}
	return first, second
}

func TestRequestRoundTripFidelity(t *testing.T) {
	cases := []Request{
		Connect{},
		Disconnect{},
		NewAbort(),
		NewInitialize(),
		NewGetStatus(),
		NewReset(),
		NewContinue(),
		NewReadCartesianPosition(),
		NewReadJointAngles(),
		NewReadTCPSpeed(),
		NewGetUFrameUTool(),
		SetUFrameUTool{UFrameNumber: 2, UToolNumber: 3},
		ReadUFrameData{UFrameNumber: 1},
		WriteUFrameData{UFrameNumber: 1, Frame: FrameData{Position: Position{X: 1, Y: 2, Z: 3}}},
		ReadUToolData{UToolNumber: 1},
		WriteUToolData{UToolNumber: 1, Frame: FrameData{Position: Position{X: 4, Y: 5, Z: 6}}},
		ReadDIN{PortNumber: 7},
		WriteDOUT{PortNumber: 7, PortValue: true},
		SetOverride{Override: 75},
		ReadPositionRegister{Index: 3},
		WritePositionRegister{Index: 3, Position: Position{X: 1, Y: 1, Z: 1}},
		&LinearMotion{Position: Position{X: 10}, Speed: 50, SpeedType: "mmsec", Term: 100},
		&LinearRelative{Displacement: Position{Z: 25}, Speed: 50, SpeedType: "mmsec", Term: 100},
		&JointMotion{JointAngles: JointAngles{J1: 10}, Speed: 20, SpeedType: "percent"},
		&JointRelative{Delta: JointAngles{J1: 1}, Speed: 20, SpeedType: "percent"},
		&CircularMotion{ViaPosition: Position{X: 1}, Position: Position{X: 2}, Speed: 10, SpeedType: "mmsec"},
		&CircularRelative{ViaDisplacement: Position{X: 1}, Displacement: Position{X: 2}, Speed: 10, SpeedType: "mmsec"},
		&SetSpeed{Speed: 30, SpeedType: "mmsec"},
		&WaitDIN{PortNumber: 1, PortValue: true},
		&SetPayload{Schedule: 2},
		&SetPositionRegister{Index: 1, Position: Position{X: 1, Y: 2, Z: 3}},
	}

	for _, req := range cases {
		req := req
		t.Run(req.Family()+"."+req.OpName(), func(t *testing.T) {
			first, second := marshalTwice(t, req)
			if !bytes.Equal(first, second) {
				t.Fatalf("round-trip mismatch:\nfirst:  %s\nsecond: %s", first, second)
			}
		})
	}
}

func TestResponseDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
	}{
		{"Terminate", []byte(`{"Communication":{"Communication":"Terminate"}}`)},
		{"SystemFault", []byte(`{"Communication":{"Communication":"SystemFault","SequenceID":4,"ErrorID":29}}`)},
		{"GetStatus", []byte(`{"Command":{"Command":"GetStatus","ErrorID":0,"NextSequenceID":9,"ServoReady":1,"TPMode":1,"RMIMotionStatus":0,"Override":100}}`)},
		{"InstructionResponse", []byte(`{"Instruction":{"Instruction":"LinearRelative","SequenceID":1,"ErrorID":0}}`)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, err := Decode(c.in)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if resp == nil {
				t.Fatal("Decode() returned nil response with nil error")
			}
		})
	}
}

func TestDecodeUnknownVariant(t *testing.T) {
	_, err := Decode([]byte(`{"Bogus":{"Bogus":"Whatever"}}`))
	if err == nil {
		t.Fatal("Decode() of an unknown family returned nil error")
	}
}

func TestGetStatusResponseFieldsSurviveDecode(t *testing.T) {
	resp, err := Decode([]byte(`{"Command":{"Command":"GetStatus","ErrorID":0,"NextSequenceID":9,"ServoReady":1,"TPMode":1,"RMIMotionStatus":0,"Override":100}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	gs, ok := As[GetStatusResponse](resp)
	if !ok {
		t.Fatalf("As[GetStatusResponse] failed on %T", resp)
	}
	if gs.NextSequenceID != 9 {
		t.Errorf("NextSequenceID = %d, want 9", gs.NextSequenceID)
	}
	if gs.Override != 100 {
		t.Errorf("Override = %d, want 100", gs.Override)
	}
}

func TestInstructionResponseIsSequencedResponse(t *testing.T) {
	resp, err := Decode([]byte(`{"Instruction":{"Instruction":"LinearRelative","SequenceID":7,"ErrorID":0}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	sr, ok := resp.(SequencedResponse)
	if !ok {
		t.Fatalf("%T does not implement SequencedResponse", resp)
	}
	if sr.SequenceID() != 7 {
		t.Errorf("SequenceID() = %d, want 7", sr.SequenceID())
	}
}

func TestSystemFaultInvalidSequenceErrorID(t *testing.T) {
	resp, err := Decode([]byte(`{"Communication":{"Communication":"SystemFault","SequenceID":4,"ErrorID":29}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if resp.ErrorID() != ErrorIDInvalidSequence {
		t.Errorf("ErrorID() = %d, want %d", resp.ErrorID(), ErrorIDInvalidSequence)
	}
}

// TestPositionPrecision asserts property 7: every axis survives a JSON
// round-trip to within 1e-10 absolute, ruling out an accidental
// float32 narrowing anywhere in the wire path.
func TestPositionPrecision(t *testing.T) {
	want := Position{
		X: 123.456789012345, Y: -987.654321098765, Z: 0.000000000123,
		W: 45.0, P: -90.0, R: 180.0,
		Ext1: 1.1, Ext2: 2.2, Ext3: 3.3,
	}

	body, err := json.Marshal(toPositionWire(want))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire positionWire
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := fromPositionWire(wire)

	axes := []struct {
		name       string
		got, want float64
	}{
		{"X", got.X, want.X}, {"Y", got.Y, want.Y}, {"Z", got.Z, want.Z},
		{"W", got.W, want.W}, {"P", got.P, want.P}, {"R", got.R, want.R},
		{"Ext1", got.Ext1, want.Ext1}, {"Ext2", got.Ext2, want.Ext2}, {"Ext3", got.Ext3, want.Ext3},
	}
	for _, a := range axes {
		if math.Abs(a.got-a.want) > 1e-10 {
			t.Errorf("axis %s = %v, want %v (diff %v)", a.name, a.got, a.want, math.Abs(a.got-a.want))
		}
	}
}

func TestExtractHelpersDoNotPanicOnMismatch(t *testing.T) {
	resp, err := Decode([]byte(`{"Communication":{"Communication":"Terminate"}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, ok := As[GetStatusResponse](resp); ok {
		t.Fatal("As[GetStatusResponse] matched a Terminate response")
	}
	if _, err := Expect[GetStatusResponse](resp); err == nil {
		t.Fatal("Expect[GetStatusResponse] returned nil error on mismatch")
	}
}

func TestInstructionCloneIsUnstamped(t *testing.T) {
	m := &LinearRelative{Displacement: Position{X: 1}, Speed: 10, SpeedType: "mmsec"}
	m.SetSequenceID(5)

	clone := m.Clone()
	if clone.SequenceID() != 0 {
		t.Fatalf("Clone().SequenceID() = %d, want 0 (unstamped)", clone.SequenceID())
	}
	if !clone.SetSequenceID(99) {
		t.Fatal("clone.SetSequenceID() on a fresh clone returned false")
	}
}

func TestSetSequenceIDOnlyOnce(t *testing.T) {
	m := &LinearMotion{Position: Position{X: 1}}
	if !m.SetSequenceID(1) {
		t.Fatal("first SetSequenceID() = false, want true")
	}
	if m.SetSequenceID(2) {
		t.Fatal("second SetSequenceID() = true, want false (already stamped)")
	}
	if m.SequenceID() != 1 {
		t.Fatalf("SequenceID() = %d, want 1 (second stamp must be rejected)", m.SequenceID())
	}
}

func TestTransportRoundTripPreservesSequenceID(t *testing.T) {
	m := &LinearRelative{Displacement: Position{X: 1, Y: 2, Z: 3}, Speed: 50, SpeedType: "mmsec"}
	m.SetSequenceID(42)

	data, err := EncodeTransport(m)
	if err != nil {
		t.Fatalf("EncodeTransport() error = %v", err)
	}

	got, err := DecodeTransport(data)
	if err != nil {
		t.Fatalf("DecodeTransport() error = %v", err)
	}

	rt, ok := got.(*LinearRelative)
	if !ok {
		t.Fatalf("DecodeTransport() returned %T, want *LinearRelative", got)
	}
	if rt.SequenceID() != 42 {
		t.Errorf("SequenceID() = %d, want 42 (lost across transport relay)", rt.SequenceID())
	}
	if rt.Displacement != m.Displacement {
		t.Errorf("Displacement = %+v, want %+v", rt.Displacement, m.Displacement)
	}
	if rt.Speed != m.Speed || rt.SpeedType != m.SpeedType {
		t.Errorf("Speed/SpeedType = %v/%s, want %v/%s", rt.Speed, rt.SpeedType, m.Speed, m.SpeedType)
	}
}

func TestTransportRoundTripResponse(t *testing.T) {
	data, err := EncodeTransport(GetStatusResponse{NextSequenceID: 9, ServoReady: 1, TPMode: 1, Override: 100})
	if err != nil {
		t.Fatalf("EncodeTransport() error = %v", err)
	}
	got, err := DecodeTransport(data)
	if err != nil {
		t.Fatalf("DecodeTransport() error = %v", err)
	}
	gs, ok := got.(GetStatusResponse)
	if !ok {
		t.Fatalf("DecodeTransport() returned %T, want GetStatusResponse", got)
	}
	if gs.NextSequenceID != 9 {
		t.Errorf("NextSequenceID = %d, want 9", gs.NextSequenceID)
	}
}
