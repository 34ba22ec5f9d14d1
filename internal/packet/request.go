package packet

import "encoding/json"

// Request is any packet a caller can submit for transmission. Every
// concrete type marshals itself straight to the vendor envelope shape:
// {"<Family>": {"<Family>": "<OpName>", ...fields}}.
type Request interface {
	Family() string
	OpName() string
	json.Marshaler
}

// marshalEnvelope merges the operation name into body's encoded fields
// under the discriminator key (which, per the vendor wire format, is
// spelled identically to the enclosing family key) and wraps the result
// in the family envelope.
func marshalEnvelope(family, op string, body any) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(bodyBytes, &fields); err != nil {
		return nil, err
	}

	opBytes, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	fields[family] = opBytes

	inner, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]json.RawMessage{family: inner})
}

const (
	familyCommunication = "Communication"
	familyCommand        = "Command"
	familyInstruction     = "Instruction"
)

// --- Communication family -------------------------------------------------

// Connect requests the initial RMI session handshake.
type Connect struct{}

func (Connect) Family() string { return familyCommunication }
func (Connect) OpName() string { return "Connect" }
func (c Connect) MarshalJSON() ([]byte, error) {
	return marshalEnvelope(familyCommunication, c.OpName(), struct{}{})
}

// Disconnect requests an orderly session teardown.
type Disconnect struct{}

func (Disconnect) Family() string { return familyCommunication }
func (Disconnect) OpName() string { return "Disconnect" }
func (d Disconnect) MarshalJSON() ([]byte, error) {
	return marshalEnvelope(familyCommunication, d.OpName(), struct{}{})
}
