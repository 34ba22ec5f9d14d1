// Package packet defines the closed set of RMI wire request/response
// variants as tagged unions, plus the discriminator-free transport
// variants used for relaying decoded packets to external consumers.
package packet

// Position is a full Cartesian pose. All axes are float64: the controller
// and teach pendant report values that lose visible precision in a
// float32 round-trip, so narrowing here is a bug, not an optimization.
type Position struct {
	X, Y, Z    float64
	W, P, R    float64
	Ext1, Ext2 float64
	Ext3       float64
}

// Configuration carries the robot's arm configuration flags that
// disambiguate a Cartesian pose into a specific joint solution.
type Configuration struct {
	Front int
	Up    int
	Left  int
	Flip  int
	Turn4 int
	Turn5 int
	Turn6 int
}

// JointAngles is a full joint-space pose, up to 9 axes (6 arm + up to 3 ext).
type JointAngles struct {
	J1, J2, J3 float64
	J4, J5, J6 float64
	J7, J8, J9 float64
}

// FrameData describes a UFrame/UTool coordinate transform. Like Position,
// every axis is float64 for the same round-trip precision reason.
type FrameData struct {
	Position Position
}

// position wire fields, PascalCase and spelled exactly as the vendor
// requires; deviating here means controller-side rejection.
type positionWire struct {
	X    float64 `json:"X"`
	Y    float64 `json:"Y"`
	Z    float64 `json:"Z"`
	W    float64 `json:"W"`
	P    float64 `json:"P"`
	R    float64 `json:"R"`
	Ext1 float64 `json:"Ext1"`
	Ext2 float64 `json:"Ext2"`
	Ext3 float64 `json:"Ext3"`
}

func toPositionWire(p Position) positionWire {
	return positionWire{p.X, p.Y, p.Z, p.W, p.P, p.R, p.Ext1, p.Ext2, p.Ext3}
}

func fromPositionWire(w positionWire) Position {
	return Position{w.X, w.Y, w.Z, w.W, w.P, w.R, w.Ext1, w.Ext2, w.Ext3}
}

type jointAnglesWire struct {
	J1 float64 `json:"J1"`
	J2 float64 `json:"J2"`
	J3 float64 `json:"J3"`
	J4 float64 `json:"J4"`
	J5 float64 `json:"J5"`
	J6 float64 `json:"J6"`
	J7 float64 `json:"J7"`
	J8 float64 `json:"J8"`
	J9 float64 `json:"J9"`
}

func toJointAnglesWire(j JointAngles) jointAnglesWire {
	return jointAnglesWire{j.J1, j.J2, j.J3, j.J4, j.J5, j.J6, j.J7, j.J8, j.J9}
}

func fromJointAnglesWire(w jointAnglesWire) JointAngles {
	return JointAngles{w.J1, w.J2, w.J3, w.J4, w.J5, w.J6, w.J7, w.J8, w.J9}
}

type configWire struct {
	Front int `json:"Front"`
	Up    int `json:"Up"`
	Left  int `json:"Left"`
	Flip  int `json:"Flip"`
	Turn4 int `json:"Turn4"`
	Turn5 int `json:"Turn5"`
	Turn6 int `json:"Turn6"`
}

func toConfigWire(c Configuration) configWire {
	return configWire{c.Front, c.Up, c.Left, c.Flip, c.Turn4, c.Turn5, c.Turn6}
}

func fromConfigWire(w configWire) Configuration {
	return Configuration{w.Front, w.Up, w.Left, w.Flip, w.Turn4, w.Turn5, w.Turn6}
}
