package component

// Direction describes which way data flows through a port.
type Direction string

// Direction constants for port data flow.
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Port describes a single network endpoint a component binds or dials.
type Port struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
	Endpoint    Endpoint  `json:"endpoint"`
}

// Endpoint is a network resource a component binds or dials.
type Endpoint interface {
	ResourceID() string // unique identifier for conflict detection
	IsExclusive() bool  // whether only one component may occupy this endpoint
	Type() string       // endpoint kind: "multicast", "unicast", "tcp"
}
