// Package wire defines the ProtocolCodec contract implemented
// once per vendor family in its own subpackage. Every codec is pure:
// no I/O, no mutable state — all session state lives in radarsession.
package wire

import (
	"github.com/MarineYachtRadar/mayara-server/pkg/timestamp"
	"github.com/MarineYachtRadar/mayara-server/radar"
)

// BeaconInfo is what a beacon parse yields: enough to construct one or
// more candidate radar.Info records.
type BeaconInfo struct {
	Serial              string
	Channel             string // "" unless the beacon declares a dual-range pair
	Model               string
	Firmware            string
	SpokeGroup          radar.Endpoint
	ReportGroup         radar.Endpoint
	CommandAddress      radar.Endpoint
	SpokesPerRevolution int
	MaxSpokeLength      int
}

// FieldKind distinguishes a known, semantically mapped report field
// from an opaque one a codec doesn't yet interpret.
type FieldKind int

const (
	FieldKnown FieldKind = iota
	FieldUnknown
)

// ReportField is one decoded value out of a status/settings report.
type ReportField struct {
	Kind      FieldKind
	Control   radar.ControlID
	Value     radar.ControlValue
	UnknownID string
	Params    []byte
}

// ParseError marks a malformed wire packet. The Locator counts malformed
// beacons; sessions drop malformed reports and spokes. None are surfaced
// further.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "parse error: " + e.Reason }

// VendorCmd is the semantic instruction ControlRouter hands to a codec
// for translation into vendor bytes.
type VendorCmd struct {
	Control radar.ControlID
	Value   radar.ControlValue
	Screen  *int // optional per-screen qualifier for dual-range radars
}

// Codec is implemented once per vendor family.
type Codec interface {
	Vendor() radar.Vendor
	ParseBeacon(data []byte) ([]BeaconInfo, error)
	ParseReport(data []byte) ([]ReportField, error)
	ParseSpoke(data []byte, info radar.Info) ([]radar.Spoke, error)
	EncodeCommand(cmd VendorCmd) ([]byte, error)
}

// NowMS is the single seam every codec uses to stamp spokes, so vendor
// packages deal in the same millisecond epoch as the rest of the module.
func NowMS() uint64 { return uint64(timestamp.Now()) }
