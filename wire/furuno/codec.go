// Package furuno implements wire.Codec for Furuno radars: ASCII
// commands over TCP framed by \r\n, and a binary login handshake used
// during discovery.
package furuno

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/wire"
)

// BeaconGroup and BeaconPort are the well-known multicast endpoint a
// Furuno unit announces its TCP discovery port on.
const (
	BeaconGroup = "239.255.4.1"
	BeaconPort  = 10010
)

// Command IDs of interest.
const (
	cmdGain      = "63"
	cmdSea       = "64"
	cmdRain      = "65"
	cmdPower     = "69"
	cmdKeepalive = "FF"
)

var controlByCommand = map[string]radar.ControlID{
	cmdGain:  radar.ControlGain,
	cmdSea:   radar.ControlSea,
	cmdRain:  radar.ControlRain,
	cmdPower: radar.ControlPower,
}

// furunoPowerOrdinals folds the wire's power values (2 = transmit,
// 3 = warming) into the shared Off/Standby/Warming/Transmit ordinal.
var furunoPowerOrdinals = [4]int32{0, 1, 3, 2}

var commandByControl = map[radar.ControlID]string{
	radar.ControlGain:  cmdGain,
	radar.ControlSea:   cmdSea,
	radar.ControlRain:  cmdRain,
	radar.ControlPower: cmdPower,
}

// Codec implements wire.Codec for the Furuno family. Some firmware
// wraps ASCII in an 8-byte binary header; stripHeader removes it
// transparently before the ASCII parser runs.
type Codec struct{}

// New returns a Furuno wire.Codec.
func New() wire.Codec { return Codec{} }

func (Codec) Vendor() radar.Vendor { return radar.VendorFuruno }

// ParseBeacon decodes a Furuno UDP beacon: [8]serial (null-padded
// ASCII) followed by the TCP discovery port as u16 LE. The beacon does
// not carry the command port — that comes out of the login exchange on
// the discovery port (ParseLoginResponse). The host is the beacon's
// sender address, which the caller fills in.
func (c Codec) ParseBeacon(data []byte) ([]wire.BeaconInfo, error) {
	if len(data) < 10 {
		return nil, &wire.ParseError{Reason: "beacon too short"}
	}
	serial := strings.TrimRight(string(data[0:8]), "\x00")
	if serial == "" {
		return nil, &wire.ParseError{Reason: "empty serial"}
	}
	discoveryPort := int(data[8]) | int(data[9])<<8

	return []wire.BeaconInfo{{
		Serial:              serial,
		CommandAddress:      radar.Endpoint{Port: discoveryPort},
		SpokesPerRevolution: 2048,
		MaxSpokeLength:      512,
	}}, nil
}

func stripHeader(data []byte) []byte {
	if len(data) > 8 && data[0] == '$' {
		return data
	}
	if len(data) > 8 {
		return data[8:]
	}
	return data
}

// ParseReport decodes one $N## response line into a ReportField.
// Unknown command IDs are surfaced as FieldUnknown with their
// semantics left opaque.
func (c Codec) ParseReport(data []byte) ([]wire.ReportField, error) {
	line := bytes.TrimRight(stripHeader(data), "\r\n")
	parts := strings.Split(string(line), ",")
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "$N") {
		return nil, &wire.ParseError{Reason: "not a report line"}
	}
	id := strings.TrimPrefix(parts[0], "$N")
	params := parts[1:]

	control, known := controlByCommand[id]
	if !known {
		return []wire.ReportField{{Kind: wire.FieldUnknown, UnknownID: id, Params: data}}, nil
	}

	if id == cmdPower {
		ordinal, err := strconv.Atoi(params[0])
		if err != nil || ordinal < 0 || ordinal > 3 {
			return nil, &wire.ParseError{Reason: "bad power value"}
		}
		return []wire.ReportField{{Kind: wire.FieldKnown, Control: control, Value: radar.ControlValue{Kind: radar.ValueEnum, Enum: furunoPowerOrdinals[ordinal]}}}, nil
	}

	val, err := strconv.ParseFloat(params[0], 64)
	if err != nil {
		return nil, &wire.ParseError{Reason: "bad numeric value"}
	}
	return []wire.ReportField{{Kind: wire.FieldKnown, Control: control, Value: radar.ControlValue{Kind: radar.ValueNum, Num: val}}}, nil
}

// ParseSpoke: Furuno spokes arrive on the same TCP connection framed
// like reports; callers route spoke-shaped payloads here only after
// report framing, so an unrecognised frame is a parse error.
func (c Codec) ParseSpoke(data []byte, info radar.Info) ([]radar.Spoke, error) {
	return nil, &wire.ParseError{Reason: "furuno spoke framing not a report line"}
}

// EncodeCommand builds a "$S##,value\r\n" set command. The "$SFF\r\n"
// keepalive is built by EncodeKeepalive.
func (c Codec) EncodeCommand(cmd wire.VendorCmd) ([]byte, error) {
	id, ok := commandByControl[cmd.Control]
	if !ok {
		return nil, &wire.ParseError{Reason: "unsupported control for furuno"}
	}

	var value string
	switch cmd.Value.Kind {
	case radar.ValueBool:
		if cmd.Value.Bool {
			value = "1"
		} else {
			value = "0"
		}
	case radar.ValueNum:
		value = strconv.FormatFloat(cmd.Value.Num, 'f', 0, 64)
	case radar.ValueEnum:
		enum := cmd.Value.Enum
		if cmd.Control == radar.ControlPower && enum >= 0 && enum < 4 {
			// the ordinal fold is its own inverse
			enum = furunoPowerOrdinals[enum]
		}
		value = strconv.Itoa(int(enum))
	case radar.ValueCompound:
		if cmd.Value.Mode == "auto" {
			value = "A"
		} else if cmd.Value.Value != nil {
			value = strconv.FormatFloat(*cmd.Value.Value, 'f', 0, 64)
		}
	}
	return []byte(fmt.Sprintf("$S%s,%s\r\n", id, value)), nil
}

// Sizes of the binary discovery handshake frames.
const (
	loginFrameLen = 56

	// LoginResponseLen is the fixed size of the radar's reply to the
	// login frame.
	LoginResponseLen = 12
)

// commandPortBase plus the response's port offset gives the command port.
const commandPortBase = 10000

// EncodeLogin builds the 56-byte binary login sent on the discovery TCP
// connection. The radar answers with the 12-byte response
// ParseLoginResponse decodes.
func EncodeLogin() []byte {
	frame := make([]byte, loginFrameLen)
	frame[0] = 0x01
	frame[1] = 0x00
	copy(frame[2:], []byte("FURUNO-RADAR-LOGIN"))
	return frame
}

// ParseLoginResponse decodes the 12-byte login response. Bytes 8-9
// carry the port offset as u16 LE; the command port is 10000 + offset,
// so an offset of 0 resolves to port 10000.
func ParseLoginResponse(data []byte) (commandPort int, err error) {
	if len(data) < LoginResponseLen {
		return 0, &wire.ParseError{Reason: "login response too short"}
	}
	offset := int(data[8]) | int(data[9])<<8
	return commandPortBase + offset, nil
}

// EncodeKeepalive builds the "$SFF" poll-interval keepalive frame.
func EncodeKeepalive() []byte {
	return []byte("$S" + cmdKeepalive + "\r\n")
}

// EncodeRequest builds a "$R##" poll request for one command id.
func EncodeRequest(id string) []byte {
	return []byte("$R" + id + "\r\n")
}
