// Package raymarine implements wire.Codec for Raymarine radars: binary
// multicast status/command packets in two dialects, Quantum and RD,
// discriminated by packet length.
package raymarine

import (
	"encoding/binary"

	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/wire"
)

// BeaconGroup and BeaconPort are the well-known multicast endpoint
// Raymarine units announce themselves on.
const (
	BeaconGroup = "224.0.2.162"
	BeaconPort  = 5800
)

// Dialect-discrimination thresholds: prefer Quantum when >= 260
// bytes, else RD for 250..259.
const (
	quantumMinLen = 260
	rdMinLen      = 250
)

// Quantum command opcodes.
const (
	opcodeGain  = 0xC401
	opcodeSea   = 0xC402
	opcodeRain  = 0xC403
	opcodeRange = 0xC404
	opcodePower = 0xC405
)

// RD command leads.
const (
	leadGain = 0x01
	leadSea  = 0x02
	leadRain = 0x03
)

// Codec implements wire.Codec for the Raymarine family.
type Codec struct{}

// New returns a Raymarine wire.Codec.
func New() wire.Codec { return Codec{} }

func (Codec) Vendor() radar.Vendor { return radar.VendorRaymarine }

// dialect reports which dialect a packet of the given length belongs to.
func dialect(length int) string {
	if length >= quantumMinLen {
		return "quantum"
	}
	return "rd"
}

// ParseBeacon: Raymarine beacons announce multicast endpoints directly
// in a fixed-layout record; the serial and endpoints occupy the first
// 26 bytes regardless of dialect. A 24- or 25-byte beacon has no command
// IP, and the spoke IP is used for it.
func (c Codec) ParseBeacon(data []byte) ([]wire.BeaconInfo, error) {
	if len(data) < 24 {
		return nil, &wire.ParseError{Reason: "beacon too short"}
	}
	serial := string(data[0:8])
	spokePort := binary.LittleEndian.Uint16(data[8:10])
	reportPort := binary.LittleEndian.Uint16(data[10:12])
	commandPort := binary.LittleEndian.Uint16(data[12:14])
	spokeIP := ipString(data[14:18])
	reportIP := ipString(data[18:22])
	commandIP := spokeIP
	if len(data) >= 26 {
		commandIP = ipString(data[22:26])
	}

	return []wire.BeaconInfo{{
		Serial:              trimNulls(serial),
		SpokeGroup:          radar.Endpoint{Host: spokeIP, Port: int(spokePort)},
		ReportGroup:         radar.Endpoint{Host: reportIP, Port: int(reportPort)},
		CommandAddress:      radar.Endpoint{Host: commandIP, Port: int(commandPort)},
		SpokesPerRevolution: 2048,
		MaxSpokeLength:      512,
	}}, nil
}

func trimNulls(s string) string {
	for i, r := range s {
		if r == 0 {
			return s[:i]
		}
	}
	return s
}

func ipString(b []byte) string {
	return ipv4String(b[0], b[1], b[2], b[3])
}

func ipv4String(a, b, c, d byte) string {
	buf := make([]byte, 0, 16)
	buf = appendByte(buf, a)
	buf = append(buf, '.')
	buf = appendByte(buf, b)
	buf = append(buf, '.')
	buf = appendByte(buf, c)
	buf = append(buf, '.')
	buf = appendByte(buf, d)
	return string(buf)
}

func appendByte(buf []byte, v byte) []byte {
	if v >= 100 {
		buf = append(buf, '0'+v/100, '0'+(v/10)%10, '0'+v%10)
	} else if v >= 10 {
		buf = append(buf, '0'+v/10, '0'+v%10)
	} else {
		buf = append(buf, '0'+v)
	}
	return buf
}

// ParseReport dispatches on packet length to the Quantum or RD status
// decoder.
func (c Codec) ParseReport(data []byte) ([]wire.ReportField, error) {
	switch dialect(len(data)) {
	case "quantum":
		return parseQuantumStatus(data)
	default:
		if len(data) < rdMinLen {
			return nil, &wire.ParseError{Reason: "status packet too short for either dialect"}
		}
		return parseRDStatus(data)
	}
}

func parseQuantumStatus(data []byte) ([]wire.ReportField, error) {
	if len(data) < 32 {
		return nil, &wire.ParseError{Reason: "quantum status too short"}
	}
	gain := float64(data[20])
	sea := float64(data[21])
	rain := float64(data[22])
	power := int32(data[23])
	if power > 3 {
		return nil, &wire.ParseError{Reason: "bad power byte"}
	}
	return []wire.ReportField{
		{Kind: wire.FieldKnown, Control: radar.ControlGain, Value: radar.ControlValue{Kind: radar.ValueNum, Num: gain}},
		{Kind: wire.FieldKnown, Control: radar.ControlSea, Value: radar.ControlValue{Kind: radar.ValueNum, Num: sea}},
		{Kind: wire.FieldKnown, Control: radar.ControlRain, Value: radar.ControlValue{Kind: radar.ValueNum, Num: rain}},
		{Kind: wire.FieldKnown, Control: radar.ControlPower, Value: radar.ControlValue{Kind: radar.ValueEnum, Enum: power}},
	}, nil
}

func parseRDStatus(data []byte) ([]wire.ReportField, error) {
	if len(data) < 24 {
		return nil, &wire.ParseError{Reason: "rd status too short"}
	}
	gain := float64(data[16])
	sea := float64(data[17])
	rain := float64(data[18])
	power := int32(data[19])
	if power > 3 {
		return nil, &wire.ParseError{Reason: "bad power byte"}
	}
	return []wire.ReportField{
		{Kind: wire.FieldKnown, Control: radar.ControlGain, Value: radar.ControlValue{Kind: radar.ValueNum, Num: gain}},
		{Kind: wire.FieldKnown, Control: radar.ControlSea, Value: radar.ControlValue{Kind: radar.ValueNum, Num: sea}},
		{Kind: wire.FieldKnown, Control: radar.ControlRain, Value: radar.ControlValue{Kind: radar.ValueNum, Num: rain}},
		{Kind: wire.FieldKnown, Control: radar.ControlPower, Value: radar.ControlValue{Kind: radar.ValueEnum, Enum: power}},
	}, nil
}

// ParseSpoke decodes a multicast spoke packet: [2]angle(u16 LE)
// [4]range_dm(u32 LE) [2]dataLen(u16 LE) followed by dataLen raw
// intensity bytes (Raymarine is byte-per-pixel, unlike Navico's
// nibble packing).
func (c Codec) ParseSpoke(data []byte, info radar.Info) ([]radar.Spoke, error) {
	if len(data) < 8 {
		return nil, &wire.ParseError{Reason: "spoke too short"}
	}
	angle := binary.LittleEndian.Uint16(data[0:2])
	rangeDM := binary.LittleEndian.Uint32(data[2:6])
	dataLen := int(binary.LittleEndian.Uint16(data[6:8]))
	if 8+dataLen > len(data) {
		return nil, &wire.ParseError{Reason: "truncated spoke data"}
	}
	if int(angle) >= info.SpokesPerRevolution {
		return nil, &wire.ParseError{Reason: "angle exceeds spokes per revolution"}
	}

	return []radar.Spoke{{
		Angle:       angle,
		RangeMeters: rangeDM / 10,
		TimestampMS: wire.NowMS(),
		Data:        append([]byte{}, data[8:8+dataLen]...),
	}}, nil
}

// EncodeCommand always builds a Quantum-dialect command packet, whatever
// dialect the radar's status packets use. EncodeCommandRD builds the RD
// form; RadarSession does not call it.
func (c Codec) EncodeCommand(cmd wire.VendorCmd) ([]byte, error) {
	return encodeQuantum(cmd)
}

// EncodeCommandRD builds an RD-dialect command packet.
func EncodeCommandRD(cmd wire.VendorCmd) ([]byte, error) {
	lead, ok := rdLeads[cmd.Control]
	if !ok {
		return nil, &wire.ParseError{Reason: "unsupported control for raymarine RD"}
	}
	value := commandValueByte(cmd)
	return []byte{0x00, 0xC1, lead, value, 0x00}, nil
}

func encodeQuantum(cmd wire.VendorCmd) ([]byte, error) {
	opcode, ok := quantumOpcodes[cmd.Control]
	if !ok {
		return nil, &wire.ParseError{Reason: "unsupported control for raymarine quantum"}
	}
	value := commandValueByte(cmd)
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(opcode))
	buf[2] = 0x28
	buf[3] = value
	return buf, nil
}

func commandValueByte(cmd wire.VendorCmd) byte {
	switch cmd.Value.Kind {
	case radar.ValueBool:
		if cmd.Value.Bool {
			return 1
		}
		return 0
	case radar.ValueNum:
		return byte(cmd.Value.Num)
	case radar.ValueEnum:
		return byte(cmd.Value.Enum)
	case radar.ValueCompound:
		if cmd.Value.Value != nil {
			return byte(*cmd.Value.Value)
		}
	}
	return 0
}

var quantumOpcodes = map[radar.ControlID]int{
	radar.ControlGain:  opcodeGain,
	radar.ControlSea:   opcodeSea,
	radar.ControlRain:  opcodeRain,
	radar.ControlRange: opcodeRange,
	radar.ControlPower: opcodePower,
}

var rdLeads = map[radar.ControlID]byte{
	radar.ControlGain: leadGain,
	radar.ControlSea:  leadSea,
	radar.ControlRain: leadRain,
}
