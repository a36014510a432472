// Package garmin implements wire.Codec for Garmin radars: fixed 12-byte
// binary commands and status packets of {type u32 LE, value u32 LE}
// on the 239.254.2.0/24 multicast block.
package garmin

import (
	"encoding/binary"

	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/wire"
)

// BeaconGroup and BeaconPort are the well-known multicast endpoint
// Garmin units announce themselves on, within the 239.254.2.0/24 block.
const (
	BeaconGroup = "239.254.2.0"
	BeaconPort  = 50100
)

// Status/command packet types of interest.
const (
	typeTransmit  = 0x0919
	typeGainMode  = 0x0924
	typeGainValue = 0x0925
	typeSeaMode   = 0x0939
	typeSeaValue  = 0x093a
	typeRainMode  = 0x0933
	typeRainValue = 0x0934
	typeRange     = 0x091e
)

var controlByType = map[uint32]radar.ControlID{
	typeTransmit:  radar.ControlPower,
	typeGainValue: radar.ControlGain,
	typeSeaValue:  radar.ControlSea,
	typeRainValue: radar.ControlRain,
	typeRange:     radar.ControlRange,
}

var typeByControl = map[radar.ControlID]uint32{
	radar.ControlPower: typeTransmit,
	radar.ControlGain:  typeGainValue,
	radar.ControlSea:   typeSeaValue,
	radar.ControlRain:  typeRainValue,
	radar.ControlRange: typeRange,
}

var modeTypeByControl = map[radar.ControlID]uint32{
	radar.ControlGain: typeGainMode,
	radar.ControlSea:  typeSeaMode,
	radar.ControlRain: typeRainMode,
}

// Codec implements wire.Codec for the Garmin family.
type Codec struct{}

// New returns a Garmin wire.Codec.
func New() wire.Codec { return Codec{} }

func (Codec) Vendor() radar.Vendor { return radar.VendorGarmin }

// ParseBeacon: Garmin beacons announce multicast endpoints directly.
// Layout: [8]serial-ascii, [4]spokePort+reportPort packed as two u16,
// [4]commandPort+pad.
func (c Codec) ParseBeacon(data []byte) ([]wire.BeaconInfo, error) {
	if len(data) < 16 {
		return nil, &wire.ParseError{Reason: "beacon too short"}
	}
	serial := trimNulls(string(data[0:8]))
	spokePort := binary.LittleEndian.Uint16(data[8:10])
	reportPort := binary.LittleEndian.Uint16(data[10:12])
	commandPort := binary.LittleEndian.Uint16(data[12:14])

	return []wire.BeaconInfo{{
		Serial:              serial,
		SpokeGroup:          radar.Endpoint{Host: "239.254.2.1", Port: int(spokePort)},
		ReportGroup:         radar.Endpoint{Host: "239.254.2.2", Port: int(reportPort)},
		CommandAddress:      radar.Endpoint{Host: "239.254.2.3", Port: int(commandPort)},
		SpokesPerRevolution: 4096,
		MaxSpokeLength:      1024,
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

// ParseReport decodes one {type, value} status packet.
func (c Codec) ParseReport(data []byte) ([]wire.ReportField, error) {
	if len(data) < 8 {
		return nil, &wire.ParseError{Reason: "status packet too short"}
	}
	packetType := binary.LittleEndian.Uint32(data[0:4])
	value := binary.LittleEndian.Uint32(data[4:8])

	switch packetType {
	case typeGainMode, typeSeaMode, typeRainMode:
		return []wire.ReportField{{Kind: wire.FieldUnknown, UnknownID: modeLabel(packetType), Params: data[4:8]}}, nil
	}

	control, known := controlByType[packetType]
	if !known {
		return []wire.ReportField{{Kind: wire.FieldUnknown, UnknownID: hex32(packetType), Params: data[4:8]}}, nil
	}

	if control == radar.ControlPower {
		if value > 3 {
			return nil, &wire.ParseError{Reason: "bad power value"}
		}
		return []wire.ReportField{{Kind: wire.FieldKnown, Control: control, Value: radar.ControlValue{Kind: radar.ValueEnum, Enum: int32(value)}}}, nil
	}

	return []wire.ReportField{{Kind: wire.FieldKnown, Control: control, Value: radar.ControlValue{Kind: radar.ValueNum, Num: float64(value)}}}, nil
}

func modeLabel(t uint32) string { return hex32(t) }

func hex32(v uint32) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 0, 8)
	for shift := 28; shift >= 0; shift -= 4 {
		buf = append(buf, hexDigits[(v>>uint(shift))&0xF])
	}
	return "0x" + string(buf)
}

// ParseSpoke decodes a Garmin spoke packet: [4]angle(u32 LE)
// [4]range_m(u32 LE) [4]dataLen(u32 LE) followed by dataLen bytes.
func (c Codec) ParseSpoke(data []byte, info radar.Info) ([]radar.Spoke, error) {
	if len(data) < 12 {
		return nil, &wire.ParseError{Reason: "spoke too short"}
	}
	angle := binary.LittleEndian.Uint32(data[0:4])
	rangeM := binary.LittleEndian.Uint32(data[4:8])
	dataLen := int(binary.LittleEndian.Uint32(data[8:12]))
	if 12+dataLen > len(data) {
		return nil, &wire.ParseError{Reason: "truncated spoke data"}
	}
	if int(angle) >= info.SpokesPerRevolution {
		return nil, &wire.ParseError{Reason: "angle exceeds spokes per revolution"}
	}

	return []radar.Spoke{{
		Angle:       uint16(angle),
		RangeMeters: rangeM,
		TimestampMS: wire.NowMS(),
		Data:        append([]byte{}, data[12:12+dataLen]...),
	}}, nil
}

// EncodeCommand builds a 12-byte Garmin command: [4]type(u32 LE)
// [4]value(u32 LE) [4]reserved.
func (c Codec) EncodeCommand(cmd wire.VendorCmd) ([]byte, error) {
	var packetType uint32
	var value uint32

	// Compound controls (gain/sea/rain) send only the mode packet; a
	// manual value carried in the compound is not encoded.
	if cmd.Value.Kind == radar.ValueCompound {
		modeType, ok := modeTypeByControl[cmd.Control]
		if !ok {
			return nil, &wire.ParseError{Reason: "unsupported compound control for garmin"}
		}
		buf := make([]byte, 12)
		binary.LittleEndian.PutUint32(buf[0:4], modeType)
		if cmd.Value.Mode == "auto" {
			binary.LittleEndian.PutUint32(buf[4:8], 1)
		}
		return buf, nil
	}

	t, ok := typeByControl[cmd.Control]
	if !ok {
		return nil, &wire.ParseError{Reason: "unsupported control for garmin"}
	}
	packetType = t

	switch cmd.Value.Kind {
	case radar.ValueBool:
		if cmd.Value.Bool {
			value = 1
		}
	case radar.ValueNum:
		value = uint32(cmd.Value.Num)
	case radar.ValueEnum:
		value = uint32(cmd.Value.Enum)
	}

	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], packetType)
	binary.LittleEndian.PutUint32(buf[4:8], value)
	return buf, nil
}
