// Package navico implements wire.Codec for Navico radars: binary
// little-endian beacons, status/settings reports, and nibble-packed
// spoke data.
package navico

import (
	"encoding/binary"
	"fmt"

	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/wire"
)

// BeaconGroup and BeaconPort are the well-known multicast endpoint
// Navico units announce themselves on.
const (
	BeaconGroup = "236.6.7.5"
	BeaconPort  = 6878
)

// Report IDs of interest.
const (
	reportStatus   = 0x01
	reportSettings = 0x02
	reportRange    = 0x08
)

// Doppler nibble values preserved through spoke normalisation.
const (
	nibbleDopplerReceding    = 0x0E
	nibbleDopplerApproaching = 0x0F
)

// Navico settings report (0x02) field offsets, observed empirically
// on the wire. Validate against fresh captures before trusting new
// firmware.
const (
	offInterference = 5
	offGainAuto     = 11
	offGain         = 12
	offSea          = 17
	offSeaAuto      = 21
	offRain         = 22
)

// Codec implements wire.Codec for the Navico family.
type Codec struct{}

// New returns a Navico wire.Codec.
func New() wire.Codec { return Codec{} }

func (Codec) Vendor() radar.Vendor { return radar.VendorNavico }

// beaconChannel is one (spoke, report, command) triple out of a beacon,
// tagged with its channel letter for dual-range radars.
type beaconChannel struct {
	channel string
	spoke   radar.Endpoint
	report  radar.Endpoint
	command radar.Endpoint
}

// ParseBeacon decodes a Navico beacon into one BeaconInfo per channel.
// Layout: [1]serial length followed by that many serial ASCII bytes, then
// one or two 20-byte channel records (spoke ip/port, report ip/port,
// command ip/port, each 4+2 bytes LE).
func (c Codec) ParseBeacon(data []byte) ([]wire.BeaconInfo, error) {
	if len(data) < 8 {
		return nil, &wire.ParseError{Reason: "beacon too short"}
	}
	serialLen := int(data[0])
	if serialLen <= 0 || 1+serialLen > len(data) {
		return nil, &wire.ParseError{Reason: "bad serial length"}
	}
	serial := string(data[1 : 1+serialLen])
	rest := data[1+serialLen:]

	const channelRecordLen = 20
	if len(rest) < channelRecordLen || len(rest)%channelRecordLen != 0 {
		return nil, &wire.ParseError{Reason: "bad channel record length"}
	}

	numChannels := len(rest) / channelRecordLen
	channelNames := []string{"A", "B"}
	var beacons []wire.BeaconInfo
	for i := 0; i < numChannels && i < len(channelNames); i++ {
		rec := rest[i*channelRecordLen : (i+1)*channelRecordLen]
		ch := parseChannelRecord(rec)

		channel := ""
		if numChannels > 1 {
			channel = channelNames[i]
		}

		beacons = append(beacons, wire.BeaconInfo{
			Serial:              serial,
			Channel:             channel,
			SpokeGroup:          ch.spoke,
			ReportGroup:         ch.report,
			CommandAddress:      ch.command,
			SpokesPerRevolution: 2048,
			MaxSpokeLength:      1024,
		})
	}
	return beacons, nil
}

func parseChannelRecord(rec []byte) beaconChannel {
	return beaconChannel{
		spoke:   radar.Endpoint{Host: ipString(rec[0:4]), Port: int(binary.LittleEndian.Uint16(rec[4:6]))},
		report:  radar.Endpoint{Host: ipString(rec[6:10]), Port: int(binary.LittleEndian.Uint16(rec[10:12]))},
		command: radar.Endpoint{Host: ipString(rec[12:16]), Port: int(binary.LittleEndian.Uint16(rec[16:18]))},
	}
}

func ipString(b []byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

// ParseReport decodes a status (0x01), settings (0x02) or range (0x08)
// report into semantic ReportFields.
func (c Codec) ParseReport(data []byte) ([]wire.ReportField, error) {
	if len(data) < 2 {
		return nil, &wire.ParseError{Reason: "report too short"}
	}
	id := data[1]
	switch id {
	case reportStatus:
		return parseStatusReport(data)
	case reportSettings:
		return parseSettingsReport(data)
	case reportRange:
		return parseRangeReport(data)
	default:
		return []wire.ReportField{{Kind: wire.FieldUnknown, UnknownID: fmt.Sprintf("0x%02x", id), Params: data}}, nil
	}
}

// Power byte ordinals, shared with radar.StatusFromOrdinal so
// RadarSession can derive RadarState.Status from the same field.
func parseStatusReport(data []byte) ([]wire.ReportField, error) {
	if len(data) < 3 {
		return nil, &wire.ParseError{Reason: "status report too short"}
	}
	if data[2] > 3 {
		return nil, &wire.ParseError{Reason: "unknown power byte"}
	}
	return []wire.ReportField{{
		Kind:    wire.FieldKnown,
		Control: radar.ControlPower,
		Value:   radar.ControlValue{Kind: radar.ValueEnum, Enum: int32(data[2])},
	}}, nil
}

func parseSettingsReport(data []byte) ([]wire.ReportField, error) {
	if len(data) <= offRain {
		return nil, &wire.ParseError{Reason: "settings report too short"}
	}

	gainAuto := data[offGainAuto] != 0
	gainVal := float64(data[offGain])
	seaAuto := data[offSeaAuto] != 0
	seaVal := float64(data[offSea])
	rainVal := float64(data[offRain])
	interference := float64(data[offInterference])

	gainMode := "manual"
	if gainAuto {
		gainMode = "auto"
	}
	seaMode := "manual"
	if seaAuto {
		seaMode = "auto"
	}

	return []wire.ReportField{
		{Kind: wire.FieldKnown, Control: radar.ControlGain, Value: radar.ControlValue{Kind: radar.ValueCompound, Mode: gainMode, Value: &gainVal}},
		{Kind: wire.FieldKnown, Control: radar.ControlSea, Value: radar.ControlValue{Kind: radar.ValueCompound, Mode: seaMode, Value: &seaVal}},
		{Kind: wire.FieldKnown, Control: radar.ControlRain, Value: radar.ControlValue{Kind: radar.ValueNum, Num: rainVal}},
		{Kind: wire.FieldKnown, Control: radar.ControlInterferenceRejection, Value: radar.ControlValue{Kind: radar.ValueEnum, Enum: int32(interference)}},
	}, nil
}

func parseRangeReport(data []byte) ([]wire.ReportField, error) {
	if len(data) < 6 {
		return nil, &wire.ParseError{Reason: "range report too short"}
	}
	decimetres := binary.LittleEndian.Uint32(data[2:6])
	metres := float64(decimetres) / 10.0
	return []wire.ReportField{
		{Kind: wire.FieldKnown, Control: radar.ControlRange, Value: radar.ControlValue{Kind: radar.ValueNum, Num: metres}},
	}, nil
}

// ParseSpoke unpacks nibble-per-pixel spoke batches. Header:
// [2]batchCount(u16 LE); then each
// spoke is [2]angle(u16 LE)[4]range_dm(u32 LE)[2]dataLenNibbles(u16 LE)
// followed by ceil(dataLenNibbles/2) bytes of packed nibbles.
func (c Codec) ParseSpoke(data []byte, info radar.Info) ([]radar.Spoke, error) {
	if len(data) < 2 {
		return nil, &wire.ParseError{Reason: "spoke batch too short"}
	}
	batchCount := int(binary.LittleEndian.Uint16(data[0:2]))
	offset := 2

	spokes := make([]radar.Spoke, 0, batchCount)
	for i := 0; i < batchCount; i++ {
		if offset+8 > len(data) {
			return nil, &wire.ParseError{Reason: "truncated spoke header"}
		}
		angle := binary.LittleEndian.Uint16(data[offset : offset+2])
		rangeDM := binary.LittleEndian.Uint32(data[offset+2 : offset+6])
		nibbleCount := int(binary.LittleEndian.Uint16(data[offset+6 : offset+8]))
		offset += 8

		byteCount := (nibbleCount + 1) / 2
		if offset+byteCount > len(data) {
			return nil, &wire.ParseError{Reason: "truncated spoke data"}
		}
		packed := data[offset : offset+byteCount]
		offset += byteCount

		pixels := make([]byte, nibbleCount)
		dopplerAt := make(map[int]radar.PixelRole)
		for n := 0; n < nibbleCount; n++ {
			b := packed[n/2]
			var nib byte
			if n%2 == 0 {
				nib = b & 0x0F
			} else {
				nib = (b >> 4) & 0x0F
			}
			pixels[n] = nib
			switch nib {
			case nibbleDopplerApproaching:
				dopplerAt[n] = radar.RoleDopplerApproaching
			case nibbleDopplerReceding:
				dopplerAt[n] = radar.RoleDopplerReceding
			}
		}

		if int(angle) >= info.SpokesPerRevolution {
			return nil, &wire.ParseError{Reason: "angle exceeds spokes per revolution"}
		}

		spokes = append(spokes, radar.Spoke{
			Angle:       angle,
			RangeMeters: rangeDM / 10,
			TimestampMS: wire.NowMS(),
			Data:        pixels,
			DopplerAt:   dopplerAt,
		})
	}
	return spokes, nil
}

// EncodeCommand encodes a semantic control change into a Navico
// unicast command packet. Navico commands are opaque byte blobs keyed
// by a small per-control opcode table; unsupported controls return
// wire.ParseError, which RadarSession.SetControl reports as NotSupported.
func (c Codec) EncodeCommand(cmd wire.VendorCmd) ([]byte, error) {
	opcode, ok := commandOpcodes[cmd.Control]
	if !ok {
		return nil, &wire.ParseError{Reason: "unsupported control for navico"}
	}

	buf := make([]byte, 6)
	buf[0] = 0x01 // command frame marker
	buf[1] = opcode

	switch cmd.Value.Kind {
	case radar.ValueBool:
		v := byte(0)
		if cmd.Value.Bool {
			v = 1
		}
		buf[2] = v
	case radar.ValueNum:
		binary.LittleEndian.PutUint32(buf[2:6], uint32(cmd.Value.Num))
	case radar.ValueEnum:
		binary.LittleEndian.PutUint32(buf[2:6], uint32(cmd.Value.Enum))
	case radar.ValueCompound:
		if cmd.Value.Mode == "auto" {
			buf[2] = 1
		} else {
			buf[2] = 0
			if cmd.Value.Value != nil {
				binary.LittleEndian.PutUint32(buf[2:6], uint32(*cmd.Value.Value))
			}
		}
	}
	return buf, nil
}

var commandOpcodes = map[radar.ControlID]byte{
	radar.ControlPower:                 0x01,
	radar.ControlRange:                 0x03,
	radar.ControlGain:                  0x06,
	radar.ControlSea:                   0x07,
	radar.ControlRain:                  0x08,
	radar.ControlInterferenceRejection: 0x09,
}
