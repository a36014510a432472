package garmin

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/wire"
)

func statusPacket(packetType, value uint32) []byte {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:4], packetType)
	binary.LittleEndian.PutUint32(data[4:8], value)
	return data
}

func TestParseBeacon(t *testing.T) {
	data := make([]byte, 16)
	copy(data, "GMR1234")
	binary.LittleEndian.PutUint16(data[8:10], 50102)
	binary.LittleEndian.PutUint16(data[10:12], 50103)
	binary.LittleEndian.PutUint16(data[12:14], 50104)

	beacons, err := Codec{}.ParseBeacon(data)
	require.NoError(t, err)
	require.Len(t, beacons, 1)

	b := beacons[0]
	assert.Equal(t, "GMR1234", b.Serial)
	assert.Equal(t, 50102, b.SpokeGroup.Port)
	assert.Equal(t, 50103, b.ReportGroup.Port)
	assert.Equal(t, 50104, b.CommandAddress.Port)
	assert.Equal(t, 4096, b.SpokesPerRevolution)
}

func TestParseBeacon_TooShort(t *testing.T) {
	_, err := Codec{}.ParseBeacon(make([]byte, 15))
	var pe *wire.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseReport(t *testing.T) {
	tests := []struct {
		name    string
		packet  []byte
		control radar.ControlID
		num     float64
	}{
		{"range 3000m", statusPacket(0x091e, 3000), radar.ControlRange, 3000},
		{"gain value", statusPacket(0x0925, 60), radar.ControlGain, 60},
		{"sea value", statusPacket(0x093a, 40), radar.ControlSea, 40},
		{"rain value", statusPacket(0x0934, 10), radar.ControlRain, 10},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fields, err := Codec{}.ParseReport(test.packet)
			require.NoError(t, err)
			require.Len(t, fields, 1)
			assert.Equal(t, wire.FieldKnown, fields[0].Kind)
			assert.Equal(t, test.control, fields[0].Control)
			assert.Equal(t, test.num, fields[0].Value.Num)
		})
	}
}

func TestParseReport_Transmit(t *testing.T) {
	fields, err := Codec{}.ParseReport(statusPacket(0x0919, 3))
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, radar.ControlPower, fields[0].Control)
	assert.Equal(t, int32(3), fields[0].Value.Enum)
}

func TestParseReport_ModeTypesOpaque(t *testing.T) {
	for _, packetType := range []uint32{0x0924, 0x0939, 0x0933} {
		fields, err := Codec{}.ParseReport(statusPacket(packetType, 1))
		require.NoError(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, wire.FieldUnknown, fields[0].Kind)
	}
}

func TestParseReport_Malformed(t *testing.T) {
	_, err := Codec{}.ParseReport(make([]byte, 7))
	var pe *wire.ParseError
	require.ErrorAs(t, err, &pe)

	_, err = Codec{}.ParseReport(statusPacket(0x0919, 9))
	require.ErrorAs(t, err, &pe)
}

func TestEncodeCommand_Range(t *testing.T) {
	data, err := Codec{}.EncodeCommand(wire.VendorCmd{
		Control: radar.ControlRange,
		Value:   radar.ControlValue{Kind: radar.ValueNum, Num: 3000},
	})
	require.NoError(t, err)
	require.Len(t, data, 12)
	assert.Equal(t, uint32(0x091e), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(3000), binary.LittleEndian.Uint32(data[4:8]))
}

func TestEncodeCommand_CompoundSendsModePacket(t *testing.T) {
	data, err := Codec{}.EncodeCommand(wire.VendorCmd{
		Control: radar.ControlGain,
		Value:   radar.ControlValue{Kind: radar.ValueCompound, Mode: "auto"},
	})
	require.NoError(t, err)
	require.Len(t, data, 12)
	assert.Equal(t, uint32(0x0924), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[4:8]))
}

// Garmin status packets share the {type, value} layout with commands,
// so an encoded command parses back to the field it set.
func TestCommandReportRoundTrip(t *testing.T) {
	cmd := wire.VendorCmd{Control: radar.ControlRange, Value: radar.ControlValue{Kind: radar.ValueNum, Num: 6000}}
	encoded, err := Codec{}.EncodeCommand(cmd)
	require.NoError(t, err)

	fields, err := Codec{}.ParseReport(encoded[:8])
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, radar.ControlRange, fields[0].Control)
	assert.Equal(t, 6000.0, fields[0].Value.Num)
}

func TestParseSpoke(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	data := make([]byte, 12, 12+len(payload))
	binary.LittleEndian.PutUint32(data[0:4], 720)
	binary.LittleEndian.PutUint32(data[4:8], 1852)
	binary.LittleEndian.PutUint32(data[8:12], uint32(len(payload)))
	data = append(data, payload...)

	info := radar.Info{SpokesPerRevolution: 4096, MaxSpokeLength: 1024}
	spokes, err := Codec{}.ParseSpoke(data, info)
	require.NoError(t, err)
	require.Len(t, spokes, 1)
	assert.Equal(t, uint16(720), spokes[0].Angle)
	assert.Equal(t, uint32(1852), spokes[0].RangeMeters)
	assert.Equal(t, payload, spokes[0].Data)
}

func TestParseSpoke_AngleOutOfGrid(t *testing.T) {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 4096)
	info := radar.Info{SpokesPerRevolution: 4096}
	_, err := Codec{}.ParseSpoke(data, info)
	var pe *wire.ParseError
	require.ErrorAs(t, err, &pe)
}
