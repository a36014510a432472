package raymarine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/wire"
)

func quantumStatus(gain, sea, rain, power byte) []byte {
	data := make([]byte, 260)
	data[20] = gain
	data[21] = sea
	data[22] = rain
	data[23] = power
	return data
}

func rdStatus(gain, sea, rain, power byte) []byte {
	data := make([]byte, 250)
	data[16] = gain
	data[17] = sea
	data[18] = rain
	data[19] = power
	return data
}

func TestParseReport_Quantum(t *testing.T) {
	fields, err := Codec{}.ParseReport(quantumStatus(55, 30, 10, 3))
	require.NoError(t, err)
	require.Len(t, fields, 4)

	byControl := map[radar.ControlID]radar.ControlValue{}
	for _, f := range fields {
		byControl[f.Control] = f.Value
	}
	assert.Equal(t, 55.0, byControl[radar.ControlGain].Num)
	assert.Equal(t, 30.0, byControl[radar.ControlSea].Num)
	assert.Equal(t, 10.0, byControl[radar.ControlRain].Num)
	assert.Equal(t, int32(3), byControl[radar.ControlPower].Enum)
}

func TestParseReport_RD(t *testing.T) {
	fields, err := Codec{}.ParseReport(rdStatus(40, 20, 5, 1))
	require.NoError(t, err)
	require.Len(t, fields, 4)

	byControl := map[radar.ControlID]radar.ControlValue{}
	for _, f := range fields {
		byControl[f.Control] = f.Value
	}
	assert.Equal(t, 40.0, byControl[radar.ControlGain].Num)
	assert.Equal(t, int32(1), byControl[radar.ControlPower].Enum)
}

// Dialect dispatch is by length band: >= 260 is Quantum, 250..259 RD.
func TestDialectDiscrimination(t *testing.T) {
	assert.Equal(t, "quantum", dialect(260))
	assert.Equal(t, "quantum", dialect(300))
	assert.Equal(t, "rd", dialect(259))
	assert.Equal(t, "rd", dialect(250))
}

func TestParseReport_BorderlineLengths(t *testing.T) {
	// 259 bytes parses as RD even though it is one byte shy of Quantum
	data := make([]byte, 259)
	data[16] = 40
	data[19] = 1
	fields, err := Codec{}.ParseReport(data)
	require.NoError(t, err)
	byControl := map[radar.ControlID]radar.ControlValue{}
	for _, f := range fields {
		byControl[f.Control] = f.Value
	}
	assert.Equal(t, 40.0, byControl[radar.ControlGain].Num)

	// below the RD band is not a status packet at all
	_, err = Codec{}.ParseReport(make([]byte, 249))
	var pe *wire.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseReport_BadPowerByte(t *testing.T) {
	_, err := Codec{}.ParseReport(quantumStatus(0, 0, 0, 9))
	var pe *wire.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestEncodeCommand_Quantum(t *testing.T) {
	data, err := Codec{}.EncodeCommand(wire.VendorCmd{
		Control: radar.ControlGain,
		Value:   radar.ControlValue{Kind: radar.ValueNum, Num: 55},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xC4, 0x28, 55}, data)
}

func TestEncodeCommand_QuantumPower(t *testing.T) {
	data, err := Codec{}.EncodeCommand(wire.VendorCmd{
		Control: radar.ControlPower,
		Value:   radar.ControlValue{Kind: radar.ValueEnum, Enum: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0xC4, 0x28, 3}, data)
}

func TestEncodeCommandRD(t *testing.T) {
	data, err := EncodeCommandRD(wire.VendorCmd{
		Control: radar.ControlSea,
		Value:   radar.ControlValue{Kind: radar.ValueNum, Num: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xC1, 0x02, 20, 0x00}, data)
}

func TestEncodeCommandRD_RangeUnsupported(t *testing.T) {
	_, err := EncodeCommandRD(wire.VendorCmd{Control: radar.ControlRange})
	require.Error(t, err)
}

func TestParseBeacon(t *testing.T) {
	data := make([]byte, 26)
	copy(data[0:8], "Q24C001")
	data[8] = 0x2E // spoke port 2350
	data[9] = 0x09
	data[10] = 0x2F // report port 2351
	data[11] = 0x09
	data[12] = 0x30 // command port 2352
	data[13] = 0x09
	copy(data[14:18], []byte{232, 1, 243, 1})
	copy(data[18:22], []byte{232, 1, 243, 2})
	copy(data[22:26], []byte{232, 1, 243, 3})

	beacons, err := Codec{}.ParseBeacon(data)
	require.NoError(t, err)
	require.Len(t, beacons, 1)

	b := beacons[0]
	assert.Equal(t, "Q24C001", b.Serial)
	assert.Equal(t, radar.Endpoint{Host: "232.1.243.1", Port: 2350}, b.SpokeGroup)
	assert.Equal(t, radar.Endpoint{Host: "232.1.243.2", Port: 2351}, b.ReportGroup)
	assert.Equal(t, radar.Endpoint{Host: "232.1.243.3", Port: 2352}, b.CommandAddress)
}

func TestParseSpoke(t *testing.T) {
	payload := []byte{9, 8, 7}
	data := make([]byte, 8, 8+len(payload))
	data[0] = 0x2C // angle 300
	data[1] = 0x01
	data[2] = 0x58 // range 1880 dm = 188 m
	data[3] = 0x07
	data[6] = byte(len(payload))
	data = append(data, payload...)

	info := radar.Info{SpokesPerRevolution: 2048, MaxSpokeLength: 512}
	spokes, err := Codec{}.ParseSpoke(data, info)
	require.NoError(t, err)
	require.Len(t, spokes, 1)
	assert.Equal(t, uint16(300), spokes[0].Angle)
	assert.Equal(t, uint32(188), spokes[0].RangeMeters)
	assert.Equal(t, payload, spokes[0].Data)
}
