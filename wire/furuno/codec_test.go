package furuno

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/wire"
)

func beacon(serial string, discoveryPort int) []byte {
	data := make([]byte, 10)
	copy(data, serial)
	data[8] = byte(discoveryPort)
	data[9] = byte(discoveryPort >> 8)
	return data
}

func loginResponse(portOffset int) []byte {
	data := make([]byte, LoginResponseLen)
	data[8] = byte(portOffset)
	data[9] = byte(portOffset >> 8)
	return data
}

// The UDP beacon announces the TCP discovery port; the host comes from
// the beacon's sender address, which the Locator fills in.
func TestParseBeacon(t *testing.T) {
	beacons, err := Codec{}.ParseBeacon(beacon("DRS4D", 10010))
	require.NoError(t, err)
	require.Len(t, beacons, 1)

	b := beacons[0]
	assert.Equal(t, "DRS4D", b.Serial)
	assert.Empty(t, b.CommandAddress.Host)
	assert.Equal(t, 10010, b.CommandAddress.Port)
	assert.Equal(t, 2048, b.SpokesPerRevolution)
}

func TestParseBeacon_Malformed(t *testing.T) {
	var pe *wire.ParseError

	_, err := Codec{}.ParseBeacon(make([]byte, 9))
	require.ErrorAs(t, err, &pe)

	_, err = Codec{}.ParseBeacon(beacon("", 10010))
	require.ErrorAs(t, err, &pe)
}

func TestParseLoginResponse(t *testing.T) {
	tests := []struct {
		name     string
		offset   int
		expected int
	}{
		{"offset zero resolves to base port", 0, 10000},
		{"offset 42", 42, 10042},
		{"two-byte offset", 0x0102, 10000 + 0x0102},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			port, err := ParseLoginResponse(loginResponse(test.offset))
			require.NoError(t, err)
			assert.Equal(t, test.expected, port)
		})
	}
}

func TestParseLoginResponse_TooShort(t *testing.T) {
	_, err := ParseLoginResponse(make([]byte, LoginResponseLen-1))
	var pe *wire.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseReport_Power(t *testing.T) {
	tests := []struct {
		line    string
		ordinal int32
		status  radar.Status
	}{
		{"$N69,0\r\n", 0, radar.StatusOff},
		{"$N69,1\r\n", 1, radar.StatusStandby},
		{"$N69,2\r\n", 3, radar.StatusTransmit},
		{"$N69,3\r\n", 2, radar.StatusWarming},
	}
	for _, test := range tests {
		fields, err := Codec{}.ParseReport([]byte(test.line))
		require.NoError(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, wire.FieldKnown, fields[0].Kind)
		assert.Equal(t, radar.ControlPower, fields[0].Control)
		assert.Equal(t, test.ordinal, fields[0].Value.Enum)
		assert.Equal(t, test.status, radar.StatusFromOrdinal(fields[0].Value.Enum))
	}
}

func TestParseReport_Gain(t *testing.T) {
	fields, err := Codec{}.ParseReport([]byte("$N63,50\r\n"))
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, radar.ControlGain, fields[0].Control)
	assert.Equal(t, 50.0, fields[0].Value.Num)
}

func TestParseReport_BinaryHeaderStripped(t *testing.T) {
	framed := append(make([]byte, 8), []byte("$N64,31\r\n")...)
	fields, err := Codec{}.ParseReport(framed)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, radar.ControlSea, fields[0].Control)
	assert.Equal(t, 31.0, fields[0].Value.Num)
}

func TestParseReport_UnknownResponse(t *testing.T) {
	fields, err := Codec{}.ParseReport([]byte("$N77,1,2,3\r\n"))
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, wire.FieldUnknown, fields[0].Kind)
	assert.Equal(t, "77", fields[0].UnknownID)
}

func TestParseReport_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not a report line", []byte("garbage\r\n")},
		{"set command echoed", []byte("$S63,50\r\n")},
		{"bad power ordinal", []byte("$N69,9\r\n")},
		{"non-numeric value", []byte("$N63,xyz\r\n")},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Codec{}.ParseReport(test.data)
			require.Error(t, err)
		})
	}
}

func TestEncodeCommand(t *testing.T) {
	manual := 50.0
	tests := []struct {
		name     string
		cmd      wire.VendorCmd
		expected string
	}{
		{
			"gain numeric",
			wire.VendorCmd{Control: radar.ControlGain, Value: radar.ControlValue{Kind: radar.ValueNum, Num: 50}},
			"$S63,50\r\n",
		},
		{
			"gain auto",
			wire.VendorCmd{Control: radar.ControlGain, Value: radar.ControlValue{Kind: radar.ValueCompound, Mode: "auto"}},
			"$S63,A\r\n",
		},
		{
			"sea manual 50",
			wire.VendorCmd{Control: radar.ControlSea, Value: radar.ControlValue{Kind: radar.ValueCompound, Mode: "manual", Value: &manual}},
			"$S64,50\r\n",
		},
		{
			"power standby",
			wire.VendorCmd{Control: radar.ControlPower, Value: radar.ControlValue{Kind: radar.ValueEnum, Enum: 1}},
			"$S69,1\r\n",
		},
		{
			"power transmit folds back to the wire ordinal",
			wire.VendorCmd{Control: radar.ControlPower, Value: radar.ControlValue{Kind: radar.ValueEnum, Enum: 3}},
			"$S69,2\r\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data, err := Codec{}.EncodeCommand(test.cmd)
			require.NoError(t, err)
			assert.Equal(t, test.expected, string(data))
		})
	}
}

// Furuno is the one bidirectional dialect: a value encoded as a set
// command and echoed back by the radar as $N## parses to the same
// semantic field.
func TestCommandReportRoundTrip(t *testing.T) {
	cmd := wire.VendorCmd{Control: radar.ControlRain, Value: radar.ControlValue{Kind: radar.ValueNum, Num: 17}}
	encoded, err := Codec{}.EncodeCommand(cmd)
	require.NoError(t, err)

	echoed := append([]byte("$N"), encoded[2:]...)
	fields, err := Codec{}.ParseReport(echoed)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, radar.ControlRain, fields[0].Control)
	assert.Equal(t, 17.0, fields[0].Value.Num)
}

func TestEncodeKeepalive(t *testing.T) {
	assert.Equal(t, "$SFF\r\n", string(EncodeKeepalive()))
}

func TestEncodeRequest(t *testing.T) {
	assert.Equal(t, "$R69\r\n", string(EncodeRequest("69")))
}

func TestEncodeLogin(t *testing.T) {
	frame := EncodeLogin()
	assert.Len(t, frame, 56)
	assert.Equal(t, byte(0x01), frame[0])
}
