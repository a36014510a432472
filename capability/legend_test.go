package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarineYachtRadar/mayara-server/radar"
)

func TestBuildLegend_NavicoDepth(t *testing.T) {
	legend := BuildLegend(radar.VendorNavico, false)
	require.Len(t, legend, 16)
	assert.Equal(t, radar.LegendEmpty, legend[0].Role)
	assert.Equal(t, radar.LegendWeak, legend[1].Role)
	assert.Equal(t, radar.LegendStrong, legend[15].Role)
}

func TestBuildLegend_ByteDepthVendors(t *testing.T) {
	for _, v := range []radar.Vendor{radar.VendorFuruno, radar.VendorRaymarine, radar.VendorGarmin} {
		legend := BuildLegend(v, false)
		require.Len(t, legend, 256, "vendor %s", v)
		assert.Equal(t, radar.LegendEmpty, legend[0].Role)
		assert.Equal(t, radar.LegendStrong, legend[255].Role)
	}
}

// Doppler mode re-tags the two reserved Navico nibbles; with Doppler
// off they are ordinary Strong intensities.
func TestBuildLegend_DopplerRoles(t *testing.T) {
	off := BuildLegend(radar.VendorNavico, false)
	assert.Equal(t, radar.LegendStrong, off[0x0E].Role)
	assert.Equal(t, radar.LegendStrong, off[0x0F].Role)

	on := BuildLegend(radar.VendorNavico, true)
	assert.Equal(t, radar.LegendDopplerReceding, on[0x0E].Role)
	assert.Equal(t, radar.LegendDopplerApproaching, on[0x0F].Role)
}

func TestBuildLegend_DopplerIgnoredForByteVendors(t *testing.T) {
	// 0x0E is just a weak intensity in a 256-deep space
	legend := BuildLegend(radar.VendorGarmin, true)
	assert.Equal(t, radar.LegendWeak, legend[0x0E].Role)
}
