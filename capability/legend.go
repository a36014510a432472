package capability

import "github.com/MarineYachtRadar/mayara-server/radar"

// Navico packs two pixels per byte, so its intensity space is 16 deep;
// the byte-per-pixel vendors use the full 256.
const (
	nibbleDepth = 16
	byteDepth   = 256
)

// Doppler nibble values in Navico's 16-deep space.
const (
	nibbleDopplerReceding    = 0x0E
	nibbleDopplerApproaching = 0x0F
)

// BuildLegend synthesises the intensity-to-colour legend for one radar
// from its vendor family's pixel depth and the current Doppler mode.
// Index 0 is always Empty; the remaining space is split into
// Weak/Medium/Strong bands; with Doppler enabled the top two Navico
// nibbles are re-tagged as velocity roles.
func BuildLegend(vendor radar.Vendor, dopplerEnabled bool) radar.Legend {
	depth := byteDepth
	if vendor == radar.VendorNavico {
		depth = nibbleDepth
	}

	legend := make(radar.Legend, depth)
	legend[0] = radar.LegendEntry{Role: radar.LegendEmpty, Color: radar.RGBA{}}

	for i := 1; i < depth; i++ {
		legend[i] = bandEntry(i, depth)
	}

	if dopplerEnabled && vendor == radar.VendorNavico {
		legend[nibbleDopplerReceding] = radar.LegendEntry{
			Role:  radar.LegendDopplerReceding,
			Color: radar.RGBA{R: 0x00, G: 0x90, B: 0xFF, A: 0xFF},
		}
		legend[nibbleDopplerApproaching] = radar.LegendEntry{
			Role:  radar.LegendDopplerApproaching,
			Color: radar.RGBA{R: 0xFF, G: 0x00, B: 0xFF, A: 0xFF},
		}
	}
	return legend
}

// bandEntry maps intensity i of the given depth onto the Weak/Medium/
// Strong thirds with a green-yellow-red ramp.
func bandEntry(i, depth int) radar.LegendEntry {
	third := depth / 3
	switch {
	case i <= third:
		return radar.LegendEntry{Role: radar.LegendWeak, Color: radar.RGBA{G: 0xC0, A: 0xFF}}
	case i <= 2*third:
		return radar.LegendEntry{Role: radar.LegendMedium, Color: radar.RGBA{R: 0xC0, G: 0xC0, A: 0xFF}}
	default:
		return radar.LegendEntry{Role: radar.LegendStrong, Color: radar.RGBA{R: 0xC0, A: 0xFF}}
	}
}
