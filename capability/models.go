package capability

import "github.com/MarineYachtRadar/mayara-server/radar"

// modelKey identifies one vendor/model-family entry in the model database.
type modelKey struct {
	vendor radar.Vendor
	model  string
}

// modelEntry is the fixed, model-family-level description looked up by
// BuildManifest. model == "" is the vendor's fallback entry, used when
// a detected model string does not match any known family.
type modelEntry struct {
	characteristics radar.Characteristics
	controls        []radar.ControlDefinition
	constraints     []radar.Constraint
}

func rangeTable(metersList ...int) []radar.RangeOption {
	out := make([]radar.RangeOption, 0, len(metersList))
	for _, m := range metersList {
		out = append(out, radar.RangeOption{Meters: m, NauticalMiles: metersToNM(m)})
	}
	return out
}

// metersToNM converts meters to nautical miles for the display-only
// RangeOption.NauticalMiles field.
func metersToNM(m int) float64 {
	return float64(m) / 1852.0
}

var compoundAutoManual = []string{"auto", "manual"}

var baseControls = []radar.ControlDefinition{
	{ID: radar.ControlPower, Name: "Power", Kind: radar.KindEnum, Category: radar.CategoryBase,
		Variants: []radar.EnumVariant{{Value: 0, Label: "Off"}, {Value: 1, Label: "Standby"}, {Value: 2, Label: "Warming"}, {Value: 3, Label: "Transmit"}}},
	{ID: radar.ControlRange, Name: "Range", Kind: radar.KindNumber, Unit: "m", Category: radar.CategoryBase},
	{ID: radar.ControlGain, Name: "Gain", Kind: radar.KindCompound, Modes: compoundAutoManual, Min: 0, Max: 100, Step: 1, Category: radar.CategoryBase},
	{ID: radar.ControlSea, Name: "Sea Clutter", Kind: radar.KindCompound, Modes: compoundAutoManual, Min: 0, Max: 100, Step: 1, Category: radar.CategoryBase},
	{ID: radar.ControlRain, Name: "Rain Clutter", Kind: radar.KindCompound, Modes: compoundAutoManual, Min: 0, Max: 100, Step: 1, Category: radar.CategoryBase},
}

// models is the fixed database this package's BuildManifest reads
// from. It is deliberately small: a provisional manifest covers
// anything not listed here.
var models = map[modelKey]modelEntry{
	{vendor: radar.VendorNavico, model: "HALO"}: {
		characteristics: radar.Characteristics{
			MinRangeMeters: 50, MaxRangeMeters: 96320,
			SupportedRanges:     rangeTable(50, 75, 100, 250, 500, 750, 926, 1389, 1852, 3704, 7408, 14816, 22224, 29632, 44448, 59264, 96320),
			SpokesPerRevolution: 2048, MaxSpokeLength: 1024,
			HasDoppler: true, HasDualRange: true, NoTransmitZoneCount: 2,
		},
		controls: append(append([]radar.ControlDefinition{}, baseControls...),
			radar.ControlDefinition{ID: radar.ControlInterferenceRejection, Name: "Interference Rejection", Kind: radar.KindEnum, Category: radar.CategoryExtended,
				Variants: []radar.EnumVariant{{Value: 0, Label: "Off"}, {Value: 1, Label: "Low"}, {Value: 2, Label: "Medium"}, {Value: 3, Label: "High"}}},
			radar.ControlDefinition{ID: radar.ControlDopplerMode, Name: "Doppler", Kind: radar.KindEnum, Category: radar.CategoryExtended,
				Variants: []radar.EnumVariant{{Value: 0, Label: "Off"}, {Value: 1, Label: "Normal"}, {Value: 2, Label: "Approaching Only"}}},
			radar.ControlDefinition{ID: radar.ControlPresetMode, Name: "Preset Mode", Kind: radar.KindEnum, Category: radar.CategoryExtended,
				Variants: []radar.EnumVariant{{Value: 0, Label: "Custom"}, {Value: 1, Label: "Harbor"}, {Value: 2, Label: "Offshore"}, {Value: 3, Label: "Weather"}, {Value: 4, Label: "Bird"}}},
			radar.ControlDefinition{ID: radar.ControlNoTransmitZones, Name: "No-Transmit Zones", Kind: radar.KindCompound, Category: radar.CategoryExtended},
		),
		constraints: []radar.Constraint{
			{
				Target: radar.ControlGain, Dependency: radar.ControlPresetMode, Op: radar.OpNotEqual,
				Value:  radar.ControlValue{Kind: radar.ValueEnum, Enum: 0},
				Effect: radar.ConstraintEffect{ReadOnly: true, Reason: "gain is fixed by the active preset"},
			},
			{
				Target: radar.ControlSea, Dependency: radar.ControlPresetMode, Op: radar.OpNotEqual,
				Value:  radar.ControlValue{Kind: radar.ValueEnum, Enum: 0},
				Effect: radar.ConstraintEffect{ReadOnly: true, Reason: "sea clutter is fixed by the active preset"},
			},
			{
				Target: radar.ControlRain, Dependency: radar.ControlPresetMode, Op: radar.OpNotEqual,
				Value:  radar.ControlValue{Kind: radar.ValueEnum, Enum: 0},
				Effect: radar.ConstraintEffect{ReadOnly: true, Reason: "rain clutter is fixed by the active preset"},
			},
		},
	},
	{vendor: radar.VendorFuruno, model: "DRS"}: {
		characteristics: radar.Characteristics{
			MinRangeMeters: 100, MaxRangeMeters: 72000,
			SupportedRanges:     rangeTable(100, 250, 500, 750, 1500, 3000, 6000, 12000, 24000, 48000, 72000),
			SpokesPerRevolution: 1024, MaxSpokeLength: 512,
			HasDoppler: false, HasDualRange: false,
		},
		controls: baseControls,
	},
	{vendor: radar.VendorRaymarine, model: "Quantum"}: {
		characteristics: radar.Characteristics{
			MinRangeMeters: 50, MaxRangeMeters: 37040,
			SupportedRanges:     rangeTable(50, 75, 100, 250, 500, 750, 926, 1389, 1852, 3704, 7408, 14816, 22224, 37040),
			SpokesPerRevolution: 500, MaxSpokeLength: 256,
			HasDoppler: true, HasDualRange: false,
		},
		controls: append(append([]radar.ControlDefinition{}, baseControls...),
			radar.ControlDefinition{ID: radar.ControlDopplerMode, Name: "Doppler", Kind: radar.KindBoolean, Category: radar.CategoryExtended},
		),
	},
	{vendor: radar.VendorRaymarine, model: "RD"}: {
		characteristics: radar.Characteristics{
			MinRangeMeters: 50, MaxRangeMeters: 22224,
			SupportedRanges:     rangeTable(50, 75, 100, 250, 500, 750, 926, 1389, 1852, 3704, 7408, 14816, 22224),
			SpokesPerRevolution: 360, MaxSpokeLength: 254,
			HasDoppler: false, HasDualRange: false,
		},
		controls: baseControls,
	},
	{vendor: radar.VendorGarmin, model: "GMR"}: {
		characteristics: radar.Characteristics{
			MinRangeMeters: 50, MaxRangeMeters: 96320,
			SupportedRanges:     rangeTable(50, 100, 250, 500, 750, 1000, 1500, 3000, 6000, 12000, 24000, 48000, 96320),
			SpokesPerRevolution: 720, MaxSpokeLength: 512,
			HasDoppler: false, HasDualRange: false,
		},
		controls: append(append([]radar.ControlDefinition{}, baseControls...),
			radar.ControlDefinition{ID: radar.ControlScanSpeed, Name: "Scan Speed", Kind: radar.KindEnum, Category: radar.CategoryExtended,
				Variants: []radar.EnumVariant{{Value: 0, Label: "Normal"}, {Value: 1, Label: "Fast"}}},
		),
	},
}

// provisionalCharacteristics is used whenever a detected radar's model
// has no entry in models.
var provisionalCharacteristics = radar.Characteristics{
	MinRangeMeters: 50, MaxRangeMeters: 72000,
	SupportedRanges:     rangeTable(50, 250, 500, 1000, 1852, 3000, 6000, 12000, 24000, 48000, 72000),
	SpokesPerRevolution: 512, MaxSpokeLength: 256,
}
