// Package capability builds the per-radar CapabilityManifest a client
// consults before issuing control commands: the control set, value
// ranges and cross-control constraints for one detected radar.
package capability

import (
	"context"
	"strings"
	"time"

	"github.com/MarineYachtRadar/mayara-server/pkg/cache"
	"github.com/MarineYachtRadar/mayara-server/radar"
)

// manifestTTL bounds how long a built manifest is memoized; it is
// short because a firmware-triggered NoTransmitZoneCount/range-table
// change should become visible without a process restart.
const manifestTTL = 10 * time.Minute

// Engine builds and memoizes capability manifests.
type Engine struct {
	cache cache.Cache[radar.CapabilityManifest]
}

// New constructs an Engine backed by a TTL cache.
func New(ctx context.Context) *Engine {
	c, _ := cache.NewTTL[radar.CapabilityManifest](ctx, manifestTTL, manifestTTL/2)
	return &Engine{cache: c}
}

// BuildManifest returns the manifest for info, building (and
// memoizing) it on first request for this (vendor, model) pair.
func (e *Engine) BuildManifest(info radar.Info) radar.CapabilityManifest {
	key := string(info.Vendor) + "/" + modelFamily(info.Vendor, info.Model)
	if e.cache != nil {
		if m, ok := e.cache.Get(key); ok {
			m.ID = info.ID
			return m
		}
	}

	m := build(info)
	if e.cache != nil {
		_, _ = e.cache.Set(key, m)
	}
	m.ID = info.ID
	return m
}

// modelFamily maps a detected model string onto one of this package's
// known model families via prefix match, falling back to "" (provisional).
func modelFamily(vendor radar.Vendor, model string) string {
	upper := strings.ToUpper(model)
	for key := range models {
		if key.vendor != vendor {
			continue
		}
		if key.model != "" && strings.HasPrefix(upper, strings.ToUpper(key.model)) {
			return key.model
		}
	}
	return ""
}

func build(info radar.Info) radar.CapabilityManifest {
	family := modelFamily(info.Vendor, info.Model)
	entry, ok := models[modelKey{vendor: info.Vendor, model: family}]
	if !ok {
		return radar.CapabilityManifest{
			Vendor:          info.Vendor,
			Model:           "Unknown",
			Characteristics: provisionalCharacteristics,
			Controls:        baseControls,
			Provisional:     true,
		}
	}

	return radar.CapabilityManifest{
		Vendor:          info.Vendor,
		Model:           family,
		Characteristics: entry.characteristics,
		Controls:        entry.controls,
		Constraints:     entry.constraints,
	}
}

// ApplyConstraints evaluates manifest's constraints against state and
// returns the resulting DisabledControls.
func ApplyConstraints(manifest radar.CapabilityManifest, state radar.State) []radar.DisabledControl {
	var disabled []radar.DisabledControl
	for _, c := range manifest.Constraints {
		dep, ok := state.Controls[c.Dependency]
		if !ok {
			continue
		}
		holds := radar.ValuesEqual(dep, c.Value)
		if c.Op == radar.OpNotEqual {
			holds = !holds
		}
		if holds && (c.Effect.Disabled || c.Effect.ReadOnly) {
			disabled = append(disabled, radar.DisabledControl{Control: c.Target, Reason: c.Effect.Reason})
		}
	}
	return disabled
}

// NearestSupportedRange snaps requested meters to the closest entry in
// manifest's SupportedRanges.
func NearestSupportedRange(manifest radar.CapabilityManifest, meters int) (int, bool) {
	ranges := manifest.Characteristics.SupportedRanges
	if len(ranges) == 0 {
		return 0, false
	}
	best := ranges[0].Meters
	bestDiff := abs(best - meters)
	for _, r := range ranges[1:] {
		if d := abs(r.Meters - meters); d < bestDiff {
			best, bestDiff = r.Meters, d
		}
	}
	return best, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
