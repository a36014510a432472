// Package control implements the vendor-neutral control validation
// pipeline: typecheck, constraint evaluation and range-snapping, before
// delegating the vendor-neutral command to the owning RadarSession,
// which encodes it for the vendor.
package control

import (
	"context"

	"github.com/MarineYachtRadar/mayara-server/capability"
	mayaraerrors "github.com/MarineYachtRadar/mayara-server/errors"
	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/wire"
)

// Sessions is the subset of Registry the Router needs: per-radar state
// and manifest lookup, and a way to hand an encoded command to the
// owning RadarSession. Defined here (not in registry) so control never
// imports registry and the two can be wired together by main.
type Sessions interface {
	State(id radar.ID) (radar.State, bool)
	Manifest(id radar.ID) (radar.CapabilityManifest, bool)
	SetControl(ctx context.Context, id radar.ID, cmd wire.VendorCmd) error
}

// Router validates and dispatches control set requests.
type Router struct {
	sessions Sessions
}

// New constructs a Router over sessions.
func New(sessions Sessions) *Router {
	return &Router{sessions: sessions}
}

// Set runs the full validation pipeline for one control set request
// and, if it passes, delegates to the owning RadarSession.
func (r *Router) Set(ctx context.Context, id radar.ID, controlID radar.ControlID, value radar.ControlValue, screen *int) error {
	manifest, ok := r.sessions.Manifest(id)
	if !ok {
		return mayaraerrors.New(mayaraerrors.KindUnknownRadar, "no such radar")
	}

	def := findDefinition(manifest, controlID)
	if def == nil {
		return mayaraerrors.New(mayaraerrors.KindUnknownControl, "radar has no control "+string(controlID))
	}

	if err := typecheck(*def, value); err != nil {
		return err
	}

	state, _ := r.sessions.State(id)
	for _, dc := range capability.ApplyConstraints(manifest, state) {
		if dc.Control == controlID {
			return mayaraerrors.New(mayaraerrors.KindDisabled, dc.Reason)
		}
	}

	value = snapValue(manifest, *def, value)

	cmd := wire.VendorCmd{Control: controlID, Value: value, Screen: screen}
	if err := r.sessions.SetControl(ctx, id, cmd); err != nil {
		return err
	}
	return nil
}

func findDefinition(manifest radar.CapabilityManifest, id radar.ControlID) *radar.ControlDefinition {
	for i := range manifest.Controls {
		if manifest.Controls[i].ID == id {
			return &manifest.Controls[i]
		}
	}
	return nil
}

func typecheck(def radar.ControlDefinition, v radar.ControlValue) error {
	if def.ReadOnly {
		return mayaraerrors.New(mayaraerrors.KindDisabled, string(def.ID)+" is read-only")
	}
	switch def.Kind {
	case radar.KindBoolean:
		if v.Kind != radar.ValueBool {
			return mayaraerrors.New(mayaraerrors.KindInvalidValue, string(def.ID)+" expects a boolean value")
		}
	case radar.KindNumber:
		if v.Kind != radar.ValueNum {
			return mayaraerrors.New(mayaraerrors.KindInvalidValue, string(def.ID)+" expects a numeric value")
		}
		if (def.Min != 0 || def.Max != 0) && (v.Num < def.Min || v.Num > def.Max) {
			return mayaraerrors.New(mayaraerrors.KindInvalidValue, string(def.ID)+" is out of range")
		}
	case radar.KindEnum:
		if v.Kind != radar.ValueEnum {
			return mayaraerrors.New(mayaraerrors.KindInvalidValue, string(def.ID)+" expects an enum value")
		}
		if !validEnum(def, v.Enum) {
			return mayaraerrors.New(mayaraerrors.KindInvalidValue, string(def.ID)+" has no such enum value")
		}
	case radar.KindCompound:
		if v.Kind != radar.ValueCompound {
			return mayaraerrors.New(mayaraerrors.KindInvalidValue, string(def.ID)+" expects a compound value")
		}
		if !validMode(def, v.Mode) {
			return mayaraerrors.New(mayaraerrors.KindInvalidValue, string(def.ID)+" has no such mode")
		}
	}
	return nil
}

func validEnum(def radar.ControlDefinition, v int32) bool {
	for _, variant := range def.Variants {
		if variant.Value == v {
			return true
		}
	}
	return false
}

func validMode(def radar.ControlDefinition, mode string) bool {
	if len(def.Modes) == 0 {
		return true
	}
	for _, m := range def.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// snapValue applies range-snapping for the range control; every
// other control passes through unchanged.
func snapValue(manifest radar.CapabilityManifest, def radar.ControlDefinition, v radar.ControlValue) radar.ControlValue {
	if def.ID != radar.ControlRange || v.Kind != radar.ValueNum {
		return v
	}
	if snapped, ok := capability.NearestSupportedRange(manifest, int(v.Num)); ok {
		v.Num = float64(snapped)
	}
	return v
}
