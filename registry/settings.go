package registry

import (
	"encoding/json"

	"github.com/MarineYachtRadar/mayara-server/radar"
)

// Settings is the external key/value store. The core uses it only
// to echo bearingAlignment and noTransmitZones back to a radar after
// rediscovery; everything else the radar itself remembers.
type Settings interface {
	Load(key string) ([]byte, bool)
	Store(key string, value []byte)
}

// persistedControls are the controls echoed back through Settings.
var persistedControls = []radar.ControlID{
	radar.ControlBearingAlignment,
	radar.ControlNoTransmitZones,
}

func isPersisted(id radar.ControlID) bool {
	for _, c := range persistedControls {
		if c == id {
			return true
		}
	}
	return false
}

func settingsKey(id radar.ID, control radar.ControlID) string {
	return string(id) + "/" + string(control)
}

func marshalControlValue(v radar.ControlValue) []byte {
	data, _ := json.Marshal(v)
	return data
}

func unmarshalControlValue(data []byte) (radar.ControlValue, bool) {
	var v radar.ControlValue
	if err := json.Unmarshal(data, &v); err != nil {
		return radar.ControlValue{}, false
	}
	return v, true
}
