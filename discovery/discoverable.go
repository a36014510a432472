package discovery

import (
	"time"

	"github.com/MarineYachtRadar/mayara-server/component"
)

// Meta implements component.Discoverable so cmd/mayara can introspect
// the listener surface and detect port conflicts at startup.
func (l *Locator) Meta() component.Metadata {
	return component.Metadata{
		Name:        "locator",
		Type:        "discovery",
		Description: "vendor beacon listeners on every non-loopback NIC",
		Version:     "1",
	}
}

// InputPorts lists every beacon group the Locator binds.
func (l *Locator) InputPorts() []component.Port {
	ports := make([]component.Port, 0, len(l.beacons))
	for _, b := range l.beacons {
		ports = append(ports, component.Port{
			Name:        string(b.Vendor.Vendor()) + "-beacon",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: "beacon multicast group",
			Endpoint:    component.MulticastEndpoint{Group: b.Group, Port: b.Port},
		})
	}
	return ports
}

// OutputPorts: the Locator only listens.
func (l *Locator) OutputPorts() []component.Port { return nil }

// Health reports listener liveness; the dropped-beacon total doubles as
// the error count.
func (l *Locator) Health() component.HealthStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	var droppedTotal int
	for _, n := range l.dropped {
		droppedTotal += n
	}
	uptime := time.Duration(0)
	if !l.started.IsZero() {
		uptime = time.Since(l.started)
	}
	return component.HealthStatus{
		Healthy:    !l.started.IsZero(),
		LastCheck:  time.Now(),
		ErrorCount: droppedTotal,
		Uptime:     uptime,
	}
}

// DataFlow reports beacon throughput since start.
func (l *Locator) DataFlow() component.FlowMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()

	var rate float64
	if !l.started.IsZero() {
		if secs := time.Since(l.started).Seconds(); secs > 0 {
			rate = float64(l.accepted) / secs
		}
	}
	var droppedTotal int
	for _, n := range l.dropped {
		droppedTotal += n
	}
	var errorRate float64
	if total := l.accepted + droppedTotal; total > 0 {
		errorRate = float64(droppedTotal) / float64(total)
	}
	return component.FlowMetrics{
		ItemsPerSecond: rate,
		ErrorRate:      errorRate,
		LastActivity:   l.lastBeacon,
	}
}

var _ component.Discoverable = (*Locator)(nil)
