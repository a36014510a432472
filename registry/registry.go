// Package registry is the Registry facade: it owns every live
// RadarId -> RadarSession mapping, drives discovery into sessions, and
// is the single entry point the control API and external transports
// call into.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MarineYachtRadar/mayara-server/capability"
	"github.com/MarineYachtRadar/mayara-server/config"
	"github.com/MarineYachtRadar/mayara-server/control"
	"github.com/MarineYachtRadar/mayara-server/discovery"
	mayaraerrors "github.com/MarineYachtRadar/mayara-server/errors"
	"github.com/MarineYachtRadar/mayara-server/health"
	"github.com/MarineYachtRadar/mayara-server/metric"
	"github.com/MarineYachtRadar/mayara-server/nic"
	"github.com/MarineYachtRadar/mayara-server/pkg/worker"
	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/radarsession"
	"github.com/MarineYachtRadar/mayara-server/socket"
	"github.com/MarineYachtRadar/mayara-server/spoke"
	"github.com/MarineYachtRadar/mayara-server/wire"
	"github.com/MarineYachtRadar/mayara-server/wire/furuno"
	"github.com/MarineYachtRadar/mayara-server/wire/garmin"
	"github.com/MarineYachtRadar/mayara-server/wire/navico"
	"github.com/MarineYachtRadar/mayara-server/wire/raymarine"
)

// Event is emitted on the Registry's own event stream.
type Event interface{}

// Added is emitted the moment a radar is first admitted to the registry.
type Added struct{ ID radar.ID }

// Removed is emitted when a radar's session reaches PhaseLost; terminal.
type Removed struct{ ID radar.ID }

// StatusChanged mirrors a RadarSession phase transition.
type StatusChanged struct {
	ID       radar.ID
	Old, New radarsession.Phase
}

// ControlChanged mirrors a RadarSession control state change.
type ControlChanged struct {
	ID       radar.ID
	Control  radar.ControlID
	Old, New radar.ControlValue
}

type entry struct {
	info      radar.Info
	session   *radarsession.Session
	manifest  radar.CapabilityManifest
	pipeline  *spoke.Pipeline
	spokePool *worker.Pool[[]byte]
	cancel    context.CancelFunc
}

// Deps bundles what a Registry needs from the rest of the process.
// Health, Settings and Heading may be nil.
type Deps struct {
	Config   *config.Config
	NICs     *nic.Inventory
	Policy   socket.Policy
	Caps     *capability.Engine
	Metrics  *metric.Metrics
	Health   *health.Monitor
	Settings Settings
	Heading  spoke.HeadingSource
	Logger   *slog.Logger
}

// Registry owns every live radar's session, manifest and spoke pipeline.
type Registry struct {
	deps   Deps
	router *control.Router

	mu     sync.RWMutex
	radars map[radar.ID]*entry

	events chan Event
}

// New constructs an empty Registry.
func New(deps Deps) *Registry {
	r := &Registry{
		deps:   deps,
		radars: make(map[radar.ID]*entry),
		events: make(chan Event, 256),
	}
	r.router = control.New(r)
	return r
}

// Set is the external set_control operation: the full validation
// pipeline followed by vendor encoding and transmission.
func (r *Registry) Set(ctx context.Context, id radar.ID, controlID radar.ControlID, value radar.ControlValue, screen *int) error {
	return r.router.Set(ctx, id, controlID, value, screen)
}

// Events returns the Registry's Added/Removed/StatusChanged/ControlChanged stream.
func (r *Registry) Events() <-chan Event { return r.events }

func (r *Registry) emit(e Event) {
	select {
	case r.events <- e:
	default:
		r.deps.Logger.Warn("registry event channel full, dropping event")
	}
}

// Run subscribes to loc's discoveries and drives them into sessions
// until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, loc *discovery.Locator) error {
	sub := loc.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-sub:
			if !ok {
				return nil
			}
			r.handleDiscovered(ctx, d)
		}
	}
}

func (r *Registry) handleDiscovered(ctx context.Context, d discovery.Discovered) {
	if !r.deps.Config.AllowsVendor(d.Vendor) {
		return
	}

	r.mu.Lock()
	existing, known := r.radars[d.Candidate.ID]
	if known {
		// Rediscovery refreshes last-seen and firmware but never the
		// identity: last accepted beacon wins on firmware. Addresses
		// keep the values from first admission.
		existing.info.Firmware = d.Candidate.Firmware
		existing.info.LastSeen = d.Candidate.LastSeen
	}
	r.mu.Unlock()

	if known {
		existing.session.NotifyBeacon()
		return
	}

	r.admit(ctx, d)
}

func (r *Registry) admit(ctx context.Context, d discovery.Discovered) {
	info := d.Candidate
	codec, transport := r.buildCodecAndTransport(info)
	if codec == nil {
		return
	}

	manifest := r.deps.Caps.BuildManifest(info)

	pollInterval := time.Duration(0)
	if info.Vendor == radar.VendorFuruno {
		pollInterval = r.deps.Config.PollInterval()
	}

	sessionLogger := r.deps.Logger.With("radar_id", info.ID, "vendor", info.Vendor, "discovery_id", d.EventID)
	session := radarsession.New(radarsession.Config{
		Info:           info,
		Codec:          codec,
		Transport:      transport,
		Logger:         sessionLogger,
		LostAfter:      r.deps.Config.DiscoveryGrace() / 4,
		GraceAfter:     r.deps.Config.DiscoveryGrace(),
		CommandTimeout: r.deps.Config.CommandTimeout(),
		PollInterval:   pollInterval,
		SupervisorTick: supervisorTick(r.deps.Config.DiscoveryGrace()),
	})

	pipeline := spoke.New(info.ID, info.SpokesPerRevolution, r.deps.Config.SpokeSubscriberQueue, r.deps.Metrics, sessionLogger)
	if r.deps.Heading != nil {
		pipeline.SetHeadingSource(r.deps.Heading)
	}

	// One worker keeps spokes in parse order; the bounded queue
	// keeps a spoke burst from blocking the receiver goroutine.
	spokePool := worker.NewPool[[]byte](1, 64, func(_ context.Context, datagram []byte) error {
		session.IngestSpoke(datagram)
		return nil
	})

	sessCtx, cancel := context.WithCancel(ctx)
	e := &entry{info: info, session: session, manifest: manifest, pipeline: pipeline, spokePool: spokePool, cancel: cancel}

	r.mu.Lock()
	r.radars[info.ID] = e
	r.mu.Unlock()

	r.emit(Added{ID: info.ID})

	_ = spokePool.Start(sessCtx)
	go r.drainSession(sessCtx, e)
	go func() {
		if err := session.Run(sessCtx); err != nil {
			sessionLogger.Warn("session exited", "err", err)
		}
	}()
	r.startGroupReceivers(sessCtx, e)
	if r.deps.Settings != nil {
		go r.replaySettings(sessCtx, e)
	}
}

func (r *Registry) ingestReport(id radar.ID, line []byte) {
	r.mu.RLock()
	e, ok := r.radars[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	e.session.IngestReport(line)
}

func (r *Registry) buildCodecAndTransport(info radar.Info) (wire.Codec, radarsession.Transport) {
	switch info.Vendor {
	case radar.VendorNavico:
		return navico.Codec{}, radarsession.NewUnicastTransport(r.deps.Policy, r.deps.NICs, info.CommandAddress.Host, info.CommandAddress.Port)
	case radar.VendorRaymarine:
		return raymarine.Codec{}, radarsession.NewUnicastTransport(r.deps.Policy, r.deps.NICs, info.CommandAddress.Host, info.CommandAddress.Port)
	case radar.VendorGarmin:
		return garmin.Codec{}, radarsession.NewUnicastTransport(r.deps.Policy, r.deps.NICs, info.CommandAddress.Host, info.CommandAddress.Port)
	case radar.VendorFuruno:
		// the beacon-announced address is the TCP discovery endpoint;
		// the transport resolves the actual command port through the
		// login exchange on Connect
		return furuno.Codec{}, radarsession.NewFurunoTransport(info.CommandAddress.Host, info.CommandAddress.Port, func(line []byte) {
			r.ingestReport(info.ID, line)
		})
	}
	return nil, nil
}

// startGroupReceivers joins the radar's spoke and report groups on every
// non-loopback NIC and feeds received datagrams into the session.
func (r *Registry) startGroupReceivers(ctx context.Context, e *entry) {
	if e.info.SpokeGroup.Host != "" {
		go r.runGroupReceiver(ctx, e, e.info.SpokeGroup, true)
	}
	// Furuno state flows back on the command TCP connection, not a
	// report group.
	if e.info.ReportGroup.Host != "" && e.info.Vendor != radar.VendorFuruno {
		go r.runGroupReceiver(ctx, e, e.info.ReportGroup, false)
	}
}

func (r *Registry) runGroupReceiver(ctx context.Context, e *entry, group radar.Endpoint, isSpoke bool) {
	ifaces, err := r.deps.NICs.List()
	if err != nil || len(ifaces) == 0 {
		r.deps.Logger.Warn("no interfaces for group receiver", "radar_id", e.info.ID, "group", group.Host)
		return
	}

	var wg sync.WaitGroup
	for _, ifc := range ifaces {
		ifc := ifc
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.receiveOn(ctx, e, group, ifc, isSpoke)
		}()
	}
	wg.Wait()
}

func (r *Registry) receiveOn(ctx context.Context, e *entry, group radar.Endpoint, ifc nic.Interface, isSpoke bool) {
	backoff := mayaraerrors.BackoffConfig{InitialDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}
	delay := time.Duration(0)
	for {
		if ctx.Err() != nil {
			return
		}
		ep, err := r.deps.Policy.OpenMulticast(ctx, group.Host, group.Port, ifc)
		if err != nil {
			delay = backoff.NextDelay(delay)
			r.deps.Logger.Warn("group bind failed, retrying", "radar_id", e.info.ID, "group", group.Host, "nic", ifc.Name, "err", err, "retry_in", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return
			}
		}
		delay = 0
		r.drainGroup(ctx, e, ep, isSpoke)
		return
	}
}

func (r *Registry) drainGroup(ctx context.Context, e *entry, ep socket.Endpoint, isSpoke bool) {
	defer ep.Close()
	buf := make([]byte, 65536)
	for {
		if ctx.Err() != nil {
			return
		}
		n, _, err := ep.ReadFrom(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		datagram := append([]byte{}, buf[:n]...)
		if isSpoke {
			// queue-full drops are counted, never blocking
			if submitErr := e.spokePool.Submit(datagram); submitErr != nil && r.deps.Metrics != nil {
				r.deps.Metrics.RecordSpokeDropped(string(e.info.ID))
			}
			continue
		}
		e.session.IngestReport(datagram)
		if r.deps.Metrics != nil {
			r.deps.Metrics.RecordReportProcessed(string(e.info.ID), string(e.info.Vendor))
		}
	}
}

// replaySettings echoes the persisted bearingAlignment/noTransmitZones
// values back to the radar once its session comes online.
func (r *Registry) replaySettings(ctx context.Context, e *entry) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(30 * time.Second)
	for e.session.Phase() != radarsession.PhaseOnline {
		if time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	for _, control := range persistedControls {
		data, ok := r.deps.Settings.Load(settingsKey(e.info.ID, control))
		if !ok {
			continue
		}
		value, ok := unmarshalControlValue(data)
		if !ok {
			continue
		}
		if err := e.session.SetControl(ctx, wire.VendorCmd{Control: control, Value: value}); err != nil {
			r.deps.Logger.Warn("settings replay failed", "radar_id", e.info.ID, "control", control, "err", err)
		}
	}
}

func (r *Registry) drainSession(ctx context.Context, e *entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.session.Events():
			if !ok {
				r.remove(e.info.ID)
				return
			}
			r.handleSessionEvent(e, ev)
		}
	}
}

func (r *Registry) handleSessionEvent(e *entry, ev radarsession.Event) {
	switch v := ev.(type) {
	case radarsession.PhaseChanged:
		r.emit(StatusChanged{ID: v.ID, Old: v.Old, New: v.New})
		if r.deps.Metrics != nil {
			r.deps.Metrics.RecordRadarStatus(string(v.ID), string(e.info.Vendor), phaseOrdinal(v.New))
		}
		r.updateHealth(e.info.ID, v.New)
	case radarsession.StateChange:
		r.emit(ControlChanged{ID: v.ID, Control: v.Control, Old: v.Old, New: v.New})
		if r.deps.Settings != nil && isPersisted(v.Control) {
			r.deps.Settings.Store(settingsKey(v.ID, v.Control), marshalControlValue(v.New))
		}
	case radarsession.UnknownFieldChange:
		// diagnostic only, not surfaced on the external API
	case radarsession.SpokeBatch:
		e.pipeline.Publish(v.Spokes)
	}
}

func (r *Registry) updateHealth(id radar.ID, p radarsession.Phase) {
	if r.deps.Health == nil {
		return
	}
	name := "session/" + string(id)
	switch p {
	case radarsession.PhaseOnline:
		r.deps.Health.UpdateHealthy(name, "radar online")
	case radarsession.PhaseDegraded:
		r.deps.Health.UpdateDegraded(name, "beacon silence, serving cached state")
	case radarsession.PhaseLost:
		r.deps.Health.UpdateUnhealthy(name, "radar lost")
	default:
		r.deps.Health.UpdateDegraded(name, "connecting")
	}
}

// supervisorTick scales the beacon-silence check interval with the
// configured grace so short test graces are still observed promptly.
func supervisorTick(grace time.Duration) time.Duration {
	tick := grace / 60
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	if tick > time.Second {
		tick = time.Second
	}
	return tick
}

func phaseOrdinal(p radarsession.Phase) int {
	switch p {
	case radarsession.PhaseOnline:
		return 3
	case radarsession.PhaseDegraded:
		return 1
	default:
		return 0
	}
}

func (r *Registry) remove(id radar.ID) {
	r.mu.Lock()
	e, ok := r.radars[id]
	if ok {
		delete(r.radars, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	e.cancel()
	_ = e.session.Close()
	_ = e.spokePool.Stop(time.Second)
	if r.deps.Health != nil {
		r.deps.Health.Remove("session/" + string(id))
	}
	r.emit(Removed{ID: id})
}

// List returns a summary of every known radar.
func (r *Registry) List() []radar.Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]radar.Summary, 0, len(r.radars))
	for _, e := range r.radars {
		st := e.session.State()
		out = append(out, radar.Summary{ID: e.info.ID, Vendor: e.info.Vendor, Model: e.info.Model, Status: st.Status})
	}
	return out
}

// Info returns a radar's discovery descriptor.
func (r *Registry) Info(id radar.ID) (radar.Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.radars[id]
	if !ok {
		return radar.Info{}, false
	}
	return e.info, true
}

// Legend returns a radar's current intensity legend, rebuilt from its
// live Doppler mode so velocity roles appear only while Doppler is on.
func (r *Registry) Legend(id radar.ID) (radar.Legend, bool) {
	r.mu.RLock()
	e, ok := r.radars[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	st := e.session.State()
	doppler := false
	if dv, has := st.Controls[radar.ControlDopplerMode]; has {
		doppler = dv.Kind == radar.ValueEnum && dv.Enum != 0 || dv.Kind == radar.ValueBool && dv.Bool
	}
	return capability.BuildLegend(e.info.Vendor, doppler), true
}

// Manifest returns a radar's capability manifest.
func (r *Registry) Manifest(id radar.ID) (radar.CapabilityManifest, bool) {
	r.mu.RLock()
	e, ok := r.radars[id]
	r.mu.RUnlock()
	if !ok {
		return radar.CapabilityManifest{}, false
	}
	return e.manifest, true
}

// State returns a radar's current observed control state, including
// the DisabledControls its manifest's constraints currently impose.
func (r *Registry) State(id radar.ID) (radar.State, bool) {
	r.mu.RLock()
	e, ok := r.radars[id]
	r.mu.RUnlock()
	if !ok {
		return radar.State{}, false
	}
	st := e.session.State()
	st.DisabledControls = capability.ApplyConstraints(e.manifest, st)
	return st, true
}

// SetControl encodes and sends cmd via the owning RadarSession.
func (r *Registry) SetControl(ctx context.Context, id radar.ID, cmd wire.VendorCmd) error {
	r.mu.RLock()
	e, ok := r.radars[id]
	r.mu.RUnlock()
	if !ok {
		return mayaraerrors.New(mayaraerrors.KindUnknownRadar, "no such radar: "+string(id))
	}
	err := e.session.SetControl(ctx, cmd)
	if r.deps.Metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = string(mayaraerrors.KindOf(err))
		}
		r.deps.Metrics.RecordControlSet(string(cmd.Control), outcome)
	}
	return err
}

// SubscribeSpokes registers a new spoke subscriber for id.
func (r *Registry) SubscribeSpokes(id radar.ID) (subID string, ch <-chan radar.Spoke, ok bool) {
	r.mu.RLock()
	e, known := r.radars[id]
	r.mu.RUnlock()
	if !known {
		return "", nil, false
	}
	subID, ch = e.pipeline.Subscribe()
	return subID, ch, true
}

// UnsubscribeSpokes removes a spoke subscriber.
func (r *Registry) UnsubscribeSpokes(id radar.ID, subID string) {
	r.mu.RLock()
	e, known := r.radars[id]
	r.mu.RUnlock()
	if known {
		e.pipeline.Unsubscribe(subID)
	}
}
