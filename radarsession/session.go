// Package radarsession implements one state machine per live radar:
// command channel, periodic polling, and state reconciliation.
package radarsession

import (
	"context"
	"log/slog"
	"sync"
	"time"

	mayaraerrors "github.com/MarineYachtRadar/mayara-server/errors"
	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/wire"
)

// Phase is the session's position in its lifecycle state machine.
type Phase string

const (
	PhaseDiscovered Phase = "Discovered"
	PhaseConnecting Phase = "Connecting"
	PhaseOnline     Phase = "Online"
	PhaseDegraded   Phase = "Degraded"
	PhaseLost       Phase = "Lost"
)

// Default timeouts for beacon silence and command transmission.
const (
	DefaultLostAfter      = 15 * time.Second
	DefaultGraceAfter     = 60 * time.Second
	DefaultCommandTimeout = 500 * time.Millisecond
)

// Transport is the per-vendor command channel. Furuno implements it
// over TCP with a login/keepalive handshake; the UDP/multicast vendors
// implement it over socket.Policy.SendUnicast or a joined group send.
type Transport interface {
	// Connect performs any handshake needed before Send works.
	Connect(ctx context.Context) error
	// Send transmits an already-encoded command frame.
	Send(ctx context.Context, payload []byte) error
	// Close releases the transport.
	Close() error
}

// Event is emitted on the session's own channel; the Registry drains it
// (sessions never hold a Registry handle, so no reference cycle forms).
type Event interface{}

// StateChange is emitted when a known control's cached value changes.
type StateChange struct {
	ID       radar.ID
	Control  radar.ControlID
	Old, New radar.ControlValue
}

// UnknownFieldChange is emitted for Furuno's unmapped $N## responses.
type UnknownFieldChange struct {
	ID     radar.ID
	FieldID string
	Params []byte
}

// PhaseChanged is emitted on every state machine transition.
type PhaseChanged struct {
	ID       radar.ID
	Old, New Phase
}

// SpokeBatch is handed to the SpokePipeline without interpretation
// beyond codec parsing.
type SpokeBatch struct {
	ID     radar.ID
	Spokes []radar.Spoke
}

// Session is one radar's command/state/spoke machine.
type Session struct {
	info   radar.Info
	codec  wire.Codec
	tr     Transport
	logger *slog.Logger

	lostAfter  time.Duration
	graceAfter time.Duration
	cmdTimeout time.Duration
	pollEvery  time.Duration // 0 for push vendors
	tick       time.Duration

	events chan Event

	mu       sync.Mutex
	phase    Phase
	controls map[radar.ControlID]radar.ControlValue
	lastSeen time.Time
	backoff  mayaraerrors.BackoffConfig
}

// Config bundles per-session construction parameters.
type Config struct {
	Info           radar.Info
	Codec          wire.Codec
	Transport      Transport
	Logger         *slog.Logger
	LostAfter      time.Duration
	GraceAfter     time.Duration
	CommandTimeout time.Duration
	PollInterval   time.Duration // 0 for vendors whose state flows on the report group
	SupervisorTick time.Duration // beacon-silence check interval, default 1s
}

// New constructs a Session in PhaseDiscovered.
func New(cfg Config) *Session {
	lostAfter := cfg.LostAfter
	if lostAfter == 0 {
		lostAfter = DefaultLostAfter
	}
	graceAfter := cfg.GraceAfter
	if graceAfter == 0 {
		graceAfter = DefaultGraceAfter
	}
	cmdTimeout := cfg.CommandTimeout
	if cmdTimeout == 0 {
		cmdTimeout = DefaultCommandTimeout
	}
	tick := cfg.SupervisorTick
	if tick == 0 {
		tick = time.Second
	}

	return &Session{
		info:       cfg.Info,
		codec:      cfg.Codec,
		tr:         cfg.Transport,
		logger:     cfg.Logger,
		lostAfter:  lostAfter,
		graceAfter: graceAfter,
		cmdTimeout: cmdTimeout,
		pollEvery:  cfg.PollInterval,
		tick:       tick,
		events:     make(chan Event, 256),
		phase:      PhaseDiscovered,
		controls:   make(map[radar.ControlID]radar.ControlValue),
		lastSeen:   time.Now(),
		backoff:    mayaraerrors.BackoffConfig{InitialDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2},
	}
}

// Events returns the channel the Registry drains.
func (s *Session) Events() <-chan Event { return s.events }

// Info returns the radar descriptor this session owns.
func (s *Session) Info() radar.Info { return s.info }

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.logger.Warn("session event channel full, dropping event", "radar_id", s.info.ID)
	}
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	old := s.phase
	s.phase = p
	s.mu.Unlock()
	if old != p {
		s.emit(PhaseChanged{ID: s.info.ID, Old: old, New: p})
	}
}

// Phase returns the session's current state machine position.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// State returns a snapshot of the session's cached control values.
func (s *Session) State() radar.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	controls := make(map[radar.ControlID]radar.ControlValue, len(s.controls))
	for k, v := range s.controls {
		controls[k] = v
	}
	status := radar.StatusOff
	if pv, ok := s.controls[radar.ControlPower]; ok && pv.Kind == radar.ValueEnum {
		status = radar.StatusFromOrdinal(pv.Enum)
	}
	return radar.State{ID: s.info.ID, Timestamp: time.Now(), Status: status, Controls: controls}
}

// Run drives the connect handshake, polling loop (if any) and the
// beacon-timeout supervisor until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.events)

	// Reaching PhaseLost cancels the session-internal context so the
	// connect and poll loops exit with the supervisor.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.connectLoop(ctx)
	}()

	if s.pollEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pollLoop(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.supervisorLoop(ctx, cancel)
	}()

	wg.Wait()
	return nil
}

func (s *Session) connectLoop(ctx context.Context) {
	s.setPhase(PhaseConnecting)
	delay := time.Duration(0)
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.tr.Connect(ctx)
		if err == nil {
			s.setPhase(PhaseOnline)
			return
		}
		delay = s.backoff.NextDelay(delay)
		s.logger.Warn("session connect failed, retrying", "radar_id", s.info.ID, "err", err, "retry_in", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) pollLoop(ctx context.Context) {
	for {
		wait := s.pollEvery + jitter(s.pollEvery/20) // ±100ms at the default 2s interval
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			if s.Phase() != PhaseOnline {
				continue
			}
			_ = s.tr.Send(ctx, nil) // vendor transport interprets nil as "send poll batch"
		}
	}
}

// jitter returns a pseudo-random duration in [-span, span], seeded from
// the wall clock so the poll loop doesn't need a shared RNG.
func jitter(span time.Duration) time.Duration {
	if span <= 0 {
		return 0
	}
	n := time.Now().UnixNano() % int64(2*span)
	return time.Duration(n) - span
}

// supervisorLoop enforces the beacon-silence timeouts: no
// beacon for lostAfter moves Online->Degraded; graceAfter further
// silence moves Degraded->Lost, at which point the session exits.
func (s *Session) supervisorLoop(ctx context.Context, lost context.CancelFunc) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			silence := time.Since(s.lastSeen)
			phase := s.phase
			s.mu.Unlock()

			switch phase {
			case PhaseOnline:
				if silence >= s.lostAfter {
					s.setPhase(PhaseDegraded)
				}
			case PhaseDegraded:
				if silence >= s.lostAfter+s.graceAfter {
					s.setPhase(PhaseLost)
					lost()
					return
				}
			}
		}
	}
}

// NotifyBeacon resets the beacon-silence clock; called by Registry on
// every Discovered refresh for this radar's id.
func (s *Session) NotifyBeacon() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	wasDegraded := s.phase == PhaseDegraded
	s.mu.Unlock()
	if wasDegraded {
		s.setPhase(PhaseOnline)
	}
}

// IngestReport parses one report frame and reconciles the control
// cache, emitting StateChange/UnknownFieldChange events on change. The
// first observation of a control seeds the cache silently.
func (s *Session) IngestReport(data []byte) {
	fields, err := s.codec.ParseReport(data)
	if err != nil {
		return // malformed reports are dropped, never surfaced
	}
	for _, f := range fields {
		if f.Kind == wire.FieldUnknown {
			s.emit(UnknownFieldChange{ID: s.info.ID, FieldID: f.UnknownID, Params: f.Params})
			continue
		}
		s.mu.Lock()
		old, existed := s.controls[f.Control]
		s.controls[f.Control] = f.Value
		s.mu.Unlock()

		if existed && !radar.ValuesEqual(old, f.Value) {
			s.emit(StateChange{ID: s.info.ID, Control: f.Control, Old: old, New: f.Value})
		}
	}
}

// IngestSpoke parses a spoke batch and hands it to the events channel
// for the SpokePipeline to pick up.
func (s *Session) IngestSpoke(data []byte) {
	spokes, err := s.codec.ParseSpoke(data, s.info)
	if err != nil {
		return
	}
	s.emit(SpokeBatch{ID: s.info.ID, Spokes: spokes})
}

// SetControl encodes cmd and transmits it. A command that cannot be
// transmitted within the configured timeout fails with KindTimeout.
func (s *Session) SetControl(ctx context.Context, cmd wire.VendorCmd) error {
	if s.Phase() == PhaseDegraded {
		return mayaraerrors.New(mayaraerrors.KindUnavailable, "radar is degraded")
	}
	if s.Phase() != PhaseOnline {
		return mayaraerrors.New(mayaraerrors.KindUnavailable, "radar is not online")
	}

	payload, err := s.codec.EncodeCommand(cmd)
	if err != nil {
		return mayaraerrors.New(mayaraerrors.KindNotSupported, err.Error())
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cmdTimeout)
	defer cancel()

	if err := s.tr.Send(sendCtx, payload); err != nil {
		if sendCtx.Err() != nil {
			return mayaraerrors.New(mayaraerrors.KindTimeout, "command enqueue to wire exceeded "+s.cmdTimeout.String())
		}
		// A transport fault (no NIC routes to the radar, socket gone)
		// degrades the session; the next beacon restores it.
		s.setPhase(PhaseDegraded)
		return mayaraerrors.New(mayaraerrors.KindUnavailable, err.Error())
	}
	return nil
}

// Close releases the session's transport.
func (s *Session) Close() error {
	return s.tr.Close()
}
