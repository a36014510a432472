// Package discovery runs the four vendor beacon listeners concurrently
// on every NIC and emits Discovered events for the radars they find.
package discovery

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	mayaraerrors "github.com/MarineYachtRadar/mayara-server/errors"
	"github.com/MarineYachtRadar/mayara-server/metric"
	"github.com/MarineYachtRadar/mayara-server/nic"
	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/socket"
	"github.com/MarineYachtRadar/mayara-server/wire"
)

// Beacon is one vendor's multicast beacon endpoint and codec.
type Beacon struct {
	Vendor wire.Codec
	Group  string
	Port   int
}

// Discovered is emitted on each validated beacon. EventID correlates
// the discovery with registry admission and session logs downstream.
type Discovered struct {
	EventID   string
	Vendor    radar.Vendor
	Candidate radar.Info
}

// Locator runs one listener goroutine per (beacon, NIC) pair.
type Locator struct {
	beacons []Beacon
	nics    *nic.Inventory
	policy  socket.Policy
	backoff mayaraerrors.BackoffConfig
	metrics *metric.Metrics
	logger  *slog.Logger

	mu          sync.Mutex
	dropped     map[radar.Vendor]int
	accepted    int
	subscribers []chan Discovered
	started     time.Time
	lastBeacon  time.Time
}

// New constructs a Locator over the given beacons. metrics may be nil.
func New(beacons []Beacon, nics *nic.Inventory, policy socket.Policy, metrics *metric.Metrics, logger *slog.Logger) *Locator {
	return &Locator{
		beacons: beacons,
		nics:    nics,
		policy:  policy,
		backoff: mayaraerrors.BackoffConfig{InitialDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2},
		metrics: metrics,
		logger:  logger,
		dropped: make(map[radar.Vendor]int),
	}
}

// Subscribe returns a channel receiving every Discovered event. The
// channel is never closed; Run stops sending on it once its ctx is done.
func (l *Locator) Subscribe() <-chan Discovered {
	ch := make(chan Discovered, 64)
	l.mu.Lock()
	l.subscribers = append(l.subscribers, ch)
	l.mu.Unlock()
	return ch
}

func (l *Locator) publish(d Discovered) {
	l.mu.Lock()
	subs := append([]chan Discovered{}, l.subscribers...)
	l.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- d:
		default:
			l.logger.Warn("discovery subscriber lagging, dropping event", "vendor", d.Vendor)
		}
	}
}

// DroppedCount returns the count of malformed beacons dropped per
// vendor. Malformed beacons are counted, never surfaced.
func (l *Locator) DroppedCount(v radar.Vendor) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped[v]
}

func (l *Locator) countDropped(v radar.Vendor) {
	l.mu.Lock()
	l.dropped[v]++
	l.mu.Unlock()
}

// Run starts a listener goroutine for every (beacon, NIC) combination
// and blocks until ctx is cancelled. One listener's fatal error never
// cancels its siblings — each listener recovers internally and retries
// its own bind with backoff; the errgroup only carries clean shutdown.
func (l *Locator) Run(ctx context.Context) error {
	ifaces, err := l.nics.List()
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.started = time.Now()
	l.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, beacon := range l.beacons {
		for _, ifc := range ifaces {
			b, ifc := beacon, ifc
			g.Go(func() error {
				l.runListener(ctx, b, ifc)
				return nil
			})
		}
	}
	return g.Wait()
}

// senderHost extracts the IP of a datagram's source address.
func senderHost(from net.Addr) string {
	if from == nil {
		return ""
	}
	if udp, ok := from.(*net.UDPAddr); ok {
		return udp.IP.String()
	}
	host, _, err := net.SplitHostPort(from.String())
	if err != nil {
		return from.String()
	}
	return host
}

func (l *Locator) runListener(ctx context.Context, b Beacon, ifc nic.Interface) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("beacon listener panicked, isolated", "vendor", b.Vendor.Vendor(), "nic", ifc.Name, "panic", r)
		}
	}()

	delay := time.Duration(0)
	for {
		if ctx.Err() != nil {
			return
		}
		ep, err := l.policy.OpenMulticast(ctx, b.Group, b.Port, ifc)
		if err != nil {
			delay = l.backoff.NextDelay(delay)
			l.logger.Warn("beacon bind failed, retrying", "vendor", b.Vendor.Vendor(), "nic", ifc.Name, "err", err, "retry_in", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return
			}
		}
		delay = 0
		l.drainBeacons(ctx, b, ep)
		return
	}
}

func (l *Locator) drainBeacons(ctx context.Context, b Beacon, ep socket.Endpoint) {
	defer ep.Close()
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return
		}
		n, from, err := ep.ReadFrom(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		sender := senderHost(from)
		l.mu.Lock()
		l.accepted++
		l.lastBeacon = time.Now()
		l.mu.Unlock()
		if l.metrics != nil {
			l.metrics.RecordBeaconReceived(string(b.Vendor.Vendor()), ep.Interface().Name)
		}
		beacons, err := b.Vendor.ParseBeacon(buf[:n])
		if err != nil {
			l.countDropped(b.Vendor.Vendor())
			if l.metrics != nil {
				l.metrics.RecordBeaconDropped(string(b.Vendor.Vendor()))
			}
			continue
		}
		for _, bi := range beacons {
			// Beacons that announce a port without an address (Furuno's
			// TCP discovery port) are reachable at the beacon's sender.
			if bi.CommandAddress.Host == "" {
				bi.CommandAddress.Host = sender
			}
			id := radar.NewID(b.Vendor.Vendor(), bi.Serial, bi.Channel)
			l.publish(Discovered{
				EventID: uuid.NewString(),
				Vendor:  b.Vendor.Vendor(),
				Candidate: radar.Info{
					ID:                  id,
					Vendor:              b.Vendor.Vendor(),
					Model:               bi.Model,
					Firmware:            bi.Firmware,
					Serial:              bi.Serial,
					Channel:             bi.Channel,
					PrimaryInterfaceIP:  ep.Interface().Addr.String(),
					SpokeGroup:          radar.Endpoint{Host: bi.SpokeGroup.Host, Port: bi.SpokeGroup.Port},
					ReportGroup:         radar.Endpoint{Host: bi.ReportGroup.Host, Port: bi.ReportGroup.Port},
					CommandAddress:      radar.Endpoint{Host: bi.CommandAddress.Host, Port: bi.CommandAddress.Port},
					SpokesPerRevolution: bi.SpokesPerRevolution,
					MaxSpokeLength:      bi.MaxSpokeLength,
					LastSeen:            time.Now(),
				},
			})
		}
	}
}
