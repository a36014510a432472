// Package spoke fans out decoded spoke batches from a RadarSession to
// its subscribers, computing true bearing from the radar's own heading
// feed and applying skip-to-latest backpressure per subscriber.
package spoke

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MarineYachtRadar/mayara-server/metric"
	"github.com/MarineYachtRadar/mayara-server/pkg/buffer"
	"github.com/MarineYachtRadar/mayara-server/radar"
)

// HeadingSource is the callback the external layer supplies at
// startup: the vessel's current true heading, or ok=false when no heading
// input is available. The core never polls GPS/NMEA itself.
type HeadingSource func() (radiansTrue float64, at time.Time, ok bool)

// headingMaxAge is the freshness window a heading sample must fall
// within to be used for bearing computation.
const headingMaxAge = time.Second

// maxLagEpisodes is how many distinct lag episodes a subscriber may
// have before the pipeline disconnects it.
const maxLagEpisodes = 5

// Event is emitted on the pipeline's event channel.
type Event interface{}

// Lagging is emitted the first time a subscriber's buffer overflows in
// a lag episode; it is not repeated until the subscriber catches up.
type Lagging struct {
	RadarID      radar.ID
	SubscriberID string
}

// Disconnected is emitted when a subscriber is dropped after
// repeatedly lagging.
type Disconnected struct {
	RadarID      radar.ID
	SubscriberID string
}

type heading struct {
	spokes uint16
	at     time.Time
}

type subscriber struct {
	id  string
	buf buffer.Buffer[radar.Spoke]
	out chan radar.Spoke

	mu       sync.Mutex
	lagging  bool
	episodes int

	stop chan struct{}
}

// Pipeline is the per-radar spoke fan-out.
type Pipeline struct {
	radarID      radar.ID
	spokesPerRev int
	queueSize    int
	metrics      *metric.Metrics
	logger       *slog.Logger

	mu     sync.RWMutex
	heads  heading
	source HeadingSource
	subs   map[string]*subscriber
	events chan Event
}

// New constructs a Pipeline for one radar. queueSize is the
// spoke_subscriber_queue configuration value.
func New(radarID radar.ID, spokesPerRev, queueSize int, metrics *metric.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		radarID:      radarID,
		spokesPerRev: spokesPerRev,
		queueSize:    queueSize,
		metrics:      metrics,
		logger:       logger,
		subs:         make(map[string]*subscriber),
		events:       make(chan Event, 32),
	}
}

// Events returns the pipeline's Lagging/Disconnected event stream.
func (p *Pipeline) Events() <-chan Event { return p.events }

// SetHeading records a fresh heading-in-spokes sample.
func (p *Pipeline) SetHeading(spokes uint16, at time.Time) {
	p.mu.Lock()
	p.heads = heading{spokes: spokes, at: at}
	p.mu.Unlock()
}

// SetHeadingSource installs the external heading callback; Publish
// samples it before each batch and converts radians to the radar's
// native spoke grid.
func (p *Pipeline) SetHeadingSource(src HeadingSource) {
	p.mu.Lock()
	p.source = src
	p.mu.Unlock()
}

func (p *Pipeline) sampleHeading() {
	p.mu.RLock()
	src := p.source
	p.mu.RUnlock()
	if src == nil || p.spokesPerRev == 0 {
		return
	}
	radians, at, ok := src()
	if !ok {
		return
	}
	frac := radians / (2 * math.Pi)
	frac -= math.Floor(frac)
	p.SetHeading(uint16(math.Round(frac*float64(p.spokesPerRev)))%uint16(p.spokesPerRev), at)
}

// Publish computes each spoke's bearing (when heading is fresh) and
// fans a copy out to every subscriber's buffer.
func (p *Pipeline) Publish(spokes []radar.Spoke) {
	p.sampleHeading()
	p.mu.RLock()
	h := p.heads
	subs := make([]*subscriber, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.RUnlock()

	fresh := time.Since(h.at) <= headingMaxAge
	for _, sp := range spokes {
		if fresh && p.spokesPerRev > 0 {
			b := uint16((int(sp.Angle) + int(h.spokes)) % p.spokesPerRev)
			sp.Bearing = &b
		}
		if p.metrics != nil {
			p.metrics.RecordSpokeProcessed(string(p.radarID))
		}
		for _, s := range subs {
			p.write(s, sp)
		}
	}
}

func (p *Pipeline) write(s *subscriber, sp radar.Spoke) {
	before := s.buf.Stats().Drops()
	_ = s.buf.Write(sp)
	after := s.buf.Stats().Drops()

	s.mu.Lock()
	if after > before {
		if !s.lagging {
			s.lagging = true
			s.episodes++
			disconnect := s.episodes >= maxLagEpisodes
			s.mu.Unlock()
			p.emit(Lagging{RadarID: p.radarID, SubscriberID: s.id})
			if p.metrics != nil {
				p.metrics.RecordSpokeDropped(string(p.radarID))
			}
			if disconnect {
				p.Unsubscribe(s.id)
				p.emit(Disconnected{RadarID: p.radarID, SubscriberID: s.id})
			}
			return
		}
	} else {
		s.lagging = false
	}
	s.mu.Unlock()
}

func (p *Pipeline) emit(e Event) {
	select {
	case p.events <- e:
	default:
		p.logger.Warn("spoke pipeline event channel full, dropping event", "radar_id", p.radarID)
	}
}

// Subscribe registers a new subscriber and returns its output channel.
// Spokes arrive on the channel in the order Publish saw them.
func (p *Pipeline) Subscribe() (id string, ch <-chan radar.Spoke) {
	buf, _ := buffer.NewCircularBuffer[radar.Spoke](p.queueSize, buffer.WithOverflowPolicy[radar.Spoke](buffer.DropOldest))

	p.mu.Lock()
	sid := uuid.NewString()
	s := &subscriber{id: sid, buf: buf, out: make(chan radar.Spoke, 1), stop: make(chan struct{})}
	p.subs[sid] = s
	p.mu.Unlock()

	go p.drain(s)
	return sid, s.out
}

func (p *Pipeline) drain(s *subscriber) {
	defer close(s.out)
	for {
		item, ok := s.buf.Read()
		if !ok {
			select {
			case <-s.stop:
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}
		select {
		case s.out <- item:
		case <-s.stop:
			return
		}
	}
}

// Unsubscribe removes a subscriber and releases its buffer.
func (p *Pipeline) Unsubscribe(id string) {
	p.mu.Lock()
	s, ok := p.subs[id]
	if ok {
		delete(p.subs, id)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	close(s.stop)
	_ = s.buf.Close()
}

// SubscriberCount reports the number of live subscribers.
func (p *Pipeline) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}
