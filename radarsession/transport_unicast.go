package radarsession

import (
	"context"
	"fmt"
	"net"
	"strings"

	"golang.org/x/time/rate"

	"github.com/MarineYachtRadar/mayara-server/nic"
	"github.com/MarineYachtRadar/mayara-server/socket"
)

// commandRate bounds outbound command datagrams per radar so a
// misbehaving control client cannot flood a radar's command channel.
// Radars apply settings at antenna-rotation cadence; 20/s is far above
// anything a human or autopilot issues.
var commandRate = rate.Limit(20)

const commandBurst = 5

// resolveHost extracts the IP from a "host:port" address for NIC
// selection; it never performs DNS lookups since every address here
// is already a literal IP.
func resolveHost(addr string) net.IP {
	host, _, ok := strings.Cut(addr, ":")
	if !ok {
		return net.ParseIP(addr)
	}
	return net.ParseIP(host)
}

// UnicastTransport sends commands via socket.Policy.SendUnicast. It
// backs Navico (dedicated unicast command port) and, by sending to the
// group address directly, Raymarine/Garmin's multicast command groups —
// a single outbound datagram to a multicast address is delivered the
// same way a unicast one is.
type UnicastTransport struct {
	policy  socket.Policy
	nics    *nic.Inventory
	addr    string
	limiter *rate.Limiter
}

// NewUnicastTransport builds a transport that sends to addr, selecting
// the outbound NIC via nics.SelectFor each send.
func NewUnicastTransport(policy socket.Policy, nics *nic.Inventory, host string, port int) *UnicastTransport {
	return &UnicastTransport{
		policy:  policy,
		nics:    nics,
		addr:    fmt.Sprintf("%s:%d", host, port),
		limiter: rate.NewLimiter(commandRate, commandBurst),
	}
}

// Connect is a no-op: UDP has no handshake.
func (t *UnicastTransport) Connect(ctx context.Context) error { return nil }

func (t *UnicastTransport) Send(ctx context.Context, payload []byte) error {
	if payload == nil {
		return nil // push vendors have no poll request to send
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	ifc, err := t.nics.SelectFor(resolveHost(t.addr))
	if err != nil {
		return err
	}
	return t.policy.SendUnicast(ctx, t.addr, payload, ifc)
}

// Close is a no-op: the transport holds no persistent socket.
func (t *UnicastTransport) Close() error { return nil }
