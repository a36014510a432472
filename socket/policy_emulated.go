package socket

import (
	"context"
	"net"
	"sync"

	mayaraerrors "github.com/MarineYachtRadar/mayara-server/errors"
	"github.com/MarineYachtRadar/mayara-server/nic"
)

// Mesh is a virtual in-process multicast fabric used by tests: sending
// to a group/port delivers to every Endpoint currently joined to it,
// without touching a real socket.
type Mesh struct {
	mu       sync.Mutex
	groups   map[string][]*meshEndpoint
	unicasts map[string]chan Datagram
}

// Datagram is one frame carried over the mesh, with exported fields so
// tests outside this package can assert on captured command traffic.
type Datagram struct {
	Payload []byte
	From    net.Addr
}

// NewMesh constructs an empty virtual mesh.
func NewMesh() *Mesh {
	return &Mesh{groups: make(map[string][]*meshEndpoint), unicasts: make(map[string]chan Datagram)}
}

func meshKey(group string, port int) string {
	return group + ":" + itoa(port)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Policy returns a Policy backed by this mesh.
func (m *Mesh) Policy() Policy { return &meshPolicy{mesh: m} }

type meshPolicy struct{ mesh *Mesh }

func (p *meshPolicy) OpenMulticast(ctx context.Context, group string, port int, ifc nic.Interface) (Endpoint, error) {
	ep := &meshEndpoint{mesh: p.mesh, group: group, port: port, ifc: ifc, ch: make(chan Datagram, 64)}
	p.mesh.mu.Lock()
	key := meshKey(group, port)
	p.mesh.groups[key] = append(p.mesh.groups[key], ep)
	p.mesh.mu.Unlock()
	return ep, nil
}

func (p *meshPolicy) SendUnicast(ctx context.Context, addr string, payload []byte, via nic.Interface) error {
	p.mesh.mu.Lock()
	ch, ok := p.mesh.unicasts[addr]
	p.mesh.mu.Unlock()
	if !ok {
		return mayaraerrors.New(mayaraerrors.KindUnavailable, "no listener for "+addr)
	}
	select {
	case ch <- Datagram{Payload: append([]byte{}, payload...), From: &net.UDPAddr{IP: via.Addr}}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterUnicast lets a test-side command-channel listener receive
// SendUnicast traffic addressed to addr.
func (m *Mesh) RegisterUnicast(addr string) <-chan Datagram {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Datagram, 64)
	m.unicasts[addr] = ch
	return ch
}

// Inject delivers payload as if it arrived on group:port, from every
// endpoint currently joined regardless of which NIC they bound.
func (m *Mesh) Inject(group string, port int, payload []byte, from net.Addr) {
	m.mu.Lock()
	eps := append([]*meshEndpoint{}, m.groups[meshKey(group, port)]...)
	m.mu.Unlock()
	for _, ep := range eps {
		select {
		case ep.ch <- Datagram{Payload: append([]byte{}, payload...), From: from}:
		default:
		}
	}
}

type meshEndpoint struct {
	mesh  *Mesh
	group string
	port  int
	ifc   nic.Interface
	ch    chan Datagram
}

func (e *meshEndpoint) ReadFrom(ctx context.Context, buf []byte) (int, net.Addr, error) {
	select {
	case dg := <-e.ch:
		n := copy(buf, dg.Payload)
		return n, dg.From, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (e *meshEndpoint) Close() error {
	e.mesh.mu.Lock()
	defer e.mesh.mu.Unlock()
	key := meshKey(e.group, e.port)
	eps := e.mesh.groups[key]
	for i, ep := range eps {
		if ep == e {
			e.mesh.groups[key] = append(eps[:i], eps[i+1:]...)
			break
		}
	}
	return nil
}

func (e *meshEndpoint) Interface() nic.Interface { return e.ifc }
