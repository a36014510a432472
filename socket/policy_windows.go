//go:build windows

package socket

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/MarineYachtRadar/mayara-server/nic"
)

// windowsPolicy implements Policy for Windows: bind to
// 0.0.0.0:port, then join per NIC after bind (Windows sockets cannot
// bind directly to a multicast address the way Unix ones can).
type windowsPolicy struct{}

// NewPolicy returns the Windows SocketPolicy implementation.
func NewPolicy() Policy { return windowsPolicy{} }

func (windowsPolicy) OpenMulticast(ctx context.Context, group string, port int, ifc nic.Interface) (Endpoint, error) {
	conn, err := net.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return nil, wrapBind(err, group, port)
	}
	udpConn := conn.(*net.UDPConn)

	pc := ipv4.NewPacketConn(udpConn)
	groupAddr := &net.UDPAddr{IP: net.ParseIP(group)}
	if err := pc.JoinGroup(&net.Interface{Name: ifc.Name}, groupAddr); err != nil {
		_ = udpConn.Close()
		return nil, wrapBind(err, group, port)
	}

	return &windowsEndpoint{conn: udpConn, pc: pc, group: groupAddr, ifc: ifc}, nil
}

func (windowsPolicy) SendUnicast(ctx context.Context, addr string, payload []byte, via nic.Interface) error {
	laddr := &net.UDPAddr{IP: via.Addr}
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return wrapBind(err, addr, 0)
	}
	conn, err := net.DialUDP("udp4", laddr, raddr)
	if err != nil {
		return wrapBind(err, addr, 0)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	_, err = conn.Write(payload)
	return err
}

type windowsEndpoint struct {
	conn  *net.UDPConn
	pc    *ipv4.PacketConn
	group *net.UDPAddr
	ifc   nic.Interface
}

func (e *windowsEndpoint) ReadFrom(ctx context.Context, buf []byte) (int, net.Addr, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = e.conn.SetReadDeadline(deadline)
	}
	// Cancellation without a deadline unblocks the read by expiring it now.
	stop := context.AfterFunc(ctx, func() { _ = e.conn.SetReadDeadline(time.Now()) })
	defer stop()
	return e.conn.ReadFrom(buf)
}

func (e *windowsEndpoint) Close() error {
	_ = e.pc.LeaveGroup(&net.Interface{Name: e.ifc.Name}, e.group)
	return e.conn.Close()
}

func (e *windowsEndpoint) Interface() nic.Interface { return e.ifc }
