//go:build linux || darwin

package socket

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/MarineYachtRadar/mayara-server/nic"
)

// unixPolicy implements Policy for Unix-family hosts: bind to group:port, then IP_ADD_MEMBERSHIP per NIC, with
// IP_MULTICAST_ALL disabled so the kernel only delivers datagrams to
// sockets that actually joined that exact group — required once
// several vendor multicast ports coincide on one host.
type unixPolicy struct{}

// NewPolicy returns the Unix-family SocketPolicy implementation.
func NewPolicy() Policy { return unixPolicy{} }

func (unixPolicy) OpenMulticast(ctx context.Context, group string, port int, ifc nic.Interface) (Endpoint, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if ctrlErr != nil {
					return
				}
				ctrlErr = setMulticastAll(int(fd), false)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}

	conn, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("%s:%d", group, port))
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

	return &unixEndpoint{conn: udpConn, pc: pc, group: groupAddr, ifc: ifc}, nil
}

func (unixPolicy) SendUnicast(ctx context.Context, addr string, payload []byte, via nic.Interface) error {
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

	deadline, ok := ctx.Deadline()
	if ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	_, err = conn.Write(payload)
	return err
}

// setMulticastAll toggles Linux's IP_MULTICAST_ALL; on darwin the
// option does not exist so this is a no-op (the kernel there already
// scopes multicast delivery to joined groups per socket).
func setMulticastAll(fd int, enabled bool) error {
	return setMulticastAllPlatform(fd, enabled)
}

type unixEndpoint struct {
	conn  *net.UDPConn
	pc    *ipv4.PacketConn
	group *net.UDPAddr
	ifc   nic.Interface
}

func (e *unixEndpoint) ReadFrom(ctx context.Context, buf []byte) (int, net.Addr, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = e.conn.SetReadDeadline(deadline)
	}
	// Cancellation without a deadline unblocks the read by expiring it now.
	stop := context.AfterFunc(ctx, func() { _ = e.conn.SetReadDeadline(time.Now()) })
	defer stop()
	return e.conn.ReadFrom(buf)
}

func (e *unixEndpoint) Close() error {
	_ = e.pc.LeaveGroup(&net.Interface{Name: e.ifc.Name}, e.group)
	return e.conn.Close()
}

func (e *unixEndpoint) Interface() nic.Interface { return e.ifc }
