// Package socket encapsulates platform-dependent multicast behaviour.
// Two operations: OpenMulticast joins a group on one NIC and
// returns a receive Endpoint; SendUnicast sends a single datagram via
// the NIC selected for the target address.
package socket

import (
	"context"
	"net"

	mayaraerrors "github.com/MarineYachtRadar/mayara-server/errors"
	"github.com/MarineYachtRadar/mayara-server/nic"
)

// Endpoint is a bound, joined multicast receive socket on one NIC.
type Endpoint interface {
	// ReadFrom blocks until a datagram arrives or ctx is done.
	ReadFrom(ctx context.Context, buf []byte) (n int, from net.Addr, err error)
	// Close leaves the multicast group and releases the socket.
	Close() error
	// Interface is the NIC this endpoint joined on.
	Interface() nic.Interface
}

// Policy is implemented once per platform (unix, windows, emulated).
type Policy interface {
	// OpenMulticast binds group:port and joins it on the given NIC.
	OpenMulticast(ctx context.Context, group string, port int, ifc nic.Interface) (Endpoint, error)
	// SendUnicast sends payload to addr, routed via the NIC selected
	// for addr's host.
	SendUnicast(ctx context.Context, addr string, payload []byte, via nic.Interface) error
}

// wrapBind turns a platform bind/join error into a session-local,
// retryable error so listeners rebind with backoff instead of dying.
func wrapBind(err error, group string, port int) error {
	if err == nil {
		return nil
	}
	return mayaraerrors.WrapTransient(err, "SocketPolicy", "OpenMulticast", "bind "+group)
}
