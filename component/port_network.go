package component

import "fmt"

// MulticastEndpoint is a multicast group/port a listener joins, potentially
// on several NICs at once. Group membership on different NICs is not
// exclusive with itself (every NIC joins the same group), but two distinct
// components binding the same group+port is still a conflict.
type MulticastEndpoint struct {
	Group string `json:"group"` // e.g. "239.255.0.2"
	Port  int    `json:"port"`
}

// ResourceID returns a unique identifier for the multicast group/port pair.
func (m MulticastEndpoint) ResourceID() string {
	return fmt.Sprintf("multicast:%s:%d", m.Group, m.Port)
}

// IsExclusive reports that only one listener may bind a given group/port.
func (m MulticastEndpoint) IsExclusive() bool { return true }

// Type returns the endpoint kind.
func (m MulticastEndpoint) Type() string { return "multicast" }

// UnicastEndpoint is a host:port used for a per-radar command channel
// (Navico UDP command socket) or a TCP dial target (Furuno).
type UnicastEndpoint struct {
	Protocol string `json:"protocol"` // "udp" or "tcp"
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

// ResourceID returns a unique identifier for the unicast endpoint.
func (u UnicastEndpoint) ResourceID() string {
	return fmt.Sprintf("%s:%s:%d", u.Protocol, u.Host, u.Port)
}

// IsExclusive reports that a command channel is owned by exactly one session.
func (u UnicastEndpoint) IsExclusive() bool { return true }

// Type returns the endpoint kind.
func (u UnicastEndpoint) Type() string { return u.Protocol }
