//go:build linux

package socket

import "golang.org/x/sys/unix"

// setMulticastAllPlatform disables IP_MULTICAST_ALL so the kernel only
// delivers datagrams for groups this socket explicitly joined.
func setMulticastAllPlatform(fd int, enabled bool) error {
	val := 0
	if enabled {
		val = 1
	}
	return unix.SetsockoptInt(fd, unix.SOL_IP, unix.IP_MULTICAST_ALL, val)
}
