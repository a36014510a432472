//go:build darwin

package socket

// setMulticastAllPlatform is a no-op on darwin: IP_MULTICAST_ALL is a
// Linux-only socket option, and darwin's multicast delivery is already
// scoped to groups a socket joined.
func setMulticastAllPlatform(fd int, enabled bool) error {
	return nil
}
