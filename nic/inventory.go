// Package nic enumerates the host's non-loopback IPv4 network interfaces
// and picks the right one to reach a given radar address. It is
// pure: it never opens a socket.
package nic

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	mayaraerrors "github.com/MarineYachtRadar/mayara-server/errors"
)

// Interface describes one usable host NIC.
type Interface struct {
	Name    string
	Addr    net.IP
	Network *net.IPNet
}

// lister is the seam used by tests to fake net.Interfaces()/Addrs().
type lister func() ([]Interface, error)

// Inventory lazily refreshes the host's interface list on a fixed
// interval and answers NIC selection queries against the cached list.
type Inventory struct {
	mu       sync.RWMutex
	list     func() ([]Interface, error)
	interval time.Duration
	cached   []Interface
	lastLoad time.Time
}

// New builds an Inventory backed by the real OS interface table.
func New(refreshInterval time.Duration) *Inventory {
	return newWithLister(systemInterfaces, refreshInterval)
}

func newWithLister(l lister, refreshInterval time.Duration) *Inventory {
	return &Inventory{list: l, interval: refreshInterval}
}

// NewStatic builds an Inventory over a fixed interface list; used with
// the emulated socket policy where no OS interface table exists.
func NewStatic(ifaces []Interface) *Inventory {
	return newWithLister(func() ([]Interface, error) { return ifaces, nil }, time.Hour)
}

// List returns the current non-loopback IPv4 interfaces, refreshing the
// cache if it is older than the configured interval.
func (inv *Inventory) List() ([]Interface, error) {
	inv.mu.RLock()
	fresh := time.Since(inv.lastLoad) < inv.interval && inv.cached != nil
	cached := inv.cached
	inv.mu.RUnlock()
	if fresh {
		return cached, nil
	}

	fetched, err := inv.list()
	if err != nil {
		return nil, mayaraerrors.WrapTransient(err, "NicInventory", "List", "enumerate interfaces")
	}

	inv.mu.Lock()
	inv.cached = fetched
	inv.lastLoad = time.Now()
	inv.mu.Unlock()
	return fetched, nil
}

// Refresh forces an immediate reload, ignoring the cache interval.
func (inv *Inventory) Refresh(ctx context.Context) error {
	fetched, err := inv.list()
	if err != nil {
		return mayaraerrors.WrapTransient(err, "NicInventory", "Refresh", "enumerate interfaces")
	}
	inv.mu.Lock()
	inv.cached = fetched
	inv.lastLoad = time.Now()
	inv.mu.Unlock()
	return nil
}

// wiredHints matches interface names conventionally used for wired
// ethernet, used by the priority-2 tiebreak in SelectFor.
var wiredHints = []string{"eth", "en0", "en1", "eno", "ens", "enp"}

// linkLocalNet is the 169.254/16 block radars on an unconfigured link
// fall back to.
var linkLocalNet = mustParseCIDR("169.254.0.0/16")

// vendorSegmentNet is the 172.31/16 block marine installations commonly
// dedicate to radar NICs.
var vendorSegmentNet = mustParseCIDR("172.31.0.0/16")

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// SelectFor returns the preferred NIC for reaching targetIP, applying
// the subnet / link-local / first-NIC priority rule. It fails with
// KindUnavailable if the inventory is empty (no route to the radar).
func (inv *Inventory) SelectFor(targetIP net.IP) (Interface, error) {
	ifaces, err := inv.List()
	if err != nil {
		return Interface{}, err
	}
	if len(ifaces) == 0 {
		return Interface{}, mayaraerrors.New(mayaraerrors.KindUnavailable, "no route to radar: interface inventory is empty")
	}

	for _, ifc := range ifaces {
		if ifc.Network != nil && ifc.Network.Contains(targetIP) {
			return ifc, nil
		}
	}

	if linkLocalNet.Contains(targetIP) {
		for _, ifc := range ifaces {
			if ifc.Network != nil && vendorSegmentNet.Contains(ifc.Addr) {
				return ifc, nil
			}
		}
		for _, ifc := range ifaces {
			if isWiredName(ifc.Name) {
				return ifc, nil
			}
		}
	}

	return ifaces[0], nil
}

func isWiredName(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range wiredHints {
		if strings.HasPrefix(lower, hint) {
			return true
		}
	}
	return false
}

// systemInterfaces enumerates the host's real non-loopback IPv4 NICs.
func systemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []Interface
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagLoopback != 0 || ifc.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			out = append(out, Interface{Name: ifc.Name, Addr: ip4, Network: ipnet})
		}
	}
	return out, nil
}
