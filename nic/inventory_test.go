package nic

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mayaraerrors "github.com/MarineYachtRadar/mayara-server/errors"
)

func iface(name, cidr string) Interface {
	ip, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return Interface{Name: name, Addr: ip.To4(), Network: network}
}

func TestSelectFor_SubnetMatch(t *testing.T) {
	inv := NewStatic([]Interface{
		iface("wlan0", "10.0.0.5/24"),
		iface("eth0", "192.168.1.10/24"),
	})

	ifc, err := inv.SelectFor(net.ParseIP("192.168.1.100"))
	require.NoError(t, err)
	assert.Equal(t, "eth0", ifc.Name)
}

func TestSelectFor_LinkLocalPrefersVendorSegment(t *testing.T) {
	inv := NewStatic([]Interface{
		iface("wlan0", "10.0.0.5/24"),
		iface("eth1", "172.31.0.2/16"),
	})

	ifc, err := inv.SelectFor(net.ParseIP("169.254.10.20"))
	require.NoError(t, err)
	assert.Equal(t, "eth1", ifc.Name)
}

func TestSelectFor_LinkLocalFallsBackToWiredName(t *testing.T) {
	inv := NewStatic([]Interface{
		iface("wlan0", "10.0.0.5/24"),
		iface("eth0", "192.168.1.10/24"),
	})

	ifc, err := inv.SelectFor(net.ParseIP("169.254.10.20"))
	require.NoError(t, err)
	assert.Equal(t, "eth0", ifc.Name)
}

func TestSelectFor_DefaultsToFirst(t *testing.T) {
	inv := NewStatic([]Interface{
		iface("wlan0", "10.0.0.5/24"),
		iface("eth0", "192.168.1.10/24"),
	})

	ifc, err := inv.SelectFor(net.ParseIP("8.8.8.8"))
	require.NoError(t, err)
	assert.Equal(t, "wlan0", ifc.Name)
}

func TestSelectFor_EmptyInventory(t *testing.T) {
	inv := NewStatic(nil)

	_, err := inv.SelectFor(net.ParseIP("192.168.1.100"))
	require.Error(t, err)
	assert.Equal(t, mayaraerrors.KindUnavailable, mayaraerrors.KindOf(err))
}

func TestList_CachesWithinInterval(t *testing.T) {
	calls := 0
	inv := newWithLister(func() ([]Interface, error) {
		calls++
		return []Interface{iface("eth0", "192.168.1.10/24")}, nil
	}, time.Hour)

	_, err := inv.List()
	require.NoError(t, err)
	_, err = inv.List()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestList_RefreshBypassesCache(t *testing.T) {
	calls := 0
	inv := newWithLister(func() ([]Interface, error) {
		calls++
		return []Interface{iface("eth0", "192.168.1.10/24")}, nil
	}, time.Hour)

	_, err := inv.List()
	require.NoError(t, err)
	require.NoError(t, inv.Refresh(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestIsWiredName(t *testing.T) {
	tests := []struct {
		name  string
		wired bool
	}{
		{"eth0", true},
		{"eno1", true},
		{"enp3s0", true},
		{"en0", true},
		{"wlan0", false},
		{"lo", false},
		{"utun3", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.wired, isWiredName(test.name))
		})
	}
}
