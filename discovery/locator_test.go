package discovery

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarineYachtRadar/mayara-server/nic"
	"github.com/MarineYachtRadar/mayara-server/radar"
	"github.com/MarineYachtRadar/mayara-server/socket"
	"github.com/MarineYachtRadar/mayara-server/wire/furuno"
	"github.com/MarineYachtRadar/mayara-server/wire/navico"
)

func testInventory() *nic.Inventory {
	ip, network, _ := net.ParseCIDR("192.168.1.10/24")
	return nic.NewStatic([]nic.Interface{{Name: "eth0", Addr: ip.To4(), Network: network}})
}

func navicoBeacon(serial string, channels int) []byte {
	data := []byte{byte(len(serial))}
	data = append(data, serial...)
	for i := 0; i < channels; i++ {
		rec := make([]byte, 20)
		copy(rec[0:4], []byte{239, 255, 0, byte(2 + i)})
		binary.LittleEndian.PutUint16(rec[4:6], uint16(6678+i))
		copy(rec[6:10], []byte{239, 238, 55, 73})
		binary.LittleEndian.PutUint16(rec[10:12], 7527)
		copy(rec[12:16], []byte{192, 168, 1, 100})
		binary.LittleEndian.PutUint16(rec[16:18], 6680)
		data = append(data, rec...)
	}
	return data
}

func startLocator(t *testing.T, mesh *socket.Mesh) (*Locator, <-chan Discovered, context.CancelFunc) {
	t.Helper()
	loc := New(
		[]Beacon{{Vendor: navico.New(), Group: navico.BeaconGroup, Port: navico.BeaconPort}},
		testInventory(), mesh.Policy(), nil, slog.Default(),
	)
	sub := loc.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loc.Run(ctx) }()
	// give the listener a moment to join the mesh group
	time.Sleep(20 * time.Millisecond)
	return loc, sub, cancel
}

func TestLocator_DiscoversNavicoRadar(t *testing.T) {
	mesh := socket.NewMesh()
	_, sub, cancel := startLocator(t, mesh)
	defer cancel()

	mesh.Inject(navico.BeaconGroup, navico.BeaconPort, navicoBeacon("ABC123", 1), &net.UDPAddr{IP: net.IPv4(192, 168, 1, 100)})

	select {
	case d := <-sub:
		assert.Equal(t, radar.VendorNavico, d.Vendor)
		assert.Equal(t, radar.ID("Navico-ABC123"), d.Candidate.ID)
		assert.Equal(t, "ABC123", d.Candidate.Serial)
		assert.NotEmpty(t, d.EventID)
		assert.Equal(t, radar.Endpoint{Host: "239.255.0.2", Port: 6678}, d.Candidate.SpokeGroup)
		assert.Equal(t, radar.Endpoint{Host: "239.238.55.73", Port: 7527}, d.Candidate.ReportGroup)
		assert.Equal(t, radar.Endpoint{Host: "192.168.1.100", Port: 6680}, d.Candidate.CommandAddress)
		assert.Equal(t, "192.168.1.10", d.Candidate.PrimaryInterfaceIP)
	case <-time.After(2 * time.Second):
		t.Fatal("no Discovered event")
	}
}

// A dual-range beacon yields two candidates sharing a serial with
// distinct channel suffixes.
func TestLocator_DualRangeBeacon(t *testing.T) {
	mesh := socket.NewMesh()
	_, sub, cancel := startLocator(t, mesh)
	defer cancel()

	mesh.Inject(navico.BeaconGroup, navico.BeaconPort, navicoBeacon("ABC123", 2), &net.UDPAddr{IP: net.IPv4(192, 168, 1, 100)})

	var ids []radar.ID
	for len(ids) < 2 {
		select {
		case d := <-sub:
			ids = append(ids, d.Candidate.ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d of 2 Discovered events", len(ids))
		}
	}
	assert.ElementsMatch(t, []radar.ID{"Navico-ABC123-A", "Navico-ABC123-B"}, ids)
}

// A Furuno beacon announces only the TCP discovery port; the command
// address host comes from the beacon's sender.
func TestLocator_FurunoCommandHostFromSender(t *testing.T) {
	mesh := socket.NewMesh()
	loc := New(
		[]Beacon{{Vendor: furuno.New(), Group: furuno.BeaconGroup, Port: furuno.BeaconPort}},
		testInventory(), mesh.Policy(), nil, slog.Default(),
	)
	sub := loc.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loc.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	payload := make([]byte, 10)
	copy(payload, "DRS4D")
	payload[8] = 0x1A // discovery port 10010
	payload[9] = 0x27
	mesh.Inject(furuno.BeaconGroup, furuno.BeaconPort, payload, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 77)})

	select {
	case d := <-sub:
		assert.Equal(t, radar.ID("Furuno-DRS4D"), d.Candidate.ID)
		assert.Equal(t, radar.Endpoint{Host: "192.168.1.77", Port: 10010}, d.Candidate.CommandAddress)
	case <-time.After(2 * time.Second):
		t.Fatal("no Discovered event")
	}
}

func TestLocator_MalformedBeaconCounted(t *testing.T) {
	mesh := socket.NewMesh()
	loc, sub, cancel := startLocator(t, mesh)
	defer cancel()

	mesh.Inject(navico.BeaconGroup, navico.BeaconPort, []byte{0xFF, 0x01}, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 100)})

	require.Eventually(t, func() bool {
		return loc.DroppedCount(radar.VendorNavico) == 1
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case d := <-sub:
		t.Fatalf("malformed beacon produced a Discovered event: %#v", d)
	case <-time.After(100 * time.Millisecond):
	}
}
