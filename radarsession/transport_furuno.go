package radarsession

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	mayaraerrors "github.com/MarineYachtRadar/mayara-server/errors"
	"github.com/MarineYachtRadar/mayara-server/wire/furuno"
)

// handshakeTimeout bounds each step of the discovery handshake: the
// dial, the login exchange, and the command-channel dial.
const handshakeTimeout = 5 * time.Second

// pollRequests are the command ids polled every tick: the radar does
// not push state over TCP, so the poll responses are the canonical
// state source.
var pollRequests = []string{"63", "64", "65", "69"}

// FurunoTransport owns the Furuno command channel. Connect first runs
// the discovery conversation — dial the beacon-announced TCP discovery
// port, send the 56-byte login, read the 12-byte response whose bytes
// 8-9 resolve the command port — then dials the command port for the
// ASCII command/report session.
type FurunoTransport struct {
	host          string
	discoveryPort int
	limiter       *rate.Limiter

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader

	onReport func([]byte)
}

// NewFurunoTransport builds a transport that resolves and dials the
// command channel via host's discovery port on Connect. onReport is
// called for every $N## line read off the wire, including the
// keepalive's own response, so RadarSession can reconcile state from
// poll responses as they are the canonical state source.
func NewFurunoTransport(host string, discoveryPort int, onReport func([]byte)) *FurunoTransport {
	return &FurunoTransport{
		host:          host,
		discoveryPort: discoveryPort,
		limiter:       rate.NewLimiter(commandRate, commandBurst),
		onReport:      onReport,
	}
}

func (t *FurunoTransport) Connect(ctx context.Context) error {
	commandPort, err := t.loginExchange(ctx)
	if err != nil {
		return err
	}

	dialer := net.Dialer{Timeout: handshakeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(t.host, strconv.Itoa(commandPort)))
	if err != nil {
		return mayaraerrors.WrapTransient(err, "FurunoTransport", "Connect", "dial command channel")
	}

	t.mu.Lock()
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.mu.Unlock()

	go t.readLoop()
	return nil
}

// loginExchange dials the discovery port, sends the binary login and
// reads back the response that carries the command-port offset.
func (t *FurunoTransport) loginExchange(ctx context.Context) (int, error) {
	dialer := net.Dialer{Timeout: handshakeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(t.host, strconv.Itoa(t.discoveryPort)))
	if err != nil {
		return 0, mayaraerrors.WrapTransient(err, "FurunoTransport", "Connect", "dial discovery port")
	}
	defer conn.Close()

	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write(furuno.EncodeLogin()); err != nil {
		return 0, mayaraerrors.WrapTransient(err, "FurunoTransport", "Connect", "send login")
	}

	resp := make([]byte, furuno.LoginResponseLen)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return 0, mayaraerrors.WrapTransient(err, "FurunoTransport", "Connect", "read login response")
	}

	commandPort, err := furuno.ParseLoginResponse(resp)
	if err != nil {
		return 0, mayaraerrors.WrapTransient(err, "FurunoTransport", "Connect", "parse login response")
	}
	return commandPort, nil
}

func (t *FurunoTransport) readLoop() {
	for {
		t.mu.Lock()
		reader := t.reader
		t.mu.Unlock()
		if reader == nil {
			return
		}
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		if t.onReport != nil {
			t.onReport(line)
		}
	}
}

// Send transmits a pre-encoded command frame. A nil payload sends the
// poll batch: the $SFF keepalive followed by a $R## request per polled
// control.
func (t *FurunoTransport) Send(ctx context.Context, payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return mayaraerrors.ErrNoConnection
	}

	frame := payload
	if frame == nil {
		frame = furuno.EncodeKeepalive()
		for _, id := range pollRequests {
			frame = append(frame, furuno.EncodeRequest(id)...)
		}
	} else if err := t.limiter.Wait(ctx); err != nil {
		// poll batches bypass the limiter; only caller-issued commands
		// are rate-shaped
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	_, err := conn.Write(frame)
	return err
}

func (t *FurunoTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
