package gazenet

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/NoodleSploder/RayOS-sub005/internal/gaze"
	"github.com/NoodleSploder/RayOS-sub005/internal/monitoring"
)

// SampleSink receives parsed samples; the pipeline's Offer satisfies it.
type SampleSink interface {
	Offer(s gaze.GazeSample)
}

// UDPSocket abstracts the listening socket so tests can inject one.
type UDPSocket interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// UDPSocketFactory creates the listening socket for an address.
type UDPSocketFactory func(address string) (UDPSocket, error)

func defaultSocketFactory(address string) (UDPSocket, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", addr)
}

// ListenerStats counts datagram traffic.
type ListenerStats struct {
	Packets   atomic.Uint64
	Bytes     atomic.Uint64
	Malformed atomic.Uint64
}

// ListenerConfig contains configuration options for the UDP listener.
type ListenerConfig struct {
	Address       string           // e.g. ":9999"
	ReadBuffer    int              // datagram buffer size (default 512)
	LogInterval   time.Duration    // traffic log cadence (default 60s)
	Sink          SampleSink       // destination for parsed samples
	SocketFactory UDPSocketFactory // optional, for tests
}

// UDPListener receives gaze sample datagrams and feeds the sink. It is
// transport only: confidence filtering and dwell logic live downstream.
type UDPListener struct {
	cfg     ListenerConfig
	stats   ListenerStats
	factory UDPSocketFactory
}

// NewUDPListener creates a listener with the provided configuration.
func NewUDPListener(cfg ListenerConfig) *UDPListener {
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = 512
	}
	if cfg.LogInterval <= 0 {
		cfg.LogInterval = 60 * time.Second
	}
	factory := cfg.SocketFactory
	if factory == nil {
		factory = defaultSocketFactory
	}
	return &UDPListener{cfg: cfg, factory: factory}
}

// Stats exposes the listener's traffic counters.
func (l *UDPListener) Stats() *ListenerStats { return &l.stats }

// Run listens until ctx is cancelled. Read deadlines keep the loop
// responsive to cancellation; idle periods are the pipeline watchdog's
// concern, not ours.
func (l *UDPListener) Run(ctx context.Context) error {
	sock, err := l.factory(l.cfg.Address)
	if err != nil {
		return err
	}
	defer sock.Close()
	monitoring.Logf("gazenet: listening on %s", l.cfg.Address)

	buf := make([]byte, l.cfg.ReadBuffer)
	lastLog := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sock.SetReadDeadline(time.Now().Add(250 * time.Millisecond)); err != nil {
			return err
		}
		n, _, err := sock.ReadFrom(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		l.stats.Packets.Add(1)
		l.stats.Bytes.Add(uint64(n))

		sample, perr := ParseDatagram(buf[:n], time.Now().UnixNano())
		if perr != nil {
			l.stats.Malformed.Add(1)
			monitoring.Debugf("gazenet: malformed datagram: %v", perr)
		} else {
			l.cfg.Sink.Offer(sample)
		}

		if time.Since(lastLog) >= l.cfg.LogInterval {
			monitoring.Logf("gazenet: %d packets, %d bytes, %d malformed",
				l.stats.Packets.Load(), l.stats.Bytes.Load(), l.stats.Malformed.Load())
			lastLog = time.Now()
		}
	}
}
