package gazenet

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/NoodleSploder/RayOS-sub005/internal/monitoring"
)

// ReplayPCAP feeds gaze datagrams from a capture file into the sink.
// Only UDP packets addressed to udpPort are considered; capture
// timestamps stand in for arrival time so dwell arithmetic replays
// faithfully. When realtime is true, inter-packet gaps are reproduced.
// Returns the number of samples delivered.
func ReplayPCAP(ctx context.Context, path string, udpPort int, sink SampleSink, realtime bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pcap %s: %w", path, err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("read pcap header: %w", err)
	}

	delivered := 0
	malformed := 0
	var prevCapture time.Time
	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		data, ci, err := r.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return delivered, fmt.Errorf("read pcap packet: %w", err)
		}

		packet := gopacket.NewPacket(data, r.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || int(udp.DstPort) != udpPort || len(udp.Payload) == 0 {
			continue
		}

		if realtime && !prevCapture.IsZero() {
			gap := ci.Timestamp.Sub(prevCapture)
			if gap > 0 {
				select {
				case <-time.After(gap):
				case <-ctx.Done():
					return delivered, ctx.Err()
				}
			}
		}
		prevCapture = ci.Timestamp

		sample, perr := ParseDatagram(udp.Payload, ci.Timestamp.UnixNano())
		if perr != nil {
			malformed++
			continue
		}
		sink.Offer(sample)
		delivered++
	}

	monitoring.Logf("gazenet: replayed %d samples from %s (%d malformed)", delivered, path, malformed)
	return delivered, nil
}
