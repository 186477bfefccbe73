// gaze-replay feeds a recorded gaze trace into a running daemon by
// re-sending each sample as a UDP datagram. It accepts either a PCAP
// capture of the original sensor traffic or a plain CSV trace, and can
// reproduce the recorded inter-sample timing or blast at full speed.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NoodleSploder/RayOS-sub005/internal/gaze"
	"github.com/NoodleSploder/RayOS-sub005/internal/gaze/gazenet"
)

var (
	pcapFile = flag.String("pcap", "", "PCAP capture of gaze sensor traffic")
	csvFile  = flag.String("csv", "", "CSV gaze trace (x,y,confidence or ts_nanos,x,y,confidence per line)")
	target   = flag.String("target", fmt.Sprintf("127.0.0.1:%d", gazenet.DefaultPort), "daemon UDP address")
	udpPort  = flag.Int("udp-port", gazenet.DefaultPort, "UDP destination port filter for PCAP packets")
	realtime = flag.Bool("realtime", true, "reproduce recorded inter-sample timing")
)

// udpSink forwards each sample to the daemon in the extended datagram
// form, preserving the recorded timestamps.
type udpSink struct {
	conn net.Conn
	sent int
}

func (u *udpSink) Offer(s gaze.GazeSample) {
	payload := fmt.Sprintf("%d,%g,%g,%g", s.TimestampNanos, s.X, s.Y, s.Confidence)
	if _, err := u.conn.Write([]byte(payload)); err != nil {
		log.Printf("send failed: %v", err)
		return
	}
	u.sent++
}

func replayCSV(ctx context.Context, path string, sink *udpSink, realtime bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	delivered := 0
	var prevNanos int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		sample, perr := gazenet.ParseDatagram(line, time.Now().UnixNano())
		if perr != nil {
			log.Printf("skipping malformed line: %v", perr)
			continue
		}
		if realtime && prevNanos != 0 && sample.TimestampNanos > prevNanos {
			gap := time.Duration(sample.TimestampNanos - prevNanos)
			select {
			case <-ctx.Done():
				return delivered, ctx.Err()
			case <-time.After(gap):
			}
		}
		prevNanos = sample.TimestampNanos
		sink.Offer(sample)
		delivered++
	}
	return delivered, scanner.Err()
}

func main() {
	flag.Parse()

	if (*pcapFile == "") == (*csvFile == "") {
		log.Fatal("exactly one of -pcap or -csv is required")
	}

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", *target, err)
	}
	defer conn.Close()
	sink := &udpSink{conn: conn}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	var delivered int
	if *pcapFile != "" {
		delivered, err = gazenet.ReplayPCAP(ctx, *pcapFile, *udpPort, sink, *realtime)
	} else {
		delivered, err = replayCSV(ctx, *csvFile, sink, *realtime)
	}
	if err != nil && ctx.Err() == nil {
		log.Fatalf("Replay failed after %d samples: %v", delivered, err)
	}

	log.Printf("Replayed %d samples (%d sent) to %s in %v",
		delivered, sink.sent, *target, time.Since(start).Round(time.Millisecond))
}
