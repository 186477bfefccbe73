// Package gazenet receives gaze samples from the sensor collaborator
// over UDP and replays recorded traces. Sensor bridges send one ASCII
// datagram per sample in either JSON form
// {"x":0.5,"y":0.5,"confidence":1.0,"timestamp":123} or token form
// "x=0.5 y=0.5 conf=1.0 ts=123" (timestamps in unix milliseconds, both
// confidence and timestamp optional). Recorded traces use the compact
// CSV form "x,y,confidence" or "ts_nanos,x,y,confidence".
package gazenet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/NoodleSploder/RayOS-sub005/internal/gaze"
)

// DefaultPort is the UDP port the daemon listens on unless overridden.
const DefaultPort = 9999

// ParseDatagram parses one datagram into a normalized sample. The three
// payload shapes are distinguished by a leading '{' (JSON) or a '='
// anywhere in the payload (tokens); everything else is CSV. Forms
// carrying no timestamp are stamped with nowNanos.
func ParseDatagram(payload []byte, nowNanos int64) (gaze.GazeSample, error) {
	msg := bytes.TrimSpace(payload)
	if len(msg) == 0 {
		return gaze.GazeSample{}, fmt.Errorf("empty datagram")
	}
	if msg[0] == '{' {
		return parseJSONDatagram(msg, nowNanos)
	}
	if bytes.IndexByte(msg, '=') >= 0 {
		return parseTokenDatagram(msg, nowNanos)
	}
	return parseCSVDatagram(msg, nowNanos)
}

type jsonDatagram struct {
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Confidence *float64 `json:"confidence"`
	Timestamp  *int64   `json:"timestamp"` // unix milliseconds
}

func parseJSONDatagram(msg []byte, nowNanos int64) (gaze.GazeSample, error) {
	var d jsonDatagram
	if err := json.Unmarshal(msg, &d); err != nil {
		return gaze.GazeSample{}, fmt.Errorf("bad JSON datagram: %w", err)
	}
	if d.X == nil || d.Y == nil {
		return gaze.GazeSample{}, fmt.Errorf("JSON datagram missing x or y")
	}
	conf := 1.0
	if d.Confidence != nil {
		conf = *d.Confidence
	}
	ts := nowNanos
	if d.Timestamp != nil {
		ts = *d.Timestamp * int64(time.Millisecond)
	}
	return gaze.NewSample(ts, *d.X, *d.Y, conf)
}

func parseTokenDatagram(msg []byte, nowNanos int64) (gaze.GazeSample, error) {
	var (
		x, y, conf *float64
		tsMs       *int64
	)
	for _, tok := range bytes.Fields(msg) {
		key, val, ok := bytes.Cut(tok, []byte("="))
		if !ok {
			return gaze.GazeSample{}, fmt.Errorf("token %q is not key=value", tok)
		}
		switch string(key) {
		case "x":
			v, err := parseFloat(val, "x")
			if err != nil {
				return gaze.GazeSample{}, err
			}
			x = &v
		case "y":
			v, err := parseFloat(val, "y")
			if err != nil {
				return gaze.GazeSample{}, err
			}
			y = &v
		case "conf", "confidence":
			v, err := parseFloat(val, "confidence")
			if err != nil {
				return gaze.GazeSample{}, err
			}
			conf = &v
		case "ts", "timestamp":
			v, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return gaze.GazeSample{}, fmt.Errorf("bad timestamp token %q: %w", tok, err)
			}
			tsMs = &v
		default:
			// Unknown keys are ignored so newer bridges stay compatible.
		}
	}
	if x == nil || y == nil {
		return gaze.GazeSample{}, fmt.Errorf("token datagram missing x or y")
	}
	c := 1.0
	if conf != nil {
		c = *conf
	}
	ts := nowNanos
	if tsMs != nil {
		ts = *tsMs * int64(time.Millisecond)
	}
	return gaze.NewSample(ts, *x, *y, c)
}

func parseCSVDatagram(msg []byte, nowNanos int64) (gaze.GazeSample, error) {
	fields := bytes.Split(msg, []byte(","))
	switch len(fields) {
	case 3:
		x, y, conf, err := parseXYC(fields[0], fields[1], fields[2])
		if err != nil {
			return gaze.GazeSample{}, err
		}
		return gaze.NewSample(nowNanos, x, y, conf)
	case 4:
		ts, err := strconv.ParseInt(string(bytes.TrimSpace(fields[0])), 10, 64)
		if err != nil {
			return gaze.GazeSample{}, fmt.Errorf("bad timestamp field %q: %w", fields[0], err)
		}
		x, y, conf, err := parseXYC(fields[1], fields[2], fields[3])
		if err != nil {
			return gaze.GazeSample{}, err
		}
		return gaze.NewSample(ts, x, y, conf)
	default:
		return gaze.GazeSample{}, fmt.Errorf("datagram has %d fields, want 3 or 4", len(fields))
	}
}

func parseXYC(xb, yb, cb []byte) (x, y, conf float64, err error) {
	if x, err = parseFloat(xb, "x"); err != nil {
		return
	}
	if y, err = parseFloat(yb, "y"); err != nil {
		return
	}
	conf, err = parseFloat(cb, "confidence")
	return
}

func parseFloat(b []byte, name string) (float64, error) {
	v, err := strconv.ParseFloat(string(bytes.TrimSpace(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s field %q: %w", name, b, err)
	}
	return v, nil
}
