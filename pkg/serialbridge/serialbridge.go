// Package serialbridge drives the pins of a gpio expander attached to a serial port
//
// The expander speaks a line protocol, one request and one reply per line:
//
//	W 4=1 6=0        drive pins       -> OK
//	R 17 27          sample pins      -> 17=1 27=0
//	B pullup 17 27   set pull state   -> OK
//
// A failed request is answered with "ERR <reason>".
//
// Every request line starts with a tag "#<n>", n counts the requests of the bridge,
// and the expander repeats the tag in front of its reply:
//
//	#12 R 17 27  -> #12 17=1 27=0
//
// Reply lines with another tag belong to a request that timed out and are dropped.
package serialbridge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
	"github.com/womat/debug"

	"portmux/pkg/pin"
	"portmux/pkg/port"
	"portmux/pkg/raspberry"
)

// ErrProtocol is returned for a malformed reply of the expander.
var ErrProtocol = errors.New("serial bridge protocol error")

// Config defines the serial connection.
type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// Bridge implements raspberry.GPIO for a serial gpio expander.
type Bridge struct {
	// mu serializes request/reply exchanges
	mu   sync.Mutex
	port io.ReadWriteCloser
	rx   *bufio.Reader
	// seq is the tag of the last request
	seq uint64
}

// Open opens the serial port of the expander.
func Open(cfg Config) (*Bridge, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial device: %w", raspberry.ErrInvalidParam)
	}

	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	debug.InfoLog.Printf("serial bridge %s opened (%d baud)", cfg.Device, cfg.Baud)
	return New(p), nil
}

// New creates a bridge on an open connection.
func New(rw io.ReadWriteCloser) *Bridge {
	return &Bridge{port: rw, rx: bufio.NewReader(rw)}
}

// exchange sends one tagged request line and returns the reply with the same tag, without the tag.
func (b *Bridge) exchange(request string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	tag := "#" + strconv.FormatUint(b.seq, 10)

	debug.TraceLog.Printf("serial bridge tx: %s %s", tag, request)
	if _, err := io.WriteString(b.port, tag+" "+request+"\n"); err != nil {
		return "", err
	}

	for {
		line, err := b.rx.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)

		t, reply, _ := strings.Cut(line, " ")
		if t != tag {
			debug.DebugLog.Printf("serial bridge: dropped reply %q, waiting for %s", line, tag)
			continue
		}
		debug.TraceLog.Printf("serial bridge rx: %s %s", tag, reply)

		if strings.HasPrefix(reply, "ERR") {
			return "", fmt.Errorf("expander: %s", strings.TrimSpace(strings.TrimPrefix(reply, "ERR")))
		}
		return reply, nil
	}
}

func expectOK(reply string, err error) error {
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("%w: unexpected reply %q", ErrProtocol, reply)
	}
	return nil
}

// Write drives the levels of f.
func (b *Bridge) Write(pins []pin.ID, f port.Frame) error {
	if len(pins) != len(f) {
		return &port.LengthMismatchError{Want: len(pins), Got: len(f)}
	}

	req := make([]string, 0, len(pins)+1)
	req = append(req, "W")
	for i, id := range pins {
		v := 0
		if f[i] == port.High {
			v = 1
		}
		req = append(req, fmt.Sprintf("%d=%d", id.Int(), v))
	}
	return expectOK(b.exchange(strings.Join(req, " ")))
}

// Read samples pins.
func (b *Bridge) Read(pins []pin.ID) (port.Frame, error) {
	req := make([]string, 0, len(pins)+1)
	req = append(req, "R")
	for _, id := range pins {
		req = append(req, strconv.Itoa(id.Int()))
	}

	reply, err := b.exchange(strings.Join(req, " "))
	if err != nil {
		return nil, err
	}

	values := map[pin.ID]port.StateType{}
	for _, field := range strings.Fields(reply) {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("%w: field %q", ErrProtocol, field)
		}
		id, err := pin.Parse(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		s, err := port.ParseState(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		values[id] = s
	}

	f := port.NewFrame(len(pins))
	for i, id := range pins {
		s, ok := values[id]
		if !ok {
			return nil, fmt.Errorf("%w: no value for %v", ErrProtocol, id)
		}
		f[i] = s
	}
	return f, nil
}

// SetBias sets the pull state of input pins.
func (b *Bridge) SetBias(pins []pin.ID, bias raspberry.Bias) error {
	req := []string{"B", bias.String()}
	for _, id := range pins {
		req = append(req, strconv.Itoa(id.Int()))
	}
	return expectOK(b.exchange(strings.Join(req, " ")))
}

// Close closes the serial port.
func (b *Bridge) Close() error {
	return b.port.Close()
}

var _ raspberry.GPIO = (*Bridge)(nil)
