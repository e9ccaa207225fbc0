package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/sweeney/garage-controller/internal/logic"
)

// DetectTimeout bounds how long Detect waits for a hello reply.
const DetectTimeout = 2 * time.Second

// frame is one JSON line on the bridge link in either direction.
type frame struct {
	Type        string `json:"type,omitempty"`
	Cmd         string `json:"cmd,omitempty"`
	Version     int    `json:"version,omitempty"`
	Door        string `json:"door,omitempty"`
	Light       bool   `json:"light,omitempty"`
	Lock        bool   `json:"lock,omitempty"`
	Obstruction bool   `json:"obstruction,omitempty"`
	Openings    uint32 `json:"openings,omitempty"`
}

var doorNames = map[string]logic.DoorStatus{
	"CLOSED":  logic.StatusClosed,
	"OPEN":    logic.StatusOpen,
	"STOPPED": logic.StatusStopped,
	"CLOSING": logic.StatusClosing,
	"OPENING": logic.StatusOpening,
}

func parseDoor(s string) logic.DoorStatus {
	if st, ok := doorNames[strings.ToUpper(s)]; ok {
		return st
	}
	return logic.StatusUnknown
}

// Bridge speaks newline-delimited JSON with a decoder board over a serial
// link (or any io.ReadWriteCloser).
type Bridge struct {
	rw    io.ReadWriteCloser
	wmu   sync.Mutex
	hello chan int
}

// NewBridge wraps an open link.
func NewBridge(rw io.ReadWriteCloser) *Bridge {
	return &Bridge{rw: rw, hello: make(chan int, 1)}
}

// OpenSerialBridge opens the serial port at path (8N1).
func OpenSerialBridge(path string, baud int) (*Bridge, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open decoder port %s: %w", path, err)
	}
	return NewBridge(port), nil
}

func (b *Bridge) write(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	b.wmu.Lock()
	defer b.wmu.Unlock()
	if _, err := b.rw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", f.Cmd, err)
	}
	return nil
}

// Start reads frames until ctx is done or the link closes.
func (b *Bridge) Start(ctx context.Context, onState func(State)) error {
	go func() {
		<-ctx.Done()
		b.rw.Close()
	}()
	go b.readLoop(ctx, onState)
	return nil
}

func (b *Bridge) readLoop(ctx context.Context, onState func(State)) {
	scan := bufio.NewScanner(b.rw)
	for scan.Scan() {
		var f frame
		if err := json.Unmarshal(scan.Bytes(), &f); err != nil {
			log.Debug().Err(err).Str("line", scan.Text()).Msg("decoder: bad frame")
			continue
		}
		switch f.Type {
		case "hello":
			select {
			case b.hello <- f.Version:
			default:
			}
		case "state":
			onState(State{
				Door:        parseDoor(f.Door),
				Light:       f.Light,
				Lock:        f.Lock,
				Obstruction: f.Obstruction,
				Openings:    f.Openings,
			})
		}
	}
	if err := scan.Err(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("decoder: link read failed")
	}
}

// Detect sends a hello and waits for the reply.
func (b *Bridge) Detect(ctx context.Context) (Version, error) {
	// drop a stale reply from an earlier attempt
	select {
	case <-b.hello:
	default:
	}
	if err := b.write(frame{Cmd: "hello"}); err != nil {
		return VersionNone, err
	}

	ctx, cancel := context.WithTimeout(ctx, DetectTimeout)
	defer cancel()
	select {
	case v := <-b.hello:
		switch Version(v) {
		case VersionToggle, VersionDirect:
			return Version(v), nil
		}
		return VersionNone, fmt.Errorf("unsupported decoder version %d: %w", v, ErrNotDetected)
	case <-ctx.Done():
		return VersionNone, ErrNotDetected
	}
}

// Reset restarts the decoder session.
func (b *Bridge) Reset() error {
	return b.write(frame{Cmd: "reset"})
}

// Send issues a command.
func (b *Bridge) Send(cmd Command) error {
	return b.write(frame{Cmd: cmd.String()})
}

// Close closes the link.
func (b *Bridge) Close() error {
	return b.rw.Close()
}
