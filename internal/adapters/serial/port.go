// Package serial opens real serial ports for the poller.
package serial

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// Opener implements poller.PortOpener on top of go.bug.st/serial.
type Opener struct{}

// NewOpener creates an opener for physical ports.
func NewOpener() *Opener {
	return &Opener{}
}

// Open opens port at 8N1 with the given baudrate. Reads return (0, nil)
// once timeout elapses without data.
func (o *Opener) Open(port string, baudrate int, timeout time.Duration) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", port, err)
	}

	if timeout > 0 {
		if err := p.SetReadTimeout(timeout); err != nil {
			p.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", port, err)
		}
	}

	log.Debug().Str("port", port).Int("baudrate", baudrate).Dur("timeout", timeout).Msg("serial port opened")
	return p, nil
}

// ListPorts returns the serial ports present on this host, sorted.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
