package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
	"time"

	"github.com/quentinrf/geiger-monitor/internal/domain"
)

// maxLineLength caps a single device line; longer output is cut.
const maxLineLength = 4096

// FrameSource produces one frame per call.
type FrameSource interface {
	Frame(ctx context.Context) (domain.Frame, error)
}

// PortOpener opens a serial connection.
// This is a PORT - adapters (go.bug.st/serial, mock) will implement it
type PortOpener interface {
	Open(port string, baudrate int, timeout time.Duration) (io.ReadCloser, error)
}

// fakeSource always returns the same synthetic frame.
type fakeSource struct {
	value int
}

func (s fakeSource) Frame(ctx context.Context) (domain.Frame, error) {
	return domain.ValueFrame(s.value), nil
}

// serialSource opens the port, reads one line and closes it again.
type serialSource struct {
	port     string
	baudrate int
	timeout  time.Duration
	opener   PortOpener
}

var errNoOpener = errors.New("no serial port opener configured")

func (s serialSource) Frame(ctx context.Context) (domain.Frame, error) {
	if s.port == "" {
		return nil, domain.ErrSerialPortMissing
	}
	if s.opener == nil {
		return nil, errNoOpener
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := s.opener.Open(s.port, s.baudrate, s.timeout)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.port, err)
	}
	defer conn.Close()

	line, err := readLine(conn)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.port, err)
	}

	text := strings.TrimSpace(decodeLossy(line))
	if text == "" {
		return nil, domain.ErrEmptyFrame
	}
	return domain.RawFrame(text), nil
}

// decodeLossy decodes UTF-8, replacing each invalid byte with U+FFFD.
func decodeLossy(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// readLine reads up to and including '\n'. A read that returns no bytes and
// no error is a port timeout and ends the line early, as does io.EOF.
func readLine(r io.Reader) ([]byte, error) {
	var (
		line []byte
		buf  [1]byte
	)
	for len(line) < maxLineLength {
		n, err := r.Read(buf[:])
		if n > 0 {
			line = append(line, buf[0])
			if buf[0] == '\n' {
				return line, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return line, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return line, nil
		}
	}
	return line, nil
}
