package mock

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// OpenCall records the arguments of one Open.
type OpenCall struct {
	Port     string
	Baudrate int
	Timeout  time.Duration
}

// ScriptedPort is a deterministic serial port for tests. Every Open
// consumes one scripted item:
//
//   - []byte or string: returned by the next reads
//   - error: returned by the first read
//
// Once the script is exhausted reads behave like a port timeout.
type ScriptedPort struct {
	mu      sync.Mutex
	items   []any
	next    int
	OpenErr error
	Calls   []OpenCall
}

// NewScriptedPort creates a port playing items in order.
func NewScriptedPort(items ...any) *ScriptedPort {
	return &ScriptedPort{items: items}
}

// Open implements poller.PortOpener.
func (p *ScriptedPort) Open(port string, baudrate int, timeout time.Duration) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, OpenCall{Port: port, Baudrate: baudrate, Timeout: timeout})
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}

	if p.next >= len(p.items) {
		return &scriptedConn{}, nil
	}
	item := p.items[p.next]
	p.next++

	switch v := item.(type) {
	case error:
		return &scriptedConn{err: v}, nil
	case string:
		return &scriptedConn{r: bytes.NewReader([]byte(v))}, nil
	case []byte:
		return &scriptedConn{r: bytes.NewReader(v)}, nil
	}
	panic("mock: unsupported scripted port item")
}

// OpenCount returns how many times Open was called.
func (p *ScriptedPort) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

type scriptedConn struct {
	r   *bytes.Reader
	err error
}

// Read returns (0, nil) once data runs out, which is how a serial port
// reports a read timeout.
func (c *scriptedConn) Read(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.r == nil || c.r.Len() == 0 {
		return 0, nil
	}
	return c.r.Read(b)
}

func (c *scriptedConn) Close() error {
	return nil
}
