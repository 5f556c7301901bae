package mock

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/quentinrf/geiger-monitor/internal/domain"
)

// usvPerCPM converts counts per minute to µSv/h for an SBM-20 tube.
const usvPerCPM = 0.0057

// FakeGeiger simulates a MightyOhm Geiger counter for development
// This implements the poller.PortOpener interface
type FakeGeiger struct {
	baseCPS   float64
	variation float64
	threshold int64
}

// NewFakeGeiger creates a counter that emits realistic lines
// baseCPS: average counts per second (e.g., 0.5 for normal background)
// variation: +/- range in CPS (0 makes the output deterministic)
func NewFakeGeiger(baseCPS, variation float64) *FakeGeiger {
	return &FakeGeiger{
		baseCPS:   baseCPS,
		variation: variation,
		threshold: 50,
	}
}

// Open returns a connection that yields exactly one line.
func (g *FakeGeiger) Open(port string, baudrate int, timeout time.Duration) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(g.Line())), nil
}

// Line renders one simulated device line, newline included.
func (g *FakeGeiger) Line() string {
	// Random value around base ± variation
	variance := (rand.Float64() - 0.5) * 2 * g.variation
	cps := int64(g.baseCPS + variance + 0.5)

	// Ensure non-negative
	if cps < 0 {
		cps = 0
	}

	mode := domain.ClassifyMode(cps, g.threshold)
	cpm := cps * 60
	usv := float64(cpm) * usvPerCPM

	return fmt.Sprintf("CPS, %d, CPM, %d, uSv/hr, %.2f, %s\n", cps, cpm, usv, mode)
}
