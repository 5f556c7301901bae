package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpen_MissingDevice(t *testing.T) {
	_, err := NewOpener().Open("/dev/does-not-exist-geiger", 9600, time.Second)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/does-not-exist-geiger")
}

func TestListPorts_Sorted(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Skipf("port enumeration unavailable: %v", err)
	}
	assert.IsNonDecreasing(t, ports)
}
