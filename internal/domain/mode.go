package domain

import "strings"

// Mode is the counting mode reported by the Geiger counter firmware.
type Mode string

const (
	ModeSlow Mode = "SLOW"
	ModeFast Mode = "FAST"
	ModeInst Mode = "INST"
)

// instantCPS is the CPS above which the firmware switches to instant mode.
const instantCPS = 255

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeSlow, ModeFast, ModeInst:
		return true
	}
	return false
}

// ParseMode normalises s and checks it against the known modes.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", ErrInvalidMode
	}
	return m, nil
}

// ClassifyMode derives the mode from counts per second:
// INST above 255 CPS, FAST above threshold, SLOW otherwise.
func ClassifyMode(cps int64, threshold int64) Mode {
	switch {
	case cps > instantCPS:
		return ModeInst
	case cps > threshold:
		return ModeFast
	}
	return ModeSlow
}
