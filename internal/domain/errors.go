package domain

import "errors"

var (
	// ErrInvalidReading indicates counts or dose are negative
	ErrInvalidReading = errors.New("counts and dose cannot be negative")

	// ErrInvalidMode indicates the counting mode is not SLOW, FAST or INST
	ErrInvalidMode = errors.New("mode must be one of SLOW, FAST, INST")

	// ErrReadingNotFound indicates requested reading doesn't exist
	ErrReadingNotFound = errors.New("reading not found")

	// ErrInvalidTimestamp indicates an instant without a usable time zone
	ErrInvalidTimestamp = errors.New("timestamp must be timezone-aware")

	// ErrInvalidWindow indicates a non-positive analytics window
	ErrInvalidWindow = errors.New("window_minutes must be positive")

	// ErrSerialPortMissing indicates serial mode without a configured port
	ErrSerialPortMissing = errors.New("serial port not configured")

	// ErrEmptyFrame indicates the device returned an empty line
	ErrEmptyFrame = errors.New("empty frame")

	// ErrUnsupportedFrame indicates a frame shape the sink cannot interpret
	ErrUnsupportedFrame = errors.New("unsupported frame")
)
