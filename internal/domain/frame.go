package domain

import "maps"

// Frame is one unit of raw acquired data handed to an ingestion sink.
// Fake sources produce {"value": <int>}, serial sources {"raw": <line>}.
type Frame map[string]any

const (
	FrameKeyValue = "value"
	FrameKeyRaw   = "raw"
)

// ValueFrame builds a synthetic frame.
func ValueFrame(v int) Frame {
	return Frame{FrameKeyValue: v}
}

// RawFrame builds a frame carrying one decoded device line.
func RawFrame(line string) Frame {
	return Frame{FrameKeyRaw: line}
}

// Value returns the synthetic value, if the frame carries one.
func (f Frame) Value() (int, bool) {
	v, ok := f[FrameKeyValue].(int)
	return v, ok
}

// Raw returns the raw device line, if the frame carries one.
func (f Frame) Raw() (string, bool) {
	s, ok := f[FrameKeyRaw].(string)
	return s, ok
}

// Clone returns a shallow copy; nil stays nil.
func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	return maps.Clone(f)
}
