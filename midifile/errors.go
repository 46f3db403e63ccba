package midifile

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFileFormat is returned when a chunk tag is not MThd/MTrk.
	ErrInvalidFileFormat = errors.New("midifile: invalid file format")
	// ErrTruncatedVarLen is returned when a variable-length quantity runs past the buffer.
	ErrTruncatedVarLen = errors.New("midifile: truncated variable-length quantity")
	// ErrTruncatedChunk is returned when an event or chunk body extends past the available bytes.
	ErrTruncatedChunk = errors.New("midifile: truncated chunk")
	// ErrRunningStatus is returned for a data byte in status position with no event to repeat.
	ErrRunningStatus = errors.New("midifile: running status without previous channel event")
	// ErrMissingEndOfTrack is returned when a track does not end with exactly one EndOfTrack.
	ErrMissingEndOfTrack = errors.New("midifile: track does not end with end-of-track")
	// ErrUnsupportedTimeDivision is returned for SMPTE-based time division.
	ErrUnsupportedTimeDivision = errors.New("midifile: unsupported SMPTE time division")
)

// DecodeError locates a fatal decode failure. Track is -1 for the header chunk.
// Offset is relative to the start of the chunk body.
type DecodeError struct {
	Track  int
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Track < 0 {
		return fmt.Sprintf("header offset 0x%x: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("track %d offset 0x%x: %v", e.Track, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
