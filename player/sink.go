package player

import "sync"

// Sink receives the notes of a playing song. Channel is 1-16; note-off
// messages are sent with velocity 0.
type Sink interface {
	SendNote(note, velocity, channel uint8) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(note, velocity, channel uint8) error

func (f SinkFunc) SendNote(note, velocity, channel uint8) error {
	return f(note, velocity, channel)
}

// lockedSink serializes calls from the track goroutines so sinks need not
// be safe for concurrent use
type lockedSink struct {
	mu   sync.Mutex
	sink Sink
}

func (s *lockedSink) SendNote(note, velocity, channel uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.SendNote(note, velocity, channel)
}
