package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/multierr"

	"midiplay/debug"
)

// Sender writes one message to an open output port
type Sender func(msg gomidi.Message) error

// PortSink plays notes on a MIDI output port (synth, DAW, virtual port)
type PortSink struct {
	name string
	send Sender
}

// NewPortSink wraps an already opened sender
func NewPortSink(name string, send Sender) *PortSink {
	return &PortSink{name: name, send: send}
}

// OpenPortSink opens the output port and returns a sink for it
func OpenPortSink(port drivers.Out) (*PortSink, error) {
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", port.String(), err)
	}
	debug.Log("port", "opened output %s", port.String())
	return NewPortSink(port.String(), send), nil
}

func (s *PortSink) Name() string {
	return s.name
}

// SendNote sends a note-on, or a note-off when velocity is 0. Channel is 1-16.
func (s *PortSink) SendNote(note, velocity, channel uint8) error {
	ch := (channel - 1) & 0x0F
	if velocity == 0 {
		return s.send(gomidi.NoteOff(ch, note))
	}
	return s.send(gomidi.NoteOn(ch, note, velocity))
}

// AllNotesOff sends the all-notes-off controller on every channel
func (s *PortSink) AllNotesOff() error {
	var err error
	for ch := uint8(0); ch < 16; ch++ {
		err = multierr.Append(err, s.send(gomidi.ControlChange(ch, 123, 0)))
	}
	return err
}

// NoteSink is anything that accepts notes; player.Sink has the same shape.
type NoteSink interface {
	SendNote(note, velocity, channel uint8) error
}

// MultiSink sends every note to all of its sinks, returning their combined errors
type MultiSink []NoteSink

func (m MultiSink) SendNote(note, velocity, channel uint8) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.SendNote(note, velocity, channel))
	}
	return err
}
