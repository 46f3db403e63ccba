package midifile

import (
	"fmt"

	"midiplay/debug"
)

// Status nibbles of channel voice messages
const (
	StatusNoteOff           uint8 = 0x8
	StatusNoteOn            uint8 = 0x9
	StatusNoteAftertouch    uint8 = 0xA
	StatusController        uint8 = 0xB
	StatusProgramChange     uint8 = 0xC
	StatusChannelAftertouch uint8 = 0xD
	StatusPitchBend         uint8 = 0xE

	// StatusMeta is the full byte that introduces a meta event.
	StatusMeta uint8 = 0xFF
)

// Meta event types
const (
	MetaSequenceNumber    uint8 = 0x00
	MetaText              uint8 = 0x01
	MetaCopyrightNotice   uint8 = 0x02
	MetaTrackName         uint8 = 0x03
	MetaInstrumentName    uint8 = 0x04
	MetaLyric             uint8 = 0x05
	MetaMarker            uint8 = 0x06
	MetaCuePoint          uint8 = 0x07
	MetaChannelPrefix     uint8 = 0x20
	MetaEndOfTrack        uint8 = 0x2F
	MetaSetTempo          uint8 = 0x51
	MetaSMPTEOffset       uint8 = 0x54
	MetaTimeSignature     uint8 = 0x58
	MetaKeySignature      uint8 = 0x59
	MetaSequencerSpecific uint8 = 0x7F
)

// Kind identifies the concrete type of an Event
type Kind int

const (
	KindNoteOff Kind = iota
	KindNoteOn
	KindNoteAftertouch
	KindController
	KindProgramChange
	KindChannelAftertouch
	KindPitchBend

	KindSequenceNumber
	KindText
	KindCopyrightNotice
	KindTrackName
	KindInstrumentName
	KindLyric
	KindMarker
	KindCuePoint
	KindChannelPrefix
	KindEndOfTrack
	KindSetTempo
	KindSMPTEOffset
	KindTimeSignature
	KindKeySignature
	KindSequencerSpecific
)

var kindNames = [...]string{
	KindNoteOff:           "NoteOff",
	KindNoteOn:            "NoteOn",
	KindNoteAftertouch:    "NoteAftertouch",
	KindController:        "Controller",
	KindProgramChange:     "ProgramChange",
	KindChannelAftertouch: "ChannelAftertouch",
	KindPitchBend:         "PitchBend",
	KindSequenceNumber:    "SequenceNumber",
	KindText:              "Text",
	KindCopyrightNotice:   "CopyrightNotice",
	KindTrackName:         "TrackName",
	KindInstrumentName:    "InstrumentName",
	KindLyric:             "Lyric",
	KindMarker:            "Marker",
	KindCuePoint:          "CuePoint",
	KindChannelPrefix:     "MIDIChannelPrefix",
	KindEndOfTrack:        "EndOfTrack",
	KindSetTempo:          "SetTempo",
	KindSMPTEOffset:       "SMPTEOffset",
	KindTimeSignature:     "TimeSignature",
	KindKeySignature:      "KeySignature",
	KindSequencerSpecific: "SequencerSpecific",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsMeta reports whether k is a meta event kind
func (k Kind) IsMeta() bool {
	return k >= KindSequenceNumber
}

// Event is one decoded track event. The set of implementations is closed:
// the concrete types in this package are the only events.
type Event interface {
	Kind() Kind
	// Delta is the tick distance from the previous event in the same track.
	Delta() uint32
	// Tick is the absolute tick of the event within its track.
	Tick() uint64
	String() string

	stamp(tick uint64)
}

// ChannelEvent is implemented by the channel voice events
type ChannelEvent interface {
	Event
	// Channel is 1-16.
	Channel() uint8
	// ParamCount is the number of data bytes following the status byte.
	ParamCount() int
}

type base struct {
	delta uint32
	tick  uint64
}

func (b *base) Delta() uint32 { return b.delta }
func (b *base) Tick() uint64 { return b.tick }
func (b *base) stamp(tick uint64) { b.tick = tick }
func (b *base) prefix() string { return fmt.Sprintf("%8d %6d", b.tick, b.delta) }

type channelBase struct {
	base
	channel uint8
}

func (c *channelBase) Channel() uint8 { return c.channel }
func (c *channelBase) ParamCount() int { return 2 }

// Channel voice events

type NoteOff struct {
	channelBase
	Note     uint8
	Velocity uint8
}

type NoteOn struct {
	channelBase
	Note     uint8
	Velocity uint8
}

type NoteAftertouch struct {
	channelBase
	Note     uint8
	Pressure uint8
}

type Controller struct {
	channelBase
	Controller uint8
	Value      uint8
}

type ProgramChange struct {
	channelBase
	Program uint8
}

type ChannelAftertouch struct {
	channelBase
	Pressure uint8
}

type PitchBend struct {
	channelBase
	LSB uint8
	MSB uint8
}

func (*NoteOff) Kind() Kind { return KindNoteOff }
func (*NoteOn) Kind() Kind { return KindNoteOn }
func (*NoteAftertouch) Kind() Kind { return KindNoteAftertouch }
func (*Controller) Kind() Kind { return KindController }
func (*ProgramChange) Kind() Kind { return KindProgramChange }
func (*ChannelAftertouch) Kind() Kind { return KindChannelAftertouch }
func (*PitchBend) Kind() Kind { return KindPitchBend }

func (*ProgramChange) ParamCount() int { return 1 }
func (*ChannelAftertouch) ParamCount() int { return 1 }

// Value returns the 14-bit bend amount centred on zero (-8192..8191)
func (e *PitchBend) Value() int16 {
	return int16(uint16(e.MSB&0x7F)<<7|uint16(e.LSB&0x7F)) - 8192
}

func (e *NoteOff) String() string {
	return fmt.Sprintf("%s ch%-2d NoteOff note=%d vel=%d", e.prefix(), e.channel, e.Note, e.Velocity)
}

func (e *NoteOn) String() string {
	return fmt.Sprintf("%s ch%-2d NoteOn note=%d vel=%d", e.prefix(), e.channel, e.Note, e.Velocity)
}

func (e *NoteAftertouch) String() string {
	return fmt.Sprintf("%s ch%-2d NoteAftertouch note=%d pressure=%d", e.prefix(), e.channel, e.Note, e.Pressure)
}

func (e *Controller) String() string {
	return fmt.Sprintf("%s ch%-2d Controller cc=%d value=%d", e.prefix(), e.channel, e.Controller, e.Value)
}

func (e *ProgramChange) String() string {
	return fmt.Sprintf("%s ch%-2d ProgramChange program=%d", e.prefix(), e.channel, e.Program)
}

func (e *ChannelAftertouch) String() string {
	return fmt.Sprintf("%s ch%-2d ChannelAftertouch pressure=%d", e.prefix(), e.channel, e.Pressure)
}

func (e *PitchBend) String() string {
	return fmt.Sprintf("%s ch%-2d PitchBend value=%d", e.prefix(), e.channel, e.Value())
}

// Meta events

type metaBase struct {
	base
}

func (m *metaBase) metaString(k Kind, detail string) string {
	if detail == "" {
		return fmt.Sprintf("%s meta %s", m.prefix(), k)
	}
	return fmt.Sprintf("%s meta %s %s", m.prefix(), k, detail)
}

type SequenceNumber struct {
	metaBase
	Number uint16
}

// TextEvent carries the payload of all text-like meta events; its kind
// distinguishes Text, CopyrightNotice, TrackName, InstrumentName, Lyric,
// Marker and CuePoint.
type TextEvent struct {
	metaBase
	kind Kind
	Text string
}

type ChannelPrefix struct {
	metaBase
	// Channel is 1-16.
	Channel uint8
}

type EndOfTrack struct {
	metaBase
}

type SetTempo struct {
	metaBase
	MicrosecondsPerQuarter uint32
	// BPM is 60_000_000 / MicrosecondsPerQuarter.
	BPM float64
}

type SMPTEOffset struct {
	metaBase
	Hours, Minutes, Seconds, Frames, Subframes uint8
}

type TimeSignature struct {
	metaBase
	Numerator uint8
	// Denominator is the actual note value, 2^raw.
	Denominator             uint16
	ClocksPerClick          uint8
	ThirtySecondsPerQuarter uint8
}

type KeySignature struct {
	metaBase
	// Key is the number of sharps (positive) or flats (negative), -7..7.
	Key   int8
	Minor bool
}

type SequencerSpecific struct {
	metaBase
	Data []byte
}

func (*SequenceNumber) Kind() Kind { return KindSequenceNumber }
func (e *TextEvent) Kind() Kind { return e.kind }
func (*ChannelPrefix) Kind() Kind { return KindChannelPrefix }
func (*EndOfTrack) Kind() Kind { return KindEndOfTrack }
func (*SetTempo) Kind() Kind { return KindSetTempo }
func (*SMPTEOffset) Kind() Kind { return KindSMPTEOffset }
func (*TimeSignature) Kind() Kind { return KindTimeSignature }
func (*KeySignature) Kind() Kind { return KindKeySignature }
func (*SequencerSpecific) Kind() Kind { return KindSequencerSpecific }

func (e *SequenceNumber) String() string {
	return e.metaString(e.Kind(), fmt.Sprintf("%d", e.Number))
}

func (e *TextEvent) String() string {
	return e.metaString(e.kind, fmt.Sprintf("%q", e.Text))
}

func (e *ChannelPrefix) String() string {
	return e.metaString(e.Kind(), fmt.Sprintf("ch%d", e.Channel))
}

func (e *EndOfTrack) String() string {
	return e.metaString(e.Kind(), "")
}

func (e *SetTempo) String() string {
	return e.metaString(e.Kind(), fmt.Sprintf("%.2fbpm (%dus/quarter)", e.BPM, e.MicrosecondsPerQuarter))
}

func (e *SMPTEOffset) String() string {
	return e.metaString(e.Kind(), fmt.Sprintf("%02d:%02d:%02d:%02d.%02d", e.Hours, e.Minutes, e.Seconds, e.Frames, e.Subframes))
}

func (e *TimeSignature) String() string {
	return e.metaString(e.Kind(), fmt.Sprintf("%d/%d clocks=%d 32nds=%d", e.Numerator, e.Denominator, e.ClocksPerClick, e.ThirtySecondsPerQuarter))
}

func (e *KeySignature) String() string {
	return e.metaString(e.Kind(), e.Name())
}

func (e *SequencerSpecific) String() string {
	return e.metaString(e.Kind(), fmt.Sprintf("% X", e.Data))
}

var majorKeys = [15]string{"Cb", "Gb", "Db", "Ab", "Eb", "Bb", "F", "C", "G", "D", "A", "E", "B", "F#", "C#"}
var minorKeys = [15]string{"Ab", "Eb", "Bb", "F", "C", "G", "D", "A", "E", "B", "F#", "C#", "G#", "D#", "A#"}

// Name returns the key name, e.g. "Eb major" or "F# minor"
func (e *KeySignature) Name() string {
	idx := int(e.Key) + 7
	if idx < 0 || idx >= len(majorKeys) {
		return fmt.Sprintf("key(%d)", e.Key)
	}
	if e.Minor {
		return minorKeys[idx] + " minor"
	}
	return majorKeys[idx] + " major"
}

// newEvent constructs the event for a status nibble (or StatusMeta) and its
// payload. Channel is the raw 0-15 nibble. Unknown types are reported with
// ok=false so the decoder can skip them.
func newEvent(delta uint32, status uint8, payload []byte, metaType uint8, channel uint8) (Event, bool) {
	if status == StatusMeta {
		e, ok := newMetaEvent(delta, metaType, payload)
		if !ok {
			debug.Log("decode", "dropping unknown meta type 0x%02x (%d bytes)", metaType, len(payload))
		}
		return e, ok
	}

	e, ok := newChannelEvent(delta, status, payload, channel)
	if !ok {
		debug.Log("decode", "dropping unknown event type 0x%x channel %d", status, channel+1)
	}
	return e, ok
}

// channelParamCount returns the data byte count for a status nibble, or 0
// when the nibble is not a channel voice message.
func channelParamCount(status uint8) int {
	switch status {
	case StatusNoteOff, StatusNoteOn, StatusNoteAftertouch, StatusController, StatusPitchBend:
		return 2
	case StatusProgramChange, StatusChannelAftertouch:
		return 1
	}
	return 0
}

func newChannelEvent(delta uint32, status uint8, data []byte, channel uint8) (Event, bool) {
	n := channelParamCount(status)
	if n == 0 || len(data) < n {
		return nil, false
	}

	cb := channelBase{base: base{delta: delta}, channel: channel&0x0F + 1}
	switch status {
	case StatusNoteOff:
		return &NoteOff{channelBase: cb, Note: data[0], Velocity: data[1]}, true
	case StatusNoteOn:
		return &NoteOn{channelBase: cb, Note: data[0], Velocity: data[1]}, true
	case StatusNoteAftertouch:
		return &NoteAftertouch{channelBase: cb, Note: data[0], Pressure: data[1]}, true
	case StatusController:
		return &Controller{channelBase: cb, Controller: data[0], Value: data[1]}, true
	case StatusProgramChange:
		return &ProgramChange{channelBase: cb, Program: data[0]}, true
	case StatusChannelAftertouch:
		return &ChannelAftertouch{channelBase: cb, Pressure: data[0]}, true
	case StatusPitchBend:
		return &PitchBend{channelBase: cb, LSB: data[0], MSB: data[1]}, true
	}
	return nil, false
}

func newMetaEvent(delta uint32, metaType uint8, data []byte) (Event, bool) {
	mb := metaBase{base{delta: delta}}

	switch metaType {
	case MetaSequenceNumber:
		e := &SequenceNumber{metaBase: mb}
		if len(data) >= 2 {
			e.Number = uint16(data[0])<<8 | uint16(data[1])
		}
		return e, true
	case MetaText:
		return &TextEvent{metaBase: mb, kind: KindText, Text: latin1(data)}, true
	case MetaCopyrightNotice:
		return &TextEvent{metaBase: mb, kind: KindCopyrightNotice, Text: latin1(data)}, true
	case MetaTrackName:
		return &TextEvent{metaBase: mb, kind: KindTrackName, Text: latin1(data)}, true
	case MetaInstrumentName:
		return &TextEvent{metaBase: mb, kind: KindInstrumentName, Text: latin1(data)}, true
	case MetaLyric:
		return &TextEvent{metaBase: mb, kind: KindLyric, Text: latin1(data)}, true
	case MetaMarker:
		return &TextEvent{metaBase: mb, kind: KindMarker, Text: latin1(data)}, true
	case MetaCuePoint:
		return &TextEvent{metaBase: mb, kind: KindCuePoint, Text: latin1(data)}, true
	case MetaChannelPrefix:
		if len(data) < 1 {
			return nil, false
		}
		return &ChannelPrefix{metaBase: mb, Channel: data[0]&0x0F + 1}, true
	case MetaEndOfTrack:
		return &EndOfTrack{metaBase: mb}, true
	case MetaSetTempo:
		if len(data) < 3 {
			return nil, false
		}
		us := uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
		if us == 0 {
			return nil, false
		}
		return &SetTempo{metaBase: mb, MicrosecondsPerQuarter: us, BPM: 60_000_000 / float64(us)}, true
	case MetaSMPTEOffset:
		if len(data) < 5 {
			return nil, false
		}
		return &SMPTEOffset{metaBase: mb, Hours: data[0], Minutes: data[1], Seconds: data[2], Frames: data[3], Subframes: data[4]}, true
	case MetaTimeSignature:
		if len(data) < 4 || data[1] > 15 {
			return nil, false
		}
		return &TimeSignature{
			metaBase:                mb,
			Numerator:               data[0],
			Denominator:             uint16(1) << data[1],
			ClocksPerClick:          data[2],
			ThirtySecondsPerQuarter: data[3],
		}, true
	case MetaKeySignature:
		if len(data) < 2 {
			return nil, false
		}
		return &KeySignature{metaBase: mb, Key: int8(data[0]), Minor: data[1] == 1}, true
	case MetaSequencerSpecific:
		return &SequencerSpecific{metaBase: mb, Data: append([]byte(nil), data...)}, true
	}
	return nil, false
}

// latin1 decodes ISO-8859-1 bytes, which map one-to-one onto code points
func latin1(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}
