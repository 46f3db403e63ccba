package midifile

import (
	"encoding/binary"
	"fmt"
	"io"

	"midiplay/debug"
)

const (
	headerLength      = 14
	headerDataLength  = 6
	trackHeaderLength = 8

	tagHeader = "MThd"
	tagTrack  = "MTrk"

	statusBit    = 0x80
	statusSysEx  = 0xF0
	statusEscape = 0xF7
)

// Header is the MThd chunk
type Header struct {
	ChunkSize  uint32
	Format     uint16
	TrackCount uint16
	// TimeDivision is ticks per quarter note.
	TimeDivision uint16
}

func readHeader(r io.Reader) (Header, error) {
	var raw [headerLength]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, &DecodeError{Track: -1, Err: fmt.Errorf("%w: %w", ErrTruncatedChunk, err)}
	}

	if string(raw[:4]) != tagHeader {
		return Header{}, &DecodeError{Track: -1, Err: fmt.Errorf("%w: header tag %q", ErrInvalidFileFormat, raw[:4])}
	}

	h := Header{
		ChunkSize:    binary.BigEndian.Uint32(raw[4:8]),
		Format:       binary.BigEndian.Uint16(raw[8:10]),
		TrackCount:   binary.BigEndian.Uint16(raw[10:12]),
		TimeDivision: binary.BigEndian.Uint16(raw[12:14]),
	}

	// Longer headers are allowed; the extra bytes carry nothing we use
	if h.ChunkSize > headerDataLength {
		extra := int64(h.ChunkSize - headerDataLength)
		if n, err := io.CopyN(io.Discard, r, extra); err != nil {
			return Header{}, &DecodeError{Track: -1, Offset: headerLength + int(n), Err: fmt.Errorf("%w: %w", ErrTruncatedChunk, err)}
		}
	}

	if h.TimeDivision&0x8000 != 0 {
		return Header{}, &DecodeError{Track: -1, Offset: 12, Err: fmt.Errorf("%w (0x%04X)", ErrUnsupportedTimeDivision, h.TimeDivision)}
	}
	if h.TimeDivision == 0 {
		return Header{}, &DecodeError{Track: -1, Offset: 12, Err: fmt.Errorf("%w: zero time division", ErrInvalidFileFormat)}
	}

	return h, nil
}

// Track is one MTrk chunk. Events are in file order; the cursor is used by
// NextEvents and is not safe for concurrent use.
type Track struct {
	Size   uint32
	Events []Event

	next int // index of the first event not yet returned by NextEvents
}

func readTrack(r io.Reader, index int) (*Track, error) {
	var raw [trackHeaderLength]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, &DecodeError{Track: index, Err: fmt.Errorf("%w: %w", ErrTruncatedChunk, err)}
	}
	if string(raw[:4]) != tagTrack {
		return nil, &DecodeError{Track: index, Err: fmt.Errorf("%w: track tag %q", ErrInvalidFileFormat, raw[:4])}
	}

	size := binary.BigEndian.Uint32(raw[4:8])

	// LimitReader keeps a bogus size from allocating before the data exists
	body, err := io.ReadAll(io.LimitReader(r, int64(size)))
	if err != nil {
		return nil, &DecodeError{Track: index, Offset: len(body), Err: fmt.Errorf("%w: %w", ErrTruncatedChunk, err)}
	}
	if uint32(len(body)) != size {
		return nil, &DecodeError{Track: index, Offset: len(body), Err: fmt.Errorf("%w: want %d bytes, have %d", ErrTruncatedChunk, size, len(body))}
	}

	t := &Track{Size: size}
	if err := t.decode(body, index); err != nil {
		return nil, err
	}
	return t, nil
}

// decode parses the body of a track chunk and appends its events
func (t *Track) decode(body []byte, index int) error {
	d := trackDecoder{body: body}

	// A trailing single byte cannot hold an event
	for d.pos+1 < len(d.body) {
		e, err := d.next()
		if err != nil {
			return &DecodeError{Track: index, Offset: d.pos, Err: err}
		}
		if e != nil {
			t.Events = append(t.Events, e)
		}
	}
	return nil
}

type trackDecoder struct {
	body []byte
	pos  int
	tick uint64

	// running is the last channel voice status byte, 0 before the first one
	running uint8
}

// next decodes one delta-time prefixed event. It returns a nil event for
// types that are skipped.
func (d *trackDecoder) next() (Event, error) {
	delta, err := d.varLen()
	if err != nil {
		return nil, err
	}
	d.tick += uint64(delta)

	status, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch {
	case status == StatusMeta:
		metaType, err := d.readByte()
		if err != nil {
			return nil, err
		}
		payload, err := d.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		e, ok := newEvent(delta, StatusMeta, payload, metaType, 0)
		return d.stamp(e, ok), nil

	case status == statusSysEx || status == statusEscape:
		payload, err := d.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		debug.Log("decode", "skipping sysex 0x%02X (%d bytes) at tick %d", status, len(payload), d.tick)
		return nil, nil

	case status&statusBit == 0:
		// Running status: the byte is data for a repeat of the previous
		// channel event, so back up and read it again as payload
		if d.running == 0 {
			return nil, ErrRunningStatus
		}
		d.pos--
		status = d.running

	case status > statusSysEx:
		// System common/real-time messages carry no length in a file
		debug.Log("decode", "dropping system status 0x%02X at tick %d", status, d.tick)
		return nil, nil
	}

	kind, channel := status>>4, status&0x0F
	data, err := d.take(channelParamCount(kind))
	if err != nil {
		return nil, err
	}
	d.running = status

	e, ok := newEvent(delta, kind, data, 0, channel)
	return d.stamp(e, ok), nil
}

func (d *trackDecoder) stamp(e Event, ok bool) Event {
	if !ok {
		return nil
	}
	e.stamp(d.tick)
	return e
}

func (d *trackDecoder) readByte() (uint8, error) {
	if d.pos >= len(d.body) {
		return 0, ErrTruncatedChunk
	}
	b := d.body[d.pos]
	d.pos++
	return b, nil
}

func (d *trackDecoder) varLen() (uint32, error) {
	v, n, err := ReadVarLen(d.body, d.pos)
	if err != nil {
		return 0, err
	}
	d.pos += n
	return v, nil
}

func (d *trackDecoder) take(n int) ([]byte, error) {
	if n < 0 || n > len(d.body)-d.pos {
		return nil, fmt.Errorf("%w: need %d bytes, %d left", ErrTruncatedChunk, n, len(d.body)-d.pos)
	}
	b := d.body[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *trackDecoder) lengthPrefixed() ([]byte, error) {
	length, err := d.varLen()
	if err != nil {
		return nil, err
	}
	return d.take(int(length))
}
