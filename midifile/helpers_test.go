package midifile

import (
	"bytes"
	"encoding/binary"
)

func headerChunk(format, tracks, division uint16) []byte {
	b := []byte("MThd")
	b = binary.BigEndian.AppendUint32(b, 6)
	b = binary.BigEndian.AppendUint16(b, format)
	b = binary.BigEndian.AppendUint16(b, tracks)
	return binary.BigEndian.AppendUint16(b, division)
}

func trackChunk(body ...byte) []byte {
	b := []byte("MTrk")
	b = binary.BigEndian.AppendUint32(b, uint32(len(body)))
	return append(b, body...)
}

func smfBytes(format, division uint16, tracks ...[]byte) []byte {
	b := headerChunk(format, uint16(len(tracks)), division)
	for _, t := range tracks {
		b = append(b, trackChunk(t...)...)
	}
	return b
}

func mustParse(data []byte) *Song {
	s, err := Parse(bytes.NewReader(data))
	if err != nil {
		panic(err)
	}
	return s
}

var endOfTrack = []byte{0x00, 0xFF, 0x2F, 0x00}

func withEnd(body ...byte) []byte {
	return append(body, endOfTrack...)
}
