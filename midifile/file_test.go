package midifile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// The example file from the Standard MIDI Files 1.0 document: a tempo track plus three
// music tracks using running status.
var smf1Example = []byte{
	0x4d, 0x54, 0x68, 0x64, 0, 0, 0, 6, 0, 1, 0, 4, 0, 0x60,

	0x4d, 0x54, 0x72, 0x6b, 0, 0, 0, 0x14,
	0, 0xff, 0x58, 4, 4, 2, 0x18, 8,
	0, 0xff, 0x51, 3, 7, 0xa1, 0x20,
	0x83, 0, 0xff, 0x2f, 0,

	0x4d, 0x54, 0x72, 0x6b, 0, 0, 0, 0x10,
	0, 0xc0, 5,
	0x81, 0x40, 0x90, 0x4c, 0x20,
	0x81, 0x40, 0x4c, 0,
	0, 0xff, 0x2f, 0,

	0x4d, 0x54, 0x72, 0x6b, 0, 0, 0, 0xf,
	0, 0xc1, 0x2e,
	0x60, 0x91, 0x43, 0x40,
	0x82, 0x20, 0x43, 0,
	0, 0xff, 0x2f, 0,

	0x4d, 0x54, 0x72, 0x6b, 0, 0, 0, 0x15,
	0, 0xc2, 0x46,
	0, 0x92, 0x30, 0x60,
	0, 0x3c, 0x60,
	0x83, 0, 0x30, 0,
	0, 0x3c, 0,
	0, 0xff, 0x2f, 0,
}

func TestParseFormat1Example(t *testing.T) {
	s, err := Parse(bytes.NewReader(smf1Example))
	require.NoError(t, err)

	assert.Equal(t, FormatSync, s.Header.Format)
	assert.Equal(t, uint16(96), s.Header.TimeDivision)
	require.Len(t, s.Tracks, 4)

	counts := []int{3, 4, 4, 6}
	for i, tr := range s.Tracks {
		assert.Len(t, tr.Events, counts[i], "track %d", i)
		assertTrackInvariants(t, tr)
	}

	st := s.Tracks[0].Events[1].(*SetTempo)
	assert.Equal(t, 120.0, st.BPM)

	off := s.Tracks[3].Events[3].(*NoteOn)
	assert.Equal(t, uint8(0x30), off.Note)
	assert.Equal(t, uint8(0), off.Velocity)
	assert.Equal(t, uint8(3), off.Channel())
	assert.Equal(t, uint64(384), off.Tick())
}

func assertTrackInvariants(t *testing.T, tr *Track) {
	t.Helper()
	require.NotEmpty(t, tr.Events)
	for i := 1; i < len(tr.Events); i++ {
		assert.LessOrEqual(t, tr.Events[i-1].Tick(), tr.Events[i].Tick())
		assert.Equal(t, tr.Events[i-1].Tick()+uint64(tr.Events[i].Delta()), tr.Events[i].Tick())
	}
	assert.Equal(t, KindEndOfTrack, tr.Events[len(tr.Events)-1].Kind())
}

func TestParseMalformedHeaderReadsNoTracks(t *testing.T) {
	data := append([]byte(nil), smf1Example...)
	copy(data, "XXXX")

	r := bytes.NewReader(data)
	_, err := Parse(r)
	require.ErrorIs(t, err, ErrInvalidFileFormat)
	assert.Equal(t, len(data)-headerLength, r.Len(), "only the header may be consumed")
}

func TestParseMissingEndOfTrack(t *testing.T) {
	data := smfBytes(0, 480, []byte{0x00, 0x90, 60, 100})
	_, err := Parse(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrMissingEndOfTrack)
	assert.Contains(t, err.Error(), "track 0")

	data = smfBytes(0, 480, []byte{0x00, 0xFF, 0x2F, 0x00, 0x00, 0x90, 60, 100, 0x00, 0xFF, 0x2F, 0x00})
	_, err = Parse(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrMissingEndOfTrack)
}

func TestParseTooFewTracks(t *testing.T) {
	data := headerChunk(1, 2, 480)
	data = append(data, trackChunk(endOfTrack...)...)

	_, err := Parse(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrTruncatedChunk)
	assert.Contains(t, err.Error(), "track 1")
}

func TestNextEventsGroups(t *testing.T) {
	tr := &Track{}
	for _, delta := range []uint32{0, 0, 10} {
		e, _ := newEvent(delta, StatusNoteOn, []byte{60, 100}, 0, 0)
		tr.Events = append(tr.Events, e)
	}
	var tick uint64
	for _, e := range tr.Events {
		tick += uint64(e.Delta())
		e.stamp(tick)
	}

	first := tr.NextEvents()
	assert.Len(t, first, 2)
	second := tr.NextEvents()
	require.Len(t, second, 1)
	assert.Equal(t, uint32(10), second[0].Delta())
	assert.Nil(t, tr.NextEvents())
	assert.True(t, tr.Done())

	tr.Reset()
	assert.Len(t, tr.NextEvents(), 2)
}

func TestSongNextEventsAndReset(t *testing.T) {
	s := mustParse(smf1Example)

	var groups int
	for s.NextEvents(3) != nil {
		groups++
	}
	// program and both notes, then both note-offs and the end
	assert.Equal(t, 2, groups)
	assert.Nil(t, s.NextEvents(3))
	assert.Nil(t, s.NextEvents(9))

	s.Reset()
	assert.Len(t, s.NextEvents(3), 3)
}

func TestTicksToSeconds(t *testing.T) {
	s := mustParse(smfBytes(0, 480, endOfTrack))
	assert.Equal(t, 120.0, s.Tempo())
	assert.Equal(t, 0.25, s.TicksToSeconds(240))
	assert.Equal(t, 250*time.Millisecond, s.TicksToDuration(240))

	s.SetTempo(60)
	assert.Equal(t, 0.5, s.TicksToSeconds(240))

	s.SetTempo(-1)
	assert.Equal(t, 60.0, s.Tempo(), "invalid tempo is ignored")
}

func TestTempoZeroValue(t *testing.T) {
	var tempo Tempo
	assert.Equal(t, DefaultTempo, tempo.Load())
	tempo.Store(93.5)
	assert.Equal(t, 93.5, tempo.Load())
}

func TestInfoAndDuration(t *testing.T) {
	s := mustParse(smf1Example)

	info := s.Info()
	assert.Equal(t, FormatSync, info.Format)
	assert.Equal(t, 120.0, info.Tempo)
	require.NotNil(t, info.TimeSig)
	assert.Equal(t, uint16(4), info.TimeSig.Denominator)
	assert.Equal(t, 4, info.Notes)
	assert.Equal(t, 17, info.Events)

	// 384 ticks at 96 per quarter and 120bpm
	assert.Equal(t, 2*time.Second, s.Duration())
}

func TestDurationFollowsTempoChanges(t *testing.T) {
	tempo := []byte{0x00, 0xFF, 0x51, 0x03, 0x0F, 0x42, 0x40} // 60bpm
	s := mustParse(smfBytes(1, 480,
		withEnd(tempo...),
		withEnd(0x00, 0x90, 60, 100, 0x87, 0x40, 0x80, 60, 0), // 960 ticks
	))
	assert.Equal(t, 2*time.Second, s.Duration())

	seq := mustParse(smfBytes(2, 480,
		withEnd(0x83, 0x60, 0x90, 60, 100), // 480 ticks at 120
		withEnd(tempo...),
		withEnd(0x83, 0x60, 0x80, 60, 0), // 480 ticks at 60
	))
	assert.Equal(t, 1500*time.Millisecond, seq.Duration())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mid")
	require.NoError(t, os.WriteFile(path, smf1Example, 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Tracks, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.mid"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// Files written by another encoder decode to the same events
func TestParseGomidiWrittenFile(t *testing.T) {
	var tempo, lead smf.Track
	tempo.Add(0, smf.MetaTrackSequenceName("tempo"))
	tempo.Add(0, smf.MetaTempo(150))
	tempo.Close(0)

	lead.Add(0, smf.MetaTrackSequenceName("lead"))
	lead.Add(0, gomidi.ProgramChange(2, 19))
	lead.Add(0, gomidi.NoteOn(2, 60, 100))
	lead.Add(0, gomidi.NoteOn(2, 64, 100))
	lead.Add(480, gomidi.NoteOff(2, 60))
	lead.Add(0, gomidi.NoteOff(2, 64))
	lead.Add(120, gomidi.ControlChange(2, 7, 90))
	lead.Close(0)

	file := smf.NewSMF1()
	file.TimeFormat = smf.MetricTicks(480)
	require.NoError(t, file.Add(tempo))
	require.NoError(t, file.Add(lead))

	var buf bytes.Buffer
	_, err := file.WriteTo(&buf)
	require.NoError(t, err)

	s, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, s.Tracks, 2)
	assert.Equal(t, uint16(480), s.Header.TimeDivision)

	info := s.Info()
	assert.Equal(t, []string{"tempo", "lead"}, info.TrackNames)
	assert.InDelta(t, 150.0, info.Tempo, 0.01)
	assert.Equal(t, 2, info.Notes)

	tr := s.Tracks[1]
	assertTrackInvariants(t, tr)

	group := tr.NextEvents()
	require.Len(t, group, 4)
	assert.Equal(t, uint8(3), group[2].(*NoteOn).Channel())

	group = tr.NextEvents()
	require.Len(t, group, 2)
	for _, e := range group {
		assert.Equal(t, uint64(480), e.Tick())
	}

	group = tr.NextEvents()
	require.Len(t, group, 2)
	cc := group[0].(*Controller)
	assert.Equal(t, uint8(7), cc.Controller)
	assert.Equal(t, uint8(90), cc.Value)
	assert.Equal(t, uint64(600), cc.Tick())
}
