package tui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"midiplay/midifile"
	"midiplay/player"
	"midiplay/theme"
)

func testSong(t *testing.T) *midifile.Song {
	t.Helper()
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName("piano"))
	tr.Add(0, smf.MetaTempo(100))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(480, gomidi.NoteOff(0, 60))
	tr.Close(0)

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(480)
	require.NoError(t, file.Add(tr))

	var buf bytes.Buffer
	_, err := file.WriteTo(&buf)
	require.NoError(t, err)

	song, err := midifile.Parse(&buf)
	require.NoError(t, err)
	return song
}

func newTestModel(t *testing.T) (Model, *midifile.Song, *bool) {
	song := testSong(t)
	cancelled := false
	m := NewModel("test.mid", song, NewMonitor(4), func() { cancelled = true }, theme.New(nil))
	return m, song, &cancelled
}

func TestModelTracksDispatches(t *testing.T) {
	m, song, _ := newTestModel(t)
	assert.Equal(t, "piano", m.tracks[0].name)
	assert.Equal(t, stateIdle, m.tracks[0].state)
	assert.Equal(t, 100.0, m.tempo)

	first := song.NextEvents(0)
	updated, cmd := m.Update(DispatchMsg{Track: 0, Events: first, Tempo: 100})
	m = updated.(Model)
	assert.NotNil(t, cmd)
	assert.Equal(t, statePlaying, m.tracks[0].state)
	assert.Equal(t, 1, m.tracks[0].notes)
	// note 60 lands on pad 60 % 64
	assert.NotEqual(t, [3]uint8{}, m.grid[7][4])

	updated, _ = m.Update(DispatchMsg{Track: 0, Events: song.NextEvents(0), Tempo: 100})
	m = updated.(Model)
	assert.Equal(t, stateEnded, m.tracks[0].state)
	assert.Equal(t, [3]uint8{}, m.grid[7][4])

	// out of range tracks only move the tempo
	updated, _ = m.Update(DispatchMsg{Track: 5, Tempo: 90})
	m = updated.(Model)
	assert.Equal(t, 90.0, m.tempo)
}

func TestModelQuitCancelsPlayback(t *testing.T) {
	m, _, cancelled := newTestModel(t)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = updated.(Model)
	assert.True(t, *cancelled)
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View())
}

func TestModelDone(t *testing.T) {
	m, _, cancelled := newTestModel(t)

	updated, cmd := m.Update(DoneMsg{Err: errors.New("track 0: send note 60 on channel 1: unplugged")})
	m = updated.(Model)
	assert.False(t, *cancelled)
	require.NotNil(t, cmd)

	view := m.View()
	assert.Contains(t, view, "DONE")
	assert.Contains(t, view, "piano")
	assert.Contains(t, view, "unplugged")

	// ticks stop once playback is done
	_, cmd = m.Update(tickMsg(time.Now()))
	assert.Nil(t, cmd)
}

func TestMonitorDropsWhenFull(t *testing.T) {
	mon := NewMonitor(1)
	mon.Observe(player.Dispatch{Track: 1})
	mon.Observe(player.Dispatch{Track: 2})

	msg := mon.listen()()
	assert.Equal(t, DispatchMsg{Track: 1}, msg)
	assert.Len(t, mon.updates, 0)
}
