package midifile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"midiplay/debug"
)

// Format types
const (
	FormatSingle     uint16 = 0 // one track
	FormatSync       uint16 = 1 // tracks played together
	FormatSequential uint16 = 2 // independent tracks played one after another
)

// Song is a decoded MIDI file plus the tempo shared by its tracks during playback
type Song struct {
	Header Header
	Tracks []*Track

	tempo Tempo
}

// Load reads and decodes a MIDI file
func Load(path string) (*Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Parse(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a complete MIDI file from r: the header chunk followed by
// exactly Header.TrackCount track chunks.
func Parse(r io.Reader) (*Song, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	s := &Song{Header: h, Tracks: make([]*Track, 0, h.TrackCount)}
	events := 0
	for i := 0; i < int(h.TrackCount); i++ {
		t, err := readTrack(r, i)
		if err != nil {
			return nil, err
		}
		if err := t.validate(i); err != nil {
			return nil, err
		}
		s.Tracks = append(s.Tracks, t)
		events += len(t.Events)
	}

	s.tempo.Store(DefaultTempo)
	debug.Log("load", "loaded %d tracks and %d events (format %d, division %d)", len(s.Tracks), events, h.Format, h.TimeDivision)
	return s, nil
}

// validate checks that the track ends with its only EndOfTrack event
func (t *Track) validate(index int) error {
	n := len(t.Events)
	if n == 0 || t.Events[n-1].Kind() != KindEndOfTrack {
		return &DecodeError{Track: index, Offset: int(t.Size), Err: ErrMissingEndOfTrack}
	}
	for i, e := range t.Events[:n-1] {
		if e.Kind() == KindEndOfTrack {
			return &DecodeError{Track: index, Offset: int(t.Size), Err: fmt.Errorf("%w: event %d of %d", ErrMissingEndOfTrack, i, n)}
		}
	}
	return nil
}

// NextEvents returns the next group of events sharing one absolute tick,
// starting right after the previously returned group. It returns nil once
// every event has been returned.
func (t *Track) NextEvents() []Event {
	start := t.next
	if start >= len(t.Events) {
		return nil
	}

	tick := t.Events[start].Tick()
	end := start + 1
	for end < len(t.Events) && t.Events[end].Tick() == tick {
		end++
	}

	t.next = end
	return t.Events[start:end]
}

// Reset rewinds the cursor so the next NextEvents starts at the first event
func (t *Track) Reset() {
	t.next = 0
}

// Done reports whether every event has been returned by NextEvents
func (t *Track) Done() bool {
	return t.next >= len(t.Events)
}

// NextEvents returns the next event group of the given track
func (s *Song) NextEvents(track int) []Event {
	if track < 0 || track >= len(s.Tracks) {
		return nil
	}
	return s.Tracks[track].NextEvents()
}

// Reset rewinds every track cursor for another playback pass
func (s *Song) Reset() {
	for _, t := range s.Tracks {
		t.Reset()
	}
}

// Tempo returns the current playback tempo in BPM
func (s *Song) Tempo() float64 {
	return s.tempo.Load()
}

// SetTempo changes the playback tempo for all tracks
func (s *Song) SetTempo(bpm float64) {
	s.tempo.Store(bpm)
}

// TicksToSeconds converts a tick count to seconds at the current tempo
func (s *Song) TicksToSeconds(delta uint32) float64 {
	return ticksToSeconds(uint64(delta), s.Tempo(), s.Header.TimeDivision)
}

// TicksToDuration is TicksToSeconds as a time.Duration
func (s *Song) TicksToDuration(delta uint32) time.Duration {
	return seconds(s.TicksToSeconds(delta))
}

func ticksToSeconds(ticks uint64, bpm float64, division uint16) float64 {
	return 60 * float64(ticks) / (bpm * float64(division))
}

func seconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// Info summarises the metadata of a song
type Info struct {
	Format       uint16
	TimeDivision uint16
	TrackNames   []string
	Copyright    string
	Tempo        float64
	TimeSig      *TimeSignature
	KeySig       *KeySignature
	Events       int
	Notes        int
}

// Info collects the first copyright, tempo, time and key signature found in
// the song along with every track's name.
func (s *Song) Info() Info {
	info := Info{
		Format:       s.Header.Format,
		TimeDivision: s.Header.TimeDivision,
		Tempo:        DefaultTempo,
		TrackNames:   make([]string, len(s.Tracks)),
	}

	tempoSet := false
	for i, t := range s.Tracks {
		info.Events += len(t.Events)
		for _, e := range t.Events {
			switch e := e.(type) {
			case *NoteOn:
				if e.Velocity > 0 {
					info.Notes++
				}
			case *TextEvent:
				switch e.Kind() {
				case KindTrackName:
					if info.TrackNames[i] == "" {
						info.TrackNames[i] = e.Text
					}
				case KindCopyrightNotice:
					if info.Copyright == "" {
						info.Copyright = e.Text
					}
				}
			case *SetTempo:
				if !tempoSet && e.Tick() == 0 {
					info.Tempo = e.BPM
					tempoSet = true
				}
			case *TimeSignature:
				if info.TimeSig == nil {
					info.TimeSig = e
				}
			case *KeySignature:
				if info.KeySig == nil {
					info.KeySig = e
				}
			}
		}
	}
	return info
}

type tempoChange struct {
	tick uint64
	bpm  float64
}

// Duration estimates the playing time of the song from the start tempo and
// every SetTempo event. Synchronous formats share one tempo map; format 2
// tracks are timed one after another with the tempo carried over.
func (s *Song) Duration() time.Duration {
	division := s.Header.TimeDivision
	if division == 0 {
		return 0
	}

	if s.Header.Format == FormatSequential {
		var total float64
		bpm := DefaultTempo
		for _, t := range s.Tracks {
			changes := tempoChanges(t)
			total += elapsed(lastTick(t), changes, bpm, division)
			if len(changes) > 0 {
				bpm = changes[len(changes)-1].bpm
			}
		}
		return seconds(total)
	}

	var changes []tempoChange
	var end uint64
	for _, t := range s.Tracks {
		changes = append(changes, tempoChanges(t)...)
		end = max(end, lastTick(t))
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].tick < changes[j].tick })
	return seconds(elapsed(end, changes, DefaultTempo, division))
}

func tempoChanges(t *Track) []tempoChange {
	var changes []tempoChange
	for _, e := range t.Events {
		if st, ok := e.(*SetTempo); ok {
			changes = append(changes, tempoChange{tick: st.Tick(), bpm: st.BPM})
		}
	}
	return changes
}

func lastTick(t *Track) uint64 {
	if len(t.Events) == 0 {
		return 0
	}
	return t.Events[len(t.Events)-1].Tick()
}

// elapsed returns the seconds from tick 0 to tick given sorted tempo changes
func elapsed(tick uint64, changes []tempoChange, bpm float64, division uint16) float64 {
	var sec float64
	var last uint64
	for _, c := range changes {
		if c.tick >= tick {
			break
		}
		sec += ticksToSeconds(c.tick-last, bpm, division)
		last, bpm = c.tick, c.bpm
	}
	return sec + ticksToSeconds(tick-last, bpm, division)
}
