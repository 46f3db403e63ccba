package player

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"midiplay/debug"
	"midiplay/midifile"
)

// groups a track may queue ahead of its sender before the timing loop blocks
const outboxSize = 64

// Dispatch describes one event group handed to the sink
type Dispatch struct {
	Track  int
	Tick   uint64
	Events []midifile.Event
	// Tempo is the song tempo after the group was applied.
	Tempo float64
	At    time.Time
}

// Option configures a Player
type Option func(*Player)

// WithObserver registers a callback run by the track goroutines after each
// dispatch. It must return quickly.
func WithObserver(fn func(Dispatch)) Option {
	return func(p *Player) { p.observer = fn }
}

// WithSpinThreshold changes the wait below which the player busy-polls the
// clock instead of sleeping. Zero disables spinning.
func WithSpinThreshold(d time.Duration) Option {
	return func(p *Player) { p.spinThreshold = d }
}

// WithStartTempo sets the tempo a song starts at before any SetTempo event.
func WithStartTempo(bpm float64) Option {
	return func(p *Player) {
		if bpm > 0 {
			p.startTempo = bpm
		}
	}
}

// Player replays songs against a Sink in real time
type Player struct {
	sink          *lockedSink
	observer      func(Dispatch)
	spinThreshold time.Duration
	startTempo    float64
}

// New creates a player that sends notes to sink
func New(sink Sink, opts ...Option) *Player {
	p := &Player{
		sink:          &lockedSink{sink: sink},
		spinThreshold: SpinThreshold,
		startTempo:    midifile.DefaultTempo,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play rewinds song and plays it until every track has ended or ctx is done.
// Format 0 and 1 tracks play concurrently, format 2 tracks one after
// another. The shared song tempo is last-write-wins: a SetTempo on any track
// changes the speed of every track from its next wait on.
//
// Sink errors do not stop playback; they are returned together once all
// tracks have finished. Cancelling ctx releases any notes still sounding.
func (p *Player) Play(ctx context.Context, song *midifile.Song) error {
	song.Reset()
	song.SetTempo(p.startTempo)

	errs := &errList{}
	var err error

	debug.Log("play", "start format=%d tracks=%d tempo=%.2f", song.Header.Format, len(song.Tracks), song.Tempo())

	switch song.Header.Format {
	case midifile.FormatSequential:
		for i := range song.Tracks {
			if err = p.playTrack(ctx, song, i, errs); err != nil {
				break
			}
		}
	default:
		var g errgroup.Group
		for i := range song.Tracks {
			i := i
			g.Go(func() error {
				return p.playTrack(ctx, song, i, errs)
			})
		}
		err = g.Wait()
	}

	debug.Log("play", "done err=%v", err)
	return multierr.Append(err, errs.get())
}

type trackState int

const (
	stateIdle trackState = iota
	stateWaiting
	stateDispatching
	stateEnded
)

// playTrack runs one track's state machine to its end. The only error it
// returns is the context's.
func (p *Player) playTrack(ctx context.Context, song *midifile.Song, index int, errs *errList) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	out := make(chan []midifile.Event, outboxSize)
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		p.sendLoop(ctx, index, out, errs)
	}()

	var (
		err      error
		group    []midifile.Event
		deadline = time.Now()
		state    = stateIdle
	)

	for state != stateEnded {
		if err = ctx.Err(); err != nil {
			break
		}

		switch state {
		case stateIdle:
			group = song.NextEvents(index)
			state = stateWaiting
			if group == nil {
				state = stateEnded
			}

		case stateWaiting:
			// Deadlines chain from the previous one so sleep overshoot does not accumulate
			deadline = deadline.Add(song.TicksToDuration(group[0].Delta()))
			if err = Wait(ctx, time.Until(deadline), p.spinThreshold); err != nil {
				state = stateEnded
				break
			}
			state = stateDispatching

		case stateDispatching:
			select {
			case out <- group:
			case <-ctx.Done():
				err = ctx.Err()
				state = stateEnded
				continue
			}
			p.applyTempo(song, group)
			p.observe(index, song, group)

			last := group[len(group)-1]
			group = song.NextEvents(index)
			state = stateWaiting
			if group == nil || last.Kind() == midifile.KindEndOfTrack {
				state = stateEnded
			}
		}
	}

	close(out)
	<-sent
	debug.Log("play", "track %d ended err=%v", index, err)
	return err
}

func (p *Player) applyTempo(song *midifile.Song, group []midifile.Event) {
	for _, e := range group {
		if st, ok := e.(*midifile.SetTempo); ok {
			song.SetTempo(st.BPM)
			debug.Log("tempo", "tick %d: %.2f bpm", st.Tick(), st.BPM)
		}
	}
}

func (p *Player) observe(index int, song *midifile.Song, group []midifile.Event) {
	if p.observer == nil {
		return
	}
	p.observer(Dispatch{
		Track:  index,
		Tick:   group[0].Tick(),
		Events: group,
		Tempo:  song.Tempo(),
		At:     time.Now(),
	})
}

type noteKey struct {
	channel, note uint8
}

// sendLoop forwards note events of one track to the sink in file order.
// When playback is cancelled it releases the notes left sounding.
func (p *Player) sendLoop(ctx context.Context, index int, out <-chan []midifile.Event, errs *errList) {
	sounding := make(map[noteKey]struct{})

	for group := range out {
		for _, e := range group {
			switch e := e.(type) {
			case *midifile.NoteOn:
				key := noteKey{e.Channel(), e.Note}
				if e.Velocity == 0 {
					delete(sounding, key)
				} else {
					sounding[key] = struct{}{}
				}
				p.send(index, e.Note, e.Velocity, e.Channel(), errs)
			case *midifile.NoteOff:
				delete(sounding, noteKey{e.Channel(), e.Note})
				p.send(index, e.Note, 0, e.Channel(), errs)
			}
		}
	}

	if ctx.Err() == nil {
		return
	}
	for key := range sounding {
		p.send(index, key.note, 0, key.channel, errs)
	}
}

func (p *Player) send(index int, note, velocity, channel uint8, errs *errList) {
	if err := p.sink.SendNote(note, velocity, channel); err != nil {
		debug.Log("dispatch", "track=%d ch=%d note=%d vel=%d failed: %v", index, channel, note, velocity, err)
		errs.add(fmt.Errorf("track %d: send note %d on channel %d: %w", index, note, channel, err))
	}
}

type errList struct {
	mu  sync.Mutex
	err error
}

func (l *errList) add(err error) {
	l.mu.Lock()
	l.err = multierr.Append(l.err, err)
	l.mu.Unlock()
}

func (l *errList) get() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
