package midifile

import (
	"math"
	"sync/atomic"
)

// DefaultTempo is the tempo in BPM until a SetTempo event is played
const DefaultTempo = 120.0

// Tempo holds a BPM value shared by all tracks of a playing song. Any track
// may store a new value; the last store wins and loads always see a whole
// value. The zero Tempo reads as DefaultTempo.
type Tempo struct {
	bits atomic.Uint64
}

// Load returns the current BPM
func (t *Tempo) Load() float64 {
	bits := t.bits.Load()
	if bits == 0 {
		return DefaultTempo
	}
	return math.Float64frombits(bits)
}

// Store sets the BPM. Non-positive values are ignored.
func (t *Tempo) Store(bpm float64) {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return
	}
	t.bits.Store(math.Float64bits(bpm))
}
