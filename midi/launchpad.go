package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"midiplay/debug"
	"midiplay/theme"
)

// LaunchpadModel selects the SysEx dialect of a Novation Launchpad
type LaunchpadModel int

const (
	LaunchpadX LaunchpadModel = iota
	LaunchpadMK2
)

// Novation SysEx header without the F0 framing; the last byte is the model id
func (m LaunchpadModel) sysexHeader() []byte {
	if m == LaunchpadMK2 {
		return []byte{0x00, 0x20, 0x29, 0x02, 0x18}
	}
	return []byte{0x00, 0x20, 0x29, 0x02, 0x0C}
}

// LaunchpadSink lights a pad for every sounding note. The note number picks
// the pad on the 8x8 grid, the velocity picks its colour from the palette.
type LaunchpadSink struct {
	model   LaunchpadModel
	send    Sender
	palette *theme.Palette

	// lit counts sounding notes per pad so overlapping notes keep it on
	lit [64]int
}

// NewLaunchpadSink wraps an opened sender and puts the device in a mode
// where note messages address the pads.
func NewLaunchpadSink(model LaunchpadModel, send Sender, palette *theme.Palette) (*LaunchpadSink, error) {
	if palette == nil {
		palette = theme.Default()
	}
	lp := &LaunchpadSink{model: model, send: send, palette: palette}

	switch model {
	case LaunchpadMK2:
		// Session layout
		if err := lp.sysex(0x22, 0x00); err != nil {
			return nil, err
		}
	default:
		// Programmer mode: F0 00 20 29 02 0C 00 7F F7
		if err := lp.sysex(0x00, 0x7F); err != nil {
			return nil, err
		}
		// Enable external LED feedback: F0 00 20 29 02 0C 0A 01 01 F7
		if err := lp.sysex(0x0A, 0x01, 0x01); err != nil {
			return nil, err
		}
	}
	return lp, lp.ClearLEDs()
}

// OpenLaunchpadSink opens the port and configures the Launchpad on it
func OpenLaunchpadSink(model LaunchpadModel, port drivers.Out, palette *theme.Palette) (*LaunchpadSink, error) {
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, err
	}
	debug.Log("port", "opened launchpad %s", port.String())
	return NewLaunchpadSink(model, send, palette)
}

// SendNote lights or clears the pad for note. The channel is ignored: pads
// are addressed on the static LED channel.
func (lp *LaunchpadSink) SendNote(note, velocity, channel uint8) error {
	idx := int(note) % len(lp.lit)
	color := uint8(ColorOff)
	if velocity > 0 {
		lp.lit[idx]++
		color = mapRGBToLaunchpad(lp.palette.Velocity(velocity))
	} else {
		if lp.lit[idx] > 0 {
			lp.lit[idx]--
		}
		if lp.lit[idx] > 0 {
			// another note still holds the pad
			return nil
		}
	}

	debug.LogEvery(100, "lp-send", "pad=%d color=%d", idx, color)
	return lp.setLED(idx/8, idx%8, color)
}

// SetAllLEDs sets every pad to one palette colour
func (lp *LaunchpadSink) SetAllLEDs(color uint8) error {
	if lp.model == LaunchpadMK2 {
		return lp.sysex(0x0E, color)
	}
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			if row == 8 && col == 8 {
				continue // no LED at 8,8
			}
			if err := lp.setLED(row, col, color); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClearLEDs turns every pad off
func (lp *LaunchpadSink) ClearLEDs() error {
	lp.lit = [64]int{}
	return lp.SetAllLEDs(ColorOff)
}

// Close clears the pads
func (lp *LaunchpadSink) Close() error {
	return lp.ClearLEDs()
}

func (lp *LaunchpadSink) setLED(row, col int, color uint8) error {
	return lp.send(gomidi.NoteOn(ChannelStatic, rowColToNote(row, col), color))
}

func (lp *LaunchpadSink) sysex(data ...byte) error {
	msg := append(lp.model.sysexHeader(), data...)
	return lp.send(gomidi.SysEx(msg))
}

// Launchpad color palette (velocity values 0-127)
const (
	ColorOff   = 0
	ColorRed   = 5
	ColorGreen = 21
	ColorWhite = 3

	// LED channels
	ChannelStatic uint8 = 0 // solid color
	ChannelFlash  uint8 = 1 // flashing A/B alternating
	ChannelPulse  uint8 = 2 // pulsing (fades)
)

// mapRGBToLaunchpad finds the nearest Launchpad palette color for an RGB value
func mapRGBToLaunchpad(rgb theme.RGB) uint8 {
	// Launchpad palette - approximate RGB values for key colors
	// Format: {velocity, R, G, B}
	palette := [][4]uint8{
		{0, 0, 0, 0},         // off
		{5, 255, 0, 0},       // red
		{6, 255, 80, 80},     // bright red
		{7, 180, 60, 60},     // dim red
		{9, 255, 100, 0},     // orange
		{11, 180, 80, 40},    // dim orange
		{13, 255, 200, 0},    // yellow
		{17, 0, 180, 0},      // green
		{19, 0, 100, 0},      // dim green
		{21, 0, 255, 0},      // bright green
		{37, 0, 200, 200},    // cyan
		{43, 40, 60, 120},    // dim blue
		{45, 0, 100, 255},    // blue
		{47, 80, 150, 255},   // bright blue
		{49, 150, 0, 200},    // purple
		{53, 255, 80, 180},   // pink
		{78, 100, 100, 255},  // light blue
		{84, 255, 150, 50},   // bright orange
		{87, 150, 255, 100},  // lime
		{97, 180, 180, 60},   // dim yellow
		{119, 255, 255, 255}, // white
	}

	bestMatch := uint8(0)
	bestDist := 999999

	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])

	for _, p := range palette[1:] {
		pr, pg, pb := int(p[1]), int(p[2]), int(p[3])
		// Simple Euclidean distance
		dist := (r-pr)*(r-pr) + (g-pg)*(g-pg) + (b-pb)*(b-pb)
		if dist < bestDist {
			bestDist = dist
			bestMatch = p[0]
		}
	}

	return bestMatch
}

// Launchpad note mapping
// 8x8 Grid:  Row 0 (bottom) = notes 11-18, Row 7 = notes 81-88
// Side col:  Col 8 (right side scene buttons) = notes 19, 29, 39, 49, 59, 69, 79, 89
// Top row:   Row 8 = notes 91-98 (104-111 on the MK2, addressed by CC)

func rowColToNote(row, col int) uint8 {
	if row == 8 {
		return uint8(91 + col)
	}
	return uint8((row+1)*10 + col + 1)
}
