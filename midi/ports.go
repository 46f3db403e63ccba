package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrPortTimeout is returned when the MIDI driver does not answer in time
var ErrPortTimeout = errors.New("midi: timed out listing ports (driver hung?)")

// ErrNoPort is returned when no output port matches a name
var ErrNoPort = errors.New("midi: no matching output port")

// Ports is a snapshot of the available MIDI ports
type Ports struct {
	In  []drivers.In
	Out []drivers.Out
}

// ListPorts queries the driver for its ports. CoreMIDI can hang, so the
// query runs in the background and is abandoned after timeout.
func ListPorts(timeout time.Duration) (Ports, error) {
	ch := make(chan Ports, 1)
	go func() {
		ch <- Ports{
			In:  gomidi.GetInPorts(),
			Out: gomidi.GetOutPorts(),
		}
	}()

	select {
	case ports := <-ch:
		return ports, nil
	case <-time.After(timeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return Ports{}, ErrPortTimeout
	}
}

// FindOut returns the output port named name. An exact match wins;
// otherwise the first port whose name contains name, ignoring case.
func (p Ports) FindOut(name string) (drivers.Out, error) {
	names := make([]string, len(p.Out))
	for i, port := range p.Out {
		names[i] = port.String()
	}
	idx := matchPort(names, name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoPort, name)
	}
	return p.Out[idx], nil
}

// FindLaunchpad returns the first output port that looks like a Launchpad
func (p Ports) FindLaunchpad() (drivers.Out, error) {
	for _, port := range p.Out {
		if isLaunchpad(port.String()) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("%w: launchpad", ErrNoPort)
}

func matchPort(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	want := strings.ToLower(name)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), want) {
			return i
		}
	}
	return -1
}

// The X exposes a DAW port next to the MIDI one; only the MIDI port takes LED data
func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && !strings.Contains(name, "daw")
}

// ModelFor guesses the Launchpad model from its port name
func ModelFor(name string) LaunchpadModel {
	if strings.Contains(strings.ToLower(name), "mk2") {
		return LaunchpadMK2
	}
	return LaunchpadX
}
