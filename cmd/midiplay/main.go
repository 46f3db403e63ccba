package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"midiplay/config"
	"midiplay/debug"
	"midiplay/midi"
	"midiplay/midifile"
	"midiplay/player"
	"midiplay/theme"
	"midiplay/tui"
)

const portTimeout = 3 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = listPorts()
	case "dump":
		err = dump(os.Args[2:])
	case "play":
		err = play(os.Args[2:])
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("midiplay - play Standard MIDI Files")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list         - List all MIDI ports")
	fmt.Println("  dump <file>  - Print the header and every event of a file")
	fmt.Println("  play <file>  - Play a file (play -h for options)")
}

func listPorts() error {
	fmt.Printf("(waiting up to %s...)\n", portTimeout)
	ports, err := midi.ListPorts(portTimeout)
	if errors.Is(err, midi.ErrPortTimeout) {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println("=== MIDI Input Ports ===")
	for i, p := range ports.In {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range ports.Out {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	return nil
}

func dump(args []string) error {
	if len(args) != 1 {
		return errors.New("dump: expected one file")
	}
	song, err := midifile.Load(args[0])
	if err != nil {
		return err
	}

	info := song.Info()
	fmt.Printf("format %d, %d tracks, %d ticks per quarter\n", info.Format, len(song.Tracks), info.TimeDivision)
	fmt.Printf("tempo %.2f bpm, %d events, %d notes, about %s\n",
		info.Tempo, info.Events, info.Notes, song.Duration().Round(time.Millisecond))
	if info.Copyright != "" {
		fmt.Printf("copyright %s\n", info.Copyright)
	}
	if info.TimeSig != nil {
		fmt.Printf("time %d/%d\n", info.TimeSig.Numerator, info.TimeSig.Denominator)
	}
	if info.KeySig != nil {
		fmt.Printf("key %s\n", info.KeySig.Name())
	}

	for i, t := range song.Tracks {
		fmt.Printf("\n=== Track %d: %s (%d bytes) ===\n", i, info.TrackNames[i], t.Size)
		fmt.Printf("%8s %6s  %s\n", "tick", "delta", "event")
		for _, e := range t.Events {
			fmt.Println(e.String())
		}
	}
	return nil
}

func play(args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	portName := fs.String("port", "", "output port name (exact, or a case-insensitive substring)")
	launchpad := fs.Bool("launchpad", false, "light notes on a connected Launchpad")
	useTUI := fs.Bool("tui", false, "show the playback monitor")
	debugLog := fs.Bool("debug", false, "write "+debug.DefaultPath())
	tempo := fs.Float64("tempo", 0, "start tempo in BPM until the file sets one")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("play: expected one file")
	}
	path := fs.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *portName != "" {
		cfg.Output.PortName = *portName
	}
	if *launchpad {
		cfg.Output.Launchpad = true
	}
	if *debugLog {
		cfg.Debug = true
	}
	if *tempo > 0 {
		cfg.Playback.StartTempo = *tempo
	}

	if cfg.Debug {
		if err := debug.Enable(); err != nil {
			return err
		}
		defer debug.Disable()
	}

	song, err := midifile.Load(path)
	if err != nil {
		return err
	}

	palette := theme.Default()
	if cfg.UI.Palette != "" {
		if palette, err = theme.LoadGPL(cfg.UI.Palette); err != nil {
			return err
		}
	}

	sinks, closeSinks, err := openSinks(cfg, palette)
	if err != nil {
		return err
	}
	defer closeSinks()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []player.Option{
		player.WithSpinThreshold(time.Duration(cfg.Playback.SpinThresholdMs) * time.Millisecond),
		player.WithStartTempo(cfg.Playback.StartTempo),
	}

	if !*useTUI {
		fmt.Printf("Playing %s (%s), ctrl+c to stop\n", path, song.Duration().Round(time.Second))
		return ignoreCancel(player.New(sinks, opts...).Play(ctx, song))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mon := tui.NewMonitor(256)
	pl := player.New(sinks, append(opts, player.WithObserver(mon.Observe))...)
	m := tui.NewModel(filepath.Base(path), song, mon, cancel, theme.New(palette))
	prog := tea.NewProgram(m, tea.WithAltScreen())

	done := make(chan error, 1)
	go func() {
		err := pl.Play(ctx, song)
		prog.Send(tui.DoneMsg{Err: err})
		done <- err
	}()

	if _, err := prog.Run(); err != nil {
		cancel()
		<-done
		return err
	}
	cancel()
	return ignoreCancel(<-done)
}

// openSinks opens every configured output. The returned func releases
// sounding notes and clears the Launchpad.
func openSinks(cfg *config.Config, palette *theme.Palette) (midi.MultiSink, func(), error) {
	if cfg.Output.PortName == "" && !cfg.Output.Launchpad {
		return nil, nil, errors.New("no output: pass --port or --launchpad, or set output in the config")
	}

	ports, err := midi.ListPorts(portTimeout)
	if err != nil {
		return nil, nil, err
	}

	var sinks midi.MultiSink
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				debug.Log("port", "close: %v", err)
			}
		}
	}

	if cfg.Output.PortName != "" {
		out, err := ports.FindOut(cfg.Output.PortName)
		if err != nil {
			return nil, nil, err
		}
		sink, err := midi.OpenPortSink(out)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, sink)
		closers = append(closers, sink.AllNotesOff)
	}

	if cfg.Output.Launchpad {
		out, err := ports.FindLaunchpad()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		lp, err := midi.OpenLaunchpadSink(midi.ModelFor(out.String()), out, palette)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, lp)
		closers = append(closers, lp.Close)
	}

	return sinks, closeAll, nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
