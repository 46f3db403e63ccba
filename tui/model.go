package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"midiplay/midifile"
	"midiplay/theme"
	"midiplay/widgets"
)

const (
	refreshInterval = 100 * time.Millisecond
	progressWidth   = 40
)

type trackState int

const (
	stateIdle trackState = iota
	stateWaiting
	statePlaying
	stateEnded
)

type trackView struct {
	name     string
	state    trackState
	lastNote string
	notes    int
}

type tickMsg time.Time

// Model is the playback monitor
type Model struct {
	Theme   *theme.Theme
	title   string
	info    midifile.Info
	length  time.Duration
	monitor *Monitor
	cancel  context.CancelFunc

	tracks   []trackView
	tempo    float64
	started  time.Time
	now      time.Time
	grid     [8][8][3]uint8
	done     bool
	err      error
	quitting bool
}

// NewModel builds a monitor for song. cancel stops playback when the user quits.
func NewModel(title string, song *midifile.Song, monitor *Monitor, cancel context.CancelFunc, th *theme.Theme) Model {
	info := song.Info()
	tracks := make([]trackView, len(song.Tracks))
	for i := range tracks {
		tracks[i].name = fmt.Sprintf("track %d", i)
		if i < len(info.TrackNames) && info.TrackNames[i] != "" {
			tracks[i].name = info.TrackNames[i]
		}
	}
	now := time.Now()
	return Model{
		Theme:   th,
		title:   title,
		info:    info,
		length:  song.Duration(),
		monitor: monitor,
		cancel:  cancel,
		tracks:  tracks,
		tempo:   info.Tempo,
		started: now,
		now:     now,
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.monitor.listen(), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.now = time.Time(msg)
		return m, tick()

	case DispatchMsg:
		m.apply(msg)
		return m, m.monitor.listen()

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) apply(d DispatchMsg) {
	m.tempo = d.Tempo
	if d.Track < 0 || d.Track >= len(m.tracks) {
		return
	}
	tv := &m.tracks[d.Track]
	tv.state = stateWaiting

	for _, e := range d.Events {
		switch e := e.(type) {
		case *midifile.NoteOn:
			idx := int(e.Note) % 64
			if e.Velocity == 0 {
				m.grid[idx/8][idx%8] = [3]uint8{}
				continue
			}
			tv.state = statePlaying
			tv.notes++
			tv.lastNote = fmt.Sprintf("ch%-2d %3d vel %3d", e.Channel(), e.Note, e.Velocity)
			m.grid[idx/8][idx%8] = m.Theme.VelocityRGB(e.Velocity)
		case *midifile.NoteOff:
			idx := int(e.Note) % 64
			m.grid[idx/8][idx%8] = [3]uint8{}
		case *midifile.EndOfTrack:
			tv.state = stateEnded
		}
	}
}

func (m Model) symbol(s trackState) rune {
	switch s {
	case stateWaiting:
		return m.Theme.Symbols.TrackWaiting
	case statePlaying:
		return m.Theme.Symbols.TrackPlaying
	case stateEnded:
		return m.Theme.Symbols.TrackEnded
	}
	return m.Theme.Symbols.TrackIdle
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	activeStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())
	errStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	state := "PLAY"
	if m.done {
		state = "DONE"
	}
	header := headerStyle.Render(fmt.Sprintf("midiplay  %s  %s  %6.2fbpm  format %d  %d tpq",
		state, m.title, m.tempo, m.info.Format, m.info.TimeDivision))

	elapsed := m.now.Sub(m.started)
	var frac float64
	if m.length > 0 {
		frac = float64(elapsed) / float64(m.length)
	}
	bar := widgets.RenderProgress(frac, progressWidth, m.Theme.Symbols.BarFull, m.Theme.Symbols.BarEmpty)
	progress := fmt.Sprintf("%s %s / %s", fgStyle.Render(bar),
		elapsed.Truncate(time.Second), m.length.Truncate(time.Second))

	var tracks strings.Builder
	for i, tv := range m.tracks {
		style := dimStyle
		if tv.state == statePlaying {
			style = activeStyle
		}
		name := lipgloss.NewStyle().Foreground(m.Theme.TrackColor(i)).Render(fmt.Sprintf("%-24s", tv.name))
		fmt.Fprintf(&tracks, "%s %s %5d  %s\n",
			style.Render(string(m.symbol(tv.state))), name, tv.notes, dimStyle.Render(tv.lastNote))
	}

	help := dimStyle.Render(widgets.RenderKeyHelp([]widgets.KeySection{
		{Keys: []widgets.KeyBinding{{Key: "q / ctrl+c", Desc: "stop playback"}}},
	}))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(progress)
	out.WriteString("\n\n")
	out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tracks.String(), "   ", widgets.RenderPadGrid(m.grid)))
	out.WriteString("\n\n")
	out.WriteString(help)

	if m.err != nil {
		out.WriteString("\n")
		out.WriteString(errStyle.Render(m.err.Error()))
	}

	return out.String()
}
