package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/flightwatch/pkg/flight"
	"github.com/unklstewy/flightwatch/pkg/tracker"
)

// source is the part of the tracker the viewer needs.
type source interface {
	Mailbox() *tracker.Mailbox
	SetAirline(airline string)
	Airline() string
	Zone() string
	Stats() tracker.Stats
}

type snapshotMsg flight.Snapshot

// waitForSnapshot blocks on the tracker's mailbox for the next snapshot.
func waitForSnapshot(ctx context.Context, mb *tracker.Mailbox) tea.Cmd {
	return func() tea.Msg {
		snap, err := mb.Take(ctx)
		if err != nil {
			return nil
		}
		return snapshotMsg(snap)
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#8b2def", Dark: "#8b2def"})
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#969B86", Dark: "#696969"})
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF0000", Dark: "#FF0000"})
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"})
)

type model struct {
	ctx     context.Context
	src     source
	flights table.Model

	width  int
	height int

	last     flight.Snapshot
	received bool

	// editing is true while the user types an airline code.
	editing bool
	input   string
}

func newModel(ctx context.Context, src source) *model {
	styles := table.DefaultStyles()
	styles.Selected = lipgloss.NewStyle().Background(lipgloss.AdaptiveColor{Light: "#8b2def", Dark: "#8b2def"})

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "HDG", Width: 6},
			{Title: "CALLSIGN", Width: 10},
			{Title: "ROUTE", Width: 11},
			{Title: "SPD", Width: 5},
			{Title: "LAT", Width: 9},
			{Title: "LON", Width: 10},
			{Title: "ID", Width: 10},
		}),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(20),
		table.WithStyles(styles),
	)

	return &model{
		ctx:     ctx,
		src:     src,
		flights: t,
	}
}

func (m *model) Init() tea.Cmd {
	return waitForSnapshot(m.ctx, m.src.Mailbox())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) { //nolint:ireturn // required by interface
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 8; h > 3 {
			m.flights.SetHeight(h)
		}

	case tea.KeyMsg:
		if m.editing {
			return m, m.updateInput(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "/":
			m.editing = true
			m.input = ""
		case "A":
			m.src.SetAirline(flight.AllAirlines)
		}

	case snapshotMsg:
		m.last = flight.Snapshot(msg)
		m.received = true
		m.flights.SetRows(flightRows(m.last))
		return m, waitForSnapshot(m.ctx, m.src.Mailbox())
	}

	var cmd tea.Cmd
	m.flights, cmd = m.flights.Update(msg)
	return m, cmd
}

// updateInput edits the airline code being typed.
func (m *model) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
	case tea.KeyEnter:
		m.editing = false
		m.src.SetAirline(m.input)
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyRunes:
		if len(m.input) < 4 {
			m.input += strings.ToUpper(string(msg.Runes))
		}
	}
	return nil
}

func (m *model) View() string {
	var b strings.Builder

	airline := m.src.Airline()
	if airline == flight.AllAirlines {
		airline = "all airlines"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("flightwatch  %s  %s", m.src.Zone(), airline)))
	b.WriteString("\n")

	stats := m.src.Stats()
	switch {
	case !m.received:
		b.WriteString(statusStyle.Render("waiting for first snapshot..."))
	case m.last.IsEmpty():
		b.WriteString(statusStyle.Render(fmt.Sprintf("no flights  cycles %d  failures %d", stats.Cycles, stats.Failures)))
	default:
		b.WriteString(statusStyle.Render(fmt.Sprintf("%d flights  updated %s  cycles %d  failures %d",
			m.last.Len(), m.last.FetchedAt.Local().Format(time.TimeOnly), stats.Cycles, stats.Failures)))
	}
	if stats.LastError != "" {
		b.WriteString("  ")
		b.WriteString(errorStyle.Render("last error: " + stats.LastError))
	}
	b.WriteString("\n")

	b.WriteString(borderStyle.Render(m.flights.View()))
	b.WriteString("\n")

	if m.editing {
		b.WriteString(fmt.Sprintf("airline: %s_  (enter to apply, esc to cancel)", m.input))
	} else {
		b.WriteString(statusStyle.Render("/ filter by airline  A all airlines  q quit"))
	}
	return b.String()
}

// flightRows renders records in provider order.
func flightRows(snap flight.Snapshot) []table.Row {
	rows := make([]table.Row, 0, len(snap.Records))
	for _, rec := range snap.Records {
		rows = append(rows, table.Row{
			fmt.Sprintf("%s %03d", arrow(rec.RotationAngle), rec.RotationAngle),
			rec.Callsign,
			rec.Origin + "-" + rec.Destination,
			fmt.Sprintf("%.0f", rec.GroundSpeed),
			fmt.Sprintf("%.4f", rec.Latitude),
			fmt.Sprintf("%.4f", rec.Longitude),
			rec.ID,
		})
	}
	return rows
}

// arrows are the eight compass glyphs starting at north, clockwise.
var arrows = []string{"↑", "↗", "→", "↘", "↓", "↙", "←", "↖"}

// arrow returns the compass glyph closest to angle.
func arrow(angle int) string {
	a := ((angle % 360) + 360) % 360
	return arrows[((a*len(arrows)+180)/360)%len(arrows)]
}

var _ source = (*tracker.Tracker)(nil)
