// Package monitor implements a terminal view that follows the values of one
// bank of a register image.
package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/device"
	"github.com/modbus-tools/mbshm-go/pkg/inspect"
)

// DefaultInterval is the refresh period.
const DefaultInterval = 250 * time.Millisecond

const (
	maxChanges       = 200
	changePanelWidth = 44
)

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("240"))

var titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
	Light: "#909090",
	Dark:  "#626262",
}).Padding(0, 1)

type tickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the bubbletea model of the monitor. It only reads the image; no
// change header is consumed.
type Model struct {
	insp      *inspect.Inspector
	formatter *inspect.Formatter
	interval  time.Duration

	banks []address.Bank
	bank  int

	table   table.Model
	last    map[address.Address]string
	changes []string
	err     error

	now func() time.Time
}

// New creates a monitor for d showing the first non-empty bank.
func New(d *device.Device, f *inspect.Formatter, interval time.Duration) Model {
	if f == nil {
		f = inspect.NewFormatter()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	var banks []address.Bank
	for _, b := range address.Banks {
		if d.Count(b) > 0 {
			banks = append(banks, b)
		}
	}

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Address", Width: 10},
			{Title: "Value", Width: 12},
			{Title: "", Width: 2},
		}),
		table.WithFocused(true),
		table.WithHeight(16),
	)
	t.SetStyles(s)

	m := Model{
		insp:      inspect.NewInspector(d),
		formatter: f,
		interval:  interval,
		banks:     banks,
		table:     t,
		now:       time.Now,
	}
	m.refresh()
	return m
}

// Bank returns the bank on display.
func (m Model) Bank() (address.Bank, bool) {
	if len(m.banks) == 0 {
		return address.BankUnknown, false
	}
	return m.banks[m.bank], true
}

// Changes returns the change lines, oldest first.
func (m Model) Changes() []string {
	return m.changes
}

// Rows returns the table rows.
func (m Model) Rows() []table.Row {
	return m.table.Rows()
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.interval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-6, 3))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab", "right":
			m.switchBank(1)
			return m, nil
		case "shift+tab", "left":
			m.switchBank(-1)
			return m, nil
		case "x":
			m.formatter.Hex = !m.formatter.Hex
			m.last = nil
			m.refresh()
			return m, nil
		case "c":
			m.changes = nil
			return m, nil
		}

	case tickMsg:
		m.refresh()
		return m, tickCmd(m.interval)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) switchBank(step int) {
	if len(m.banks) < 2 {
		return
	}
	m.bank = (m.bank + step + len(m.banks)) % len(m.banks)
	m.last = nil
	m.table.SetCursor(0)
	m.refresh()
}

// refresh reads the bank and records the elements that differ from the
// previous read.
func (m *Model) refresh() {
	bank, ok := m.Bank()
	if !ok {
		m.table.SetRows(nil)
		return
	}
	cells, err := m.insp.ReadRange(bank, 0, m.insp.Device().Count(bank))
	m.err = err
	if err != nil {
		return
	}

	if m.last == nil {
		m.last = make(map[address.Address]string, len(cells))
	}
	ts := m.now().Format("15:04:05.000")

	rows := make([]table.Row, 0, len(cells))
	for _, c := range cells {
		addr := m.formatter.FormatAddress(c.Address)
		v := m.formatter.FormatValue(c.Value)
		mark := ""
		if old, seen := m.last[c.Address]; seen && old != v {
			mark = "*"
			m.appendChange(fmt.Sprintf("%s %s %s -> %s", ts, addr, old, v))
		}
		m.last[c.Address] = v
		rows = append(rows, table.Row{addr, v, mark})
	}
	m.table.SetRows(rows)
}

func (m *Model) appendChange(s string) {
	m.changes = append(m.changes, s)
	if len(m.changes) > maxChanges {
		m.changes = m.changes[len(m.changes)-maxChanges:]
	}
}

func (m Model) title() string {
	d := m.insp.Device()
	name := d.Prefix()
	if d.Name() != "" && d.Name() != name {
		name += " (" + d.Name() + ")"
	}
	bank, ok := m.Bank()
	if !ok {
		return fmt.Sprintf("%s: no banks", name)
	}
	return fmt.Sprintf("%s  %s [%d/%d]  %s  heartbeat %d",
		name, bank, m.bank+1, len(m.banks), d.Block(bank).Header(), d.Heartbeat())
}

func (m Model) changeView() string {
	lines := m.changes
	if h := m.table.Height(); len(lines) > h {
		lines = lines[len(lines)-h:]
	}
	if len(lines) == 0 {
		return "no changes"
	}
	return strings.Join(lines, "\n")
}

func (m Model) View() string {
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		baseStyle.Render(m.table.View()),
		baseStyle.Width(changePanelWidth).Height(m.table.Height()+2).Render(m.changeView()),
	)
	parts := []string{titleStyle.Render(m.title()), body}
	if m.err != nil {
		parts = append(parts, errorStyle.Render("Error: "+m.err.Error()))
	}
	parts = append(parts, helpStyle.Render("tab - next bank • x - hex • c - clear • q - quit"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Run shows the monitor until the user quits.
func Run(d *device.Device, f *inspect.Formatter, interval time.Duration) error {
	_, err := tea.NewProgram(New(d, f, interval), tea.WithAltScreen()).Run()
	return err
}
