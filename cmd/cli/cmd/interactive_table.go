package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"smartscan/internal/database"
	"smartscan/internal/handlers"
)

// KeyMap represents the key bindings for the interactive table
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Reload  key.Binding
	Details key.Binding
	Help    key.Binding
	Quit    key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Details: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
	}
}

// ScanLister fetches scan history for the table
type ScanLister interface {
	ListScans(limit int) (*handlers.ScanListResponse, error)
}

type reloadCompleteMsg struct {
	scans []database.Scan
	err   error
}

// InteractiveTable represents the interactive scan history browser
type InteractiveTable struct {
	table       table.Model
	scans       []database.Scan
	lister      ScanLister
	limit       int
	keys        KeyMap
	loading     bool
	spinner     spinner.Model
	err         error
	message     string
	showHelp    bool
	showDetails bool
	quitting    bool
	useColor    bool
}

var tableColumns = []table.Column{
	{Title: "ID", Width: 6},
	{Title: "TIMESTAMP", Width: 15},
	{Title: "CONTAINER ID", Width: 12},
	{Title: "STATUS", Width: 8},
	{Title: "CANDIDATES", Width: 10},
	{Title: "FILE", Width: 40},
}

// NewInteractiveTable creates a new interactive table
func NewInteractiveTable(scans []database.Scan, lister ScanLister, limit int, useColor bool) InteractiveTable {
	t := table.New(
		table.WithColumns(tableColumns),
		table.WithRows(scansToRows(scans)),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	if useColor {
		styles := table.DefaultStyles()
		styles.Header = styles.Header.
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			BorderBottom(true).
			Bold(false)
		styles.Selected = styles.Selected.
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Bold(false)
		t.SetStyles(styles)
	}

	return InteractiveTable{
		table:    t,
		scans:    scans,
		lister:   lister,
		limit:    limit,
		keys:     DefaultKeyMap(),
		spinner:  s,
		useColor: useColor,
	}
}

// Init initializes the interactive table
func (m InteractiveTable) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m InteractiveTable) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showDetails {
			if key.Matches(msg, m.keys.Cancel) || key.Matches(msg, m.keys.Quit) || key.Matches(msg, m.keys.Details) {
				m.showDetails = false
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Reload):
			if m.loading {
				return m, nil
			}
			m.loading = true
			m.message = ""
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.reload())

		case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
			m.table, cmd = m.table.Update(msg)
			return m, cmd

		case key.Matches(msg, m.keys.Details):
			if len(m.scans) > 0 {
				m.showDetails = true
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		return m, nil

	case reloadCompleteMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.message = fmt.Sprintf("Error reloading scans: %v", msg.err)
			return m, nil
		}
		m.scans = msg.scans
		m.table.SetRows(scansToRows(msg.scans))
		if m.table.Cursor() >= len(msg.scans) {
			m.table.SetCursor(0)
		}
		m.message = fmt.Sprintf("Loaded %d scans", len(msg.scans))
		return m, nil

	case spinner.TickMsg:
		if m.loading {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m InteractiveTable) reload() tea.Cmd {
	lister, limit := m.lister, m.limit
	return func() tea.Msg {
		resp, err := lister.ListScans(limit)
		if err != nil {
			return reloadCompleteMsg{err: err}
		}
		return reloadCompleteMsg{scans: resp.Scans}
	}
}

// View renders the interactive table
func (m InteractiveTable) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	if m.showHelp {
		b.WriteString(m.helpView())
		b.WriteString("\n")
	}

	if m.loading {
		b.WriteString(fmt.Sprintf("%s Loading...\n", m.spinner.View()))
	}

	if m.showDetails {
		b.WriteString(m.detailsView())
	} else {
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")

	if m.message != "" {
		color := lipgloss.Color("82")
		if m.err != nil {
			color = lipgloss.Color("196")
		}
		b.WriteString(m.styled(lipgloss.NewStyle().Foreground(color), m.message))
		b.WriteString("\n")
	}

	b.WriteString(m.statusLine())

	return b.String()
}

func (m InteractiveTable) styled(style lipgloss.Style, s string) string {
	if !m.useColor {
		return s
	}
	return style.Render(s)
}

// helpView returns the help view
func (m InteractiveTable) helpView() string {
	help := strings.Builder{}
	help.WriteString("Help:\n")
	help.WriteString("  ↑/k         - Move up\n")
	help.WriteString("  ↓/j         - Move down\n")
	help.WriteString("  r           - Reload scan history\n")
	help.WriteString("  enter       - View details\n")
	help.WriteString("  esc         - Back to list\n")
	help.WriteString("  ?           - Toggle help\n")
	help.WriteString("  q/ctrl+c    - Quit\n")
	return help.String()
}

func (m InteractiveTable) selected() *database.Scan {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.scans) {
		return nil
	}
	return &m.scans[i]
}

// detailsView renders the selected scan
func (m InteractiveTable) detailsView() string {
	scan := m.selected()
	if scan == nil {
		return "No scan selected"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scan %d\n", scan.ID)
	fmt.Fprintf(&b, "  File:         %s\n", scan.Filename)
	fmt.Fprintf(&b, "  Size:         %d bytes\n", scan.SizeBytes)
	fmt.Fprintf(&b, "  Timestamp:    %s\n", scan.Timestamp)
	fmt.Fprintf(&b, "  Container ID: %s\n", valueOr(scan.ContainerID, "-"))
	fmt.Fprintf(&b, "  Status:       %s\n", valueOr(scan.ValidationStatus, "none"))
	if len(scan.Candidates) > 0 {
		fmt.Fprintf(&b, "  Candidates:   %s\n", strings.Join(scan.Candidates, ", "))
	}
	if scan.Error != nil {
		fmt.Fprintf(&b, "  Error:        %s\n", *scan.Error)
	}
	if scan.RawTextPreview != nil {
		b.WriteString("  Text:\n")
		for _, line := range strings.Split(*scan.RawTextPreview, "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	return b.String()
}

// statusLine returns the status line
func (m InteractiveTable) statusLine() string {
	if m.showDetails {
		return "Details | Press esc to return to scan list"
	}

	if len(m.scans) == 0 {
		return "No scans found"
	}

	return fmt.Sprintf("Scan %d of %d | Press ? for help", m.table.Cursor()+1, len(m.scans))
}

// scansToRows converts scans to table rows
func scansToRows(scans []database.Scan) []table.Row {
	rows := make([]table.Row, len(scans))
	for i, scan := range scans {
		rows[i] = table.Row{
			strconv.Itoa(scan.ID),
			scan.Timestamp,
			valueOr(scan.ContainerID, "-"),
			valueOr(scan.ValidationStatus, "none"),
			strconv.Itoa(len(scan.Candidates)),
			scan.Filename,
		}
	}
	return rows
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// shouldUseInteractiveMode decides between the browser and a plain table. An explicit
// request always wins; otherwise only human-readable output on a terminal qualifies.
func shouldUseInteractiveMode(format string, quiet, explicit, isTTY bool) bool {
	if explicit {
		return true
	}
	return format == "table" && !quiet && isTTY
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// runInteractiveTable starts the interactive table
func runInteractiveTable(scans []database.Scan, lister ScanLister, limit int, useColor bool) error {
	p := tea.NewProgram(NewInteractiveTable(scans, lister, limit, useColor), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
