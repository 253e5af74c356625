/*
Package monitortui - operator dashboard for the deadline monitor (A7)

Model polls the same Process table the deadline monitor (C15) classifies
and renders the current overdue/urgent/reminder board, refreshing on a
timer so an operator can leave it open on a second screen.
*/
package monitortui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gorm.io/gorm"

	"fizko/internal/models"
)

const refreshInterval = 15 * time.Second

// Row is one process rendered on the board.
type Row struct {
	CompanyName string
	ProcessType models.ProcessType
	Period      string
	DueDate     time.Time
	Severity    string // "overdue", "urgent", "reminder"
	Status      models.ProcessStatus
}

type tickMsg time.Time

type refreshedMsg struct {
	rows []Row
	err  error
}

// Model is the Bubbletea model backing the monitor dashboard.
type Model struct {
	db       *gorm.DB
	width    int
	height   int
	loading  bool
	err      error
	rows     []Row
	asOf     time.Time
	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
}

// New returns a Model that polls db for deadline rows.
func New(db *gorm.DB) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorPrimary)
	return Model{db: db, spinner: sp, loading: true}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh, tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) }))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.loading = true
			cmds = append(cmds, m.refresh)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 4
		footerHeight := 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.viewport.SetContent(m.renderRows())

	case tickMsg:
		m.loading = true
		cmds = append(cmds, m.refresh)
		cmds = append(cmds, tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) }))

	case refreshedMsg:
		m.loading = false
		m.err = msg.err
		m.rows = msg.rows
		m.asOf = time.Now()
		if m.ready {
			m.viewport.SetContent(m.renderRows())
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.ready {
		return "initializing...\n"
	}

	header := HeaderStyle.Render("COMPLIANCE DEADLINE MONITOR")
	var sub string
	if m.loading {
		sub = SubHeaderStyle.Render(m.spinner.View() + " refreshing...")
	} else if m.err != nil {
		sub = severityStyle("overdue").Render(fmt.Sprintf("scan failed: %v", m.err))
	} else {
		sub = SubHeaderStyle.Render(fmt.Sprintf("%d process(es) need attention — as of %s", len(m.rows), m.asOf.Format("15:04:05")))
	}

	footer := FooterStyle.Render("q quit  ·  r refresh  ·  auto-refresh every 15s")

	return lipgloss.JoinVertical(lipgloss.Left, header, sub, "", m.viewport.View(), footer)
}

func (m Model) renderRows() string {
	if len(m.rows) == 0 {
		return SubHeaderStyle.Render("nothing overdue, urgent or due soon.")
	}

	var b strings.Builder
	b.WriteString(ColumnHeaderStyle.Render(fmt.Sprintf("%-28s %-10s %-18s %-3s %-12s %s", "COMPANY", "TYPE", "PERIOD", "", "DUE DATE", "STATUS")))
	b.WriteString("\n")
	for _, r := range m.rows {
		line := fmt.Sprintf("%-28s %-10s %-18s %-3s %-12s %s",
			truncate(r.CompanyName, 28),
			r.ProcessType,
			r.Period,
			severityGlyph(r.Severity),
			r.DueDate.Format("2006-01-02"),
			r.Status,
		)
		b.WriteString(severityStyle(r.Severity).Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func severityGlyph(s string) string {
	switch s {
	case "overdue":
		return "!!!"
	case "urgent":
		return "!!"
	default:
		return "!"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// refresh loads the current board: every active/paused Process joined to
// its Company, classified the same way the deadline monitor (C15) does.
func (m Model) refresh() tea.Msg {
	var processes []models.Process
	err := m.db.
		Where("status IN ?", []models.ProcessStatus{models.ProcessStatusActive, models.ProcessStatusPaused}).
		Order("due_date asc").
		Find(&processes).Error
	if err != nil {
		return refreshedMsg{err: err}
	}

	now := time.Now()
	rows := make([]Row, 0, len(processes))
	for _, p := range processes {
		severity, ok := classify(p.DueDate, now)
		if !ok {
			continue
		}
		var company models.Company
		name := p.CompanyID.String()
		if err := m.db.First(&company, "id = ?", p.CompanyID).Error; err == nil {
			name = company.Name
		}
		rows = append(rows, Row{
			CompanyName: name,
			ProcessType: p.ProcessType,
			Period:      p.Period,
			DueDate:     p.DueDate,
			Severity:    severity,
			Status:      p.Status,
		})
	}
	return refreshedMsg{rows: rows}
}

// classify mirrors process.classify's band thresholds; duplicated because
// that one is package-private by design (see internal/reports/pdf.go).
func classify(dueDate, now time.Time) (string, bool) {
	if dueDate.Before(now) {
		return "overdue", true
	}
	if !dueDate.After(now.Add(24 * time.Hour)) {
		return "urgent", true
	}
	if !dueDate.After(now.Add(72 * time.Hour)) {
		return "reminder", true
	}
	return "", false
}
