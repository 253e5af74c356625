// Command monitor-tui is the operator dashboard (A7): a terminal board of
// every process that is overdue, urgent or due soon, refreshing on a
// timer. Optional operator tooling, not a replacement for cmd/worker's
// alerting.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"fizko/internal/config"
	"fizko/internal/database"
	"fizko/internal/monitortui"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(cfg.DatabaseURL, cfg.DBDriver)
	if err != nil {
		fmt.Fprintln(os.Stderr, "database error:", err)
		os.Exit(2)
	}
	if err := database.Migrate(db); err != nil {
		fmt.Fprintln(os.Stderr, "migration error:", err)
		os.Exit(2)
	}

	p := tea.NewProgram(monitortui.New(db), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tui error:", err)
		os.Exit(2)
	}
}
