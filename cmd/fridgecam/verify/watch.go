// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli/doctor"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/envfile"
)

// watchFrameInterval is the re-render interval for the running
// indicator while a pass is in flight.
const watchFrameInterval = 100 * time.Millisecond

// watchFrames are the running-indicator frames, advanced once per
// [watchFrameInterval].
var watchFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true)
	watchFaintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchPassStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	watchWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	watchFailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	watchSkipStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// watchKeyMap defines the key bindings for watch mode.
type watchKeyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

var watchKeys = watchKeyMap{
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "run now"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// passDoneMsg carries the results of a completed verification pass.
type passDoneMsg struct {
	results []doctor.Result
	err     error
}

// passDueMsg fires when the refresh interval elapses.
type passDueMsg struct{}

// frameMsg advances the running indicator.
type frameMsg struct{}

// watchModel is the bubbletea model for `verify --watch`: a results
// table refreshed on a timer, with manual refresh on demand. Each
// pass rereads the environment file, so edits to fridgecam.env show
// up on the next cycle without restarting the watcher.
type watchModel struct {
	ctx      context.Context
	cfg      *config.Config
	logger   *slog.Logger
	timeout  time.Duration
	interval time.Duration

	keys    watchKeyMap
	table   table.Model
	results []doctor.Result
	passes  int
	lastRun time.Time
	running bool
	frame   int
	width   int
	err     error
}

func newWatchModel(ctx context.Context, cfg *config.Config, logger *slog.Logger, timeout, interval time.Duration) watchModel {
	columns := []table.Column{
		{Title: "Status", Width: 6},
		{Title: "Layer", Width: 20},
		{Title: "Detail", Width: 72},
	}
	resultsTable := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(len(layerNames())),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("255")).
		Background(lipgloss.Color("236")).
		Bold(false)
	resultsTable.SetStyles(styles)

	return watchModel{
		ctx:      ctx,
		cfg:      cfg,
		logger:   logger,
		timeout:  timeout,
		interval: interval,
		keys:     watchKeys,
		table:    resultsTable,
		running:  true,
	}
}

// layerNames returns the nine layer names in run order. Used to size
// the table before the first pass completes.
func layerNames() []string {
	return []string{
		layerTunnelBinary,
		layerTunnelService,
		layerCameraService,
		layerLocalLiveness,
		layerLocalHealth,
		layerCameraDevice,
		layerDatabase,
		layerRegistration,
		layerRemoteEndpoint,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.runPass(), frameTick())
}

// runPass executes one full verification pass off the UI goroutine.
// The environment file is reread each time so the watcher picks up
// operator edits between cycles.
func (m watchModel) runPass() tea.Cmd {
	ctx, cfg, logger, timeout := m.ctx, m.cfg, m.logger, m.timeout
	return func() tea.Msg {
		env, err := envfile.ReadOrEmpty(cfg.Paths.EnvFile)
		if err != nil {
			return passDoneMsg{err: fmt.Errorf("reading %s: %w", cfg.Paths.EnvFile, err)}
		}
		pipeline := newPipeline(cfg, env, logger)
		return passDoneMsg{results: pipeline.Run(ctx, timeout)}
	}
}

// scheduleNext arms the interval timer for the next automatic pass.
func (m watchModel) scheduleNext() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return passDueMsg{}
	})
}

func frameTick() tea.Cmd {
	return tea.Tick(watchFrameInterval, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.resizeColumns(msg.Width)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.running {
				return m, nil
			}
			m.running = true
			return m, tea.Batch(m.runPass(), frameTick())
		}

	case passDoneMsg:
		m.running = false
		m.passes++
		m.lastRun = time.Now()
		m.err = msg.err
		if msg.err == nil {
			m.results = msg.results
			m.table.SetRows(watchRows(msg.results))
		}
		return m, m.scheduleNext()

	case passDueMsg:
		if m.running {
			// A manual refresh is still in flight; rearm and wait.
			return m, m.scheduleNext()
		}
		m.running = true
		return m, tea.Batch(m.runPass(), frameTick())

	case frameMsg:
		if !m.running {
			return m, nil
		}
		m.frame++
		return m, frameTick()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// resizeColumns gives the detail column all width left over after the
// fixed status and layer columns.
func (m *watchModel) resizeColumns(width int) {
	detail := width - 6 - 20 - 8
	if detail < 20 {
		detail = 20
	}
	m.table.SetColumns([]table.Column{
		{Title: "Status", Width: 6},
		{Title: "Layer", Width: 20},
		{Title: "Detail", Width: detail},
	})
	m.table.SetWidth(width)
}

// watchRows converts layer results to styled table rows. Hints ride
// along in the detail cell so the fix is visible without leaving the
// watcher.
func watchRows(results []doctor.Result) []table.Row {
	rows := make([]table.Row, 0, len(results))
	for _, result := range results {
		detail := result.Message
		if result.Hint != "" {
			detail += watchFaintStyle.Render(" (" + result.Hint + ")")
		}
		rows = append(rows, table.Row{statusCell(result.Status), result.Name, detail})
	}
	return rows
}

func statusCell(status doctor.Status) string {
	label := strings.ToUpper(string(status))
	switch status {
	case doctor.StatusPass:
		return watchPassStyle.Render(label)
	case doctor.StatusWarn:
		return watchWarnStyle.Render(label)
	case doctor.StatusFail:
		return watchFailStyle.Render(label)
	default:
		return watchSkipStyle.Render(label)
	}
}

func (m watchModel) View() string {
	var view strings.Builder

	title := watchTitleStyle.Render("fridgecam verify")
	state := watchFaintStyle.Render(fmt.Sprintf("every %s", m.interval))
	if m.running {
		state = watchWarnStyle.Render(watchFrames[m.frame%len(watchFrames)] + " checking")
	} else if m.passes > 0 {
		state = watchFaintStyle.Render(fmt.Sprintf("pass %d at %s", m.passes, m.lastRun.Format("15:04:05")))
	}
	view.WriteString(title + "  " + state + "\n\n")

	if m.results == nil && m.err == nil {
		view.WriteString(watchFaintStyle.Render("running first pass...") + "\n")
	} else {
		view.WriteString(m.table.View() + "\n")
	}

	if m.err != nil {
		view.WriteString(watchFailStyle.Render("pass failed: "+m.err.Error()) + "\n")
	}

	counts := doctor.Count(m.results)
	summary := fmt.Sprintf("%s  %s  %s  %s",
		watchPassStyle.Render(fmt.Sprintf("%d pass", counts.Pass)),
		watchFailStyle.Render(fmt.Sprintf("%d fail", counts.Fail)),
		watchWarnStyle.Render(fmt.Sprintf("%d warn", counts.Warn)),
		watchSkipStyle.Render(fmt.Sprintf("%d skip", counts.Skip)),
	)
	help := watchFaintStyle.Render("r run now  ·  q quit")
	view.WriteString("\n" + summary + "\n" + help + "\n")

	return view.String()
}

// runWatch drives repeated verification passes in a full-screen
// terminal UI. Log output is discarded for the duration: every check
// already reports through the table, and slog writes would tear the
// alternate screen.
func runWatch(ctx context.Context, cfg *config.Config, logger *slog.Logger, timeout, interval time.Duration) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return cli.Validation("--watch needs a terminal on stdout (use --json for scripts)")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger.Debug("starting watch", "interval", interval, "check_timeout", timeout)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	model := newWatchModel(ctx, cfg, quiet, timeout, interval)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return cli.Internal("watch ui: %v", err)
	}
	return nil
}
