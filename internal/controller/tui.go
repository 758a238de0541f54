package controller

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// footerHeight is the number of lines the pager reserves below the viewport.
const footerHeight = 2

// TUI implements UI with a Bubble Tea pager for reports taller than the
// terminal. Everything else is delegated to SimpleUI.
type TUI struct {
	*SimpleUI
	runPager func(content string) error
}

// NewTUI creates a new TUI.
func NewTUI(cmd *cobra.Command, opts ...Option) *TUI {
	t := &TUI{SimpleUI: NewSimpleUI(cmd, opts...)}
	t.runPager = t.page

	return t
}

// DisplayReport renders the report and pages it when it does not fit on screen.
func (t *TUI) DisplayReport(ctx context.Context, report m.CoverageReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := t.cmd.OutOrStdout()
	content := newReportRenderer(out, t.opts).text(report)

	if !needsPager(content, terminalHeight(out)) {
		_, err := fmt.Fprint(out, content)
		return err
	}

	return t.runPager(content)
}

func (t *TUI) page(content string) error {
	program := tea.NewProgram(
		newPagerModel(content),
		tea.WithOutput(t.cmd.OutOrStdout()),
		tea.WithAltScreen(),
	)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run pager: %w", err)
	}

	return nil
}

// terminalHeight returns the number of rows of out, 0 when unknown.
func terminalHeight(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok {
		return 0
	}

	_, height, err := term.GetSize(f.Fd())
	if err != nil {
		return 0
	}

	return height
}

func needsPager(content string, height int) bool {
	if height <= 0 {
		return false
	}

	return strings.Count(content, "\n") > height-footerHeight
}

// pagerModel is the Bubble Tea model scrolling a rendered report.
type pagerModel struct {
	content  string
	viewport viewport.Model
	ready    bool
}

func newPagerModel(content string) pagerModel {
	return pagerModel{content: content}
}

func (pm pagerModel) Init() tea.Cmd {
	return nil
}

func (pm pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-footerHeight, 1)

		if !pm.ready {
			pm.viewport = viewport.New(msg.Width, height)
			pm.viewport.SetContent(pm.content)
			pm.ready = true

			return pm, nil
		}

		pm.viewport.Width = msg.Width
		pm.viewport.Height = height

		return pm, nil

	case tea.KeyMsg:
		return pm.handleKeyPress(msg)
	}

	return pm, nil
}

//nolint:exhaustive // only quit and jump keys are handled here, the viewport handles scrolling
func (pm pagerModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return pm, tea.Quit
	default:
	}

	switch msg.String() {
	case "q":
		return pm, tea.Quit
	case "g", "home":
		pm.viewport.GotoTop()
		return pm, nil
	case "G", "end":
		pm.viewport.GotoBottom()
		return pm, nil
	}

	var cmd tea.Cmd

	pm.viewport, cmd = pm.viewport.Update(msg)

	return pm, cmd
}

func (pm pagerModel) View() string {
	if !pm.ready {
		return "Loading report..."
	}

	footer := fmt.Sprintf("%3.f%% • ↑/↓ scroll • g/G top/bottom • q quit", pm.viewport.ScrollPercent()*100)

	return pm.viewport.View() + "\n\n" + footer
}
