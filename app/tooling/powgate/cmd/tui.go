package cmd

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zephyr/powgate/business/core/gate"
	"github.com/zephyr/powgate/foundation/pow"
	"go.uber.org/zap"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#60A5FA")).
			Padding(0, 2).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#2563EB")).
			Bold(true)

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF")).
			Italic(true)

	docStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)
)

// maxDocLines bounds how much of the protected document is shown.
const maxDocLines = 20

// View states
const (
	checkingView = iota
	chooseView
	solvingView
	grantedView
)

// Messages raised by the flow while the program runs.
type (
	estimatesMsg []pow.Estimate
	progressMsg  pow.Progress
	solvedMsg    pow.Solution
	documentMsg  []byte

	startedMsg struct {
		granted bool
		err     error
	}

	failedMsg struct {
		err       error
		retryable bool
	}

	runDoneMsg struct {
		outcome gate.Outcome
		err     error
	}
)

// =============================================================================

// teaPresenter forwards what the flow presents into the program's event loop.
type teaPresenter struct {
	prog *tea.Program
}

func (tp *teaPresenter) Estimates(ests []pow.Estimate) { tp.prog.Send(estimatesMsg(ests)) }
func (tp *teaPresenter) Progress(p pow.Progress)       { tp.prog.Send(progressMsg(p)) }
func (tp *teaPresenter) Solved(sol pow.Solution)       { tp.prog.Send(solvedMsg(sol)) }
func (tp *teaPresenter) ReplaceDocument(doc []byte)    { tp.prog.Send(documentMsg(doc)) }

func (tp *teaPresenter) Failed(err error, retryable bool) {
	tp.prog.Send(failedMsg{err: err, retryable: retryable})
}

// =============================================================================

type model struct {
	ctx      context.Context
	cancel   context.CancelFunc
	flow     *gate.Flow
	view     int
	ests     []pow.Estimate
	cursor   int
	progress pow.Progress
	solution *pow.Solution
	failure  string
	document string
	err      error
}

func newModel(ctx context.Context, flow *gate.Flow) model {
	ctx, cancel := context.WithCancel(ctx)
	return model{
		ctx:    ctx,
		cancel: cancel,
		flow:   flow,
		view:   checkingView,
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		granted, err := m.flow.Start(m.ctx)
		return startedMsg{granted: granted, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		if msg.granted {
			m.view = grantedView
			return m, nil
		}
		m.view = chooseView

	case estimatesMsg:
		m.ests = msg
		if m.cursor >= len(m.ests) {
			m.cursor = 0
		}

	case progressMsg:
		m.progress = pow.Progress(msg)

	case solvedMsg:
		sol := pow.Solution(msg)
		m.solution = &sol

	case failedMsg:
		m.failure = msg.err.Error()
		if msg.retryable {
			m.failure += " (pick a difficulty to retry)"
		}

	case documentMsg:
		m.document = trimDocument(string(msg))

	case runDoneMsg:
		if msg.err != nil {
			m.view = chooseView
			return m, nil
		}
		m.view = grantedView
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancel()
		return m, tea.Quit
	}

	if m.view != chooseView {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.ests)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.ests) == 0 {
			return m, nil
		}
		m.view = solvingView
		m.failure = ""
		m.solution = nil
		m.progress = pow.Progress{}

		d := m.ests[m.cursor].Difficulty
		return m, func() tea.Msg {
			outcome, err := m.flow.Run(m.ctx, d)
			return runDoneMsg{outcome: outcome, err: err}
		}
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Verifying your access"))
	b.WriteString("\n\n")

	switch m.view {
	case checkingView:
		b.WriteString("Checking for an existing session...\n")

	case chooseView:
		if len(m.ests) == 0 {
			b.WriteString("Measuring this machine's hashrate...\n")
			break
		}
		b.WriteString("Choose a difficulty:\n\n")
		for i, est := range m.ests {
			line := fmt.Sprintf(" Difficulty %d  %s ", est.Difficulty, est)
			if i == m.cursor {
				line = selectedStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
		if m.failure != "" {
			b.WriteString("\n" + errorStyle.Render(m.failure) + "\n")
		}
		b.WriteString("\n" + helpStyle.Render("↑/↓ select • enter solve • q quit") + "\n")

	case solvingView:
		p := m.progress
		b.WriteString(progressStyle.Render("Solving...") + "\n\n")
		fmt.Fprintf(&b, "Hashes:    %d\n", p.Hashes)
		fmt.Fprintf(&b, "Rate:      %s\n", pow.FormatRate(p.HashesPerSecond))
		fmt.Fprintf(&b, "Elapsed:   %s\n", pow.FormatElapsed(p.Elapsed.Seconds()))
		fmt.Fprintf(&b, "Estimated: %s\n", pow.FormatTime(p.EstimatedTotal))
		if m.solution != nil {
			fmt.Fprintf(&b, "\nNonce %d found, submitting...\n", m.solution.Nonce)
		}

	case grantedView:
		b.WriteString(progressStyle.Render("Access granted") + "\n")
		if m.solution != nil {
			fmt.Fprintf(&b, "Nonce %d in %s\n", m.solution.Nonce, pow.FormatElapsed(m.solution.ProcessingTime))
		}
		if m.document != "" {
			b.WriteString("\n" + docStyle.Render(m.document) + "\n")
		}
		b.WriteString("\n" + helpStyle.Render("q quit") + "\n")
	}

	return b.String()
}

func trimDocument(doc string) string {
	lines := strings.Split(strings.TrimSpace(doc), "\n")
	if len(lines) > maxDocLines {
		lines = append(lines[:maxDocLines], "...")
	}
	return strings.Join(lines, "\n")
}

// =============================================================================

func runTUI(ctx context.Context, log *zap.SugaredLogger) error {
	var tp teaPresenter

	flow, err := newFlow(log, &tp)
	if err != nil {
		return err
	}

	prog := tea.NewProgram(newModel(ctx, flow))
	tp.prog = prog

	final, err := prog.Run()
	if err != nil {
		return err
	}

	if m, ok := final.(model); ok && m.err != nil {
		return m.err
	}

	return nil
}
