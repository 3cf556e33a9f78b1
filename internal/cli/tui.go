package cli

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/phpvendor/pkg/pipeline"
)

var (
	tuiStepStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	tuiFailStyle   = lipgloss.NewStyle().Foreground(colorRed)
	tuiMutedStyle  = lipgloss.NewStyle().Foreground(colorDim)
	tuiHeaderStyle = StyleTitle.MarginBottom(1)
)

// =============================================================================
// Messages
// =============================================================================

// stepMsg is one progress event from the install hooks.
type stepMsg struct {
	text   string
	failed bool
}

// installDoneMsg carries the pipeline's answer.
type installDoneMsg struct {
	report *pipeline.InstallReport
	err    error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// =============================================================================
// InstallModel - live install progress
// =============================================================================

// InstallModel is the bubbletea model shown while an install runs.
type InstallModel struct {
	Title   string
	Steps   []stepMsg
	Current string
	Frame   int

	Report  *pipeline.InstallReport
	Err     error
	Done    bool
	Aborted bool
}

// NewInstallModel creates the model with its first status line.
func NewInstallModel(title string) InstallModel {
	return InstallModel{Title: title, Current: "Preparing"}
}

func (m InstallModel) Init() tea.Cmd {
	return tick()
}

func (m InstallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.Aborted = true
			return m, tea.Quit
		}
	case tickMsg:
		if m.Done {
			return m, nil
		}
		m.Frame++
		return m, tick()
	case stepMsg:
		m.Steps = append(m.Steps, msg)
		m.Current = msg.text
	case installDoneMsg:
		m.Report = msg.report
		m.Err = msg.err
		m.Done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m InstallModel) View() string {
	var b strings.Builder

	b.WriteString(tuiHeaderStyle.Render(m.Title))
	b.WriteString("\n")

	for _, s := range m.Steps {
		if s.failed {
			b.WriteString(styleIconError.Render(iconError) + " " + tuiFailStyle.Render(s.text))
		} else {
			b.WriteString(styleIconInfo.Render(iconInfo) + " " + tuiStepStyle.Render(s.text))
		}
		b.WriteString("\n")
	}

	if !m.Done && !m.Aborted {
		frame := spinnerFrames[m.Frame%len(spinnerFrames)]
		b.WriteString(styleIconSpinner.Render(frame) + " " + tuiMutedStyle.Render(m.Current+"…"))
		b.WriteString("\n")
		b.WriteString(tuiMutedStyle.Render("ctrl+c to abort"))
		b.WriteString("\n")
	}
	return b.String()
}

// runInstallTUI runs install under a bubbletea program fed by the install
// hooks. Aborting the program cancels the install's context.
func runInstallTUI(ctx context.Context, install func(context.Context) (*pipeline.InstallReport, error), opts ...tea.ProgramOption) (*pipeline.InstallReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewInstallModel("Installing PhpSpreadsheet"), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	restore := watchInstall(func(text string, failed bool) {
		p.Send(stepMsg{text: text, failed: failed})
	})
	defer restore()

	go func() {
		rep, err := install(ctx)
		p.Send(installDoneMsg{report: rep, err: err})
	}()

	final, err := p.Run()
	if err != nil && final == nil {
		return nil, err
	}
	m, ok := final.(InstallModel)
	if !ok || m.Aborted || !m.Done {
		return nil, context.Canceled
	}
	return m.Report, m.Err
}
