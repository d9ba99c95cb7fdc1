package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	progressLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#60A5FA"))

	progressDoneStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#34D399")).
				Bold(true)

	progressErrStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#EF4444")).
				Bold(true)
)

// withProgress runs fn in the background while showing label as a spinner,
// the interactive analogue of "asmctl install/fetch/write/read-all"'s
// block-transfer-heavy operations. When stdout isn't a TTY it falls back to
// a single plain stderr line instead, since an animated spinner against a
// pipe or log file is just noise.
func withProgress(label string, fn func() error) error {
	statusStarted(label)
	var err error
	defer func() { statusFinished(err) }()

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintf(os.Stderr, "%s...\n", label)
		err = fn()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: failed: %v\n", label, err)
		} else {
			fmt.Fprintf(os.Stderr, "%s: done\n", label)
		}
		return err
	}

	p := tea.NewProgram(newProgressModel(label))
	resultCh := make(chan error, 1)
	go func() {
		resultCh <- fn()
	}()
	go func() {
		e := <-resultCh
		p.Send(progressDoneMsg{err: e})
	}()

	m, runErr := p.Run()
	if runErr != nil {
		err = runErr
		return err
	}
	err = m.(progressModel).result
	return err
}

type progressDoneMsg struct{ err error }

type progressModel struct {
	label    string
	spinner  spinner.Model
	finished bool
	result   error
}

func newProgressModel(label string) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return progressModel{label: label, spinner: s}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressDoneMsg:
		m.finished = true
		m.result = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.finished = true
			m.result = fmt.Errorf("%s: interrupted", m.label)
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.finished {
		if m.result != nil {
			return progressErrStyle.Render(fmt.Sprintf("%s: failed: %v\n", m.label, m.result))
		}
		return progressDoneStyle.Render(fmt.Sprintf("%s: done\n", m.label))
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), progressLabelStyle.Render(m.label))
}
