// Package review provides an interactive terminal queue over failed
// claims. A reviewer pages through FAIL verdicts with their itemized
// reasons and can requeue a corrected claim for revalidation.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chrscato/cdx-billreview/internal/service"
)

// Requeuer moves a failed claim back to the staging prefix so the next
// validation run picks it up again.
type Requeuer interface {
	Requeue(ctx context.Context, fileName string) error
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Back    key.Binding
	Requeue key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "details"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Requeue: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "requeue"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Model is the bubbletea model for the review queue.
type Model struct {
	requeuer Requeuer
	err      error
	notice   string
	verdicts []service.LoggedVerdict
	cursor   int
	width    int
	height   int
	showing  bool
	quitting bool
}

// NewModel builds the review queue over logged FAIL verdicts.
func NewModel(verdicts []service.LoggedVerdict, requeuer Requeuer) Model {
	return Model{verdicts: verdicts, requeuer: requeuer}
}

// requeuedMsg reports the outcome of a requeue command.
type requeuedMsg struct {
	err      error
	fileName string
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case requeuedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.notice = fmt.Sprintf("Requeued %s for revalidation", msg.fileName)
		m.verdicts = append(m.verdicts[:m.cursor], m.verdicts[m.cursor+1:]...)
		if m.cursor >= len(m.verdicts) && m.cursor > 0 {
			m.cursor--
		}
		m.showing = false

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Up):
			if !m.showing && m.cursor > 0 {
				m.cursor--
			}

		case key.Matches(msg, keys.Down):
			if !m.showing && m.cursor < len(m.verdicts)-1 {
				m.cursor++
			}

		case key.Matches(msg, keys.Select):
			if len(m.verdicts) > 0 {
				m.showing = true
			}

		case key.Matches(msg, keys.Back):
			m.showing = false

		case key.Matches(msg, keys.Requeue):
			if m.requeuer != nil && len(m.verdicts) > 0 {
				fileName := m.verdicts[m.cursor].FileName
				return m, func() tea.Msg {
					err := m.requeuer.Requeue(context.Background(), fileName)
					return requeuedMsg{fileName: fileName, err: err}
				}
			}
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if len(m.verdicts) == 0 {
		return emptyStyle.Render("No failed claims in the review queue.") + "\n"
	}
	if m.showing {
		return m.detailView()
	}
	return m.listView()
}

func (m Model) listView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Failed claims (%d)", len(m.verdicts))))
	b.WriteString("\n\n")

	for i, v := range m.verdicts {
		line := fmt.Sprintf("%s  %s  %d reason(s)",
			v.RecordedAt.Format("2006-01-02 15:04"),
			v.FileName,
			len(v.FailureReasons))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(itemStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("↑/↓ navigate · enter details · r requeue · q quit"))
	return b.String()
}

func (m Model) detailView() string {
	v := m.verdicts[m.cursor]

	var b strings.Builder
	b.WriteString(titleStyle.Render(v.FileName))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Status: ") + statusStyle.Render(string(v.Status)) + "\n")
	b.WriteString(labelStyle.Render("Recorded: ") + v.RecordedAt.Format("2006-01-02 15:04:05") + "\n\n")
	b.WriteString(labelStyle.Render("Failure reasons:") + "\n")
	for _, reason := range v.FailureReasons {
		b.WriteString(reasonStyle.Render("  • "+reason) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("esc back · r requeue · q quit"))
	return b.String()
}
