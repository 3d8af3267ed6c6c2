package review

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/service"
)

type fakeRequeuer struct {
	err   error
	calls []string
}

func (f *fakeRequeuer) Requeue(_ context.Context, fileName string) error {
	f.calls = append(f.calls, fileName)
	return f.err
}

func testVerdicts() []service.LoggedVerdict {
	return []service.LoggedVerdict{
		{FileName: "a.json", Status: model.StatusFail, FailureReasons: []string{"UNMATCHED_CPT: 99999"}, RecordedAt: time.Now()},
		{FileName: "b.json", Status: model.StatusFail, FailureReasons: []string{"RATE_MISSING: 73721"}, RecordedAt: time.Now()},
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestModelNavigation(t *testing.T) {
	m := NewModel(testVerdicts(), nil)

	next, _ := m.Update(keyMsg("down"))
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)

	// Bottom of the list clamps.
	next, _ = m.Update(keyMsg("down"))
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)

	next, _ = m.Update(keyMsg("up"))
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)

	next, _ = m.Update(keyMsg("up"))
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)
}

func TestModelDetailToggle(t *testing.T) {
	m := NewModel(testVerdicts(), nil)

	next, _ := m.Update(keyMsg("enter"))
	m = next.(Model)
	assert.True(t, m.showing)
	assert.Contains(t, m.View(), "UNMATCHED_CPT: 99999")

	next, _ = m.Update(keyMsg("esc"))
	m = next.(Model)
	assert.False(t, m.showing)
}

func TestModelRequeue(t *testing.T) {
	requeuer := &fakeRequeuer{}
	m := NewModel(testVerdicts(), requeuer)

	next, cmd := m.Update(keyMsg("r"))
	m = next.(Model)
	require.NotNil(t, cmd)

	msg := cmd()
	require.IsType(t, requeuedMsg{}, msg)
	assert.Equal(t, []string{"a.json"}, requeuer.calls)

	next, _ = m.Update(msg)
	m = next.(Model)
	require.Len(t, m.verdicts, 1)
	assert.Equal(t, "b.json", m.verdicts[0].FileName)
	assert.Contains(t, m.View(), "Requeued a.json")
}

func TestModelRequeueError(t *testing.T) {
	requeuer := &fakeRequeuer{err: errors.New("bucket unavailable")}
	m := NewModel(testVerdicts(), requeuer)

	_, cmd := m.Update(keyMsg("r"))
	require.NotNil(t, cmd)

	next, _ := m.Update(cmd())
	m = next.(Model)
	require.Len(t, m.verdicts, 2, "a failed requeue removes nothing")
	assert.Contains(t, m.View(), "bucket unavailable")
}

func TestModelEmptyQueue(t *testing.T) {
	m := NewModel(nil, nil)
	assert.Contains(t, m.View(), "No failed claims")

	_, cmd := m.Update(keyMsg("r"))
	assert.Nil(t, cmd, "requeue is a no-op on an empty queue")
}

func TestModelQuit(t *testing.T) {
	m := NewModel(testVerdicts(), nil)
	next, cmd := m.Update(keyMsg("q"))
	m = next.(Model)
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
