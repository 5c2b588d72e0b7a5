package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/folio/internal/config"
	"github.com/jmylchreest/folio/internal/contact"
	"github.com/jmylchreest/folio/internal/fade"
	"github.com/jmylchreest/folio/internal/outbox"
)

type fakeSubmitter struct {
	calls int
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, form contact.Form) (*contact.Receipt, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &contact.Receipt{ID: "01HTUI", StatusCode: 200, SentAt: time.Now()}, nil
}

type harness struct {
	m         Model
	clock     *fade.ManualClock
	ctrl      *fade.Controller
	submitter *fakeSubmitter
	store     *outbox.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := fade.NewManualClock()
	ctrl := fade.New(fade.DefaultProfile(), clock, nil, nil)
	t.Cleanup(ctrl.Close)

	p, err := outbox.NewJSONLPersistence(filepath.Join(t.TempDir(), "outbox.jsonl"))
	require.NoError(t, err)
	store := outbox.NewStore(p)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		clock:     clock,
		ctrl:      ctrl,
		submitter: &fakeSubmitter{},
		store:     store,
	}
	h.m = New(config.DefaultConfig(), ctrl, h.submitter, store)
	h.send(tea.WindowSizeMsg{Width: 80, Height: 40})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

func (h *harness) typeText(s string) {
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) fillForm() {
	h.typeText("Ada")
	h.send(tea.KeyMsg{Type: tea.KeyTab})
	h.typeText("ada@example.com")
	h.send(tea.KeyMsg{Type: tea.KeyTab})
	h.typeText("Hello from the terminal")
}

func TestFocusDrivesAmbience(t *testing.T) {
	h := newHarness(t)

	h.m.Init()
	assert.True(t, h.ctrl.State().Visible)
	assert.True(t, h.ctrl.State().Playing)

	h.clock.Advance(13 * time.Second)
	h.send(ambienceTickMsg(time.Now()))
	assert.InDelta(t, 0.25, h.m.ambience.Volume, 1e-9)
	assert.Contains(t, h.m.renderMeter(), strings.Repeat("█", meterWidth))

	h.send(tea.BlurMsg{})
	assert.False(t, h.ctrl.State().Visible)
	h.clock.Advance(time.Second)
	assert.False(t, h.ctrl.State().Playing)
	assert.Zero(t, h.clock.Active())

	h.send(tea.FocusMsg{})
	assert.True(t, h.ctrl.State().Playing)
	assert.Equal(t, 1, h.clock.Active())
}

func TestSubmit_Success(t *testing.T) {
	h := newHarness(t)
	h.fillForm()

	assert.Equal(t, "Ada", h.m.name.Value())
	assert.Equal(t, "ada@example.com", h.m.email.Value())
	assert.Equal(t, fieldMessage, h.m.focus)

	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	assert.True(t, h.m.sending)
	assert.Contains(t, h.m.View(), buttonSending)

	// A second submit while sending is ignored.
	assert.Nil(t, h.send(tea.KeyMsg{Type: tea.KeyCtrlS}))

	result := cmd()
	require.IsType(t, submitResultMsg{}, result)
	assert.Equal(t, 1, h.submitter.calls)

	h.send(result)
	assert.False(t, h.m.sending)
	assert.Equal(t, contact.ThankYouText, h.m.notice.Text)
	assert.Contains(t, h.m.View(), contact.ThankYouText)
	assert.Empty(t, h.m.name.Value())
	assert.Empty(t, h.m.message.Value())
	assert.Equal(t, fieldName, h.m.focus)

	entry := h.store.Get("01HTUI")
	require.NotNil(t, entry)
	assert.Equal(t, "tui", entry.Source)
	assert.Equal(t, outbox.StatusSent, entry.Status)

	h.send(clearNoticeMsg{expires: h.m.notice.ExpiresAt})
	assert.Empty(t, h.m.notice.Text)
}

func TestSubmit_ValidationError(t *testing.T) {
	h := newHarness(t)
	h.typeText("Ada")

	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Nil(t, cmd)
	assert.False(t, h.m.sending)
	assert.True(t, h.m.notice.Error)
	assert.Equal(t, contact.ErrEmptyEmail.Error(), h.m.notice.Text)
	assert.Zero(t, h.submitter.calls)
}

func TestSubmit_BackendFailureKeepsForm(t *testing.T) {
	h := newHarness(t)
	h.submitter.err = &contact.SubmissionError{StatusCode: 500}
	h.fillForm()

	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	h.send(cmd())

	assert.Equal(t, contact.FailureText, h.m.notice.Text)
	assert.True(t, h.m.notice.Error)
	assert.Equal(t, "Ada", h.m.name.Value())

	entries := h.store.List(outbox.FilterOptions{Status: outbox.StatusFailed})
	require.Len(t, entries, 1)
	assert.Equal(t, 500, entries[0].StatusCode)
}

func TestSubmit_ButtonEnter(t *testing.T) {
	h := newHarness(t)
	h.fillForm()
	h.send(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, fieldButton, h.m.focus)

	cmd := h.send(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, h.m.sending)
}

func TestClearNotice_KeepsNewerNotice(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	h.m.notice = contact.NoticeFor(nil, now, 5*time.Second)

	h.send(clearNoticeMsg{expires: now})
	assert.NotEmpty(t, h.m.notice.Text)

	h.send(clearNoticeMsg{expires: now.Add(5 * time.Second)})
	assert.Empty(t, h.m.notice.Text)
}

func TestFocusCycle(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, fieldName, h.m.focus)

	h.send(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, fieldButton, h.m.focus)

	for i := 0; i < fieldCount; i++ {
		h.send(tea.KeyMsg{Type: tea.KeyTab})
	}
	assert.Equal(t, fieldButton, h.m.focus)
}

func TestHistoryMode(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Add(outbox.Entry{
		ID: "a", Name: "Ada", Email: "ada@example.com", Message: "hi",
		Status: outbox.StatusSent, CreatedAt: time.Now().Unix(),
	}))
	require.NoError(t, h.store.Add(outbox.Entry{
		ID: "b", Name: "Bob", Email: "bob@example.com", Message: "hey",
		Status: outbox.StatusFailed, CreatedAt: time.Now().Unix(),
	}))

	h.send(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Equal(t, ModeHistory, h.m.mode)
	assert.Len(t, h.m.history.Items(), 2)

	h.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ModeForm, h.m.mode)
}

func TestHelpToggle(t *testing.T) {
	h := newHarness(t)

	h.send(tea.KeyMsg{Type: tea.KeyF1})
	assert.Equal(t, ModeHelp, h.m.mode)
	assert.Contains(t, h.m.View(), "Keyboard Shortcuts")

	h.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ModeForm, h.m.mode)
}

func TestCopyResult(t *testing.T) {
	h := newHarness(t)

	cmd := h.send(copyResultMsg{err: errors.New("no clipboard")})
	require.NotNil(t, cmd)
	h.send(cmd())
	assert.True(t, h.m.statusErr)
	assert.Contains(t, h.m.statusMsg, "no clipboard")
}

func TestBuildKeybindBar_FitsWidth(t *testing.T) {
	h := newHarness(t)

	bar := stripANSI(h.m.buildKeybindBar(20, "form"))
	assert.LessOrEqual(t, len(bar), 20)
	assert.Contains(t, bar, "ctrl+s send")

	full := stripANSI(h.m.buildKeybindBar(0, "history"))
	assert.Contains(t, full, "esc back")
	assert.Contains(t, full, "y yaml")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "one two", truncate("one\n two", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

// stripANSI removes ANSI escape codes for length checks.
func stripANSI(s string) string {
	result := make([]byte, 0, len(s))
	inEscape := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if s[i] == 'm' {
				inEscape = false
			}
			continue
		}
		result = append(result, s[i])
	}
	return string(result)
}
