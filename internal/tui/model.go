// Package tui provides the BubbleTea-based contact form. Terminal focus
// stands in for the section being on screen: focus fades the ambient track
// in and blur fades it out.
package tui

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/folio/internal/config"
	"github.com/jmylchreest/folio/internal/contact"
	"github.com/jmylchreest/folio/internal/fade"
	"github.com/jmylchreest/folio/internal/outbox"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeForm Mode = iota
	ModeHistory
	ModeHelp
)

// Form fields in focus order. fieldButton is the send button.
const (
	fieldName = iota
	fieldEmail
	fieldMessage
	fieldButton
	fieldCount
)

const (
	refreshInterval = 100 * time.Millisecond
	meterWidth      = 20
	submitTimeout   = 30 * time.Second
)

// Button labels.
const (
	buttonIdle    = "Send"
	buttonSending = "Sending..."
)

// Submitter posts a contact form.
type Submitter interface {
	Submit(ctx context.Context, form contact.Form) (*contact.Receipt, error)
}

// Model is the main TUI model.
type Model struct {
	// Collaborators
	cfg        *config.Config
	controller *fade.Controller
	submitter  Submitter
	outbox     *outbox.Store

	// Current mode
	mode Mode

	// Components
	name    textinput.Model
	email   textinput.Model
	message textarea.Model
	history list.Model
	help    help.Model

	// State
	focus          int
	sending        bool
	notice         contact.Notice
	noticeDuration time.Duration
	ambience       fade.State
	width          int
	height         int
	ready          bool
	now            func() time.Time

	// Key bindings
	keys KeyMap

	// Status message
	statusMsg string
	statusErr bool
}

// historyItem wraps an outbox entry for the list component.
type historyItem struct {
	entry outbox.Entry
}

func (i historyItem) Title() string {
	mark := "✓"
	if i.entry.Status == outbox.StatusFailed {
		mark = "✗"
	}
	return fmt.Sprintf("%s %s <%s>", mark, i.entry.Name, i.entry.Email)
}

func (i historyItem) Description() string {
	return fmt.Sprintf("%s - %s", humanize.Time(i.entry.Time()), truncate(i.entry.Message, 50))
}

func (i historyItem) FilterValue() string {
	return i.entry.Name + " " + i.entry.Email + " " + i.entry.Message
}

// New creates a new TUI model. outbox may be nil.
func New(cfg *config.Config, controller *fade.Controller, submitter Submitter, store *outbox.Store) Model {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	name := textinput.New()
	name.Placeholder = "Your name"
	name.CharLimit = 200
	name.Prompt = ""

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Prompt = ""

	message := textarea.New()
	message.Placeholder = "Your message"
	message.CharLimit = contact.MaxMessageLength
	message.ShowLineNumbers = false
	message.SetHeight(6)

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Sent messages"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	m := Model{
		cfg:            cfg,
		controller:     controller,
		submitter:      submitter,
		outbox:         store,
		mode:           ModeForm,
		name:           name,
		email:          email,
		message:        message,
		history:        l,
		help:           help.New(),
		noticeDuration: cfg.Contact.NoticeDuration.Duration(),
		now:            time.Now,
		keys:           DefaultKeyMap(),
	}
	m.focusField(fieldName)
	return m
}

// Init initializes the TUI. A program in the foreground starts visible;
// focus reporting only delivers later changes.
func (m Model) Init() tea.Cmd {
	if m.controller != nil {
		m.controller.SetVisible(true)
	}
	return tea.Batch(textinput.Blink, refreshAmbience())
}

type ambienceTickMsg time.Time

func refreshAmbience() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return ambienceTickMsg(t)
	})
}

type submitResultMsg struct {
	form    contact.Form
	receipt *contact.Receipt
	err     error
}

// clearNoticeMsg clears the notice that expires at expires, leaving any newer
// notice alone.
type clearNoticeMsg struct {
	expires time.Time
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		fieldWidth := max(msg.Width-4, 10)
		m.name.Width = fieldWidth
		m.email.Width = fieldWidth
		m.message.SetWidth(fieldWidth)
		m.history.SetSize(msg.Width, msg.Height-2)
		return m, nil

	case tea.FocusMsg:
		if m.controller != nil {
			m.controller.SetVisible(true)
		}
		return m, nil

	case tea.BlurMsg:
		if m.controller != nil {
			m.controller.SetVisible(false)
		}
		return m, nil

	case ambienceTickMsg:
		if m.controller != nil {
			m.ambience = m.controller.State()
		}
		return m, refreshAmbience()

	case submitResultMsg:
		return m.handleResult(msg)

	case clearNoticeMsg:
		if m.notice.ExpiresAt.Equal(msg.expires) {
			m.notice = contact.Notice{}
		}
		return m, nil

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: "Copy failed: " + msg.err.Error(), isErr: true}
			}
		}
		return m, func() tea.Msg {
			return statusMsg{text: "Copied to clipboard"}
		}
	}

	return m.updateComponents(msg)
}

// updateComponents forwards msg to the component that owns input in the
// current mode.
func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.mode {
	case ModeForm:
		switch m.focus {
		case fieldName:
			m.name, cmd = m.name.Update(msg)
		case fieldEmail:
			m.email, cmd = m.email.Update(msg)
		case fieldMessage:
			m.message, cmd = m.message.Update(msg)
		}
	case ModeHistory:
		m.history, cmd = m.history.Update(msg)
	}
	return m, cmd
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.mode == ModeHelp {
			m.mode = ModeForm
		} else {
			m.mode = ModeHelp
		}
		return m, nil
	}

	switch m.mode {
	case ModeForm:
		return m.handleFormKey(msg)
	case ModeHistory:
		return m.handleHistoryKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeForm
		}
		return m, nil
	}

	return m, nil
}

// handleFormKey handles keys in form mode.
func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Next):
		return m, m.focusField((m.focus + 1) % fieldCount)

	case key.Matches(msg, m.keys.Prev):
		return m, m.focusField((m.focus + fieldCount - 1) % fieldCount)

	case key.Matches(msg, m.keys.Submit):
		return m.startSubmit()

	case key.Matches(msg, m.keys.History):
		m.mode = ModeHistory
		m.history.SetItems(m.historyItems())
		return m, nil

	case m.focus == fieldButton && msg.Type == tea.KeyEnter:
		return m.startSubmit()
	}

	return m.updateComponents(msg)
}

// handleHistoryKey handles keys in history mode.
func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.history.FilterState() == list.Filtering {
		return m.updateComponents(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.History):
		m.mode = ModeForm
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if item, ok := m.history.SelectedItem().(historyItem); ok {
			return m, m.copyToClipboard(item.entry.Message)
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyYAML):
		if item, ok := m.history.SelectedItem().(historyItem); ok {
			data, err := yaml.Marshal(item.entry)
			if err != nil {
				return m, func() tea.Msg {
					return statusMsg{text: "Failed to marshal YAML: " + err.Error(), isErr: true}
				}
			}
			return m, m.copyToClipboard(string(data))
		}
		return m, nil
	}

	return m.updateComponents(msg)
}

// focusField moves input focus to field i.
func (m *Model) focusField(i int) tea.Cmd {
	m.focus = i
	m.name.Blur()
	m.email.Blur()
	m.message.Blur()

	switch i {
	case fieldName:
		return m.name.Focus()
	case fieldEmail:
		return m.email.Focus()
	case fieldMessage:
		return m.message.Focus()
	}
	return nil
}

func (m Model) form() contact.Form {
	return contact.Form{
		Name:    m.name.Value(),
		Email:   m.email.Value(),
		Message: m.message.Value(),
	}.Normalize()
}

// startSubmit validates the form and sends it in the background. A second
// submit while one is in flight is ignored.
func (m Model) startSubmit() (tea.Model, tea.Cmd) {
	if m.sending || m.submitter == nil {
		return m, nil
	}

	form := m.form()
	if err := form.Validate(); err != nil {
		m.notice = contact.NoticeFor(err, m.now(), m.noticeDuration)
		return m, nil
	}

	m.sending = true
	m.notice = contact.Notice{}
	submitter := m.submitter
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		receipt, err := submitter.Submit(ctx, form)
		return submitResultMsg{form: form, receipt: receipt, err: err}
	}
}

func (m Model) handleResult(msg submitResultMsg) (tea.Model, tea.Cmd) {
	m.sending = false
	m.notice = contact.NoticeFor(msg.err, m.now(), m.noticeDuration)

	if m.outbox != nil {
		if entry, err := outbox.NewEntry("tui", msg.form, msg.receipt, msg.err); err == nil {
			if err := m.outbox.Add(*entry); err != nil {
				m.statusMsg = "Failed to record submission: " + err.Error()
				m.statusErr = true
			}
		}
	}

	if msg.err != nil {
		return m, nil
	}

	m.name.Reset()
	m.email.Reset()
	m.message.Reset()
	cmd := m.focusField(fieldName)

	expires := m.notice.ExpiresAt
	clearNotice := tea.Tick(m.noticeDuration, func(time.Time) tea.Msg {
		return clearNoticeMsg{expires: expires}
	})
	return m, tea.Batch(cmd, clearNotice)
}

func (m Model) historyItems() []list.Item {
	if m.outbox == nil {
		return nil
	}
	entries := m.outbox.List(outbox.FilterOptions{})
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = historyItem{entry: e}
	}
	return items
}

// copyToClipboard copies text to the system clipboard.
func (m Model) copyToClipboard(text string) tea.Cmd {
	cfg := m.cfg
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text, cfg)}
	}
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeForm:
		return m.viewForm()
	case ModeHistory:
		return m.viewHistory()
	case ModeHelp:
		return m.viewHelp()
	default:
		return ""
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	buttonStyle = lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder())
	activeStyle = buttonStyle.BorderForeground(lipgloss.Color("12")).Bold(true)
)

func (m Model) viewForm() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Contact") + "  " + m.renderMeter() + "\n\n")

	b.WriteString(labelStyle.Render("Name") + "\n" + m.name.View() + "\n\n")
	b.WriteString(labelStyle.Render("Email") + "\n" + m.email.View() + "\n\n")
	b.WriteString(labelStyle.Render("Message") + "\n" + m.message.View() + "\n\n")

	label := buttonIdle
	if m.sending {
		label = buttonSending
	}
	style := buttonStyle
	if m.focus == fieldButton {
		style = activeStyle
	}
	b.WriteString(style.Render(label) + "\n")

	if m.notice.Visible(m.now()) {
		noticeStyle := okStyle
		if m.notice.Error {
			noticeStyle = errStyle
		}
		b.WriteString("\n" + noticeStyle.Render(m.notice.Text) + "\n")
	}

	b.WriteString("\n" + m.statusLine("form"))
	return b.String()
}

// renderMeter draws the ambient volume relative to the fade ceiling.
func (m Model) renderMeter() string {
	ceiling := fade.DefaultCeiling
	if m.controller != nil {
		ceiling = m.controller.Profile().Ceiling
	}

	filled := 0
	if ceiling > 0 {
		filled = int(math.Round(m.ambience.Volume / ceiling * meterWidth))
	}
	filled = min(max(filled, 0), meterWidth)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled)
	return dimStyle.Render(fmt.Sprintf("♪ %s %3.0f%% %s", bar, m.ambience.Volume*100, m.ambience.Phase))
}

func (m Model) viewHistory() string {
	return m.history.View() + "\n" + m.statusLine("history")
}

func (m Model) viewHelp() string {
	return titleStyle.Render("Keyboard Shortcuts") + "\n\n" +
		m.help.FullHelpView(m.keys.FullHelp()) + "\n\n" +
		dimStyle.Render("Press f1 or esc to return")
}

// statusLine shows the transient status message, or the keybind bar.
func (m Model) statusLine(mode string) string {
	if m.statusMsg != "" {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			style = errStyle
		}
		return style.Render(m.statusMsg)
	}
	return m.buildKeybindBar(m.width, mode)
}

// keybind is one entry of the status bar.
type keybind struct {
	key  string
	desc string
}

// buildKeybindBar builds a keybind bar that fits within the given width.
// Binds are listed most important first.
func (m Model) buildKeybindBar(width int, mode string) string {
	var binds []keybind
	switch mode {
	case "form":
		binds = []keybind{
			{"ctrl+s", "send"},
			{"tab", "next"},
			{"ctrl+l", "history"},
			{"f1", "help"},
			{"ctrl+c", "quit"},
		}
	case "history":
		binds = []keybind{
			{"esc", "back"},
			{"c", "copy"},
			{"y", "yaml"},
			{"/", "filter"},
			{"ctrl+c", "quit"},
		}
	}

	const separator = "  "
	var parts []string
	used := 0
	for _, b := range binds {
		plain := b.key + " " + b.desc
		need := len(plain)
		if len(parts) > 0 {
			need += len(separator)
		}
		if width > 0 && used+need > width {
			break
		}
		used += need
		parts = append(parts, keyStyle.Render(b.key)+" "+b.desc)
	}

	return dimStyle.Render(strings.Join(parts, separator))
}

// truncate shortens s to n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// RunOptions configures the TUI.
type RunOptions struct {
	Config     *config.Config
	Controller *fade.Controller
	Submitter  Submitter
	Outbox     *outbox.Store
	Input      io.Reader // nil uses stdin
	Output     io.Writer // nil uses stdout
}

// Run starts the TUI and blocks until it exits. Focus reporting is enabled
// so the terminal's focus drives the ambience.
func Run(opts RunOptions) error {
	m := New(opts.Config, opts.Controller, opts.Submitter, opts.Outbox)

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithReportFocus()}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}

	_, err := tea.NewProgram(m, progOpts...).Run()

	if opts.Controller != nil {
		opts.Controller.SetVisible(false)
	}
	return err
}
