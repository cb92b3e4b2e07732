package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"note-assistant/internal/chat"
	"note-assistant/internal/session"
)

type viewMode int

const (
	viewChat viewMode = iota
	viewPicker
	viewTrash
	viewHelp
)

type spinMsg struct{}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type ChatModel struct {
	sessions   *session.Manager
	controller *chat.Controller
	bridge     *RenderBridge

	theme Theme
	help  helpModel

	width  int
	height int
	ready  bool

	view viewMode

	input  textarea.Model
	chatVP viewport.Model

	markdown *MarkdownRenderer

	running           bool
	statusText        string
	spinnerPos        int
	thinkingBuf       string
	answerBuf         string
	thinkingCollapsed bool
	showThinking      bool
	lastError         string

	doneCh chan sendDoneMsg

	// Input history recall. histPos == len(histEntries) means live
	// input; smaller values walk back through earlier questions.
	histEntries []string
	histPos     int
	histDraft   string

	// Picker and trash list state.
	pickerItems []session.Metadata
	pickerSel   int
	trashItems  []session.TrashItem
	trashSel    int
}

func NewChatModel(sessions *session.Manager, controller *chat.Controller, bridge *RenderBridge) *ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask about your notes, then press Enter."
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetHeight(1)
	ta.Prompt = " "
	ta.ShowLineNumbers = false

	// Keep textarea styling minimal; we style the input container instead.
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.BlurredStyle.Base = lipgloss.NewStyle()

	hist, _ := sessions.LoadInputHistory()

	return &ChatModel{
		sessions:     sessions,
		controller:   controller,
		bridge:       bridge,
		theme:        NewTheme(),
		help:         newHelpModel(),
		width:        100,
		height:       30,
		view:         viewChat,
		input:        ta,
		markdown:     NewMarkdownRenderer(),
		statusText:   "Ready",
		showThinking: true,
		histEntries:  hist,
		histPos:      len(hist),
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitRenderMsg())
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetWidth(m.width)

		chatH := m.height - 7
		if chatH < 5 {
			chatH = 5
		}
		if !m.ready {
			m.chatVP = viewport.New(m.width-2, chatH)
			m.chatVP.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.chatVP.Width = m.width - 2
			m.chatVP.Height = chatH
		}
		m.input.SetWidth(max(10, m.width-6))
		m.updateChatViewport()
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case viewPicker:
			return m.updatePicker(msg)
		case viewTrash:
			return m.updateTrash(msg)
		case viewHelp:
			m.view = viewChat
			return m, nil
		}
		return m.updateChat(msg)

	case thinkingMsg:
		m.thinkingBuf = msg.text
		m.updateChatViewport()
		m.chatVP.GotoBottom()
		return m, m.waitRenderMsg()

	case answerMsg:
		m.answerBuf = msg.text
		m.updateChatViewport()
		m.chatVP.GotoBottom()
		return m, m.waitRenderMsg()

	case collapseThinkingMsg:
		m.thinkingCollapsed = true
		m.updateChatViewport()
		return m, m.waitRenderMsg()

	case streamErrorMsg:
		m.lastError = msg.text
		m.updateChatViewport()
		return m, m.waitRenderMsg()

	case restoreInputMsg:
		m.input.SetValue(msg.text)
		m.input.CursorEnd()
		return m, m.waitRenderMsg()

	case sendDoneMsg:
		m.running = false
		m.statusText = "Ready"
		m.doneCh = nil
		m.thinkingBuf = ""
		m.answerBuf = ""
		m.thinkingCollapsed = false
		m.updateChatViewport()
		m.chatVP.GotoBottom()
		return m, nil

	case spinMsg:
		m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
		if m.running {
			return m, m.spinTick()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.chatVP, cmd = m.chatVP.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *ChatModel) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.help.keys
	switch {
	case key.Matches(msg, keys.Quit):
		if m.running {
			m.controller.Stop()
		}
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.view = viewHelp
		return m, nil

	case key.Matches(msg, keys.ToggleThinking):
		m.showThinking = !m.showThinking
		m.updateChatViewport()
		return m, nil

	case key.Matches(msg, keys.NewSession):
		if m.running {
			return m, nil
		}
		m.lastError = ""
		if _, err := m.sessions.CreateSession(""); err != nil {
			m.lastError = err.Error()
		}
		m.updateChatViewport()
		return m, nil

	case key.Matches(msg, keys.SessionPicker):
		if m.running {
			return m, nil
		}
		m.pickerItems = m.sessions.AllSessions()
		m.pickerSel = 0
		m.view = viewPicker
		return m, nil

	case key.Matches(msg, keys.Trash):
		if m.running {
			return m, nil
		}
		m.trashItems = m.sessions.TrashItems()
		m.trashSel = 0
		m.view = viewTrash
		return m, nil

	case key.Matches(msg, keys.Enter):
		return m, m.onEnter()

	case msg.Type == tea.KeyUp:
		m.recallHistory(-1)
		return m, nil
	case msg.Type == tea.KeyDown:
		m.recallHistory(1)
		return m, nil
	case msg.Type == tea.KeyPgUp:
		m.chatVP.ViewUp()
		return m, nil
	case msg.Type == tea.KeyPgDown:
		m.chatVP.ViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ChatModel) onEnter() tea.Cmd {
	if m.running {
		m.statusText = "Stopping…"
		m.controller.Stop()
		return nil
	}

	val := strings.TrimSpace(m.input.Value())
	if val == "" {
		return nil
	}

	m.input.Reset()
	m.lastError = ""
	m.pushHistory(val)

	m.running = true
	m.statusText = "Streaming…"
	m.spinnerPos = 0
	m.thinkingBuf = ""
	m.answerBuf = ""
	m.thinkingCollapsed = false

	m.doneCh = make(chan sendDoneMsg, 1)
	done := m.doneCh
	go func(question string) {
		err := m.controller.Send(context.Background(), question)
		done <- sendDoneMsg{err: err}
	}(val)

	m.updateChatViewport()
	m.chatVP.GotoBottom()
	return tea.Batch(m.waitRenderMsg(), m.waitDone(), m.spinTick())
}

// waitRenderMsg relays one message from the stream bridge into the
// update loop; each delivery re-arms itself.
func (m *ChatModel) waitRenderMsg() tea.Cmd {
	ch := m.bridge.ch
	return func() tea.Msg {
		return <-ch
	}
}

func (m *ChatModel) waitDone() tea.Cmd {
	done := m.doneCh
	return func() tea.Msg {
		if done == nil {
			return nil
		}
		return <-done
	}
}

func (m *ChatModel) spinTick() tea.Cmd {
	return tea.Tick(90*time.Millisecond, func(_ time.Time) tea.Msg { return spinMsg{} })
}

func (m *ChatModel) pushHistory(entry string) {
	m.histEntries = append(m.histEntries, entry)
	m.histPos = len(m.histEntries)
	m.histDraft = ""
	if err := m.sessions.SaveInputHistory(m.histEntries); err == nil {
		// Reload to pick up dedupe and the cap.
		if hist, err := m.sessions.LoadInputHistory(); err == nil {
			m.histEntries = hist
			m.histPos = len(hist)
		}
	}
}

// recallHistory walks the saved questions. Moving past the newest entry
// restores whatever was being typed before recall started.
func (m *ChatModel) recallHistory(delta int) {
	if len(m.histEntries) == 0 {
		return
	}
	if m.histPos == len(m.histEntries) {
		if delta > 0 {
			return
		}
		m.histDraft = m.input.Value()
	}
	pos := m.histPos + delta
	if pos < 0 {
		pos = 0
	}
	if pos >= len(m.histEntries) {
		m.histPos = len(m.histEntries)
		m.input.SetValue(m.histDraft)
		m.input.CursorEnd()
		return
	}
	m.histPos = pos
	m.input.SetValue(m.histEntries[pos])
	m.input.CursorEnd()
}

func (m *ChatModel) updateChatViewport() {
	var b strings.Builder
	chatWidth := m.chatVP.Width - 2
	if chatWidth < 20 {
		chatWidth = 20
	}

	for _, msg := range m.sessions.Messages() {
		b.WriteString(m.renderMessage(msg, chatWidth))
		b.WriteString("\n\n")
	}

	if m.running {
		b.WriteString(m.renderLive(chatWidth))
	}
	if m.lastError != "" {
		b.WriteString(m.theme.RoleErr.Render("ERR"))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.Error).Width(chatWidth).Render(m.lastError))
		b.WriteString("\n")
	}

	m.chatVP.SetContent(strings.TrimRight(b.String(), "\n"))
}

func (m *ChatModel) renderMessage(msg session.Message, width int) string {
	var roleStyle lipgloss.Style
	roleLabel := "YOU"
	if msg.Role == session.RoleAssistant {
		roleStyle = m.theme.RoleAI
		roleLabel = "AST"
	} else {
		roleStyle = m.theme.RoleYou
	}

	header := roleStyle.Render(roleLabel)

	var body string
	if msg.Role == session.RoleAssistant {
		body = m.markdown.Render(msg.Content, width)
		if msg.Thinking != "" && m.showThinking {
			head := m.theme.ThinkingHead.Render("· thinking")
			body = head + "\n" + m.theme.Thinking.Width(width).Render(msg.Thinking) + "\n" + body
		}
	} else {
		body = lipgloss.NewStyle().Foreground(m.theme.TextPrimary).Width(width).Render(msg.Content)
	}

	return header + "\n" + body
}

// renderLive shows the in-flight reply: the thinking panel while the
// model reasons, collapsed to one line once the answer starts.
func (m *ChatModel) renderLive(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.RoleAI.Render("AST"))
	b.WriteString(" ")
	b.WriteString(m.theme.Spinner.Render(spinnerFrames[m.spinnerPos]))
	b.WriteString("\n")

	if m.thinkingBuf != "" && m.showThinking {
		if m.thinkingCollapsed {
			b.WriteString(m.theme.ThinkingHead.Render("· thought"))
			b.WriteString("\n")
		} else {
			b.WriteString(m.theme.ThinkingHead.Render("· thinking"))
			b.WriteString("\n")
			b.WriteString(m.theme.Thinking.Width(width).Render(m.thinkingBuf))
			b.WriteString("\n")
		}
	}
	if m.answerBuf != "" {
		b.WriteString(m.markdown.RenderPartial(m.answerBuf, width))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *ChatModel) View() string {
	if !m.ready {
		return "…"
	}
	if m.view == viewHelp {
		return m.help.View()
	}
	if m.view == viewPicker {
		return m.viewPickerScreen()
	}
	if m.view == viewTrash {
		return m.viewTrashScreen()
	}

	top := m.renderTopBar()
	chatPane := m.theme.Pane.Width(m.width - 2).Render(m.chatVP.View())
	inputStyle := m.theme.InputBoxF
	if m.running {
		inputStyle = m.theme.InputBox
	}
	input := inputStyle.Width(m.width - 2).Render(m.input.View())
	footer := m.renderFooter()
	return lipgloss.JoinVertical(lipgloss.Left, top, chatPane, input, footer)
}

func (m *ChatModel) renderTopBar() string {
	name := m.sessions.CurrentSessionName()
	if name == "" {
		name = "(no session)"
	}
	title := m.theme.TopBarTitle.Render("nota")
	badge := m.theme.TopBarBadge.Render(name)
	status := m.theme.TopBarMeta.Render(m.statusText)
	return m.theme.TopBar.Width(m.width).Render(title + "  " + badge + "  " + status)
}

func (m *ChatModel) renderFooter() string {
	parts := []string{"enter send/stop", "ctrl+n new", "ctrl+s sessions", "ctrl+r trash", "ctrl+h help", "ctrl+q quit"}
	return m.theme.Footer.Width(m.width).Render(strings.Join(parts, " │ "))
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format("01-02 15:04")
}

func (m *ChatModel) viewPickerScreen() string {
	var b strings.Builder
	b.WriteString(m.theme.TopBarTitle.Render("sessions"))
	b.WriteString("\n\n")
	current := m.sessions.CurrentSessionID()
	for i, meta := range m.pickerItems {
		style := m.theme.ListItem
		prefix := "  "
		if i == m.pickerSel {
			style = m.theme.ListSel
			prefix = "> "
		}
		marker := " "
		if meta.SessionID == current {
			marker = "*"
		}
		line := fmt.Sprintf("%s%s %s", prefix, marker, meta.SessionName)
		b.WriteString(style.Render(line))
		b.WriteString("  ")
		b.WriteString(m.theme.ListMeta.Render(formatMillis(meta.UpdatedAt)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.Footer.Render("enter open │ d delete │ esc back"))
	return b.String()
}

func (m *ChatModel) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.help.keys
	switch {
	case key.Matches(msg, keys.Back):
		m.view = viewChat
		return m, nil
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case msg.Type == tea.KeyUp:
		if m.pickerSel > 0 {
			m.pickerSel--
		}
	case msg.Type == tea.KeyDown:
		if m.pickerSel < len(m.pickerItems)-1 {
			m.pickerSel++
		}
	case key.Matches(msg, keys.Enter):
		if m.pickerSel < len(m.pickerItems) {
			if err := m.sessions.SwitchSession(m.pickerItems[m.pickerSel].SessionID); err != nil {
				m.lastError = err.Error()
			}
		}
		m.view = viewChat
		m.updateChatViewport()
		m.chatVP.GotoBottom()
	case key.Matches(msg, keys.Delete):
		if m.pickerSel < len(m.pickerItems) {
			m.sessions.DeleteSession(m.pickerItems[m.pickerSel].SessionID)
			m.pickerItems = m.sessions.AllSessions()
			if m.pickerSel >= len(m.pickerItems) && m.pickerSel > 0 {
				m.pickerSel--
			}
			m.updateChatViewport()
		}
	}
	return m, nil
}

func (m *ChatModel) viewTrashScreen() string {
	var b strings.Builder
	b.WriteString(m.theme.TopBarTitle.Render("trash"))
	b.WriteString("  ")
	b.WriteString(m.theme.TopBarMeta.Render("items expire after 7 days"))
	b.WriteString("\n\n")
	if len(m.trashItems) == 0 {
		b.WriteString(m.theme.ListMeta.Render("  empty"))
		b.WriteString("\n")
	}
	for i, item := range m.trashItems {
		style := m.theme.ListItem
		prefix := "  "
		if i == m.trashSel {
			style = m.theme.ListSel
			prefix = "> "
		}
		b.WriteString(style.Render(prefix + item.SessionName))
		b.WriteString("  ")
		b.WriteString(m.theme.ListMeta.Render("deleted " + formatMillis(item.DeletedAt)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.Footer.Render("enter restore │ d delete forever │ esc back"))
	return b.String()
}

func (m *ChatModel) updateTrash(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.help.keys
	switch {
	case key.Matches(msg, keys.Back):
		m.view = viewChat
		return m, nil
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case msg.Type == tea.KeyUp:
		if m.trashSel > 0 {
			m.trashSel--
		}
	case msg.Type == tea.KeyDown:
		if m.trashSel < len(m.trashItems)-1 {
			m.trashSel++
		}
	case key.Matches(msg, keys.Enter):
		if m.trashSel < len(m.trashItems) {
			m.sessions.RestoreSessionFromTrash(m.trashItems[m.trashSel].SessionID)
			m.trashItems = m.sessions.TrashItems()
			if m.trashSel >= len(m.trashItems) && m.trashSel > 0 {
				m.trashSel--
			}
		}
	case key.Matches(msg, keys.Delete):
		if m.trashSel < len(m.trashItems) {
			m.sessions.PermanentlyDeleteFromTrash(m.trashItems[m.trashSel].SessionID)
			m.trashItems = m.sessions.TrashItems()
			if m.trashSel >= len(m.trashItems) && m.trashSel > 0 {
				m.trashSel--
			}
		}
	}
	return m, nil
}
