package tui

import tea "github.com/charmbracelet/bubbletea"

// Messages the streaming pipeline feeds into the update loop.
type thinkingMsg struct{ text string }
type answerMsg struct{ text string }
type collapseThinkingMsg struct{}
type streamErrorMsg struct{ text string }
type restoreInputMsg struct{ text string }
type sendDoneMsg struct{ err error }

// RenderBridge adapts streaming render calls, which arrive on the
// exchange goroutine, into bubbletea messages. Buffer renders carry the
// full accumulated text so a dropped intermediate frame costs nothing.
type RenderBridge struct {
	ch chan tea.Msg
}

func NewRenderBridge() *RenderBridge {
	return &RenderBridge{ch: make(chan tea.Msg, 256)}
}

func (b *RenderBridge) RenderThinking(buf string) {
	select {
	case b.ch <- thinkingMsg{text: buf}:
	default:
	}
}

func (b *RenderBridge) RenderAnswer(buf string) {
	select {
	case b.ch <- answerMsg{text: buf}:
	default:
	}
}

// Control messages must not be dropped, so these block if the UI lags.
func (b *RenderBridge) CollapseThinking() {
	b.ch <- collapseThinkingMsg{}
}

func (b *RenderBridge) ShowError(text string) {
	b.ch <- streamErrorMsg{text: text}
}

func (b *RenderBridge) RestoreInput(text string) {
	b.ch <- restoreInputMsg{text: text}
}
