package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

type helpModel struct {
	keys  keyMap
	width int
}

func newHelpModel() helpModel {
	return helpModel{
		keys:  defaultKeyMap(),
		width: 80,
	}
}

func (m *helpModel) SetWidth(width int) {
	m.width = width
}

func (m helpModel) View() string {
	var b strings.Builder

	b.WriteString(helpTitleStyle.Render("nota help"))
	b.WriteString("\n\n")

	b.WriteString(helpSectionStyle.Render("chat"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s  send question / stop a running reply\n", helpKeyStyle.Render("enter")))
	b.WriteString(fmt.Sprintf("  %s  recall earlier questions\n", helpKeyStyle.Render("up/down")))
	b.WriteString(fmt.Sprintf("  %s  show or hide the thinking panel\n", helpKeyStyle.Render("ctrl+t")))
	b.WriteString(fmt.Sprintf("  %s  quit\n", helpKeyStyle.Render("ctrl+q")))

	b.WriteString("\n")

	b.WriteString(helpSectionStyle.Render("sessions"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s  new session\n", helpKeyStyle.Render("ctrl+n")))
	b.WriteString(fmt.Sprintf("  %s  session picker\n", helpKeyStyle.Render("ctrl+s")))
	b.WriteString(fmt.Sprintf("  %s  trash\n", helpKeyStyle.Render("ctrl+r")))
	b.WriteString("\n")
	b.WriteString(helpDescriptionStyle.Render("  in the picker: enter opens, d moves to trash, esc closes"))
	b.WriteString("\n")
	b.WriteString(helpDescriptionStyle.Render("  in the trash: enter restores, d deletes forever, esc closes"))
	b.WriteString("\n")

	b.WriteString("\n")
	b.WriteString(helpFooterStyle.Render("ctrl+q quit | ctrl+s sessions | enter send"))

	return b.String()
}

type keyMap struct {
	Quit           key.Binding
	Enter          key.Binding
	NewSession     key.Binding
	SessionPicker  key.Binding
	Trash          key.Binding
	ToggleThinking key.Binding
	Help           key.Binding
	Back           key.Binding
	Delete         key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+q", "ctrl+c"),
			key.WithHelp("ctrl+q", "quit"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send / stop"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new session"),
		),
		SessionPicker: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "sessions"),
		),
		Trash: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "trash"),
		),
		ToggleThinking: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "thinking panel"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("ctrl+h", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.SessionPicker, k.Trash, k.ToggleThinking, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Enter, k.NewSession, k.SessionPicker, k.Trash, k.Quit},
	}
}

// Minimal transparent styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#BD93F9"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF79C6"))

	helpDescriptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6272A4"))

	helpFooterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#44475A")).
			Italic(true)
)
