package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"note-assistant/internal/config"
)

// SetupWizard walks through the backend connection settings and writes
// them to the config file.
type SetupWizard struct {
	step      int
	backend   string
	apiKey    string
	provider  string
	model     string
	statusMsg string
	input     textinput.Model
	done      bool
	saved     bool
	cfg       *config.Config
	width     int
	height    int
	providers []string
	selected  int
}

var wizardProviders = []string{"deepseek", "openai", "ollama"}

var wizardDefaultModels = map[string]string{
	"deepseek": "deepseek-chat",
	"openai":   "gpt-4o-mini",
	"ollama":   "qwen2.5",
}

func NewSetupWizard(cfg *config.Config) *SetupWizard {
	s := &SetupWizard{
		providers: wizardProviders,
		cfg:       cfg,
		input:     textinput.New(),
	}
	s.input.Placeholder = cfg.BackendURL
	s.input.Focus()
	return s
}

func (s *SetupWizard) Init() tea.Cmd {
	return textinput.Blink
}

func (s *SetupWizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			s.done = true
			return s, tea.Quit

		case "enter":
			switch s.step {
			case 0:
				s.backend = strings.TrimSpace(s.input.Value())
				if s.backend == "" {
					s.backend = s.cfg.BackendURL
				}
				s.step = 1
				s.input.Reset()
				s.input.Placeholder = "api key (blank to keep current)"
			case 1:
				s.apiKey = strings.TrimSpace(s.input.Value())
				if s.apiKey == "" {
					s.apiKey = s.cfg.APIKey
				}
				s.step = 2
			case 2:
				s.provider = s.providers[s.selected]
				s.model = wizardDefaultModels[s.provider]
				s.step = 3
			case 3:
				s.cfg.BackendURL = s.backend
				s.cfg.APIKey = s.apiKey
				s.cfg.Provider = s.provider
				s.cfg.Model = s.model

				if err := config.SaveConfig(*s.cfg, ""); err != nil {
					s.statusMsg = fmt.Sprintf("Error saving config: %v", err)
				} else {
					s.statusMsg = "Configuration saved."
					s.done = true
					s.saved = true
					return s, tea.Quit
				}
			}

		case "up", "k":
			if s.step == 2 && s.selected > 0 {
				s.selected--
			} else if s.step > 0 && s.step != 2 {
				s.step--
			}
		case "down", "j":
			if s.step == 2 && s.selected < len(s.providers)-1 {
				s.selected++
			}

		default:
			if s.step == 0 || s.step == 1 {
				s.input, cmd = s.input.Update(msg)
				return s, cmd
			}
		}

	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
	}

	return s, cmd
}

func (s *SetupWizard) View() string {
	if s.done {
		return ""
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 2).
		Width(s.width - 4).
		Render("  Note Assistant Setup  ")

	var body string

	switch s.step {
	case 0:
		body = fmt.Sprintf(`
Step 1 of 4: Backend URL

Where the assistant backend listens, e.g. http://localhost:8000

URL: %s

Enter to continue, Ctrl+C to cancel.
`, s.input.View())

	case 1:
		body = fmt.Sprintf(`
Step 2 of 4: API Key

%s

Key: %s

Use ↑ to go back, Enter to continue.
`, s.statusMsg, s.input.View())
		s.statusMsg = ""

	case 2:
		options := ""
		for i, p := range s.providers {
			marker := "○"
			if i == s.selected {
				marker = "●"
			}
			options += fmt.Sprintf("  %s %s\n", marker, p)
		}
		body = fmt.Sprintf(`
Step 3 of 4: Select Provider

%s
Use ↑/↓ to select, Enter to confirm.
`, options)

	case 3:
		key := s.apiKey
		if len(key) > 8 {
			key = key[:4] + "…" + key[len(key)-4:]
		}
		body = fmt.Sprintf(`
Step 4 of 4: Confirm

  ✓ Backend:   %s
  ✓ Provider:  %s
  ✓ Model:     %s
  ✓ API Key:   %s

Saved to:
%s

Use ↑ to go back, Enter to save, Ctrl+C to cancel.
`, s.backend, s.provider, s.model, key, config.DefaultConfigPath())
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Render("\n↑/↓ Navigate  |  Enter Confirm  |  Ctrl+C Cancel")

	content := header + "\n\n" + body + help

	paddingTop := maxInt(0, (s.height-18)/2)
	result := strings.Repeat("\n", paddingTop) + content

	return lipgloss.NewStyle().
		Width(s.width).
		Height(s.height).
		Render(result)
}

func (s *SetupWizard) Done() bool {
	return s.done
}

func (s *SetupWizard) Saved() bool {
	return s.saved
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
