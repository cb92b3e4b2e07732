package session

import (
	"encoding/json"
	"strings"
)

const (
	inputHistoryPath = "input_history.json"
	maxInputHistory  = 50
)

type inputHistoryFile struct {
	Entries   []string `json:"entries"`
	UpdatedAt int64    `json:"updated_at"`
}

// normalizeInputHistory trims entries, drops blanks and immediate
// repeats, and caps the list at max, keeping the newest tail.
func normalizeInputHistory(entries []string, max int) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1] == entry {
			continue
		}
		out = append(out, entry)
	}
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

// SaveInputHistory persists the raw input history outside the session
// data, oldest first.
func (m *Manager) SaveInputHistory(entries []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload := inputHistoryFile{
		Entries:   normalizeInputHistory(entries, maxInputHistory),
		UpdatedAt: m.nowMillis(),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return m.store.Write(inputHistoryPath, data)
}

// LoadInputHistory returns the persisted input history. A missing file is
// an empty history; a raw JSON string array is accepted for files written
// by older versions.
func (m *Manager) LoadInputHistory() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := m.store.Read(inputHistoryPath)
	if err != nil {
		return []string{}, nil
	}

	var payload inputHistoryFile
	if err := json.Unmarshal(data, &payload); err == nil {
		return normalizeInputHistory(payload.Entries, maxInputHistory), nil
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return normalizeInputHistory(raw, maxInputHistory), nil
}
