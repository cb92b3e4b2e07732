package notesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"note-assistant/internal/logx"
)

// Note is one document pushed to the backend for indexing.
type Note struct {
	Title   string `json:"title"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

type syncPayload struct {
	Title             string `json:"title"`
	Path              string `json:"path"`
	Content           string `json:"content"`
	Timestamp         int64  `json:"timestamp"`
	EmbeddingProvider string `json:"embeddingProvider,omitempty"`
	EmbeddingModel    string `json:"embeddingModel,omitempty"`
}

// Syncer pushes notes to the backend index. Schedule coalesces rapid
// edits to the same path so only the latest revision is sent.
type Syncer struct {
	HTTP              *http.Client
	BackendURL        string
	APIKey            string
	EmbeddingProvider string
	EmbeddingModel    string
	Debounce          time.Duration

	log *logx.Logger

	mu      sync.Mutex
	pending map[string]*pendingNote
}

type pendingNote struct {
	timer *time.Timer
	note  Note
}

func NewSyncer(backendURL, apiKey string, debounce time.Duration, log *logx.Logger) *Syncer {
	return &Syncer{
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		BackendURL: backendURL,
		APIKey:     apiKey,
		Debounce:   debounce,
		log:        log,
		pending:    map[string]*pendingNote{},
	}
}

// Sync pushes one note immediately.
func (s *Syncer) Sync(ctx context.Context, note Note) error {
	payload, err := json.Marshal(syncPayload{
		Title:             note.Title,
		Path:              note.Path,
		Content:           note.Content,
		Timestamp:         time.Now().UnixMilli(),
		EmbeddingProvider: s.EmbeddingProvider,
		EmbeddingModel:    s.EmbeddingModel,
	})
	if err != nil {
		return err
	}

	url := strings.TrimRight(s.BackendURL, "/") + "/sync"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.APIKey)

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		var envelope struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
			return fmt.Errorf("sync failed (%d): %s", resp.StatusCode, envelope.Message)
		}
		return fmt.Errorf("sync failed (%d)", resp.StatusCode)
	}
	return nil
}

// Schedule queues a note for sync after the debounce window. Another
// call for the same path before the window closes resets the timer and
// replaces the queued content.
func (s *Syncer) Schedule(note Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[note.Path]; ok {
		p.timer.Stop()
	}
	p := &pendingNote{note: note}
	p.timer = time.AfterFunc(s.Debounce, func() {
		s.mu.Lock()
		delete(s.pending, note.Path)
		s.mu.Unlock()
		s.send(note)
	})
	s.pending[note.Path] = p
}

// Flush cancels pending timers and sends everything queued right away.
func (s *Syncer) Flush(ctx context.Context) {
	s.mu.Lock()
	notes := make([]Note, 0, len(s.pending))
	for path, p := range s.pending {
		p.timer.Stop()
		notes = append(notes, p.note)
		delete(s.pending, path)
	}
	s.mu.Unlock()

	for _, note := range notes {
		if err := s.Sync(ctx, note); err != nil {
			s.log.Warn("note sync failed", map[string]interface{}{"path": note.Path, "error": err.Error()})
		}
	}
}

func (s *Syncer) send(note Note) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Sync(ctx, note); err != nil {
		s.log.Warn("note sync failed", map[string]interface{}{"path": note.Path, "error": err.Error()})
	}
}
