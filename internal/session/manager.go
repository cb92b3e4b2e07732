package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"note-assistant/internal/logx"
	"note-assistant/internal/store"
)

const (
	indexPath         = "sessions_index.json"
	sessionsDir       = "sessions"
	trashDir          = "trash"
	trashIndexPath    = "trash_index.json"
	legacyHistoryPath = "chat_history.json"

	indexVersion = "1.0"
)

// ErrNotFound is returned when a session or trash item does not exist.
var ErrNotFound = errors.New("session: not found")

// Manager owns the session index, all session files, and the trash. It is
// the sole writer of that state; callers mutate the current session only
// through its API and flush with SaveSession. All exported methods are
// safe for concurrent use: the UI goroutine reads while an exchange
// goroutine appends and saves.
type Manager struct {
	store store.Store
	log   *logx.Logger

	// now is replaceable in tests to simulate trash expiry.
	now func() time.Time

	mu      sync.Mutex
	index   *Index
	current *Session
}

func NewManager(st store.Store, log *logx.Logger) *Manager {
	return &Manager{
		store: st,
		log:   log,
		now:   time.Now,
	}
}

// Initialize prepares the trash, sweeps expired items, migrates the legacy
// single-file history if needed, then loads the index and current session.
// Any failure falls back to a fresh default session so the caller never
// observes a repository without a current session.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.CreateDir(trashDir); err != nil {
		m.log.Warn("create trash dir failed", map[string]interface{}{"error": err.Error()})
	}
	m.sweepExpiredTrash()

	if m.needsMigration() {
		if err := m.migrateLegacyHistory(); err != nil {
			m.log.Warn("legacy history migration failed", map[string]interface{}{"error": err.Error()})
		}
	}

	if err := m.loadOrCreateIndex(); err != nil {
		return m.recoverWithDefaultSession(err)
	}

	if m.index.CurrentSessionID != "" {
		sess, err := m.LoadSession(m.index.CurrentSessionID)
		if err != nil {
			return m.recoverWithDefaultSession(err)
		}
		m.current = sess
	}
	if m.current == nil {
		if _, err := m.createSession(""); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) recoverWithDefaultSession(cause error) error {
	m.log.Warn("session state unreadable, creating default session", map[string]interface{}{"error": cause.Error()})
	m.index = nil
	m.current = nil
	_, err := m.createSession("")
	return err
}

func (m *Manager) loadOrCreateIndex() error {
	data, err := m.store.Read(indexPath)
	if err == nil {
		var idx Index
		if jsonErr := json.Unmarshal(data, &idx); jsonErr == nil {
			m.index = &idx
			return nil
		}
		m.log.Warn("sessions index corrupt, recreating", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	// Absent or corrupt: start over with one default session.
	m.index = nil
	_, err = m.createSession("")
	return err
}

func (m *Manager) saveIndex() error {
	data, err := json.MarshalIndent(m.index, "", "  ")
	if err != nil {
		return err
	}
	return m.store.Write(indexPath, data)
}

func sessionPath(id string) string {
	return sessionsDir + "/" + id + ".json"
}

// LoadSession reads a session file. A missing file is ErrNotFound; corrupt
// content is reported as an error for the caller to handle.
func (m *Manager) LoadSession(id string) (*Session, error) {
	data, err := m.store.Read(sessionPath(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session %s corrupt: %w", id, err)
	}
	return &sess, nil
}

// SaveSession writes the session content, stamps UpdatedAt, and brings the
// index metadata in line in the same logical operation so message count
// and timestamps never drift from the file.
func (m *Manager) SaveSession(sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSession(sess)
}

// SaveCurrent persists the in-memory current session.
func (m *Manager) SaveCurrent() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSession(m.current)
}

func (m *Manager) saveSession(sess *Session) error {
	if sess == nil {
		return errors.New("nil session")
	}
	sess.UpdatedAt = m.nowMillis()
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	if err := m.store.Write(sessionPath(sess.SessionID), data); err != nil {
		return err
	}
	if m.index != nil {
		for i := range m.index.Sessions {
			if m.index.Sessions[i].SessionID == sess.SessionID {
				m.index.Sessions[i].SessionName = sess.SessionName
				m.index.Sessions[i].UpdatedAt = sess.UpdatedAt
				m.index.Sessions[i].MessageCount = len(sess.Messages)
				return m.saveIndex()
			}
		}
	}
	return nil
}

// CreateSession allocates a time-derived id, persists an empty session
// under name (or the generated default), registers it in the index, and
// makes it current. The outgoing current session is saved first so its
// unsaved messages survive. Returns the new id.
func (m *Manager) CreateSession(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSession(name)
}

func (m *Manager) createSession(name string) (string, error) {
	if m.current != nil && m.index != nil {
		if err := m.saveSession(m.current); err != nil {
			m.log.Warn("save outgoing session failed", map[string]interface{}{"error": err.Error()})
		}
	}

	now := m.nowMillis()
	id := m.newSessionID(now)
	if strings.TrimSpace(name) == "" {
		name = DefaultSessionName(m.now())
	}

	sess := &Session{
		SessionID:   id,
		SessionName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
		Messages:    []Message{},
	}
	if m.index == nil {
		m.index = &Index{Version: indexVersion}
	}
	m.index.Sessions = append(m.index.Sessions, sess.metadata())
	m.index.CurrentSessionID = id
	m.current = sess

	if err := m.saveSession(sess); err != nil {
		return "", err
	}
	if err := m.saveIndex(); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) newSessionID(nowMillis int64) string {
	id := fmt.Sprintf("session_%d", nowMillis)
	for i := 1; m.store.Exists(sessionPath(id)); i++ {
		id = fmt.Sprintf("session_%d_%d", nowMillis, i)
	}
	return id
}

// DeleteSession moves a session to the trash. The repository is never left
// empty: deleting the last session creates a replacement first, and
// deleting the current one switches current to another session. Failures
// are reported as false, never as a panic or error to the caller.
func (m *Manager) DeleteSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteSession(id)
}

func (m *Manager) deleteSession(id string) bool {
	if m.index == nil {
		return false
	}
	found := false
	for _, meta := range m.index.Sessions {
		if meta.SessionID == id {
			found = true
			break
		}
	}
	if !found {
		return false
	}

	if len(m.index.Sessions) == 1 {
		if _, err := m.createSession(""); err != nil {
			m.log.Error("replacement session create failed", map[string]interface{}{"error": err.Error()})
			return false
		}
	} else if m.index.CurrentSessionID == id {
		for _, meta := range m.index.Sessions {
			if meta.SessionID != id {
				if err := m.switchSession(meta.SessionID); err != nil {
					m.log.Error("switch away from deleted session failed", map[string]interface{}{"error": err.Error()})
					return false
				}
				break
			}
		}
	}

	if err := m.moveSessionToTrash(id); err != nil {
		m.log.Error("move session to trash failed", map[string]interface{}{"session": id, "error": err.Error()})
		return false
	}

	kept := m.index.Sessions[:0]
	for _, meta := range m.index.Sessions {
		if meta.SessionID != id {
			kept = append(kept, meta)
		}
	}
	m.index.Sessions = kept
	if err := m.saveIndex(); err != nil {
		m.log.Error("save index after delete failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	return true
}

// SwitchSession persists the outgoing current session before loading the
// target, so unsaved appends are not lost.
func (m *Manager) SwitchSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.switchSession(id)
}

func (m *Manager) switchSession(id string) error {
	if m.current != nil {
		if err := m.saveSession(m.current); err != nil {
			return err
		}
	}
	sess, err := m.LoadSession(id)
	if err != nil {
		return err
	}
	m.current = sess
	if m.index != nil {
		m.index.CurrentSessionID = id
		return m.saveIndex()
	}
	return nil
}

// RenameSession validates the new name and updates the session file, the
// index metadata, and the in-memory current session together.
func (m *Manager) RenameSession(id, newName string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}
	newName = strings.TrimSpace(newName)

	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.LoadSession(id)
	if err != nil {
		return err
	}
	sess.SessionName = newName
	if err := m.saveSession(sess); err != nil {
		return err
	}
	if m.current != nil && m.current.SessionID == id {
		m.current.SessionName = newName
	}
	return nil
}

// CurrentSession returns the in-memory current session. Mutations to it
// must go through AddMessage/RemoveLastMessage/ClearMessages and be
// flushed with SaveCurrent; concurrent readers use Messages and
// CurrentSessionName instead of holding this pointer.
func (m *Manager) CurrentSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) CurrentSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil {
		return ""
	}
	return m.index.CurrentSessionID
}

func (m *Manager) CurrentSessionName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.SessionName
}

// AddMessage appends to the in-memory current session only; callers
// persist explicitly so an append can be batched with a render.
func (m *Manager) AddMessage(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Messages = append(m.current.Messages, msg)
	}
}

func (m *Manager) RemoveLastMessage() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || len(m.current.Messages) == 0 {
		return Message{}, false
	}
	last := m.current.Messages[len(m.current.Messages)-1]
	m.current.Messages = m.current.Messages[:len(m.current.Messages)-1]
	return last, true
}

func (m *Manager) ClearMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Messages = []Message{}
	}
}

// Messages returns a copy of the current session's messages, safe to
// range over while an exchange appends on another goroutine.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	out := make([]Message, len(m.current.Messages))
	copy(out, m.current.Messages)
	return out
}

// AllSessions returns index metadata sorted most recently updated first.
func (m *Manager) AllSessions() []Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil {
		return nil
	}
	out := make([]Metadata, len(m.index.Sessions))
	copy(out, m.index.Sessions)
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out
}

func (m *Manager) nowMillis() int64 {
	return m.now().UnixMilli()
}

// DefaultSessionName formats the auto-generated name for new sessions.
func DefaultSessionName(t time.Time) string {
	return fmt.Sprintf("新会话 %02d-%02d %02d:%02d", t.Month(), t.Day(), t.Hour(), t.Minute())
}

// IsDefaultSessionName reports whether a name still matches the
// auto-generated pattern, meaning auto-titling may replace it.
func IsDefaultSessionName(name string) bool {
	var mo, d, h, mi int
	if _, err := fmt.Sscanf(name, "新会话 %02d-%02d %02d:%02d", &mo, &d, &h, &mi); err != nil {
		return false
	}
	return name == fmt.Sprintf("新会话 %02d-%02d %02d:%02d", mo, d, h, mi)
}
