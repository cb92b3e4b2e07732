package session

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"note-assistant/internal/logx"
	"note-assistant/internal/store"
)

func seedLegacyHistory(t *testing.T, st *store.DiskStore, msgs []Message) {
	t.Helper()
	data, err := json.Marshal(msgs)
	if err != nil {
		t.Fatalf("marshal legacy history: %v", err)
	}
	if err := st.Write("chat_history.json", data); err != nil {
		t.Fatalf("write legacy history: %v", err)
	}
}

func TestMigrateLegacyHistory(t *testing.T) {
	st := &store.DiskStore{Root: t.TempDir()}
	msgs := []Message{
		{Role: RoleUser, Content: "old question"},
		{Role: RoleAssistant, Content: "old answer"},
	}
	seedLegacyHistory(t, st, msgs)

	m := NewManager(st, logx.New(io.Discard))
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	sess := m.CurrentSession()
	if sess == nil {
		t.Fatal("no current session after migration")
	}
	if !strings.HasPrefix(sess.SessionID, "migrated_") {
		t.Fatalf("migrated id = %q, want migrated_ prefix", sess.SessionID)
	}
	if !strings.HasPrefix(sess.SessionName, "历史会话") {
		t.Fatalf("migrated name = %q, want 历史会话 prefix", sess.SessionName)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("migrated %d messages, want 2", len(sess.Messages))
	}
	if sess.Messages[0].Content != "old question" {
		t.Fatalf("first message = %q", sess.Messages[0].Content)
	}

	if st.Exists("chat_history.json") {
		t.Fatal("legacy file not removed after migration")
	}
	if !st.Exists("chat_history.json.backup") {
		t.Fatal("legacy backup missing")
	}
}

func TestMigration_SkippedWhenIndexExists(t *testing.T) {
	st := &store.DiskStore{Root: t.TempDir()}

	m := NewManager(st, logx.New(io.Discard))
	if err := m.Initialize(); err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	existing := m.CurrentSessionID()

	// A legacy file appearing after the index exists must be ignored.
	seedLegacyHistory(t, st, []Message{{Role: RoleUser, Content: "late arrival"}})

	m2 := NewManager(st, logx.New(io.Discard))
	if err := m2.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if m2.CurrentSessionID() != existing {
		t.Fatalf("current changed: %q -> %q", existing, m2.CurrentSessionID())
	}
	if !st.Exists("chat_history.json") {
		t.Fatal("legacy file was consumed even though index existed")
	}
	if len(m2.AllSessions()) != 1 {
		t.Fatalf("AllSessions = %d, want 1", len(m2.AllSessions()))
	}
}

func TestMigration_EmptyLegacyCreatesDefault(t *testing.T) {
	st := &store.DiskStore{Root: t.TempDir()}
	seedLegacyHistory(t, st, []Message{})

	m := NewManager(st, logx.New(io.Discard))
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	sess := m.CurrentSession()
	if sess == nil {
		t.Fatal("no current session")
	}
	if strings.HasPrefix(sess.SessionID, "migrated_") {
		t.Fatal("empty legacy history produced a migrated session")
	}
}

func TestMigration_CorruptLegacyFallsBack(t *testing.T) {
	st := &store.DiskStore{Root: t.TempDir()}
	if err := st.Write("chat_history.json", []byte("{broken")); err != nil {
		t.Fatalf("seed corrupt legacy: %v", err)
	}

	m := NewManager(st, logx.New(io.Discard))
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if m.CurrentSession() == nil {
		t.Fatal("no current session after corrupt legacy history")
	}
}
