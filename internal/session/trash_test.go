package session

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"note-assistant/internal/logx"
	"note-assistant/internal/store"
)

func writeSessionFile(t *testing.T, st *store.DiskStore, path string, sess Session) {
	t.Helper()
	data, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	if err := st.Write(path, data); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDeleteSession_MovesContentToTrash(t *testing.T) {
	m, st := newTestManager(t)
	id, err := m.CreateSession("doomed")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	m.AddMessage(Message{Role: RoleUser, Content: "keep me"})
	if err := m.SaveSession(m.CurrentSession()); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	if !m.DeleteSession(id) {
		t.Fatal("DeleteSession returned false")
	}

	if st.Exists("sessions/" + id + ".json") {
		t.Fatal("session content still under sessions/ after delete")
	}
	if !st.Exists("trash/" + id + ".json") {
		t.Fatal("session content missing from trash")
	}

	items := m.TrashItems()
	if len(items) != 1 {
		t.Fatalf("TrashItems = %d, want 1", len(items))
	}
	if items[0].SessionID != id || items[0].SessionName != "doomed" {
		t.Fatalf("trash entry = %+v", items[0])
	}
}

func TestRestoreSessionFromTrash(t *testing.T) {
	m, st := newTestManager(t)
	id, err := m.CreateSession("restorable")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	m.AddMessage(Message{Role: RoleUser, Content: "survives the trash"})
	if err := m.SaveSession(m.CurrentSession()); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	if !m.DeleteSession(id) {
		t.Fatal("DeleteSession returned false")
	}
	if !m.RestoreSessionFromTrash(id) {
		t.Fatal("RestoreSessionFromTrash returned false")
	}

	if len(m.TrashItems()) != 0 {
		t.Fatal("trash entry not removed after restore")
	}
	if st.Exists("trash/" + id + ".json") {
		t.Fatal("trash content not removed after restore")
	}

	restored, err := m.LoadSession(id)
	if err != nil {
		t.Fatalf("LoadSession restored: %v", err)
	}
	if len(restored.Messages) != 1 || restored.Messages[0].Content != "survives the trash" {
		t.Fatalf("restored content = %+v", restored.Messages)
	}

	found := false
	for _, meta := range m.AllSessions() {
		if meta.SessionID == id {
			found = true
			if meta.MessageCount != 1 {
				t.Fatalf("restored metadata MessageCount = %d, want 1", meta.MessageCount)
			}
		}
	}
	if !found {
		t.Fatal("restored session missing from index")
	}
}

func TestRestoreSessionFromTrash_UnknownIDIsFalse(t *testing.T) {
	m, _ := newTestManager(t)
	if m.RestoreSessionFromTrash("session_404") {
		t.Fatal("restoring unknown id reported success")
	}
}

func TestMoveSessionToTrash_NameCollisionGetsSuffix(t *testing.T) {
	m, st := newTestManager(t)
	id, err := m.CreateSession("twice")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	// A leftover content file with the plain name forces the suffix path.
	if err := st.Write("trash/"+id+".json", []byte(`{"sessionId":"stale"}`)); err != nil {
		t.Fatalf("seed trash file: %v", err)
	}

	if !m.DeleteSession(id) {
		t.Fatal("DeleteSession returned false")
	}

	paths, err := st.List("trash")
	if err != nil {
		t.Fatalf("List trash: %v", err)
	}
	content := 0
	for _, p := range paths {
		if p != "trash_index.json" {
			content++
		}
	}
	if content != 2 {
		t.Fatalf("trash content files = %d, want 2 (original kept, suffixed copy added): %v", content, paths)
	}
}

func TestPermanentlyDeleteFromTrash(t *testing.T) {
	m, st := newTestManager(t)
	id, err := m.CreateSession("gone forever")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !m.DeleteSession(id) {
		t.Fatal("DeleteSession returned false")
	}

	if !m.PermanentlyDeleteFromTrash(id) {
		t.Fatal("PermanentlyDeleteFromTrash returned false")
	}
	if len(m.TrashItems()) != 0 {
		t.Fatal("trash entry survived permanent delete")
	}
	if st.Exists("trash/" + id + ".json") {
		t.Fatal("trash content survived permanent delete")
	}
	if m.PermanentlyDeleteFromTrash(id) {
		t.Fatal("second permanent delete reported success")
	}
}

func TestClearAllTrash(t *testing.T) {
	m, _ := newTestManager(t)
	for i := 0; i < 3; i++ {
		id, err := m.CreateSession("bulk")
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if !m.DeleteSession(id) {
			t.Fatal("DeleteSession returned false")
		}
	}

	if n := m.ClearAllTrash(); n != 3 {
		t.Fatalf("ClearAllTrash = %d, want 3", n)
	}
	if len(m.TrashItems()) != 0 {
		t.Fatal("trash not empty after clear")
	}
}

func TestSweepExpiredTrash(t *testing.T) {
	m, st := newTestManager(t)
	base := time.Now()
	m.now = func() time.Time { return base }

	oldID, err := m.CreateSession("old")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !m.DeleteSession(oldID) {
		t.Fatal("DeleteSession old: returned false")
	}

	m.now = func() time.Time { return base.Add(5 * 24 * time.Hour) }
	freshID, err := m.CreateSession("fresh")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !m.DeleteSession(freshID) {
		t.Fatal("DeleteSession fresh: returned false")
	}

	// Eight days after the first delete: old is past retention, fresh
	// is three days in.
	m.now = func() time.Time { return base.Add(8 * 24 * time.Hour) }
	m.SweepExpiredTrash()

	items := m.TrashItems()
	if len(items) != 1 {
		t.Fatalf("TrashItems after sweep = %d, want 1", len(items))
	}
	if items[0].SessionID != freshID {
		t.Fatalf("surviving item = %s, want %s", items[0].SessionID, freshID)
	}
	if st.Exists("trash/" + oldID + ".json") {
		t.Fatal("expired trash content not deleted")
	}
	if !st.Exists("trash/" + freshID + ".json") {
		t.Fatal("fresh trash content was deleted")
	}
}

func TestSweepExpiredTrash_OrphanContentUsesSessionTimestamp(t *testing.T) {
	st := &store.DiskStore{Root: t.TempDir()}
	m := NewManager(st, logx.New(io.Discard))
	base := time.Now()
	m.now = func() time.Time { return base }

	// Content present in the trash with no index entry, stamped well
	// past retention.
	stale := Session{
		SessionID:   "session_1",
		SessionName: "orphan",
		UpdatedAt:   base.Add(-9 * 24 * time.Hour).UnixMilli(),
	}
	writeSessionFile(t, st, "trash/session_1.json", stale)

	recent := Session{
		SessionID:   "session_2",
		SessionName: "recent orphan",
		UpdatedAt:   base.Add(-1 * 24 * time.Hour).UnixMilli(),
	}
	writeSessionFile(t, st, "trash/session_2.json", recent)

	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if st.Exists("trash/session_1.json") {
		t.Fatal("expired orphan survived the sweep")
	}
	if !st.Exists("trash/session_2.json") {
		t.Fatal("recent orphan was swept")
	}
}

func TestTrashOperations_IDPrefixDoesNotMatchOtherSessions(t *testing.T) {
	m, st := newTestManager(t)
	now := time.Now().UnixMilli()

	writeSessionFile(t, st, "trash/session_100.json", Session{
		SessionID: "session_100", SessionName: "short", UpdatedAt: now,
	})
	writeSessionFile(t, st, "trash/session_1000.json", Session{
		SessionID: "session_1000", SessionName: "long", UpdatedAt: now,
	})
	items, err := json.Marshal([]TrashItem{
		{SessionID: "session_100", SessionName: "short", DeletedAt: now},
		{SessionID: "session_1000", SessionName: "long", DeletedAt: now},
	})
	if err != nil {
		t.Fatalf("marshal trash index: %v", err)
	}
	if err := st.Write("trash_index.json", items); err != nil {
		t.Fatalf("write trash index: %v", err)
	}

	if !m.PermanentlyDeleteFromTrash("session_100") {
		t.Fatal("PermanentlyDeleteFromTrash(session_100) = false")
	}
	if st.Exists("trash/session_100.json") {
		t.Fatal("session_100 content still in trash")
	}
	if !st.Exists("trash/session_1000.json") {
		t.Fatal("session_1000 content deleted by a shorter id")
	}

	left := m.TrashItems()
	if len(left) != 1 || left[0].SessionID != "session_1000" {
		t.Fatalf("trash items after delete = %+v", left)
	}
	if !m.RestoreSessionFromTrash("session_1000") {
		t.Fatal("RestoreSessionFromTrash(session_1000) = false")
	}
	if !st.Exists("sessions/session_1000.json") {
		t.Fatal("session_1000 not restored")
	}
}
