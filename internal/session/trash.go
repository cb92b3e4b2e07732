package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"note-assistant/internal/store"
)

// Trash retention window. Items older than this are purged during
// Initialize.
const trashRetention = 7 * 24 * time.Hour

func (m *Manager) loadTrashIndex() []TrashItem {
	data, err := m.store.Read(trashIndexPath)
	if err != nil {
		return []TrashItem{}
	}
	var items []TrashItem
	if err := json.Unmarshal(data, &items); err != nil {
		m.log.Warn("trash index corrupt, resetting", nil)
		return []TrashItem{}
	}
	return items
}

func (m *Manager) saveTrashIndex(items []TrashItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return m.store.Write(trashIndexPath, data)
}

// trashContentPaths returns the content files for a trashed session.
// There can be more than one when an id was deleted, restored, and
// deleted again; suffixed copies are matched too.
func (m *Manager) trashContentPaths(id string) []string {
	paths, err := m.store.List(trashDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, p := range paths {
		base := strings.TrimPrefix(p, trashDir+"/")
		// Exact id or a suffixed copy only. A bare prefix test would
		// also catch distinct ids that merely extend this one.
		if base == id+".json" || (strings.HasPrefix(base, id+"_") && strings.HasSuffix(base, ".json")) {
			out = append(out, p)
		}
	}
	return out
}

// moveSessionToTrash copies the session content into the trash and then
// deletes the original. Copy-then-delete keeps at least one intact copy
// if the operation is interrupted.
func (m *Manager) moveSessionToTrash(id string) error {
	src := sessionPath(id)
	target := trashDir + "/" + id + ".json"
	if m.store.Exists(target) {
		target = fmt.Sprintf("%s/%s_%d.json", trashDir, id, m.nowMillis())
	}
	if err := m.store.Copy(src, target); err != nil {
		return err
	}
	if err := m.store.Delete(src); err != nil {
		return err
	}

	name := id
	if sess := m.readTrashedSession(target); sess != nil {
		name = sess.SessionName
	}
	items := m.loadTrashIndex()
	items = append(items, TrashItem{
		SessionID:   id,
		SessionName: name,
		DeletedAt:   m.nowMillis(),
	})
	return m.saveTrashIndex(items)
}

func (m *Manager) readTrashedSession(path string) *Session {
	data, err := m.store.Read(path)
	if err != nil {
		return nil
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil
	}
	return &sess
}

// TrashItems returns the trash metadata, most recently deleted first.
func (m *Manager) TrashItems() []TrashItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.loadTrashIndex()
	sort.Slice(items, func(i, j int) bool {
		return items[i].DeletedAt > items[j].DeletedAt
	})
	return items
}

// TrashSessions reads the trashed content files and projects them to
// metadata, most recently updated first. Unreadable files are skipped.
func (m *Manager) TrashSessions() []Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths, err := m.store.List(trashDir)
	if err != nil {
		return []Metadata{}
	}
	out := []Metadata{}
	for _, p := range paths {
		if !strings.HasSuffix(p, ".json") {
			continue
		}
		if sess := m.readTrashedSession(p); sess != nil {
			out = append(out, sess.metadata())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out
}

// RestoreSessionFromTrash moves a trashed session back into the index.
// The restored metadata is computed from the restored content, not from
// any cached value.
func (m *Manager) RestoreSessionFromTrash(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := m.trashContentPaths(id)
	if len(paths) == 0 {
		return false
	}
	path := paths[0]
	sess := m.readTrashedSession(path)
	if sess == nil {
		return false
	}

	if err := m.store.Copy(path, sessionPath(sess.SessionID)); err != nil {
		m.log.Error("restore copy failed", map[string]interface{}{"session": id, "error": err.Error()})
		return false
	}

	if m.index == nil {
		if err := m.loadOrCreateIndex(); err != nil {
			return false
		}
	}
	m.index.Sessions = append(m.index.Sessions, sess.metadata())
	if err := m.saveIndex(); err != nil {
		m.log.Error("save index after restore failed", map[string]interface{}{"error": err.Error()})
		return false
	}

	m.removeTrashEntry(id, path)
	return true
}

// PermanentlyDeleteFromTrash erases a trashed session's content and its
// trash index entry.
func (m *Manager) PermanentlyDeleteFromTrash(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permanentlyDeleteFromTrash(id)
}

func (m *Manager) permanentlyDeleteFromTrash(id string) bool {
	paths := m.trashContentPaths(id)
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if err := m.store.Delete(p); err != nil && !errors.Is(err, store.ErrNotFound) {
			m.log.Error("trash delete failed", map[string]interface{}{"path": p, "error": err.Error()})
			return false
		}
	}
	items := m.loadTrashIndex()
	kept := items[:0]
	for _, it := range items {
		if it.SessionID != id {
			kept = append(kept, it)
		}
	}
	if err := m.saveTrashIndex(kept); err != nil {
		return false
	}
	return true
}

// ClearAllTrash purges every trashed session. Returns how many were
// removed.
func (m *Manager) ClearAllTrash() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.loadTrashIndex() {
		if m.permanentlyDeleteFromTrash(it.SessionID) {
			n++
		}
	}
	return n
}

func (m *Manager) removeTrashEntry(id, contentPath string) {
	if err := m.store.Delete(contentPath); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.log.Warn("trash content delete failed", map[string]interface{}{"path": contentPath, "error": err.Error()})
	}
	items := m.loadTrashIndex()
	kept := items[:0]
	for _, it := range items {
		if it.SessionID != id {
			kept = append(kept, it)
		}
	}
	if err := m.saveTrashIndex(kept); err != nil {
		m.log.Warn("save trash index failed", map[string]interface{}{"error": err.Error()})
	}
}

// SweepExpiredTrash removes trash entries past the retention window,
// deleting metadata and content together. Orphan content files with no
// index entry fall back to the session's own updatedAt stamp.
func (m *Manager) SweepExpiredTrash() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepExpiredTrash()
}

func (m *Manager) sweepExpiredTrash() {
	cutoff := m.now().Add(-trashRetention).UnixMilli()

	items := m.loadTrashIndex()
	kept := items[:0]
	removed := 0
	seen := map[string]bool{}
	for _, it := range items {
		seen[it.SessionID] = true
		if it.DeletedAt < cutoff {
			for _, p := range m.trashContentPaths(it.SessionID) {
				_ = m.store.Delete(p)
			}
			removed++
			continue
		}
		kept = append(kept, it)
	}
	if removed > 0 {
		if err := m.saveTrashIndex(kept); err != nil {
			m.log.Warn("save trash index after sweep failed", map[string]interface{}{"error": err.Error()})
		}
	}

	// Orphans: content present with no trash entry.
	paths, err := m.store.List(trashDir)
	if err != nil {
		return
	}
	for _, p := range paths {
		if !strings.HasSuffix(p, ".json") {
			continue
		}
		sess := m.readTrashedSession(p)
		if sess == nil || seen[sess.SessionID] {
			continue
		}
		if sess.UpdatedAt < cutoff {
			_ = m.store.Delete(p)
			removed++
		}
	}
	if removed > 0 {
		m.log.Info("expired trash swept", map[string]interface{}{"removed": removed})
	}
}
