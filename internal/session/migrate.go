package session

import (
	"encoding/json"
	"fmt"
)

// needsMigration reports whether the legacy single-file history exists
// while the new index does not. Running migration again once the index is
// present is a no-op.
func (m *Manager) needsMigration() bool {
	return m.store.Exists(legacyHistoryPath) && !m.store.Exists(indexPath)
}

// migrateLegacyHistory wraps the flat legacy message array as one session,
// creates the index pointing at it, and keeps the old file under a .backup
// suffix.
func (m *Manager) migrateLegacyHistory() error {
	data, err := m.store.Read(legacyHistoryPath)
	if err != nil {
		return err
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("legacy history corrupt: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	now := m.nowMillis()
	t := m.now()
	sess := &Session{
		SessionID:   fmt.Sprintf("migrated_%d", now),
		SessionName: fmt.Sprintf("历史会话 %d-%d %d:%02d", t.Month(), t.Day(), t.Hour(), t.Minute()),
		CreatedAt:   now,
		UpdatedAt:   now,
		Messages:    msgs,
	}

	m.index = &Index{
		Version:          indexVersion,
		CurrentSessionID: sess.SessionID,
		Sessions:         []Metadata{sess.metadata()},
	}
	if err := m.saveSession(sess); err != nil {
		return err
	}
	if err := m.saveIndex(); err != nil {
		return err
	}
	m.current = sess

	backup := legacyHistoryPath + ".backup"
	if !m.store.Exists(backup) {
		if err := m.store.Copy(legacyHistoryPath, backup); err != nil {
			return err
		}
	}
	if err := m.store.Delete(legacyHistoryPath); err != nil {
		return err
	}
	m.log.Info("legacy history migrated", map[string]interface{}{"messages": len(msgs)})
	return nil
}
