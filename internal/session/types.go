package session

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn. Thinking is only set on assistant
// messages produced with deep-thinking enabled.
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

// Session is a named, ordered conversation. Timestamps are unix
// milliseconds so session files written by older plugin versions keep
// parsing unchanged.
type Session struct {
	SessionID   string    `json:"sessionId"`
	SessionName string    `json:"sessionName"`
	CreatedAt   int64     `json:"createdAt"`
	UpdatedAt   int64     `json:"updatedAt"`
	Messages    []Message `json:"messages"`
}

// Metadata is the denormalized projection of a Session kept in the index.
type Metadata struct {
	SessionID    string `json:"sessionId"`
	SessionName  string `json:"sessionName"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
	MessageCount int    `json:"messageCount"`
}

// Index tracks every live session and which one is current.
type Index struct {
	Version          string     `json:"version"`
	CurrentSessionID string     `json:"currentSessionId"`
	Sessions         []Metadata `json:"sessions"`
}

// TrashItem records a soft-deleted session. The session content itself
// lives under the trash directory until restore, purge, or expiry.
type TrashItem struct {
	SessionID   string `json:"sessionId"`
	SessionName string `json:"sessionName"`
	DeletedAt   int64  `json:"deletedAt"`
}

func (s *Session) metadata() Metadata {
	return Metadata{
		SessionID:    s.SessionID,
		SessionName:  s.SessionName,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: len(s.Messages),
	}
}
