package network

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type UpdateKind string

const (
	UpdateNewMessage UpdateKind = "message"
	UpdateEdit       UpdateKind = "edit"
	UpdateRead       UpdateKind = "read"
	UpdateOther      UpdateKind = "other"
)

// Envelope is the wire format of everything published to an agent inbox.
type Envelope struct {
	ID     string     `json:"id"`
	Kind   UpdateKind `json:"kind"`
	From   int64      `json:"from"`
	To     int64      `json:"to"`
	Text   string     `json:"text,omitempty"`
	SentAt time.Time  `json:"sent_at"`
}

// Update is a decoded inbound envelope.
type Update struct {
	Kind      UpdateKind
	From      int64
	MessageID string
	Text      string
}

// SenderID returns the sending agent. Agent IDs are positive, so zero means
// the sender is unknown.
func (u *Update) SenderID() (int64, bool) {
	return u.From, u.From > 0
}

func (u *Update) IsNewMessage() bool {
	return u.Kind == UpdateNewMessage
}

func decodeUpdate(data []byte) *Update {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &Update{Kind: UpdateOther}
	}

	kind := env.Kind
	switch kind {
	case UpdateNewMessage, UpdateEdit, UpdateRead:
	default:
		kind = UpdateOther
	}

	return &Update{
		Kind:      kind,
		From:      env.From,
		MessageID: env.ID,
		Text:      env.Text,
	}
}

// DirectoryEntry is the value stored under a handle in the directory bucket.
type DirectoryEntry struct {
	ID           int64     `json:"id"`
	Handle       string    `json:"handle"`
	RegisteredAt time.Time `json:"registered_at"`
}

// directoryKey maps a public handle to its directory key.
func directoryKey(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

func inboxSubject(prefix string, agentID int64) string {
	return fmt.Sprintf("%s.%d.inbox", prefix, agentID)
}
