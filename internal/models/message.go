package models

import (
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
)

// Message is one immutable entry in a room's append-only log.
// ID is a per-room sequence: strictly increasing, gapless, assigned by the
// store at append time. AuthorID is nil for system-authored messages.
// Content is either plain text or a JSON-encoded Announcement.
type Message struct {
	ID        int64      `json:"id"`
	RoomID    uuid.UUID  `json:"room_id"`
	AuthorID  *uuid.UUID `json:"author_id,omitempty"`
	Sender    string     `json:"sender_display"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}
