package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership roles.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Room represents a group chat channel with an ordered message log.
type Room struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt time.Time  `json:"last_active_at"`
	MessageCount int64      `json:"message_count"`
}

// Membership binds a user to a room with a role.
// Membership CRUD beyond room creation belongs to the social-graph service;
// this core only reads memberships to gate joins and list members.
type Membership struct {
	RoomID   uuid.UUID `json:"room_id"`
	UserID   uuid.UUID `json:"user_id"`
	UserName string    `json:"user_name"`
	Role     string    `json:"role"`
}
