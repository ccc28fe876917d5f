package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// BasecampRoomID is the seeded default room every deployment starts with.
const BasecampRoomID = "00000000-0000-0000-0000-000000000001"

// ErrRoomNotFound is returned by AppendMessage when the target room does not exist.
var ErrRoomNotFound = errors.New("room not found")

// Store defines the interface for durable storage of rooms, memberships,
// messages and the trail catalog. PostgresStore, SQLiteStore and MemoryStore
// implement this interface.
type Store interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Room operations
	CreateRoom(ctx context.Context, name string, createdBy *uuid.UUID) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListRooms(ctx context.Context, limit, offset int) ([]models.Room, int, error)

	// Membership reads (writes beyond room creation are the social-graph
	// service's job)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.Membership, error)

	// Message log. AppendMessage assigns msg.ID from the room's sequence:
	// strictly increasing, gapless, serialized per room.
	AppendMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, roomID uuid.UUID, id int64) (*models.Message, error)
	RecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error)
	MessagesBefore(ctx context.Context, roomID uuid.UUID, beforeID int64, limit int) ([]models.Message, error)
	LatestByRoleAndAuthor(ctx context.Context, roomID uuid.UUID, role string, authorID *uuid.UUID) (*models.Message, error)

	// Trail catalog (primary source; the seed set is the fallback)
	ListTrails(ctx context.Context) ([]models.Trail, error)

	// Stats
	CountRooms(ctx context.Context) (int64, error)
	SumMessageCount(ctx context.Context) (int64, error)
	GetMostRecentActivity(ctx context.Context) (*time.Time, error)
	GetTopActiveRooms(ctx context.Context, limit int) ([]models.Room, error)
}
