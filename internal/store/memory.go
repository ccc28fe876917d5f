package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// MemoryStore is an in-process Store. It backs tests and running without a
// database; nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]*models.Room
	members  map[uuid.UUID][]models.Membership
	messages map[uuid.UUID][]models.Message
	trails   []models.Trail
}

// NewMemoryStore creates an empty in-memory store with the default room
// seeded, matching what the SQLite schema bootstrap does.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		rooms:    make(map[uuid.UUID]*models.Room),
		members:  make(map[uuid.UUID][]models.Membership),
		messages: make(map[uuid.UUID][]models.Message),
	}
	id := uuid.MustParse(BasecampRoomID)
	now := time.Now().UTC()
	s.rooms[id] = &models.Room{ID: id, Name: "basecamp", CreatedAt: now, LastActiveAt: now}
	return s
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// SetTrails replaces the in-memory trail catalog.
func (s *MemoryStore) SetTrails(trails []models.Trail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trails = trails
}

// AddMember records a membership directly. Tests and the no-DB dev mode use
// this in place of the social-graph service.
func (s *MemoryStore) AddMember(roomID, userID uuid.UUID, userName, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[roomID] {
		if m.UserID == userID {
			return
		}
	}
	s.members[roomID] = append(s.members[roomID], models.Membership{
		RoomID:   roomID,
		UserID:   userID,
		UserName: userName,
		Role:     role,
	})
}

// CreateRoom creates a new room and the creator's owner membership.
func (s *MemoryStore) CreateRoom(ctx context.Context, name string, createdBy *uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	room := &models.Room{
		ID:           uuid.New(),
		Name:         name,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	s.rooms[room.ID] = room

	if createdBy != nil {
		s.members[room.ID] = append(s.members[room.ID], models.Membership{
			RoomID: room.ID,
			UserID: *createdBy,
			Role:   models.RoleOwner,
		})
	}

	copied := *room
	return &copied, nil
}

// GetRoom retrieves a room by ID.
func (s *MemoryStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	copied := *room
	return &copied, nil
}

// ListRooms retrieves rooms with pagination, most recently active first.
func (s *MemoryStore) ListRooms(ctx context.Context, limit, offset int) ([]models.Room, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]models.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].LastActiveAt.After(all[j].LastActiveAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

// IsMember reports whether the user has a membership in the room.
func (s *MemoryStore) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.members[roomID] {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// ListMembers retrieves the memberships of a room.
func (s *MemoryStore) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Membership(nil), s.members[roomID]...), nil
}

// AppendMessage appends a message to the room's log under the store mutex,
// so ids come out strictly increasing with no gaps.
func (s *MemoryStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[msg.RoomID]
	if !ok {
		return ErrRoomNotFound
	}

	msg.ID = int64(len(s.messages[msg.RoomID])) + 1
	msg.CreatedAt = time.Now().UTC()
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], *msg)

	room.MessageCount++
	room.LastActiveAt = msg.CreatedAt
	return nil
}

// GetMessage retrieves a single message by room and sequence id.
func (s *MemoryStore) GetMessage(ctx context.Context, roomID uuid.UUID, id int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[roomID]
	if id < 1 || id > int64(len(log)) {
		return nil, nil
	}
	copied := log[id-1]
	return &copied, nil
}

// RecentMessages retrieves the newest messages of a room in ascending id order.
func (s *MemoryStore) RecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[roomID]
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	return append([]models.Message(nil), log...), nil
}

// MessagesBefore retrieves up to limit messages with id < beforeID, ascending.
func (s *MemoryStore) MessagesBefore(ctx context.Context, roomID uuid.UUID, beforeID int64, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[roomID]
	end := beforeID - 1
	if end > int64(len(log)) {
		end = int64(len(log))
	}
	if end <= 0 {
		return nil, nil
	}
	start := end - int64(limit)
	if start < 0 {
		start = 0
	}
	return append([]models.Message(nil), log[start:end]...), nil
}

// LatestByRoleAndAuthor retrieves the newest message matching role and author.
// A nil authorID matches system-authored messages.
func (s *MemoryStore) LatestByRoleAndAuthor(ctx context.Context, roomID uuid.UUID, role string, authorID *uuid.UUID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[roomID]
	for i := len(log) - 1; i >= 0; i-- {
		msg := log[i]
		if msg.Role != role {
			continue
		}
		if authorID == nil {
			if msg.AuthorID != nil {
				continue
			}
		} else if msg.AuthorID == nil || *msg.AuthorID != *authorID {
			continue
		}
		copied := msg
		return &copied, nil
	}
	return nil, nil
}

// ListTrails retrieves the trail catalog.
func (s *MemoryStore) ListTrails(ctx context.Context) ([]models.Trail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Trail(nil), s.trails...), nil
}

// CountRooms returns the total number of rooms.
func (s *MemoryStore) CountRooms(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rooms)), nil
}

// SumMessageCount returns the total message count across all rooms.
func (s *MemoryStore) SumMessageCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, r := range s.rooms {
		sum += r.MessageCount
	}
	return sum, nil
}

// GetMostRecentActivity returns the most recent activity timestamp across all rooms.
func (s *MemoryStore) GetMostRecentActivity(ctx context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *time.Time
	for _, r := range s.rooms {
		t := r.LastActiveAt
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest, nil
}

// GetTopActiveRooms returns the top N most active rooms.
func (s *MemoryStore) GetTopActiveRooms(ctx context.Context, limit int) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]models.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].MessageCount != all[j].MessageCount {
			return all[i].MessageCount > all[j].MessageCount
		}
		return all[i].LastActiveAt.After(all[j].LastActiveAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
