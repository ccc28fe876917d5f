package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		created_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_active_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		message_count BIGINT NOT NULL DEFAULT 0,
		last_seq BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS memberships (
		room_id UUID NOT NULL REFERENCES rooms(id),
		user_id UUID NOT NULL,
		user_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'member',
		PRIMARY KEY (room_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		room_id UUID NOT NULL REFERENCES rooms(id),
		seq BIGINT NOT NULL,
		author_id UUID,
		sender_display TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (room_id, seq)
	);

	CREATE TABLE IF NOT EXISTS trails (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		length_km DOUBLE PRECISION NOT NULL DEFAULT 0,
		elevation_gain_m INTEGER NOT NULL DEFAULT 0,
		difficulty_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		features TEXT[] NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_last_active ON rooms(last_active_at);
	CREATE INDEX IF NOT EXISTS idx_messages_room_role ON messages(room_id, role, seq);

	INSERT INTO rooms (id, name)
	VALUES ('` + BasecampRoomID + `', 'basecamp')
	ON CONFLICT (id) DO NOTHING;
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateRoom creates a new room and the creator's owner membership in one
// transaction.
func (s *PostgresStore) CreateRoom(ctx context.Context, name string, createdBy *uuid.UUID) (*models.Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	room := &models.Room{}
	err = tx.QueryRow(ctx, `
		INSERT INTO rooms (name, created_by)
		VALUES ($1, $2)
		RETURNING id, name, created_by, created_at, last_active_at, message_count
	`, name, createdBy).Scan(
		&room.ID,
		&room.Name,
		&room.CreatedBy,
		&room.CreatedAt,
		&room.LastActiveAt,
		&room.MessageCount,
	)
	if err != nil {
		return nil, err
	}

	if createdBy != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO memberships (room_id, user_id, role)
			VALUES ($1, $2, $3)
		`, room.ID, createdBy, models.RoleOwner)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoom retrieves a room by ID.
func (s *PostgresStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_by, created_at, last_active_at, message_count
		FROM rooms WHERE id = $1
	`, id).Scan(
		&room.ID,
		&room.Name,
		&room.CreatedBy,
		&room.CreatedAt,
		&room.LastActiveAt,
		&room.MessageCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// ListRooms retrieves rooms with pagination, most recently active first.
func (s *PostgresStore) ListRooms(ctx context.Context, limit, offset int) ([]models.Room, int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, created_by, created_at, last_active_at, message_count
		FROM rooms
		ORDER BY last_active_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		err := rows.Scan(
			&room.ID,
			&room.Name,
			&room.CreatedBy,
			&room.CreatedAt,
			&room.LastActiveAt,
			&room.MessageCount,
		)
		if err != nil {
			return nil, 0, err
		}
		rooms = append(rooms, room)
	}

	return rooms, total, nil
}

// IsMember reports whether the user has a membership in the room.
func (s *PostgresStore) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM memberships WHERE room_id = $1 AND user_id = $2)
	`, roomID, userID).Scan(&exists)
	return exists, err
}

// ListMembers retrieves the memberships of a room.
func (s *PostgresStore) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.Membership, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT room_id, user_id, user_name, role
		FROM memberships WHERE room_id = $1
		ORDER BY role, user_name
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.UserName, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

// AppendMessage appends a message to the room's log. The room row lock
// taken by the seq UPDATE serializes concurrent appends, so ids come out
// strictly increasing with no gaps.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var seq int64
	err = tx.QueryRow(ctx, `
		UPDATE rooms
		SET last_seq = last_seq + 1, message_count = message_count + 1, last_active_at = NOW()
		WHERE id = $1
		RETURNING last_seq
	`, msg.RoomID).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRoomNotFound
		}
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (room_id, seq, author_id, sender_display, role, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, msg.RoomID, seq, msg.AuthorID, msg.Sender, msg.Role, msg.Content).Scan(&msg.CreatedAt)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	msg.ID = seq
	return nil
}

// GetMessage retrieves a single message by room and sequence id.
func (s *PostgresStore) GetMessage(ctx context.Context, roomID uuid.UUID, id int64) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT seq, room_id, author_id, sender_display, role, content, created_at
		FROM messages WHERE room_id = $1 AND seq = $2
	`, roomID, id).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.AuthorID,
		&msg.Sender,
		&msg.Role,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// RecentMessages retrieves the newest messages of a room in ascending id order.
func (s *PostgresStore) RecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, room_id, author_id, sender_display, role, content, created_at
		FROM (
			SELECT * FROM messages WHERE room_id = $1 ORDER BY seq DESC LIMIT $2
		) m
		ORDER BY seq ASC
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MessagesBefore retrieves up to limit messages with id < beforeID, ascending.
func (s *PostgresStore) MessagesBefore(ctx context.Context, roomID uuid.UUID, beforeID int64, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, room_id, author_id, sender_display, role, content, created_at
		FROM (
			SELECT * FROM messages WHERE room_id = $1 AND seq < $2 ORDER BY seq DESC LIMIT $3
		) m
		ORDER BY seq ASC
	`, roomID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.AuthorID,
			&msg.Sender,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// LatestByRoleAndAuthor retrieves the newest message in a room matching the
// role and author. A nil authorID matches system-authored messages.
func (s *PostgresStore) LatestByRoleAndAuthor(ctx context.Context, roomID uuid.UUID, role string, authorID *uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT seq, room_id, author_id, sender_display, role, content, created_at
		FROM messages
		WHERE room_id = $1 AND role = $2 AND author_id IS NOT DISTINCT FROM $3
		ORDER BY seq DESC LIMIT 1
	`, roomID, role, authorID).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.AuthorID,
		&msg.Sender,
		&msg.Role,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListTrails retrieves the full trail catalog.
func (s *PostgresStore) ListTrails(ctx context.Context) ([]models.Trail, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, location, length_km, elevation_gain_m, difficulty_rating,
		       latitude, longitude, features
		FROM trails ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trails []models.Trail
	for rows.Next() {
		var t models.Trail
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.Location,
			&t.DistanceKm,
			&t.ElevationGainM,
			&t.Difficulty,
			&t.Latitude,
			&t.Longitude,
			&t.Features,
		); err != nil {
			return nil, err
		}
		trails = append(trails, t)
	}
	return trails, nil
}

// CountRooms returns the total number of rooms.
func (s *PostgresStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count)
	return count, err
}

// SumMessageCount returns the total message count across all rooms.
func (s *PostgresStore) SumMessageCount(ctx context.Context) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(message_count), 0) FROM rooms`).Scan(&sum)
	return sum, err
}

// GetMostRecentActivity returns the most recent activity timestamp across all rooms.
func (s *PostgresStore) GetMostRecentActivity(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(last_active_at) FROM rooms`).Scan(&t)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTopActiveRooms returns the top N most active rooms.
func (s *PostgresStore) GetTopActiveRooms(ctx context.Context, limit int) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, created_by, created_at, last_active_at, message_count
		FROM rooms
		ORDER BY message_count DESC, last_active_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		err := rows.Scan(
			&room.ID,
			&room.Name,
			&room.CreatedBy,
			&room.CreatedAt,
			&room.LastActiveAt,
			&room.MessageCount,
		)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
