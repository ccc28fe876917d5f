package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// SQLiteStore handles SQLite database operations. It backs single-binary
// deployments that don't run Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/hikebot.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/hikebot.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// Appends run in transactions; a single connection avoids SQLITE_BUSY
	// between the seq update and the message insert.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist and seeds the default room
// plus a starter trail catalog.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_by TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_active_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		message_count INTEGER DEFAULT 0,
		last_seq INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS memberships (
		room_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_name TEXT DEFAULT '',
		role TEXT DEFAULT 'member',
		PRIMARY KEY (room_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		room_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		author_id TEXT,
		sender_display TEXT DEFAULT '',
		role TEXT DEFAULT 'user',
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (room_id, seq)
	);

	CREATE TABLE IF NOT EXISTS trails (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT DEFAULT '',
		length_km REAL DEFAULT 0,
		elevation_gain_m INTEGER DEFAULT 0,
		difficulty_rating REAL DEFAULT 0,
		latitude REAL DEFAULT 0,
		longitude REAL DEFAULT 0,
		features TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_last_active ON rooms(last_active_at);
	CREATE INDEX IF NOT EXISTS idx_messages_room_role ON messages(room_id, role, seq);

	-- Seed default room if not exists
	INSERT OR IGNORE INTO rooms (id, name)
	VALUES ('` + BasecampRoomID + `', 'basecamp');

	-- Starter catalog so grounding works before any ingestion has run
	INSERT OR IGNORE INTO trails (id, name, location, length_km, elevation_gain_m, difficulty_rating, latitude, longitude, features) VALUES
	('mailbox-peak', 'Mailbox Peak', 'North Bend, WA', 15.1, 1219, 5.0, 47.4665, -121.6749, 'steep,mailbox_at_top,views'),
	('rattlesnake-ledge', 'Rattlesnake Ledge', 'North Bend, WA', 6.4, 353, 2.5, 47.4326, -121.7679, 'lake_view,crowded,easy'),
	('rainier-skyline', 'Mount Rainier (Skyline Trail)', 'Paradise, WA', 9.0, 518, 4.0, 46.7861, -121.7350, 'glacier,mountain,wildflowers'),
	('mount-si', 'Mount Si', 'North Bend, WA', 12.0, 960, 4.5, 47.4881, -121.7225, 'classic,forest,rocky'),
	('lake-serene', 'Lake Serene', 'Gold Bar, WA', 13.2, 610, 3.5, 47.7828, -121.5644, 'alpine_lake,waterfall,stairs');
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateRoom creates a new room and the creator's owner membership.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string, createdBy *uuid.UUID) (*models.Room, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var createdByStr *string
	if createdBy != nil {
		str := createdBy.String()
		createdByStr = &str
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rooms (id, name, created_by, created_at, last_active_at, message_count, last_seq)
		VALUES (?, ?, ?, ?, ?, 0, 0)
	`, id, name, createdByStr, now, now)
	if err != nil {
		return nil, err
	}

	if createdBy != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO memberships (room_id, user_id, role)
			VALUES (?, ?, ?)
		`, id, createdBy.String(), models.RoleOwner)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetRoom(ctx, uuid.MustParse(id))
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room := &models.Room{}
	var idStr string
	var createdByStr *string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_by, created_at, last_active_at, message_count
		FROM rooms WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&room.Name,
		&createdByStr,
		&room.CreatedAt,
		&room.LastActiveAt,
		&room.MessageCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	room.ID = uuid.MustParse(idStr)
	if createdByStr != nil {
		createdBy := uuid.MustParse(*createdByStr)
		room.CreatedBy = &createdBy
	}
	return room, nil
}

// ListRooms retrieves rooms with pagination, most recently active first.
func (s *SQLiteStore) ListRooms(ctx context.Context, limit, offset int) ([]models.Room, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_by, created_at, last_active_at, message_count
		FROM rooms
		ORDER BY last_active_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	rooms, err := scanRoomRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

func scanRoomRows(rows *sql.Rows) ([]models.Room, error) {
	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		var idStr string
		var createdByStr *string

		err := rows.Scan(
			&idStr,
			&room.Name,
			&createdByStr,
			&room.CreatedAt,
			&room.LastActiveAt,
			&room.MessageCount,
		)
		if err != nil {
			return nil, err
		}

		room.ID = uuid.MustParse(idStr)
		if createdByStr != nil {
			createdBy := uuid.MustParse(*createdByStr)
			room.CreatedBy = &createdBy
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// IsMember reports whether the user has a membership in the room.
func (s *SQLiteStore) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memberships WHERE room_id = ? AND user_id = ?
	`, roomID.String(), userID.String()).Scan(&count)
	return count > 0, err
}

// ListMembers retrieves the memberships of a room.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, user_id, user_name, role
		FROM memberships WHERE room_id = ?
		ORDER BY role, user_name
	`, roomID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		var m models.Membership
		var roomStr, userStr string
		if err := rows.Scan(&roomStr, &userStr, &m.UserName, &m.Role); err != nil {
			return nil, err
		}
		m.RoomID = uuid.MustParse(roomStr)
		m.UserID = uuid.MustParse(userStr)
		members = append(members, m)
	}
	return members, nil
}

// AppendMessage appends a message to the room's log, assigning the next
// gapless sequence id inside one transaction.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE rooms
		SET last_seq = last_seq + 1, message_count = message_count + 1, last_active_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, msg.RoomID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoomNotFound
	}

	var seq int64
	err = tx.QueryRowContext(ctx, `SELECT last_seq FROM rooms WHERE id = ?`, msg.RoomID.String()).Scan(&seq)
	if err != nil {
		return err
	}

	var authorStr *string
	if msg.AuthorID != nil {
		str := msg.AuthorID.String()
		authorStr = &str
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (room_id, seq, author_id, sender_display, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.RoomID.String(), seq, authorStr, msg.Sender, msg.Role, msg.Content, now)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	msg.ID = seq
	msg.CreatedAt = now
	return nil
}

// GetMessage retrieves a single message by room and sequence id.
func (s *SQLiteStore) GetMessage(ctx context.Context, roomID uuid.UUID, id int64) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, room_id, author_id, sender_display, role, content, created_at
		FROM messages WHERE room_id = ? AND seq = ?
	`, roomID.String(), id)

	msg, err := scanMessageRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessageRow(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var roomStr string
	var authorStr *string

	err := row.Scan(
		&msg.ID,
		&roomStr,
		&authorStr,
		&msg.Sender,
		&msg.Role,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.RoomID = uuid.MustParse(roomStr)
	if authorStr != nil {
		author := uuid.MustParse(*authorStr)
		msg.AuthorID = &author
	}
	return msg, nil
}

func scanMessageRows(rows *sql.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		msg, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, nil
}

// RecentMessages retrieves the newest messages of a room in ascending id order.
func (s *SQLiteStore) RecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, room_id, author_id, sender_display, role, content, created_at
		FROM (
			SELECT * FROM messages WHERE room_id = ? ORDER BY seq DESC LIMIT ?
		)
		ORDER BY seq ASC
	`, roomID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

// MessagesBefore retrieves up to limit messages with id < beforeID, ascending.
func (s *SQLiteStore) MessagesBefore(ctx context.Context, roomID uuid.UUID, beforeID int64, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, room_id, author_id, sender_display, role, content, created_at
		FROM (
			SELECT * FROM messages WHERE room_id = ? AND seq < ? ORDER BY seq DESC LIMIT ?
		)
		ORDER BY seq ASC
	`, roomID.String(), beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

// LatestByRoleAndAuthor retrieves the newest message matching role and author.
// A nil authorID matches system-authored messages.
func (s *SQLiteStore) LatestByRoleAndAuthor(ctx context.Context, roomID uuid.UUID, role string, authorID *uuid.UUID) (*models.Message, error) {
	query := `
		SELECT seq, room_id, author_id, sender_display, role, content, created_at
		FROM messages
		WHERE room_id = ? AND role = ? AND author_id IS NULL
		ORDER BY seq DESC LIMIT 1
	`
	args := []any{roomID.String(), role}
	if authorID != nil {
		query = `
			SELECT seq, room_id, author_id, sender_display, role, content, created_at
			FROM messages
			WHERE room_id = ? AND role = ? AND author_id = ?
			ORDER BY seq DESC LIMIT 1
		`
		args = append(args, authorID.String())
	}

	msg, err := scanMessageRow(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListTrails retrieves the full trail catalog.
func (s *SQLiteStore) ListTrails(ctx context.Context) ([]models.Trail, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		var features string
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.Location,
			&t.DistanceKm,
			&t.ElevationGainM,
			&t.Difficulty,
			&t.Latitude,
			&t.Longitude,
			&features,
		); err != nil {
			return nil, err
		}
		if features != "" {
			t.Features = strings.Split(features, ",")
		}
		trails = append(trails, t)
	}
	return trails, nil
}

// CountRooms returns the total number of rooms.
func (s *SQLiteStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count)
	return count, err
}

// SumMessageCount returns the total message count across all rooms.
func (s *SQLiteStore) SumMessageCount(ctx context.Context) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(message_count), 0) FROM rooms`).Scan(&sum)
	return sum, err
}

// GetMostRecentActivity returns the most recent activity timestamp across all rooms.
func (s *SQLiteStore) GetMostRecentActivity(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := s.db.QueryRowContext(ctx, `SELECT MAX(last_active_at) FROM rooms`).Scan(&t)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTopActiveRooms returns the top N most active rooms.
func (s *SQLiteStore) GetTopActiveRooms(ctx context.Context, limit int) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_by, created_at, last_active_at, message_count
		FROM rooms
		ORDER BY message_count DESC, last_active_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoomRows(rows)
}
