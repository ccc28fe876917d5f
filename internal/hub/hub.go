package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/xannhsux/dsci560-hikebot/internal/metrics"
	"github.com/xannhsux/dsci560-hikebot/internal/models"
	"github.com/xannhsux/dsci560-hikebot/internal/store"
)

// Sender is the transport side of a connection. WSSender implements it for
// websockets; tests substitute an in-process fake.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// Conn binds a (room, user) pair to a live transport. Connections are
// process-local and never persisted.
type Conn struct {
	ID     string
	RoomID uuid.UUID
	User   models.User
	sender Sender
}

// roomConns is the per-room connection set. Each room has its own mutex so
// broadcasts in unrelated rooms never serialize against each other.
//
// dead marks a set that the empty-room cleanup has already unlinked from
// Hub.rooms. Writers that fetched the pointer before the unlink must not add
// to it: a connection installed in a dead set would look joined but never
// receive another broadcast. Join and Post check the flag under mu and
// re-fetch.
type roomConns struct {
	mu    sync.Mutex
	dead  bool
	conns map[uuid.UUID]*Conn // keyed by user ID: one connection per (room, user)
}

// Hub is the registry of live connections, grouped by room.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]*roomConns
	store  store.Store
	logger zerolog.Logger
}

// New creates a Hub that persists through the given store.
func New(st store.Store, logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]*roomConns),
		store:  st,
		logger: logger.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) room(roomID uuid.UUID) *roomConns {
	h.mu.Lock()
	defer h.mu.Unlock()
	rc, ok := h.rooms[roomID]
	if !ok {
		rc = &roomConns{conns: make(map[uuid.UUID]*Conn)}
		h.rooms[roomID] = rc
	}
	return rc
}

// lockRoom returns the room's live connection set with its mutex held.
// Between room() and Lock() the last member's Leave may unlink the set; when
// that happened the set is dead and we fetch the replacement.
func (h *Hub) lockRoom(roomID uuid.UUID) *roomConns {
	for {
		rc := h.room(roomID)
		rc.mu.Lock()
		if !rc.dead {
			return rc
		}
		rc.mu.Unlock()
	}
}

// Join registers a connection for (room, user), replacing and closing any
// prior connection for the same pair. It does no I/O beyond closing the
// replaced transport.
func (h *Hub) Join(roomID uuid.UUID, user models.User, sender Sender) *Conn {
	conn := &Conn{
		ID:     ulid.Make().String(),
		RoomID: roomID,
		User:   user,
		sender: sender,
	}

	rc := h.lockRoom(roomID)
	old := rc.conns[user.ID]
	rc.conns[user.ID] = conn
	rc.mu.Unlock()

	if old != nil {
		old.sender.Close()
	} else {
		metrics.ConnectionsActive.Inc()
	}

	h.logger.Debug().
		Str("conn", conn.ID).
		Str("room", roomID.String()).
		Str("user", user.ID.String()).
		Msg("connection joined")

	return conn
}

// Leave removes the user's connection from the room. When the room's set
// empties, the entry is dropped so idle rooms don't hold memory; the room
// row itself persists in the store.
func (h *Hub) Leave(roomID uuid.UUID, userID uuid.UUID) {
	h.mu.Lock()
	rc, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return
	}

	rc.mu.Lock()
	conn, ok := rc.conns[userID]
	if ok {
		delete(rc.conns, userID)
	}
	empty := len(rc.conns) == 0
	rc.mu.Unlock()

	if ok {
		conn.sender.Close()
		metrics.ConnectionsActive.Dec()
	}

	if empty {
		h.mu.Lock()
		if cur, exists := h.rooms[roomID]; exists && cur == rc {
			cur.mu.Lock()
			if len(cur.conns) == 0 {
				cur.dead = true
				delete(h.rooms, roomID)
			}
			cur.mu.Unlock()
		}
		h.mu.Unlock()
	}
}

// Broadcast serializes the message once and delivers it to every connection
// currently registered for the room. A failed send drops only that
// connection (implicit Leave); delivery to the rest continues.
func (h *Hub) Broadcast(roomID uuid.UUID, msg *models.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("room", roomID.String()).Msg("broadcast marshal failed")
		return
	}

	h.mu.RLock()
	rc, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	// Snapshot the member set so a concurrent Leave can't corrupt iteration.
	rc.mu.Lock()
	targets := make([]*Conn, 0, len(rc.conns))
	for _, c := range rc.conns {
		targets = append(targets, c)
	}
	rc.mu.Unlock()

	var failed []*Conn
	for _, c := range targets {
		if err := c.sender.Send(data); err != nil {
			metrics.BroadcastFailures.Inc()
			h.logger.Warn().
				Err(err).
				Str("conn", c.ID).
				Str("room", roomID.String()).
				Msg("send failed, dropping connection")
			failed = append(failed, c)
		}
	}

	metrics.MessagesBroadcast.WithLabelValues(msg.Role).Inc()

	dropFailed(rc, failed)
}

// dropFailed deregisters connections whose send failed. Each is dropped only
// if that exact connection is still registered; the user may have reconnected
// since the write.
func dropFailed(rc *roomConns, failed []*Conn) {
	for _, c := range failed {
		rc.mu.Lock()
		cur, ok := rc.conns[c.User.ID]
		if ok && cur == c {
			delete(rc.conns, c.User.ID)
		} else {
			ok = false
		}
		rc.mu.Unlock()
		if ok {
			c.sender.Close()
			metrics.ConnectionsActive.Dec()
		}
	}
}

// Post persists the message (assigning its id) and broadcasts it. The room
// lock is held across both steps so delivery order within a room equals
// append order for the ingress paths. The observer pipeline's commit uses
// Append+Broadcast separately; system messages carry no ordering guarantee.
func (h *Hub) Post(ctx context.Context, msg *models.Message) error {
	rc := h.lockRoom(msg.RoomID)
	err := h.store.AppendMessage(ctx, msg)
	if err != nil {
		rc.mu.Unlock()
		return err
	}

	// Sends stay under the room lock: a second Post can't deliver its
	// higher id before this one reaches every member. Socket writes are
	// deadline-bounded, so the lock hold is too.
	var failed []*Conn
	data, merr := json.Marshal(msg)
	if merr == nil {
		for _, c := range rc.conns {
			if err := c.sender.Send(data); err != nil {
				metrics.BroadcastFailures.Inc()
				failed = append(failed, c)
			}
		}
	}
	rc.mu.Unlock()

	if merr != nil {
		h.logger.Error().Err(merr).Str("room", msg.RoomID.String()).Msg("post marshal failed")
		return nil
	}
	metrics.MessagesBroadcast.WithLabelValues(msg.Role).Inc()

	dropFailed(rc, failed)
	return nil
}
