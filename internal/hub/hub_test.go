package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
	"github.com/xannhsux/dsci560-hikebot/internal/store"
)

// fakeSender records deliveries in-process.
type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send failed")
	}
	copied := append([]byte(nil), data...)
	f.frames = append(f.frames, copied)
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) received(t *testing.T) []models.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, 0, len(f.frames))
	for _, frame := range f.frames {
		var msg models.Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			t.Fatal(err)
		}
		out = append(out, msg)
	}
	return out
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testHub(t *testing.T) (*Hub, *store.MemoryStore, uuid.UUID) {
	t.Helper()
	st := store.NewMemoryStore()
	h := New(st, zerolog.Nop())
	return h, st, uuid.MustParse(store.BasecampRoomID)
}

func testUser(name string) models.User {
	return models.User{ID: uuid.New(), Name: name}
}

func TestBroadcastReachesExactlyRoomMembers(t *testing.T) {
	h, st, roomID := testHub(t)

	other, err := st.CreateRoom(context.Background(), "other", nil)
	if err != nil {
		t.Fatal(err)
	}

	inRoom1 := &fakeSender{}
	inRoom2 := &fakeSender{}
	elsewhere := &fakeSender{}

	h.Join(roomID, testUser("a"), inRoom1)
	h.Join(roomID, testUser("b"), inRoom2)
	h.Join(other.ID, testUser("c"), elsewhere)

	h.Broadcast(roomID, &models.Message{ID: 1, RoomID: roomID, Sender: "a", Role: models.MessageRoleUser, Content: "hi"})

	if got := len(inRoom1.received(t)); got != 1 {
		t.Fatalf("member 1 expected 1 frame, got %d", got)
	}
	if got := len(inRoom2.received(t)); got != 1 {
		t.Fatalf("member 2 expected 1 frame, got %d", got)
	}
	if got := len(elsewhere.received(t)); got != 0 {
		t.Fatalf("other room expected 0 frames, got %d", got)
	}
}

func TestJoinReplacesExistingConnection(t *testing.T) {
	h, _, roomID := testHub(t)
	user := testUser("a")

	first := &fakeSender{}
	second := &fakeSender{}

	h.Join(roomID, user, first)
	h.Join(roomID, user, second)

	if !first.isClosed() {
		t.Fatal("replaced connection should be closed")
	}

	h.Broadcast(roomID, &models.Message{ID: 1, RoomID: roomID, Role: models.MessageRoleUser, Content: "hi"})

	if got := len(first.received(t)); got != 0 {
		t.Fatalf("old connection expected 0 frames, got %d", got)
	}
	if got := len(second.received(t)); got != 1 {
		t.Fatalf("new connection expected 1 frame, got %d", got)
	}
}

func TestLeaveDropsEmptyRoomEntry(t *testing.T) {
	h, _, roomID := testHub(t)
	user := testUser("a")

	h.Join(roomID, user, &fakeSender{})
	h.Leave(roomID, user.ID)

	h.mu.RLock()
	_, exists := h.rooms[roomID]
	h.mu.RUnlock()
	if exists {
		t.Fatal("room entry should be dropped when its last connection leaves")
	}
}

func TestFailedSendDropsConnection(t *testing.T) {
	h, _, roomID := testHub(t)

	broken := &fakeSender{fail: true}
	healthy := &fakeSender{}
	brokenUser := testUser("broken")

	h.Join(roomID, brokenUser, broken)
	h.Join(roomID, testUser("healthy"), healthy)

	h.Broadcast(roomID, &models.Message{ID: 1, RoomID: roomID, Role: models.MessageRoleUser, Content: "hi"})

	if !broken.isClosed() {
		t.Fatal("failed connection should be closed")
	}
	if got := len(healthy.received(t)); got != 1 {
		t.Fatalf("healthy connection expected 1 frame, got %d", got)
	}

	h.mu.RLock()
	rc := h.rooms[roomID]
	h.mu.RUnlock()
	rc.mu.Lock()
	_, stillRegistered := rc.conns[brokenUser.ID]
	rc.mu.Unlock()
	if stillRegistered {
		t.Fatal("failed connection should be removed from the registry")
	}
}

func TestJoinDuringLastLeaveStaysReachable(t *testing.T) {
	h, _, roomID := testHub(t)
	leaver := testUser("leaver")
	joiner := testUser("joiner")

	// A Join racing the last member's Leave must land in the live set, not
	// in one the empty-room cleanup already unlinked.
	for i := 0; i < 2000; i++ {
		h.Join(roomID, leaver, &fakeSender{})
		sender := &fakeSender{}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Leave(roomID, leaver.ID)
		}()
		go func() {
			defer wg.Done()
			h.Join(roomID, joiner, sender)
		}()
		wg.Wait()

		h.Broadcast(roomID, &models.Message{ID: int64(i + 1), RoomID: roomID, Role: models.MessageRoleUser, Content: "hi"})

		if got := len(sender.received(t)); got != 1 {
			t.Fatalf("iteration %d: joined connection expected 1 frame, got %d", i, got)
		}
		h.Leave(roomID, joiner.ID)
	}
}

func TestPostDropsFailedConnection(t *testing.T) {
	h, _, roomID := testHub(t)

	broken := &fakeSender{fail: true}
	healthy := &fakeSender{}
	brokenUser := testUser("broken")

	h.Join(roomID, brokenUser, broken)
	h.Join(roomID, testUser("healthy"), healthy)

	msg := &models.Message{RoomID: roomID, Sender: "healthy", Role: models.MessageRoleUser, Content: "hi"}
	if err := h.Post(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	if !broken.isClosed() {
		t.Fatal("failed connection should be closed")
	}
	if got := len(healthy.received(t)); got != 1 {
		t.Fatalf("healthy connection expected 1 frame, got %d", got)
	}

	h.mu.RLock()
	rc := h.rooms[roomID]
	h.mu.RUnlock()
	rc.mu.Lock()
	_, stillRegistered := rc.conns[brokenUser.ID]
	rc.mu.Unlock()
	if stillRegistered {
		t.Fatal("failed connection should be removed from the registry")
	}
}

func TestFailureDropSparesReconnectedUser(t *testing.T) {
	h, _, roomID := testHub(t)
	user := testUser("a")

	broken := &fakeSender{fail: true}
	oldConn := h.Join(roomID, user, broken)

	// The user reconnects before the failed send is reaped.
	fresh := &fakeSender{}
	h.Join(roomID, user, fresh)

	h.mu.RLock()
	rc := h.rooms[roomID]
	h.mu.RUnlock()
	dropFailed(rc, []*Conn{oldConn})

	if fresh.isClosed() {
		t.Fatal("reconnected user's fresh connection should not be closed")
	}
	rc.mu.Lock()
	cur := rc.conns[user.ID]
	rc.mu.Unlock()
	if cur == nil || cur.sender != Sender(fresh) {
		t.Fatal("reconnected user's fresh connection should stay registered")
	}
}

func TestPostDeliversInAppendOrder(t *testing.T) {
	h, _, roomID := testHub(t)

	receiver := &fakeSender{}
	h.Join(roomID, testUser("receiver"), receiver)

	const posters = 8
	const perPoster = 10

	var wg sync.WaitGroup
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			author := uuid.New()
			for j := 0; j < perPoster; j++ {
				msg := &models.Message{
					RoomID:   roomID,
					AuthorID: &author,
					Sender:   "poster",
					Role:     models.MessageRoleUser,
					Content:  "racing",
				}
				if err := h.Post(context.Background(), msg); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	delivered := receiver.received(t)
	if len(delivered) != posters*perPoster {
		t.Fatalf("expected %d deliveries, got %d", posters*perPoster, len(delivered))
	}
	for i := 1; i < len(delivered); i++ {
		if delivered[i].ID <= delivered[i-1].ID {
			t.Fatalf("delivery order violates append order: id %d after %d", delivered[i].ID, delivered[i-1].ID)
		}
	}
}

func TestPostUnknownRoomReturnsError(t *testing.T) {
	h, _, _ := testHub(t)

	msg := &models.Message{RoomID: uuid.New(), Sender: "x", Role: models.MessageRoleUser, Content: "hi"}
	if err := h.Post(context.Background(), msg); !errors.Is(err, store.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}
