package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/xannhsux/dsci560-hikebot/internal/api"
	"github.com/xannhsux/dsci560-hikebot/internal/catalog"
	"github.com/xannhsux/dsci560-hikebot/internal/config"
	"github.com/xannhsux/dsci560-hikebot/internal/enrich"
	"github.com/xannhsux/dsci560-hikebot/internal/handlers"
	"github.com/xannhsux/dsci560-hikebot/internal/hub"
	"github.com/xannhsux/dsci560-hikebot/internal/models"
	"github.com/xannhsux/dsci560-hikebot/internal/planner"
	"github.com/xannhsux/dsci560-hikebot/internal/store"
)

type testEnv struct {
	store  *store.MemoryStore
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Env:               "development",
		PrimaryThreshold:  70,
		FallbackThreshold: 50,
		AssistantName:     "HikeBot",
	}

	st := store.NewMemoryStore()
	h := hub.New(st, zerolog.Nop())
	cat := catalog.New(catalog.NewStoreSource(st), catalog.SeedSource{}, 70, 50, zerolog.Nop())
	enricher := enrich.New(nil, nil, time.Second, zerolog.Nop())
	pl := planner.New(st, h, cat, enricher, nil, cfg, zerolog.Nop())

	handler := handlers.NewHandler(st, nil, h, pl, cfg, zerolog.Nop())
	router := api.NewRouter(zerolog.Nop(), handler, nil, cfg)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{store: st, server: srv}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}, user *models.User) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("X-User-ID", user.ID.String())
		req.Header.Set("X-User-Name", user.Name)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

func TestIdentityRequired(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/rooms", map[string]string{"name": "crew"}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity headers, got %d", resp.StatusCode)
	}

	// Malformed user id is also rejected before any handler runs.
	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/rooms", strings.NewReader(`{"name":"crew"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "not-a-uuid")
	req.Header.Set("X-User-Name", "mallory")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed id, got %d", resp2.StatusCode)
	}

	var listing handlers.ListRoomsResponse
	resp3 := env.request(t, http.MethodGet, "/rooms", nil, nil)
	decode(t, resp3, &listing)
	if listing.Total != 1 {
		t.Fatalf("rejected requests must not create rooms, total=%d", listing.Total)
	}
}

func TestNonMemberForbidden(t *testing.T) {
	env := newTestEnv(t)
	outsider := &models.User{ID: uuid.New(), Name: "outsider"}

	path := fmt.Sprintf("/rooms/%s/messages", store.BasecampRoomID)
	resp := env.request(t, http.MethodGet, path, nil, outsider)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", resp.StatusCode)
	}

	resp = env.request(t, http.MethodPost, path, map[string]string{"content": "hello"}, outsider)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 posting as non-member, got %d", resp.StatusCode)
	}
}

func TestCreatePostHistoryRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	alice := &models.User{ID: uuid.New(), Name: "alice"}

	var room models.Room
	resp := env.request(t, http.MethodPost, "/rooms", map[string]string{"name": "weekend crew"}, alice)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	decode(t, resp, &room)
	if room.Name != "weekend crew" {
		t.Fatalf("unexpected room %+v", room)
	}

	msgPath := fmt.Sprintf("/rooms/%s/messages", room.ID)
	for i := 0; i < 3; i++ {
		var msg models.Message
		resp := env.request(t, http.MethodPost, msgPath, map[string]string{"content": fmt.Sprintf("msg %d", i)}, alice)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d", resp.StatusCode)
		}
		decode(t, resp, &msg)
		if msg.ID != int64(i)+1 {
			t.Fatalf("expected id %d, got %d", i+1, msg.ID)
		}
	}

	var history struct {
		Messages []models.Message `json:"messages"`
	}
	resp = env.request(t, http.MethodGet, msgPath+"?limit=2", nil, alice)
	decode(t, resp, &history)
	if len(history.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history.Messages))
	}
	if history.Messages[0].ID != 2 || history.Messages[1].ID != 3 {
		t.Fatalf("expected newest page in ascending order, got %+v", history.Messages)
	}

	resp = env.request(t, http.MethodGet, msgPath+"?before=2&limit=5", nil, alice)
	decode(t, resp, &history)
	if len(history.Messages) != 1 || history.Messages[0].ID != 1 {
		t.Fatalf("expected only message 1 before cursor 2, got %+v", history.Messages)
	}
}

func TestLatestAssistantEmpty(t *testing.T) {
	env := newTestEnv(t)
	alice := &models.User{ID: uuid.New(), Name: "alice"}
	env.store.AddMember(uuid.MustParse(store.BasecampRoomID), alice.ID, alice.Name, models.RoleMember)

	path := fmt.Sprintf("/rooms/%s/messages/latest?role=assistant", store.BasecampRoomID)
	resp := env.request(t, http.MethodGet, path, nil, alice)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Message *models.Message `json:"message"`
	}
	decode(t, resp, &out)
	if out.Message != nil {
		t.Fatalf("expected no assistant message yet, got %+v", out.Message)
	}
}

func TestWebSocketDelivery(t *testing.T) {
	env := newTestEnv(t)
	roomID := uuid.MustParse(store.BasecampRoomID)

	alice := &models.User{ID: uuid.New(), Name: "alice"}
	bob := &models.User{ID: uuid.New(), Name: "bob"}
	env.store.AddMember(roomID, alice.ID, alice.Name, models.RoleMember)
	env.store.AddMember(roomID, bob.ID, bob.Name, models.RoleMember)

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1) + fmt.Sprintf("/rooms/%s/ws", roomID)
	header := http.Header{}
	header.Set("X-User-ID", bob.ID.String())
	header.Set("X-User-Name", bob.Name)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	// Send over the socket first: receiving our own delivery proves the
	// server-side join completed before the REST post below.
	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"content":"checking in"}`)); err != nil {
		t.Fatal(err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err != nil {
		t.Fatal(err)
	}

	resp := env.request(t, http.MethodPost,
		fmt.Sprintf("/rooms/%s/messages", roomID),
		map[string]string{"content": "hello over the wire"}, alice)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := ws.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}

	var msg models.Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Content != "hello over the wire" || msg.Sender != "alice" {
		t.Fatalf("unexpected delivery %+v", msg)
	}
}

func TestWebSocketNonMemberRejected(t *testing.T) {
	env := newTestEnv(t)
	outsider := &models.User{ID: uuid.New(), Name: "outsider"}

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1) +
		fmt.Sprintf("/rooms/%s/ws", store.BasecampRoomID)
	header := http.Header{}
	header.Set("X-User-ID", outsider.ID.String())
	header.Set("X-User-Name", outsider.Name)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected dial to fail for non-member")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 before upgrade, got %+v", resp)
	}
}
