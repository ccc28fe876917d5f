package hikebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

func TestAnnouncementRoundTrip(t *testing.T) {
	original := models.Announcement{
		Title:   "🏔️ Mailbox Peak this Saturday!",
		Summary: "Steep, relentless, and absolutely worth it.",
		Stats: models.AnnouncementStats{
			Dist: "15.1 km",
			Elev: "1219 m",
		},
		WeatherWarning: "Snow above 1000m.",
		GearRequired:   []string{"Water", "Microspikes", "Headlamp"},
		FunFact:        "The original mailbox was hauled up by a letter carrier.",
	}

	content, err := json.Marshal(original)
	if err != nil {
		t.Fatal(err)
	}

	unit := Unit{Message: models.Message{
		Role:    models.MessageRoleAssistant,
		Content: string(content),
	}}

	ann, ok := unit.Announcement()
	if !ok {
		t.Fatal("expected announcement parse to succeed")
	}
	if ann.Title != original.Title {
		t.Fatalf("title changed: %q != %q", ann.Title, original.Title)
	}
	if ann.Stats != original.Stats {
		t.Fatalf("stats changed: %+v != %+v", ann.Stats, original.Stats)
	}
	if !reflect.DeepEqual(ann.GearRequired, original.GearRequired) {
		t.Fatalf("gear changed: %v != %v", ann.GearRequired, original.GearRequired)
	}
}

func TestAnnouncementPlainText(t *testing.T) {
	unit := Unit{Message: models.Message{
		Role:    models.MessageRoleUser,
		Content: "let's hike Si this weekend",
	}}
	if _, ok := unit.Announcement(); ok {
		t.Fatal("plain chat text must not parse as an announcement")
	}
}

func TestClientSendsIdentityHeaders(t *testing.T) {
	identity := Identity{UserID: uuid.New(), Name: "alice"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-User-ID"); got != identity.UserID.String() {
			t.Errorf("missing user id header, got %q", got)
		}
		if got := r.Header.Get("X-User-Name"); got != "alice" {
			t.Errorf("missing user name header, got %q", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rooms":
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":"%s","name":"crew"}`, uuid.New())
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `{"messages":[{"id":1,"sender_display":"alice","role":"user","content":"hi"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, identity)

	room, err := client.CreateRoom(context.Background(), "crew")
	if err != nil {
		t.Fatal(err)
	}
	if room.Name != "crew" {
		t.Fatalf("unexpected room %+v", room)
	}

	messages, err := client.History(context.Background(), room.ID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 || messages[0].Content != "hi" {
		t.Fatalf("unexpected history %+v", messages)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"not a member of this room"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, Identity{UserID: uuid.New(), Name: "outsider"})

	_, err := client.PostMessage(context.Background(), uuid.New(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "not a member") {
		t.Fatalf("error should carry the server message, got %q", got)
	}
}
