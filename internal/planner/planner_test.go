package planner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xannhsux/dsci560-hikebot/internal/catalog"
	"github.com/xannhsux/dsci560-hikebot/internal/config"
	"github.com/xannhsux/dsci560-hikebot/internal/enrich"
	"github.com/xannhsux/dsci560-hikebot/internal/hub"
	"github.com/xannhsux/dsci560-hikebot/internal/llm"
	"github.com/xannhsux/dsci560-hikebot/internal/models"
	"github.com/xannhsux/dsci560-hikebot/internal/store"
)

// scriptedLLM answers intent and synthesis calls from canned strings.
type scriptedLLM struct {
	mu        sync.Mutex
	intent    string
	intentErr error
	synth     string
	synthErr  error
	calls     []string
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Kind)
	s.mu.Unlock()

	switch req.Kind {
	case "intent":
		return s.intent, s.intentErr
	case "synthesis":
		return s.synth, s.synthErr
	}
	return "", errors.New("unknown kind")
}

func testConfig() *config.Config {
	return &config.Config{
		IntentModel:       "intent-model",
		SynthModel:        "synth-model",
		PrimaryThreshold:  70,
		FallbackThreshold: 50,
		AssistantName:     "HikeBot",
	}
}

func testPlanner(t *testing.T, llmClient llm.Client) (*Planner, *store.MemoryStore, uuid.UUID) {
	t.Helper()

	st := store.NewMemoryStore()
	h := hub.New(st, zerolog.Nop())
	cat := catalog.New(catalog.NewStoreSource(st), catalog.SeedSource{}, 70, 50, zerolog.Nop())
	enricher := enrich.New(nil, nil, time.Second, zerolog.Nop())

	p := New(st, h, cat, enricher, llmClient, testConfig(), zerolog.Nop())
	return p, st, uuid.MustParse(store.BasecampRoomID)
}

func userMessage(roomID uuid.UUID, content string) *models.Message {
	author := uuid.New()
	return &models.Message{
		ID:       1,
		RoomID:   roomID,
		AuthorID: &author,
		Sender:   "alice",
		Role:     models.MessageRoleUser,
		Content:  content,
	}
}

func assistantMessages(t *testing.T, st *store.MemoryStore, roomID uuid.UUID) []models.Message {
	t.Helper()
	all, err := st.RecentMessages(context.Background(), roomID, 100)
	if err != nil {
		t.Fatal(err)
	}
	var out []models.Message
	for _, m := range all {
		if m.Role == models.MessageRoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

func TestGateMatchesTriggers(t *testing.T) {
	p, _, _ := testPlanner(t, nil)

	positives := []string{
		"let's HIKE tomorrow",
		"anyone up for a trip?",
		"this saturday works",
		"周末去爬山吗",
	}
	for _, text := range positives {
		if !p.Gate(text) {
			t.Errorf("expected gate hit for %q", text)
		}
	}

	negatives := []string{
		"what's for dinner",
		"did you see the game",
	}
	for _, text := range negatives {
		if p.Gate(text) {
			t.Errorf("expected gate miss for %q", text)
		}
	}
}

func TestObserveGateMissPostsNothing(t *testing.T) {
	llmClient := &scriptedLLM{}
	p, st, roomID := testPlanner(t, llmClient)

	p.Observe(roomID, userMessage(roomID, "what's for dinner tonight?"))

	if got := assistantMessages(t, st, roomID); len(got) != 0 {
		t.Fatalf("expected no assistant messages, got %d", len(got))
	}
	if len(llmClient.calls) != 0 {
		t.Fatalf("gate miss must not reach the model, got calls %v", llmClient.calls)
	}
}

func TestObserveFullFlowPostsAnnouncement(t *testing.T) {
	llmClient := &scriptedLLM{
		intent: `{"is_planning_trip": true, "subject_raw": "Mailbox", "target_date_str": "2026-09-05"}`,
		synth: `{"title": "Mailbox Peak this Saturday!", "summary": "Steep but worth it.",
			"stats": {"dist": "15.1 km", "elev": "1219 m"},
			"weather_warning": "Cold up top.", "gear_required": ["Water", "Microspikes"],
			"fun_fact": "The mailbox has been up there since the 1960s."}`,
	}
	p, st, roomID := testPlanner(t, llmClient)

	p.Observe(roomID, userMessage(roomID, "let's hike Mailbox this saturday"))

	got := assistantMessages(t, st, roomID)
	if len(got) != 1 {
		t.Fatalf("expected exactly one assistant message, got %d", len(got))
	}
	msg := got[0]
	if msg.AuthorID != nil {
		t.Fatal("assistant message must be system-authored")
	}
	if msg.Sender != "HikeBot" {
		t.Fatalf("expected sender HikeBot, got %q", msg.Sender)
	}

	ann, ok := models.ParseAnnouncement(msg.Content)
	if !ok {
		t.Fatalf("content is not an announcement: %q", msg.Content)
	}
	if ann.Title != "Mailbox Peak this Saturday!" {
		t.Fatalf("unexpected title %q", ann.Title)
	}
}

func TestObserveNoIntentAborts(t *testing.T) {
	llmClient := &scriptedLLM{
		intent: `{"is_planning_trip": false, "subject_raw": null, "target_date_str": null}`,
	}
	p, st, roomID := testPlanner(t, llmClient)

	p.Observe(roomID, userMessage(roomID, "what's the weather on the trail?"))

	if got := assistantMessages(t, st, roomID); len(got) != 0 {
		t.Fatalf("expected no assistant messages, got %d", len(got))
	}
	if len(llmClient.calls) != 1 {
		t.Fatalf("expected only the intent call, got %v", llmClient.calls)
	}
}

func TestObserveMalformedIntentAborts(t *testing.T) {
	llmClient := &scriptedLLM{intent: "sure, sounds like a trip to me!"}
	p, st, roomID := testPlanner(t, llmClient)

	p.Observe(roomID, userMessage(roomID, "let's hike somewhere"))

	if got := assistantMessages(t, st, roomID); len(got) != 0 {
		t.Fatalf("malformed intent must read as not-planning, got %d messages", len(got))
	}
}

func TestObserveUnknownSubjectAborts(t *testing.T) {
	llmClient := &scriptedLLM{
		intent: `{"is_planning_trip": true, "subject_raw": "the grocery store", "target_date_str": null}`,
	}
	p, st, roomID := testPlanner(t, llmClient)

	p.Observe(roomID, userMessage(roomID, "let's plan a trip"))

	if got := assistantMessages(t, st, roomID); len(got) != 0 {
		t.Fatalf("ungrounded subject must not post, got %d messages", len(got))
	}
}

func TestObserveSynthesisFailureUsesFallback(t *testing.T) {
	llmClient := &scriptedLLM{
		intent:   `{"is_planning_trip": true, "subject_raw": "Mailbox Peak", "target_date_str": "2026-09-05"}`,
		synthErr: errors.New("model timeout"),
	}
	p, st, roomID := testPlanner(t, llmClient)

	p.Observe(roomID, userMessage(roomID, "hike mailbox on saturday?"))

	got := assistantMessages(t, st, roomID)
	if len(got) != 1 {
		t.Fatalf("synthesis failure must still post exactly one fallback, got %d", len(got))
	}

	ann, ok := models.ParseAnnouncement(got[0].Content)
	if !ok {
		t.Fatalf("fallback is not an announcement: %q", got[0].Content)
	}
	if ann.Title != "Hike to Mailbox Peak" {
		t.Fatalf("unexpected fallback title %q", ann.Title)
	}
	if !strings.Contains(ann.Stats.Dist, "15.1") {
		t.Fatalf("fallback stats missing distance: %+v", ann.Stats)
	}
	if !strings.Contains(ann.Stats.Elev, "1219") {
		t.Fatalf("fallback stats missing elevation: %+v", ann.Stats)
	}
}

func TestObserveMalformedSynthesisUsesFallback(t *testing.T) {
	llmClient := &scriptedLLM{
		intent: `{"is_planning_trip": true, "subject_raw": "Lake Serene", "target_date_str": null}`,
		synth:  "I'd say pack warm and have fun!",
	}
	p, st, roomID := testPlanner(t, llmClient)

	p.Observe(roomID, userMessage(roomID, "join me at lake serene this weekend"))

	got := assistantMessages(t, st, roomID)
	if len(got) != 1 {
		t.Fatalf("expected one fallback message, got %d", len(got))
	}
	ann, ok := models.ParseAnnouncement(got[0].Content)
	if !ok || ann.Title != "Hike to Lake Serene" {
		t.Fatalf("unexpected fallback payload: %q", got[0].Content)
	}
}

func TestObserveTwoTriggersPostTwice(t *testing.T) {
	llmClient := &scriptedLLM{
		intent: `{"is_planning_trip": true, "subject_raw": "Mount Si", "target_date_str": null}`,
		synth:  `{"title": "Si!", "summary": "s", "stats": {"dist": "12 km", "elev": "960 m"}, "weather_warning": "w", "gear_required": ["Water"], "fun_fact": "f"}`,
	}
	p, st, roomID := testPlanner(t, llmClient)

	// No dedup: both runs post.
	p.Observe(roomID, userMessage(roomID, "hike Si on saturday?"))
	p.Observe(roomID, userMessage(roomID, "yes! let's plan for Si"))

	if got := assistantMessages(t, st, roomID); len(got) != 2 {
		t.Fatalf("expected two assistant messages, got %d", len(got))
	}
}

func TestObserveWithoutLLMStaysQuiet(t *testing.T) {
	p, st, roomID := testPlanner(t, nil)

	p.Observe(roomID, userMessage(roomID, "let's hike Mailbox this saturday"))

	if got := assistantMessages(t, st, roomID); len(got) != 0 {
		t.Fatalf("assistant must stay quiet without a model, got %d messages", len(got))
	}
}

func TestFallbackAnnouncementFields(t *testing.T) {
	trail := &models.Trail{Name: "Mount Si", DistanceKm: 12.0, ElevationGainM: 960}
	ann := FallbackAnnouncement(trail)

	if ann.Title != "Hike to Mount Si" {
		t.Fatalf("unexpected title %q", ann.Title)
	}
	if ann.Stats.Dist != "12.0km" || ann.Stats.Elev != "960m" {
		t.Fatalf("unexpected stats %+v", ann.Stats)
	}
	if len(ann.GearRequired) == 0 {
		t.Fatal("fallback must carry a stock gear list")
	}
}
