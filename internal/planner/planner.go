// Package planner is the observer pipeline: it watches room traffic for trip
// planning, grounds the mentioned trail against the catalog, enriches it
// with conditions, and posts a structured announcement back into the room.
//
// A run is spawned per inbound user message and is fully detached from the
// ingress loop: every stage either aborts silently or degrades, and nothing
// propagates back to the reader that spawned it. Two runs racing in the same
// room may both post; there is deliberately no deduplication.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/xannhsux/dsci560-hikebot/internal/catalog"
	"github.com/xannhsux/dsci560-hikebot/internal/config"
	"github.com/xannhsux/dsci560-hikebot/internal/enrich"
	"github.com/xannhsux/dsci560-hikebot/internal/hub"
	"github.com/xannhsux/dsci560-hikebot/internal/llm"
	"github.com/xannhsux/dsci560-hikebot/internal/metrics"
	"github.com/xannhsux/dsci560-hikebot/internal/models"
	"github.com/xannhsux/dsci560-hikebot/internal/store"
)

// defaultTriggers is the built-in gate phrase set, overridable via config.
// Mixed-language on purpose: the groups this serves plan in English and
// Chinese.
var defaultTriggers = []string{
	"go to", "hike", "trail", "plan", "weekend", "saturday", "sunday",
	"trip", "join", "去", "爬山", "路线", "约",
}

// Planner orchestrates observer pipeline runs.
type Planner struct {
	store    store.Store
	hub      *hub.Hub
	catalog  *catalog.Catalog
	enricher *enrich.Enricher
	llm      llm.Client
	cfg      *config.Config
	logger   zerolog.Logger
	triggers []string
}

// New creates a Planner. llmClient may be nil, in which case every run
// aborts at intent extraction and the chat runs without an assistant.
func New(st store.Store, h *hub.Hub, cat *catalog.Catalog, enr *enrich.Enricher, llmClient llm.Client, cfg *config.Config, logger zerolog.Logger) *Planner {
	triggers := cfg.TriggerPhrases
	if len(triggers) == 0 {
		triggers = defaultTriggers
	}
	lowered := make([]string, len(triggers))
	for i, t := range triggers {
		lowered[i] = strings.ToLower(t)
	}

	return &Planner{
		store:    st,
		hub:      h,
		catalog:  cat,
		enricher: enr,
		llm:      llmClient,
		cfg:      cfg,
		logger:   logger.With().Str("component", "planner").Logger(),
		triggers: lowered,
	}
}

// Observe runs the pipeline for one inbound user message. Callers spawn it
// with go and never wait: there is no return value, no error, and no
// backpressure on the ingress loop. External calls are individually
// timeout-bounded, so a run always terminates.
func (p *Planner) Observe(roomID uuid.UUID, msg *models.Message) {
	runID := ulid.Make().String()
	logger := p.logger.With().Str("run", runID).Str("room", roomID.String()).Logger()

	defer func() {
		if r := recover(); r != nil {
			metrics.PipelineRuns.WithLabelValues("error").Inc()
			logger.Error().Interface("panic", r).Msg("pipeline run panicked")
		}
	}()

	// The run outlives the request that spawned it.
	ctx := context.Background()

	// Stage 1: gate. Cheap substring filter so most messages never reach
	// the model.
	if !p.Gate(msg.Content) {
		metrics.PipelineRuns.WithLabelValues("gate_miss").Inc()
		return
	}

	// Stage 2: intent extraction.
	intent := p.extractIntent(ctx, msg.Content)
	if !intent.IsPlanningTrip || intent.SubjectRaw == nil || *intent.SubjectRaw == "" {
		metrics.PipelineRuns.WithLabelValues("no_intent").Inc()
		logger.Debug().Msg("no planning intent")
		return
	}
	logger.Info().
		Str("subject", *intent.SubjectRaw).
		Str("date", strOrEmpty(intent.TargetDateStr)).
		Msg("trip intent detected")

	// Stage 3: grounding.
	trail, ok := p.catalog.Ground(ctx, *intent.SubjectRaw)
	if !ok {
		metrics.PipelineRuns.WithLabelValues("no_match").Inc()
		logger.Info().Str("subject", *intent.SubjectRaw).Msg("no catalog match")
		return
	}

	// Stage 4: enrichment. Never aborts.
	date := p.targetDate(intent.TargetDateStr)
	conditions := p.enricher.Context(ctx, trail, date)

	// Stage 5: synthesis. Falls back to a deterministic payload; never
	// aborts after grounding succeeded.
	ann := p.synthesize(ctx, logger, trail, intent.TargetDateStr, conditions)

	// Stage 6: commit.
	if err := p.commit(ctx, roomID, ann); err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("announcement persist failed")
		return
	}
	metrics.PipelineRuns.WithLabelValues("posted").Inc()
	logger.Info().Str("trail", trail.Name).Msg("announcement posted")
}

// Gate reports whether the text contains any trigger phrase
// (case-insensitive substring).
func (p *Planner) Gate(text string) bool {
	lower := strings.ToLower(text)
	for _, t := range p.triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// extractIntent asks the intent model whether the message proposes a trip.
// Any failure, including malformed JSON, reads as "not planning"; intent
// extraction never surfaces an error.
func (p *Planner) extractIntent(ctx context.Context, message string) models.TripIntent {
	notPlanning := models.TripIntent{}
	if p.llm == nil {
		return notPlanning
	}

	now := time.Now()
	system := fmt.Sprintf(`Current Date: %s (%s).

Analyze the user's message. Determine if they are PROPOSING or CONFIRMING a trip.

Distinction:
- "What is the weather at Rainier?" -> is_planning_trip: FALSE (Just asking info)
- "Let's do Mailbox this Saturday" -> is_planning_trip: TRUE
- "I'm down for Rattlesnake" -> is_planning_trip: TRUE
- "How about hiking Si?" -> is_planning_trip: TRUE

If TRUE, extract:
- 'subject_raw': The hiking location mentioned.
- 'target_date_str': Calculate YYYY-MM-DD based on Current Date (default to upcoming Saturday if vague 'weekend').

Return JSON: {"is_planning_trip": bool, "subject_raw": string|null, "target_date_str": string|null}`,
		now.Format("2006-01-02"), now.Weekday())

	completion, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:      system,
		User:        message,
		Model:       p.cfg.IntentModel,
		Temperature: 0,
		JSONOnly:    true,
		Kind:        "intent",
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("intent extraction failed")
		return notPlanning
	}

	var intent models.TripIntent
	if err := json.Unmarshal([]byte(completion), &intent); err != nil {
		p.logger.Warn().Err(err).Msg("intent response malformed")
		return notPlanning
	}
	return intent
}

// targetDate parses the extracted date, defaulting to now when absent or
// malformed.
func (p *Planner) targetDate(dateStr *string) time.Time {
	if dateStr != nil {
		if t, err := time.Parse("2006-01-02", *dateStr); err == nil {
			return t
		}
	}
	return time.Now()
}

// synthesize generates the announcement. Tone rules live in the prompt; the
// schema is fixed. Any model failure yields the deterministic fallback built
// from trail fields alone.
func (p *Planner) synthesize(ctx context.Context, logger zerolog.Logger, trail *models.Trail, dateStr *string, conditions string) *models.Announcement {
	if p.llm == nil {
		return FallbackAnnouncement(trail)
	}

	system := `You are HikeBot, a veteran outdoor guide with 20 years of experience in the PNW.

TASK: Generate a hiking trip announcement JSON.

TONE RULES:
- If difficulty > 4/5 OR conditions include "Rain"/"Snow": Tone is SERIOUS, COMMANDING, SAFETY-FIRST.
- If difficulty < 3/5 AND conditions are "Sunny": Tone is PLAYFUL, EXCITED, CASUAL (use emojis).

CONTENT RULES:
1. 'summary': 2 sentences. Don't just list facts. Sell the experience!
2. 'gear_required': Be specific based on conditions (e.g., "Microspikes" if snow, "Sunscreen" if sunny).
3. 'fun_fact': Include one hidden gem/history/geology fact about this specific trail.
4. If elevation > 1000m, warn about "Endurance". If rain, warn about "Slippery roots".

OUTPUT FORMAT (JSON ONLY):
{
    "title": "Catchy headline with emojis",
    "summary": "Engaging description...",
    "stats": {"dist": "X km", "elev": "Y m"},
    "weather_warning": "Brief weather/safety note",
    "gear_required": ["item1", "item2", "item3"],
    "fun_fact": "Did you know? ..."
}`

	user := fmt.Sprintf(`FACTS:
- Trail Name: %s
- Difficulty: %.1f/5
- Length: %.1f km
- Elevation Gain: %d m
- Features: %s
- Date: %s
- Conditions: %s`,
		trail.Name, trail.Difficulty, trail.DistanceKm, trail.ElevationGainM,
		strings.Join(trail.Features, ","), strOrEmpty(dateStr), conditions)

	completion, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:      system,
		User:        user,
		Model:       p.cfg.SynthModel,
		Temperature: 0.7,
		JSONOnly:    true,
		Kind:        "synthesis",
	})
	if err != nil {
		logger.Warn().Err(err).Msg("synthesis failed, using fallback payload")
		return FallbackAnnouncement(trail)
	}

	var ann models.Announcement
	if err := json.Unmarshal([]byte(completion), &ann); err != nil || ann.Title == "" {
		logger.Warn().Err(err).Msg("synthesis response malformed, using fallback payload")
		return FallbackAnnouncement(trail)
	}
	return &ann
}

// FallbackAnnouncement builds the minimal deterministic payload from trail
// fields alone.
func FallbackAnnouncement(trail *models.Trail) *models.Announcement {
	return &models.Announcement{
		Title:   "Hike to " + trail.Name,
		Summary: "Let's go hiking!",
		Stats: models.AnnouncementStats{
			Dist: fmt.Sprintf("%.1fkm", trail.DistanceKm),
			Elev: fmt.Sprintf("%dm", trail.ElevationGainM),
		},
		WeatherWarning: "Check forecast.",
		GearRequired:   []string{"Water", "Boots"},
		FunFact:        "Hiking is good for you!",
	}
}

// commit persists the announcement as a system-authored assistant message
// and broadcasts it. Append and broadcast are separate steps; a crash in
// between leaves a persisted-but-not-broadcast message, which is accepted.
func (p *Planner) commit(ctx context.Context, roomID uuid.UUID, ann *models.Announcement) error {
	content, err := json.Marshal(ann)
	if err != nil {
		return err
	}

	msg := &models.Message{
		RoomID:  roomID,
		Sender:  p.cfg.AssistantName,
		Role:    models.MessageRoleAssistant,
		Content: string(content),
	}
	if err := p.store.AppendMessage(ctx, msg); err != nil {
		return err
	}

	p.hub.Broadcast(roomID, msg)
	return nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
