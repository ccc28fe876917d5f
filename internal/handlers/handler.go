package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/xannhsux/dsci560-hikebot/internal/cache"
	"github.com/xannhsux/dsci560-hikebot/internal/config"
	"github.com/xannhsux/dsci560-hikebot/internal/hub"
	"github.com/xannhsux/dsci560-hikebot/internal/planner"
	"github.com/xannhsux/dsci560-hikebot/internal/store"
)

// maxMessageLength bounds message content; longer posts are rejected.
const maxMessageLength = 4000

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store   store.Store
	cache   *cache.Redis // nil when Redis is not configured
	hub     *hub.Hub
	planner *planner.Planner
	cfg     *config.Config
	logger  zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(st store.Store, c *cache.Redis, h *hub.Hub, p *planner.Planner, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		store:   st,
		cache:   c,
		hub:     h,
		planner: p,
		cfg:     cfg,
		logger:  logger.With().Str("component", "handlers").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeName trims and limits name to 100 characters, removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 100 {
		name = name[:100]
	}

	return name
}
