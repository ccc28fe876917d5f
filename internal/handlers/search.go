package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// searchTokenRegex mirrors the indexing tokenizer.
var searchTokenRegex = regexp.MustCompile(`\w+`)

// SearchResponse represents the response from the find endpoint.
type SearchResponse struct {
	Query   string           `json:"query"`
	Results []models.Message `json:"results"`
}

// Find handles GET /find?q=&room=&limit=. Results come from the Redis word
// index and are resolved against the durable log, so entries evicted by TTL
// simply stop matching.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.Error(w, http.StatusServiceUnavailable, "search not available")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.Error(w, http.StatusBadRequest, "q is required")
		return
	}

	tokens := searchTokenRegex.FindAllString(strings.ToLower(query), -1)
	filtered := tokens[:0]
	for _, t := range tokens {
		if len(t) >= 3 {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		h.JSON(w, http.StatusOK, SearchResponse{Query: query, Results: []models.Message{}})
		return
	}

	roomFilter := uuid.Nil
	if raw := r.URL.Query().Get("room"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid room id")
			return
		}
		roomFilter = id
	}

	limit := queryInt(r, "limit", 20, 50)

	refs, err := h.cache.SearchRefs(r.Context(), filtered, limit, roomFilter)
	if err != nil {
		h.logger.Error().Err(err).Msg("search failed")
		h.Error(w, http.StatusInternalServerError, "search failed")
		return
	}

	results := make([]models.Message, 0, len(refs))
	for _, ref := range refs {
		msg, err := h.store.GetMessage(r.Context(), ref.RoomID, ref.ID)
		if err != nil || msg == nil {
			continue
		}
		results = append(results, *msg)
	}

	h.JSON(w, http.StatusOK, SearchResponse{Query: query, Results: results})
}
