package catalog

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// BestMatch scores the query against every candidate name with the token-set
// ratio (0-100) and returns the best one. Output is deterministic for a given
// candidate order; ties keep the first-seen candidate. ok is false when the
// candidate list is empty.
func BestMatch(query string, candidates []models.Trail) (best models.Trail, score int, ok bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || len(candidates) == 0 {
		return models.Trail{}, 0, false
	}

	score = -1
	for _, t := range candidates {
		s := fuzzy.TokenSetRatio(q, strings.ToLower(t.Name))
		if s > score {
			score = s
			best = t
		}
	}
	return best, score, true
}
