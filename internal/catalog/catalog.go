package catalog

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// Catalog grounds free-text trail mentions against two candidate sources in
// order: the authoritative store, then the compiled-in seed set. Each source
// carries its own acceptance threshold; the fallback's is looser because its
// precision expectations are lower.
type Catalog struct {
	primary           Source
	fallback          Source
	primaryThreshold  int
	fallbackThreshold int
	logger            zerolog.Logger
}

// New creates a Catalog with the configured thresholds.
func New(primary, fallback Source, primaryThreshold, fallbackThreshold int, logger zerolog.Logger) *Catalog {
	return &Catalog{
		primary:           primary,
		fallback:          fallback,
		primaryThreshold:  primaryThreshold,
		fallbackThreshold: fallbackThreshold,
		logger:            logger.With().Str("component", "catalog").Logger(),
	}
}

// Ground resolves a raw mention to a trail. Primary source errors (or an
// empty primary catalog) fall through to the fallback source rather than
// failing the lookup. Returns false when no source produces an accepted
// match.
func (c *Catalog) Ground(ctx context.Context, raw string) (*models.Trail, bool) {
	if trail, ok := c.try(ctx, c.primary, raw, c.primaryThreshold); ok {
		return trail, true
	}
	return c.try(ctx, c.fallback, raw, c.fallbackThreshold)
}

func (c *Catalog) try(ctx context.Context, src Source, raw string, threshold int) (*models.Trail, bool) {
	candidates, err := src.Trails(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Str("source", src.Name()).Msg("candidate fetch failed")
		return nil, false
	}

	best, score, ok := BestMatch(raw, candidates)
	if !ok {
		return nil, false
	}
	if score <= threshold {
		c.logger.Debug().
			Str("source", src.Name()).
			Str("query", raw).
			Str("best", best.Name).
			Int("score", score).
			Int("threshold", threshold).
			Msg("match rejected")
		return nil, false
	}

	c.logger.Info().
		Str("source", src.Name()).
		Str("query", raw).
		Str("match", best.Name).
		Int("score", score).
		Msg("grounded")
	return &best, true
}
