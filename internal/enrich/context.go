// Package enrich augments a grounded trail with situational context from
// external providers. Every failure degrades to a seasonal default string;
// enrichment never blocks an announcement.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// Enricher assembles the context string handed to the announcement
// generator.
type Enricher struct {
	weather *WeatherClient
	reports *ReportsClient
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates an Enricher. weather may be nil (seasonal defaults only);
// reports may be disabled via an empty base URL.
func New(weather *WeatherClient, reports *ReportsClient, timeout time.Duration, logger zerolog.Logger) *Enricher {
	return &Enricher{
		weather: weather,
		reports: reports,
		timeout: timeout,
		logger:  logger.With().Str("component", "enrich").Logger(),
	}
}

// Context builds the weather/conditions context for a trail and date. It
// never fails: any provider error or timeout falls back to the month-based
// default so the pipeline always reaches synthesis once grounded.
func (e *Enricher) Context(ctx context.Context, trail *models.Trail, date time.Time) string {
	parts := []string{e.weatherPart(ctx, trail, date)}

	if e.reports.Enabled() {
		if hazards := e.hazardPart(ctx, trail); hazards != "" {
			parts = append(parts, hazards)
		}
	}

	return strings.Join(parts, "; ")
}

func (e *Enricher) weatherPart(ctx context.Context, trail *models.Trail, date time.Time) string {
	if e.weather == nil {
		return SeasonalDefault(date)
	}

	wctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	snap, err := e.weather.Snapshot(wctx, trail.Latitude, trail.Longitude, date)
	if err != nil {
		e.logger.Warn().Err(err).Str("trail", trail.Name).Msg("weather lookup failed, using seasonal default")
		return SeasonalDefault(date)
	}

	return fmt.Sprintf("%s Lightning risk: %s, fire risk: %s.",
		snap.Summary, snap.LightningRisk, snap.FireRisk)
}

func (e *Enricher) hazardPart(ctx context.Context, trail *models.Trail) string {
	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reports, err := e.reports.Recent(rctx, trail.Name)
	if err != nil {
		e.logger.Warn().Err(err).Str("trail", trail.Name).Msg("trip report lookup failed")
		return ""
	}

	hazards := ScanHazards(reports)
	if len(hazards) == 0 {
		return ""
	}
	return "Trail reports: " + strings.Join(hazards, ", ")
}

// SeasonalDefault is the neutral context used when live providers are
// unavailable: a coarse month-based PNW forecast.
func SeasonalDefault(date time.Time) string {
	switch date.Month() {
	case time.November, time.December, time.January, time.February, time.March:
		return "Cold, 2°C, Chance of Snow/Rain"
	case time.June, time.July, time.August, time.September:
		return "Sunny, 22°C, Clear Skies"
	default:
		return "Overcast, 12°C, Light Rain likely"
	}
}
