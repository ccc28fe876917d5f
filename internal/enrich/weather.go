package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/xannhsux/dsci560-hikebot/internal/cache"
	"github.com/xannhsux/dsci560-hikebot/internal/metrics"
)

// Snapshot condenses a forecast into what the announcement generator needs.
type Snapshot struct {
	Summary       string  `json:"summary"`
	TempC         float64 `json:"temp_c"`
	PrecipProb    float64 `json:"precip_prob"` // 0..1 at the target hour
	LightningRisk string  `json:"lightning_risk"`
	FireRisk      string  `json:"fire_risk"`
}

// WeatherClient fetches forecasts from Open-Meteo. Responses are cached in
// Redis for an hour when a cache is configured.
type WeatherClient struct {
	baseURL string
	http    *http.Client
	cache   *cache.Redis
	logger  zerolog.Logger
}

// NewWeatherClient creates a forecast client. cache may be nil.
func NewWeatherClient(baseURL string, timeout time.Duration, c *cache.Redis, logger zerolog.Logger) *WeatherClient {
	return &WeatherClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cache:   c,
		logger:  logger.With().Str("component", "weather").Logger(),
	}
}

// openMeteoResponse mirrors the fields we request from the forecast API.
type openMeteoResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		Precipitation float64 `json:"precipitation"`
		Rain          float64 `json:"rain"`
	} `json:"current"`
	Hourly struct {
		Time                     []int64   `json:"time"`
		PrecipitationProbability []float64 `json:"precipitation_probability"`
	} `json:"hourly"`
}

// Snapshot fetches the forecast for a location and derives risk levels for
// the hour closest to the target time.
func (c *WeatherClient) Snapshot(ctx context.Context, lat, lon float64, target time.Time) (*Snapshot, error) {
	day := target.UTC().Format("2006-01-02")

	if c.cache != nil {
		if blob := c.cache.GetWeather(ctx, lat, lon, day); blob != "" {
			var snap Snapshot
			if err := json.Unmarshal([]byte(blob), &snap); err == nil {
				metrics.EnrichmentCacheHits.Inc()
				return &snap, nil
			}
		}
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lon))
	params.Set("current", "temperature_2m,wind_speed_10m,precipitation,rain")
	params.Set("hourly", "precipitation_probability")
	params.Set("timeformat", "unixtime")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: fetch forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: unexpected status %d", resp.StatusCode)
	}

	var body openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("weather: decode forecast: %w", err)
	}

	snap := buildSnapshot(&body, target)

	if c.cache != nil {
		if blob, err := json.Marshal(snap); err == nil {
			c.cache.SetWeather(ctx, lat, lon, day, string(blob))
		}
	}

	return snap, nil
}

// buildSnapshot selects the precip probability of the hour closest to the
// target and derives lightning and fire risk from it.
func buildSnapshot(body *openMeteoResponse, target time.Time) *Snapshot {
	precipProb := 0.0
	if len(body.Hourly.PrecipitationProbability) > 0 {
		idx := closestIndex(body.Hourly.Time, target.UTC().Unix())
		if idx >= len(body.Hourly.PrecipitationProbability) {
			idx = len(body.Hourly.PrecipitationProbability) - 1
		}
		precipProb = body.Hourly.PrecipitationProbability[idx] / 100
	}

	lightning := "low"
	if precipProb > 0.7 {
		lightning = "high"
	} else if precipProb > 0.4 {
		lightning = "moderate"
	}

	fire := "low"
	if precipProb < 0.1 && body.Current.Precipitation == 0 {
		fire = "high"
	} else if precipProb < 0.3 {
		fire = "moderate"
	}

	temp := math.Round(body.Current.Temperature*10) / 10
	return &Snapshot{
		Summary: fmt.Sprintf("Current temp %.1f°C, precip chance %.0f%%. Pack layers and check skies near exposed ridgelines.",
			temp, precipProb*100),
		TempC:         temp,
		PrecipProb:    math.Round(precipProb*100) / 100,
		LightningRisk: lightning,
		FireRisk:      fire,
	}
}

func closestIndex(times []int64, target int64) int {
	best, bestDiff := 0, int64(math.MaxInt64)
	for i, ts := range times {
		diff := ts - target
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}
