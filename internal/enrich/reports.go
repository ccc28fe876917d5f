package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Report is one recent trip report from the report service.
type Report struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Date  string `json:"date"`
}

// ReportsClient talks to the trip-report scraper service. The upstream
// scraping is that service's problem; this client only needs its
// request/response contract.
type ReportsClient struct {
	baseURL string
	days    int
	http    *http.Client
}

// NewReportsClient creates a trip-report client. An empty baseURL disables
// report enrichment entirely.
func NewReportsClient(baseURL string, days int, timeout time.Duration) *ReportsClient {
	return &ReportsClient{
		baseURL: baseURL,
		days:    days,
		http:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a report service is configured.
func (c *ReportsClient) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Recent fetches trip reports for a trail from the last configured window.
func (c *ReportsClient) Recent(ctx context.Context, trailName string) ([]Report, error) {
	params := url.Values{}
	params.Set("q", trailName)
	params.Set("days", strconv.Itoa(c.days))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reports?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reports: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reports: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Reports []Report `json:"reports"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("reports: decode: %w", err)
	}
	return body.Reports, nil
}

// hazardRules maps trigger words in trip reports to gear advisories.
var hazardRules = []struct {
	words   []string
	warning string
}{
	{[]string{"snow", "ice", "microspikes", "spikes", "crampons"}, "Snow/Ice detected (Spikes recommended)"},
	{[]string{"mud", "muddy", "slippery"}, "Muddy trail (Gaiters/Boots recommended)"},
	{[]string{"bear", "cougar", "goat"}, "Wildlife activity reported"},
	{[]string{"bug", "mosquito", "flies"}, "Bugs reported (Bug spray needed)"},
}

// ScanHazards runs the keyword scan over report titles and bodies and
// returns the matched advisories.
func ScanHazards(reports []Report) []string {
	var sb strings.Builder
	for _, r := range reports {
		sb.WriteString(strings.ToLower(r.Title))
		sb.WriteByte(' ')
		sb.WriteString(strings.ToLower(r.Body))
		sb.WriteByte(' ')
	}
	combined := sb.String()

	var hazards []string
	for _, rule := range hazardRules {
		for _, w := range rule.words {
			if strings.Contains(combined, w) {
				hazards = append(hazards, rule.warning)
				break
			}
		}
	}
	return hazards
}
