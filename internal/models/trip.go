package models

import (
	"encoding/json"
	"strings"
)

// TripIntent is the fixed schema the intent-extraction model must return.
type TripIntent struct {
	IsPlanningTrip bool    `json:"is_planning_trip"`
	SubjectRaw     *string `json:"subject_raw"`
	TargetDateStr  *string `json:"target_date_str"`
}

// AnnouncementStats holds the display strings for distance and elevation.
type AnnouncementStats struct {
	Dist string `json:"dist"`
	Elev string `json:"elev"`
}

// Announcement is the structured payload posted by the assistant into a
// room. It travels on the wire as the Content of an assistant-role Message.
type Announcement struct {
	Title          string            `json:"title"`
	Summary        string            `json:"summary"`
	Stats          AnnouncementStats `json:"stats"`
	WeatherWarning string            `json:"weather_warning"`
	GearRequired   []string          `json:"gear_required"`
	FunFact        string            `json:"fun_fact"`
}

// ParseAnnouncement attempts the schema-tagged parse consumers apply to
// message content: a JSON object with a non-empty "title" field is an
// announcement, anything else renders as plain text.
func ParseAnnouncement(content string) (*Announcement, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var a Announcement
	if err := json.Unmarshal([]byte(trimmed), &a); err != nil {
		return nil, false
	}
	if a.Title == "" {
		return nil, false
	}
	return &a, true
}
