package models

// Trail is a catalog entity. The same shape is returned by both the
// store-backed catalog source and the compiled-in seed source, so the
// matcher and the announcement generator never care where it came from.
type Trail struct {
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name"`
	Location       string   `json:"location"`
	DistanceKm     float64  `json:"length_km"`
	ElevationGainM int      `json:"elevation_gain_m"`
	Difficulty     float64  `json:"difficulty_rating"` // 0-5 scale
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Features       []string `json:"features,omitempty"`
}
