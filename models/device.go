package models

// Source tells where a piece of fetched data came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
	SourceCache    Source = "cache"
)

// Location is the geographic descriptor of a hotspot
type Location struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	City  string  `json:"city"`
	State string  `json:"state"`
	Cell  string  `json:"cell,omitempty"` // S2 cell token, empty when the location is unknown
}

// DeviceSnapshot is the point-in-time telemetry of one hotspot.
type DeviceSnapshot struct {
	Address        string   `json:"address"`
	Name           string   `json:"name"`
	Online         bool     `json:"online"`
	Location       Location `json:"location"`
	WitnessCount   int      `json:"witness_count"`
	RewardScale    float64  `json:"reward_scale"`     // 0.0..1.0
	RewardTotal30d float64  `json:"reward_total_30d"` // tokens
	Source         Source   `json:"source"`
}

// Status returns "online" or "offline".
func (d DeviceSnapshot) Status() string {
	if d.Online {
		return "online"
	}
	return "offline"
}
