package telemetry

import (
	"context"

	"hotspot-advisor/models"
)

// DefaultAddress keys the representative record served for unknown addresses.
const DefaultAddress = "default"

// Record is the static data kept for one hotspot.
type Record struct {
	Name           string
	Online         bool
	Lat, Lng       float64
	City, State    string
	WitnessCount   int
	RewardScale    float64
	RewardTotal30d float64
}

// StaticSource serves fixed records. It never fails, which makes it the
// fallback source of the gateway.
type StaticSource struct {
	records map[string]Record
}

// NewStaticSource copies records; the source is immutable afterwards.
// records must contain DefaultAddress.
func NewStaticSource(records map[string]Record) *StaticSource {
	copied := make(map[string]Record, len(records))
	for k, v := range records {
		copied[k] = v
	}
	if _, ok := copied[DefaultAddress]; !ok {
		copied[DefaultAddress] = DefaultRecords()[DefaultAddress]
	}
	return &StaticSource{records: copied}
}

func (s *StaticSource) lookup(address string) Record {
	if r, ok := s.records[address]; ok {
		return r
	}
	return s.records[DefaultAddress]
}

func (s *StaticSource) Snapshot(_ context.Context, address string) (models.DeviceSnapshot, error) {
	r := s.lookup(address)
	return models.DeviceSnapshot{
		Address:        address,
		Name:           r.Name,
		Online:         r.Online,
		Location:       newLocation(r.Lat, r.Lng, r.City, r.State),
		WitnessCount:   r.WitnessCount,
		RewardScale:    r.RewardScale,
		RewardTotal30d: r.RewardTotal30d,
	}, nil
}

// RewardTotal scales the stored 30-day total to the requested window.
func (s *StaticSource) RewardTotal(_ context.Context, address string, windowDays int) (float64, error) {
	r := s.lookup(address)
	if windowDays == 30 || windowDays <= 0 {
		return r.RewardTotal30d, nil
	}
	return r.RewardTotal30d * float64(windowDays) / 30, nil
}

func (s *StaticSource) WitnessCount(_ context.Context, address string) (int, error) {
	return s.lookup(address).WitnessCount, nil
}

// DefaultRecords returns the built-in demo records. The record served for
// unknown addresses is a copy of the first one.
func DefaultRecords() map[string]Record {
	condor := Record{
		Name:           "magnificent-lavender-condor",
		Online:         true,
		Lat:            34.0522,
		Lng:            -118.2437,
		City:           "Los Angeles",
		State:          "CA",
		WitnessCount:   22,
		RewardScale:    0.78,
		RewardTotal30d: 45.8,
	}
	return map[string]Record{
		"112qB3YaH5bZkCnKA5uRH7tBtGNv2Y5B4smv1jsmvGQ2228YBoFu": condor,
		"112MHi1gvL6jNfLVk2fKMq3EJNW6R8SLmPThc9cD4fKsKqXDpQcQ": {
			Name:           "steep-cobalt-mantis",
			Online:         true,
			Lat:            40.730610,
			Lng:            -73.935242,
			City:           "New York",
			State:          "NY",
			WitnessCount:   18,
			RewardScale:    0.65,
			RewardTotal30d: 38.2,
		},
		"112ABC": {
			Name:           "rough-crimson-yak",
			Online:         false,
			Lat:            29.7604,
			Lng:            -95.3698,
			City:           "Houston",
			State:          "TX",
			WitnessCount:   7,
			RewardScale:    0.42,
			RewardTotal30d: 12.5,
		},
		DefaultAddress: condor,
	}
}
