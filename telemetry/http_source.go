package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hotspot-advisor/models"

	"golang.org/x/time/rate"
)

// HTTPSource reads hotspot data from a Helium-style REST API.
type HTTPSource struct {
	baseURL           string
	witnessWindowDays int
	timeout           time.Duration
	httpClient        *http.Client
	limiter           *rate.Limiter
}

// NewHTTPSource creates a live source. requestsPerSecond <= 0 disables rate
// limiting.
func NewHTTPSource(baseURL string, timeout time.Duration, requestsPerSecond float64, witnessWindowDays int) *HTTPSource {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &HTTPSource{
		baseURL:           strings.TrimRight(baseURL, "/"),
		witnessWindowDays: witnessWindowDays,
		timeout:           timeout,
		httpClient:        &http.Client{},
		limiter:           rate.NewLimiter(limit, 1),
	}
}

type hotspotResponse struct {
	Data *struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Status  struct {
			Online string `json:"online"`
		} `json:"status"`
		RewardScale *float64 `json:"reward_scale"`
		Lat         float64  `json:"lat"`
		Lng         float64  `json:"lng"`
		Geocode     struct {
			ShortCity  string `json:"short_city"`
			ShortState string `json:"short_state"`
		} `json:"geocode"`
	} `json:"data"`
}

type rewardSumResponse struct {
	Data *struct {
		Total float64 `json:"total"`
	} `json:"data"`
}

type witnessesResponse struct {
	Data []json.RawMessage `json:"data"`
}

func (s *HTTPSource) Snapshot(ctx context.Context, address string) (models.DeviceSnapshot, error) {
	var resp hotspotResponse
	if err := s.get(ctx, "/hotspots/"+url.PathEscape(address), nil, &resp); err != nil {
		return models.DeviceSnapshot{}, err
	}
	if resp.Data == nil {
		return models.DeviceSnapshot{}, errors.New("malformed hotspot response: missing data")
	}
	d := resp.Data

	scale := 0.0
	if d.RewardScale != nil {
		scale = *d.RewardScale
	}
	return models.DeviceSnapshot{
		Address:     address,
		Name:        orUnknown(d.Name),
		Online:      d.Status.Online == "online",
		Location:    newLocation(d.Lat, d.Lng, orUnknown(d.Geocode.ShortCity), orUnknown(d.Geocode.ShortState)),
		RewardScale: scale,
	}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func (s *HTTPSource) RewardTotal(ctx context.Context, address string, windowDays int) (float64, error) {
	var resp rewardSumResponse
	query := url.Values{"min_time": {fmt.Sprintf("-%d day", windowDays)}}
	if err := s.get(ctx, "/hotspots/"+url.PathEscape(address)+"/rewards/sum", query, &resp); err != nil {
		return 0, err
	}
	if resp.Data == nil {
		return 0, errors.New("malformed reward sum response: missing data")
	}
	if resp.Data.Total < 0 {
		return 0, fmt.Errorf("malformed reward sum response: negative total %v", resp.Data.Total)
	}
	return resp.Data.Total, nil
}

func (s *HTTPSource) WitnessCount(ctx context.Context, address string) (int, error) {
	var resp witnessesResponse
	query := url.Values{"min_time": {fmt.Sprintf("-%d day", s.witnessWindowDays)}}
	if err := s.get(ctx, "/hotspots/"+url.PathEscape(address)+"/witnesses", query, &resp); err != nil {
		return 0, err
	}
	if resp.Data == nil {
		return 0, errors.New("malformed witnesses response: missing data")
	}
	return len(resp.Data), nil
}

func (s *HTTPSource) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	target := s.baseURL + path
	if len(query) > 0 {
		target += "?" + strings.ReplaceAll(query.Encode(), "+", "%20")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telemetry API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
