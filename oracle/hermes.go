package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoPrice means the price service answered but had no usable price.
var ErrNoPrice = errors.New("no price available")

// RawPrice is a scaled price as published by the feed.
type RawPrice struct {
	Mantissa    string
	Expo        int
	PublishTime int64
}

// Value returns mantissa / 10^|expo| in float64 division, so the result is
// the double nearest to the published price. The exponent always scales
// downward, whatever its sign.
func (p RawPrice) Value() (float64, error) {
	m, err := decimal.NewFromString(p.Mantissa)
	if err != nil {
		return 0, fmt.Errorf("bad price mantissa %q: %w", p.Mantissa, err)
	}
	expo := p.Expo
	if expo < 0 {
		expo = -expo
	}
	return m.InexactFloat64() / math.Pow(10, float64(expo)), nil
}

// Feed returns the latest raw prices for a set of feed ids, keyed by the
// normalized id.
type Feed interface {
	LatestPrices(ctx context.Context, ids []string) (map[string]RawPrice, error)
}

// HermesFeed is a client of a Hermes-style price service.
type HermesFeed struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewHermesFeed(baseURL string, timeout time.Duration) *HermesFeed {
	return &HermesFeed{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type latestPriceResponse struct {
	Parsed []struct {
		ID    string `json:"id"`
		Price struct {
			Price       string `json:"price"`
			Expo        int    `json:"expo"`
			PublishTime int64  `json:"publish_time"`
		} `json:"price"`
	} `json:"parsed"`
}

func (h *HermesFeed) LatestPrices(ctx context.Context, ids []string) (map[string]RawPrice, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	query := url.Values{}
	for _, id := range ids {
		query.Add("ids[]", id)
	}
	target := h.baseURL + "/v2/updates/price/latest?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s", ErrNoPrice, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price service returned status %d", resp.StatusCode)
	}

	var parsed latestPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	prices := make(map[string]RawPrice, len(parsed.Parsed))
	for _, p := range parsed.Parsed {
		prices[normalizeFeedID(p.ID)] = RawPrice{
			Mantissa:    p.Price.Price,
			Expo:        p.Price.Expo,
			PublishTime: p.Price.PublishTime,
		}
	}
	return prices, nil
}
