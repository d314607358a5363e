package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"hotspot-advisor/metrics"
	"hotspot-advisor/models"

	"github.com/apex/log"
)

// PriceError is returned when no price can be produced for a symbol.
type PriceError struct {
	Symbol string
	Err    error
}

func (e *PriceError) Error() string {
	return fmt.Sprintf("price for %s: %v", e.Symbol, e.Err)
}

func (e *PriceError) Unwrap() error {
	return e.Err
}

var errNoFeed = errors.New("no live price feed configured")

// Client resolves token symbols to fiat prices.
type Client struct {
	feeds    map[string]string
	fallback map[string]float64
	live     Feed
	cache    QuoteCache
}

// NewClient creates a price client. The tables are copied and never modified
// afterwards. live and cache may be nil.
func NewClient(feeds map[string]string, fallback map[string]float64, live Feed, cache QuoteCache) *Client {
	c := &Client{
		feeds:    make(map[string]string, len(feeds)),
		fallback: make(map[string]float64, len(fallback)),
		live:     live,
		cache:    cache,
	}
	for k, v := range feeds {
		c.feeds[strings.ToUpper(k)] = v
	}
	for k, v := range fallback {
		c.fallback[strings.ToUpper(k)] = v
	}
	return c
}

// GetPrice returns the current price of symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (models.PriceQuote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	feedID, ok := c.feeds[symbol]
	if !ok || isPlaceholder(feedID) {
		return c.fallbackQuote(symbol), nil
	}

	err := errNoFeed
	var prices map[string]RawPrice
	if c.live != nil {
		prices, err = c.live.LatestPrices(ctx, []string{feedID})
	}
	if err != nil {
		if errors.Is(err, ErrNoPrice) {
			metrics.PriceLookupsTotal.WithLabelValues("error").Inc()
			return models.PriceQuote{}, &PriceError{Symbol: symbol, Err: err}
		}
		return c.fromBackup(ctx, symbol, err)
	}

	raw, ok := prices[normalizeFeedID(feedID)]
	if !ok {
		metrics.PriceLookupsTotal.WithLabelValues("error").Inc()
		return models.PriceQuote{}, &PriceError{Symbol: symbol, Err: ErrNoPrice}
	}
	value, err := raw.Value()
	if err != nil || value <= 0 {
		metrics.PriceLookupsTotal.WithLabelValues("error").Inc()
		return models.PriceQuote{}, &PriceError{Symbol: symbol, Err: fmt.Errorf("%w: unusable price %+v", ErrNoPrice, raw)}
	}

	quote := models.PriceQuote{
		Symbol: symbol,
		Price:  value,
		Source: models.SourceLive,
		FeedID: feedID,
	}
	if raw.PublishTime > 0 {
		quote.PublishTime = time.Unix(raw.PublishTime, 0).UTC()
	}
	metrics.PriceLookupsTotal.WithLabelValues(string(models.SourceLive)).Inc()

	if c.cache != nil {
		if err := c.cache.Save(ctx, quote); err != nil {
			log.WithError(err).Warnf("Failed to cache %s quote", symbol)
		}
	}
	return quote, nil
}

// fromBackup serves a symbol whose live feed is unreachable: last known good
// quote first, then the static table.
func (c *Client) fromBackup(ctx context.Context, symbol string, cause error) (models.PriceQuote, error) {
	if c.cache != nil {
		cached, err := c.cache.Load(ctx, symbol)
		if err != nil {
			log.WithError(err).Warnf("Failed to read cached %s quote", symbol)
		} else if cached != nil {
			log.WithError(cause).Warnf("Live price for %s unavailable, using cached quote", symbol)
			cached.Source = models.SourceCache
			metrics.PriceLookupsTotal.WithLabelValues(string(models.SourceCache)).Inc()
			return *cached, nil
		}
	}

	if _, ok := c.fallback[symbol]; ok {
		log.WithError(cause).Warnf("Live price for %s unavailable, using fallback table", symbol)
		return c.fallbackQuote(symbol), nil
	}

	metrics.PriceLookupsTotal.WithLabelValues("error").Inc()
	return models.PriceQuote{}, &PriceError{Symbol: symbol, Err: cause}
}

func (c *Client) fallbackQuote(symbol string) models.PriceQuote {
	price, ok := c.fallback[symbol]
	if !ok {
		price = unknownSymbolPrice
	}
	metrics.PriceLookupsTotal.WithLabelValues(string(models.SourceFallback)).Inc()
	return models.PriceQuote{
		Symbol: symbol,
		Price:  price,
		Source: models.SourceFallback,
	}
}

// GetMultiplePrices looks up all symbols concurrently. A failed symbol is
// logged and reported as 0.0; it never fails the batch.
func (c *Client) GetMultiplePrices(ctx context.Context, symbols []string) map[string]float64 {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = make(map[string]float64, len(symbols))
	)
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			price := 0.0
			quote, err := c.GetPrice(ctx, symbol)
			if err != nil {
				log.WithError(err).Errorf("Price lookup for %s failed", symbol)
			} else {
				price = quote.Price
			}
			mu.Lock()
			result[symbol] = price
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return result
}
