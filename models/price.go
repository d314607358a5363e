package models

import "time"

// PriceQuote is the fiat unit price of a token with its provenance.
type PriceQuote struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	Source      Source    `json:"source"`
	FeedID      string    `json:"feed_id,omitempty"`
	PublishTime time.Time `json:"publish_time,omitempty"`
}
