package models

import "time"

// PricePoint is the canonical price record shared by the source adapters,
// the repository and the API. Timestamp is Unix milliseconds. A row is
// uniquely identified by (Timestamp, CoinID, Source); an upsert with a
// colliding key overwrites Price only.
type PricePoint struct {
	ID        int64     `json:"id,omitempty"`
	Timestamp int64     `json:"timestamp"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	CoinID    string    `json:"coinId"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
