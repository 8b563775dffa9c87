package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemAmount is one row of the per-item spend aggregation feeding the
// classification engine.
type ItemAmount struct {
	ItemID   uuid.UUID       `json:"item_id"`
	ItemCode string          `json:"item_code"`
	ItemName string          `json:"item_name"`
	Amount   decimal.Decimal `json:"amount"`
}

// StockMismatch reports an item whose materialized stock disagrees with the
// ledger sum.
type StockMismatch struct {
	ItemID     uuid.UUID `json:"item_id"`
	ItemCode   string    `json:"item_code"`
	ItemName   string    `json:"item_name"`
	Stored     float64   `json:"stored"`
	Calculated float64   `json:"calculated"`
	Diff       float64   `json:"diff"`
}
