package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Symbol is a traded ticker. Rows are created lazily the first time a
// ticker is bought and never updated afterwards, even if the quote
// provider later reports a different company name.
type Symbol struct {
	Symbol string `gorm:"primaryKey" json:"symbol"`
	Name   string `gorm:"not null" json:"name"`
}

// Holding is one user's position in one symbol. Qty is always positive:
// a position sold down to zero is deleted rather than kept as a zero row.
type Holding struct {
	UserID uint   `gorm:"primaryKey" json:"user_id"`
	Symbol string `gorm:"primaryKey" json:"symbol"`
	Qty    int64  `gorm:"not null" json:"qty"`
}

// Order is an append-only execution record. Qty is signed: positive for
// buys, negative for sells. Rows are never updated or deleted.
type Order struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"index;not null" json:"user_id"`
	Symbol    string          `gorm:"not null" json:"symbol"`
	Qty       int64           `gorm:"not null" json:"qty"`
	Price     decimal.Decimal `gorm:"type:numeric;not null" json:"price"`
	Timestamp time.Time       `gorm:"not null" json:"timestamp"`
}

// Quote is a point-in-time price snapshot from the external provider.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}
