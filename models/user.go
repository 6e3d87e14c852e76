package models

import (
	"github.com/shopspring/decimal"
)

// User is an account holder. Cash is a decimal so repeated trades never
// accumulate floating-point drift; it is only ever mutated through
// Repository.UpdateUserCash inside a transaction.
type User struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Username     string          `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Cash         decimal.Decimal `gorm:"type:numeric;not null" json:"cash"`
}
