package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"paper-trader/models"
)

// Repository is the persistence contract the Ledger (and the auth
// service) operate against. Reads return value copies, never live rows;
// every mutation goes through an explicit operation.
//
// Implementations must provide read-your-writes consistency inside a
// WithTransaction scope and must serialize transactions for the same
// user, so two concurrent buys cannot both read the same cash balance
// and double-spend it. Transactions for different users never contend:
// a user's cash, holdings and orders are only ever touched by that
// user's own transactions.
type Repository interface {
	// WithTransaction runs fn in an atomic scope for userID. If fn
	// returns an error, every mutation made through tx is rolled back.
	WithTransaction(ctx context.Context, userID uint, fn func(tx Repository) error) error

	GetUser(ctx context.Context, id uint) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	CreateUser(ctx context.Context, user models.User) (uint, error)
	UpdateUserCash(ctx context.Context, id uint, cash decimal.Decimal) error

	GetHolding(ctx context.Context, userID uint, symbol string) (models.Holding, error)
	UpsertHolding(ctx context.Context, userID uint, symbol string, qty int64) error
	DeleteHolding(ctx context.Context, userID uint, symbol string) error
	ListHoldings(ctx context.Context, userID uint) ([]models.Holding, error)

	// EnsureSymbol inserts the symbol row if absent. An existing row is
	// left untouched, including its name.
	EnsureSymbol(ctx context.Context, symbol, name string) error
	GetSymbol(ctx context.Context, symbol string) (models.Symbol, error)

	InsertOrder(ctx context.Context, order models.Order) (uint, error)
	ListOrders(ctx context.Context, userID uint) ([]models.Order, error)
}

// QuoteProvider supplies live price snapshots for Portfolio. Lookups
// must observe ctx and fail with ErrQuoteNotFound or
// ErrQuoteUnavailable rather than block.
type QuoteProvider interface {
	Lookup(ctx context.Context, symbol string) (models.Quote, error)
}
