package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"paper-trader/models"
)

// Ledger applies buy and sell operations atomically against a user's
// cash, holdings and order history. Every operation runs inside a
// Repository transaction, so a failure at any step leaves no partial
// mutation behind.
type Ledger struct {
	repo   Repository
	quotes QuoteProvider
	now    func() time.Time
}

// New creates a Ledger over repo, using quotes to price portfolio rows.
func New(repo Repository, quotes QuoteProvider) *Ledger {
	return &Ledger{
		repo:   repo,
		quotes: quotes,
		now:    time.Now,
	}
}

// Buy purchases qty shares of symbol at the quoted price, debiting the
// user's cash and crediting the holding. The symbol row is created on
// first trade with the supplied display name; an existing row keeps its
// original name. Returns the id of the appended order.
func (l *Ledger) Buy(ctx context.Context, userID uint, symbol, name string, qty int64, price decimal.Decimal) (uint, error) {
	if err := validateTrade(symbol, qty, price); err != nil {
		return 0, err
	}

	var orderID uint
	err := l.repo.WithTransaction(ctx, userID, func(tx Repository) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		cost := price.Mul(decimal.NewFromInt(qty))
		if user.Cash.LessThan(cost) {
			return ErrInsufficientFunds
		}

		if err := tx.UpdateUserCash(ctx, userID, user.Cash.Sub(cost)); err != nil {
			return err
		}

		newQty := qty
		holding, err := tx.GetHolding(ctx, userID, symbol)
		switch {
		case err == nil:
			newQty += holding.Qty
		case errors.Is(err, ErrNoSuchHolding):
			// first buy of this symbol
		default:
			return err
		}
		if err := tx.UpsertHolding(ctx, userID, symbol, newQty); err != nil {
			return err
		}

		if err := tx.EnsureSymbol(ctx, symbol, name); err != nil {
			return err
		}

		orderID, err = tx.InsertOrder(ctx, models.Order{
			UserID:    userID,
			Symbol:    symbol,
			Qty:       qty,
			Price:     price,
			Timestamp: l.now(),
		})
		return err
	})
	if err != nil {
		return 0, wrapErr("buy", err)
	}
	return orderID, nil
}

// Sell disposes of qty shares of symbol at the quoted price. The user
// must hold at least qty shares; a sell that would drive the holding
// negative is rejected before any mutation. A holding that reaches
// exactly zero is deleted, so ListHoldings never reports empty rows.
func (l *Ledger) Sell(ctx context.Context, userID uint, symbol string, qty int64, price decimal.Decimal) (uint, error) {
	if err := validateTrade(symbol, qty, price); err != nil {
		return 0, err
	}

	var orderID uint
	err := l.repo.WithTransaction(ctx, userID, func(tx Repository) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		holding, err := tx.GetHolding(ctx, userID, symbol)
		if err != nil {
			return err
		}
		if holding.Qty < qty {
			return ErrInsufficientShares
		}

		proceeds := price.Mul(decimal.NewFromInt(qty))
		if err := tx.UpdateUserCash(ctx, userID, user.Cash.Add(proceeds)); err != nil {
			return err
		}

		remaining := holding.Qty - qty
		if remaining == 0 {
			err = tx.DeleteHolding(ctx, userID, symbol)
		} else {
			err = tx.UpsertHolding(ctx, userID, symbol, remaining)
		}
		if err != nil {
			return err
		}

		orderID, err = tx.InsertOrder(ctx, models.Order{
			UserID:    userID,
			Symbol:    symbol,
			Qty:       -qty,
			Price:     price,
			Timestamp: l.now(),
		})
		return err
	})
	if err != nil {
		return 0, wrapErr("sell", err)
	}
	return orderID, nil
}

// Position is one portfolio row: a holding joined with a live quote.
// QuoteErr carries a failed lookup for that one symbol; the rest of the
// report is unaffected and the row is excluded from TotalValue.
type Position struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name,omitempty"`
	Qty      int64           `json:"qty"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
	QuoteErr error           `json:"-"`
}

// PortfolioReport is the full portfolio view for one user.
type PortfolioReport struct {
	Cash       decimal.Decimal `json:"cash"`
	Positions  []Position      `json:"positions"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// Portfolio reports the user's holdings priced with live quotes.
// TotalValue is cash plus the value of every successfully quoted
// position. Positions are sorted by symbol.
func (l *Ledger) Portfolio(ctx context.Context, userID uint) (PortfolioReport, error) {
	user, err := l.repo.GetUser(ctx, userID)
	if err != nil {
		return PortfolioReport{}, wrapErr("portfolio", err)
	}
	holdings, err := l.repo.ListHoldings(ctx, userID)
	if err != nil {
		return PortfolioReport{}, wrapErr("portfolio", err)
	}

	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Symbol < holdings[j].Symbol
	})

	report := PortfolioReport{
		Cash:       user.Cash,
		TotalValue: user.Cash,
		Positions:  make([]Position, 0, len(holdings)),
	}
	for _, h := range holdings {
		pos := Position{Symbol: h.Symbol, Qty: h.Qty}
		quote, err := l.quotes.Lookup(ctx, h.Symbol)
		if err != nil {
			pos.QuoteErr = wrapErr("quote", err)
		} else {
			pos.Name = quote.Name
			pos.Price = quote.Price
			pos.Value = quote.Price.Mul(decimal.NewFromInt(h.Qty))
			report.TotalValue = report.TotalValue.Add(pos.Value)
		}
		report.Positions = append(report.Positions, pos)
	}
	return report, nil
}

// History returns every order for the user, oldest first. Orders are
// sorted by timestamp with the order id as tiebreaker, so the sequence
// is deterministic regardless of the store's natural row order.
func (l *Ledger) History(ctx context.Context, userID uint) ([]models.Order, error) {
	if _, err := l.repo.GetUser(ctx, userID); err != nil {
		return nil, wrapErr("history", err)
	}
	orders, err := l.repo.ListOrders(ctx, userID)
	if err != nil {
		return nil, wrapErr("history", err)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].Timestamp.Equal(orders[j].Timestamp) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].Timestamp.Before(orders[j].Timestamp)
	})
	return orders, nil
}

func validateTrade(symbol string, qty int64, price decimal.Decimal) error {
	if symbol == "" {
		return &ValidationError{Message: "symbol must not be empty"}
	}
	if qty <= 0 {
		return &ValidationError{Message: "quantity must be positive"}
	}
	if !price.IsPositive() {
		return &ValidationError{Message: "price must be positive"}
	}
	return nil
}
