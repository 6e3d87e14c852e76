package database

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"paper-trader/ledger"
	"paper-trader/models"
)

// memTx is the transaction view handed to WithTransaction callbacks.
// Writes are buffered in overlay maps and applied to the parent only
// when the transaction commits, so other transactions never observe
// uncommitted state and a rollback simply discards the overlay. Reads
// consult the overlay first, which gives read-your-writes inside the
// transaction.
//
// Row ids are reserved from the parent's counters at insert time and
// are not returned on rollback, like a database sequence.
type memTx struct {
	parent *Memory

	users     map[uint]models.User
	usernames map[string]uint
	holdings  map[holdingKey]*int64 // nil value: row deleted in this tx
	symbols   map[string]string
	orders    []models.Order
}

func newMemTx(parent *Memory) *memTx {
	return &memTx{
		parent:    parent,
		users:     make(map[uint]models.User),
		usernames: make(map[string]uint),
		holdings:  make(map[holdingKey]*int64),
		symbols:   make(map[string]string),
	}
}

// commit applies the overlay to the parent in one critical section.
// Symbol rows keep first-writer-wins semantics: a symbol another
// transaction committed while this one was in flight is left untouched.
func (t *memTx) commit() {
	p := t.parent
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, u := range t.users {
		p.users[id] = u
	}
	for name, id := range t.usernames {
		p.usernames[name] = id
	}
	for k, qty := range t.holdings {
		if qty == nil {
			delete(p.holdings, k)
		} else {
			p.holdings[k] = *qty
		}
	}
	for symbol, name := range t.symbols {
		if _, exists := p.symbols[symbol]; !exists {
			p.symbols[symbol] = name
		}
	}
	for _, o := range t.orders {
		p.orders[o.ID] = o
	}
}

func (t *memTx) WithTransaction(ctx context.Context, userID uint, fn func(tx ledger.Repository) error) error {
	// already inside a transaction scope
	return fn(t)
}

func (t *memTx) GetUser(ctx context.Context, id uint) (models.User, error) {
	if u, ok := t.users[id]; ok {
		return u, nil
	}
	return t.parent.GetUser(ctx, id)
}

func (t *memTx) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	if id, ok := t.usernames[username]; ok {
		return t.users[id], nil
	}
	user, err := t.parent.GetUserByUsername(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if u, ok := t.users[user.ID]; ok {
		return u, nil
	}
	return user, nil
}

func (t *memTx) CreateUser(ctx context.Context, user models.User) (uint, error) {
	if _, taken := t.usernames[user.Username]; taken {
		return 0, ledger.ErrUsernameTaken
	}
	p := t.parent
	p.mu.Lock()
	if _, taken := p.usernames[user.Username]; taken {
		p.mu.Unlock()
		return 0, ledger.ErrUsernameTaken
	}
	user.ID = p.nextUserID
	p.nextUserID++
	p.mu.Unlock()

	t.users[user.ID] = user
	t.usernames[user.Username] = user.ID
	return user.ID, nil
}

func (t *memTx) UpdateUserCash(ctx context.Context, id uint, cash decimal.Decimal) error {
	user, err := t.GetUser(ctx, id)
	if err != nil {
		return err
	}
	user.Cash = cash
	t.users[id] = user
	return nil
}

func (t *memTx) GetHolding(ctx context.Context, userID uint, symbol string) (models.Holding, error) {
	k := holdingKey{userID, symbol}
	if qty, ok := t.holdings[k]; ok {
		if qty == nil {
			return models.Holding{}, ledger.ErrNoSuchHolding
		}
		return models.Holding{UserID: userID, Symbol: symbol, Qty: *qty}, nil
	}
	return t.parent.GetHolding(ctx, userID, symbol)
}

func (t *memTx) UpsertHolding(ctx context.Context, userID uint, symbol string, qty int64) error {
	q := qty
	t.holdings[holdingKey{userID, symbol}] = &q
	return nil
}

func (t *memTx) DeleteHolding(ctx context.Context, userID uint, symbol string) error {
	t.holdings[holdingKey{userID, symbol}] = nil
	return nil
}

func (t *memTx) ListHoldings(ctx context.Context, userID uint) ([]models.Holding, error) {
	committed, err := t.parent.ListHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]int64, len(committed))
	for _, h := range committed {
		merged[h.Symbol] = h.Qty
	}
	for k, qty := range t.holdings {
		if k.userID != userID {
			continue
		}
		if qty == nil {
			delete(merged, k.symbol)
		} else {
			merged[k.symbol] = *qty
		}
	}

	out := make([]models.Holding, 0, len(merged))
	for symbol, qty := range merged {
		out = append(out, models.Holding{UserID: userID, Symbol: symbol, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (t *memTx) EnsureSymbol(ctx context.Context, symbol, name string) error {
	if _, ok := t.symbols[symbol]; ok {
		return nil
	}
	if _, err := t.parent.GetSymbol(ctx, symbol); err == nil {
		return nil
	} else if !errors.Is(err, ledger.ErrSymbolNotFound) {
		return err
	}
	t.symbols[symbol] = name
	return nil
}

func (t *memTx) GetSymbol(ctx context.Context, symbol string) (models.Symbol, error) {
	if name, ok := t.symbols[symbol]; ok {
		return models.Symbol{Symbol: symbol, Name: name}, nil
	}
	return t.parent.GetSymbol(ctx, symbol)
}

func (t *memTx) InsertOrder(ctx context.Context, order models.Order) (uint, error) {
	p := t.parent
	p.mu.Lock()
	order.ID = p.nextOrderID
	p.nextOrderID++
	p.mu.Unlock()

	t.orders = append(t.orders, order)
	return order.ID, nil
}

func (t *memTx) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	committed, err := t.parent.ListOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, o := range t.orders {
		if o.UserID == userID {
			committed = append(committed, o)
		}
	}
	return committed, nil
}
