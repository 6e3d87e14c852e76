package database

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"paper-trader/ledger"
	"paper-trader/models"
)

type holdingKey struct {
	userID uint
	symbol string
}

// Memory is the in-memory reference implementation of
// ledger.Repository. A per-user mutex serializes transactions for the
// same user, and transactions buffer their writes until commit, so an
// in-flight transaction is never visible to anyone else and a failed
// one is simply discarded. Transactions for different users share
// nothing but the maps themselves, which are guarded by mu.
type Memory struct {
	mu        sync.Mutex
	users     map[uint]models.User
	usernames map[string]uint
	holdings  map[holdingKey]int64
	symbols   map[string]string
	orders    map[uint]models.Order

	nextUserID  uint
	nextOrderID uint

	userLocks map[uint]*sync.Mutex
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		users:       make(map[uint]models.User),
		usernames:   make(map[string]uint),
		holdings:    make(map[holdingKey]int64),
		symbols:     make(map[string]string),
		orders:      make(map[uint]models.Order),
		userLocks:   make(map[uint]*sync.Mutex),
		nextUserID:  1,
		nextOrderID: 1,
	}
}

func (m *Memory) lockFor(userID uint) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.userLocks[userID] = l
	}
	return l
}

// WithTransaction serializes on the user's lock and runs fn against a
// buffering view. The view's writes reach the shared maps only when fn
// succeeds; on error the buffered writes are dropped unseen.
func (m *Memory) WithTransaction(ctx context.Context, userID uint, fn func(tx ledger.Repository) error) error {
	lock := m.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newMemTx(m)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id uint) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, ledger.ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usernames[username]
	if !ok {
		return models.User{}, ledger.ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *Memory) CreateUser(ctx context.Context, user models.User) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.usernames[user.Username]; taken {
		return 0, ledger.ErrUsernameTaken
	}
	user.ID = m.nextUserID
	m.nextUserID++
	m.users[user.ID] = user
	m.usernames[user.Username] = user.ID
	return user.ID, nil
}

func (m *Memory) UpdateUserCash(ctx context.Context, id uint, cash decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ledger.ErrUserNotFound
	}
	u.Cash = cash
	m.users[id] = u
	return nil
}

func (m *Memory) GetHolding(ctx context.Context, userID uint, symbol string) (models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	qty, ok := m.holdings[holdingKey{userID, symbol}]
	if !ok {
		return models.Holding{}, ledger.ErrNoSuchHolding
	}
	return models.Holding{UserID: userID, Symbol: symbol, Qty: qty}, nil
}

func (m *Memory) UpsertHolding(ctx context.Context, userID uint, symbol string, qty int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings[holdingKey{userID, symbol}] = qty
	return nil
}

func (m *Memory) DeleteHolding(ctx context.Context, userID uint, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holdings, holdingKey{userID, symbol})
	return nil
}

func (m *Memory) ListHoldings(ctx context.Context, userID uint) ([]models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Holding
	for k, qty := range m.holdings {
		if k.userID == userID {
			out = append(out, models.Holding{UserID: userID, Symbol: k.symbol, Qty: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *Memory) EnsureSymbol(ctx context.Context, symbol, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.symbols[symbol]; !ok {
		m.symbols[symbol] = name
	}
	return nil
}

func (m *Memory) GetSymbol(ctx context.Context, symbol string) (models.Symbol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.symbols[symbol]
	if !ok {
		return models.Symbol{}, ledger.ErrSymbolNotFound
	}
	return models.Symbol{Symbol: symbol, Name: name}, nil
}

func (m *Memory) InsertOrder(ctx context.Context, order models.Order) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = m.nextOrderID
	m.nextOrderID++
	m.orders[order.ID] = order
	return order.ID, nil
}

func (m *Memory) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}
