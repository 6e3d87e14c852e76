package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paper-trader/ledger"
	"paper-trader/models"
)

// Gorm implements ledger.Repository on top of a gorm-managed Postgres
// database. Per-user serialization comes from WithTransaction locking
// the user's row with SELECT ... FOR UPDATE, so two concurrent
// operations on the same user queue behind each other instead of both
// reading a stale cash balance.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps an open gorm connection.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// Migrate creates or updates the backing tables.
func (g *Gorm) Migrate() error {
	return g.db.AutoMigrate(&models.User{}, &models.Symbol{}, &models.Holding{}, &models.Order{})
}

// WithTransaction runs fn in a database transaction with the user's
// row locked for update.
func (g *Gorm) WithTransaction(ctx context.Context, userID uint, fn func(tx ledger.Repository) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user %d: %w", userID, err)
		}
		return fn(&Gorm{db: tx})
	})
}

func (g *Gorm) GetUser(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	err := g.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ledger.ErrUserNotFound
	}
	return user, err
}

func (g *Gorm) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := g.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ledger.ErrUserNotFound
	}
	return user, err
}

func (g *Gorm) CreateUser(ctx context.Context, user models.User) (uint, error) {
	err := g.db.WithContext(ctx).Create(&user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, ledger.ErrUsernameTaken
	}
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return user.ID, nil
}

func (g *Gorm) UpdateUserCash(ctx context.Context, id uint, cash decimal.Decimal) error {
	res := g.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("cash", cash)
	if res.Error != nil {
		return fmt.Errorf("update cash for user %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ledger.ErrUserNotFound
	}
	return nil
}

func (g *Gorm) GetHolding(ctx context.Context, userID uint, symbol string) (models.Holding, error) {
	var holding models.Holding
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Holding{}, ledger.ErrNoSuchHolding
	}
	return holding, err
}

func (g *Gorm) UpsertHolding(ctx context.Context, userID uint, symbol string, qty int64) error {
	holding := models.Holding{UserID: userID, Symbol: symbol, Qty: qty}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "symbol"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"qty": qty}),
		}).
		Create(&holding).Error
}

func (g *Gorm) DeleteHolding(ctx context.Context, userID uint, symbol string) error {
	return g.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Delete(&models.Holding{}).Error
}

func (g *Gorm) ListHoldings(ctx context.Context, userID uint) ([]models.Holding, error) {
	var holdings []models.Holding
	err := g.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("symbol").
		Find(&holdings).Error
	return holdings, err
}

func (g *Gorm) EnsureSymbol(ctx context.Context, symbol, name string) error {
	row := models.Symbol{Symbol: symbol, Name: name}
	// DoNothing keeps the original name on resubmission
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (g *Gorm) GetSymbol(ctx context.Context, symbol string) (models.Symbol, error) {
	var row models.Symbol
	err := g.db.WithContext(ctx).Where("symbol = ?", symbol).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Symbol{}, ledger.ErrSymbolNotFound
	}
	return row, err
}

func (g *Gorm) InsertOrder(ctx context.Context, order models.Order) (uint, error) {
	if err := g.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return order.ID, nil
}

func (g *Gorm) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := g.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp, id").
		Find(&orders).Error
	return orders, err
}
