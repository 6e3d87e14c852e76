package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"paper-trader/ledger"
	"paper-trader/models"
)

func seedUser(t *testing.T, m *Memory, username string, cash int64) uint {
	t.Helper()
	id, err := m.CreateUser(context.Background(), models.User{
		Username:     username,
		PasswordHash: "x",
		Cash:         decimal.NewFromInt(cash),
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return id
}

func TestMemory_CreateUser_DuplicateUsername(t *testing.T) {
	m := NewMemory()
	seedUser(t, m, "alice", 100)

	_, err := m.CreateUser(context.Background(), models.User{Username: "alice", PasswordHash: "y"})
	if !errors.Is(err, ledger.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestMemory_UsernamesAreCaseSensitive(t *testing.T) {
	m := NewMemory()
	seedUser(t, m, "alice", 100)

	if _, err := m.CreateUser(context.Background(), models.User{Username: "Alice", PasswordHash: "y"}); err != nil {
		t.Fatalf("distinct-case username rejected: %v", err)
	}
}

func TestMemory_TransactionReadsOwnWrites(t *testing.T) {
	m := NewMemory()
	id := seedUser(t, m, "alice", 100)
	ctx := context.Background()

	err := m.WithTransaction(ctx, id, func(tx ledger.Repository) error {
		if err := tx.UpdateUserCash(ctx, id, decimal.NewFromInt(42)); err != nil {
			return err
		}
		user, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if !user.Cash.Equal(decimal.NewFromInt(42)) {
			t.Fatalf("read inside transaction sees %s, want 42", user.Cash)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestMemory_RollbackRestoresTouchedRows(t *testing.T) {
	m := NewMemory()
	id := seedUser(t, m, "alice", 100)
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.WithTransaction(ctx, id, func(tx ledger.Repository) error {
		if err := tx.UpdateUserCash(ctx, id, decimal.Zero); err != nil {
			return err
		}
		if err := tx.UpsertHolding(ctx, id, "AAPL", 5); err != nil {
			return err
		}
		if err := tx.EnsureSymbol(ctx, "AAPL", "Apple Inc"); err != nil {
			return err
		}
		if _, err := tx.InsertOrder(ctx, models.Order{UserID: id, Symbol: "AAPL", Qty: 5}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error back, got %v", err)
	}

	user, err := m.GetUser(ctx, id)
	if err != nil || !user.Cash.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("cash not restored: %+v, %v", user, err)
	}
	if _, err := m.GetHolding(ctx, id, "AAPL"); !errors.Is(err, ledger.ErrNoSuchHolding) {
		t.Fatalf("holding not removed: %v", err)
	}
	if _, err := m.GetSymbol(ctx, "AAPL"); !errors.Is(err, ledger.ErrSymbolNotFound) {
		t.Fatalf("symbol not removed: %v", err)
	}
	orders, _ := m.ListOrders(ctx, id)
	if len(orders) != 0 {
		t.Fatalf("orders not removed: %d", len(orders))
	}
}

func TestMemory_RollbackRestoresDeletedHolding(t *testing.T) {
	m := NewMemory()
	id := seedUser(t, m, "alice", 100)
	ctx := context.Background()

	if err := m.UpsertHolding(ctx, id, "AAPL", 7); err != nil {
		t.Fatalf("seed holding: %v", err)
	}

	boom := errors.New("boom")
	err := m.WithTransaction(ctx, id, func(tx ledger.Repository) error {
		if err := tx.DeleteHolding(ctx, id, "AAPL"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error back, got %v", err)
	}

	holding, err := m.GetHolding(ctx, id, "AAPL")
	if err != nil || holding.Qty != 7 {
		t.Fatalf("deleted holding not restored: %+v, %v", holding, err)
	}
}

func TestMemory_EnsureSymbol_KeepsExistingName(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.EnsureSymbol(ctx, "AAPL", "Apple Inc"); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := m.EnsureSymbol(ctx, "AAPL", "Apple Computer Co"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	symbol, err := m.GetSymbol(ctx, "AAPL")
	if err != nil || symbol.Name != "Apple Inc" {
		t.Fatalf("symbol = %+v, %v; want original name", symbol, err)
	}
}

func TestMemory_SameUserTransactionsSerialize(t *testing.T) {
	m := NewMemory()
	id := seedUser(t, m, "alice", 0)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithTransaction(ctx, id, func(tx ledger.Repository) error {
				user, err := tx.GetUser(ctx, id)
				if err != nil {
					return err
				}
				return tx.UpdateUserCash(ctx, id, user.Cash.Add(decimal.NewFromInt(1)))
			})
			if err != nil {
				t.Errorf("transaction: %v", err)
			}
		}()
	}
	wg.Wait()

	user, err := m.GetUser(ctx, id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.Cash.Equal(decimal.NewFromInt(workers)) {
		t.Fatalf("lost update: cash = %s, want %d", user.Cash, workers)
	}
}

func TestMemory_RollbackLeavesOtherUsersAlone(t *testing.T) {
	m := NewMemory()
	alice := seedUser(t, m, "alice", 100)
	bob := seedUser(t, m, "bob", 200)
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.WithTransaction(ctx, alice, func(tx ledger.Repository) error {
		if err := tx.UpdateUserCash(ctx, alice, decimal.Zero); err != nil {
			return err
		}
		// concurrent-looking write by another user's transaction
		if err := m.WithTransaction(ctx, bob, func(btx ledger.Repository) error {
			return btx.UpdateUserCash(ctx, bob, decimal.NewFromInt(999))
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error back, got %v", err)
	}

	bobUser, err := m.GetUser(ctx, bob)
	if err != nil || !bobUser.Cash.Equal(decimal.NewFromInt(999)) {
		t.Fatalf("bob's committed write was clobbered: %+v, %v", bobUser, err)
	}
	aliceUser, _ := m.GetUser(ctx, alice)
	if !aliceUser.Cash.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("alice's rollback incomplete: %s", aliceUser.Cash)
	}
}

func TestMemory_RollbackKeepsSymbolsCommittedByOthers(t *testing.T) {
	m := NewMemory()
	alice := seedUser(t, m, "alice", 100)
	bob := seedUser(t, m, "bob", 200)
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.WithTransaction(ctx, alice, func(tx ledger.Repository) error {
		if err := tx.EnsureSymbol(ctx, "AAPL", "Apple Inc"); err != nil {
			return err
		}
		// bob's transaction trades the same symbol and commits while
		// alice's is still in flight
		if err := m.WithTransaction(ctx, bob, func(btx ledger.Repository) error {
			if err := btx.EnsureSymbol(ctx, "AAPL", "Apple Inc"); err != nil {
				return err
			}
			if err := btx.UpsertHolding(ctx, bob, "AAPL", 3); err != nil {
				return err
			}
			_, err := btx.InsertOrder(ctx, models.Order{UserID: bob, Symbol: "AAPL", Qty: 3})
			return err
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error back, got %v", err)
	}

	// bob's committed buy must still reference an existing symbol row
	if _, err := m.GetSymbol(ctx, "AAPL"); err != nil {
		t.Fatalf("symbol row gone after another transaction's rollback: %v", err)
	}
	holding, err := m.GetHolding(ctx, bob, "AAPL")
	if err != nil || holding.Qty != 3 {
		t.Fatalf("bob's holding lost: %+v, %v", holding, err)
	}
	orders, _ := m.ListOrders(ctx, bob)
	if len(orders) != 1 {
		t.Fatalf("bob's order lost: %d orders", len(orders))
	}
}

func TestMemory_UncommittedWritesAreInvisible(t *testing.T) {
	m := NewMemory()
	id := seedUser(t, m, "alice", 100)
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.WithTransaction(ctx, id, func(tx ledger.Repository) error {
		if err := tx.EnsureSymbol(ctx, "AAPL", "Apple Inc"); err != nil {
			return err
		}
		if err := tx.UpsertHolding(ctx, id, "AAPL", 5); err != nil {
			return err
		}
		if err := tx.UpdateUserCash(ctx, id, decimal.Zero); err != nil {
			return err
		}

		// none of the above may be visible outside the transaction
		if _, err := m.GetSymbol(ctx, "AAPL"); !errors.Is(err, ledger.ErrSymbolNotFound) {
			t.Errorf("uncommitted symbol visible: %v", err)
		}
		if _, err := m.GetHolding(ctx, id, "AAPL"); !errors.Is(err, ledger.ErrNoSuchHolding) {
			t.Errorf("uncommitted holding visible: %v", err)
		}
		user, err := m.GetUser(ctx, id)
		if err != nil || !user.Cash.Equal(decimal.NewFromInt(100)) {
			t.Errorf("uncommitted cash visible: %+v, %v", user, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error back, got %v", err)
	}
}

func TestMemory_RollbackDiscardsCreatedUser(t *testing.T) {
	m := NewMemory()
	admin := seedUser(t, m, "admin", 0)
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.WithTransaction(ctx, admin, func(tx ledger.Repository) error {
		if _, err := tx.CreateUser(ctx, models.User{Username: "carol", PasswordHash: "x"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error back, got %v", err)
	}

	if _, err := m.GetUserByUsername(ctx, "carol"); !errors.Is(err, ledger.ErrUserNotFound) {
		t.Fatalf("rolled-back user still present: %v", err)
	}
	// the username must be free for a later registration
	if _, err := m.CreateUser(ctx, models.User{Username: "carol", PasswordHash: "y"}); err != nil {
		t.Fatalf("username still reserved after rollback: %v", err)
	}
}

func TestMemory_ListHoldings_SortedBySymbol(t *testing.T) {
	m := NewMemory()
	id := seedUser(t, m, "alice", 0)
	ctx := context.Background()

	for _, s := range []string{"MSFT", "AAPL", "NFLX"} {
		if err := m.UpsertHolding(ctx, id, s, 1); err != nil {
			t.Fatalf("upsert %s: %v", s, err)
		}
	}

	holdings, err := m.ListHoldings(ctx, id)
	if err != nil {
		t.Fatalf("list holdings: %v", err)
	}
	want := []string{"AAPL", "MSFT", "NFLX"}
	for i, s := range want {
		if holdings[i].Symbol != s {
			t.Fatalf("holdings[%d] = %s, want %s", i, holdings[i].Symbol, s)
		}
	}
}
