package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/iM5LB/dbot/internal/item"
	"github.com/iM5LB/dbot/internal/ledger"
	"github.com/iM5LB/dbot/internal/metrics"
	"github.com/iM5LB/dbot/internal/user"
)

var (
	ErrItemUnavailable   = errors.New("item not found or not available")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInsufficientFunds = errors.New("insufficient coins")
	ErrUserInactive      = errors.New("user is banned")
)

type Service interface {
	// Buy debits the buyer and records a pending purchase atomically.
	// Fulfillment happens later, in the worker.
	Buy(ctx context.Context, discordID, username string, itemID, quantity int) (*Purchase, int64, error)
}

type service struct {
	purchases Store
	items     item.Store
	users     user.Store
	ledger    ledger.Poster
}

func NewService(purchases Store, items item.Store, users user.Store, ledgerRepo ledger.Poster) Service {
	return &service{
		purchases: purchases,
		items:     items,
		users:     users,
		ledger:    ledgerRepo,
	}
}

func (s *service) Buy(ctx context.Context, discordID, username string, itemID, quantity int) (*Purchase, int64, error) {
	if quantity <= 0 {
		return nil, 0, ErrInvalidQuantity
	}

	u, err := s.users.GetOrCreate(ctx, discordID, username)
	if err != nil {
		return nil, 0, err
	}
	if !u.IsActive {
		return nil, 0, ErrUserInactive
	}

	i, err := s.items.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, item.ErrItemNotFound) {
			return nil, 0, ErrItemUnavailable
		}
		return nil, 0, err
	}
	if !i.IsAvailable {
		return nil, 0, ErrItemUnavailable
	}

	totalCost := i.Price * int64(quantity)

	// Pre-check gives a friendly rejection without touching the store;
	// the ledger re-checks under the row lock inside Create.
	if u.Coins < totalCost {
		return nil, u.Coins, ErrInsufficientFunds
	}

	description := fmt.Sprintf("Purchased %dx %s", quantity, i.Name)
	p, err := s.purchases.Create(ctx, u.ID, i.ID, quantity, totalCost, description)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return nil, u.Coins, ErrInsufficientFunds
		}
		return nil, 0, err
	}

	metrics.RecordPurchase(StatusPending)
	return p, u.Coins - totalCost, nil
}
