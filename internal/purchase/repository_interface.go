package purchase

import "context"

// Store is the worker-facing contract of the purchase record store.
type Store interface {
	Create(ctx context.Context, userID, itemID, quantity int, totalCost int64, description string) (*Purchase, error)
	Claim(ctx context.Context, id int) (bool, error)
	MarkFulfilled(ctx context.Context, id int, command string, roleAssigned bool) error
	MarkFailed(ctx context.Context, id int, command string, roleAssigned bool) error
	Get(ctx context.Context, id int) (*Purchase, error)
	ListPending(ctx context.Context) ([]Purchase, error)
}
