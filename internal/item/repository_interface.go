package item

import "context"

type Store interface {
	Get(ctx context.Context, id int) (*Item, error)
	GetAvailable(ctx context.Context, category string) ([]Item, error)
}
