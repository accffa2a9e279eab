package gameserver

import (
	"context"

	"github.com/iM5LB/dbot/internal/minecraft"
)

// Registry is the poller-facing slice of the server store.
type Registry interface {
	ListActive(ctx context.Context) ([]Server, error)
	InsertSnapshot(ctx context.Context, serverID int, st minecraft.Status) error
}

// Targeter is the worker-facing slice: where fulfillment commands go.
type Targeter interface {
	FirstActive(ctx context.Context) (*Server, error)
}
