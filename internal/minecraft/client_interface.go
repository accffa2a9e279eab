package minecraft

import "context"

// Executor is the worker-facing slice of the client.
type Executor interface {
	ExecuteCommand(ctx context.Context, command, host string, port int, password string) bool
}

// StatusQuerier is the poller-facing slice of the client.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, host string, port int) Status
}
