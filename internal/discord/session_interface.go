package discord

import "context"

// RoleGranter is the worker-facing slice of the bot.
type RoleGranter interface {
	GrantRole(ctx context.Context, discordID, roleID string) error
}
