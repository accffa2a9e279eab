package user

import "context"

type Store interface {
	FindByID(ctx context.Context, id int) (*User, error)
	FindByDiscordID(ctx context.Context, discordID string) (*User, error)
	GetOrCreate(ctx context.Context, discordID, username string) (*User, error)
}
