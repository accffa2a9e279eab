package user

import "time"

// User is one Discord identity. Coins is a running counter kept in sync
// with the transactions table by the ledger; nothing else writes it.
type User struct {
	ID            int       `db:"id" json:"id"`
	DiscordID     string    `db:"discord_id" json:"discord_id"`
	Username      string    `db:"username" json:"username"`
	Email         string    `db:"email" json:"email"`
	MinecraftUUID string    `db:"minecraft_uuid" json:"minecraft_uuid"`
	Coins         int64     `db:"coins" json:"coins"`
	IsAdmin       bool      `db:"is_admin" json:"is_admin"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
