package gameserver

import (
	"database/sql"
	"time"
)

// Server is one registered Minecraft server. Query and RCON endpoints
// are separate because hosts commonly expose them on different
// addresses.
type Server struct {
	ID           int       `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Host         string    `db:"host" json:"host"`
	Port         int       `db:"port" json:"port"`
	RCONHost     string    `db:"rcon_host" json:"rcon_host"`
	RCONPort     int       `db:"rcon_port" json:"rcon_port"`
	RCONPassword string    `db:"rcon_password" json:"-"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StatusSnapshot is one recorded poll observation.
type StatusSnapshot struct {
	ID            int            `db:"id" json:"id"`
	ServerID      int            `db:"server_id" json:"server_id"`
	Online        bool           `db:"online" json:"online"`
	PlayersOnline int            `db:"players_online" json:"players_online"`
	MaxPlayers    int            `db:"max_players" json:"max_players"`
	Version       sql.NullString `db:"version" json:"version"`
	LatencyMS     int64          `db:"latency_ms" json:"latency_ms"`
	CheckedAt     time.Time      `db:"checked_at" json:"checked_at"`
}
