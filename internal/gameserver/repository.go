package gameserver

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iM5LB/dbot/internal/minecraft"
)

var ErrServerNotFound = errors.New("server not found")

const serverColumns = `id, name, host, port, rcon_host, rcon_port, rcon_password,
	 is_active, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, id int) (*Server, error) {
	s := &Server{}
	err := r.db.GetContext(ctx, s, `SELECT `+serverColumns+` FROM minecraft_servers WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrServerNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *Repository) List(ctx context.Context) ([]Server, error) {
	var servers []Server
	err := r.db.SelectContext(ctx, &servers,
		`SELECT `+serverColumns+` FROM minecraft_servers ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	return servers, nil
}

func (r *Repository) ListActive(ctx context.Context) ([]Server, error) {
	var servers []Server
	err := r.db.SelectContext(ctx, &servers,
		`SELECT `+serverColumns+` FROM minecraft_servers WHERE is_active = true ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	return servers, nil
}

// FirstActive is the fulfillment target: purchases execute their
// commands against the lowest-id active server.
func (r *Repository) FirstActive(ctx context.Context) (*Server, error) {
	s := &Server{}
	err := r.db.GetContext(ctx, s,
		`SELECT `+serverColumns+` FROM minecraft_servers
		 WHERE is_active = true
		 ORDER BY id ASC
		 LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrServerNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *Repository) Create(ctx context.Context, s *Server) error {
	return r.db.QueryRowxContext(ctx,
		`INSERT INTO minecraft_servers (name, host, port, rcon_host, rcon_port, rcon_password, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		s.Name, s.Host, s.Port, s.RCONHost, s.RCONPort, s.RCONPassword, s.IsActive,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *Repository) Update(ctx context.Context, s *Server) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE minecraft_servers
		 SET name = $1, host = $2, port = $3, rcon_host = $4, rcon_port = $5,
		     rcon_password = $6, is_active = $7, updated_at = NOW()
		 WHERE id = $8`,
		s.Name, s.Host, s.Port, s.RCONHost, s.RCONPort, s.RCONPassword, s.IsActive, s.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrServerNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM minecraft_servers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrServerNotFound
	}
	return nil
}

// InsertSnapshot records one poll observation.
func (r *Repository) InsertSnapshot(ctx context.Context, serverID int, st minecraft.Status) error {
	version := sql.NullString{String: st.Version, Valid: st.Version != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO server_status (server_id, online, players_online, max_players, version, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		serverID, st.Online, st.PlayersOnline, st.MaxPlayers, version, st.LatencyMS)
	return err
}

// LatestStatus returns the most recent snapshot for a server, or nil
// if the server has never been polled.
func (r *Repository) LatestStatus(ctx context.Context, serverID int) (*StatusSnapshot, error) {
	s := &StatusSnapshot{}
	err := r.db.GetContext(ctx, s,
		`SELECT id, server_id, online, players_online, max_players, version, latency_ms, checked_at
		 FROM server_status
		 WHERE server_id = $1
		 ORDER BY checked_at DESC
		 LIMIT 1`,
		serverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// PruneSnapshots drops snapshots older than the given number of days.
func (r *Repository) PruneSnapshots(ctx context.Context, days int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM server_status WHERE checked_at < NOW() - ($1 || ' days')::interval`,
		days)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
