package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, discord_id, username, email, minecraft_uuid, coins,
	 is_admin, is_active, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByID(ctx context.Context, id int) (*User, error) {
	u := &User{}
	err := r.db.GetContext(ctx, u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *Repository) FindByDiscordID(ctx context.Context, discordID string) (*User, error) {
	u := &User{}
	err := r.db.GetContext(ctx, u, `SELECT `+userColumns+` FROM users WHERE discord_id = $1`, discordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetOrCreate registers a user on first observed activity.
func (r *Repository) GetOrCreate(ctx context.Context, discordID, username string) (*User, error) {
	u, err := r.FindByDiscordID(ctx, discordID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u = &User{}
	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO users (discord_id, username)
		 VALUES ($1, $2)
		 ON CONFLICT (discord_id) DO UPDATE SET username = EXCLUDED.username
		 RETURNING `+userColumns,
		discordID, username,
	).StructScan(u)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) List(ctx context.Context, search string, limit, offset int) ([]User, int, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ``
	args := []interface{}{}
	if search != "" {
		where = ` WHERE username ILIKE $1 OR discord_id = $2`
		args = append(args, "%"+search+"%", search)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY created_at DESC`
	switch len(args) {
	case 0:
		query += ` LIMIT $1 OFFSET $2`
	default:
		query += ` LIMIT $3 OFFSET $4`
	}
	args = append(args, limit, offset)

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *Repository) SetActive(ctx context.Context, id int, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repository) SetMinecraftUUID(ctx context.Context, id int, uuid string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET minecraft_uuid = $1, updated_at = NOW() WHERE id = $2`, uuid, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE is_active = TRUE`)
	return total, err
}
