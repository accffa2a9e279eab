package audit

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/iM5LB/dbot/internal/logger"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Record writes one audit row. Failures are logged and swallowed: an
// audit miss must never abort the action being audited.
func (r *Repository) Record(ctx context.Context, actor, action, targetType, targetID, details, ip string) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (actor, action, target_type, target_id, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		actor, action,
		nullable(targetType), nullable(targetID), nullable(details), nullable(ip))
	if err != nil {
		logger.WithError(err).Error(fmt.Sprintf("Audit write failed: %s %s", actor, action))
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// List returns audit rows newest first, optionally filtered by actor
// and/or action.
func (r *Repository) List(ctx context.Context, actor, action string, limit, offset int) ([]Log, int, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ``
	args := []interface{}{}
	n := 0
	if actor != "" {
		n++
		where = fmt.Sprintf(" WHERE actor = $%d", n)
		args = append(args, actor)
	}
	if action != "" {
		n++
		if where == "" {
			where = fmt.Sprintf(" WHERE action = $%d", n)
		} else {
			where += fmt.Sprintf(" AND action = $%d", n)
		}
		args = append(args, action)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_logs`+where, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT id, actor, action, target_type, target_id, details, ip_address, created_at
		 FROM audit_logs`+where+` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, offset)

	var logs []Log
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// Stats counts rows per action over the last N days.
func (r *Repository) Stats(ctx context.Context, days int) ([]ActionCount, error) {
	var counts []ActionCount
	err := r.db.SelectContext(ctx, &counts,
		`SELECT action, COUNT(*) AS count
		 FROM audit_logs
		 WHERE created_at >= NOW() - ($1 || ' days')::interval
		 GROUP BY action
		 ORDER BY count DESC`,
		days)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// ExportCSV streams every audit row matching the filters as CSV.
func (r *Repository) ExportCSV(ctx context.Context, w io.Writer, actor, action string) error {
	where := ``
	args := []interface{}{}
	n := 0
	if actor != "" {
		n++
		where = fmt.Sprintf(" WHERE actor = $%d", n)
		args = append(args, actor)
	}
	if action != "" {
		n++
		if where == "" {
			where = fmt.Sprintf(" WHERE action = $%d", n)
		} else {
			where += fmt.Sprintf(" AND action = $%d", n)
		}
		args = append(args, action)
	}

	rows, err := r.db.QueryxContext(ctx,
		`SELECT id, actor, action, target_type, target_id, details, ip_address, created_at
		 FROM audit_logs`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "actor", "action", "target_type", "target_id", "details", "ip_address", "created_at"}); err != nil {
		return err
	}

	for rows.Next() {
		var l Log
		if err := rows.StructScan(&l); err != nil {
			return err
		}
		record := []string{
			strconv.Itoa(l.ID),
			l.Actor,
			l.Action,
			l.TargetType.String,
			l.TargetID.String,
			l.Details.String,
			l.IPAddress.String,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// Cleanup deletes audit rows older than the given number of days.
func (r *Repository) Cleanup(ctx context.Context, days int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_logs WHERE created_at < NOW() - ($1 || ' days')::interval`,
		days)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
