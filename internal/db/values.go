package db

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
)

// SaveLastValues upserts the live quotes of one category.
func (d *DB) SaveLastValues(ctx context.Context, category prices.Category, quotes map[string]prices.Quote, at time.Time) error {
	if len(quotes) == 0 {
		return nil
	}
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO last_values(category,asset_id,price,change_24h,unit,source,updated_at)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(category,asset_id) DO UPDATE SET
			price=excluded.price, change_24h=excluded.change_24h, unit=excluded.unit,
			source=excluded.source, updated_at=excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, q := range quotes {
		if q.Estimated || q.Stale {
			continue
		}
		var change sql.NullFloat64
		if q.Change24h != nil {
			change = sql.NullFloat64{Float64: *q.Change24h, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, string(category), id, q.Price, change, q.Unit, q.Source, at.Unix()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadLastValues returns the stored quotes for ids, flagged Stale.
func (d *DB) LoadLastValues(ctx context.Context, category prices.Category, ids []string) (map[string]prices.Quote, error) {
	out := map[string]prices.Quote{}
	if len(ids) == 0 {
		return out, nil
	}

	q := `SELECT asset_id,price,change_24h,unit,source FROM last_values WHERE category=? AND asset_id IN (` + placeholders(len(ids)) + `)`
	args := []any{string(category)}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id     string
			price  float64
			change sql.NullFloat64
			quote  prices.Quote
		)
		if err := rows.Scan(&id, &price, &change, &quote.Unit, &quote.Source); err != nil {
			return nil, err
		}
		quote.Price = price
		if change.Valid {
			quote.Change24h = prices.Float(change.Float64)
		}
		quote.Stale = true
		out[id] = quote
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// RecordSnapshot keeps a one-line audit row per aggregated snapshot.
func (d *DB) RecordSnapshot(ctx context.Context, s prices.Snapshot) error {
	failed := make([]string, 0, len(s.Failures))
	for c := range s.Failures {
		failed = append(failed, string(c))
	}
	sort.Strings(failed)
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO snapshots(id,created_at,categories,failures) VALUES(?,?,?,?)`,
		s.ID, s.CreatedAt.Unix(), len(s.Groups), strings.Join(failed, ","))
	return err
}

// CountSnapshots returns how many snapshots were recorded since t.
func (d *DB) CountSnapshots(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE created_at >= ?`, since.Unix()).Scan(&n)
	return n, err
}
