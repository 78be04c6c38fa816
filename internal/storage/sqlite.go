package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "alertbot/pkg/logx"
)

//go:embed schema.sql
var schemaFS embed.FS

type sqliteRegistry struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Registry, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteRegistry{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite registry opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteRegistry) migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteRegistry) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteRegistry) GetOrCreate(ctx context.Context, id int64) (Subscription, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id) VALUES(?) ON CONFLICT(user_id) DO NOTHING`, id,
	); err != nil {
		return Subscription{}, err
	}

	var (
		region  sql.NullInt64
		enabled int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT region_index, notifications_enabled FROM users WHERE user_id = ?`, id,
	).Scan(&region, &enabled)
	if err != nil {
		return Subscription{}, err
	}

	sub := Subscription{SubscriberID: id, NotificationsEnabled: enabled != 0}
	if region.Valid {
		idx := int(region.Int64)
		sub.FeedIndex = &idx
	}
	return sub, nil
}

func (s *sqliteRegistry) SetRegion(ctx context.Context, id int64, feedIndex int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, region_index) VALUES(?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET region_index = excluded.region_index`,
		id, feedIndex,
	)
	return err
}

func (s *sqliteRegistry) ToggleNotifications(ctx context.Context, id int64) (bool, error) {
	var enabled int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users(user_id) VALUES(?)
		 ON CONFLICT(user_id) DO UPDATE SET notifications_enabled = 1 - notifications_enabled
		 RETURNING notifications_enabled`,
		id,
	).Scan(&enabled)
	if err != nil {
		return false, err
	}
	return enabled != 0, nil
}

func (s *sqliteRegistry) ListEnabledSubscribers(ctx context.Context, feedIndex int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM users
		 WHERE region_index = ? AND notifications_enabled = 1
		 ORDER BY user_id`,
		feedIndex,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *sqliteRegistry) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(notifications_enabled), 0),
		        COUNT(region_index)
		 FROM users`,
	).Scan(&st.Subscribers, &st.Enabled, &st.WithRegion)
	return st, err
}

// Maintain refreshes planner statistics and checkpoints the WAL.
func (s *sqliteRegistry) Maintain(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}
