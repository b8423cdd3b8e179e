package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite keeps each destination in its own table of JSON-encoded rows.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file at path. ":memory:" gives
// a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" a single database and serialises
	// writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLite) Ensure(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+quoteIdent(name)+` (
		ordinal INTEGER PRIMARY KEY AUTOINCREMENT,
		cells   TEXT NOT NULL
	)`)
	return err
}

func (s *SQLite) Clear(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+quoteIdent(name))
	return err
}

func (s *SQLite) Append(ctx context.Context, name string, rows [][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+quoteIdent(name)+` (cells) VALUES (?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		cells, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, string(cells)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) Rows(ctx context.Context, name string) ([][]string, error) {
	rs, err := s.db.QueryContext(ctx, `SELECT cells FROM `+quoteIdent(name)+` ORDER BY ordinal`)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out [][]string
	for rs.Next() {
		var raw string
		if err := rs.Scan(&raw); err != nil {
			return nil, err
		}
		var row []string
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rs.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
