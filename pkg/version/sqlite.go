package version

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"

	_ "modernc.org/sqlite"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore keeps heads in a one-column table.
type SQLStore struct {
	db    *sql.DB
	table string
}

func openSQLite(ctx context.Context, u *url.URL) (*SQLStore, error) {
	table := u.Query().Get("table")
	if table == "" {
		table = DefaultTable
	}
	dsn := pathOf(u) + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLStore(ctx, db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore uses db, creating table if it does not exist.
func NewSQLStore(ctx context.Context, db *sql.DB, table string) (*SQLStore, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version_num VARCHAR(32) NOT NULL PRIMARY KEY,
		seq INTEGER NOT NULL
	)`, table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	return &SQLStore{db: db, table: table}, nil
}

// Heads returns the stored heads in insertion order.
func (s *SQLStore) Heads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT version_num FROM %s ORDER BY seq", s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var raw []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		raw = append(raw, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return coerce(raw)
}

func (s *SQLStore) Insert(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE version_num = ?", s.table), id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return duplicateError(id)
	}
	q := fmt.Sprintf("INSERT INTO %s (version_num, seq) SELECT ?, COALESCE(MAX(seq), 0) + 1 FROM %s", s.table, s.table)
	if _, err := tx.ExecContext(ctx, q, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE version_num = ?", s.table), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return rowCountError("deleting", id, n)
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, from, to string) error {
	if from != to {
		var n int
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE version_num = ?", s.table), to).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return duplicateError(to)
		}
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET version_num = ? WHERE version_num = ?", s.table), to, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return rowCountError("updating", from, n)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
