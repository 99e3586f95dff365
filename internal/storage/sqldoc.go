package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/global-data-controller/countryseed/internal/models"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	backend string
	driver  string
	docType string
	bind    func(n int) string
}

var (
	postgresDialect = dialect{
		backend: BackendPostgres,
		driver:  "pgx",
		docType: "JSONB",
		bind:    func(n int) string { return fmt.Sprintf("$%d", n) },
	}
	sqliteDialect = dialect{
		backend: BackendSQLite,
		driver:  "sqlite",
		docType: "TEXT",
		bind:    func(int) string { return "?" },
	}
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore keeps one JSON document per row next to the columns used for
// filtering and ordering.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	table   string
}

func openSQL(ctx context.Context, d dialect, dsn, table string) (*SQLStore, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid collection name %q", table)
	}
	if d.backend == BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	openMu.Lock()
	db, err := sqlOpen(d.driver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.backend, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.backend, err)
	}

	s := &SQLStore{db: db, dialect: d, table: table}
	if err := s.ensureTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		iso2 TEXT PRIMARY KEY,
		iso3 TEXT NOT NULL,
		middle_eastern BOOLEAN NOT NULL,
		seq INTEGER NOT NULL,
		doc %s NOT NULL
	)`, s.table, s.dialect.docType)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure %s table: %w", s.table, err)
	}
	return nil
}

// Backend implements Store
func (s *SQLStore) Backend() string { return s.dialect.backend }

// Clear implements Store
func (s *SQLStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", s.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// InsertMany implements Store. All rows are written in one transaction.
func (s *SQLStore) InsertMany(ctx context.Context, records []models.Country) (n int, retErr error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	b := s.dialect.bind
	query := fmt.Sprintf(`INSERT INTO %s (iso2, iso3, middle_eastern, seq, doc) VALUES (%s, %s, %s, %s, %s)`,
		s.table, b(1), b(2), b(3), b(4), b(5))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, record := range records {
		doc, err := json.Marshal(record)
		if err != nil {
			return 0, fmt.Errorf("encode %s: %w", record.ISO2, err)
		}
		if _, err := stmt.ExecContext(ctx, record.ISO2, record.ISO3, record.MiddleEastern, i, string(doc)); err != nil {
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("insert %s: %w: %v", record.ISO2, ErrDuplicateKey, err)
			}
			return 0, fmt.Errorf("insert %s: %w", record.ISO2, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(records), nil
}

// SampleMiddleEastern implements Store
func (s *SQLStore) SampleMiddleEastern(ctx context.Context, limit int) ([]models.Country, error) {
	b := s.dialect.bind
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE middle_eastern = %s ORDER BY seq LIMIT %s`, s.table, b(1), b(2))
	rows, err := s.db.QueryContext(ctx, query, true, limit)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.table, err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.Country{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		var country models.Country
		if err := json.Unmarshal([]byte(doc), &country); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, country)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.table, err)
	}
	return out, nil
}

// Count implements Store
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return n, nil
}

// Close implements Store
func (s *SQLStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}

func sqlitePath(uri string) string {
	_, path, _ := strings.Cut(uri, "://")
	return path
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
