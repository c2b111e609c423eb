// Package store persists records, their current field values and the
// history of field changes in a SQL database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "modernc.org/sqlite"             // sqlite driver
)

// Driver selects the SQL backend.
type Driver string

// Supported drivers.
const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver validates a driver name.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case DriverSQLite, DriverPostgres:
		return d, nil
	case "":
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("unknown store driver %q (want sqlite or postgres)", s)
}

func (d Driver) sqlDriver() string {
	if d == DriverPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Driver) gooseDialect() string {
	if d == DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Record is a stored record with its current field values.
type Record struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Fields    map[string]any `json:"data"`
}

// Change is one entry of a record's field history.
type Change struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"record_id"`
	FieldKey  string    `json:"field_key"`
	Value     any       `json:"value"`
	ChangedAt time.Time `json:"changed_at"`
}

// Store is a SQL-backed record store.
type Store struct {
	db     *sql.DB
	driver Driver
	now    func() time.Time
}

// Open connects to the database and pings it. For sqlite the parent
// directory of a file DSN is created.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	if driver == DriverSQLite {
		if dsn == "" {
			dsn = ":memory:"
		}
		if !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = withSQLitePragmas(dsn)
	}

	db, err := sql.Open(driver.sqlDriver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection keeps :memory: databases shared and avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	return NewWithDB(db, driver), nil
}

func withSQLitePragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// NewWithDB wraps an existing connection.
func NewWithDB(db *sql.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CreateRecord inserts an empty record.
func (s *Store) CreateRecord(ctx context.Context) (*Record, error) {
	now := s.now()
	rec := &Record{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now, Fields: map[string]any{}}

	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO records (id, created_at, updated_at) VALUES (?, ?, ?)`),
		rec.ID, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}
	return rec, nil
}

// GetRecord loads a record and its current field values.
func (s *Store) GetRecord(ctx context.Context, id string) (*Record, error) {
	rec := &Record{Fields: map[string]any{}}
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, created_at, updated_at FROM records WHERE id = ?`), id,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT field_key, value_json FROM record_fields WHERE record_id = ?`), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get record fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan record field: %w", err)
		}
		value, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		rec.Fields[key] = value
	}
	return rec, rows.Err()
}

// SaveFields upserts field values and appends one history entry per field,
// in a single transaction.
func (s *Store) SaveFields(ctx context.Context, id string, values map[string]any) (err error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE records SET updated_at = ? WHERE id = ?`), now, id)
	if err != nil {
		return fmt.Errorf("failed to touch record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw, err := json.Marshal(values[key])
		if err != nil {
			return fmt.Errorf("failed to encode field %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO record_fields (record_id, field_key, value_json, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (record_id, field_key)
			DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`),
			id, key, string(raw), now,
		); err != nil {
			return fmt.Errorf("failed to save field %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO field_changes (id, record_id, field_key, value_json, changed_at)
			VALUES (?, ?, ?, ?, ?)`),
			uuid.NewString(), id, key, string(raw), now,
		); err != nil {
			return fmt.Errorf("failed to record change of %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// History returns a record's field changes, oldest first. An empty fieldKey
// returns changes of every field; limit <= 0 means no limit.
func (s *Store) History(ctx context.Context, id, fieldKey string, limit int) ([]Change, error) {
	query := `SELECT id, record_id, field_key, value_json, changed_at FROM field_changes WHERE record_id = ?`
	args := []any{id}
	if fieldKey != "" {
		query += ` AND field_key = ?`
		args = append(args, fieldKey)
	}
	query += ` ORDER BY changed_at, field_key`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var c Change
		var raw string
		if err := rows.Scan(&c.ID, &c.RecordID, &c.FieldKey, &raw, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		if c.Value, err = decodeValue(raw); err != nil {
			return nil, fmt.Errorf("change %s: %w", c.ID, err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func decodeValue(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return v, nil
}
