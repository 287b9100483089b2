package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/jonboulle/clockwork"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/schema"
	_ "modernc.org/sqlite" // SQLite driver
)

// kvTable is the name of the table holding every persisted key.
const kvTable = "kv_store"

// SQLStore handles durable key-value storage using various database backends.
type SQLStore struct {
	db        *sql.DB
	tableName string
	backend   schema.DatabaseBackend
	connStr   string
	clock     clockwork.Clock
}

var _ contract.PersistentStore = &SQLStore{} // Compile-time check

// NewSQLStore opens the database, applies pending migrations and returns the store.
func NewSQLStore(backend schema.DatabaseBackend, connStr string, opts Options) (*SQLStore, error) {
	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}

	if _, err := migrateDB(db, backend, -1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare %s table: %w", kvTable, err)
	}

	return &SQLStore{
		db:        db,
		tableName: kvTable,
		backend:   backend,
		connStr:   connStr,
		clock:     opts.clock(),
	}, nil
}

// openDB opens and pings a connection for the given backend.
func openDB(backend schema.DatabaseBackend, connStr string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetStoreDBFilePath()
		}
		db, err = sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store at %q: %w. Ensure the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		db, err = sql.Open("mysql", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL store: %w. Check connection format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		// connStr should be:
		// host=localhost port=5432 user=postgres password=mysecretpassword dbname=postgres
		db, err = sql.Open("pgx", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL store: %w. Check connection format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	default:
		return nil, fmt.Errorf("unsupported SQL backend: %s", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}
	return db, nil
}

// quoteTableName returns the properly quoted table name for the given backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("`%s`", name)
	default: // SQLite and PostgreSQL
		return fmt.Sprintf("\"%s\"", name)
	}
}

// Get retrieves a value by key from the store.
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT kv_value FROM %s WHERE kv_key = %s`, quoteTableName(s.tableName, s.backend), s.placeholder(1))

	var value string
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces a key/value pair in the store.
func (s *SQLStore) Set(ctx context.Context, key string, value string) error {
	if _, err := s.db.ExecContext(ctx, s.upsertQuery(), key, value, s.clock.Now().UnixMilli()); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Remove deletes a key from the store.
func (s *SQLStore) Remove(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE kv_key = %s`, quoteTableName(s.tableName, s.backend), s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// placeholder returns the n-th parameter placeholder for the backend.
func (s *SQLStore) placeholder(n int) string {
	if s.backend == schema.PostgreSQLBackend {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// upsertQuery returns the UPSERT query for the backend.
func (s *SQLStore) upsertQuery() string {
	quotedTableName := quoteTableName(s.tableName, s.backend)
	switch s.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (kv_key, kv_value, kv_updated) VALUES (?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE kv_value = new.kv_value, kv_updated = new.kv_updated`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (kv_key, kv_value, kv_updated) VALUES ($1, $2, $3)
			ON CONFLICT (kv_key) DO UPDATE SET kv_value = EXCLUDED.kv_value, kv_updated = EXCLUDED.kv_updated`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (kv_key, kv_value, kv_updated) VALUES (?, ?, ?)`, quotedTableName)
	}
}

// Close closes the underlying DB connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetStatus returns status information about the store.
func (s *SQLStore) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:   string(s.backend),
		Connected: s.db != nil,
	}
	if s.db == nil {
		return status, nil
	}

	quotedTableName := quoteTableName(s.tableName, s.backend)

	var lastMs, oldestMs int64
	query := fmt.Sprintf("SELECT COUNT(*), COALESCE(MAX(kv_updated), 0), COALESCE(MIN(kv_updated), 0) FROM %s", quotedTableName)
	if err := s.db.QueryRow(query).Scan(&status.TotalKeys, &lastMs, &oldestMs); err != nil {
		return status, fmt.Errorf("failed to get total keys: %w", err)
	}
	if status.TotalKeys == 0 {
		return status, nil
	}
	status.LastWriteTime = time.UnixMilli(lastMs)
	status.OldestWriteTime = time.UnixMilli(oldestMs)

	// Table size comes from backend-specific catalogs, with a rough estimate as fallback
	fallback := func() { status.TotalBytes = int64(status.TotalKeys) * 1000 }
	switch s.backend {
	case schema.SQLiteBackend:
		sizeQuery := "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()"
		if err := s.db.QueryRow(sizeQuery).Scan(&status.TotalBytes); err != nil {
			fallback()
		}
	case schema.MySQLBackend:
		cfg, err := mysql.ParseDSN(s.connStr)
		if err != nil || cfg.DBName == "" {
			fallback()
			break
		}
		sizeQuery := "SELECT data_length + index_length FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"
		if err := s.db.QueryRow(sizeQuery, cfg.DBName, s.tableName).Scan(&status.TotalBytes); err != nil {
			fallback()
		}
	case schema.PostgreSQLBackend:
		if err := s.db.QueryRow("SELECT pg_total_relation_size($1)", s.tableName).Scan(&status.TotalBytes); err != nil {
			fallback()
		}
	}

	return status, nil
}
