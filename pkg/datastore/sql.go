package datastore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/LaTsa99/LaTsaServer/pkg/model"
)

// SQL is the SQLite-backed Store implementation.
type SQL struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database and runs migrations.
func New(dbPath string) (*SQL, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore: open DB: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set busy_timeout: %w", err)
	}

	s := &SQL{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		username        TEXT    PRIMARY KEY CHECK(length(username) > 0 AND length(username) <= 32),
		credential_hash TEXT    NOT NULL,
		is_admin        INTEGER NOT NULL DEFAULT 0,
		is_banned       INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS history (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		line TEXT    NOT NULL
	);

	CREATE TABLE IF NOT EXISTS blacklist (
		ip TEXT PRIMARY KEY
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version:    1,
			statements: []string{schema},
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("datastore: migrate: %w", err)
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQL) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("datastore: create schema_migrations: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("datastore: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("datastore: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *SQL) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("datastore: read schema version: %w", err)
	}
	return version, nil
}

func (s *SQL) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("datastore: update schema version: %w", err)
	}
	return nil
}

// ---- Accounts ----

// LoadAccounts returns all persisted accounts in creation order.
func (s *SQL) LoadAccounts() ([]model.Account, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT username, credential_hash, is_admin, is_banned FROM accounts ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("datastore: load accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.Username, &a.CredentialHash, &a.IsAdmin, &a.IsBanned); err != nil {
			return nil, fmt.Errorf("datastore: scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("datastore: load accounts: %w", err)
	}
	return accounts, nil
}

// ReplaceAccounts atomically replaces the persisted account set.
func (s *SQL) ReplaceAccounts(accounts []model.Account) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("datastore: replace accounts: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM accounts"); err != nil {
		return fmt.Errorf("datastore: replace accounts: %w", err)
	}
	for _, a := range accounts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO accounts (username, credential_hash, is_admin, is_banned) VALUES (?, ?, ?, ?)",
			a.Username, a.CredentialHash, a.IsAdmin, a.IsBanned); err != nil {
			return fmt.Errorf("datastore: insert account: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datastore: replace accounts: %w", err)
	}
	return nil
}

// ---- History ----

// LoadHistory returns the persisted chat history in broadcast order.
func (s *SQL) LoadHistory() ([]string, error) {
	rows, err := s.db.QueryContext(context.Background(), "SELECT line FROM history ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("datastore: load history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("datastore: scan history line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("datastore: load history: %w", err)
	}
	return lines, nil
}

// ReplaceHistory atomically replaces the persisted chat history.
func (s *SQL) ReplaceHistory(lines []string) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("datastore: replace history: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return fmt.Errorf("datastore: replace history: %w", err)
	}
	for _, line := range lines {
		if _, err := tx.ExecContext(ctx, "INSERT INTO history (line) VALUES (?)", line); err != nil {
			return fmt.Errorf("datastore: insert history line: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datastore: replace history: %w", err)
	}
	return nil
}

// ---- Blacklist ----

// LoadBlacklist returns all persisted banned IP addresses.
func (s *SQL) LoadBlacklist() ([]string, error) {
	rows, err := s.db.QueryContext(context.Background(), "SELECT ip FROM blacklist ORDER BY ip")
	if err != nil {
		return nil, fmt.Errorf("datastore: load blacklist: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, fmt.Errorf("datastore: scan blacklist entry: %w", err)
		}
		ips = append(ips, ip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("datastore: load blacklist: %w", err)
	}
	return ips, nil
}

// ReplaceBlacklist atomically replaces the persisted IP blacklist.
func (s *SQL) ReplaceBlacklist(ips []string) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("datastore: replace blacklist: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM blacklist"); err != nil {
		return fmt.Errorf("datastore: replace blacklist: %w", err)
	}
	for _, ip := range ips {
		if _, err := tx.ExecContext(ctx, "INSERT INTO blacklist (ip) VALUES (?)", ip); err != nil {
			return fmt.Errorf("datastore: insert blacklist entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datastore: replace blacklist: %w", err)
	}
	return nil
}
