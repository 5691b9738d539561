package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// SaveRule inserts or replaces a rule definition.
func (s *SQLiteStore) SaveRule(ctx context.Context, r *StoredRule) error {
	query := `
		INSERT INTO rules (uid, name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			name = excluded.name,
			document = excluded.document,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := s.db.ExecContext(ctx, query,
		r.UID,
		r.Name,
		r.Document,
		createdAt,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	return nil
}

// GetRule retrieves a rule definition by UID
func (s *SQLiteStore) GetRule(ctx context.Context, uid string) (*StoredRule, error) {
	query := `
		SELECT uid, name, document, created_at, updated_at
		FROM rules
		WHERE uid = ?
	`

	r := &StoredRule{}
	err := s.db.QueryRowContext(ctx, query, uid).Scan(
		&r.UID,
		&r.Name,
		&r.Document,
		&r.CreatedAt,
		&r.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule not found: %s", uid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return r, nil
}

// ListRules lists rule definitions with pagination. A non-positive
// limit returns everything.
func (s *SQLiteStore) ListRules(ctx context.Context, limit, offset int) ([]*StoredRule, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT uid, name, document, created_at, updated_at
		FROM rules
		ORDER BY uid
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := []*StoredRule{}
	for rows.Next() {
		r := &StoredRule{}
		err := rows.Scan(
			&r.UID,
			&r.Name,
			&r.Document,
			&r.CreatedAt,
			&r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// DeleteRule deletes a rule definition by UID
func (s *SQLiteStore) DeleteRule(ctx context.Context, uid string) error {
	query := `DELETE FROM rules WHERE uid = ?`

	result, err := s.db.ExecContext(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("rule not found: %s", uid)
	}

	return nil
}

// SaveTemplate inserts or replaces a template definition.
func (s *SQLiteStore) SaveTemplate(ctx context.Context, t *StoredTemplate) error {
	query := `
		INSERT INTO templates (uid, name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			name = excluded.name,
			document = excluded.document,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := s.db.ExecContext(ctx, query,
		t.UID,
		t.Name,
		t.Document,
		createdAt,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	return nil
}

// GetTemplate retrieves a template definition by UID
func (s *SQLiteStore) GetTemplate(ctx context.Context, uid string) (*StoredTemplate, error) {
	query := `
		SELECT uid, name, document, created_at, updated_at
		FROM templates
		WHERE uid = ?
	`

	t := &StoredTemplate{}
	err := s.db.QueryRowContext(ctx, query, uid).Scan(
		&t.UID,
		&t.Name,
		&t.Document,
		&t.CreatedAt,
		&t.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template not found: %s", uid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return t, nil
}

// ListTemplates lists template definitions with pagination. A
// non-positive limit returns everything.
func (s *SQLiteStore) ListTemplates(ctx context.Context, limit, offset int) ([]*StoredTemplate, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT uid, name, document, created_at, updated_at
		FROM templates
		ORDER BY uid
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []*StoredTemplate{}
	for rows.Next() {
		t := &StoredTemplate{}
		err := rows.Scan(
			&t.UID,
			&t.Name,
			&t.Document,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

// DeleteTemplate deletes a template definition by UID
func (s *SQLiteStore) DeleteTemplate(ctx context.Context, uid string) error {
	query := `DELETE FROM templates WHERE uid = ?`

	result, err := s.db.ExecContext(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("template not found: %s", uid)
	}

	return nil
}

// SetDisabled records or clears a rule's disabled flag. Clearing the
// flag deletes the row so the table only holds disabled rules.
func (s *SQLiteStore) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	if !disabled {
		_, err := s.db.ExecContext(ctx, `DELETE FROM disabled_rules WHERE uid = ?`, uid)
		if err != nil {
			return fmt.Errorf("failed to clear disabled flag: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO disabled_rules (uid, disabled_at)
		VALUES (?, ?)
		ON CONFLICT(uid) DO UPDATE SET disabled_at = excluded.disabled_at
	`
	_, err := s.db.ExecContext(ctx, query, uid, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set disabled flag: %w", err)
	}
	return nil
}

// IsDisabled reports whether a rule is marked disabled
func (s *SQLiteStore) IsDisabled(ctx context.Context, uid string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM disabled_rules WHERE uid = ?`, uid).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query disabled flag: %w", err)
	}
	return true, nil
}

// ListDisabled returns the UIDs of all disabled rules
func (s *SQLiteStore) ListDisabled(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uid FROM disabled_rules ORDER BY uid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list disabled rules: %w", err)
	}
	defer rows.Close()

	uids := []string{}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan disabled rule: %w", err)
		}
		uids = append(uids, uid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating disabled rules: %w", err)
	}

	return uids, nil
}

// HealthCheck verifies the database connection
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// RuleDisabler adapts a Store to the engine's disabled-store contract.
type RuleDisabler struct {
	store Store
}

// NewRuleDisabler wraps a store for use as the engine's disabled store.
func NewRuleDisabler(store Store) *RuleDisabler {
	return &RuleDisabler{store: store}
}

// IsDisabled reports whether the rule was persisted as disabled.
func (d *RuleDisabler) IsDisabled(uid string) (bool, error) {
	return d.store.IsDisabled(context.Background(), uid)
}

// SetDisabled persists or clears the disabled flag.
func (d *RuleDisabler) SetDisabled(uid string, disabled bool) error {
	return d.store.SetDisabled(context.Background(), uid, disabled)
}
