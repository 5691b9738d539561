package stores

import (
	"context"
	"database/sql"
	"time"
)

// StoredRule is a persisted rule definition. The dynamic parts of the
// rule live in Document, a JSON serialization of rule.Document; the
// remaining columns exist for listing and lookup without decoding.
type StoredRule struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Document  string    `json:"document"` // JSON blob
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredTemplate is a persisted rule template definition.
type StoredTemplate struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Document  string    `json:"document"` // JSON blob
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Rule operations
	SaveRule(ctx context.Context, r *StoredRule) error
	GetRule(ctx context.Context, uid string) (*StoredRule, error)
	ListRules(ctx context.Context, limit, offset int) ([]*StoredRule, error)
	DeleteRule(ctx context.Context, uid string) error

	// Template operations
	SaveTemplate(ctx context.Context, t *StoredTemplate) error
	GetTemplate(ctx context.Context, uid string) (*StoredTemplate, error)
	ListTemplates(ctx context.Context, limit, offset int) ([]*StoredTemplate, error)
	DeleteTemplate(ctx context.Context, uid string) error

	// Disabled-flag operations
	SetDisabled(ctx context.Context, uid string, disabled bool) error
	IsDisabled(ctx context.Context, uid string) (bool, error)
	ListDisabled(ctx context.Context) ([]string, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
