// Package stores provides persistence layer implementations for RuleKit.
// It includes SQLite-based storage with WAL mode, connection pooling,
// and CRUD operations for rule definitions, rule templates and
// persisted disabled flags.
package stores
