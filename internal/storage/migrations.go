package storage

import (
	"database/sql"
	"fmt"

	"github.com/martinsuchenak/invd/internal/log"
)

// migration is one forward-only schema change
type migration struct {
	version    int
	name       string
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "objects",
		statements: []string{
			`CREATE TABLE objects (
				id TEXT PRIMARY KEY,
				class_name TEXT NOT NULL,
				name TEXT NOT NULL,
				parent_id TEXT REFERENCES objects(id) ON DELETE CASCADE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_objects_parent ON objects(parent_id)`,
			`CREATE INDEX idx_objects_class ON objects(class_name)`,
			`CREATE INDEX idx_objects_name ON objects(name)`,
			`CREATE TABLE object_attributes (
				object_id TEXT NOT NULL REFERENCES objects(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				value TEXT NOT NULL,
				PRIMARY KEY (object_id, name)
			)`,
			`CREATE INDEX idx_object_attributes_name ON object_attributes(name, value)`,
		},
	},
	{
		version: 2,
		name:    "special_relationships",
		statements: []string{
			`CREATE TABLE special_relationships (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				source_id TEXT NOT NULL REFERENCES objects(id) ON DELETE CASCADE,
				target_id TEXT NOT NULL REFERENCES objects(id) ON DELETE CASCADE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_special_relationships_source ON special_relationships(source_id, name)`,
			`CREATE INDEX idx_special_relationships_target ON special_relationships(target_id, name)`,
			`CREATE TABLE relationship_properties (
				relationship_id TEXT NOT NULL REFERENCES special_relationships(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				value TEXT NOT NULL,
				PRIMARY KEY (relationship_id, name)
			)`,
		},
	},
	{
		version: 3,
		name:    "list_types",
		statements: []string{
			`CREATE TABLE list_type_items (
				id TEXT PRIMARY KEY,
				class_name TEXT NOT NULL,
				name TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (class_name, name)
			)`,
		},
	},
	{
		version: 4,
		name:    "sync_runs",
		statements: []string{
			`CREATE TABLE sync_runs (
				id TEXT PRIMARY KEY,
				device_id TEXT NOT NULL,
				source TEXT NOT NULL,
				started_at TIMESTAMP NOT NULL,
				finished_at TIMESTAMP NOT NULL,
				error TEXT,
				successes INTEGER NOT NULL DEFAULT 0,
				warnings INTEGER NOT NULL DEFAULT 0,
				errors INTEGER NOT NULL DEFAULT 0,
				results TEXT
			)`,
			`CREATE INDEX idx_sync_runs_device ON sync_runs(device_id, started_at)`,
		},
	},
}

// currentVersion returns the highest applied migration, 0 for a new database
func (ss *SQLiteStorage) currentVersion() (int, error) {
	var version sql.NullInt64
	err := ss.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("checking migration version: %w", err)
	}
	return int(version.Int64), nil
}

// migrate applies every migration newer than the database, each in its own
// transaction.
func (ss *SQLiteStorage) migrate() error {
	version, err := ss.currentVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := ss.apply(m); err != nil {
			return err
		}
		log.Info("Applied schema migration", "version", m.version, "name", m.name)
	}
	return nil
}

func (ss *SQLiteStorage) apply(m migration) error {
	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		return fmt.Errorf("recording migration %d: %w", m.version, err)
	}

	return tx.Commit()
}
