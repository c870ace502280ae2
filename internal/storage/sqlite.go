package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/martinsuchenak/invd/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// SQLiteStorage implements Storage with SQLite backend
type SQLiteStorage struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite-based storage
func NewSQLiteStorage(dataDir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "inventory.db")

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// single writer; every helper below must close its rows before the next query
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ss := &SQLiteStorage{
		db:   db,
		path: dbPath,
	}

	if err := ss.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if err := ss.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return ss, nil
}

func (ss *SQLiteStorage) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	_, err = ss.db.Exec(string(schema))
	return err
}

// Path returns the database file location
func (ss *SQLiteStorage) Path() string {
	return ss.path
}

// Close closes the database connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateObject inserts obj, assigning an ID when it has none
func (ss *SQLiteStorage) CreateObject(obj *model.BusinessObject) error {
	if obj.ClassName == "" {
		return fmt.Errorf("creating object: class name is required")
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	if obj.ID == "" {
		obj.ID = newID()
	}
	attrs := make(map[string]string, len(obj.Attributes))
	for name, value := range obj.Attributes {
		if name == model.AttrName {
			if obj.Name == "" {
				obj.Name = value
			}
			continue
		}
		attrs[name] = value
	}
	now := time.Now().UTC()
	obj.CreatedAt = now
	obj.UpdatedAt = now

	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if obj.ParentID != "" {
		if exists, err := objectExists(tx, obj.ParentID); err != nil {
			return err
		} else if !exists {
			return fmt.Errorf("%w: parent %s not found", ErrObjectNotFound, obj.ParentID)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO objects (id, class_name, name, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, obj.ID, obj.ClassName, obj.Name, nullable(obj.ParentID), obj.CreatedAt, obj.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting object: %w", err)
	}

	if err := insertAttributes(tx, obj.ID, attrs); err != nil {
		return err
	}

	return tx.Commit()
}

func objectExists(q querier, id string) (bool, error) {
	var n int
	if err := q.QueryRow("SELECT COUNT(*) FROM objects WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("checking object: %w", err)
	}
	return n > 0, nil
}

func insertAttributes(tx *sql.Tx, objectID string, attrs map[string]string) error {
	for name, value := range attrs {
		if value == "" {
			continue
		}
		_, err := tx.Exec(`
			INSERT INTO object_attributes (object_id, name, value) VALUES (?, ?, ?)
			ON CONFLICT (object_id, name) DO UPDATE SET value = excluded.value
		`, objectID, name, value)
		if err != nil {
			return fmt.Errorf("inserting attribute %s: %w", name, err)
		}
	}
	return nil
}

// GetObject retrieves an object with its attributes
func (ss *SQLiteStorage) GetObject(id string) (*model.BusinessObject, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	return getObject(ss.db, id)
}

func getObject(q querier, id string) (*model.BusinessObject, error) {
	objects, err := queryObjects(q, `
		SELECT id, class_name, name, parent_id, created_at, updated_at
		FROM objects WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	return &objects[0], nil
}

// queryObjects runs query and loads the attributes of every returned object.
// Rows are drained before the attribute query runs.
func queryObjects(q querier, query string, args ...any) ([]model.BusinessObject, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying objects: %w", err)
	}

	var objects []model.BusinessObject
	for rows.Next() {
		var obj model.BusinessObject
		var parent sql.NullString
		if err := rows.Scan(&obj.ID, &obj.ClassName, &obj.Name, &parent, &obj.CreatedAt, &obj.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning object: %w", err)
		}
		obj.ParentID = parent.String
		objects = append(objects, obj)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating objects: %w", err)
	}

	if err := loadAttributes(q, objects); err != nil {
		return nil, err
	}
	return objects, nil
}

func loadAttributes(q querier, objects []model.BusinessObject) error {
	if len(objects) == 0 {
		return nil
	}

	index := make(map[string]int, len(objects))
	ids := make([]any, 0, len(objects))
	for i := range objects {
		index[objects[i].ID] = i
		ids = append(ids, objects[i].ID)
	}

	// SQLite caps bound parameters, so large lists go in chunks
	const chunk = 500
	for start := 0; start < len(ids); start += chunk {
		end := min(start+chunk, len(ids))
		part := ids[start:end]
		query := "SELECT object_id, name, value FROM object_attributes WHERE object_id IN (?" +
			strings.Repeat(",?", len(part)-1) + ")"
		rows, err := q.Query(query, part...)
		if err != nil {
			return fmt.Errorf("querying attributes: %w", err)
		}
		for rows.Next() {
			var objectID, name, value string
			if err := rows.Scan(&objectID, &name, &value); err != nil {
				rows.Close()
				return fmt.Errorf("scanning attribute: %w", err)
			}
			obj := &objects[index[objectID]]
			if obj.Attributes == nil {
				obj.Attributes = map[string]string{}
			}
			obj.Attributes[name] = value
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("iterating attributes: %w", err)
		}
	}
	return nil
}

// UpdateObject sets attributes on an object. The "name" key renames the
// object and an empty value removes the attribute.
func (ss *SQLiteStorage) UpdateObject(id string, attributes map[string]string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.Exec("UPDATE objects SET updated_at = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("updating object: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}

	set := map[string]string{}
	for name, value := range attributes {
		switch {
		case name == model.AttrName:
			if value == "" {
				return fmt.Errorf("updating object: name cannot be empty")
			}
			if _, err := tx.Exec("UPDATE objects SET name = ? WHERE id = ?", value, id); err != nil {
				return fmt.Errorf("renaming object: %w", err)
			}
		case value == "":
			if _, err := tx.Exec("DELETE FROM object_attributes WHERE object_id = ? AND name = ?", id, name); err != nil {
				return fmt.Errorf("removing attribute %s: %w", name, err)
			}
		default:
			set[name] = value
		}
	}
	if err := insertAttributes(tx, id, set); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteObject removes an object and its whole containment subtree. Unless
// force is set, the delete fails when any object of the subtree takes part
// in a special relationship.
func (ss *SQLiteStorage) DeleteObject(id string, force bool) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if exists, err := objectExists(tx, id); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}

	if !force {
		var n int
		err := tx.QueryRow(`
			WITH RECURSIVE subtree(id) AS (
				SELECT ?
				UNION ALL
				SELECT o.id FROM objects o JOIN subtree s ON o.parent_id = s.id
			)
			SELECT COUNT(*) FROM special_relationships
			WHERE source_id IN (SELECT id FROM subtree) OR target_id IN (SELECT id FROM subtree)
		`, id).Scan(&n)
		if err != nil {
			return fmt.Errorf("checking relationships: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %s (or one of its children) has %d", ErrObjectHasRelationships, id, n)
		}
	}

	// children and relationships go through ON DELETE CASCADE
	if _, err := tx.Exec("DELETE FROM objects WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}

	return tx.Commit()
}

// ListObjects returns objects matching filter ordered by name
func (ss *SQLiteStorage) ListObjects(filter *model.ObjectFilter) ([]model.BusinessObject, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	query := "SELECT o.id, o.class_name, o.name, o.parent_id, o.created_at, o.updated_at FROM objects o"
	var where []string
	var args []any
	if filter != nil {
		if filter.ClassName != "" {
			where = append(where, "o.class_name = ?")
			args = append(args, filter.ClassName)
		}
		if filter.ParentID != "" {
			where = append(where, "o.parent_id = ?")
			args = append(args, filter.ParentID)
		}
		if filter.Name != "" {
			where = append(where, "LOWER(o.name) LIKE ?")
			args = append(args, "%"+strings.ToLower(filter.Name)+"%")
		}
		if filter.AttributeName != "" {
			where = append(where, "EXISTS (SELECT 1 FROM object_attributes a WHERE a.object_id = o.id AND a.name = ? AND (? = '' OR a.value = ?))")
			args = append(args, filter.AttributeName, filter.AttributeValue, filter.AttributeValue)
		}
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY o.name, o.id"

	return queryObjects(ss.db, query, args...)
}

// GetChildren returns the direct children of an object
func (ss *SQLiteStorage) GetChildren(id string) ([]model.BusinessObject, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	if exists, err := objectExists(ss.db, id); err != nil {
		return nil, err
	} else if !exists {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}

	return queryObjects(ss.db, `
		SELECT id, class_name, name, parent_id, created_at, updated_at
		FROM objects WHERE parent_id = ?
		ORDER BY name, id
	`, id)
}

// GetParents returns the ancestors of an object, nearest first
func (ss *SQLiteStorage) GetParents(id string) ([]model.BusinessObject, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	obj, err := getObject(ss.db, id)
	if err != nil {
		return nil, err
	}

	var parents []model.BusinessObject
	seen := map[string]bool{obj.ID: true}
	for parentID := obj.ParentID; parentID != "" && !seen[parentID]; {
		seen[parentID] = true
		parent, err := getObject(ss.db, parentID)
		if err != nil {
			return nil, err
		}
		parents = append(parents, *parent)
		parentID = parent.ParentID
	}
	return parents, nil
}

// MoveObject places an object under a new parent. An empty parentID makes it
// a root. Moving an object below itself is rejected.
func (ss *SQLiteStorage) MoveObject(id, parentID string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if exists, err := objectExists(tx, id); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}

	if parentID != "" {
		if exists, err := objectExists(tx, parentID); err != nil {
			return err
		} else if !exists {
			return fmt.Errorf("%w: parent %s not found", ErrObjectNotFound, parentID)
		}

		var n int
		err := tx.QueryRow(`
			WITH RECURSIVE subtree(id) AS (
				SELECT ?
				UNION ALL
				SELECT o.id FROM objects o JOIN subtree s ON o.parent_id = s.id
			)
			SELECT COUNT(*) FROM subtree WHERE id = ?
		`, id, parentID).Scan(&n)
		if err != nil {
			return fmt.Errorf("checking move: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %s cannot be moved below itself", ErrInvalidParent, id)
		}
	}

	_, err = tx.Exec("UPDATE objects SET parent_id = ?, updated_at = ? WHERE id = ?",
		nullable(parentID), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("moving object: %w", err)
	}

	return tx.Commit()
}

// IsNotFound reports whether err is one of the not-found sentinels
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound) ||
		errors.Is(err, ErrRelationshipNotFound) ||
		errors.Is(err, ErrSyncRunNotFound)
}

func sortRoutes(routes []model.Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		return len(routes[i].Hops) < len(routes[j].Hops)
	})
}
