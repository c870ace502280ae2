package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/martinsuchenak/invd/internal/model"
)

// CreateSpecialRelationship links two existing objects with a named edge
func (ss *SQLiteStorage) CreateSpecialRelationship(rel *model.SpecialRelationship) error {
	if rel.Name == "" {
		return fmt.Errorf("creating relationship: name is required")
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range []string{rel.SourceID, rel.TargetID} {
		if exists, err := objectExists(tx, id); err != nil {
			return err
		} else if !exists {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
		}
	}

	if rel.ID == "" {
		rel.ID = newID()
	}
	rel.CreatedAt = time.Now().UTC()

	_, err = tx.Exec(`
		INSERT INTO special_relationships (id, name, source_id, target_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rel.ID, rel.Name, rel.SourceID, rel.TargetID, rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting relationship: %w", err)
	}

	for name, value := range rel.Properties {
		_, err := tx.Exec(`
			INSERT INTO relationship_properties (relationship_id, name, value) VALUES (?, ?, ?)
		`, rel.ID, name, value)
		if err != nil {
			return fmt.Errorf("inserting relationship property %s: %w", name, err)
		}
	}

	return tx.Commit()
}

// GetSpecialRelationships returns every special relationship touching an object
func (ss *SQLiteStorage) GetSpecialRelationships(objectID string) ([]model.SpecialRelationship, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, name, source_id, target_id, created_at
		FROM special_relationships
		WHERE source_id = ? OR target_id = ?
		ORDER BY rowid
	`, objectID, objectID)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}

	var rels []model.SpecialRelationship
	for rows.Next() {
		var rel model.SpecialRelationship
		if err := rows.Scan(&rel.ID, &rel.Name, &rel.SourceID, &rel.TargetID, &rel.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		rels = append(rels, rel)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating relationships: %w", err)
	}

	for i := range rels {
		props, err := loadProperties(ss.db, rels[i].ID)
		if err != nil {
			return nil, err
		}
		rels[i].Properties = props
	}
	return rels, nil
}

func loadProperties(q querier, relationshipID string) (map[string]string, error) {
	rows, err := q.Query("SELECT name, value FROM relationship_properties WHERE relationship_id = ?", relationshipID)
	if err != nil {
		return nil, fmt.Errorf("querying relationship properties: %w", err)
	}
	defer rows.Close()

	var props map[string]string
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning relationship property: %w", err)
		}
		if props == nil {
			props = map[string]string{}
		}
		props[name] = value
	}
	return props, rows.Err()
}

// edge is one special relationship seen from a given object
type edge struct {
	relationshipID string
	otherID        string
}

// edges returns the relationships named name around objectID in creation order
func edges(q querier, objectID, name string, dir model.Direction) ([]edge, error) {
	var query string
	var args []any
	switch dir {
	case model.DirectionOutgoing:
		query = "SELECT id, target_id FROM special_relationships WHERE source_id = ? AND name = ? ORDER BY rowid"
		args = []any{objectID, name}
	case model.DirectionIncoming:
		query = "SELECT id, source_id FROM special_relationships WHERE target_id = ? AND name = ? ORDER BY rowid"
		args = []any{objectID, name}
	default:
		query = `
			SELECT id, CASE WHEN source_id = ? THEN target_id ELSE source_id END
			FROM special_relationships
			WHERE (source_id = ? OR target_id = ?) AND name = ?
			ORDER BY rowid
		`
		args = []any{objectID, objectID, objectID, name}
	}

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s relationships: %w", name, err)
	}
	defer rows.Close()

	var out []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.relationshipID, &e.otherID); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetSpecialAttribute returns the objects related to objectID through the
// named relationship, following dir.
func (ss *SQLiteStorage) GetSpecialAttribute(objectID, name string, dir model.Direction) ([]model.BusinessObject, error) {
	annotated, err := ss.GetAnnotatedSpecialAttribute(objectID, name, dir)
	if err != nil {
		return nil, err
	}
	out := make([]model.BusinessObject, 0, len(annotated))
	for _, a := range annotated {
		out = append(out, a.Object)
	}
	return out, nil
}

// GetAnnotatedSpecialAttribute is GetSpecialAttribute with the properties of
// each relationship attached.
func (ss *SQLiteStorage) GetAnnotatedSpecialAttribute(objectID, name string, dir model.Direction) ([]model.AnnotatedObject, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	if exists, err := objectExists(ss.db, objectID); err != nil {
		return nil, err
	} else if !exists {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectID)
	}

	found, err := edges(ss.db, objectID, name, dir)
	if err != nil {
		return nil, err
	}

	out := make([]model.AnnotatedObject, 0, len(found))
	for _, e := range found {
		obj, err := getObject(ss.db, e.otherID)
		if err != nil {
			return nil, err
		}
		props, err := loadProperties(ss.db, e.relationshipID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.AnnotatedObject{Object: *obj, Properties: props})
	}
	return out, nil
}

// DeleteSpecialRelationship removes the named edges from source to target
func (ss *SQLiteStorage) DeleteSpecialRelationship(name, sourceID, targetID string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec(`
		DELETE FROM special_relationships WHERE name = ? AND source_id = ? AND target_id = ?
	`, name, sourceID, targetID)
	if err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: %s %s -> %s", ErrRelationshipNotFound, name, sourceID, targetID)
	}
	return nil
}

// HasSpecialRelationships reports whether an object takes part in any
// special relationship.
func (ss *SQLiteStorage) HasSpecialRelationships(objectID string) (bool, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var one int
	err := ss.db.QueryRow(`
		SELECT 1 FROM special_relationships WHERE source_id = ? OR target_id = ? LIMIT 1
	`, objectID, objectID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking relationships: %w", err)
	}
	return true, nil
}

// FindRoutesThroughSpecialRelationships lists every simple path between
// sourceID and targetID through relationships called name, ignoring their
// direction. Paths longer than maxHops edges are not explored. Routes are
// returned shortest first.
func (ss *SQLiteStorage) FindRoutesThroughSpecialRelationships(sourceID, targetID, name string, maxHops int) ([]model.Route, error) {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	ss.mu.RLock()
	defer ss.mu.RUnlock()

	for _, id := range []string{sourceID, targetID} {
		if exists, err := objectExists(ss.db, id); err != nil {
			return nil, err
		} else if !exists {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
		}
	}

	rows, err := ss.db.Query("SELECT source_id, target_id FROM special_relationships WHERE name = ? ORDER BY rowid", name)
	if err != nil {
		return nil, fmt.Errorf("querying %s relationships: %w", name, err)
	}
	adjacency := map[string][]string{}
	for rows.Next() {
		var src, dst string
		if err := rows.Scan(&src, &dst); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		adjacency[src] = append(adjacency[src], dst)
		adjacency[dst] = append(adjacency[dst], src)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating relationships: %w", err)
	}

	paths := simplePaths(adjacency, sourceID, targetID, maxHops, maxRoutes)

	cache := map[string]*model.BusinessObject{}
	routes := make([]model.Route, 0, len(paths))
	for _, path := range paths {
		route := model.Route{Hops: make([]model.BusinessObject, 0, len(path))}
		for _, id := range path {
			obj, ok := cache[id]
			if !ok {
				obj, err = getObject(ss.db, id)
				if err != nil {
					return nil, err
				}
				cache[id] = obj
			}
			route.Hops = append(route.Hops, *obj)
		}
		routes = append(routes, route)
	}
	sortRoutes(routes)
	return routes, nil
}

// simplePaths enumerates paths without repeated nodes, one hop count at a
// time, so the shortest paths are always found before the limit is reached.
// Parallel edges between the same pair of nodes yield a single path.
func simplePaths(adjacency map[string][]string, from, to string, maxHops, limit int) [][]string {
	if from == to {
		return [][]string{{from}}
	}

	var out [][]string
	visited := map[string]bool{from: true}
	path := []string{from}

	// walk collects the paths of exactly hops edges. It reports whether some
	// path reached that length without ending at to, i.e. whether a longer
	// search can still find anything.
	var walk func(node string, hops int) bool
	walk = func(node string, hops int) bool {
		if len(path)-1 == hops {
			return true
		}
		open := false
		tried := map[string]bool{}
		for _, next := range adjacency[node] {
			if len(out) >= limit {
				return open
			}
			if visited[next] || tried[next] {
				continue
			}
			tried[next] = true
			if next == to {
				if len(path) == hops {
					found := make([]string, len(path)+1)
					copy(found, path)
					found[len(path)] = to
					out = append(out, found)
				}
				continue
			}
			visited[next] = true
			path = append(path, next)
			if walk(next, hops) {
				open = true
			}
			path = path[:len(path)-1]
			visited[next] = false
		}
		return open
	}

	for hops := 1; hops <= maxHops && len(out) < limit; hops++ {
		if !walk(from, hops) {
			break
		}
	}
	return out
}
