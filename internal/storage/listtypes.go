package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/martinsuchenak/invd/internal/model"
)

// CreateListTypeItem adds an item to a list type. Names are unique per class.
func (ss *SQLiteStorage) CreateListTypeItem(className, name string) (*model.ListTypeItem, error) {
	if className == "" || name == "" {
		return nil, fmt.Errorf("creating list type item: class and name are required")
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	item := &model.ListTypeItem{
		ID:        newID(),
		ClassName: className,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	_, err := ss.db.Exec(`
		INSERT INTO list_type_items (id, class_name, name, created_at) VALUES (?, ?, ?, ?)
	`, item.ID, item.ClassName, item.Name, item.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s %s", ErrListTypeItemExists, className, name)
		}
		return nil, fmt.Errorf("inserting list type item: %w", err)
	}
	return item, nil
}

// ListListTypeItems returns the items of a list type ordered by name
func (ss *SQLiteStorage) ListListTypeItems(className string) ([]model.ListTypeItem, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, class_name, name, created_at FROM list_type_items
		WHERE class_name = ? ORDER BY name
	`, className)
	if err != nil {
		return nil, fmt.Errorf("querying list type items: %w", err)
	}
	defer rows.Close()

	var items []model.ListTypeItem
	for rows.Next() {
		var item model.ListTypeItem
		if err := rows.Scan(&item.ID, &item.ClassName, &item.Name, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning list type item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
