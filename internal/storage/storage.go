package storage

import (
	"errors"

	"github.com/martinsuchenak/invd/internal/model"
)

var (
	ErrObjectNotFound         = errors.New("object not found")
	ErrInvalidParent          = errors.New("invalid parent")
	ErrObjectHasRelationships = errors.New("object has relationships")
	ErrRelationshipNotFound   = errors.New("relationship not found")
	ErrListTypeItemExists     = errors.New("list type item already exists")
	ErrSyncRunNotFound        = errors.New("sync run not found")
)

// DefaultMaxHops bounds route searches when the caller gives no limit
const DefaultMaxHops = 20

// maxRoutes caps the number of routes a single search returns
const maxRoutes = 100

// ObjectStorage is the business object graph: objects, their attributes and
// their containment tree.
type ObjectStorage interface {
	CreateObject(obj *model.BusinessObject) error
	GetObject(id string) (*model.BusinessObject, error)
	UpdateObject(id string, attributes map[string]string) error
	DeleteObject(id string, force bool) error
	ListObjects(filter *model.ObjectFilter) ([]model.BusinessObject, error)
	GetChildren(id string) ([]model.BusinessObject, error)
	GetParents(id string) ([]model.BusinessObject, error)
	MoveObject(id, parentID string) error
}

// RelationshipStorage manages special relationships between objects
type RelationshipStorage interface {
	CreateSpecialRelationship(rel *model.SpecialRelationship) error
	GetSpecialRelationships(objectID string) ([]model.SpecialRelationship, error)
	GetSpecialAttribute(objectID, name string, dir model.Direction) ([]model.BusinessObject, error)
	GetAnnotatedSpecialAttribute(objectID, name string, dir model.Direction) ([]model.AnnotatedObject, error)
	DeleteSpecialRelationship(name, sourceID, targetID string) error
	HasSpecialRelationships(objectID string) (bool, error)
	FindRoutesThroughSpecialRelationships(sourceID, targetID, name string, maxHops int) ([]model.Route, error)
}

// ListTypeStorage manages list type items
type ListTypeStorage interface {
	CreateListTypeItem(className, name string) (*model.ListTypeItem, error)
	ListListTypeItems(className string) ([]model.ListTypeItem, error)
}

// SyncRunStorage keeps the history of device synchronizations
type SyncRunStorage interface {
	CreateSyncRun(run *model.SyncRun) error
	GetSyncRun(id string) (*model.SyncRun, error)
	ListSyncRuns(deviceID string, limit int) ([]model.SyncRun, error)
}

// Storage is everything the application persists
type Storage interface {
	ObjectStorage
	RelationshipStorage
	ListTypeStorage
	SyncRunStorage
	Close() error
}

// NewStorage opens the SQLite storage in dataDir
func NewStorage(dataDir string) (Storage, error) {
	return NewSQLiteStorage(dataDir)
}
