package storage

import (
	"github.com/pkg/errors"

	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/models"
)

// ErrNotFound is returned when a definition or instance does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the caller-owned persistence for workflow definitions
// and instance records. The execution engine never touches a Store; the
// service layer persists instance state around control calls.
type Store interface {
	// Begin returns a transactional view of the store. Commit and
	// Rollback only apply to such views.
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Definition operations
	SaveDefinition(def models.WorkflowDefinition) error
	GetDefinition(id string) (models.WorkflowDefinition, error)
	ListDefinitions() ([]models.WorkflowDefinition, error)

	// Instance operations
	SaveInstance(inst models.WorkflowInstance) error
	GetInstance(id string) (models.WorkflowInstance, error)
	ListInstances() ([]models.WorkflowInstance, error)
	UpdateInstance(inst models.WorkflowInstance) error
}
