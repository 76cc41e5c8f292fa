package storage

import (
	"sync"
	"time"

	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/models"
)

// mockStore implements Store with in-memory slices, for tests and the
// examples. Transactions are a formality: Begin returns the same store.
type mockStore struct {
	mu          sync.Mutex
	definitions []models.WorkflowDefinition
	instances   []models.WorkflowInstance
}

// NewMockStore returns an empty in-memory store.
func NewMockStore() Store {
	return &mockStore{}
}

func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) SaveDefinition(def models.WorkflowDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.definitions {
		if existing.ID == def.ID {
			m.definitions[i] = def
			return nil
		}
	}
	m.definitions = append(m.definitions, def)
	return nil
}

func (m *mockStore) GetDefinition(id string) (models.WorkflowDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, def := range m.definitions {
		if def.ID == id {
			return def, nil
		}
	}
	return models.WorkflowDefinition{}, ErrNotFound
}

func (m *mockStore) ListDefinitions() ([]models.WorkflowDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.WorkflowDefinition, len(m.definitions))
	copy(out, m.definitions)
	return out, nil
}

func (m *mockStore) SaveInstance(inst models.WorkflowInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances = append(m.instances, inst)
	return nil
}

func (m *mockStore) GetInstance(id string) (models.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.instances {
		if inst.ID == id {
			return inst, nil
		}
	}
	return models.WorkflowInstance{}, ErrNotFound
}

func (m *mockStore) ListInstances() ([]models.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.WorkflowInstance, len(m.instances))
	copy(out, m.instances)
	return out, nil
}

func (m *mockStore) UpdateInstance(inst models.WorkflowInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.instances {
		if existing.ID == inst.ID {
			inst.UpdatedAt = time.Now()
			m.instances[i] = inst
			return nil
		}
	}
	return ErrNotFound
}
