package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/engine"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/models"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/storage"
)

// Logger defines the logging interface for WorkflowService
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// WorkflowService is the caller-side owner of workflow persistence. It
// stores definitions and instance records through the Store, keeps the
// table of live executors, and forwards control calls to them. The
// engine itself never persists anything; this layer writes the instance
// record back after every control call.
type WorkflowService struct {
	store      storage.Store
	logger     Logger
	engineOpts []engine.Option

	mu        sync.Mutex
	execs     map[string]*engine.Executor
	persisted map[string]models.InstanceStatus
}

func NewWorkflowService(store storage.Store, logger Logger, engineOpts ...engine.Option) *WorkflowService {
	return &WorkflowService{
		store:      store,
		logger:     logger,
		engineOpts: engineOpts,
		execs:      make(map[string]*engine.Executor),
		persisted:  make(map[string]models.InstanceStatus),
	}
}

// Close releases every live executor. Stored records are untouched.
func (s *WorkflowService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, exec := range s.execs {
		exec.Close()
		delete(s.execs, id)
	}
}

// SaveDefinition validates and persists a workflow definition.
func (s *WorkflowService) SaveDefinition(def models.WorkflowDefinition) (err error) {
	if err := def.Validate(); err != nil {
		return err
	}
	txStore, err := s.store.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	if err = txStore.SaveDefinition(def); err != nil {
		return errors.Wrapf(err, "failed to save definition %s", def.ID)
	}
	s.logger.Infof("Saved workflow definition '%s' version %d", def.ID, def.Version)
	return nil
}

func (s *WorkflowService) GetDefinition(id string) (models.WorkflowDefinition, error) {
	return s.store.GetDefinition(id)
}

func (s *WorkflowService) ListDefinitions() ([]models.WorkflowDefinition, error) {
	return s.store.ListDefinitions()
}

// CreateInstance creates a pending instance of the given definition.
// The definition's variables seed the instance; the supplied variables
// override seed values key by key.
func (s *WorkflowService) CreateInstance(definitionID string, variables map[string]any) (inst models.WorkflowInstance, err error) {
	def, err := s.store.GetDefinition(definitionID)
	if err != nil {
		return models.WorkflowInstance{}, errors.Wrapf(err, "definition %s not found", definitionID)
	}

	seeded := make(map[string]any, len(def.Variables)+len(variables))
	for k, v := range def.Variables {
		seeded[k] = v
	}
	for k, v := range variables {
		seeded[k] = v
	}

	now := time.Now()
	inst = models.WorkflowInstance{
		ID:         uuid.NewString(),
		WorkflowID: def.ID,
		Status:     models.InstancePending,
		Variables:  seeded,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return models.WorkflowInstance{}, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	if err = txStore.SaveInstance(inst); err != nil {
		return models.WorkflowInstance{}, errors.Wrapf(err, "failed to save instance of %s", definitionID)
	}
	s.logger.Infof("Created instance %s of workflow '%s'", inst.ID, def.ID)
	return inst, nil
}

func (s *WorkflowService) ListInstances() ([]models.WorkflowInstance, error) {
	return s.store.ListInstances()
}

// StartInstance starts execution of a pending instance.
func (s *WorkflowService) StartInstance(ctx context.Context, instanceID string) error {
	exec, err := s.executor(instanceID)
	if err != nil {
		return err
	}
	if err := exec.Start(ctx); err != nil {
		return err
	}
	s.persist(ctx, instanceID, exec)
	return nil
}

// PauseInstance pauses a running instance.
func (s *WorkflowService) PauseInstance(ctx context.Context, instanceID string) error {
	exec, err := s.executor(instanceID)
	if err != nil {
		return err
	}
	if err := exec.Pause(ctx); err != nil {
		return err
	}
	s.persist(ctx, instanceID, exec)
	return nil
}

// ResumeInstance resumes a paused instance.
func (s *WorkflowService) ResumeInstance(ctx context.Context, instanceID string) error {
	exec, err := s.executor(instanceID)
	if err != nil {
		return err
	}
	if err := exec.Resume(ctx); err != nil {
		return err
	}
	s.persist(ctx, instanceID, exec)
	return nil
}

// StopInstance cancels an instance; still-open tasks are skipped.
func (s *WorkflowService) StopInstance(ctx context.Context, instanceID string) error {
	exec, err := s.executor(instanceID)
	if err != nil {
		return err
	}
	if err := exec.Stop(ctx); err != nil {
		return err
	}
	s.persist(ctx, instanceID, exec)
	return nil
}

// CompleteTask signals the external completion of a task.
func (s *WorkflowService) CompleteTask(ctx context.Context, instanceID, taskID string, output map[string]any) error {
	exec, err := s.executor(instanceID)
	if err != nil {
		return err
	}
	if err := exec.CompleteTask(ctx, taskID, output); err != nil {
		return err
	}
	s.persist(ctx, instanceID, exec)
	return nil
}

// GetExecutionState returns the execution snapshot of an instance. For
// instances without a live executor (never started in this process) the
// snapshot is assembled from the stored record, with no tasks or
// history.
func (s *WorkflowService) GetExecutionState(ctx context.Context, instanceID string) (models.WorkflowExecution, error) {
	s.mu.Lock()
	exec, live := s.execs[instanceID]
	s.mu.Unlock()
	if live {
		snap, err := exec.ExecutionState(ctx)
		if err != nil {
			return models.WorkflowExecution{}, err
		}
		// The monitor polls on a ~1s cadence, so snapshot reads must not
		// cost a store write each. Write back only when timer-driven work
		// (system tasks, timeout fallbacks) changed the status since the
		// last persisted write.
		s.mu.Lock()
		last, known := s.persisted[instanceID]
		s.mu.Unlock()
		if !known || last != snap.Status {
			s.persist(ctx, instanceID, exec)
		}
		return snap, nil
	}

	inst, err := s.store.GetInstance(instanceID)
	if err != nil {
		return models.WorkflowExecution{}, errors.Wrapf(err, "instance %s not found", instanceID)
	}
	return models.WorkflowExecution{
		InstanceID:   inst.ID,
		WorkflowID:   inst.WorkflowID,
		Status:       inst.Status,
		ErrorMessage: inst.ErrorMessage,
		Variables:    inst.Variables,
		Tasks:        []models.TaskExecution{},
		History:      []models.HistoryEntry{},
	}, nil
}

// executor returns the live executor for the instance, creating one
// from the stored records on first use.
func (s *WorkflowService) executor(instanceID string) (*engine.Executor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exec, ok := s.execs[instanceID]; ok {
		return exec, nil
	}

	inst, err := s.store.GetInstance(instanceID)
	if err != nil {
		return nil, errors.Wrapf(err, "instance %s not found", instanceID)
	}
	def, err := s.store.GetDefinition(inst.WorkflowID)
	if err != nil {
		return nil, errors.Wrapf(err, "definition %s not found", inst.WorkflowID)
	}

	opts := append([]engine.Option{engine.WithLogger(s.logger)}, s.engineOpts...)
	exec, err := engine.NewExecutor(&def, &inst, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create executor for instance %s", instanceID)
	}
	s.execs[instanceID] = exec
	return exec, nil
}

// persist writes the instance record back to the store. Best effort:
// control calls do not fail because persistence lagged.
func (s *WorkflowService) persist(ctx context.Context, instanceID string, exec *engine.Executor) {
	inst, err := exec.Instance(ctx)
	if err != nil {
		s.logger.Errorf("Failed to read instance %s for persistence: %v", instanceID, err)
		return
	}
	if err := s.store.UpdateInstance(inst); err != nil {
		s.logger.Errorf("Failed to persist instance %s: %v", instanceID, err)
		return
	}
	s.mu.Lock()
	s.persisted[instanceID] = inst.Status
	s.mu.Unlock()
}
