package engine

import "github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/models"

// taskRegistry tracks the live tasks of one instance plus the set of
// completed task ids. Owned exclusively by the executor's run loop.
type taskRegistry struct {
	byID      map[string]*models.WorkflowTask
	order     []string // creation order, preserved in snapshots
	completed map[string]struct{}
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{
		byID:      make(map[string]*models.WorkflowTask),
		completed: make(map[string]struct{}),
	}
}

func (r *taskRegistry) add(t *models.WorkflowTask) {
	r.byID[t.ID] = t
	r.order = append(r.order, t.ID)
}

func (r *taskRegistry) get(id string) (*models.WorkflowTask, bool) {
	t, ok := r.byID[id]
	return t, ok
}

func (r *taskRegistry) markCompleted(id string) {
	r.completed[id] = struct{}{}
}

func (r *taskRegistry) isCompleted(id string) bool {
	_, ok := r.completed[id]
	return ok
}

// activeCount counts tasks still pending or in progress across the
// whole instance. End events complete the workflow only when this is
// zero; there is no per-branch tracking.
func (r *taskRegistry) activeCount() int {
	n := 0
	for _, t := range r.byID {
		if t.Status.Active() {
			n++
		}
	}
	return n
}

// active returns the ids of active tasks in creation order.
func (r *taskRegistry) active() []string {
	var ids []string
	for _, id := range r.order {
		if r.byID[id].Status.Active() {
			ids = append(ids, id)
		}
	}
	return ids
}

// all returns every task in creation order.
func (r *taskRegistry) all() []*models.WorkflowTask {
	out := make([]*models.WorkflowTask, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
