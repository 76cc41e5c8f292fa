// Package engine drives a BPMN-like workflow definition through the
// lifecycle of one instance: it walks the graph from the start events,
// creates and transitions tasks, routes exclusive gateways and appends
// the audit history.
//
// Each Executor owns its instance's mutable state — task registry,
// history log, instance record, timers — from a single goroutine.
// Control-API calls and timer callbacks are serialized through one
// command channel, so no two mutations of the same instance ever
// interleave.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/condition"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/models"
)

const (
	// DefaultUserTaskTimeout is the fallback auto-completion delay for
	// user tasks. In production the contact-facing UI completes tasks
	// through CompleteTask; the timer is only the timeout fallback.
	DefaultUserTaskTimeout = 60 * time.Second
	// DefaultSystemTaskDelay simulates the work a system task performs
	// before it completes itself.
	DefaultSystemTaskDelay = 200 * time.Millisecond
)

// Logger is the logging interface consumed by the executor.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

type options struct {
	logger          Logger
	clock           func() time.Time
	userTaskTimeout time.Duration
	systemTaskDelay time.Duration
}

// Option configures an Executor.
type Option func(*options)

// WithLogger sets the executor's logger.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithUserTaskTimeout sets the timeout-fallback delay for user tasks.
func WithUserTaskTimeout(d time.Duration) Option {
	return func(o *options) { o.userTaskTimeout = d }
}

// WithSystemTaskDelay sets the simulated work delay for system tasks.
func WithSystemTaskDelay(d time.Duration) Option {
	return func(o *options) { o.systemTaskDelay = d }
}

type command struct {
	fn   func()
	done chan struct{}
}

// Executor is the state machine for one workflow instance. Create one
// per instance with NewExecutor and release it with Close.
type Executor struct {
	def  *models.WorkflowDefinition
	inst *models.WorkflowInstance
	eval *condition.Evaluator
	opts options

	cmds      chan command
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// Everything below is owned by the run loop.
	tasks       *taskRegistry
	history     *historyLog
	timers      *timerSet
	currentStep string
	elements    map[string]models.BpmnElement
	outgoing    map[string][]models.BpmnConnection
}

// NewExecutor validates the definition, compiles its gateway conditions
// and starts the executor's run loop. The instance record is borrowed:
// the executor mutates it but never persists or disposes of it.
func NewExecutor(def *models.WorkflowDefinition, inst *models.WorkflowInstance, opts ...Option) (*Executor, error) {
	if def == nil || inst == nil {
		return nil, fmt.Errorf("definition and instance are required")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	eval, err := condition.NewEvaluator(def)
	if err != nil {
		return nil, err
	}

	o := options{
		logger:          nopLogger{},
		clock:           time.Now,
		userTaskTimeout: DefaultUserTaskTimeout,
		systemTaskDelay: DefaultSystemTaskDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if inst.Variables == nil {
		inst.Variables = copyMap(def.Variables)
	}

	e := &Executor{
		def:      def,
		inst:     inst,
		eval:     eval,
		opts:     o,
		cmds:     make(chan command, 32),
		quit:     make(chan struct{}),
		tasks:    newTaskRegistry(),
		history:  &historyLog{},
		timers:   newTimerSet(),
		elements: make(map[string]models.BpmnElement, len(def.Elements)),
		outgoing: make(map[string][]models.BpmnConnection, len(def.Elements)),
	}
	for _, el := range def.Elements {
		e.elements[el.ID] = el
	}
	for _, conn := range def.Connections {
		e.outgoing[conn.SourceID] = append(e.outgoing[conn.SourceID], conn)
	}

	e.wg.Add(1)
	go e.run()
	return e, nil
}

// Close stops the run loop and cancels all outstanding timers. Control
// calls issued after Close return ErrExecutorClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() { close(e.quit) })
	e.wg.Wait()
}

func (e *Executor) run() {
	defer e.wg.Done()
	for {
		select {
		case cmd := <-e.cmds:
			cmd.fn()
			close(cmd.done)
		case <-e.quit:
			e.timers.cancelAll()
			return
		}
	}
}

// do runs fn on the executor goroutine and waits for it to finish.
func (e *Executor) do(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case e.cmds <- cmd:
	case <-e.quit:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-e.quit:
		select {
		case <-cmd.done:
			return nil
		default:
			return ErrExecutorClosed
		}
	}
}

// enqueue hands fn to the run loop without waiting; timer callbacks use
// it to re-enter the single-writer discipline.
func (e *Executor) enqueue(fn func()) {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case e.cmds <- cmd:
	case <-e.quit:
	}
}

func (e *Executor) now() time.Time {
	return e.opts.clock()
}

// Start begins execution: the instance must be pending. It returns once
// the traversal triggered by the start events has been initiated; tasks
// created along the way may still be open.
func (e *Executor) Start(ctx context.Context) error {
	var err error
	if derr := e.do(ctx, func() { err = e.start() }); derr != nil {
		return derr
	}
	return err
}

// Pause suspends the instance and its simulated-work timers.
func (e *Executor) Pause(ctx context.Context) error {
	var err error
	if derr := e.do(ctx, func() { err = e.pause() }); derr != nil {
		return derr
	}
	return err
}

// Resume restarts a paused instance. System tasks still open are
// re-driven (their work is re-simulated); user tasks are left exactly
// as they were.
func (e *Executor) Resume(ctx context.Context) error {
	var err error
	if derr := e.do(ctx, func() { err = e.resume() }); derr != nil {
		return derr
	}
	return err
}

// Stop cancels the instance: every task still open is skipped and all
// timers are cancelled, so nothing completes after cancellation.
func (e *Executor) Stop(ctx context.Context) error {
	var err error
	if derr := e.do(ctx, func() { err = e.stop() }); derr != nil {
		return derr
	}
	return err
}

// CompleteTask records the external completion of a task and resumes
// traversal from the task's element. An unknown task id is a silent
// no-op, as is any completion signal arriving after the instance
// reached a terminal status.
func (e *Executor) CompleteTask(ctx context.Context, taskID string, output map[string]any) error {
	return e.do(ctx, func() { e.completeTask(taskID, output) })
}

// ExecutionState returns an immutable snapshot of the execution. It is
// a pure read: the polling monitor can call it on any cadence without
// affecting engine state.
func (e *Executor) ExecutionState(ctx context.Context) (models.WorkflowExecution, error) {
	var snap models.WorkflowExecution
	if err := e.do(ctx, func() { snap = e.snapshot() }); err != nil {
		return models.WorkflowExecution{}, err
	}
	return snap, nil
}

// InstanceID returns the id of the instance this executor drives.
func (e *Executor) InstanceID() string {
	return e.inst.ID
}

// Instance returns a copy of the instance record, for callers that own
// its persistence.
func (e *Executor) Instance(ctx context.Context) (models.WorkflowInstance, error) {
	var inst models.WorkflowInstance
	err := e.do(ctx, func() {
		inst = *e.inst
		inst.Variables = copyMap(e.inst.Variables)
		inst.StartedAt = copyTimePtr(e.inst.StartedAt)
		inst.PausedAt = copyTimePtr(e.inst.PausedAt)
		inst.CompletedAt = copyTimePtr(e.inst.CompletedAt)
	})
	if err != nil {
		return models.WorkflowInstance{}, err
	}
	return inst, nil
}

func (e *Executor) start() error {
	if e.inst.Status != models.InstancePending {
		return &ExecutionError{
			Kind:    KindInvalidTransition,
			Message: fmt.Sprintf("cannot start instance %s in status %s", e.inst.ID, e.inst.Status),
		}
	}
	now := e.now()
	e.inst.Status = models.InstanceRunning
	e.inst.StartedAt = &now
	e.inst.UpdatedAt = now
	e.history.append(now, models.ActionWorkflowStarted, "", map[string]any{"workflow_id": e.def.ID})
	e.opts.logger.Infof("Started instance %s of workflow %s", e.inst.ID, e.def.ID)

	for _, el := range e.def.Elements {
		if el.Type == models.StartEvent {
			e.executeElement(el)
		}
	}
	return nil
}

func (e *Executor) pause() error {
	if !e.inst.Status.CanTransition(models.InstancePaused) {
		return &ExecutionError{
			Kind:    KindInvalidTransition,
			Message: fmt.Sprintf("cannot pause instance %s in status %s", e.inst.ID, e.inst.Status),
		}
	}
	now := e.now()
	e.inst.Status = models.InstancePaused
	e.inst.PausedAt = &now
	e.inst.UpdatedAt = now
	e.timers.cancelAll()
	var tracked []any
	for _, t := range e.tasks.all() {
		tracked = append(tracked, t.ID)
	}
	e.history.append(now, models.ActionWorkflowPaused, "", map[string]any{"task_ids": tracked})
	e.opts.logger.Infof("Paused instance %s", e.inst.ID)
	return nil
}

func (e *Executor) resume() error {
	if e.inst.Status != models.InstancePaused {
		return &ExecutionError{
			Kind:    KindInvalidTransition,
			Message: fmt.Sprintf("cannot resume instance %s in status %s", e.inst.ID, e.inst.Status),
		}
	}
	now := e.now()
	e.inst.Status = models.InstanceRunning
	e.inst.PausedAt = nil
	e.inst.UpdatedAt = now
	e.history.append(now, models.ActionWorkflowResumed, "", nil)
	e.opts.logger.Infof("Resumed instance %s", e.inst.ID)

	// Re-simulate open system tasks. User tasks keep whatever state they
	// had; their timeout fallback is not re-armed.
	for _, task := range e.tasks.all() {
		if task.TaskType == models.TaskTypeSystem && task.Status.Active() {
			tid := task.ID
			e.timers.schedule(tid, e.opts.systemTaskDelay, func() {
				e.enqueue(func() { e.finishSystemTask(tid) })
			})
		}
	}
	return nil
}

func (e *Executor) stop() error {
	if !e.inst.Status.CanTransition(models.InstanceCancelled) {
		return &ExecutionError{
			Kind:    KindInvalidTransition,
			Message: fmt.Sprintf("cannot stop instance %s in status %s", e.inst.ID, e.inst.Status),
		}
	}
	now := e.now()
	e.timers.cancelAll()
	var skipped []any
	for _, task := range e.tasks.all() {
		if task.Status.Active() {
			task.Status = models.TaskSkipped
			completedAt := now
			task.CompletedAt = &completedAt
			skipped = append(skipped, task.ID)
		}
	}
	e.inst.Status = models.InstanceCancelled
	e.inst.CompletedAt = &now
	e.inst.UpdatedAt = now
	e.history.append(now, models.ActionWorkflowStopped, "", map[string]any{"skipped_task_ids": skipped})
	e.opts.logger.Infof("Stopped instance %s, skipped %d tasks", e.inst.ID, len(skipped))
	return nil
}

func (e *Executor) completeTask(taskID string, output map[string]any) {
	task, ok := e.tasks.get(taskID)
	if !ok {
		e.opts.logger.Debugf("Ignoring completion of unknown task %s on instance %s", taskID, e.inst.ID)
		return
	}
	if e.inst.Status.Terminal() {
		e.opts.logger.Debugf("Ignoring completion of task %s: instance %s is %s", taskID, e.inst.ID, e.inst.Status)
		return
	}
	if !task.Status.Active() {
		return
	}
	e.finishTask(task, output, "")
	e.moveToNextElements(task.ElementID)
}

// finishTask marks the task completed, stores its output, adds it to
// the completed set and disarms its timer.
func (e *Executor) finishTask(task *models.WorkflowTask, output map[string]any, notes string) {
	now := e.now()
	task.Status = models.TaskCompleted
	task.CompletedAt = &now
	task.Output = copyMap(output)
	if notes != "" {
		task.Notes = notes
	}
	e.tasks.markCompleted(task.ID)
	e.timers.cancel(task.ID)
	e.history.append(now, models.ActionTaskCompleted, task.ElementID, map[string]any{"task_id": task.ID})
	e.opts.logger.Infof("Task %s (%s) completed on instance %s", task.ID, task.TaskName, e.inst.ID)
}

// executeElement runs one element and converts any failure into
// instance state; errors never propagate to control-API callers.
func (e *Executor) executeElement(el models.BpmnElement) {
	if e.inst.Status.Terminal() {
		return
	}
	e.currentStep = el.ID
	e.history.append(e.now(), models.ActionElementStarted, el.ID, nil)
	if err := e.dispatch(el); err != nil {
		e.failInstance(el.ID, err)
	}
}

func (e *Executor) dispatch(el models.BpmnElement) error {
	switch el.Type {
	case models.StartEvent:
		e.history.append(e.now(), models.ActionElementCompleted, el.ID, nil)
		e.moveToNextElements(el.ID)
	case models.EndEvent:
		e.completeIfQuiescent(el)
	case models.UserTask:
		e.startUserTask(el)
	case models.SystemTask:
		e.startSystemTask(el)
	case models.DecisionGateway:
		return e.routeGateway(el)
	default:
		// Unreachable for validated definitions; kept as a backstop.
		return &ExecutionError{
			Kind:      KindUnsupportedElement,
			ElementID: el.ID,
			Message:   fmt.Sprintf("unsupported element type %q", el.Type),
		}
	}
	return nil
}

// completeIfQuiescent finishes the instance when an end event is
// reached and no task anywhere in the graph is still open. The check is
// global; a branch hitting its end event while another branch still has
// work is a no-op.
func (e *Executor) completeIfQuiescent(el models.BpmnElement) {
	if n := e.tasks.activeCount(); n > 0 {
		e.opts.logger.Debugf("End event %s reached with %d active tasks, instance %s not complete yet", el.ID, n, e.inst.ID)
		return
	}
	now := e.now()
	e.inst.Status = models.InstanceCompleted
	e.inst.CompletedAt = &now
	e.inst.UpdatedAt = now
	e.history.append(now, models.ActionWorkflowCompleted, el.ID, nil)
	e.opts.logger.Infof("Instance %s completed", e.inst.ID)
}

func (e *Executor) startUserTask(el models.BpmnElement) {
	task := e.newTask(el, models.TaskTypeUser, models.TaskPending)
	if assignee, ok := el.Properties["assignee"].(string); ok && assignee != "" {
		task.AssignedContactID = &assignee
	}
	e.tasks.add(task)
	details := map[string]any{"task_id": task.ID, "task_type": string(task.TaskType)}
	if task.AssignedContactID != nil {
		details["assignee"] = *task.AssignedContactID
	}
	e.history.append(e.now(), models.ActionTaskCreated, el.ID, details)
	e.opts.logger.Infof("Created user task %s for element %s on instance %s", task.ID, el.ID, e.inst.ID)

	tid := task.ID
	e.timers.schedule(tid, e.opts.userTaskTimeout, func() {
		e.enqueue(func() { e.timeoutUserTask(tid) })
	})
}

// timeoutUserTask is the fallback completion path for a user task whose
// external signal never arrived within the timeout.
func (e *Executor) timeoutUserTask(taskID string) {
	task, ok := e.tasks.get(taskID)
	if !ok || task.Status != models.TaskPending || e.inst.Status.Terminal() {
		return
	}
	e.opts.logger.Infof("User task %s timed out on instance %s, auto-completing", taskID, e.inst.ID)
	e.finishTask(task, map[string]any{"result": "completed"}, "auto-completed by timeout fallback")
	e.moveToNextElements(task.ElementID)
}

func (e *Executor) startSystemTask(el models.BpmnElement) {
	now := e.now()
	task := e.newTask(el, models.TaskTypeSystem, models.TaskInProgress)
	task.StartedAt = &now
	e.tasks.add(task)
	e.history.append(now, models.ActionTaskCreated, el.ID, map[string]any{"task_id": task.ID, "task_type": string(task.TaskType)})
	e.opts.logger.Infof("Created system task %s for element %s on instance %s", task.ID, el.ID, e.inst.ID)

	tid := task.ID
	e.timers.schedule(tid, e.opts.systemTaskDelay, func() {
		e.enqueue(func() { e.finishSystemTask(tid) })
	})
}

func (e *Executor) finishSystemTask(taskID string) {
	task, ok := e.tasks.get(taskID)
	if !ok || task.Status != models.TaskInProgress || e.inst.Status != models.InstanceRunning {
		return
	}
	e.finishTask(task, map[string]any{"result": "completed", "element_id": task.ElementID}, "")
	e.moveToNextElements(task.ElementID)
}

// routeGateway applies exclusive-gateway semantics: outgoing
// connections in definition order, first condition that evaluates true
// wins; if none match, the first condition-less connection is the
// default edge. A gateway with neither is a silent dead end — the
// instance keeps running with nothing left to do.
func (e *Executor) routeGateway(el models.BpmnElement) error {
	conns := e.outgoing[el.ID]
	var fallback *models.BpmnConnection
	for i := range conns {
		conn := conns[i]
		if conn.Condition == "" {
			if fallback == nil {
				fallback = &conns[i]
			}
			continue
		}
		taken, err := e.eval.Evaluate(conn, e.inst.Variables)
		if err != nil {
			return err
		}
		if taken {
			e.history.append(e.now(), models.ActionElementCompleted, el.ID,
				map[string]any{"connection_id": conn.ID, "condition": conn.Condition})
			e.followConnection(conn)
			return nil
		}
	}
	if fallback != nil {
		e.history.append(e.now(), models.ActionElementCompleted, el.ID,
			map[string]any{"connection_id": fallback.ID, "default": true})
		e.followConnection(*fallback)
		return nil
	}
	e.opts.logger.Debugf("Gateway %s on instance %s has no matching condition and no default edge, traversal stops", el.ID, e.inst.ID)
	return nil
}

// moveToNextElements fans out into every outgoing connection of the
// source element. There is no join counting: converging branches each
// execute the shared target independently.
func (e *Executor) moveToNextElements(sourceID string) {
	for _, conn := range e.outgoing[sourceID] {
		e.followConnection(conn)
	}
}

func (e *Executor) followConnection(conn models.BpmnConnection) {
	if el, ok := e.elements[conn.TargetID]; ok {
		e.executeElement(el)
	}
}

func (e *Executor) failInstance(elementID string, err error) {
	execErr := classify(elementID, err)
	now := e.now()
	e.history.append(now, models.ActionElementFailed, elementID, map[string]any{
		"kind":  string(execErr.Kind),
		"error": execErr.Message,
	})
	e.inst.Status = models.InstanceFailed
	e.inst.ErrorMessage = execErr.Error()
	e.inst.CompletedAt = &now
	e.inst.UpdatedAt = now
	e.timers.cancelAll()
	e.opts.logger.Errorf("Instance %s failed at element %s: %v", e.inst.ID, elementID, execErr)
}

func classify(elementID string, err error) *ExecutionError {
	if execErr, ok := err.(*ExecutionError); ok {
		return execErr
	}
	if evalErr, ok := err.(*condition.EvalError); ok {
		return &ExecutionError{Kind: KindConditionEvaluation, ElementID: elementID, Message: evalErr.Error()}
	}
	return &ExecutionError{Kind: KindExecutionFailure, ElementID: elementID, Message: err.Error()}
}

func (e *Executor) newTask(el models.BpmnElement, typ models.TaskType, status models.TaskStatus) *models.WorkflowTask {
	name := el.Name
	if name == "" {
		name = el.ID
	}
	return &models.WorkflowTask{
		ID:         uuid.NewString(),
		InstanceID: e.inst.ID,
		ElementID:  el.ID,
		TaskName:   name,
		TaskType:   typ,
		Status:     status,
		Input:      copyMap(e.inst.Variables),
	}
}

func (e *Executor) snapshot() models.WorkflowExecution {
	tasks := make([]models.TaskExecution, 0, len(e.tasks.order))
	for _, task := range e.tasks.all() {
		tasks = append(tasks, models.TaskExecution{
			TaskID:      task.ID,
			ElementID:   task.ElementID,
			TaskName:    task.TaskName,
			TaskType:    task.TaskType,
			Status:      task.Status,
			AssignedTo:  copyStrPtr(task.AssignedContactID),
			StartedAt:   copyTimePtr(task.StartedAt),
			CompletedAt: copyTimePtr(task.CompletedAt),
			Input:       copyMap(task.Input),
			Output:      copyMap(task.Output),
			Notes:       task.Notes,
		})
	}
	return models.WorkflowExecution{
		InstanceID:   e.inst.ID,
		WorkflowID:   e.inst.WorkflowID,
		Status:       e.inst.Status,
		CurrentStep:  e.currentStep,
		ErrorMessage: e.inst.ErrorMessage,
		Variables:    copyMap(e.inst.Variables),
		Tasks:        tasks,
		History:      e.history.snapshot(),
	}
}

// copyMap deep-copies the nested map/slice shapes JSON variables take.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

func copyStrPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
