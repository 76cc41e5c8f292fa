package engine

import "time"

// timerSet holds the cancellable timers that simulate task work: the
// user-task timeout fallback and the system-task work delay. Timers are
// registered against the instance lifecycle so stop and pause cancel
// them deterministically — a timer that has been cancelled can never
// fire into a cancelled instance. Mutated only from the run loop;
// callbacks re-enter through the command channel.
type timerSet struct {
	timers map[string]*time.Timer // keyed by task id
}

func newTimerSet() *timerSet {
	return &timerSet{timers: make(map[string]*time.Timer)}
}

// schedule arms a timer for the task, replacing any previous one.
func (ts *timerSet) schedule(taskID string, d time.Duration, fn func()) {
	ts.cancel(taskID)
	ts.timers[taskID] = time.AfterFunc(d, fn)
}

// cancel stops the task's timer if one is armed.
func (ts *timerSet) cancel(taskID string) {
	if t, ok := ts.timers[taskID]; ok {
		t.Stop()
		delete(ts.timers, taskID)
	}
}

// cancelAll stops every armed timer.
func (ts *timerSet) cancelAll() {
	for id, t := range ts.timers {
		t.Stop()
		delete(ts.timers, id)
	}
}
