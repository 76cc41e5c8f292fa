package engine

import (
	"time"

	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/models"
)

// historyLog is the append-only audit trail for one instance. It is
// only ever touched from the executor's run loop.
type historyLog struct {
	entries []models.HistoryEntry
}

// append records one entry. Timestamps are clamped so the log stays
// monotonically non-decreasing even if the wall clock steps backwards.
func (h *historyLog) append(at time.Time, action, elementID string, details map[string]any) {
	if n := len(h.entries); n > 0 && at.Before(h.entries[n-1].Timestamp) {
		at = h.entries[n-1].Timestamp
	}
	h.entries = append(h.entries, models.HistoryEntry{
		Timestamp: at,
		Action:    action,
		ElementID: elementID,
		Details:   details,
	})
}

// snapshot returns a copy of the log for the execution snapshot.
func (h *historyLog) snapshot() []models.HistoryEntry {
	out := make([]models.HistoryEntry, len(h.entries))
	for i, e := range h.entries {
		e.Details = copyMap(e.Details)
		out[i] = e
	}
	return out
}
