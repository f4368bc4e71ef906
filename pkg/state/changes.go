package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNothingToRevert is returned by RevertLastChange when no record matches
// the filter.
var ErrNothingToRevert = errors.New("nothing to revert")

// ErrRevertTargetGone is returned when the most recent matching record
// points at an entity that no longer exists. The log is left unchanged.
var ErrRevertTargetGone = errors.New("target entity no longer exists")

// DataChange is one committed field change. Immutable once appended;
// destroyed only by reversion.
type DataChange struct {
	ID        uuid.UUID `json:"change_id"`
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"data_type"`
	TargetID  string    `json:"target_id"`
	Field     string    `json:"field_name"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Input     string    `json:"user_input"` // originating utterance
	Reasoning string    `json:"reasoning"`  // oracle's stated reasoning
}

// ChangeLog is the append-only audit trail over committed field changes.
// Insertion order is chronological order; the only removal is the
// single-step reversion.
type ChangeLog struct {
	Changes []DataChange `json:"changes"`
}

// Record appends a change and returns the created record. It never rejects.
func (cl *ChangeLog) Record(category, targetID, field, oldValue, newValue, input, reasoning string) DataChange {
	change := DataChange{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Category:  category,
		TargetID:  targetID,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		Input:     input,
		Reasoning: reasoning,
	}
	cl.Changes = append(cl.Changes, change)
	return change
}

// Query returns records matching the filters in chronological order. Empty
// filters match everything.
func (cl *ChangeLog) Query(category, targetID string) []DataChange {
	out := make([]DataChange, 0)
	for _, c := range cl.Changes {
		if category != "" && c.Category != category {
			continue
		}
		if targetID != "" && c.TargetID != targetID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Recent returns records whose timestamp falls within d of now.
func (cl *ChangeLog) Recent(d time.Duration) []DataChange {
	cutoff := time.Now().UTC().Add(-d)
	out := make([]DataChange, 0)
	for _, c := range cl.Changes {
		if c.Timestamp.After(cutoff) {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of records in the log.
func (cl *ChangeLog) Len() int {
	return len(cl.Changes)
}

// RevertLastChange undoes the most recent change matching the filter: the
// old value is written back through the typed setter whitelist and the
// record is removed from the log. Exactly one record is undone per call;
// repeated calls walk backward through history. There is no redo.
//
// If the record's target entity no longer exists, the call fails and the
// log is left unchanged.
func (w *WorldState) RevertLastChange(category, targetID string) (*DataChange, error) {
	idx := -1
	for i := len(w.Changes.Changes) - 1; i >= 0; i-- {
		c := w.Changes.Changes[i]
		if category != "" && c.Category != category {
			continue
		}
		if targetID != "" && c.TargetID != targetID {
			continue
		}
		idx = i
		break
	}
	if idx < 0 {
		return nil, ErrNothingToRevert
	}

	change := w.Changes.Changes[idx]
	if !w.EntityExists(change.Category, change.TargetID) {
		return nil, fmt.Errorf("%w: %s %q", ErrRevertTargetGone, change.Category, change.TargetID)
	}

	if err := w.SetField(change.Category, change.TargetID, change.Field, change.OldValue); err != nil {
		return nil, fmt.Errorf("failed to restore %s.%s: %w", change.Category, change.Field, err)
	}

	w.Changes.Changes = append(w.Changes.Changes[:idx], w.Changes.Changes[idx+1:]...)
	return &change, nil
}
