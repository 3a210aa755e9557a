package engine

import (
	"fmt"
	"time"

	"github.com/clinrota/clinrota/internal/types"
)

// Shortfall reports a requirement the window could not fully satisfy.
// Shortfalls are expected outcomes, never errors.
type Shortfall struct {
	StudentID   string                `json:"student_id"`
	ClerkshipID string                `json:"clerkship_id"`
	Type        types.RequirementType `json:"requirement_type"`
	Days        int                   `json:"shortfall_days"`
}

// UnassignedDay is a (student, date) pair the generator could not place.
type UnassignedDay struct {
	StudentID string    `json:"student_id"`
	Date      time.Time `json:"date"`
}

// Result is the batch outcome of one generation or regeneration run. The
// caller persists Assignments and Removed transactionally; the engine holds
// no state across runs.
type Result struct {
	// Assignments are the newly generated records to upsert.
	Assignments []types.ScheduleAssignment `json:"assignments"`
	// Removed are pre-existing future assignments discarded by a
	// regeneration cutover, for the caller to delete.
	Removed []types.ScheduleAssignment `json:"removed,omitempty"`
	// Shortfalls lists requirements that closed the window unsatisfied.
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
	// Unassigned lists student-days that could not be placed.
	Unassigned []UnassignedDay `json:"unassigned,omitempty"`
}

// ConsistencyError reports an internal invariant violation: a duplicate
// (student, date) pair or an exceeded capacity ceiling surviving to the
// post-merge check. It should never trigger given correct generation logic;
// when it does, the whole run fails and nothing may be persisted.
type ConsistencyError struct {
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("internal consistency violation: %s", e.Detail)
}
