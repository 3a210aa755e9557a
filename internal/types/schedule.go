package types

import (
	"fmt"
	"time"
)

// CapacityRule caps how many students a preceptor may take, scoped by an
// optional clerkship and requirement type. The most specific non-null scope
// tuple matching a lookup is the one that applies.
type CapacityRule struct {
	ID            string           `json:"id" yaml:"id" validate:"required"`
	PreceptorID   string           `json:"preceptor_id" yaml:"preceptor_id" validate:"required"`
	ClerkshipID   *string          `json:"clerkship_id,omitempty" yaml:"clerkship_id,omitempty"`
	Type          *RequirementType `json:"requirement_type,omitempty" yaml:"requirement_type,omitempty"`
	MaxPerDay     int              `json:"max_per_day" yaml:"max_per_day"`
	MaxPerYear    int              `json:"max_per_year" yaml:"max_per_year"`
	MaxPerBlock   int              `json:"max_per_block" yaml:"max_per_block"`
	MaxBlocksYear int              `json:"max_blocks_per_year" yaml:"max_blocks_per_year"`
}

// Validate checks if the capacity rule has valid field values
func (r *CapacityRule) Validate() error {
	if r.PreceptorID == "" {
		return fmt.Errorf("preceptor_id is required")
	}
	if r.Type != nil && !r.Type.IsValid() {
		return fmt.Errorf("invalid requirement type: %s", *r.Type)
	}
	if r.Type != nil && r.ClerkshipID == nil {
		return fmt.Errorf("requirement_type scope requires a clerkship_id scope")
	}
	if r.MaxPerDay < 0 || r.MaxPerYear < 0 || r.MaxPerBlock < 0 || r.MaxBlocksYear < 0 {
		return fmt.Errorf("capacity ceilings cannot be negative")
	}
	return nil
}

// TeamMember is one preceptor in a team's ordered member list.
type TeamMember struct {
	PreceptorID string `json:"preceptor_id" yaml:"preceptor_id" validate:"required"`
	Priority    int    `json:"priority" yaml:"priority"`
}

// Team is a group of preceptors a student can rotate within under
// team-based strategies.
type Team struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	ClerkshipID string `json:"clerkship_id" yaml:"clerkship_id" validate:"required"`
	Name        string `json:"name" yaml:"name"`

	// Membership constraints. When set, every member must satisfy them;
	// enforced by snapshot validation, assumed true by the engine.
	SameHealthSystem bool `json:"same_health_system" yaml:"same_health_system"`
	SameSite         bool `json:"same_site" yaml:"same_site"`
	SameSpecialty    bool `json:"same_specialty" yaml:"same_specialty"`

	Members []TeamMember `json:"members" yaml:"members" validate:"min=1"`
}

// HasMember reports whether the preceptor belongs to the team.
func (t *Team) HasMember(preceptorID string) bool {
	for _, m := range t.Members {
		if m.PreceptorID == preceptorID {
			return true
		}
	}
	return false
}

// FallbackEntry is one step in a fallback chain.
type FallbackEntry struct {
	PreceptorID      string `json:"preceptor_id" yaml:"preceptor_id" validate:"required"`
	Order            int    `json:"order" yaml:"order"`
	RequiresApproval bool   `json:"requires_approval" yaml:"requires_approval"`
	AllowCrossSystem bool   `json:"allow_cross_system" yaml:"allow_cross_system"`
}

// FallbackChain is the ordered list of substitutes for a primary preceptor,
// optionally scoped to a single clerkship.
type FallbackChain struct {
	ID          string          `json:"id" yaml:"id" validate:"required"`
	PrimaryID   string          `json:"primary_id" yaml:"primary_id" validate:"required"`
	ClerkshipID *string         `json:"clerkship_id,omitempty" yaml:"clerkship_id,omitempty"`
	Entries     []FallbackEntry `json:"entries" yaml:"entries" validate:"min=1"`
}

// BlackoutDate is a single day on which no assignment may exist.
type BlackoutDate struct {
	Date   time.Time `json:"date" yaml:"date" validate:"required"`
	Reason string    `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// AssignmentStatus is the lifecycle state of a schedule assignment.
type AssignmentStatus string

const (
	AssignmentScheduled AssignmentStatus = "scheduled"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// IsValid checks if the assignment status value is valid
func (s AssignmentStatus) IsValid() bool {
	switch s {
	case AssignmentScheduled, AssignmentCompleted, AssignmentCancelled:
		return true
	}
	return false
}

// ScheduleAssignment places one student with one preceptor for one day.
// At most one assignment exists per (student, date).
type ScheduleAssignment struct {
	ID          string           `json:"id" yaml:"id"`
	StudentID   string           `json:"student_id" yaml:"student_id" validate:"required"`
	PreceptorID string           `json:"preceptor_id" yaml:"preceptor_id" validate:"required"`
	ClerkshipID string           `json:"clerkship_id" yaml:"clerkship_id" validate:"required"`
	Type        RequirementType  `json:"requirement_type" yaml:"requirement_type" validate:"required"`
	Date        time.Time        `json:"date" yaml:"date" validate:"required"`
	SiteID      string           `json:"site_id" yaml:"site_id" validate:"required"`
	Status      AssignmentStatus `json:"status" yaml:"status"`
	CreatedAt   time.Time        `json:"created_at" yaml:"created_at"`
}

// Validate checks if the assignment has valid field values
func (a *ScheduleAssignment) Validate() error {
	if a.StudentID == "" {
		return fmt.Errorf("student_id is required")
	}
	if a.PreceptorID == "" {
		return fmt.Errorf("preceptor_id is required")
	}
	if a.ClerkshipID == "" {
		return fmt.Errorf("clerkship_id is required")
	}
	if !a.Type.IsValid() {
		return fmt.Errorf("invalid requirement type: %s", a.Type)
	}
	if a.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if a.SiteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if a.Status != "" && !a.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", a.Status)
	}
	return nil
}
