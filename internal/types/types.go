package types

import (
	"fmt"
	"time"
)

// DateLayout is the canonical calendar-day format used throughout the engine.
// All scheduling happens at day granularity; times of day are never significant.
const DateLayout = "2006-01-02"

// Day truncates a timestamp to its calendar day in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey returns the canonical string key for a calendar day.
func DateKey(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Student is an assignable unit. The engine never inspects anything beyond
// identity; eligibility is entirely a property of requirements and preceptors.
type Student struct {
	ID    string `json:"id" yaml:"id" validate:"required"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// Preceptor is a clinician students can be assigned to.
type Preceptor struct {
	ID             string   `json:"id" yaml:"id" validate:"required"`
	Name           string   `json:"name" yaml:"name"`
	Specialty      string   `json:"specialty" yaml:"specialty" validate:"required"`
	HealthSystemID string   `json:"health_system_id,omitempty" yaml:"health_system_id,omitempty"`
	SiteIDs        []string `json:"site_ids" yaml:"site_ids" validate:"min=1"`

	// Absolute per-preceptor ceilings, used only when no capacity rule
	// matches a lookup. Zero MaxPerYear means unlimited; zero
	// MaxStudentsPerDay falls back to the engine-wide default of 1.
	MaxStudentsPerDay int `json:"max_students_per_day" yaml:"max_students_per_day"`
	MaxPerYear        int `json:"max_per_year" yaml:"max_per_year"`
}

// WorksAt reports whether the preceptor can work at the given site.
func (p *Preceptor) WorksAt(siteID string) bool {
	for _, s := range p.SiteIDs {
		if s == siteID {
			return true
		}
	}
	return false
}

// SiteType categorizes a clinical site.
type SiteType string

const (
	SiteClinic   SiteType = "clinic"
	SiteHospital SiteType = "hospital"
	SiteMixed    SiteType = "mixed"
)

// IsValid checks if the site type value is valid
func (s SiteType) IsValid() bool {
	switch s {
	case SiteClinic, SiteHospital, SiteMixed:
		return true
	}
	return false
}

// Site is a physical location assignments are anchored to.
type Site struct {
	ID             string   `json:"id" yaml:"id" validate:"required"`
	Name           string   `json:"name" yaml:"name"`
	HealthSystemID string   `json:"health_system_id" yaml:"health_system_id" validate:"required"`
	Type           SiteType `json:"type" yaml:"type" validate:"required"`
}

// HealthSystem groups sites and preceptors for same-system rules.
type HealthSystem struct {
	ID   string `json:"id" yaml:"id" validate:"required"`
	Name string `json:"name" yaml:"name"`
}

// Clerkship is a course a student must accumulate days against.
type Clerkship struct {
	ID           string `json:"id" yaml:"id" validate:"required"`
	Name         string `json:"name" yaml:"name"`
	Specialty    string `json:"specialty" yaml:"specialty" validate:"required"`
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
	RequiredDays int    `json:"required_days" yaml:"required_days" validate:"min=0"`
}

// RequirementType is the unit required_days is tracked against.
type RequirementType string

const (
	RequirementInpatient  RequirementType = "inpatient"
	RequirementOutpatient RequirementType = "outpatient"
	RequirementElective   RequirementType = "elective"
)

// IsValid checks if the requirement type value is valid
func (r RequirementType) IsValid() bool {
	switch r {
	case RequirementInpatient, RequirementOutpatient, RequirementElective:
		return true
	}
	return false
}

// RequirementTypes lists every requirement type in canonical order.
func RequirementTypes() []RequirementType {
	return []RequirementType{RequirementInpatient, RequirementOutpatient, RequirementElective}
}

// OverrideMode controls how a requirement's configuration relates to the
// global defaults for its type.
type OverrideMode string

const (
	// OverrideInherit uses global defaults unchanged.
	OverrideInherit OverrideMode = "inherit"
	// OverrideFields takes each non-null override field, falling back
	// per-field to the global default.
	OverrideFields OverrideMode = "override_fields"
	// OverrideSection replaces the defaults wholesale; every field must be set.
	OverrideSection OverrideMode = "override_section"
)

// IsValid checks if the override mode value is valid
func (m OverrideMode) IsValid() bool {
	switch m {
	case OverrideInherit, OverrideFields, OverrideSection:
		return true
	}
	return false
}

// AssignmentStrategy controls how the generator places a student over time.
type AssignmentStrategy string

const (
	// StrategyContinuousSingle keeps a student with one preceptor for the
	// whole requirement.
	StrategyContinuousSingle AssignmentStrategy = "continuous_single"
	// StrategyContinuousTeam keeps a student within one team.
	StrategyContinuousTeam AssignmentStrategy = "continuous_team"
	// StrategyBlockBased schedules in fixed-size blocks.
	StrategyBlockBased AssignmentStrategy = "block_based"
	// StrategyDailyRotation allows a different preceptor every day.
	StrategyDailyRotation AssignmentStrategy = "daily_rotation"
)

// IsValid checks if the assignment strategy value is valid
func (s AssignmentStrategy) IsValid() bool {
	switch s {
	case StrategyContinuousSingle, StrategyContinuousTeam, StrategyBlockBased, StrategyDailyRotation:
		return true
	}
	return false
}

// IsContinuity reports whether the strategy binds a student to a previously
// used preceptor or team.
func (s AssignmentStrategy) IsContinuity() bool {
	return s == StrategyContinuousSingle || s == StrategyContinuousTeam
}

// HealthSystemRule controls whether assignments must stay within one system.
type HealthSystemRule string

const (
	HealthSystemEnforce      HealthSystemRule = "enforce_same_system"
	HealthSystemPrefer       HealthSystemRule = "prefer_same_system"
	HealthSystemNoPreference HealthSystemRule = "no_preference"
)

// IsValid checks if the health system rule value is valid
func (r HealthSystemRule) IsValid() bool {
	switch r {
	case HealthSystemEnforce, HealthSystemPrefer, HealthSystemNoPreference:
		return true
	}
	return false
}

// RequirementOverrides holds the per-requirement override columns. Nil means
// "not overridden" and is only meaningful under override_fields; under
// override_section every field must be non-nil.
type RequirementOverrides struct {
	Strategy           *AssignmentStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	HealthSystemRule   *HealthSystemRule   `json:"health_system_rule,omitempty" yaml:"health_system_rule,omitempty"`
	MaxStudentsPerDay  *int                `json:"max_students_per_day,omitempty" yaml:"max_students_per_day,omitempty"`
	MaxPerYear         *int                `json:"max_per_year,omitempty" yaml:"max_per_year,omitempty"`
	MaxPerBlock        *int                `json:"max_per_block,omitempty" yaml:"max_per_block,omitempty"`
	BlockSizeDays      *int                `json:"block_size_days,omitempty" yaml:"block_size_days,omitempty"`
	AllowPartialBlocks *bool               `json:"allow_partial_blocks,omitempty" yaml:"allow_partial_blocks,omitempty"`
	TeamsAllowed       *bool               `json:"teams_allowed,omitempty" yaml:"teams_allowed,omitempty"`
	TeamMinDays        *int                `json:"team_min_days,omitempty" yaml:"team_min_days,omitempty"`
	TeamMaxDays        *int                `json:"team_max_days,omitempty" yaml:"team_max_days,omitempty"`
	FallbackAllowed    *bool               `json:"fallback_allowed,omitempty" yaml:"fallback_allowed,omitempty"`
	FallbackApproval   *bool               `json:"fallback_approval,omitempty" yaml:"fallback_approval,omitempty"`
	FallbackCrossSys   *bool               `json:"fallback_cross_system,omitempty" yaml:"fallback_cross_system,omitempty"`
}

// ClerkshipRequirement binds a clerkship to a requirement type with its own
// day count and configuration override mode.
type ClerkshipRequirement struct {
	ClerkshipID  string               `json:"clerkship_id" yaml:"clerkship_id" validate:"required"`
	Type         RequirementType      `json:"type" yaml:"type" validate:"required"`
	RequiredDays int                  `json:"required_days" yaml:"required_days" validate:"min=0"`
	OverrideMode OverrideMode         `json:"override_mode" yaml:"override_mode" validate:"required"`
	Overrides    RequirementOverrides `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// Validate checks if the requirement has valid field values
func (r *ClerkshipRequirement) Validate() error {
	if r.ClerkshipID == "" {
		return fmt.Errorf("clerkship_id is required")
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("invalid requirement type: %s", r.Type)
	}
	if !r.OverrideMode.IsValid() {
		return fmt.Errorf("invalid override mode: %s", r.OverrideMode)
	}
	if r.RequiredDays < 0 {
		return fmt.Errorf("required_days cannot be negative (got %d)", r.RequiredDays)
	}
	return nil
}

// GlobalDefaults is the baseline configuration for one requirement type.
// One row exists per requirement type; every overridable field has a value.
type GlobalDefaults struct {
	Type               RequirementType    `json:"type" yaml:"type" validate:"required"`
	Strategy           AssignmentStrategy `json:"strategy" yaml:"strategy" validate:"required"`
	HealthSystemRule   HealthSystemRule   `json:"health_system_rule" yaml:"health_system_rule" validate:"required"`
	MaxStudentsPerDay  int                `json:"max_students_per_day" yaml:"max_students_per_day" validate:"min=1"`
	MaxPerYear         int                `json:"max_per_year" yaml:"max_per_year" validate:"min=0"`
	MaxPerBlock        int                `json:"max_per_block" yaml:"max_per_block" validate:"min=0"`
	BlockSizeDays      int                `json:"block_size_days" yaml:"block_size_days" validate:"min=0"`
	AllowPartialBlocks bool               `json:"allow_partial_blocks" yaml:"allow_partial_blocks"`
	TeamsAllowed       bool               `json:"teams_allowed" yaml:"teams_allowed"`
	TeamMinDays        int                `json:"team_min_days" yaml:"team_min_days" validate:"min=0"`
	TeamMaxDays        int                `json:"team_max_days" yaml:"team_max_days" validate:"min=0"`
	FallbackAllowed    bool               `json:"fallback_allowed" yaml:"fallback_allowed"`
	FallbackApproval   bool               `json:"fallback_approval" yaml:"fallback_approval"`
	FallbackCrossSys   bool               `json:"fallback_cross_system" yaml:"fallback_cross_system"`
}

// Validate checks if the defaults row has valid field values
func (g *GlobalDefaults) Validate() error {
	if !g.Type.IsValid() {
		return fmt.Errorf("invalid requirement type: %s", g.Type)
	}
	if !g.Strategy.IsValid() {
		return fmt.Errorf("invalid strategy: %s", g.Strategy)
	}
	if !g.HealthSystemRule.IsValid() {
		return fmt.Errorf("invalid health system rule: %s", g.HealthSystemRule)
	}
	if g.MaxStudentsPerDay < 1 {
		return fmt.Errorf("max_students_per_day must be at least 1 (got %d)", g.MaxStudentsPerDay)
	}
	return nil
}
