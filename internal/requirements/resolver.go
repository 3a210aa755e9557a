// Package requirements resolves effective scheduling configuration for a
// (clerkship, requirement type) pair by merging global defaults with
// per-requirement overrides.
package requirements

import (
	"fmt"

	"github.com/clinrota/clinrota/internal/types"
)

// EffectiveConfig is the fully merged configuration the generator consumes.
// It is a plain value produced by a pure merge; identical inputs always
// yield identical output.
type EffectiveConfig struct {
	ClerkshipID  string
	Type         types.RequirementType
	RequiredDays int

	Strategy           types.AssignmentStrategy
	HealthSystemRule   types.HealthSystemRule
	MaxStudentsPerDay  int
	MaxPerYear         int
	MaxPerBlock        int
	BlockSizeDays      int
	AllowPartialBlocks bool
	TeamsAllowed       bool
	TeamMinDays        int
	TeamMaxDays        int
	FallbackAllowed    bool
	FallbackApproval   bool
	FallbackCrossSys   bool
}

// ConfigError reports a requirement whose override mode demands a field that
// was not supplied. It fails generation before any assignment is produced.
type ConfigError struct {
	ClerkshipID string
	Type        types.RequirementType
	Field       string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("requirement %s/%s: override_section requires field %q", e.ClerkshipID, e.Type, e.Field)
}

// Resolver merges global defaults with requirement overrides.
type Resolver struct {
	defaults     map[types.RequirementType]types.GlobalDefaults
	requirements map[string]map[types.RequirementType]types.ClerkshipRequirement
}

// NewResolver builds a resolver over the global defaults and requirement rows.
func NewResolver(defaults []types.GlobalDefaults, reqs []types.ClerkshipRequirement) *Resolver {
	d := make(map[types.RequirementType]types.GlobalDefaults, len(defaults))
	for _, g := range defaults {
		d[g.Type] = g
	}
	r := make(map[string]map[types.RequirementType]types.ClerkshipRequirement)
	for _, req := range reqs {
		if r[req.ClerkshipID] == nil {
			r[req.ClerkshipID] = make(map[types.RequirementType]types.ClerkshipRequirement)
		}
		r[req.ClerkshipID][req.Type] = req
	}
	return &Resolver{defaults: d, requirements: r}
}

// Requirements returns every requirement row for a clerkship in canonical
// requirement-type order.
func (r *Resolver) Requirements(clerkshipID string) []types.ClerkshipRequirement {
	var out []types.ClerkshipRequirement
	for _, t := range types.RequirementTypes() {
		if req, ok := r.requirements[clerkshipID][t]; ok {
			out = append(out, req)
		}
	}
	return out
}

// Resolve returns the effective configuration for one (clerkship,
// requirement type). A missing requirement row or missing global defaults is
// an error; an override_section row with any nil field is a *ConfigError.
func (r *Resolver) Resolve(clerkshipID string, reqType types.RequirementType) (EffectiveConfig, error) {
	req, ok := r.requirements[clerkshipID][reqType]
	if !ok {
		return EffectiveConfig{}, fmt.Errorf("no requirement %s for clerkship %s", reqType, clerkshipID)
	}
	defaults, ok := r.defaults[reqType]
	if !ok {
		return EffectiveConfig{}, fmt.Errorf("no global defaults for requirement type %s", reqType)
	}

	cfg := EffectiveConfig{
		ClerkshipID: clerkshipID,
		Type:        reqType,
		// required_days is the requirement's own, never inherited.
		RequiredDays: req.RequiredDays,

		Strategy:           defaults.Strategy,
		HealthSystemRule:   defaults.HealthSystemRule,
		MaxStudentsPerDay:  defaults.MaxStudentsPerDay,
		MaxPerYear:         defaults.MaxPerYear,
		MaxPerBlock:        defaults.MaxPerBlock,
		BlockSizeDays:      defaults.BlockSizeDays,
		AllowPartialBlocks: defaults.AllowPartialBlocks,
		TeamsAllowed:       defaults.TeamsAllowed,
		TeamMinDays:        defaults.TeamMinDays,
		TeamMaxDays:        defaults.TeamMaxDays,
		FallbackAllowed:    defaults.FallbackAllowed,
		FallbackApproval:   defaults.FallbackApproval,
		FallbackCrossSys:   defaults.FallbackCrossSys,
	}

	switch req.OverrideMode {
	case types.OverrideInherit:
		return cfg, nil
	case types.OverrideFields:
		applyFields(&cfg, req.Overrides)
		return cfg, nil
	case types.OverrideSection:
		if field := firstMissingField(req.Overrides); field != "" {
			return EffectiveConfig{}, &ConfigError{ClerkshipID: clerkshipID, Type: reqType, Field: field}
		}
		applyFields(&cfg, req.Overrides)
		return cfg, nil
	default:
		return EffectiveConfig{}, fmt.Errorf("requirement %s/%s: invalid override mode %q", clerkshipID, reqType, req.OverrideMode)
	}
}

// applyFields copies every non-nil override onto the config. Under
// override_section all fields are non-nil, so this doubles as the wholesale
// replacement path.
func applyFields(cfg *EffectiveConfig, o types.RequirementOverrides) {
	if o.Strategy != nil {
		cfg.Strategy = *o.Strategy
	}
	if o.HealthSystemRule != nil {
		cfg.HealthSystemRule = *o.HealthSystemRule
	}
	if o.MaxStudentsPerDay != nil {
		cfg.MaxStudentsPerDay = *o.MaxStudentsPerDay
	}
	if o.MaxPerYear != nil {
		cfg.MaxPerYear = *o.MaxPerYear
	}
	if o.MaxPerBlock != nil {
		cfg.MaxPerBlock = *o.MaxPerBlock
	}
	if o.BlockSizeDays != nil {
		cfg.BlockSizeDays = *o.BlockSizeDays
	}
	if o.AllowPartialBlocks != nil {
		cfg.AllowPartialBlocks = *o.AllowPartialBlocks
	}
	if o.TeamsAllowed != nil {
		cfg.TeamsAllowed = *o.TeamsAllowed
	}
	if o.TeamMinDays != nil {
		cfg.TeamMinDays = *o.TeamMinDays
	}
	if o.TeamMaxDays != nil {
		cfg.TeamMaxDays = *o.TeamMaxDays
	}
	if o.FallbackAllowed != nil {
		cfg.FallbackAllowed = *o.FallbackAllowed
	}
	if o.FallbackApproval != nil {
		cfg.FallbackApproval = *o.FallbackApproval
	}
	if o.FallbackCrossSys != nil {
		cfg.FallbackCrossSys = *o.FallbackCrossSys
	}
}

// firstMissingField returns the name of the first nil override field, or ""
// when every field is supplied. Field names match the override columns.
func firstMissingField(o types.RequirementOverrides) string {
	switch {
	case o.Strategy == nil:
		return "strategy"
	case o.HealthSystemRule == nil:
		return "health_system_rule"
	case o.MaxStudentsPerDay == nil:
		return "max_students_per_day"
	case o.MaxPerYear == nil:
		return "max_per_year"
	case o.MaxPerBlock == nil:
		return "max_per_block"
	case o.BlockSizeDays == nil:
		return "block_size_days"
	case o.AllowPartialBlocks == nil:
		return "allow_partial_blocks"
	case o.TeamsAllowed == nil:
		return "teams_allowed"
	case o.TeamMinDays == nil:
		return "team_min_days"
	case o.TeamMaxDays == nil:
		return "team_max_days"
	case o.FallbackAllowed == nil:
		return "fallback_allowed"
	case o.FallbackApproval == nil:
		return "fallback_approval"
	case o.FallbackCrossSys == nil:
		return "fallback_cross_system"
	}
	return ""
}
