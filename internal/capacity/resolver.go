// Package capacity resolves preceptor capacity ceilings through a
// most-specific-wins rule hierarchy and tracks consumption during a
// generation run.
package capacity

import (
	"github.com/clinrota/clinrota/internal/types"
)

// DefaultMaxPerDay applies when neither a rule nor the preceptor's own
// defaults set a per-day ceiling. Days never stack without an explicit
// ceiling; years and blocks do.
const DefaultMaxPerDay = 1

// Ceilings are the effective capacity limits for one lookup. Zero means
// unlimited for every dimension except PerDay, which is always at least 1.
type Ceilings struct {
	PerDay        int
	PerYear       int
	PerBlock      int
	BlocksPerYear int
	// RuleID identifies the rule that produced the ceilings, empty when
	// the preceptor's absolute defaults applied.
	RuleID string
}

// Resolver answers capacity lookups over a fixed rule set.
type Resolver struct {
	byPreceptor map[string][]*types.CapacityRule
	preceptors  map[string]*types.Preceptor
}

// NewResolver builds a resolver over the rules and preceptor defaults.
func NewResolver(rules []types.CapacityRule, preceptors []types.Preceptor) *Resolver {
	byP := make(map[string][]*types.CapacityRule)
	for i := range rules {
		r := &rules[i]
		byP[r.PreceptorID] = append(byP[r.PreceptorID], r)
	}
	pm := make(map[string]*types.Preceptor, len(preceptors))
	for i := range preceptors {
		pm[preceptors[i].ID] = &preceptors[i]
	}
	return &Resolver{byPreceptor: byP, preceptors: pm}
}

// Resolve finds the most specific rule for (preceptor, clerkship,
// requirement type) and returns its ceilings. Lookup order: exact clerkship
// and type, then clerkship only, then preceptor only, then the preceptor's
// absolute defaults.
func (r *Resolver) Resolve(preceptorID, clerkshipID string, reqType types.RequirementType) Ceilings {
	rules := r.byPreceptor[preceptorID]

	if rule := findRule(rules, func(c *types.CapacityRule) bool {
		return c.ClerkshipID != nil && *c.ClerkshipID == clerkshipID &&
			c.Type != nil && *c.Type == reqType
	}); rule != nil {
		return fromRule(rule)
	}
	if rule := findRule(rules, func(c *types.CapacityRule) bool {
		return c.ClerkshipID != nil && *c.ClerkshipID == clerkshipID && c.Type == nil
	}); rule != nil {
		return fromRule(rule)
	}
	if rule := findRule(rules, func(c *types.CapacityRule) bool {
		return c.ClerkshipID == nil && c.Type == nil
	}); rule != nil {
		return fromRule(rule)
	}

	return r.preceptorDefaults(preceptorID)
}

func findRule(rules []*types.CapacityRule, match func(*types.CapacityRule) bool) *types.CapacityRule {
	for _, rule := range rules {
		if match(rule) {
			return rule
		}
	}
	return nil
}

func fromRule(rule *types.CapacityRule) Ceilings {
	c := Ceilings{
		PerDay:        rule.MaxPerDay,
		PerYear:       rule.MaxPerYear,
		PerBlock:      rule.MaxPerBlock,
		BlocksPerYear: rule.MaxBlocksYear,
		RuleID:        rule.ID,
	}
	if c.PerDay == 0 {
		c.PerDay = DefaultMaxPerDay
	}
	return c
}

func (r *Resolver) preceptorDefaults(preceptorID string) Ceilings {
	c := Ceilings{PerDay: DefaultMaxPerDay}
	if p, ok := r.preceptors[preceptorID]; ok {
		if p.MaxStudentsPerDay > 0 {
			c.PerDay = p.MaxStudentsPerDay
		}
		c.PerYear = p.MaxPerYear
	}
	return c
}
