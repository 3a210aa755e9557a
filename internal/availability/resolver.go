// Package availability resolves a preceptor's effective per-day availability
// from overlapping recurring patterns.
//
// Several patterns of different shapes (weekly, monthly, block, individual)
// may cover the same day for the same preceptor and site. Resolution is
// fail-closed: when nothing matches, the day is unavailable; when several
// patterns match, the most specific one wins, with creation time breaking
// ties.
package availability

import (
	"time"

	"github.com/clinrota/clinrota/internal/types"
)

// Resolution is the outcome of resolving one (preceptor, site, date) triple.
type Resolution struct {
	Available bool
	// Source is the pattern that decided the outcome, nil when no pattern
	// matched and the fail-closed default applied.
	Source *types.AvailabilityPattern
}

// Resolver answers per-day availability queries over a fixed pattern set.
type Resolver struct {
	// patterns indexed by preceptor id + "\x00" + site id
	byPreceptorSite map[string][]*types.AvailabilityPattern
}

func key(preceptorID, siteID string) string {
	return preceptorID + "\x00" + siteID
}

// NewResolver builds a resolver over the given pattern set. Disabled
// patterns are dropped at construction time.
func NewResolver(patterns []types.AvailabilityPattern) *Resolver {
	idx := make(map[string][]*types.AvailabilityPattern)
	for i := range patterns {
		p := &patterns[i]
		if !p.Enabled {
			continue
		}
		k := key(p.PreceptorID, p.SiteID)
		idx[k] = append(idx[k], p)
	}
	return &Resolver{byPreceptorSite: idx}
}

// Resolve returns the effective availability of a preceptor at a site on a
// calendar day. It never fails: a day no pattern speaks for is unavailable.
func (r *Resolver) Resolve(preceptorID, siteID string, date time.Time) Resolution {
	day := types.Day(date)

	var winner *types.AvailabilityPattern
	for _, p := range r.byPreceptorSite[key(preceptorID, siteID)] {
		if !p.Contains(day) || !r.matchesRecurrence(p, day) {
			continue
		}
		if winner == nil || beats(p, winner) {
			winner = p
		}
	}
	if winner == nil {
		return Resolution{Available: false}
	}
	return Resolution{Available: winner.Available, Source: winner}
}

// AvailableAnywhere reports whether the preceptor is available at any of the
// given sites on the day, returning the first site (in the given order) that
// resolves available.
func (r *Resolver) AvailableAnywhere(preceptorID string, siteIDs []string, date time.Time) (string, bool) {
	for _, siteID := range siteIDs {
		if res := r.Resolve(preceptorID, siteID, date); res.Available {
			return siteID, true
		}
	}
	return "", false
}

// beats reports whether pattern a takes precedence over pattern b for the
// same day. Higher specificity wins; at equal specificity an individual
// one-off beats any recurring shape; remaining ties go to the later-created
// pattern.
func beats(a, b *types.AvailabilityPattern) bool {
	as, bs := a.EffectiveSpecificity(), b.EffectiveSpecificity()
	if as != bs {
		return as > bs
	}
	aInd, bInd := a.Type == types.PatternIndividual, b.Type == types.PatternIndividual
	if aInd != bInd {
		return aInd
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// matchesRecurrence checks the pattern's type-specific recurrence rule
// against a day already known to be inside the pattern's date range.
func (r *Resolver) matchesRecurrence(p *types.AvailabilityPattern, day time.Time) bool {
	switch p.Type {
	case types.PatternWeekly:
		return p.Config.MaskHasDay(day.Weekday())
	case types.PatternMonthly:
		return matchesMonthly(p.Config, day)
	case types.PatternBlock:
		if p.Config.ExcludeWeekends && isWeekend(day) {
			return false
		}
		return true
	case types.PatternIndividual:
		return true
	default:
		return false
	}
}

func matchesMonthly(cfg types.PatternConfig, day time.Time) bool {
	if len(cfg.DaysOfMonth) > 0 {
		for _, d := range cfg.DaysOfMonth {
			if day.Day() == d {
				return true
			}
		}
		return false
	}
	switch cfg.WeekOfMonth {
	case types.WeekOfMonthFirst:
		return day.Day() <= 7
	case types.WeekOfMonthLast:
		return day.Day() > daysInMonth(day)-7
	default:
		return false
	}
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func daysInMonth(day time.Time) int {
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}
