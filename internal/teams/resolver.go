// Package teams resolves continuity bindings and fallback chains.
//
// Continuity keeps a student with the preceptor or team they already started
// a clerkship with. Fallback chains substitute an ordered list of covering
// preceptors when a primary is unavailable or saturated.
package teams

import (
	"time"

	"github.com/clinrota/clinrota/internal/availability"
	"github.com/clinrota/clinrota/internal/capacity"
	"github.com/clinrota/clinrota/internal/types"
)

// Continuity is an existing binding between a student and a preceptor
// (and possibly that preceptor's team) within a clerkship.
type Continuity struct {
	// PreceptorID is the most recently assigned preceptor.
	PreceptorID string
	// Team is the team the preceptor belongs to, nil for solo preceptors.
	Team *types.Team
	// Days is how many days the student has already spent with the
	// preceptor's team (or the preceptor alone when there is no team).
	Days int
}

// Fallback is a usable substitute found by walking a fallback chain.
type Fallback struct {
	PreceptorID string
	SiteID      string
}

// FallbackQuery carries everything needed to evaluate a chain walk for one
// student on one day.
type FallbackQuery struct {
	PrimaryID   string
	ClerkshipID string
	StudentID   string
	Date        time.Time
	// Excluded preceptors are skipped outright (already tried, saturated).
	Excluded map[string]struct{}
	// Approved marks chain entries whose required approval has been
	// granted. The approval workflow itself lives outside the engine.
	Approved map[string]bool
	// RequireApproval treats every entry as approval-gated, regardless of
	// the entry's own flag. Set by fallback policy configuration.
	RequireApproval bool
	// ForbidCrossSys overrides entry-level cross-system permission, for
	// configurations that never allow leaving the bound system.
	ForbidCrossSys bool
	// SystemID is the health system the student is bound to, empty when
	// no binding applies. Entries that forbid crossing systems must match.
	SystemID string
	// BlockKey and Ceilings feed the capacity check for each candidate.
	BlockKey string
	Ceilings func(preceptorID string) capacity.Ceilings
	Ledger   *capacity.Ledger
}

// Resolver answers continuity and fallback queries over fixed team and
// chain sets.
type Resolver struct {
	teamsByClerkship map[string][]*types.Team
	memberTeams      map[string][]*types.Team // clerkship + "\x00" + preceptor -> teams
	scoped           map[string][]*types.FallbackChain
	unscoped         map[string][]*types.FallbackChain
	preceptors       map[string]*types.Preceptor
	avail            *availability.Resolver
}

// NewResolver builds a resolver over teams and fallback chains.
func NewResolver(teamList []types.Team, chains []types.FallbackChain, preceptors []types.Preceptor, avail *availability.Resolver) *Resolver {
	r := &Resolver{
		teamsByClerkship: make(map[string][]*types.Team),
		memberTeams:      make(map[string][]*types.Team),
		scoped:           make(map[string][]*types.FallbackChain),
		unscoped:         make(map[string][]*types.FallbackChain),
		preceptors:       make(map[string]*types.Preceptor, len(preceptors)),
		avail:            avail,
	}
	for i := range teamList {
		t := &teamList[i]
		r.teamsByClerkship[t.ClerkshipID] = append(r.teamsByClerkship[t.ClerkshipID], t)
		for _, m := range t.Members {
			k := t.ClerkshipID + "\x00" + m.PreceptorID
			r.memberTeams[k] = append(r.memberTeams[k], t)
		}
	}
	for i := range chains {
		c := &chains[i]
		if c.ClerkshipID != nil {
			r.scoped[*c.ClerkshipID+"\x00"+c.PrimaryID] = append(r.scoped[*c.ClerkshipID+"\x00"+c.PrimaryID], c)
		} else {
			r.unscoped[c.PrimaryID] = append(r.unscoped[c.PrimaryID], c)
		}
	}
	for i := range preceptors {
		r.preceptors[preceptors[i].ID] = &preceptors[i]
	}
	return r
}

// TeamOf returns the first team the preceptor belongs to within a clerkship,
// or nil.
func (r *Resolver) TeamOf(clerkshipID, preceptorID string) *types.Team {
	ts := r.memberTeams[clerkshipID+"\x00"+preceptorID]
	if len(ts) == 0 {
		return nil
	}
	return ts[0]
}

// ResolveTeamFor inspects a student's assignment history within one
// clerkship and returns the continuity binding, or nil when the student has
// no history there. The caller supplies only the student's own assignments
// for the clerkship.
func (r *Resolver) ResolveTeamFor(clerkshipID string, history []types.ScheduleAssignment) *Continuity {
	if len(history) == 0 {
		return nil
	}
	latest := history[0]
	for _, a := range history[1:] {
		if a.Date.After(latest.Date) {
			latest = a
		}
	}

	team := r.TeamOf(clerkshipID, latest.PreceptorID)
	days := 0
	for _, a := range history {
		if a.PreceptorID == latest.PreceptorID || (team != nil && team.HasMember(a.PreceptorID)) {
			days++
		}
	}
	return &Continuity{PreceptorID: latest.PreceptorID, Team: team, Days: days}
}

// NextFallback walks the ordered fallback chain for a primary preceptor and
// returns the first entry that survives exclusion, approval, cross-system,
// availability, and capacity checks. A clerkship-scoped chain takes
// precedence; without one the unscoped chain applies. Exhausting the chain
// returns no fallback, not an error.
func (r *Resolver) NextFallback(q FallbackQuery) (Fallback, bool) {
	chain := r.chainFor(q.PrimaryID, q.ClerkshipID)
	if chain == nil {
		return Fallback{}, false
	}
	for _, e := range chain.Entries {
		if _, skip := q.Excluded[e.PreceptorID]; skip {
			continue
		}
		if (e.RequiresApproval || q.RequireApproval) && !q.Approved[e.PreceptorID] {
			continue
		}
		p, ok := r.preceptors[e.PreceptorID]
		if !ok {
			continue
		}
		crossAllowed := e.AllowCrossSystem && !q.ForbidCrossSys
		if !crossAllowed && q.SystemID != "" && p.HealthSystemID != q.SystemID {
			continue
		}
		siteID, ok := r.avail.AvailableAnywhere(e.PreceptorID, p.SiteIDs, q.Date)
		if !ok {
			continue
		}
		if q.Ledger != nil && !q.Ledger.CanTake(e.PreceptorID, q.StudentID, q.Date, q.BlockKey, q.Ceilings(e.PreceptorID)) {
			continue
		}
		return Fallback{PreceptorID: e.PreceptorID, SiteID: siteID}, true
	}
	return Fallback{}, false
}

func (r *Resolver) chainFor(primaryID, clerkshipID string) *types.FallbackChain {
	if cs := r.scoped[clerkshipID+"\x00"+primaryID]; len(cs) > 0 {
		return cs[0]
	}
	if cs := r.unscoped[primaryID]; len(cs) > 0 {
		return cs[0]
	}
	return nil
}
