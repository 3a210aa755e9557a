package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinrota/clinrota/internal/availability"
	"github.com/clinrota/clinrota/internal/capacity"
	"github.com/clinrota/clinrota/internal/requirements"
	"github.com/clinrota/clinrota/internal/snapshot"
	"github.com/clinrota/clinrota/internal/teams"
	"github.com/clinrota/clinrota/internal/types"
)

// reqStatus is the per-(student, requirement) state machine.
type reqStatus string

const (
	reqPending   reqStatus = "pending"
	reqSatisfied reqStatus = "satisfied"
	reqBlocked   reqStatus = "blocked"
)

// reqState tracks one student's progress against one requirement.
type reqState struct {
	studentID string
	cfg       requirements.EffectiveConfig
	remaining int
	status    reqStatus
}

// run is the request-scoped state of one generation pass. All mutation
// during generation lives here; the snapshot stays untouched.
type run struct {
	snap *snapshot.Snapshot
	req  snapshot.Request

	avail *availability.Resolver
	caps  *capacity.Resolver
	teams *teams.Resolver

	ledger *capacity.Ledger

	states    []*reqState
	byStudent map[string][]*reqState

	// booked tracks occupied (student, date) slots, seeded from kept
	// assignments and updated as new ones are created.
	booked map[string]bool
	// windowDays counts booked days per student inside the window, used
	// to rotate students fairly through scarce capacity.
	windowDays map[string]int
	// history holds each student's kept assignments per clerkship for
	// continuity resolution.
	history map[string][]types.ScheduleAssignment
	// bound holds the health system a student is anchored to per
	// clerkship, set by their earliest assignment there.
	bound     map[string]string
	boundDate map[string]time.Time

	kept    []types.ScheduleAssignment
	removed []types.ScheduleAssignment

	genStart time.Time
	genEnd   time.Time
	result   *Result
}

func slotKey(studentID string, date time.Time) string {
	return studentID + "|" + types.DateKey(date)
}

func pairKey(studentID, clerkshipID string) string {
	return studentID + "|" + clerkshipID
}

// newRun validates the request, resolves all effective configurations (fail
// fast on configuration errors), and seeds request-scoped state from the
// assignments the run must preserve.
func newRun(snap *snapshot.Snapshot, req snapshot.Request) (*run, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	r := &run{
		snap:       snap,
		req:        req,
		avail:      availability.NewResolver(snap.Patterns),
		caps:       capacity.NewResolver(snap.CapacityRules, snap.Preceptors),
		ledger:     capacity.NewLedger(),
		byStudent:  make(map[string][]*reqState),
		booked:     make(map[string]bool),
		windowDays: make(map[string]int),
		history:    make(map[string][]types.ScheduleAssignment),
		bound:      make(map[string]string),
		boundDate:  make(map[string]time.Time),
		result:     &Result{},
	}
	r.teams = teams.NewResolver(snap.Teams, snap.FallbackChains, snap.Preceptors, r.avail)

	r.genStart = types.Day(req.Start)
	r.genEnd = types.Day(req.End)
	if req.RegenerateFrom != nil {
		cut := types.Day(*req.RegenerateFrom)
		if cut.After(r.genStart) {
			r.genStart = cut
		}
	}

	// Resolve every (clerkship, requirement) configuration up front so a
	// broken override surfaces before any assignment is produced.
	cfgResolver := requirements.NewResolver(snap.Defaults, snap.Requirements)
	var configs []requirements.EffectiveConfig
	for i := range snap.Clerkships {
		for _, reqRow := range cfgResolver.Requirements(snap.Clerkships[i].ID) {
			cfg, err := cfgResolver.Resolve(reqRow.ClerkshipID, reqRow.Type)
			if err != nil {
				return nil, err
			}
			configs = append(configs, cfg)
		}
	}

	r.partitionAssignments()
	r.seedFromKept(configs)
	r.buildStates(configs)
	return r, nil
}

// partitionAssignments splits existing assignments at the cutover date.
// Without a cutover everything is kept; with one, assignments on or after
// it are discarded and reported for deletion.
func (r *run) partitionAssignments() {
	if r.req.RegenerateFrom == nil {
		r.kept = r.snap.Assignments
		return
	}
	cut := types.Day(*r.req.RegenerateFrom)
	for _, a := range r.snap.Assignments {
		if types.Day(a.Date).Before(cut) {
			r.kept = append(r.kept, a)
		} else {
			r.removed = append(r.removed, a)
		}
	}
}

// seedFromKept charges kept assignments against the ledger and records the
// slots, history, and health-system bindings they establish.
func (r *run) seedFromKept(configs []requirements.EffectiveConfig) {
	blockSize := make(map[string]int, len(configs))
	for _, cfg := range configs {
		blockSize[cfg.ClerkshipID+"|"+string(cfg.Type)] = cfg.BlockSizeDays
	}

	for _, a := range r.kept {
		day := types.Day(a.Date)
		bk := capacity.BlockKey(a.ClerkshipID, r.req.Start, day, blockSize[a.ClerkshipID+"|"+string(a.Type)])
		r.ledger.Record(a.PreceptorID, a.StudentID, day, bk)
		r.booked[slotKey(a.StudentID, day)] = true
		if !day.Before(types.Day(r.req.Start)) && !day.After(r.genEnd) {
			r.windowDays[a.StudentID]++
		}

		pk := pairKey(a.StudentID, a.ClerkshipID)
		r.history[pk] = append(r.history[pk], a)
		if prev, ok := r.boundDate[pk]; !ok || day.Before(prev) {
			if sys := r.snap.SystemOfSite(a.SiteID); sys != "" {
				r.bound[pk] = sys
				r.boundDate[pk] = day
			}
		}
	}
}

// buildStates creates the per-(student, requirement) state machine entries,
// crediting days already earned by kept assignments.
func (r *run) buildStates(configs []requirements.EffectiveConfig) {
	credited := make(map[string]int)
	for _, a := range r.kept {
		credited[a.StudentID+"|"+a.ClerkshipID+"|"+string(a.Type)]++
	}

	students := make([]types.Student, len(r.snap.Students))
	copy(students, r.snap.Students)
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })

	for _, stu := range students {
		for _, cfg := range configs {
			remaining := cfg.RequiredDays - credited[stu.ID+"|"+cfg.ClerkshipID+"|"+string(cfg.Type)]
			if remaining < 0 {
				remaining = 0
			}
			st := &reqState{
				studentID: stu.ID,
				cfg:       cfg,
				remaining: remaining,
				status:    reqPending,
			}
			if remaining == 0 {
				st.status = reqSatisfied
			}
			r.states = append(r.states, st)
			r.byStudent[stu.ID] = append(r.byStudent[stu.ID], st)
		}
	}

	// Deterministic requirement order per student: clerkship, then the
	// canonical requirement-type order.
	typeIndex := make(map[types.RequirementType]int)
	for i, t := range types.RequirementTypes() {
		typeIndex[t] = i
	}
	for _, sts := range r.byStudent {
		sort.Slice(sts, func(i, j int) bool {
			if sts[i].cfg.ClerkshipID != sts[j].cfg.ClerkshipID {
				return sts[i].cfg.ClerkshipID < sts[j].cfg.ClerkshipID
			}
			return typeIndex[sts[i].cfg.Type] < typeIndex[sts[j].cfg.Type]
		})
	}
}

// execute runs the date-ordered single forward pass and the post-merge
// consistency verification.
func (r *run) execute() (*Result, error) {
	blackouts := r.snap.BlackoutSet()

	for day := r.genStart; !day.After(r.genEnd); day = day.AddDate(0, 0, 1) {
		if _, blocked := blackouts[types.DateKey(day)]; blocked {
			continue
		}
		r.scheduleDay(day)
	}

	for _, st := range r.states {
		if st.status == reqPending && st.remaining > 0 {
			st.status = reqBlocked
			r.result.Shortfalls = append(r.result.Shortfalls, Shortfall{
				StudentID:   st.studentID,
				ClerkshipID: st.cfg.ClerkshipID,
				Type:        st.cfg.Type,
				Days:        st.remaining,
			})
		}
	}

	if err := r.verifyMerged(); err != nil {
		return nil, err
	}
	r.result.Removed = r.removed
	return r.result, nil
}

// scheduleDay places at most one assignment per student for one date.
// Students with the fewest booked days in the window go first so scarce
// capacity rotates instead of starving later students.
func (r *run) scheduleDay(day time.Time) {
	order := make([]string, 0, len(r.byStudent))
	for id := range r.byStudent {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		if r.windowDays[order[i]] != r.windowDays[order[j]] {
			return r.windowDays[order[i]] < r.windowDays[order[j]]
		}
		return order[i] < order[j]
	})

	for _, studentID := range order {
		if r.booked[slotKey(studentID, day)] {
			// One assignment per student per day, no matter how many
			// requirements remain pending.
			continue
		}
		pending := false
		placed := false
		for _, st := range r.byStudent[studentID] {
			if st.status != reqPending || st.remaining == 0 {
				continue
			}
			pending = true
			if r.trySchedule(st, day) {
				placed = true
				break
			}
		}
		if pending && !placed {
			r.result.Unassigned = append(r.result.Unassigned, UnassignedDay{StudentID: studentID, Date: day})
		}
	}
}

// trySchedule attempts to place one student against one requirement on one
// day. Returns false when no eligible preceptor exists, which is a normal
// outcome, not an error.
func (r *run) trySchedule(st *reqState, day time.Time) bool {
	clerkship := r.snap.ClerkshipByID(st.cfg.ClerkshipID)
	if clerkship == nil {
		return false
	}
	blockKey := capacity.BlockKey(st.cfg.ClerkshipID, r.req.Start, day, st.cfg.BlockSizeDays)
	systemID := r.bound[pairKey(st.studentID, st.cfg.ClerkshipID)]

	preceptorID, siteID, ok := r.pickCandidate(st, clerkship, day, blockKey, systemID)
	if !ok {
		return false
	}
	r.assign(st, preceptorID, siteID, day, blockKey)
	return true
}

// pickCandidate finds the best eligible preceptor for a student-requirement
// on a day: continuity binding first, then the ranked candidate list, then
// fallback chains of blocked candidates.
func (r *run) pickCandidate(st *reqState, clerkship *types.Clerkship, day time.Time, blockKey, systemID string) (string, string, bool) {
	cfg := st.cfg

	// Continuity: keep the student with their established preceptor or
	// team until the day bounds release them.
	if cfg.Strategy.IsContinuity() {
		cont := r.teams.ResolveTeamFor(cfg.ClerkshipID, r.history[pairKey(st.studentID, cfg.ClerkshipID)])
		if cont != nil {
			released := cfg.TeamMaxDays > 0 && cont.Days >= cfg.TeamMaxDays
			if !released {
				if p, site, ok := r.tryContinuity(cont, st, day, blockKey, systemID); ok {
					return p, site, true
				}
				if cont.Days < cfg.TeamMinDays {
					// The binding has not accumulated its minimum days,
					// so the student may not move elsewhere. The day
					// stays unassigned rather than breaking the binding.
					return "", "", false
				}
			}
		}
	}

	candidates := r.rankedCandidates(st, clerkship, day, systemID)
	excluded := make(map[string]struct{})
	for _, cand := range candidates {
		if site, ok := r.eligibleSite(cand, st, day, blockKey, systemID); ok {
			return cand.ID, site, true
		}
		excluded[cand.ID] = struct{}{}

		if !cfg.FallbackAllowed {
			continue
		}
		fb, ok := r.teams.NextFallback(teams.FallbackQuery{
			PrimaryID:       cand.ID,
			ClerkshipID:     cfg.ClerkshipID,
			StudentID:       st.studentID,
			Date:            day,
			Excluded:        excluded,
			Approved:        r.snap.Approvals,
			RequireApproval: cfg.FallbackApproval,
			ForbidCrossSys:  !cfg.FallbackCrossSys,
			SystemID:        systemID,
			BlockKey:        blockKey,
			Ceilings: func(id string) capacity.Ceilings {
				return r.caps.Resolve(id, cfg.ClerkshipID, cfg.Type)
			},
			Ledger: r.ledger,
		})
		if !ok {
			continue
		}
		if cfg.HealthSystemRule == types.HealthSystemEnforce && systemID != "" &&
			r.snap.SystemOfSite(fb.SiteID) != systemID {
			excluded[fb.PreceptorID] = struct{}{}
			continue
		}
		return fb.PreceptorID, fb.SiteID, true
	}
	return "", "", false
}

// tryContinuity attempts the student's continuity preceptor, then (for team
// strategies) the rest of the team in priority order.
func (r *run) tryContinuity(cont *teams.Continuity, st *reqState, day time.Time, blockKey, systemID string) (string, string, bool) {
	if p := r.snap.PreceptorByID(cont.PreceptorID); p != nil {
		if site, ok := r.eligibleSite(p, st, day, blockKey, systemID); ok {
			return p.ID, site, true
		}
	}

	if st.cfg.Strategy == types.StrategyContinuousTeam && cont.Team != nil && st.cfg.TeamsAllowed {
		members := make([]types.TeamMember, len(cont.Team.Members))
		copy(members, cont.Team.Members)
		sort.Slice(members, func(i, j int) bool {
			if members[i].Priority != members[j].Priority {
				return members[i].Priority < members[j].Priority
			}
			return members[i].PreceptorID < members[j].PreceptorID
		})
		for _, m := range members {
			if m.PreceptorID == cont.PreceptorID {
				continue
			}
			p := r.snap.PreceptorByID(m.PreceptorID)
			if p == nil {
				continue
			}
			if site, ok := r.eligibleSite(p, st, day, blockKey, systemID); ok {
				return p.ID, site, true
			}
		}
	}
	return "", "", false
}

// rankedCandidates lists specialty-matched preceptors in deterministic
// preference order: same-system candidates first under prefer_same_system,
// then most remaining daily headroom, then lowest id.
func (r *run) rankedCandidates(st *reqState, clerkship *types.Clerkship, day time.Time, systemID string) []*types.Preceptor {
	var cands []*types.Preceptor
	for i := range r.snap.Preceptors {
		p := &r.snap.Preceptors[i]
		if p.Specialty == clerkship.Specialty {
			cands = append(cands, p)
		}
	}

	prefer := st.cfg.HealthSystemRule == types.HealthSystemPrefer && systemID != ""
	headroom := func(p *types.Preceptor) int {
		ceil := r.caps.Resolve(p.ID, st.cfg.ClerkshipID, st.cfg.Type)
		return r.ledger.Headroom(p.ID, day, ceil.PerDay)
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if prefer {
			am, bm := a.HealthSystemID == systemID, b.HealthSystemID == systemID
			if am != bm {
				return am
			}
		}
		ha, hb := headroom(a), headroom(b)
		if ha != hb {
			return ha > hb
		}
		return a.ID < b.ID
	})
	return cands
}

// eligibleSite returns a site where the preceptor can take the student on
// the day: under capacity, available, and compatible with the student's
// health-system binding.
func (r *run) eligibleSite(p *types.Preceptor, st *reqState, day time.Time, blockKey, systemID string) (string, bool) {
	ceil := r.caps.Resolve(p.ID, st.cfg.ClerkshipID, st.cfg.Type)
	if !r.ledger.CanTake(p.ID, st.studentID, day, blockKey, ceil) {
		return "", false
	}

	sites := make([]string, 0, len(p.SiteIDs))
	switch st.cfg.HealthSystemRule {
	case types.HealthSystemEnforce:
		for _, s := range p.SiteIDs {
			if systemID == "" || r.snap.SystemOfSite(s) == systemID {
				sites = append(sites, s)
			}
		}
	case types.HealthSystemPrefer:
		// Same-system sites first, keeping declared order within each half.
		if systemID != "" {
			for _, s := range p.SiteIDs {
				if r.snap.SystemOfSite(s) == systemID {
					sites = append(sites, s)
				}
			}
			for _, s := range p.SiteIDs {
				if r.snap.SystemOfSite(s) != systemID {
					sites = append(sites, s)
				}
			}
		} else {
			sites = append(sites, p.SiteIDs...)
		}
	default:
		sites = append(sites, p.SiteIDs...)
	}

	for _, s := range sites {
		if r.avail.Resolve(p.ID, s, day).Available {
			return s, true
		}
	}
	return "", false
}

// assign creates the assignment and updates every piece of request-scoped
// state it touches. Assignment ids are content-derived so identical runs
// emit identical batches.
func (r *run) assign(st *reqState, preceptorID, siteID string, day time.Time, blockKey string) {
	a := types.ScheduleAssignment{
		ID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(
			"clinrota:"+st.studentID+"|"+preceptorID+"|"+st.cfg.ClerkshipID+"|"+string(st.cfg.Type)+"|"+types.DateKey(day),
		)).String(),
		StudentID:   st.studentID,
		PreceptorID: preceptorID,
		ClerkshipID: st.cfg.ClerkshipID,
		Type:        st.cfg.Type,
		Date:        day,
		SiteID:      siteID,
		Status:      types.AssignmentScheduled,
	}
	r.result.Assignments = append(r.result.Assignments, a)

	r.ledger.Record(preceptorID, st.studentID, day, blockKey)
	r.booked[slotKey(st.studentID, day)] = true
	r.windowDays[st.studentID]++

	pk := pairKey(st.studentID, st.cfg.ClerkshipID)
	r.history[pk] = append(r.history[pk], a)
	if _, ok := r.bound[pk]; !ok {
		if sys := r.snap.SystemOfSite(siteID); sys != "" {
			r.bound[pk] = sys
			r.boundDate[pk] = day
		}
	}

	st.remaining--
	if st.remaining == 0 {
		st.status = reqSatisfied
	}
}

// verifyMerged re-checks the merged (kept + generated) assignment set for
// invariant violations. Generation logic upstream should make this
// unreachable; a hit fails the whole run so nothing partial is persisted.
func (r *run) verifyMerged() error {
	slots := make(map[string]string)
	perDay := make(map[string]int)
	maxCeil := make(map[string]int)

	check := func(a types.ScheduleAssignment) error {
		sk := slotKey(a.StudentID, a.Date)
		if other, dup := slots[sk]; dup {
			return &ConsistencyError{Detail: fmt.Sprintf(
				"student %s assigned twice on %s (%s and %s)", a.StudentID, types.DateKey(a.Date), other, a.ID)}
		}
		slots[sk] = a.ID

		dk := a.PreceptorID + "|" + types.DateKey(a.Date)
		perDay[dk]++
		ceil := r.caps.Resolve(a.PreceptorID, a.ClerkshipID, a.Type).PerDay
		if ceil > maxCeil[dk] {
			maxCeil[dk] = ceil
		}
		return nil
	}

	for _, a := range r.kept {
		if err := check(a); err != nil {
			return err
		}
	}
	for _, a := range r.result.Assignments {
		if err := check(a); err != nil {
			return err
		}
	}
	for dk, n := range perDay {
		if n > maxCeil[dk] {
			return &ConsistencyError{Detail: fmt.Sprintf(
				"preceptor day %s holds %d assignments, ceiling is %d", dk, n, maxCeil[dk])}
		}
	}
	return nil
}
