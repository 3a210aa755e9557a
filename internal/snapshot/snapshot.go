// Package snapshot defines the immutable input the engine consumes: every
// collection pre-fetched by the caller, plus the generation request.
package snapshot

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/clinrota/clinrota/internal/types"
)

// Request frames one generation or regeneration call.
type Request struct {
	Start time.Time `json:"start" yaml:"start" validate:"required"`
	End   time.Time `json:"end" yaml:"end" validate:"required"`
	// RegenerateFrom is the cutover date: assignments on or after it are
	// regenerable, assignments before it are immutable history. Nil means
	// plain generation.
	RegenerateFrom *time.Time `json:"regenerate_from,omitempty" yaml:"regenerate_from,omitempty"`
}

// Validate checks the request's date range.
func (r *Request) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("start and end are required")
	}
	if types.Day(r.End).Before(types.Day(r.Start)) {
		return fmt.Errorf("end %s is before start %s", types.DateKey(r.End), types.DateKey(r.Start))
	}
	if r.RegenerateFrom != nil && types.Day(*r.RegenerateFrom).After(types.Day(r.End)) {
		return fmt.Errorf("regenerate_from %s is after end %s", types.DateKey(*r.RegenerateFrom), types.DateKey(r.End))
	}
	return nil
}

// Snapshot is the full set of records a generation run reads. The engine
// treats it as immutable; all mutation happens in request-scoped state.
type Snapshot struct {
	Students       []types.Student              `json:"students" yaml:"students" validate:"dive"`
	Preceptors     []types.Preceptor            `json:"preceptors" yaml:"preceptors" validate:"dive"`
	Sites          []types.Site                 `json:"sites" yaml:"sites" validate:"dive"`
	HealthSystems  []types.HealthSystem         `json:"health_systems" yaml:"health_systems" validate:"dive"`
	Clerkships     []types.Clerkship            `json:"clerkships" yaml:"clerkships" validate:"dive"`
	Requirements   []types.ClerkshipRequirement `json:"requirements" yaml:"requirements"`
	Defaults       []types.GlobalDefaults       `json:"defaults" yaml:"defaults"`
	Patterns       []types.AvailabilityPattern  `json:"patterns" yaml:"patterns"`
	CapacityRules  []types.CapacityRule         `json:"capacity_rules" yaml:"capacity_rules"`
	Teams          []types.Team                 `json:"teams" yaml:"teams" validate:"dive"`
	FallbackChains []types.FallbackChain        `json:"fallback_chains" yaml:"fallback_chains" validate:"dive"`
	Blackouts      []types.BlackoutDate         `json:"blackouts" yaml:"blackouts"`
	Assignments    []types.ScheduleAssignment   `json:"assignments" yaml:"assignments"`

	// Approvals marks fallback preceptors whose approval requirement has
	// been granted by the caller's workflow.
	Approvals map[string]bool `json:"approvals,omitempty" yaml:"approvals,omitempty"`
}

var validate = validator.New()

// Validate checks structural validity of every collection: struct tags via
// the validator, then the per-record semantic checks. The engine assumes a
// snapshot that passed this.
func (s *Snapshot) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("snapshot validation: %w", err)
	}
	for i := range s.Requirements {
		if err := s.Requirements[i].Validate(); err != nil {
			return fmt.Errorf("requirement %d: %w", i, err)
		}
	}
	for i := range s.Defaults {
		if err := s.Defaults[i].Validate(); err != nil {
			return fmt.Errorf("defaults %d: %w", i, err)
		}
	}
	for i := range s.Patterns {
		if err := s.Patterns[i].Validate(); err != nil {
			return fmt.Errorf("pattern %s: %w", s.Patterns[i].ID, err)
		}
	}
	for i := range s.CapacityRules {
		if err := s.CapacityRules[i].Validate(); err != nil {
			return fmt.Errorf("capacity rule %s: %w", s.CapacityRules[i].ID, err)
		}
	}
	for i := range s.Assignments {
		if err := s.Assignments[i].Validate(); err != nil {
			return fmt.Errorf("assignment %s: %w", s.Assignments[i].ID, err)
		}
	}
	for i := range s.Teams {
		if err := s.validateTeam(&s.Teams[i]); err != nil {
			return fmt.Errorf("team %s: %w", s.Teams[i].ID, err)
		}
	}
	return nil
}

// validateTeam enforces the team's membership homogeneity flags against the
// snapshot's preceptors. The engine assumes teams that passed this.
func (s *Snapshot) validateTeam(t *types.Team) error {
	members := make([]*types.Preceptor, len(t.Members))
	for i, m := range t.Members {
		p := s.PreceptorByID(m.PreceptorID)
		if p == nil {
			return fmt.Errorf("member %s: unknown preceptor", m.PreceptorID)
		}
		members[i] = p
	}
	if len(members) == 0 {
		return nil
	}

	if t.SameHealthSystem {
		for _, p := range members[1:] {
			if p.HealthSystemID != members[0].HealthSystemID {
				return fmt.Errorf("same_health_system: member %s is in system %q, member %s in %q",
					p.ID, p.HealthSystemID, members[0].ID, members[0].HealthSystemID)
			}
		}
	}
	if t.SameSpecialty {
		for _, p := range members[1:] {
			if p.Specialty != members[0].Specialty {
				return fmt.Errorf("same_specialty: member %s practices %q, member %s %q",
					p.ID, p.Specialty, members[0].ID, members[0].Specialty)
			}
		}
	}
	if t.SameSite {
		shared := make(map[string]bool, len(members[0].SiteIDs))
		for _, s := range members[0].SiteIDs {
			shared[s] = true
		}
		for _, p := range members[1:] {
			next := make(map[string]bool)
			for _, s := range p.SiteIDs {
				if shared[s] {
					next[s] = true
				}
			}
			shared = next
		}
		if len(shared) == 0 {
			return fmt.Errorf("same_site: members share no site")
		}
	}
	return nil
}

// PreceptorByID returns the preceptor with the given id, or nil.
func (s *Snapshot) PreceptorByID(id string) *types.Preceptor {
	for i := range s.Preceptors {
		if s.Preceptors[i].ID == id {
			return &s.Preceptors[i]
		}
	}
	return nil
}

// SiteByID returns the site with the given id, or nil.
func (s *Snapshot) SiteByID(id string) *types.Site {
	for i := range s.Sites {
		if s.Sites[i].ID == id {
			return &s.Sites[i]
		}
	}
	return nil
}

// ClerkshipByID returns the clerkship with the given id, or nil.
func (s *Snapshot) ClerkshipByID(id string) *types.Clerkship {
	for i := range s.Clerkships {
		if s.Clerkships[i].ID == id {
			return &s.Clerkships[i]
		}
	}
	return nil
}

// BlackoutSet returns the blackout dates keyed by canonical day.
func (s *Snapshot) BlackoutSet() map[string]types.BlackoutDate {
	out := make(map[string]types.BlackoutDate, len(s.Blackouts))
	for _, b := range s.Blackouts {
		out[types.DateKey(b.Date)] = b
	}
	return out
}

// SystemOfSite returns the health system a site belongs to, empty when
// the site is unknown.
func (s *Snapshot) SystemOfSite(siteID string) string {
	if site := s.SiteByID(siteID); site != nil {
		return site.HealthSystemID
	}
	return ""
}
