package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clinrota/clinrota/internal/snapshot"
	"github.com/clinrota/clinrota/internal/types"
)

// Import replaces every reference collection with the snapshot's contents in
// one transaction. Schedule assignments are not touched; they belong to the
// generation lifecycle, not the import lifecycle.
func (s *SQLiteStorage) Import(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("refusing import: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{
			"students", "health_systems", "sites", "preceptors",
			"clerkships", "clerkship_requirements", "global_defaults",
			"availability_patterns", "capacity_rules", "teams",
			"fallback_chains", "fallback_approvals", "blackout_dates",
		} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		for _, st := range snap.Students {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO students (id, name, email) VALUES (?, ?, ?)`,
				st.ID, st.Name, st.Email); err != nil {
				return fmt.Errorf("failed to insert student %s: %w", st.ID, err)
			}
		}
		for _, hs := range snap.HealthSystems {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO health_systems (id, name) VALUES (?, ?)`,
				hs.ID, hs.Name); err != nil {
				return fmt.Errorf("failed to insert health system %s: %w", hs.ID, err)
			}
		}
		for _, site := range snap.Sites {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sites (id, name, health_system_id, site_type) VALUES (?, ?, ?, ?)`,
				site.ID, site.Name, site.HealthSystemID, string(site.Type)); err != nil {
				return fmt.Errorf("failed to insert site %s: %w", site.ID, err)
			}
		}
		for _, p := range snap.Preceptors {
			siteIDs, err := json.Marshal(p.SiteIDs)
			if err != nil {
				return fmt.Errorf("failed to marshal site ids for %s: %w", p.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO preceptors
				 (id, name, specialty, health_system_id, site_ids, max_students_per_day, max_per_year)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.Name, p.Specialty, p.HealthSystemID, string(siteIDs),
				p.MaxStudentsPerDay, p.MaxPerYear); err != nil {
				return fmt.Errorf("failed to insert preceptor %s: %w", p.ID, err)
			}
		}
		for _, c := range snap.Clerkships {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO clerkships (id, name, specialty, clerkship_type, required_days)
				 VALUES (?, ?, ?, ?, ?)`,
				c.ID, c.Name, c.Specialty, c.Type, c.RequiredDays); err != nil {
				return fmt.Errorf("failed to insert clerkship %s: %w", c.ID, err)
			}
		}
		for _, r := range snap.Requirements {
			overrides, err := json.Marshal(r.Overrides)
			if err != nil {
				return fmt.Errorf("failed to marshal overrides for %s/%s: %w", r.ClerkshipID, r.Type, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO clerkship_requirements
				 (clerkship_id, requirement_type, required_days, override_mode, overrides)
				 VALUES (?, ?, ?, ?, ?)`,
				r.ClerkshipID, string(r.Type), r.RequiredDays, string(r.OverrideMode),
				string(overrides)); err != nil {
				return fmt.Errorf("failed to insert requirement %s/%s: %w", r.ClerkshipID, r.Type, err)
			}
		}
		for _, d := range snap.Defaults {
			cfg, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("failed to marshal defaults for %s: %w", d.Type, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO global_defaults (requirement_type, config) VALUES (?, ?)`,
				string(d.Type), string(cfg)); err != nil {
				return fmt.Errorf("failed to insert defaults for %s: %w", d.Type, err)
			}
		}
		for _, p := range snap.Patterns {
			cfg, err := json.Marshal(p.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal pattern config for %s: %w", p.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO availability_patterns
				 (id, preceptor_id, site_id, pattern_type, config, start_date, end_date,
				  available, specificity, enabled, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.PreceptorID, p.SiteID, string(p.Type), string(cfg),
				types.DateKey(p.StartDate), types.DateKey(p.EndDate),
				boolToInt(p.Available), p.Specificity, boolToInt(p.Enabled),
				formatTime(p.CreatedAt)); err != nil {
				return fmt.Errorf("failed to insert pattern %s: %w", p.ID, err)
			}
		}
		for _, r := range snap.CapacityRules {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO capacity_rules
				 (id, preceptor_id, clerkship_id, requirement_type,
				  max_per_day, max_per_year, max_per_block, max_blocks_per_year)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, r.PreceptorID, nullString(r.ClerkshipID), nullTypeString(r.Type),
				r.MaxPerDay, r.MaxPerYear, r.MaxPerBlock, r.MaxBlocksYear); err != nil {
				return fmt.Errorf("failed to insert capacity rule %s: %w", r.ID, err)
			}
		}
		for _, t := range snap.Teams {
			members, err := json.Marshal(t.Members)
			if err != nil {
				return fmt.Errorf("failed to marshal members for team %s: %w", t.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO teams
				 (id, clerkship_id, name, same_health_system, same_site, same_specialty, members)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				t.ID, t.ClerkshipID, t.Name, boolToInt(t.SameHealthSystem),
				boolToInt(t.SameSite), boolToInt(t.SameSpecialty), string(members)); err != nil {
				return fmt.Errorf("failed to insert team %s: %w", t.ID, err)
			}
		}
		for _, c := range snap.FallbackChains {
			entries, err := json.Marshal(c.Entries)
			if err != nil {
				return fmt.Errorf("failed to marshal entries for chain %s: %w", c.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO fallback_chains (id, primary_id, clerkship_id, entries)
				 VALUES (?, ?, ?, ?)`,
				c.ID, c.PrimaryID, nullString(c.ClerkshipID), string(entries)); err != nil {
				return fmt.Errorf("failed to insert fallback chain %s: %w", c.ID, err)
			}
		}
		for preceptorID, approved := range snap.Approvals {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO fallback_approvals (preceptor_id, approved) VALUES (?, ?)`,
				preceptorID, boolToInt(approved)); err != nil {
				return fmt.Errorf("failed to insert approval for %s: %w", preceptorID, err)
			}
		}
		for _, b := range snap.Blackouts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO blackout_dates (date, reason) VALUES (?, ?)`,
				types.DateKey(b.Date), b.Reason); err != nil {
				return fmt.Errorf("failed to insert blackout %s: %w", types.DateKey(b.Date), err)
			}
		}
		return nil
	})
}

// LoadSnapshot prefetches every collection concurrently. WAL mode keeps
// concurrent readers cheap; *sql.DB is safe for concurrent use.
func (s *SQLiteStorage) LoadSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	snap := &snapshot.Snapshot{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) { snap.Students, err = s.loadStudents(ctx); return })
	g.Go(func() (err error) { snap.HealthSystems, err = s.loadHealthSystems(ctx); return })
	g.Go(func() (err error) { snap.Sites, err = s.loadSites(ctx); return })
	g.Go(func() (err error) { snap.Preceptors, err = s.loadPreceptors(ctx); return })
	g.Go(func() (err error) { snap.Clerkships, err = s.loadClerkships(ctx); return })
	g.Go(func() (err error) { snap.Requirements, err = s.loadRequirements(ctx); return })
	g.Go(func() (err error) { snap.Defaults, err = s.loadDefaults(ctx); return })
	g.Go(func() (err error) { snap.Patterns, err = s.loadPatterns(ctx); return })
	g.Go(func() (err error) { snap.CapacityRules, err = s.loadCapacityRules(ctx); return })
	g.Go(func() (err error) { snap.Teams, err = s.loadTeams(ctx); return })
	g.Go(func() (err error) { snap.FallbackChains, err = s.loadFallbackChains(ctx); return })
	g.Go(func() (err error) { snap.Approvals, err = s.loadApprovals(ctx); return })
	g.Go(func() (err error) { snap.Blackouts, err = s.loadBlackouts(ctx); return })
	g.Go(func() (err error) { snap.Assignments, err = s.loadAssignments(ctx); return })

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStorage) loadStudents(ctx context.Context) ([]types.Student, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var out []types.Student
	for rows.Next() {
		var st types.Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Email); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadHealthSystems(ctx context.Context) ([]types.HealthSystem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM health_systems ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query health systems: %w", err)
	}
	defer rows.Close()

	var out []types.HealthSystem
	for rows.Next() {
		var hs types.HealthSystem
		if err := rows.Scan(&hs.ID, &hs.Name); err != nil {
			return nil, fmt.Errorf("failed to scan health system: %w", err)
		}
		out = append(out, hs)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadSites(ctx context.Context) ([]types.Site, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, health_system_id, site_type FROM sites ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var out []types.Site
	for rows.Next() {
		var site types.Site
		var siteType string
		if err := rows.Scan(&site.ID, &site.Name, &site.HealthSystemID, &siteType); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		site.Type = types.SiteType(siteType)
		out = append(out, site)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadPreceptors(ctx context.Context) ([]types.Preceptor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, specialty, health_system_id, site_ids, max_students_per_day, max_per_year
		 FROM preceptors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query preceptors: %w", err)
	}
	defer rows.Close()

	var out []types.Preceptor
	for rows.Next() {
		var p types.Preceptor
		var siteIDs string
		if err := rows.Scan(&p.ID, &p.Name, &p.Specialty, &p.HealthSystemID,
			&siteIDs, &p.MaxStudentsPerDay, &p.MaxPerYear); err != nil {
			return nil, fmt.Errorf("failed to scan preceptor: %w", err)
		}
		if err := json.Unmarshal([]byte(siteIDs), &p.SiteIDs); err != nil {
			return nil, fmt.Errorf("failed to parse site ids for %s: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadClerkships(ctx context.Context) ([]types.Clerkship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, specialty, clerkship_type, required_days FROM clerkships ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clerkships: %w", err)
	}
	defer rows.Close()

	var out []types.Clerkship
	for rows.Next() {
		var c types.Clerkship
		if err := rows.Scan(&c.ID, &c.Name, &c.Specialty, &c.Type, &c.RequiredDays); err != nil {
			return nil, fmt.Errorf("failed to scan clerkship: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadRequirements(ctx context.Context) ([]types.ClerkshipRequirement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT clerkship_id, requirement_type, required_days, override_mode, overrides
		 FROM clerkship_requirements ORDER BY clerkship_id, requirement_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query requirements: %w", err)
	}
	defer rows.Close()

	var out []types.ClerkshipRequirement
	for rows.Next() {
		var r types.ClerkshipRequirement
		var reqType, mode, overrides string
		if err := rows.Scan(&r.ClerkshipID, &reqType, &r.RequiredDays, &mode, &overrides); err != nil {
			return nil, fmt.Errorf("failed to scan requirement: %w", err)
		}
		r.Type = types.RequirementType(reqType)
		r.OverrideMode = types.OverrideMode(mode)
		if err := json.Unmarshal([]byte(overrides), &r.Overrides); err != nil {
			return nil, fmt.Errorf("failed to parse overrides for %s/%s: %w", r.ClerkshipID, r.Type, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadDefaults(ctx context.Context) ([]types.GlobalDefaults, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT config FROM global_defaults ORDER BY requirement_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query defaults: %w", err)
	}
	defer rows.Close()

	var out []types.GlobalDefaults
	for rows.Next() {
		var cfg string
		if err := rows.Scan(&cfg); err != nil {
			return nil, fmt.Errorf("failed to scan defaults: %w", err)
		}
		var d types.GlobalDefaults
		if err := json.Unmarshal([]byte(cfg), &d); err != nil {
			return nil, fmt.Errorf("failed to parse defaults: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadPatterns(ctx context.Context) ([]types.AvailabilityPattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, preceptor_id, site_id, pattern_type, config, start_date, end_date,
		        available, specificity, enabled, created_at
		 FROM availability_patterns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var out []types.AvailabilityPattern
	for rows.Next() {
		var p types.AvailabilityPattern
		var patternType, cfg, start, end, created string
		var available, enabled int
		if err := rows.Scan(&p.ID, &p.PreceptorID, &p.SiteID, &patternType, &cfg,
			&start, &end, &available, &p.Specificity, &enabled, &created); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		p.Type = types.PatternType(patternType)
		if err := json.Unmarshal([]byte(cfg), &p.Config); err != nil {
			return nil, fmt.Errorf("failed to parse config for pattern %s: %w", p.ID, err)
		}
		if p.StartDate, err = parseDate(start); err != nil {
			return nil, fmt.Errorf("failed to parse start date for pattern %s: %w", p.ID, err)
		}
		if p.EndDate, err = parseDate(end); err != nil {
			return nil, fmt.Errorf("failed to parse end date for pattern %s: %w", p.ID, err)
		}
		if p.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("failed to parse created_at for pattern %s: %w", p.ID, err)
		}
		p.Available = available != 0
		p.Enabled = enabled != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadCapacityRules(ctx context.Context) ([]types.CapacityRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, preceptor_id, clerkship_id, requirement_type,
		        max_per_day, max_per_year, max_per_block, max_blocks_per_year
		 FROM capacity_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query capacity rules: %w", err)
	}
	defer rows.Close()

	var out []types.CapacityRule
	for rows.Next() {
		var r types.CapacityRule
		var clerkshipID, reqType sql.NullString
		if err := rows.Scan(&r.ID, &r.PreceptorID, &clerkshipID, &reqType,
			&r.MaxPerDay, &r.MaxPerYear, &r.MaxPerBlock, &r.MaxBlocksYear); err != nil {
			return nil, fmt.Errorf("failed to scan capacity rule: %w", err)
		}
		if clerkshipID.Valid {
			r.ClerkshipID = &clerkshipID.String
		}
		if reqType.Valid {
			t := types.RequirementType(reqType.String)
			r.Type = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadTeams(ctx context.Context) ([]types.Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, clerkship_id, name, same_health_system, same_site, same_specialty, members
		 FROM teams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var out []types.Team
	for rows.Next() {
		var t types.Team
		var sameSystem, sameSite, sameSpecialty int
		var members string
		if err := rows.Scan(&t.ID, &t.ClerkshipID, &t.Name,
			&sameSystem, &sameSite, &sameSpecialty, &members); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		t.SameHealthSystem = sameSystem != 0
		t.SameSite = sameSite != 0
		t.SameSpecialty = sameSpecialty != 0
		if err := json.Unmarshal([]byte(members), &t.Members); err != nil {
			return nil, fmt.Errorf("failed to parse members for team %s: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadFallbackChains(ctx context.Context) ([]types.FallbackChain, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, primary_id, clerkship_id, entries FROM fallback_chains ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fallback chains: %w", err)
	}
	defer rows.Close()

	var out []types.FallbackChain
	for rows.Next() {
		var c types.FallbackChain
		var clerkshipID sql.NullString
		var entries string
		if err := rows.Scan(&c.ID, &c.PrimaryID, &clerkshipID, &entries); err != nil {
			return nil, fmt.Errorf("failed to scan fallback chain: %w", err)
		}
		if clerkshipID.Valid {
			c.ClerkshipID = &clerkshipID.String
		}
		if err := json.Unmarshal([]byte(entries), &c.Entries); err != nil {
			return nil, fmt.Errorf("failed to parse entries for chain %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadApprovals(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT preceptor_id, approved FROM fallback_approvals`)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		var approved int
		if err := rows.Scan(&id, &approved); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		out[id] = approved != 0
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadBlackouts(ctx context.Context) ([]types.BlackoutDate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, reason FROM blackout_dates ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query blackouts: %w", err)
	}
	defer rows.Close()

	var out []types.BlackoutDate
	for rows.Next() {
		var b types.BlackoutDate
		var date string
		if err := rows.Scan(&date, &b.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan blackout: %w", err)
		}
		if b.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("failed to parse blackout date: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullTypeString(t *types.RequirementType) interface{} {
	if t == nil {
		return nil
	}
	return string(*t)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(types.DateLayout, s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
