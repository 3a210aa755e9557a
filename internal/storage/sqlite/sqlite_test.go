package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrota/clinrota/internal/snapshot"
	"github.com/clinrota/clinrota/internal/types"
)

func testStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "clinrota.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot() *snapshot.Snapshot {
	day := func(d int) time.Time {
		return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
	}
	clerkshipScope := "clk-1"
	reqScope := types.RequirementInpatient
	maxPerYear := 20
	return &snapshot.Snapshot{
		Students: []types.Student{
			{ID: "stu-1", Name: "Alice Nguyen", Email: "alice@example.edu"},
			{ID: "stu-2", Name: "Ben Ortiz"},
		},
		HealthSystems: []types.HealthSystem{{ID: "hs-1", Name: "Lakeside Health"}},
		Sites: []types.Site{
			{ID: "site-1", Name: "Lakeside Clinic", HealthSystemID: "hs-1", Type: types.SiteClinic},
		},
		Preceptors: []types.Preceptor{
			{ID: "doc-p", Name: "Dr. Patel", Specialty: "medicine", HealthSystemID: "hs-1",
				SiteIDs: []string{"site-1"}, MaxStudentsPerDay: 2, MaxPerYear: 10},
		},
		Clerkships: []types.Clerkship{
			{ID: "clk-1", Name: "Internal Medicine", Specialty: "medicine", RequiredDays: 5},
		},
		Requirements: []types.ClerkshipRequirement{
			{ClerkshipID: "clk-1", Type: types.RequirementInpatient, RequiredDays: 5,
				OverrideMode: types.OverrideFields,
				Overrides:    types.RequirementOverrides{MaxPerYear: &maxPerYear}},
		},
		Defaults: []types.GlobalDefaults{
			{Type: types.RequirementInpatient, Strategy: types.StrategyDailyRotation,
				HealthSystemRule: types.HealthSystemNoPreference, MaxStudentsPerDay: 1},
		},
		Patterns: []types.AvailabilityPattern{
			{ID: "pat-1", PreceptorID: "doc-p", SiteID: "site-1", Type: types.PatternWeekly,
				Config:    types.PatternConfig{DayMask: 0x1F},
				StartDate: day(1), EndDate: day(31), Available: true, Enabled: true,
				CreatedAt: time.Date(2024, time.December, 1, 9, 30, 0, 0, time.UTC)},
		},
		CapacityRules: []types.CapacityRule{
			{ID: "cap-1", PreceptorID: "doc-p", ClerkshipID: &clerkshipScope,
				Type: &reqScope, MaxPerDay: 2, MaxPerYear: 8},
		},
		Teams: []types.Team{
			{ID: "team-1", ClerkshipID: "clk-1", Name: "Ward A", SameHealthSystem: true,
				Members: []types.TeamMember{{PreceptorID: "doc-p", Priority: 1}}},
		},
		FallbackChains: []types.FallbackChain{
			{ID: "fb-1", PrimaryID: "doc-p",
				Entries: []types.FallbackEntry{{PreceptorID: "doc-p", Order: 1, RequiresApproval: true}}},
		},
		Approvals: map[string]bool{"doc-p": true},
		Blackouts: []types.BlackoutDate{{Date: day(15), Reason: "conference"}},
	}
}

func TestImportAndLoadSnapshotRoundTrip(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	snap := testSnapshot()
	require.NoError(t, s.Import(ctx, snap))

	loaded, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, snap.Students, loaded.Students)
	assert.Equal(t, snap.HealthSystems, loaded.HealthSystems)
	assert.Equal(t, snap.Sites, loaded.Sites)
	assert.Equal(t, snap.Preceptors, loaded.Preceptors)
	assert.Equal(t, snap.Clerkships, loaded.Clerkships)
	assert.Equal(t, snap.Requirements, loaded.Requirements)
	assert.Equal(t, snap.Defaults, loaded.Defaults)
	assert.Equal(t, snap.Patterns, loaded.Patterns)
	assert.Equal(t, snap.CapacityRules, loaded.CapacityRules)
	assert.Equal(t, snap.Teams, loaded.Teams)
	assert.Equal(t, snap.FallbackChains, loaded.FallbackChains)
	assert.Equal(t, snap.Approvals, loaded.Approvals)
	assert.Equal(t, snap.Blackouts, loaded.Blackouts)
	assert.Empty(t, loaded.Assignments)
}

func TestImportReplacesPreviousCollections(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Import(ctx, testSnapshot()))

	second := testSnapshot()
	second.Students = []types.Student{{ID: "stu-9", Name: "Cam Diaz"}}
	require.NoError(t, s.Import(ctx, second))

	loaded, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Students, 1)
	assert.Equal(t, "stu-9", loaded.Students[0].ID)
}

func TestImportPreservesAssignments(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Import(ctx, testSnapshot()))
	require.NoError(t, s.UpsertAssignments(ctx, []types.ScheduleAssignment{
		testAssignment("asg-1", "stu-1", 6),
	}))

	require.NoError(t, s.Import(ctx, testSnapshot()))

	loaded, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Assignments, 1)
	assert.Equal(t, "asg-1", loaded.Assignments[0].ID)
}

func TestImportRejectsInvalidSnapshot(t *testing.T) {
	s := testStorage(t)

	snap := testSnapshot()
	snap.Patterns[0].Config.DayMask = 0
	err := s.Import(context.Background(), snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing import")
}

func testAssignment(id, studentID string, day int) types.ScheduleAssignment {
	return types.ScheduleAssignment{
		ID:          id,
		StudentID:   studentID,
		PreceptorID: "doc-p",
		ClerkshipID: "clk-1",
		Type:        types.RequirementInpatient,
		Date:        time.Date(2025, time.January, day, 0, 0, 0, 0, time.UTC),
		SiteID:      "site-1",
	}
}

func TestUpsertAndListAssignments(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAssignments(ctx, []types.ScheduleAssignment{
		testAssignment("asg-2", "stu-2", 7),
		testAssignment("asg-1", "stu-1", 6),
		testAssignment("asg-3", "stu-1", 8),
	}))

	listed, err := s.ListAssignments(ctx,
		time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "asg-1", listed[0].ID)
	assert.Equal(t, "asg-2", listed[1].ID)
	assert.Equal(t, types.AssignmentScheduled, listed[0].Status)
	assert.False(t, listed[0].CreatedAt.IsZero())
}

func TestUpsertUpdatesExistingAssignment(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	a := testAssignment("asg-1", "stu-1", 6)
	require.NoError(t, s.UpsertAssignments(ctx, []types.ScheduleAssignment{a}))

	a.Status = types.AssignmentCompleted
	require.NoError(t, s.UpsertAssignments(ctx, []types.ScheduleAssignment{a}))

	listed, err := s.ListAssignments(ctx, a.Date, a.Date)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, types.AssignmentCompleted, listed[0].Status)
}

func TestUpsertRejectsDuplicateStudentDay(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	err := s.UpsertAssignments(ctx, []types.ScheduleAssignment{
		testAssignment("asg-1", "stu-1", 6),
		testAssignment("asg-2", "stu-1", 6),
	})
	require.Error(t, err)

	// The failed batch must not have been partially applied.
	listed, err := s.ListAssignments(ctx,
		time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestDeleteAssignments(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAssignments(ctx, []types.ScheduleAssignment{
		testAssignment("asg-1", "stu-1", 6),
		testAssignment("asg-2", "stu-2", 6),
	}))
	require.NoError(t, s.DeleteAssignments(ctx, []string{"asg-1", "asg-missing"}))

	listed, err := s.ListAssignments(ctx,
		time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "asg-2", listed[0].ID)
}

func TestApplyResultReplacesWindow(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAssignments(ctx, []types.ScheduleAssignment{
		testAssignment("asg-1", "stu-1", 6),
		testAssignment("asg-2", "stu-2", 6),
	}))
	require.NoError(t, s.ApplyResult(ctx,
		[]string{"asg-1"},
		[]types.ScheduleAssignment{testAssignment("asg-3", "stu-1", 7)}))

	listed, err := s.ListAssignments(ctx,
		time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "asg-2", listed[0].ID)
	assert.Equal(t, "asg-3", listed[1].ID)
}

func TestApplyResultIsAtomic(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAssignments(ctx, []types.ScheduleAssignment{
		testAssignment("asg-1", "stu-1", 6),
		testAssignment("asg-2", "stu-2", 6),
	}))

	// The new batch collides with asg-2's (student, date) slot, so the
	// whole apply must roll back, deletion of asg-1 included.
	err := s.ApplyResult(ctx,
		[]string{"asg-1"},
		[]types.ScheduleAssignment{testAssignment("asg-9", "stu-2", 6)})
	require.Error(t, err)

	listed, err := s.ListAssignments(ctx,
		time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "asg-1", listed[0].ID)
	assert.Equal(t, "asg-2", listed[1].ID)
}

func TestAddBlackoutReportsConflicts(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAssignments(ctx, []types.ScheduleAssignment{
		testAssignment("asg-1", "stu-1", 6),
		testAssignment("asg-2", "stu-2", 6),
		testAssignment("asg-3", "stu-1", 7),
	}))

	conflicts, err := s.AddBlackout(ctx, types.BlackoutDate{
		Date:   time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
		Reason: "holiday",
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "asg-1", conflicts[0].ID)
	assert.Equal(t, "asg-2", conflicts[1].ID)

	loaded, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Blackouts, 1)
	assert.Equal(t, "holiday", loaded.Blackouts[0].Reason)
}

func TestAddBlackoutNoConflicts(t *testing.T) {
	s := testStorage(t)

	conflicts, err := s.AddBlackout(context.Background(), types.BlackoutDate{
		Date: time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}
