package teams

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrota/clinrota/internal/availability"
	"github.com/clinrota/clinrota/internal/capacity"
	"github.com/clinrota/clinrota/internal/types"
)

func date(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func blockPattern(preceptorID, siteID string) types.AvailabilityPattern {
	return types.AvailabilityPattern{
		ID:          "pat-" + preceptorID,
		PreceptorID: preceptorID,
		SiteID:      siteID,
		Type:        types.PatternBlock,
		StartDate:   date(1),
		EndDate:     date(31),
		Available:   true,
		Enabled:     true,
	}
}

func testPreceptors() []types.Preceptor {
	return []types.Preceptor{
		{ID: "doc-a", Specialty: "medicine", HealthSystemID: "hs-1", SiteIDs: []string{"site-1"}},
		{ID: "doc-b", Specialty: "medicine", HealthSystemID: "hs-1", SiteIDs: []string{"site-1"}},
		{ID: "doc-c", Specialty: "medicine", HealthSystemID: "hs-2", SiteIDs: []string{"site-2"}},
	}
}

func flatCeilings(c capacity.Ceilings) func(string) capacity.Ceilings {
	return func(string) capacity.Ceilings { return c }
}

func TestResolveTeamForNoHistory(t *testing.T) {
	r := NewResolver(nil, nil, testPreceptors(), availability.NewResolver(nil))
	assert.Nil(t, r.ResolveTeamFor("clk-1", nil))
}

func TestResolveTeamForSoloPreceptor(t *testing.T) {
	r := NewResolver(nil, nil, testPreceptors(), availability.NewResolver(nil))
	history := []types.ScheduleAssignment{
		{StudentID: "stu-1", PreceptorID: "doc-a", ClerkshipID: "clk-1", Date: date(6)},
		{StudentID: "stu-1", PreceptorID: "doc-a", ClerkshipID: "clk-1", Date: date(7)},
	}
	c := r.ResolveTeamFor("clk-1", history)
	require.NotNil(t, c)
	assert.Equal(t, "doc-a", c.PreceptorID)
	assert.Nil(t, c.Team)
	assert.Equal(t, 2, c.Days)
}

func TestResolveTeamForTeamMember(t *testing.T) {
	team := types.Team{
		ID:          "team-1",
		ClerkshipID: "clk-1",
		Members: []types.TeamMember{
			{PreceptorID: "doc-a", Priority: 1},
			{PreceptorID: "doc-b", Priority: 2},
		},
	}
	r := NewResolver([]types.Team{team}, nil, testPreceptors(), availability.NewResolver(nil))

	// Latest assignment is with doc-b; days with any member of doc-b's team count.
	history := []types.ScheduleAssignment{
		{StudentID: "stu-1", PreceptorID: "doc-a", ClerkshipID: "clk-1", Date: date(6)},
		{StudentID: "stu-1", PreceptorID: "doc-b", ClerkshipID: "clk-1", Date: date(7)},
		{StudentID: "stu-1", PreceptorID: "doc-b", ClerkshipID: "clk-1", Date: date(8)},
	}
	c := r.ResolveTeamFor("clk-1", history)
	require.NotNil(t, c)
	assert.Equal(t, "doc-b", c.PreceptorID)
	require.NotNil(t, c.Team)
	assert.Equal(t, "team-1", c.Team.ID)
	assert.Equal(t, 3, c.Days)
}

func TestNextFallbackWalksChainInOrder(t *testing.T) {
	chain := types.FallbackChain{
		ID:        "fb-1",
		PrimaryID: "doc-a",
		Entries: []types.FallbackEntry{
			{PreceptorID: "doc-b", Order: 1},
			{PreceptorID: "doc-c", Order: 2, AllowCrossSystem: true},
		},
	}
	avail := availability.NewResolver([]types.AvailabilityPattern{
		blockPattern("doc-b", "site-1"),
		blockPattern("doc-c", "site-2"),
	})
	r := NewResolver(nil, []types.FallbackChain{chain}, testPreceptors(), avail)

	q := FallbackQuery{
		PrimaryID:   "doc-a",
		ClerkshipID: "clk-1",
		StudentID:   "stu-1",
		Date:        date(6),
		Ceilings:    flatCeilings(capacity.Ceilings{PerDay: 1}),
		Ledger:      capacity.NewLedger(),
	}

	fb, ok := r.NextFallback(q)
	require.True(t, ok)
	assert.Equal(t, "doc-b", fb.PreceptorID)
	assert.Equal(t, "site-1", fb.SiteID)

	// doc-b saturated: chain advances to doc-c.
	q.Ledger.Record("doc-b", "stu-9", date(6), "")
	fb, ok = r.NextFallback(q)
	require.True(t, ok)
	assert.Equal(t, "doc-c", fb.PreceptorID)

	// Both saturated: chain exhausts without error.
	q.Ledger.Record("doc-c", "stu-9", date(6), "")
	_, ok = r.NextFallback(q)
	assert.False(t, ok)
}

func TestNextFallbackSkipsExcludedAndUnapproved(t *testing.T) {
	chain := types.FallbackChain{
		ID:        "fb-1",
		PrimaryID: "doc-a",
		Entries: []types.FallbackEntry{
			{PreceptorID: "doc-b", Order: 1, RequiresApproval: true},
			{PreceptorID: "doc-c", Order: 2, AllowCrossSystem: true},
		},
	}
	avail := availability.NewResolver([]types.AvailabilityPattern{
		blockPattern("doc-b", "site-1"),
		blockPattern("doc-c", "site-2"),
	})
	r := NewResolver(nil, []types.FallbackChain{chain}, testPreceptors(), avail)

	q := FallbackQuery{
		PrimaryID:   "doc-a",
		ClerkshipID: "clk-1",
		StudentID:   "stu-1",
		Date:        date(6),
		Ceilings:    flatCeilings(capacity.Ceilings{PerDay: 1}),
		Ledger:      capacity.NewLedger(),
	}

	// Approval not granted: doc-b is skipped.
	fb, ok := r.NextFallback(q)
	require.True(t, ok)
	assert.Equal(t, "doc-c", fb.PreceptorID)

	// Approval granted: doc-b is back in play.
	q.Approved = map[string]bool{"doc-b": true}
	fb, ok = r.NextFallback(q)
	require.True(t, ok)
	assert.Equal(t, "doc-b", fb.PreceptorID)

	// Excluded beats approved.
	q.Excluded = map[string]struct{}{"doc-b": {}}
	fb, ok = r.NextFallback(q)
	require.True(t, ok)
	assert.Equal(t, "doc-c", fb.PreceptorID)
}

func TestNextFallbackCrossSystem(t *testing.T) {
	chain := types.FallbackChain{
		ID:        "fb-1",
		PrimaryID: "doc-a",
		Entries: []types.FallbackEntry{
			// doc-c is in hs-2 and may not cross systems.
			{PreceptorID: "doc-c", Order: 1, AllowCrossSystem: false},
		},
	}
	avail := availability.NewResolver([]types.AvailabilityPattern{
		blockPattern("doc-c", "site-2"),
	})
	r := NewResolver(nil, []types.FallbackChain{chain}, testPreceptors(), avail)

	q := FallbackQuery{
		PrimaryID:   "doc-a",
		ClerkshipID: "clk-1",
		StudentID:   "stu-1",
		Date:        date(6),
		SystemID:    "hs-1",
		Ceilings:    flatCeilings(capacity.Ceilings{PerDay: 1}),
		Ledger:      capacity.NewLedger(),
	}

	_, ok := r.NextFallback(q)
	assert.False(t, ok, "system mismatch with cross-system forbidden")

	// No system binding: the mismatch is moot.
	q.SystemID = ""
	_, ok = r.NextFallback(q)
	assert.True(t, ok)
}

func TestNextFallbackScopedChainPrecedence(t *testing.T) {
	scoped := types.FallbackChain{
		ID:          "fb-scoped",
		PrimaryID:   "doc-a",
		ClerkshipID: strPtr("clk-1"),
		Entries:     []types.FallbackEntry{{PreceptorID: "doc-b", Order: 1}},
	}
	unscoped := types.FallbackChain{
		ID:        "fb-unscoped",
		PrimaryID: "doc-a",
		Entries:   []types.FallbackEntry{{PreceptorID: "doc-c", Order: 1, AllowCrossSystem: true}},
	}
	avail := availability.NewResolver([]types.AvailabilityPattern{
		blockPattern("doc-b", "site-1"),
		blockPattern("doc-c", "site-2"),
	})
	r := NewResolver(nil, []types.FallbackChain{scoped, unscoped}, testPreceptors(), avail)

	q := FallbackQuery{
		PrimaryID:   "doc-a",
		ClerkshipID: "clk-1",
		StudentID:   "stu-1",
		Date:        date(6),
		Ceilings:    flatCeilings(capacity.Ceilings{PerDay: 1}),
		Ledger:      capacity.NewLedger(),
	}

	fb, ok := r.NextFallback(q)
	require.True(t, ok)
	assert.Equal(t, "doc-b", fb.PreceptorID, "clerkship-scoped chain wins")

	// Another clerkship falls back to the unscoped chain.
	q.ClerkshipID = "clk-2"
	fb, ok = r.NextFallback(q)
	require.True(t, ok)
	assert.Equal(t, "doc-c", fb.PreceptorID)
}

func TestNextFallbackNoChain(t *testing.T) {
	r := NewResolver(nil, nil, testPreceptors(), availability.NewResolver(nil))
	_, ok := r.NextFallback(FallbackQuery{PrimaryID: "doc-a", ClerkshipID: "clk-1", Date: date(6)})
	assert.False(t, ok)
}
