package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinrota/clinrota/internal/types"
)

func strPtr(s string) *string                                { return &s }
func typePtr(t types.RequirementType) *types.RequirementType { return &t }

func testRules() []types.CapacityRule {
	return []types.CapacityRule{
		{
			ID:          "rule-exact",
			PreceptorID: "doc-1",
			ClerkshipID: strPtr("clk-1"),
			Type:        typePtr(types.RequirementInpatient),
			MaxPerDay:   3,
			MaxPerYear:  30,
		},
		{
			ID:          "rule-clerkship",
			PreceptorID: "doc-1",
			ClerkshipID: strPtr("clk-1"),
			MaxPerDay:   2,
			MaxPerBlock: 4,
		},
		{
			ID:          "rule-preceptor",
			PreceptorID: "doc-1",
			MaxPerDay:   1,
			MaxPerYear:  10,
		},
	}
}

func testPreceptors() []types.Preceptor {
	return []types.Preceptor{
		{ID: "doc-1", Specialty: "pediatrics", SiteIDs: []string{"site-1"}},
		{ID: "doc-2", Specialty: "surgery", SiteIDs: []string{"site-1"}, MaxStudentsPerDay: 4, MaxPerYear: 20},
	}
}

func TestResolveMostSpecificWins(t *testing.T) {
	r := NewResolver(testRules(), testPreceptors())

	tests := []struct {
		name        string
		clerkshipID string
		reqType     types.RequirementType
		wantRule    string
		wantPerDay  int
	}{
		{"exact scope", "clk-1", types.RequirementInpatient, "rule-exact", 3},
		{"clerkship scope for other type", "clk-1", types.RequirementOutpatient, "rule-clerkship", 2},
		{"preceptor scope for other clerkship", "clk-2", types.RequirementInpatient, "rule-preceptor", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := r.Resolve("doc-1", tt.clerkshipID, tt.reqType)
			assert.Equal(t, tt.wantRule, c.RuleID)
			assert.Equal(t, tt.wantPerDay, c.PerDay)
		})
	}
}

func TestResolvePreceptorDefaults(t *testing.T) {
	r := NewResolver(testRules(), testPreceptors())

	// doc-2 has no rules; its own absolute defaults apply.
	c := r.Resolve("doc-2", "clk-1", types.RequirementInpatient)
	assert.Empty(t, c.RuleID)
	assert.Equal(t, 4, c.PerDay)
	assert.Equal(t, 20, c.PerYear)
}

func TestResolveUnknownPreceptorPerDayDefaultsToOne(t *testing.T) {
	r := NewResolver(nil, nil)
	c := r.Resolve("doc-9", "clk-1", types.RequirementInpatient)
	assert.Equal(t, DefaultMaxPerDay, c.PerDay)
	assert.Zero(t, c.PerYear, "unset per-year ceiling means unlimited")
	assert.Zero(t, c.PerBlock, "unset per-block ceiling means unlimited")
}

func TestResolveRuleWithUnsetPerDayDefaultsToOne(t *testing.T) {
	r := NewResolver([]types.CapacityRule{{
		ID:          "rule-year-only",
		PreceptorID: "doc-3",
		MaxPerYear:  12,
	}}, nil)
	c := r.Resolve("doc-3", "clk-1", types.RequirementElective)
	assert.Equal(t, "rule-year-only", c.RuleID)
	assert.Equal(t, DefaultMaxPerDay, c.PerDay, "per-day never silently goes unlimited")
	assert.Equal(t, 12, c.PerYear)
}
