package requirements

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrota/clinrota/internal/types"
)

func inpatientDefaults() types.GlobalDefaults {
	return types.GlobalDefaults{
		Type:              types.RequirementInpatient,
		Strategy:          types.StrategyContinuousSingle,
		HealthSystemRule:  types.HealthSystemPrefer,
		MaxStudentsPerDay: 2,
		MaxPerYear:        40,
		MaxPerBlock:       4,
		BlockSizeDays:     5,
		TeamsAllowed:      true,
		TeamMinDays:       3,
		TeamMaxDays:       10,
		FallbackAllowed:   true,
	}
}

func strategyPtr(s types.AssignmentStrategy) *types.AssignmentStrategy { return &s }
func rulePtr(r types.HealthSystemRule) *types.HealthSystemRule         { return &r }
func intPtr(i int) *int                                                { return &i }
func boolPtr(b bool) *bool                                             { return &b }

// fullOverrides returns a RequirementOverrides with every field set, as an
// override_section row must supply.
func fullOverrides() types.RequirementOverrides {
	return types.RequirementOverrides{
		Strategy:           strategyPtr(types.StrategyDailyRotation),
		HealthSystemRule:   rulePtr(types.HealthSystemNoPreference),
		MaxStudentsPerDay:  intPtr(3),
		MaxPerYear:         intPtr(60),
		MaxPerBlock:        intPtr(6),
		BlockSizeDays:      intPtr(10),
		AllowPartialBlocks: boolPtr(true),
		TeamsAllowed:       boolPtr(false),
		TeamMinDays:        intPtr(0),
		TeamMaxDays:        intPtr(0),
		FallbackAllowed:    boolPtr(false),
		FallbackApproval:   boolPtr(false),
		FallbackCrossSys:   boolPtr(false),
	}
}

func TestResolveInherit(t *testing.T) {
	r := NewResolver(
		[]types.GlobalDefaults{inpatientDefaults()},
		[]types.ClerkshipRequirement{{
			ClerkshipID:  "clk-1",
			Type:         types.RequirementInpatient,
			RequiredDays: 12,
			OverrideMode: types.OverrideInherit,
		}},
	)

	cfg, err := r.Resolve("clk-1", types.RequirementInpatient)
	require.NoError(t, err)

	// Everything except required_days mirrors the defaults.
	d := inpatientDefaults()
	want := EffectiveConfig{
		ClerkshipID:       "clk-1",
		Type:              types.RequirementInpatient,
		RequiredDays:      12,
		Strategy:          d.Strategy,
		HealthSystemRule:  d.HealthSystemRule,
		MaxStudentsPerDay: d.MaxStudentsPerDay,
		MaxPerYear:        d.MaxPerYear,
		MaxPerBlock:       d.MaxPerBlock,
		BlockSizeDays:     d.BlockSizeDays,
		TeamsAllowed:      d.TeamsAllowed,
		TeamMinDays:       d.TeamMinDays,
		TeamMaxDays:       d.TeamMaxDays,
		FallbackAllowed:   d.FallbackAllowed,
	}
	assert.Equal(t, want, cfg)
}

func TestResolveOverrideFields(t *testing.T) {
	r := NewResolver(
		[]types.GlobalDefaults{inpatientDefaults()},
		[]types.ClerkshipRequirement{{
			ClerkshipID:  "clk-1",
			Type:         types.RequirementInpatient,
			RequiredDays: 8,
			OverrideMode: types.OverrideFields,
			Overrides: types.RequirementOverrides{
				Strategy:          strategyPtr(types.StrategyBlockBased),
				MaxStudentsPerDay: intPtr(1),
			},
		}},
	)

	cfg, err := r.Resolve("clk-1", types.RequirementInpatient)
	require.NoError(t, err)

	// Overridden fields take the override value.
	assert.Equal(t, types.StrategyBlockBased, cfg.Strategy)
	assert.Equal(t, 1, cfg.MaxStudentsPerDay)
	// Untouched fields fall back to defaults.
	assert.Equal(t, types.HealthSystemPrefer, cfg.HealthSystemRule)
	assert.Equal(t, 40, cfg.MaxPerYear)
	assert.True(t, cfg.TeamsAllowed)
}

func TestResolveOverrideSection(t *testing.T) {
	r := NewResolver(
		[]types.GlobalDefaults{inpatientDefaults()},
		[]types.ClerkshipRequirement{{
			ClerkshipID:  "clk-1",
			Type:         types.RequirementInpatient,
			RequiredDays: 8,
			OverrideMode: types.OverrideSection,
			Overrides:    fullOverrides(),
		}},
	)

	cfg, err := r.Resolve("clk-1", types.RequirementInpatient)
	require.NoError(t, err)
	assert.Equal(t, types.StrategyDailyRotation, cfg.Strategy)
	assert.Equal(t, types.HealthSystemNoPreference, cfg.HealthSystemRule)
	assert.Equal(t, 3, cfg.MaxStudentsPerDay)
	assert.False(t, cfg.TeamsAllowed)
	assert.False(t, cfg.FallbackAllowed)
}

func TestResolveOverrideSectionMissingField(t *testing.T) {
	o := fullOverrides()
	o.MaxPerYear = nil
	r := NewResolver(
		[]types.GlobalDefaults{inpatientDefaults()},
		[]types.ClerkshipRequirement{{
			ClerkshipID:  "clk-1",
			Type:         types.RequirementInpatient,
			OverrideMode: types.OverrideSection,
			Overrides:    o,
		}},
	)

	_, err := r.Resolve("clk-1", types.RequirementInpatient)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "clk-1", cfgErr.ClerkshipID)
	assert.Equal(t, types.RequirementInpatient, cfgErr.Type)
	assert.Equal(t, "max_per_year", cfgErr.Field)
}

func TestResolveMissingRequirement(t *testing.T) {
	r := NewResolver([]types.GlobalDefaults{inpatientDefaults()}, nil)
	_, err := r.Resolve("clk-1", types.RequirementInpatient)
	assert.Error(t, err)
}

func TestResolveMissingDefaults(t *testing.T) {
	r := NewResolver(nil, []types.ClerkshipRequirement{{
		ClerkshipID:  "clk-1",
		Type:         types.RequirementOutpatient,
		OverrideMode: types.OverrideInherit,
	}})
	_, err := r.Resolve("clk-1", types.RequirementOutpatient)
	assert.Error(t, err)
}

func TestResolveDeterministic(t *testing.T) {
	r := NewResolver(
		[]types.GlobalDefaults{inpatientDefaults()},
		[]types.ClerkshipRequirement{{
			ClerkshipID:  "clk-1",
			Type:         types.RequirementInpatient,
			RequiredDays: 8,
			OverrideMode: types.OverrideFields,
			Overrides:    types.RequirementOverrides{MaxPerBlock: intPtr(2)},
		}},
	)

	first, err := r.Resolve("clk-1", types.RequirementInpatient)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Resolve("clk-1", types.RequirementInpatient)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRequirementsCanonicalOrder(t *testing.T) {
	r := NewResolver(nil, []types.ClerkshipRequirement{
		{ClerkshipID: "clk-1", Type: types.RequirementElective, OverrideMode: types.OverrideInherit},
		{ClerkshipID: "clk-1", Type: types.RequirementInpatient, OverrideMode: types.OverrideInherit},
	})
	reqs := r.Requirements("clk-1")
	require.Len(t, reqs, 2)
	assert.Equal(t, types.RequirementInpatient, reqs[0].Type)
	assert.Equal(t, types.RequirementElective, reqs[1].Type)
}
