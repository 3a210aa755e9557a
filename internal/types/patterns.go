package types

import (
	"fmt"
	"time"
)

// PatternType categorizes recurring availability patterns.
type PatternType string

const (
	PatternWeekly     PatternType = "weekly"
	PatternMonthly    PatternType = "monthly"
	PatternBlock      PatternType = "block"
	PatternIndividual PatternType = "individual"
)

// IsValid checks if the pattern type value is valid
func (p PatternType) IsValid() bool {
	switch p {
	case PatternWeekly, PatternMonthly, PatternBlock, PatternIndividual:
		return true
	}
	return false
}

// Rank returns the intrinsic specificity rank of the pattern type.
// Individual one-off overrides outrank block, monthly, and weekly recurrences.
func (p PatternType) Rank() int {
	switch p {
	case PatternIndividual:
		return 4
	case PatternBlock:
		return 3
	case PatternMonthly:
		return 2
	case PatternWeekly:
		return 1
	default:
		return 0
	}
}

// WeekOfMonth is the symbolic alternative to a fixed day-of-month list.
type WeekOfMonth string

const (
	WeekOfMonthFirst WeekOfMonth = "first"
	WeekOfMonthLast  WeekOfMonth = "last"
)

// PatternConfig is the per-type configuration payload of a pattern. Which
// fields are meaningful depends on the pattern type; individual patterns
// carry no config at all.
type PatternConfig struct {
	// DayMask is a 7-bit day-of-week mask for weekly patterns, bit 0 = Monday.
	DayMask uint8 `json:"day_mask,omitempty" yaml:"day_mask,omitempty"`

	// DaysOfMonth is a fixed list of day-of-month numbers for monthly patterns.
	DaysOfMonth []int `json:"days_of_month,omitempty" yaml:"days_of_month,omitempty"`
	// WeekOfMonth is the symbolic first/last-week rule for monthly patterns.
	// Ignored when DaysOfMonth is non-empty.
	WeekOfMonth WeekOfMonth `json:"week_of_month,omitempty" yaml:"week_of_month,omitempty"`

	// ExcludeWeekends drops Saturdays and Sundays from block patterns.
	ExcludeWeekends bool `json:"exclude_weekends,omitempty" yaml:"exclude_weekends,omitempty"`
}

// MaskHasDay reports whether the weekly day mask includes the given weekday,
// using the Monday=0 convention.
func (c PatternConfig) MaskHasDay(wd time.Weekday) bool {
	// time.Weekday has Sunday=0; shift to Monday=0.
	idx := (int(wd) + 6) % 7
	return c.DayMask&(1<<uint(idx)) != 0
}

// AvailabilityPattern is one recurring availability declaration for a
// (preceptor, site) pair over a date range.
type AvailabilityPattern struct {
	ID          string        `json:"id" yaml:"id" validate:"required"`
	PreceptorID string        `json:"preceptor_id" yaml:"preceptor_id" validate:"required"`
	SiteID      string        `json:"site_id" yaml:"site_id" validate:"required"`
	Type        PatternType   `json:"type" yaml:"type" validate:"required"`
	Config      PatternConfig `json:"config,omitempty" yaml:"config,omitempty"`
	StartDate   time.Time     `json:"start_date" yaml:"start_date" validate:"required"`
	EndDate     time.Time     `json:"end_date" yaml:"end_date" validate:"required"`
	Available   bool          `json:"available" yaml:"available"`
	// Specificity overrides the type's intrinsic rank when non-zero.
	Specificity int       `json:"specificity,omitempty" yaml:"specificity,omitempty"`
	Enabled     bool      `json:"enabled" yaml:"enabled"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// EffectiveSpecificity returns the explicit specificity if set, else the
// pattern type's intrinsic rank.
func (p *AvailabilityPattern) EffectiveSpecificity() int {
	if p.Specificity != 0 {
		return p.Specificity
	}
	return p.Type.Rank()
}

// Contains reports whether the pattern's date range covers the given day.
// Individual patterns collapse to their start day regardless of EndDate.
func (p *AvailabilityPattern) Contains(date time.Time) bool {
	d := Day(date)
	if p.Type == PatternIndividual {
		return d.Equal(Day(p.StartDate))
	}
	return !d.Before(Day(p.StartDate)) && !d.After(Day(p.EndDate))
}

// Validate checks if the pattern has valid field values
func (p *AvailabilityPattern) Validate() error {
	if p.PreceptorID == "" {
		return fmt.Errorf("preceptor_id is required")
	}
	if p.SiteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("invalid pattern type: %s", p.Type)
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return fmt.Errorf("start_date and end_date are required")
	}
	if Day(p.EndDate).Before(Day(p.StartDate)) {
		return fmt.Errorf("end_date %s is before start_date %s", DateKey(p.EndDate), DateKey(p.StartDate))
	}
	switch p.Type {
	case PatternWeekly:
		if p.Config.DayMask == 0 {
			return fmt.Errorf("weekly pattern requires a non-empty day mask")
		}
		if p.Config.DayMask > 0x7F {
			return fmt.Errorf("day mask uses more than 7 bits: %#x", p.Config.DayMask)
		}
	case PatternMonthly:
		if len(p.Config.DaysOfMonth) == 0 && p.Config.WeekOfMonth == "" {
			return fmt.Errorf("monthly pattern requires days_of_month or week_of_month")
		}
		for _, d := range p.Config.DaysOfMonth {
			if d < 1 || d > 31 {
				return fmt.Errorf("day_of_month out of range: %d", d)
			}
		}
		if p.Config.WeekOfMonth != "" && p.Config.WeekOfMonth != WeekOfMonthFirst && p.Config.WeekOfMonth != WeekOfMonthLast {
			return fmt.Errorf("invalid week_of_month: %s", p.Config.WeekOfMonth)
		}
	case PatternIndividual:
		if !SameDay(p.StartDate, p.EndDate) {
			return fmt.Errorf("individual pattern must cover a single day (got %s..%s)", DateKey(p.StartDate), DateKey(p.EndDate))
		}
	}
	return nil
}
