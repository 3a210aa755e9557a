package capacity

import (
	"fmt"
	"strconv"
	"time"

	"github.com/clinrota/clinrota/internal/types"
)

// Ledger tracks capacity consumption during a single generation run. It is
// request-scoped mutable state: the generator seeds it from existing
// assignments, consumes from it date by date, and discards it with the run.
// Independent runs never share a ledger.
type Ledger struct {
	// assignments per preceptor per day
	day map[string]int
	// distinct students per preceptor per calendar year
	yearStudents map[string]map[string]struct{}
	// distinct students per preceptor per block
	blockStudents map[string]map[string]struct{}
	// distinct blocks per preceptor per calendar year
	yearBlocks map[string]map[string]struct{}
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		day:           make(map[string]int),
		yearStudents:  make(map[string]map[string]struct{}),
		blockStudents: make(map[string]map[string]struct{}),
		yearBlocks:    make(map[string]map[string]struct{}),
	}
}

// BlockKey identifies the capacity block a date falls into for a clerkship,
// sized by the effective block length. Zero or negative block size means
// block accounting is off and the key is empty.
func BlockKey(clerkshipID string, windowStart, date time.Time, blockSizeDays int) string {
	if blockSizeDays <= 0 {
		return ""
	}
	days := int(types.Day(date).Sub(types.Day(windowStart)).Hours() / 24)
	if days < 0 {
		// Dates before the window anchor land in negative block indexes;
		// they still get stable keys so seeded history counts.
		days -= blockSizeDays - 1
	}
	return clerkshipID + "#" + strconv.Itoa(days/blockSizeDays)
}

func dayKey(preceptorID string, date time.Time) string {
	return preceptorID + "|" + types.DateKey(date)
}

func yearKey(preceptorID string, date time.Time) string {
	return preceptorID + "|" + strconv.Itoa(types.Day(date).Year())
}

// DayCount returns the number of assignments already booked for the
// preceptor on the day.
func (l *Ledger) DayCount(preceptorID string, date time.Time) int {
	return l.day[dayKey(preceptorID, date)]
}

// Headroom returns how many more assignments the preceptor can take on the
// day under the given per-day ceiling.
func (l *Ledger) Headroom(preceptorID string, date time.Time, perDay int) int {
	h := perDay - l.DayCount(preceptorID, date)
	if h < 0 {
		return 0
	}
	return h
}

// CanTake reports whether assigning the student to the preceptor on the day
// stays within every configured ceiling. Counting a student who is already
// inside a year or block set consumes nothing from those dimensions.
func (l *Ledger) CanTake(preceptorID, studentID string, date time.Time, blockKey string, c Ceilings) bool {
	if l.DayCount(preceptorID, date) >= c.PerDay {
		return false
	}
	yk := yearKey(preceptorID, date)
	if c.PerYear > 0 {
		if _, seen := l.yearStudents[yk][studentID]; !seen && len(l.yearStudents[yk]) >= c.PerYear {
			return false
		}
	}
	if blockKey != "" {
		bk := preceptorID + "|" + blockKey
		if c.PerBlock > 0 {
			if _, seen := l.blockStudents[bk][studentID]; !seen && len(l.blockStudents[bk]) >= c.PerBlock {
				return false
			}
		}
		if c.BlocksPerYear > 0 {
			if _, seen := l.yearBlocks[yk][blockKey]; !seen && len(l.yearBlocks[yk]) >= c.BlocksPerYear {
				return false
			}
		}
	}
	return true
}

// Record consumes one unit of the preceptor's capacity for the day and
// enrolls the student in the year and block sets.
func (l *Ledger) Record(preceptorID, studentID string, date time.Time, blockKey string) {
	l.day[dayKey(preceptorID, date)]++

	yk := yearKey(preceptorID, date)
	addToSet(l.yearStudents, yk, studentID)
	if blockKey != "" {
		addToSet(l.blockStudents, preceptorID+"|"+blockKey, studentID)
		addToSet(l.yearBlocks, yk, blockKey)
	}
}

// CheckDay verifies the preceptor's booked count for a day does not exceed
// the per-day ceiling. Used for the post-merge consistency sweep.
func (l *Ledger) CheckDay(preceptorID string, date time.Time, perDay int) error {
	if got := l.DayCount(preceptorID, date); got > perDay {
		return fmt.Errorf("preceptor %s booked %d times on %s, ceiling is %d",
			preceptorID, got, types.DateKey(date), perDay)
	}
	return nil
}

func addToSet(m map[string]map[string]struct{}, key, member string) {
	if m[key] == nil {
		m[key] = make(map[string]struct{})
	}
	m[key][member] = struct{}{}
}
