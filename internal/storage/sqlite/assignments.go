package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinrota/clinrota/internal/types"
)

// UpsertAssignments writes a generated batch in one transaction. The schema's
// UNIQUE(student_id, date) constraint backs the one-assignment-per-student-day
// rule even if a caller bypasses the engine's own merge check.
func (s *SQLiteStorage) UpsertAssignments(ctx context.Context, assignments []types.ScheduleAssignment) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertAssignmentsTx(ctx, tx, assignments)
	})
}

func upsertAssignmentsTx(ctx context.Context, tx *sql.Tx, assignments []types.ScheduleAssignment) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO schedule_assignments
		 (id, student_id, preceptor_id, clerkship_id, requirement_type, date, site_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			student_id = excluded.student_id,
			preceptor_id = excluded.preceptor_id,
			clerkship_id = excluded.clerkship_id,
			requirement_type = excluded.requirement_type,
			date = excluded.date,
			site_id = excluded.site_id,
			status = excluded.status`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("invalid assignment %s: %w", a.ID, err)
		}
		status := a.Status
		if status == "" {
			status = types.AssignmentScheduled
		}
		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			a.ID, a.StudentID, a.PreceptorID, a.ClerkshipID, string(a.Type),
			types.DateKey(a.Date), a.SiteID, string(status),
			createdAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("failed to upsert assignment %s: %w", a.ID, err)
		}
	}
	return nil
}

// DeleteAssignments removes assignments by id in one transaction, used when a
// regeneration discards the regenerable window.
func (s *SQLiteStorage) DeleteAssignments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return deleteAssignmentsTx(ctx, tx, ids)
	})
}

func deleteAssignmentsTx(ctx context.Context, tx *sql.Tx, ids []string) error {
	stmt, err := tx.PrepareContext(ctx, `DELETE FROM schedule_assignments WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to delete assignment %s: %w", id, err)
		}
	}
	return nil
}

// ApplyResult deletes the removed assignments and writes the new batch in a
// single transaction. A regeneration that fails mid-persist therefore leaves
// the stored schedule exactly as it was.
func (s *SQLiteStorage) ApplyResult(ctx context.Context, removed []string, assignments []types.ScheduleAssignment) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteAssignmentsTx(ctx, tx, removed); err != nil {
			return err
		}
		return upsertAssignmentsTx(ctx, tx, assignments)
	})
}

// ListAssignments returns assignments in [start, end], ordered by date then
// student for stable output.
func (s *SQLiteStorage) ListAssignments(ctx context.Context, start, end time.Time) ([]types.ScheduleAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, preceptor_id, clerkship_id, requirement_type,
		        date, site_id, status, created_at
		 FROM schedule_assignments
		 WHERE date >= ? AND date <= ?
		 ORDER BY date, student_id`,
		types.DateKey(start), types.DateKey(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// AddBlackout inserts a blackout date and returns the existing assignments on
// that day. Conflicts are reported to the caller for resolution, never
// silently discarded.
func (s *SQLiteStorage) AddBlackout(ctx context.Context, b types.BlackoutDate) ([]types.ScheduleAssignment, error) {
	if b.Date.IsZero() {
		return nil, fmt.Errorf("blackout date is required")
	}
	key := types.DateKey(b.Date)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO blackout_dates (date, reason) VALUES (?, ?)
		 ON CONFLICT(date) DO UPDATE SET reason = excluded.reason`,
		key, b.Reason); err != nil {
		return nil, fmt.Errorf("failed to insert blackout %s: %w", key, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, preceptor_id, clerkship_id, requirement_type,
		        date, site_id, status, created_at
		 FROM schedule_assignments
		 WHERE date = ?
		 ORDER BY student_id`,
		key)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicting assignments: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (s *SQLiteStorage) loadAssignments(ctx context.Context) ([]types.ScheduleAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, preceptor_id, clerkship_id, requirement_type,
		        date, site_id, status, created_at
		 FROM schedule_assignments
		 ORDER BY date, student_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func scanAssignments(rows *sql.Rows) ([]types.ScheduleAssignment, error) {
	var out []types.ScheduleAssignment
	for rows.Next() {
		var a types.ScheduleAssignment
		var reqType, date, status, created string
		if err := rows.Scan(&a.ID, &a.StudentID, &a.PreceptorID, &a.ClerkshipID,
			&reqType, &date, &a.SiteID, &status, &created); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.Type = types.RequirementType(reqType)
		a.Status = types.AssignmentStatus(status)
		var err error
		if a.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("failed to parse date for assignment %s: %w", a.ID, err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("failed to parse created_at for assignment %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
