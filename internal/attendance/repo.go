package attendance

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"dormtrack/internal/access"
	"dormtrack/internal/model"
)

// PostgresRepository persists attendance history in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert writes one (student, date) presence record as a single conditional
// statement, so concurrent submissions for the same student and day can never
// race between an existence check and an insert. With overwrite=false an
// existing record is left untouched (the moderator rule); with overwrite=true
// presence, recorder and room are replaced in place. The dormitory snapshot
// is written on insert only and stays immutable afterwards.
// Returns whether a row was actually written.
func (r *PostgresRepository) Upsert(ctx context.Context, rec model.AttendanceRecord, overwrite bool) (bool, error) {
	query := `
		INSERT INTO attendance_history (student_id, date, is_present, dormitory_id, room_number, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, date) DO NOTHING
	`
	if overwrite {
		query = `
			INSERT INTO attendance_history (student_id, date, is_present, dormitory_id, room_number, recorded_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (student_id, date) DO UPDATE SET
				is_present = EXCLUDED.is_present,
				room_number = EXCLUDED.room_number,
				recorded_by = EXCLUDED.recorded_by,
				updated_at = NOW()
		`
	}
	res, err := r.db.ExecContext(ctx, query,
		rec.StudentID, rec.Date, rec.IsPresent, rec.DormitoryID, rec.RoomNumber, rec.RecordedBy)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TodayMarks returns (studentId, isPresent) pairs for the given day, filtered
// by the students' current dormitory when the scope is narrowed.
func (r *PostgresRepository) TodayMarks(ctx context.Context, date time.Time, scope access.Scope) ([]Mark, error) {
	query := `
		SELECT h.student_id, h.is_present
		FROM attendance_history h
		JOIN students s ON s.id = h.student_id
		WHERE h.date = $1
	`
	args := []any{date}
	if !scope.All {
		args = append(args, scope.DormitoryIDs)
		query += ` AND s.dormitory_id = ANY($` + strconv.Itoa(len(args)) + `)`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Mark
	for rows.Next() {
		var m Mark
		if err := rows.Scan(&m.StudentID, &m.IsPresent); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

const recordColumns = `h.id, h.student_id, h.date, h.is_present, h.dormitory_id, d.name, h.room_number, h.recorded_by, h.created_at`

const recordFrom = ` FROM attendance_history h LEFT JOIN dormitories d ON d.id = h.dormitory_id`

func collectRecords(rows *sql.Rows) ([]model.AttendanceRecord, error) {
	defer rows.Close()
	var res []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.IsPresent,
			&rec.DormitoryID, &rec.DormitoryName, &rec.RoomNumber, &rec.RecordedBy, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// MonthRecords returns a student's records within [from, to] inclusive,
// oldest first, each annotated with its dormitory snapshot name.
func (r *PostgresRepository) MonthRecords(ctx context.Context, studentID int64, from, to time.Time) ([]model.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+recordFrom+`
		WHERE h.student_id = $1 AND h.date BETWEEN $2 AND $3
		ORDER BY h.date ASC
	`, studentID, from, to)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// StudentHistory returns a student's full history, newest first.
func (r *PostgresRepository) StudentHistory(ctx context.Context, studentID int64) ([]model.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+recordFrom+`
		WHERE h.student_id = $1
		ORDER BY h.date DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// CountAssignedStudents counts students with a dormitory, within scope.
func (r *PostgresRepository) CountAssignedStudents(ctx context.Context, scope access.Scope) (int, error) {
	if scope.All {
		return r.countRow(ctx, `SELECT COUNT(*) FROM students WHERE dormitory_id IS NOT NULL`)
	}
	return r.countRow(ctx, `SELECT COUNT(*) FROM students WHERE dormitory_id = ANY($1)`, scope.DormitoryIDs)
}

// CountDormitories counts dormitories within scope.
func (r *PostgresRepository) CountDormitories(ctx context.Context, scope access.Scope) (int, error) {
	if scope.All {
		return r.countRow(ctx, `SELECT COUNT(*) FROM dormitories`)
	}
	return r.countRow(ctx, `SELECT COUNT(*) FROM dormitories WHERE id = ANY($1)`, scope.DormitoryIDs)
}

// CountPresent counts records marked present on the given day; the snapshot
// dormitory is what scopes the count.
func (r *PostgresRepository) CountPresent(ctx context.Context, date time.Time, scope access.Scope) (int, error) {
	if scope.All {
		return r.countRow(ctx, `SELECT COUNT(*) FROM attendance_history WHERE date = $1 AND is_present`, date)
	}
	return r.countRow(ctx,
		`SELECT COUNT(*) FROM attendance_history WHERE date = $1 AND is_present AND dormitory_id = ANY($2)`,
		date, scope.DormitoryIDs)
}

// CountMarked counts all records for the given day regardless of presence,
// distinguishing "nobody marked yet" from "everyone marked absent".
func (r *PostgresRepository) CountMarked(ctx context.Context, date time.Time, scope access.Scope) (int, error) {
	if scope.All {
		return r.countRow(ctx, `SELECT COUNT(*) FROM attendance_history WHERE date = $1`, date)
	}
	return r.countRow(ctx,
		`SELECT COUNT(*) FROM attendance_history WHERE date = $1 AND dormitory_id = ANY($2)`,
		date, scope.DormitoryIDs)
}

func (r *PostgresRepository) countRow(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}
