package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dormtrack/internal/access"
	"dormtrack/internal/apperr"
	"dormtrack/internal/model"
	"dormtrack/internal/store"
)

// PostgresRepository persists students and dormitories.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// studentSortFields whitelists sort keys, including the legacy aliases the
// admin UI sends.
var studentSortFields = map[string]string{
	"id":         "s.id",
	"fio":        "s.full_name",
	"fullName":   "s.full_name",
	"xona":       "s.room_number",
	"roomNumber": "s.room_number",
}

const studentColumns = `s.id, s.full_name, s.passport, s.faculty, s.room_number, s.job, s.dormitory_id, d.name, s.created_at, s.updated_at`

const studentFrom = ` FROM students s LEFT JOIN dormitories d ON d.id = s.dormitory_id`

func scanStudent(row *sql.Row) (*model.Student, error) {
	var st model.Student
	err := row.Scan(&st.ID, &st.FullName, &st.Passport, &st.Faculty, &st.RoomNumber,
		&st.Job, &st.DormitoryID, &st.DormitoryName, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan student: %w", err)
	}
	return &st, nil
}

func collectStudents(rows *sql.Rows) ([]model.Student, error) {
	defer rows.Close()
	var res []model.Student
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.ID, &st.FullName, &st.Passport, &st.Faculty, &st.RoomNumber,
			&st.Job, &st.DormitoryID, &st.DormitoryName, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

// CreateStudent inserts a student. The passport UNIQUE constraint is the only
// duplicate guard; violations surface as ErrConflict.
func (r *PostgresRepository) CreateStudent(ctx context.Context, in CreateStudentInput) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx, `
		WITH inserted AS (
			INSERT INTO students (full_name, passport, faculty, room_number, job, dormitory_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING *
		)
		SELECT `+strings.ReplaceAll(studentColumns, "s.", "i.")+`
		FROM inserted i LEFT JOIN dormitories d ON d.id = i.dormitory_id
	`, in.FullName, in.Passport, in.Faculty, in.RoomNumber, in.Job, in.DormitoryID)
	st, err := scanStudent(row)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperr.ErrConflict
		}
		return nil, err
	}
	return st, nil
}

// GetStudent returns one student with its dormitory name.
func (r *PostgresRepository) GetStudent(ctx context.Context, id int64) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+studentFrom+` WHERE s.id = $1`, id)
	return scanStudent(row)
}

// ListStudents returns one page of students visible under scope plus the
// total match count.
func (r *PostgresRepository) ListStudents(ctx context.Context, scope access.Scope, f ListFilter) ([]model.Student, int, error) {
	var clauses []string
	var args []any

	if !scope.All {
		args = append(args, scope.DormitoryIDs)
		clauses = append(clauses, "s.dormitory_id = ANY($"+strconv.Itoa(len(args))+")")
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := strconv.Itoa(len(args))
		clauses = append(clauses,
			"(s.full_name ILIKE $"+n+" OR s.passport ILIKE $"+n+" OR s.faculty ILIKE $"+n+" OR s.room_number ILIKE $"+n+")")
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+studentFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortField, ok := studentSortFields[f.Sort]
	if !ok {
		sortField = "s.id"
	}
	order := "ASC"
	if strings.EqualFold(f.Order, "desc") {
		order = "DESC"
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	query := `SELECT ` + studentColumns + studentFrom + where +
		` ORDER BY ` + sortField + ` ` + order +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	students, err := collectStudents(rows)
	return students, total, err
}

// SearchByPassport returns students whose passport contains the substring,
// unscoped by dormitory.
func (r *PostgresRepository) SearchByPassport(ctx context.Context, passport string, page, limit int) ([]model.Student, int, error) {
	pattern := "%" + passport + "%"

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students s WHERE s.passport ILIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+studentColumns+studentFrom+` WHERE s.passport ILIKE $1 ORDER BY s.id LIMIT $2 OFFSET $3`,
		pattern, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	students, err := collectStudents(rows)
	return students, total, err
}

// UpdateStudent applies non-nil fields.
func (r *PostgresRepository) UpdateStudent(ctx context.Context, id int64, in UpdateStudentInput) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx, `
		WITH updated AS (
			UPDATE students
			SET full_name = COALESCE($2, full_name),
			    passport = COALESCE($3, passport),
			    faculty = COALESCE($4, faculty),
			    room_number = COALESCE($5, room_number),
			    job = COALESCE($6, job),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING *
		)
		SELECT `+strings.ReplaceAll(studentColumns, "s.", "u.")+`
		FROM updated u LEFT JOIN dormitories d ON d.id = u.dormitory_id
	`, id, in.FullName, in.Passport, in.Faculty, in.RoomNumber, in.Job)
	st, err := scanStudent(row)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperr.ErrConflict
		}
		return nil, err
	}
	return st, nil
}

// AssignStudent sets dormitory, room and job together.
func (r *PostgresRepository) AssignStudent(ctx context.Context, id, dormitoryID int64, roomNumber string, job *string) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx, `
		WITH updated AS (
			UPDATE students
			SET dormitory_id = $2, room_number = $3, job = COALESCE($4, job), updated_at = NOW()
			WHERE id = $1
			RETURNING *
		)
		SELECT `+strings.ReplaceAll(studentColumns, "s.", "u.")+`
		FROM updated u LEFT JOIN dormitories d ON d.id = u.dormitory_id
	`, id, dormitoryID, roomNumber, job)
	return scanStudent(row)
}

// UpdateRoomJob changes room and/or job without touching the assignment.
func (r *PostgresRepository) UpdateRoomJob(ctx context.Context, id int64, roomNumber, job *string) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx, `
		WITH updated AS (
			UPDATE students
			SET room_number = COALESCE($2, room_number), job = COALESCE($3, job), updated_at = NOW()
			WHERE id = $1
			RETURNING *
		)
		SELECT `+strings.ReplaceAll(studentColumns, "s.", "u.")+`
		FROM updated u LEFT JOIN dormitories d ON d.id = u.dormitory_id
	`, id, roomNumber, job)
	return scanStudent(row)
}

// UnassignStudent clears the dormitory reference only; room and job keep
// their last known values.
func (r *PostgresRepository) UnassignStudent(ctx context.Context, id int64) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx, `
		WITH updated AS (
			UPDATE students
			SET dormitory_id = NULL, updated_at = NOW()
			WHERE id = $1
			RETURNING *
		)
		SELECT `+strings.ReplaceAll(studentColumns, "s.", "u.")+`
		FROM updated u LEFT JOIN dormitories d ON d.id = u.dormitory_id
	`, id)
	return scanStudent(row)
}

// DeleteStudent removes a student.
func (r *PostgresRepository) DeleteStudent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// dormitorySortFields whitelists dormitory sort keys.
var dormitorySortFields = map[string]string{
	"id":        "d.id",
	"name":      "d.name",
	"createdAt": "d.created_at",
}

const dormitoryColumns = `d.id, d.name, d.address, d.user_id, u.login, COUNT(s.id), d.created_at, d.updated_at`

// CreateDormitory inserts a dormitory.
func (r *PostgresRepository) CreateDormitory(ctx context.Context, name string, address *string, userID *int64) (*model.Dormitory, error) {
	var dorm model.Dormitory
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO dormitories (name, address, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, address, user_id, created_at, updated_at
	`, name, address, userID).Scan(&dorm.ID, &dorm.Name, &dorm.Address, &dorm.UserID, &dorm.CreatedAt, &dorm.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &dorm, nil
}

// GetDormitory returns one dormitory with owner login and student count.
func (r *PostgresRepository) GetDormitory(ctx context.Context, id int64) (*model.Dormitory, error) {
	var dorm model.Dormitory
	err := r.db.QueryRowContext(ctx, `
		SELECT `+dormitoryColumns+`
		FROM dormitories d
		LEFT JOIN users u ON u.id = d.user_id
		LEFT JOIN students s ON s.dormitory_id = d.id
		WHERE d.id = $1
		GROUP BY d.id, u.login
	`, id).Scan(&dorm.ID, &dorm.Name, &dorm.Address, &dorm.UserID, &dorm.OwnerLogin,
		&dorm.StudentsCount, &dorm.CreatedAt, &dorm.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &dorm, nil
}

// ListDormitories returns one page of dormitories plus the total match count.
func (r *PostgresRepository) ListDormitories(ctx context.Context, f ListFilter) ([]model.Dormitory, int, error) {
	where := ""
	var args []any
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = " WHERE d.name ILIKE $1"
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dormitories d`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortField, ok := dormitorySortFields[f.Sort]
	if !ok {
		sortField = "d.created_at"
	}
	order := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		order = "ASC"
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	query := `
		SELECT ` + dormitoryColumns + `
		FROM dormitories d
		LEFT JOIN users u ON u.id = d.user_id
		LEFT JOIN students s ON s.dormitory_id = d.id` + where + `
		GROUP BY d.id, u.login
		ORDER BY ` + sortField + ` ` + order + `
		LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []model.Dormitory
	for rows.Next() {
		var dorm model.Dormitory
		if err := rows.Scan(&dorm.ID, &dorm.Name, &dorm.Address, &dorm.UserID, &dorm.OwnerLogin,
			&dorm.StudentsCount, &dorm.CreatedAt, &dorm.UpdatedAt); err != nil {
			return nil, 0, err
		}
		res = append(res, dorm)
	}
	return res, total, rows.Err()
}

// UpdateDormitory applies non-nil fields.
func (r *PostgresRepository) UpdateDormitory(ctx context.Context, id int64, name, address *string, userID *int64) (*model.Dormitory, error) {
	var dorm model.Dormitory
	err := r.db.QueryRowContext(ctx, `
		UPDATE dormitories
		SET name = COALESCE($2, name),
		    address = COALESCE($3, address),
		    user_id = COALESCE($4, user_id),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, address, user_id, created_at, updated_at
	`, id, name, address, userID).Scan(&dorm.ID, &dorm.Name, &dorm.Address, &dorm.UserID, &dorm.CreatedAt, &dorm.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &dorm, nil
}

// DeleteDormitory removes a dormitory; resident students fall back to
// unassigned via the FK ON DELETE SET NULL.
func (r *PostgresRepository) DeleteDormitory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dormitories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// OwnedDormitoryIDs returns the ids of dormitories owned by the user,
// resolved per request and never cached.
func (r *PostgresRepository) OwnedDormitoryIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM dormitories WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
