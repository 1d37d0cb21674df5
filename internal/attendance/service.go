// Package attendance implements the daily roll-call workflow: bulk marking
// with role-dependent mutability, today's view, monthly history and derived
// statistics.
package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dormtrack/internal/access"
	"dormtrack/internal/apperr"
	"dormtrack/internal/model"
)

// Mark is one (student, presence) pair, used both as bulk input and as
// today's-attendance output.
type Mark struct {
	StudentID int64 `json:"studentId" binding:"required"`
	IsPresent bool  `json:"isPresent"`
}

// SkipReason explains why a bulk entry was not written.
type SkipReason string

const (
	SkipNotFound      SkipReason = "not_found"
	SkipUnassigned    SkipReason = "unassigned"
	SkipOutOfScope    SkipReason = "out_of_scope"
	SkipAlreadyMarked SkipReason = "already_marked"
)

// Skipped is one bulk entry that was silently excluded, with its reason.
type Skipped struct {
	StudentID int64      `json:"studentId"`
	Reason    SkipReason `json:"reason"`
}

// BulkResult reports which students were written and which were skipped;
// the output never has to match the input batch size.
type BulkResult struct {
	Marked  []int64   `json:"marked"`
	Skipped []Skipped `json:"skipped"`
}

// MonthView is a student's records for one month plus their current
// assignment, so callers can diff snapshot against current ("moved since").
type MonthView struct {
	Student *model.Student           `json:"student"`
	Records []model.AttendanceRecord `json:"records"`
	Year    int                      `json:"year"`
	Month   int                      `json:"month"`
}

// Statistics is the role-scoped dashboard summary.
type Statistics struct {
	StudentsCount    int  `json:"studentsCount"`
	DormitoriesCount int  `json:"dormitoriesCount"`
	PresentToday     int  `json:"presentToday"`
	AbsentToday      int  `json:"absentToday"`
	MarkedToday      bool `json:"markedToday"`
}

// Repository is the attendance persistence contract.
type Repository interface {
	Upsert(ctx context.Context, rec model.AttendanceRecord, overwrite bool) (bool, error)
	TodayMarks(ctx context.Context, date time.Time, scope access.Scope) ([]Mark, error)
	MonthRecords(ctx context.Context, studentID int64, from, to time.Time) ([]model.AttendanceRecord, error)
	StudentHistory(ctx context.Context, studentID int64) ([]model.AttendanceRecord, error)
	CountAssignedStudents(ctx context.Context, scope access.Scope) (int, error)
	CountDormitories(ctx context.Context, scope access.Scope) (int, error)
	CountPresent(ctx context.Context, date time.Time, scope access.Scope) (int, error)
	CountMarked(ctx context.Context, date time.Time, scope access.Scope) (int, error)
}

// StudentStore is the slice of roster persistence the workflow needs.
type StudentStore interface {
	GetStudent(ctx context.Context, id int64) (*model.Student, error)
	OwnedDormitoryIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Cache is a best-effort string cache; store.Redis satisfies it.
type Cache interface {
	GetCached(ctx context.Context, key string) string
	SetCached(ctx context.Context, key, value string, ttl time.Duration)
}

// Service coordinates the attendance workflow.
type Service struct {
	repo     Repository
	students StudentStore
	cache    Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewService creates an attendance service. cache may be nil-backed; it only
// ever shortcuts the statistics read.
func NewService(repo Repository, students StudentStore, cache Cache, cacheTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		students: students,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// today returns the server-local calendar day, normalized to a date-only
// value. Callers cannot supply a date, which rules out backdating.
func (s *Service) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) scopeFor(ctx context.Context, p model.Principal, requestedDormID int64) (access.Scope, error) {
	var owned []int64
	if p.Role == model.RoleModerator {
		var err error
		owned, err = s.students.OwnedDormitoryIDs(ctx, p.ID)
		if err != nil {
			return access.Scope{}, fmt.Errorf("resolve owned dormitories: %w", err)
		}
	}
	return access.ScopeFor(p, owned, requestedDormID), nil
}

// BulkMark records presence for today for each entry. Entries are processed
// sequentially; a skipped entry never aborts the rest of the batch, and
// already-applied writes stay applied whatever happens later.
//
// Moderators may create today's record for students in their own dormitories
// but never overwrite an existing one; admin and superAdmin overwrite freely.
func (s *Service) BulkMark(ctx context.Context, p model.Principal, marks []Mark) (*BulkResult, error) {
	date := s.today()

	scope, err := s.scopeFor(ctx, p, 0)
	if err != nil {
		return nil, err
	}
	// Same rule as Today: a moderator owning no dormitory has no students to
	// mark, so the whole batch is rejected instead of skipped entry by entry.
	if p.Role == model.RoleModerator && scope.Empty() {
		return nil, apperr.ErrForbidden
	}

	result := &BulkResult{Marked: []int64{}, Skipped: []Skipped{}}
	overwrite := p.Role != model.RoleModerator

	for _, m := range marks {
		st, err := s.students.GetStudent(ctx, m.StudentID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				result.Skipped = append(result.Skipped, Skipped{StudentID: m.StudentID, Reason: SkipNotFound})
				continue
			}
			return result, fmt.Errorf("lookup student %d: %w", m.StudentID, err)
		}
		if st.DormitoryID == nil {
			result.Skipped = append(result.Skipped, Skipped{StudentID: m.StudentID, Reason: SkipUnassigned})
			continue
		}
		if p.Role == model.RoleModerator && !scope.Contains(st.DormitoryID) {
			result.Skipped = append(result.Skipped, Skipped{StudentID: m.StudentID, Reason: SkipOutOfScope})
			continue
		}

		rec := model.AttendanceRecord{
			StudentID:   m.StudentID,
			Date:        date,
			IsPresent:   m.IsPresent,
			DormitoryID: st.DormitoryID,
			RoomNumber:  st.RoomNumber,
			RecordedBy:  &p.ID,
		}
		written, err := s.repo.Upsert(ctx, rec, overwrite)
		if err != nil {
			return result, fmt.Errorf("upsert attendance for student %d: %w", m.StudentID, err)
		}
		if !written {
			result.Skipped = append(result.Skipped, Skipped{StudentID: m.StudentID, Reason: SkipAlreadyMarked})
			continue
		}
		result.Marked = append(result.Marked, m.StudentID)
	}
	return result, nil
}

// Today returns today's (studentId, isPresent) pairs visible to the caller.
// A moderator who owns no dormitory is rejected rather than shown nothing.
func (s *Service) Today(ctx context.Context, p model.Principal, dormitoryID int64) ([]Mark, error) {
	scope, err := s.scopeFor(ctx, p, dormitoryID)
	if err != nil {
		return nil, err
	}
	if p.Role == model.RoleModerator && scope.Empty() {
		return nil, apperr.ErrForbidden
	}

	marks, err := s.repo.TodayMarks(ctx, s.today(), scope)
	if err != nil {
		return nil, err
	}
	if marks == nil {
		marks = []Mark{}
	}
	return marks, nil
}

// Month returns one student's records for the given month (default: current),
// covering the closed range from the first to the last day inclusive.
func (s *Service) Month(ctx context.Context, studentID int64, year, month int) (*MonthView, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}

	student, err := s.students.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	records, err := s.repo.MonthRecords(ctx, studentID, from, to)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	return &MonthView{Student: student, Records: records, Year: year, Month: month}, nil
}

// History returns a student's complete attendance history, newest first.
func (s *Service) History(ctx context.Context, studentID int64) (*model.Student, []model.AttendanceRecord, error) {
	student, err := s.students.GetStudent(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.repo.StudentHistory(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	return student, records, nil
}

// Statistics returns role-scoped counts for the dashboard. The result may be
// served from a short-lived cache keyed by the resolved scope and day; cache
// failures fall through to direct queries.
func (s *Service) Statistics(ctx context.Context, p model.Principal) (*Statistics, error) {
	scope, err := s.scopeFor(ctx, p, 0)
	if err != nil {
		return nil, err
	}
	if scope.Empty() {
		return &Statistics{}, nil
	}

	date := s.today()
	key := statsCacheKey(scope, date)
	if s.cache != nil {
		if cached := s.cache.GetCached(ctx, key); cached != "" {
			var stats Statistics
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	students, err := s.repo.CountAssignedStudents(ctx, scope)
	if err != nil {
		return nil, err
	}
	dorms, err := s.repo.CountDormitories(ctx, scope)
	if err != nil {
		return nil, err
	}
	present, err := s.repo.CountPresent(ctx, date, scope)
	if err != nil {
		return nil, err
	}
	marked, err := s.repo.CountMarked(ctx, date, scope)
	if err != nil {
		return nil, err
	}

	absent := students - present
	if absent < 0 {
		absent = 0
	}
	stats := &Statistics{
		StudentsCount:    students,
		DormitoriesCount: dorms,
		PresentToday:     present,
		AbsentToday:      absent,
		MarkedToday:      marked > 0,
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(stats); err == nil {
			s.cache.SetCached(ctx, key, string(encoded), s.cacheTTL)
		}
	}
	return stats, nil
}

func statsCacheKey(scope access.Scope, date time.Time) string {
	day := date.Format("2006-01-02")
	if scope.All {
		return "stats:all:" + day
	}
	parts := make([]string, len(scope.DormitoryIDs))
	for i, id := range scope.DormitoryIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "stats:d" + strings.Join(parts, ",") + ":" + day
}
