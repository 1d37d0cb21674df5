// Package roster implements student and dormitory management: CRUD, search,
// pagination and dormitory/room/job assignment.
package roster

import (
	"context"
	"fmt"

	"dormtrack/internal/access"
	"dormtrack/internal/apperr"
	"dormtrack/internal/model"
)

const defaultPageLimit = 30

// CreateStudentInput is the payload for creating a student.
type CreateStudentInput struct {
	FullName    string  `json:"fullName" binding:"required"`
	Passport    string  `json:"passport" binding:"required"`
	Faculty     string  `json:"faculty" binding:"required"`
	RoomNumber  *string `json:"roomNumber"`
	Job         *string `json:"job"`
	DormitoryID *int64  `json:"dormitoryId"`
}

// UpdateStudentInput carries optional student field changes.
type UpdateStudentInput struct {
	FullName   *string `json:"fullName"`
	Passport   *string `json:"passport"`
	Faculty    *string `json:"faculty"`
	RoomNumber *string `json:"roomNumber"`
	Job        *string `json:"job"`
}

// ListFilter is the common listing query shape.
type ListFilter struct {
	DormitoryID int64
	Search      string
	Sort        string
	Order       string
	Page        int
	Limit       int
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageLimit
	}
}

// StudentPage is one page of students.
type StudentPage struct {
	Data []model.Student `json:"data"`
	Meta model.PageMeta  `json:"meta"`
}

// DormitoryPage is one page of dormitories.
type DormitoryPage struct {
	Data []model.Dormitory `json:"data"`
	Meta model.PageMeta    `json:"meta"`
}

// Repository is the persistence the roster service needs.
type Repository interface {
	CreateStudent(ctx context.Context, in CreateStudentInput) (*model.Student, error)
	GetStudent(ctx context.Context, id int64) (*model.Student, error)
	ListStudents(ctx context.Context, scope access.Scope, f ListFilter) ([]model.Student, int, error)
	SearchByPassport(ctx context.Context, passport string, page, limit int) ([]model.Student, int, error)
	UpdateStudent(ctx context.Context, id int64, in UpdateStudentInput) (*model.Student, error)
	AssignStudent(ctx context.Context, id, dormitoryID int64, roomNumber string, job *string) (*model.Student, error)
	UpdateRoomJob(ctx context.Context, id int64, roomNumber, job *string) (*model.Student, error)
	UnassignStudent(ctx context.Context, id int64) (*model.Student, error)
	DeleteStudent(ctx context.Context, id int64) error

	CreateDormitory(ctx context.Context, name string, address *string, userID *int64) (*model.Dormitory, error)
	GetDormitory(ctx context.Context, id int64) (*model.Dormitory, error)
	ListDormitories(ctx context.Context, f ListFilter) ([]model.Dormitory, int, error)
	UpdateDormitory(ctx context.Context, id int64, name, address *string, userID *int64) (*model.Dormitory, error)
	DeleteDormitory(ctx context.Context, id int64) error

	OwnedDormitoryIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Service coordinates roster operations with role scoping.
type Service struct {
	repo Repository
}

// NewService creates a roster service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func pageMeta(total, page, limit int) model.PageMeta {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return model.PageMeta{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}

// scopeFor resolves the caller's dormitory scope against the requested filter.
func (s *Service) scopeFor(ctx context.Context, p model.Principal, requestedDormID int64) (access.Scope, error) {
	var owned []int64
	if p.Role == model.RoleModerator {
		var err error
		owned, err = s.repo.OwnedDormitoryIDs(ctx, p.ID)
		if err != nil {
			return access.Scope{}, fmt.Errorf("resolve owned dormitories: %w", err)
		}
	}
	return access.ScopeFor(p, owned, requestedDormID), nil
}

// checkStudentScope rejects moderators acting on a student assigned to a
// dormitory outside their owned set. Unassigned students stay reachable so a
// moderator can pick them up via global search and assign them.
func (s *Service) checkStudentScope(ctx context.Context, p model.Principal, st *model.Student) error {
	if p.Role != model.RoleModerator || st.DormitoryID == nil {
		return nil
	}
	scope, err := s.scopeFor(ctx, p, 0)
	if err != nil {
		return err
	}
	if !scope.Contains(st.DormitoryID) {
		return apperr.ErrForbidden
	}
	return nil
}

// CreateStudent inserts a student; duplicate passports surface as the
// storage-level ErrConflict.
func (s *Service) CreateStudent(ctx context.Context, in CreateStudentInput) (*model.Student, error) {
	if in.DormitoryID != nil {
		if _, err := s.repo.GetDormitory(ctx, *in.DormitoryID); err != nil {
			return nil, err
		}
	}
	return s.repo.CreateStudent(ctx, in)
}

// ListStudents returns students visible to the caller, paginated.
func (s *Service) ListStudents(ctx context.Context, p model.Principal, f ListFilter) (*StudentPage, error) {
	f.normalize()

	scope, err := s.scopeFor(ctx, p, f.DormitoryID)
	if err != nil {
		return nil, err
	}
	if scope.Empty() {
		return &StudentPage{Data: []model.Student{}, Meta: pageMeta(0, f.Page, f.Limit)}, nil
	}

	students, total, err := s.repo.ListStudents(ctx, scope, f)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []model.Student{}
	}
	return &StudentPage{Data: students, Meta: pageMeta(total, f.Page, f.Limit)}, nil
}

// SearchGlobal finds students anywhere by passport substring. An empty
// passport yields an empty page, not an error.
func (s *Service) SearchGlobal(ctx context.Context, passport string, page, limit int) (*StudentPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if passport == "" {
		return &StudentPage{Data: []model.Student{}, Meta: pageMeta(0, page, limit)}, nil
	}

	students, total, err := s.repo.SearchByPassport(ctx, passport, page, limit)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []model.Student{}
	}
	return &StudentPage{Data: students, Meta: pageMeta(total, page, limit)}, nil
}

// GetStudent returns one student, enforcing moderator scope.
func (s *Service) GetStudent(ctx context.Context, p model.Principal, id int64) (*model.Student, error) {
	st, err := s.repo.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkStudentScope(ctx, p, st); err != nil {
		return nil, err
	}
	return st, nil
}

// UpdateStudent applies field changes after existence and scope checks.
func (s *Service) UpdateStudent(ctx context.Context, p model.Principal, id int64, in UpdateStudentInput) (*model.Student, error) {
	if _, err := s.GetStudent(ctx, p, id); err != nil {
		return nil, err
	}
	return s.repo.UpdateStudent(ctx, id, in)
}

// AssignDormitory links a student to a dormitory, setting room and job in the
// same operation; a dormitory without a room is not a valid end state.
func (s *Service) AssignDormitory(ctx context.Context, p model.Principal, studentID, dormitoryID int64, roomNumber string, job *string) (*model.Student, error) {
	if _, err := s.repo.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	dorm, err := s.repo.GetDormitory(ctx, dormitoryID)
	if err != nil {
		return nil, err
	}
	if p.Role == model.RoleModerator {
		scope, err := s.scopeFor(ctx, p, 0)
		if err != nil {
			return nil, err
		}
		if !scope.Contains(&dorm.ID) {
			return nil, apperr.ErrForbidden
		}
	}
	return s.repo.AssignStudent(ctx, studentID, dormitoryID, roomNumber, job)
}

// UpdateRoomJob changes room/job for an already-assigned student.
func (s *Service) UpdateRoomJob(ctx context.Context, p model.Principal, id int64, roomNumber, job *string) (*model.Student, error) {
	if _, err := s.GetStudent(ctx, p, id); err != nil {
		return nil, err
	}
	return s.repo.UpdateRoomJob(ctx, id, roomNumber, job)
}

// UnassignDormitory clears the dormitory link; room and job keep their last
// known values — they are history, not current state.
func (s *Service) UnassignDormitory(ctx context.Context, id int64) (*model.Student, error) {
	if _, err := s.repo.GetStudent(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.UnassignStudent(ctx, id)
}

// RemoveStudent deletes a student after existence and scope checks.
func (s *Service) RemoveStudent(ctx context.Context, p model.Principal, id int64) error {
	if _, err := s.GetStudent(ctx, p, id); err != nil {
		return err
	}
	return s.repo.DeleteStudent(ctx, id)
}

// CreateDormitory adds a building, optionally owned by a moderator.
func (s *Service) CreateDormitory(ctx context.Context, name string, address *string, userID *int64) (*model.Dormitory, error) {
	return s.repo.CreateDormitory(ctx, name, address, userID)
}

// ListDormitories returns one page of dormitories with owner and headcount.
func (s *Service) ListDormitories(ctx context.Context, f ListFilter) (*DormitoryPage, error) {
	f.normalize()
	dorms, total, err := s.repo.ListDormitories(ctx, f)
	if err != nil {
		return nil, err
	}
	if dorms == nil {
		dorms = []model.Dormitory{}
	}
	return &DormitoryPage{Data: dorms, Meta: pageMeta(total, f.Page, f.Limit)}, nil
}

// GetDormitory returns one dormitory or ErrNotFound.
func (s *Service) GetDormitory(ctx context.Context, id int64) (*model.Dormitory, error) {
	return s.repo.GetDormitory(ctx, id)
}

// UpdateDormitory applies field changes after an existence check.
func (s *Service) UpdateDormitory(ctx context.Context, id int64, name, address *string, userID *int64) (*model.Dormitory, error) {
	if _, err := s.repo.GetDormitory(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.UpdateDormitory(ctx, id, name, address, userID)
}

// RemoveDormitory deletes a dormitory.
func (s *Service) RemoveDormitory(ctx context.Context, id int64) error {
	if _, err := s.repo.GetDormitory(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteDormitory(ctx, id)
}

// OwnedDormitoryIDs exposes the per-request moderator scope lookup.
func (s *Service) OwnedDormitoryIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.repo.OwnedDormitoryIDs(ctx, userID)
}
