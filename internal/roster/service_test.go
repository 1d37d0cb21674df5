package roster

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dormtrack/internal/access"
	"dormtrack/internal/apperr"
	"dormtrack/internal/model"
)

type fakeRepo struct {
	studentSeq int64
	dormSeq    int64
	students   map[int64]*model.Student
	dorms      map[int64]*model.Dormitory

	lastScope access.Scope
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		students: map[int64]*model.Student{},
		dorms:    map[int64]*model.Dormitory{},
	}
}

func (f *fakeRepo) addDorm(name string, ownerID *int64) *model.Dormitory {
	f.dormSeq++
	d := &model.Dormitory{ID: f.dormSeq, Name: name, UserID: ownerID}
	f.dorms[d.ID] = d
	return d
}

func (f *fakeRepo) CreateStudent(_ context.Context, in CreateStudentInput) (*model.Student, error) {
	for _, st := range f.students {
		if st.Passport == in.Passport {
			return nil, apperr.ErrConflict
		}
	}
	f.studentSeq++
	st := &model.Student{
		ID:          f.studentSeq,
		FullName:    in.FullName,
		Passport:    in.Passport,
		Faculty:     in.Faculty,
		RoomNumber:  in.RoomNumber,
		Job:         in.Job,
		DormitoryID: in.DormitoryID,
	}
	f.students[st.ID] = st
	return st, nil
}

func (f *fakeRepo) GetStudent(_ context.Context, id int64) (*model.Student, error) {
	st, ok := f.students[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (f *fakeRepo) ListStudents(_ context.Context, scope access.Scope, _ ListFilter) ([]model.Student, int, error) {
	f.lastScope = scope
	var res []model.Student
	for _, st := range f.students {
		if scope.Contains(st.DormitoryID) {
			res = append(res, *st)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, len(res), nil
}

func (f *fakeRepo) SearchByPassport(_ context.Context, passport string, _, _ int) ([]model.Student, int, error) {
	var res []model.Student
	for _, st := range f.students {
		if st.Passport == passport {
			res = append(res, *st)
		}
	}
	return res, len(res), nil
}

func (f *fakeRepo) UpdateStudent(_ context.Context, id int64, in UpdateStudentInput) (*model.Student, error) {
	st, ok := f.students[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if in.FullName != nil {
		st.FullName = *in.FullName
	}
	if in.Passport != nil {
		st.Passport = *in.Passport
	}
	if in.Faculty != nil {
		st.Faculty = *in.Faculty
	}
	if in.RoomNumber != nil {
		st.RoomNumber = in.RoomNumber
	}
	if in.Job != nil {
		st.Job = in.Job
	}
	cp := *st
	return &cp, nil
}

func (f *fakeRepo) AssignStudent(_ context.Context, id, dormitoryID int64, roomNumber string, job *string) (*model.Student, error) {
	st, ok := f.students[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	st.DormitoryID = &dormitoryID
	st.RoomNumber = &roomNumber
	if job != nil {
		st.Job = job
	}
	cp := *st
	return &cp, nil
}

func (f *fakeRepo) UpdateRoomJob(_ context.Context, id int64, roomNumber, job *string) (*model.Student, error) {
	st, ok := f.students[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if roomNumber != nil {
		st.RoomNumber = roomNumber
	}
	if job != nil {
		st.Job = job
	}
	cp := *st
	return &cp, nil
}

func (f *fakeRepo) UnassignStudent(_ context.Context, id int64) (*model.Student, error) {
	st, ok := f.students[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	st.DormitoryID = nil
	cp := *st
	return &cp, nil
}

func (f *fakeRepo) DeleteStudent(_ context.Context, id int64) error {
	if _, ok := f.students[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.students, id)
	return nil
}

func (f *fakeRepo) CreateDormitory(_ context.Context, name string, address *string, userID *int64) (*model.Dormitory, error) {
	d := f.addDorm(name, userID)
	d.Address = address
	return d, nil
}

func (f *fakeRepo) GetDormitory(_ context.Context, id int64) (*model.Dormitory, error) {
	d, ok := f.dorms[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return d, nil
}

func (f *fakeRepo) ListDormitories(_ context.Context, _ ListFilter) ([]model.Dormitory, int, error) {
	var res []model.Dormitory
	for _, d := range f.dorms {
		res = append(res, *d)
	}
	return res, len(res), nil
}

func (f *fakeRepo) UpdateDormitory(_ context.Context, id int64, name, address *string, userID *int64) (*model.Dormitory, error) {
	d, ok := f.dorms[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if name != nil {
		d.Name = *name
	}
	if address != nil {
		d.Address = address
	}
	if userID != nil {
		d.UserID = userID
	}
	return d, nil
}

func (f *fakeRepo) DeleteDormitory(_ context.Context, id int64) error {
	if _, ok := f.dorms[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.dorms, id)
	return nil
}

func (f *fakeRepo) OwnedDormitoryIDs(_ context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for _, d := range f.dorms {
		if d.UserID != nil && *d.UserID == userID {
			ids = append(ids, d.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

var (
	admin = model.Principal{ID: 1, Role: model.RoleAdmin}
	mod   = model.Principal{ID: 2, Role: model.RoleModerator}
)

func TestAssignThenUnassignKeepsRoom(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	dorm := repo.addDorm("Block A", nil)
	st, err := svc.CreateStudent(ctx, CreateStudentInput{FullName: "P", Passport: "AB123", Faculty: "CS"})
	require.NoError(t, err)
	require.Nil(t, st.DormitoryID)

	st, err = svc.AssignDormitory(ctx, admin, st.ID, dorm.ID, "204", nil)
	require.NoError(t, err)
	require.NotNil(t, st.DormitoryID)
	assert.Equal(t, dorm.ID, *st.DormitoryID)
	require.NotNil(t, st.RoomNumber)
	assert.Equal(t, "204", *st.RoomNumber)

	st, err = svc.UnassignDormitory(ctx, st.ID)
	require.NoError(t, err)
	assert.Nil(t, st.DormitoryID)
	require.NotNil(t, st.RoomNumber)
	assert.Equal(t, "204", *st.RoomNumber, "room keeps its last known value")
}

func TestCreateStudentDuplicatePassport(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	_, err := svc.CreateStudent(ctx, CreateStudentInput{FullName: "A", Passport: "AB123", Faculty: "CS"})
	require.NoError(t, err)

	_, err = svc.CreateStudent(ctx, CreateStudentInput{FullName: "B", Passport: "AB123", Faculty: "CS"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreateStudentUnknownDormitory(t *testing.T) {
	svc := NewService(newFakeRepo())

	missing := int64(9)
	_, err := svc.CreateStudent(context.Background(), CreateStudentInput{
		FullName: "A", Passport: "X", Faculty: "CS", DormitoryID: &missing,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListStudentsModeratorScoped(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	owned := repo.addDorm("Mine", &mod.ID)
	other := repo.addDorm("Other", nil)

	_, err := svc.CreateStudent(ctx, CreateStudentInput{FullName: "In", Passport: "P1", Faculty: "CS", DormitoryID: &owned.ID})
	require.NoError(t, err)
	_, err = svc.CreateStudent(ctx, CreateStudentInput{FullName: "Out", Passport: "P2", Faculty: "CS", DormitoryID: &other.ID})
	require.NoError(t, err)

	page, err := svc.ListStudents(ctx, mod, ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "In", page.Data[0].FullName)
	assert.Equal(t, access.Scope{DormitoryIDs: []int64{owned.ID}}, repo.lastScope)

	// Admin sees everything.
	page, err = svc.ListStudents(ctx, admin, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.Meta.Total)
}

func TestListStudentsModeratorWithoutDormitories(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	page, err := svc.ListStudents(context.Background(), mod, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 0, page.Meta.Total)
}

func TestSearchGlobalEmptyPassport(t *testing.T) {
	svc := NewService(newFakeRepo())

	page, err := svc.SearchGlobal(context.Background(), "", 1, 30)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 0, page.Meta.Total)
}

func TestModeratorScopeViolationDetected(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	repo.addDorm("Mine", &mod.ID)
	foreign := repo.addDorm("Foreign", nil)
	st, err := svc.CreateStudent(ctx, CreateStudentInput{FullName: "S", Passport: "P9", Faculty: "CS", DormitoryID: &foreign.ID})
	require.NoError(t, err)

	_, err = svc.GetStudent(ctx, mod, st.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.UpdateRoomJob(ctx, mod, st.ID, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	err = svc.RemoveStudent(ctx, mod, st.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// Admin is unrestricted.
	_, err = svc.GetStudent(ctx, admin, st.ID)
	assert.NoError(t, err)
}

func TestModeratorCanReachUnassignedStudent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	mine := repo.addDorm("Mine", &mod.ID)
	st, err := svc.CreateStudent(ctx, CreateStudentInput{FullName: "Free", Passport: "P5", Faculty: "CS"})
	require.NoError(t, err)

	got, err := svc.GetStudent(ctx, mod, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "Free", got.FullName)

	// And assign them into an owned dormitory.
	assigned, err := svc.AssignDormitory(ctx, mod, st.ID, mine.ID, "101", nil)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, *assigned.DormitoryID)
}

func TestModeratorCannotAssignToForeignDormitory(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	repo.addDorm("Mine", &mod.ID)
	foreign := repo.addDorm("Foreign", nil)
	st, err := svc.CreateStudent(ctx, CreateStudentInput{FullName: "Free", Passport: "P6", Faculty: "CS"})
	require.NoError(t, err)

	_, err = svc.AssignDormitory(ctx, mod, st.ID, foreign.ID, "101", nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestStudentNotFoundPaths(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	_, err := svc.GetStudent(ctx, admin, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.UpdateStudent(ctx, admin, 404, UpdateStudentInput{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.AssignDormitory(ctx, admin, 404, 1, "1", nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.UnassignDormitory(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, svc.RemoveStudent(ctx, admin, 404), apperr.ErrNotFound)
}

func TestAssignUnknownDormitory(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	st, err := svc.CreateStudent(ctx, CreateStudentInput{FullName: "S", Passport: "P7", Faculty: "CS"})
	require.NoError(t, err)

	_, err = svc.AssignDormitory(ctx, admin, st.ID, 99, "1", nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDormitoryCRUD(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	d, err := svc.CreateDormitory(ctx, "Block A", nil, nil)
	require.NoError(t, err)

	name := "Block A1"
	updated, err := svc.UpdateDormitory(ctx, d.ID, &name, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Block A1", updated.Name)

	page, err := svc.ListDormitories(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)

	require.NoError(t, svc.RemoveDormitory(ctx, d.ID))
	assert.ErrorIs(t, svc.RemoveDormitory(ctx, d.ID), apperr.ErrNotFound)
}
