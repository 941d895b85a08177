package visibility

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/report-engine/internal/hydra"
	"github.com/openlearnhq/report-engine/internal/models"
)

type fakeHydra struct {
	hydra.Client
	groupMembers     map[int64][]int64
	branchChildren   map[int64][]int64
	managerReports   map[int64][]int64
	powerUserUsers   []int64
	powerUserCourses []int64
	err              error
}

func (f *fakeHydra) GroupMembers(_ context.Context, groupID int64) ([]int64, error) {
	return f.groupMembers[groupID], f.err
}

func (f *fakeHydra) BranchDescendants(_ context.Context, branchID int64) ([]int64, error) {
	return f.branchChildren[branchID], f.err
}

func (f *fakeHydra) UserIDsByManager(_ context.Context, managerID int64, _ int) ([]int64, error) {
	return f.managerReports[managerID], f.err
}

func (f *fakeHydra) PowerUserUsers(context.Context, int64) ([]int64, error) {
	return f.powerUserUsers, f.err
}

func (f *fakeHydra) PowerUserCourses(context.Context, int64) ([]int64, error) {
	return f.powerUserCourses, f.err
}

func admin() *models.SessionContext {
	return &models.SessionContext{UserID: 1, Level: models.LevelAdmin}
}

func powerUser() *models.SessionContext {
	return &models.SessionContext{UserID: 2, Level: models.LevelPowerUser}
}

func TestIDListUnrestricted(t *testing.T) {
	assert.True(t, IDList{}.Unrestricted())
	assert.False(t, IDList{CSV: "1,2"}.Unrestricted())
	assert.False(t, IDList{Nothing: true}.Unrestricted())
}

func TestUsersAllForAdmin(t *testing.T) {
	def := &models.ReportDefinition{Users: &models.UsersFilter{All: true}}
	calc := New(def, admin(), &fakeHydra{})

	list, err := calc.Users(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, list.Unrestricted())
}

func TestUsersStaticSelection(t *testing.T) {
	def := &models.ReportDefinition{Users: &models.UsersFilter{
		Users:  []int64{7, 8, 7},
		Groups: []int64{3},
	}}
	client := &fakeHydra{groupMembers: map[int64][]int64{3: {9, 8}}}
	calc := New(def, admin(), client)

	list, err := calc.Users(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "7,8,9", list.CSV)
	assert.False(t, list.Nothing)
}

func TestUsersManagerSelection(t *testing.T) {
	def := &models.ReportDefinition{Users: &models.UsersFilter{
		Users:    []int64{7},
		Managers: []models.ManagerSelection{{ID: 4, Type: 1}},
	}}
	client := &fakeHydra{managerReports: map[int64][]int64{4: {11, 12, 7}}}
	calc := New(def, admin(), client)

	list, err := calc.Users(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "7,11,12", list.CSV)
}

func TestUsersEmptySelectionFailsClosed(t *testing.T) {
	def := &models.ReportDefinition{Users: &models.UsersFilter{All: false}}
	calc := New(def, admin(), &fakeHydra{})

	list, err := calc.Users(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, list.Nothing)
	assert.False(t, list.Unrestricted())
}

func TestUsersPowerUserIntersection(t *testing.T) {
	def := &models.ReportDefinition{Users: &models.UsersFilter{Users: []int64{7, 8, 9}}}
	client := &fakeHydra{powerUserUsers: []int64{8, 9, 10}}
	calc := New(def, powerUser(), client)

	list, err := calc.Users(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "8,9", list.CSV)
}

func TestUsersPowerUserIntersectionYieldsNothing(t *testing.T) {
	def := &models.ReportDefinition{Users: &models.UsersFilter{Users: []int64{7}}}
	client := &fakeHydra{powerUserUsers: []int64{8}}
	calc := New(def, powerUser(), client)

	list, err := calc.Users(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, list.Nothing)
}

func TestUsersPowerUserRestrictedEvenOnAll(t *testing.T) {
	def := &models.ReportDefinition{Users: &models.UsersFilter{All: true}}
	client := &fakeHydra{powerUserUsers: []int64{5}}
	calc := New(def, powerUser(), client)

	list, err := calc.Users(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "5", list.CSV)

	// a trusted run skips the intersection entirely
	list, err = calc.Users(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, list.Unrestricted())
}

func TestUsersGroupLookupError(t *testing.T) {
	def := &models.ReportDefinition{Users: &models.UsersFilter{Groups: []int64{3}}}
	client := &fakeHydra{err: errors.New("hydra unavailable")}
	calc := New(def, admin(), client)

	_, err := calc.Users(context.Background(), true)
	require.Error(t, err)
}

func TestBranchesExpandDescendants(t *testing.T) {
	def := &models.ReportDefinition{Users: &models.UsersFilter{Branches: []models.BranchSelection{
		{ID: 1, Descendants: true},
		{ID: 9},
	}}}
	client := &fakeHydra{branchChildren: map[int64][]int64{1: {2, 3}}}
	calc := New(def, admin(), client)

	list, err := calc.Branches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1,2,3,9", list.CSV)
}

func TestBranchesAllUsersMeansUnrestricted(t *testing.T) {
	def := &models.ReportDefinition{Users: &models.UsersFilter{
		All:      true,
		Branches: []models.BranchSelection{{ID: 1}},
	}}
	calc := New(def, admin(), &fakeHydra{})

	list, err := calc.Branches(context.Background())
	require.NoError(t, err)
	assert.True(t, list.Unrestricted())
}

func TestCoursesPowerUserIntersection(t *testing.T) {
	def := &models.ReportDefinition{Courses: &models.CoursesFilter{Courses: []int64{10, 11}}}
	client := &fakeHydra{powerUserCourses: []int64{11, 12}}
	calc := New(def, powerUser(), client)

	list, err := calc.Courses(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "11", list.CSV)
}

func TestSimpleEntityFilters(t *testing.T) {
	def := &models.ReportDefinition{
		Sessions:      &models.SessionsFilter{Sessions: []int64{4}},
		Surveys:       &models.SurveysFilter{All: true},
		LearningPlans: &models.LearningPlansFilter{},
		Assets:        &models.AssetsFilter{Assets: []int64{6, 6, 5}},
	}
	calc := New(def, admin(), &fakeHydra{})

	sessions, err := calc.Sessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4", sessions.CSV)

	surveys, err := calc.Surveys(context.Background())
	require.NoError(t, err)
	assert.True(t, surveys.Unrestricted())

	plans, err := calc.LearningPlans(context.Background())
	require.NoError(t, err)
	assert.True(t, plans.Nothing)

	assets, err := calc.Assets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "6,5", assets.CSV)
}
