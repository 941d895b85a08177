package extrafield

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/report-engine/internal/hydra"
)

type fakeHydra struct {
	hydra.Client
	user   []hydra.ExtraField
	course []hydra.ExtraField
}

func (f *fakeHydra) UserExtraFields(context.Context) ([]hydra.ExtraField, error) {
	return f.user, nil
}

func (f *fakeHydra) CourseExtraFields(context.Context) ([]hydra.ExtraField, error) {
	return f.course, nil
}

func (f *fakeHydra) EnrollmentExtraFields(context.Context) ([]hydra.ExtraField, error) {
	return nil, nil
}

type fakeInspector struct {
	columns map[string]bool
}

func (f *fakeInspector) HasColumn(_ context.Context, table, column string) (bool, error) {
	return f.columns[table+"."+column], nil
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		id   int64
		ok   bool
	}{
		{"user_extrafield_12", KindUser, 12, true},
		{"course_extrafield_3", KindCourse, 3, true},
		{"enrollment_extrafield_400", KindEnrollment, 400, true},
		{"USER_USERID", "", 0, false},
		{"badge_extrafield_5", "", 0, false},
		{"user_extrafield_", "", 0, false},
		{"user_extrafield_0", "", 0, false},
		{"user_extrafield_-3", "", 0, false},
		{"_extrafield_9", "", 0, false},
	}
	for _, tt := range tests {
		kind, id, ok := ParseRef(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.kind, kind, tt.in)
		assert.Equal(t, tt.id, id, tt.in)
	}
}

func TestRefRoundTrip(t *testing.T) {
	ref := Ref(KindCourse, 17)
	require.Equal(t, "course_extrafield_17", ref)
	kind, id, ok := ParseRef(ref)
	require.True(t, ok)
	require.Equal(t, KindCourse, kind)
	require.Equal(t, int64(17), id)
}

func TestResolverLookup(t *testing.T) {
	client := &fakeHydra{user: []hydra.ExtraField{
		{ID: 1, Type: TypeText, Name: "Department"},
		{ID: 2, Type: TypeDate, Name: "Hire Date"},
	}}
	r := NewResolver(client, &fakeInspector{})

	f, ok, err := r.Lookup(context.Background(), KindUser, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hire Date", f.Title)
	assert.Equal(t, TypeDate, f.Type)
	assert.Equal(t, "user_extrafield_2", f.Ref())

	_, ok, err = r.Lookup(context.Background(), KindUser, 99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolverIsMaterialized(t *testing.T) {
	inspector := &fakeInspector{columns: map[string]bool{
		"user_field_value.field_1": true,
	}}
	r := NewResolver(&fakeHydra{}, inspector)

	ok, err := r.IsMaterialized(context.Background(), KindUser, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsMaterialized(context.Background(), KindUser, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDisambiguateTitles(t *testing.T) {
	r := NewResolver(&fakeHydra{}, &fakeInspector{})
	fields := []Field{
		{ID: 1, Kind: KindUser, Title: "Department"},
		{ID: 7, Kind: KindCourse, Title: "department"},
		{ID: 8, Kind: KindCourse, Title: "Vendor"},
	}

	titles := r.DisambiguateTitles(fields, nil)
	assert.Equal(t, "Department", titles["user_extrafield_1"])
	assert.Equal(t, "department (course)", titles["course_extrafield_7"])
	assert.Equal(t, "Vendor", titles["course_extrafield_8"])
}
