package access

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const viewCourse = "course_app.view_course"

func tenCourses(authorID int64) []ownedItem {
	items := make([]ownedItem, 0, 10)
	for i := int64(1); i <= 10; i++ {
		owner := int64(100)
		if i == 3 || i == 8 {
			owner = authorID
		}
		items = append(items, ownedItem{id: i, owner: owner})
	}
	return items
}

func TestScopeStaffWithoutViewPermissionSeesOwnRows(t *testing.T) {
	p := &Principal{ID: 42, IsStaff: true, IsActive: true}
	all := tenCourses(p.ID)

	got := Scope(p, all, viewCourse)
	require.Len(t, got, 2)
	require.Equal(t, int64(3), got[0].id)
	require.Equal(t, int64(8), got[1].id)
	require.Len(t, all, 10)
}

func TestScopeFullCollectionForSuperuserAndPermissionHolder(t *testing.T) {
	all := tenCourses(42)
	require.Len(t, Scope(&Principal{ID: 1, IsSuperuser: true}, all, viewCourse), 10)
	require.Len(t, Scope(&Principal{ID: 2, Groups: []Group{{Permissions: []string{viewCourse}}}}, all, viewCourse), 10)
}

func TestScopeEmptyCollection(t *testing.T) {
	principals := []*Principal{
		nil,
		{ID: 1, IsSuperuser: true},
		{ID: 2, Permissions: []string{viewCourse}},
		{ID: 3},
	}
	for _, p := range principals {
		got := Scope(p, []ownedItem{}, viewCourse)
		require.NotNil(t, got)
		require.Empty(t, got)
	}
}

func TestScopeIsIdempotent(t *testing.T) {
	all := tenCourses(42)
	for _, p := range []*Principal{{ID: 42}, {ID: 1, IsSuperuser: true}, {ID: 7}} {
		once := Scope(p, all, viewCourse)
		twice := Scope(p, once, viewCourse)
		require.Equal(t, once, twice)
	}
}

func TestScopeDoesNotMutateInput(t *testing.T) {
	all := tenCourses(42)
	snapshot := append([]ownedItem(nil), all...)
	_ = Scope(&Principal{ID: 42}, all, viewCourse)
	require.Equal(t, snapshot, all)
}

func TestVisibilityFor(t *testing.T) {
	require.Equal(t, Visibility{}, VisibilityFor(nil, viewCourse))
	require.Equal(t, Visibility{All: true}, VisibilityFor(&Principal{ID: 9, Role: &Role{Permissions: []string{viewCourse}}}, viewCourse))
	require.Equal(t, Visibility{OwnerID: 9}, VisibilityFor(&Principal{ID: 9, IsStaff: true}, viewCourse))
	require.False(t, Visibility{}.Allows(ownedItem{owner: 0}))
}
