package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/models"
)

func newTestStore(t *testing.T, projects ...models.Project) *Store {
	t.Helper()
	s := New(zap.NewNop())
	if len(projects) > 0 {
		s.ReplaceAll(projects)
	}
	return s
}

func TestStore_ReplaceAll_ContainsExactlyGivenProjects(t *testing.T) {
	s := newTestStore(t,
		models.Project{ID: "p1", Name: "Alpha"},
		models.Project{ID: "p2", Name: "Beta"},
	)

	s.ReplaceAll([]models.Project{{ID: "p3", Name: "Gamma"}})

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "p3", list[0].ID)
	_, ok := s.Get("p1")
	assert.False(t, ok)
}

func TestStore_List_SortedByName(t *testing.T) {
	s := newTestStore(t,
		models.Project{ID: "b", Name: "zeta"},
		models.Project{ID: "a", Name: "Alpha"},
		models.Project{ID: "c", Name: "alpha"},
	)

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestStore_Upsert_InsertsAndReplaces(t *testing.T) {
	s := newTestStore(t)

	s.Upsert("p1", models.Project{Name: "First"})
	p, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "First", p.Name)

	s.Upsert("p1", models.Project{Name: "Second", Description: "d"})
	p, _ = s.Get("p1")
	assert.Equal(t, "Second", p.Name)
	assert.Equal(t, "d", p.Description)
}

func TestStore_Merge_KeepsNestedCollections(t *testing.T) {
	s := newTestStore(t)
	s.Merge("p1", models.Project{Name: "First"})
	require.True(t, UpsertNested(s, "p1", MeetingNotes, models.MeetingNote{ID: "n1"}))
	require.True(t, UpsertNested(s, "p1", Reports, models.Report{ID: "r1"}))

	s.Merge("p1", models.Project{Name: "Second", Users: []models.User{{ID: "u1"}}})

	p, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "Second", p.Name)
	assert.Len(t, p.Users, 1)
	assert.Contains(t, p.MeetingNotes, "n1")
	assert.Contains(t, p.Reports, "r1")
}

func TestStore_Merge_UnchangedIsNoop(t *testing.T) {
	s := newTestStore(t, models.Project{ID: "p1", Name: "Alpha"})
	require.True(t, UpsertNested(s, "p1", Messages, models.Message{ID: "m1"}))
	before := s.Version()

	s.Merge("p1", models.Project{Name: "Alpha"})

	assert.Equal(t, before, s.Version())
}

func TestStore_Patch_UnknownProjectIsNoop(t *testing.T) {
	s := newTestStore(t, models.Project{ID: "p1", Name: "Alpha"})
	before := s.Version()

	name := "Renamed"
	ok := s.Patch("missing", ProjectPatch{Name: &name})

	assert.False(t, ok)
	assert.Equal(t, before, s.Version())
	_, exists := s.Get("missing")
	assert.False(t, exists)
}

func TestStore_Patch_MergesFields(t *testing.T) {
	s := newTestStore(t, models.Project{ID: "p1", Name: "Alpha", Description: "keep"})

	name := "Renamed"
	require.True(t, s.Patch("p1", ProjectPatch{Name: &name}))

	p, _ := s.Get("p1")
	assert.Equal(t, "Renamed", p.Name)
	assert.Equal(t, "keep", p.Description)
}

func TestStore_UpsertNested_UnknownProjectIsNoop(t *testing.T) {
	s := newTestStore(t)

	ok := UpsertNested(s, "missing", Reports, models.Report{ID: "r1"})

	assert.False(t, ok)
	assert.Equal(t, uint64(0), s.Version())
	assert.Empty(t, s.List())
}

func TestStore_UpsertNested_IsIdempotent(t *testing.T) {
	s := newTestStore(t, models.Project{ID: "p1", Name: "Alpha"})
	note := models.MeetingNote{ID: "n1", Name: "Note n1", Loading: true, Timestamp: time.Unix(100, 0).UTC()}

	require.True(t, UpsertNested(s, "p1", MeetingNotes, note))
	first, _ := s.Get("p1")
	version := s.Version()

	require.True(t, UpsertNested(s, "p1", MeetingNotes, note))
	second, _ := s.Get("p1")

	assert.Equal(t, first, second)
	assert.Equal(t, version, s.Version(), "duplicate merge must not publish a change")
}

func TestStore_UpsertNested_ProducesNewMap(t *testing.T) {
	s := newTestStore(t, models.Project{ID: "p1"})
	require.True(t, UpsertNested(s, "p1", Reports, models.Report{ID: "r1"}))

	s.mu.RLock()
	oldMap := s.projects["p1"].Reports
	s.mu.RUnlock()

	require.True(t, UpsertNested(s, "p1", Reports, models.Report{ID: "r2"}))

	assert.Len(t, oldMap, 1, "previous nested map must not be mutated")
	items, ok := Items(s, "p1", Reports)
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestStore_Get_ReturnsIsolatedCopy(t *testing.T) {
	s := newTestStore(t, models.Project{ID: "p1", Users: []models.User{{ID: "u1"}}})
	require.True(t, UpsertNested(s, "p1", Reports, models.Report{ID: "r1", UserIDs: []string{"u1"}}))

	p, _ := s.Get("p1")
	p.Users[0].ID = "changed"
	r := p.Reports["r1"]
	r.UserIDs[0] = "changed"
	p.Reports["r2"] = models.Report{ID: "r2"}

	fresh, _ := s.Get("p1")
	assert.Equal(t, "u1", fresh.Users[0].ID)
	assert.Equal(t, []string{"u1"}, fresh.Reports["r1"].UserIDs)
	assert.Len(t, fresh.Reports, 1)
}

func TestStore_ReplaceNested(t *testing.T) {
	s := newTestStore(t, models.Project{ID: "p1"})
	require.True(t, UpsertNested(s, "p1", Messages, models.Message{ID: "old"}))

	require.True(t, ReplaceNested(s, "p1", Messages, []models.Message{{ID: "m1"}, {ID: "m2"}}))

	_, hasOld := Item(s, "p1", Messages, "old")
	assert.False(t, hasOld)
	items, _ := Items(s, "p1", Messages)
	assert.Len(t, items, 2)

	assert.False(t, ReplaceNested(s, "missing", Messages, []models.Message{{ID: "m1"}}))
}

func TestStore_RemoveUser(t *testing.T) {
	s := newTestStore(t, models.Project{ID: "p1", Users: []models.User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}})

	require.True(t, s.RemoveUser("p1", "u2"))

	p, _ := s.Get("p1")
	assert.Equal(t, []string{"u1", "u3"}, models.UserIDs(p.Users))
}

func TestStore_AddUsers_SkipsExisting(t *testing.T) {
	s := newTestStore(t, models.Project{ID: "p1", Users: []models.User{{ID: "u1"}}})
	version := s.Version()

	require.True(t, s.AddUsers("p1", []models.User{{ID: "u1"}}))
	assert.Equal(t, version, s.Version())

	require.True(t, s.AddUsers("p1", []models.User{{ID: "u2"}}))
	p, _ := s.Get("p1")
	assert.Equal(t, []string{"u1", "u2"}, models.UserIDs(p.Users))
}

func TestStore_RemoveNested(t *testing.T) {
	s := newTestStore(t, models.Project{ID: "p1"})
	m := models.UserMapping{ProjectID: "p1", Platform: models.PlatformGitHub, PlatformUserID: "octo", UserID: "u1"}
	require.True(t, UpsertNested(s, "p1", UserMappings, m))

	require.True(t, RemoveNested(s, "p1", UserMappings, m.Key()))

	_, ok := Item(s, "p1", UserMappings, "GITHUB:octo")
	assert.False(t, ok)
}

func TestStore_Subscribe_ReceivesChanges(t *testing.T) {
	s := newTestStore(t, models.Project{ID: "p1"})
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	require.True(t, UpsertNested(s, "p1", Reports, models.Report{ID: "r1"}))

	select {
	case change := <-events:
		assert.Equal(t, "p1", change.ProjectID)
		assert.Equal(t, CollectionReports, change.Collection)
		assert.Equal(t, "r1", change.ItemID)
		assert.Equal(t, s.Version(), change.Version)
	case <-time.After(time.Second):
		t.Fatal("expected change event")
	}
}

func TestStore_Unsubscribe_ClosesChannel(t *testing.T) {
	s := newTestStore(t)
	events, unsubscribe := s.Subscribe()

	unsubscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open)
	s.Upsert("p1", models.Project{})
}

func TestStore_SetOnChange(t *testing.T) {
	s := newTestStore(t)
	var seen []Change
	s.SetOnChange(func(c Change) {
		// Reading from the store inside the callback must not deadlock.
		_, _ = s.Get(c.ProjectID)
		seen = append(seen, c)
	})

	s.Upsert("p1", models.Project{Name: "A"})
	s.Upsert("p1", models.Project{Name: "A"})

	require.Len(t, seen, 1)
	assert.Equal(t, uint64(1), seen[0].Version)
}
