package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/empowerment-backend/internal/models"
	"github.com/AnshRaj112/empowerment-backend/internal/store"
)

func newClockedStore() *Store {
	s := New()
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		t = t.Add(time.Second)
		return t
	}
	return s
}

func TestOwnerIsolation(t *testing.T) {
	ctx := context.Background()
	s := newClockedStore()

	mine, err := s.Create(ctx, models.Journals, "alice", models.Record{"title": "mine", "type": "gratitude"})
	require.NoError(t, err)
	_, err = s.Create(ctx, models.Journals, "bob", models.Record{"title": "theirs"})
	require.NoError(t, err)

	list, err := s.List(ctx, models.Journals, "alice", store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0]["title"])

	id := mine.String(models.IDColumn)
	_, err = s.Get(ctx, models.Journals, "bob", id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Update(ctx, models.Journals, "bob", id, models.Record{"title": "hijacked"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Delete(ctx, models.Journals, "bob", id))
	got, err := s.Get(ctx, models.Journals, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, "mine", got["title"])
}

func TestListOrderingAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newClockedStore()

	for _, title := range []string{"first", "second", "third"} {
		kind := "career"
		if title == "second" {
			kind = "health"
		}
		_, err := s.Create(ctx, models.CareerGoals, "alice", models.Record{"title": title, "status": kind})
		require.NoError(t, err)
	}

	all, err := s.List(ctx, models.CareerGoals, "alice", store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0]["title"])
	assert.Equal(t, "first", all[2]["title"])

	filtered, err := s.List(ctx, models.CareerGoals, "alice", store.ListOptions{FilterValue: "health"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "second", filtered[0]["title"])
}

func TestContactsOrderedByPriorityAscending(t *testing.T) {
	ctx := context.Background()
	s := newClockedStore()

	for _, p := range []int64{3, 1, 2} {
		_, err := s.Create(ctx, models.TrustedContacts, "alice", models.Record{"name": "c", "phone": "1", "priority": p})
		require.NoError(t, err)
	}

	list, err := s.List(ctx, models.TrustedContacts, "alice", store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list[0]["priority"])
	assert.Equal(t, int64(3), list[2]["priority"])
}

func TestUpdateBumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s := newClockedStore()

	rec, err := s.Create(ctx, models.Journals, "alice", models.Record{"title": "a"})
	require.NoError(t, err)

	updated, err := s.Update(ctx, models.Journals, "alice", rec.String("id"), models.Record{"title": "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", updated["title"])
	assert.Equal(t, rec["created_at"], updated["created_at"])
	assert.True(t, updated["updated_at"].(time.Time).After(rec["updated_at"].(time.Time)))
}

func TestPrincipalAndPoints(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetPrincipal(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreatePrincipal(ctx, "alice", models.Record{"email": "a@example.com"})
	require.NoError(t, err)
	again, err := s.CreatePrincipal(ctx, "alice", models.Record{"email": "other@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", again["email"])

	require.NoError(t, s.IncrementPoints(ctx, "alice", 10))
	require.NoError(t, s.IncrementPoints(ctx, "alice", 5))

	p, err := s.GetPrincipal(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(15), p["total_points"])
}

func TestFamilyGroupsAndTasks(t *testing.T) {
	ctx := context.Background()
	s := newClockedStore()

	group, err := s.CreateFamilyGroup(ctx, "alice", models.Record{"name": "Home"})
	require.NoError(t, err)
	gid := group.String("id")

	ok, err := s.IsFamilyMember(ctx, gid, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	groups, err := s.ListFamilyGroups(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	members := groups[0]["family_members"].([]models.Record)
	require.Len(t, members, 1)
	assert.Equal(t, models.RoleAdmin, members[0]["role"])

	others, err := s.ListFamilyGroups(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, others)

	task, err := s.CreateFamilyTask(ctx, gid, "alice", models.Record{"title": "Groceries"})
	require.NoError(t, err)
	assert.Equal(t, false, task["completed"])

	_, err = s.UpdateFamilyTask(ctx, "bob", task.String("id"), models.Record{"completed": true})
	assert.ErrorIs(t, err, store.ErrNotFound)

	done, err := s.UpdateFamilyTask(ctx, "alice", task.String("id"), models.Record{"completed": true})
	require.NoError(t, err)
	assert.Equal(t, true, done["completed"])
	assert.Equal(t, "alice", done["updated_by"])
}

func TestFailWithCountsCalls(t *testing.T) {
	s := New()
	s.FailWith = errors.New("db down")

	_, err := s.List(context.Background(), models.Journals, "alice", store.ListOptions{})
	assert.EqualError(t, err, "db down")
	assert.Equal(t, 1, s.Calls())
}
