package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/empowerment-backend/internal/models"
	"github.com/AnshRaj112/empowerment-backend/internal/store"
)

const (
	docID   = "8f14e45f-ceea-467f-a8f0-3b8c1e6a0a01"
	groupID = "c9f0f895-fb98-4b91-9f2a-3e2f2b9d7e10"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return New(db), mock
}

// rowsFor builds a result set with every column of res, taking values from
// rec and leaving the rest NULL.
func rowsFor(res models.Resource, recs ...models.Record) *sqlmock.Rows {
	rows := sqlmock.NewRows(res.ColumnNames())
	for _, rec := range recs {
		vals := make([]driver.Value, len(res.Columns))
		for i, c := range res.Columns {
			vals[i] = rec[c.Name]
		}
		rows.AddRow(vals...)
	}
	return rows
}

func TestCreateScopesInsertToOwner(t *testing.T) {
	s, mock := newStoreWithMock(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`^INSERT INTO "vault_documents" \("firebase_uid", "title", "category", "tags"\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING "id", "firebase_uid", "title"`).
		WithArgs("uid-1", "Passport", "identity", `["travel"]`).
		WillReturnRows(rowsFor(models.VaultDocuments, models.Record{
			"id":           []byte(docID),
			"firebase_uid": "uid-1",
			"title":        "Passport",
			"category":     "identity",
			"tags":         []byte(`["travel"]`),
			"created_at":   now,
			"updated_at":   now,
		}))

	rec, err := s.Create(context.Background(), models.VaultDocuments, "uid-1", models.Record{
		"title":    "Passport",
		"category": "identity",
		"tags":     []any{"travel"},
	})
	require.NoError(t, err)

	assert.Equal(t, docID, rec["id"])
	assert.Equal(t, "uid-1", rec["firebase_uid"])
	assert.Equal(t, []any{"travel"}, rec["tags"])
	assert.Equal(t, now, rec["created_at"])
	assert.Contains(t, rec, "description")
	assert.Nil(t, rec["description"])
}

func TestCreateIgnoresClientOwnerAndTimestamps(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`^INSERT INTO "journals" \("firebase_uid", "title"\) VALUES \(\$1, \$2\)`).
		WithArgs("uid-1", "Day one").
		WillReturnRows(rowsFor(models.Journals, models.Record{"id": docID, "firebase_uid": "uid-1", "title": "Day one"}))

	_, err := s.Create(context.Background(), models.Journals, "uid-1", models.Record{
		"title":        "Day one",
		"firebase_uid": "attacker",
		"created_at":   time.Now(),
	})
	require.NoError(t, err)
}

func TestListAppliesOwnerFilterAndOrder(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`^SELECT .+ FROM "vault_documents" WHERE "firebase_uid" = \$1 AND "category" = \$2 ORDER BY "created_at" DESC, id$`).
		WithArgs("uid-1", "identity").
		WillReturnRows(rowsFor(models.VaultDocuments,
			models.Record{"id": "a", "firebase_uid": "uid-1", "title": "One"},
			models.Record{"id": "b", "firebase_uid": "uid-1", "title": "Two"},
		))

	recs, err := s.List(context.Background(), models.VaultDocuments, "uid-1", store.ListOptions{FilterValue: "identity"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "One", recs[0]["title"])
}

func TestListWithoutFilterReturnsEmptySlice(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`^SELECT .+ FROM "trusted_contacts" WHERE "firebase_uid" = \$1 ORDER BY "priority" ASC, id$`).
		WithArgs("uid-1").
		WillReturnRows(rowsFor(models.TrustedContacts))

	recs, err := s.List(context.Background(), models.TrustedContacts, "uid-1", store.ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestUpdateForeignRecordIsNotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`^UPDATE "journals" SET "title" = \$1, updated_at = NOW\(\) WHERE id = \$2 AND "firebase_uid" = \$3 RETURNING`).
		WithArgs("changed", docID, "uid-2").
		WillReturnRows(rowsFor(models.Journals))

	_, err := s.Update(context.Background(), models.Journals, "uid-2", docID, models.Record{"title": "changed"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateMalformedIDSkipsQuery(t *testing.T) {
	s, _ := newStoreWithMock(t)

	_, err := s.Update(context.Background(), models.Journals, "uid-1", "not-a-uuid", models.Record{"title": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteUsesBothPredicates(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`^DELETE FROM "career_goals" WHERE id = \$1 AND "firebase_uid" = \$2$`).
		WithArgs(docID, "uid-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), models.CareerGoals, "uid-1", docID))
	require.NoError(t, s.Delete(context.Background(), models.CareerGoals, "uid-1", "garbage"))
}

func TestStorageErrorIsWrapped(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`^SELECT .+ FROM "journals"`).WillReturnError(errors.New("connection refused"))

	_, err := s.List(context.Background(), models.Journals, "uid-1", store.ListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list journals: connection refused")
}

func TestIncrementPoints(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`^UPDATE users SET total_points = COALESCE\(total_points, 0\) \+ \$1 WHERE firebase_uid = \$2$`).
		WithArgs(int64(10), "uid-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.IncrementPoints(context.Background(), "uid-1", 10))
}

func TestCreatePrincipalUpserts(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`^INSERT INTO "users" \("firebase_uid", "email", "display_name"\) VALUES \(\$1, \$2, \$3\) ON CONFLICT \("firebase_uid"\) DO UPDATE`).
		WithArgs("uid-1", "ana@example.com", "ana").
		WillReturnRows(rowsFor(models.Users, models.Record{
			"id": docID, "firebase_uid": "uid-1", "email": "ana@example.com", "display_name": "ana", "total_points": int64(0),
		}))

	rec, err := s.CreatePrincipal(context.Background(), "uid-1", models.Record{"email": "ana@example.com", "display_name": "ana"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec["total_points"])
}

func TestCreateFamilyGroupInsertsAdminInTransaction(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`^INSERT INTO "family_groups" \("created_by_firebase_uid", "name"\)`).
		WithArgs("uid-1", "Home").
		WillReturnRows(rowsFor(models.FamilyGroups, models.Record{"id": []byte(groupID), "created_by_firebase_uid": "uid-1", "name": "Home"}))
	mock.ExpectExec(`^INSERT INTO family_members`).
		WithArgs(groupID, "uid-1", models.RoleAdmin, models.StatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	group, err := s.CreateFamilyGroup(context.Background(), "uid-1", models.Record{"name": "Home"})
	require.NoError(t, err)
	assert.Equal(t, groupID, group["id"])
}

func TestCreateFamilyGroupRollsBack(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`^INSERT INTO "family_groups"`).
		WillReturnRows(rowsFor(models.FamilyGroups, models.Record{"id": groupID, "created_by_firebase_uid": "uid-1", "name": "Home"}))
	mock.ExpectExec(`^INSERT INTO family_members`).WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	_, err := s.CreateFamilyGroup(context.Background(), "uid-1", models.Record{"name": "Home"})
	assert.ErrorContains(t, err, "fk violation")
}

func TestListFamilyGroupsAttachesMembers(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`SELECT .+ FROM family_groups`).
		WithArgs("uid-1").
		WillReturnRows(rowsFor(models.FamilyGroups, models.Record{"id": groupID, "created_by_firebase_uid": "uid-2", "name": "Home"}))
	mock.ExpectQuery(`SELECT family_group_id, firebase_uid, role, status\s+FROM family_members`).
		WillReturnRows(sqlmock.NewRows([]string{"family_group_id", "firebase_uid", "role", "status"}).
			AddRow(groupID, "uid-2", "admin", "active").
			AddRow(groupID, "uid-1", "member", "active"))

	groups, err := s.ListFamilyGroups(context.Background(), "uid-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)

	members := groups[0]["family_members"].([]models.Record)
	require.Len(t, members, 2)
	assert.Equal(t, "uid-1", members[1]["firebase_uid"])
	assert.Equal(t, "member", members[1]["role"])
}

func TestUpdateFamilyTaskRequiresMembership(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`^UPDATE family_tasks SET "completed" = \$1, "updated_by" = \$2, updated_at = NOW\(\)\s+WHERE id = \$3 AND family_group_id IN \(SELECT family_group_id FROM family_members WHERE firebase_uid = \$4\)`).
		WithArgs(true, "uid-3", docID, "uid-3").
		WillReturnRows(rowsFor(models.FamilyTasks))

	_, err := s.UpdateFamilyTask(context.Background(), "uid-3", docID, models.Record{"completed": true})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
