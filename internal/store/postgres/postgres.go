// Package postgres implements store.Store on database/sql with lib/pq.
// Every statement is built from a models.Resource column list, so only
// declared columns ever reach SQL and identifiers are always quoted.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AnshRaj112/empowerment-backend/internal/models"
	"github.com/AnshRaj112/empowerment-backend/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetPrincipal(ctx context.Context, uid string) (models.Record, error) {
	res := models.Users
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		selectList(res), ident(res.Table), ident(res.OwnerColumn))
	rec, err := queryOne(ctx, s.db, res, q, uid)
	if err != nil {
		return nil, wrap("get principal", err)
	}
	return rec, nil
}

// CreatePrincipal inserts the users row, or returns the existing one when a
// concurrent request created it first.
func (s *Store) CreatePrincipal(ctx context.Context, uid string, rec models.Record) (models.Record, error) {
	res := models.Users
	cols, args := assignments(res, rec)
	cols = append([]string{res.OwnerColumn}, cols...)
	args = append([]any{uid}, args...)

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s RETURNING %s",
		ident(res.Table), identList(cols), placeholders(1, len(cols)),
		ident(res.OwnerColumn), ident(res.OwnerColumn), ident(res.OwnerColumn), selectList(res))
	out, err := queryOne(ctx, s.db, res, q, args...)
	if err != nil {
		return nil, wrap("create principal", err)
	}
	return out, nil
}

func (s *Store) UpdatePrincipal(ctx context.Context, uid string, patch models.Record) (models.Record, error) {
	res := models.Users
	set, args := setClause(res, patch)
	args = append(args, uid)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		ident(res.Table), set, ident(res.OwnerColumn), len(args), selectList(res))
	out, err := queryOne(ctx, s.db, res, q, args...)
	if err != nil {
		return nil, wrap("update principal", err)
	}
	return out, nil
}

func (s *Store) IncrementPoints(ctx context.Context, uid string, points int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET total_points = COALESCE(total_points, 0) + $1 WHERE firebase_uid = $2`, points, uid)
	if err != nil {
		return fmt.Errorf("increment points: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, res models.Resource, owner string, opts store.ListOptions) ([]models.Record, error) {
	where := ident(res.OwnerColumn) + " = $1"
	args := []any{owner}
	if opts.FilterValue != "" && res.FilterColumn != "" {
		where += " AND " + ident(res.FilterColumn) + " = $2"
		args = append(args, opts.FilterValue)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		selectList(res), ident(res.Table), where, orderBy(res))
	out, err := queryAll(ctx, s.db, res, q, args...)
	if err != nil {
		return nil, wrap("list "+res.Table, err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, res models.Resource, owner, id string) (models.Record, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND %s = $2",
		selectList(res), ident(res.Table), ident(res.OwnerColumn))
	out, err := queryOne(ctx, s.db, res, q, id, owner)
	if err != nil {
		return nil, wrap("get "+res.Table, err)
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, res models.Resource, owner string, rec models.Record) (models.Record, error) {
	out, err := insert(ctx, s.db, res, owner, rec)
	if err != nil {
		return nil, wrap("create "+res.Table, err)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, res models.Resource, owner, id string, patch models.Record) (models.Record, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	set, args := setClause(res, patch)
	args = append(args, id, owner)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d AND %s = $%d RETURNING %s",
		ident(res.Table), set, len(args)-1, ident(res.OwnerColumn), len(args), selectList(res))
	out, err := queryOne(ctx, s.db, res, q, args...)
	if err != nil {
		return nil, wrap("update "+res.Table, err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, res models.Resource, owner, id string) error {
	if !validID(id) {
		return nil
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND %s = $2", ident(res.Table), ident(res.OwnerColumn))
	if _, err := s.db.ExecContext(ctx, q, id, owner); err != nil {
		return fmt.Errorf("delete %s: %w", res.Table, err)
	}
	return nil
}

func (s *Store) ListFamilyGroups(ctx context.Context, uid string) ([]models.Record, error) {
	res := models.FamilyGroups
	q := fmt.Sprintf(`SELECT %s FROM family_groups
		WHERE created_by_firebase_uid = $1
		   OR id IN (SELECT family_group_id FROM family_members WHERE firebase_uid = $1)
		ORDER BY created_at DESC`, selectList(res))
	groups, err := queryAll(ctx, s.db, res, q, uid)
	if err != nil {
		return nil, wrap("list family groups", err)
	}
	if len(groups) == 0 {
		return groups, nil
	}

	ids := make([]string, len(groups))
	byID := make(map[string]models.Record, len(groups))
	for i, g := range groups {
		ids[i] = g.String(models.IDColumn)
		g["family_members"] = []models.Record{}
		byID[ids[i]] = g
	}

	rows, err := s.db.QueryContext(ctx, `SELECT family_group_id, firebase_uid, role, status
		FROM family_members WHERE family_group_id = ANY($1::uuid[]) ORDER BY created_at ASC`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var groupID, member string
		var role, status sql.NullString
		if err := rows.Scan(&groupID, &member, &role, &status); err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		g, ok := byID[groupID]
		if !ok {
			continue
		}
		g["family_members"] = append(g["family_members"].([]models.Record), models.Record{
			models.OwnerUID: member,
			"role":          nullString(role),
			"status":        nullString(status),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	return groups, nil
}

func (s *Store) CreateFamilyGroup(ctx context.Context, uid string, rec models.Record) (models.Record, error) {
	var group models.Record
	err := WithTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		var err error
		group, err = insert(ctx, tx, models.FamilyGroups, uid, rec)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO family_members (family_group_id, firebase_uid, role, status) VALUES ($1, $2, $3, $4)`,
			group.String(models.IDColumn), uid, models.RoleAdmin, models.StatusActive)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create family group: %w", err)
	}
	return group, nil
}

func (s *Store) IsFamilyMember(ctx context.Context, groupID, uid string) (bool, error) {
	if !validID(groupID) {
		return false, nil
	}
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM family_members WHERE family_group_id = $1 AND firebase_uid = $2)`,
		groupID, uid).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check family membership: %w", err)
	}
	return ok, nil
}

func (s *Store) FamilyMemberUIDs(ctx context.Context, uid string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT other.firebase_uid
		FROM family_members mine
		JOIN family_members other ON other.family_group_id = mine.family_group_id
		WHERE mine.firebase_uid = $1 AND other.firebase_uid <> $1
		ORDER BY other.firebase_uid`, uid)
	if err != nil {
		return nil, fmt.Errorf("list family member uids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var other string
		if err := rows.Scan(&other); err != nil {
			return nil, fmt.Errorf("scan family member uid: %w", err)
		}
		out = append(out, other)
	}
	return out, rows.Err()
}

func (s *Store) ListFamilyTasks(ctx context.Context, groupID string) ([]models.Record, error) {
	res := models.FamilyTasks
	if !validID(groupID) {
		return []models.Record{}, nil
	}
	q := fmt.Sprintf("SELECT %s FROM family_tasks WHERE family_group_id = $1 ORDER BY %s",
		selectList(res), orderBy(res))
	out, err := queryAll(ctx, s.db, res, q, groupID)
	if err != nil {
		return nil, wrap("list family tasks", err)
	}
	return out, nil
}

func (s *Store) CreateFamilyTask(ctx context.Context, groupID, uid string, rec models.Record) (models.Record, error) {
	rec = rec.Clone()
	rec["family_group_id"] = groupID
	rec["updated_by"] = uid
	out, err := insert(ctx, s.db, models.FamilyTasks, uid, rec)
	if err != nil {
		return nil, wrap("create family task", err)
	}
	return out, nil
}

func (s *Store) UpdateFamilyTask(ctx context.Context, uid, taskID string, patch models.Record) (models.Record, error) {
	res := models.FamilyTasks
	if !validID(taskID) {
		return nil, store.ErrNotFound
	}
	patch = patch.Clone()
	patch["updated_by"] = uid
	set, args := setClause(res, patch)
	args = append(args, taskID, uid)
	q := fmt.Sprintf(`UPDATE family_tasks SET %s
		WHERE id = $%d AND family_group_id IN (SELECT family_group_id FROM family_members WHERE firebase_uid = $%d)
		RETURNING %s`, set, len(args)-1, len(args), selectList(res))
	out, err := queryOne(ctx, s.db, res, q, args...)
	if err != nil {
		return nil, wrap("update family task", err)
	}
	return out, nil
}

func insert(ctx context.Context, db DBTX, res models.Resource, owner string, rec models.Record) (models.Record, error) {
	cols, args := assignments(res, rec)
	cols = append([]string{res.OwnerColumn}, cols...)
	args = append([]any{owner}, args...)
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		ident(res.Table), identList(cols), placeholders(1, len(cols)), selectList(res))
	return queryOne(ctx, db, res, q, args...)
}

// assignments returns the writable keys of rec in column order, skipping
// the owner, id and timestamp columns, with their SQL argument values.
func assignments(res models.Resource, rec models.Record) ([]string, []any) {
	var cols []string
	var args []any
	for _, k := range res.OrderedKeys(rec) {
		switch k {
		case models.IDColumn, res.OwnerColumn, models.CreatedAtColumn, models.UpdatedAtColumn:
			continue
		}
		col, _ := res.Column(k)
		cols = append(cols, k)
		args = append(args, toSQL(col, rec[k]))
	}
	return cols, args
}

func setClause(res models.Resource, patch models.Record) (string, []any) {
	cols, args := assignments(res, patch)
	parts := make([]string, 0, len(cols)+1)
	for i, c := range cols {
		parts = append(parts, fmt.Sprintf("%s = $%d", ident(c), i+1))
	}
	if res.HasUpdatedAt() {
		parts = append(parts, "updated_at = NOW()")
	}
	return strings.Join(parts, ", "), args
}

func queryOne(ctx context.Context, db DBTX, res models.Resource, q string, args ...any) (models.Record, error) {
	rows, err := queryAll(ctx, db, res, q, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return rows[0], nil
}

func queryAll(ctx context.Context, db DBTX, res models.Resource, q string, args ...any) ([]models.Record, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := res.ColumnNames()
	out := []models.Record{}
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(models.Record, len(names))
		for i, name := range names {
			col, _ := res.Column(name)
			rec[name] = fromSQL(col, vals[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func toSQL(col models.Column, v any) any {
	if v == nil {
		return nil
	}
	if col.Kind == models.JSON {
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(b)
	}
	return v
}

// fromSQL normalizes driver values: lib/pq hands back uuid, numeric and
// json columns as []byte.
func fromSQL(col models.Column, v any) any {
	switch t := v.(type) {
	case []byte:
		if col.Kind == models.JSON {
			var out any
			if err := json.Unmarshal(t, &out); err == nil {
				return out
			}
		}
		return string(t)
	case time.Time:
		return t.UTC()
	}
	return v
}

func selectList(res models.Resource) string { return identList(res.ColumnNames()) }

func orderBy(res models.Resource) string {
	dir := "DESC"
	if res.OrderAsc {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s, id", ident(res.OrderBy), dir)
}

func ident(name string) string { return pq.QuoteIdentifier(name) }

func identList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

// validID rejects values Postgres would fail to cast to uuid.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

func wrap(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
