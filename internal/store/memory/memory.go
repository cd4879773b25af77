// Package memory is an in-process Store used for local development and as
// the storage fake in handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnshRaj112/empowerment-backend/internal/models"
	"github.com/AnshRaj112/empowerment-backend/internal/store"
)

type row struct {
	seq int64
	rec models.Record
}

type Store struct {
	mu     sync.RWMutex
	tables map[string][]*row
	seq    int64
	now    func() time.Time

	// Calls counts every storage operation, so tests can assert that
	// rejected requests never reached storage.
	calls int
	// FailWith, when set, makes every operation return it.
	FailWith error
	// FailPoints makes IncrementPoints fail while the rest keeps working.
	FailPoints error
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		tables: make(map[string][]*row),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Calls returns how many store operations were attempted.
func (s *Store) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

func (s *Store) enter() error {
	s.calls++
	return s.FailWith
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enter()
}

func (s *Store) Close() error { return nil }

func (s *Store) GetPrincipal(ctx context.Context, uid string) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	r := s.findOne(models.Users.Table, func(rec models.Record) bool { return rec[models.OwnerUID] == uid })
	if r == nil {
		return nil, store.ErrNotFound
	}
	return project(models.Users, r.rec), nil
}

func (s *Store) CreatePrincipal(ctx context.Context, uid string, rec models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	if r := s.findOne(models.Users.Table, func(x models.Record) bool { return x[models.OwnerUID] == uid }); r != nil {
		return project(models.Users, r.rec), nil
	}
	rec = rec.Clone()
	if _, ok := rec["total_points"]; !ok {
		rec["total_points"] = int64(0)
	}
	return project(models.Users, s.insert(models.Users, uid, rec)), nil
}

func (s *Store) UpdatePrincipal(ctx context.Context, uid string, patch models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	r := s.findOne(models.Users.Table, func(rec models.Record) bool { return rec[models.OwnerUID] == uid })
	if r == nil {
		return nil, store.ErrNotFound
	}
	s.apply(models.Users, r.rec, patch)
	return project(models.Users, r.rec), nil
}

func (s *Store) IncrementPoints(ctx context.Context, uid string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return err
	}
	if s.FailPoints != nil {
		return s.FailPoints
	}
	r := s.findOne(models.Users.Table, func(rec models.Record) bool { return rec[models.OwnerUID] == uid })
	if r == nil {
		return nil
	}
	total, _ := r.rec["total_points"].(int64)
	r.rec["total_points"] = total + int64(points)
	return nil
}

func (s *Store) List(ctx context.Context, res models.Resource, owner string, opts store.ListOptions) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	rows := s.filter(res.Table, func(rec models.Record) bool {
		if rec[res.OwnerColumn] != owner {
			return false
		}
		return opts.FilterValue == "" || rec[res.FilterColumn] == opts.FilterValue
	})
	return s.ordered(res, rows), nil
}

func (s *Store) Get(ctx context.Context, res models.Resource, owner, id string) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	r := s.findOne(res.Table, ownedBy(res, owner, id))
	if r == nil {
		return nil, store.ErrNotFound
	}
	return project(res, r.rec), nil
}

func (s *Store) Create(ctx context.Context, res models.Resource, owner string, rec models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	return project(res, s.insert(res, owner, rec)), nil
}

func (s *Store) Update(ctx context.Context, res models.Resource, owner, id string, patch models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	r := s.findOne(res.Table, ownedBy(res, owner, id))
	if r == nil {
		return nil, store.ErrNotFound
	}
	s.apply(res, r.rec, patch)
	return project(res, r.rec), nil
}

func (s *Store) Delete(ctx context.Context, res models.Resource, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return err
	}
	match := ownedBy(res, owner, id)
	kept := s.tables[res.Table][:0]
	for _, r := range s.tables[res.Table] {
		if !match(r.rec) {
			kept = append(kept, r)
		}
	}
	s.tables[res.Table] = kept
	return nil
}

func (s *Store) ListFamilyGroups(ctx context.Context, uid string) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	memberOf := make(map[any]bool)
	for _, m := range s.tables[models.FamilyMembers.Table] {
		if m.rec[models.OwnerUID] == uid {
			memberOf[m.rec["family_group_id"]] = true
		}
	}
	groups := s.filter(models.FamilyGroups.Table, func(rec models.Record) bool {
		return rec[models.OwnerCreator] == uid || memberOf[rec[models.IDColumn]]
	})
	out := s.ordered(models.FamilyGroups, groups)
	for _, g := range out {
		g["family_members"] = s.membersOf(g.String(models.IDColumn))
	}
	return out, nil
}

func (s *Store) CreateFamilyGroup(ctx context.Context, uid string, rec models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	group := s.insert(models.FamilyGroups, uid, rec)
	s.insert(models.FamilyMembers, uid, models.Record{
		"family_group_id": group[models.IDColumn],
		"role":            models.RoleAdmin,
		"status":          models.StatusActive,
	})
	return project(models.FamilyGroups, group), nil
}

func (s *Store) IsFamilyMember(ctx context.Context, groupID, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return false, err
	}
	return s.isMember(groupID, uid), nil
}

func (s *Store) FamilyMemberUIDs(ctx context.Context, uid string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	groups := make(map[any]bool)
	for _, m := range s.tables[models.FamilyMembers.Table] {
		if m.rec[models.OwnerUID] == uid {
			groups[m.rec["family_group_id"]] = true
		}
	}
	seen := map[string]bool{uid: true}
	var out []string
	for _, m := range s.tables[models.FamilyMembers.Table] {
		other, _ := m.rec[models.OwnerUID].(string)
		if groups[m.rec["family_group_id"]] && !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListFamilyTasks(ctx context.Context, groupID string) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	rows := s.filter(models.FamilyTasks.Table, func(rec models.Record) bool { return rec["family_group_id"] == groupID })
	return s.ordered(models.FamilyTasks, rows), nil
}

func (s *Store) CreateFamilyTask(ctx context.Context, groupID, uid string, rec models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	rec = rec.Clone()
	rec["family_group_id"] = groupID
	rec["updated_by"] = uid
	if _, ok := rec["completed"]; !ok {
		rec["completed"] = false
	}
	return project(models.FamilyTasks, s.insert(models.FamilyTasks, uid, rec)), nil
}

func (s *Store) UpdateFamilyTask(ctx context.Context, uid, taskID string, patch models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	r := s.findOne(models.FamilyTasks.Table, func(rec models.Record) bool { return rec[models.IDColumn] == taskID })
	if r == nil || !s.isMember(r.rec.String("family_group_id"), uid) {
		return nil, store.ErrNotFound
	}
	patch = patch.Clone()
	patch["updated_by"] = uid
	s.apply(models.FamilyTasks, r.rec, patch)
	return project(models.FamilyTasks, r.rec), nil
}

// helpers; callers hold s.mu

func (s *Store) insert(res models.Resource, owner string, rec models.Record) models.Record {
	s.seq++
	now := s.now()
	stored := rec.Clone()
	stored[models.IDColumn] = uuid.NewString()
	stored[res.OwnerColumn] = owner
	stored[models.CreatedAtColumn] = now
	if res.HasUpdatedAt() {
		stored[models.UpdatedAtColumn] = now
	}
	s.tables[res.Table] = append(s.tables[res.Table], &row{seq: s.seq, rec: stored})
	return stored
}

func (s *Store) apply(res models.Resource, rec, patch models.Record) {
	for k, v := range patch {
		rec[k] = v
	}
	if res.HasUpdatedAt() {
		rec[models.UpdatedAtColumn] = s.now()
	}
}

func (s *Store) findOne(table string, match func(models.Record) bool) *row {
	for _, r := range s.tables[table] {
		if match(r.rec) {
			return r
		}
	}
	return nil
}

func (s *Store) filter(table string, match func(models.Record) bool) []*row {
	var out []*row
	for _, r := range s.tables[table] {
		if match(r.rec) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) ordered(res models.Resource, rows []*row) []models.Record {
	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(rows[i].rec[res.OrderBy], rows[j].rec[res.OrderBy])
		if c == 0 {
			c = int(rows[i].seq - rows[j].seq)
		}
		if res.OrderAsc {
			return c < 0
		}
		return c > 0
	})
	out := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, project(res, r.rec))
	}
	return out
}

func (s *Store) isMember(groupID, uid string) bool {
	for _, m := range s.tables[models.FamilyMembers.Table] {
		if m.rec["family_group_id"] == groupID && m.rec[models.OwnerUID] == uid {
			return true
		}
	}
	return false
}

func (s *Store) membersOf(groupID string) []models.Record {
	members := []models.Record{}
	for _, m := range s.tables[models.FamilyMembers.Table] {
		if m.rec["family_group_id"] == groupID {
			members = append(members, models.Record{
				models.OwnerUID: m.rec[models.OwnerUID],
				"role":          m.rec["role"],
				"status":        m.rec["status"],
			})
		}
	}
	return members
}

func ownedBy(res models.Resource, owner, id string) func(models.Record) bool {
	return func(rec models.Record) bool {
		return rec[models.IDColumn] == id && rec[res.OwnerColumn] == owner
	}
}

// project copies the declared columns, filling absent ones with nil, so the
// shape matches a SQL row.
func project(res models.Resource, rec models.Record) models.Record {
	out := make(models.Record, len(res.Columns))
	for _, c := range res.Columns {
		out[c.Name] = rec[c.Name]
	}
	return out
}

func compare(a, b any) int {
	switch x := a.(type) {
	case time.Time:
		y, _ := b.(time.Time)
		return x.Compare(y)
	case int64:
		y, _ := b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		y, _ := b.(string)
		return strings.Compare(x, y)
	case nil:
		if b == nil {
			return 0
		}
		return 1 // NULLs sort last ascending, like Postgres
	}
	if b == nil {
		return -1
	}
	return 0
}
