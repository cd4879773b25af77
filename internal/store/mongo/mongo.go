// Package mongo implements store.Store on MongoDB. Each resource table maps
// to a collection of the same name; the record id is stored as a UUID string
// in _id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/empowerment-backend/internal/models"
	"github.com/AnshRaj112/empowerment-backend/internal/store"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{client: client, db: db, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureIndexes creates the owner and ordering indexes for every collection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, res := range []models.Resource{
		models.VaultDocuments, models.Journals, models.CareerGoals, models.TrustedContacts,
		models.SafetyAlerts, models.FamilyGroups, models.FamilyMembers,
	} {
		_, err := s.db.Collection(res.Table).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: res.OwnerColumn, Value: 1}, {Key: res.OrderBy, Value: -1}},
			Options: options.Index().SetName("idx_owner_" + res.OrderBy),
		})
		if err != nil {
			return fmt.Errorf("index %s: %w", res.Table, err)
		}
	}
	_, err := s.db.Collection(models.Users.Table).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: models.OwnerUID, Value: 1}},
		Options: options.Index().SetName("uniq_firebase_uid").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("index users: %w", err)
	}
	_, err = s.db.Collection(models.FamilyTasks.Table).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "family_group_id", Value: 1}, {Key: models.UpdatedAtColumn, Value: -1}},
		Options: options.Index().SetName("idx_group_updated_at"),
	})
	if err != nil {
		return fmt.Errorf("index family_tasks: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) GetPrincipal(ctx context.Context, uid string) (models.Record, error) {
	return s.findOne(ctx, models.Users, bson.M{models.OwnerUID: uid})
}

func (s *Store) CreatePrincipal(ctx context.Context, uid string, rec models.Record) (models.Record, error) {
	res := models.Users
	doc := s.newDocument(res, uid, rec)
	if _, ok := doc["total_points"]; !ok {
		doc["total_points"] = int64(0)
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var out bson.M
	err := s.db.Collection(res.Table).
		FindOneAndUpdate(ctx, bson.M{models.OwnerUID: uid}, bson.M{"$setOnInsert": doc}, opts).
		Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("create principal: %w", err)
	}
	return fromDocument(res, out), nil
}

func (s *Store) UpdatePrincipal(ctx context.Context, uid string, patch models.Record) (models.Record, error) {
	return s.updateOne(ctx, models.Users, bson.M{models.OwnerUID: uid}, patch)
}

func (s *Store) IncrementPoints(ctx context.Context, uid string, points int) error {
	_, err := s.db.Collection(models.Users.Table).UpdateOne(ctx,
		bson.M{models.OwnerUID: uid},
		bson.M{"$inc": bson.M{"total_points": points}})
	if err != nil {
		return fmt.Errorf("increment points: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, res models.Resource, owner string, opts store.ListOptions) ([]models.Record, error) {
	return s.find(ctx, res, listFilter(res, owner, opts))
}

func (s *Store) Get(ctx context.Context, res models.Resource, owner, id string) (models.Record, error) {
	return s.findOne(ctx, res, ownedFilter(res, owner, id))
}

func (s *Store) Create(ctx context.Context, res models.Resource, owner string, rec models.Record) (models.Record, error) {
	doc := s.newDocument(res, owner, rec)
	if _, err := s.db.Collection(res.Table).InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("create %s: %w", res.Table, err)
	}
	return fromDocument(res, doc), nil
}

func (s *Store) Update(ctx context.Context, res models.Resource, owner, id string, patch models.Record) (models.Record, error) {
	return s.updateOne(ctx, res, ownedFilter(res, owner, id), patch)
}

func (s *Store) Delete(ctx context.Context, res models.Resource, owner, id string) error {
	if _, err := s.db.Collection(res.Table).DeleteOne(ctx, ownedFilter(res, owner, id)); err != nil {
		return fmt.Errorf("delete %s: %w", res.Table, err)
	}
	return nil
}

func (s *Store) ListFamilyGroups(ctx context.Context, uid string) ([]models.Record, error) {
	ids, err := s.groupIDs(ctx, uid)
	if err != nil {
		return nil, err
	}
	groups, err := s.find(ctx, models.FamilyGroups, bson.M{"$or": bson.A{
		bson.M{models.OwnerCreator: uid},
		bson.M{"_id": bson.M{"$in": ids}},
	}})
	if err != nil || len(groups) == 0 {
		return groups, err
	}

	gids := make(bson.A, 0, len(groups))
	byID := make(map[string]models.Record, len(groups))
	for _, g := range groups {
		id := g.String(models.IDColumn)
		gids = append(gids, id)
		g["family_members"] = []models.Record{}
		byID[id] = g
	}
	members, err := s.find(ctx, models.FamilyMembers, bson.M{"family_group_id": bson.M{"$in": gids}})
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		g, ok := byID[m.String("family_group_id")]
		if !ok {
			continue
		}
		g["family_members"] = append(g["family_members"].([]models.Record), models.Record{
			models.OwnerUID: m[models.OwnerUID],
			"role":          m["role"],
			"status":        m["status"],
		})
	}
	return groups, nil
}

// CreateFamilyGroup writes the group and then the admin membership. A
// standalone server has no multi-document transactions, so a failed
// membership insert removes the group again.
func (s *Store) CreateFamilyGroup(ctx context.Context, uid string, rec models.Record) (models.Record, error) {
	group, err := s.Create(ctx, models.FamilyGroups, uid, rec)
	if err != nil {
		return nil, err
	}
	_, err = s.Create(ctx, models.FamilyMembers, uid, models.Record{
		"family_group_id": group[models.IDColumn],
		"role":            models.RoleAdmin,
		"status":          models.StatusActive,
	})
	if err != nil {
		_, _ = s.db.Collection(models.FamilyGroups.Table).DeleteOne(ctx, bson.M{"_id": group[models.IDColumn]})
		return nil, err
	}
	return group, nil
}

func (s *Store) IsFamilyMember(ctx context.Context, groupID, uid string) (bool, error) {
	n, err := s.db.Collection(models.FamilyMembers.Table).CountDocuments(ctx,
		bson.M{"family_group_id": groupID, models.OwnerUID: uid})
	if err != nil {
		return false, fmt.Errorf("check family membership: %w", err)
	}
	return n > 0, nil
}

func (s *Store) FamilyMemberUIDs(ctx context.Context, uid string) ([]string, error) {
	ids, err := s.groupIDs(ctx, uid)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	vals, err := s.db.Collection(models.FamilyMembers.Table).Distinct(ctx, models.OwnerUID,
		bson.M{"family_group_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("list family member uids: %w", err)
	}
	var out []string
	for _, v := range vals {
		if other, ok := v.(string); ok && other != uid {
			out = append(out, other)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListFamilyTasks(ctx context.Context, groupID string) ([]models.Record, error) {
	return s.find(ctx, models.FamilyTasks, bson.M{"family_group_id": groupID})
}

func (s *Store) CreateFamilyTask(ctx context.Context, groupID, uid string, rec models.Record) (models.Record, error) {
	rec = rec.Clone()
	rec["family_group_id"] = groupID
	rec["updated_by"] = uid
	if _, ok := rec["completed"]; !ok {
		rec["completed"] = false
	}
	return s.Create(ctx, models.FamilyTasks, uid, rec)
}

func (s *Store) UpdateFamilyTask(ctx context.Context, uid, taskID string, patch models.Record) (models.Record, error) {
	var task bson.M
	err := s.db.Collection(models.FamilyTasks.Table).FindOne(ctx, bson.M{"_id": taskID}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get family task: %w", err)
	}
	groupID, _ := task["family_group_id"].(string)
	member, err := s.IsFamilyMember(ctx, groupID, uid)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, store.ErrNotFound
	}
	patch = patch.Clone()
	patch["updated_by"] = uid
	return s.updateOne(ctx, models.FamilyTasks, bson.M{"_id": taskID, "family_group_id": groupID}, patch)
}

func (s *Store) groupIDs(ctx context.Context, uid string) (bson.A, error) {
	vals, err := s.db.Collection(models.FamilyMembers.Table).Distinct(ctx, "family_group_id", bson.M{models.OwnerUID: uid})
	if err != nil {
		return nil, fmt.Errorf("list family groups: %w", err)
	}
	return bson.A(vals), nil
}

func (s *Store) find(ctx context.Context, res models.Resource, filter bson.M) ([]models.Record, error) {
	cur, err := s.db.Collection(res.Table).Find(ctx, filter, options.Find().SetSort(sortFor(res)))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", res.Table, err)
	}
	defer cur.Close(ctx)

	out := []models.Record{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", res.Table, err)
		}
		out = append(out, fromDocument(res, doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", res.Table, err)
	}
	return out, nil
}

func (s *Store) findOne(ctx context.Context, res models.Resource, filter bson.M) (models.Record, error) {
	var doc bson.M
	err := s.db.Collection(res.Table).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", res.Table, err)
	}
	return fromDocument(res, doc), nil
}

func (s *Store) updateOne(ctx context.Context, res models.Resource, filter bson.M, patch models.Record) (models.Record, error) {
	var doc bson.M
	err := s.db.Collection(res.Table).
		FindOneAndUpdate(ctx, filter, bson.M{"$set": s.setDocument(res, patch)},
			options.FindOneAndUpdate().SetReturnDocument(options.After)).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", res.Table, err)
	}
	return fromDocument(res, doc), nil
}

// newDocument builds the insert document: a fresh _id, the owner and the
// timestamps, plus the declared columns of rec.
func (s *Store) newDocument(res models.Resource, owner string, rec models.Record) bson.M {
	now := s.now()
	doc := bson.M{"_id": uuid.NewString()}
	for _, k := range res.OrderedKeys(rec) {
		doc[k] = rec[k]
	}
	doc[res.OwnerColumn] = owner
	doc[models.CreatedAtColumn] = now
	if res.HasUpdatedAt() {
		doc[models.UpdatedAtColumn] = now
	}
	delete(doc, models.IDColumn)
	return doc
}

func (s *Store) setDocument(res models.Resource, patch models.Record) bson.M {
	set := bson.M{}
	for _, k := range res.OrderedKeys(patch) {
		switch k {
		case models.IDColumn, res.OwnerColumn, models.CreatedAtColumn, models.UpdatedAtColumn:
			continue
		}
		set[k] = patch[k]
	}
	if res.HasUpdatedAt() {
		set[models.UpdatedAtColumn] = s.now()
	}
	return set
}

func listFilter(res models.Resource, owner string, opts store.ListOptions) bson.M {
	filter := bson.M{res.OwnerColumn: owner}
	if opts.FilterValue != "" && res.FilterColumn != "" {
		filter[res.FilterColumn] = opts.FilterValue
	}
	return filter
}

func ownedFilter(res models.Resource, owner, id string) bson.M {
	return bson.M{"_id": id, res.OwnerColumn: owner}
}

func sortFor(res models.Resource) bson.D {
	dir := -1
	if res.OrderAsc {
		dir = 1
	}
	return bson.D{{Key: res.OrderBy, Value: dir}, {Key: "_id", Value: 1}}
}

// fromDocument projects a decoded document onto the resource columns and
// converts BSON types back to the types the rest of the gateway uses.
func fromDocument(res models.Resource, doc bson.M) models.Record {
	rec := make(models.Record, len(res.Columns))
	for _, c := range res.Columns {
		key := c.Name
		if key == models.IDColumn {
			key = "_id"
		}
		rec[c.Name] = fromBSON(doc[key])
	}
	return rec
}

func fromBSON(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = fromBSON(t[i])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = fromBSON(t[i])
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromBSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromBSON(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	}
	return v
}
