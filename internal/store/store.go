// Package store defines the storage contract of the gateway. Every
// owned-record operation takes the verified owner identifier and must apply
// it as a predicate; callers never pass client-supplied owner values.
package store

import (
	"context"
	"errors"

	"github.com/AnshRaj112/empowerment-backend/internal/models"
)

// ErrNotFound is returned when a single-record read or update matches no
// row owned by the caller.
var ErrNotFound = errors.New("record not found")

// ListOptions narrows a list query.
type ListOptions struct {
	// FilterValue is compared with Resource.FilterColumn when non-empty.
	FilterValue string
}

type Store interface {
	Ping(ctx context.Context) error
	Close() error

	// GetPrincipal returns the users row for uid or ErrNotFound.
	GetPrincipal(ctx context.Context, uid string) (models.Record, error)
	CreatePrincipal(ctx context.Context, uid string, rec models.Record) (models.Record, error)
	UpdatePrincipal(ctx context.Context, uid string, patch models.Record) (models.Record, error)
	// IncrementPoints atomically adds points to the principal's total.
	IncrementPoints(ctx context.Context, uid string, points int) error

	List(ctx context.Context, res models.Resource, owner string, opts ListOptions) ([]models.Record, error)
	Get(ctx context.Context, res models.Resource, owner, id string) (models.Record, error)
	Create(ctx context.Context, res models.Resource, owner string, rec models.Record) (models.Record, error)
	// Update returns ErrNotFound when id does not exist or belongs to another owner.
	Update(ctx context.Context, res models.Resource, owner, id string, patch models.Record) (models.Record, error)
	// Delete is a no-op when id does not exist or belongs to another owner.
	Delete(ctx context.Context, res models.Resource, owner, id string) error

	// ListFamilyGroups returns groups the uid created or is a member of,
	// each with a "family_members" slice.
	ListFamilyGroups(ctx context.Context, uid string) ([]models.Record, error)
	// CreateFamilyGroup inserts the group and the creator's admin membership.
	CreateFamilyGroup(ctx context.Context, uid string, rec models.Record) (models.Record, error)
	IsFamilyMember(ctx context.Context, groupID, uid string) (bool, error)
	// FamilyMemberUIDs lists the other principals sharing any group with uid.
	FamilyMemberUIDs(ctx context.Context, uid string) ([]string, error)
	ListFamilyTasks(ctx context.Context, groupID string) ([]models.Record, error)
	CreateFamilyTask(ctx context.Context, groupID, uid string, rec models.Record) (models.Record, error)
	// UpdateFamilyTask applies patch when uid is a member of the task's group,
	// otherwise ErrNotFound.
	UpdateFamilyTask(ctx context.Context, uid, taskID string, patch models.Record) (models.Record, error)
}
