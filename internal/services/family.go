package services

import (
	"context"

	"github.com/AnshRaj112/empowerment-backend/internal/apperr"
	"github.com/AnshRaj112/empowerment-backend/internal/models"
	"github.com/AnshRaj112/empowerment-backend/internal/store"
)

// FamilyService manages shared groups. Tasks are visible to and editable by
// every member of their group and nobody else.
type FamilyService struct {
	store store.Store
}

func NewFamilyService(st store.Store) *FamilyService {
	return &FamilyService{store: st}
}

func (s *FamilyService) ListGroups(ctx context.Context, uid string) ([]models.Record, error) {
	groups, err := s.store.ListFamilyGroups(ctx, uid)
	if err != nil {
		return nil, storeError(models.FamilyGroups, err)
	}
	if groups == nil {
		groups = []models.Record{}
	}
	return groups, nil
}

// CreateGroup stores the group with uid as its admin member.
func (s *FamilyService) CreateGroup(ctx context.Context, uid string, body map[string]any) (models.Record, error) {
	rec, err := models.FamilyGroups.Sanitize(body, false)
	if err != nil {
		return nil, err
	}
	group, err := s.store.CreateFamilyGroup(ctx, uid, rec)
	if err != nil {
		return nil, storeError(models.FamilyGroups, err)
	}
	return group, nil
}

func (s *FamilyService) ListTasks(ctx context.Context, uid, groupID string) ([]models.Record, error) {
	if err := s.requireMember(ctx, uid, groupID); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListFamilyTasks(ctx, groupID)
	if err != nil {
		return nil, storeError(models.FamilyTasks, err)
	}
	if tasks == nil {
		tasks = []models.Record{}
	}
	return tasks, nil
}

func (s *FamilyService) CreateTask(ctx context.Context, uid, groupID string, body map[string]any) (models.Record, error) {
	rec, err := models.FamilyTasks.Sanitize(body, false)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, uid, groupID); err != nil {
		return nil, err
	}
	task, err := s.store.CreateFamilyTask(ctx, groupID, uid, rec)
	if err != nil {
		return nil, storeError(models.FamilyTasks, err)
	}
	return task, nil
}

func (s *FamilyService) UpdateTask(ctx context.Context, uid, taskID string, body map[string]any) (models.Record, error) {
	patch, err := models.FamilyTasks.Sanitize(body, true)
	if err != nil {
		return nil, err
	}
	task, err := s.store.UpdateFamilyTask(ctx, uid, taskID, patch)
	if err != nil {
		return nil, storeError(models.FamilyTasks, err)
	}
	return task, nil
}

// requireMember hides groups the caller does not belong to behind a 404.
func (s *FamilyService) requireMember(ctx context.Context, uid, groupID string) error {
	ok, err := s.store.IsFamilyMember(ctx, groupID, uid)
	if err != nil {
		return storeError(models.FamilyGroups, err)
	}
	if !ok {
		return apperr.NotFound("family group not found")
	}
	return nil
}
