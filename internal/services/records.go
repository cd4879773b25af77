// Package services holds the gateway's use cases. Every method takes the
// verified principal uid from the caller; nothing here reads identity from
// request bodies.
package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"

	"github.com/AnshRaj112/empowerment-backend/internal/apperr"
	"github.com/AnshRaj112/empowerment-backend/internal/filestore"
	"github.com/AnshRaj112/empowerment-backend/internal/metrics"
	"github.com/AnshRaj112/empowerment-backend/internal/models"
	"github.com/AnshRaj112/empowerment-backend/internal/store"
)

// RecordService runs the scoped CRUD operations for owned resources.
type RecordService struct {
	store   store.Store
	files   filestore.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRecordService(st store.Store, files filestore.Store, logger *slog.Logger, m *metrics.Metrics) *RecordService {
	if files == nil {
		files = filestore.Disabled{}
	}
	return &RecordService{store: st, files: files, logger: logger, metrics: m}
}

func (s *RecordService) List(ctx context.Context, res models.Resource, owner string, q url.Values) ([]models.Record, error) {
	recs, err := s.store.List(ctx, res, owner, store.ListOptions{FilterValue: res.FilterValue(q)})
	if err != nil {
		return nil, storeError(res, err)
	}
	if recs == nil {
		recs = []models.Record{}
	}
	return recs, nil
}

func (s *RecordService) Get(ctx context.Context, res models.Resource, owner, id string) (models.Record, error) {
	rec, err := s.store.Get(ctx, res, owner, id)
	if err != nil {
		return nil, storeError(res, err)
	}
	return rec, nil
}

// Create writes a new record owned by owner. Resources that award points
// increment the owner's total afterwards; that step never fails the write.
func (s *RecordService) Create(ctx context.Context, res models.Resource, owner string, body map[string]any) (models.Record, error) {
	rec, err := res.Sanitize(body, false)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, res, owner, rec)
}

// create writes an already sanitized record, so server-managed columns
// can be set by the caller.
func (s *RecordService) create(ctx context.Context, res models.Resource, owner string, rec models.Record) (models.Record, error) {
	created, err := s.store.Create(ctx, res, owner, rec)
	if err != nil {
		return nil, storeError(res, err)
	}
	s.awardPoints(ctx, res, owner)
	return created, nil
}

func (s *RecordService) awardPoints(ctx context.Context, res models.Resource, owner string) {
	if res.Points == 0 {
		return
	}
	if err := s.store.IncrementPoints(ctx, owner, res.Points); err != nil {
		s.logger.WarnContext(ctx, "point increment failed",
			"uid", owner,
			"resource", res.Table,
			"points", res.Points,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.PointsFailures.Inc()
		}
	}
}

func (s *RecordService) Update(ctx context.Context, res models.Resource, owner, id string, body map[string]any) (models.Record, error) {
	patch, err := res.Sanitize(body, true)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.Update(ctx, res, owner, id, patch)
	if err != nil {
		return nil, storeError(res, err)
	}
	return updated, nil
}

// Delete removes the record if owner has it. Deleting a vault document also
// removes its stored file on a best-effort basis.
func (s *RecordService) Delete(ctx context.Context, res models.Resource, owner, id string) error {
	var storageKey string
	if res.Table == models.VaultDocuments.Table {
		rec, err := s.store.Get(ctx, res, owner, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil
		case err != nil:
			return storeError(res, err)
		}
		storageKey = rec.String("storage_key")
	}

	if err := s.store.Delete(ctx, res, owner, id); err != nil {
		return storeError(res, err)
	}
	if storageKey != "" {
		if err := s.files.Delete(ctx, owner, storageKey); err != nil {
			s.logger.WarnContext(ctx, "stored file not removed", "uid", owner, "storage_key", storageKey, "error", err)
		}
	}
	return nil
}

// Upload stores a file and records it as a vault document. fields carries
// the optional title, category and description form values.
func (s *RecordService) Upload(ctx context.Context, owner, name, contentType string, r io.Reader, size int64, fields map[string]any) (models.Record, error) {
	obj, err := s.files.Upload(ctx, owner, name, contentType, r, size)
	if errors.Is(err, filestore.ErrDisabled) {
		return nil, apperr.Unavailable("File uploads are not configured")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}

	body := make(map[string]any, len(fields)+5)
	for k, v := range fields {
		body[k] = v
	}
	if t, _ := body["title"].(string); t == "" {
		body["title"] = obj.Name
	}
	body["file_url"] = obj.URL
	body["file_name"] = obj.Name
	body["file_type"] = obj.ContentType
	body["file_size"] = obj.Size

	rec, err := models.VaultDocuments.Sanitize(body, false)
	if err == nil {
		rec["storage_key"] = obj.Key
		rec, err = s.create(ctx, models.VaultDocuments, owner, rec)
	}
	if err != nil {
		if derr := s.files.Delete(ctx, owner, obj.Key); derr != nil {
			s.logger.WarnContext(ctx, "orphaned upload", "uid", owner, "storage_key", obj.Key, "error", derr)
		}
		return nil, err
	}
	return rec, nil
}

// storeError maps store failures onto the public taxonomy.
func storeError(res models.Resource, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(res.Name + " not found")
	default:
		return apperr.Storage(err)
	}
}
