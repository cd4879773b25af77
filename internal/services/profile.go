package services

import (
	"context"
	"errors"
	"strings"

	"github.com/AnshRaj112/empowerment-backend/internal/auth"
	"github.com/AnshRaj112/empowerment-backend/internal/models"
	"github.com/AnshRaj112/empowerment-backend/internal/store"
)

type ProfileService struct {
	store store.Store
}

func NewProfileService(st store.Store) *ProfileService {
	return &ProfileService{store: st}
}

// Get returns the principal's profile, creating it from the token claims
// the first time the principal is seen.
func (s *ProfileService) Get(ctx context.Context, c *auth.Claims) (models.Record, error) {
	rec, err := s.store.GetPrincipal(ctx, c.UID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, storeError(models.Users, err)
	}

	rec, err = s.store.CreatePrincipal(ctx, c.UID, models.Record{
		"email":          c.Email,
		"email_verified": c.EmailVerified,
		"display_name":   displayName(c),
		"phone":          c.PhoneNumber,
		"total_points":   int64(0),
	})
	if err != nil {
		return nil, storeError(models.Users, err)
	}
	return rec, nil
}

// Update applies the writable profile fields. Identity, timestamps and
// points are dropped from body.
func (s *ProfileService) Update(ctx context.Context, c *auth.Claims, body map[string]any) (models.Record, error) {
	patch, err := models.Users.Sanitize(body, true)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, c); err != nil {
		return nil, err
	}
	rec, err := s.store.UpdatePrincipal(ctx, c.UID, patch)
	if err != nil {
		return nil, storeError(models.Users, err)
	}
	return rec, nil
}

func displayName(c *auth.Claims) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	local, _, _ := strings.Cut(c.Email, "@")
	return local
}
