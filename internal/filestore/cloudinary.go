package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Cloudinary stores vault files under vault/<uid>. Keys have the form
// <resource_type>:<public_id> because deletion needs both.
type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, owner, name, contentType string, r io.Reader, size int64) (Object, error) {
	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       cloudinaryFolder(owner),
		ResourceType: "auto",
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return Object{}, fmt.Errorf("failed to upload to Cloudinary: %s", res.Error.Message)
	}
	return Object{
		Key:         cloudinaryKey(res.ResourceType, res.PublicID),
		URL:         res.SecureURL,
		Name:        name,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, owner, key string) error {
	resourceType, publicID, err := splitCloudinaryKey(key)
	if err != nil {
		return err
	}
	if !ownedPath(cloudinaryFolder(owner), publicID) {
		return ErrForeignKey
	}
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to delete from Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("failed to delete from Cloudinary: %s", res.Error.Message)
	}
	return nil
}

func cloudinaryFolder(owner string) string {
	if owner == "" {
		return ""
	}
	return "vault/" + owner
}

func cloudinaryKey(resourceType, publicID string) string {
	if resourceType == "" {
		resourceType = "image"
	}
	return resourceType + ":" + publicID
}

func splitCloudinaryKey(key string) (resourceType, publicID string, err error) {
	resourceType, publicID, ok := strings.Cut(key, ":")
	if !ok || resourceType == "" || publicID == "" {
		return "", "", errors.New("malformed cloudinary storage key")
	}
	return resourceType, publicID, nil
}
