// Package filestore keeps uploaded vault files outside the database.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	// ErrDisabled is returned when no file storage provider is configured.
	ErrDisabled = errors.New("file storage is not configured")
	// ErrForeignKey is returned by Delete for a key outside the owner's prefix.
	ErrForeignKey = errors.New("storage key does not belong to owner")
)

// Object describes a stored file. Key is what Delete needs later; it is
// persisted in vault_documents.storage_key.
type Object struct {
	Key         string `json:"storage_key"`
	URL         string `json:"file_url"`
	Name        string `json:"file_name"`
	ContentType string `json:"file_type"`
	Size        int64  `json:"file_size"`
}

type Store interface {
	Upload(ctx context.Context, owner, name, contentType string, r io.Reader, size int64) (Object, error)
	// Delete removes the object at key. Keys outside owner's prefix are
	// refused with ErrForeignKey.
	Delete(ctx context.Context, owner, key string) error
}

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, string, string, io.Reader, int64) (Object, error) {
	return Object{}, ErrDisabled
}

func (Disabled) Delete(context.Context, string, string) error { return nil }

// cleanName reduces a client-supplied file name to a single safe path
// segment.
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "file"
	}
	return name
}

// ownedPath reports whether key lives under prefix/ and has no segment
// that could climb out of it.
func ownedPath(prefix, key string) bool {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return false
	}
	rest, ok := strings.CutPrefix(key, prefix+"/")
	if !ok || rest == "" {
		return false
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

func objectKey(owner, name string, at time.Time) string {
	return fmt.Sprintf("%s/%d_%s", owner, at.UnixMilli(), cleanName(name))
}
