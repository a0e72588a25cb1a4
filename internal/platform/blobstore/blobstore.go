// Package blobstore stores uploaded doctor photos. Files live on an
// afero.Fs (the OS filesystem under UPLOAD_DIR in production, an in-memory
// filesystem in tests) and are addressed by public URLs under /uploads.
package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/medbook/medbook/internal/platform/apperr"
)

// DefaultMaxFileSize is the photo size cap (5 MiB).
const DefaultMaxFileSize = 5 * 1024 * 1024

// DefaultURLPrefix is where stored files are served.
const DefaultURLPrefix = "/uploads"

// AllowedContentTypes maps accepted image types to their file extension.
var AllowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

var (
	ErrFileTooLarge       = apperr.Validationf("file exceeds maximum allowed size")
	ErrInvalidContentType = apperr.Validationf("only JPEG, PNG and GIF images are allowed")
	ErrEmptyFile          = apperr.Validationf("uploaded file is empty")
)

// Upload is a file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// BlobMetadata describes a stored file.
type BlobMetadata struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// BlobStore is the contract the account service depends on.
type BlobStore interface {
	Put(ctx context.Context, u Upload) (*BlobMetadata, error)
	Delete(ctx context.Context, url string) error
}

// FSStore writes files to the root of fs.
type FSStore struct {
	fs        afero.Fs
	urlPrefix string
	maxSize   int64
	now       func() time.Time
}

func NewFSStore(fs afero.Fs, urlPrefix string, maxSize int64) *FSStore {
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &FSStore{
		fs:        fs,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxSize:   maxSize,
		now:       time.Now,
	}
}

// NewOSStore roots an FSStore at dir on the local filesystem, creating it
// when missing.
func NewOSStore(dir, urlPrefix string, maxSize int64) (*FSStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return NewFSStore(afero.NewBasePathFs(osFs, dir), urlPrefix, maxSize), nil
}

// Put validates and stores u. The content type is sniffed from the bytes;
// the client-declared type must agree when present.
func (s *FSStore) Put(_ context.Context, u Upload) (*BlobMetadata, error) {
	data, err := io.ReadAll(io.LimitReader(u.Content, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}

	sniffed := http.DetectContentType(data)
	ext, ok := AllowedContentTypes[sniffed]
	if !ok {
		return nil, ErrInvalidContentType
	}
	if declared := baseMediaType(u.ContentType); declared != "" && declared != sniffed {
		return nil, ErrInvalidContentType
	}

	id := uuid.NewString()
	name := "photo-" + id + ext
	if err := afero.WriteFile(s.fs, name, data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}

	return &BlobMetadata{
		ID:          id,
		FileName:    u.FileName,
		ContentType: sniffed,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", sha256.Sum256(data)),
		URL:         s.urlPrefix + "/" + name,
		CreatedAt:   s.now().UTC(),
	}, nil
}

// Delete removes the file behind url. URLs outside the store's prefix or
// naming nested paths are rejected; a missing file is not an error.
func (s *FSStore) Delete(_ context.Context, url string) error {
	name, ok := strings.CutPrefix(url, s.urlPrefix+"/")
	if !ok || name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("not a stored file url: %q", url)
	}
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// FromFileHeader opens a multipart file part as an Upload. The caller closes
// the returned closer once the upload has been stored.
func FromFileHeader(fh *multipart.FileHeader) (Upload, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return Upload{}, nil, fmt.Errorf("open uploaded file: %w", err)
	}
	return Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     f,
	}, f, nil
}

func baseMediaType(ct string) string {
	mt, _, _ := strings.Cut(ct, ";")
	mt = strings.ToLower(strings.TrimSpace(mt))
	if mt == "image/jpg" || mt == "image/pjpeg" {
		return "image/jpeg"
	}
	if mt == "application/octet-stream" {
		return ""
	}
	return mt
}
