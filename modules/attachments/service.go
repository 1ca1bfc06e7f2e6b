package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/google/uuid"
	"github.com/viral32111/LiveChat/domain/room"
)

const (
	// MaxFiles is the most files a single upload may carry.
	MaxFiles = room.MaxAttachments

	// MaxFileSize is the largest accepted file, in bytes.
	MaxFileSize = 10 << 20

	// PathPrefix is where attachments are served from.
	PathPrefix = room.AttachmentPathPrefix

	defaultContentType = "application/octet-stream"
	maxExtensionLength = 16
)

var (
	rejectedContentTypes = []string{
		"application/octet-stream",
		"application/x-msdownload",
		"application/x-msdos-program",
		"application/x-bsh",
		"application/x-sh",
		"text/x-script.zsh",
		"text/x-script.sh",
	}
	rejectedExtensions = []string{".dll", ".exe", ".sh", ".ash", ".zsh", ".bash", ".bat", ".cmd"}
)

// Upload is a single uploaded file.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (u Upload) contentType() string {
	if u.ContentType == "" {
		return defaultContentType
	}
	return u.ContentType
}

// FileInfo describes a stored attachment.
type FileInfo struct {
	Key          string
	OriginalName string
	ContentType  string
	Size         int64
	Digest       string
	CreatedAt    time.Time
}

// Service stores attachments in a file storage bucket.
type Service struct {
	bucket fsjetstream.FileStoragePort
}

// NewService creates a new attachment service with the given storage bucket.
func NewService(bucket fsjetstream.FileStoragePort) *Service {
	return &Service{bucket: bucket}
}

// rejected reports whether a file looks like an executable, library or script.
func rejected(filename, contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, t := range rejectedContentTypes {
		if strings.Contains(ct, t) {
			return true
		}
	}
	name := strings.ToLower(filename)
	for _, ext := range rejectedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// extensionOf returns the lower-cased extension of filename, or "" when it is
// missing or not plain alphanumerics.
func extensionOf(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filepath.Clean(filename))))
	if len(ext) < 2 || len(ext) > maxExtensionLength {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// validateKey checks that key has the form <uuid><extension>.
func validateKey(key string) error {
	id, ext, _ := strings.Cut(key, ".")
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	if ext != "" && extensionOf(key) != "."+ext {
		return fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	return nil
}

// KeyFromPath extracts the storage key from an attachment path.
func KeyFromPath(path string) (string, error) {
	key, ok := strings.CutPrefix(path, PathPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, path)
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

func validateUploads(uploads []Upload) error {
	if len(uploads) == 0 {
		return ErrNoFiles
	}
	if len(uploads) > MaxFiles {
		return fmt.Errorf("%w: %d, at most %d", ErrTooManyFiles, len(uploads), MaxFiles)
	}
	for _, u := range uploads {
		if len(u.Data) > MaxFileSize {
			return fmt.Errorf("%w: %s", ErrFileTooLarge, u.Filename)
		}
		if rejected(u.Filename, u.contentType()) {
			return fmt.Errorf("%w: %s", ErrFileRejected, u.Filename)
		}
	}
	return nil
}

// Store saves every upload under a fresh key and returns the attachment
// references in upload order. Either all files are stored or none are.
func (s *Service) Store(ctx context.Context, uploads []Upload) ([]room.Attachment, error) {
	if err := validateUploads(uploads); err != nil {
		return nil, err
	}

	attachments := make([]room.Attachment, 0, len(uploads))
	stored := make([]string, 0, len(uploads))
	for _, u := range uploads {
		contentType := u.contentType()
		key := uuid.New().String() + extensionOf(u.Filename)

		_, err := s.bucket.Put(ctx, key, u.Data,
			fsjetstream.WithDescription(fmt.Sprintf("Attachment: %s", filepath.Base(u.Filename))),
			fsjetstream.WithHeaders(map[string]string{
				"Content-Type":  contentType,
				"Original-Name": filepath.Base(u.Filename),
				"Uploaded-At":   time.Now().UTC().Format(time.RFC3339),
			}),
		)
		if err != nil {
			s.discard(stored)
			return nil, fmt.Errorf("failed to store attachment: %w", err)
		}

		stored = append(stored, key)
		attachments = append(attachments, room.Attachment{
			Type: contentType,
			Path: PathPrefix + key,
		})
	}
	return attachments, nil
}

func (s *Service) discard(keys []string) {
	for _, key := range keys {
		_ = s.bucket.Delete(key)
	}
}

// find looks up an attachment by its exact key.
func (s *Service) find(key string) (*fsjetstream.ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	files, err := s.bucket.List(fsjetstream.WithPrefix(key))
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	for i := range files {
		if files[i].Name == key {
			return &files[i], nil
		}
	}
	return nil, ErrNotFound
}

func buildFileInfo(obj *fsjetstream.ObjectInfo) *FileInfo {
	contentType := obj.Headers["Content-Type"]
	if contentType == "" {
		contentType = defaultContentType
	}
	return &FileInfo{
		Key:          obj.Name,
		OriginalName: obj.Headers["Original-Name"],
		ContentType:  contentType,
		Size:         int64(obj.Size),
		Digest:       obj.Digest,
		CreatedAt:    obj.ModTime,
	}
}

// Open returns a reader over the attachment with the given key.
func (s *Service) Open(_ context.Context, key string) (io.ReadCloser, *FileInfo, error) {
	obj, err := s.find(key)
	if err != nil {
		return nil, nil, err
	}

	reader, _, err := s.bucket.GetReader(obj.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return reader, buildFileInfo(obj), nil
}

// Delete removes the attachments at the given paths. Paths that are not
// attachments or no longer exist are skipped.
func (s *Service) Delete(_ context.Context, paths []string) (int, error) {
	var errs []error
	deleted := 0
	for _, path := range paths {
		key, err := KeyFromPath(path)
		if err != nil {
			continue
		}
		if _, err := s.find(key); err != nil {
			if !errors.Is(err, ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if err := s.bucket.Delete(key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete attachment %s: %w", key, err))
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}
