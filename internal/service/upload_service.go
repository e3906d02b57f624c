package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

var ErrFileTooLarge = errors.New("file too large")

// UploadService writes uploaded blobs to a directory and describes them with
// a server-relative URL.
type UploadService struct {
	dir       string
	urlPrefix string
	maxSize   int64
}

func NewUploadService(dir, urlPrefix string, maxSize int64) (*UploadService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/uploads"
	}
	return &UploadService{dir: dir, urlPrefix: urlPrefix, maxSize: maxSize}, nil
}

func (s *UploadService) Dir() string       { return s.dir }
func (s *UploadService) URLPrefix() string { return s.urlPrefix }
func (s *UploadService) MaxSize() int64    { return s.maxSize }

// Save stores r under a fresh name. The original name is kept only in the
// descriptor.
func (s *UploadService) Save(ctx context.Context, name, contentType string, r io.Reader) (domain.File, error) {
	if err := ctx.Err(); err != nil {
		return domain.File{}, err
	}
	original := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(original))
	stored := uuid.NewString() + ext

	dst, err := os.Create(filepath.Join(s.dir, stored))
	if err != nil {
		return domain.File{}, fmt.Errorf("create %s: %w", stored, err)
	}

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = fmt.Errorf("%w: limit %s", ErrFileTooLarge, humanize.IBytes(uint64(s.maxSize)))
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, stored))
		return domain.File{}, err
	}

	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return domain.File{
		Name: original,
		URL:  path.Join(s.urlPrefix, stored),
		Type: contentType,
	}, nil
}
