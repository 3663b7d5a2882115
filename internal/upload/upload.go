// Package upload validates user attachments and stores them in object storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"kitarekayasa/internal/common/storage"
	pkgerrors "kitarekayasa/pkg/errors"
	"kitarekayasa/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind selects the validation rules for a payload.
type Kind string

const (
	KindImage      Kind = "image"
	KindAttachment Kind = "attachment"
)

var (
	defaultImageExtensions      = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}
	defaultAttachmentExtensions = []string{
		".stl", ".obj", ".fbx", ".glb", ".gltf", ".3mf", ".step", ".stp", ".blend",
		".zip", ".rar", ".7z", ".pdf", ".jpg", ".jpeg", ".png",
	}
)

// Config holds upload limits and object layout.
type Config struct {
	Bucket               string        `yaml:"bucket"`
	KeyPrefix            string        `yaml:"keyPrefix"`
	MaxImageBytes        int64         `yaml:"maxImageBytes"`
	MaxAttachmentBytes   int64         `yaml:"maxAttachmentBytes"`
	ImageExtensions      []string      `yaml:"imageExtensions"`
	AttachmentExtensions []string      `yaml:"attachmentExtensions"`
	PresignTTL           time.Duration `yaml:"presignTTL"`
}

// Payload is one incoming file.
type Payload struct {
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Stored describes a persisted object. Ref is the value callers keep.
type Stored struct {
	Ref         string
	Size        int64
	ContentType string
}

// Handler implements the upload flow on top of ObjectStorage.
type Handler struct {
	storage storage.ObjectStorage
	cfg     Config
	allowed map[Kind]map[string]struct{}
	limits  map[Kind]int64
}

// NewHandler creates a Handler with defaults applied to cfg.
func NewHandler(obj storage.ObjectStorage, cfg Config) *Handler {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "uploads"
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 5 << 20
	}
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = 100 << 20
	}
	if len(cfg.ImageExtensions) == 0 {
		cfg.ImageExtensions = defaultImageExtensions
	}
	if len(cfg.AttachmentExtensions) == 0 {
		cfg.AttachmentExtensions = defaultAttachmentExtensions
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	return &Handler{
		storage: obj,
		cfg:     cfg,
		allowed: map[Kind]map[string]struct{}{
			KindImage:      extensionSet(cfg.ImageExtensions),
			KindAttachment: extensionSet(cfg.AttachmentExtensions),
		},
		limits: map[Kind]int64{
			KindImage:      cfg.MaxImageBytes,
			KindAttachment: cfg.MaxAttachmentBytes,
		},
	}
}

// Validate checks a payload against the rules for kind without storing it.
func (h *Handler) Validate(kind Kind, p Payload) error {
	field := string(kind)
	if p.Body == nil || p.Size <= 0 {
		return pkgerrors.ValidationError(field, "file is empty")
	}
	limit, ok := h.limits[kind]
	if !ok {
		return pkgerrors.ValidationError(field, "unsupported upload kind")
	}
	if p.Size > limit {
		return pkgerrors.New(pkgerrors.FileTooLarge).
			WithDetail("field", field).
			WithDetail("max_bytes", limit)
	}
	ext := strings.ToLower(path.Ext(p.Filename))
	if _, ok := h.allowed[kind][ext]; !ok {
		return pkgerrors.New(pkgerrors.FileTypeNotAllowed).
			WithDetail("field", field).
			WithDetail("extension", ext)
	}
	return nil
}

// Store validates p and writes it under <prefix>/<scope>/<uuid><ext>.
func (h *Handler) Store(ctx context.Context, kind Kind, scope string, p Payload) (Stored, error) {
	if err := h.Validate(kind, p); err != nil {
		return Stored{}, err
	}
	if h.storage == nil || h.cfg.Bucket == "" {
		return Stored{}, pkgerrors.Wrap(errors.New("object storage not configured"), pkgerrors.UploadFailed)
	}

	ext := strings.ToLower(path.Ext(p.Filename))
	key := path.Join(h.cfg.KeyPrefix, scope, uuid.NewString()+ext)
	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.storage.PutObject(ctx, h.cfg.Bucket, key, io.LimitReader(p.Body, p.Size), p.Size, contentType); err != nil {
		return Stored{}, pkgerrors.Wrap(fmt.Errorf("store %s failed: %w", kind, err), pkgerrors.UploadFailed)
	}

	// A short body leaves a truncated object behind; the stored size must match the declared one.
	stat, err := h.storage.StatObject(ctx, h.cfg.Bucket, key)
	if err != nil {
		h.Remove(ctx, key)
		return Stored{}, pkgerrors.Wrap(fmt.Errorf("stat %s failed: %w", kind, err), pkgerrors.UploadFailed)
	}
	if stat.SizeBytes != p.Size {
		h.Remove(ctx, key)
		return Stored{}, pkgerrors.Wrap(
			fmt.Errorf("stored %s size mismatch: got %d, want %d", kind, stat.SizeBytes, p.Size),
			pkgerrors.UploadFailed,
		)
	}

	return Stored{
		Ref:         key,
		Size:        stat.SizeBytes,
		ContentType: contentType,
	}, nil
}

// Remove deletes previously stored refs. Failures are logged, never returned.
func (h *Handler) Remove(ctx context.Context, refs ...string) {
	if h.storage == nil {
		return
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := h.storage.RemoveObject(ctx, h.cfg.Bucket, ref); err != nil {
			logger.Warn(ctx, "remove orphaned upload failed", zap.String("ref", ref), zap.Error(err))
		}
	}
}

// URL returns a presigned download URL for ref.
func (h *Handler) URL(ctx context.Context, ref string) (string, error) {
	if h.storage == nil {
		return "", pkgerrors.New(pkgerrors.ServiceUnavailable)
	}
	u, err := h.storage.PresignGet(ctx, h.cfg.Bucket, ref, h.cfg.PresignTTL)
	if err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.UploadFailed)
	}
	return u, nil
}

// FromFileHeader opens a multipart file. The caller closes the returned Closer.
func FromFileHeader(fh *multipart.FileHeader) (Payload, io.Closer, error) {
	if fh == nil {
		return Payload{}, nil, errors.New("file header is nil")
	}
	f, err := fh.Open()
	if err != nil {
		return Payload{}, nil, fmt.Errorf("open multipart file failed: %w", err)
	}
	return Payload{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}, f, nil
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}
