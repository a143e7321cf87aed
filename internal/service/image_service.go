package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/observability"
	"github.com/noah-isme/promptlab-api/internal/repository"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

// ImageUpload is one file received from a client.
type ImageUpload struct {
	FileName string
	Size     int64
	Reader   io.Reader
}

// ImageService manages project attachments.
type ImageService interface {
	Upload(ctx context.Context, actor ActivityActor, projectID uint, file ImageUpload) (dto.ImageResponse, error)
	List(ctx context.Context, actor ActivityActor, projectID uint) ([]dto.ImageResponse, error)
	Delete(ctx context.Context, actor ActivityActor, projectID, imageID uint) error
}

type imageService struct {
	store   repository.Store
	storage ObjectStorage
	maxSize int64
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewImageService constructs the attachment service.
func NewImageService(store repository.Store, storage ObjectStorage, maxBytes int64, logger zerolog.Logger) ImageService {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &imageService{
		store:   store,
		storage: storage,
		maxSize: maxBytes,
		logger:  logger.With().Str("component", "image_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/promptlab-api/internal/service/image"),
	}
}

func (s *imageService) Upload(ctx context.Context, actor ActivityActor, projectID uint, file ImageUpload) (dto.ImageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "images.upload", trace.WithAttributes(
		attribute.Int64("project.id", int64(projectID)),
		attribute.Int64("upload.max_bytes", s.maxSize),
	))
	defer span.End()

	project, err := s.ownedProject(ctx, actor, projectID)
	if err != nil {
		return dto.ImageResponse{}, err
	}
	if project.Status == workflow.StatusApproved {
		return dto.ImageResponse{}, ErrProjectLocked
	}
	if s.storage == nil {
		return dto.ImageResponse{}, storageError("upload attachment", errors.New("object storage is not configured"))
	}
	if file.Reader == nil {
		return dto.ImageResponse{}, requiredField("file")
	}

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.ImageResponse{}, ErrUploadTooLarge
	}

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(file.Reader, s.maxSize+1)); err != nil {
		span.RecordError(err)
		return dto.ImageResponse{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.ImageResponse{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	mimeType := strings.ToLower(detected.String())
	span.SetAttributes(attribute.String("upload.detected_mime", mimeType))
	if !strings.HasPrefix(mimeType, "image/") {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.SetStatus(codes.Error, "type not allowed")
		return dto.ImageResponse{}, ErrUploadNotImage
	}

	sum := sha256.Sum256(buf.Bytes())
	checksum := hex.EncodeToString(sum[:])

	existing, err := s.store.Images().FindByChecksum(ctx, project.ID, checksum)
	switch {
	case err == nil:
		observability.UploadRequests().WithLabelValues("duplicate").Inc()
		return dto.NewImageResponse(existing), nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.ImageResponse{}, err
	}

	storagePath := fmt.Sprintf("projects/%d/%s", project.ID, checksum)
	url, err := s.storage.Upload(ctx, storagePath, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.UploadRequests().WithLabelValues("storage_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.ImageResponse{}, storageError("upload attachment", err)
	}

	image := models.ProjectImage{
		ProjectID:   project.ID,
		StoragePath: storagePath,
		URL:         url,
		FileName:    sanitizeFileName(file.FileName, detected.Extension()),
		SizeBytes:   int64(buf.Len()),
		MimeType:    mimeType,
		Checksum:    checksum,
	}
	if err := s.store.Images().Create(ctx, &image); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent upload of the same bytes won the unique index.
			existing, findErr := s.store.Images().FindByChecksum(ctx, project.ID, checksum)
			if findErr == nil {
				observability.UploadRequests().WithLabelValues("duplicate").Inc()
				return dto.NewImageResponse(existing), nil
			}
			err = findErr
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.ImageResponse{}, err
	}

	observability.UploadRequests().WithLabelValues("stored").Inc()
	s.logger.Info().
		Uint("project_id", project.ID).
		Str("checksum", checksum).
		Int64("size_bytes", image.SizeBytes).
		Msg("attachment stored")

	return dto.NewImageResponse(image), nil
}

func (s *imageService) List(ctx context.Context, actor ActivityActor, projectID uint) ([]dto.ImageResponse, error) {
	role, err := actorRole(actor)
	if err != nil {
		return nil, err
	}
	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, notFoundOr(err, ErrProjectNotFound)
	}
	if role == workflow.RoleStudent && project.OwnerID != actor.ID {
		return nil, fmt.Errorf("%w: project belongs to another student", ErrForbidden)
	}

	images, err := s.store.Images().ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.ImageResponse, 0, len(images))
	for _, image := range images {
		responses = append(responses, dto.NewImageResponse(image))
	}
	return responses, nil
}

func (s *imageService) Delete(ctx context.Context, actor ActivityActor, projectID, imageID uint) error {
	project, err := s.ownedProject(ctx, actor, projectID)
	if err != nil {
		return err
	}
	if project.Status == workflow.StatusApproved {
		return ErrProjectLocked
	}

	image, err := s.store.Images().GetByID(ctx, imageID)
	if err != nil {
		return notFoundOr(err, ErrImageNotFound)
	}
	if image.ProjectID != project.ID {
		return ErrImageNotFound
	}
	if s.storage == nil {
		return storageError("delete attachment", errors.New("object storage is not configured"))
	}

	if err := s.storage.Delete(ctx, image.StoragePath); err != nil {
		return storageError("delete attachment", err)
	}
	return s.store.Images().Delete(ctx, image.ID)
}

func (s *imageService) ownedProject(ctx context.Context, actor ActivityActor, projectID uint) (models.Project, error) {
	if _, err := actorRole(actor); err != nil {
		return models.Project{}, err
	}
	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return models.Project{}, notFoundOr(err, ErrProjectNotFound)
	}
	if project.OwnerID != actor.ID {
		return models.Project{}, fmt.Errorf("%w: only the owner may change attachments", ErrForbidden)
	}
	return project, nil
}

func sanitizeFileName(name, fallbackExt string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("image-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = fallbackExt
	}
	return base + ext
}
