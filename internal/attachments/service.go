package attachments

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
)

// UploadInput carries one binary addressed by the owning event's client uuid.
type UploadInput struct {
	ClientUUID  uuid.UUID
	FileName    string
	ContentType string
	Content     io.Reader
}

// Upload is the stored attachment plus the stable reference callers embed in
// event payloads (receipt_photo_url and friends).
type Upload struct {
	Attachment *models.Attachment `json:"attachment"`
	Reference  string             `json:"reference"`
}

// Service stores attachment bytes on disk and their metadata in the ledger
// database. References stay valid for the life of the row.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (*Upload, error)
	Open(ctx context.Context, id uuid.UUID) (*models.Attachment, io.ReadCloser, error)
	ListByClientUUID(ctx context.Context, clientUUID uuid.UUID) ([]models.Attachment, error)
}

type service struct {
	repo     Repository
	dir      string
	maxBytes int64
	logg     *logger.Logger
}

// NewService wires the disk-backed attachment store. dir is created if absent.
func NewService(repo Repository, dir string, maxBytes int64, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("attachment repository required")
	}
	if dir == "" {
		return nil, fmt.Errorf("attachment directory required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating attachment directory: %w", err)
	}
	return &service{repo: repo, dir: dir, maxBytes: maxBytes, logg: logg}, nil
}

// Reference builds the stable retrieval path for an attachment id.
func Reference(id uuid.UUID) string {
	return "/api/v1/attachments/" + id.String()
}

// Upload streams the content to disk and records its metadata. The write is
// capped at the configured size; an oversized upload leaves nothing behind.
func (s *service) Upload(ctx context.Context, input UploadInput) (*Upload, error) {
	if input.ClientUUID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client uuid is required")
	}
	if input.FileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	if input.Content == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content is required")
	}

	id := uuid.New()
	storageKey := storageKeyFor(input.ClientUUID, id, input.FileName)
	path := filepath.Join(s.dir, storageKey)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "preparing attachment directory")
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating attachment file")
	}

	// Read one byte past the cap so an at-limit upload still passes.
	written, err := io.Copy(file, io.LimitReader(input.Content, s.maxBytes+1))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing attachment")
	}
	if written > s.maxBytes {
		_ = os.Remove(path)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("attachment exceeds %d bytes", s.maxBytes))
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	attachment := &models.Attachment{
		ID:          id,
		ClientUUID:  input.ClientUUID,
		FileName:    input.FileName,
		ContentType: contentType,
		SizeBytes:   written,
		StorageKey:  storageKey,
	}
	if err := s.repo.Insert(ctx, attachment); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "attachment_id", id.String()), "attachment stored")
	return &Upload{Attachment: attachment, Reference: Reference(id)}, nil
}

// Open returns the metadata and a reader over the stored bytes.
func (s *service) Open(ctx context.Context, id uuid.UUID) (*models.Attachment, io.ReadCloser, error) {
	attachment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(filepath.Join(s.dir, attachment.StorageKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "attachment content missing")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "opening attachment")
	}
	return attachment, file, nil
}

func (s *service) ListByClientUUID(ctx context.Context, clientUUID uuid.UUID) ([]models.Attachment, error) {
	if clientUUID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client uuid is required")
	}
	return s.repo.ListByClientUUID(ctx, clientUUID)
}

// storageKeyFor shards files by owning client uuid and keeps the original
// extension; the file name itself never reaches the filesystem.
func storageKeyFor(clientUUID, id uuid.UUID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return filepath.Join(clientUUID.String(), id.String()+ext)
}
