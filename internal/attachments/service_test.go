package attachments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/pkg/config"
	"github.com/rmonterroso/fieldledger-backend/pkg/db"
	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
)

func openTestService(t *testing.T, maxBytes int64) Service {
	t.Helper()
	dsn := fmt.Sprintf("file:attachments_%s?mode=memory&cache=shared", uuid.NewString())
	client, err := db.New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.DB().AutoMigrate(&models.Attachment{}); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	svc, err := NewService(
		NewRepository(client.DB()),
		t.TempDir(),
		maxBytes,
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func TestUploadRoundTrip(t *testing.T) {
	svc := openTestService(t, 1<<20)
	clientUUID := uuid.New()

	upload, err := svc.Upload(context.Background(), UploadInput{
		ClientUUID:  clientUUID,
		FileName:    "receipt.jpg",
		ContentType: "image/jpeg",
		Content:     bytes.NewReader([]byte("jpegbytes")),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if upload.Reference == "" || !strings.Contains(upload.Reference, upload.Attachment.ID.String()) {
		t.Fatalf("expected stable reference naming the id, got %q", upload.Reference)
	}
	if upload.Attachment.SizeBytes != int64(len("jpegbytes")) {
		t.Fatalf("unexpected size %d", upload.Attachment.SizeBytes)
	}

	meta, reader, err := svc.Open(context.Background(), upload.Attachment.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()
	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(content) != "jpegbytes" {
		t.Fatalf("content mismatch: %q", content)
	}
	if meta.ContentType != "image/jpeg" || meta.ClientUUID != clientUUID {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestUploadEnforcesSizeLimit(t *testing.T) {
	svc := openTestService(t, 8)

	_, err := svc.Upload(context.Background(), UploadInput{
		ClientUUID:  uuid.New(),
		FileName:    "big.bin",
		ContentType: "application/octet-stream",
		Content:     bytes.NewReader(make([]byte, 9)),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation rejection, got %v", err)
	}

	// Exactly at the limit still passes.
	if _, err := svc.Upload(context.Background(), UploadInput{
		ClientUUID: uuid.New(),
		FileName:   "fits.bin",
		Content:    bytes.NewReader(make([]byte, 8)),
	}); err != nil {
		t.Fatalf("at-limit upload: %v", err)
	}
}

func TestListByClientUUID(t *testing.T) {
	svc := openTestService(t, 1<<20)
	clientUUID := uuid.New()

	for _, name := range []string{"a.jpg", "b.jpg"} {
		if _, err := svc.Upload(context.Background(), UploadInput{
			ClientUUID: clientUUID,
			FileName:   name,
			Content:    bytes.NewReader([]byte("x")),
		}); err != nil {
			t.Fatalf("upload %s: %v", name, err)
		}
	}
	if _, err := svc.Upload(context.Background(), UploadInput{
		ClientUUID: uuid.New(),
		FileName:   "other.jpg",
		Content:    bytes.NewReader([]byte("x")),
	}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	rows, err := svc.ListByClientUUID(context.Background(), clientUUID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(rows))
	}
}

func TestOpenMissingAttachment(t *testing.T) {
	svc := openTestService(t, 1<<20)
	_, _, err := svc.Open(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
