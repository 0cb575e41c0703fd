package controllers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/api/responses"
	"github.com/rmonterroso/fieldledger-backend/internal/attachments"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
)

// multipart parse ceiling; the service enforces the real size limit while
// streaming to disk.
const uploadMemoryLimit = 4 << 20

// UploadAttachment accepts a multipart form with a client_uuid field and a
// file part, stores the binary, and returns the stable reference devices
// embed in event payloads.
func UploadAttachment(svc attachments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "attachments service unavailable"))
			return
		}

		if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		clientUUID, err := uuid.Parse(r.FormValue("client_uuid"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "client_uuid is required"))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file part is required"))
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		upload, err := svc.Upload(r.Context(), attachments.UploadInput{
			ClientUUID:  clientUUID,
			FileName:    header.Filename,
			ContentType: contentType,
			Content:     file,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, upload)
	}
}

// GetAttachment streams the stored binary back to the caller.
func GetAttachment(svc attachments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "attachments service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "attachmentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid attachment id"))
			return
		}

		meta, reader, err := svc.Open(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer reader.Close()

		w.Header().Set("Content-Type", meta.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(meta.SizeBytes, 10))
		w.Header().Set("Content-Disposition", `attachment; filename="`+meta.FileName+`"`)
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, reader); err != nil && logg != nil {
			logg.Error(r.Context(), "stream attachment", err)
		}
	}
}

// ListAttachments returns attachment metadata for one event's client uuid.
func ListAttachments(svc attachments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "attachments service unavailable"))
			return
		}

		clientUUID, err := uuid.Parse(r.URL.Query().Get("client_uuid"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "client_uuid is required"))
			return
		}

		rows, err := svc.ListByClientUUID(r.Context(), clientUUID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"attachments": rows})
	}
}
