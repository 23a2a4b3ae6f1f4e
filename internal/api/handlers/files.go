package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/api/validation"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/storage"
	"gorm.io/gorm"
)

const (
	fileField = "file"
	// multipart parts above this spill to temporary files
	multipartMemory = 8 << 20
)

type FileHandler struct {
	db        *gorm.DB
	store     storage.ObjectStore
	usage     UsageTracker
	notifier  UsageNotifier
	rs        *respond.Responder
	logger    *slog.Logger
	maxUpload int64
	encrypted bool
}

type FileHandlerConfig struct {
	MaxUploadBytes int64
	Encrypted      bool // objects are encrypted at rest by the store
}

func NewFileHandler(db *gorm.DB, store storage.ObjectStore, usage UsageTracker, notifier UsageNotifier, rs *respond.Responder, logger *slog.Logger, cfg FileHandlerConfig) *FileHandler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}
	return &FileHandler{
		db:        db,
		store:     store,
		usage:     usage,
		notifier:  notifier,
		rs:        rs,
		logger:    logger,
		maxUpload: cfg.MaxUploadBytes,
		encrypted: cfg.Encrypted,
	}
}

// UploadSize parses the multipart body and returns the size of the file
// part, which is what the storage quota is charged. The parsed form is kept
// on the request for Upload.
func (h *FileHandler) UploadSize(r *http.Request) (int64, error) {
	// The multipart envelope adds a little on top of the file itself
	r.Body = http.MaxBytesReader(nil, r.Body, h.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return 0, h.tooLarge()
		}
		return 0, respond.NewError(http.StatusBadRequest, "Invalid multipart body")
	}

	file, header, err := r.FormFile(fileField)
	if err != nil {
		return 0, respond.NewError(http.StatusBadRequest, "File is required")
	}
	file.Close()

	if header.Size > h.maxUpload {
		return 0, h.tooLarge()
	}
	return header.Size, nil
}

func (h *FileHandler) tooLarge() error {
	return respond.NewError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("File exceeds the %d MB upload limit", h.maxUpload>>20))
}

// Upload handles POST /files. Storage quota was checked by the gate with
// the size UploadSize reported.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	file, header, err := r.FormFile(fileField)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		respond.BadRequest(w, "File is required", nil)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	record := models.StoredFile{
		Base:        models.Base{ID: uuid.New()},
		TenantID:    sc.tenant.TenantID,
		Name:        validation.SanitizeFileName(header.Filename),
		ContentType: contentType,
		SizeBytes:   header.Size,
		Encrypted:   h.encrypted,
		UploadedBy:  sc.principal.UserID,
	}
	record.StorageKey = storage.Key(record.TenantID, record.ID)

	if err := h.store.Put(r.Context(), record.StorageKey, file, contentType); err != nil {
		h.rs.Error(w, r, fmt.Errorf("storing object: %w", err))
		return
	}

	if err := h.db.WithContext(r.Context()).Create(&record).Error; err != nil {
		// Without a row nothing references the object and usage would not count it
		if delErr := h.store.Delete(context.WithoutCancel(r.Context()), record.StorageKey); delErr != nil {
			h.logger.Error("failed to remove orphaned object", "key", record.StorageKey, "error", delErr)
		}
		h.rs.Error(w, r, err)
		return
	}

	usageChanged(r.Context(), h.usage, h.notifier, sc.tenant.TenantID, "file uploaded")
	respond.JSON(w, http.StatusCreated, dto.NewFileDTO(&record))
}

// List handles GET /files
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	pagination := paginationFrom(r)

	query := h.db.WithContext(r.Context()).Model(&models.StoredFile{}).Where("tenant_id = ?", sc.tenant.TenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.rs.Error(w, r, err)
		return
	}

	var files []models.StoredFile
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&files).Error; err != nil {
		h.rs.Error(w, r, err)
		return
	}

	data := make([]dto.FileDTO, len(files))
	for i := range files {
		data[i] = dto.NewFileDTO(&files[i])
	}

	respond.JSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: pagination.TotalPages(total),
	})
}

// Download handles GET /files/{id}/content
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	record, ok := h.find(w, r)
	if !ok {
		return
	}

	body, err := h.store.Get(r.Context(), record.StorageKey)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", record.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(record.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("file download interrupted", "file_id", record.ID, "error", err)
	}
}

// Delete handles DELETE /files/{id}
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	record, ok := h.find(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), record.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		h.rs.Error(w, r, fmt.Errorf("deleting object: %w", err))
		return
	}
	if err := h.db.WithContext(r.Context()).Delete(record).Error; err != nil {
		h.rs.Error(w, r, err)
		return
	}

	usageChanged(r.Context(), h.usage, h.notifier, record.TenantID, "file deleted")
	respond.JSON(w, http.StatusOK, dto.SuccessResponse{Success: true, Message: "File deleted"})
}

func (h *FileHandler) find(w http.ResponseWriter, r *http.Request) (*models.StoredFile, bool) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return nil, false
	}
	id, ok := idParam(w, r, "file")
	if !ok {
		return nil, false
	}

	var record models.StoredFile
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND tenant_id = ?", id, sc.tenant.TenantID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respond.JSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "File not found", Code: "not_found"})
			return nil, false
		}
		h.rs.Error(w, r, err)
		return nil, false
	}
	return &record, true
}
