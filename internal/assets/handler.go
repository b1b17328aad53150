package assets

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-gala/backend/internal/draw"
	"github.com/lumina-gala/backend/internal/events"
	"github.com/lumina-gala/backend/internal/middleware"
	"github.com/lumina-gala/backend/internal/models"
	"github.com/lumina-gala/backend/pkg/response"
	"github.com/lumina-gala/backend/pkg/storage"
)

// GenerateUploadURLRequest is the body for POST /events/:id/assets/generate-upload-url.
type GenerateUploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size" binding:"required,gt=0"`
	Kind        string `json:"kind" binding:"required,oneof=prize cover"`
}

// Handler handles image asset HTTP endpoints (S3-backed prize images and
// event covers).
type Handler struct {
	eventRepo *events.Repository
	registry  *draw.Registry
	s3        *storage.S3
	logger    *zap.Logger
}

// NewHandler creates an assets handler.
func NewHandler(eventRepo *events.Repository, registry *draw.Registry, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{eventRepo: eventRepo, registry: registry, s3: s3, logger: logger}
}

func (h *Handler) requireOwner(c *gin.Context) (uuid.UUID, bool) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ok, err := h.eventRepo.IsOwner(c.Request.Context(), eventID, userID)
	if err != nil {
		response.Internal(c, "failed to load event")
		return uuid.Nil, false
	}
	if !ok && c.MustGet(middleware.ContextUserRole).(string) != string(models.RoleAdmin) {
		response.Forbidden(c, "only the event owner can manage assets")
		return uuid.Nil, false
	}
	return eventID, true
}

// GenerateUploadURL handles POST /events/:id/assets/generate-upload-url
// (owner only). Presigned upload; prefer the server-side upload endpoints for
// public buckets.
func (h *Handler) GenerateUploadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	eventID, ok := h.requireOwner(c)
	if !ok {
		return
	}
	var req GenerateUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.FileSize > storage.MaxImageFileSize {
		response.BadRequest(c, "file size exceeds 10MB limit")
		return
	}
	if !storage.ValidateImageFileType(req.ContentType, req.Filename) {
		response.BadRequest(c, "invalid file type: only jpg, png, webp and gif allowed")
		return
	}

	contentType := storage.ContentTypeForFilename(req.Filename)
	if req.ContentType != "" {
		if _, ok := storage.AllowedImageTypes[strings.ToLower(req.ContentType)]; ok {
			contentType = req.ContentType
		}
	}

	key := storage.CoverKey(eventID.String(), req.Filename)
	if req.Kind == "prize" {
		key = storage.PrizeImageKey(eventID.String(), req.Filename)
	}
	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), h.s3.AssetsBucket(), key, contentType, expire)
	if err != nil {
		h.logger.Error("generate presigned upload URL failed", zap.Error(err), zap.String("event_id", eventID.String()), zap.String("bucket", h.s3.AssetsBucket()))
		response.Internal(c, "S3 upload unavailable. Ensure AWS credentials (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY) and bucket are configured.")
		return
	}

	response.OK(c, gin.H{
		"upload_url":   url,
		"s3_key":       key,
		"content_type": contentType,
		"expires_in":   int(expire.Seconds()),
	})
}

// uploadImage validates and uploads the multipart "file" field, returning the
// public object URL.
func (h *Handler) uploadImage(c *gin.Context, key string) (string, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return "", false
	}
	if file.Size > storage.MaxImageFileSize {
		response.BadRequest(c, "file size exceeds 10MB limit")
		return "", false
	}
	if !storage.ValidateImageFileType(file.Header.Get("Content-Type"), file.Filename) {
		response.BadRequest(c, "invalid file type: only jpg, png, webp and gif allowed")
		return "", false
	}

	contentType := storage.ContentTypeForFilename(file.Filename)
	if ct := file.Header.Get("Content-Type"); ct != "" {
		if _, ok := storage.AllowedImageTypes[strings.ToLower(ct)]; ok {
			contentType = ct
		}
	}

	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return "", false
	}
	defer rc.Close()

	_, err = h.s3.Upload(c.Request.Context(), h.s3.AssetsBucket(), key, contentType, rc, file.Size, true)
	if err != nil {
		h.logger.Error("S3 upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload file to storage")
		return "", false
	}
	return h.s3.PublicObjectURL(h.s3.AssetsBucket(), key), true
}

// UploadPrizeImage handles POST /events/:id/prizes/:tierId/image (owner
// only). Uploads the image and stamps its URL on the prize tier.
func (h *Handler) UploadPrizeImage(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	eventID, ok := h.requireOwner(c)
	if !ok {
		return
	}
	tierID := c.Param("tierId")

	m, err := h.registry.Get(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("load draw state failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to load draw state")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	key := storage.PrizeImageKey(eventID.String(), file.Filename)
	url, ok := h.uploadImage(c, key)
	if !ok {
		return
	}

	if err := m.UpdateTierImage(c.Request.Context(), tierID, url); err != nil {
		if errors.Is(err, draw.ErrUnknownTier) {
			response.NotFound(c, "prize tier not found")
			return
		}
		response.Internal(c, "failed to update prize image")
		return
	}

	response.OK(c, gin.H{
		"tier_id":  tierID,
		"s3_key":   key,
		"file_url": url,
	})
}

// UploadCover handles POST /events/:id/cover (owner only). Uploads the image
// and stamps its URL on the event.
func (h *Handler) UploadCover(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	eventID, ok := h.requireOwner(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	key := storage.CoverKey(eventID.String(), file.Filename)
	url, ok := h.uploadImage(c, key)
	if !ok {
		return
	}

	if err := h.eventRepo.Update(c.Request.Context(), eventID, events.UpdateParams{CoverImage: &url}); err != nil {
		h.logger.Error("update cover failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to update event cover")
		return
	}

	response.OK(c, gin.H{
		"s3_key":   key,
		"file_url": url,
	})
}

// GetImage streams an asset from S3 (proxy). Use when the direct S3 URL
// fails (CORS/403). The key must belong to the event in the path.
func (h *Handler) GetImage(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "storage unavailable")
		return
	}
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	key := c.Query("key")
	prizePrefix := storage.FolderPrizes + "/" + eventID.String() + "/"
	coverPrefix := storage.FolderCovers + "/" + eventID.String() + "/"
	if !strings.HasPrefix(key, prizePrefix) && !strings.HasPrefix(key, coverPrefix) {
		response.NotFound(c, "image not found")
		return
	}

	body, contentType, err := h.s3.GetObjectStream(c.Request.Context(), h.s3.AssetsBucket(), key)
	if err != nil {
		h.logger.Warn("asset image get failed", zap.Error(err), zap.String("s3_key", key))
		response.NotFound(c, "image not found")
		return
	}
	defer body.Close()
	if contentType != "" {
		c.Header("Content-Type", contentType)
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, body)
}
