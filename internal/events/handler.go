package events

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-gala/backend/internal/middleware"
	"github.com/lumina-gala/backend/internal/models"
	"github.com/lumina-gala/backend/pkg/response"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Name            string   `json:"name" binding:"required"`
	Description     string   `json:"description"`
	EventDate       string   `json:"event_date" binding:"required"`
	LocationName    string   `json:"location_name"`
	LocationLat     *float64 `json:"location_lat"`
	LocationLng     *float64 `json:"location_lng"`
	LocationRadius  float64  `json:"location_radius"`
	RequireLocation bool     `json:"require_location"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an event handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /events (organizer only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	eventDate, err := parseTime(req.EventDate)
	if err != nil {
		response.BadRequest(c, "invalid event_date")
		return
	}

	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	radius := req.LocationRadius
	if radius <= 0 {
		radius = 100 // meters
	}
	e := &models.Event{
		Name:            req.Name,
		Description:     req.Description,
		EventDate:       eventDate,
		LocationName:    req.LocationName,
		LocationLat:     req.LocationLat,
		LocationLng:     req.LocationLng,
		LocationRadius:  radius,
		RequireLocation: req.RequireLocation,
		Status:          models.EventDraft,
		OwnerID:         &userID,
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, e)
}

// GetActive handles GET /events/active. Used by displays to find the live
// event without configuration.
func (h *Handler) GetActive(c *gin.Context) {
	e, err := h.repo.GetActive(c.Request.Context())
	if err != nil {
		h.logger.Error("get active event failed", zap.Error(err))
		response.Internal(c, "failed to load active event")
		return
	}
	if e == nil {
		response.NotFound(c, "no active event")
		return
	}
	response.OK(c, e)
}

// List handles GET /events. Query ?mine=1 returns only the current user's
// events.
func (h *Handler) List(c *gin.Context) {
	var ownerID *uuid.UUID
	if c.Query("mine") == "1" {
		uid := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		ownerID = &uid
	}
	list, err := h.repo.List(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

func (h *Handler) requireOwner(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ok, err := h.repo.IsOwner(c.Request.Context(), id, userID)
	if err != nil {
		response.Internal(c, "failed to load event")
		return uuid.Nil, false
	}
	if !ok && c.MustGet(middleware.ContextUserRole).(string) != string(models.RoleAdmin) {
		response.Forbidden(c, "only the event owner can modify this event")
		return uuid.Nil, false
	}
	return id, true
}

// Update handles PATCH /events/:id (owner or admin).
func (h *Handler) Update(c *gin.Context) {
	id, ok := h.requireOwner(c)
	if !ok {
		return
	}
	var req struct {
		Name            *string  `json:"name"`
		Description     *string  `json:"description"`
		EventDate       *string  `json:"event_date"`
		LocationName    *string  `json:"location_name"`
		LocationLat     *float64 `json:"location_lat"`
		LocationLng     *float64 `json:"location_lng"`
		LocationRadius  *float64 `json:"location_radius"`
		RequireLocation *bool    `json:"require_location"`
		CoverImage      *string  `json:"cover_image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	params := UpdateParams{
		Name:            req.Name,
		Description:     req.Description,
		LocationName:    req.LocationName,
		LocationLat:     req.LocationLat,
		LocationLng:     req.LocationLng,
		LocationRadius:  req.LocationRadius,
		RequireLocation: req.RequireLocation,
		CoverImage:      req.CoverImage,
	}
	if req.EventDate != nil {
		t, err := parseTime(*req.EventDate)
		if err != nil {
			response.BadRequest(c, "invalid event_date")
			return
		}
		params.EventDate = &t
	}
	if err := h.repo.Update(c.Request.Context(), id, params); err != nil {
		h.logger.Error("update event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to update event")
		return
	}
	updated, _ := h.repo.GetByID(c.Request.Context(), id)
	response.OK(c, updated)
}

// SetStatusRequest is the body for POST /events/:id/status.
type SetStatusRequest struct {
	Status models.EventStatus `json:"status" binding:"required,oneof=draft active completed"`
}

// SetStatus handles POST /events/:id/status (owner or admin). Activating an
// event completes any other active one.
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := h.requireOwner(c)
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.repo.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		h.logger.Error("set event status failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to update status")
		return
	}
	updated, _ := h.repo.GetByID(c.Request.Context(), id)
	response.OK(c, updated)
}

// Delete handles DELETE /events/:id (owner or admin).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.requireOwner(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("delete event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to delete event")
		return
	}
	response.NoContent(c)
}
