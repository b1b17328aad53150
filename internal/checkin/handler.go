package checkin

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-gala/backend/internal/models"
	"github.com/lumina-gala/backend/pkg/response"
)

// Store is the check-in record persistence the handler needs.
type Store interface {
	Create(ctx context.Context, rec *models.CheckInRecord) (bool, error)
	List(ctx context.Context, eventID uuid.UUID, limit int) ([]models.CheckInRecord, error)
	Stats(ctx context.Context, eventID uuid.UUID) (*models.CheckInStats, error)
	Clear(ctx context.Context, eventID uuid.UUID) error
}

// RosterDirectory resolves employees on an event's roster.
type RosterDirectory interface {
	GetByEmployee(ctx context.Context, eventID uuid.UUID, employeeID string) (*models.RosterMember, error)
}

// EventDirectory resolves events.
type EventDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// ArrivalQueue buffers committed check-ins for the welcome screen.
type ArrivalQueue interface {
	Push(ctx context.Context, rec *models.CheckInRecord) error
	StartDrain(eventID uuid.UUID)
}

// Handler handles check-in HTTP endpoints.
type Handler struct {
	repo       Store
	rosterRepo RosterDirectory
	eventRepo  EventDirectory
	manager    *Manager
	feed       ArrivalQueue
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandler creates a check-in handler.
func NewHandler(repo Store, rosterRepo RosterDirectory, eventRepo EventDirectory, manager *Manager, feed ArrivalQueue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		repo:       repo,
		rosterRepo: rosterRepo,
		eventRepo:  eventRepo,
		manager:    manager,
		feed:       feed,
		logger:     logger,
		now:        time.Now,
	}
}

func (h *Handler) eventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// CheckInRequest is the body for POST /events/:id/checkins.
type CheckInRequest struct {
	EmployeeID       string               `json:"employee_id" binding:"required"`
	Method           models.CheckInMethod `json:"method" binding:"omitempty,oneof=qrcode manual"`
	LocationLat      *float64             `json:"location_lat"`
	LocationLng      *float64             `json:"location_lng"`
	LocationAccuracy *float64             `json:"location_accuracy"`
}

// CheckIn handles POST /events/:id/checkins. The employee must be on the
// roster and the session open. Location is stamped for the audit trail but
// an out-of-range position never blocks the check-in; door staff resolve
// disputes, not the geofence.
func (h *Handler) CheckIn(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	event, err := h.eventRepo.GetByID(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("load event failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to load event")
		return
	}
	if event == nil {
		response.NotFound(c, "event not found")
		return
	}

	session, err := h.manager.Ensure(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("load session failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to load session")
		return
	}
	if session == nil || !session.Open {
		response.Forbidden(c, ErrSessionClosed.Error())
		return
	}

	member, err := h.rosterRepo.GetByEmployee(c.Request.Context(), eventID, req.EmployeeID)
	if err != nil {
		h.logger.Error("roster lookup failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to look up roster")
		return
	}
	if member == nil {
		response.NotFound(c, ErrNotOnRoster.Error())
		return
	}

	method := req.Method
	if method == "" {
		method = models.CheckInQRCode
	}
	rec := &models.CheckInRecord{
		EventID:          eventID,
		EmployeeID:       member.EmployeeID,
		Name:             member.Name,
		Department:       member.Department,
		Avatar:           member.Avatar,
		CheckInTime:      h.now(),
		Method:           method,
		LocationLat:      req.LocationLat,
		LocationLng:      req.LocationLng,
		LocationAccuracy: req.LocationAccuracy,
	}
	if event.LocationLat != nil && event.LocationLng != nil && req.LocationLat != nil && req.LocationLng != nil {
		valid := WithinRadius(*event.LocationLat, *event.LocationLng, event.LocationRadius, *req.LocationLat, *req.LocationLng)
		rec.LocationValid = &valid
	}

	created, err := h.repo.Create(c.Request.Context(), rec)
	if err != nil {
		h.logger.Error("create check-in failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to check in")
		return
	}
	if !created {
		response.Conflict(c, ErrAlreadyCheckedIn.Error())
		return
	}

	if err := h.feed.Push(c.Request.Context(), rec); err != nil {
		// The check-in itself is durable; the welcome screen just misses
		// this one.
		h.logger.Warn("feed push failed", zap.Error(err), zap.String("event_id", eventID.String()))
	}
	h.logger.Info("checked in",
		zap.String("event_id", eventID.String()),
		zap.String("employee_id", rec.EmployeeID),
		zap.String("method", string(method)))
	response.Created(c, rec)
}

// GetSession handles GET /events/:id/checkins/session. Expired windows are
// closed on read.
func (h *Handler) GetSession(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	state, err := h.manager.Ensure(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("load session failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to load session")
		return
	}
	if state == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, state)
}

// OpenSessionRequest is the body for POST /events/:id/checkins/session.
// A missing duration applies the configured default; an explicit zero opens
// the window with no expiry.
type OpenSessionRequest struct {
	DurationSeconds *int `json:"duration_seconds"`
}

// OpenSession handles POST /events/:id/checkins/session (organizer only).
func (h *Handler) OpenSession(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	duration := h.manager.DefaultDuration()
	if req.DurationSeconds != nil {
		if *req.DurationSeconds < 0 {
			response.BadRequest(c, "duration_seconds must not be negative")
			return
		}
		duration = time.Duration(*req.DurationSeconds) * time.Second
	}
	state, err := h.manager.Open(c.Request.Context(), eventID, duration)
	if err != nil {
		h.logger.Error("open session failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to open session")
		return
	}
	h.feed.StartDrain(eventID)
	response.OK(c, state)
}

// CloseSession handles DELETE /events/:id/checkins/session (organizer only).
func (h *Handler) CloseSession(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	if err := h.manager.Close(c.Request.Context(), eventID); err != nil {
		h.logger.Error("close session failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to close session")
		return
	}
	response.NoContent(c)
}

// List handles GET /events/:id/checkins. Query ?limit=N caps the result,
// newest first.
func (h *Handler) List(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = n
	}
	list, err := h.repo.List(c.Request.Context(), eventID, limit)
	if err != nil {
		h.logger.Error("list check-ins failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to list check-ins")
		return
	}
	response.OK(c, gin.H{"check_ins": list, "count": len(list)})
}

// Stats handles GET /events/:id/checkins/stats.
func (h *Handler) Stats(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	stats, err := h.repo.Stats(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("load stats failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to load stats")
		return
	}
	response.OK(c, stats)
}

// Clear handles DELETE /events/:id/checkins (organizer only). Removes every
// check-in and resets roster statuses.
func (h *Handler) Clear(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	if err := h.repo.Clear(c.Request.Context(), eventID); err != nil {
		h.logger.Error("clear check-ins failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to clear check-ins")
		return
	}
	response.NoContent(c)
}
