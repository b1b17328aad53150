package draw

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-gala/backend/internal/models"
	"github.com/lumina-gala/backend/pkg/response"
)

// Handler handles draw HTTP endpoints. All routes are scoped to one event
// via the :id path parameter; each event owns an independent Machine.
type Handler struct {
	registry *Registry
	logger   *zap.Logger
}

// NewHandler creates a draw handler.
func NewHandler(registry *Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, logger: logger}
}

func (h *Handler) machine(c *gin.Context) (*Machine, bool) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return nil, false
	}
	m, err := h.registry.Get(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("load draw machine failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to load draw state")
		return nil, false
	}
	return m, true
}

// drawError maps draw validation errors to HTTP responses.
func drawError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnknownTier):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrBatchNotAllowed):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrEmptyPool),
		errors.Is(err, ErrInsufficientPool),
		errors.Is(err, ErrNoTierSelected),
		errors.Is(err, ErrTierExhausted),
		errors.Is(err, ErrBatchExceedsRemaining):
		response.Conflict(c, err.Error())
	default:
		response.Internal(c, "draw operation failed")
	}
}

// GetState handles GET /events/:id/draw. Returns the machine status.
func (h *Handler) GetState(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	response.OK(c, m.Status())
}

// SelectTierRequest is the body for POST /events/:id/draw/tier.
type SelectTierRequest struct {
	TierID string `json:"tier_id" binding:"required"`
}

// SelectTier handles POST /events/:id/draw/tier.
func (h *Handler) SelectTier(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	var req SelectTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := m.SelectTier(req.TierID); err != nil {
		drawError(c, err)
		return
	}
	response.OK(c, m.Status())
}

// SetBatchSizeRequest is the body for POST /events/:id/draw/batch-size.
type SetBatchSizeRequest struct {
	BatchSize int `json:"batch_size" binding:"required,min=1"`
}

// SetBatchSize handles POST /events/:id/draw/batch-size.
func (h *Handler) SetBatchSize(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	var req SetBatchSizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := m.SetBatchSize(req.BatchSize); err != nil {
		drawError(c, err)
		return
	}
	response.OK(c, m.Status())
}

// Start handles POST /events/:id/draw/start. Begins the rolling phase.
func (h *Handler) Start(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	if err := m.Start(c.Request.Context()); err != nil {
		drawError(c, err)
		return
	}
	response.OK(c, m.Status())
}

// Stop handles POST /events/:id/draw/stop. Commits the final batch and
// returns the new record along with its display layout.
func (h *Handler) Stop(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	record, err := m.Stop(c.Request.Context())
	if err != nil {
		drawError(c, err)
		return
	}
	response.OK(c, gin.H{
		"record": record,
		"layout": ComputeLayout(len(record.Winners)),
	})
}

// Undo handles POST /events/:id/draw/records/:recordId/undo. Unknown record
// ids succeed without effect.
func (h *Handler) Undo(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	if err := m.Undo(c.Request.Context(), c.Param("recordId")); err != nil {
		drawError(c, err)
		return
	}
	response.OK(c, m.Status())
}

// ListRecords handles GET /events/:id/draw/records.
func (h *Handler) ListRecords(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{"records": m.Records()})
}

// TierWinners handles GET /events/:id/draw/tiers/:tierId/winners. Serves
// the read-only view shown when an exhausted tier is selected.
func (h *Handler) TierWinners(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	winners := m.TierWinners(c.Param("tierId"))
	response.OK(c, gin.H{
		"winners": winners,
		"layout":  ComputeLayout(len(winners)),
	})
}

// Reset handles POST /events/:id/draw/reset. Clears history, exclusions and
// drawn counts while keeping the roster and prize configuration.
func (h *Handler) Reset(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	if err := m.Reset(c.Request.Context()); err != nil {
		drawError(c, err)
		return
	}
	response.OK(c, m.Status())
}

// ClearAll handles DELETE /events/:id/draw. Wipes every stored draw key for
// the event.
func (h *Handler) ClearAll(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	if err := m.ClearAll(c.Request.Context()); err != nil {
		h.logger.Error("clear draw state failed", zap.Error(err))
		response.Internal(c, "failed to clear draw state")
		return
	}
	response.NoContent(c)
}

// SetPrizesRequest is the body for PUT /events/:id/draw/prizes.
type SetPrizesRequest struct {
	Prizes []models.PrizeTier `json:"prizes" binding:"required"`
}

// SetPrizes handles PUT /events/:id/draw/prizes. Replaces the prize
// configuration; drawn counts carry over by tier id.
func (h *Handler) SetPrizes(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	var req SetPrizesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := m.SetPrizes(c.Request.Context(), req.Prizes); err != nil {
		drawError(c, err)
		return
	}
	response.OK(c, m.Status())
}
