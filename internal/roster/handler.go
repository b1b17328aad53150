package roster

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-gala/backend/internal/draw"
	"github.com/lumina-gala/backend/internal/models"
	"github.com/lumina-gala/backend/pkg/response"
)

// maxImportSize bounds uploaded roster files.
const maxImportSize = 10 << 20 // 10 MiB

// Handler handles roster HTTP endpoints. The roster is written to Postgres
// for check-in and mirrored into the event's draw machine so both sides see
// the same people.
type Handler struct {
	repo     *Repository
	registry *draw.Registry
	logger   *zap.Logger
}

// NewHandler creates a roster handler.
func NewHandler(repo *Repository, registry *draw.Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, registry: registry, logger: logger}
}

func (h *Handler) eventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// syncMachine pushes the stored roster into the event's draw machine.
func (h *Handler) syncMachine(c *gin.Context, eventID uuid.UUID) error {
	members, err := h.repo.List(c.Request.Context(), eventID)
	if err != nil {
		return err
	}
	participants := make([]models.Participant, 0, len(members))
	for _, m := range members {
		participants = append(participants, models.Participant{
			ID:         m.EmployeeID,
			Name:       m.Name,
			Department: m.Department,
			Avatar:     m.Avatar,
		})
	}
	machine, err := h.registry.Get(c.Request.Context(), eventID)
	if err != nil {
		return err
	}
	return machine.LoadRoster(c.Request.Context(), participants)
}

// Import handles POST /events/:id/roster/import. Accepts a CSV upload and
// replaces the event's roster with its contents.
func (h *Handler) Import(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if file.Size > maxImportSize {
		response.BadRequest(c, "file too large")
		return
	}
	f, err := file.Open()
	if err != nil {
		response.BadRequest(c, "cannot read file")
		return
	}
	defer f.Close()

	participants, err := ParseRoster(f)
	if err != nil {
		if errors.Is(err, ErrImportParse) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("roster import failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to import roster")
		return
	}

	if err := h.repo.ReplaceAll(c.Request.Context(), eventID, participants); err != nil {
		h.logger.Error("roster replace failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to store roster")
		return
	}
	if err := h.syncMachine(c, eventID); err != nil {
		h.logger.Error("roster sync to draw failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to sync draw pool")
		return
	}
	h.logger.Info("roster imported",
		zap.String("event_id", eventID.String()),
		zap.Int("count", len(participants)),
		zap.String("filename", file.Filename))
	response.OK(c, gin.H{"imported": len(participants)})
}

// List handles GET /events/:id/roster.
func (h *Handler) List(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	members, err := h.repo.List(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list roster failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to list roster")
		return
	}
	response.OK(c, gin.H{"members": members, "count": len(members)})
}

// AddRequest is the body for POST /events/:id/roster.
type AddRequest struct {
	EmployeeID string `json:"employee_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Department string `json:"department"`
}

// Add handles POST /events/:id/roster. Adds a single member, e.g. a
// walk-in guest.
func (h *Handler) Add(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	member := &models.RosterMember{
		EmployeeID: req.EmployeeID,
		Name:       req.Name,
		Department: req.Department,
		Avatar:     DefaultAvatarURL(req.EmployeeID),
	}
	created, err := h.repo.Add(c.Request.Context(), eventID, member)
	if err != nil {
		h.logger.Error("add roster member failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to add member")
		return
	}
	if !created {
		response.Conflict(c, "employee id already on roster")
		return
	}
	if err := h.syncMachine(c, eventID); err != nil {
		h.logger.Error("roster sync to draw failed", zap.Error(err), zap.String("event_id", eventID.String()))
	}
	response.Created(c, member)
}

// Delete handles DELETE /events/:id/roster/:employeeId.
func (h *Handler) Delete(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	employeeID := c.Param("employeeId")
	if err := h.repo.Delete(c.Request.Context(), eventID, employeeID); err != nil {
		h.logger.Error("delete roster member failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to delete member")
		return
	}
	if err := h.syncMachine(c, eventID); err != nil {
		h.logger.Error("roster sync to draw failed", zap.Error(err), zap.String("event_id", eventID.String()))
	}
	response.NoContent(c)
}

// Clear handles DELETE /events/:id/roster.
func (h *Handler) Clear(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	if err := h.repo.Clear(c.Request.Context(), eventID); err != nil {
		h.logger.Error("clear roster failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to clear roster")
		return
	}
	if err := h.syncMachine(c, eventID); err != nil {
		h.logger.Error("roster sync to draw failed", zap.Error(err), zap.String("event_id", eventID.String()))
	}
	response.NoContent(c)
}

// ExportRecords handles GET /events/:id/draw/export. Streams the winner list
// as a CSV download.
func (h *Handler) ExportRecords(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	machine, err := h.registry.Get(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("load draw machine failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to load draw records")
		return
	}
	records := machine.Records()
	if len(records) == 0 {
		response.NotFound(c, "no draw records to export")
		return
	}

	var buf bytes.Buffer
	if err := WriteDrawRecords(&buf, records); err != nil {
		h.logger.Error("export records failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to export records")
		return
	}
	filename := "winners_" + time.Now().Format("2006-01-02") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
