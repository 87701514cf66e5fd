package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Bilalktk79/crime-alert-system/internal/bus"
	"github.com/Bilalktk79/crime-alert-system/internal/config"
	"github.com/Bilalktk79/crime-alert-system/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	incidentService service.IncidentService
	events          *bus.Bus
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(incidentService service.IncidentService, events *bus.Bus, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		incidentService: incidentService,
		events:          events,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

func respondSuccess(c *gin.Context, code int, data any) {
	c.JSON(code, Envelope{Status: "success", Data: data})
}

func respondFailure(c *gin.Context, code int, message string) {
	c.JSON(code, Envelope{Status: "error", Message: message})
}

// respondServiceError сопоставляет ошибки бизнес-логики с HTTP-статусами
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respondFailure(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		respondFailure(c, http.StatusNotFound, "incident not found")
	case errors.Is(err, service.ErrAlreadyRemoved):
		respondFailure(c, http.StatusConflict, "incident already removed")
	default:
		respondFailure(c, http.StatusInternalServerError, "internal server error")
	}
}

// @Summary Submit an incident report
// @Description Submit a new incident report. The report is classified, stored and, unless labeled as spam, broadcast to connected viewers.
// @Tags Reports
// @Accept json
// @Produce json
// @Param report body ReportIncidentRequest true "Incident report"
// @Success 201 {object} Envelope
// @Failure 400 {object} Envelope "Invalid request body or validation error"
// @Failure 429 {object} Envelope "Rate limit exceeded"
// @Failure 500 {object} Envelope "Internal server error"
// @Router /report [post]
func (h *Handler) reportIncident(c *gin.Context) {
	var input ReportIncidentRequest
	log := h.logger.WithField("method", "reportIncident")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		respondFailure(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		respondFailure(c, http.StatusBadRequest, err.Error())
		return
	}

	incident, err := h.incidentService.SubmitIncident(c.Request.Context(), DTOToIncidentModel(input))
	if err != nil {
		log.WithError(err).Error("Failed to submit incident")
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, ModelToIncidentResponse(incident))
}

// @Summary Get the public incident feed
// @Description Get approved, non-removed, non-spam incidents, newest first.
// @Tags Incidents
// @Produce json
// @Success 200 {object} Envelope
// @Failure 500 {object} Envelope "Internal server error"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")

	incidents, err := h.incidentService.ListPublicIncidents(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list public incidents")
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get high severity alerts
// @Description Get approved incidents with high or critical severity.
// @Tags Incidents
// @Produce json
// @Success 200 {object} Envelope
// @Failure 500 {object} Envelope "Internal server error"
// @Router /alerts [get]
func (h *Handler) listAlerts(c *gin.Context) {
	log := h.logger.WithField("method", "listAlerts")

	incidents, err := h.incidentService.ListAlerts(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list alerts")
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident hotspots
// @Description Get clustered location hotspots of publicly visible incidents.
// @Tags Incidents
// @Produce json
// @Success 200 {object} Envelope
// @Failure 500 {object} Envelope "Internal server error"
// @Router /hotspots [get]
func (h *Handler) hotspots(c *gin.Context) {
	log := h.logger.WithField("method", "hotspots")

	clusters, err := h.incidentService.Hotspots(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to compute hotspots")
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, clusters)
}

// @Summary Get incidents for moderation
// @Description Get all non-removed incidents including spam and unapproved ones. Requires API key.
// @Tags Admin
// @Produce json
// @Security ApiKeyAuth
// @Param flagged query bool false "Return only flagged incidents" default(false)
// @Success 200 {object} Envelope
// @Failure 401 {object} Envelope "Unauthorized"
// @Failure 500 {object} Envelope "Internal server error"
// @Router /admin/incidents [get]
func (h *Handler) listAdminIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listAdminIncidents")
	flaggedOnly, _ := strconv.ParseBool(c.DefaultQuery("flagged", "false"))

	incidents, err := h.incidentService.ListAdminIncidents(c.Request.Context(), flaggedOnly)
	if err != nil {
		log.WithError(err).Error("Failed to list admin incidents")
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get flagged incidents
// @Description Get non-removed incidents carrying the moderation flag. Requires API key.
// @Tags Admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} Envelope
// @Failure 401 {object} Envelope "Unauthorized"
// @Failure 500 {object} Envelope "Internal server error"
// @Router /admin/incidents/flagged [get]
func (h *Handler) listFlaggedIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listFlaggedIncidents")

	incidents, err := h.incidentService.ListAdminIncidents(c.Request.Context(), true)
	if err != nil {
		log.WithError(err).Error("Failed to list flagged incidents")
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Approve an incident
// @Description Approve a pending incident, making it publicly visible. Idempotent. Requires API key.
// @Tags Admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} Envelope
// @Failure 400 {object} Envelope "Invalid incident ID"
// @Failure 401 {object} Envelope "Unauthorized"
// @Failure 404 {object} Envelope "Incident not found"
// @Failure 409 {object} Envelope "Incident already removed"
// @Router /admin/incidents/{id}/approve [post]
func (h *Handler) approveIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondFailure(c, http.StatusBadRequest, "invalid incident ID")
		return
	}
	log := h.logger.WithField("method", "approveIncident").WithField("id", id)

	incident, err := h.incidentService.ApproveIncident(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Warn("Failed to approve incident")
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Set or toggle the moderation flag
// @Description Toggle the moderation flag of an incident, or set it to the supplied value. Requires API key.
// @Tags Admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body FlagIncidentRequest true "Flag request"
// @Success 200 {object} Envelope
// @Failure 400 {object} Envelope "Invalid request body"
// @Failure 401 {object} Envelope "Unauthorized"
// @Failure 404 {object} Envelope "Incident not found"
// @Failure 409 {object} Envelope "Incident already removed"
// @Router /admin/flag [post]
func (h *Handler) flagIncident(c *gin.Context) {
	var input FlagIncidentRequest
	log := h.logger.WithField("method", "flagIncident")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		respondFailure(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		respondFailure(c, http.StatusBadRequest, err.Error())
		return
	}

	id, err := uuid.Parse(input.ID)
	if err != nil {
		respondFailure(c, http.StatusBadRequest, "invalid incident ID")
		return
	}

	incident, err := h.incidentService.FlagIncident(c.Request.Context(), id, input.Flagged)
	if err != nil {
		log.WithError(err).Warn("Failed to flag incident")
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Remove an incident
// @Description Tombstone an incident. The incident disappears from all listings and no further transitions are allowed. Requires API key.
// @Tags Admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} Envelope
// @Failure 400 {object} Envelope "Invalid incident ID"
// @Failure 401 {object} Envelope "Unauthorized"
// @Failure 404 {object} Envelope "Incident not found"
// @Failure 409 {object} Envelope "Incident already removed"
// @Router /admin/incidents/{id}/remove [delete]
func (h *Handler) removeIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondFailure(c, http.StatusBadRequest, "invalid incident ID")
		return
	}
	log := h.logger.WithField("method", "removeIncident").WithField("id", id)

	incident, err := h.incidentService.RemoveIncident(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Warn("Failed to remove incident")
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
