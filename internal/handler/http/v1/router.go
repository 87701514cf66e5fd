package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, redisClient *redis.Client) {
	// Прием репортов с ограничением частоты по IP
	api.POST("/report", ReportRateLimiter(redisClient, h.cfg, h.logger), h.reportIncident)

	// Публичные выборки
	api.GET("/incidents", h.listIncidents)
	api.GET("/alerts", h.listAlerts)
	api.GET("/hotspots", h.hotspots)

	// Живой поток событий
	api.GET("/ws", h.eventStream)

	// Маршруты модерации, закрытые API-ключом
	admin := api.Group("/admin", APIKeyAuthMiddleware(h.cfg, h.logger))
	{
		admin.GET("/incidents", h.listAdminIncidents)
		admin.GET("/incidents/flagged", h.listFlaggedIncidents)
		admin.POST("/incidents/:id/approve", h.approveIncident)
		admin.POST("/flag", h.flagIncident)
		admin.DELETE("/incidents/:id/remove", h.removeIncident)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
