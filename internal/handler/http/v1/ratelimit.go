package v1

import (
	"net/http"

	"github.com/Bilalktk79/crime-alert-system/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const rateLimitKeyPrefix = "report_rate"

// ReportRateLimiter - middleware, ограничивающее частоту приема репортов
// с одного IP через счетчик в Redis с TTL
func ReportRateLimiter(redisClient *redis.Client, cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.ReportRateLimit <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := rateLimitKeyPrefix + ":" + c.ClientIP()

		count, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			// Недоступный Redis не должен блокировать прием репортов
			log.WithError(err).Error("Rate limiter failed to increment counter")
			c.Next()
			return
		}

		// TTL ставим только на первом инкременте окна
		if count == 1 {
			if err := redisClient.Expire(ctx, key, cfg.ReportRateWindow).Err(); err != nil {
				log.WithError(err).Error("Rate limiter failed to set TTL")
			}
		}

		if count > int64(cfg.ReportRateLimit) {
			retryAfter, _ := redisClient.TTL(ctx, key).Result()
			log.WithField("client_ip", c.ClientIP()).Warn("Report rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, Envelope{
				Status:  "error",
				Message: "rate limit exceeded, retry after " + retryAfter.String(),
			})
			return
		}

		c.Next()
	}
}
