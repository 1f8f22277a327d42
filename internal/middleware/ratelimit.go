package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// RateLimit caps requests per caller per period. Authenticated callers are
// keyed by user id, anonymous ones by client IP.
func RateLimit(limit int64, period time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{Period: period, Limit: limit})

	return mgin.NewMiddleware(instance,
		mgin.WithKeyGetter(func(c *gin.Context) string {
			if claims := ClaimsFromContext(c); claims != nil {
				return "user:" + claims.UserID + ":" + c.FullPath()
			}
			return "ip:" + c.ClientIP() + ":" + c.FullPath()
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, "Too many review submissions, please try again shortly"))
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			// fail open so a limiter fault never blocks reviews
			logger.Warn("rate limiter failed", zap.Error(err))
			c.Next()
		}),
	)
}
