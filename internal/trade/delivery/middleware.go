package delivery

import (
	"net/http"
	"time"

	"fxjournal-backend/internal/trade/parser"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimit allows each client IP rps requests per second with the given burst.
// Idle limiters are evicted after ten minutes.
func RateLimit(rps float64, burst int, log *zap.Logger) gin.HandlerFunc {
	limiters := cache.New(10*time.Minute, 20*time.Minute)
	if burst <= 0 {
		burst = 1
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()

		var limiter *rate.Limiter
		if v, ok := limiters.Get(ip); ok {
			limiter = v.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			if err := limiters.Add(ip, limiter, cache.DefaultExpiration); err != nil {
				// another request registered this client first
				if v, ok := limiters.Get(ip); ok {
					limiter = v.(*rate.Limiter)
				}
			}
		}
		// keep active clients from expiring
		limiters.SetDefault(ip, limiter)

		if !limiter.Allow() {
			if log != nil {
				log.Warn("rate limit exceeded",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", ip),
				)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": http.StatusText(http.StatusTooManyRequests)})
			return
		}
		c.Next()
	}
}

// RegisterValidators adds the "fxpair" binding rule to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("fxpair", func(fl validator.FieldLevel) bool {
		_, ok := parser.NormalizePair(fl.Field().String())
		return ok
	})
}
