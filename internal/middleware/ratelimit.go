package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimit allows each client IP `requests` per `window`. Limiters for idle
// clients are evicted after a window of inactivity.
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	if requests <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	visitors := cache.New(window, 2*window)
	every := rate.Every(window / time.Duration(requests))

	return func(c *gin.Context) {
		ip := c.ClientIP()

		var limiter *rate.Limiter
		if v, ok := visitors.Get(ip); ok {
			limiter = v.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(every, requests)
			// Add fails when another request created the limiter first.
			if err := visitors.Add(ip, limiter, cache.DefaultExpiration); err != nil {
				if v, ok := visitors.Get(ip); ok {
					limiter = v.(*rate.Limiter)
				}
			}
		}
		visitors.Set(ip, limiter, cache.DefaultExpiration)

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later."})
			return
		}
		c.Next()
	}
}
