package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

// HeadersMiddleware sets the baseline security headers. The service is a
// JSON API, so the CSP locks everything to self.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	connectSrc := strings.Join(cfg.AllowedOrigins, " ")

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		csp := "default-src 'self'; connect-src 'self' " + connectSrc + "; frame-ancestors 'none'; base-uri 'self'"
		c.Set("Content-Security-Policy", csp)

		return c.Next()
	}
}
