package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"wordledger/internal/caching"
	"wordledger/internal/common"
	"wordledger/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const authCacheTTL = 5 * time.Minute

// TenantAuth authenticates self-service requests with a per-tenant API
// key. The key is resolved via its SHA-256 hash, from Redis first and
// Postgres on a miss.
func TenantAuth(tenantRepo repositories.TenantRepository, cache caching.CacheService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, ok := bearerToken(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing or invalid token")
			}

			hash := common.HashAPIKey(key)
			ctx := c.Request().Context()

			tenantID, err := cache.GetTenantIDByKeyHash(ctx, hash)
			if err != nil || tenantID == "" {
				tenant, err := tenantRepo.GetByAPIKeyHash(ctx, hash)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
				}
				tenantID = tenant.ID
				if err := cache.SetTenantKeyHash(ctx, hash, tenantID, authCacheTTL); err != nil {
					log.Printf("WARN: failed to cache auth key for %s: %v", tenantID, err)
				}
			}

			ctx = context.WithValue(ctx, common.TenantIDKey, tenantID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// AdminAuth authenticates administrative requests with a signed JWT
// obtained from the admin login endpoint.
func AdminAuth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, ok := bearerToken(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing or invalid token")
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid claims")
			}
			if role, _ := claims["role"].(string); role != "admin" {
				return echo.NewHTTPError(http.StatusForbidden, "Administrator credential required")
			}

			actor, _ := claims["sub"].(string)
			if actor == "" {
				actor = "admin"
			}

			ctx := context.WithValue(c.Request().Context(), common.ActorKey, actor)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RateLimitByTenant throttles an authenticated tenant's requests.
// Runs after TenantAuth.
func RateLimitByTenant(cache caching.CacheService, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			tenantID, ok := common.GetTenantIDFromContext(ctx)
			if !ok {
				return next(c)
			}

			limited, err := cache.IsRateLimited(ctx, tenantID, limit, window)
			if err != nil {
				// Redis being down must not take billing down with it.
				log.Printf("WARN: rate limit check failed for %s: %v", tenantID, err)
				return next(c)
			}
			if limited {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
			}
			if err := cache.IncrementRateLimit(ctx, tenantID, window); err != nil {
				log.Printf("WARN: rate limit increment failed for %s: %v", tenantID, err)
			}
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader || token == "" {
		return "", false
	}
	return token, true
}
