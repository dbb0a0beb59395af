package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"wordledger/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// AuthHandlers issues administrator JWTs against the shared admin
// secret. Admin endpoints only accept the JWT, never the raw secret.
type AuthHandlers struct {
	adminSecret string
	jwtSecret   string
	tokenTTL    time.Duration
}

func NewAuthHandlers(adminSecret, jwtSecret string, tokenTTL time.Duration) *AuthHandlers {
	return &AuthHandlers{
		adminSecret: adminSecret,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
	}
}

// AdminLoginRequest represents the admin login payload
type AdminLoginRequest struct {
	Secret string `json:"secret"`
}

// AdminLogin exchanges the admin secret for a short-lived JWT
func (h *AuthHandlers) AdminLogin(c echo.Context) error {
	var req AdminLoginRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "secret", "invalid request format")
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.adminSecret)) != 1 {
		return common.SendUnauthorizedError(c)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(h.tokenTTL)
	claims := jwt.MapClaims{
		"sub":  "admin",
		"role": "admin",
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		return common.RespondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}
