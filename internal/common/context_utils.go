package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	ActorKey    contextKey = "actor"
)

// GetTenantIDFromContext extracts the authenticated tenant ID from the
// request context.
func GetTenantIDFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(string)
	return tenantID, ok
}

// GetActorFromContext extracts the administrative actor from the
// request context.
func GetActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(ActorKey).(string)
	return actor, ok
}

// HashAPIKey returns the hex-encoded SHA-256 digest of an API key.
// Only the digest is persisted.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,63}$`)

// ValidateTenantID validates tenant identifier format
func ValidateTenantID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("tenant id is required")
	}
	if !tenantIDPattern.MatchString(id) {
		return fmt.Errorf("tenant id must be 3-64 lowercase letters, digits, '-' or '_'")
	}
	return nil
}

// ValidatePaginationParams validates pagination parameters
func ValidatePaginationParams(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
