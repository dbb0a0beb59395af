package models

import (
	"time"

	"github.com/google/uuid"
)

// Administrative actions recorded in the operations log
const (
	OpsTenantCreated   = "tenant.created"
	OpsTenantDeleted   = "tenant.deleted"
	OpsTariffsUpdated  = "tenant.tariffs_updated"
	OpsMetadataUpdated = "tenant.metadata_updated"
	OpsKeyRotated      = "tenant.key_rotated"
	OpsAuditPurged     = "audit.purged"
	OpsAuditReset      = "audit.reset"
	OpsAuditBackedUp   = "audit.backed_up"
)

// OpsEntry records who performed a privileged operation, what it was,
// and when. Kept separate from the transaction log so that purges of
// the transaction log are themselves accounted for.
type OpsEntry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Actor     string    `json:"actor" db:"actor"`
	Action    string    `json:"action" db:"action"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Details   JSONB     `json:"details" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
