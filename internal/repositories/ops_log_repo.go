package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wordledger/internal/models"

	"github.com/google/uuid"
)

// OpsLogRepository records privileged operations in a trail separate
// from the transaction log, so purges of the latter stay accounted for.
type OpsLogRepository interface {
	Append(ctx context.Context, entry *models.OpsEntry) error
	List(ctx context.Context, limit, offset int) ([]*models.OpsEntry, error)
}

type opsLogRepo struct {
	db Querier
}

func NewOpsLogRepo(db Querier) OpsLogRepository {
	return &opsLogRepo{db: db}
}

func (r *opsLogRepo) Append(ctx context.Context, entry *models.OpsEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	query := `
		INSERT INTO ops_log (id, actor, action, tenant_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.Exec(ctx, query, entry.ID, entry.Actor, entry.Action, entry.TenantID, details, entry.CreatedAt)
	return err
}

func (r *opsLogRepo) List(ctx context.Context, limit, offset int) ([]*models.OpsEntry, error) {
	query := `
		SELECT id, actor, action, tenant_id, details, created_at
		FROM ops_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.OpsEntry
	for rows.Next() {
		entry := &models.OpsEntry{}
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.TenantID, &details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
