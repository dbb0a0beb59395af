package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"wordledger/internal/common"
	"wordledger/internal/models"
	"wordledger/internal/repositories"
)

// csvHeader is the stable export column order. The trailing columns
// carry the traceability fields clients put into a charge context.
var csvHeader = []string{
	"tenant_id", "timestamp", "kind", "service", "quantity",
	"unit_price", "amount", "resulting_balance",
	"order", "profile", "user", "filename",
}

// AuditService exposes the transaction log for querying, export and
// administrative maintenance. Purges are recorded in the operations
// log, which this service never deletes from.
type AuditService interface {
	History(ctx context.Context, tenantID string, limit, offset int) ([]*models.Transaction, error)
	List(ctx context.Context, filters *models.TransactionFilters) ([]*models.Transaction, error)

	DeleteRange(ctx context.Context, start, end time.Time) (int64, error)
	DeleteByTenant(ctx context.Context, tenantID string) (int64, error)
	DeleteByService(ctx context.Context, service string) (int64, error)
	Reset(ctx context.Context) (int64, error)

	WriteCSV(ctx context.Context, w io.Writer) error
	Backup(ctx context.Context) (string, error)
}

type auditService struct {
	txRepo  repositories.TransactionRepository
	opsRepo repositories.OpsLogRepository
	storage StorageService
	bucket  string
}

func NewAuditService(txRepo repositories.TransactionRepository, opsRepo repositories.OpsLogRepository, storage StorageService, bucket string) AuditService {
	return &auditService{
		txRepo:  txRepo,
		opsRepo: opsRepo,
		storage: storage,
		bucket:  bucket,
	}
}

func (s *auditService) History(ctx context.Context, tenantID string, limit, offset int) ([]*models.Transaction, error) {
	limit, offset = common.ValidatePaginationParams(limit, offset)
	return s.txRepo.History(ctx, tenantID, limit, offset)
}

func (s *auditService) List(ctx context.Context, filters *models.TransactionFilters) ([]*models.Transaction, error) {
	if filters == nil {
		filters = &models.TransactionFilters{}
	}
	filters.Limit, filters.Offset = common.ValidatePaginationParams(filters.Limit, filters.Offset)
	return s.txRepo.List(ctx, filters)
}

func (s *auditService) DeleteRange(ctx context.Context, start, end time.Time) (int64, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("%w: end must not be before start", common.ErrInvalidArgument)
	}
	deleted, err := s.txRepo.DeleteRange(ctx, start, end)
	if err != nil {
		return 0, err
	}
	return deleted, s.recordPurge(ctx, models.OpsAuditPurged, models.JSONB{
		"criteria": "range",
		"start":    start.UTC().Format(time.RFC3339),
		"end":      end.UTC().Format(time.RFC3339),
		"deleted":  deleted,
	})
}

func (s *auditService) DeleteByTenant(ctx context.Context, tenantID string) (int64, error) {
	deleted, err := s.txRepo.DeleteByTenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return deleted, s.recordPurge(ctx, models.OpsAuditPurged, models.JSONB{
		"criteria":  "tenant",
		"tenant_id": tenantID,
		"deleted":   deleted,
	})
}

func (s *auditService) DeleteByService(ctx context.Context, service string) (int64, error) {
	if service == "" {
		return 0, fmt.Errorf("%w: service is required", common.ErrInvalidArgument)
	}
	deleted, err := s.txRepo.DeleteByService(ctx, service)
	if err != nil {
		return 0, err
	}
	return deleted, s.recordPurge(ctx, models.OpsAuditPurged, models.JSONB{
		"criteria": "service",
		"service":  service,
		"deleted":  deleted,
	})
}

func (s *auditService) Reset(ctx context.Context) (int64, error) {
	deleted, err := s.txRepo.Reset(ctx)
	if err != nil {
		return 0, err
	}
	return deleted, s.recordPurge(ctx, models.OpsAuditReset, models.JSONB{"deleted": deleted})
}

func (s *auditService) WriteCSV(ctx context.Context, w io.Writer) error {
	transactions, err := s.txRepo.ExportAll(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range transactions {
		row := []string{
			rec.TenantID,
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.Kind,
			rec.Service,
			strconv.FormatInt(rec.Quantity, 10),
			rec.UnitPrice.String(),
			rec.Amount.String(),
			rec.ResultingBalance.String(),
			rec.Context.StringField("order"),
			rec.Context.StringField("profile"),
			rec.Context.StringField("user"),
			rec.Context.StringField("filename"),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Backup writes the full CSV export to object storage and returns the
// object name.
func (s *auditService) Backup(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	if err := s.WriteCSV(ctx, &buf); err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("transactions-%s.csv", time.Now().UTC().Format("20060102-150405"))
	if err := s.storage.EnsureBucketExists(ctx, s.bucket); err != nil {
		return "", fmt.Errorf("%w: ensure bucket: %w", common.ErrStorageFailure, err)
	}
	if err := s.storage.UploadObject(ctx, s.bucket, objectName, "text/csv", &buf, int64(buf.Len())); err != nil {
		return "", fmt.Errorf("%w: upload backup: %w", common.ErrStorageFailure, err)
	}

	return objectName, s.recordPurge(ctx, models.OpsAuditBackedUp, models.JSONB{
		"bucket": s.bucket,
		"object": objectName,
	})
}

func (s *auditService) recordPurge(ctx context.Context, action string, details models.JSONB) error {
	actor, _ := common.GetActorFromContext(ctx)
	err := s.opsRepo.Append(ctx, &models.OpsEntry{
		Actor:   actor,
		Action:  action,
		Details: details,
	})
	if err != nil {
		return fmt.Errorf("%w: operation applied but not recorded in ops log: %w", common.ErrStorageFailure, err)
	}
	return nil
}
