package jobs

import (
	"context"
	"log"
	"time"

	"wordledger/internal/repositories"

	"github.com/go-co-op/gocron/v2"
	"github.com/shopspring/decimal"
)

// Drift reports a tenant whose stored balance no longer equals the sum
// of its transaction log.
type Drift struct {
	TenantID  string          `json:"tenant_id"`
	Balance   decimal.Decimal `json:"balance"`
	LedgerSum decimal.Decimal `json:"ledger_sum"`
}

// Reconciler periodically verifies that every tenant's balance can be
// reconstructed from its transaction history. Balances and audit
// records commit together, so any drift means operator intervention
// (or an unpurged manual database edit) and is loudly logged.
type Reconciler struct {
	scheduler  gocron.Scheduler
	tenantRepo repositories.TenantRepository
	txRepo     repositories.TransactionRepository
}

func NewReconciler(tenantRepo repositories.TenantRepository, txRepo repositories.TransactionRepository, interval time.Duration) (*Reconciler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	r := &Reconciler{
		scheduler:  scheduler,
		tenantRepo: tenantRepo,
		txRepo:     txRepo,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.runScheduled),
		gocron.WithName("balance-reconciliation"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reconciler) Start() {
	log.Printf("Starting balance reconciliation job")
	r.scheduler.Start()
}

func (r *Reconciler) Stop() error {
	return r.scheduler.Shutdown()
}

func (r *Reconciler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	drifts, err := r.ReconcileAll(ctx)
	if err != nil {
		log.Printf("ERROR: balance reconciliation failed: %v", err)
		return
	}
	if len(drifts) == 0 {
		log.Printf("Balance reconciliation clean")
	}
}

// ReconcileAll checks every tenant and returns those that drifted.
// Tenants whose history was explicitly purged will drift until their
// balance is adjusted; that is expected and left to the operator.
func (r *Reconciler) ReconcileAll(ctx context.Context) ([]Drift, error) {
	ids, err := r.tenantRepo.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, id := range ids {
		tenant, err := r.tenantRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		sum, err := r.txRepo.SumByTenant(ctx, id)
		if err != nil {
			return nil, err
		}
		if !tenant.Balance.Equal(sum) {
			log.Printf("WARN: balance drift for %s: balance=%s ledger=%s", id, tenant.Balance, sum)
			drifts = append(drifts, Drift{TenantID: id, Balance: tenant.Balance, LedgerSum: sum})
		}
	}
	return drifts, nil
}
