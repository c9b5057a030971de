package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/robfig/cron/v3"

	"github.com/digicard/backend/bulk"
	"github.com/digicard/backend/tenant"
)

// usersCollection is the auth collection holding tenant accounts.
const usersCollection = "users"

// sweepSchedule is how often stranded queues are re-drained. A queue goes
// stranded when a drain dies mid-run (crash, deploy, token revocation);
// its rows sit on the queue sheet until something picks them up.
const sweepSchedule = "*/15 * * * *"

// sweepTimeout bounds one full sweep pass across all tenants.
const sweepTimeout = 45 * time.Minute

// maxSweepOwners caps how many workbook owners one pass visits.
const maxSweepOwners = 500

// Scheduler runs the periodic queue-recovery sweep.
type Scheduler struct {
	server  *server
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new scheduler
func NewScheduler(app *pocketbase.PocketBase) *Scheduler {
	return &Scheduler{
		server: getServer(app),
		cron:   cron.New(),
	}
}

// Start initializes and starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	_, err := s.cron.AddFunc(sweepSchedule, func() {
		slog.Info("Starting scheduled queue sweep")
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("adding sweep schedule: %w", err)
	}

	s.cron.Start()
	s.running = true

	slog.Info("Queue sweep scheduler started")
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	slog.Info("Stopping queue sweep scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	slog.Info("Queue sweep scheduler stopped")
}

// TriggerSweep manually triggers a sweep pass
func (s *Scheduler) TriggerSweep() {
	go s.runSweep()
}

// runSweep re-drains every non-empty queue of every connected tenant.
// The per-tenant drain guard makes this safe to overlap with a drain a
// submit endpoint already fired.
func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	owners, err := s.server.app.FindRecordsByFilter(
		usersCollection,
		fmt.Sprintf("%s = true && %s != ''", tenant.FieldConnected, tenant.FieldSpreadsheetID),
		"-updated",
		maxSweepOwners,
		0,
	)
	if err != nil {
		slog.Error("Queue sweep failed listing tenants", "error", err)
		return
	}

	swept := 0
	for _, owner := range owners {
		if ctx.Err() != nil {
			slog.Warn("Queue sweep timed out", "visited", swept, "owners", len(owners))
			return
		}
		swept += s.sweepOwner(ctx, owner)
	}

	if swept > 0 {
		slog.Info("Queue sweep complete", "owners", len(owners), "drained_queues", swept)
	}
}

// sweepOwner drains the owner's queue and every sub account queue on the
// same workbook. Returns how many non-empty queues it drained.
func (s *Scheduler) sweepOwner(ctx context.Context, owner *core.Record) int {
	session, err := s.server.session(ctx, owner)
	if err != nil {
		slog.Warn("Queue sweep skipping tenant", "tenant", owner.Id, "error", err)
		return 0
	}

	refs := []tenant.Ref{tenant.Primary(owner.Id)}
	subIDs, err := tenant.SubAccountIDs(s.server.app, owner)
	if err != nil {
		slog.Warn("Queue sweep skipping sub accounts", "tenant", owner.Id, "error", err)
	}
	for _, subID := range subIDs {
		refs = append(refs, tenant.Sub(owner.Id, subID))
	}

	drained := 0
	for _, ref := range refs {
		svc, err := bulk.NewService(ctx, session.Manager, session.Objects, owner, ref)
		if err != nil {
			slog.Warn("Queue sweep skipping region", "tenant", owner.Id, "sub", ref.SubID, "error", err)
			continue
		}
		depth, err := svc.QueueDepth(ctx)
		if err != nil {
			slog.Warn("Queue sweep failed reading queue", "tenant", owner.Id, "sub", ref.SubID, "error", err)
			continue
		}
		if depth == 0 {
			continue
		}

		slog.Info("Queue sweep draining stranded queue", "tenant", owner.Id, "sub", ref.SubID, "depth", depth)
		processed, err := svc.Drain(ctx, s.server.extract, s.server.notifier(ctx, session))
		if err != nil {
			slog.Error("Queue sweep drain failed", "tenant", owner.Id, "sub", ref.SubID, "processed", processed, "error", err)
			continue
		}
		drained++
	}
	return drained
}

// Global scheduler instance
var globalScheduler *Scheduler
var schedulerOnce sync.Once

// GetScheduler returns the global scheduler instance
func GetScheduler(app *pocketbase.PocketBase) *Scheduler {
	schedulerOnce.Do(func() {
		globalScheduler = NewScheduler(app)
	})
	return globalScheduler
}

// StartSweepScheduler starts the global scheduler
func StartSweepScheduler(app *pocketbase.PocketBase) error {
	return GetScheduler(app).Start()
}
