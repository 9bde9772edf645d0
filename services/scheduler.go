// backend/services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/stockvaluatorpro/taxdata/backend/config"
	"github.com/stockvaluatorpro/taxdata/backend/models"
)

// Scheduler drives recurring update checks at the configured interval. By
// default it only checks and notifies, leaving every write behind explicit
// human approval; when auto_apply is configured it approves detected
// updates itself under the system-approver identity.
type Scheduler struct {
	cfg     *config.Config
	checks  *CheckService
	updates *UpdateService
}

func NewScheduler(cfg *config.Config, checks *CheckService, updates *UpdateService) *Scheduler {
	return &Scheduler{cfg: cfg, checks: checks, updates: updates}
}

// Run blocks until ctx is cancelled. The first tick fires immediately, then
// every check_interval_hours. Cancellation is honored between ticks only: an
// in-flight tick (including any acquisition it started) runs to completion
// before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("Service: scheduler starting, checking every %dh (auto-apply: %v)\n",
		s.cfg.Update.CheckIntervalHours, s.cfg.Update.AutoApply)

	// Ticks deliberately detach from ctx: shutdown must not abort an
	// acquisition mid-step.
	tickCtx := context.WithoutCancel(ctx)
	s.tick(tickCtx)

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %dh", s.cfg.Update.CheckIntervalHours), func() {
		s.tick(tickCtx)
	}); err != nil {
		return fmt.Errorf("failed to schedule update checks: %w", err)
	}
	c.Start()

	<-ctx.Done()
	log.Println("Service: scheduler stopping, waiting for in-flight tick...")
	<-c.Stop().Done()
	log.Println("Service: scheduler stopped.")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	log.Println("Service: running scheduled update check")

	results, err := s.checks.CheckAll(ctx)
	if err != nil {
		log.Printf("ERROR Service: scheduled check run had failures: %v\n", err)
	}
	if !s.cfg.Update.AutoApply {
		return
	}

	for t, rec := range results {
		if rec == nil || !rec.UpdateAvailable {
			continue
		}
		s.autoApply(ctx, t)
	}
}

func (s *Scheduler) autoApply(ctx context.Context, t models.DatasetType) {
	log.Printf("Service: auto-applying detected update for %s as %s\n", t, s.cfg.Update.SystemApprover)
	result, err := s.updates.Approve(ctx, t, s.cfg.Update.SystemApprover)
	if err != nil {
		log.Printf("ERROR Service: auto-apply for %s failed: %v\n", t, err)
		return
	}
	log.Printf("Service: auto-apply for %s imported %d rows\n", t, result.RowsImported)
}
