package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/booksswap/booksswap-server/internal/badge"
	"github.com/booksswap/booksswap-server/internal/config"
	"github.com/booksswap/booksswap-server/internal/jobs"
	"github.com/booksswap/booksswap-server/internal/logger"
	"github.com/booksswap/booksswap-server/internal/metrics"
)

// SchedulerHandle wraps the cron scheduler with shutdown capability.
type SchedulerHandle struct {
	*jobs.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Scheduler.Shutdown(ctx)
}

// ProvideScheduler provides the cron scheduler with the badge reconcile job.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	awarder := do.MustInvoke[*badge.Awarder](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	scheduler := jobs.NewScheduler(m, jobTimeout, log.Component("jobs"))

	if cfg.Jobs.BadgeReconcileSchedule == "" {
		log.Info("Badge reconcile job disabled")
	} else {
		reconciler := jobs.NewBadgeReconciler(storeHandle.Store, awarder, log.Component("jobs"))
		if err := scheduler.Add(cfg.Jobs.BadgeReconcileSchedule, reconciler); err != nil {
			return nil, err
		}
	}

	scheduler.Start()

	return &SchedulerHandle{Scheduler: scheduler}, nil
}
