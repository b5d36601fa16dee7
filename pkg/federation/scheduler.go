package federation

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/bazaar/pkg/async"
	"github.com/platinummonkey/bazaar/pkg/compatibility"
	"github.com/platinummonkey/bazaar/pkg/tenants"
)

// cycleTimeout bounds one full promote or pull cycle across all tenants.
const cycleTimeout = 10 * time.Minute

// TenantSync names one tenant's sync configuration.
type TenantSync struct {
	TenantID string
	// Level bounds what the tenant pulls from the central catalog.
	Level compatibility.ImpactLevel
}

// Scheduler runs promote and pull cycles on cron schedules. One scheduler
// serves all configured tenants; cycles for different tenants run
// independently.
type Scheduler struct {
	engine  *Engine
	service tenants.Service
	logger  *logrus.Logger
	cron    *cron.Cron
}

// NewScheduler creates a sync scheduler.
func NewScheduler(engine *Engine, service tenants.Service, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		engine:  engine,
		service: service,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start schedules promote and pull cycles with the given cron specs and
// starts the scheduler. Specs use the standard five-field cron format.
func (s *Scheduler) Start(promoteSpec, pullSpec string, syncs []TenantSync) error {
	if promoteSpec != "" {
		if _, err := s.cron.AddFunc(promoteSpec, func() {
			async.Go(context.Background(), cycleTimeout, "federation.promote", func(ctx context.Context) error {
				s.promoteAll(ctx, syncs)
				return nil
			})
		}); err != nil {
			return err
		}
	}
	if pullSpec != "" {
		if _, err := s.cron.AddFunc(pullSpec, func() {
			async.Go(context.Background(), cycleTimeout, "federation.pull", func(ctx context.Context) error {
				s.pullAll(ctx, syncs)
				return nil
			})
		}); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for running cycles to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// resolve returns the configured tenants, or every known tenant when none are
// configured explicitly. Discovered tenants promote only; pulling needs an
// explicit impact level.
func (s *Scheduler) resolve(syncs []TenantSync) []TenantSync {
	if len(syncs) > 0 || s.service == nil {
		return syncs
	}
	all, err := s.service.ListTenants(context.Background())
	if err != nil {
		s.logger.Errorf("Failed to list tenants for sync: %v", err)
		return nil
	}
	out := make([]TenantSync, 0, len(all))
	for _, t := range all {
		out = append(out, TenantSync{TenantID: t.ID})
	}
	return out
}

func (s *Scheduler) promoteAll(ctx context.Context, syncs []TenantSync) {
	for _, sync := range s.resolve(syncs) {
		report, err := s.engine.Promote(ctx, sync.TenantID)
		if err != nil {
			var partial *PartialFailureError
			if errors.As(err, &partial) {
				s.logger.WithField("tenant_id", sync.TenantID).
					Warnf("Promote cycle partially failed: %d items did not land", len(partial.Failures))
			} else {
				s.logger.WithField("tenant_id", sync.TenantID).
					Errorf("Promote cycle failed: %v", err)
			}
			continue
		}
		if report.Transferred > 0 {
			s.logger.WithField("tenant_id", sync.TenantID).
				Infof("Promoted %d versions, watermark %d", report.Transferred, report.Watermark)
		}
	}
}

func (s *Scheduler) pullAll(ctx context.Context, syncs []TenantSync) {
	for _, sync := range syncs {
		if !sync.Level.IsValid() {
			continue
		}
		report, err := s.engine.Pull(ctx, sync.TenantID, sync.Level)
		if err != nil {
			s.logger.WithField("tenant_id", sync.TenantID).
				Errorf("Pull cycle failed: %v", err)
			continue
		}
		if err := s.engine.Ack(ctx, sync.TenantID, report.Watermark); err != nil {
			s.logger.WithField("tenant_id", sync.TenantID).
				Errorf("Failed to ack pull watermark: %v", err)
			continue
		}
		if report.Transferred > 0 {
			s.logger.WithField("tenant_id", sync.TenantID).
				Infof("Pulled %d versions, watermark %d", report.Transferred, report.Watermark)
		}
	}
}
