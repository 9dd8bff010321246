package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matbaogit/WFAHub-sub000/app/queue"
	"github.com/matbaogit/WFAHub-sub000/app/services"
	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"github.com/sirupsen/logrus"
)

// DispatcherConfig tunes the supervisor
type DispatcherConfig struct {
	SchedulerInterval time.Duration
	ResumeInterrupted bool
	LockTTL           time.Duration
	ShutdownTimeout   time.Duration
}

// Dispatcher consumes dispatch jobs, promotes due scheduled campaigns and
// supervises one loop goroutine per campaign
type Dispatcher struct {
	cfg       DispatcherConfig
	queue     queue.Queue
	loop      *Loop
	campaigns repository.CampaignRepository
	audit     repository.AuditLogRepository
	locker    Locker
	logger    logrus.FieldLogger
	owner     string
	now       func() time.Time

	mu      sync.Mutex
	running map[uint]context.CancelFunc
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewDispatcher creates a dispatcher
func NewDispatcher(cfg DispatcherConfig, q queue.Queue, loop *Loop, campaigns repository.CampaignRepository, audit repository.AuditLogRepository, locker Locker, logger logrus.FieldLogger) *Dispatcher {
	if cfg.SchedulerInterval <= 0 {
		cfg.SchedulerInterval = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Dispatcher{
		cfg:       cfg,
		queue:     q,
		loop:      loop,
		campaigns: campaigns,
		audit:     audit,
		locker:    locker,
		logger:    logger,
		owner:     uuid.NewString(),
		now:       utils.UTCNow,
		running:   make(map[uint]context.CancelFunc),
	}
}

// Enqueue hands a sending campaign to the dispatcher
func (d *Dispatcher) Enqueue(ctx context.Context, campaignID uint) error {
	return d.queue.Publish(ctx, queue.Job{CampaignID: campaignID, EnqueuedAt: d.now()})
}

// Start recovers interrupted campaigns, then consumes the queue and runs the scheduled-campaign ticker
func (d *Dispatcher) Start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel

	if err := d.RecoverInterrupted(ctx); err != nil {
		d.logger.WithError(err).Error("interrupted campaign recovery failed")
	}

	if err := d.queue.Subscribe(ctx, d.handleJob); err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to dispatch queue: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runScheduler(ctx)
	}()

	d.logger.WithFields(logrus.Fields{
		"owner":              d.owner,
		"scheduler_interval": d.cfg.SchedulerInterval.String(),
	}).Info("dispatcher started")
	return nil
}

// Stop cancels running loops and waits for them to return. Interrupted
// campaigns stay sending and are recovered on the next start.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped")
	case <-time.After(d.cfg.ShutdownTimeout):
		d.logger.Warn("dispatcher stop timed out with loops still running")
	}
}

// IsRunning reports whether this process runs the loop of campaignID
func (d *Dispatcher) IsRunning(campaignID uint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.running[campaignID]
	return ok
}

func (d *Dispatcher) handleJob(ctx context.Context, job queue.Job) error {
	_, err := d.launch(ctx, job.CampaignID)
	return err
}

// launch starts the loop of a campaign unless it already runs here or elsewhere
func (d *Dispatcher) launch(ctx context.Context, campaignID uint) (bool, error) {
	d.mu.Lock()
	if _, ok := d.running[campaignID]; ok {
		d.mu.Unlock()
		return false, nil
	}
	d.mu.Unlock()

	acquired, err := d.locker.Acquire(ctx, campaignID, d.owner, d.cfg.LockTTL)
	if err != nil {
		return false, err
	}
	if !acquired {
		d.logger.WithField("campaign_id", campaignID).Debug("campaign already dispatched by another worker")
		return false, nil
	}

	loopCtx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	if _, ok := d.running[campaignID]; ok {
		d.mu.Unlock()
		cancel()
		return false, nil
	}
	d.running[campaignID] = cancel
	d.mu.Unlock()

	activeLoops.Inc()
	d.wg.Add(1)
	go d.supervise(loopCtx, cancel, campaignID)
	return true, nil
}

func (d *Dispatcher) supervise(ctx context.Context, cancel context.CancelFunc, campaignID uint) {
	log := d.logger.WithField("campaign_id", campaignID)

	defer func() {
		cancel()
		release, rcancel := context.WithTimeout(context.Background(), finalizeTimeout)
		if err := d.locker.Release(release, campaignID, d.owner); err != nil {
			log.WithError(err).Warn("failed to release campaign lock")
		}
		rcancel()

		d.mu.Lock()
		delete(d.running, campaignID)
		d.mu.Unlock()
		activeLoops.Dec()
		d.wg.Done()
	}()

	go d.keepLock(ctx, cancel, campaignID)

	err := d.loop.Run(ctx, campaignID)
	switch {
	case err == nil:
	case errors.Is(err, ErrCampaignNotSending):
		log.Debug("campaign no longer sending, nothing to do")
	case errors.Is(err, context.Canceled):
		log.Info("dispatch loop cancelled")
	default:
		log.WithError(err).Error("dispatch loop ended with error")
	}
}

// keepLock renews the campaign lock until ctx ends. Losing the lock stops the loop.
func (d *Dispatcher) keepLock(ctx context.Context, cancel context.CancelFunc, campaignID uint) {
	ticker := time.NewTicker(d.cfg.LockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := d.locker.Renew(ctx, campaignID, d.owner, d.cfg.LockTTL)
			if err != nil {
				d.logger.WithError(err).WithField("campaign_id", campaignID).Warn("failed to renew campaign lock")
				continue
			}
			if !ok {
				d.logger.WithField("campaign_id", campaignID).Error("campaign lock lost, stopping loop")
				cancel()
				return
			}
		}
	}
}

func (d *Dispatcher) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.PromoteDue(ctx); err != nil && ctx.Err() == nil {
				d.logger.WithError(err).Error("failed to promote scheduled campaigns")
			}
			if err := d.ResumeOrphaned(ctx); err != nil && ctx.Err() == nil {
				d.logger.WithError(err).Error("failed to resume orphaned campaigns")
			}
		}
	}
}

// PromoteDue moves scheduled campaigns whose time has come to sending and launches them
func (d *Dispatcher) PromoteDue(ctx context.Context) error {
	now := d.now()
	due, err := d.campaigns.ListDueScheduled(ctx, now)
	if err != nil {
		return err
	}

	for _, c := range due {
		ok, err := d.campaigns.TransitionStatus(ctx, c.ID,
			[]models.CampaignStatus{models.CampaignStatusScheduled},
			models.CampaignStatusSending,
			map[string]any{"started_at": now},
		)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		c.Status = models.CampaignStatusSending
		c.StartedAt = &now
		writeDispatchAudit(ctx, d.audit, d.logger, c, models.AuditActionDispatchStarted, nil)
		services.LogEvent(d.logger, models.AuditActionDispatchStarted, map[string]any{
			"campaign_id": c.ID,
			"trigger":     "schedule",
		})

		if _, err := d.launch(ctx, c.ID); err != nil {
			d.logger.WithError(err).WithField("campaign_id", c.ID).Warn("scheduled campaign not launched, queueing")
			if err := d.Enqueue(ctx, c.ID); err != nil {
				return err
			}
		}
	}

	return nil
}

// ResumeOrphaned launches sending campaigns that no worker is running, such as
// one whose dispatch job was dropped while the lock store was unreachable.
// The campaign lock keeps a campaign running elsewhere from being adopted.
func (d *Dispatcher) ResumeOrphaned(ctx context.Context) error {
	sending, err := d.campaigns.ListByStatus(ctx, models.CampaignStatusSending)
	if err != nil {
		return err
	}

	for _, c := range sending {
		if d.IsRunning(c.ID) {
			continue
		}

		log := d.logger.WithField("campaign_id", c.ID)
		started, err := d.launch(ctx, c.ID)
		if err != nil {
			log.WithError(err).Warn("orphaned campaign not launched, retrying on next tick")
			continue
		}
		if started {
			log.Warn("orphaned sending campaign resumed")
		}
	}

	return nil
}

// RecoverInterrupted handles campaigns left sending by a previous process.
// Each is audited, then resumed or failed with reason "interrupted".
// Campaigns whose lock is held by a live worker are skipped.
func (d *Dispatcher) RecoverInterrupted(ctx context.Context) error {
	sending, err := d.campaigns.ListByStatus(ctx, models.CampaignStatusSending)
	if err != nil {
		return err
	}

	for _, c := range sending {
		log := d.logger.WithFields(logrus.Fields{
			"campaign_id": c.ID,
			"sent":        c.SentCount,
			"failed":      c.FailedCount,
			"total":       c.TotalRecipients,
		})

		if d.IsRunning(c.ID) {
			continue
		}

		if d.cfg.ResumeInterrupted {
			started, err := d.launch(ctx, c.ID)
			if err != nil {
				log.WithError(err).Error("failed to resume interrupted campaign")
				continue
			}
			if started {
				writeDispatchAudit(ctx, d.audit, d.logger, c, models.AuditActionCampaignInterrupted, utils.ToPtr("resumed"))
				log.Warn("interrupted campaign resumed")
			}
			continue
		}

		acquired, err := d.locker.Acquire(ctx, c.ID, d.owner, d.cfg.LockTTL)
		if err != nil {
			log.WithError(err).Error("failed to lock interrupted campaign")
			continue
		}
		if !acquired {
			continue
		}

		reason := ReasonInterrupted
		if err := d.campaigns.Finalize(ctx, c.ID, models.CampaignStatusFailed, d.now(), &reason); err != nil {
			log.WithError(err).Error("failed to fail interrupted campaign")
		} else {
			campaignsFinishedTotal.WithLabelValues(string(models.CampaignStatusFailed)).Inc()
			writeDispatchAudit(ctx, d.audit, d.logger, c, models.AuditActionCampaignInterrupted, &reason)
			log.Warn("interrupted campaign marked failed")
		}
		_ = d.locker.Release(ctx, c.ID, d.owner)
	}

	return nil
}
