package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/matbaogit/WFAHub-sub000/app/mailmerge"
	"github.com/matbaogit/WFAHub-sub000/app/services"
	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"github.com/sirupsen/logrus"
)

var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrCampaignNotSending = errors.New("campaign is not sending")
	ErrSendInterrupted    = errors.New("delivery interrupted by shutdown, outcome unknown")
)

// Failure reasons stored on the campaign
const (
	ReasonNothingDelivered = "no recipient could be delivered"
	ReasonInterrupted      = "interrupted"
)

const finalizeTimeout = 10 * time.Second

// Loop sends one campaign's pending recipients one at a time
type Loop struct {
	campaigns  repository.CampaignRepository
	recipients repository.RecipientRepository
	transport  services.MailTransport
	tracker    *Tracker
	credits    *CreditAccountant
	scheduler  *Scheduler
	audit      repository.AuditLogRepository
	logger     logrus.FieldLogger

	trackingBaseURL string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// LoopDeps groups the collaborators of a Loop
type LoopDeps struct {
	Campaigns       repository.CampaignRepository
	Recipients      repository.RecipientRepository
	Transport       services.MailTransport
	Tracker         *Tracker
	Credits         *CreditAccountant
	Scheduler       *Scheduler
	Audit           repository.AuditLogRepository
	Logger          logrus.FieldLogger
	TrackingBaseURL string
}

// NewLoop creates a dispatch loop
func NewLoop(deps LoopDeps) *Loop {
	return &Loop{
		campaigns:       deps.Campaigns,
		recipients:      deps.Recipients,
		transport:       deps.Transport,
		tracker:         deps.Tracker,
		credits:         deps.Credits,
		scheduler:       deps.Scheduler,
		audit:           deps.Audit,
		logger:          deps.Logger,
		trackingBaseURL: strings.TrimRight(deps.TrackingBaseURL, "/"),
		now:             utils.UTCNow,
		sleep:           sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run delivers every pending recipient of a sending campaign and finalizes it.
// Per-recipient transport errors are recorded and skipped. Store errors and
// panics finalize the campaign as failed. Cancellation of ctx stops the loop
// and leaves the campaign sending for recovery.
func (l *Loop) Run(ctx context.Context, campaignID uint) (err error) {
	log := l.logger.WithField("campaign_id", campaignID)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch loop panic: %v", r)
			services.LogError(log, "dispatch_panic", err, map[string]any{
				"campaign_id": campaignID,
				"stack":       string(debug.Stack()),
			})
			l.fail(ctx, campaignID, err.Error())
		}
	}()

	campaign, err := l.campaigns.ByID(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign %d: %w", campaignID, err)
	}
	if campaign == nil {
		return ErrCampaignNotFound
	}
	if campaign.Status != models.CampaignStatusSending {
		return ErrCampaignNotSending
	}

	log = log.WithField("customer_id", campaign.CustomerID)

	if err := l.deliver(ctx, campaign, log); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			log.Info("dispatch loop stopped before completion")
			return err
		}
		services.LogError(log, "dispatch_loop", err, map[string]any{"campaign_id": campaignID})
		l.fail(ctx, campaignID, err.Error())
		return err
	}

	return l.complete(ctx, campaignID, log)
}

func (l *Loop) deliver(ctx context.Context, campaign *models.Campaign, log logrus.FieldLogger) error {
	perRecipient := campaign.ScheduleMode == models.ScheduleModePerRecipientDate

	pending, err := l.recipients.ListPending(ctx, campaign.ID, perRecipient)
	if err != nil {
		return err
	}

	delay := campaign.DelayBetweenSends()
	log.WithFields(logrus.Fields{
		"pending": len(pending),
		"delay":   delay.String(),
	}).Info("dispatch loop started")

	for i, recipient := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		if at := l.scheduler.EligibleAt(campaign, recipient); at.After(l.now()) {
			if err := l.sleep(ctx, at.Sub(l.now())); err != nil {
				return err
			}
		}

		if err := l.deliverOne(ctx, campaign, recipient, log); err != nil {
			return err
		}

		if i < len(pending)-1 {
			if err := l.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	return nil
}

func (l *Loop) deliverOne(ctx context.Context, campaign *models.Campaign, recipient *models.Recipient, log logrus.FieldLogger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := l.compose(campaign, recipient)
	rlog := log.WithField("recipient_id", recipient.ID)

	start := time.Now()
	sendErr := l.transport.Send(ctx, campaign.CustomerID, msg)
	transportLatency.Observe(time.Since(start).Seconds())

	// Outcomes are stored even when ctx was cancelled during the send
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if sendErr != nil {
		if ctx.Err() != nil && errors.Is(sendErr, ctx.Err()) {
			// The message may have left; never offer it to a resumed loop
			cause := fmt.Errorf("%w: %v", ErrSendInterrupted, sendErr)
			if _, err := l.tracker.RecordFailed(rctx, recipient, cause); err != nil {
				return err
			}
			rlog.WithError(cause).Warn("recipient delivery interrupted")
			return sendErr
		}
		if _, err := l.tracker.RecordFailed(rctx, recipient, sendErr); err != nil {
			return err
		}
		rlog.WithError(sendErr).Warn("recipient delivery failed")
		return nil
	}

	changed, err := l.tracker.RecordSent(rctx, recipient)
	if err != nil {
		return err
	}
	if !changed {
		rlog.Warn("recipient was no longer pending after send")
		return nil
	}

	l.credits.Charge(rctx, campaign.CustomerID, utils.CreditsPerEmail, campaign.ID)
	rlog.Debug("recipient delivered")
	return nil
}

// compose renders the message for one recipient
func (l *Loop) compose(campaign *models.Campaign, recipient *models.Recipient) services.OutgoingEmail {
	data := mailmerge.MergeData(recipient.CustomData, recipient.Email, recipient.Name)

	msg := services.OutgoingEmail{
		To:       recipient.Email,
		ToName:   recipient.DisplayName(),
		Subject:  mailmerge.Render(campaign.SubjectTemplate, data),
		HTMLBody: mailmerge.Render(campaign.BodyTemplate, data),
	}

	if l.trackingBaseURL != "" {
		msg.HTMLBody = InjectTrackingPixel(msg.HTMLBody, TrackingURL(l.trackingBaseURL, campaign, recipient))
	}

	if campaign.AttachmentTemplate != nil && *campaign.AttachmentTemplate != "" {
		attachment := mailmerge.Render(*campaign.AttachmentTemplate, data)
		msg.AttachmentHTML = &attachment
		msg.AttachmentName = utils.Deref(campaign.AttachmentName)
	}

	return msg
}

func (l *Loop) complete(ctx context.Context, campaignID uint, log logrus.FieldLogger) error {
	campaign, err := l.campaigns.ByID(ctx, campaignID)
	if err != nil {
		l.fail(ctx, campaignID, err.Error())
		return err
	}
	if campaign == nil {
		return ErrCampaignNotFound
	}

	status := models.CampaignStatusCompleted
	action := models.AuditActionCampaignCompleted
	var reason *string
	if campaign.SentCount == 0 {
		status = models.CampaignStatusFailed
		action = models.AuditActionCampaignFailed
		reason = utils.ToPtr(ReasonNothingDelivered)
	}

	if err := l.campaigns.Finalize(ctx, campaignID, status, l.now(), reason); err != nil {
		l.fail(ctx, campaignID, err.Error())
		return err
	}

	campaignsFinishedTotal.WithLabelValues(string(status)).Inc()
	l.writeAudit(ctx, campaign, action, reason)
	services.LogEvent(log, action, map[string]any{
		"campaign_id": campaignID,
		"sent":        campaign.SentCount,
		"failed":      campaign.FailedCount,
		"total":       campaign.TotalRecipients,
	})
	return nil
}

// fail finalizes the campaign as failed even when ctx is already done
func (l *Loop) fail(ctx context.Context, campaignID uint, reason string) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := l.campaigns.Finalize(fctx, campaignID, models.CampaignStatusFailed, l.now(), &reason); err != nil {
		l.logger.WithError(err).WithField("campaign_id", campaignID).Error("failed to mark campaign failed")
		return
	}
	campaignsFinishedTotal.WithLabelValues(string(models.CampaignStatusFailed)).Inc()

	if campaign, err := l.campaigns.ByID(fctx, campaignID); err == nil && campaign != nil {
		l.writeAudit(fctx, campaign, models.AuditActionCampaignFailed, &reason)
	}
}

func (l *Loop) writeAudit(ctx context.Context, campaign *models.Campaign, action string, reason *string) {
	if l.audit == nil {
		return
	}
	writeDispatchAudit(ctx, l.audit, l.logger, campaign, action, reason)
}

// TrackingURL is the open-pixel address of one recipient
func TrackingURL(baseURL string, campaign *models.Campaign, recipient *models.Recipient) string {
	return fmt.Sprintf("%s/t/open/%s/%s", baseURL, campaign.UUID, recipient.UUID)
}

// InjectTrackingPixel places a 1x1 image before </body>, or at the end when there is none
func InjectTrackingPixel(html, pixelURL string) string {
	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none;border:0" />`, pixelURL)

	if idx := strings.LastIndex(strings.ToLower(html), "</body>"); idx >= 0 {
		return html[:idx] + pixel + html[idx:]
	}
	return html + pixel
}
