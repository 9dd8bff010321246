package dispatch

import (
	"context"
	"time"

	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"github.com/sirupsen/logrus"
)

// Progress is the polling view of a campaign
type Progress struct {
	Status  models.CampaignStatus `json:"status"`
	Total   int                   `json:"total"`
	Sent    int                   `json:"sent"`
	Failed  int                   `json:"failed"`
	Opened  int                   `json:"opened"`
	Pending int                   `json:"pending"`
	Percent float64               `json:"percent"`
}

// ProgressOf derives the polling view from a campaign's counters
func ProgressOf(c *models.Campaign) Progress {
	pending := c.TotalRecipients - c.SentCount - c.FailedCount
	if pending < 0 {
		pending = 0
	}
	return Progress{
		Status:  c.Status,
		Total:   c.TotalRecipients,
		Sent:    c.SentCount,
		Failed:  c.FailedCount,
		Opened:  c.OpenedCount,
		Pending: pending,
		Percent: c.ProgressPercent(),
	}
}

// Tracker records delivery outcomes on recipients and the matching campaign counters
type Tracker struct {
	campaigns  repository.CampaignRepository
	recipients repository.RecipientRepository
	logger     logrus.FieldLogger
	now        func() time.Time
}

// NewTracker creates a delivery tracker
func NewTracker(campaigns repository.CampaignRepository, recipients repository.RecipientRepository, logger logrus.FieldLogger) *Tracker {
	return &Tracker{
		campaigns:  campaigns,
		recipients: recipients,
		logger:     logger,
		now:        utils.UTCNow,
	}
}

// RecordSent marks r sent. False means r had already left pending.
func (t *Tracker) RecordSent(ctx context.Context, r *models.Recipient) (bool, error) {
	changed, err := t.recipients.MarkSent(ctx, r, t.now())
	if err != nil {
		return false, err
	}
	if changed {
		emailsSentTotal.Inc()
	}
	return changed, nil
}

// RecordFailed marks r failed with the transport's cause
func (t *Tracker) RecordFailed(ctx context.Context, r *models.Recipient, cause error) (bool, error) {
	changed, err := t.recipients.MarkFailed(ctx, r, cause.Error())
	if err != nil {
		return false, err
	}
	if changed {
		emailsFailedTotal.Inc()
	}
	return changed, nil
}

// RecordOpen stores the first open of a recipient. It never returns an error:
// lookups that fail or do not match are logged and treated as a no-op.
func (t *Tracker) RecordOpen(ctx context.Context, campaignUUID, recipientUUID string) bool {
	log := t.logger.WithFields(logrus.Fields{
		"event":          "open",
		"campaign_uuid":  campaignUUID,
		"recipient_uuid": recipientUUID,
	})

	recipient, err := t.recipients.ByUUID(ctx, recipientUUID)
	if err != nil {
		log.WithError(err).Debug("open ignored: recipient lookup failed")
		return false
	}
	if recipient == nil {
		log.Debug("open ignored: unknown recipient")
		return false
	}
	if recipient.OpenedAt != nil {
		return false
	}

	campaign, err := t.campaigns.ByID(ctx, recipient.CampaignID)
	if err != nil || campaign == nil {
		log.WithError(err).Debug("open ignored: campaign lookup failed")
		return false
	}
	if campaign.UUID.String() != campaignUUID {
		log.Debug("open ignored: recipient does not belong to campaign")
		return false
	}

	changed, err := t.recipients.MarkOpened(ctx, recipient, t.now())
	if err != nil {
		log.WithError(err).Warn("failed to record open")
		return false
	}
	if changed {
		opensRecordedTotal.Inc()
		log.WithField("campaign_id", campaign.ID).Debug("first open recorded")
	}
	return changed
}
