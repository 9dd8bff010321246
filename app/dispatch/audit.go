package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"github.com/sirupsen/logrus"
)

// writeDispatchAudit records a lifecycle event written by the engine. Audit
// failures are logged only.
func writeDispatchAudit(ctx context.Context, audit repository.AuditLogRepository, logger logrus.FieldLogger, campaign *models.Campaign, action string, reason *string) {
	success := action != models.AuditActionCampaignFailed && action != models.AuditActionCampaignInterrupted

	metadata, _ := json.Marshal(map[string]any{
		"campaign_uuid": campaign.UUID.String(),
		"total":         campaign.TotalRecipients,
		"sent":          campaign.SentCount,
		"failed":        campaign.FailedCount,
	})

	entry := &models.AuditLog{
		CustomerID:   utils.ToPtr(campaign.CustomerID),
		CampaignID:   utils.ToPtr(campaign.ID),
		Action:       action,
		Description:  utils.ToPtr(fmt.Sprintf("campaign %q: %s", campaign.Name, action)),
		Metadata:     metadata,
		Success:      &success,
		ErrorMessage: reason,
	}

	if err := audit.Save(ctx, entry); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"campaign_id": campaign.ID,
			"action":      action,
		}).Warn("failed to write audit log")
	}
}
