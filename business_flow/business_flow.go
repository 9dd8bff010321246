// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"encoding/json"

	"github.com/matbaogit/WFAHub-sub000/app/dispatch"
	"github.com/matbaogit/WFAHub-sub000/app/dto"
	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/matbaogit/WFAHub-sub000/utils"
)

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// CampaignDispatcher hands a campaign that just entered sending to the dispatch engine
type CampaignDispatcher interface {
	Enqueue(ctx context.Context, campaignID uint) error
}

type auditEntry struct {
	customerID uint
	campaignID *uint
	action     string
	message    string
	success    bool
	errMsg     *string
	details    map[string]any
}

func createAuditLog(ctx context.Context, auditRepo repository.AuditLogRepository, entry auditEntry, metadata *ClientMetadata) error {
	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		CustomerID:   utils.ToPtr(entry.customerID),
		CampaignID:   entry.campaignID,
		Action:       entry.action,
		Description:  &entry.message,
		Success:      utils.ToPtr(entry.success),
		ErrorMessage: entry.errMsg,
	}
	if ipAddress != "" {
		audit.IPAddress = &ipAddress
	}
	if userAgent != "" {
		audit.UserAgent = &userAgent
	}
	if len(entry.details) > 0 {
		if raw, err := json.Marshal(entry.details); err == nil {
			audit.Metadata = raw
		}
	}

	// Extract request ID from context if available
	requestID := ctx.Value(utils.RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}
	if audit.RequestID == nil && metadata != nil && metadata.RequestID != "" {
		audit.RequestID = &metadata.RequestID
	}

	return auditRepo.Save(ctx, audit)
}

// ToCampaignDTO converts a campaign model to its response form
func ToCampaignDTO(c *models.Campaign) dto.CampaignDTO {
	p := dispatch.ProgressOf(c)

	keys := []string(c.VariableKeys)
	if keys == nil {
		keys = []string{}
	}

	return dto.CampaignDTO{
		UUID:               c.UUID.String(),
		Name:               c.Name,
		Status:             string(c.Status),
		SubjectTemplate:    c.SubjectTemplate,
		BodyTemplate:       c.BodyTemplate,
		AttachmentTemplate: c.AttachmentTemplate,
		AttachmentName:     c.AttachmentName,
		SendRate:           c.SendRate,
		ScheduleMode:       string(c.ScheduleMode),
		ScheduledAt:        c.ScheduledAt,
		DateColumn:         c.DateColumn,
		DefaultSendTime:    c.DefaultSendTime,
		VariableKeys:       keys,
		Progress: dto.CampaignProgressDTO{
			Total:   p.Total,
			Sent:    p.Sent,
			Failed:  p.Failed,
			Opened:  p.Opened,
			Pending: p.Pending,
			Percent: p.Percent,
		},
		ActualCreditsUsed: c.ActualCreditsUsed,
		FailureReason:     c.FailureReason,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		StartedAt:         c.StartedAt,
		CompletedAt:       c.CompletedAt,
	}
}

// ToRecipientDTO converts a recipient model to its response form
func ToRecipientDTO(r *models.Recipient) dto.RecipientDTO {
	return dto.RecipientDTO{
		UUID:         r.UUID.String(),
		Email:        r.Email,
		Name:         r.Name,
		Status:       string(r.Status),
		CustomData:   r.CustomData,
		ScheduledAt:  r.ScheduledAt,
		SentAt:       r.SentAt,
		OpenedAt:     r.OpenedAt,
		ErrorMessage: r.ErrorMessage,
	}
}

// normalizePage clamps page and limit and returns the row offset
func normalizePage(page, limit int) (int, int, int) {
	page = max(1, page)
	if limit <= 0 {
		limit = 20
	}
	if limit > utils.MaxPageSize {
		limit = utils.MaxPageSize
	}
	return page, limit, (page - 1) * limit
}

func totalPages(total int64, limit int) int {
	return int((total + int64(limit) - 1) / int64(limit))
}
