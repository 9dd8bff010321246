package dto

import (
	"time"

	"github.com/matbaogit/WFAHub-sub000/models"
)

// CreateCampaignRequest applies a column mapping to a cached upload and creates a draft campaign
type CreateCampaignRequest struct {
	CustomerID         uint              `json:"-"`
	UploadToken        string            `json:"upload_token" validate:"required,uuid"`
	Mapping            map[string]string `json:"mapping" validate:"required"`
	Name               string            `json:"name" validate:"required,max=255"`
	SubjectTemplate    string            `json:"subject_template" validate:"required"`
	BodyTemplate       string            `json:"body_template" validate:"required"`
	AttachmentTemplate *string           `json:"attachment_template,omitempty"`
	AttachmentName     *string           `json:"attachment_name,omitempty" validate:"omitempty,max=255"`
	SendRate           int               `json:"send_rate" validate:"min=1,max=600"`
	ScheduleMode       string            `json:"schedule_mode" validate:"omitempty,oneof=immediate fixed-time per-recipient-date"`
	ScheduledAt        *time.Time        `json:"scheduled_at,omitempty"`
	DateColumn         *string           `json:"date_column,omitempty" validate:"omitempty,max=255"`
	DefaultSendTime    *string           `json:"default_send_time,omitempty" validate:"omitempty,max=8"`
}

// CreateCampaignResponse represents the response to create a new campaign
type CreateCampaignResponse struct {
	Message          string      `json:"message"`
	Campaign         CampaignDTO `json:"campaign"`
	UnknownVariables []string    `json:"unknown_variables"`
	Warnings         []string    `json:"warnings,omitempty"`
}

// UpdateCampaignRequest changes a draft campaign. Nil fields keep their value.
type UpdateCampaignRequest struct {
	UUID               string     `json:"-"`
	CustomerID         uint       `json:"-"`
	Name               *string    `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	SubjectTemplate    *string    `json:"subject_template,omitempty" validate:"omitempty,min=1"`
	BodyTemplate       *string    `json:"body_template,omitempty" validate:"omitempty,min=1"`
	AttachmentTemplate *string    `json:"attachment_template,omitempty"`
	AttachmentName     *string    `json:"attachment_name,omitempty" validate:"omitempty,max=255"`
	SendRate           *int       `json:"send_rate,omitempty" validate:"omitempty,min=1,max=600"`
	ScheduleMode       *string    `json:"schedule_mode,omitempty" validate:"omitempty,oneof=immediate fixed-time per-recipient-date"`
	ScheduledAt        *time.Time `json:"scheduled_at,omitempty"`
	DateColumn         *string    `json:"date_column,omitempty" validate:"omitempty,max=255"`
	DefaultSendTime    *string    `json:"default_send_time,omitempty" validate:"omitempty,max=8"`
}

// UpdateCampaignResponse represents the response to update an existing campaign
type UpdateCampaignResponse struct {
	Message          string      `json:"message"`
	Campaign         CampaignDTO `json:"campaign"`
	UnknownVariables []string    `json:"unknown_variables"`
}

// GetCampaignRequest identifies one campaign of the caller
type GetCampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// CampaignProgressDTO is the polling view of a campaign
type CampaignProgressDTO struct {
	Total   int     `json:"total"`
	Sent    int     `json:"sent"`
	Failed  int     `json:"failed"`
	Opened  int     `json:"opened"`
	Pending int     `json:"pending"`
	Percent float64 `json:"percent"`
}

// CampaignDTO represents a campaign in responses
type CampaignDTO struct {
	UUID               string              `json:"uuid"`
	Name               string              `json:"name"`
	Status             string              `json:"status"`
	SubjectTemplate    string              `json:"subject_template"`
	BodyTemplate       string              `json:"body_template"`
	AttachmentTemplate *string             `json:"attachment_template,omitempty"`
	AttachmentName     *string             `json:"attachment_name,omitempty"`
	SendRate           int                 `json:"send_rate"`
	ScheduleMode       string              `json:"schedule_mode"`
	ScheduledAt        *time.Time          `json:"scheduled_at,omitempty"`
	DateColumn         *string             `json:"date_column,omitempty"`
	DefaultSendTime    *string             `json:"default_send_time,omitempty"`
	VariableKeys       []string            `json:"variable_keys"`
	Progress           CampaignProgressDTO `json:"progress"`
	ActualCreditsUsed  int                 `json:"actual_credits_used"`
	FailureReason      *string             `json:"failure_reason,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          *time.Time          `json:"updated_at,omitempty"`
	StartedAt          *time.Time          `json:"started_at,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
}

// ListCampaignsRequest represents a paginated listing of the caller's campaigns
type ListCampaignsRequest struct {
	CustomerID uint   `json:"-"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Status     string `json:"status,omitempty"`
	OrderBy    string `json:"order_by,omitempty"`
}

// PaginationInfo represents pagination metadata
type PaginationInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// ListCampaignsResponse represents a paginated list of campaigns
type ListCampaignsResponse struct {
	Message    string         `json:"message"`
	Items      []CampaignDTO  `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// StartCampaignRequest asks to start sending a campaign
type StartCampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// StartCampaignResponse reports the status the campaign moved to
type StartCampaignResponse struct {
	Message     string     `json:"message"`
	UUID        string     `json:"uuid"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// PreviewCampaignRequest renders the templates for one recipient
type PreviewCampaignRequest struct {
	UUID          string  `json:"-"`
	CustomerID    uint    `json:"-"`
	RecipientUUID *string `json:"recipient_uuid,omitempty" validate:"omitempty,uuid"`
}

// PreviewCampaignResponse is the rendered message of one recipient
type PreviewCampaignResponse struct {
	RecipientUUID    string   `json:"recipient_uuid"`
	Email            string   `json:"email"`
	Subject          string   `json:"subject"`
	Body             string   `json:"body"`
	Attachment       *string  `json:"attachment,omitempty"`
	AttachmentName   string   `json:"attachment_name,omitempty"`
	UnknownVariables []string `json:"unknown_variables"`
}

// ListRecipientsRequest represents a paginated listing of one campaign's recipients
type ListRecipientsRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Status     string `json:"status,omitempty"`
}

// RecipientDTO represents a recipient in responses
type RecipientDTO struct {
	UUID         string            `json:"uuid"`
	Email        string            `json:"email"`
	Name         *string           `json:"name,omitempty"`
	Status       string            `json:"status"`
	CustomData   models.CustomData `json:"custom_data"`
	ScheduledAt  *time.Time        `json:"scheduled_at,omitempty"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	OpenedAt     *time.Time        `json:"opened_at,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
}

// ListRecipientsResponse represents a paginated list of recipients
type ListRecipientsResponse struct {
	Message    string         `json:"message"`
	Items      []RecipientDTO `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// ExportRecipientsResponse carries the generated workbook
type ExportRecipientsResponse struct {
	FileName string
	Content  []byte
}
