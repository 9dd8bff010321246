package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"gorm.io/gorm"
)

// CampaignStatus represents the status of an email campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusCompleted, CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// ScheduleMode decides when recipients become eligible for delivery
type ScheduleMode string

const (
	ScheduleModeImmediate        ScheduleMode = "immediate"
	ScheduleModeFixedTime        ScheduleMode = "fixed-time"
	ScheduleModePerRecipientDate ScheduleMode = "per-recipient-date"
)

// Valid checks if the mode is valid
func (m ScheduleMode) Valid() bool {
	switch m {
	case ScheduleModeImmediate, ScheduleModeFixedTime, ScheduleModePerRecipientDate:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ScheduleMode
func (m *ScheduleMode) Scan(value any) error {
	if value == nil {
		*m = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*m = ScheduleMode(v)
	case []byte:
		*m = ScheduleMode(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ScheduleMode", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ScheduleMode
func (m ScheduleMode) Value() (driver.Value, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid ScheduleMode: %s", m)
	}
	return string(m), nil
}

// Campaign is a bulk email job: one set of templates and many recipients
type Campaign struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_email_campaigns_uuid" json:"uuid"`
	CustomerID uint           `gorm:"not null;index:idx_email_campaigns_customer_id" json:"customer_id"`
	Name       string         `gorm:"size:255;not null" json:"name"`
	Status     CampaignStatus `gorm:"type:email_campaign_status;not null;default:'draft';index:idx_email_campaigns_status" json:"status"`

	// Templates
	SubjectTemplate    string  `gorm:"type:text;not null" json:"subject_template"`
	BodyTemplate       string  `gorm:"type:text;not null" json:"body_template"`
	AttachmentTemplate *string `gorm:"type:text" json:"attachment_template,omitempty"`
	AttachmentName     *string `gorm:"size:255" json:"attachment_name,omitempty"`

	// Delivery
	SendRate        int            `gorm:"not null;default:60" json:"send_rate"`
	ScheduleMode    ScheduleMode   `gorm:"type:email_schedule_mode;not null;default:'immediate'" json:"schedule_mode"`
	ScheduledAt     *time.Time     `gorm:"index:idx_email_campaigns_scheduled_at" json:"scheduled_at,omitempty"`
	DateColumn      *string        `gorm:"size:255" json:"date_column,omitempty"`
	DefaultSendTime *string        `gorm:"size:8" json:"default_send_time,omitempty"`
	VariableKeys    pq.StringArray `gorm:"type:text[]" json:"variable_keys"`

	// Counters
	TotalRecipients   int `gorm:"not null;default:0" json:"total_recipients"`
	SentCount         int `gorm:"not null;default:0" json:"sent_count"`
	FailedCount       int `gorm:"not null;default:0" json:"failed_count"`
	OpenedCount       int `gorm:"not null;default:0" json:"opened_count"`
	ActualCreditsUsed int `gorm:"not null;default:0" json:"actual_credits_used"`

	FailureReason *string    `gorm:"type:text" json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_email_campaigns_created_at" json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "email_campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.ScheduleMode == "" {
		c.ScheduleMode = ScheduleModeImmediate
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// IsEditable reports whether templates and settings may still change
func (c *Campaign) IsEditable() bool {
	return c.Status == CampaignStatusDraft
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusScheduled ||
			newStatus == CampaignStatusSending
	case CampaignStatusScheduled:
		return newStatus == CampaignStatusSending
	case CampaignStatusSending:
		return newStatus == CampaignStatusCompleted ||
			newStatus == CampaignStatusFailed
	default:
		return false
	}
}

// DelayBetweenSends is the pause the dispatch loop keeps between two recipients
func (c *Campaign) DelayBetweenSends() time.Duration {
	if c.SendRate < utils.MinSendRate {
		return time.Minute
	}
	return time.Duration(60_000/c.SendRate) * time.Millisecond
}

// ProgressPercent is the share of recipients that reached a terminal status
func (c *Campaign) ProgressPercent() float64 {
	if c.TotalRecipients == 0 {
		return 0
	}
	return float64(c.SentCount+c.FailedCount) * 100 / float64(c.TotalRecipients)
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID             *uint           `json:"id,omitempty"`
	UUID           *uuid.UUID      `json:"uuid,omitempty"`
	CustomerID     *uint           `json:"customer_id,omitempty"`
	Status         *CampaignStatus `json:"status,omitempty"`
	ScheduleMode   *ScheduleMode   `json:"schedule_mode,omitempty"`
	Name           *string         `json:"name,omitempty"`
	CreatedAfter   *time.Time      `json:"created_after,omitempty"`
	CreatedBefore  *time.Time      `json:"created_before,omitempty"`
	ScheduleBefore *time.Time      `json:"schedule_before,omitempty"`
}
