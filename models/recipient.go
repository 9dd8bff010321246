package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"gorm.io/gorm"
)

// RecipientStatus is the delivery outcome of one recipient
type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "pending"
	RecipientStatusSent    RecipientStatus = "sent"
	RecipientStatusFailed  RecipientStatus = "failed"
)

// Valid checks if the status is valid
func (s RecipientStatus) Valid() bool {
	switch s {
	case RecipientStatusPending, RecipientStatusSent, RecipientStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RecipientStatus
func (s *RecipientStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RecipientStatus(v)
	case []byte:
		*s = RecipientStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RecipientStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RecipientStatus
func (s RecipientStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RecipientStatus: %s", s)
	}
	return string(s), nil
}

// Recipient is one addressee of a campaign together with its substitution data
type Recipient struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_email_recipients_uuid" json:"uuid"`
	CampaignID   uint            `gorm:"not null;index:idx_email_recipients_campaign_status,priority:1" json:"campaign_id"`
	Position     int             `gorm:"not null;default:0" json:"position"`
	Email        string          `gorm:"size:320;not null" json:"email"`
	Name         *string         `gorm:"size:255" json:"name,omitempty"`
	CustomData   CustomData      `gorm:"type:json;not null" json:"custom_data"`
	Status       RecipientStatus `gorm:"type:email_recipient_status;not null;default:'pending';index:idx_email_recipients_campaign_status,priority:2" json:"status"`
	ScheduledAt  *time.Time      `json:"scheduled_at,omitempty"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
	OpenedAt     *time.Time      `json:"opened_at,omitempty"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for the model
func (Recipient) TableName() string {
	return "email_recipients"
}

// BeforeCreate is called before creating a new record
func (r *Recipient) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RecipientStatusPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// IsTerminal reports whether the recipient has already been attempted
func (r *Recipient) IsTerminal() bool {
	return r.Status == RecipientStatusSent || r.Status == RecipientStatusFailed
}

// DisplayName returns the name or an empty string
func (r *Recipient) DisplayName() string {
	return utils.Deref(r.Name)
}

// RecipientFilter represents filter criteria for recipients
type RecipientFilter struct {
	ID         *uint            `json:"id,omitempty"`
	UUID       *uuid.UUID       `json:"uuid,omitempty"`
	CampaignID *uint            `json:"campaign_id,omitempty"`
	Status     *RecipientStatus `json:"status,omitempty"`
	Email      *string          `json:"email,omitempty"`
	Opened     *bool            `json:"opened,omitempty"`
}
