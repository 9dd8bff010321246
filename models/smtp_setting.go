package models

import (
	"time"

	"github.com/matbaogit/WFAHub-sub000/utils"
	"gorm.io/gorm"
)

// SMTPSetting is a customer's own outgoing mail account.
// Customers without a row send through the default account from configuration.
type SMTPSetting struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CustomerID uint       `gorm:"not null;uniqueIndex:uk_smtp_settings_customer_id" json:"customer_id"`
	Host       string     `gorm:"size:255;not null" json:"host"`
	Port       int        `gorm:"not null;default:587" json:"port"`
	Username   string     `gorm:"size:255" json:"username"`
	Password   string     `gorm:"size:512" json:"-"`
	FromEmail  string     `gorm:"size:320;not null" json:"from_email"`
	FromName   *string    `gorm:"size:255" json:"from_name,omitempty"`
	UseTLS     bool       `gorm:"not null;default:true" json:"use_tls"`
	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (SMTPSetting) TableName() string {
	return "smtp_settings"
}

// BeforeUpdate is called before updating a record
func (s *SMTPSetting) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	s.UpdatedAt = &now
	return nil
}
