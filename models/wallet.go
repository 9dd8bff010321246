package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"gorm.io/gorm"
)

// Wallet is a customer's credit account reference.
// The balance itself lives in the newest BalanceSnapshot.
type Wallet struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CustomerID uint      `gorm:"not null;uniqueIndex" json:"customer_id"`

	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	BalanceSnapshots []BalanceSnapshot `gorm:"foreignKey:WalletID" json:"balance_snapshots,omitempty"`
}

// TableName returns the table name for the model
func (Wallet) TableName() string {
	return "wallets"
}

// WalletFilter represents filter criteria for wallet queries
type WalletFilter struct {
	ID         *uint      `json:"id,omitempty"`
	UUID       *uuid.UUID `json:"uuid,omitempty"`
	CustomerID *uint      `json:"customer_id,omitempty"`
}

// BeforeCreate ensures UUID is set
func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.UUID == uuid.Nil {
		w.UUID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = utils.UTCNow()
	}
	return nil
}
