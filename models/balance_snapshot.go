package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"gorm.io/gorm"
)

// Snapshot reasons
const (
	BalanceReasonInitial    = "initial"
	BalanceReasonTopUp      = "top_up"
	BalanceReasonEmailDebit = "email_debit"
)

// BalanceSnapshot is an immutable record of a wallet's credit balance at a point in time.
// Rows are only ever appended; the newest one is the current balance.
type BalanceSnapshot struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	WalletID   uint      `gorm:"not null;index:idx_balance_snapshots_wallet_created,priority:1" json:"wallet_id"`
	CustomerID uint      `gorm:"not null;index" json:"customer_id"`

	CreditBalance uint64 `gorm:"not null" json:"credit_balance"`
	// Delta is the signed change applied to the previous balance after clamping.
	Delta int64 `gorm:"not null;default:0" json:"delta"`

	Reason      string  `gorm:"type:varchar(100);not null" json:"reason"`
	CampaignID  *uint   `gorm:"index" json:"campaign_id,omitempty"`
	Description *string `gorm:"type:text" json:"description,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_balance_snapshots_wallet_created,priority:2" json:"created_at"`
}

// TableName returns the table name for the model
func (BalanceSnapshot) TableName() string {
	return "balance_snapshots"
}

// BeforeCreate ensures UUID and creation time are set
func (bs *BalanceSnapshot) BeforeCreate(tx *gorm.DB) error {
	if bs.UUID == uuid.Nil {
		bs.UUID = uuid.New()
	}
	if bs.CreatedAt.IsZero() {
		bs.CreatedAt = utils.UTCNow()
	}
	return nil
}

// ClampedDebit subtracts amount from balance without going below zero and
// returns the new balance together with the signed delta actually applied.
func ClampedDebit(balance, amount uint64) (uint64, int64) {
	if amount >= balance {
		return 0, -int64(balance)
	}
	return balance - amount, -int64(amount)
}
