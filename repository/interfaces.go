// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/matbaogit/WFAHub-sub000/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

const batchSize = 100

var (
	ErrWalletNotFound = errors.New("wallet not found")
)

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for email campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	ByCustomerID(ctx context.Context, customerID uint, limit, offset int) ([]*models.Campaign, error)
	ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	CreateWithRecipients(ctx context.Context, campaign *models.Campaign, recipients []*models.Recipient) error
	Update(ctx context.Context, campaign *models.Campaign) error
	// TransitionStatus moves the campaign to `to` only if its current status is one of `from`.
	// It reports whether the row was changed.
	TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, fields map[string]any) (bool, error)
	// Finalize moves a sending campaign to a terminal status and reconciles credits with sent_count.
	Finalize(ctx context.Context, id uint, status models.CampaignStatus, completedAt time.Time, reason *string) error
}

// RecipientRepository defines operations for campaign recipients
type RecipientRepository interface {
	Repository[models.Recipient, models.RecipientFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Recipient, error)
	ListPending(ctx context.Context, campaignID uint, orderByScheduled bool) ([]*models.Recipient, error)
	FirstPending(ctx context.Context, campaignID uint) (*models.Recipient, error)
	ListByCampaign(ctx context.Context, campaignID uint) ([]*models.Recipient, error)
	CountByStatus(ctx context.Context, campaignID uint) (map[models.RecipientStatus]int64, error)
	SetScheduledAt(ctx context.Context, id uint, at *time.Time) error
	// MarkSent, MarkFailed and MarkOpened update the recipient and the matching
	// campaign counter in one transaction. They report false when the recipient
	// was already in the target state.
	MarkSent(ctx context.Context, recipient *models.Recipient, sentAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, recipient *models.Recipient, message string) (bool, error)
	MarkOpened(ctx context.Context, recipient *models.Recipient, openedAt time.Time) (bool, error)
}

// WalletRepository defines operations for credit wallets and their balance snapshots
type WalletRepository interface {
	Repository[models.Wallet, models.WalletFilter]
	ByCustomerID(ctx context.Context, customerID uint) (*models.Wallet, error)
	SaveWithInitialSnapshot(ctx context.Context, wallet *models.Wallet, credits uint64) error
	GetCurrentBalance(ctx context.Context, walletID uint) (*models.BalanceSnapshot, error)
	GetBalanceHistory(ctx context.Context, walletID uint, limit, offset int) ([]*models.BalanceSnapshot, error)
	// Debit subtracts amount from the customer's balance, clamped at zero, under a row lock on the wallet.
	Debit(ctx context.Context, customerID uint, amount uint64, campaignID *uint) (*models.BalanceSnapshot, error)
}

// AuditLogRepository defines operations for the audit trail
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.AuditLog, error)
}

// SMTPSettingRepository reads per-customer mail accounts
type SMTPSettingRepository interface {
	ByCustomerID(ctx context.Context, customerID uint) (*models.SMTPSetting, error)
	Save(ctx context.Context, setting *models.SMTPSetting) error
}
