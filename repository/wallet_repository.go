package repository

import (
	"context"
	"fmt"

	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepositoryImpl implements WalletRepository interface
type WalletRepositoryImpl struct {
	*BaseRepository[models.Wallet, models.WalletFilter]
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &WalletRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Wallet, models.WalletFilter](db),
	}
}

// ByCustomerID retrieves the wallet of a customer
func (r *WalletRepositoryImpl) ByCustomerID(ctx context.Context, customerID uint) (*models.Wallet, error) {
	db := r.getDB(ctx)
	var wallet models.Wallet
	err := db.Where("customer_id = ?", customerID).First(&wallet).Error
	if err != nil {
		if errNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// SaveWithInitialSnapshot creates a wallet with its opening balance
func (r *WalletRepositoryImpl) SaveWithInitialSnapshot(ctx context.Context, wallet *models.Wallet, credits uint64) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	if err = db.Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	initialSnapshot := &models.BalanceSnapshot{
		WalletID:      wallet.ID,
		CustomerID:    wallet.CustomerID,
		CreditBalance: credits,
		Delta:         int64(credits),
		Reason:        models.BalanceReasonInitial,
		Description:   utils.ToPtr("Initial balance snapshot"),
	}

	if err = db.Create(initialSnapshot).Error; err != nil {
		return fmt.Errorf("failed to create initial snapshot: %w", err)
	}

	return nil
}

// GetCurrentBalance gets the newest balance snapshot of a wallet
func (r *WalletRepositoryImpl) GetCurrentBalance(ctx context.Context, walletID uint) (*models.BalanceSnapshot, error) {
	return r.latestSnapshot(r.getDB(ctx), walletID)
}

// GetBalanceHistory lists snapshots of a wallet, newest first
func (r *WalletRepositoryImpl) GetBalanceHistory(ctx context.Context, walletID uint, limit, offset int) ([]*models.BalanceSnapshot, error) {
	db := r.getDB(ctx)

	var snapshots []*models.BalanceSnapshot
	query := db.Where("wallet_id = ?", walletID).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to list balance history: %w", err)
	}
	return snapshots, nil
}

// Debit appends a snapshot with the clamped balance. The wallet row is locked
// for the duration of the transaction so concurrent debits for one customer serialize.
func (r *WalletRepositoryImpl) Debit(ctx context.Context, customerID uint, amount uint64, campaignID *uint) (*models.BalanceSnapshot, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	var wallet models.Wallet
	err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).
		First(&wallet).Error
	if err != nil {
		if errNotFound(err) {
			err = ErrWalletNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock wallet of customer %d: %w", customerID, err)
	}

	current, err := r.latestSnapshot(db, wallet.ID)
	if err != nil {
		return nil, err
	}
	var balance uint64
	if current != nil {
		balance = current.CreditBalance
	}

	newBalance, delta := models.ClampedDebit(balance, amount)
	snapshot := &models.BalanceSnapshot{
		WalletID:      wallet.ID,
		CustomerID:    customerID,
		CreditBalance: newBalance,
		Delta:         delta,
		Reason:        models.BalanceReasonEmailDebit,
		CampaignID:    campaignID,
	}
	if err = db.Create(snapshot).Error; err != nil {
		return nil, fmt.Errorf("failed to append balance snapshot: %w", err)
	}

	return snapshot, nil
}

func (r *WalletRepositoryImpl) latestSnapshot(db *gorm.DB, walletID uint) (*models.BalanceSnapshot, error) {
	var snapshot models.BalanceSnapshot
	err := db.Where("wallet_id = ?", walletID).
		Order("created_at DESC, id DESC").
		First(&snapshot).Error
	if err != nil {
		if errNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read balance of wallet %d: %w", walletID, err)
	}
	return &snapshot, nil
}

// ByFilter retrieves wallets based on filter criteria
func (r *WalletRepositoryImpl) ByFilter(ctx context.Context, filter models.WalletFilter, orderBy string, limit, offset int) ([]*models.Wallet, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Wallet{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var wallets []*models.Wallet
	if err := query.Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}

// Count returns the number of wallets matching the filter
func (r *WalletRepositoryImpl) Count(ctx context.Context, filter models.WalletFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Wallet{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if a wallet exists with the given filter
func (r *WalletRepositoryImpl) Exists(ctx context.Context, filter models.WalletFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *WalletRepositoryImpl) applyFilter(query *gorm.DB, filter models.WalletFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	return query
}
