package businessflow

import (
	"context"

	"github.com/matbaogit/WFAHub-sub000/app/dto"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/matbaogit/WFAHub-sub000/utils"
)

// CreditFlow reads credit balances
type CreditFlow interface {
	GetBalance(ctx context.Context, customerID uint) (*dto.CreditBalanceResponse, error)
}

// CreditFlowImpl implements the credit flow
type CreditFlowImpl struct {
	walletRepo repository.WalletRepository
}

// NewCreditFlow creates a new credit flow instance
func NewCreditFlow(walletRepo repository.WalletRepository) CreditFlow {
	return &CreditFlowImpl{walletRepo: walletRepo}
}

// GetBalance returns the newest snapshot's balance. A customer without a wallet has zero credits.
func (f *CreditFlowImpl) GetBalance(ctx context.Context, customerID uint) (*dto.CreditBalanceResponse, error) {
	resp := &dto.CreditBalanceResponse{CustomerID: customerID}

	wallet, err := f.walletRepo.ByCustomerID(ctx, customerID)
	if err != nil {
		return nil, NewBusinessError("GET_BALANCE_FAILED", "Failed to get wallet", err)
	}
	if wallet == nil {
		return resp, nil
	}

	snapshot, err := f.walletRepo.GetCurrentBalance(ctx, wallet.ID)
	if err != nil {
		return nil, NewBusinessError("GET_BALANCE_FAILED", "Failed to get current balance", err)
	}
	if snapshot != nil {
		resp.Balance = snapshot.CreditBalance
		resp.UpdatedAt = utils.ToPtr(snapshot.CreatedAt)
	}

	return resp, nil
}
