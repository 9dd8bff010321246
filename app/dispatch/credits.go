package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/sirupsen/logrus"
)

// CreditAccountant debits spend per sent email. Debits for one customer are
// serialized in process; the wallet row lock covers other processes.
type CreditAccountant struct {
	wallets       repository.WalletRepository
	logger        logrus.FieldLogger
	createMissing bool
	initial       uint64

	locks sync.Map // customer id -> *sync.Mutex
}

// NewCreditAccountant creates a credit accountant. With createMissing a customer
// without a wallet gets an empty one on first debit, so the debit trail is kept.
func NewCreditAccountant(wallets repository.WalletRepository, logger logrus.FieldLogger, createMissing bool) *CreditAccountant {
	return &CreditAccountant{
		wallets:       wallets,
		logger:        logger,
		createMissing: createMissing,
	}
}

// WithInitialCredits sets the opening balance of wallets created on first debit
func (a *CreditAccountant) WithInitialCredits(amount uint64) *CreditAccountant {
	a.initial = amount
	return a
}

func (a *CreditAccountant) lockFor(customerID uint) *sync.Mutex {
	mu, _ := a.locks.LoadOrStore(customerID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Debit subtracts amount from the customer's balance, clamped at zero, and returns the new balance
func (a *CreditAccountant) Debit(ctx context.Context, customerID uint, amount uint64, campaignID *uint) (uint64, error) {
	mu := a.lockFor(customerID)
	mu.Lock()
	defer mu.Unlock()

	snapshot, err := a.wallets.Debit(ctx, customerID, amount, campaignID)
	if errors.Is(err, repository.ErrWalletNotFound) && a.createMissing {
		if err = a.wallets.SaveWithInitialSnapshot(ctx, &models.Wallet{CustomerID: customerID}, a.initial); err != nil {
			return 0, err
		}
		snapshot, err = a.wallets.Debit(ctx, customerID, amount, campaignID)
	}
	if err != nil {
		return 0, err
	}

	return snapshot.CreditBalance, nil
}

// Charge is the best-effort form used after a send: failures are logged and counted, never returned
func (a *CreditAccountant) Charge(ctx context.Context, customerID uint, amount uint64, campaignID uint) {
	balance, err := a.Debit(ctx, customerID, amount, &campaignID)
	log := a.logger.WithFields(logrus.Fields{
		"customer_id": customerID,
		"campaign_id": campaignID,
		"amount":      amount,
	})
	if err != nil {
		creditDebitErrorsTotal.Inc()
		log.WithError(err).Warn("credit debit failed")
		return
	}
	log.WithField("balance", balance).Debug("credit debited")
}
