package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBalance(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeWalletRepo{
		wallets:   map[uint]*models.Wallet{ownerID: {ID: 3, CustomerID: ownerID}},
		snapshots: map[uint]*models.BalanceSnapshot{3: {WalletID: 3, CustomerID: ownerID, CreditBalance: 42, CreatedAt: at}},
	}
	flow := NewCreditFlow(repo)

	resp, err := flow.GetBalance(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), resp.Balance)
	require.NotNil(t, resp.UpdatedAt)
	assert.Equal(t, at, *resp.UpdatedAt)

	resp, err = flow.GetBalance(context.Background(), strangerID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), resp.Balance)
	assert.Nil(t, resp.UpdatedAt)
}
