package testing

import (
	"fmt"

	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCampaign inserts a draft campaign with n recipients named r1..rn
func (tf *TestFixtures) CreateTestCampaign(customerID uint, n int) (*models.Campaign, []*models.Recipient, error) {
	campaign := &models.Campaign{
		CustomerID:      customerID,
		Name:            "Test campaign",
		SubjectTemplate: "Hello {name}",
		BodyTemplate:    "<p>Dear {name}, your code is {code}</p>",
		SendRate:        600,
		ScheduleMode:    models.ScheduleModeImmediate,
		VariableKeys:    []string{"email", "name", "code"},
		TotalRecipients: n,
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	recipients := make([]*models.Recipient, 0, n)
	for i := 1; i <= n; i++ {
		data := models.NewCustomData()
		data.Set("email", fmt.Sprintf("r%d@example.com", i))
		data.Set("name", fmt.Sprintf("R%d", i))
		data.Set("code", fmt.Sprintf("C-%03d", i))
		recipients = append(recipients, &models.Recipient{
			CampaignID: campaign.ID,
			Position:   i - 1,
			Email:      fmt.Sprintf("r%d@example.com", i),
			Name:       utils.ToPtr(fmt.Sprintf("R%d", i)),
			CustomData: data,
		})
	}
	if n > 0 {
		if err := tf.DB.DB.Create(&recipients).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to create recipients: %w", err)
		}
	}

	return campaign, recipients, nil
}

// CreateTestWallet creates a wallet holding the given credits
func (tf *TestFixtures) CreateTestWallet(customerID uint, credits uint64) (*models.Wallet, error) {
	wallet := &models.Wallet{CustomerID: customerID}
	if err := tf.DB.DB.Create(wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	snapshot := &models.BalanceSnapshot{
		WalletID:      wallet.ID,
		CustomerID:    customerID,
		CreditBalance: credits,
		Delta:         int64(credits),
		Reason:        models.BalanceReasonTopUp,
	}
	if err := tf.DB.DB.Create(snapshot).Error; err != nil {
		return nil, fmt.Errorf("failed to create balance snapshot: %w", err)
	}
	return wallet, nil
}
