package repository

import (
	"context"
	"fmt"

	"github.com/matbaogit/WFAHub-sub000/models"
	"gorm.io/gorm"
)

// SMTPSettingRepositoryImpl implements SMTPSettingRepository interface
type SMTPSettingRepositoryImpl struct {
	*BaseRepository[models.SMTPSetting, struct{}]
}

// NewSMTPSettingRepository creates a new SMTP setting repository
func NewSMTPSettingRepository(db *gorm.DB) SMTPSettingRepository {
	return &SMTPSettingRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SMTPSetting, struct{}](db),
	}
}

// ByCustomerID returns the active SMTP account of a customer, or nil when none is configured
func (r *SMTPSettingRepositoryImpl) ByCustomerID(ctx context.Context, customerID uint) (*models.SMTPSetting, error) {
	var setting models.SMTPSetting
	err := r.getDB(ctx).
		Where("customer_id = ? AND is_active = ?", customerID, true).
		First(&setting).Error
	if err != nil {
		if errNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load smtp setting of customer %d: %w", customerID, err)
	}
	return &setting, nil
}
