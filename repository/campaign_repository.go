package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID retrieves a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Campaign, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.CampaignFilter{UUID: &parsedUUID}
	campaigns, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(campaigns) == 0 {
		return nil, nil
	}

	return campaigns[0], nil
}

// ByCustomerID retrieves campaigns by customer ID with pagination
func (r *CampaignRepositoryImpl) ByCustomerID(ctx context.Context, customerID uint, limit, offset int) ([]*models.Campaign, error) {
	filter := models.CampaignFilter{CustomerID: &customerID}
	return r.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, offset)
}

// ListByStatus retrieves every campaign in the given status, oldest first
func (r *CampaignRepositoryImpl) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	filter := models.CampaignFilter{Status: &status}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// ListDueScheduled retrieves scheduled campaigns whose target time is not after now
func (r *CampaignRepositoryImpl) ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	status := models.CampaignStatusScheduled
	filter := models.CampaignFilter{
		Status:         &status,
		ScheduleBefore: &now,
	}
	return r.ByFilter(ctx, filter, "scheduled_at ASC, id ASC", 0, 0)
}

// CreateWithRecipients inserts the campaign and then its recipients in one transaction
func (r *CampaignRepositoryImpl) CreateWithRecipients(ctx context.Context, campaign *models.Campaign, recipients []*models.Recipient) error {
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

	campaign.TotalRecipients = len(recipients)
	err = db.Create(campaign).Error
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	if len(recipients) == 0 {
		return nil
	}

	for i, rec := range recipients {
		rec.CampaignID = campaign.ID
		rec.Position = i
	}

	err = db.CreateInBatches(recipients, batchSize).Error
	if err != nil {
		return fmt.Errorf("failed to create recipients: %w", err)
	}

	return nil
}

// Update saves the editable columns of a campaign
func (r *CampaignRepositoryImpl) Update(ctx context.Context, campaign *models.Campaign) error {
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

	now := utils.UTCNow()
	campaign.UpdatedAt = &now

	err = db.Model(campaign).
		Select(
			"name", "subject_template", "body_template", "attachment_template", "attachment_name",
			"send_rate", "schedule_mode", "scheduled_at", "date_column", "default_send_time",
			"updated_at",
		).
		Updates(campaign).Error
	if err != nil {
		return fmt.Errorf("failed to update campaign %d: %w", campaign.ID, err)
	}

	return nil
}

// TransitionStatus performs a compare-and-set on the campaign status
func (r *CampaignRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, fields map[string]any) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
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

	updates := map[string]any{
		"status":     to,
		"updated_at": utils.UTCNow(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := db.Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if err = res.Error; err != nil {
		return false, fmt.Errorf("failed to transition campaign %d to %s: %w", id, to, err)
	}

	return res.RowsAffected == 1, nil
}

// Finalize marks a sending campaign completed or failed and sets actual_credits_used to sent_count
func (r *CampaignRepositoryImpl) Finalize(ctx context.Context, id uint, status models.CampaignStatus, completedAt time.Time, reason *string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("cannot finalize campaign %d with non-terminal status %s", id, status)
	}

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

	err = db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", id, models.CampaignStatusSending).
		Updates(map[string]any{
			"status":              status,
			"completed_at":        completedAt,
			"failure_reason":      reason,
			"actual_credits_used": gorm.Expr("sent_count"),
			"updated_at":          utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finalize campaign %d: %w", id, err)
	}

	return nil
}

// ByFilter retrieves campaigns based on filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.Campaign
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	return campaigns, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any campaign matching the filter exists
func (r *CampaignRepositoryImpl) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.ScheduleMode != nil {
		db = db.Where("schedule_mode = ?", *filter.ScheduleMode)
	}
	if filter.Name != nil {
		db = db.Where("name ILIKE ?", "%"+*filter.Name+"%")
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}
	if filter.ScheduleBefore != nil {
		db = db.Where("scheduled_at <= ?", *filter.ScheduleBefore)
	}

	return db
}

// errNotFound is a convenience for callers that want a sentinel instead of (nil, nil)
func errNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
