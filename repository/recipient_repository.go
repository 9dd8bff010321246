package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"gorm.io/gorm"
)

// RecipientRepositoryImpl implements the RecipientRepository interface
type RecipientRepositoryImpl struct {
	*BaseRepository[models.Recipient, models.RecipientFilter]
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(db *gorm.DB) RecipientRepository {
	return &RecipientRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Recipient, models.RecipientFilter](db),
	}
}

// ByUUID retrieves a recipient by UUID
func (r *RecipientRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Recipient, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	recipients, err := r.ByFilter(ctx, models.RecipientFilter{UUID: &parsedUUID}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, nil
	}

	return recipients[0], nil
}

// ListPending returns the pending recipients of a campaign in dispatch order.
// With orderByScheduled the earliest eligible time comes first and unscheduled rows lead.
func (r *RecipientRepositoryImpl) ListPending(ctx context.Context, campaignID uint, orderByScheduled bool) ([]*models.Recipient, error) {
	status := models.RecipientStatusPending
	filter := models.RecipientFilter{CampaignID: &campaignID, Status: &status}

	orderBy := "position ASC, id ASC"
	if orderByScheduled {
		orderBy = "scheduled_at ASC NULLS FIRST, position ASC, id ASC"
	}

	return r.ByFilter(ctx, filter, orderBy, 0, 0)
}

// FirstPending returns the first pending recipient in insertion order
func (r *RecipientRepositoryImpl) FirstPending(ctx context.Context, campaignID uint) (*models.Recipient, error) {
	status := models.RecipientStatusPending
	filter := models.RecipientFilter{CampaignID: &campaignID, Status: &status}

	recipients, err := r.ByFilter(ctx, filter, "position ASC, id ASC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, nil
	}

	return recipients[0], nil
}

// ListByCampaign returns every recipient of a campaign in insertion order
func (r *RecipientRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.Recipient, error) {
	return r.ByFilter(ctx, models.RecipientFilter{CampaignID: &campaignID}, "position ASC, id ASC", 0, 0)
}

// CountByStatus groups the recipients of a campaign by status
func (r *RecipientRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint) (map[models.RecipientStatus]int64, error) {
	type row struct {
		Status models.RecipientStatus
		Total  int64
	}

	var rows []row
	err := r.getDB(ctx).Model(&models.Recipient{}).
		Select("status, COUNT(*) AS total").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count recipients of campaign %d: %w", campaignID, err)
	}

	out := make(map[models.RecipientStatus]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.Total
	}
	return out, nil
}

// SetScheduledAt stores the resolved eligible instant of a recipient. Nil clears it.
func (r *RecipientRepositoryImpl) SetScheduledAt(ctx context.Context, id uint, at *time.Time) error {
	err := r.getDB(ctx).Model(&models.Recipient{}).
		Where("id = ?", id).
		Update("scheduled_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to set scheduled_at of recipient %d: %w", id, err)
	}
	return nil
}

// MarkSent moves a pending recipient to sent and increments the campaign sent counter
func (r *RecipientRepositoryImpl) MarkSent(ctx context.Context, recipient *models.Recipient, sentAt time.Time) (bool, error) {
	changed, err := r.transition(ctx, recipient,
		"status = ?", []any{models.RecipientStatusPending},
		map[string]any{"status": models.RecipientStatusSent, "sent_at": sentAt},
		"sent_count",
	)
	if err != nil {
		return false, err
	}
	if changed {
		recipient.Status = models.RecipientStatusSent
		recipient.SentAt = &sentAt
	}
	return changed, nil
}

// MarkFailed moves a pending recipient to failed with the transport's cause and increments the campaign failed counter
func (r *RecipientRepositoryImpl) MarkFailed(ctx context.Context, recipient *models.Recipient, message string) (bool, error) {
	changed, err := r.transition(ctx, recipient,
		"status = ?", []any{models.RecipientStatusPending},
		map[string]any{"status": models.RecipientStatusFailed, "error_message": message},
		"failed_count",
	)
	if err != nil {
		return false, err
	}
	if changed {
		recipient.Status = models.RecipientStatusFailed
		recipient.ErrorMessage = &message
	}
	return changed, nil
}

// MarkOpened records the first open of a recipient and increments the campaign opened counter.
// Later opens change nothing.
func (r *RecipientRepositoryImpl) MarkOpened(ctx context.Context, recipient *models.Recipient, openedAt time.Time) (bool, error) {
	changed, err := r.transition(ctx, recipient,
		"opened_at IS NULL", nil,
		map[string]any{"opened_at": openedAt},
		"opened_count",
	)
	if err != nil {
		return false, err
	}
	if changed {
		recipient.OpenedAt = &openedAt
	}
	return changed, nil
}

// transition applies updates to the recipient when guard holds and bumps counter on its campaign
func (r *RecipientRepositoryImpl) transition(ctx context.Context, recipient *models.Recipient, guard string, guardArgs []any, updates map[string]any, counter string) (bool, error) {
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

	res := db.Model(&models.Recipient{}).
		Where("id = ?", recipient.ID).
		Where(guard, guardArgs...).
		Updates(updates)
	if err = res.Error; err != nil {
		return false, fmt.Errorf("failed to update recipient %d: %w", recipient.ID, err)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	err = db.Model(&models.Campaign{}).
		Where("id = ?", recipient.CampaignID).
		UpdateColumn(counter, gorm.Expr(counter+" + 1")).Error
	if err != nil {
		return false, fmt.Errorf("failed to increment %s of campaign %d: %w", counter, recipient.CampaignID, err)
	}

	return true, nil
}

// ByFilter retrieves recipients based on filter criteria
func (r *RecipientRepositoryImpl) ByFilter(ctx context.Context, filter models.RecipientFilter, orderBy string, limit, offset int) ([]*models.Recipient, error) {
	db := r.getDB(ctx)

	var recipients []*models.Recipient
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

	if err := query.Find(&recipients).Error; err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}

	return recipients, nil
}

// Count returns the number of recipients matching the filter
func (r *RecipientRepositoryImpl) Count(ctx context.Context, filter models.RecipientFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Recipient{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any recipient matching the filter exists
func (r *RecipientRepositoryImpl) Exists(ctx context.Context, filter models.RecipientFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RecipientRepositoryImpl) applyFilter(db *gorm.DB, filter models.RecipientFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Email != nil {
		db = db.Where("email = ?", *filter.Email)
	}
	if filter.Opened != nil {
		if *filter.Opened {
			db = db.Where("opened_at IS NOT NULL")
		} else {
			db = db.Where("opened_at IS NULL")
		}
	}

	return db
}
