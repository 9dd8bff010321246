// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/matbaogit/WFAHub-sub000/app/dispatch"
	"github.com/matbaogit/WFAHub-sub000/app/dto"
	"github.com/matbaogit/WFAHub-sub000/app/mailmerge"
	"github.com/matbaogit/WFAHub-sub000/app/services"
	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// CampaignFlow handles the campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.UpdateCampaignResponse, error)
	GetCampaign(ctx context.Context, req *dto.GetCampaignRequest) (*dto.CampaignDTO, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	StartSending(ctx context.Context, req *dto.StartCampaignRequest, metadata *ClientMetadata) (*dto.StartCampaignResponse, error)
	PreviewCampaign(ctx context.Context, req *dto.PreviewCampaignRequest) (*dto.PreviewCampaignResponse, error)
	ListRecipients(ctx context.Context, req *dto.ListRecipientsRequest) (*dto.ListRecipientsResponse, error)
	ExportRecipients(ctx context.Context, req *dto.GetCampaignRequest) (*dto.ExportRecipientsResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	recipientRepo repository.RecipientRepository
	auditRepo     repository.AuditLogRepository
	uploads       services.UploadCache
	dispatcher    CampaignDispatcher
	scheduler     *dispatch.Scheduler
	db            *gorm.DB
	logger        logrus.FieldLogger
	now           func() time.Time
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	recipientRepo repository.RecipientRepository,
	auditRepo repository.AuditLogRepository,
	uploads services.UploadCache,
	dispatcher CampaignDispatcher,
	scheduler *dispatch.Scheduler,
	db *gorm.DB,
	logger logrus.FieldLogger,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		auditRepo:     auditRepo,
		uploads:       uploads,
		dispatcher:    dispatcher,
		scheduler:     scheduler,
		db:            db,
		logger:        logger,
		now:           utils.UTCNow,
	}
}

// CreateCampaign applies the mapping to a cached upload and stores a draft campaign with its recipients
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	campaign := &models.Campaign{
		CustomerID:         req.CustomerID,
		Name:               strings.TrimSpace(req.Name),
		Status:             models.CampaignStatusDraft,
		SubjectTemplate:    req.SubjectTemplate,
		BodyTemplate:       req.BodyTemplate,
		AttachmentTemplate: blankToNil(req.AttachmentTemplate),
		AttachmentName:     blankToNil(req.AttachmentName),
		SendRate:           req.SendRate,
		ScheduleMode:       models.ScheduleMode(req.ScheduleMode),
		ScheduledAt:        req.ScheduledAt,
		DateColumn:         blankToNil(req.DateColumn),
		DefaultSendTime:    blankToNil(req.DefaultSendTime),
	}

	// Validate business rules
	if err := validateCampaign(campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", err)
	}

	upload, err := s.uploads.Get(ctx, req.CustomerID, req.UploadToken)
	if err != nil {
		if errors.Is(err, services.ErrUploadNotFound) {
			return nil, NewBusinessError("UPLOAD_EXPIRED", "Upload not found or expired", ErrUploadExpired)
		}
		return nil, NewBusinessError("UPLOAD_LOOKUP_FAILED", "Failed to read cached upload", err)
	}

	normalized, err := mailmerge.Normalize(upload.Table, mailmerge.FieldMapping(req.Mapping))
	if err != nil {
		switch {
		case errors.Is(err, mailmerge.ErrEmailMappingMissing):
			return nil, NewBusinessError("MAPPING_INVALID", "Email column mapping is required", ErrEmailMappingRequired)
		case errors.Is(err, mailmerge.ErrUnknownColumn):
			cause := ErrUnknownMappedColumn
			var colErr *mailmerge.UnknownColumnError
			if errors.As(err, &colErr) {
				cause = fmt.Errorf("%w: %s", ErrUnknownMappedColumn, colErr)
			}
			return nil, NewBusinessError("MAPPING_INVALID", "Invalid column mapping", cause)
		default:
			return nil, NewBusinessError("MAPPING_INVALID", "Failed to apply mapping", err)
		}
	}
	if len(normalized) == 0 {
		return nil, NewBusinessError("NO_RECIPIENTS", "No row of the upload has an email address", ErrNoRecipients)
	}

	campaign.VariableKeys = variableKeys(upload.Table.Columns, req.Mapping)

	recipients := make([]*models.Recipient, 0, len(normalized))
	for i, n := range normalized {
		recipients = append(recipients, &models.Recipient{
			Position:   i,
			Email:      n.Email,
			Name:       n.Name,
			CustomData: n.CustomData,
			Status:     models.RecipientStatusPending,
		})
	}
	unresolved := s.resolveSchedules(campaign, recipients)

	if err := s.campaignRepo.CreateWithRecipients(ctx, campaign, recipients); err != nil {
		s.logger.WithError(err).WithField("customer_id", req.CustomerID).Error("campaign creation failed")
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	if err := s.uploads.Delete(ctx, upload.Token); err != nil {
		s.logger.WithError(err).Warn("failed to drop consumed upload")
	}

	msg := fmt.Sprintf("Campaign created successfully: %s", campaign.UUID.String())
	_ = createAuditLog(ctx, s.auditRepo, auditEntry{
		customerID: campaign.CustomerID,
		campaignID: &campaign.ID,
		action:     models.AuditActionCampaignCreated,
		message:    msg,
		success:    true,
	}, metadata)
	_ = createAuditLog(ctx, s.auditRepo, auditEntry{
		customerID: campaign.CustomerID,
		campaignID: &campaign.ID,
		action:     models.AuditActionRecipientsImported,
		message:    fmt.Sprintf("Imported %d recipients from %s", len(recipients), upload.FileName),
		success:    true,
		details: map[string]any{
			"file_name":    upload.FileName,
			"rows":         len(upload.Table.Rows),
			"recipients":   len(recipients),
			"skipped_rows": len(upload.Table.Rows) - len(recipients),
		},
	}, metadata)

	var warnings []string
	if skipped := len(upload.Table.Rows) - len(recipients); skipped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows without an email address were skipped", skipped))
	}
	warnings = append(warnings, scheduleWarnings(campaign, unresolved, len(recipients))...)

	return &dto.CreateCampaignResponse{
		Message:          "Campaign created successfully",
		Campaign:         ToCampaignDTO(campaign),
		UnknownVariables: unknownVariables(campaign),
		Warnings:         warnings,
	}, nil
}

// UpdateCampaign changes templates, send rate or schedule of a draft campaign
func (s *CampaignFlowImpl) UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.UpdateCampaignResponse, error) {
	if !hasUpdate(req) {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_VALIDATION_FAILED", "Campaign update validation failed", ErrCampaignUpdateRequired)
	}

	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	if !campaign.IsEditable() {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_NOT_ALLOWED", "Campaign cannot be updated in current status", ErrCampaignNotEditable)
	}

	before := scheduleOf(campaign)
	applyUpdate(campaign, req)

	if err := validateCampaign(campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_VALIDATION_FAILED", "Campaign update validation failed", err)
	}

	rescheduled := 0
	err = s.inTransaction(ctx, func(txCtx context.Context) error {
		if err := s.campaignRepo.Update(txCtx, campaign); err != nil {
			return err
		}
		if before == scheduleOf(campaign) {
			return nil
		}
		var err error
		rescheduled, err = s.reschedule(txCtx, campaign)
		return err
	})
	if err != nil {
		errMsg := fmt.Sprintf("Campaign update failed: %s", err.Error())
		_ = createAuditLog(ctx, s.auditRepo, auditEntry{
			customerID: campaign.CustomerID,
			campaignID: &campaign.ID,
			action:     models.AuditActionCampaignUpdateFailed,
			message:    errMsg,
			errMsg:     &errMsg,
		}, metadata)
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Campaign update failed", err)
	}

	_ = createAuditLog(ctx, s.auditRepo, auditEntry{
		customerID: campaign.CustomerID,
		campaignID: &campaign.ID,
		action:     models.AuditActionCampaignUpdated,
		message:    fmt.Sprintf("Campaign updated successfully: %s", campaign.UUID.String()),
		success:    true,
		details:    map[string]any{"rescheduled_recipients": rescheduled},
	}, metadata)

	return &dto.UpdateCampaignResponse{
		Message:          "Campaign updated successfully",
		Campaign:         ToCampaignDTO(campaign),
		UnknownVariables: unknownVariables(campaign),
	}, nil
}

// GetCampaign returns the campaign with its live counters
func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, req *dto.GetCampaignRequest) (*dto.CampaignDTO, error) {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	resp := ToCampaignDTO(campaign)
	return &resp, nil
}

// ListCampaigns lists the caller's campaigns, newest first unless asked otherwise
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	var err error
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_CAMPAIGNS_FAILED", "Failed to list campaigns", err)
		}
	}()

	page, limit, offset := normalizePage(req.Page, req.Limit)

	filter := models.CampaignFilter{CustomerID: &req.CustomerID}
	if req.Status != "" {
		status := models.CampaignStatus(req.Status)
		if status.Valid() {
			filter.Status = &status
		}
	}

	orderBy := "created_at DESC"
	if req.OrderBy == "oldest" {
		orderBy = "created_at ASC"
	}

	total, err := s.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.campaignRepo.ByFilter(ctx, filter, orderBy, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]dto.CampaignDTO, 0, len(rows))
	for _, c := range rows {
		items = append(items, ToCampaignDTO(c))
	}

	return &dto.ListCampaignsResponse{
		Message: "Campaigns retrieved successfully",
		Items:   items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages(total, limit),
		},
	}, nil
}

// StartSending moves a draft or scheduled campaign to sending and hands it to the dispatcher.
// A fixed-time draft whose time is still ahead is only scheduled.
func (s *CampaignFlowImpl) StartSending(ctx context.Context, req *dto.StartCampaignRequest, metadata *ClientMetadata) (*dto.StartCampaignResponse, error) {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	if campaign.TotalRecipients == 0 {
		return nil, NewBusinessError("NO_RECIPIENTS", "Campaign has no recipients", ErrNoRecipients)
	}

	now := s.now()

	if !campaign.CanTransitionTo(models.CampaignStatusSending) {
		return nil, NewBusinessError("CAMPAIGN_NOT_STARTABLE", "Campaign is already sending or finished", ErrCampaignNotStartable)
	}

	// A fixed-time draft whose target is still ahead waits for the scheduler
	if campaign.Status == models.CampaignStatusDraft && campaign.ScheduleMode == models.ScheduleModeFixedTime &&
		campaign.ScheduledAt != nil && campaign.ScheduledAt.After(now) {
		return s.schedule(ctx, campaign, metadata)
	}

	ok, err := s.campaignRepo.TransitionStatus(ctx, campaign.ID,
		[]models.CampaignStatus{campaign.Status},
		models.CampaignStatusSending,
		map[string]any{"started_at": now},
	)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_START_FAILED", "Failed to start campaign", err)
	}
	if !ok {
		return nil, NewBusinessError("CAMPAIGN_NOT_STARTABLE", "Campaign is already sending or finished", ErrCampaignNotStartable)
	}

	if err := s.dispatcher.Enqueue(ctx, campaign.ID); err != nil {
		reason := fmt.Sprintf("%s: %v", ErrDispatchUnavailable.Error(), err)
		if ferr := s.campaignRepo.Finalize(context.WithoutCancel(ctx), campaign.ID, models.CampaignStatusFailed, s.now(), &reason); ferr != nil {
			s.logger.WithError(ferr).WithField("campaign_id", campaign.ID).Error("failed to fail campaign after hand-off error")
		}
		_ = createAuditLog(ctx, s.auditRepo, auditEntry{
			customerID: campaign.CustomerID,
			campaignID: &campaign.ID,
			action:     models.AuditActionCampaignStartFailed,
			message:    "Campaign could not be handed to the dispatcher",
			errMsg:     &reason,
		}, metadata)
		return nil, NewBusinessError("DISPATCH_UNAVAILABLE", "Campaign could not be started", fmt.Errorf("%w: %v", ErrDispatchUnavailable, err))
	}

	_ = createAuditLog(ctx, s.auditRepo, auditEntry{
		customerID: campaign.CustomerID,
		campaignID: &campaign.ID,
		action:     models.AuditActionDispatchStarted,
		message:    fmt.Sprintf("Campaign sending started: %s", campaign.UUID.String()),
		success:    true,
		details:    map[string]any{"total": campaign.TotalRecipients, "trigger": "manual"},
	}, metadata)

	services.LogEvent(s.logger, models.AuditActionDispatchStarted, map[string]any{
		"campaign_id": campaign.ID,
		"customer_id": campaign.CustomerID,
		"total":       campaign.TotalRecipients,
		"trigger":     "manual",
	})

	return &dto.StartCampaignResponse{
		Message: "Campaign sending started",
		UUID:    campaign.UUID.String(),
		Status:  string(models.CampaignStatusSending),
	}, nil
}

func (s *CampaignFlowImpl) schedule(ctx context.Context, campaign *models.Campaign, metadata *ClientMetadata) (*dto.StartCampaignResponse, error) {
	ok, err := s.campaignRepo.TransitionStatus(ctx, campaign.ID,
		[]models.CampaignStatus{models.CampaignStatusDraft},
		models.CampaignStatusScheduled,
		nil,
	)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_START_FAILED", "Failed to schedule campaign", err)
	}
	if !ok {
		return nil, NewBusinessError("CAMPAIGN_NOT_STARTABLE", "Campaign is already sending or finished", ErrCampaignNotStartable)
	}

	_ = createAuditLog(ctx, s.auditRepo, auditEntry{
		customerID: campaign.CustomerID,
		campaignID: &campaign.ID,
		action:     models.AuditActionCampaignScheduled,
		message:    fmt.Sprintf("Campaign scheduled for %s", campaign.ScheduledAt.UTC().Format(time.RFC3339)),
		success:    true,
	}, metadata)

	return &dto.StartCampaignResponse{
		Message:     "Campaign scheduled",
		UUID:        campaign.UUID.String(),
		Status:      string(models.CampaignStatusScheduled),
		ScheduledAt: campaign.ScheduledAt,
	}, nil
}

// PreviewCampaign renders the templates for one recipient, the first pending one by default
func (s *CampaignFlowImpl) PreviewCampaign(ctx context.Context, req *dto.PreviewCampaignRequest) (*dto.PreviewCampaignResponse, error) {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	recipient, err := s.previewRecipient(ctx, campaign, req.RecipientUUID)
	if err != nil {
		return nil, err
	}

	data := mailmerge.MergeData(recipient.CustomData, recipient.Email, recipient.Name)
	resp := &dto.PreviewCampaignResponse{
		RecipientUUID:    recipient.UUID.String(),
		Email:            recipient.Email,
		Subject:          mailmerge.Render(campaign.SubjectTemplate, data),
		Body:             mailmerge.Render(campaign.BodyTemplate, data),
		UnknownVariables: unknownVariables(campaign),
	}
	if campaign.AttachmentTemplate != nil {
		attachment := mailmerge.Render(*campaign.AttachmentTemplate, data)
		resp.Attachment = &attachment
		resp.AttachmentName = utils.Deref(campaign.AttachmentName)
		if resp.AttachmentName == "" {
			resp.AttachmentName = services.DefaultAttachmentName
		}
	}

	return resp, nil
}

func (s *CampaignFlowImpl) previewRecipient(ctx context.Context, campaign *models.Campaign, recipientUUID *string) (*models.Recipient, error) {
	notFound := NewBusinessError("RECIPIENT_NOT_FOUND", "Recipient not found", ErrRecipientNotFound)

	if recipientUUID != nil && *recipientUUID != "" {
		recipient, err := s.recipientRepo.ByUUID(ctx, *recipientUUID)
		if err != nil {
			return nil, NewBusinessError("RECIPIENT_LOOKUP_FAILED", "Failed to lookup recipient", err)
		}
		if recipient == nil || recipient.CampaignID != campaign.ID {
			return nil, notFound
		}
		return recipient, nil
	}

	recipient, err := s.recipientRepo.FirstPending(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LOOKUP_FAILED", "Failed to lookup recipient", err)
	}
	if recipient != nil {
		return recipient, nil
	}

	rows, err := s.recipientRepo.ByFilter(ctx, models.RecipientFilter{CampaignID: &campaign.ID}, "position ASC", 1, 0)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LOOKUP_FAILED", "Failed to lookup recipient", err)
	}
	if len(rows) == 0 {
		return nil, notFound
	}
	return rows[0], nil
}

// ListRecipients pages through a campaign's recipients in insertion order
func (s *CampaignFlowImpl) ListRecipients(ctx context.Context, req *dto.ListRecipientsRequest) (*dto.ListRecipientsResponse, error) {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	filter := models.RecipientFilter{CampaignID: &campaign.ID}
	if req.Status != "" {
		status := models.RecipientStatus(req.Status)
		if !status.Valid() {
			return nil, NewBusinessError("INVALID_STATUS_FILTER", "Invalid recipient status filter", ErrInvalidRecipientStatus)
		}
		filter.Status = &status
	}

	page, limit, offset := normalizePage(req.Page, req.Limit)

	total, err := s.recipientRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_RECIPIENTS_FAILED", "Failed to list recipients", err)
	}

	rows, err := s.recipientRepo.ByFilter(ctx, filter, "position ASC", limit, offset)
	if err != nil {
		return nil, NewBusinessError("LIST_RECIPIENTS_FAILED", "Failed to list recipients", err)
	}

	items := make([]dto.RecipientDTO, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToRecipientDTO(r))
	}

	return &dto.ListRecipientsResponse{
		Message: "Recipients retrieved successfully",
		Items:   items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages(total, limit),
		},
	}, nil
}

// ExportRecipients builds a workbook with one row per recipient and its outcome
func (s *CampaignFlowImpl) ExportRecipients(ctx context.Context, req *dto.GetCampaignRequest) (*dto.ExportRecipientsResponse, error) {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	recipients, err := s.recipientRepo.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("LIST_RECIPIENTS_FAILED", "Failed to list recipients", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "Recipients"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"email", "name", "status", "scheduled_at", "sent_at", "opened_at", "error_message"}
	header = append(header, campaign.VariableKeys...)
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for i, r := range recipients {
		record := []string{
			r.Email,
			utils.Deref(r.Name),
			string(r.Status),
			formatTime(r.ScheduledAt),
			formatTime(r.SentAt),
			formatTime(r.OpenedAt),
			utils.Deref(r.ErrorMessage),
		}
		for _, key := range campaign.VariableKeys {
			v, _ := r.CustomData.Get(key)
			record = append(record, v)
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	return &dto.ExportRecipientsResponse{
		FileName: fmt.Sprintf("campaign-%s-recipients.xlsx", campaign.UUID.String()),
		Content:  buf.Bytes(),
	}, nil
}

func (s *CampaignFlowImpl) getOwnedCampaign(ctx context.Context, campaignUUID string, customerID uint) (*models.Campaign, error) {
	if strings.TrimSpace(campaignUUID) == "" {
		return nil, NewBusinessError("CAMPAIGN_UUID_REQUIRED", "Campaign UUID is required", ErrCampaignUUIDRequired)
	}
	if _, err := utils.ParseUUID(campaignUUID); err != nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	campaign, err := s.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil || campaign.CustomerID != customerID {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	return campaign, nil
}

// resolveSchedules stores each recipient's eligible instant under per-recipient-date
// mode and returns how many rows had no usable date
func (s *CampaignFlowImpl) resolveSchedules(campaign *models.Campaign, recipients []*models.Recipient) int {
	if campaign.ScheduleMode != models.ScheduleModePerRecipientDate {
		return 0
	}

	unresolved := 0
	for _, r := range recipients {
		at, ok := s.scheduler.ResolveRecipientDate(campaign, r.CustomData)
		if !ok {
			r.ScheduledAt = nil
			unresolved++
			continue
		}
		r.ScheduledAt = utils.ToPtr(at.UTC())
	}
	return unresolved
}

// reschedule recomputes the stored eligible instants after a schedule change
func (s *CampaignFlowImpl) reschedule(ctx context.Context, campaign *models.Campaign) (int, error) {
	recipients, err := s.recipientRepo.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return 0, err
	}

	previous := make([]*time.Time, len(recipients))
	for i, r := range recipients {
		previous[i] = r.ScheduledAt
	}
	s.resolveSchedules(campaign, recipients)
	if campaign.ScheduleMode != models.ScheduleModePerRecipientDate {
		for _, r := range recipients {
			r.ScheduledAt = nil
		}
	}

	changed := 0
	for i, r := range recipients {
		if sameInstant(previous[i], r.ScheduledAt) {
			continue
		}
		if err := s.recipientRepo.SetScheduledAt(ctx, r.ID, r.ScheduledAt); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func (s *CampaignFlowImpl) inTransaction(ctx context.Context, fn func(context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, s.db, fn)
}

func validateCampaign(c *models.Campaign) error {
	if c.Name == "" {
		return ErrCampaignNameRequired
	}
	if strings.TrimSpace(c.SubjectTemplate) == "" {
		return ErrSubjectRequired
	}
	if strings.TrimSpace(c.BodyTemplate) == "" {
		return ErrBodyRequired
	}
	if c.SendRate < utils.MinSendRate || c.SendRate > utils.MaxSendRate {
		return ErrInvalidSendRate
	}

	if c.ScheduleMode == "" {
		c.ScheduleMode = models.ScheduleModeImmediate
	}
	if !c.ScheduleMode.Valid() {
		return ErrInvalidScheduleMode
	}

	switch c.ScheduleMode {
	case models.ScheduleModeImmediate:
		c.ScheduledAt = nil
		c.DateColumn = nil
		c.DefaultSendTime = nil
	case models.ScheduleModeFixedTime:
		if c.ScheduledAt == nil || c.ScheduledAt.IsZero() {
			return ErrScheduledAtRequired
		}
		c.ScheduledAt = utils.ToPtr(c.ScheduledAt.UTC())
		c.DateColumn = nil
		c.DefaultSendTime = nil
	case models.ScheduleModePerRecipientDate:
		if c.DateColumn == nil {
			return ErrDateColumnRequired
		}
		if c.DefaultSendTime != nil {
			if _, _, _, err := utils.ParseClock(*c.DefaultSendTime); err != nil {
				return ErrInvalidDefaultSendTime
			}
		}
		c.ScheduledAt = nil
	}

	return nil
}

func hasUpdate(req *dto.UpdateCampaignRequest) bool {
	return req.Name != nil || req.SubjectTemplate != nil || req.BodyTemplate != nil ||
		req.AttachmentTemplate != nil || req.AttachmentName != nil || req.SendRate != nil ||
		req.ScheduleMode != nil || req.ScheduledAt != nil || req.DateColumn != nil ||
		req.DefaultSendTime != nil
}

func applyUpdate(c *models.Campaign, req *dto.UpdateCampaignRequest) {
	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.SubjectTemplate != nil {
		c.SubjectTemplate = *req.SubjectTemplate
	}
	if req.BodyTemplate != nil {
		c.BodyTemplate = *req.BodyTemplate
	}
	// an empty attachment template removes the attachment
	if req.AttachmentTemplate != nil {
		c.AttachmentTemplate = blankToNil(req.AttachmentTemplate)
	}
	if req.AttachmentName != nil {
		c.AttachmentName = blankToNil(req.AttachmentName)
	}
	if req.SendRate != nil {
		c.SendRate = *req.SendRate
	}
	if req.ScheduleMode != nil {
		c.ScheduleMode = models.ScheduleMode(*req.ScheduleMode)
	}
	if req.ScheduledAt != nil {
		c.ScheduledAt = req.ScheduledAt
	}
	if req.DateColumn != nil {
		c.DateColumn = blankToNil(req.DateColumn)
	}
	if req.DefaultSendTime != nil {
		c.DefaultSendTime = blankToNil(req.DefaultSendTime)
	}
}

// scheduleKey captures the fields per-recipient instants depend on
type scheduleKey struct {
	mode            models.ScheduleMode
	dateColumn      string
	defaultSendTime string
}

func scheduleOf(c *models.Campaign) scheduleKey {
	return scheduleKey{
		mode:            c.ScheduleMode,
		dateColumn:      utils.Deref(c.DateColumn),
		defaultSendTime: utils.Deref(c.DefaultSendTime),
	}
}

// variableKeys lists the canonical column keys followed by mapped target names
func variableKeys(columns []string, mapping map[string]string) []string {
	keys := mailmerge.CanonicalKeys(columns)
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}

	targets := make([]string, 0, len(mapping))
	for target := range mapping {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		key := mailmerge.Canonicalize(target)
		if key == "" || key == mailmerge.FieldEmail || seen[key] || strings.TrimSpace(mapping[target]) == "" {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

func unknownVariables(c *models.Campaign) []string {
	templates := []string{c.SubjectTemplate, c.BodyTemplate}
	if c.AttachmentTemplate != nil {
		templates = append(templates, *c.AttachmentTemplate)
	}
	unknown := mailmerge.UnknownVariables(c.VariableKeys, templates...)
	if unknown == nil {
		unknown = []string{}
	}
	return unknown
}

func scheduleWarnings(c *models.Campaign, unresolved, total int) []string {
	if c.ScheduleMode != models.ScheduleModePerRecipientDate || c.DateColumn == nil {
		return nil
	}

	var warnings []string
	key := mailmerge.Canonicalize(*c.DateColumn)
	found := false
	for _, k := range c.VariableKeys {
		if k == key {
			found = true
			break
		}
	}
	if !found {
		warnings = append(warnings, fmt.Sprintf("date column %q is not in the upload; every recipient is sent at campaign start", *c.DateColumn))
	} else if unresolved > 0 {
		warnings = append(warnings, fmt.Sprintf("%d of %d recipients have no readable date and are sent at campaign start", unresolved, total))
	}
	return warnings
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
