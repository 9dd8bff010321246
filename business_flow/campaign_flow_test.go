package businessflow

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matbaogit/WFAHub-sub000/app/dispatch"
	"github.com/matbaogit/WFAHub-sub000/app/dto"
	"github.com/matbaogit/WFAHub-sub000/app/mailmerge"
	"github.com/matbaogit/WFAHub-sub000/app/services"
	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	ownerID    uint = 7
	strangerID uint = 8
)

var flowNow = time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

type campaignHarness struct {
	store      *flowStore
	audit      *fakeAuditRepo
	uploads    *services.MemoryUploadCache
	dispatcher *fakeDispatcher
	flow       *CampaignFlowImpl
}

func newCampaignHarness(t *testing.T) *campaignHarness {
	t.Helper()
	store := newFlowStore()
	h := &campaignHarness{
		store:      store,
		audit:      &fakeAuditRepo{},
		uploads:    services.NewMemoryUploadCache(time.Minute),
		dispatcher: &fakeDispatcher{},
	}
	flow := NewCampaignFlow(
		&fakeCampaignRepo{s: store},
		&fakeRecipientRepo{s: store},
		h.audit,
		h.uploads,
		h.dispatcher,
		dispatch.NewScheduler(time.UTC),
		nil,
		quietLogger(),
	).(*CampaignFlowImpl)
	flow.now = func() time.Time { return flowNow }
	h.flow = flow
	return h
}

func (h *campaignHarness) upload(t *testing.T, customerID uint, csv string) string {
	t.Helper()
	table, err := mailmerge.ParseCSV(strings.NewReader(csv), 0)
	require.NoError(t, err)
	cached, err := h.uploads.Put(context.Background(), customerID, "list.csv", table)
	require.NoError(t, err)
	return cached.Token
}

const customersCSV = "Email,Họ Tên,Mã KH\na@example.com,An,K1\n,Blank,K2\nb@example.com,Bình,K3\n"

func (h *campaignHarness) createRequest(t *testing.T) *dto.CreateCampaignRequest {
	return &dto.CreateCampaignRequest{
		CustomerID:      ownerID,
		UploadToken:     h.upload(t, ownerID, customersCSV),
		Mapping:         map[string]string{"email": "Email", "name": "Họ Tên"},
		Name:            "October promo",
		SubjectTemplate: "Hello {{ name }}",
		BodyTemplate:    "<p>Code {Mã KH} for {email}, {coupon}</p>",
		SendRate:        60,
		ScheduleMode:    string(models.ScheduleModeImmediate),
	}
}

func (h *campaignHarness) create(t *testing.T) *dto.CreateCampaignResponse {
	t.Helper()
	resp, err := h.flow.CreateCampaign(context.Background(), h.createRequest(t), nil)
	require.NoError(t, err)
	return resp
}

func campaignIDOf(t *testing.T, h *campaignHarness, campaignUUID string) uint {
	t.Helper()
	c, err := h.flow.campaignRepo.ByUUID(context.Background(), campaignUUID)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c.ID
}

func TestCreateCampaign_ImportsRecipients(t *testing.T) {
	h := newCampaignHarness(t)
	req := h.createRequest(t)

	resp, err := h.flow.CreateCampaign(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)

	assert.Equal(t, string(models.CampaignStatusDraft), resp.Campaign.Status)
	assert.Equal(t, 2, resp.Campaign.Progress.Total)
	assert.Equal(t, 2, resp.Campaign.Progress.Pending)
	assert.Equal(t, []string{"email", "ho_ten", "ma_kh", "name"}, resp.Campaign.VariableKeys)
	assert.Equal(t, []string{"coupon"}, resp.UnknownVariables)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "1 rows without an email")

	id := campaignIDOf(t, h, resp.Campaign.UUID)
	recipients := h.store.recipientsOf(id)
	require.Len(t, recipients, 2)
	assert.Equal(t, "a@example.com", recipients[0].Email)
	assert.Equal(t, "An", utils.Deref(recipients[0].Name))
	code, _ := recipients[1].CustomData.Get("ma_kh")
	assert.Equal(t, "K3", code)

	assert.Equal(t, []string{models.AuditActionCampaignCreated, models.AuditActionRecipientsImported}, h.audit.actions())

	_, err = h.uploads.Get(context.Background(), ownerID, req.UploadToken)
	assert.ErrorIs(t, err, services.ErrUploadNotFound)
}

func TestCreateCampaign_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *campaignHarness, req *dto.CreateCampaignRequest)
		check  func(error) bool
	}{
		{
			name:   "missing email mapping",
			mutate: func(h *campaignHarness, req *dto.CreateCampaignRequest) { delete(req.Mapping, "email") },
			check:  IsEmailMappingRequired,
		},
		{
			name:   "unknown column",
			mutate: func(h *campaignHarness, req *dto.CreateCampaignRequest) { req.Mapping["phone"] = "Phone" },
			check:  IsUnknownMappedColumn,
		},
		{
			name: "foreign upload",
			mutate: func(h *campaignHarness, req *dto.CreateCampaignRequest) {
				req.UploadToken = h.upload(t, strangerID, customersCSV)
			},
			check: IsUploadExpired,
		},
		{
			name:   "unknown token",
			mutate: func(h *campaignHarness, req *dto.CreateCampaignRequest) { req.UploadToken = uuid.NewString() },
			check:  IsUploadExpired,
		},
		{
			name: "no rows with email",
			mutate: func(h *campaignHarness, req *dto.CreateCampaignRequest) {
				req.UploadToken = h.upload(t, ownerID, "Email,Name\n,Ann\n")
				req.Mapping = map[string]string{"email": "Email", "name": "Name"}
			},
			check: IsNoRecipients,
		},
		{
			name:   "zero send rate",
			mutate: func(h *campaignHarness, req *dto.CreateCampaignRequest) { req.SendRate = 0 },
			check:  func(err error) bool { return errors.Is(err, ErrInvalidSendRate) },
		},
		{
			name: "fixed time without time",
			mutate: func(h *campaignHarness, req *dto.CreateCampaignRequest) {
				req.ScheduleMode = string(models.ScheduleModeFixedTime)
			},
			check: func(err error) bool { return errors.Is(err, ErrScheduledAtRequired) },
		},
		{
			name: "bad default send time",
			mutate: func(h *campaignHarness, req *dto.CreateCampaignRequest) {
				req.ScheduleMode = string(models.ScheduleModePerRecipientDate)
				req.DateColumn = utils.ToPtr("Date")
				req.DefaultSendTime = utils.ToPtr("25:00")
			},
			check: func(err error) bool { return errors.Is(err, ErrInvalidDefaultSendTime) },
		},
		{
			name:   "blank subject",
			mutate: func(h *campaignHarness, req *dto.CreateCampaignRequest) { req.SubjectTemplate = "  " },
			check:  func(err error) bool { return errors.Is(err, ErrSubjectRequired) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newCampaignHarness(t)
			req := h.createRequest(t)
			tt.mutate(h, req)

			resp, err := h.flow.CreateCampaign(context.Background(), req, nil)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Empty(t, h.store.campaigns)
		})
	}
}

func TestCreateCampaign_UnknownColumnMessage(t *testing.T) {
	h := newCampaignHarness(t)
	req := h.createRequest(t)
	req.Mapping["phone"] = "Phone"

	_, err := h.flow.CreateCampaign(context.Background(), req, nil)
	require.Error(t, err)
	assert.True(t, IsUnknownMappedColumn(err))
	assert.Equal(t, 1, strings.Count(err.Error(), ErrUnknownMappedColumn.Error()), err.Error())
	assert.Contains(t, err.Error(), `phone -> "Phone"`)
}

func TestCreateCampaign_PerRecipientDates(t *testing.T) {
	h := newCampaignHarness(t)
	req := h.createRequest(t)
	req.UploadToken = h.upload(t, ownerID, "Email,Ngày gửi\na@example.com,2026-11-01\nb@example.com,soon\nc@example.com,2026-11-02 14:00\n")
	req.Mapping = map[string]string{"email": "Email"}
	req.ScheduleMode = string(models.ScheduleModePerRecipientDate)
	req.DateColumn = utils.ToPtr("Ngày gửi")
	req.DefaultSendTime = utils.ToPtr("09:30")

	resp, err := h.flow.CreateCampaign(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "1 of 3 recipients have no readable date")

	recipients := h.store.recipientsOf(campaignIDOf(t, h, resp.Campaign.UUID))
	require.Len(t, recipients, 3)
	require.NotNil(t, recipients[0].ScheduledAt)
	assert.Equal(t, time.Date(2026, 11, 1, 9, 30, 0, 0, time.UTC), *recipients[0].ScheduledAt)
	assert.Nil(t, recipients[1].ScheduledAt)
	require.NotNil(t, recipients[2].ScheduledAt)
	assert.Equal(t, time.Date(2026, 11, 2, 14, 0, 0, 0, time.UTC), *recipients[2].ScheduledAt)
}

func TestCreateCampaign_WarnsOnMissingDateColumn(t *testing.T) {
	h := newCampaignHarness(t)
	req := h.createRequest(t)
	req.ScheduleMode = string(models.ScheduleModePerRecipientDate)
	req.DateColumn = utils.ToPtr("Birthday")

	resp, err := h.flow.CreateCampaign(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(resp.Warnings, "\n"), `date column "Birthday" is not in the upload`)
}

func TestUpdateCampaign(t *testing.T) {
	t.Run("changes templates while draft", func(t *testing.T) {
		h := newCampaignHarness(t)
		created := h.create(t)

		resp, err := h.flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{
			UUID:         created.Campaign.UUID,
			CustomerID:   ownerID,
			BodyTemplate: utils.ToPtr("<p>{ho_ten}</p>"),
			SendRate:     utils.ToPtr(120),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "<p>{ho_ten}</p>", resp.Campaign.BodyTemplate)
		assert.Equal(t, 120, resp.Campaign.SendRate)
		assert.Empty(t, resp.UnknownVariables)
		assert.Contains(t, h.audit.actions(), models.AuditActionCampaignUpdated)
	})

	t.Run("switching to per-recipient dates reschedules recipients", func(t *testing.T) {
		h := newCampaignHarness(t)
		req := h.createRequest(t)
		req.UploadToken = h.upload(t, ownerID, "Email,Send On\na@example.com,02/11/2026\n")
		req.Mapping = map[string]string{"email": "Email"}
		created, err := h.flow.CreateCampaign(context.Background(), req, nil)
		require.NoError(t, err)
		id := campaignIDOf(t, h, created.Campaign.UUID)
		assert.Nil(t, h.store.recipientsOf(id)[0].ScheduledAt)

		_, err = h.flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{
			UUID:         created.Campaign.UUID,
			CustomerID:   ownerID,
			ScheduleMode: utils.ToPtr(string(models.ScheduleModePerRecipientDate)),
			DateColumn:   utils.ToPtr("send_on"),
		}, nil)
		require.NoError(t, err)
		at := h.store.recipientsOf(id)[0].ScheduledAt
		require.NotNil(t, at)
		assert.Equal(t, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), *at)

		_, err = h.flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{
			UUID:         created.Campaign.UUID,
			CustomerID:   ownerID,
			ScheduleMode: utils.ToPtr(string(models.ScheduleModeImmediate)),
		}, nil)
		require.NoError(t, err)
		assert.Nil(t, h.store.recipientsOf(id)[0].ScheduledAt)
	})

	t.Run("rejects empty update", func(t *testing.T) {
		h := newCampaignHarness(t)
		created := h.create(t)
		_, err := h.flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID}, nil)
		assert.ErrorIs(t, err, ErrCampaignUpdateRequired)
	})

	t.Run("rejects non-draft", func(t *testing.T) {
		h := newCampaignHarness(t)
		created := h.create(t)
		h.store.setStatus(campaignIDOf(t, h, created.Campaign.UUID), models.CampaignStatusSending)

		_, err := h.flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{
			UUID:       created.Campaign.UUID,
			CustomerID: ownerID,
			Name:       utils.ToPtr("renamed"),
		}, nil)
		assert.True(t, IsCampaignNotEditable(err))
	})

	t.Run("rejects invalid rate", func(t *testing.T) {
		h := newCampaignHarness(t)
		created := h.create(t)
		_, err := h.flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{
			UUID:       created.Campaign.UUID,
			CustomerID: ownerID,
			SendRate:   utils.ToPtr(0),
		}, nil)
		assert.ErrorIs(t, err, ErrInvalidSendRate)
		assert.Equal(t, 60, h.store.campaign(campaignIDOf(t, h, created.Campaign.UUID)).SendRate)
	})
}

func TestGetCampaign_Ownership(t *testing.T) {
	h := newCampaignHarness(t)
	created := h.create(t)

	got, err := h.flow.GetCampaign(context.Background(), &dto.GetCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID})
	require.NoError(t, err)
	assert.Equal(t, created.Campaign.UUID, got.UUID)

	for _, req := range []*dto.GetCampaignRequest{
		{UUID: created.Campaign.UUID, CustomerID: strangerID},
		{UUID: "not-a-uuid", CustomerID: ownerID},
		{UUID: uuid.NewString(), CustomerID: ownerID},
	} {
		_, err := h.flow.GetCampaign(context.Background(), req)
		assert.True(t, IsCampaignNotFound(err), "uuid %s", req.UUID)
	}

	_, err = h.flow.GetCampaign(context.Background(), &dto.GetCampaignRequest{CustomerID: ownerID})
	assert.ErrorIs(t, err, ErrCampaignUUIDRequired)
}

func TestListCampaigns_Paginates(t *testing.T) {
	h := newCampaignHarness(t)
	for i := 0; i < 3; i++ {
		h.create(t)
	}

	resp, err := h.flow.ListCampaigns(context.Background(), &dto.ListCampaignsRequest{CustomerID: ownerID, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)

	resp, err = h.flow.ListCampaigns(context.Background(), &dto.ListCampaignsRequest{CustomerID: strangerID})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, 20, resp.Pagination.Limit)
}

func TestStartSending(t *testing.T) {
	t.Run("immediate draft starts and is enqueued", func(t *testing.T) {
		h := newCampaignHarness(t)
		created := h.create(t)
		id := campaignIDOf(t, h, created.Campaign.UUID)

		resp, err := h.flow.StartSending(context.Background(), &dto.StartCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID}, nil)
		require.NoError(t, err)
		assert.Equal(t, string(models.CampaignStatusSending), resp.Status)

		stored := h.store.campaign(id)
		assert.Equal(t, models.CampaignStatusSending, stored.Status)
		require.NotNil(t, stored.StartedAt)
		assert.Equal(t, flowNow, *stored.StartedAt)
		assert.Equal(t, []uint{id}, h.dispatcher.enqueued)
		assert.Contains(t, h.audit.actions(), models.AuditActionDispatchStarted)

		_, err = h.flow.StartSending(context.Background(), &dto.StartCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID}, nil)
		assert.True(t, IsCampaignNotStartable(err))
		assert.Len(t, h.dispatcher.enqueued, 1)
	})

	t.Run("future fixed time is scheduled", func(t *testing.T) {
		h := newCampaignHarness(t)
		req := h.createRequest(t)
		req.ScheduleMode = string(models.ScheduleModeFixedTime)
		req.ScheduledAt = utils.ToPtr(flowNow.Add(2 * time.Hour))
		created, err := h.flow.CreateCampaign(context.Background(), req, nil)
		require.NoError(t, err)

		resp, err := h.flow.StartSending(context.Background(), &dto.StartCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID}, nil)
		require.NoError(t, err)
		assert.Equal(t, string(models.CampaignStatusScheduled), resp.Status)
		require.NotNil(t, resp.ScheduledAt)
		assert.Empty(t, h.dispatcher.enqueued)
		assert.Contains(t, h.audit.actions(), models.AuditActionCampaignScheduled)
	})

	t.Run("past fixed time starts now", func(t *testing.T) {
		h := newCampaignHarness(t)
		req := h.createRequest(t)
		req.ScheduleMode = string(models.ScheduleModeFixedTime)
		req.ScheduledAt = utils.ToPtr(flowNow.Add(-time.Hour))
		created, err := h.flow.CreateCampaign(context.Background(), req, nil)
		require.NoError(t, err)

		resp, err := h.flow.StartSending(context.Background(), &dto.StartCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID}, nil)
		require.NoError(t, err)
		assert.Equal(t, string(models.CampaignStatusSending), resp.Status)
		assert.Len(t, h.dispatcher.enqueued, 1)
	})

	t.Run("hand-off failure fails the campaign", func(t *testing.T) {
		h := newCampaignHarness(t)
		created := h.create(t)
		id := campaignIDOf(t, h, created.Campaign.UUID)
		h.dispatcher.err = errors.New("broker down")

		_, err := h.flow.StartSending(context.Background(), &dto.StartCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID}, nil)
		require.Error(t, err)
		assert.True(t, IsDispatchUnavailable(err))

		stored := h.store.campaign(id)
		assert.Equal(t, models.CampaignStatusFailed, stored.Status)
		require.NotNil(t, stored.FailureReason)
		assert.Contains(t, *stored.FailureReason, "broker down")
		assert.Contains(t, h.audit.actions(), models.AuditActionCampaignStartFailed)
	})

	t.Run("finished campaigns cannot restart", func(t *testing.T) {
		for _, status := range []models.CampaignStatus{models.CampaignStatusCompleted, models.CampaignStatusFailed} {
			h := newCampaignHarness(t)
			created := h.create(t)
			h.store.setStatus(campaignIDOf(t, h, created.Campaign.UUID), status)

			_, err := h.flow.StartSending(context.Background(), &dto.StartCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID}, nil)
			assert.True(t, IsCampaignNotStartable(err), string(status))
			assert.Empty(t, h.dispatcher.enqueued)
		}
	})

	t.Run("foreign campaign is not found", func(t *testing.T) {
		h := newCampaignHarness(t)
		created := h.create(t)
		_, err := h.flow.StartSending(context.Background(), &dto.StartCampaignRequest{UUID: created.Campaign.UUID, CustomerID: strangerID}, nil)
		assert.True(t, IsCampaignNotFound(err))
	})
}

func TestPreviewCampaign(t *testing.T) {
	h := newCampaignHarness(t)
	req := h.createRequest(t)
	req.AttachmentTemplate = utils.ToPtr("<h1>Quote for {name}</h1>")
	created, err := h.flow.CreateCampaign(context.Background(), req, nil)
	require.NoError(t, err)
	id := campaignIDOf(t, h, created.Campaign.UUID)
	recipients := h.store.recipientsOf(id)

	preview, err := h.flow.PreviewCampaign(context.Background(), &dto.PreviewCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", preview.Email)
	assert.Equal(t, "Hello An", preview.Subject)
	assert.Equal(t, "<p>Code K1 for a@example.com, {coupon}</p>", preview.Body)
	require.NotNil(t, preview.Attachment)
	assert.Equal(t, "<h1>Quote for An</h1>", *preview.Attachment)
	assert.Equal(t, services.DefaultAttachmentName, preview.AttachmentName)
	assert.Equal(t, []string{"coupon"}, preview.UnknownVariables)

	second := recipients[1].UUID.String()
	preview, err = h.flow.PreviewCampaign(context.Background(), &dto.PreviewCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID, RecipientUUID: &second})
	require.NoError(t, err)
	assert.Equal(t, "Hello Bình", preview.Subject)

	other := h.create(t)
	foreign := h.store.recipientsOf(campaignIDOf(t, h, other.Campaign.UUID))[0].UUID.String()
	_, err = h.flow.PreviewCampaign(context.Background(), &dto.PreviewCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID, RecipientUUID: &foreign})
	assert.True(t, IsRecipientNotFound(err))
}

func TestPreviewCampaign_FallsBackToFirstRecipient(t *testing.T) {
	h := newCampaignHarness(t)
	created := h.create(t)
	id := campaignIDOf(t, h, created.Campaign.UUID)

	h.store.mu.Lock()
	for _, r := range h.store.recipients {
		if r.CampaignID == id {
			r.Status = models.RecipientStatusSent
		}
	}
	h.store.mu.Unlock()

	preview, err := h.flow.PreviewCampaign(context.Background(), &dto.PreviewCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", preview.Email)
}

func TestListRecipients_FiltersByStatus(t *testing.T) {
	h := newCampaignHarness(t)
	created := h.create(t)
	id := campaignIDOf(t, h, created.Campaign.UUID)

	h.store.mu.Lock()
	for _, r := range h.store.recipients {
		if r.CampaignID == id && r.Email == "b@example.com" {
			r.Status = models.RecipientStatusFailed
			r.ErrorMessage = utils.ToPtr("550 mailbox unavailable")
		}
	}
	h.store.mu.Unlock()

	resp, err := h.flow.ListRecipients(context.Background(), &dto.ListRecipientsRequest{UUID: created.Campaign.UUID, CustomerID: ownerID, Status: "failed"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "b@example.com", resp.Items[0].Email)
	assert.Equal(t, "550 mailbox unavailable", utils.Deref(resp.Items[0].ErrorMessage))
	assert.Equal(t, int64(1), resp.Pagination.Total)

	resp, err = h.flow.ListRecipients(context.Background(), &dto.ListRecipientsRequest{UUID: created.Campaign.UUID, CustomerID: ownerID})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 2)

	_, err = h.flow.ListRecipients(context.Background(), &dto.ListRecipientsRequest{UUID: created.Campaign.UUID, CustomerID: ownerID, Status: "bounced"})
	assert.ErrorIs(t, err, ErrInvalidRecipientStatus)
}

func TestExportRecipients_WritesWorkbook(t *testing.T) {
	h := newCampaignHarness(t)
	created := h.create(t)

	resp, err := h.flow.ExportRecipients(context.Background(), &dto.GetCampaignRequest{UUID: created.Campaign.UUID, CustomerID: ownerID})
	require.NoError(t, err)
	assert.Equal(t, "campaign-"+created.Campaign.UUID+"-recipients.xlsx", resp.FileName)

	xl, err := excelize.OpenReader(bytes.NewReader(resp.Content))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows("Recipients")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"email", "name", "status", "scheduled_at", "sent_at", "opened_at", "error_message", "email", "ho_ten", "ma_kh", "name"}, rows[0])
	assert.Equal(t, "a@example.com", rows[1][0])
	assert.Equal(t, "pending", rows[1][2])
	assert.Equal(t, "K3", rows[2][9])
}
