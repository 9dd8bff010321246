package businessflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/sirupsen/logrus"
)

type flowStore struct {
	mu         sync.Mutex
	campaigns  map[uint]*models.Campaign
	recipients []*models.Recipient
	nextID     uint
}

func newFlowStore() *flowStore {
	return &flowStore{campaigns: make(map[uint]*models.Campaign)}
}

func (s *flowStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *flowStore) campaign(id uint) models.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.campaigns[id]
}

func (s *flowStore) recipientsOf(campaignID uint) []models.Recipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Recipient
	for _, r := range s.recipients {
		if r.CampaignID == campaignID {
			out = append(out, *r)
		}
	}
	return out
}

func (s *flowStore) setStatus(campaignID uint, status models.CampaignStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[campaignID].Status = status
}

type fakeCampaignRepo struct {
	repository.CampaignRepository
	s *flowStore
}

func (f *fakeCampaignRepo) ByUUID(ctx context.Context, id string) (*models.Campaign, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, c := range f.s.campaigns {
		if c.UUID == parsed {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCampaignRepo) CreateWithRecipients(ctx context.Context, c *models.Campaign, recipients []*models.Recipient) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	c.ID = f.s.id()
	c.UUID = uuid.New()
	c.CreatedAt = time.Now().UTC()
	c.TotalRecipients = len(recipients)
	cp := *c
	f.s.campaigns[c.ID] = &cp

	for i, r := range recipients {
		r.ID = f.s.id()
		r.UUID = uuid.New()
		r.CampaignID = c.ID
		r.Position = i
		rc := *r
		f.s.recipients = append(f.s.recipients, &rc)
	}
	return nil
}

func (f *fakeCampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	cp := *c
	f.s.campaigns[c.ID] = &cp
	return nil
}

func (f *fakeCampaignRepo) TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, fields map[string]any) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.campaigns[id]
	if !ok {
		return false, nil
	}
	for _, st := range from {
		if c.Status == st {
			c.Status = to
			if at, ok := fields["started_at"].(time.Time); ok {
				c.StartedAt = &at
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCampaignRepo) Finalize(ctx context.Context, id uint, status models.CampaignStatus, completedAt time.Time, reason *string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.campaigns[id]
	if !ok || c.Status != models.CampaignStatusSending {
		return nil
	}
	c.Status = status
	c.CompletedAt = &completedAt
	c.FailureReason = reason
	return nil
}

func (f *fakeCampaignRepo) matching(filter models.CampaignFilter) []*models.Campaign {
	var out []*models.Campaign
	for _, c := range f.s.campaigns {
		if filter.CustomerID != nil && c.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return page(f.matching(filter), limit, offset), nil
}

func (f *fakeCampaignRepo) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return int64(len(f.matching(filter))), nil
}

type fakeRecipientRepo struct {
	repository.RecipientRepository
	s *flowStore
}

func (f *fakeRecipientRepo) ByUUID(ctx context.Context, id string) (*models.Recipient, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.recipients {
		if r.UUID == parsed {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRecipientRepo) matching(filter models.RecipientFilter) []*models.Recipient {
	var out []*models.Recipient
	for _, r := range f.s.recipients {
		if filter.CampaignID != nil && r.CampaignID != *filter.CampaignID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (f *fakeRecipientRepo) FirstPending(ctx context.Context, campaignID uint) (*models.Recipient, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	pending := models.RecipientStatusPending
	rows := f.matching(models.RecipientFilter{CampaignID: &campaignID, Status: &pending})
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (f *fakeRecipientRepo) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.Recipient, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.matching(models.RecipientFilter{CampaignID: &campaignID}), nil
}

func (f *fakeRecipientRepo) ByFilter(ctx context.Context, filter models.RecipientFilter, orderBy string, limit, offset int) ([]*models.Recipient, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return page(f.matching(filter), limit, offset), nil
}

func (f *fakeRecipientRepo) Count(ctx context.Context, filter models.RecipientFilter) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return int64(len(f.matching(filter))), nil
}

func (f *fakeRecipientRepo) SetScheduledAt(ctx context.Context, id uint, at *time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.recipients {
		if r.ID == id {
			r.ScheduledAt = at
		}
	}
	return nil
}

func page[T any](rows []*T, limit, offset int) []*T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

type fakeAuditRepo struct {
	repository.AuditLogRepository
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (f *fakeAuditRepo) Save(ctx context.Context, entry *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeDispatcher struct {
	mu       sync.Mutex
	enqueued []uint
	err      error
}

func (f *fakeDispatcher) Enqueue(ctx context.Context, campaignID uint) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, campaignID)
	return nil
}

type fakeWalletRepo struct {
	repository.WalletRepository
	wallets   map[uint]*models.Wallet
	snapshots map[uint]*models.BalanceSnapshot
}

func (f *fakeWalletRepo) ByCustomerID(ctx context.Context, customerID uint) (*models.Wallet, error) {
	return f.wallets[customerID], nil
}

func (f *fakeWalletRepo) GetCurrentBalance(ctx context.Context, walletID uint) (*models.BalanceSnapshot, error) {
	return f.snapshots[walletID], nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}
