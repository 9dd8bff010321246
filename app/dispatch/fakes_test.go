package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/matbaogit/WFAHub-sub000/app/services"
	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/sirupsen/logrus"
)

// memStore backs the fake repositories with maps guarded by one mutex
type memStore struct {
	mu         sync.Mutex
	campaigns  map[uint]*models.Campaign
	recipients []*models.Recipient
	nextID     uint
}

func newMemStore() *memStore {
	return &memStore{campaigns: make(map[uint]*models.Campaign)}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

// addCampaign stores c in status sending with n recipients r1..rn@example.com
func (s *memStore) addCampaign(c *models.Campaign, n int) (*models.Campaign, []*models.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.id()
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.CampaignStatusSending
	}
	if c.ScheduleMode == "" {
		c.ScheduleMode = models.ScheduleModeImmediate
	}
	if c.SendRate == 0 {
		c.SendRate = 600
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.TotalRecipients = n
	s.campaigns[c.ID] = c

	var out []*models.Recipient
	for i := 0; i < n; i++ {
		data := models.NewCustomData()
		data.Set("email", fmt.Sprintf("r%d@example.com", i+1))
		data.Set("code", fmt.Sprintf("C%d", i+1))
		r := &models.Recipient{
			ID:         s.id(),
			UUID:       uuid.New(),
			CampaignID: c.ID,
			Position:   i,
			Email:      fmt.Sprintf("r%d@example.com", i+1),
			CustomData: data,
			Status:     models.RecipientStatusPending,
		}
		s.recipients = append(s.recipients, r)
		out = append(out, r)
	}
	return c, out
}

func (s *memStore) campaign(id uint) models.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.campaigns[id]
}

func (s *memStore) recipient(id uint) models.Recipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recipients {
		if r.ID == id {
			return *r
		}
	}
	return models.Recipient{}
}

type fakeCampaigns struct {
	repository.CampaignRepository
	s *memStore
}

func (f *fakeCampaigns) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.Campaign
	for _, c := range f.s.campaigns {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCampaigns) ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.Campaign
	for _, c := range f.s.campaigns {
		if c.Status == models.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCampaigns) TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, fields map[string]any) (bool, error) {
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

func (f *fakeCampaigns) Finalize(ctx context.Context, id uint, status models.CampaignStatus, completedAt time.Time, reason *string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.campaigns[id]
	if !ok || c.Status != models.CampaignStatusSending {
		return nil
	}
	c.Status = status
	c.CompletedAt = &completedAt
	c.FailureReason = reason
	c.ActualCreditsUsed = c.SentCount
	return nil
}

type fakeRecipients struct {
	repository.RecipientRepository
	s *memStore

	failMarkSent error
}

func (f *fakeRecipients) ByUUID(ctx context.Context, id string) (*models.Recipient, error) {
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

func (f *fakeRecipients) ListPending(ctx context.Context, campaignID uint, orderByScheduled bool) ([]*models.Recipient, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.Recipient
	for _, r := range f.s.recipients {
		if r.CampaignID == campaignID && r.Status == models.RecipientStatusPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if orderByScheduled {
			a, b := out[i].ScheduledAt, out[j].ScheduledAt
			switch {
			case a == nil && b != nil:
				return true
			case a != nil && b == nil:
				return false
			case a != nil && b != nil && !a.Equal(*b):
				return a.Before(*b)
			}
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (f *fakeRecipients) update(r *models.Recipient, guard func(*models.Recipient) bool, apply func(*models.Recipient), counter func(*models.Campaign)) bool {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, stored := range f.s.recipients {
		if stored.ID != r.ID {
			continue
		}
		if !guard(stored) {
			return false
		}
		apply(stored)
		apply(r)
		counter(f.s.campaigns[stored.CampaignID])
		return true
	}
	return false
}

func (f *fakeRecipients) MarkSent(ctx context.Context, r *models.Recipient, sentAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if f.failMarkSent != nil {
		return false, f.failMarkSent
	}
	return f.update(r,
		func(x *models.Recipient) bool { return x.Status == models.RecipientStatusPending },
		func(x *models.Recipient) { x.Status = models.RecipientStatusSent; x.SentAt = &sentAt },
		func(c *models.Campaign) { c.SentCount++ },
	), nil
}

func (f *fakeRecipients) MarkFailed(ctx context.Context, r *models.Recipient, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return f.update(r,
		func(x *models.Recipient) bool { return x.Status == models.RecipientStatusPending },
		func(x *models.Recipient) { x.Status = models.RecipientStatusFailed; x.ErrorMessage = &message },
		func(c *models.Campaign) { c.FailedCount++ },
	), nil
}

func (f *fakeRecipients) MarkOpened(ctx context.Context, r *models.Recipient, openedAt time.Time) (bool, error) {
	return f.update(r,
		func(x *models.Recipient) bool { return x.OpenedAt == nil },
		func(x *models.Recipient) { x.OpenedAt = &openedAt },
		func(c *models.Campaign) { c.OpenedCount++ },
	), nil
}

// fakeWallets clamps like the real repository and flags overlapping debits per customer
type fakeWallets struct {
	repository.WalletRepository

	mu        sync.Mutex
	balances  map[uint]uint64
	snapshots int
	inFlight  map[uint]*atomic.Int32
	overlap   atomic.Bool
	failWith  error
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{balances: make(map[uint]uint64), inFlight: make(map[uint]*atomic.Int32)}
}

func (f *fakeWallets) set(customerID uint, balance uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[customerID] = balance
}

func (f *fakeWallets) balance(customerID uint) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[customerID]
}

func (f *fakeWallets) Debit(ctx context.Context, customerID uint, amount uint64, campaignID *uint) (*models.BalanceSnapshot, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}

	f.mu.Lock()
	counter, ok := f.inFlight[customerID]
	if !ok {
		counter = &atomic.Int32{}
		f.inFlight[customerID] = counter
	}
	balance, exists := f.balances[customerID]
	f.mu.Unlock()

	if !exists {
		return nil, repository.ErrWalletNotFound
	}

	if counter.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer counter.Add(-1)
	time.Sleep(time.Millisecond)

	newBalance, delta := models.ClampedDebit(balance, amount)

	f.mu.Lock()
	f.balances[customerID] = newBalance
	f.snapshots++
	f.mu.Unlock()

	return &models.BalanceSnapshot{CustomerID: customerID, CreditBalance: newBalance, Delta: delta, CampaignID: campaignID}, nil
}

func (f *fakeWallets) SaveWithInitialSnapshot(ctx context.Context, wallet *models.Wallet, credits uint64) error {
	f.set(wallet.CustomerID, credits)
	return nil
}

type fakeAudit struct {
	repository.AuditLogRepository
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (f *fakeAudit) Save(ctx context.Context, entry *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// panicTransport panics on the nth send
type panicTransport struct {
	n     int
	calls atomic.Int32
}

func (p *panicTransport) Send(ctx context.Context, customerID uint, msg services.OutgoingEmail) error {
	if int(p.calls.Add(1)) == p.n {
		panic("transport exploded")
	}
	return nil
}

var errStoreDown = errors.New("store down")

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// cancelAfterDelivery hands the message over, then reports the cancellation it caused
type cancelAfterDelivery struct {
	*services.MockMailTransport
	cancel context.CancelFunc
}

func (d *cancelAfterDelivery) Send(ctx context.Context, customerID uint, msg services.OutgoingEmail) error {
	if err := d.MockMailTransport.Send(ctx, customerID, msg); err != nil {
		return err
	}
	d.cancel()
	return ctx.Err()
}
