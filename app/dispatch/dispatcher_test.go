package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matbaogit/WFAHub-sub000/app/queue"
	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(h *harness, resume bool, locker Locker) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		SchedulerInterval: time.Hour,
		ResumeInterrupted: resume,
		LockTTL:           time.Minute,
		ShutdownTimeout:   5 * time.Second,
	}, queue.NewMemoryQueue(8, quietLogger()), h.loop, h.campaigns, h.audit, locker, quietLogger())
}

func waitForStatus(t *testing.T, h *harness, campaignID uint, status models.CampaignStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.store.campaign(campaignID).Status == status
	}, 2*time.Second, 5*time.Millisecond, "campaign %d never reached %s", campaignID, status)
}

func TestDispatcher_EnqueueRunsLoop(t *testing.T) {
	h := newHarness(t)
	c, _ := h.store.addCampaign(&models.Campaign{CustomerID: 1, SubjectTemplate: "s", BodyTemplate: "b"}, 3)

	d := newTestDispatcher(h, true, NewMemoryLocker())
	// recovery at start picks the campaign up too; the lock keeps it to one loop
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	require.NoError(t, d.Enqueue(context.Background(), c.ID))

	waitForStatus(t, h, c.ID, models.CampaignStatusCompleted)
	assert.Len(t, h.transport.GetSentMessages(), 3)
}

func TestDispatcher_RecoverResumes(t *testing.T) {
	h := newHarness(t)
	c, rs := h.store.addCampaign(&models.Campaign{CustomerID: 1, SubjectTemplate: "s", BodyTemplate: "b"}, 3)
	_, err := h.recipients.MarkSent(context.Background(), rs[0], time.Now())
	require.NoError(t, err)

	d := newTestDispatcher(h, true, NewMemoryLocker())
	require.NoError(t, d.RecoverInterrupted(context.Background()))
	defer d.Stop()

	waitForStatus(t, h, c.ID, models.CampaignStatusCompleted)
	assert.Len(t, h.transport.GetSentMessages(), 2)
	assert.Equal(t, 3, h.store.campaign(c.ID).SentCount)
	assert.Contains(t, h.audit.actions(), models.AuditActionCampaignInterrupted)
}

func TestDispatcher_RecoverFailsWhenNotResuming(t *testing.T) {
	h := newHarness(t)
	c, _ := h.store.addCampaign(&models.Campaign{CustomerID: 1, SubjectTemplate: "s", BodyTemplate: "b"}, 2)
	draft, _ := h.store.addCampaign(&models.Campaign{Status: models.CampaignStatusDraft}, 1)

	d := newTestDispatcher(h, false, NewMemoryLocker())
	require.NoError(t, d.RecoverInterrupted(context.Background()))

	final := h.store.campaign(c.ID)
	assert.Equal(t, models.CampaignStatusFailed, final.Status)
	require.NotNil(t, final.FailureReason)
	assert.Equal(t, ReasonInterrupted, *final.FailureReason)
	assert.Empty(t, h.transport.GetSentMessages())
	assert.Equal(t, models.CampaignStatusDraft, h.store.campaign(draft.ID).Status)
	assert.Contains(t, h.audit.actions(), models.AuditActionCampaignInterrupted)
}

func TestDispatcher_SkipsCampaignLockedElsewhere(t *testing.T) {
	h := newHarness(t)
	c, _ := h.store.addCampaign(&models.Campaign{CustomerID: 1, SubjectTemplate: "s", BodyTemplate: "b"}, 2)

	locker := NewMemoryLocker()
	ok, err := locker.Acquire(context.Background(), c.ID, "other-worker", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	for _, resume := range []bool{true, false} {
		d := newTestDispatcher(h, resume, locker)
		require.NoError(t, d.RecoverInterrupted(context.Background()))
		assert.False(t, d.IsRunning(c.ID))
		d.Stop()
	}

	assert.Equal(t, models.CampaignStatusSending, h.store.campaign(c.ID).Status)
	assert.Empty(t, h.transport.GetSentMessages())
}

func TestDispatcher_PromoteDue(t *testing.T) {
	h := newHarness(t)
	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)

	due, _ := h.store.addCampaign(&models.Campaign{
		CustomerID:      1,
		Status:          models.CampaignStatusScheduled,
		ScheduleMode:    models.ScheduleModeFixedTime,
		ScheduledAt:     &past,
		SubjectTemplate: "s",
		BodyTemplate:    "b",
	}, 2)
	later, _ := h.store.addCampaign(&models.Campaign{
		CustomerID:   1,
		Status:       models.CampaignStatusScheduled,
		ScheduleMode: models.ScheduleModeFixedTime,
		ScheduledAt:  &future,
	}, 2)

	d := newTestDispatcher(h, true, NewMemoryLocker())
	require.NoError(t, d.PromoteDue(context.Background()))
	defer d.Stop()

	waitForStatus(t, h, due.ID, models.CampaignStatusCompleted)
	assert.NotNil(t, h.store.campaign(due.ID).StartedAt)
	assert.Equal(t, models.CampaignStatusScheduled, h.store.campaign(later.ID).Status)
	assert.Contains(t, h.audit.actions(), models.AuditActionDispatchStarted)
}

func TestDispatcher_StopLeavesCampaignSending(t *testing.T) {
	h := newHarness(t)
	h.loop.sleep = sleepContext
	c, _ := h.store.addCampaign(&models.Campaign{CustomerID: 1, SendRate: 1, SubjectTemplate: "s", BodyTemplate: "b"}, 3)

	d := newTestDispatcher(h, true, NewMemoryLocker())
	require.NoError(t, d.Start(context.Background()))

	require.Eventually(t, func() bool {
		return h.store.campaign(c.ID).SentCount == 1
	}, 2*time.Second, 5*time.Millisecond)

	d.Stop()

	assert.False(t, d.IsRunning(c.ID))
	assert.Equal(t, models.CampaignStatusSending, h.store.campaign(c.ID).Status)
	assert.Len(t, h.transport.GetSentMessages(), 1)
}

// unreachableLocker fails every call while down is set
type unreachableLocker struct {
	Locker
	down atomic.Bool
}

var errLockStoreDown = errors.New("lock store unreachable")

func (l *unreachableLocker) Acquire(ctx context.Context, campaignID uint, owner string, ttl time.Duration) (bool, error) {
	if l.down.Load() {
		return false, errLockStoreDown
	}
	return l.Locker.Acquire(ctx, campaignID, owner, ttl)
}

func TestDispatcher_ResumeOrphanedAfterLockStoreOutage(t *testing.T) {
	h := newHarness(t)
	c, _ := h.store.addCampaign(&models.Campaign{CustomerID: 1, SubjectTemplate: "s", BodyTemplate: "b"}, 2)

	locker := &unreachableLocker{Locker: NewMemoryLocker()}
	locker.down.Store(true)
	d := newTestDispatcher(h, true, locker)
	defer d.Stop()

	require.NoError(t, d.ResumeOrphaned(context.Background()))
	assert.False(t, d.IsRunning(c.ID))
	assert.Equal(t, models.CampaignStatusSending, h.store.campaign(c.ID).Status)

	locker.down.Store(false)
	require.NoError(t, d.ResumeOrphaned(context.Background()))

	waitForStatus(t, h, c.ID, models.CampaignStatusCompleted)
	assert.Len(t, h.transport.GetSentMessages(), 2)
}

func TestDispatcher_TickerAdoptsCampaignWithoutJob(t *testing.T) {
	h := newHarness(t)
	d := NewDispatcher(DispatcherConfig{
		SchedulerInterval: 20 * time.Millisecond,
		ResumeInterrupted: true,
		LockTTL:           time.Minute,
		ShutdownTimeout:   5 * time.Second,
	}, queue.NewMemoryQueue(8, quietLogger()), h.loop, h.campaigns, h.audit, NewMemoryLocker(), quietLogger())
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	// moved to sending after startup recovery, and never enqueued
	c, _ := h.store.addCampaign(&models.Campaign{CustomerID: 1, SubjectTemplate: "s", BodyTemplate: "b"}, 2)

	waitForStatus(t, h, c.ID, models.CampaignStatusCompleted)
	assert.Len(t, h.transport.GetSentMessages(), 2)
}
