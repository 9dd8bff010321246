package businessflow

import (
	"context"

	"github.com/matbaogit/WFAHub-sub000/utils"
)

// OpenRecorder records the first open of a recipient
type OpenRecorder interface {
	RecordOpen(ctx context.Context, campaignUUID, recipientUUID string) bool
}

// TrackingFlow handles open-tracking pixel hits
type TrackingFlow interface {
	RecordOpen(ctx context.Context, campaignUUID, recipientUUID string)
}

// TrackingFlowImpl implements the tracking flow
type TrackingFlowImpl struct {
	recorder OpenRecorder
}

// NewTrackingFlow creates a new tracking flow instance
func NewTrackingFlow(recorder OpenRecorder) TrackingFlow {
	return &TrackingFlowImpl{recorder: recorder}
}

// RecordOpen stores the open if the ids match. Pixel requests never fail, so nothing is returned.
func (f *TrackingFlowImpl) RecordOpen(ctx context.Context, campaignUUID, recipientUUID string) {
	if _, err := utils.ParseUUID(campaignUUID); err != nil {
		return
	}
	if _, err := utils.ParseUUID(recipientUUID); err != nil {
		return
	}
	// the request may be gone before the write lands
	f.recorder.RecordOpen(context.WithoutCancel(ctx), campaignUUID, recipientUUID)
}
