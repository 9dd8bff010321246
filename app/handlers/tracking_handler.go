package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	businessflow "github.com/matbaogit/WFAHub-sub000/business_flow"
	"github.com/matbaogit/WFAHub-sub000/utils"
)

// transparentGIF is a 1x1 transparent GIF89a
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackingHandlerInterface defines the contract for open tracking
type TrackingHandlerInterface interface {
	OpenPixel(c fiber.Ctx) error
}

// TrackingHandler serves the open-tracking pixel
type TrackingHandler struct {
	flow businessflow.TrackingFlow
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(flow businessflow.TrackingFlow) TrackingHandlerInterface {
	return &TrackingHandler{flow: flow}
}

// OpenPixel records the first open and always answers with the pixel
// @Summary Open Tracking Pixel
// @Tags Tracking
// @Produce image/gif
// @Param campaign_uuid path string true "Campaign UUID"
// @Param recipient_uuid path string true "Recipient UUID"
// @Success 200 {string} string "1x1 transparent GIF"
// @Router /t/open/{campaign_uuid}/{recipient_uuid} [get]
func (h *TrackingHandler) OpenPixel(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())

	h.flow.RecordOpen(ctx, c.Params("campaign_uuid"), c.Params("recipient_uuid"))

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Set("Pragma", "no-cache")
	c.Set("Expires", "0")
	return c.Status(fiber.StatusOK).Send(transparentGIF)
}
