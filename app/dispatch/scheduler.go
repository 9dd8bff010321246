// Package dispatch delivers campaigns: it decides when each recipient is due,
// runs one rate-limited loop per campaign and supervises those loops.
package dispatch

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/matbaogit/WFAHub-sub000/app/mailmerge"
	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"github.com/xuri/excelize/v2"
)

type dateLayout struct {
	layout  string
	hasTime bool
	zoned   bool
}

// Tried in order. ISO-8601 first, then day-first, then plain ISO date.
var dateLayouts = []dateLayout{
	{layout: time.RFC3339Nano, hasTime: true, zoned: true},
	{layout: time.RFC3339, hasTime: true, zoned: true},
	{layout: "2006-01-02T15:04:05", hasTime: true},
	{layout: "2006-01-02T15:04", hasTime: true},
	{layout: "2006-01-02 15:04:05", hasTime: true},
	{layout: "2006-01-02 15:04", hasTime: true},
	{layout: "2/1/2006 15:04:05", hasTime: true},
	{layout: "2/1/2006 15:04", hasTime: true},
	{layout: "2/1/2006"},
	{layout: "2006-01-02"},
}

// Serial numbers outside this range are not treated as spreadsheet dates
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465 // 9999-12-31
)

// Scheduler resolves the earliest instant a recipient may be sent
type Scheduler struct {
	loc *time.Location
}

// NewScheduler creates a scheduler interpreting zone-less dates in loc
func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{loc: loc}
}

// Location returns the zone used for dates without an offset
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// EligibleAt returns when r becomes due. Immediate campaigns and recipients
// whose date could not be resolved are due at the campaign start.
func (s *Scheduler) EligibleAt(c *models.Campaign, r *models.Recipient) time.Time {
	start := campaignStart(c)

	switch c.ScheduleMode {
	case models.ScheduleModeFixedTime:
		if c.ScheduledAt != nil {
			return *c.ScheduledAt
		}
	case models.ScheduleModePerRecipientDate:
		if r.ScheduledAt != nil {
			return *r.ScheduledAt
		}
		if at, ok := s.ResolveRecipientDate(c, r.CustomData); ok {
			return at
		}
	}

	return start
}

// ResolveRecipientDate reads the campaign's date column from data and parses it.
// The default send time applies only when the cell carries no time of day.
func (s *Scheduler) ResolveRecipientDate(c *models.Campaign, data models.CustomData) (time.Time, bool) {
	if c.ScheduleMode != models.ScheduleModePerRecipientDate || c.DateColumn == nil {
		return time.Time{}, false
	}

	raw, ok := data.Get(mailmerge.Canonicalize(*c.DateColumn))
	if !ok {
		return time.Time{}, false
	}

	at, hasTime, ok := s.ParseDate(raw)
	if !ok {
		return time.Time{}, false
	}

	if !hasTime && c.DefaultSendTime != nil {
		if h, m, sec, err := utils.ParseClock(*c.DefaultSendTime); err == nil {
			at = time.Date(at.Year(), at.Month(), at.Day(), h, m, sec, 0, at.Location())
		}
	}

	return at, true
}

// ParseDate parses one date cell and reports whether it carried a time of day
func (s *Scheduler) ParseDate(raw string) (time.Time, bool, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false, false
	}

	for _, l := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if l.zoned {
			t, err = time.Parse(l.layout, value)
		} else {
			t, err = time.ParseInLocation(l.layout, value, s.loc)
		}
		if err == nil {
			return t, l.hasTime, true
		}
	}

	return s.parseExcelSerial(value)
}

// parseExcelSerial accepts the numeric form spreadsheets store dates in
func (s *Scheduler) parseExcelSerial(value string) (time.Time, bool, bool) {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, false, false
	}

	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false, false
	}

	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, s.loc)
	_, frac := math.Modf(serial)
	return local, frac != 0, true
}

func campaignStart(c *models.Campaign) time.Time {
	if c.StartedAt != nil {
		return *c.StartedAt
	}
	return c.CreatedAt
}
