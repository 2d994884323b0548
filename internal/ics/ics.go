// Package ics renders a user's slots as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/roach88/slotswap/internal/domain"
)

const productID = "-//slotswap//EN"

// ContentType is the MIME type of an encoded feed.
const ContentType = "text/calendar; charset=utf-8"

// PropSlotStatus carries the slot status on each VEVENT.
const PropSlotStatus = "X-SLOTSWAP-STATUS"

// Encode writes events as one VCALENDAR. stamp is used for every DTSTAMP so
// repeated exports of unchanged data are byte-identical.
func Encode(w io.Writer, events []domain.Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, ev := range events {
		cal.Children = append(cal.Children, toVEvent(ev, stamp))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

// UID is the stable iCalendar UID of an event.
func UID(eventID int64) string {
	return fmt.Sprintf("event-%d@slotswap", eventID)
}

func toVEvent(ev domain.Event, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, UID(ev.ID))
	ve.Props.SetText(ical.PropSummary, ev.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, ev.StartTime.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.EndTime.UTC())
	ve.Props.SetDateTime(ical.PropLastModified, ev.UpdatedAt.UTC())
	ve.Props.SetText(PropSlotStatus, string(ev.Status))

	// Offered slots are shown as free time to other calendar clients.
	transp := "OPAQUE"
	if ev.Status == domain.StatusSwappable {
		transp = "TRANSPARENT"
	}
	ve.Props.SetText(ical.PropTransparency, transp)
	return ve
}
