package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"schedview/internal/model"
	"schedview/internal/schedule"
)

// ExportOptions controls calendar-level metadata.
type ExportOptions struct {
	// Name becomes X-WR-CALNAME.
	Name string
	// Domain qualifies event UIDs (session-<id>@<domain>).
	Domain string
	// Timezone is advertised as X-WR-TIMEZONE; event times are UTC.
	Timezone string
	// Now stamps DTSTAMP; zero means time.Now().
	Now time.Time
}

// Export serializes sessions as an iCalendar feed, one VEVENT per session
// in the given order. Room and speaker references that do not resolve
// are left out.
func Export(doc *model.Document, sessions []model.Session, opts ExportOptions) string {
	if opts.Domain == "" {
		opts.Domain = "schedview.local"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//schedview//conference schedule//EN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	for _, s := range sessions {
		ev := cal.AddEvent("session-" + string(s.ID) + "@" + opts.Domain)
		ev.SetDtStampTime(opts.Now)
		ev.SetStartAt(s.StartsAt)
		ev.SetEndAt(s.EndsAt)
		ev.SetSummary(s.Title)
		ev.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(schedule.Classify(s))))

		if room, ok := doc.Room(s.RoomID); ok {
			ev.SetLocation(room.Name)
		}
		if desc := description(doc, s); desc != "" {
			ev.SetDescription(desc)
		}
	}

	return cal.Serialize()
}

func description(doc *model.Document, s model.Session) string {
	var parts []string
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	speakers := doc.SpeakersOf(s)
	if len(speakers) > 0 {
		names := make([]string, 0, len(speakers))
		for _, sp := range speakers {
			names = append(names, sp.FullName)
		}
		parts = append(parts, "Speakers: "+strings.Join(names, ", "))
	}
	return strings.Join(parts, "\n\n")
}
