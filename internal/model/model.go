package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// ID is a canonical entity identifier. The event-data source mixes numeric
// and string identifiers (rooms are numbers, sessions are numeric strings,
// speakers are UUIDs); every ID is normalized once, so comparisons are
// plain string equality.
type ID string

// NormalizeID returns the canonical form of an identifier. Plain decimal
// integers lose their leading zeros ("07" and 7 both become "7"); anything
// else, including fractions and exponent forms, is trimmed and kept
// verbatim. No precision is lost: digits are never parsed into a number.
func NormalizeID(s string) ID {
	s = strings.TrimSpace(s)
	if s == "" || !allDigits(s) {
		return ID(s)
	}
	if t := strings.TrimLeft(s, "0"); t != "" {
		return ID(t)
	}
	return "0"
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = NormalizeID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = NormalizeID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Room is a physical (or virtual) track location.
type Room struct {
	ID   ID
	Name string
}

// Speaker is a person presenting one or more sessions.
type Speaker struct {
	ID             ID
	FullName       string
	TagLine        string
	ProfilePicture string
}

// Session is a single scheduled item with a time range.
type Session struct {
	ID          ID
	Title       string
	Description string

	// StartsAt / EndsAt are in the configured event timezone.
	StartsAt time.Time
	EndsAt   time.Time

	// Day is the YYYY-MM-DD date component of the source start timestamp.
	Day string

	// RoomID may be empty or point at a room missing from the document.
	RoomID ID

	// SpeakerIDs are in display order; entries may not resolve.
	SpeakerIDs []ID

	// IsPlenum marks a keynote/plenary session spanning all rooms.
	IsPlenum bool

	// Order is the session's position in the source document.
	Order int
}

// DayLayout is the layout of Session.Day and day filter values.
const DayLayout = "2006-01-02"

// Document is the read-only schedule snapshot. Build it with NewDocument
// and never mutate the slices it returns.
type Document struct {
	rooms    []Room
	speakers []Speaker
	sessions []Session

	roomByID    map[ID]int
	speakerByID map[ID]int
	days        []string
}

// NewDocument indexes rooms and speakers and assigns each session its
// document order. The first occurrence of a duplicated ID wins.
func NewDocument(rooms []Room, speakers []Speaker, sessions []Session) *Document {
	d := &Document{
		rooms:       rooms,
		speakers:    speakers,
		sessions:    make([]Session, len(sessions)),
		roomByID:    make(map[ID]int, len(rooms)),
		speakerByID: make(map[ID]int, len(speakers)),
	}
	for i, r := range rooms {
		if _, dup := d.roomByID[r.ID]; !dup {
			d.roomByID[r.ID] = i
		}
	}
	for i, s := range speakers {
		if _, dup := d.speakerByID[s.ID]; !dup {
			d.speakerByID[s.ID] = i
		}
	}

	seen := make(map[string]struct{})
	for i, s := range sessions {
		s.Order = i
		d.sessions[i] = s
		if s.Day == "" {
			continue
		}
		if _, ok := seen[s.Day]; !ok {
			seen[s.Day] = struct{}{}
			d.days = append(d.days, s.Day)
		}
	}
	SortDays(d.days)

	return d
}

func (d *Document) Rooms() []Room       { return d.rooms }
func (d *Document) Speakers() []Speaker { return d.speakers }
func (d *Document) Sessions() []Session { return d.sessions }

// Days returns the distinct session days in ascending date order.
func (d *Document) Days() []string { return d.days }

// Room resolves a room reference.
func (d *Document) Room(id ID) (Room, bool) {
	i, ok := d.roomByID[id]
	if !ok || id == "" {
		return Room{}, false
	}
	return d.rooms[i], true
}

// Speaker resolves a speaker reference.
func (d *Document) Speaker(id ID) (Speaker, bool) {
	i, ok := d.speakerByID[id]
	if !ok || id == "" {
		return Speaker{}, false
	}
	return d.speakers[i], true
}

// SpeakersOf returns the session's speakers in listed order, skipping
// references that do not resolve.
func (d *Document) SpeakersOf(s Session) []Speaker {
	out := make([]Speaker, 0, len(s.SpeakerIDs))
	for _, id := range s.SpeakerIDs {
		if sp, ok := d.Speaker(id); ok {
			out = append(out, sp)
		}
	}
	return out
}

// SortDays orders YYYY-MM-DD strings by their date value.
func SortDays(days []string) {
	sort.SliceStable(days, func(i, j int) bool { return DayLess(days[i], days[j]) })
}

// DayLess compares two YYYY-MM-DD strings by date value. Unparseable
// entries sort last, lexically among themselves.
func DayLess(a, b string) bool {
	at, aerr := time.Parse(DayLayout, a)
	bt, berr := time.Parse(DayLayout, b)
	switch {
	case aerr == nil && berr == nil:
		return at.Before(bt)
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}
