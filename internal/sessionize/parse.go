package sessionize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	appLog "schedview/internal/log"
	"schedview/internal/model"
)

// rawDocument mirrors the inbound "view/All" payload. Only the fields the
// schedule uses are decoded.
type rawDocument struct {
	Rooms    []rawRoom    `json:"rooms"`
	Sessions []rawSession `json:"sessions"`
	Speakers []rawSpeaker `json:"speakers"`
}

type rawRoom struct {
	ID   model.ID `json:"id"`
	Name string   `json:"name"`
}

type rawSpeaker struct {
	ID             model.ID `json:"id"`
	FullName       string   `json:"fullName"`
	TagLine        *string  `json:"tagLine"`
	ProfilePicture *string  `json:"profilePicture"`
}

type rawSession struct {
	ID              model.ID   `json:"id"`
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	StartsAt        string     `json:"startsAt"`
	EndsAt          string     `json:"endsAt"`
	RoomID          model.ID   `json:"roomId"`
	Speakers        []model.ID `json:"speakers"`
	IsPlenumSession bool       `json:"isPlenumSession"`
}

// Layouts accepted for startsAt/endsAt. Sessionize emits local wall-clock
// time without an offset; the offset forms are accepted as well.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z07:00",
}

// Parse decodes a schedule payload into an immutable Document.
//
//   - Timestamps without an offset are interpreted in loc (UTC if nil).
//   - A session's Day is the date of its start in loc, so offset
//     timestamps near midnight land on the day they are shown under.
//   - A session with an unparseable timestamp is logged and skipped; the
//     rest of the document still loads.
//   - Missing collections decode as empty; a body that is not a JSON
//     object is an error.
func Parse(body []byte, loc *time.Location) (*model.Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty schedule body")
	}
	if loc == nil {
		loc = time.UTC
	}

	var raw rawDocument
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}

	rooms := make([]model.Room, 0, len(raw.Rooms))
	for _, r := range raw.Rooms {
		rooms = append(rooms, model.Room{ID: r.ID, Name: r.Name})
	}

	speakers := make([]model.Speaker, 0, len(raw.Speakers))
	for _, s := range raw.Speakers {
		speakers = append(speakers, model.Speaker{
			ID:             s.ID,
			FullName:       s.FullName,
			TagLine:        deref(s.TagLine),
			ProfilePicture: deref(s.ProfilePicture),
		})
	}

	sessions := make([]model.Session, 0, len(raw.Sessions))
	for i, rs := range raw.Sessions {
		s, err := convertSession(rs, loc)
		if err != nil {
			appLog.Warn("skipping session with bad timestamps", "index", i, "id", rs.ID, "err", err)
			continue
		}
		sessions = append(sessions, s)
	}

	return model.NewDocument(rooms, speakers, sessions), nil
}

func convertSession(rs rawSession, loc *time.Location) (model.Session, error) {
	start, err := parseTimestamp(rs.StartsAt, loc)
	if err != nil {
		return model.Session{}, fmt.Errorf("startsAt: %w", err)
	}
	end, err := parseTimestamp(rs.EndsAt, loc)
	if err != nil {
		return model.Session{}, fmt.Errorf("endsAt: %w", err)
	}

	speakerIDs := make([]model.ID, 0, len(rs.Speakers))
	for _, id := range rs.Speakers {
		if id != "" {
			speakerIDs = append(speakerIDs, id)
		}
	}

	return model.Session{
		ID:          rs.ID,
		Title:       deref(rs.Title),
		Description: deref(rs.Description),
		StartsAt:    start,
		EndsAt:      end,
		Day:         start.Format(model.DayLayout),
		RoomID:      rs.RoomID,
		SpeakerIDs:  speakerIDs,
		IsPlenum:    rs.IsPlenumSession,
	}, nil
}

func parseTimestamp(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, v, loc)
		if err == nil {
			return t.In(loc), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
