package render

import (
	"io"
	"strings"

	"schedview/internal/model"
	"schedview/internal/schedule"
)

// LoadErrorMessage is the single user-visible text for a failed load.
const LoadErrorMessage = "Failed to load schedule. Please try again later."

// Renderer turns a render tree into output. Implementations hold no
// business logic.
type Renderer interface {
	Render(w io.Writer, p Page) error
	ContentType() string
}

// Page is the complete render tree for one request.
type Page struct {
	Title string `json:"title"`
	Theme string `json:"theme"`
	// Self is the request path+query, used by forms to come back here.
	Self string `json:"-"`

	// Error is set when the schedule could not be loaded; Days and
	// Filters are then empty and must not be rendered.
	Error string `json:"error,omitempty"`

	Filters Filters `json:"filters"`

	// Applied is false when no filter is active (the whole schedule).
	Applied bool      `json:"applied"`
	Count   int       `json:"count"`
	Days    []DayView `json:"days"`
}

// Empty reports a filtered result with no sessions.
func (p Page) Empty() bool {
	return p.Error == "" && p.Applied && p.Count == 0
}

// Filters describes the filter controls and their current values.
type Filters struct {
	Rooms       []Option `json:"rooms"`
	Days        []Option `json:"days"`
	Types       []Option `json:"types"`
	Query       string   `json:"query"`
	PanelHidden bool     `json:"panel_hidden"`
}

// Option is one selectable control value.
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

type DayView struct {
	Key     string     `json:"key"`
	Heading string     `json:"heading"`
	Slots   []SlotView `json:"slots"`
}

type SlotView struct {
	Label string     `json:"label"`
	Lanes []LaneView `json:"lanes"`
}

type LaneView struct {
	Category string `json:"category"`
	Grid     bool   `json:"grid"`
	Cards    []Card `json:"cards"`
}

// Card is one session as displayed. Description and speaker taglines are
// the expanded-state content.
type Card struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	TimeRange   string        `json:"time_range"`
	Room        string        `json:"room,omitempty"`
	Side        string        `json:"side,omitempty"`
	Category    string        `json:"category"`
	Description string        `json:"description,omitempty"`
	Speakers    []SpeakerView `json:"speakers"`
	Classes     string        `json:"-"`
}

type SpeakerView struct {
	Name    string `json:"name"`
	TagLine string `json:"tagline,omitempty"`
	Image   string `json:"image,omitempty"`
}

var typeLabels = map[schedule.Category]string{
	schedule.Keynote:  "Keynote",
	schedule.Talk:     "Talk",
	schedule.Workshop: "Workshop",
}

// Projector maps schedule views to render trees.
type Projector struct {
	Title  string
	Format Format
}

// ErrorPage is the load-failure state.
func (p Projector) ErrorPage(theme string) Page {
	return Page{
		Title:   p.Title,
		Theme:   theme,
		Error:   LoadErrorMessage,
		Filters: Filters{Rooms: []Option{}, Days: []Option{}, Types: []Option{}},
		Days:    []DayView{},
	}
}

// Page projects a filtered, grouped view.
func (p Projector) Page(view schedule.View, theme string, panelHidden bool) Page {
	page := Page{
		Title:   p.Title,
		Theme:   theme,
		Filters: p.filters(view, panelHidden),
		Applied: view.Result.Applied,
		Count:   view.Tree.Len(),
		Days:    make([]DayView, 0, len(view.Tree.Days)),
	}

	for _, d := range view.Tree.Days {
		dv := DayView{Key: d.Day, Heading: p.dayHeading(d.Day), Slots: make([]SlotView, 0, len(d.Slots))}
		for _, s := range d.Slots {
			sv := SlotView{Label: p.Format.Time(s.Start), Lanes: make([]LaneView, 0, len(s.Lanes))}
			for _, l := range s.Lanes {
				lv := LaneView{Category: string(l.Category), Grid: l.Grid, Cards: make([]Card, 0, len(l.Sessions))}
				for _, session := range l.Sessions {
					lv.Cards = append(lv.Cards, p.Card(view.Doc, session))
				}
				sv.Lanes = append(sv.Lanes, lv)
			}
			dv.Slots = append(dv.Slots, sv)
		}
		page.Days = append(page.Days, dv)
	}
	return page
}

// Card projects one session. Unresolved room and speaker references are
// omitted.
func (p Projector) Card(doc *model.Document, s model.Session) Card {
	cat := schedule.Classify(s)
	c := Card{
		ID:          string(s.ID),
		Title:       s.Title,
		TimeRange:   p.Format.Range(s.StartsAt, s.EndsAt),
		Category:    string(cat),
		Description: s.Description,
	}
	if room, ok := doc.Room(s.RoomID); ok {
		c.Room = room.Name
		c.Side = roomSide(room.Name)
	}
	speakers := doc.SpeakersOf(s)
	c.Speakers = make([]SpeakerView, 0, len(speakers))
	for _, sp := range speakers {
		c.Speakers = append(c.Speakers, SpeakerView{Name: sp.FullName, TagLine: sp.TagLine, Image: sp.ProfilePicture})
	}
	c.Classes = cardClasses(cat, c.Side)
	return c
}

func (p Projector) filters(view schedule.View, panelHidden bool) Filters {
	c := view.Criteria
	f := Filters{
		Rooms:       make([]Option, 0, len(view.Doc.Rooms())),
		Days:        make([]Option, 0, len(view.Doc.Days())),
		Types:       make([]Option, 0, len(schedule.Categories)),
		Query:       c.Query,
		PanelHidden: panelHidden,
	}

	for _, r := range view.Doc.Rooms() {
		f.Rooms = append(f.Rooms, Option{Value: string(r.ID), Label: r.Name, Selected: r.ID == c.Room})
	}
	for _, d := range view.Doc.Days() {
		f.Days = append(f.Days, Option{Value: d, Label: p.dayHeading(d), Selected: d == c.Day})
	}
	// No restriction shows every toggle checked; see HasCategory.
	for _, cat := range schedule.Categories {
		f.Types = append(f.Types, Option{Value: string(cat), Label: typeLabels[cat], Selected: c.HasCategory(cat)})
	}
	return f
}

func (p Projector) dayHeading(day string) string {
	t, err := parseDay(day)
	if err != nil {
		return day
	}
	return p.Format.Day(t)
}

// roomSide tags rooms whose name mentions a wing of the venue.
func roomSide(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "west"):
		return "west"
	case strings.Contains(lower, "east"):
		return "east"
	default:
		return ""
	}
}

func cardClasses(cat schedule.Category, side string) string {
	classes := []string{"session-card", "session-" + string(cat)}
	if cat == schedule.Keynote {
		classes = append(classes, "plenum")
	}
	if side != "" {
		classes = append(classes, "room-"+side)
	}
	return strings.Join(classes, " ")
}
