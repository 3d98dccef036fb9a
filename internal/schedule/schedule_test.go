package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedview/internal/model"
)

func at(day string, hh, mm int) time.Time {
	d, err := time.Parse(model.DayLayout, day)
	if err != nil {
		panic(err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hh, mm, 0, 0, time.UTC)
}

func session(id, title, day string, hh, mm int, room model.ID, plenum bool, speakers ...model.ID) model.Session {
	start := at(day, hh, mm)
	return model.Session{
		ID:         model.ID(id),
		Title:      title,
		StartsAt:   start,
		EndsAt:     start.Add(45 * time.Minute),
		Day:        day,
		RoomID:     room,
		SpeakerIDs: speakers,
		IsPlenum:   plenum,
	}
}

func fixtureDoc() *model.Document {
	rustTalk := session("4", "Fearless systems", "2024-05-01", 10, 0, "2", false)
	rustTalk.Description = "Why Rust is taking over."

	return model.NewDocument(
		[]model.Room{{ID: "1", Name: "Main Hall West"}, {ID: "2", Name: "Room East"}},
		[]model.Speaker{{ID: "a", FullName: "Ada Lovelace"}, {ID: "g", FullName: "Grace Hopper"}},
		[]model.Session{
			session("1", "Day two closing", "2024-05-02", 16, 0, "1", true),
			session("2", "Opening", "2024-05-01", 9, 0, "1", true, "a"),
			session("3", "WORKSHOP: Intro to Go", "2024-05-01", 10, 0, "1", false, "g", "ghost"),
			rustTalk,
			session("5", "Testing in anger", "2024-05-01", 10, 0, "99", false),
			session("6", "Late talk", "2024-05-01", 14, 0, "2", false, "a"),
			session("7", "Sunday in October", "2024-10-06", 9, 0, "2", false),
			session("8", "Saturday in September", "2024-09-28", 9, 0, "2", false),
		},
	)
}

func ids(sessions []model.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, string(s.ID))
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		plenum bool
		want   Category
	}{
		{"plenary opening", "Opening", true, Keynote},
		{"plenary beats workshop prefix", "Workshop: keynote-ish", true, Keynote},
		{"workshop prefix", "Workshop: Intro to X", false, Workshop},
		{"workshop upper case", "WORKSHOP:Deep dive", false, Workshop},
		{"workshop without colon", "Workshop Intro", false, Talk},
		{"prefix not at start", "My Workshop: notes", false, Talk},
		{"empty title", "", false, Talk},
		{"short title", "Work", false, Talk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.Session{Title: tt.title, IsPlenum: tt.plenum}
			assert.Equal(t, tt.want, Classify(s))
			assert.Equal(t, Classify(s), Classify(s))
		})
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Keynote ")
	require.NoError(t, err)
	assert.Equal(t, Keynote, c)

	_, err = ParseCategory("panel")
	assert.ErrorIs(t, err, ErrInvalidCriteria)
}

func TestNewCriteria(t *testing.T) {
	c, err := NewCriteria(" 07 ", "2024-05-01", []string{"talk", "", "TALK", "workshop"}, "  rust ")
	require.NoError(t, err)
	assert.Equal(t, model.ID("7"), c.Room)
	assert.Equal(t, []Category{Talk, Workshop}, c.Categories)
	assert.Equal(t, "rust", c.Query)

	_, err = NewCriteria("", "05/01/2024", nil, "")
	assert.ErrorIs(t, err, ErrInvalidCriteria)

	_, err = NewCriteria("", "", []string{"panel"}, "")
	assert.ErrorIs(t, err, ErrInvalidCriteria)

	zero, err := NewCriteria("", "", nil, "   ")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestFilterPredicates(t *testing.T) {
	doc := fixtureDoc()

	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"room", Criteria{Room: "1"}, []string{"1", "2", "3"}},
		{"day", Criteria{Day: "2024-05-01"}, []string{"2", "3", "4", "5", "6"}},
		{"categories", Criteria{Categories: []Category{Keynote, Workshop}}, []string{"1", "2", "3"}},
		{"query in description", Criteria{Query: "rust"}, []string{"4"}},
		{"query in speaker name", Criteria{Query: "LOVELACE"}, []string{"2", "6"}},
		{"query ignores unresolved speaker", Criteria{Query: "ghost"}, []string{}},
		{"combined", Criteria{Room: "2", Day: "2024-05-01", Categories: []Category{Talk}, Query: "late"}, []string{"6"}},
		{"room with no sessions", Criteria{Room: "42"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Filter(doc, tt.criteria)
			assert.True(t, res.Applied)
			assert.Equal(t, tt.want, ids(res.Sessions))

			for _, s := range res.Sessions {
				if tt.criteria.Room != "" {
					assert.Equal(t, tt.criteria.Room, s.RoomID)
				}
				if tt.criteria.Day != "" {
					assert.Equal(t, tt.criteria.Day, s.Day)
				}
				assert.True(t, tt.criteria.HasCategory(Classify(s)))
			}

			again := Filter(doc, tt.criteria)
			assert.Equal(t, res, again, "filter is idempotent")
		})
	}
}

func TestFilterZeroCriteriaIsDistinctFromEmptyResult(t *testing.T) {
	doc := fixtureDoc()

	all := Filter(doc, Criteria{})
	assert.False(t, all.Applied)
	assert.Len(t, all.Sessions, len(doc.Sessions()))

	none := Filter(doc, Criteria{Room: "42"})
	assert.True(t, none.Applied)
	assert.Empty(t, none.Sessions)
}

func TestFilterMissingFieldsNeverMatch(t *testing.T) {
	doc := model.NewDocument(nil, nil, []model.Session{session("1", "", "2024-05-01", 9, 0, "", false)})
	res := Filter(doc, Criteria{Query: "anything"})
	assert.Empty(t, res.Sessions)
}

func TestFilterUnicodeFolding(t *testing.T) {
	s := session("1", "STRASSE und Straße", "2024-05-01", 9, 0, "", false)
	doc := model.NewDocument(nil, nil, []model.Session{s})
	assert.Len(t, Filter(doc, Criteria{Query: "straße"}).Sessions, 1)
}

func TestGroupOrdering(t *testing.T) {
	doc := fixtureDoc()
	tree := Group(Filter(doc, Criteria{}).Sessions)

	var days []string
	for _, d := range tree.Days {
		days = append(days, d.Day)
	}
	assert.Equal(t, []string{"2024-05-01", "2024-05-02", "2024-09-28", "2024-10-06"}, days)

	first := tree.Days[0]
	require.Len(t, first.Slots, 3)
	assert.Equal(t, 9, first.Slots[0].Start.Hour())
	assert.Equal(t, 10, first.Slots[1].Start.Hour())
	assert.Equal(t, 14, first.Slots[2].Start.Hour())
	assert.Equal(t, 2024, first.Date.Year())

	ten := first.Slots[1]
	require.Len(t, ten.Lanes, 2)
	assert.Equal(t, Talk, ten.Lanes[0].Category)
	assert.True(t, ten.Lanes[0].Grid)
	assert.Equal(t, []string{"4", "5"}, ids(ten.Lanes[0].Sessions))
	assert.Equal(t, Workshop, ten.Lanes[1].Category)
	assert.False(t, ten.Lanes[1].Grid)

	assert.False(t, first.Slots[2].Lanes[0].Grid, "single talk is not a grid")
}

func TestGroupSameStartKeepsDocumentOrder(t *testing.T) {
	doc := model.NewDocument(nil, nil, []model.Session{
		session("b", "Second in doc? no, first", "2024-05-01", 9, 0, "", false),
		session("a", "Other", "2024-05-01", 9, 0, "", false),
		session("k1", "Keynote one", "2024-05-01", 9, 0, "", true),
		session("k2", "Keynote two", "2024-05-01", 9, 0, "", true),
	})
	tree := Group(Filter(doc, Criteria{}).Sessions)

	require.Len(t, tree.Days, 1)
	require.Len(t, tree.Days[0].Slots, 1)
	lanes := tree.Days[0].Slots[0].Lanes
	require.Len(t, lanes, 3)
	assert.Equal(t, []string{"k1"}, ids(lanes[0].Sessions))
	assert.Equal(t, []string{"k2"}, ids(lanes[1].Sessions))
	assert.Equal(t, []string{"b", "a"}, ids(lanes[2].Sessions))
}

func TestGroupRoundTrip(t *testing.T) {
	doc := fixtureDoc()
	for _, c := range []Criteria{{}, {Day: "2024-05-01"}, {Room: "2"}, {Room: "42"}} {
		res := Filter(doc, c)
		tree := Group(res.Sessions)
		assert.Equal(t, len(res.Sessions), tree.Len())
		assert.ElementsMatch(t, ids(res.Sessions), ids(tree.Sessions()))
	}
}

func TestStateApply(t *testing.T) {
	doc := fixtureDoc()
	calls := 0
	ok := Load(context.Background(), LoaderFunc(func(context.Context) (*model.Document, error) {
		calls++
		return doc, nil
	}))
	require.True(t, ok.Ready())
	assert.Equal(t, 1, calls)

	view, err := ok.Apply(Criteria{Room: "42"})
	require.NoError(t, err)
	assert.True(t, view.Result.Applied)
	assert.Empty(t, view.Tree.Days)

	boom := errors.New("HTTP 500")
	failed := Load(context.Background(), LoaderFunc(func(context.Context) (*model.Document, error) {
		return nil, boom
	}))
	assert.False(t, failed.Ready())
	_, err = failed.Apply(Criteria{})
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, err, boom)

	nilDoc := Load(context.Background(), LoaderFunc(func(context.Context) (*model.Document, error) {
		return nil, nil
	}))
	assert.False(t, nilDoc.Ready())
}
