package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"schedview/internal/model"
)

// ErrInvalidCriteria wraps malformed filter input.
var ErrInvalidCriteria = errors.New("invalid filter criteria")

// Criteria is the combined set of user-selected constraints. The zero
// value applies no filter at all.
type Criteria struct {
	// Room restricts to one room; empty means any room.
	Room model.ID
	// Day restricts to one YYYY-MM-DD date; empty means any day.
	Day string
	// Categories restricts to the listed categories. An empty set means
	// no category restriction, not "exclude everything".
	Categories []Category
	// Query is matched as a case-insensitive substring of title,
	// description or any speaker name.
	Query string
}

// NewCriteria builds normalized Criteria from raw control values and
// rejects malformed days and unknown categories.
func NewCriteria(room, day string, categories []string, query string) (Criteria, error) {
	c := Criteria{
		Room:  model.NormalizeID(room),
		Day:   strings.TrimSpace(day),
		Query: strings.TrimSpace(query),
	}
	if c.Day != "" {
		if _, err := time.Parse(model.DayLayout, c.Day); err != nil {
			return Criteria{}, fmt.Errorf("%w: day %q is not YYYY-MM-DD", ErrInvalidCriteria, day)
		}
	}
	seen := make(map[Category]bool, len(categories))
	for _, raw := range categories {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		cat, err := ParseCategory(raw)
		if err != nil {
			return Criteria{}, err
		}
		if !seen[cat] {
			seen[cat] = true
			c.Categories = append(c.Categories, cat)
		}
	}
	return c, nil
}

// IsZero reports whether no filter is applied.
func (c Criteria) IsZero() bool {
	return c.Room == "" && c.Day == "" && len(c.Categories) == 0 && strings.TrimSpace(c.Query) == ""
}

// HasCategory reports whether cat passes the category predicate.
func (c Criteria) HasCategory(cat Category) bool {
	if len(c.Categories) == 0 {
		return true
	}
	for _, x := range c.Categories {
		if x == cat {
			return true
		}
	}
	return false
}

// Result is the visible subset for one Criteria.
type Result struct {
	Sessions []model.Session
	// Applied is false when no filter was applied; Sessions is then the
	// whole document. Applied with zero Sessions is a real empty result.
	Applied bool
}

// Filter returns the sessions of doc that satisfy every active predicate
// of c, in document order.
func Filter(doc *model.Document, c Criteria) Result {
	all := doc.Sessions()
	if c.IsZero() {
		out := make([]model.Session, len(all))
		copy(out, all)
		return Result{Sessions: out}
	}

	query := fold(strings.TrimSpace(c.Query))

	out := make([]model.Session, 0, len(all))
	for _, s := range all {
		if c.Room != "" && s.RoomID != c.Room {
			continue
		}
		if c.Day != "" && s.Day != c.Day {
			continue
		}
		if !c.HasCategory(Classify(s)) {
			continue
		}
		if query != "" && !matchesQuery(doc, s, query) {
			continue
		}
		out = append(out, s)
	}
	return Result{Sessions: out, Applied: true}
}

// matchesQuery expects query to be folded already.
func matchesQuery(doc *model.Document, s model.Session, query string) bool {
	if s.Title != "" && strings.Contains(fold(s.Title), query) {
		return true
	}
	if s.Description != "" && strings.Contains(fold(s.Description), query) {
		return true
	}
	for _, sp := range doc.SpeakersOf(s) {
		if sp.FullName != "" && strings.Contains(fold(sp.FullName), query) {
			return true
		}
	}
	return false
}

// fold applies Unicode case folding. A Caser holds state, so each call
// gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
