package schedule

import (
	"fmt"
	"strings"

	"schedview/internal/model"
)

// Category is the derived classification of a session. It is never
// stored; Classify recomputes it on demand.
type Category string

const (
	Keynote  Category = "keynote"
	Workshop Category = "workshop"
	Talk     Category = "talk"
)

// Categories lists every category in lane order.
var Categories = []Category{Keynote, Talk, Workshop}

const workshopPrefix = "workshop:"

// Classify derives a session's category: plenary sessions are keynotes
// whatever their title, then a case-insensitive "workshop:" title prefix
// marks a workshop, and everything else is a talk.
func Classify(s model.Session) Category {
	if s.IsPlenum {
		return Keynote
	}
	if len(s.Title) >= len(workshopPrefix) && strings.EqualFold(s.Title[:len(workshopPrefix)], workshopPrefix) {
		return Workshop
	}
	return Talk
}

// ParseCategory maps a control value to a Category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Keynote, Workshop, Talk:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown session type %q", ErrInvalidCriteria, s)
	}
}

func (c Category) String() string { return string(c) }

func (c Category) lane() int {
	switch c {
	case Keynote:
		return 0
	case Talk:
		return 1
	default:
		return 2
	}
}
