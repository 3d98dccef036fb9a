package schedule

import (
	"sort"
	"time"

	"schedview/internal/model"
)

// Tree is the ordered presentation structure: day → time slot → lane.
type Tree struct {
	Days []DayGroup
}

// DayGroup holds every slot starting on one calendar day.
type DayGroup struct {
	// Day is the YYYY-MM-DD key.
	Day string
	// Date is Day parsed in the sessions' location; zero if Day is not a
	// valid date.
	Date  time.Time
	Slots []Slot
}

// Slot groups sessions sharing a start time (to the minute).
type Slot struct {
	Start time.Time
	Lanes []Lane
}

// Lane is one render lane inside a slot. Talks of a slot share one lane;
// keynotes and workshops get a lane each.
type Lane struct {
	Category Category
	Sessions []model.Session
	// Grid is set for a talk lane holding more than one talk.
	Grid bool
}

// Len counts the sessions in the tree.
func (t Tree) Len() int {
	n := 0
	for _, d := range t.Days {
		for _, s := range d.Slots {
			for _, l := range s.Lanes {
				n += len(l.Sessions)
			}
		}
	}
	return n
}

// Sessions flattens the tree in presentation order.
func (t Tree) Sessions() []model.Session {
	out := make([]model.Session, 0, t.Len())
	for _, d := range t.Days {
		for _, s := range d.Slots {
			for _, l := range s.Lanes {
				out = append(out, l.Sessions...)
			}
		}
	}
	return out
}

// Group partitions sessions by day, then start time, then category lane.
// Days and slots are chronological; sessions with identical keys keep
// their document order.
func Group(sessions []model.Session) Tree {
	sorted := make([]model.Session, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Day != b.Day {
			return model.DayLess(a.Day, b.Day)
		}
		as, bs := slotKey(a.StartsAt), slotKey(b.StartsAt)
		if !as.Equal(bs) {
			return as.Before(bs)
		}
		return a.Order < b.Order
	})

	var tree Tree
	for _, s := range sorted {
		if n := len(tree.Days); n == 0 || tree.Days[n-1].Day != s.Day {
			tree.Days = append(tree.Days, DayGroup{Day: s.Day, Date: dayDate(s)})
		}
		day := &tree.Days[len(tree.Days)-1]

		start := slotKey(s.StartsAt)
		if n := len(day.Slots); n == 0 || !day.Slots[n-1].Start.Equal(start) {
			day.Slots = append(day.Slots, Slot{Start: start})
		}
		slot := &day.Slots[len(day.Slots)-1]
		slot.add(s)
	}

	for d := range tree.Days {
		for i := range tree.Days[d].Slots {
			slot := &tree.Days[d].Slots[i]
			sort.SliceStable(slot.Lanes, func(a, b int) bool {
				return slot.Lanes[a].Category.lane() < slot.Lanes[b].Category.lane()
			})
			for l := range slot.Lanes {
				lane := &slot.Lanes[l]
				lane.Grid = lane.Category == Talk && len(lane.Sessions) > 1
			}
		}
	}
	return tree
}

func (s *Slot) add(session model.Session) {
	cat := Classify(session)
	if cat == Talk {
		for i := range s.Lanes {
			if s.Lanes[i].Category == Talk {
				s.Lanes[i].Sessions = append(s.Lanes[i].Sessions, session)
				return
			}
		}
	}
	s.Lanes = append(s.Lanes, Lane{Category: cat, Sessions: []model.Session{session}})
}

func slotKey(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

func dayDate(s model.Session) time.Time {
	loc := s.StartsAt.Location()
	d, err := time.ParseInLocation(model.DayLayout, s.Day, loc)
	if err != nil {
		return time.Time{}
	}
	return d
}
