package render

import (
	"time"

	"golang.org/x/text/language"

	"schedview/internal/model"
)

// Format is a fixed, locale-derived layout for day headings and times.
type Format struct {
	Tag        language.Tag
	DayLayout  string
	TimeLayout string
}

var formats = []Format{
	{Tag: language.BritishEnglish, DayLayout: "Monday 2 January 2006", TimeLayout: "15:04"},
	{Tag: language.AmericanEnglish, DayLayout: "Monday, January 2, 2006", TimeLayout: "3:04 PM"},
}

var formatMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(formats))
	for i, f := range formats {
		tags[i] = f.Tag
	}
	return language.NewMatcher(tags)
}()

// NewFormat picks the closest supported format for a BCP 47 locale. Bad or
// unsupported tags fall back to en-GB.
func NewFormat(locale string) Format {
	tag, err := language.Parse(locale)
	if err != nil {
		return formats[0]
	}
	_, idx, conf := formatMatcher.Match(tag)
	if conf == language.No {
		return formats[0]
	}
	return formats[idx]
}

// Day formats a day heading.
func (f Format) Day(t time.Time) string {
	return t.Format(f.DayLayout)
}

// Time formats a clock time.
func (f Format) Time(t time.Time) string {
	return t.Format(f.TimeLayout)
}

// Range formats "start - end".
func (f Format) Range(start, end time.Time) string {
	return f.Time(start) + " - " + f.Time(end)
}

func parseDay(day string) (time.Time, error) {
	return time.Parse(model.DayLayout, day)
}
