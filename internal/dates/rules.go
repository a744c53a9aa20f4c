package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	monthPattern   = `january|february|march|april|may|june|july|august|september|october|november|december`
	weekdayPattern = `monday|tuesday|wednesday|thursday|friday|saturday|sunday`
)

var monthIndex = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

var weekdayIndex = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
}

func reRule(name, pattern string, resolve func(m []string, ref time.Time) (time.Time, time.Time, []string, bool)) Rule {
	re := regexp.MustCompile(pattern)
	return Rule{Name: name, match: re.FindStringSubmatch, resolve: resolve}
}

// rules is evaluated top to bottom; keep the most specific shapes first so
// e.g. "january 1st" is claimed by the specific-date rule before the bare
// month rule can absorb it as all of January.
var rules = []Rule{
	reRule("week-of-year", `\b(first|last) week of (\d{4})\b`, resolveWeekOfYear),
	reRule("week-of-month", `\b(first|last) week of (?:(last|this) )?(`+monthPattern+`)(?: (\d{4}))?\b`, resolveWeekOfMonth),
	reRule("weekend", `\b(last|this|next) weekend\b`, resolveWeekend),
	reRule("yesterday-today", `\b(yesterday|today)\b`, resolveYesterdayToday),
	reRule("week", `\b(last|this) week\b`, resolveWeek),
	reRule("month", `\b(last|this) month\b`, resolveMonth),
	reRule("n-ago", `\b(\d+) (day|week|month)s? ago\b`, resolveNAgo),
	reRule("last-weekday", `\blast (`+weekdayPattern+`)\b`, resolveLastWeekday),
	reRule("iso-date", `\b(\d{4})-(\d{1,2})-(\d{1,2})\b`, resolveISODate),
	reRule("numeric-date", `\b(\d{1,2})[./](\d{1,2})[./](\d{4})\b`, resolveNumericDate),
	reRule("day-month", `\b(\d{1,2})(?:st|nd|rd|th)? (?:of )?(`+monthPattern+`)\b`, resolveDayMonth),
	reRule("month-day", `\b(`+monthPattern+`) (\d{1,2})(?:st|nd|rd|th)?\b`, resolveMonthDay),
	reRule("bare-month", `\b(`+monthPattern+`)\b`, resolveBareMonth),
}

// First/last 7 calendar days of the year. Deliberately not Monday-aligned:
// year boundaries don't line up with ISO weeks.
func resolveWeekOfYear(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, time.Time{}, nil, false
	}
	if m[1] == "first" {
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, ref.Location())
		return start, start.AddDate(0, 0, 6), nil, true
	}
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, ref.Location())
	return end.AddDate(0, 0, -6), end, nil, true
}

func resolveWeekOfMonth(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	month := monthIndex[m[3]]
	var year int
	switch {
	case m[4] != "":
		year, _ = strconv.Atoi(m[4])
	case m[2] == "this":
		year = ref.Year()
	case m[2] == "last":
		// most recent past occurrence of the month
		year = ref.Year()
		if month >= ref.Month() {
			year--
		}
	default:
		year = ref.Year()
		if month > ref.Month() {
			year--
		}
	}
	if m[1] == "first" {
		start := time.Date(year, month, 1, 0, 0, 0, 0, ref.Location())
		return start, start.AddDate(0, 0, 6), nil, true
	}
	last := daysInMonth(year, month)
	end := time.Date(year, month, last, 0, 0, 0, 0, ref.Location())
	return end.AddDate(0, 0, -6), end, nil, true
}

func resolveWeekend(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	saturday := mondayOf(ref).AddDate(0, 0, 5)
	switch m[1] {
	case "last":
		saturday = saturday.AddDate(0, 0, -7)
	case "next":
		saturday = saturday.AddDate(0, 0, 7)
	}
	return saturday, saturday.AddDate(0, 0, 1), nil, true
}

func resolveYesterdayToday(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	d := ref
	if m[1] == "yesterday" {
		d = d.AddDate(0, 0, -1)
	}
	return d, d, nil, true
}

func resolveWeek(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	start := mondayOf(ref)
	if m[1] == "last" {
		start = start.AddDate(0, 0, -7)
	}
	year, week := start.ISOWeek()
	return start, start.AddDate(0, 0, 6), []string{fmt.Sprintf("%d-W%02d", year, week)}, true
}

func resolveMonth(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	if m[1] == "this" {
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		return start, ref, nil, true
	}
	year, month := ref.Year(), ref.Month()
	if month == time.January {
		year, month = year-1, time.December
	} else {
		month--
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, ref.Location())
	return start, start.AddDate(0, 0, daysInMonth(year, month)-1), nil, true
}

func resolveNAgo(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return time.Time{}, time.Time{}, nil, false
	}
	switch m[2] {
	case "day":
		d := ref.AddDate(0, 0, -n)
		return d, d, nil, true
	case "week":
		start := mondayOf(ref.AddDate(0, 0, -7*n))
		return start, start.AddDate(0, 0, 6), nil, true
	default: // month
		year, month := ref.Year(), int(ref.Month())-n
		for month <= 0 {
			month += 12
			year--
		}
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, ref.Location())
		return start, start.AddDate(0, 0, daysInMonth(year, time.Month(month))-1), nil, true
	}
}

// Most recent prior occurrence; exactly 7 days back when today is that
// weekday.
func resolveLastWeekday(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	target := weekdayIndex[m[1]]
	diff := int(ref.Weekday()) - int(target)
	if diff <= 0 {
		diff += 7
	}
	d := ref.AddDate(0, 0, -diff)
	return d, d, nil, true
}

func resolveISODate(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	d, ok := makeDate(year, month, day, ref.Location())
	if !ok {
		return time.Time{}, time.Time{}, nil, false
	}
	return d, d, nil, true
}

// European day-first numeric date, validated against days-in-month.
func resolveNumericDate(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	d, ok := makeDate(year, month, day, ref.Location())
	if !ok {
		return time.Time{}, time.Time{}, nil, false
	}
	return d, d, nil, true
}

func resolveDayMonth(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	day, _ := strconv.Atoi(m[1])
	return resolveNaturalDate(monthIndex[m[2]], day, ref)
}

func resolveMonthDay(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	day, _ := strconv.Atoi(m[2])
	return resolveNaturalDate(monthIndex[m[1]], day, ref)
}

// Natural-language dates assume the current year, rolled back one year when
// the result would be in the future.
func resolveNaturalDate(month time.Month, day int, ref time.Time) (time.Time, time.Time, []string, bool) {
	d, ok := makeDate(ref.Year(), int(month), day, ref.Location())
	if !ok {
		return time.Time{}, time.Time{}, nil, false
	}
	if d.After(ref) {
		d, ok = makeDate(ref.Year()-1, int(month), day, ref.Location())
		if !ok {
			return time.Time{}, time.Time{}, nil, false
		}
	}
	return d, d, nil, true
}

func resolveBareMonth(m []string, ref time.Time) (time.Time, time.Time, []string, bool) {
	month := monthIndex[m[1]]
	year := ref.Year()
	if month > ref.Month() {
		year--
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, ref.Location())
	return start, start.AddDate(0, 0, daysInMonth(year, month)-1), nil, true
}
