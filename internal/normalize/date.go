package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\b`)
	fourDigitYear = regexp.MustCompile(`\b\d{4}\b`)
	clockPattern  = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(am|pm)?$`)
)

// Layouts tried after dateparse gives up, mostly the free-text shapes the
// card scraper produces
var fallbackLayouts = []string{
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Monday January 2 2006",
	"Mon Jan 2 2006",
}

var yearlessLayouts = []string{
	"January 2",
	"Jan 2",
	"2 January",
	"2 Jan",
}

// Words dropped from a yearless value before its date and clock are read
var yearlessNoise = map[string]bool{
	"mon": true, "monday": true,
	"tue": true, "tues": true, "tuesday": true,
	"wed": true, "weds": true, "wednesday": true,
	"thu": true, "thur": true, "thurs": true, "thursday": true,
	"fri": true, "friday": true,
	"sat": true, "saturday": true,
	"sun": true, "sunday": true,
	"at": true, "@": true, "from": true,
}

// ParseStart parses a raw start value permissively. Values without an
// explicit offset are read as wall-clock time in loc; the result is always
// expressed in loc. Yearless dates take the current year in loc.
func ParseStart(raw string, loc *time.Location, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(ordinalSuffix.ReplaceAllString(raw, "$1"))
	if !strings.ContainsAny(s, "0123456789") {
		return time.Time{}, false
	}

	loose := looseForm(s)
	if !HasYear(s) {
		if t, ok, matched := parseYearless(loose, loc, now); matched {
			return t, ok
		}
	}

	// dateparse fills a missing year with 0
	if t, err := dateparse.ParseIn(s, loc); err == nil && t.Year() != 0 {
		return t.In(loc), true
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, loose, loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// HasYear reports whether raw spells out a four-digit year
func HasYear(raw string) bool {
	return fourDigitYear.MatchString(raw)
}

// parseYearless reads "Sat Aug 12", "Aug 12 7pm" or "12 August at 7:30 pm".
// matched is false when loose does not start with a month and day; ok is
// false when it does but the rest is not a clock time.
func parseYearless(loose string, loc *time.Location, now time.Time) (t time.Time, ok, matched bool) {
	fields := make([]string, 0, 4)
	for _, f := range strings.Fields(loose) {
		if !yearlessNoise[strings.ToLower(f)] {
			fields = append(fields, f)
		}
	}
	if len(fields) < 2 {
		return time.Time{}, false, false
	}

	day, found := time.Time{}, false
	datePart := fields[0] + " " + fields[1]
	for _, layout := range yearlessLayouts {
		if d, err := time.ParseInLocation(layout, datePart, loc); err == nil {
			day, found = d, true
			break
		}
	}
	if !found {
		return time.Time{}, false, false
	}

	hour, minute, ok := parseClock(strings.Join(fields[2:], ""))
	if !ok {
		return time.Time{}, false, true
	}

	year := now.In(loc).Year()
	return time.Date(year, day.Month(), day.Day(), hour, minute, 0, 0, loc), true, true
}

// parseClock reads "7pm", "7:30pm" or "19:30". Ranges keep their start
// ("7pm-9pm"). An empty clock is midnight.
func parseClock(s string) (hour, minute int, ok bool) {
	s = strings.ToLower(s)
	if i := strings.IndexAny(s, "-–"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return 0, 0, true
	}

	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}

	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return 0, 0, false
	}

	switch m[3] {
	case "":
		if m[2] == "" || hour > 23 {
			return 0, 0, false
		}
	default:
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		hour %= 12
		if m[3] == "pm" {
			hour += 12
		}
	}

	return hour, minute, true
}

// looseForm drops punctuation that varies between sites ("Sept. 5," -> "Sep 5")
func looseForm(s string) string {
	s = strings.NewReplacer(".", " ", ",", " ", "·", " ").Replace(s)
	fields := strings.Fields(s)
	for i, f := range fields {
		if strings.EqualFold(f, "sept") {
			fields[i] = "Sep"
		}
	}
	return strings.Join(fields, " ")
}
