// Package classify decides whether a candidate title/link pair looks like a
// real event listing rather than navigation chrome.
package classify

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// Acceptance thresholds. These are policy knobs, not correctness requirements.
const (
	// MinTitleLength rejects anything shorter outright
	MinTitleLength = 5
	// SpecificTitleLength is the length a title needs to be accepted on its
	// own when the link does not look like an event page
	SpecificTitleLength = 12
)

var stopwords = map[string]struct{}{
	"details":         {},
	"event":           {},
	"events":          {},
	"event details":   {},
	"all events":      {},
	"upcoming events": {},
	"past events":     {},
	"view all":        {},
	"see all":         {},
	"view events":     {},
	"submit event":    {},
	"submit an event": {},
	"add event":       {},
	"calendar":        {},
	"view calendar":   {},
	"more":            {},
	"more info":       {},
	"read more":       {},
	"learn more":      {},
	"register":        {},
	"tickets":         {},
	"buy tickets":     {},
	"rsvp":            {},
	"home":            {},
	"next":            {},
	"previous":        {},
	"share":           {},
}

// Fragments that mark navigation chrome wherever they appear in a title
var chromeFragments = []string{
	"details",
	"more info",
	"read more",
	"learn more",
	"submit",
	"update",
	"calendar",
	"subscribe",
}

// Path fragments that mark a link as pointing at an event page
var eventPathFragments = []string{
	"/event",
	"/calendar",
	"/shows",
	"/show/",
	"/performance",
	"/concert",
	"/festival",
	"/exhibit",
	"/happening",
}

// Classifier applies the title plausibility rules
type Classifier struct{}

// New creates a new Classifier
func New() *Classifier {
	return &Classifier{}
}

// LooksLikeEvent reports whether title/link plausibly describe one event.
// Rules are applied in order; the first decisive rule wins.
func (c *Classifier) LooksLikeEvent(title, link string) bool {
	t := strings.ToLower(strings.Join(strings.Fields(title), " "))
	length := utf8.RuneCountInString(t)

	if length == 0 || length < MinTitleLength {
		return false
	}

	if _, stop := stopwords[t]; stop {
		return false
	}

	for _, frag := range chromeFragments {
		if strings.Contains(t, frag) {
			return false
		}
	}

	if hasEventPath(link) {
		return true
	}

	return length >= SpecificTitleLength
}

// hasEventPath checks the link's path for an event-indicating fragment
func hasEventPath(link string) bool {
	path := strings.ToLower(link)
	if parsed, err := url.Parse(link); err == nil {
		path = strings.ToLower(parsed.EscapedPath())
	}

	for _, frag := range eventPathFragments {
		if strings.Contains(path, frag) {
			return true
		}
	}
	return false
}
