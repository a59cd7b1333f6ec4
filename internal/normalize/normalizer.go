// Package normalize turns raw extractor output into canonical events
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/eventsweep/internal/classify"
	"github.com/ppiankov/eventsweep/internal/model"
)

// Output formats of the date, day and time fields
const (
	DateLayout = "2006-01-02"
	TimeLayout = "3:04 PM"
)

// Normalizer projects RawEvents onto the canonical schema
type Normalizer struct {
	loc        *time.Location
	classifier *classify.Classifier
	now        func() time.Time
}

// New creates a normalizer rendering dates in the named IANA timezone
func New(timezone string, classifier *classify.Classifier) (*Normalizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	return &Normalizer{
		loc:        loc,
		classifier: classifier,
		now:        time.Now,
	}, nil
}

// Normalize maps raw onto a CanonicalEvent. It returns false when the
// candidate has no title or the classifier rejects it.
func (n *Normalizer) Normalize(raw model.RawEvent, source model.Source) (model.CanonicalEvent, bool) {
	title := strings.Join(strings.Fields(raw.Name), " ")
	if title == "" {
		return model.CanonicalEvent{}, false
	}

	link := strings.TrimSpace(raw.URL)
	if link == "" {
		link = source.URL
	}
	if !n.classifier.LooksLikeEvent(title, link) {
		return model.CanonicalEvent{}, false
	}

	now := n.now()
	ev := model.CanonicalEvent{
		EventName:   title,
		HostOrg:     hostOrg(source),
		Description: optional(raw.Description),
		Tags:        tags(raw.Tags),
		Link:        link,
		Status:      model.StatusActive,
		LastSeenAt:  now.UTC(),
	}

	// date, day and time come from one instant or are all absent
	if start, ok := ParseStart(raw.Start, n.loc, now); ok {
		date := start.Format(DateLayout)
		day := start.Weekday().String()
		clock := start.Format(TimeLayout)
		ev.Date, ev.Day, ev.Time = &date, &day, &clock
	}

	ev.Location, ev.Address = place(raw, source.DefaultLocation)

	// yearless dates hash as written so the id survives a new year
	dateOrLink := strings.ToLower(link)
	switch {
	case ev.Date != nil && !HasYear(raw.Start):
		dateOrLink = strings.ToLower(strings.Join(strings.Fields(raw.Start), " "))
	case ev.Date != nil:
		dateOrLink = *ev.Date
	}
	ev.SourceID = firstIdentifier(raw.Identifiers)
	if ev.SourceID == "" {
		ev.SourceID = SourceID(raw.Producer, source.URL, title, dateOrLink)
	}

	return ev, true
}

func hostOrg(source model.Source) string {
	if name := strings.TrimSpace(source.Name); name != "" {
		return name
	}
	return model.UnknownSourceName
}

// place picks the event's own location over the source default.
// A structured Place supplies the address; only its name is a location.
func place(raw model.RawEvent, fallback string) (*string, *string) {
	var address *string
	if p := raw.Place; p != nil {
		address = optional(joinNonEmpty(", ", p.Street, p.Locality, p.Region))
		if name := optional(p.Name); name != nil {
			return name, address
		}
	}

	if loc := optional(raw.Location); loc != nil {
		return loc, address
	}

	return optional(fallback), address
}

func firstIdentifier(ids []string) string {
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

func tags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, tag := range in {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// optional returns nil for blank strings
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
