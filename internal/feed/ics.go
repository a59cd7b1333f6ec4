package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/ppiankov/eventsweep/internal/model"
)

// ErrNotCalendar is returned when a calendar URL serves an HTML page
var ErrNotCalendar = errors.New("feed returned HTML, not a calendar")

// ICSReader turns VEVENTs into raw events
type ICSReader struct {
	fetcher *Fetcher
}

// NewICSReader creates a calendar reader
func NewICSReader(fetcher *Fetcher) *ICSReader {
	return &ICSReader{fetcher: fetcher}
}

// Read downloads and parses the calendar at rawURL
func (r *ICSReader) Read(ctx context.Context, rawURL string) ([]model.RawEvent, error) {
	doc, err := r.fetcher.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if servesHTML(doc) {
		return nil, ErrNotCalendar
	}

	return ParseICS(bytes.NewReader(doc.Body))
}

// servesHTML catches error pages returned with a 200 by calendar endpoints
func servesHTML(doc *Document) bool {
	if strings.Contains(strings.ToLower(doc.ContentType), "text/calendar") {
		return false
	}

	head := doc.Body
	if len(head) > 200 {
		head = head[:200]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<html"))
}

// ParseICS parses a calendar document into raw events
func ParseICS(r io.Reader) ([]model.RawEvent, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]model.RawEvent, 0, len(cal.Events()))
	for _, ev := range cal.Events() {
		raw := model.RawEvent{
			Producer:    model.ProducerICS,
			Name:        propValue(ev, ics.ComponentPropertySummary),
			Start:       startValue(ev),
			Location:    propValue(ev, ics.ComponentPropertyLocation),
			Description: propValue(ev, ics.ComponentPropertyDescription),
			URL:         propValue(ev, ics.ComponentPropertyUrl),
		}
		if uid := propValue(ev, ics.ComponentPropertyUniqueId); uid != "" {
			raw.Identifiers = []string{uid}
		}
		if p := ev.GetProperty(ics.ComponentPropertyCategories); p != nil {
			raw.Tags = categories(p.Value)
		}
		events = append(events, raw)
	}

	return events, nil
}

var textUnescaper = strings.NewReplacer(`\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n", `\\`, `\`)

func propValue(ev *ics.VEvent, prop ics.ComponentProperty) string {
	p := ev.GetProperty(prop)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(textUnescaper.Replace(p.Value))
}

// categories splits a CATEGORIES value on unescaped commas
func categories(value string) []string {
	var (
		out  []string
		part strings.Builder
	)
	flush := func() {
		if tag := strings.TrimSpace(textUnescaper.Replace(part.String())); tag != "" {
			out = append(out, tag)
		}
		part.Reset()
	}

	escaped := false
	for _, r := range value {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			flush()
			continue
		}
		part.WriteRune(r)
	}
	flush()

	return out
}

// startValue renders DTSTART for the normalizer. Zoned and UTC times become
// RFC 3339; all-day and floating values are left without an offset so they
// are read in the configured timezone.
func startValue(ev *ics.VEvent) string {
	p := ev.GetProperty(ics.ComponentPropertyDtStart)
	if p == nil {
		return ""
	}
	value := strings.TrimSpace(p.Value)

	if len(value) == len("20060102") {
		if t, err := time.Parse("20060102", value); err == nil {
			return t.Format("2006-01-02")
		}
	}

	_, zoned := p.ICalParameters[string(ics.ParameterTzid)]
	if zoned || strings.HasSuffix(value, "Z") {
		if t, err := ev.GetStartAt(); err == nil {
			return t.Format(time.RFC3339)
		}
	}

	if t, err := time.Parse("20060102T150405", value); err == nil {
		return t.Format("2006-01-02T15:04:05")
	}

	return value
}
