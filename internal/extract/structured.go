// Package extract pulls raw event candidates out of rendered HTML, either from
// embedded schema.org markup or, failing that, from event-card heuristics.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ppiankov/eventsweep/internal/model"
)

// Mechanism is one structured-data encoding
type Mechanism int

const (
	MechanismJSONLD Mechanism = iota
	MechanismMicrodata
	MechanismRDFa
)

// AllMechanisms lists every supported encoding in extraction order
var AllMechanisms = []Mechanism{MechanismJSONLD, MechanismMicrodata, MechanismRDFa}

func (m Mechanism) String() string {
	switch m {
	case MechanismJSONLD:
		return "json-ld"
	case MechanismMicrodata:
		return "microdata"
	case MechanismRDFa:
		return "rdfa"
	default:
		return "unknown"
	}
}

// Producer returns the producer tag recorded on candidates from this mechanism
func (m Mechanism) Producer() model.Producer {
	switch m {
	case MechanismMicrodata:
		return model.ProducerMicrodata
	case MechanismRDFa:
		return model.ProducerRDFa
	default:
		return model.ProducerJSONLD
	}
}

// StructuredExtractor finds schema.org Event markup in a document
type StructuredExtractor struct {
	mechanisms []Mechanism
}

// NewStructuredExtractor creates an extractor running all mechanisms
func NewStructuredExtractor() *StructuredExtractor {
	return &StructuredExtractor{mechanisms: AllMechanisms}
}

// Extract returns every Event-typed block found by any mechanism.
// A document without structured markup yields an empty slice, not an error.
func (e *StructuredExtractor) Extract(docURL string, htmlContent string) ([]model.RawEvent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := baseURL(doc, docURL)
	if err != nil {
		return nil, fmt.Errorf("parse document url: %w", err)
	}

	events := make([]model.RawEvent, 0)
	for _, m := range e.mechanisms {
		var blocks []map[string]any
		switch m {
		case MechanismJSONLD:
			blocks = jsonLDBlocks(doc)
		case MechanismMicrodata:
			blocks = microdataBlocks(doc, base)
		case MechanismRDFa:
			blocks = rdfaBlocks(doc, base)
		}

		for _, block := range blocks {
			events = append(events, project(m.Producer(), block, base))
		}
	}

	return events, nil
}

// baseURL honours <base href> the way browsers do
func baseURL(doc *goquery.Document, docURL string) (*url.URL, error) {
	base, err := url.Parse(docURL)
	if err != nil {
		return nil, err
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	return base, nil
}

// project maps one Event block onto the common raw shape. All three
// mechanisms build the same property map, so this is mechanism-agnostic.
func project(producer model.Producer, block map[string]any, base *url.URL) model.RawEvent {
	raw := model.RawEvent{
		Producer:    producer,
		Name:        stringValue(block["name"]),
		Start:       stringValue(block["startDate"]),
		Description: stringValue(block["description"]),
	}

	if link := stringValue(block["url"]); link != "" {
		raw.URL = resolveURL(base, link)
	}

	for _, key := range []string{"@id", "identifier"} {
		if id := stringValue(block[key]); id != "" {
			raw.Identifiers = append(raw.Identifiers, id)
		}
	}

	switch loc := first(block["location"]).(type) {
	case string:
		raw.Location = collapseSpace(loc)
	case map[string]any:
		raw.Place = placeFrom(loc)
	}

	return raw
}

// placeFrom reads a schema.org Place with an optional PostalAddress
func placeFrom(loc map[string]any) *model.Place {
	place := &model.Place{Name: stringValue(loc["name"])}

	switch addr := first(loc["address"]).(type) {
	case string:
		place.Street = collapseSpace(addr)
	case map[string]any:
		place.Street = stringValue(addr["streetAddress"])
		place.Locality = stringValue(addr["addressLocality"])
		place.Region = stringValue(addr["addressRegion"])
	}

	if *place == (model.Place{}) {
		return nil
	}
	return place
}

// hasType reports whether a (possibly multi-valued) type list names want.
// Presence anywhere in the list is enough.
func hasType(v any, want string) bool {
	for _, t := range stringList(v) {
		if t == want || t == "schema:"+want || strings.HasSuffix(t, "schema.org/"+want) {
			return true
		}
	}
	return false
}

// hasSchemaEventType is the substring test used for Microdata and RDFa types
func hasSchemaEventType(types []string) bool {
	for _, t := range types {
		if strings.Contains(t, "schema.org/Event") {
			return true
		}
	}
	return false
}
