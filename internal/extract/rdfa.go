package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const schemaVocab = "http://schema.org/"

// rdfaBlocks returns property maps for typeof elements whose expanded type
// is a schema.org Event
func rdfaBlocks(doc *goquery.Document, base *url.URL) []map[string]any {
	var events []map[string]any

	doc.Find("[typeof]").Each(func(_ int, s *goquery.Selection) {
		if !hasSchemaEventType(rdfaTypes(s)) {
			return
		}

		nested := false
		s.ParentsFiltered("[typeof]").EachWithBreak(func(_ int, p *goquery.Selection) bool {
			nested = hasSchemaEventType(rdfaTypes(p))
			return !nested
		})
		if nested {
			return
		}

		events = append(events, rdfaItem(s, base))
	})

	return events
}

// rdfaTypes expands the typeof terms of s against the in-scope vocab
func rdfaTypes(s *goquery.Selection) []string {
	vocab := rdfaVocab(s)
	var types []string
	for _, term := range strings.Fields(s.AttrOr("typeof", "")) {
		types = append(types, expandTerm(term, vocab))
	}
	return types
}

// rdfaVocab finds the nearest vocab attribute on s or its ancestors
func rdfaVocab(s *goquery.Selection) string {
	if v, ok := s.Attr("vocab"); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(s.ParentsFiltered("[vocab]").First().AttrOr("vocab", ""))
}

// expandTerm turns a compact RDFa term into an IRI
func expandTerm(term, vocab string) string {
	switch {
	case strings.Contains(term, "://"):
		return term
	case strings.HasPrefix(term, "schema:"):
		return schemaVocab + strings.TrimPrefix(term, "schema:")
	case vocab != "":
		if !strings.HasSuffix(vocab, "/") && !strings.HasSuffix(vocab, "#") {
			vocab += "/"
		}
		return vocab + term
	default:
		return term
	}
}

// localName strips an IRI or prefix down to the property name
func localName(term string) string {
	if i := strings.LastIndexAny(term, "/#:"); i >= 0 {
		return term[i+1:]
	}
	return term
}

// rdfaItem collects the properties of one typeof subject
func rdfaItem(subject *goquery.Selection, base *url.URL) map[string]any {
	props := map[string]any{"@type": rdfaTypes(subject)}
	for _, attr := range []string{"about", "resource"} {
		if id := strings.TrimSpace(subject.AttrOr(attr, "")); id != "" {
			props["@id"] = id
			break
		}
	}

	var walk func(*goquery.Selection)
	walk = func(parent *goquery.Selection) {
		parent.Children().Each(func(_ int, c *goquery.Selection) {
			_, isSubject := c.Attr("typeof")

			if terms := strings.Fields(c.AttrOr("property", "")); len(terms) > 0 {
				var value any
				if isSubject {
					value = rdfaItem(c, base)
				} else {
					value = rdfaValue(c, base)
				}
				for _, term := range terms {
					name := localName(term)
					if _, seen := props[name]; !seen {
						props[name] = value
					}
				}
			}

			if !isSubject {
				walk(c)
			}
		})
	}
	walk(subject)

	if _, ok := props["@id"]; !ok {
		if id := stringValue(props["id"]); id != "" {
			props["@id"] = id
		}
	}
	return props
}

// rdfaValue reads a property literal or resource
func rdfaValue(s *goquery.Selection, base *url.URL) string {
	if content, ok := s.Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	if dt, ok := s.Attr("datetime"); ok {
		return strings.TrimSpace(dt)
	}
	for _, attr := range []string{"href", "src", "resource"} {
		if v, ok := s.Attr(attr); ok {
			return resolveURL(base, v)
		}
	}
	return collapseSpace(s.Text())
}
