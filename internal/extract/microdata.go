package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// microdataBlocks returns property maps for itemscope elements typed as a
// schema.org Event. Events nested in another Event item (subEvent) are left
// to their parent.
func microdataBlocks(doc *goquery.Document, base *url.URL) []map[string]any {
	var events []map[string]any

	doc.Find("[itemscope][itemtype]").Each(func(_ int, s *goquery.Selection) {
		if !hasSchemaEventType(strings.Fields(s.AttrOr("itemtype", ""))) {
			return
		}

		nested := false
		s.ParentsFiltered("[itemscope][itemtype]").EachWithBreak(func(_ int, p *goquery.Selection) bool {
			nested = hasSchemaEventType(strings.Fields(p.AttrOr("itemtype", "")))
			return !nested
		})
		if nested {
			return
		}

		props := microdataItem(s, base)
		if _, ok := props["@id"]; !ok {
			if id := stringValue(props["id"]); id != "" {
				props["@id"] = id
			}
		}
		events = append(events, props)
	})

	return events
}

// microdataItem collects the properties of one itemscope
func microdataItem(scope *goquery.Selection, base *url.URL) map[string]any {
	props := map[string]any{}
	if t := scope.AttrOr("itemtype", ""); t != "" {
		props["@type"] = strings.Fields(t)
	}
	if id := strings.TrimSpace(scope.AttrOr("itemid", "")); id != "" {
		props["@id"] = id
	}

	var walk func(*goquery.Selection)
	walk = func(parent *goquery.Selection) {
		parent.Children().Each(func(_ int, c *goquery.Selection) {
			_, isScope := c.Attr("itemscope")

			if names := strings.Fields(c.AttrOr("itemprop", "")); len(names) > 0 {
				var value any
				if isScope {
					value = microdataItem(c, base)
				} else {
					value = microdataValue(c, base)
				}
				for _, name := range names {
					if _, seen := props[name]; !seen {
						props[name] = value
					}
				}
			}

			if !isScope {
				walk(c)
			}
		})
	}
	walk(scope)

	return props
}

// microdataValue follows the HTML microdata value rules per element type
func microdataValue(s *goquery.Selection, base *url.URL) string {
	switch goquery.NodeName(s) {
	case "meta":
		return strings.TrimSpace(s.AttrOr("content", ""))
	case "a", "area", "link":
		return resolveURL(base, s.AttrOr("href", ""))
	case "img", "audio", "embed", "iframe", "source", "track", "video":
		return resolveURL(base, s.AttrOr("src", ""))
	case "object":
		return resolveURL(base, s.AttrOr("data", ""))
	case "time":
		if dt, ok := s.Attr("datetime"); ok {
			return strings.TrimSpace(dt)
		}
	case "data", "meter":
		if v, ok := s.Attr("value"); ok {
			return strings.TrimSpace(v)
		}
	}

	if content, ok := s.Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return collapseSpace(s.Text())
}
