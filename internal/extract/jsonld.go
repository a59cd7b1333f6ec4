package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jsonLDBlocks returns Event blocks from every parsable ld+json script.
// Unparsable scripts are skipped; they never fail the page.
func jsonLDBlocks(doc *goquery.Document) []map[string]any {
	var events []map[string]any

	doc.Find(`script[type*="ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}

		var payload any
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			return
		}

		for _, block := range flattenLD(payload) {
			if hasType(block["@type"], "Event") {
				events = append(events, block)
				continue
			}
			if hasType(block["@type"], "ItemList") {
				events = append(events, itemListEvents(block)...)
			}
		}
	})

	return events
}

// flattenLD turns a script payload into top-level blocks: arrays are
// spread and @graph containers contribute their members.
func flattenLD(payload any) []map[string]any {
	var blocks []map[string]any

	switch v := payload.(type) {
	case []any:
		for _, item := range v {
			blocks = append(blocks, flattenLD(item)...)
		}
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			for _, item := range graph {
				if m, ok := item.(map[string]any); ok {
					blocks = append(blocks, m)
				}
			}
			return blocks
		}
		blocks = append(blocks, v)
	}

	return blocks
}

// itemListEvents unwraps one level: itemListElement[].item typed Event
func itemListEvents(list map[string]any) []map[string]any {
	var events []map[string]any

	elements, ok := list["itemListElement"].([]any)
	if !ok {
		if single, isMap := list["itemListElement"].(map[string]any); isMap {
			elements = []any{single}
		}
	}

	for _, el := range elements {
		entry, ok := el.(map[string]any)
		if !ok {
			continue
		}
		item, ok := entry["item"].(map[string]any)
		if !ok {
			continue
		}
		if hasType(item["@type"], "Event") {
			events = append(events, item)
		}
	}

	return events
}
