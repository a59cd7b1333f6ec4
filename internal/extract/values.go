package extract

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// first returns the first element of a list value, or v itself
func first(v any) any {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}

// stringValue flattens a decoded structured-data value to a trimmed string.
// Lists yield their first non-empty member; objects yield @value, value or @id.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return collapseSpace(html.UnescapeString(t))
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		for _, item := range t {
			if s := stringValue(item); s != "" {
				return s
			}
		}
	case []string:
		for _, item := range t {
			if s := collapseSpace(item); s != "" {
				return s
			}
		}
	case map[string]any:
		for _, key := range []string{"@value", "value", "@id"} {
			if s := stringValue(t[key]); s != "" {
				return s
			}
		}
	}
	return ""
}

// stringList flattens a string-or-list value
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		return strings.Fields(t)
	case []string:
		return t
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// collapseSpace trims and folds runs of whitespace into single spaces
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveURL resolves href against base, keeping only http(s) targets
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := parsed
	if base != nil {
		resolved = base.ResolveReference(parsed)
	}

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}
