package model

import (
	"strings"
	"time"
)

// SourceKind selects the producer used for a source
type SourceKind string

const (
	SourceICS  SourceKind = "ics"
	SourceRSS  SourceKind = "rss"
	SourcePage SourceKind = "page"
)

// ParseSourceKind maps a configured type string to a SourceKind.
// "jsonld" is accepted as an alias of "page".
func ParseSourceKind(s string) (SourceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ics":
		return SourceICS, true
	case "rss":
		return SourceRSS, true
	case "page", "jsonld":
		return SourcePage, true
	default:
		return "", false
	}
}

// UnknownSourceName stands in for a source configured without a name
const UnknownSourceName = "Unknown"

// Source is one configured origin of events
type Source struct {
	Kind            SourceKind `json:"type" yaml:"type"`
	URL             string     `json:"url" yaml:"url"`
	Name            string     `json:"source_name" yaml:"source_name"`
	DefaultLocation string     `json:"default_location,omitempty" yaml:"default_location"`
}

// SourceReport summarizes one source's run
type SourceReport struct {
	Source       Source        `json:"source"`
	Candidates   int           `json:"candidates"`     // raw events produced
	Rejected     int           `json:"rejected"`       // dropped by normalization/classification
	Duplicates   int           `json:"duplicates"`     // dropped by in-batch dedup
	Delivered    int           `json:"delivered"`      // accepted by the sink
	Failed       int           `json:"failed"`         // delivery failures after retries
	SkippedByCap int           `json:"skipped_by_cap"` // left undelivered once the cap was hit
	CapReached   bool          `json:"cap_reached"`
	Duration     time.Duration `json:"duration"`
	Error        error         `json:"-"` // source-level failure (fetch, parse, robots)
}

// GetError returns the source-level error, if any
func (r *SourceReport) GetError() error {
	return r.Error
}
