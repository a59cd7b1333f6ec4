package model

import "time"

// Producer identifies which extractor produced a raw event
type Producer string

const (
	ProducerJSONLD    Producer = "jsonld"    // <script type="application/ld+json">
	ProducerMicrodata Producer = "microdata" // itemscope/itemprop
	ProducerRDFa      Producer = "rdfa"      // typeof/property
	ProducerHeuristic Producer = "card"      // heuristic card scraper
	ProducerICS       Producer = "ics"       // calendar feed
	ProducerRSS       Producer = "rss"       // syndication feed
)

// Place is a structured location (schema.org Place + PostalAddress projection)
type Place struct {
	Name     string `json:"name,omitempty"`
	Street   string `json:"street,omitempty"`
	Locality string `json:"locality,omitempty"`
	Region   string `json:"region,omitempty"`
}

// RawEvent is a partially-populated event candidate as seen by one producer.
// It is never persisted; only the normalizer consumes it.
type RawEvent struct {
	Producer    Producer `json:"producer"`
	Name        string   `json:"name,omitempty"`
	Start       string   `json:"start,omitempty"`    // arbitrary date representation
	Location    string   `json:"location,omitempty"` // free-text location
	Place       *Place   `json:"place,omitempty"`    // structured location, wins over Location
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	Identifiers []string `json:"identifiers,omitempty"` // candidate stable IDs, first non-empty wins
	Tags        []string `json:"tags,omitempty"`
}

// EventStatus is the lifecycle status reported to the sink
type EventStatus string

const (
	StatusActive EventStatus = "active"
)

// CanonicalEvent is the normalized record posted to the sink.
// Optional fields are pointers so they serialize as JSON null.
type CanonicalEvent struct {
	EventName   string      `json:"event_name"`
	Date        *string     `json:"date"` // YYYY-MM-DD in the configured timezone
	Day         *string     `json:"day"`  // weekday name of Date
	Time        *string     `json:"time"` // 12-hour clock, e.g. "7:30 PM"
	HostOrg     string      `json:"host_org"`
	Description *string     `json:"description"`
	Cost        *string     `json:"cost"` // reserved, always nil
	Tags        []string    `json:"tags"`
	Location    *string     `json:"location"`
	Address     *string     `json:"address"`
	Link        string      `json:"link"`
	Status      EventStatus `json:"status"`
	SourceID    string      `json:"source_id"`
	LastSeenAt  time.Time   `json:"last_seen_at"`
}

// Envelope is the request body accepted by the sink
type Envelope struct {
	Data CanonicalEvent `json:"data"`
}
