package normalize

import (
	"strings"

	"github.com/ppiankov/eventsweep/internal/model"
)

// Deduplicator drops repeats within one source batch, keyed on the
// lowercased title and link. The first occurrence wins.
// Not safe for concurrent use; each source run owns one.
type Deduplicator struct {
	seen map[string]struct{}
}

// NewDeduplicator creates an empty deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Admit reports whether ev is the first event seen with its key
func (d *Deduplicator) Admit(ev model.CanonicalEvent) bool {
	key := DedupKey(ev)
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Len returns the number of distinct events admitted
func (d *Deduplicator) Len() int {
	return len(d.seen)
}

// DedupKey returns the identity used for in-batch deduplication
func DedupKey(ev model.CanonicalEvent) string {
	title := strings.ToLower(strings.TrimSpace(ev.EventName))
	link := strings.ToLower(strings.TrimSpace(ev.Link))
	return title + "\x00" + link
}
