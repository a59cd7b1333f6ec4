package normalize

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/ppiankov/eventsweep/internal/model"
)

// SourceID derives a stable identifier for an event that carries none.
// Equal inputs always produce the same id, so re-runs update rather than
// duplicate records at the sink.
func SourceID(producer model.Producer, docURL, title, dateOrLink string) string {
	key := strings.Join([]string{
		string(producer),
		strings.TrimSpace(docURL),
		strings.ToLower(strings.Join(strings.Fields(title), " ")),
		strings.TrimSpace(dateOrLink),
	}, "||")

	sum := sha1.Sum([]byte(key))
	return string(producer) + ":" + hex.EncodeToString(sum[:])
}
