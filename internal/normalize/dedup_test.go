package normalize

import (
	"testing"

	"github.com/ppiankov/eventsweep/internal/model"
)

func TestDeduplicator_EmitsOnce(t *testing.T) {
	d := NewDeduplicator()

	ev := model.CanonicalEvent{EventName: "Gallery Night Opening", Link: "https://example.org/e/1", SourceID: "jsonld:abc"}
	if !d.Admit(ev) {
		t.Fatal("first occurrence must be admitted")
	}

	again := ev
	again.EventName = "  GALLERY NIGHT OPENING "
	again.Link = "https://EXAMPLE.org/e/1"
	again.SourceID = "jsonld:other"
	if d.Admit(again) {
		t.Error("same title and link must be rejected regardless of case")
	}

	other := ev
	other.Link = "https://example.org/e/2"
	if !d.Admit(other) {
		t.Error("different link must be admitted")
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
}

func TestDeduplicator_FreshPerBatch(t *testing.T) {
	ev := model.CanonicalEvent{EventName: "Twilight Yoga Class", Link: "https://example.org/yoga"}

	if !NewDeduplicator().Admit(ev) || !NewDeduplicator().Admit(ev) {
		t.Error("separate batches must not share state")
	}
}
