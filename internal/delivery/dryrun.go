package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ppiankov/eventsweep/internal/model"
)

// DryRunClient writes the envelopes that would be posted instead of posting
// them. The cap still applies so --max-per-source previews correctly.
type DryRunClient struct {
	mu  sync.Mutex
	out io.Writer
}

// NewDryRunClient creates a dry-run client writing one JSON envelope per line
func NewDryRunClient(out io.Writer) *DryRunClient {
	return &DryRunClient{out: out}
}

// Deliver prints the envelope for ev
func (d *DryRunClient) Deliver(ctx context.Context, state *State, ev model.CanonicalEvent) (Outcome, error) {
	if err := state.admit(); err != nil {
		return Outcome{}, err
	}

	data, err := json.Marshal(model.Envelope{Data: ev})
	if err != nil {
		return Outcome{}, fmt.Errorf("encode envelope: %w", err)
	}

	// sources run concurrently; keep lines whole
	d.mu.Lock()
	_, err = fmt.Fprintln(d.out, string(data))
	d.mu.Unlock()
	if err != nil {
		return Outcome{}, fmt.Errorf("write envelope: %w", err)
	}

	state.delivered++
	return Outcome{Attempts: 1, Delivered: true}, nil
}
