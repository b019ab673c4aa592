// Package source defines the connector contract: a Source polls an external
// system and returns a batch of raw availability observations. Connectors
// never touch the state table; the engine applies a batch in one locked
// transaction after the poll has finished.
package source

import (
	"context"
	"errors"

	"github.com/donaldgifford/restock-tracker/internal/state"
)

// ErrUnknownSource is returned when a source name is not configured.
var ErrUnknownSource = errors.New("unknown source")

// Observation is one product reading. Extras follow the state table merge
// rules: Set overwrites, Clear removes and Unset keeps the stored value.
type Observation struct {
	Key       string `json:"key"`
	Available bool   `json:"available"`
	state.Extras
}

// Batch is the result of one poll.
type Batch struct {
	Observations []Observation

	// Remove lists keys to delete from the state table, for example a
	// parent key replaced by per-variant keys.
	Remove []string

	// Stale, when set, is asked about every stored key of the source that
	// the poll did not observe. Keys it accepts are deleted.
	Stale func(key string) bool

	// NotModified reports that the upstream data is unchanged since the
	// previous poll. The engine only refreshes last_checked.
	NotModified bool

	// Commit, when set, is called once the batch has been applied to the
	// state table. Sources use it to persist conditional request
	// validators, so a poll that fails before the state commit is fetched
	// in full again next time.
	Commit func() error
}

// Source is a product connector.
type Source interface {
	// Name is the configured source name, used for logs and metrics.
	Name() string
	// Prefix is the product key prefix owned by the source.
	Prefix() string
	// Poll fetches the current observations.
	Poll(ctx context.Context) (*Batch, error)
}
