// Package session keeps the per-analyst-session state an incremental
// query needs between calls: the stage cache used to skip
// recomputation (process-local only — it holds graph pointers that
// do not survive serialization) and the last completed query's
// parameters and result (which do, and which a distributed backend
// can hand off between stateless server replicas).
package session

import (
	"context"
	"time"

	"github.com/aptgraph/aptgraph/internal/pipeline"
)

// Record is the durable part of a session: the parameters of the last
// completed query and the output it produced.
type Record struct {
	Params pipeline.Parameters
	Output *pipeline.Output
}

// Session bundles a process-local incremental StageCache with the
// last Record. Cache is always non-nil; Last is nil until the first
// successful Analyze call for this session.
type Session struct {
	Cache *pipeline.StageCache
	Last  *Record
}

// Store manages sessions addressed by an opaque session ID.
type Store interface {
	// Get returns the session for id, creating a fresh one (empty
	// cache, nil Last) if id is unknown.
	Get(ctx context.Context, id string) (*Session, error)

	// Save persists sess's Last record under id with the given TTL
	// (zero means no expiry). The process-local Cache is not
	// expected to survive a Save/Get round trip through a remote
	// backend; callers that need cache reuse must stay on the same
	// process as a prior Get.
	Save(ctx context.Context, id string, sess *Session, ttl time.Duration) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// Close releases any held connections.
	Close() error
}
