// Package store implements the graph store: it loads per-user,
// per-feature k-NN graphs and the users/subnets indexes. The on-disk
// format the original spec treats as opaque is, in this
// implementation, a database — either a single SQLite file (the
// default, single-file deployment) or a Postgres server (for
// deployments that share one batch output across several stateless
// query servers).
package store

import (
	"context"

	"github.com/aptgraph/aptgraph/internal/domainmodel"
	"github.com/aptgraph/aptgraph/internal/graph"
)

// FeatureGraph is one user's k-NN graph for a single feature.
type FeatureGraph = graph.Graph[*domainmodel.Domain]

// FeatureGraphBundle is the ordered sequence of per-feature graphs for
// one user. The order is significant: feature i in every bundle
// corresponds to the same similarity measure.
type FeatureGraphBundle []*FeatureGraph

// GraphStore is the contract the pipeline controller depends on. Both
// backends below satisfy it.
type GraphStore interface {
	// GetUserGraphs returns user's per-feature k-NN graph bundle.
	// Returns an error (wrapping ErrUserNotFound) if user is unknown.
	GetUserGraphs(ctx context.Context, user string) (FeatureGraphBundle, error)

	// GetAllUsers returns the ordered list of known user identifiers.
	GetAllUsers(ctx context.Context) ([]string, error)

	// GetAllSubnets returns the ordered list of known subnet identifiers.
	GetAllSubnets(ctx context.Context) ([]string, error)

	// GetK returns the common k used during batch k-NN.
	GetK(ctx context.Context) (int, error)

	// Close releases any held file handles or connections.
	Close() error
}
