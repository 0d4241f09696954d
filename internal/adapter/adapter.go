// Package adapter holds the clients for the external services signals are
// read from and written back to.
package adapter

import (
	"context"
)

// Adapter is the common surface of every external service client.
type Adapter interface {
	// Name returns the adapter name (e.g. "slack", "asana").
	Name() string

	// Health checks that the service is reachable with the configured credentials.
	Health(ctx context.Context) error
}
