// Package provider defines the config source abstraction.
//
// A Provider loads raw configuration bytes and can watch the source for
// changes. The only shipped implementation reads a local file.
package provider

import "context"

// Type identifies the config source type.
type Type string

const (
	TypeFile Type = "file"
)

// Provider abstracts config sources.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Type returns the provider type for logging.
	Type() Type

	// Load reads raw config bytes from the source.
	Load(ctx context.Context) ([]byte, error)

	// Watch starts watching for changes and signals via the returned
	// channel. Cancel the context to stop watching. Returns a nil channel
	// if watching is not supported.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases any resources held by the provider.
	Close() error
}
