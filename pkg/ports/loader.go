package ports

import (
	"context"

	"github.com/aretw0/dialogic/pkg/domain"
)

// CatalogLoader defines how the engine retrieves its templates.
// This allows the storage layer (filesystem, memory) to be decoupled.
type CatalogLoader interface {
	// Load reads every schema and content source and builds a validated catalog.
	Load(ctx context.Context) (*domain.Catalog, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that receives the ID of each changed document.
	Watch(ctx context.Context) (<-chan string, error)
}
