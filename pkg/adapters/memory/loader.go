package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/dialogic/internal/dto"
	"github.com/aretw0/dialogic/pkg/domain"
)

// Loader implements ports.CatalogLoader over documents held in memory.
type Loader struct {
	schemas  map[string][]byte
	contents map[string][]byte
	catalog  *domain.Catalog
}

// NewLoader creates a Loader from raw schema and content documents keyed by
// file name. The extension picks the parser (.yaml/.yml or JSON).
func NewLoader(schemas, contents map[string]string) *Loader {
	l := &Loader{
		schemas:  make(map[string][]byte, len(schemas)),
		contents: make(map[string][]byte, len(contents)),
	}
	for k, v := range schemas {
		l.schemas[k] = []byte(v)
	}
	for k, v := range contents {
		l.contents[k] = []byte(v)
	}
	return l
}

// NewFromCatalog wraps an already built catalog.
func NewFromCatalog(catalog *domain.Catalog) *Loader {
	return &Loader{catalog: catalog}
}

// Load validates the documents and builds a catalog. Documents are read in
// key order.
func (l *Loader) Load(ctx context.Context) (*domain.Catalog, error) {
	if l.catalog != nil {
		return l.catalog, nil
	}

	var sources []domain.SchemaSource
	for _, name := range sortedKeys(l.schemas) {
		doc, err := dto.LoadSchema(name, l.schemas[name])
		if err != nil {
			return nil, err
		}
		sources = append(sources, doc.Source())
	}

	var domains []*domain.Domain
	for _, name := range sortedKeys(l.contents) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := dto.LoadContent(name, l.contents[name])
		if err != nil {
			return nil, err
		}
		domains = append(domains, doc.Domain())
	}

	catalog, err := domain.NewCatalog(sources, domains)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	return catalog, nil
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
