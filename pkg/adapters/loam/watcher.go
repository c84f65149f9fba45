package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
)

// Pattern selects the documents a Watcher follows.
const Pattern = "**/*.{json,yaml,yml}"

// Document identifies one template document of the directory.
type Document struct {
	// ID is the slash-separated path without extension, e.g. "content/inventory.template".
	ID string
	// Name is the domain name declared by the document.
	Name string
}

// Watcher adapts a Loam repository over a template directory to
// ports.Watchable.
type Watcher struct {
	Repo *loam.TypedRepository[DocumentMetadata]
}

// New creates a Watcher over an existing typed repository.
func New(repo *loam.TypedRepository[DocumentMetadata]) *Watcher {
	return &Watcher{
		Repo: repo,
	}
}

// Open initializes a read-only, strict Loam repository at dir.
func Open(dir string) (*Watcher, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[DocumentMetadata](repo)), nil
}

// Documents lists the schema and content documents, sorted by ID.
func (w *Watcher) Documents(ctx context.Context) ([]Document, error) {
	docs, err := w.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		id := trimExtension(doc.ID)
		if !isTemplateDocument(id) {
			continue
		}
		out = append(out, Document{ID: id, Name: doc.Data.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Watch implements ports.Watchable. It emits the ID of every changed
// schema or content document until ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan string, error) {
	events, err := w.Repo.Watch(ctx, Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				id := trimExtension(evt.ID)
				if !isTemplateDocument(id) {
					continue
				}
				select {
				case ch <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func isTemplateDocument(id string) bool {
	return strings.HasSuffix(id, ".schema") || strings.HasSuffix(id, ".template")
}

// trimExtension drops a file extension. Loam usually reports IDs without
// one ("content/a.template"), and ".template" must survive.
func trimExtension(id string) string {
	id = filepath.ToSlash(id)
	switch ext := filepath.Ext(id); ext {
	case ".json", ".yaml", ".yml":
		return strings.TrimSuffix(id, ext)
	}
	return id
}
