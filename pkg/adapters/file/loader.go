package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/dialogic/internal/dto"
	"github.com/aretw0/dialogic/pkg/domain"
)

const (
	// SchemaDir holds the *.schema.{json,yaml,yml} documents.
	SchemaDir = "schema"
	// ContentDir holds the *.template.{json,yaml,yml} documents.
	ContentDir = "content"
)

var (
	// ErrMissingLayout is returned when the template directory lacks the schema or content directory.
	ErrMissingLayout = errors.New("template directory must include content and schema directories")

	// ErrNotDirectory is returned when schema or content exists but is not a directory.
	ErrNotDirectory = errors.New("schema and content must both be directories")
)

var (
	schemaSuffixes  = []string{".schema.json", ".schema.yaml", ".schema.yml"}
	contentSuffixes = []string{".template.json", ".template.yaml", ".template.yml"}
)

// Loader implements ports.CatalogLoader over a template directory.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader for dir.
func NewLoader(dir string, opts ...LoaderOption) *Loader {
	l := &Loader{
		dir:    dir,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the template directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Load reads, validates and indexes every document of the directory.
// Files are read in name order.
func (l *Loader) Load(ctx context.Context) (*domain.Catalog, error) {
	for _, sub := range []string{SchemaDir, ContentDir} {
		info, err := os.Stat(filepath.Join(l.dir, sub))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrMissingLayout, l.dir)
			}
			return nil, fmt.Errorf("failed to stat %s: %w", sub, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrNotDirectory, filepath.Join(l.dir, sub))
		}
	}

	schemaFiles, err := documents(filepath.Join(l.dir, SchemaDir), schemaSuffixes)
	if err != nil {
		return nil, err
	}
	var sources []domain.SchemaSource
	for _, path := range schemaFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		doc, err := dto.LoadSchema(path, data)
		if err != nil {
			return nil, err
		}
		sources = append(sources, doc.Source())
		l.logger.Debug("schema loaded", "file", path, "domain", doc.Name, "intents", len(doc.Schema))
	}

	contentFiles, err := documents(filepath.Join(l.dir, ContentDir), contentSuffixes)
	if err != nil {
		return nil, err
	}
	var domains []*domain.Domain
	for _, path := range contentFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		doc, err := dto.LoadContent(path, data)
		if err != nil {
			return nil, err
		}
		domains = append(domains, doc.Domain())
		l.logger.Debug("content loaded", "file", path, "domain", doc.Name, "templates", len(doc.Templates))
	}

	catalog, err := domain.NewCatalog(sources, domains)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates from %s: %w", l.dir, err)
	}
	return catalog, nil
}

func documents(dir string, suffixes []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var out []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(entry.Name(), suffix) {
				out = append(out, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
