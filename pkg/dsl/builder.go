package dsl

import (
	"fmt"

	"github.com/aretw0/dialogic/pkg/adapters/memory"
	"github.com/aretw0/dialogic/pkg/domain"
)

// Builder manages catalog construction.
type Builder struct {
	domains []*DomainBuilder
	byName  map[string]*DomainBuilder
}

// New creates a new catalog builder.
func New() *Builder {
	return &Builder{
		byName: make(map[string]*DomainBuilder),
	}
}

// Domain returns the builder of the named domain, creating it on first use.
func (b *Builder) Domain(name string) *DomainBuilder {
	if db, ok := b.byName[name]; ok {
		return db
	}
	db := &DomainBuilder{
		domain: &domain.Domain{
			Name:      name,
			Templates: make(map[string]*domain.Template),
		},
		schema: make(map[string]domain.IntentSchema),
	}
	b.domains = append(b.domains, db)
	b.byName[name] = db
	return db
}

// Catalog validates and indexes everything declared so far.
func (b *Builder) Catalog() (*domain.Catalog, error) {
	schemas := make([]domain.SchemaSource, 0, len(b.domains))
	domains := make([]*domain.Domain, 0, len(b.domains))
	for _, db := range b.domains {
		schemas = append(schemas, domain.SchemaSource{Name: db.domain.Name, Schema: db.schema})
		domains = append(domains, db.domain)
	}
	return domain.NewCatalog(schemas, domains)
}

// Build compiles the catalog into a memory Loader.
func (b *Builder) Build() (*memory.Loader, error) {
	catalog, err := b.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	return memory.NewFromCatalog(catalog), nil
}

// DomainBuilder configures one domain.
type DomainBuilder struct {
	domain *domain.Domain
	schema map[string]domain.IntentSchema
}

// Template declares a template of the domain. Declaring it twice returns
// the same builder.
func (d *DomainBuilder) Template(name string) *TemplateBuilder {
	t, ok := d.domain.Templates[name]
	if !ok {
		t = &domain.Template{}
		d.domain.Templates[name] = t
	}
	return &TemplateBuilder{template: t, name: name, domain: d}
}

// Intent declares a template and registers it in the domain schema.
func (d *DomainBuilder) Intent(name string) *TemplateBuilder {
	if _, ok := d.schema[name]; !ok {
		d.schema[name] = domain.IntentSchema{Args: make(map[string]domain.Argument)}
	}
	tb := d.Template(name)
	tb.intent = true
	return tb
}

// Import makes templates of another domain resolvable from this one.
func (d *DomainBuilder) Import(from string, templates ...string) *DomainBuilder {
	d.domain.Imports = append(d.domain.Imports, domain.Import{From: from, Templates: templates})
	return d
}

// TemplateBuilder provides a fluent API for one template.
type TemplateBuilder struct {
	template *domain.Template
	name     string
	intent   bool
	domain   *DomainBuilder
}

// Switch makes the first satisfied form win instead of a random one.
func (t *TemplateBuilder) Switch() *TemplateBuilder {
	t.template.Switch = true
	return t
}

// Form appends a variant guarded by every given condition.
func (t *TemplateBuilder) Form(text string, conditions ...string) *TemplateBuilder {
	t.template.Forms = append(t.template.Forms, domain.Variant{Text: text, Conditions: conditions})
	return t
}

// Describe sets the intent description. It is a no-op on plain templates.
func (t *TemplateBuilder) Describe(description string) *TemplateBuilder {
	if !t.intent {
		return t
	}
	s := t.domain.schema[t.name]
	s.Description = description
	t.domain.schema[t.name] = s
	return t
}

// Arg declares an intent argument. It is a no-op on plain templates.
func (t *TemplateBuilder) Arg(name, argType string, required bool) *TemplateBuilder {
	if !t.intent {
		return t
	}
	t.domain.schema[t.name].Args[name] = domain.Argument{Type: argType, Required: required}
	return t
}

// Domain returns to the owning domain builder.
func (t *TemplateBuilder) Domain() *DomainBuilder {
	return t.domain
}
