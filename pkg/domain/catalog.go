package domain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// ImportKeyword is reserved for a domain's import list and cannot name a template.
const ImportKeyword = "import"

var indexLikeName = regexp.MustCompile(`^[\d:]+$`)

var (
	// ErrNoSchema is returned when a catalog is built without any schema source.
	ErrNoSchema = errors.New("no schema files found")

	// ErrDuplicateSchema is returned when two schema sources declare the same template.
	ErrDuplicateSchema = errors.New("multiple schema templates found across files for key")

	// ErrDuplicateDomain is returned when two content sources declare the same domain.
	ErrDuplicateDomain = errors.New("duplicate content domain")

	// ErrDomainMismatch is returned when schema and content declare different domain names.
	ErrDomainMismatch = errors.New("mismatched content and schema names")
)

// Variant is one candidate phrasing of a template.
type Variant struct {
	Text       string   `json:"text" mapstructure:"text"`
	Conditions []string `json:"conditions,omitempty" mapstructure:"conditions"`
}

// Template is an ordered list of variants.
// In switch mode the first satisfied variant wins, otherwise one satisfied
// variant is chosen at random.
type Template struct {
	Switch bool      `json:"switch" mapstructure:"switch"`
	Forms  []Variant `json:"forms" mapstructure:"forms"`
}

// Import makes templates of another domain resolvable from the importing one.
type Import struct {
	From      string   `json:"from" mapstructure:"from"`
	Templates []string `json:"templates" mapstructure:"templates"`
}

// Domain groups the templates of one content source.
type Domain struct {
	Name      string
	Templates map[string]*Template
	Imports   []Import
}

// Argument describes one intent parameter. Type is informational.
type Argument struct {
	Type        string `json:"type" mapstructure:"type"`
	Description string `json:"description" mapstructure:"description"`
	Required    bool   `json:"required" mapstructure:"required"`
}

// IntentSchema describes a top-level (schema-registered) template.
type IntentSchema struct {
	Args        map[string]Argument `json:"args" mapstructure:"args"`
	Description string              `json:"description" mapstructure:"description"`
}

// SchemaSource is the content of one schema document.
type SchemaSource struct {
	Name   string
	Schema map[string]IntentSchema
}

// Catalog holds every loaded domain and the intent schema.
type Catalog struct {
	Domains map[string]*Domain
	Schema  map[string]IntentSchema
	// SchemaMap maps each intent to its owning domain.
	SchemaMap map[string]string
}

// NewCatalog validates and indexes the given sources.
func NewCatalog(schemas []SchemaSource, domains []*Domain) (*Catalog, error) {
	if len(schemas) == 0 {
		return nil, ErrNoSchema
	}

	c := &Catalog{
		Domains:   make(map[string]*Domain, len(domains)),
		Schema:    make(map[string]IntentSchema),
		SchemaMap: make(map[string]string),
	}

	schemaNames := make(map[string]bool)
	for _, src := range schemas {
		schemaNames[src.Name] = true
		for key, intent := range src.Schema {
			if owner, dup := c.SchemaMap[key]; dup {
				return nil, fmt.Errorf("%w %q (%s, %s)", ErrDuplicateSchema, key, owner, src.Name)
			}
			c.Schema[key] = intent
			c.SchemaMap[key] = src.Name
		}
	}

	for _, d := range domains {
		if _, dup := c.Domains[d.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDomain, d.Name)
		}
		for name := range d.Templates {
			if err := CheckTemplateName(name); err != nil {
				return nil, fmt.Errorf("domain %q: %w", d.Name, err)
			}
		}
		c.Domains[d.Name] = d
	}

	if len(schemaNames) != len(c.Domains) {
		return nil, fmt.Errorf("%w: %d schema domain(s), %d content domain(s)", ErrDomainMismatch, len(schemaNames), len(c.Domains))
	}
	for name := range schemaNames {
		if _, ok := c.Domains[name]; !ok {
			return nil, fmt.Errorf("%w: schema domain %q has no content", ErrDomainMismatch, name)
		}
	}

	return c, nil
}

// CheckTemplateName rejects reserved and index-like template names.
func CheckTemplateName(name string) error {
	if name == ImportKeyword {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	if indexLikeName.MatchString(name) {
		return fmt.Errorf("%w: %q must contain at least one letter", ErrInvalidTemplateName, name)
	}
	return nil
}

// IsIntent reports whether name is a schema-registered template.
func (c *Catalog) IsIntent(name string) bool {
	_, ok := c.SchemaMap[name]
	return ok
}

// Owner returns the domain owning a schema-registered template.
func (c *Catalog) Owner(name string) (string, bool) {
	d, ok := c.SchemaMap[name]
	return d, ok
}

// Intents returns the schema-registered template names, sorted.
func (c *Catalog) Intents() []string {
	names := make([]string, 0, len(c.SchemaMap))
	for name := range c.SchemaMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve finds template name as seen from domainName: first among the
// domain's own templates, then through its imports in declaration order.
// It also returns the domain that defines the template.
func (c *Catalog) Resolve(domainName, name string) (*Template, string, error) {
	notFound := &Error{
		Kind:    KindReference,
		Message: fmt.Sprintf("Template %s not found in schema", name),
		Err:     ErrTemplateNotFound,
	}

	d, ok := c.Domains[domainName]
	if !ok {
		return nil, "", notFound
	}
	if t, ok := d.Templates[name]; ok {
		return t, d.Name, nil
	}
	for _, imp := range d.Imports {
		src, ok := c.Domains[imp.From]
		if !ok {
			continue
		}
		if t, ok := src.Templates[name]; ok {
			return t, src.Name, nil
		}
	}
	return nil, "", notFound
}
