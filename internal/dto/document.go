package dto

import (
	"github.com/aretw0/dialogic/pkg/domain"
)

// SchemaDocument is the content of a schema/*.schema.json (or .yaml) file.
type SchemaDocument struct {
	Name   string                  `json:"name" mapstructure:"name" jsonschema:"minLength=1"`
	Schema map[string]IntentSchema `json:"schema" mapstructure:"schema"`
}

// IntentSchema describes the arguments of one intent.
type IntentSchema struct {
	Args        map[string]Argument `json:"args,omitempty" mapstructure:"args"`
	Description string              `json:"description,omitempty" mapstructure:"description"`
}

// Argument describes one intent argument. Type is informational only.
type Argument struct {
	Type        string `json:"type,omitempty" mapstructure:"type"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Required    bool   `json:"required,omitempty" mapstructure:"required"`
}

// ContentDocument is the content of a content/*.template.json (or .yaml) file.
type ContentDocument struct {
	Name      string              `json:"name" mapstructure:"name" jsonschema:"minLength=1"`
	Templates map[string]Template `json:"templates" mapstructure:"templates"`
	Import    []Import            `json:"import,omitempty" mapstructure:"import"`
}

// Template is one template definition.
type Template struct {
	Switch bool      `json:"switch,omitempty" mapstructure:"switch"`
	Forms  []Variant `json:"forms" mapstructure:"forms" jsonschema:"minItems=1"`
}

// Variant is one candidate phrasing.
type Variant struct {
	Text       string   `json:"text" mapstructure:"text"`
	Conditions []string `json:"conditions,omitempty" mapstructure:"conditions"`
}

// Import pulls templates from another domain.
type Import struct {
	Templates []string `json:"templates,omitempty" mapstructure:"templates"`
	From      string   `json:"from" mapstructure:"from" jsonschema:"minLength=1"`
}

// Source converts the document into its domain form.
func (d *SchemaDocument) Source() domain.SchemaSource {
	src := domain.SchemaSource{
		Name:   d.Name,
		Schema: make(map[string]domain.IntentSchema, len(d.Schema)),
	}
	for name, intent := range d.Schema {
		args := make(map[string]domain.Argument, len(intent.Args))
		for argName, arg := range intent.Args {
			args[argName] = domain.Argument{
				Type:        arg.Type,
				Description: arg.Description,
				Required:    arg.Required,
			}
		}
		src.Schema[name] = domain.IntentSchema{Args: args, Description: intent.Description}
	}
	return src
}

// Domain converts the document into its domain form.
func (d *ContentDocument) Domain() *domain.Domain {
	out := &domain.Domain{
		Name:      d.Name,
		Templates: make(map[string]*domain.Template, len(d.Templates)),
	}
	for name, tmpl := range d.Templates {
		forms := make([]domain.Variant, len(tmpl.Forms))
		for i, v := range tmpl.Forms {
			forms[i] = domain.Variant{Text: v.Text, Conditions: v.Conditions}
		}
		out.Templates[name] = &domain.Template{Switch: tmpl.Switch, Forms: forms}
	}
	for _, imp := range d.Import {
		out.Imports = append(out.Imports, domain.Import{From: imp.From, Templates: imp.Templates})
	}
	return out
}
