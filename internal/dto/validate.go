package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// DocumentKind selects the JSON Schema a document is validated against.
type DocumentKind string

const (
	KindSchema  DocumentKind = "schema"
	KindContent DocumentKind = "content"
)

// Issue is a single validation failure inside a document.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// DocumentValidationError reports every issue found in one document.
type DocumentValidationError struct {
	File   string
	Kind   DocumentKind
	Issues []Issue
}

func (e *DocumentValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		path := issue.Path
		if path == "" {
			path = "/"
		}
		parts[i] = fmt.Sprintf("%s: %s", path, issue.Message)
	}
	return fmt.Sprintf("invalid %s document %s: %s", e.Kind, e.File, strings.Join(parts, "; "))
}

// GenerateJSONSchema produces the JSON Schema of a document kind.
func GenerateJSONSchema(kind DocumentKind) ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.AllowAdditionalProperties = true

	var s *jsonschema.Schema
	switch kind {
	case KindSchema:
		s = r.Reflect(&SchemaDocument{})
		s.Title = "Dialogic schema document"
		s.Description = "Intent argument schema for one template domain"
	case KindContent:
		s = r.Reflect(&ContentDocument{})
		s.Title = "Dialogic content document"
		s.Description = "Templates and imports of one template domain"
	default:
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}
	s.ID = jsonschema.ID(fmt.Sprintf("https://github.com/aretw0/dialogic/schemas/%s.json", kind))

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

var (
	compileOnce sync.Once
	compiled    map[DocumentKind]*sjsonschema.Schema
	compileErr  error
)

func schemas() (map[DocumentKind]*sjsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[DocumentKind]*sjsonschema.Schema)
		c := sjsonschema.NewCompiler()
		for _, kind := range []DocumentKind{KindSchema, KindContent} {
			data, err := GenerateJSONSchema(kind)
			if err != nil {
				compileErr = err
				return
			}
			doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("unmarshal %s schema: %w", kind, err)
				return
			}
			url := string(kind) + ".json"
			if err := c.AddResource(url, doc); err != nil {
				compileErr = fmt.Errorf("add %s schema resource: %w", kind, err)
				return
			}
			sch, err := c.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("compile %s schema: %w", kind, err)
				return
			}
			compiled[kind] = sch
		}
	})
	return compiled, compileErr
}

// Parse decodes a JSON or YAML document into generic values, picking the
// format from the file extension.
func Parse(file string, data []byte) (any, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML at %s: %w", file, err)
		}
		return doc, nil
	default:
		doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("invalid JSON at %s: %w", file, err)
		}
		return doc, nil
	}
}

// Validate checks a parsed document against the JSON Schema of its kind.
// Failures are returned as *DocumentValidationError.
func Validate(kind DocumentKind, file string, doc any) error {
	all, err := schemas()
	if err != nil {
		return err
	}
	sch, ok := all[kind]
	if !ok {
		return fmt.Errorf("unknown document kind %q", kind)
	}

	if err := sch.Validate(doc); err != nil {
		verr := &DocumentValidationError{File: file, Kind: kind}
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flatten(ve) {
				verr.Issues = append(verr.Issues, Issue{
					Path:    "/" + strings.Join(cause.InstanceLocation, "/"),
					Message: fmt.Sprintf("%v", cause.ErrorKind),
				})
			}
		} else {
			verr.Issues = append(verr.Issues, Issue{Message: err.Error()})
		}
		return verr
	}
	return nil
}

func flatten(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flatten(cause)...)
	}
	return flat
}

// Decode maps a parsed document onto a DTO through its mapstructure tags.
func Decode(doc any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(doc)
}

// LoadSchema parses, validates and decodes a schema document.
func LoadSchema(file string, data []byte) (*SchemaDocument, error) {
	var out SchemaDocument
	if err := load(KindSchema, file, data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadContent parses, validates and decodes a content document.
func LoadContent(file string, data []byte) (*ContentDocument, error) {
	var out ContentDocument
	if err := load(KindContent, file, data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func load(kind DocumentKind, file string, data []byte, out any) error {
	doc, err := Parse(file, data)
	if err != nil {
		return err
	}
	if err := Validate(kind, file, doc); err != nil {
		return err
	}
	if err := Decode(doc, out); err != nil {
		return fmt.Errorf("decode %s: %w", file, err)
	}
	return nil
}
