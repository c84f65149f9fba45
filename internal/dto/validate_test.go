package dto_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/dialogic/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateJSONSchema(t *testing.T) {
	for _, kind := range []dto.DocumentKind{dto.KindSchema, dto.KindContent} {
		data, err := dto.GenerateJSONSchema(kind)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Contains(t, doc["$id"], string(kind))
	}

	_, err := dto.GenerateJSONSchema("nope")
	assert.Error(t, err)
}

func TestLoadSchema(t *testing.T) {
	doc, err := dto.LoadSchema("inventory.schema.json", []byte(`{
		"name": "inventory",
		"schema": {
			"InventoryQuery": {
				"args": {
					"num_items": {"type": "num", "required": true},
					"item_singular": {"type": "str"}
				},
				"description": "How many items are in stock"
			}
		}
	}`))
	require.NoError(t, err)

	src := doc.Source()
	assert.Equal(t, "inventory", src.Name)
	assert.True(t, src.Schema["InventoryQuery"].Args["num_items"].Required)
	assert.False(t, src.Schema["InventoryQuery"].Args["item_singular"].Required)
}

func TestLoadContent_YAML(t *testing.T) {
	doc, err := dto.LoadContent("greetings.template.yaml", []byte(`
name: greetings
templates:
  Hello:
    switch: true
    forms:
      - text: "Welcome back, $name!"
        conditions:
          - "$visits > 1"
      - text: "Hello, $name."
import:
  - from: shared
    templates: [_sign]
`))
	require.NoError(t, err)

	d := doc.Domain()
	assert.Equal(t, "greetings", d.Name)
	require.Contains(t, d.Templates, "Hello")
	assert.True(t, d.Templates["Hello"].Switch)
	assert.Equal(t, []string{"$visits > 1"}, d.Templates["Hello"].Forms[0].Conditions)
	assert.Equal(t, "shared", d.Imports[0].From)
}

func TestLoadContent_Invalid(t *testing.T) {
	_, err := dto.LoadContent("broken.template.json", []byte(`{
		"name": "broken",
		"templates": {
			"Hello": {"forms": [{"conditions": ["true"]}]},
			"Empty": {"forms": []}
		}
	}`))
	require.Error(t, err)

	var verr *dto.DocumentValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "broken.template.json", verr.File)
	assert.Equal(t, dto.KindContent, verr.Kind)
	assert.NotEmpty(t, verr.Issues)
}

func TestParse_Malformed(t *testing.T) {
	_, err := dto.Parse("x.schema.json", []byte(`{"name": `))
	assert.ErrorContains(t, err, "invalid JSON at x.schema.json")

	_, err = dto.Parse("x.schema.yaml", []byte("name: [unterminated"))
	assert.ErrorContains(t, err, "invalid YAML at x.schema.yaml")
}
