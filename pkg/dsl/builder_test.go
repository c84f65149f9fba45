package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Catalog(t *testing.T) {
	b := dsl.New()

	b.Domain("inventory").
		Intent("InventoryQuery").
		Describe("How many items are in stock").
		Arg("num_items", "num", true).
		Arg("item_plural", "str", false).
		Switch().
		Form("We have $num_items", "$num_items > 0").
		Form("None left").
		Domain().
		Template("_seem").
		Form("seems like").
		Form("looks like")

	b.Domain("chat").
		Import("inventory", "_seem").
		Intent("Hello").
		Form("It [_seem] you are back")

	catalog, err := b.Catalog()
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", "InventoryQuery"}, catalog.Intents())
	owner, _ := catalog.Owner("InventoryQuery")
	assert.Equal(t, "inventory", owner)

	schema := catalog.Schema["InventoryQuery"]
	assert.Equal(t, "How many items are in stock", schema.Description)
	assert.True(t, schema.Args["num_items"].Required)
	assert.False(t, schema.Args["item_plural"].Required)

	tmpl, defining, err := catalog.Resolve("chat", "_seem")
	require.NoError(t, err)
	assert.Equal(t, "inventory", defining)
	assert.Len(t, tmpl.Forms, 2)

	query, _, err := catalog.Resolve("inventory", "InventoryQuery")
	require.NoError(t, err)
	assert.True(t, query.Switch)
	assert.Equal(t, []string{"$num_items > 0"}, query.Forms[0].Conditions)
	assert.Empty(t, query.Forms[1].Conditions)
}

func TestBuilder_Build(t *testing.T) {
	b := dsl.New()
	b.Domain("d").Intent("Ping").Form("pong")

	loader, err := b.Build()
	require.NoError(t, err)

	catalog, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, catalog.IsIntent("Ping"))
}

func TestBuilder_PlainTemplateIgnoresSchemaCalls(t *testing.T) {
	b := dsl.New()
	d := b.Domain("d")
	d.Intent("Ping").Form("pong")
	d.Template("_helper").Arg("x", "str", true).Describe("ignored").Form("x")

	catalog, err := b.Catalog()
	require.NoError(t, err)
	assert.False(t, catalog.IsIntent("_helper"))
}

func TestBuilder_ReservedName(t *testing.T) {
	b := dsl.New()
	b.Domain("d").Intent("Ping").Form("pong").Domain().Template("import").Form("x")

	_, err := b.Build()
	assert.ErrorIs(t, err, domain.ErrReservedName)
}

func TestBuilder_NoDomains(t *testing.T) {
	_, err := dsl.New().Catalog()
	assert.ErrorIs(t, err, domain.ErrNoSchema)
}
