/*
Package dsl provides a fluent Go builder for template catalogs.

It lets callers declare domains, intents and templates in code instead of
schema and content files. This is mostly useful for tests and for embedding
small catalogs in a binary.

Example usage:

	b := dsl.New()

	inventory := b.Domain("inventory")
	inventory.Intent("InventoryQuery").
		Describe("The user asks how many of an item are in stock").
		Arg("num_items", "num", true).
		Arg("item_plural", "str", true).
		Switch().
		Form("We have $num_items $item_plural", "$num_items > 0").
		Form("We are out of $item_plural")

	inventory.Template("_seem").
		Form("seems like").
		Form("looks like")

	loader, err := b.Build()
	// ... pass loader to dialogic.New(...) or dialogic.NewWithLoader(...)
*/
package dsl
