/*
Package dialogic is a natural-language-generation template engine for conversational agents.

Given a named intent and a variable environment, it selects one of several candidate phrasings,
evaluates the conditions attached to them, renders nested sub-templates and substitutes variables,
while tracking conversation progress in a hierarchical history of threads and nodes.

# Concept

Templates live in a directory with two halves:

  - schema/*.schema.{json,yaml}: the intents a domain exposes and their arguments.
  - content/*.template.{json,yaml}: the phrasings (forms) of every template, with optional conditions.

Conditions are written in a small expression language ("$num_items > 0 && { IsNull $user } == 0")
evaluated by pkg/interpreter. Host functions such as CompareDateTime or ThreadTouched are provided by
pkg/registry. The engine is stateless per call unless a history is bound, either the engine-owned one
or a per-conversation one managed by pkg/session.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/dialogic"
	)

	func main() {
		// Load templates from ./templates (schema/ and content/)
		eng, err := dialogic.New("./templates")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		res, err := eng.Render(ctx, "InventoryQuery", map[string]any{
			"num_items":   3,
			"item_plural": "apples",
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(res.Text)

		// Per-conversation history, persisted through the configured SessionStore.
		res, err = eng.RenderSession(ctx, "user-42", "InventoryQuery", map[string]any{
			"num_items":   0,
			"item_plural": "pears",
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(res.Text)
	}

Catalogs can also be declared in code with pkg/dsl and served through pkg/adapters/memory.
*/
package dialogic
