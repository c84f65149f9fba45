package tests

import (
	"context"
	"testing"

	"github.com/aretw0/dialogic/pkg/ports"
)

// CatalogLoaderContractTest is a reusable test suite that verifies if an
// adapter complies with ports.CatalogLoader. intents lists every template
// the loaded catalog must register in its schema.
func CatalogLoaderContractTest(t *testing.T, loader ports.CatalogLoader, intents []string) {
	t.Helper()

	catalog, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error loading catalog: %v", err)
	}

	t.Run("Intents", func(t *testing.T) {
		got := catalog.Intents()
		if len(got) != len(intents) {
			t.Errorf("expected %d intents, got %d (%v)", len(intents), len(got), got)
		}
		for _, name := range intents {
			if !catalog.IsIntent(name) {
				t.Errorf("intent %s missing from catalog", name)
			}
		}
	})

	t.Run("Resolvable", func(t *testing.T) {
		for _, name := range intents {
			owner, _ := catalog.Owner(name)
			if _, _, err := catalog.Resolve(owner, name); err != nil {
				t.Errorf("intent %s does not resolve in its domain %s: %v", name, owner, err)
			}
		}
	})

	t.Run("Reload", func(t *testing.T) {
		again, err := loader.Load(context.Background())
		if err != nil {
			t.Fatalf("unexpected error reloading catalog: %v", err)
		}
		if len(again.Intents()) != len(catalog.Intents()) {
			t.Errorf("reload changed the intent count: %d != %d", len(again.Intents()), len(catalog.Intents()))
		}
	})
}
