package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/dialogic/pkg/adapters/memory"
	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/persistence/middleware"
)

func TestMaskingMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	mw, err := middleware.NewMaskingMiddleware([]string{"password", "ssn"})
	if err != nil {
		t.Fatal(err)
	}
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	session := domain.NewSession("pii-session")
	session.Context["username"] = "jdoe"
	session.Context["user_password"] = "secret123"
	session.Context["details"] = map[string]any{
		"address":    "123 St",
		"ssn_number": "999-99-9999",
	}
	session.Context["contacts"] = []any{
		map[string]any{"name": "ann", "password": "hunter2"},
	}

	if err := secureStore.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if session.Context["user_password"] != "secret123" {
		t.Error("Middleware modified the caller's session")
	}
	if session.Context["contacts"].([]any)[0].(map[string]any)["password"] != "hunter2" {
		t.Error("Middleware modified a nested list of the caller's session")
	}

	stored, err := underlyingStore.Load(ctx, "pii-session")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if stored.Context["username"] != "jdoe" {
		t.Error("Username shouldn't be masked")
	}
	if stored.Context["user_password"] != middleware.Mask {
		t.Errorf("Password should be masked, got %v", stored.Context["user_password"])
	}
	details := stored.Context["details"].(map[string]any)
	if details["ssn_number"] != middleware.Mask || details["address"] != "123 St" {
		t.Errorf("Nested map not masked correctly: %v", details)
	}
	contact := stored.Context["contacts"].([]any)[0].(map[string]any)
	if contact["password"] != middleware.Mask || contact["name"] != "ann" {
		t.Errorf("List entries not masked correctly: %v", contact)
	}
}

func TestMaskingMiddleware_InvalidPattern(t *testing.T) {
	if _, err := middleware.NewMaskingMiddleware([]string{"("}); err == nil {
		t.Fatal("expected invalid pattern error")
	}
}

func TestChain_MaskThenEncrypt(t *testing.T) {
	inner := memory.NewStore()
	mask, err := middleware.NewMaskingMiddleware([]string{"^token$"})
	if err != nil {
		t.Fatal(err)
	}
	seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	if err != nil {
		t.Fatal(err)
	}
	store := middleware.Chain(inner, mask, seal)

	ctx := context.Background()
	session := domain.NewSession("chained")
	session.Context["token"] = "abc"
	session.Context["lang"] = "en"
	if err := store.Save(ctx, session); err != nil {
		t.Fatal(err)
	}

	raw, err := inner.Load(ctx, "chained")
	if err != nil {
		t.Fatal(err)
	}
	if raw.Sealed == "" {
		t.Fatal("inner store should only see the sealed envelope")
	}

	loaded, err := store.Load(ctx, "chained")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Context["token"] != middleware.Mask || loaded.Context["lang"] != "en" {
		t.Errorf("unexpected context %v", loaded.Context)
	}
}
