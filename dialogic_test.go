package dialogic_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/dialogic"
	"github.com/aretw0/dialogic/pkg/adapters/memory"
	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/dsl"
	"github.com/aretw0/dialogic/pkg/realizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, opts ...dialogic.Option) *dialogic.Engine {
	t.Helper()
	b := dsl.New()
	b.Domain("chat").
		Intent("Greet").
		Arg("name", "str", true).
		Form("Hello $name").
		Domain().
		Intent("Count").
		Switch().
		Form("again", "$history.nodeOrder.length > 0").
		Form("first")

	loader, err := b.Build()
	require.NoError(t, err)
	eng, err := dialogic.NewWithLoader(loader, opts...)
	require.NoError(t, err)
	return eng
}

func TestEngine_Render(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	res, err := eng.Render(ctx, "Greet", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", res.Text)
	assert.Equal(t, []string{"Greet"}, eng.History().NodeOrder())

	res, err = eng.Render(ctx, "Count", nil)
	require.NoError(t, err)
	assert.Equal(t, "again", res.Text)
}

func TestEngine_Check(t *testing.T) {
	eng := newEngine(t)

	err := eng.Check("Greet", map[string]any{})
	var missing *realizer.MissingArgumentsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"name"}, missing.Missing)

	assert.NoError(t, eng.Check("Greet", map[string]any{"name": "x"}))
	assert.ErrorIs(t, eng.Check("Nope", nil), domain.ErrTemplateNotFound)
}

func TestEngine_RenderSession(t *testing.T) {
	store := memory.NewStore()
	eng := newEngine(t, dialogic.WithSessionStore(store))
	ctx := context.Background()

	res, err := eng.RenderSession(ctx, "s1", "Count", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Text)

	res, err = eng.RenderSession(ctx, "s1", "Count", nil)
	require.NoError(t, err)
	assert.Equal(t, "again", res.Text)

	// Other sessions and the shared history are untouched.
	res, err = eng.RenderSession(ctx, "s2", "Count", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Text)
	assert.Empty(t, eng.History().NodeOrder())

	require.NoError(t, eng.DeleteSession(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_Evaluate(t *testing.T) {
	eng := newEngine(t)

	val, err := eng.Evaluate("$a + 2 * 3", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "7", val)

	touched, err := eng.Evaluate("{ ThreadTouched '1.0' }", nil)
	require.NoError(t, err)
	assert.Equal(t, false, touched)
}

func TestEngine_ReloadKeepsHistory(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, "Hi")

	eng, err := dialogic.New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := eng.Render(ctx, "Hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi", res.Text)

	writeTemplates(t, dir, "Hey")
	require.NoError(t, eng.Reload(ctx))

	res, err = eng.Render(ctx, "Hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hey", res.Text)
	assert.Equal(t, []string{"Hello", "Hello"}, eng.History().NodeOrder())
}

func TestEngine_ReloadFailureKeepsCatalog(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, "Hi")

	eng, err := dialogic.New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", "chat.template.json"), []byte("{"), 0o644))
	assert.Error(t, eng.Reload(context.Background()))

	res, err := eng.Render(context.Background(), "Hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi", res.Text)
}

func TestEngine_New_RequiresSource(t *testing.T) {
	_, err := dialogic.New("")
	assert.Error(t, err)
}

func TestEngine_Watch_Unsupported(t *testing.T) {
	eng := newEngine(t)
	_, err := eng.Watch(context.Background())
	assert.Error(t, err)
}

func writeTemplates(t *testing.T, dir, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "schema"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "content"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema", "chat.schema.json"),
		[]byte(`{"name": "chat", "schema": {"Hello": {"description": "greeting"}}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", "chat.template.json"),
		[]byte(`{"name": "chat", "templates": {"Hello": {"forms": [{"text": "`+text+`"}]}}}`), 0o644))
}
