package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/dialogic"
	"github.com/aretw0/dialogic/pkg/adapters/dialogflow"
	"github.com/aretw0/dialogic/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type watchEngine struct {
	*dialogic.Engine
	events []string
}

func (w *watchEngine) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, len(w.events))
	for _, e := range w.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func newEngine(t *testing.T) *dialogic.Engine {
	t.Helper()
	b := dsl.New()
	b.Domain("greetings").
		Intent("Greet").
		Describe("Say hello").
		Arg("name", "str", true).
		Switch().
		Form("Welcome back, $name!", "$history.nodeOrder.length > 0").
		Form("Hello, $name.")

	loader, err := b.Build()
	require.NoError(t, err)
	eng, err := dialogic.NewWithLoader(loader)
	require.NoError(t, err)
	return eng
}

func newServer(t *testing.T, eng Engine) http.Handler {
	t.Helper()
	h, err := NewHandler(eng)
	require.NoError(t, err)
	return h
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetRoot(t *testing.T) {
	h := newServer(t, newEngine(t))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "\nHello from dialogic!\n", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRenderTemplate(t *testing.T) {
	h := newServer(t, newEngine(t))

	w := postJSON(t, h, "/nlg", RenderRequest{TemplateName: "Greet", Env: map[string]any{"name": "Ada"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res RenderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "Hello, Ada.", res.Response)

	// The engine history is shared by stateless renders.
	w = postJSON(t, h, "/nlg", RenderRequest{TemplateName: "Greet", Env: map[string]any{"name": "Ada"}})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Welcome back, Ada!", res.Response)
}

func TestRenderTemplate_Failure(t *testing.T) {
	h := newServer(t, newEngine(t))

	w := postJSON(t, h, "/nlg", RenderRequest{TemplateName: "Missing"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var res RenderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Contains(t, res.Response, "Missing")
}

func TestRenderTemplate_RejectedByOpenAPI(t *testing.T) {
	h := newServer(t, newEngine(t))

	w := postJSON(t, h, "/nlg", map[string]any{"env": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "templateName")
}

func TestRenderTemplate_InputTooLarge(t *testing.T) {
	t.Setenv("DIALOGIC_MAX_INPUT_SIZE", "8")
	h := newServer(t, newEngine(t))

	w := postJSON(t, h, "/nlg", RenderRequest{TemplateName: "Greet", Env: map[string]any{"name": strings.Repeat("a", 32)}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name")
}

func TestSessions(t *testing.T) {
	eng := newEngine(t)
	h := newServer(t, eng)

	w := postJSON(t, h, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["sessionId"]
	require.NotEmpty(t, id)

	var texts []string
	for i := 0; i < 2; i++ {
		w = postJSON(t, h, "/sessions/"+id+"/render", RenderRequest{TemplateName: "Greet", Env: map[string]any{"name": "Bo"}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res RenderResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		texts = append(texts, res.Response)
	}
	assert.Equal(t, []string{"Hello, Bo.", "Welcome back, Bo!"}, texts)

	// Session renders do not leak into the engine history.
	assert.Empty(t, eng.History().NodeOrder())

	req := httptest.NewRequest(http.MethodDelete, "/sessions/"+id, nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := eng.Sessions().Load(context.Background(), id)
	assert.Error(t, err)
}

func TestValidateParameters(t *testing.T) {
	h := newServer(t, newEngine(t))

	w := postJSON(t, h, "/validate", RenderRequest{TemplateName: "Greet"})
	require.Equal(t, http.StatusOK, w.Code)
	var res ValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"name"}, res.Missing)

	w = postJSON(t, h, "/validate", RenderRequest{TemplateName: "Greet", Env: map[string]any{"name": "x"}})
	res = ValidateResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Valid)

	w = postJSON(t, h, "/validate", RenderRequest{TemplateName: "Nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTemplates(t *testing.T) {
	h := newServer(t, newEngine(t))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/templates", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var list []TemplateInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Greet", list[0].Name)
	assert.Equal(t, "greetings", list[0].Domain)
	assert.True(t, list[0].Args["name"].Required)
}

func TestInfoAndHealth(t *testing.T) {
	h := newServer(t, newEngine(t))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))
	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, dialogic.Version, info["version"])
	assert.Equal(t, "1.1.0", info["api_version"])
	assert.Equal(t, 1.0, info["intents"])
}

func TestOpenAPIDocument(t *testing.T) {
	h := newServer(t, newEngine(t))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dialogic NLG API")
}

func TestDialogflow(t *testing.T) {
	h := newServer(t, newEngine(t))

	send := func(contexts []dialogflow.Context) dialogflow.WebhookResponse {
		req := dialogflow.WebhookRequest{
			Session: "projects/p/agent/sessions/s1",
		}
		req.QueryResult.Intent.DisplayName = "Greet"
		req.QueryResult.Parameters = map[string]any{"name": "Cy"}
		req.QueryResult.OutputContexts = contexts

		w := postJSON(t, h, "/dialogflow", req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res dialogflow.WebhookResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		return res
	}

	first := send(nil)
	assert.Equal(t, "Hello, Cy.", first.FulfillmentText)
	require.Len(t, first.OutputContexts, 1)

	second := send(first.OutputContexts)
	assert.Equal(t, "Welcome back, Cy!", second.FulfillmentText)
}

func TestDialogflow_LoadsFixture(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "dialogflow", "testdata", "request.json"))
	require.NoError(t, err)

	h := newServer(t, newEngine(t))
	req := httptest.NewRequest(http.MethodPost, "/dialogflow", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	// day.query is not part of the catalog.
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestSubscribeEvents_Global(t *testing.T) {
	eng := &watchEngine{Engine: newEngine(t), events: []string{"reload"}}
	h := newServer(t, eng)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, "data: reload")
}

func TestSubscribeEvents_Session(t *testing.T) {
	h := newServer(t, newEngine(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wSub := httptest.NewRecorder()
	reqSub := httptest.NewRequest(http.MethodGet, "/events?sessionId=sess-1", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(wSub, reqSub)
	}()

	time.Sleep(100 * time.Millisecond) // Wait for subscription to register

	w := postJSON(t, h, "/sessions/sess-1/render", RenderRequest{TemplateName: "Greet", Env: map[string]any{"name": "Di"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	output := wSub.Body.String()
	assert.Contains(t, output, "event: ping")
	assert.Contains(t, output, `"text":"Hello, Di."`)
}
