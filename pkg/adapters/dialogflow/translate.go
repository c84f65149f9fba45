package dialogflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/dialogic/pkg/history"
	"github.com/aretw0/dialogic/pkg/interpreter"
	"github.com/mitchellh/mapstructure"
)

const (
	// HistoryContext is the output context carrying the history snapshot.
	HistoryContext = "historyInstance"
	// ContextsKey is the env key under which the active contexts are exposed.
	ContextsKey = "contexts"

	systemCounters = "__system_counters__"
)

// ErrMissingIntent is returned when a webhook request names no intent.
var ErrMissingIntent = errors.New("dialogflow request has no intent display name")

// WebhookRequest is the subset of the Dialogflow ES webhook request we read.
type WebhookRequest struct {
	ResponseID  string      `json:"responseId,omitempty"`
	Session     string      `json:"session"`
	QueryResult QueryResult `json:"queryResult"`
}

// QueryResult holds the matched intent, its parameters and active contexts.
type QueryResult struct {
	QueryText      string         `json:"queryText,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Intent         Intent         `json:"intent"`
	OutputContexts []Context      `json:"outputContexts,omitempty"`
}

// Intent identifies the matched intent.
type Intent struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName"`
}

// Context is a Dialogflow context. Name is the full resource path.
type Context struct {
	Name          string         `json:"name"`
	LifespanCount int            `json:"lifespanCount,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

// WebhookResponse is the fulfillment response sent back to Dialogflow.
type WebhookResponse struct {
	FulfillmentText     string    `json:"fulfillmentText"`
	FulfillmentMessages []Message `json:"fulfillmentMessages"`
	OutputContexts      []Context `json:"outputContexts,omitempty"`
}

// Message is one fulfillment message.
type Message struct {
	Text MessageText `json:"text"`
}

// MessageText holds the alternatives of a text message.
type MessageText struct {
	Text []string `json:"text"`
}

// Request is a webhook request translated for rendering.
type Request struct {
	// Intent is the template to render.
	Intent string
	// Session is the Dialogflow session path.
	Session string
	// Parameters holds the intent parameters with types inferred,
	// plus the active contexts under ContextsKey.
	Parameters map[string]any
	// Contexts holds the active contexts by short name, in request order.
	Contexts []Context
	// History is the rehydrated history, or nil when the request carried none.
	History *history.Snapshot
}

// TranslateRequest converts a webhook request into a render request.
// List parameters become interpreter.ArrayRef, everything else is kept as is.
func TranslateRequest(req *WebhookRequest) (*Request, error) {
	if req.QueryResult.Intent.DisplayName == "" {
		return nil, ErrMissingIntent
	}

	out := &Request{
		Intent:     req.QueryResult.Intent.DisplayName,
		Session:    req.Session,
		Parameters: InferParameterTypes(req.QueryResult.Parameters),
	}

	contexts := make(map[string]any)
	for _, c := range req.QueryResult.OutputContexts {
		name := ShortName(c.Name)
		switch name {
		case systemCounters:
			continue
		case HistoryContext:
			snap, err := DecodeHistory(c.Parameters)
			if err != nil {
				return nil, err
			}
			out.History = snap
			continue
		}
		out.Contexts = append(out.Contexts, c)
		contexts[name] = map[string]any{
			"contextName":   name,
			"name":          c.Name,
			"lifespanCount": c.LifespanCount,
			"parameters":    c.Parameters,
		}
	}
	out.Parameters[ContextsKey] = contexts
	return out, nil
}

// TranslateResponse builds the fulfillment response for text. The active
// contexts are passed back untouched and the history context is replaced
// by hist when it is not nil.
func TranslateResponse(req *Request, text string, hist *history.Snapshot) *WebhookResponse {
	res := &WebhookResponse{
		FulfillmentText:     text,
		FulfillmentMessages: []Message{{Text: MessageText{Text: []string{text}}}},
		OutputContexts:      append([]Context(nil), req.Contexts...),
	}
	if hist != nil {
		res.OutputContexts = append(res.OutputContexts, Context{
			Name:       req.Session + "/contexts/" + HistoryContext,
			Parameters: EncodeHistory(*hist),
		})
	}
	return res
}

// InferParameterTypes wraps list parameters so conditions can slice and
// index them.
func InferParameterTypes(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		if list, ok := v.([]any); ok {
			out[k] = interpreter.ArrayRef{Elements: list}
			continue
		}
		out[k] = v
	}
	return out
}

// ShortName returns the last segment of a context resource path.
func ShortName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// DecodeHistory rebuilds a snapshot from history context parameters.
func DecodeHistory(params map[string]any) (*history.Snapshot, error) {
	var snap history.Snapshot
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &snap,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(params); err != nil {
		return nil, fmt.Errorf("invalid %s context: %w", HistoryContext, err)
	}
	return &snap, nil
}

// EncodeHistory flattens a snapshot into context parameters.
func EncodeHistory(snap history.Snapshot) map[string]any {
	threads := make(map[string]any, len(snap.Threads))
	for id, t := range snap.Threads {
		thread := map[string]any{
			"name":     t.Name,
			"progress": toAny(t.Progress),
		}
		if t.Parent != "" {
			thread["parent"] = t.Parent
		}
		threads[id] = thread
	}

	nodes := make(map[string]any, len(snap.Nodes))
	for name, n := range snap.Nodes {
		node := map[string]any{
			"name":           n.Name,
			"id":             n.ID,
			"threadId":       n.ThreadID,
			"sequenceNumber": n.SequenceNumber,
		}
		if n.Tag != "" {
			node["tag"] = n.Tag
		}
		nodes[name] = node
	}

	out := map[string]any{
		"threads":     threads,
		"threadOrder": toAny(snap.ThreadOrder),
		"nodes":       nodes,
		"nodeOrder":   toAny(snap.NodeOrder),
	}
	if snap.IDPattern != "" {
		out["idPattern"] = snap.IDPattern
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
