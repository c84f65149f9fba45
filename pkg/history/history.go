package history

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// RootThread is the implicit thread every tracked thread descends from.
const RootThread = "root"

// DefaultPattern decomposes identifiers such as "1.0.2-greeting-CC" into a
// thread path ("1.0.2"), a node name ("greeting") and a tag ("CC").
// Node names may contain hyphens ("first-question"); a trailing known tag
// is still split off. Identifiers without a dotted path are untracked.
var DefaultPattern = regexp.MustCompile(
	`^(?:(?P<threadPath>[0-9A-Z]+(?:\.[0-9A-Z]+)+)-?)?(?P<nodeName>\w+(?:-\w+)*?)?(?:-(?P<tag>CC|TM|ET|CM))?$`,
)

// ErrInvalidPattern is returned when an identifier pattern lacks the
// required named groups.
var ErrInvalidPattern = errors.New("invalid history identifier pattern")

var requiredGroup = regexp.MustCompile(`\(\?P?<(threadPath|nodeName)>`)

// Thread is a branch of the conversation tree.
type Thread struct {
	Name     string   `json:"name" mapstructure:"name"`
	Progress []string `json:"progress" mapstructure:"progress"`
	Parent   string   `json:"parent,omitempty" mapstructure:"parent"`
}

// Node is one recorded conversational step.
type Node struct {
	Name           string `json:"name" mapstructure:"name"`
	ID             string `json:"id" mapstructure:"id"`
	ThreadID       string `json:"threadId" mapstructure:"threadId"`
	SequenceNumber int    `json:"sequenceNumber" mapstructure:"sequenceNumber"`
	Tag            string `json:"tag,omitempty" mapstructure:"tag"`
}

// Snapshot is the persistable form of a History.
type Snapshot struct {
	Threads     map[string]Thread `json:"threads" mapstructure:"threads"`
	ThreadOrder []string          `json:"threadOrder" mapstructure:"threadOrder"`
	Nodes       map[string]Node   `json:"nodes" mapstructure:"nodes"`
	NodeOrder   []string          `json:"nodeOrder" mapstructure:"nodeOrder"`
	IDPattern   string            `json:"idPattern,omitempty" mapstructure:"idPattern"`
}

// IsZero reports whether the snapshot holds no recorded state.
func (s Snapshot) IsZero() bool {
	return len(s.Threads) == 0 && len(s.Nodes) == 0 && len(s.NodeOrder) == 0
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		ThreadOrder: append([]string(nil), s.ThreadOrder...),
		NodeOrder:   append([]string(nil), s.NodeOrder...),
		IDPattern:   s.IDPattern,
	}
	if s.Threads != nil {
		out.Threads = make(map[string]Thread, len(s.Threads))
		for id, t := range s.Threads {
			out.Threads[id] = copyThread(t)
		}
	}
	if s.Nodes != nil {
		out.Nodes = make(map[string]Node, len(s.Nodes))
		for name, n := range s.Nodes {
			out.Nodes[name] = n
		}
	}
	return out
}

// History tracks the hierarchical thread/node model of a conversation.
// It is safe for concurrent use.
type History struct {
	mu          sync.RWMutex
	threads     map[string]*Thread
	threadOrder []string
	nodes       map[string]Node
	nodeOrder   []string
	pattern     *regexp.Regexp
	groups      map[string]int
}

// Option configures a History.
type Option func(*config)

type config struct {
	snapshot *Snapshot
	pattern  *regexp.Regexp
}

// FromSnapshot rehydrates the History from a previous export.
func FromSnapshot(s Snapshot) Option {
	return func(c *config) {
		c.snapshot = &s
	}
}

// WithPattern overrides the identifier pattern. It must declare the
// named groups threadPath and nodeName; tag is optional.
func WithPattern(p *regexp.Regexp) Option {
	return func(c *config) {
		c.pattern = p
	}
}

// New creates a History, empty unless FromSnapshot is given.
func New(opts ...Option) (*History, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	pattern := cfg.pattern
	if pattern == nil && cfg.snapshot != nil && cfg.snapshot.IDPattern != "" &&
		cfg.snapshot.IDPattern != DefaultPattern.String() {
		compiled, err := regexp.Compile(cfg.snapshot.IDPattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		pattern = compiled
	}
	if pattern == nil {
		pattern = DefaultPattern
	}
	if err := checkPattern(pattern.String()); err != nil {
		return nil, err
	}

	h := &History{
		threads: make(map[string]*Thread),
		nodes:   make(map[string]Node),
		pattern: pattern,
		groups:  make(map[string]int),
	}
	for i, name := range pattern.SubexpNames() {
		if name != "" {
			h.groups[name] = i
		}
	}

	if s := cfg.snapshot; s != nil {
		for id, t := range s.Threads {
			t := t
			t.Progress = append([]string(nil), t.Progress...)
			h.threads[id] = &t
		}
		for name, n := range s.Nodes {
			h.nodes[name] = n
		}
		h.threadOrder = append(h.threadOrder, s.ThreadOrder...)
		h.nodeOrder = append(h.nodeOrder, s.NodeOrder...)
	}

	return h, nil
}

func checkPattern(source string) error {
	found := map[string]bool{}
	for _, m := range requiredGroup.FindAllStringSubmatch(source, -1) {
		found[m[1]] = true
	}
	var missing []string
	for _, g := range []string{"threadPath", "nodeName"} {
		if !found[g] {
			missing = append(missing, g)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing named group(s) %s", ErrInvalidPattern, strings.Join(missing, ", "))
	}
	return nil
}

// RecordStep registers identifier as the latest conversational step.
func (h *History) RecordStep(identifier string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	match := h.pattern.FindStringSubmatch(identifier)
	threadPath := h.group(match, "threadPath")
	if threadPath == "" {
		h.nodeOrder = append(h.nodeOrder, identifier)
		return
	}

	segments := strings.Split(threadPath, ".")
	sequence := segments[len(segments)-1]
	threadID := strings.Join(segments[:len(segments)-1], ".")

	nodeName := threadID + "." + sequence
	if unique := h.group(match, "nodeName"); unique != "" {
		nodeName += "-" + unique
	}

	if _, ok := h.threads[RootThread]; !ok {
		h.threads[RootThread] = &Thread{Name: RootThread, Progress: []string{threadID}}
		h.threadOrder = append(h.threadOrder, RootThread)
	}

	if t, ok := h.threads[threadID]; ok {
		t.Progress = append(t.Progress, nodeName)
	} else {
		parent := RootThread
		if len(segments) > 2 {
			candidate := strings.Join(segments[:len(segments)-2], ".")
			if _, seen := h.threads[candidate]; seen {
				parent = candidate
			}
		}
		h.threadOrder = append(h.threadOrder, threadID)
		h.threads[threadID] = &Thread{Name: threadID, Progress: []string{nodeName}, Parent: parent}
	}

	h.nodeOrder = append(h.nodeOrder, nodeName)

	if _, ok := h.nodes[nodeName]; !ok {
		seq, _ := strconv.Atoi(sequence)
		h.nodes[nodeName] = Node{
			Name:           nodeName,
			ID:             threadID + "." + sequence,
			ThreadID:       threadID,
			SequenceNumber: seq,
			Tag:            h.group(match, "tag"),
		}
	}
}

func (h *History) group(match []string, name string) string {
	i, ok := h.groups[name]
	if !ok || match == nil || i >= len(match) {
		return ""
	}
	return match[i]
}

// RecallNodes returns the node name stepsBack positions from the end of
// the node log. ok is false when the log is shorter than that.
func (h *History) RecallNodes(stepsBack int) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if stepsBack < 1 || stepsBack > len(h.nodeOrder) {
		return "", false
	}
	return h.nodeOrder[len(h.nodeOrder)-stepsBack], true
}

// ThreadTouched reports whether threadID has been visited.
func (h *History) ThreadTouched(threadID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range h.threadOrder {
		if id == threadID {
			return true
		}
	}
	return false
}

// Thread returns the record for id.
func (h *History) Thread(id string) (Thread, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	t, ok := h.threads[id]
	if !ok {
		return Thread{}, false
	}
	return copyThread(*t), true
}

// Node returns the record for a qualified node name.
func (h *History) Node(name string) (Node, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n, ok := h.nodes[name]
	return n, ok
}

// NodeOrder returns a copy of the step log.
func (h *History) NodeOrder() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return append([]string(nil), h.nodeOrder...)
}

// Export returns a deep copy of the current state.
func (h *History) Export() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Snapshot{
		Threads:     make(map[string]Thread, len(h.threads)),
		ThreadOrder: append([]string{}, h.threadOrder...),
		Nodes:       make(map[string]Node, len(h.nodes)),
		NodeOrder:   append([]string{}, h.nodeOrder...),
		IDPattern:   h.pattern.String(),
	}
	for id, t := range h.threads {
		s.Threads[id] = copyThread(*t)
	}
	for name, n := range h.nodes {
		s.Nodes[name] = n
	}
	return s
}

// Access exposes history fields to expressions such as
// "$history.threadOrder" or "$history.recallNodes".
func (h *History) Access(key string) (any, bool) {
	switch key {
	case "threads":
		s := h.Export()
		out := make(map[string]any, len(s.Threads))
		for id, t := range s.Threads {
			progress := make([]any, len(t.Progress))
			for i, p := range t.Progress {
				progress[i] = p
			}
			out[id] = map[string]any{"name": t.Name, "progress": progress, "parent": t.Parent}
		}
		return out, true
	case "nodes":
		s := h.Export()
		out := make(map[string]any, len(s.Nodes))
		for name, n := range s.Nodes {
			out[name] = map[string]any{
				"name":           n.Name,
				"id":             n.ID,
				"threadId":       n.ThreadID,
				"sequenceNumber": n.SequenceNumber,
				"tag":            n.Tag,
			}
		}
		return out, true
	case "threadOrder":
		h.mu.RLock()
		defer h.mu.RUnlock()
		return toAny(h.threadOrder), true
	case "nodeOrder":
		return toAny(h.NodeOrder()), true
	case "lastNode", "recallNodes":
		return func() any {
			name, ok := h.RecallNodes(1)
			if !ok {
				return nil
			}
			return name
		}, true
	}
	return nil, false
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func copyThread(t Thread) Thread {
	t.Progress = append([]string{}, t.Progress...)
	return t
}
