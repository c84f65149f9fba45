package history_test

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/aretw0/dialogic/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStep_BuildsThreads(t *testing.T) {
	h, err := history.New()
	require.NoError(t, err)

	h.RecordStep("1.0.0-quiz")
	h.RecordStep("1.0.1-firstQuestion")

	snap := h.Export()
	assert.Len(t, snap.NodeOrder, 2)
	assert.Contains(t, snap.Threads, history.RootThread)

	thread, ok := snap.Threads["1.0"]
	require.True(t, ok)
	assert.Equal(t, []string{"1.0.0-quiz", "1.0.1-firstQuestion"}, thread.Progress)
	assert.Equal(t, history.RootThread, thread.Parent)
	assert.Equal(t, []string{history.RootThread, "1.0"}, snap.ThreadOrder)
	assert.True(t, h.ThreadTouched(history.RootThread))

	node, ok := h.Node("1.0.1-firstQuestion")
	require.True(t, ok)
	assert.Equal(t, "1.0.1", node.ID)
	assert.Equal(t, "1.0", node.ThreadID)
	assert.Equal(t, 1, node.SequenceNumber)
	assert.Empty(t, node.Tag)
}

func TestRecordStep_ParentThread(t *testing.T) {
	h, err := history.New()
	require.NoError(t, err)

	h.RecordStep("1.0.0-start")
	h.RecordStep("1.0.2.0-branch")
	h.RecordStep("4.2.0.0-orphan")

	branch, ok := h.Thread("1.0.2")
	require.True(t, ok)
	assert.Equal(t, "1.0", branch.Parent)

	orphan, ok := h.Thread("4.2.0")
	require.True(t, ok)
	assert.Equal(t, history.RootThread, orphan.Parent)
}

func TestRecordStep_RevisitKeepsRecord(t *testing.T) {
	h, err := history.New()
	require.NoError(t, err)

	h.RecordStep("2.1.0-ask-CC")
	h.RecordStep("2.1.0-ask")

	assert.Equal(t, []string{"2.1.0-ask", "2.1.0-ask"}, h.NodeOrder())
	node, ok := h.Node("2.1.0-ask")
	require.True(t, ok)
	assert.Equal(t, "CC", node.Tag, "first visit wins")

	thread, _ := h.Thread("2.1")
	assert.Len(t, thread.Progress, 2)
}

func TestRecordStep_Untracked(t *testing.T) {
	h, err := history.New()
	require.NoError(t, err)

	h.RecordStep("InventoryQuery")

	snap := h.Export()
	assert.Equal(t, []string{"InventoryQuery"}, snap.NodeOrder)
	assert.Empty(t, snap.Threads)
	assert.Empty(t, snap.Nodes)
}

func TestRecallNodes(t *testing.T) {
	h, err := history.New()
	require.NoError(t, err)

	_, ok := h.RecallNodes(1)
	assert.False(t, ok)

	h.RecordStep("1.0.0-a")
	h.RecordStep("1.0.1-b")

	last, ok := h.RecallNodes(1)
	require.True(t, ok)
	assert.Equal(t, "1.0.1-b", last)

	first, ok := h.RecallNodes(2)
	require.True(t, ok)
	assert.Equal(t, "1.0.0-a", first)

	_, ok = h.RecallNodes(3)
	assert.False(t, ok)
}

func TestThreadTouched(t *testing.T) {
	h, err := history.New()
	require.NoError(t, err)

	assert.False(t, h.ThreadTouched("1.0"))
	h.RecordStep("1.0.1")
	assert.True(t, h.ThreadTouched("1.0"))
	assert.False(t, h.ThreadTouched("1.1"))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	h, err := history.New()
	require.NoError(t, err)
	h.RecordStep("1.0.0-quiz")
	h.RecordStep("1.0.1-firstQuestion")
	h.RecordStep("1.0.1.0-detour-TM")
	h.RecordStep("Greeting")

	raw, err := json.Marshal(h.Export())
	require.NoError(t, err)

	var decoded history.Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))

	restored, err := history.New(history.FromSnapshot(decoded))
	require.NoError(t, err)

	assert.Equal(t, h.Export(), restored.Export())

	// Mutating the copy does not leak into the original.
	restored.RecordStep("1.0.2-next")
	assert.Len(t, h.NodeOrder(), 4)
	assert.Len(t, restored.NodeOrder(), 5)
}

func TestNew_CustomPattern(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p := regexp.MustCompile(`^(?P<threadPath>[\d.]+):(?P<nodeName>\w+)$`)
		h, err := history.New(history.WithPattern(p))
		require.NoError(t, err)

		h.RecordStep("3.1.4:pie")
		_, ok := h.Node("3.1.4-pie")
		assert.True(t, ok)
	})

	t.Run("missing groups", func(t *testing.T) {
		p := regexp.MustCompile(`^(?P<thread>[\d.]+)$`)
		_, err := history.New(history.WithPattern(p))
		assert.ErrorIs(t, err, history.ErrInvalidPattern)
		assert.ErrorContains(t, err, "threadPath")
		assert.ErrorContains(t, err, "nodeName")
	})
}

func TestAccess(t *testing.T) {
	h, err := history.New()
	require.NoError(t, err)
	h.RecordStep("1.0.0-hello")

	order, ok := h.Access("threadOrder")
	require.True(t, ok)
	assert.Equal(t, []any{"root", "1.0"}, order)

	last, ok := h.Access("lastNode")
	require.True(t, ok)
	fn, ok := last.(func() any)
	require.True(t, ok)
	assert.Equal(t, "1.0.0-hello", fn())

	_, ok = h.Access("unknown")
	assert.False(t, ok)
}

func TestRecordStep_HyphenatedNodeName(t *testing.T) {
	h, err := history.New()
	require.NoError(t, err)

	h.RecordStep("1.0.2-first-question")
	h.RecordStep("1.0.3-follow-up-CC")

	assert.Equal(t, []string{"1.0.2-first-question", "1.0.3-follow-up"}, h.Export().NodeOrder)

	node, ok := h.Node("1.0.3-follow-up")
	require.True(t, ok)
	assert.Equal(t, "CC", node.Tag)
	assert.Equal(t, 3, node.SequenceNumber)
}
