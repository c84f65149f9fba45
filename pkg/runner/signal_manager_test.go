package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignalManager_Lifecycle(t *testing.T) {
	sm := NewSignalManager()
	defer sm.Stop()

	first := sm.Context()
	assert.NoError(t, first.Err())

	sm.Reset()
	second := sm.Context()
	assert.NotEqual(t, first, second)
	assert.ErrorIs(t, first.Err(), context.Canceled)
	assert.NoError(t, second.Err())

	sm.Stop()
	assert.ErrorIs(t, second.Err(), context.Canceled)
}

func TestSignalManager_ResetIsNotAnInterrupt(t *testing.T) {
	sm := NewSignalManager()
	defer sm.Stop()

	done := sm.Track("Greet")
	sm.Reset()
	done()

	assert.Empty(t, sm.Interrupted())
}

func TestSignalManager_CheckRace(t *testing.T) {
	sm := NewSignalManager()
	defer sm.Stop()

	start := time.Now()
	sm.CheckRace()
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, InterruptRaceWindow)
	assert.Less(t, elapsed, 2*InterruptRaceWindow, "CheckRace took too long")
}
