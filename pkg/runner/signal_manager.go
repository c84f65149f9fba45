package runner

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// InterruptRaceWindow is how long CheckRace waits for a signal to follow an
// input error.
const InterruptRaceWindow = 100 * time.Millisecond

// SignalManager turns OS signals into context cancellation for the
// conversation loop, and remembers which turn was rendering when one arrived.
type SignalManager struct {
	mu          sync.Mutex
	signals     []os.Signal
	ctx         context.Context
	cancel      context.CancelFunc
	stopAfter   func() bool
	turn        string
	interrupted string
}

// NewSignalManager starts listening for signals, SIGINT and SIGTERM by default.
func NewSignalManager(signals ...os.Signal) *SignalManager {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	sm := &SignalManager{signals: signals}
	sm.Reset()
	return sm
}

// Context returns the current signal context.
func (sm *SignalManager) Context() context.Context {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.ctx
}

// Reset re-arms the listener after a signal was handled and forgets the
// interrupted turn.
func (sm *SignalManager) Reset() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.release()
	sm.interrupted = ""
	ctx, cancel := signal.NotifyContext(context.Background(), sm.signals...)
	sm.ctx, sm.cancel = ctx, cancel
	sm.stopAfter = context.AfterFunc(ctx, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		sm.interrupted = sm.turn
	})
}

// Stop permanently stops the signal listener.
func (sm *SignalManager) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.release()
}

func (sm *SignalManager) release() {
	if sm.stopAfter != nil {
		sm.stopAfter()
	}
	if sm.cancel != nil {
		sm.cancel()
	}
}

// Track marks template as the turn being rendered until the returned
// function is called.
func (sm *SignalManager) Track(template string) func() {
	sm.mu.Lock()
	sm.turn = template
	sm.mu.Unlock()
	return func() {
		sm.mu.Lock()
		sm.turn = ""
		sm.mu.Unlock()
	}
}

// Interrupted returns the template whose render a signal cut short, or "".
func (sm *SignalManager) Interrupted() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.interrupted
}

// CheckRace waits briefly to see if a context cancellation follows an error.
// On Windows consoles Ctrl+C can surface as an input error slightly before
// the signal context is cancelled.
func (sm *SignalManager) CheckRace() {
	ctx := sm.Context()
	if ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case <-time.After(InterruptRaceWindow):
		}
	}
}
