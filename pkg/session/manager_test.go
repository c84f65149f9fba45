package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/dialogic/pkg/adapters/memory"
	"github.com/aretw0/dialogic/pkg/adapters/redis"
	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/dsl"
	"github.com/aretw0/dialogic/pkg/realizer"
	"github.com/aretw0/dialogic/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data  map[string]*domain.Session
	mu    sync.Mutex
	saves int
}

func (s *SlowStore) Save(ctx context.Context, session *domain.Session) error {
	time.Sleep(10 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.Session)
	}
	s.data[session.ID] = session.Clone()
	s.saves++
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	time.Sleep(10 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.data[sessionID]; ok {
		return session.Clone(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func newRealizer(t *testing.T) *realizer.Realizer {
	t.Helper()
	b := dsl.New()
	d := b.Domain("quiz")
	d.Intent("1.0.0-quiz").Form("Welcome $name")
	d.Intent("1.0.1-firstQuestion").
		Switch().
		Form("Back again?", "{ ThreadTouched '1.0' }").
		Form("First time?")
	d.Intent("Broken").Form("$missing")

	catalog, err := b.Catalog()
	require.NoError(t, err)

	r, err := realizer.New(catalog, realizer.WithFunctions(registryFunctions()))
	require.NoError(t, err)
	return r
}

func TestManager_Locking(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, id, func(ctx context.Context) error {
				s, err := store.Load(ctx, id)
				if err != nil {
					s = domain.NewSession(id)
					s.Context["count"] = 0
				}
				s.Context["count"] = s.Context["count"].(int) + 1
				return store.Save(ctx, s)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Context["count"], "read-modify-write must not lose updates")
}

func TestManager_LoadOrStart(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "atomic-init"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := manager.LoadOrStart(ctx, id)
			assert.NoError(t, err)
			assert.NotNil(t, s)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.saves, "only the first caller creates the session")
	s, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
}

func TestManager_Render(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	r := newRealizer(t)
	ctx := context.Background()

	s := domain.NewSession("conv")
	s.Context["name"] = "Ada"
	require.NoError(t, manager.Save(ctx, s))

	res, err := manager.Render(ctx, r, "conv", "1.0.1-firstQuestion", nil)
	require.NoError(t, err)
	assert.Equal(t, "First time?", res.Text)

	res, err = manager.Render(ctx, r, "conv", "1.0.0-quiz", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Welcome Ada", res.Text)

	res, err = manager.Render(ctx, r, "conv", "1.0.0-quiz", map[string]any{"name": "Grace"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome Grace", res.Text, "request env wins over session context")

	res, err = manager.Render(ctx, r, "conv", "1.0.1-firstQuestion", nil)
	require.NoError(t, err)
	assert.Equal(t, "Back again?", res.Text)

	stored, err := manager.Load(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.1-firstQuestion", "1.0.0-quiz", "1.0.0-quiz", "1.0.1-firstQuestion"}, stored.History.NodeOrder)
	assert.Equal(t, "Ada", stored.Context["name"], "request env is not persisted")

	// other sessions are independent
	res, err = manager.Render(ctx, r, "other", "1.0.1-firstQuestion", nil)
	require.NoError(t, err)
	assert.Equal(t, "First time?", res.Text)
	assert.Empty(t, r.History().NodeOrder(), "the engine-owned history is not used")
}

func TestManager_RenderFailureKeepsSession(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	r := newRealizer(t)
	ctx := context.Background()

	_, err := manager.Render(ctx, r, "conv", "1.0.0-quiz", map[string]any{"name": "Ada"})
	require.NoError(t, err)

	_, err = manager.Render(ctx, r, "conv", "Broken", nil)
	assert.ErrorIs(t, err, domain.ErrReference)

	stored, err := manager.Load(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0-quiz"}, stored.History.NodeOrder)
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	manager := session.NewManager(
		redis.NewFromClient(client),
		session.WithLocker(redis.NewLocker(client, "dialogic:")),
		session.WithLockTTL(5*time.Second),
	)
	ctx := context.Background()

	err := manager.WithLock(ctx, "locked", func(ctx context.Context) error {
		assert.True(t, mr.Exists("dialogic:lock:locked"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("dialogic:lock:locked"))

	_, err = manager.Render(ctx, newRealizer(t), "locked", "1.0.0-quiz", map[string]any{"name": "Ada"})
	require.NoError(t, err)

	ids, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"locked"}, ids)
}
