package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpl-au/cmsdb/internal/database"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/jpl-au/cmsdb/internal/store/sqlite"
	"github.com/jpl-au/cmsdb/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandler records lifecycle calls. Data methods not overridden here
// panic through the nil embedded interface, so tests only call the ones
// below.
type fakeHandler struct {
	store.Handler

	mu         sync.Mutex
	connectErr []error // consumed per Connect call; nil once exhausted
	delay      time.Duration
	release    chan struct{}

	connects    atomic.Int32
	disconnects atomic.Int32
	connected   atomic.Bool

	lastDoc   store.Document
	lastPatch store.Patch
}

func (f *fakeHandler) Backend() string { return "fake" }

func (f *fakeHandler) Connect(ctx context.Context) error {
	f.connects.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	var err error
	if len(f.connectErr) > 0 {
		err, f.connectErr = f.connectErr[0], f.connectErr[1:]
	}
	f.mu.Unlock()
	f.connected.Store(err == nil)
	return err
}

func (f *fakeHandler) Disconnect(context.Context) error {
	f.disconnects.Add(1)
	f.connected.Store(false)
	return nil
}

func (f *fakeHandler) IsConnected() bool { return f.connected.Load() }

func (f *fakeHandler) Ping(context.Context) error {
	if !f.connected.Load() {
		return store.ErrNotConnected
	}
	return nil
}

func (f *fakeHandler) Count(context.Context, string, store.Filter) (int64, error) {
	return 7, nil
}

func (f *fakeHandler) Create(_ context.Context, _ string, doc store.Document) (store.Document, error) {
	f.mu.Lock()
	f.lastDoc = doc
	f.mu.Unlock()
	out := doc.Clone()
	out[store.FieldID] = "1"
	return out, nil
}

func (f *fakeHandler) Update(_ context.Context, _ string, _ store.Filter, p store.Patch, _ store.UpdateOptions) (int64, error) {
	f.mu.Lock()
	f.lastPatch = p
	f.mu.Unlock()
	return 1, nil
}

// newFake returns a Database over f and a counter of factory calls.
func newFake(t *testing.T, f *fakeHandler, opts ...database.Option) (*database.Database, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	opts = append([]database.Option{
		database.WithHandlerFactory(func() (store.Handler, error) {
			calls.Add(1)
			return f, nil
		}),
		database.WithRetry(3, time.Millisecond),
	}, opts...)
	db, err := database.New(database.Config{}, opts...)
	require.NoError(t, err)
	return db, &calls
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", store.BackendSQLite},
		{"sqlite", store.BackendSQLite},
		{"SQLite", store.BackendSQLite},
		{"mongo", store.BackendMongo},
		{"mongodb", store.BackendMongo},
	}
	for _, tt := range tests {
		db, err := database.New(database.Config{Backend: tt.in})
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, db.Backend(), tt.in)
	}

	_, err := database.New(database.Config{Backend: "postgres"})
	assert.ErrorIs(t, err, store.ErrConfiguration)
}

func TestNew_BadRetry(t *testing.T) {
	_, err := database.New(database.Config{}, database.WithRetry(-1, time.Second))
	assert.ErrorIs(t, err, store.ErrConfiguration)
}

func TestSingleFlight(t *testing.T) {
	f := &fakeHandler{delay: 50 * time.Millisecond}
	db, calls := newFake(t, f)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.Count(context.Background(), "pages", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load(), "factory calls")
	assert.Equal(t, int32(1), f.connects.Load(), "connect calls")
}

func TestConnect_RetriesThenSucceeds(t *testing.T) {
	boom := errors.New("connection refused")
	f := &fakeHandler{connectErr: []error{boom, boom}}
	db, _ := newFake(t, f)

	require.NoError(t, db.Initialize(context.Background()))
	assert.Equal(t, int32(3), f.connects.Load())
	assert.True(t, db.Status().Connected)
}

func TestConnect_Exhausted(t *testing.T) {
	boom := errors.New("connection refused")
	f := &fakeHandler{connectErr: []error{boom, boom, boom, boom}}
	db, calls := newFake(t, f)

	err := db.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrConnection)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), f.connects.Load())
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, db.Status().Connected)

	// The next call starts a fresh attempt.
	require.NoError(t, db.Initialize(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestConnect_ConfigErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	db, err := database.New(database.Config{},
		database.WithHandlerFactory(func() (store.Handler, error) {
			calls.Add(1)
			return nil, store.ErrConfiguration
		}),
		database.WithRetry(5, time.Millisecond),
	)
	require.NoError(t, err)

	_, err = db.Count(context.Background(), "pages", nil)
	assert.ErrorIs(t, err, store.ErrConfiguration)
	assert.NotErrorIs(t, err, store.ErrConnection)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConnect_StaleHandlerReconnects(t *testing.T) {
	f := &fakeHandler{}
	db, calls := newFake(t, f)
	ctx := context.Background()

	require.NoError(t, db.Initialize(ctx))
	f.connected.Store(false)

	n, err := db.Count(ctx, "pages", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, int32(1), calls.Load(), "stale handler is reused")
	assert.Equal(t, int32(2), f.connects.Load())
}

func TestConnect_StaleHandlerReplaced(t *testing.T) {
	f := &fakeHandler{}
	db, calls := newFake(t, f)
	ctx := context.Background()

	require.NoError(t, db.Initialize(ctx))
	f.connected.Store(false)
	f.connectErr = []error{errors.New("gone")}

	require.NoError(t, db.Initialize(ctx))
	assert.Equal(t, int32(2), calls.Load(), "failed reconnect creates a new handler")
	assert.Equal(t, int32(1), f.disconnects.Load())
}

func TestConnect_CallerCancelled(t *testing.T) {
	f := &fakeHandler{release: make(chan struct{})}
	db, _ := newFake(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- db.Initialize(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Initialize did not return after cancel")
	}

	// The detached attempt completes for later callers.
	close(f.release)
	require.NoError(t, db.Initialize(context.Background()))
	assert.Equal(t, int32(1), f.connects.Load())
}

func TestValidationSkipsConnect(t *testing.T) {
	f := &fakeHandler{}
	db, calls := newFake(t, f)
	ctx := context.Background()

	_, err := db.Find(ctx, "", nil, store.FindOptions{})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = db.Find(ctx, "pages", store.Filter{"views": store.Filter{"$near": 1}}, store.FindOptions{})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = db.Find(ctx, "pages", nil, store.FindOptions{Limit: -1})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = db.FindByID(ctx, "pages", "", store.FindOneOptions{})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = db.Update(ctx, "pages", nil, store.Patch{"_id": "x"}, store.UpdateOptions{})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = db.Update(ctx, "pages", nil, nil, store.UpdateOptions{})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = db.Create(ctx, "pages", store.Document{"$bad": 1})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = db.Distinct(ctx, "pages", "bad field", nil)
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = db.CreateIndex(ctx, "pages", store.IndexSpec{})
	assert.ErrorIs(t, err, store.ErrValidation)

	assert.Equal(t, int32(0), calls.Load())
}

func TestTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.FixedZone("AEDT", 11*3600))
	want := now.UTC().Truncate(time.Millisecond)
	f := &fakeHandler{}
	db, _ := newFake(t, f, database.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	in := store.Document{"title": "Home"}
	_, err := db.Create(ctx, "pages", in)
	require.NoError(t, err)
	assert.Equal(t, want, f.lastDoc[store.FieldCreatedAt])
	assert.Equal(t, want, f.lastDoc[store.FieldUpdatedAt])
	assert.NotContains(t, in, store.FieldCreatedAt, "caller map is not mutated")

	set := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = db.Create(ctx, "pages", store.Document{"title": "Old", store.FieldCreatedAt: set})
	require.NoError(t, err)
	assert.Equal(t, set, f.lastDoc[store.FieldCreatedAt])

	_, err = db.Update(ctx, "pages", nil, store.Patch{"status": "published"}, store.UpdateOptions{})
	require.NoError(t, err)
	// the clock is frozen, so each stamp is bumped past the last one
	assert.Equal(t, want.Add(2*time.Millisecond), f.lastPatch[store.FieldUpdatedAt])
	assert.Equal(t, "published", f.lastPatch["status"])

	_, err = db.Update(ctx, "pages", nil, store.Patch{store.FieldUpdatedAt: set}, store.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, set, f.lastPatch[store.FieldUpdatedAt])
}

func TestTimestamps_StrictlyIncreasing(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base, base.Add(400 * time.Microsecond), base.Add(-time.Second), base.Add(time.Minute)}
	i := 0
	f := &fakeHandler{}
	db, _ := newFake(t, f, database.WithClock(func() time.Time {
		now := clock[i]
		i++
		return now
	}))
	ctx := context.Background()

	_, err := db.Create(ctx, "pages", store.Document{"title": "Home"})
	require.NoError(t, err)
	prev := f.lastDoc[store.FieldUpdatedAt].(time.Time)
	assert.Equal(t, base, prev)

	want := []time.Time{
		base.Add(time.Millisecond),
		base.Add(2 * time.Millisecond),
		base.Add(3 * time.Millisecond),
		base.Add(time.Minute),
	}
	for _, w := range want {
		_, err := db.Update(ctx, "pages", nil, store.Patch{"status": "draft"}, store.UpdateOptions{})
		require.NoError(t, err)
		got := f.lastPatch[store.FieldUpdatedAt].(time.Time)
		assert.Equal(t, w, got)
		assert.True(t, got.After(prev))
		prev = got
	}
}

func TestWithoutTimestamps(t *testing.T) {
	f := &fakeHandler{}
	db, _ := newFake(t, f, database.WithoutTimestamps())

	_, err := db.Create(context.Background(), "pages", store.Document{"title": "Home"})
	require.NoError(t, err)
	assert.NotContains(t, f.lastDoc, store.FieldCreatedAt)
	assert.NotContains(t, f.lastDoc, store.FieldUpdatedAt)
}

func TestShutdown(t *testing.T) {
	f := &fakeHandler{}
	db, _ := newFake(t, f)
	ctx := context.Background()

	require.NoError(t, db.Shutdown(ctx), "no handler yet")

	require.NoError(t, db.Initialize(ctx))
	require.NoError(t, db.Shutdown(ctx))
	assert.Equal(t, int32(1), f.disconnects.Load())
	assert.False(t, db.Status().Connected)

	require.NoError(t, db.Shutdown(ctx), "second shutdown")
	assert.Equal(t, int32(1), f.disconnects.Load())
}

func TestResetConnection(t *testing.T) {
	f := &fakeHandler{}
	db, calls := newFake(t, f)
	ctx := context.Background()

	require.NoError(t, db.Initialize(ctx))
	require.NoError(t, db.ResetConnection(ctx))
	assert.Equal(t, int32(1), calls.Load(), "reset does not reconnect")
	assert.Equal(t, int32(1), f.disconnects.Load())
	assert.False(t, db.Status().Connected)

	_, err := db.Count(ctx, "pages", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "next operation reconnects")
	assert.True(t, db.Status().Connected)
}

func TestResetConnection_BackendDown(t *testing.T) {
	f := &fakeHandler{}
	db, calls := newFake(t, f, database.WithRetry(3, 200*time.Millisecond))
	ctx := context.Background()
	require.NoError(t, db.Initialize(ctx))

	down := errors.New("down")
	f.mu.Lock()
	f.connectErr = []error{down, down, down}
	f.mu.Unlock()

	start := time.Now()
	require.NoError(t, db.ResetConnection(ctx))
	assert.Less(t, time.Since(start), 200*time.Millisecond, "reset waits on no retries")
	assert.Equal(t, int32(1), calls.Load())

	_, err := db.Count(ctx, "pages", nil)
	assert.ErrorIs(t, err, store.ErrConnection)
}

func TestHealthCheck(t *testing.T) {
	f := &fakeHandler{}
	db, _ := newFake(t, f)

	st := db.HealthCheck(context.Background())
	assert.True(t, st.OK())
	assert.Equal(t, database.Healthy, st.Status)

	down := &fakeHandler{connectErr: []error{
		errors.New("refused"), errors.New("refused"), errors.New("refused"),
	}}
	db, _ = newFake(t, down)
	st = db.HealthCheck(context.Background())
	assert.Equal(t, database.Unhealthy, st.Status)
	assert.Contains(t, st.Message, "refused")
}

func TestMaintenance_Unsupported(t *testing.T) {
	db, _ := newFake(t, &fakeHandler{})
	ctx := context.Background()

	assert.ErrorIs(t, db.Vacuum(ctx), store.ErrUnsupported)
	assert.ErrorIs(t, db.Checkpoint(ctx), store.ErrUnsupported)
	assert.ErrorIs(t, db.Backup(ctx, "x.db"), store.ErrUnsupported)
	assert.ErrorIs(t, db.Backup(ctx, ""), store.ErrValidation)
}

func TestCreateThenUpdate_SameKeys(t *testing.T) {
	db, err := database.New(database.Config{
		SQLite: sqlite.Options{Path: filepath.Join(t.TempDir(), "cms.db")},
	})
	require.NoError(t, err)
	ctx := context.Background()
	t.Cleanup(func() { _ = db.Shutdown(ctx) })

	_, err = db.Create(ctx, "pages", store.Document{"hero-image": "a.png"})
	assert.ErrorIs(t, err, validate.ErrInvalidDocument)

	page, err := db.Create(ctx, "pages", store.Document{"hero_image": "a.png"})
	require.NoError(t, err)
	updated, err := db.UpdateByID(ctx, "pages", page.ID(), store.Patch{"hero_image": "b.png"}, store.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "b.png", updated["hero_image"])

	_, err = db.UpdateByID(ctx, "pages", page.ID(), store.Patch{"seo": map[string]any{}, "seo.title": "x"}, store.UpdateOptions{})
	assert.ErrorIs(t, err, validate.ErrInvalidPatch)
}

func TestSQLite_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(database.Config{
		SQLite: sqlite.Options{Path: filepath.Join(dir, "cms.db")},
	})
	require.NoError(t, err)
	ctx := context.Background()
	t.Cleanup(func() { _ = db.Shutdown(ctx) })

	assert.False(t, db.Status().Connected, "connects lazily")

	alice, err := db.Create(ctx, "users", store.Document{"name": "Alice", "age": 30})
	require.NoError(t, err)
	require.NotEmpty(t, alice.ID())
	assert.IsType(t, time.Time{}, alice[store.FieldCreatedAt])
	_, err = db.Create(ctx, "users", store.Document{"name": "Bob", "age": 20})
	require.NoError(t, err)

	older, err := db.Find(ctx, "users", store.Filter{"age": store.Filter{"$gt": 25}}, store.FindOptions{})
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "Alice", older[0]["name"])

	got, err := db.FindByID(ctx, "users", alice.ID(), store.FindOneOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got["name"])
	assert.Equal(t, int64(30), got["age"])

	updated, err := db.UpdateByID(ctx, "users", alice.ID(), store.Patch{"age": 31}, store.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(31), updated["age"])
	created := updated[store.FieldCreatedAt].(time.Time)
	assert.True(t, updated[store.FieldUpdatedAt].(time.Time).After(created),
		"updatedAt %v not after createdAt %v", updated[store.FieldUpdatedAt], created)

	n, err := db.Count(ctx, "users", store.Filter{"age": store.Filter{"$gte": 31}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := db.DeleteByID(ctx, "users", alice.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := db.FindByID(ctx, "users", alice.ID(), store.FindOneOptions{})
	require.NoError(t, err)
	assert.Nil(t, gone)

	st := db.Status()
	assert.True(t, st.Connected)
	assert.Equal(t, store.BackendSQLite, st.Backend)
	assert.NotEmpty(t, st.Details)

	name, err := db.CreateIndex(ctx, "users", store.IndexSpec{Keys: store.Sort{{Field: "name"}}})
	require.NoError(t, err)
	infos, err := db.ListIndexes(ctx, "users")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, name, infos[0].Name)

	require.NoError(t, db.Checkpoint(ctx))
	require.NoError(t, db.Vacuum(ctx))
	require.NoError(t, db.Backup(ctx, filepath.Join(dir, "backup", "cms.db")))

	assert.True(t, db.HealthCheck(ctx).OK())
}
