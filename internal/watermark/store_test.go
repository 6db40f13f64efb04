package watermark

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiokicks/leaderboard/internal/db"
	"github.com/studiokicks/leaderboard/internal/model"
	"github.com/studiokicks/leaderboard/internal/testutil"
)

// =============================================================================
// Store
// =============================================================================

func TestStore_SetNeverRegresses(t *testing.T) {
	s := NewStore(NewMemoryPersistence(), testutil.NewTestLogger().Logger())

	_, ok := s.Get(model.Client)
	assert.False(t, ok)

	assert.True(t, s.Set(model.Client, 100))
	assert.False(t, s.Set(model.Client, 50))
	assert.False(t, s.Set(model.Client, 100))
	assert.True(t, s.Set(model.Client, 101))

	ts, ok := s.Get(model.Client)
	require.True(t, ok)
	assert.Equal(t, int64(101), ts)

	_, ok = s.Get(model.Event)
	assert.False(t, ok, "entities are independent")
}

func TestStore_ResetThenLowerValue(t *testing.T) {
	s := NewStore(NewMemoryPersistence(), nil)

	s.Set(model.Event, 500)
	s.Reset(model.Event)
	_, ok := s.Get(model.Event)
	assert.False(t, ok)

	assert.True(t, s.Set(model.Event, 10))
}

func TestStore_ConcurrentSetIsMonotonic(t *testing.T) {
	s := NewStore(NewMemoryPersistence(), nil)

	var wg sync.WaitGroup
	for i := int64(1); i <= 200; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			s.Set(model.Attendance, ts)
		}(i)
	}
	wg.Wait()

	ts, _ := s.Get(model.Attendance)
	assert.Equal(t, int64(200), ts)
}

func TestStore_FlushAndLoad(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence()

	s := NewStore(p, nil)
	s.Set(model.Client, 1)
	s.Set(model.Teacher, 2)
	assert.True(t, s.Dirty())

	require.NoError(t, s.Flush(ctx))
	assert.False(t, s.Dirty())
	assert.Equal(t, 1, p.Saves())

	// clean store does not write again
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, p.Saves())

	reloaded := NewStore(p, nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
}

func TestStore_FailedFlushStaysDirty(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence()
	s := NewStore(p, nil)

	p.SetSaveError(errors.New("disk full"))
	s.Set(model.Client, 1)

	err := s.Flush(ctx)
	require.Error(t, err)
	assert.True(t, s.Dirty())

	ts, ok := s.Get(model.Client)
	assert.True(t, ok)
	assert.Equal(t, int64(1), ts, "in-memory value survives a failed flush")

	p.SetSaveError(nil)
	require.NoError(t, s.Flush(ctx))
	assert.False(t, s.Dirty())
	assert.Equal(t, map[model.EntityType]int64{model.Client: 1}, p.Saved())
}

func TestStore_LoadFailureMeansFullResync(t *testing.T) {
	logger := testutil.NewTestLogger()
	p := NewMemoryPersistence()
	p.SetLoadError(errors.New("corrupt"))

	s := NewStore(p, logger.Logger())
	s.Set(model.Client, 5)

	err := s.Load(context.Background())
	require.Error(t, err)
	assert.Empty(t, s.Snapshot())
	assert.True(t, logger.HasMessage("failed to load watermarks, starting from scratch"))
}

func TestStore_ResetIsFlushed(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence()
	s := NewStore(p, nil)

	s.Set(model.Client, 1)
	s.Set(model.Event, 2)
	require.NoError(t, s.Flush(ctx))

	s.Reset(model.Client)
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, map[model.EntityType]int64{model.Event: 2}, p.Saved())
}

// =============================================================================
// Handle
// =============================================================================

func TestHandle_AdvancePersists(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence()
	s := NewStore(p, nil)
	h := s.For(model.Transaction)

	assert.Equal(t, model.Transaction, h.Entity())
	assert.Nil(t, h.Get())

	advanced, err := h.Advance(ctx, 10)
	require.NoError(t, err)
	assert.True(t, advanced)
	require.NotNil(t, h.Get())
	assert.Equal(t, int64(10), *h.Get())
	assert.Equal(t, map[model.EntityType]int64{model.Transaction: 10}, p.Saved())

	advanced, err = h.Advance(ctx, 9)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, 1, p.Saves())
}

// =============================================================================
// Backends
// =============================================================================

func TestFilePersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "watermarks.toml")
	p := NewFilePersistence(path)

	marks, err := p.LoadAll(ctx)
	require.NoError(t, err, "missing file is not an error")
	assert.Empty(t, marks)

	want := map[model.EntityType]int64{model.Attendance: 1519898400, model.Client: 7}
	require.NoError(t, p.SaveAll(ctx, want))

	got, err := p.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "attendance = 1519898400")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestFilePersistence_RejectsUnknownEntity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermarks.toml")
	require.NoError(t, os.WriteFile(path, []byte("[watermarks]\ncontact = 1\n"), 0o644))

	_, err := NewFilePersistence(path).LoadAll(context.Background())
	assert.Error(t, err)
}

func TestDatabasePersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.CreateSchema(ctx, nil))

	p := NewDatabasePersistence(database)

	want := map[model.EntityType]int64{model.Event: 3, model.Teacher: 4}
	require.NoError(t, p.SaveAll(ctx, want))

	got, err := p.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, p.SaveAll(ctx, map[model.EntityType]int64{model.Event: 5}))
	got, err = p.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[model.EntityType]int64{model.Event: 5}, got)

	// entity tables are untouched
	n, err := database.Count(ctx, model.Event)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewPersistence(t *testing.T) {
	p, err := NewPersistence(Config{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryPersistence{}, p)

	p, err = NewPersistence(Config{Backend: BackendFile, Path: "x.toml"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FilePersistence{}, p)

	_, err = NewPersistence(Config{Backend: BackendDatabase}, nil)
	assert.Error(t, err)

	_, err = NewPersistence(Config{Backend: "redis"}, nil)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Backend: BackendFile}.Validate())
	assert.Error(t, Config{Backend: "s3"}.Validate())
}
