package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/localnerve/portsmith/internal/allocator"
	"github.com/localnerve/portsmith/internal/config"
	"github.com/localnerve/portsmith/internal/database"
	"github.com/localnerve/portsmith/internal/models"
	"github.com/localnerve/portsmith/internal/store"
	"github.com/localnerve/portsmith/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(&config.Config{
		DBType:     "sqlite",
		DBDatabase: ":memory:",
		LogLevel:   "critical",
	})
	require.NoError(t, err, "Failed to create test database")
	require.NoError(t, database.AutoMigrate(db), "Failed to migrate test database")
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func ptr(s string) *string { return &s }

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := store.New(setupTestDB(t))

	err := s.Create(ctx, 55010, store.Data{
		Properties: map[string]string{"service": "postgres", "owner": "infra"},
		Tags:       []string{"db", "prod", "db"},
	})
	require.NoError(t, err)

	exists, err := s.Exists(ctx, 55010)
	require.NoError(t, err)
	assert.True(t, exists)

	tags, err := s.ListTags(ctx, 55010)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "prod", "db"}, tags, "tags are stored verbatim with duplicates")

	properties, err := s.ListProperties(ctx, 55010)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"service": "postgres", "owner": "infra"}, properties)

	r, err := s.Get(ctx, 55010)
	require.NoError(t, err)
	assert.Equal(t, 55010, r.Port)
	assert.Equal(t, []string{"db", "prod", "db"}, r.Tags)
	assert.Equal(t, "postgres", r.Properties["service"])

	_, err = s.Get(ctx, 55011)
	assert.ErrorIs(t, err, types.ErrNotReserved)
}

func TestCreateConflict(t *testing.T) {
	ctx := context.Background()
	s := store.New(setupTestDB(t))

	require.NoError(t, s.Create(ctx, 55001, store.Data{Tags: []string{"first"}}))
	err := s.Create(ctx, 55001, store.Data{Tags: []string{"second"}})
	assert.ErrorIs(t, err, types.ErrAlreadyReserved)

	// The losing create must not leave rows behind
	tags, err := s.ListTags(ctx, 55001)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, tags)
}

func TestConcurrentCreateSamePort(t *testing.T) {
	ctx := context.Background()
	s := store.New(setupTestDB(t))

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Create(ctx, 55020, store.Data{Tags: []string{"race"}})
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, types.ErrAlreadyReserved):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, conflicted)

	tags, err := s.ListTags(ctx, 55020)
	require.NoError(t, err)
	assert.Equal(t, []string{"race"}, tags)
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	s := store.New(db)

	require.NoError(t, s.Create(ctx, 55002, store.Data{
		Properties: map[string]string{"a": "1"},
		Tags:       []string{"x", "y"},
	}))

	released, err := s.Release(ctx, 55002)
	require.NoError(t, err)
	assert.True(t, released)

	exists, err := s.Exists(ctx, 55002)
	require.NoError(t, err)
	assert.False(t, exists)

	var tagRows, propertyRows int64
	require.NoError(t, db.Model(&models.Tag{}).Where("port = ?", 55002).Count(&tagRows).Error)
	require.NoError(t, db.Model(&models.Property{}).Where("port = ?", 55002).Count(&propertyRows).Error)
	assert.Zero(t, tagRows)
	assert.Zero(t, propertyRows)

	released, err = s.Release(ctx, 55002)
	require.NoError(t, err)
	assert.False(t, released, "releasing a free port is a no-op")
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	s := store.New(setupTestDB(t))

	err := s.Replace(ctx, 55003, store.Data{Tags: []string{"x"}})
	assert.ErrorIs(t, err, types.ErrNotReserved)

	require.NoError(t, s.Create(ctx, 55003, store.Data{
		Properties: map[string]string{"old": "1"},
		Tags:       []string{"old"},
	}))
	require.NoError(t, s.Replace(ctx, 55003, store.Data{
		Properties: map[string]string{"new": "2"},
		Tags:       []string{"new", "new"},
	}))

	r, err := s.Get(ctx, 55003)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "new"}, r.Tags)
	assert.Equal(t, map[string]string{"new": "2"}, r.Properties)
}

func TestApplyPatch(t *testing.T) {
	ctx := context.Background()
	s := store.New(setupTestDB(t))

	err := s.ApplyPatch(ctx, 55004, store.Patch{AddTags: []string{"x"}})
	assert.ErrorIs(t, err, types.ErrNotReserved)

	require.NoError(t, s.Create(ctx, 55004, store.Data{
		Properties: map[string]string{"keep": "k", "drop": "d", "change": "before"},
		Tags:       []string{"a", "b", "a", "c"},
	}))

	require.NoError(t, s.ApplyPatch(ctx, 55004, store.Patch{
		Properties: map[string]*string{
			"drop":   nil,
			"change": ptr("after"),
			"added":  ptr("new"),
		},
		RemoveTags: []string{"a"},
		AddTags:    []string{"d", "b"},
	}))

	r, err := s.Get(ctx, 55004)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"keep": "k", "change": "after", "added": "new"}, r.Properties)
	assert.Equal(t, []string{"b", "c", "d", "b"}, r.Tags, "removal deletes every matching row")
}

func TestApplyPatchIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.New(setupTestDB(t))
	require.NoError(t, s.Create(ctx, 55005, store.Data{Properties: map[string]string{"x": "1"}}))

	deleteX := store.Patch{Properties: map[string]*string{"x": nil}}
	require.NoError(t, s.ApplyPatch(ctx, 55005, deleteX))
	require.NoError(t, s.ApplyPatch(ctx, 55005, deleteX), "deleting an absent property is a no-op")

	setY := store.Patch{Properties: map[string]*string{"y": ptr("2")}}
	require.NoError(t, s.ApplyPatch(ctx, 55005, setY))
	require.NoError(t, s.ApplyPatch(ctx, 55005, setY))

	properties, err := s.ListProperties(ctx, 55005)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"y": "2"}, properties)
}

func TestConcurrentPatchSameProperty(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	s := store.New(db)
	require.NoError(t, s.Create(ctx, 55006, store.Data{}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.ApplyPatch(ctx, 55006, store.Patch{Properties: map[string]*string{"owner": ptr("svc")}}))
		}()
	}
	wg.Wait()

	var rows int64
	require.NoError(t, db.Model(&models.Property{}).Where("port = ? AND name = ?", 55006, "owner").Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestCreateNext(t *testing.T) {
	ctx := context.Background()
	s := store.New(setupTestDB(t))

	pick := func(reserved []int) (int, error) {
		return allocator.NextAvailable(reserved, 55001)
	}

	require.NoError(t, s.Create(ctx, 55001, store.Data{}))
	require.NoError(t, s.Create(ctx, 55003, store.Data{}))

	port, err := s.CreateNext(ctx, pick, store.Data{Tags: []string{"next"}})
	require.NoError(t, err)
	assert.Equal(t, 55002, port)

	port, err = s.CreateNext(ctx, pick, store.Data{})
	require.NoError(t, err)
	assert.Equal(t, 55004, port)

	tags, err := s.ListTags(ctx, 55002)
	require.NoError(t, err)
	assert.Equal(t, []string{"next"}, tags)

	exhausted := func([]int) (int, error) { return 0, types.ErrRangeExhausted }
	_, err = s.CreateNext(ctx, exhausted, store.Data{})
	assert.ErrorIs(t, err, types.ErrRangeExhausted)
}

func TestConcurrentCreateNextHandsOutDistinctPorts(t *testing.T) {
	ctx := context.Background()
	s := store.New(setupTestDB(t))
	pick := func(reserved []int) (int, error) {
		return allocator.NextAvailable(reserved, 55001)
	}

	const callers = 10
	var mu sync.Mutex
	var wg sync.WaitGroup
	seen := map[int]bool{}
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			port, err := s.CreateNext(ctx, pick, store.Data{})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[port], "port %d handed out twice", port)
			seen[port] = true
		}()
	}
	wg.Wait()

	ports, err := s.ListPorts(ctx)
	require.NoError(t, err)
	assert.Len(t, ports, callers)
	assert.Equal(t, 55001, ports[0])
	assert.Equal(t, 55001+callers-1, ports[len(ports)-1])
}

func TestDetails(t *testing.T) {
	ctx := context.Background()
	s := store.New(setupTestDB(t))
	require.NoError(t, s.Create(ctx, 55007, store.Data{Tags: []string{"a"}, Properties: map[string]string{"k": "v"}}))
	require.NoError(t, s.Create(ctx, 55008, store.Data{}))

	details, err := s.Details(ctx, []int{55007, 55008, 55009})
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, []string{"a"}, details[55007].Tags)
	assert.Equal(t, map[string]string{"k": "v"}, details[55007].Properties)
	assert.Empty(t, details[55008].Tags)
	assert.NotNil(t, details[55008].Properties)

	details, err = s.Details(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, details)
}

func TestLargeAnnotationSets(t *testing.T) {
	ctx := context.Background()
	s := store.New(setupTestDB(t))

	// More rows than any single statement may bind on SQLite or SQL Server
	tags := make([]string, 40000)
	for i := range tags {
		tags[i] = fmt.Sprintf("tag-%05d", i)
	}
	properties := make(map[string]string, 3000)
	for i := 0; i < 3000; i++ {
		properties[fmt.Sprintf("name-%04d", i)] = fmt.Sprintf("value-%d", i)
	}

	require.NoError(t, s.Create(ctx, 55020, store.Data{Tags: tags, Properties: properties}))

	got, err := s.ListTags(ctx, 55020)
	require.NoError(t, err)
	assert.Equal(t, tags, got)

	gotProperties, err := s.ListProperties(ctx, 55020)
	require.NoError(t, err)
	assert.Equal(t, properties, gotProperties)

	require.NoError(t, s.ApplyPatch(ctx, 55020, store.Patch{RemoveTags: tags[10:]}))

	got, err = s.ListTags(ctx, 55020)
	require.NoError(t, err)
	assert.Equal(t, tags[:10], got)

	require.NoError(t, s.Replace(ctx, 55020, store.Data{Tags: tags}))
	got, err = s.ListTags(ctx, 55020)
	require.NoError(t, err)
	assert.Len(t, got, len(tags))
}

func TestStorageFailure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	s := store.New(db)
	require.NoError(t, database.Close(db))

	_, err := s.Exists(ctx, 55001)
	assert.ErrorIs(t, err, types.ErrStorage)

	var storageErr *types.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "exists", storageErr.Op)
}
