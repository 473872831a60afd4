package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restful-api/internal/apperr"
	"github.com/iliyamo/restful-api/internal/cache"
	"github.com/iliyamo/restful-api/internal/model"
)

func ada() model.Employee {
	return model.Employee{Name: "Ada", Age: 36, Email: "ada@example.com", Position: "Engineer"}
}

func TestEntityRepo_GetByIDCachesAfterFirstRead(t *testing.T) {
	ctx := context.Background()
	repo, reads := newCountingEmployees(t, newTestDB(t), newTestCache())

	created, err := repo.Create(ctx, ada())
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	// Create already populated the item key.
	assert.Equal(t, int64(0), reads.Load())

	repo.cache.Remove(ctx, repo.ItemKey(created.ID))
	_, err = repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reads.Load())
}

func TestEntityRepo_GetByIDMissing(t *testing.T) {
	repo, _ := newCountingEmployees(t, newTestDB(t), newTestCache())

	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEntityRepo_GetAllEmptyIsNotFound(t *testing.T) {
	repo, _ := newCountingEmployees(t, newTestDB(t), newTestCache())

	_, err := repo.GetAll(context.Background())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEntityRepo_GetAllCachedUntilCreate(t *testing.T) {
	ctx := context.Background()
	repo, reads := newCountingEmployees(t, newTestDB(t), newTestCache())

	_, err := repo.Create(ctx, ada())
	require.NoError(t, err)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	before := reads.Load()

	_, err = repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, reads.Load(), "second GetAll must be served from cache")

	bob := model.Employee{Name: "Bob", Age: 41, Email: "bob@example.com", Position: "Manager"}
	_, err = repo.Create(ctx, bob)
	require.NoError(t, err)

	all, err = repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "Ada", all[0].Name)
	assert.Equal(t, "Bob", all[1].Name)
}

func TestEntityRepo_UpdateRefreshesItemAndDropsList(t *testing.T) {
	ctx := context.Background()
	repo, reads := newCountingEmployees(t, newTestDB(t), newTestCache())

	created, err := repo.Create(ctx, ada())
	require.NoError(t, err)
	_, err = repo.GetAll(ctx)
	require.NoError(t, err)

	changed := created
	changed.Position = "Principal Engineer"
	updated, err := repo.Update(ctx, created.ID, changed)
	require.NoError(t, err)
	assert.Equal(t, "Principal Engineer", updated.Position)

	n := reads.Load()
	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.Equal(t, n, reads.Load(), "item key is refreshed by Update")

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Principal Engineer", all[0].Position)
}

func TestEntityRepo_UpdateMissing(t *testing.T) {
	repo, _ := newCountingEmployees(t, newTestDB(t), newTestCache())

	_, err := repo.Update(context.Background(), 7, ada())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEntityRepo_DeleteReturnsPriorAndInvalidates(t *testing.T) {
	ctx := context.Background()
	repo, _ := newCountingEmployees(t, newTestDB(t), newTestCache())

	created, err := repo.Create(ctx, ada())
	require.NoError(t, err)
	_, err = repo.GetAll(ctx)
	require.NoError(t, err)

	prior, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, prior)

	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = repo.GetAll(ctx)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = repo.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEntityRepo_ListWeightCountsRows(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryBackend(100)
	c := cache.New(mem, cache.Policy{}, zerolog.Nop())
	repo, _ := newCountingEmployees(t, newTestDB(t), c)

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, ada())
		require.NoError(t, err)
	}
	// three item entries of weight 1
	require.Equal(t, int64(3), mem.Size())

	_, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), mem.Size())
}

// failingBackend rejects every operation.
type failingBackend struct{}

var errBackendDown = errors.New("backend down")

func (failingBackend) Get(context.Context, string) ([]byte, error)             { return nil, errBackendDown }
func (failingBackend) Set(context.Context, string, []byte, cache.Policy) error { return errBackendDown }
func (failingBackend) Delete(context.Context, ...string) error                 { return errBackendDown }
func (failingBackend) Ping(context.Context) error                              { return errBackendDown }

func TestEntityRepo_CacheFailureNeverSurfaces(t *testing.T) {
	ctx := context.Background()
	c := cache.New(failingBackend{}, cache.Policy{}, zerolog.Nop())
	repo, reads := newCountingEmployees(t, newTestDB(t), c)

	created, err := repo.Create(ctx, ada())
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Positive(t, reads.Load())
}

func TestEntityRepo_ClosedDatabaseIsStorageFailure(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo, _ := newCountingEmployees(t, db, newTestCache())
	require.NoError(t, db.Close())

	_, err := repo.Create(ctx, ada())
	assert.ErrorIs(t, err, apperr.ErrStorage)
	_, err = repo.GetByID(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrStorage)
}
