package repository

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restful-api/internal/cache"
	"github.com/iliyamo/restful-api/internal/config"
	"github.com/iliyamo/restful-api/internal/database"
	"github.com/iliyamo/restful-api/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := database.Connect(context.Background(), config.DBConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestCache() *cache.Cache {
	return cache.New(cache.NewMemoryBackend(1024), cache.Policy{}, zerolog.Nop())
}

// countingMapper counts rows read from the database.
type countingMapper[T model.Entity] struct {
	Mapper[T]
	reads *atomic.Int64
}

func (c countingMapper[T]) Scan(row RowScanner) (T, error) {
	c.reads.Add(1)
	return c.Mapper.Scan(row)
}

func newCountingEmployees(t *testing.T, db *sql.DB, c *cache.Cache) (*EntityRepo[model.Employee], *atomic.Int64) {
	t.Helper()
	reads := new(atomic.Int64)
	m := countingMapper[model.Employee]{Mapper: employeeMapper{}, reads: reads}
	return NewEntityRepo[model.Employee](db, m, c, zerolog.Nop()), reads
}
