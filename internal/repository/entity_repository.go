package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iliyamo/restful-api/internal/apperr"
	"github.com/iliyamo/restful-api/internal/cache"
	"github.com/iliyamo/restful-api/internal/model"
)

// RowScanner is satisfied by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// Mapper describes how one entity type maps onto its table. Columns lists
// every column except id in insert order; Scan reads a row selected as
// id followed by Columns.
type Mapper[T model.Entity] interface {
	// Entity is the cache key prefix, e.g. "employee".
	Entity() string
	Table() string
	Columns() []string
	Values(v T) []any
	// MutableColumns are the columns an Update may change.
	MutableColumns() []string
	MutableValues(v T) []any
	Scan(row RowScanner) (T, error)
	WithID(v T, id int64) T
}

// EntityRepo is the cache-aside CRUD store shared by every entity type.
// Reads consult the cache first; writes hit the database and then refresh
// or drop the affected keys (`<entity>:<id>` and `<entity>:all`).
type EntityRepo[T model.Entity] struct {
	db     *sql.DB
	m      Mapper[T]
	cache  *cache.Cache
	opts   []cache.Option
	log    zerolog.Logger
	selCol string
}

// NewEntityRepo builds a repository. opts are applied to every cache write
// of this entity type.
func NewEntityRepo[T model.Entity](db *sql.DB, m Mapper[T], c *cache.Cache, log zerolog.Logger, opts ...cache.Option) *EntityRepo[T] {
	return &EntityRepo[T]{
		db:     db,
		m:      m,
		cache:  c,
		opts:   opts,
		log:    log.With().Str("entity", m.Entity()).Logger(),
		selCol: "id, " + strings.Join(m.Columns(), ", "),
	}
}

func (r *EntityRepo[T]) ItemKey(id int64) string {
	return r.m.Entity() + ":" + strconv.FormatInt(id, 10)
}

func (r *EntityRepo[T]) AllKey() string { return r.m.Entity() + ":all" }

// GetAll returns every row ordered by id. An empty table is reported as
// apperr.ErrNotFound.
func (r *EntityRepo[T]) GetAll(ctx context.Context) ([]T, error) {
	if items, ok := cache.Get[[]T](ctx, r.cache, r.AllKey()); ok {
		return items, nil
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s ORDER BY id", r.selCol, r.m.Table()))
	if err != nil {
		return nil, r.storageErr("list", err)
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		v, err := r.m.Scan(rows)
		if err != nil {
			return nil, r.storageErr("list", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, r.storageErr("list", err)
	}
	if len(items) == 0 {
		return nil, apperr.NotFound(fmt.Sprintf("no %s records", r.m.Entity()))
	}

	r.cache.Set(ctx, r.AllKey(), items, r.listOpts(len(items))...)
	return items, nil
}

// GetByID returns the entity with the given id or apperr.ErrNotFound.
func (r *EntityRepo[T]) GetByID(ctx context.Context, id int64) (T, error) {
	if v, ok := cache.Get[T](ctx, r.cache, r.ItemKey(id)); ok {
		return v, nil
	}
	v, err := r.load(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	r.cache.Set(ctx, r.ItemKey(id), v, r.opts...)
	return v, nil
}

// Create inserts v and returns it with the assigned id.
func (r *EntityRepo[T]) Create(ctx context.Context, v T) (T, error) {
	cols := r.m.Columns()
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.m.Table(), strings.Join(cols, ", "), placeholders(len(cols)))

	res, err := r.db.ExecContext(ctx, q, r.m.Values(v)...)
	if err != nil {
		var zero T
		return zero, r.writeErr("create", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		var zero T
		return zero, r.storageErr("create", err)
	}
	v = r.m.WithID(v, id)

	r.cache.Set(ctx, r.ItemKey(id), v, r.opts...)
	r.cache.Remove(ctx, r.AllKey())
	return v, nil
}

// Update overwrites the mutable columns of row id with those of v and
// returns the stored row.
func (r *EntityRepo[T]) Update(ctx context.Context, id int64, v T) (T, error) {
	var zero T
	if _, err := r.load(ctx, id); err != nil {
		return zero, err
	}

	cols := r.m.MutableColumns()
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	args := append(r.m.MutableValues(v), id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", r.m.Table(), strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return zero, r.writeErr("update", err)
	}

	updated, err := r.load(ctx, id)
	if err != nil {
		// deleted concurrently
		r.cache.Remove(ctx, r.ItemKey(id), r.AllKey())
		return zero, err
	}
	r.cache.Set(ctx, r.ItemKey(id), updated, r.opts...)
	r.cache.Remove(ctx, r.AllKey())
	return updated, nil
}

// Delete removes row id and returns the row as it was before deletion.
func (r *EntityRepo[T]) Delete(ctx context.Context, id int64) (T, error) {
	var zero T
	prior, err := r.load(ctx, id)
	if err != nil {
		return zero, err
	}

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.m.Table()), id)
	if err != nil {
		return zero, r.writeErr("delete", err)
	}
	r.cache.Remove(ctx, r.ItemKey(id), r.AllKey())

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return zero, r.notFound(id)
	}
	return prior, nil
}

// load reads row id from the database, bypassing the cache.
func (r *EntityRepo[T]) load(ctx context.Context, id int64) (T, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", r.selCol, r.m.Table()), id)
	v, err := r.m.Scan(row)
	if err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, r.notFound(id)
		}
		return zero, r.storageErr("get", err)
	}
	return v, nil
}

func (r *EntityRepo[T]) listOpts(n int) []cache.Option {
	opts := make([]cache.Option, 0, len(r.opts)+1)
	opts = append(opts, r.opts...)
	return append(opts, cache.WithWeight(int64(n)))
}

func (r *EntityRepo[T]) notFound(id int64) error {
	return apperr.NotFound(fmt.Sprintf("%s %d not found", r.m.Entity(), id))
}

// writeErr classifies a failed INSERT/UPDATE/DELETE.
func (r *EntityRepo[T]) writeErr(op string, err error) error {
	if isDuplicate(err) {
		return apperr.Conflict(fmt.Sprintf("%s already exists", r.m.Entity()), err)
	}
	return r.storageErr(op, err)
}

func (r *EntityRepo[T]) storageErr(op string, err error) error {
	r.log.Error().Err(err).Str("op", op).Msg("storage failure")
	return apperr.Storage(fmt.Sprintf("%s %s failed", op, r.m.Entity()), err)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
