package repository

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/iliyamo/restful-api/internal/cache"
	"github.com/iliyamo/restful-api/internal/model"
)

// EmployeeEntity is the cache key prefix for employees.
const EmployeeEntity = "employee"

type employeeMapper struct{}

func (employeeMapper) Entity() string { return EmployeeEntity }
func (employeeMapper) Table() string  { return "employees" }

func (employeeMapper) Columns() []string {
	return []string{"name", "age", "email", "position"}
}

func (employeeMapper) Values(e model.Employee) []any {
	return []any{e.Name, e.Age, e.Email, e.Position}
}

func (m employeeMapper) MutableColumns() []string             { return m.Columns() }
func (m employeeMapper) MutableValues(e model.Employee) []any { return m.Values(e) }

func (employeeMapper) Scan(row RowScanner) (model.Employee, error) {
	var e model.Employee
	err := row.Scan(&e.ID, &e.Name, &e.Age, &e.Email, &e.Position)
	return e, err
}

func (employeeMapper) WithID(e model.Employee, id int64) model.Employee {
	e.ID = id
	return e
}

// EmployeeRepo is the cached store behind /v1/employees.
type EmployeeRepo = EntityRepo[model.Employee]

func NewEmployeeRepo(db *sql.DB, c *cache.Cache, log zerolog.Logger, opts ...cache.Option) *EmployeeRepo {
	return NewEntityRepo[model.Employee](db, employeeMapper{}, c, log, opts...)
}
