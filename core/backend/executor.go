package backend

import (
	"context"

	"github.com/flexbase-tech/flexbase/core/csql"
)

// Executor runs the final literal SQL produced by the interpolator and
// provides the two storage primitives the engine needs beyond plain
// statement execution: sequence allocation and reference lookup.
type Executor interface {
	// Query runs a row-returning statement and returns all rows as maps.
	Query(ctx context.Context, sqlText string) ([]map[string]interface{}, error)
	// Exec runs a modifying statement and returns the affected row count.
	Exec(ctx context.Context, sqlText string) (int64, error)
	// NextSequence returns the next value of the monotonic counter scoped
	// to (application, table).
	NextSequence(ctx context.Context, applicationID int64, table string) (int64, error)
	// RecordExists reports whether the application has a record in the
	// given table whose logical id equals id.
	RecordExists(ctx context.Context, applicationID int64, table string, id int64) (bool, error)
}

// NewExecutor returns the production executor on a postgres database
func NewExecutor(db *csql.DB) Executor {
	return &sqlExecutor{db: db}
}

type sqlExecutor struct {
	db *csql.DB
}

func (e *sqlExecutor) Query(ctx context.Context, sqlText string) ([]map[string]interface{}, error) {
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := map[string]interface{}{}
		for i, column := range columns {
			if raw, ok := values[i].([]byte); ok {
				row[column] = string(raw)
			} else {
				row[column] = values[i]
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (e *sqlExecutor) Exec(ctx context.Context, sqlText string) (int64, error) {
	res, err := e.db.ExecContext(ctx, sqlText)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (e *sqlExecutor) NextSequence(ctx context.Context, applicationID int64, table string) (int64, error) {
	var next int64
	err := e.db.QueryRowContext(ctx,
		`SELECT `+e.db.Schema+`.fn_next_id($1, $2);`, applicationID, table).Scan(&next)
	return next, err
}

func (e *sqlExecutor) RecordExists(ctx context.Context, applicationID int64, table string, id int64) (bool, error) {
	var one int
	err := e.db.QueryRowContext(ctx,
		`SELECT 1 FROM `+e.db.Schema+`.records WHERE table_name = $1 AND application_id = $2 AND (value->>'id')::BIGINT = $3 LIMIT 1;`,
		table, applicationID, id).Scan(&one)
	if err == csql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
